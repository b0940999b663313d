/*
 * Copyright 2026 The Memtriage Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// RowID derives the stable identity of one result row from the plugin's
// declared key fields. Two runs of the same plugin on the same dump
// produce the same RowID for the same logical artifact, which is what
// makes version-to-version comparison meaningful. With no declared key
// fields the whole row is hashed, so any column change produces a new
// identity.
func RowID(columns map[string]interface{}, keyFields []string) string {
	h := sha256.New()

	if len(keyFields) == 0 {
		// Map marshaling is key-sorted, so the digest is deterministic.
		raw, err := json.Marshal(columns)
		if err != nil {
			raw = []byte(fmt.Sprintf("%v", columns))
		}

		h.Write(raw)

		return hex.EncodeToString(h.Sum(nil))
	}

	for _, field := range keyFields {
		raw, err := json.Marshal(columns[field])
		if err != nil {
			raw = []byte(fmt.Sprintf("%v", columns[field]))
		}

		h.Write([]byte(field))
		h.Write([]byte{0})
		h.Write(raw)
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}
