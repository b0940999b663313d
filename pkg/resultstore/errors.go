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

package resultstore

import "errors"

var (
	// ErrVersionMissing is returned when a read addresses a version
	// whose collection no longer exists (deleted or never created).
	ErrVersionMissing = errors.New("result version missing from store")

	// ErrVersionExists is returned when creating a version id that is
	// already present; version ids are unique per run so this indicates
	// a caller bug.
	ErrVersionExists = errors.New("result version already exists")
)
