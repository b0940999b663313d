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

import (
	"fmt"
	"strconv"

	"github.com/memtriage/memtriage/pkg/models"
)

const numericKeyWidth = 20

// SortKey derives the pagination sort key for a row from its primary
// sort column. Keys compare lexicographically, so numeric values are
// zero-padded to a fixed width; forensic sort columns (offsets, PIDs,
// timestamps) are non-negative, and anything else falls back to its
// string form. An empty column name sorts by row identity alone.
func SortKey(columns map[string]interface{}, column string) string {
	if column == "" {
		return ""
	}

	v, ok := columns[column]
	if !ok || v == nil {
		return ""
	}

	switch n := v.(type) {
	case float64:
		if n >= 0 && n == float64(int64(n)) {
			return fmt.Sprintf("%0*d", numericKeyWidth, int64(n))
		}

		return strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		if n >= 0 {
			return fmt.Sprintf("%0*d", numericKeyWidth, n)
		}

		return strconv.Itoa(n)
	case int64:
		if n >= 0 {
			return fmt.Sprintf("%0*d", numericKeyWidth, n)
		}

		return strconv.FormatInt(n, 10)
	case string:
		return n
	default:
		return fmt.Sprint(n)
	}
}

// MakeDoc pairs a row with its sort key for storage.
func MakeDoc(row models.ResultRow, sortColumn string) Doc {
	return Doc{
		ResultRow: row,
		Sort:      SortKey(row.Columns, sortColumn),
	}
}
