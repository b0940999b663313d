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
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memtriage/memtriage/pkg/models"
)

var testKey = models.ResultKey{DumpID: "dump-1", Plugin: "windows.pslist.PsList"}

func docFor(pid int) Doc {
	row := models.ResultRow{
		RowID:   fmt.Sprintf("row-%04d", pid),
		Columns: map[string]interface{}{"PID": float64(pid)},
	}

	return MakeDoc(row, "PID")
}

func TestWriteBatchRequiresCreatedVersion(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(10)

	err := s.WriteBatch(context.Background(), testKey, "v1", []Doc{docFor(1)})
	assert.ErrorIs(t, err, ErrVersionMissing)
}

func TestQueryWindowOrdersAndClampsLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(3)

	require.NoError(t, s.CreateVersion(ctx, testKey, "v1"))
	// Insert out of order across two batches.
	require.NoError(t, s.WriteBatch(ctx, testKey, "v1", []Doc{docFor(30), docFor(10)}))
	require.NoError(t, s.WriteBatch(ctx, testKey, "v1", []Doc{docFor(20), docFor(5), docFor(40)}))

	docs, err := s.QueryWindow(ctx, Query{Key: testKey, Version: "v1", Limit: 100})
	require.NoError(t, err)

	// Limit clamped to the window cap of 3, rows in sort order.
	require.Len(t, docs, 3)
	assert.Equal(t, "row-0005", docs[0].RowID)
	assert.Equal(t, "row-0010", docs[1].RowID)
	assert.Equal(t, "row-0020", docs[2].RowID)
}

func TestQueryWindowResumesAfterCursorPosition(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(50)

	require.NoError(t, s.CreateVersion(ctx, testKey, "v1"))

	var docs []Doc
	for pid := 1; pid <= 9; pid++ {
		docs = append(docs, docFor(pid))
	}

	require.NoError(t, s.WriteBatch(ctx, testKey, "v1", docs))

	first, err := s.QueryWindow(ctx, Query{Key: testKey, Version: "v1", Limit: 4})
	require.NoError(t, err)
	require.Len(t, first, 4)

	last := first[len(first)-1]
	rest, err := s.QueryWindow(ctx, Query{
		Key:        testKey,
		Version:    "v1",
		AfterSort:  last.Sort,
		AfterRowID: last.RowID,
		Limit:      100,
	})
	require.NoError(t, err)
	require.Len(t, rest, 5)
	assert.Equal(t, "row-0005", rest[0].RowID)
	assert.Equal(t, "row-0009", rest[4].RowID)
}

func TestWriteBatchUpsertsByRowID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(10)

	require.NoError(t, s.CreateVersion(ctx, testKey, "v1"))
	require.NoError(t, s.WriteBatch(ctx, testKey, "v1", []Doc{docFor(1), docFor(2)}))

	// A later batch re-writing row-0001 replaces it, matching the
	// document-id overwrite of the Elasticsearch backend.
	replaced := docFor(1)
	replaced.Columns["Name"] = "rewritten"
	require.NoError(t, s.WriteBatch(ctx, testKey, "v1", []Doc{replaced, docFor(3)}))

	count, err := s.CountRows(ctx, testKey, "v1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	docs, err := s.QueryWindow(ctx, Query{Key: testKey, Version: "v1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "row-0001", docs[0].RowID)
	assert.Equal(t, "rewritten", docs[0].Columns["Name"])
}

func TestDeleteVersionIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(10)

	require.NoError(t, s.CreateVersion(ctx, testKey, "v1"))
	require.NoError(t, s.DeleteVersion(ctx, testKey, "v1"))
	require.NoError(t, s.DeleteVersion(ctx, testKey, "v1"))

	_, err := s.QueryWindow(ctx, Query{Key: testKey, Version: "v1"})
	assert.ErrorIs(t, err, ErrVersionMissing)
}

func TestSortKeyNumericPadding(t *testing.T) {
	t.Parallel()

	// Lexicographic order over padded keys must match numeric order.
	low := SortKey(map[string]interface{}{"PID": float64(9)}, "PID")
	high := SortKey(map[string]interface{}{"PID": float64(1000)}, "PID")
	assert.Less(t, low, high)

	// Missing column sorts first, identity breaks the tie.
	assert.Equal(t, "", SortKey(map[string]interface{}{}, "PID"))
	assert.Equal(t, "", SortKey(map[string]interface{}{"PID": 1}, ""))

	assert.Equal(t, "svchost.exe", SortKey(map[string]interface{}{"Name": "svchost.exe"}, "Name"))
}
