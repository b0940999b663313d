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

package compare

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/memtriage/memtriage/pkg/db"
	"github.com/memtriage/memtriage/pkg/logger"
	"github.com/memtriage/memtriage/pkg/metrics"
	"github.com/memtriage/memtriage/pkg/models"
	"github.com/memtriage/memtriage/pkg/resultstore"
)

var (
	keyA = models.ResultKey{DumpID: "dump-a", Plugin: "windows.pslist.PsList"}
	keyB = models.ResultKey{DumpID: "dump-b", Plugin: "windows.pslist.PsList"}
)

func writeRows(t *testing.T, store resultstore.Store, key models.ResultKey, version string, rows []models.ResultRow) {
	t.Helper()

	require.NoError(t, store.CreateVersion(context.Background(), key, version))

	docs := make([]resultstore.Doc, len(rows))
	for i, row := range rows {
		docs[i] = resultstore.MakeDoc(row, "pid")
	}

	require.NoError(t, store.WriteBatch(context.Background(), key, version, docs))
}

func newTestEngine(t *testing.T, store resultstore.Store) *Engine {
	t.Helper()

	ctrl := gomock.NewController(t)
	mockDB := db.NewMockService(ctrl)
	mockDB.EXPECT().CurrentVersion(gomock.Any(), keyA).Return("va", nil).AnyTimes()
	mockDB.EXPECT().CurrentVersion(gomock.Any(), keyB).Return("vb", nil).AnyTimes()

	return New(store, mockDB, metrics.NewCollector(), logger.NewTestLogger())
}

func collectDiff(t *testing.T, e *Engine) map[string]models.DiffEntry {
	t.Helper()

	out := make(map[string]models.DiffEntry)

	require.NoError(t, e.Diff(context.Background(), keyA, keyB, func(entry models.DiffEntry) error {
		out[entry.RowID] = entry
		return nil
	}))

	return out
}

func TestDiffClassifiesEveryKind(t *testing.T) {
	t.Parallel()

	store := resultstore.NewMemoryStore(0)

	// Baseline: pid 1 (threads 4), pid 2. Candidate: pid 1 (threads 5),
	// pid 3. Expected: pid 1 changed, pid 2 removed, pid 3 added.
	writeRows(t, store, keyA, "va", []models.ResultRow{
		{RowID: "id-1", Columns: map[string]interface{}{"pid": float64(1), "threads": float64(4)}},
		{RowID: "id-2", Columns: map[string]interface{}{"pid": float64(2), "threads": float64(1)}},
		{RowID: "id-4", Columns: map[string]interface{}{"pid": float64(4), "threads": float64(2)}},
	})
	writeRows(t, store, keyB, "vb", []models.ResultRow{
		{RowID: "id-1", Columns: map[string]interface{}{"pid": float64(1), "threads": float64(5)}},
		{RowID: "id-3", Columns: map[string]interface{}{"pid": float64(3), "threads": float64(1)}},
		{RowID: "id-4", Columns: map[string]interface{}{"pid": float64(4), "threads": float64(2)}},
	})

	entries := collectDiff(t, newTestEngine(t, store))
	require.Len(t, entries, 4)

	changed := entries["id-1"]
	assert.Equal(t, models.DiffChanged, changed.Kind)
	require.Len(t, changed.Deltas, 1)
	assert.Equal(t, "threads", changed.Deltas[0].Column)
	assert.Equal(t, float64(4), changed.Deltas[0].Before)
	assert.Equal(t, float64(5), changed.Deltas[0].After)

	assert.Equal(t, models.DiffRemoved, entries["id-2"].Kind)
	assert.Equal(t, models.DiffAdded, entries["id-3"].Kind)
	assert.Equal(t, models.DiffUnchanged, entries["id-4"].Kind)
}

func TestDiffDifferentPlugins(t *testing.T) {
	t.Parallel()

	store := resultstore.NewMemoryStore(0)
	e := newTestEngine(t, store)

	other := models.ResultKey{DumpID: "dump-b", Plugin: "windows.netscan.NetScan"}

	err := e.Diff(context.Background(), keyA, other, func(models.DiffEntry) error { return nil })
	assert.ErrorIs(t, err, ErrIncomparableSets)
}

func TestDiffEmptySides(t *testing.T) {
	t.Parallel()

	store := resultstore.NewMemoryStore(0)

	writeRows(t, store, keyA, "va", nil)
	writeRows(t, store, keyB, "vb", []models.ResultRow{
		{RowID: "id-1", Columns: map[string]interface{}{"pid": float64(1)}},
	})

	entries := collectDiff(t, newTestEngine(t, store))
	require.Len(t, entries, 1)
	assert.Equal(t, models.DiffAdded, entries["id-1"].Kind)
}

func TestDiffStreamsPastWindowBoundary(t *testing.T) {
	t.Parallel()

	store := resultstore.NewMemoryStore(0)

	var left, right []models.ResultRow

	const n = 2500 // bigger than one iterator window

	for i := 0; i < n; i++ {
		row := models.ResultRow{
			RowID:   fmt.Sprintf("id-%06d", i),
			Columns: map[string]interface{}{"pid": float64(i)},
		}
		left = append(left, row)

		if i%2 == 0 {
			right = append(right, row)
		}
	}

	writeRows(t, store, keyA, "va", left)
	writeRows(t, store, keyB, "vb", right)

	entries := collectDiff(t, newTestEngine(t, store))
	require.Len(t, entries, n)

	var removed, unchanged int

	for _, entry := range entries {
		switch entry.Kind {
		case models.DiffRemoved:
			removed++
		case models.DiffUnchanged:
			unchanged++
		default:
			t.Fatalf("unexpected kind %s for %s", entry.Kind, entry.RowID)
		}
	}

	assert.Equal(t, n/2, removed)
	assert.Equal(t, n/2, unchanged)
}

func TestDiffEmitErrorAborts(t *testing.T) {
	t.Parallel()

	store := resultstore.NewMemoryStore(0)

	writeRows(t, store, keyA, "va", []models.ResultRow{
		{RowID: "id-1", Columns: map[string]interface{}{"pid": float64(1)}},
		{RowID: "id-2", Columns: map[string]interface{}{"pid": float64(2)}},
	})
	writeRows(t, store, keyB, "vb", []models.ResultRow{
		{RowID: "id-1", Columns: map[string]interface{}{"pid": float64(1)}},
	})

	boom := errors.New("sink full")
	calls := 0

	err := newTestEngine(t, store).Diff(context.Background(), keyA, keyB, func(models.DiffEntry) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
