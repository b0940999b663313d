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

package pager

import (
	"context"
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

var testKey = models.ResultKey{DumpID: "dump-1", Plugin: "windows.pslist.PsList"}

// fillVersion writes n rows with pid 0..n-1 into one version.
func fillVersion(t *testing.T, store resultstore.Store, version string, n int) {
	t.Helper()

	require.NoError(t, store.CreateVersion(context.Background(), testKey, version))

	const chunk = 10000

	for off := 0; off < n; off += chunk {
		end := off + chunk
		if end > n {
			end = n
		}

		docs := make([]resultstore.Doc, 0, end-off)

		for i := off; i < end; i++ {
			row := models.ResultRow{
				RowID:   fmt.Sprintf("row-%08d", i),
				Columns: map[string]interface{}{"pid": float64(i), "version": version},
			}
			docs = append(docs, resultstore.MakeDoc(row, "pid"))
		}

		require.NoError(t, store.WriteBatch(context.Background(), testKey, version, docs))
	}
}

func newTestPager(t *testing.T, store resultstore.Store, current, previous string, maxPageSize int) *Pager {
	t.Helper()

	ctrl := gomock.NewController(t)
	mockDB := db.NewMockService(ctrl)
	mockDB.EXPECT().ReadableVersions(gomock.Any(), testKey).
		Return(current, previous, nil).AnyTimes()

	return New(store, mockDB, metrics.NewCollector(), logger.NewTestLogger(), maxPageSize)
}

// walk pages through the whole result set and returns every row id seen.
func walk(t *testing.T, p *Pager, pageSize int) []string {
	t.Helper()

	var ids []string

	cursor := ""

	for {
		rows, next, err := p.Page(context.Background(), testKey, cursor, pageSize)
		require.NoError(t, err)

		for _, row := range rows {
			ids = append(ids, row.RowID)
		}

		if next == "" {
			break
		}

		cursor = next
	}

	return ids
}

func TestPageCompletenessSmall(t *testing.T) {
	t.Parallel()

	store := resultstore.NewMemoryStore(50)
	fillVersion(t, store, "v1", 10)

	p := newTestPager(t, store, "v1", "", 100)

	ids := walk(t, p, 3)
	require.Len(t, ids, 10)

	seen := make(map[string]bool)
	for i, id := range ids {
		assert.False(t, seen[id], "row %s repeated", id)
		seen[id] = true

		assert.Equal(t, fmt.Sprintf("row-%08d", i), id, "rows must arrive in sort order")
	}
}

func TestPageTraversesPastWindowCap(t *testing.T) {
	const (
		total     = 60000
		windowCap = 50000
	)

	store := resultstore.NewMemoryStore(windowCap)
	fillVersion(t, store, "v1", total)

	p := newTestPager(t, store, "v1", "", total)

	// A single page bigger than the store's window cap is assembled
	// from chained window reads.
	rows, next, err := p.Page(context.Background(), testKey, "", total)
	require.NoError(t, err)
	require.Len(t, rows, total)
	assert.Equal(t, fmt.Sprintf("row-%08d", total-1), rows[total-1].RowID)
	assert.Empty(t, next, "exhausted set must not mint a cursor")
}

func TestPageExactMultipleEndsWithoutCursor(t *testing.T) {
	t.Parallel()

	store := resultstore.NewMemoryStore(50)
	fillVersion(t, store, "v1", 9)

	p := newTestPager(t, store, "v1", "", 100)

	cursor := ""

	for page := 0; page < 3; page++ {
		rows, next, err := p.Page(context.Background(), testKey, cursor, 3)
		require.NoError(t, err)
		require.Len(t, rows, 3)

		cursor = next
	}

	assert.Empty(t, cursor, "last full page must terminate pagination")
}

func TestPageCompletenessAcrossCursorsPastCap(t *testing.T) {
	const (
		total     = 60000
		windowCap = 50000
		pageSize  = 7000
	)

	store := resultstore.NewMemoryStore(windowCap)
	fillVersion(t, store, "v1", total)

	p := newTestPager(t, store, "v1", "", pageSize)

	ids := walk(t, p, pageSize)
	require.Len(t, ids, total, "no row lost or repeated at the window boundary")

	seen := make(map[string]bool, total)
	for _, id := range ids {
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestPageRestartableCursor(t *testing.T) {
	t.Parallel()

	store := resultstore.NewMemoryStore(50)
	fillVersion(t, store, "v1", 20)

	p := newTestPager(t, store, "v1", "", 100)

	_, cursor, err := p.Page(context.Background(), testKey, "", 5)
	require.NoError(t, err)
	require.NotEmpty(t, cursor)

	first, _, err := p.Page(context.Background(), testKey, cursor, 5)
	require.NoError(t, err)

	second, _, err := p.Page(context.Background(), testKey, cursor, 5)
	require.NoError(t, err)

	assert.Equal(t, first, second, "same cursor must yield the same page")
}

func TestPageStaleVersion(t *testing.T) {
	t.Parallel()

	store := resultstore.NewMemoryStore(50)
	fillVersion(t, store, "v3", 5)

	p := newTestPager(t, store, "v3", "v2", 100)

	token := encodeCursor(cursor{Version: "v1", Sort: "x", RowID: "row-1"})

	_, _, err := p.Page(context.Background(), testKey, token, 5)
	assert.ErrorIs(t, err, ErrStaleVersion)
}

func TestPageCursorFrozenOnPreviousVersion(t *testing.T) {
	t.Parallel()

	store := resultstore.NewMemoryStore(50)
	fillVersion(t, store, "v1", 10)

	ctrl := gomock.NewController(t)
	mockDB := db.NewMockService(ctrl)

	// v1 is live when pagination starts.
	first := mockDB.EXPECT().ReadableVersions(gomock.Any(), testKey).Return("v1", "", nil)
	// A re-run flips to v2 mid-pagination; v1 stays retained.
	mockDB.EXPECT().ReadableVersions(gomock.Any(), testKey).Return("v2", "v1", nil).After(first).AnyTimes()

	p := New(store, mockDB, metrics.NewCollector(), logger.NewTestLogger(), 100)

	rows, token, err := p.Page(context.Background(), testKey, "", 4)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.NotEmpty(t, token)

	fillVersion(t, store, "v2", 3)

	rest, _, err := p.Page(context.Background(), testKey, token, 100)
	require.NoError(t, err)
	require.Len(t, rest, 6, "cursor keeps reading the version it was minted on")

	for _, row := range rest {
		assert.Equal(t, "v1", row.Columns["version"])
	}

	// A fresh pagination sees the new live version.
	fresh, _, err := p.Page(context.Background(), testKey, "", 100)
	require.NoError(t, err)
	require.Len(t, fresh, 3)
	assert.Equal(t, "v2", fresh[0].Columns["version"])
}

func TestPageMalformedCursor(t *testing.T) {
	t.Parallel()

	store := resultstore.NewMemoryStore(50)
	fillVersion(t, store, "v1", 5)

	p := newTestPager(t, store, "v1", "", 100)

	_, _, err := p.Page(context.Background(), testKey, "!!!not-base64!!!", 5)
	assert.Error(t, err)
}

func TestPageSizeClamped(t *testing.T) {
	t.Parallel()

	store := resultstore.NewMemoryStore(50)
	fillVersion(t, store, "v1", 30)

	p := newTestPager(t, store, "v1", "", 10)

	rows, next, err := p.Page(context.Background(), testKey, "", 500)
	require.NoError(t, err)
	assert.Len(t, rows, 10, "page size is clamped to the configured maximum")
	assert.NotEmpty(t, next)
}
