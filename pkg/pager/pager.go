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

// Package pager serves deterministic result pages through opaque
// cursors. The store caps how many rows one window read may return;
// the pager chains windows with search-after positions, so callers can
// walk result sets of any size.
package pager

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/memtriage/memtriage/pkg/db"
	"github.com/memtriage/memtriage/pkg/logger"
	"github.com/memtriage/memtriage/pkg/metrics"
	"github.com/memtriage/memtriage/pkg/models"
	"github.com/memtriage/memtriage/pkg/resultstore"
)

const defaultMaxPageSize = 1000

// ErrStaleVersion is returned for cursors pointing at a version that
// fell out of retention. The caller restarts pagination from the
// beginning to pick up the live version.
var ErrStaleVersion = errors.New("cursor version no longer retained, restart pagination")

// cursor pins a pagination position to one version. A cursor never
// silently migrates between versions: reads through it are frozen.
type cursor struct {
	Version string `json:"v"`
	Sort    string `json:"s"`
	RowID   string `json:"r"`
}

func encodeCursor(c cursor) string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(s string) (cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return cursor{}, fmt.Errorf("malformed cursor: %w", err)
	}

	var c cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return cursor{}, fmt.Errorf("malformed cursor: %w", err)
	}

	if c.Version == "" || c.RowID == "" {
		return cursor{}, errors.New("malformed cursor: missing position")
	}

	return c, nil
}

// Pager resolves cursors against the retained versions and reads pages
// from the store.
type Pager struct {
	store       resultstore.Store
	database    db.Service
	collector   *metrics.Collector
	logger      logger.Logger
	maxPageSize int
}

func New(store resultstore.Store, database db.Service, collector *metrics.Collector, log logger.Logger, maxPageSize int) *Pager {
	if maxPageSize <= 0 {
		maxPageSize = defaultMaxPageSize
	}

	return &Pager{
		store:       store,
		database:    database,
		collector:   collector,
		logger:      log.WithComponent("pager"),
		maxPageSize: maxPageSize,
	}
}

// Page returns one page of rows and the cursor for the next one, empty
// when the result set is exhausted. An empty cursorToken starts from
// the live version; a non-empty one resumes exactly where it left off,
// on the version it was minted against. The same token always yields
// the same page.
func (p *Pager) Page(ctx context.Context, key models.ResultKey, cursorToken string, pageSize int) ([]models.ResultRow, string, error) {
	current, previous, err := p.database.ReadableVersions(ctx, key)
	if err != nil {
		return nil, "", err
	}

	pos := cursor{Version: current}

	if cursorToken != "" {
		pos, err = decodeCursor(cursorToken)
		if err != nil {
			return nil, "", err
		}

		if pos.Version != current && pos.Version != previous {
			return nil, "", fmt.Errorf("%w: version %s", ErrStaleVersion, pos.Version)
		}
	}

	if pageSize <= 0 || pageSize > p.maxPageSize {
		pageSize = p.maxPageSize
	}

	// One row past the page decides whether a next cursor exists, so a
	// result set that ends exactly on a page boundary terminates here
	// instead of costing the caller an empty round trip.
	docs, err := p.collect(ctx, key, pos, pageSize+1)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(docs) > pageSize {
		docs = docs[:pageSize]
		last := docs[pageSize-1]
		next = encodeCursor(cursor{Version: pos.Version, Sort: last.Sort, RowID: last.RowID})
	}

	rows := make([]models.ResultRow, len(docs))
	for i, doc := range docs {
		rows[i] = doc.ResultRow
	}

	p.collector.RecordPageServed()

	return rows, next, nil
}

// collect chains capped window reads until the page is full or the
// version runs out of rows.
func (p *Pager) collect(ctx context.Context, key models.ResultKey, pos cursor, pageSize int) ([]resultstore.Doc, error) {
	docs := make([]resultstore.Doc, 0, pageSize)

	afterSort, afterRow := pos.Sort, pos.RowID

	for len(docs) < pageSize {
		window, err := p.store.QueryWindow(ctx, resultstore.Query{
			Key:        key,
			Version:    pos.Version,
			AfterSort:  afterSort,
			AfterRowID: afterRow,
			Limit:      pageSize - len(docs),
		})
		if err != nil {
			return nil, err
		}

		if len(window) == 0 {
			break
		}

		docs = append(docs, window...)

		last := window[len(window)-1]
		afterSort, afterRow = last.Sort, last.RowID
	}

	return docs, nil
}
