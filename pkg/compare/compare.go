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

// Package compare computes structural diffs between two result sets of
// the same plugin. Both sides stream through the store in row-identity
// order and merge-join, so memory stays bounded regardless of result
// set size.
package compare

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/memtriage/memtriage/pkg/db"
	"github.com/memtriage/memtriage/pkg/logger"
	"github.com/memtriage/memtriage/pkg/metrics"
	"github.com/memtriage/memtriage/pkg/models"
	"github.com/memtriage/memtriage/pkg/resultstore"
)

const defaultWindowSize = 1000

// ErrIncomparableSets is returned when the two keys do not share a
// plugin; rows of different plugins have no common identity.
var ErrIncomparableSets = errors.New("result sets are not comparable")

// Engine streams two result sets and classifies every row.
type Engine struct {
	store      resultstore.Store
	database   db.Service
	collector  *metrics.Collector
	logger     logger.Logger
	windowSize int
}

func New(store resultstore.Store, database db.Service, collector *metrics.Collector, log logger.Logger) *Engine {
	return &Engine{
		store:      store,
		database:   database,
		collector:  collector,
		logger:     log.WithComponent("compare"),
		windowSize: defaultWindowSize,
	}
}

// Diff compares the live versions of baseline and candidate, calling
// emit once per row in row-identity order: rows only in the baseline
// are removed, rows only in the candidate are added, shared rows are
// changed (with per-column deltas) or unchanged. A non-nil error from
// emit aborts the stream.
func (e *Engine) Diff(ctx context.Context, baseline, candidate models.ResultKey, emit func(models.DiffEntry) error) error {
	if baseline.Plugin != candidate.Plugin {
		return fmt.Errorf("%w: %s vs %s", ErrIncomparableSets, baseline.Plugin, candidate.Plugin)
	}

	left, err := e.newIterator(ctx, baseline)
	if err != nil {
		return err
	}

	right, err := e.newIterator(ctx, candidate)
	if err != nil {
		return err
	}

	a, err := left.next()
	if err != nil {
		return err
	}

	b, err := right.next()
	if err != nil {
		return err
	}

	for a != nil || b != nil {
		var entry models.DiffEntry

		switch {
		case b == nil || (a != nil && a.RowID < b.RowID):
			entry = models.DiffEntry{RowID: a.RowID, Kind: models.DiffRemoved}

			if a, err = left.next(); err != nil {
				return err
			}

		case a == nil || b.RowID < a.RowID:
			entry = models.DiffEntry{RowID: b.RowID, Kind: models.DiffAdded}

			if b, err = right.next(); err != nil {
				return err
			}

		default:
			entry = classify(a, b)

			if a, err = left.next(); err != nil {
				return err
			}

			if b, err = right.next(); err != nil {
				return err
			}
		}

		if err := emit(entry); err != nil {
			return err
		}
	}

	e.collector.RecordDiffServed()

	return nil
}

// classify compares the columns of one shared row.
func classify(a, b *resultstore.Doc) models.DiffEntry {
	columns := make(map[string]struct{}, len(a.Columns))
	for c := range a.Columns {
		columns[c] = struct{}{}
	}

	for c := range b.Columns {
		columns[c] = struct{}{}
	}

	names := make([]string, 0, len(columns))
	for c := range columns {
		names = append(names, c)
	}

	sort.Strings(names)

	var deltas []models.ColumnDelta

	for _, c := range names {
		before, after := a.Columns[c], b.Columns[c]
		if !reflect.DeepEqual(before, after) {
			deltas = append(deltas, models.ColumnDelta{Column: c, Before: before, After: after})
		}
	}

	if len(deltas) == 0 {
		return models.DiffEntry{RowID: a.RowID, Kind: models.DiffUnchanged}
	}

	return models.DiffEntry{RowID: a.RowID, Kind: models.DiffChanged, Deltas: deltas}
}

// iterator pulls one version through the store window by window in
// row-identity order.
type iterator struct {
	ctx     context.Context
	engine  *Engine
	key     models.ResultKey
	version string

	buf     []resultstore.Doc
	pos     int
	lastID  string
	drained bool
}

func (e *Engine) newIterator(ctx context.Context, key models.ResultKey) (*iterator, error) {
	version, err := e.database.CurrentVersion(ctx, key)
	if err != nil {
		return nil, err
	}

	return &iterator{ctx: ctx, engine: e, key: key, version: version}, nil
}

// next returns the following doc or nil at end of the set.
func (it *iterator) next() (*resultstore.Doc, error) {
	if it.pos >= len(it.buf) {
		if it.drained {
			return nil, nil
		}

		window, err := it.engine.store.QueryWindow(it.ctx, resultstore.Query{
			Key:        it.key,
			Version:    it.version,
			AfterRowID: it.lastID,
			Limit:      it.engine.windowSize,
			ByRowID:    true,
		})
		if err != nil {
			return nil, err
		}

		if len(window) == 0 {
			it.drained = true
			return nil, nil
		}

		// The store may clamp the window below the asked limit, so a
		// short window does not mean the set is exhausted.
		it.buf = window
		it.pos = 0
		it.lastID = window[len(window)-1].RowID
	}

	doc := &it.buf[it.pos]
	it.pos++

	return doc, nil
}
