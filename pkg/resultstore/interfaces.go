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

// Package resultstore persists plugin output rows in a schema-flexible
// store, one write-once collection per (dump, plugin, version).
package resultstore

import (
	"context"

	"github.com/memtriage/memtriage/pkg/models"
)

// Doc is one stored row plus its precomputed pagination sort key.
type Doc struct {
	models.ResultRow
	Sort string `json:"sort"`
}

// Query is one capped-window range read. Rows are returned in
// (Sort, RowID) order, strictly after the (AfterSort, AfterRowID)
// position when AfterRowID is non-empty. With ByRowID set the sort key
// is ignored and rows come back in pure row-identity order, which is
// what the comparison engine merge-joins on.
type Query struct {
	Key        models.ResultKey
	Version    string
	AfterSort  string
	AfterRowID string
	Limit      int
	ByRowID    bool
}

// Store is the backing row store. Versions are write-once: rows are
// appended batch by batch while a version is being built and never
// touched again once the version pointer has been flipped to it.
//
// Implementations cap a single window read at their configured maximum;
// callers page past the cap by chaining windows (see pkg/pager).
type Store interface {
	// CreateVersion prepares an empty collection for the version.
	CreateVersion(ctx context.Context, key models.ResultKey, version string) error
	// WriteBatch appends one independently-committable batch.
	WriteBatch(ctx context.Context, key models.ResultKey, version string, docs []Doc) error
	// QueryWindow reads one window. Limit is clamped to the store cap.
	QueryWindow(ctx context.Context, q Query) ([]Doc, error)
	// CountRows returns the number of rows in a version.
	CountRows(ctx context.Context, key models.ResultKey, version string) (int64, error)
	// DeleteVersion discards a version's rows. Deleting a version that
	// does not exist is not an error.
	DeleteVersion(ctx context.Context, key models.ResultKey, version string) error
	// HasVersion reports whether a version's collection still exists.
	HasVersion(ctx context.Context, key models.ResultKey, version string) (bool, error)
	Close()
}
