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
	"sort"
	"sync"

	"github.com/memtriage/memtriage/pkg/models"
)

// MemoryStore is an embedded Store for single-node development and tests.
// It enforces the same capped-window read semantics as the Elasticsearch
// backend so pagination behaves identically against both.
type MemoryStore struct {
	mu        sync.RWMutex
	versions  map[string][]Doc // key@version -> rows sorted by (sort, row_id)
	maxWindow int
}

// NewMemoryStore returns an empty store capping window reads at maxWindow.
func NewMemoryStore(maxWindow int) *MemoryStore {
	if maxWindow <= 0 {
		maxWindow = defaultMaxResultWindow
	}

	return &MemoryStore{
		versions:  make(map[string][]Doc),
		maxWindow: maxWindow,
	}
}

func versionKey(key models.ResultKey, version string) string {
	return fmt.Sprintf("%s@%s", key, version)
}

func (s *MemoryStore) CreateVersion(_ context.Context, key models.ResultKey, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vk := versionKey(key, version)
	if _, exists := s.versions[vk]; exists {
		return fmt.Errorf("%w: %s", ErrVersionExists, vk)
	}

	s.versions[vk] = []Doc{}

	return nil
}

func (s *MemoryStore) WriteBatch(_ context.Context, key models.ResultKey, version string, docs []Doc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vk := versionKey(key, version)

	existing, ok := s.versions[vk]
	if !ok {
		return fmt.Errorf("%w: %s", ErrVersionMissing, vk)
	}

	// Upsert by row identity, matching the document-id semantics of
	// the Elasticsearch backend.
	merged := make([]Doc, len(existing), len(existing)+len(docs))
	copy(merged, existing)

	index := make(map[string]int, len(merged)+len(docs))
	for i := range merged {
		index[merged[i].RowID] = i
	}

	for _, doc := range docs {
		if at, ok := index[doc.RowID]; ok {
			merged[at] = doc
			continue
		}

		index[doc.RowID] = len(merged)
		merged = append(merged, doc)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Sort != merged[j].Sort {
			return merged[i].Sort < merged[j].Sort
		}

		return merged[i].RowID < merged[j].RowID
	})

	s.versions[vk] = merged

	return nil
}

func (s *MemoryStore) QueryWindow(_ context.Context, q Query) ([]Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs, ok := s.versions[versionKey(q.Key, q.Version)]
	if !ok {
		return nil, fmt.Errorf("%w: %s@%s", ErrVersionMissing, q.Key, q.Version)
	}

	limit := q.Limit
	if limit <= 0 || limit > s.maxWindow {
		limit = s.maxWindow
	}

	if q.ByRowID {
		resorted := make([]Doc, len(docs))
		copy(resorted, docs)
		sort.Slice(resorted, func(i, j int) bool {
			return resorted[i].RowID < resorted[j].RowID
		})

		docs = resorted
	}

	// Binary search for the first row strictly after the cursor position.
	start := 0
	if q.AfterRowID != "" {
		start = sort.Search(len(docs), func(i int) bool {
			if q.ByRowID {
				return docs[i].RowID > q.AfterRowID
			}

			if docs[i].Sort != q.AfterSort {
				return docs[i].Sort > q.AfterSort
			}

			return docs[i].RowID > q.AfterRowID
		})
	}

	end := start + limit
	if end > len(docs) {
		end = len(docs)
	}

	out := make([]Doc, end-start)
	copy(out, docs[start:end])

	return out, nil
}

func (s *MemoryStore) CountRows(_ context.Context, key models.ResultKey, version string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs, ok := s.versions[versionKey(key, version)]
	if !ok {
		return 0, fmt.Errorf("%w: %s@%s", ErrVersionMissing, key, version)
	}

	return int64(len(docs)), nil
}

func (s *MemoryStore) DeleteVersion(_ context.Context, key models.ResultKey, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.versions, versionKey(key, version))

	return nil
}

func (s *MemoryStore) HasVersion(_ context.Context, key models.ResultKey, version string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.versions[versionKey(key, version)]

	return ok, nil
}

func (s *MemoryStore) Close() {}
