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
	"encoding/json"
	"fmt"
	"strings"

	elastic "github.com/olivere/elastic/v7"

	"github.com/memtriage/memtriage/pkg/logger"
	"github.com/memtriage/memtriage/pkg/models"
)

const (
	indexPrefix            = "memtriage-results"
	defaultMaxResultWindow = 50000
)

// indexMapping pins row_id and sort to keyword fields so the pagination
// order is total and byte-comparable; row columns stay dynamic because
// each plugin emits its own schema.
const indexMapping = `{
	"settings": {
		"index": {
			"max_result_window": %d
		}
	},
	"mappings": {
		"properties": {
			"row_id": {"type": "keyword"},
			"sort":   {"type": "keyword"},
			"columns": {"type": "object", "dynamic": true, "enabled": true}
		}
	}
}`

// ElasticStore keeps one index per (dump, plugin, version).
type ElasticStore struct {
	client    *elastic.Client
	maxWindow int
	logger    logger.Logger
}

// NewElasticStore dials the configured Elasticsearch cluster.
func NewElasticStore(cfg *models.Elasticsearch, log logger.Logger) (*ElasticStore, error) {
	client, err := elastic.NewClient(
		elastic.SetURL(cfg.URLs...),
		elastic.SetSniff(cfg.Sniff),
		elastic.SetHealthcheck(cfg.Healthcheck),
	)
	if err != nil {
		return nil, fmt.Errorf("init elastic %v: %w", cfg.URLs, err)
	}

	maxWindow := cfg.MaxResultWindow
	if maxWindow <= 0 {
		maxWindow = defaultMaxResultWindow
	}

	return &ElasticStore{
		client:    client,
		maxWindow: maxWindow,
		logger:    log.WithComponent("resultstore"),
	}, nil
}

func (s *ElasticStore) CreateVersion(ctx context.Context, key models.ResultKey, version string) error {
	index := s.indexName(key, version)

	body := fmt.Sprintf(indexMapping, s.maxWindow)

	_, err := s.client.CreateIndex(index).BodyString(body).Do(ctx)
	if err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}

	return nil
}

func (s *ElasticStore) WriteBatch(ctx context.Context, key models.ResultKey, version string, docs []Doc) error {
	if len(docs) == 0 {
		return nil
	}

	index := s.indexName(key, version)
	bulk := s.client.Bulk().Index(index)

	for i := range docs {
		bulk.Add(elastic.NewBulkIndexRequest().
			Id(docs[i].RowID).
			Doc(docs[i]))
	}

	resp, err := bulk.Do(ctx)
	if err != nil {
		return fmt.Errorf("bulk write %s: %w", index, err)
	}

	if resp.Errors {
		for _, item := range resp.Failed() {
			return fmt.Errorf("bulk write %s: row %s: %s", index, item.Id, item.Error.Reason)
		}
	}

	// Batches must be visible to windowed reads as soon as the version
	// flips live.
	if _, err := s.client.Refresh(index).Do(ctx); err != nil {
		return fmt.Errorf("refresh %s: %w", index, err)
	}

	return nil
}

func (s *ElasticStore) QueryWindow(ctx context.Context, q Query) ([]Doc, error) {
	index := s.indexName(q.Key, q.Version)

	limit := q.Limit
	if limit <= 0 || limit > s.maxWindow {
		limit = s.maxWindow
	}

	search := s.client.Search().
		Index(index).
		Query(elastic.NewMatchAllQuery()).
		Size(limit)

	if q.ByRowID {
		search = search.Sort("row_id", true)
		if q.AfterRowID != "" {
			search = search.SearchAfter(q.AfterRowID)
		}
	} else {
		search = search.Sort("sort", true).Sort("row_id", true)
		if q.AfterRowID != "" {
			search = search.SearchAfter(q.AfterSort, q.AfterRowID)
		}
	}

	result, err := search.Do(ctx)
	if err != nil {
		if elastic.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s@%s", ErrVersionMissing, q.Key, q.Version)
		}

		return nil, fmt.Errorf("query window %s: %w", index, err)
	}

	docs := make([]Doc, 0, len(result.Hits.Hits))

	for _, hit := range result.Hits.Hits {
		var doc Doc
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			return nil, fmt.Errorf("decode row %s in %s: %w", hit.Id, index, err)
		}

		docs = append(docs, doc)
	}

	return docs, nil
}

func (s *ElasticStore) CountRows(ctx context.Context, key models.ResultKey, version string) (int64, error) {
	index := s.indexName(key, version)

	count, err := s.client.Count(index).Do(ctx)
	if err != nil {
		if elastic.IsNotFound(err) {
			return 0, fmt.Errorf("%w: %s@%s", ErrVersionMissing, key, version)
		}

		return 0, fmt.Errorf("count %s: %w", index, err)
	}

	return count, nil
}

func (s *ElasticStore) DeleteVersion(ctx context.Context, key models.ResultKey, version string) error {
	index := s.indexName(key, version)

	resp, err := s.client.DeleteIndex(index).Do(ctx)
	if elastic.IsNotFound(err) || (err == nil && resp.Acknowledged) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("delete index %s: %w", index, err)
	}

	return fmt.Errorf("delete index %s: not acknowledged", index)
}

func (s *ElasticStore) HasVersion(ctx context.Context, key models.ResultKey, version string) (bool, error) {
	exists, err := s.client.IndexExists(s.indexName(key, version)).Do(ctx)
	if err != nil {
		return false, fmt.Errorf("index exists %s@%s: %w", key, version, err)
	}

	return exists, nil
}

func (s *ElasticStore) Close() {
	s.client.Stop()
}

// indexName builds the per-version index name. Elasticsearch index names
// must be lowercase and free of most punctuation.
func (s *ElasticStore) indexName(key models.ResultKey, version string) string {
	slug := func(v string) string {
		v = strings.ToLower(v)
		return strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
				return r
			default:
				return '_'
			}
		}, v)
	}

	return fmt.Sprintf("%s-%s-%s-%s", indexPrefix, slug(key.DumpID), slug(key.Plugin), slug(version))
}
