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

// Package ingest turns streamed worker output into a committed result
// version. Rows are written under a fresh version id that readers never
// see; only after the final batch lands is the version pointer flipped,
// so a reader observes either the complete old result set or the
// complete new one.
package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/memtriage/memtriage/pkg/db"
	"github.com/memtriage/memtriage/pkg/logger"
	"github.com/memtriage/memtriage/pkg/metrics"
	"github.com/memtriage/memtriage/pkg/models"
	"github.com/memtriage/memtriage/pkg/resultstore"
)

// Batch is one chunk of raw rows as a worker emitted them.
type Batch []map[string]interface{}

// Summary reports one successful ingestion run.
type Summary struct {
	Version  string
	RowCount int64
}

// Ingestor writes worker batches into the result store and flips the
// version pointer when a run completes.
type Ingestor struct {
	store     resultstore.Store
	database  db.Service
	collector *metrics.Collector
	logger    logger.Logger

	// newVersion is swappable for tests.
	newVersion func() string
}

func New(store resultstore.Store, database db.Service, collector *metrics.Collector, log logger.Logger) *Ingestor {
	return &Ingestor{
		store:      store,
		database:   database,
		collector:  collector,
		logger:     log.WithComponent("ingest"),
		newVersion: uuid.NewString,
	}
}

// Ingest consumes batches until the channel closes, then commits the
// new version. The channel closing is the completion signal; aborting
// (worker failure, cancellation) is expressed by cancelling ctx, which
// discards everything written so far. A closed channel with zero rows
// still commits: an empty result set is a valid, current result.
func (i *Ingestor) Ingest(ctx context.Context, job *models.Job, desc models.PluginDescriptor, batches <-chan Batch) (*Summary, error) {
	key := job.Key()
	version := i.newVersion()

	log := i.logger.WithFields(map[string]interface{}{
		"job_id":  job.ID,
		"key":     key.String(),
		"version": version,
	})

	if err := i.store.CreateVersion(ctx, key, version); err != nil {
		return nil, fmt.Errorf("%w: create version: %w", ErrIngestionFailure, err)
	}

	// Batch boundaries are arbitrary, so duplicate identities can
	// straddle them; seen spans the whole run and keeps RowCount equal
	// to the distinct rows the store ends up holding.
	seen := make(map[string]struct{})

	var rowCount int64

	for {
		select {
		case <-ctx.Done():
			i.discard(key, version, log)
			return nil, fmt.Errorf("%w: %w", ErrIngestionFailure, ctx.Err())

		case batch, ok := <-batches:
			if !ok {
				return i.commit(ctx, job, key, version, rowCount, log)
			}

			docs, fresh := i.prepare(batch, &desc, seen, log)
			if len(docs) == 0 {
				continue
			}

			if err := i.store.WriteBatch(ctx, key, version, docs); err != nil {
				i.collector.RecordBatchFailure()
				i.discard(key, version, log)

				return nil, fmt.Errorf("%w: write batch: %w", ErrIngestionFailure, err)
			}

			rowCount += fresh
			i.collector.RecordRowsIngested(int(fresh))
		}
	}
}

// prepare derives row identity and sort keys for one batch. Identity
// collisions resolve last-write-wins: within the batch the later doc
// replaces the earlier one; across batches the doc is written anyway
// (stores upsert by row id) but not counted again.
func (i *Ingestor) prepare(batch Batch, desc *models.PluginDescriptor, seen map[string]struct{}, log logger.Logger) ([]resultstore.Doc, int64) {
	docs := make([]resultstore.Doc, 0, len(batch))
	batchIdx := make(map[string]int, len(batch))

	var fresh int64

	for _, columns := range batch {
		rowID := RowID(columns, desc.KeyFields)
		doc := resultstore.MakeDoc(models.ResultRow{RowID: rowID, Columns: columns}, desc.SortColumn)

		if at, dup := batchIdx[rowID]; dup {
			log.Warn().Str("row_id", rowID).Msg("Duplicate row identity in batch, keeping last write")
			docs[at] = doc

			continue
		}

		batchIdx[rowID] = len(docs)
		docs = append(docs, doc)

		if _, dup := seen[rowID]; dup {
			log.Warn().Str("row_id", rowID).Msg("Duplicate row identity across batches, keeping last write")
			continue
		}

		seen[rowID] = struct{}{}
		fresh++
	}

	return docs, fresh
}

// commit flips the version pointer and removes whichever generation the
// flip pushed out of retention.
func (i *Ingestor) commit(ctx context.Context, job *models.Job, key models.ResultKey, version string, rowCount int64, log logger.Logger) (*Summary, error) {
	// A cancellation can race the completion event. Re-check the job
	// record so a version is never flipped live for a terminal job;
	// a failed lookup does not block the commit.
	current, err := i.database.GetJob(ctx, job.ID)
	if err != nil {
		log.Warn().Err(err).Msg("Could not re-check job state before commit")
	} else if current.Status.Terminal() {
		i.discard(key, version, log)
		return nil, fmt.Errorf("%w: job %s is %s", ErrRunSuperseded, job.ID, current.Status)
	}

	displaced, err := i.database.FlipVersion(ctx, key, version)
	if err != nil {
		i.discard(key, version, log)
		return nil, fmt.Errorf("%w: flip version: %w", ErrIngestionFailure, err)
	}

	i.collector.RecordVersionFlip()

	if displaced != "" {
		// Best effort: an orphaned index costs space, not correctness.
		if err := i.store.DeleteVersion(context.WithoutCancel(ctx), key, displaced); err != nil {
			log.Warn().Err(err).Str("displaced", displaced).Msg("Failed to delete displaced version")
		}
	}

	log.Info().Int64("rows", rowCount).Msg("Result version committed")

	return &Summary{Version: version, RowCount: rowCount}, nil
}

// discard removes a partially-written version. It runs on the abort
// path, so it deliberately ignores the caller's cancelled context.
func (i *Ingestor) discard(key models.ResultKey, version string, log logger.Logger) {
	if err := i.store.DeleteVersion(context.Background(), key, version); err != nil {
		log.Warn().Err(err).Msg("Failed to discard partial version")
	}
}
