/*
 * Copyright 2026 The Memtriage Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package db persists job records and result-version pointers in Postgres.
package db

import (
	"context"
	"time"

	"github.com/memtriage/memtriage/pkg/models"
)

//go:generate mockgen -destination=mock_db.go -package=db github.com/memtriage/memtriage/pkg/db Service

// Service represents all database operations used by the orchestrator.
// Job records and version pointers survive process restart; everything
// else the orchestrator holds in memory.
type Service interface {
	Close()

	// Dump operations (read-only view owned by the upload collaborator).

	GetDump(ctx context.Context, id string) (*models.Dump, error)

	// Job operations.

	// InsertJob creates a queued job. It returns ErrDuplicateActiveJob
	// when a non-terminal job already holds the same
	// (dump, plugin, signature) key.
	InsertJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	// GetActiveJob returns the single non-terminal job for the key,
	// or ErrJobNotFound.
	GetActiveJob(ctx context.Context, dumpID, plugin, paramSig string) (*models.Job, error)
	MarkJobRunning(ctx context.Context, jobID, workerHandle string) error
	MarkJobDone(ctx context.Context, jobID, version string, rowCount int64) error
	MarkJobError(ctx context.Context, jobID, cause string) error
	MarkJobDeleted(ctx context.Context, jobID string) error
	// TouchJob records a worker heartbeat for the liveness sweep.
	TouchJob(ctx context.Context, jobID string, lastSeen time.Time) error
	CountPendingJobs(ctx context.Context, dumpID string) (int, error)
	ListRunningJobs(ctx context.Context) ([]models.Job, error)

	// Result-version pointer operations.

	// CurrentVersion returns the live version for the key, or
	// ErrVersionNotFound when no run has completed yet.
	CurrentVersion(ctx context.Context, key models.ResultKey) (string, error)
	// ReadableVersions returns the live version and the retained
	// predecessor (empty when none).
	ReadableVersions(ctx context.Context, key models.ResultKey) (current, previous string, err error)
	// FlipVersion atomically makes version the live one for the key and
	// returns the displaced generation that fell out of retention, so
	// the caller can delete its rows.
	FlipVersion(ctx context.Context, key models.ResultKey, version string) (displaced string, err error)
}
