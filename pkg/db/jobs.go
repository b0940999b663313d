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

package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/memtriage/memtriage/pkg/models"
)

const (
	insertJobSQL = `
INSERT INTO analysis_jobs (
	job_id,
	dump_id,
	plugin,
	param_sig,
	params,
	status,
	error,
	worker_handle,
	version,
	row_count,
	submitted_at,
	updated_at,
	last_seen
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)`

	selectJobSQL = `
SELECT job_id, dump_id, plugin, param_sig, params, status, error,
	worker_handle, version, row_count, submitted_at, updated_at, last_seen
FROM analysis_jobs`

	markRunningSQL = `
UPDATE analysis_jobs
SET status = 'running', worker_handle = $2, updated_at = now(), last_seen = now()
WHERE job_id = $1 AND status IN ('queued', 'running')`

	markDoneSQL = `
UPDATE analysis_jobs
SET status = 'done', version = $2, row_count = $3, updated_at = now()
WHERE job_id = $1 AND status IN ('queued', 'running')`

	markErrorSQL = `
UPDATE analysis_jobs
SET status = 'error', error = $2, updated_at = now()
WHERE job_id = $1 AND status IN ('queued', 'running')`

	markDeletedSQL = `
UPDATE analysis_jobs
SET status = 'deleted', updated_at = now()
WHERE job_id = $1 AND status IN ('queued', 'running')`

	touchJobSQL = `
UPDATE analysis_jobs
SET last_seen = $2
WHERE job_id = $1 AND status = 'running'`

	countPendingSQL = `
SELECT count(*) FROM analysis_jobs
WHERE dump_id = $1 AND status IN ('queued', 'running')`

	listRunningSQL = selectJobSQL + `
WHERE status = 'running'
ORDER BY submitted_at`
)

const pgUniqueViolation = "23505"

// InsertJob creates a queued job, enforcing one non-terminal job per key
// through the partial unique index.
func (s *Store) InsertJob(ctx context.Context, job *models.Job) error {
	params, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("%w: marshal params: %w", ErrFailedToInsert, err)
	}

	_, err = s.pool.Exec(ctx, insertJobSQL,
		job.ID,
		job.DumpID,
		job.Plugin,
		job.ParamSig,
		params,
		string(job.Status),
		job.Error,
		job.WorkerHandle,
		job.Version,
		job.RowCount,
		job.SubmittedAt,
		job.UpdatedAt,
		nullableTime(job.LastSeen),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateActiveJob
		}

		return fmt.Errorf("%w: job %s: %w", ErrFailedToInsert, job.ID, err)
	}

	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*models.Job, error) {
	row := s.pool.QueryRow(ctx, selectJobSQL+` WHERE job_id = $1`, id)

	return scanJob(row)
}

func (s *Store) GetActiveJob(ctx context.Context, dumpID, plugin, paramSig string) (*models.Job, error) {
	row := s.pool.QueryRow(ctx, selectJobSQL+`
WHERE dump_id = $1 AND plugin = $2 AND param_sig = $3 AND status IN ('queued', 'running')`,
		dumpID, plugin, paramSig)

	return scanJob(row)
}

func (s *Store) MarkJobRunning(ctx context.Context, jobID, workerHandle string) error {
	return s.transition(ctx, markRunningSQL, jobID, workerHandle)
}

func (s *Store) MarkJobDone(ctx context.Context, jobID, version string, rowCount int64) error {
	return s.transition(ctx, markDoneSQL, jobID, version, rowCount)
}

func (s *Store) MarkJobError(ctx context.Context, jobID, cause string) error {
	return s.transition(ctx, markErrorSQL, jobID, cause)
}

func (s *Store) MarkJobDeleted(ctx context.Context, jobID string) error {
	return s.transition(ctx, markDeletedSQL, jobID)
}

func (s *Store) TouchJob(ctx context.Context, jobID string, lastSeen time.Time) error {
	// Heartbeats for jobs that already completed are not an error.
	if _, err := s.pool.Exec(ctx, touchJobSQL, jobID, lastSeen); err != nil {
		return fmt.Errorf("%w: touch job %s: %w", ErrFailedToQuery, jobID, err)
	}

	return nil
}

func (s *Store) CountPendingJobs(ctx context.Context, dumpID string) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, countPendingSQL, dumpID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count pending for dump %s: %w", ErrFailedToQuery, dumpID, err)
	}

	return count, nil
}

func (s *Store) ListRunningJobs(ctx context.Context) ([]models.Job, error) {
	rows, err := s.pool.Query(ctx, listRunningSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: list running jobs: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	var jobs []models.Job

	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}

		jobs = append(jobs, *job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list running jobs: %w", ErrFailedToQuery, err)
	}

	return jobs, nil
}

// transition runs a guarded status update. Zero rows affected means the
// job either does not exist or was already terminal.
func (s *Store) transition(ctx context.Context, sql, jobID string, args ...interface{}) error {
	tag, err := s.pool.Exec(ctx, sql, append([]interface{}{jobID}, args...)...)
	if err != nil {
		return fmt.Errorf("%w: job %s: %w", ErrFailedToQuery, jobID, err)
	}

	if tag.RowsAffected() == 0 {
		if _, getErr := s.GetJob(ctx, jobID); getErr != nil {
			return getErr
		}

		return fmt.Errorf("%w: %s", ErrJobNotTransitionable, jobID)
	}

	return nil
}

func scanJob(row pgx.Row) (*models.Job, error) {
	var (
		job      models.Job
		params   []byte
		status   string
		lastSeen *time.Time
	)

	err := row.Scan(
		&job.ID,
		&job.DumpID,
		&job.Plugin,
		&job.ParamSig,
		&params,
		&status,
		&job.Error,
		&job.WorkerHandle,
		&job.Version,
		&job.RowCount,
		&job.SubmittedAt,
		&job.UpdatedAt,
		&lastSeen,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}

		return nil, fmt.Errorf("%w: job: %w", ErrFailedToScan, err)
	}

	job.Status = models.JobStatus(status)

	if len(params) > 0 {
		if err := json.Unmarshal(params, &job.Params); err != nil {
			return nil, fmt.Errorf("%w: job params: %w", ErrFailedToScan, err)
		}
	}

	if lastSeen != nil {
		job.LastSeen = *lastSeen
	}

	return &job, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}

	return &t
}
