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
	"fmt"
)

// migrations are applied in order on startup. Statements are idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS analysis_jobs (
	job_id        TEXT PRIMARY KEY,
	dump_id       TEXT NOT NULL,
	plugin        TEXT NOT NULL,
	param_sig     TEXT NOT NULL,
	params        JSONB NOT NULL DEFAULT '{}'::jsonb,
	status        TEXT NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	worker_handle TEXT NOT NULL DEFAULT '',
	version       TEXT NOT NULL DEFAULT '',
	row_count     BIGINT NOT NULL DEFAULT 0,
	submitted_at  TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	last_seen     TIMESTAMPTZ
)`,

	// The one-active-job-per-key invariant, enforced by the database so
	// concurrent submitters cannot race past the in-process check.
	`CREATE UNIQUE INDEX IF NOT EXISTS analysis_jobs_active_key_idx
	ON analysis_jobs (dump_id, plugin, param_sig)
	WHERE status IN ('queued', 'running')`,

	`CREATE INDEX IF NOT EXISTS analysis_jobs_dump_status_idx
	ON analysis_jobs (dump_id, status)`,

	`CREATE TABLE IF NOT EXISTS result_versions (
	dump_id          TEXT NOT NULL,
	plugin           TEXT NOT NULL,
	current_version  TEXT NOT NULL,
	previous_version TEXT NOT NULL DEFAULT '',
	updated_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (dump_id, plugin)
)`,

	// Read view over the upload collaborator's dumps table. Created here
	// only so fresh development databases work end to end; production
	// deployments already have it.
	`CREATE TABLE IF NOT EXISTS dumps (
	dump_id        TEXT PRIMARY KEY,
	name           TEXT NOT NULL DEFAULT '',
	os             TEXT NOT NULL,
	storage_handle TEXT NOT NULL,
	sha256         TEXT NOT NULL DEFAULT '',
	upload_status  TEXT NOT NULL DEFAULT ''
)`,
}

// Migrate applies the orchestrator schema.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}

	s.logger.Debug().Int("statements", len(migrations)).Msg("Schema migration complete")

	return nil
}
