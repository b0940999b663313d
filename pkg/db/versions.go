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
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/memtriage/memtriage/pkg/models"
)

const (
	selectCurrentVersionSQL = `
SELECT current_version FROM result_versions
WHERE dump_id = $1 AND plugin = $2`

	selectReadableVersionsSQL = `
SELECT current_version, previous_version FROM result_versions
WHERE dump_id = $1 AND plugin = $2`

	// The flip demotes the live version to previous in the same
	// statement, so readers racing the upsert see a consistent pair.
	// The displaced generation is returned for row cleanup.
	flipVersionSQL = `
INSERT INTO result_versions (dump_id, plugin, current_version, previous_version, updated_at)
VALUES ($1, $2, $3, '', now())
ON CONFLICT (dump_id, plugin) DO UPDATE SET
	previous_version = result_versions.current_version,
	current_version = EXCLUDED.current_version,
	updated_at = now()
RETURNING (SELECT previous_version FROM result_versions r
	WHERE r.dump_id = $1 AND r.plugin = $2)`
)

func (s *Store) CurrentVersion(ctx context.Context, key models.ResultKey) (string, error) {
	var version string

	err := s.pool.QueryRow(ctx, selectCurrentVersionSQL, key.DumpID, key.Plugin).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", ErrVersionNotFound, key)
		}

		return "", fmt.Errorf("%w: current version for %s: %w", ErrFailedToQuery, key, err)
	}

	return version, nil
}

func (s *Store) ReadableVersions(ctx context.Context, key models.ResultKey) (current, previous string, err error) {
	err = s.pool.QueryRow(ctx, selectReadableVersionsSQL, key.DumpID, key.Plugin).Scan(&current, &previous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", fmt.Errorf("%w: %s", ErrVersionNotFound, key)
		}

		return "", "", fmt.Errorf("%w: readable versions for %s: %w", ErrFailedToQuery, key, err)
	}

	return current, previous, nil
}

func (s *Store) FlipVersion(ctx context.Context, key models.ResultKey, version string) (string, error) {
	var displaced *string

	err := s.pool.QueryRow(ctx, flipVersionSQL, key.DumpID, key.Plugin, version).Scan(&displaced)
	if err != nil {
		return "", fmt.Errorf("%w: flip version for %s: %w", ErrFailedToQuery, key, err)
	}

	if displaced == nil {
		return "", nil
	}

	return *displaced, nil
}
