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

const selectDumpSQL = `
SELECT dump_id, name, os, storage_handle, sha256, upload_status
FROM dumps WHERE dump_id = $1`

// GetDump reads one dump from the upload collaborator's table.
// The orchestrator never writes to it.
func (s *Store) GetDump(ctx context.Context, id string) (*models.Dump, error) {
	var (
		dump models.Dump
		os   string
	)

	err := s.pool.QueryRow(ctx, selectDumpSQL, id).Scan(
		&dump.ID,
		&dump.Name,
		&os,
		&dump.StorageHandle,
		&dump.SHA256,
		&dump.UploadStatus,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrDumpNotFound, id)
		}

		return nil, fmt.Errorf("%w: dump %s: %w", ErrFailedToQuery, id, err)
	}

	dump.OS = models.OSFamily(os)

	return &dump, nil
}
