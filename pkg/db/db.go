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

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memtriage/memtriage/pkg/logger"
	"github.com/memtriage/memtriage/pkg/models"
)

// Store is the pgx-backed implementation of Service.
type Store struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

// New connects to Postgres, applies the schema, and returns the store.
func New(ctx context.Context, cfg *models.Database, log logger.Logger) (*Store, error) {
	pool, err := NewPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	s := &Store{
		pool:   pool,
		logger: log.WithComponent("db"),
	}

	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %w", ErrFailedToInit, err)
	}

	return s, nil
}

// NewWithPool wraps an existing pool; used by tests and embedding callers.
func NewWithPool(pool *pgxpool.Pool, log logger.Logger) *Store {
	return &Store{pool: pool, logger: log.WithComponent("db")}
}

func (s *Store) Close() {
	s.pool.Close()
}
