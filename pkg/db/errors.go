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

import "errors"

var (

	// Core database errors.

	ErrFailedToQuery  = errors.New("failed to query")
	ErrFailedToScan   = errors.New("failed to scan")
	ErrFailedToInsert = errors.New("failed to insert")
	ErrFailedToInit   = errors.New("failed to initialize schema")

	// Lookup errors.

	ErrJobNotFound     = errors.New("job not found")
	ErrDumpNotFound    = errors.New("dump not found")
	ErrVersionNotFound = errors.New("no live result version for key")

	// Invariant errors.

	// ErrDuplicateActiveJob is returned when an insert would create a
	// second non-terminal job for the same (dump, plugin, signature) key.
	ErrDuplicateActiveJob = errors.New("active job already exists for key")

	// ErrJobNotTransitionable is returned when a status update matched
	// the job id but the job was already in a terminal state.
	ErrJobNotTransitionable = errors.New("job already terminal")
)
