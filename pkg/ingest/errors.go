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

package ingest

import "errors"

var (
	// ErrIngestionFailure wraps any fault that aborted an ingestion run.
	// The version being built is discarded; the live version is untouched.
	ErrIngestionFailure = errors.New("result ingestion failed")

	// ErrRunSuperseded is returned when the job reached a terminal state
	// (cancelled or superseded) before the version could be committed.
	// The version is discarded and the job record is left as-is.
	ErrRunSuperseded = errors.New("job reached a terminal state before commit")
)
