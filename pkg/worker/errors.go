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

package worker

import "errors"

var (
	// ErrClusterUnavailable is surfaced only after bounded connect and
	// publish retries are exhausted.
	ErrClusterUnavailable = errors.New("worker cluster unavailable")

	// ErrUnknownHandle is returned when polling or cancelling a handle
	// this process never submitted (e.g. after a restart).
	ErrUnknownHandle = errors.New("unknown worker handle")
)
