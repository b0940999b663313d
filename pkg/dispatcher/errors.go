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

package dispatcher

import "errors"

var (
	// ErrInvalidParameters is returned synchronously from Submit when
	// the parameters fail the plugin's schema.
	ErrInvalidParameters = errors.New("invalid plugin parameters")

	// ErrUnsupportedPlugin is returned when the plugin is unknown or
	// does not apply to the dump's OS family.
	ErrUnsupportedPlugin = errors.New("plugin not supported for dump")

	// ErrJobNotCancelable is returned when cancelling a job already in
	// a terminal state.
	ErrJobNotCancelable = errors.New("job is already terminal")
)
