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

package registry

import "errors"

var (
	ErrPluginNotFound = errors.New("plugin not found")

	// Descriptor validation errors.

	ErrDescriptorNameMissing = errors.New("plugin descriptor name is required")
	ErrDescriptorOSInvalid   = errors.New("plugin descriptor os family is invalid")
	ErrParamNameMissing      = errors.New("plugin parameter name is required")
	ErrParamTypeUnknown      = errors.New("plugin parameter type is unknown")
	ErrDuplicateDescriptor   = errors.New("duplicate plugin descriptor")
)
