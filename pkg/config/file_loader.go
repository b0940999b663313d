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

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/memtriage/memtriage/pkg/logger"
)

// FileLoader loads configuration from a local JSON file.
type FileLoader struct {
	logger logger.Logger
}

// Load implements Loader by reading and unmarshaling a JSON file.
func (l *FileLoader) Load(_ context.Context, path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file '%s': %w", path, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to unmarshal JSON from '%s': %w", path, err)
	}

	if l.logger != nil {
		l.logger.Debug().Str("path", path).Int("bytes", len(data)).Msg("Configuration file read")
	}

	return nil
}

// applyEnvOverride merges a complete JSON config from the
// MEMTRIAGE_CONFIG_JSON environment variable over dst when set.
func applyEnvOverride(dst interface{}) error {
	raw := os.Getenv(envConfigJSON)
	if raw == "" {
		return nil
	}

	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", envConfigJSON, err)
	}

	return nil
}
