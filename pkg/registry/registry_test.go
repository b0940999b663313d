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

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memtriage/memtriage/pkg/logger"
)

const testCatalog = `[
  {
    "name": "windows.pslist.PsList",
    "os": "windows",
    "default_enabled": true,
    "key_fields": ["PID", "CreateTime"],
    "sort_column": "PID",
    "params": [
      {"name": "pid", "type": "integer"},
      {"name": "dump", "type": "boolean", "default": false}
    ]
  },
  {
    "name": "windows.netscan.NetScan",
    "os": "windows",
    "default_enabled": true,
    "key_fields": ["Offset"]
  },
  {
    "name": "linux.pslist.PsList",
    "os": "linux",
    "default_enabled": true,
    "key_fields": ["PID"]
  },
  {
    "name": "windows.handles.Handles",
    "os": "windows",
    "params": [
      {"name": "pid", "type": "integer", "required": true}
    ]
  },
  {
    "name": "broken.plugin",
    "os": "windows",
    "params": [
      {"name": "mode", "type": "mystery"}
    ]
  },
  {
    "name": "",
    "os": "linux"
  }
]`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "plugins.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func newTestRegistry(t *testing.T) (*PluginRegistry, *LoadReport) {
	t.Helper()

	r, report, err := New(writeCatalog(t, testCatalog), logger.NewTestLogger())
	require.NoError(t, err)

	return r, report
}

func TestLoadRejectsMalformedDescriptorsIndividually(t *testing.T) {
	t.Parallel()

	_, report := newTestRegistry(t)

	assert.Equal(t, 4, report.Loaded)
	require.Len(t, report.Rejected, 2)
	assert.ErrorIs(t, report.Rejected[0], ErrParamTypeUnknown)
	assert.ErrorIs(t, report.Rejected[1], ErrDescriptorNameMissing)
}

func TestListIsOrderedAndFilteredByOS(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)

	windows := r.List("windows")
	require.Len(t, windows, 3)
	assert.Equal(t, "windows.handles.Handles", windows[0].Name)
	assert.Equal(t, "windows.netscan.NetScan", windows[1].Name)
	assert.Equal(t, "windows.pslist.PsList", windows[2].Name)

	linux := r.List("linux")
	require.Len(t, linux, 1)
	assert.Equal(t, "linux.pslist.PsList", linux[0].Name)
}

func TestDefaultsExcludesNonDefaultPlugins(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)

	defaults := r.Defaults("windows")
	require.Len(t, defaults, 2)

	for _, d := range defaults {
		assert.True(t, d.DefaultEnabled)
	}
}

func TestDescribeUnknownPlugin(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)

	_, err := r.Describe("windows.nosuch.Plugin")
	assert.ErrorIs(t, err, ErrPluginNotFound)
}

func TestValidateParams(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)

	tests := []struct {
		name    string
		plugin  string
		params  map[string]interface{}
		wantErr bool
	}{
		{
			name:   "valid params",
			plugin: "windows.pslist.PsList",
			params: map[string]interface{}{"pid": 4},
		},
		{
			name:   "empty params allowed when nothing required",
			plugin: "windows.netscan.NetScan",
			params: nil,
		},
		{
			name:    "unknown param rejected",
			plugin:  "windows.pslist.PsList",
			params:  map[string]interface{}{"bogus": 1},
			wantErr: true,
		},
		{
			name:    "wrong type rejected",
			plugin:  "windows.pslist.PsList",
			params:  map[string]interface{}{"pid": "four"},
			wantErr: true,
		},
		{
			name:    "missing required rejected",
			plugin:  "windows.handles.Handles",
			params:  map[string]interface{}{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := r.ValidateParams(tt.plugin, tt.params)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateParamsFillsDefaults(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)

	resolved, err := r.ValidateParams("windows.pslist.PsList", map[string]interface{}{"pid": 4})
	require.NoError(t, err)
	assert.Equal(t, false, resolved["dump"])
}

func TestReloadSwapsCatalogAtomically(t *testing.T) {
	t.Parallel()

	path := writeCatalog(t, testCatalog)

	r, _, err := New(path, logger.NewTestLogger())
	require.NoError(t, err)

	// Readers racing a reload must always see a complete catalog.
	var wg sync.WaitGroup

	stop := make(chan struct{})

	wg.Add(1)

	go func() {
		defer wg.Done()

		for {
			select {
			case <-stop:
				return
			default:
				descriptors := r.List("windows")
				assert.Len(t, descriptors, 3)
			}
		}
	}()

	for i := 0; i < 50; i++ {
		_, err := r.Reload(context.Background())
		require.NoError(t, err)
	}

	close(stop)
	wg.Wait()
}
