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

// Package registry maintains the process-wide catalog of analysis plugins.
//
// The catalog is loaded from a JSON file and swapped atomically on reload,
// so concurrent readers always observe either the old or the new complete
// catalog, never a partial one.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"github.com/xeipuuv/gojsonschema"

	"github.com/memtriage/memtriage/pkg/logger"
	"github.com/memtriage/memtriage/pkg/models"
)

// entry is one validated descriptor plus its compiled parameter schema.
type entry struct {
	descriptor models.PluginDescriptor
	schema     *gojsonschema.Schema
}

// catalog is an immutable snapshot of all loaded plugins.
type catalog struct {
	entries map[string]*entry
	ordered []models.PluginDescriptor
}

// LoadReport summarizes one catalog load. Malformed descriptors never
// block loading the rest; they are collected here instead.
type LoadReport struct {
	Loaded   int
	Rejected []error
}

// PluginRegistry serves plugin descriptors to the dispatcher and API layer.
type PluginRegistry struct {
	path    string
	catalog atomic.Pointer[catalog]
	logger  logger.Logger
}

// New loads the catalog at path. The returned registry is usable even if
// some descriptors were rejected; the report lists them.
func New(path string, log logger.Logger) (*PluginRegistry, *LoadReport, error) {
	r := &PluginRegistry{
		path:   path,
		logger: log.WithComponent("registry"),
	}

	report, err := r.Reload(context.Background())
	if err != nil {
		return nil, nil, err
	}

	return r, report, nil
}

// Reload re-reads the catalog file and atomically swaps the catalog.
// Safe to call concurrently with readers.
func (r *PluginRegistry) Reload(_ context.Context) (*LoadReport, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin catalog '%s': %w", r.path, err)
	}

	var descriptors []models.PluginDescriptor
	if err := json.Unmarshal(data, &descriptors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plugin catalog '%s': %w", r.path, err)
	}

	next, report := buildCatalog(descriptors)

	for _, rejectErr := range report.Rejected {
		r.logger.Warn().Err(rejectErr).Msg("Rejected plugin descriptor")
	}

	r.catalog.Store(next)
	r.logger.Info().
		Int("loaded", report.Loaded).
		Int("rejected", len(report.Rejected)).
		Msg("Plugin catalog loaded")

	return report, nil
}

func buildCatalog(descriptors []models.PluginDescriptor) (*catalog, *LoadReport) {
	next := &catalog{entries: make(map[string]*entry, len(descriptors))}
	report := &LoadReport{}

	for i := range descriptors {
		d := descriptors[i]

		if err := validateDescriptor(&d); err != nil {
			report.Rejected = append(report.Rejected, fmt.Errorf("plugin %q: %w", d.Name, err))
			continue
		}

		if _, exists := next.entries[d.Name]; exists {
			report.Rejected = append(report.Rejected, fmt.Errorf("plugin %q: %w", d.Name, ErrDuplicateDescriptor))
			continue
		}

		schema, err := compileParamSchema(d.Params)
		if err != nil {
			report.Rejected = append(report.Rejected, fmt.Errorf("plugin %q: %w", d.Name, err))
			continue
		}

		next.entries[d.Name] = &entry{descriptor: d, schema: schema}
		next.ordered = append(next.ordered, d)
		report.Loaded++
	}

	sort.Slice(next.ordered, func(i, j int) bool {
		return next.ordered[i].Name < next.ordered[j].Name
	})

	return next, report
}

func validateDescriptor(d *models.PluginDescriptor) error {
	if d.Name == "" {
		return ErrDescriptorNameMissing
	}

	switch d.OS {
	case models.OSWindows, models.OSLinux, models.OSMac:
	default:
		return fmt.Errorf("%w: %q", ErrDescriptorOSInvalid, d.OS)
	}

	for i := range d.Params {
		p := &d.Params[i]
		if p.Name == "" {
			return ErrParamNameMissing
		}

		if _, ok := paramSchemaTypes[p.Type]; !ok {
			return fmt.Errorf("%w: parameter %q has type %q", ErrParamTypeUnknown, p.Name, p.Type)
		}
	}

	return nil
}

// List returns the descriptors applicable to the given OS family,
// ordered by name.
func (r *PluginRegistry) List(osFamily models.OSFamily) []models.PluginDescriptor {
	cat := r.catalog.Load()

	out := make([]models.PluginDescriptor, 0, len(cat.ordered))

	for _, d := range cat.ordered {
		if d.OS == osFamily {
			out = append(out, d)
		}
	}

	return out
}

// Describe returns the descriptor for name, or ErrPluginNotFound.
func (r *PluginRegistry) Describe(name string) (models.PluginDescriptor, error) {
	cat := r.catalog.Load()

	e, ok := cat.entries[name]
	if !ok {
		return models.PluginDescriptor{}, fmt.Errorf("%w: %q", ErrPluginNotFound, name)
	}

	return e.descriptor, nil
}

// Defaults returns the default-enabled descriptors for the OS family,
// ordered by name.
func (r *PluginRegistry) Defaults(osFamily models.OSFamily) []models.PluginDescriptor {
	all := r.List(osFamily)

	out := make([]models.PluginDescriptor, 0, len(all))

	for _, d := range all {
		if d.DefaultEnabled {
			out = append(out, d)
		}
	}

	return out
}
