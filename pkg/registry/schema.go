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
	"errors"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/memtriage/memtriage/pkg/models"
)

// paramSchemaTypes maps descriptor parameter types onto JSON-schema types.
var paramSchemaTypes = map[string]string{
	"string":  "string",
	"integer": "integer",
	"number":  "number",
	"boolean": "boolean",
	"list":    "array",
}

// compileParamSchema builds and compiles a JSON schema from a declared
// parameter list. Submitted parameter maps are validated against it.
func compileParamSchema(params []models.ParamSpec) (*gojsonschema.Schema, error) {
	properties := make(map[string]interface{}, len(params))
	required := make([]string, 0, len(params))

	for i := range params {
		p := &params[i]

		prop := map[string]interface{}{"type": paramSchemaTypes[p.Type]}
		if len(p.Choices) > 0 {
			prop["enum"] = p.Choices
		}

		properties[p.Name] = prop

		if p.Required && p.Default == nil {
			required = append(required, p.Name)
		}
	}

	doc := map[string]interface{}{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		doc["required"] = required
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to compile parameter schema: %w", err)
	}

	return schema, nil
}

// ValidateParams validates submitted parameters against the named plugin's
// schema and returns a copy with declared defaults filled in. The returned
// error wraps ErrPluginNotFound when the plugin is unknown; any other
// failure describes the offending parameters.
func (r *PluginRegistry) ValidateParams(name string, params map[string]interface{}) (map[string]interface{}, error) {
	cat := r.catalog.Load()

	e, ok := cat.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPluginNotFound, name)
	}

	resolved := make(map[string]interface{}, len(params)+len(e.descriptor.Params))
	for k, v := range params {
		resolved[k] = v
	}

	for i := range e.descriptor.Params {
		p := &e.descriptor.Params[i]
		if _, present := resolved[p.Name]; !present && p.Default != nil {
			resolved[p.Name] = p.Default
		}
	}

	result, err := e.schema.Validate(gojsonschema.NewGoLoader(resolved))
	if err != nil {
		return nil, fmt.Errorf("parameter validation failed: %w", err)
	}

	if !result.Valid() {
		var errs error
		for _, re := range result.Errors() {
			errs = errors.Join(errs, fmt.Errorf("%s", re.String()))
		}

		return nil, errs
	}

	return resolved, nil
}
