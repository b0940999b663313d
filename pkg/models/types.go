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

// Package models contains the domain types shared across the orchestrator.
package models

import (
	"fmt"
	"time"
)

// OSFamily identifies which operating system a dump was taken from and
// therefore which analysis plugins apply to it.
type OSFamily string

const (
	OSWindows OSFamily = "windows"
	OSLinux   OSFamily = "linux"
	OSMac     OSFamily = "mac"
)

// Dump is an uploaded memory image. Dumps are owned by the upload
// collaborator; the orchestrator reads them and never mutates them.
type Dump struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	OS            OSFamily `json:"os"`
	StorageHandle string   `json:"storage_handle"`
	SHA256        string   `json:"sha256,omitempty"`
	UploadStatus  string   `json:"upload_status,omitempty"`
}

// ParamSpec declares one parameter accepted by an analysis plugin.
type ParamSpec struct {
	Name     string      `json:"name"`
	Type     string      `json:"type"` // string, integer, number, boolean, list
	Required bool        `json:"required,omitempty"`
	Default  interface{} `json:"default,omitempty"`
	Choices  []string    `json:"choices,omitempty"`
}

// PluginDescriptor describes one analysis plugin in the catalog.
// Descriptors are immutable once loaded; the registry swaps whole
// catalogs on reload.
type PluginDescriptor struct {
	Name           string      `json:"name"`
	OS             OSFamily    `json:"os"`
	Params         []ParamSpec `json:"params,omitempty"`
	DefaultEnabled bool        `json:"default_enabled,omitempty"`

	// KeyFields are the columns that form a row's natural key
	// (e.g. Offset, PID). Row identity is derived from them; when
	// empty the whole row is hashed.
	KeyFields []string `json:"key_fields,omitempty"`

	// SortColumn is the primary pagination sort column. Row identity
	// is always the tie-break; when empty rows sort by identity alone.
	SortColumn string `json:"sort_column,omitempty"`
}

// JobStatus is the lifecycle state of an analysis job.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobError   JobStatus = "error"
	JobDeleted JobStatus = "deleted"
)

// Terminal reports whether a job in this state can never transition again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobDone, JobError, JobDeleted:
		return true
	default:
		return false
	}
}

// Job binds a dump, a plugin, and a parameter set to one tracked execution.
// At most one non-terminal Job exists per (DumpID, Plugin, ParamSig) key.
type Job struct {
	ID           string                 `json:"id"`
	DumpID       string                 `json:"dump_id"`
	Plugin       string                 `json:"plugin"`
	ParamSig     string                 `json:"param_sig"`
	Params       map[string]interface{} `json:"params,omitempty"`
	Status       JobStatus              `json:"status"`
	Error        string                 `json:"error,omitempty"`
	WorkerHandle string                 `json:"worker_handle,omitempty"`
	Version      string                 `json:"version,omitempty"`
	RowCount     int64                  `json:"row_count"`
	SubmittedAt  time.Time              `json:"submitted_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
	LastSeen     time.Time              `json:"last_seen,omitempty"`
}

// Key returns the idempotency key the dispatcher serializes on.
func (j *Job) Key() ResultKey {
	return ResultKey{DumpID: j.DumpID, Plugin: j.Plugin}
}

// ResultKey identifies the logical result collection of one plugin run
// against one dump.
type ResultKey struct {
	DumpID string `json:"dump_id"`
	Plugin string `json:"plugin"`
}

func (k ResultKey) String() string {
	return fmt.Sprintf("%s/%s", k.DumpID, k.Plugin)
}

// ResultRow is one record of plugin output. Columns vary per plugin.
type ResultRow struct {
	RowID   string                 `json:"row_id"`
	Columns map[string]interface{} `json:"columns"`
}

// ExecutionSpec is what the orchestrator hands to the worker cluster.
type ExecutionSpec struct {
	JobID         string                 `json:"job_id"`
	DumpID        string                 `json:"dump_id"`
	OS            OSFamily               `json:"os"`
	Plugin        string                 `json:"plugin"`
	Params        map[string]interface{} `json:"params,omitempty"`
	StorageHandle string                 `json:"storage_handle"`
}

// DiffKind classifies one row comparison outcome.
type DiffKind string

const (
	DiffAdded     DiffKind = "added"
	DiffRemoved   DiffKind = "removed"
	DiffChanged   DiffKind = "changed"
	DiffUnchanged DiffKind = "unchanged"
)

// ColumnDelta is one column-level difference of a changed row.
type ColumnDelta struct {
	Column string      `json:"column"`
	Before interface{} `json:"before"`
	After  interface{} `json:"after"`
}

// DiffEntry is one classified comparison outcome between two result sets.
// Diff entries are computed on demand and never persisted.
type DiffEntry struct {
	RowID  string        `json:"row_id"`
	Kind   DiffKind      `json:"kind"`
	Deltas []ColumnDelta `json:"deltas,omitempty"`
}
