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

// Package worker submits analysis executions to the remote worker
// cluster and relays the events workers stream back.
package worker

import (
	"fmt"
	"time"
)

// NATS subjects shared by the orchestrator and the workers.
const (
	// SubjectExec is the work-queue subject execution specs are
	// published on; workers are queue consumers of the backing stream.
	SubjectExec = "analysis.jobs.exec"

	// StreamName is the JetStream stream holding pending executions.
	StreamName = "ANALYSIS_JOBS"

	// subjectEventsPrefix + jobID carries the events one worker
	// publishes while executing that job.
	subjectEventsPrefix = "analysis.events."

	// subjectCancelPrefix + jobID requests best-effort cancellation.
	subjectCancelPrefix = "analysis.cancel."
)

// EventSubject returns the event subject for one job.
func EventSubject(jobID string) string {
	return subjectEventsPrefix + jobID
}

// CancelSubject returns the cancellation subject for one job.
func CancelSubject(jobID string) string {
	return subjectCancelPrefix + jobID
}

// EventType classifies one worker-reported event.
type EventType string

const (
	// EventAccepted: a worker picked the job up and started executing.
	EventAccepted EventType = "accepted"
	// EventBatch carries one chunk of output rows.
	EventBatch EventType = "batch"
	// EventHeartbeat proves the worker is still alive mid-run.
	EventHeartbeat EventType = "heartbeat"
	// EventCompleted: execution finished and all batches were sent.
	EventCompleted EventType = "completed"
	// EventFailed: execution failed; Error carries the cause.
	EventFailed EventType = "failed"
)

// Event is one message a worker publishes about a running job. Batch
// rows are raw column maps; row identity is derived during ingestion
// where the plugin descriptor is known.
type Event struct {
	JobID string                   `json:"job_id"`
	Type  EventType                `json:"type"`
	Rows  []map[string]interface{} `json:"rows,omitempty"`
	Error string                   `json:"error,omitempty"`
	Time  time.Time                `json:"time"`
}

// State is the orchestrator-side view of one submitted execution.
type State string

const (
	StatePending   State = "pending"
	StateStreaming State = "streaming"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Status is a point-in-time snapshot of a handle.
type Status struct {
	State    State
	Reason   string
	LastSeen time.Time
}

// Handle references one submitted execution. Handles live in memory
// only; after a restart the liveness sweep reconciles orphaned jobs.
type Handle struct {
	JobID string
}

func (h *Handle) String() string {
	return fmt.Sprintf("handle(%s)", h.JobID)
}
