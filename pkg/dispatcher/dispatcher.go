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

// Package dispatcher owns the analysis job state machine: admission,
// idempotency, worker event routing, and liveness reconciliation.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memtriage/memtriage/pkg/db"
	"github.com/memtriage/memtriage/pkg/ingest"
	"github.com/memtriage/memtriage/pkg/logger"
	"github.com/memtriage/memtriage/pkg/metrics"
	"github.com/memtriage/memtriage/pkg/models"
	"github.com/memtriage/memtriage/pkg/registry"
	"github.com/memtriage/memtriage/pkg/worker"
)

// Catalog is the slice of the plugin registry the dispatcher consumes.
type Catalog interface {
	Describe(name string) (models.PluginDescriptor, error)
	Defaults(osFamily models.OSFamily) []models.PluginDescriptor
	ValidateParams(name string, params map[string]interface{}) (map[string]interface{}, error)
}

// WorkerClient is the slice of the worker pool client the dispatcher
// consumes.
type WorkerClient interface {
	Submit(ctx context.Context, spec *models.ExecutionSpec) (*worker.Handle, error)
	Cancel(ctx context.Context, handle *worker.Handle) error
	Forget(jobID string)
}

// Ingestor commits streamed batches as a new result version.
type Ingestor interface {
	Ingest(ctx context.Context, job *models.Job, desc models.PluginDescriptor, batches <-chan ingest.Batch) (*ingest.Summary, error)
}

// Settlement reports one job reaching a terminal state, for publishing
// completion notifications.
type Settlement struct {
	Job     *models.Job
	Status  models.JobStatus
	Version string
	Rows    int64
	Cause   string
}

// Dispatcher turns submissions into tracked jobs and drives each job
// through its lifecycle from worker events. All state except the
// in-flight ingest sessions lives in Postgres.
type Dispatcher struct {
	database  db.Service
	catalog   Catalog
	workers   WorkerClient
	ingestor  Ingestor
	collector *metrics.Collector
	logger    logger.Logger

	// onSettled, when set, is invoked after a job reaches done or
	// error through the ingest path.
	onSettled func(Settlement)

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
	sessions map[string]*session

	// injectable for tests
	newID func() string
	now   func() time.Time
}

func New(database db.Service, catalog Catalog, workers WorkerClient, ingestor Ingestor, collector *metrics.Collector, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		database:  database,
		catalog:   catalog,
		workers:   workers,
		ingestor:  ingestor,
		collector: collector,
		logger:    log.WithComponent("dispatcher"),
		keyLocks:  make(map[string]*sync.Mutex),
		sessions:  make(map[string]*session),
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// OnSettled registers the terminal-state callback. Must be called
// before the first Submit.
func (d *Dispatcher) OnSettled(fn func(Settlement)) {
	d.onSettled = fn
}

// Submit admits one (dump, plugin, params) execution. With force=false
// it is idempotent: a non-terminal job already holding the key is
// returned as-is. With force=true any such job is superseded (marked
// deleted, its worker cancelled) and a fresh one is queued.
func (d *Dispatcher) Submit(ctx context.Context, dumpID, plugin string, params map[string]interface{}, force bool) (*models.Job, error) {
	dump, err := d.database.GetDump(ctx, dumpID)
	if err != nil {
		return nil, err
	}

	desc, err := d.catalog.Describe(plugin)
	if err != nil {
		if errors.Is(err, registry.ErrPluginNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlugin, plugin)
		}

		return nil, err
	}

	if desc.OS != dump.OS {
		return nil, fmt.Errorf("%w: %s targets %s, dump %s is %s",
			ErrUnsupportedPlugin, plugin, desc.OS, dumpID, dump.OS)
	}

	filled, err := d.catalog.ValidateParams(plugin, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}

	sig, err := Signature(filled)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}

	unlock := d.lockKey(dumpID + "\x00" + plugin + "\x00" + sig)
	defer unlock()

	existing, err := d.database.GetActiveJob(ctx, dumpID, plugin, sig)

	switch {
	case err == nil && !force:
		return existing, nil
	case err == nil && force:
		if serr := d.supersede(ctx, existing); serr != nil {
			return nil, serr
		}
	case !errors.Is(err, db.ErrJobNotFound):
		return nil, err
	}

	now := d.now()
	job := &models.Job{
		ID:          d.newID(),
		DumpID:      dumpID,
		Plugin:      plugin,
		ParamSig:    sig,
		Params:      filled,
		Status:      models.JobQueued,
		SubmittedAt: now,
		UpdatedAt:   now,
	}

	if err := d.database.InsertJob(ctx, job); err != nil {
		if errors.Is(err, db.ErrDuplicateActiveJob) && !force {
			// Lost a race with another orchestrator instance.
			return d.database.GetActiveJob(ctx, dumpID, plugin, sig)
		}

		return nil, err
	}

	d.startSession(job, desc)

	spec := &models.ExecutionSpec{
		JobID:         job.ID,
		DumpID:        dumpID,
		OS:            dump.OS,
		Plugin:        plugin,
		Params:        filled,
		StorageHandle: dump.StorageHandle,
	}

	handle, err := d.workers.Submit(ctx, spec)
	if err != nil {
		d.abortSession(job.ID)

		cause := fmt.Sprintf("failed to submit to worker cluster: %v", err)
		if derr := d.database.MarkJobError(ctx, job.ID, cause); derr != nil {
			d.logger.Error().Err(derr).Str("job_id", job.ID).Msg("Failed to record submit failure")
		}

		d.collector.RecordFailed()

		return nil, err
	}

	job.WorkerHandle = handle.JobID
	d.collector.RecordSubmitted()

	d.logger.Info().
		Str("job_id", job.ID).
		Str("dump_id", dumpID).
		Str("plugin", plugin).
		Bool("force", force).
		Msg("Job queued")

	return job, nil
}

// supersede retires the previous holder of an idempotency key.
func (d *Dispatcher) supersede(ctx context.Context, prior *models.Job) error {
	if err := d.database.MarkJobDeleted(ctx, prior.ID); err != nil &&
		!errors.Is(err, db.ErrJobNotTransitionable) {
		return err
	}

	if err := d.workers.Cancel(ctx, &worker.Handle{JobID: prior.ID}); err != nil {
		d.logger.Warn().Err(err).Str("job_id", prior.ID).Msg("Best-effort cancel of superseded job failed")
	}

	d.abortSession(prior.ID)
	d.workers.Forget(prior.ID)
	d.collector.RecordCancelled()

	d.logger.Info().Str("job_id", prior.ID).Msg("Job superseded by forced re-run")

	return nil
}

// OnWorkerEvent routes one worker event into the job state machine.
// Batches flow into the job's ingest session; the session settles the
// job when ingestion commits or aborts.
func (d *Dispatcher) OnWorkerEvent(ctx context.Context, event worker.Event) {
	switch event.Type {
	case worker.EventAccepted:
		if err := d.database.MarkJobRunning(ctx, event.JobID, event.JobID); err != nil {
			d.logger.Warn().Err(err).Str("job_id", event.JobID).Msg("Failed to mark job running")
			return
		}

		d.collector.RecordRunning()

	case worker.EventHeartbeat:
		seen := event.Time
		if seen.IsZero() {
			seen = d.now()
		}

		if err := d.database.TouchJob(ctx, event.JobID, seen); err != nil {
			d.logger.Warn().Err(err).Str("job_id", event.JobID).Msg("Failed to record heartbeat")
		}

	case worker.EventBatch:
		s := d.session(event.JobID)
		if s == nil {
			d.logger.Warn().Str("job_id", event.JobID).Msg("Batch for job with no ingest session dropped")
			return
		}

		s.pushBatch(ingest.Batch(event.Rows))

	case worker.EventCompleted:
		s := d.session(event.JobID)
		if s == nil {
			d.logger.Warn().Str("job_id", event.JobID).Msg("Completion for job with no ingest session")
			return
		}

		s.complete()

	case worker.EventFailed:
		s := d.session(event.JobID)
		if s == nil {
			// No session means the orchestrator restarted mid-run; the
			// job record still needs its terminal state.
			if err := d.database.MarkJobError(ctx, event.JobID, event.Error); err != nil &&
				!errors.Is(err, db.ErrJobNotTransitionable) {
				d.logger.Warn().Err(err).Str("job_id", event.JobID).Msg("Failed to mark job error")
			}

			return
		}

		s.fail(event.Error)
	}
}

// Cancel moves a non-terminal job to deleted and cancels its worker.
func (d *Dispatcher) Cancel(ctx context.Context, jobID string) error {
	job, err := d.database.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	if job.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrJobNotCancelable, jobID, job.Status)
	}

	if err := d.database.MarkJobDeleted(ctx, jobID); err != nil {
		return err
	}

	if err := d.workers.Cancel(ctx, &worker.Handle{JobID: jobID}); err != nil {
		d.logger.Warn().Err(err).Str("job_id", jobID).Msg("Best-effort worker cancel failed")
	}

	d.abortSession(jobID)
	d.workers.Forget(jobID)
	d.collector.RecordCancelled()

	d.logger.Info().Str("job_id", jobID).Msg("Job cancelled")

	return nil
}

// RerunDefaults force-submits every default-enabled plugin for the
// dump's OS family. Individual failures do not stop the fan-out.
func (d *Dispatcher) RerunDefaults(ctx context.Context, dumpID string) error {
	dump, err := d.database.GetDump(ctx, dumpID)
	if err != nil {
		return err
	}

	var errs []error

	for _, desc := range d.catalog.Defaults(dump.OS) {
		if _, err := d.Submit(ctx, dumpID, desc.Name, nil, true); err != nil {
			d.logger.Warn().Err(err).
				Str("dump_id", dumpID).
				Str("plugin", desc.Name).
				Msg("Default plugin re-run failed to submit")
			errs = append(errs, fmt.Errorf("%s: %w", desc.Name, err))
		}
	}

	return errors.Join(errs...)
}

// PendingCount returns how many jobs for the dump are queued or running.
func (d *Dispatcher) PendingCount(ctx context.Context, dumpID string) (int, error) {
	return d.database.CountPendingJobs(ctx, dumpID)
}

// JobStatus returns the current job record.
func (d *Dispatcher) JobStatus(ctx context.Context, jobID string) (*models.Job, error) {
	return d.database.GetJob(ctx, jobID)
}

func (d *Dispatcher) lockKey(key string) func() {
	d.mu.Lock()

	m, ok := d.keyLocks[key]
	if !ok {
		m = &sync.Mutex{}
		d.keyLocks[key] = m
	}

	d.mu.Unlock()
	m.Lock()

	return m.Unlock
}

func (d *Dispatcher) session(jobID string) *session {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.sessions[jobID]
}

func (d *Dispatcher) dropSession(jobID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.sessions, jobID)
}

func (d *Dispatcher) abortSession(jobID string) {
	if s := d.session(jobID); s != nil {
		s.abort()
	}
}

// startSession spawns the ingest goroutine for a freshly queued job.
// The session, not the event handler, settles the job: done only after
// the version pointer flipped, error when ingestion aborted.
func (d *Dispatcher) startSession(job *models.Job, desc models.PluginDescriptor) {
	ctx, cancel := context.WithCancel(context.Background())

	s := &session{
		job:     job,
		batches: make(chan ingest.Batch),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	d.mu.Lock()
	d.sessions[job.ID] = s
	d.mu.Unlock()

	go d.runSession(s, desc)
}

func (d *Dispatcher) runSession(s *session, desc models.PluginDescriptor) {
	// LIFO: the done channel closes first, then the session leaves the
	// map, so WaitIdle never returns before the settlement callback ran.
	defer d.dropSession(s.job.ID)
	defer close(s.done)

	summary, err := d.ingestor.Ingest(s.ctx, s.job, desc, s.batches)

	// Once ingestion has returned nothing drains the batch channel;
	// cancelling unblocks any sender still waiting in pushBatch.
	s.cancel()

	d.workers.Forget(s.job.ID)
	d.collector.RecordSettled()

	if s.isAborted() {
		// Cancelled or superseded: the terminal state was already
		// recorded by whoever aborted us.
		return
	}

	if errors.Is(err, ingest.ErrRunSuperseded) {
		// Cancel won the race against the completion event; the
		// terminal state is already recorded.
		return
	}

	ctx := context.Background()

	if err != nil {
		cause := s.failureCause()
		if cause == "" {
			cause = err.Error()
		}

		if derr := d.database.MarkJobError(ctx, s.job.ID, cause); derr != nil &&
			!errors.Is(derr, db.ErrJobNotTransitionable) {
			d.logger.Error().Err(derr).Str("job_id", s.job.ID).Msg("Failed to settle job as error")
		}

		d.collector.RecordFailed()
		d.notifySettled(Settlement{Job: s.job, Status: models.JobError, Cause: cause})

		d.logger.Info().Str("job_id", s.job.ID).Str("cause", cause).Msg("Job failed")

		return
	}

	if derr := d.database.MarkJobDone(ctx, s.job.ID, summary.Version, summary.RowCount); derr != nil {
		d.logger.Error().Err(derr).Str("job_id", s.job.ID).Msg("Failed to settle job as done")
		return
	}

	d.collector.RecordCompleted()
	d.notifySettled(Settlement{
		Job:     s.job,
		Status:  models.JobDone,
		Version: summary.Version,
		Rows:    summary.RowCount,
	})

	d.logger.Info().
		Str("job_id", s.job.ID).
		Str("version", summary.Version).
		Int64("rows", summary.RowCount).
		Msg("Job done")
}

func (d *Dispatcher) notifySettled(st Settlement) {
	if d.onSettled != nil {
		d.onSettled(st)
	}
}

// WaitIdle blocks until every in-flight ingest session has settled.
// Used by shutdown and by tests.
func (d *Dispatcher) WaitIdle() {
	for {
		d.mu.Lock()

		var s *session
		for _, v := range d.sessions {
			s = v
			break
		}

		d.mu.Unlock()

		if s == nil {
			return
		}

		<-s.done
	}
}

// session is the in-memory half of one running job: the batch channel
// feeding its ingest goroutine. Sessions do not survive restart.
type session struct {
	job     *models.Job
	batches chan ingest.Batch
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	mu      sync.Mutex
	closed  bool
	aborted bool
	cause   string
}

// pushBatch holds the session mutex across the send so a concurrent
// complete() cannot close the channel under an in-flight send.
func (s *session) pushBatch(rows ingest.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.batches <- rows:
	case <-s.ctx.Done():
	}
}

func (s *session) complete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	close(s.batches)
}

func (s *session) fail(cause string) {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return
	}

	s.closed = true
	s.cause = cause
	s.mu.Unlock()

	s.cancel()
}

// abort tears the session down without settling the job record.
func (s *session) abort() {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return
	}

	s.closed = true
	s.aborted = true
	s.mu.Unlock()

	s.cancel()
}

func (s *session) isAborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.aborted
}

func (s *session) failureCause() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cause
}
