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

import (
	"context"
	"errors"
	"time"

	"github.com/memtriage/memtriage/pkg/db"
	"github.com/memtriage/memtriage/pkg/worker"
)

const (
	causeOrchestratorRestarted = "orchestrator restarted"
	causeWorkerSilent          = "worker stopped reporting"
)

// RunSweep fails running jobs whose worker went silent or whose handle
// was lost to a restart. It ticks until the context is cancelled.
func (d *Dispatcher) RunSweep(ctx context.Context, interval, staleAfter time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info().
		Dur("interval", interval).
		Dur("stale_after", staleAfter).
		Msg("Liveness sweep started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.SweepOnce(ctx, staleAfter)
		}
	}
}

// SweepOnce runs one liveness pass. Called at startup (before the event
// pump, when no sessions exist) it reconciles jobs orphaned by the
// previous process; called periodically it reaps jobs whose heartbeat
// is older than staleAfter.
func (d *Dispatcher) SweepOnce(ctx context.Context, staleAfter time.Duration) {
	jobs, err := d.database.ListRunningJobs(ctx)
	if err != nil {
		d.logger.Error().Err(err).Msg("Liveness sweep failed to list running jobs")
		return
	}

	now := d.now()

	for i := range jobs {
		job := &jobs[i]

		s := d.session(job.ID)
		if s == nil {
			// A running job with no ingest session can only come from
			// a previous incarnation of this process.
			d.reap(ctx, job.ID, causeOrchestratorRestarted)
			continue
		}

		lastSeen := job.LastSeen
		if lastSeen.IsZero() {
			lastSeen = job.UpdatedAt
		}

		if staleAfter > 0 && now.Sub(lastSeen) > staleAfter {
			if err := d.workers.Cancel(ctx, &worker.Handle{JobID: job.ID}); err != nil {
				d.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Best-effort cancel of silent worker failed")
			}

			s.fail(causeWorkerSilent)
			d.collector.RecordSwept()

			d.logger.Warn().
				Str("job_id", job.ID).
				Time("last_seen", lastSeen).
				Msg("Worker stopped reporting, job failed")
		}
	}
}

func (d *Dispatcher) reap(ctx context.Context, jobID, cause string) {
	if err := d.database.MarkJobError(ctx, jobID, cause); err != nil {
		if !errors.Is(err, db.ErrJobNotTransitionable) {
			d.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to reap orphaned job")
		}

		return
	}

	d.workers.Forget(jobID)
	d.collector.RecordSwept()
	d.collector.RecordFailed()

	d.logger.Warn().Str("job_id", jobID).Str("cause", cause).Msg("Orphaned job reaped")
}
