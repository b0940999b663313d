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

// Package metrics collects Prometheus instrumentation for the job
// lifecycle and ingestion path.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns every metric the orchestrator exposes. Each Collector
// carries its own registry so tests can construct instances freely.
type Collector struct {
	registry *prometheus.Registry

	jobsSubmitted prometheus.Counter
	jobsCompleted prometheus.Counter
	jobsFailed    prometheus.Counter
	jobsCancelled prometheus.Counter
	jobsSwept     prometheus.Counter
	jobsRunning   prometheus.Gauge

	rowsIngested  prometheus.Counter
	batchFailures prometheus.Counter
	versionsFlip  prometheus.Counter

	pagesServed prometheus.Counter
	diffsServed prometheus.Counter
}

// NewCollector registers all metrics on a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memtriage_jobs_submitted_total",
			Help: "Total number of analysis jobs accepted for execution",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memtriage_jobs_completed_total",
			Help: "Total number of analysis jobs that reached done",
		}),
		jobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memtriage_jobs_failed_total",
			Help: "Total number of analysis jobs that reached error",
		}),
		jobsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memtriage_jobs_cancelled_total",
			Help: "Total number of analysis jobs cancelled or superseded",
		}),
		jobsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memtriage_jobs_swept_total",
			Help: "Total number of running jobs failed by the liveness sweep",
		}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memtriage_jobs_running",
			Help: "Current number of jobs with a live worker handle",
		}),
		rowsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memtriage_rows_ingested_total",
			Help: "Total number of result rows written to the store",
		}),
		batchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memtriage_batch_failures_total",
			Help: "Total number of result batches that failed to write",
		}),
		versionsFlip: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memtriage_version_flips_total",
			Help: "Total number of result-version pointer flips",
		}),
		pagesServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memtriage_pages_served_total",
			Help: "Total number of result pages served",
		}),
		diffsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memtriage_diffs_served_total",
			Help: "Total number of comparison requests served",
		}),
	}

	c.registry.MustRegister(
		c.jobsSubmitted, c.jobsCompleted, c.jobsFailed, c.jobsCancelled,
		c.jobsSwept, c.jobsRunning, c.rowsIngested, c.batchFailures,
		c.versionsFlip, c.pagesServed, c.diffsServed,
	)

	return c
}

// Handler serves this collector's registry in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordSubmitted() { c.jobsSubmitted.Inc() }

func (c *Collector) RecordRunning() { c.jobsRunning.Inc() }
func (c *Collector) RecordSettled() { c.jobsRunning.Dec() }

func (c *Collector) RecordCompleted() { c.jobsCompleted.Inc() }
func (c *Collector) RecordFailed()    { c.jobsFailed.Inc() }
func (c *Collector) RecordCancelled() { c.jobsCancelled.Inc() }
func (c *Collector) RecordSwept()     { c.jobsSwept.Inc() }

func (c *Collector) RecordRowsIngested(n int) { c.rowsIngested.Add(float64(n)) }
func (c *Collector) RecordBatchFailure()      { c.batchFailures.Inc() }
func (c *Collector) RecordVersionFlip()       { c.versionsFlip.Inc() }

func (c *Collector) RecordPageServed() { c.pagesServed.Inc() }
func (c *Collector) RecordDiffServed() { c.diffsServed.Inc() }
