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

// Package core wires the orchestrator together: the dispatcher, the
// ingest path, the pager and comparison engine, the worker transport,
// and the liveness sweep.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/memtriage/memtriage/pkg/compare"
	"github.com/memtriage/memtriage/pkg/db"
	"github.com/memtriage/memtriage/pkg/dispatcher"
	"github.com/memtriage/memtriage/pkg/ingest"
	"github.com/memtriage/memtriage/pkg/logger"
	"github.com/memtriage/memtriage/pkg/metrics"
	"github.com/memtriage/memtriage/pkg/models"
	"github.com/memtriage/memtriage/pkg/pager"
	"github.com/memtriage/memtriage/pkg/registry"
	"github.com/memtriage/memtriage/pkg/resultstore"
	"github.com/memtriage/memtriage/pkg/worker"
)

const (
	// subjectDumpCompleted announces a dump whose upload and extraction
	// finished; the orchestrator reacts by running the default plugins.
	subjectDumpCompleted = "dumps.events.completed"

	// notifySubjectPrefix + dumpID carries job settlement notifications
	// for UI-facing consumers.
	notifySubjectPrefix = "analysis.notify."
)

// Server is the orchestrator. It exposes the analysis API and runs the
// background loops that keep job state converging.
type Server struct {
	config    *Config
	logger    logger.Logger
	database  db.Service
	store     resultstore.Store
	registry  *registry.PluginRegistry
	workers   worker.Client
	disp      *dispatcher.Dispatcher
	pager     *pager.Pager
	comparer  *compare.Engine
	collector *metrics.Collector

	httpServer *http.Server
	dumpSub    *nats.Subscription
}

// dumpCompletedEvent is the payload of subjectDumpCompleted.
type dumpCompletedEvent struct {
	DumpID string `json:"dump_id"`
}

// notification is published per settled job on notifySubjectPrefix.
type notification struct {
	JobID   string           `json:"job_id"`
	DumpID  string           `json:"dump_id"`
	Plugin  string           `json:"plugin"`
	Status  models.JobStatus `json:"status"`
	Version string           `json:"version,omitempty"`
	Rows    int64            `json:"rows,omitempty"`
	Cause   string           `json:"cause,omitempty"`
	Time    time.Time        `json:"time"`
}

// NewServer connects to Postgres, the result store, and the worker
// cluster, and assembles the orchestrator.
func NewServer(ctx context.Context, cfg *Config, log logger.Logger) (*Server, error) {
	database, err := db.New(ctx, &cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store, err := newStore(cfg, log)
	if err != nil {
		database.Close()
		return nil, err
	}

	reg, report, err := registry.New(cfg.CatalogPath, log)
	if err != nil {
		store.Close()
		database.Close()

		return nil, fmt.Errorf("failed to load plugin catalog: %w", err)
	}

	if len(report.Rejected) > 0 {
		log.Warn().Int("rejected", len(report.Rejected)).Msg("Some plugin descriptors were rejected")
	}

	workers, err := worker.NewPoolClient(ctx, cfg.NATS, log)
	if err != nil {
		store.Close()
		database.Close()

		return nil, err
	}

	collector := metrics.NewCollector()
	ingestor := ingest.New(store, database, collector, log)
	disp := dispatcher.New(database, reg, workers, ingestor, collector, log)

	s := &Server{
		config:    cfg,
		logger:    log.WithComponent("core"),
		database:  database,
		store:     store,
		registry:  reg,
		workers:   workers,
		disp:      disp,
		pager:     pager.New(store, database, collector, log, cfg.maxPageSize()),
		comparer:  compare.New(store, database, collector, log),
		collector: collector,
	}

	disp.OnSettled(s.publishNotification)

	return s, nil
}

func newStore(cfg *Config, log logger.Logger) (resultstore.Store, error) {
	if cfg.Store == "memory" {
		return resultstore.NewMemoryStore(cfg.Elasticsearch.MaxResultWindow), nil
	}

	store, err := resultstore.NewElasticStore(&cfg.Elasticsearch, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open result store: %w", err)
	}

	return store, nil
}

// Run reconciles jobs orphaned by the previous process, then serves
// until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	// Before the event pump starts no sessions exist, so this pass
	// fails exactly the jobs the previous incarnation left running.
	s.disp.SweepOnce(ctx, 0)

	sub, err := s.workers.Subscribe(subjectDumpCompleted, func(msg *nats.Msg) {
		s.onDumpCompleted(ctx, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to dump events: %w", err)
	}

	s.dumpSub = sub

	go s.disp.RunSweep(ctx, s.config.sweepInterval(), s.config.staleAfter())
	go s.pumpWorkerEvents(ctx)
	go s.serveHTTP()

	s.logger.Info().Str("listen", s.config.listenAddr()).Msg("Orchestrator started")

	<-ctx.Done()

	return ctx.Err()
}

// pumpWorkerEvents routes every worker event into the dispatcher.
func (s *Server) pumpWorkerEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.workers.Events():
			if !ok {
				return
			}

			s.disp.OnWorkerEvent(ctx, event)
		}
	}
}

func (s *Server) onDumpCompleted(ctx context.Context, data []byte) {
	var event dumpCompletedEvent
	if err := json.Unmarshal(data, &event); err != nil || event.DumpID == "" {
		s.logger.Warn().Err(err).Msg("Dropping undecodable dump-completed event")
		return
	}

	s.logger.Info().Str("dump_id", event.DumpID).Msg("Dump completed, running default plugins")

	if err := s.disp.RerunDefaults(ctx, event.DumpID); err != nil {
		s.logger.Warn().Err(err).Str("dump_id", event.DumpID).Msg("Default plugin fan-out had failures")
	}
}

func (s *Server) publishNotification(st dispatcher.Settlement) {
	n := notification{
		JobID:   st.Job.ID,
		DumpID:  st.Job.DumpID,
		Plugin:  st.Job.Plugin,
		Status:  st.Status,
		Version: st.Version,
		Rows:    st.Rows,
		Cause:   st.Cause,
		Time:    time.Now(),
	}

	data, err := json.Marshal(n)
	if err != nil {
		return
	}

	if err := s.workers.Publish(notifySubjectPrefix+st.Job.DumpID, data); err != nil {
		s.logger.Warn().Err(err).Str("job_id", st.Job.ID).Msg("Failed to publish settlement notification")
	}
}

func (s *Server) serveHTTP() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.collector.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.httpServer = &http.Server{
		Addr:              s.config.listenAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error().Err(err).Msg("Metrics server stopped")
	}
}

// Close drains in-flight ingest sessions and releases every connection.
func (s *Server) Close() {
	if s.dumpSub != nil {
		_ = s.dumpSub.Unsubscribe()
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = s.httpServer.Shutdown(ctx)
	}

	s.disp.WaitIdle()
	s.workers.Close()
	s.store.Close()
	s.database.Close()
}

// SubmitAnalysis queues one plugin execution against a dump.
func (s *Server) SubmitAnalysis(ctx context.Context, dumpID, plugin string, params map[string]interface{}, force bool) (*models.Job, error) {
	return s.disp.Submit(ctx, dumpID, plugin, params, force)
}

// JobStatus returns the persisted job record.
func (s *Server) JobStatus(ctx context.Context, jobID string) (*models.Job, error) {
	return s.disp.JobStatus(ctx, jobID)
}

// PendingCount reports how many jobs for the dump are queued or running.
func (s *Server) PendingCount(ctx context.Context, dumpID string) (int, error) {
	return s.disp.PendingCount(ctx, dumpID)
}

// FetchPage serves one result page; see pkg/pager for cursor semantics.
func (s *Server) FetchPage(ctx context.Context, key models.ResultKey, cursor string, pageSize int) ([]models.ResultRow, string, error) {
	return s.pager.Page(ctx, key, cursor, pageSize)
}

// CompareResults streams the diff between two result sets through emit.
func (s *Server) CompareResults(ctx context.Context, baseline, candidate models.ResultKey, emit func(models.DiffEntry) error) error {
	return s.comparer.Diff(ctx, baseline, candidate, emit)
}

// RerunDefaults force-submits every default-enabled plugin for a dump.
func (s *Server) RerunDefaults(ctx context.Context, dumpID string) error {
	return s.disp.RerunDefaults(ctx, dumpID)
}

// CancelJob cancels a non-terminal job.
func (s *Server) CancelJob(ctx context.Context, jobID string) error {
	return s.disp.Cancel(ctx, jobID)
}

// ReloadPlugins re-reads the catalog file and swaps it atomically.
func (s *Server) ReloadPlugins(ctx context.Context) (*registry.LoadReport, error) {
	return s.registry.Reload(ctx)
}

// ListPlugins returns the catalog for one OS family, ordered by name.
func (s *Server) ListPlugins(osFamily models.OSFamily) []models.PluginDescriptor {
	return s.registry.List(osFamily)
}
