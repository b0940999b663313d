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

package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/memtriage/memtriage/pkg/logger"
	"github.com/memtriage/memtriage/pkg/models"
)

const (
	defaultBatchSize         = 500
	defaultHeartbeatInterval = 10 * time.Second
	consumerDurableName      = "analysis-workers"

	// Analyzer stdout lines longer than this are malformed output, not
	// result rows.
	maxOutputLineBytes = 4 << 20
)

// RunnerConfig configures one worker process.
type RunnerConfig struct {
	Logging logger.Config `json:"logging"`
	NATS    models.NATS   `json:"nats"`

	// Analyzer is the argv template invoked per job. The placeholders
	// {dump}, {os}, {plugin} and {params} are substituted before exec;
	// the analyzer writes one JSON object per result row to stdout.
	Analyzer []string `json:"analyzer"`

	BatchSize         int             `json:"batch_size,omitempty"`
	HeartbeatInterval models.Duration `json:"heartbeat_interval,omitempty"`
}

// Validate implements config.Validator.
func (c *RunnerConfig) Validate() error {
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}

	if len(c.Analyzer) == 0 {
		return fmt.Errorf("analyzer command is required")
	}

	return nil
}

// Runner is the worker-side loop: it consumes execution specs from the
// work queue, runs the configured analyzer for each, and streams rows
// back as batch events.
type Runner struct {
	cfg    RunnerConfig
	nc     *nats.Conn
	js     jetstream.JetStream
	logger logger.Logger

	// execFunc is swappable for tests; the default shells out to the
	// configured analyzer.
	execFunc func(ctx context.Context, spec *models.ExecutionSpec, emit func([]map[string]interface{}) error) error
}

// NewRunner dials the cluster and prepares the durable consumer.
func NewRunner(ctx context.Context, cfg RunnerConfig, log logger.Logger) (*Runner, error) {
	nc, err := connectWithRetry(ctx, cfg.NATS, log)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := ensureExecStream(ctx, js); err != nil {
		nc.Close()
		return nil, err
	}

	r := &Runner{
		cfg:    cfg,
		nc:     nc,
		js:     js,
		logger: log.WithComponent("worker"),
	}
	r.execFunc = r.runAnalyzer

	return r, nil
}

// Run consumes jobs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	consumer, err := r.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       consumerDurableName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		FilterSubject: SubjectExec,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		r.handleJob(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	defer cc.Stop()

	<-ctx.Done()

	return ctx.Err()
}

func (r *Runner) Close() {
	if r.nc != nil {
		r.nc.Close()
	}
}

func (r *Runner) handleJob(ctx context.Context, msg jetstream.Msg) {
	var spec models.ExecutionSpec
	if err := json.Unmarshal(msg.Data(), &spec); err != nil {
		r.logger.Error().Err(err).Msg("Dropping undecodable execution spec")
		_ = msg.Term()

		return
	}

	// Ack immediately: the orchestrator reconciles lost jobs through
	// heartbeat timeouts, so redelivery of a half-run job would only
	// duplicate work.
	_ = msg.Ack()

	log := r.logger.With().
		Str("job_id", spec.JobID).
		Str("plugin", spec.Plugin).
		Logger()

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cancelSub, err := r.nc.Subscribe(CancelSubject(spec.JobID), func(*nats.Msg) {
		log.Info().Msg("Cancellation received")
		cancel()
	})
	if err != nil {
		r.publishEvent(&Event{JobID: spec.JobID, Type: EventFailed, Error: "worker could not subscribe for cancellation"})
		return
	}
	defer func() { _ = cancelSub.Unsubscribe() }()

	r.publishEvent(&Event{JobID: spec.JobID, Type: EventAccepted})
	log.Info().Msg("Execution started")

	stopHeartbeat := r.startHeartbeat(jobCtx, spec.JobID)
	defer stopHeartbeat()

	emit := func(rows []map[string]interface{}) error {
		return r.publishEvent(&Event{JobID: spec.JobID, Type: EventBatch, Rows: rows})
	}

	if err := r.execFunc(jobCtx, &spec, emit); err != nil {
		log.Error().Err(err).Msg("Execution failed")
		r.publishEvent(&Event{JobID: spec.JobID, Type: EventFailed, Error: err.Error()})

		return
	}

	r.publishEvent(&Event{JobID: spec.JobID, Type: EventCompleted})
	log.Info().Msg("Execution completed")
}

func (r *Runner) startHeartbeat(ctx context.Context, jobID string) func() {
	interval := time.Duration(r.cfg.HeartbeatInterval)
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}

	done := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				r.publishEvent(&Event{JobID: jobID, Type: EventHeartbeat})
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }
}

func (r *Runner) publishEvent(event *Event) error {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := r.nc.Publish(EventSubject(event.JobID), data); err != nil {
		r.logger.Warn().Err(err).Str("job_id", event.JobID).Msg("Failed to publish event")
		return err
	}

	return nil
}

// runAnalyzer execs the configured analyzer and batches its NDJSON
// stdout into emit calls.
func (r *Runner) runAnalyzer(ctx context.Context, spec *models.ExecutionSpec, emit func([]map[string]interface{}) error) error {
	argv, err := expandArgv(r.cfg.Analyzer, spec)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open analyzer stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start analyzer: %w", err)
	}

	batchSize := r.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	batch := make([]map[string]interface{}, 0, batchSize)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxOutputLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var row map[string]interface{}
		if err := json.Unmarshal(line, &row); err != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()

			return fmt.Errorf("analyzer produced malformed output: %w", err)
		}

		batch = append(batch, row)
		if len(batch) >= batchSize {
			if err := emit(batch); err != nil {
				_ = cmd.Process.Kill()
				_ = cmd.Wait()

				return err
			}

			batch = make([]map[string]interface{}, 0, batchSize)
		}
	}

	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("execution cancelled: %w", ctx.Err())
		}

		return fmt.Errorf("analyzer exited with error: %w", err)
	}

	if scanErr != nil {
		return fmt.Errorf("failed to read analyzer output: %w", scanErr)
	}

	if len(batch) > 0 {
		if err := emit(batch); err != nil {
			return err
		}
	}

	return nil
}

func expandArgv(template []string, spec *models.ExecutionSpec) ([]string, error) {
	params, err := json.Marshal(spec.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	replacer := strings.NewReplacer(
		"{dump}", spec.StorageHandle,
		"{os}", string(spec.OS),
		"{plugin}", spec.Plugin,
		"{params}", string(params),
	)

	argv := make([]string, len(template))
	for i, arg := range template {
		argv[i] = replacer.Replace(arg)
	}

	return argv, nil
}
