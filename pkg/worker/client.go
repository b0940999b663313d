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
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/memtriage/memtriage/pkg/logger"
	"github.com/memtriage/memtriage/pkg/models"
)

const (
	defaultConnectAttempts = 5
	defaultConnectBackoff  = 500 * time.Millisecond
	maxConnectBackoff      = 5 * time.Second
	eventBufferSize        = 256
)

// Client is the worker-cluster surface the orchestrator consumes:
// execution submission plus the shared messaging connection. Implemented
// over NATS JetStream; see PoolClient.
type Client interface {
	Submit(ctx context.Context, spec *models.ExecutionSpec) (*Handle, error)
	Cancel(ctx context.Context, handle *Handle) error
	Poll(handle *Handle) (Status, error)
	// Events streams every worker-reported event for jobs submitted
	// through this client.
	Events() <-chan Event
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error)
	Forget(jobID string)
	Close()
}

var _ Client = (*PoolClient)(nil)

// PoolClient is the NATS-backed Client.
type PoolClient struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	cfg    models.NATS
	logger logger.Logger

	mu      sync.RWMutex
	handles map[string]*handleState

	events chan Event
	sub    *nats.Subscription

	// publishFunc is swappable for tests.
	publishFunc func(ctx context.Context, subject string, data []byte) error
}

type handleState struct {
	status Status
}

// NewPoolClient dials NATS with bounded backoff, ensures the execution
// stream exists, and subscribes to worker events. A cluster that stays
// unreachable past the attempt cap yields ErrClusterUnavailable.
func NewPoolClient(ctx context.Context, cfg models.NATS, log logger.Logger) (*PoolClient, error) {
	c := &PoolClient{
		cfg:     cfg,
		logger:  log.WithComponent("workerpool"),
		handles: make(map[string]*handleState),
		events:  make(chan Event, eventBufferSize),
	}

	nc, err := connectWithRetry(ctx, cfg, c.logger)
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

	c.nc = nc
	c.js = js
	c.publishFunc = func(ctx context.Context, subject string, data []byte) error {
		_, err := js.Publish(ctx, subject, data)
		return err
	}

	sub, err := nc.Subscribe(subjectEventsPrefix+">", func(msg *nats.Msg) {
		c.handleEventMsg(msg.Data)
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe to worker events: %w", err)
	}

	c.sub = sub

	return c, nil
}

func connectWithRetry(ctx context.Context, cfg models.NATS, log logger.Logger) (*nats.Conn, error) {
	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = defaultConnectAttempts
	}

	initial := time.Duration(cfg.ConnectBackoff)
	if initial <= 0 {
		initial = defaultConnectBackoff
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial
	bo.MaxInterval = maxConnectBackoff

	operation := func() (*nats.Conn, error) {
		nc, err := nats.Connect(cfg.URL,
			nats.Name(cfg.Name),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
			}),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Warn().Err(err).Msg("NATS disconnected")
			}),
		)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.URL).Msg("NATS connect attempt failed")
			return nil, err
		}

		return nc, nil
	}

	nc, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(attempts)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClusterUnavailable, err)
	}

	return nc, nil
}

func ensureExecStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectExec},
		Retention: jetstream.WorkQueuePolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", StreamName, err)
	}

	return nil
}

// Submit publishes the execution spec to the work queue. Publish
// failures are retried with bounded backoff before surfacing
// ErrClusterUnavailable; the returned handle is already registered so
// events arriving immediately are not lost.
func (c *PoolClient) Submit(ctx context.Context, spec *models.ExecutionSpec) (*Handle, error) {
	payload, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execution spec: %w", err)
	}

	c.register(spec.JobID)

	initial := time.Duration(c.cfg.ConnectBackoff)
	if initial <= 0 {
		initial = defaultConnectBackoff
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial
	bo.MaxInterval = maxConnectBackoff

	operation := func() (struct{}, error) {
		if err := c.publishFunc(ctx, SubjectExec, payload); err != nil {
			return struct{}{}, err
		}

		return struct{}{}, nil
	}

	attempts := c.cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = defaultConnectAttempts
	}

	if _, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(attempts))); err != nil {
		c.unregister(spec.JobID)

		return nil, fmt.Errorf("%w: submit job %s: %w", ErrClusterUnavailable, spec.JobID, err)
	}

	c.logger.Debug().
		Str("job_id", spec.JobID).
		Str("plugin", spec.Plugin).
		Msg("Execution submitted to worker pool")

	return &Handle{JobID: spec.JobID}, nil
}

// Cancel requests best-effort cancellation. The handle stays tracked
// until its terminal event or the liveness sweep forgets it.
func (c *PoolClient) Cancel(ctx context.Context, handle *Handle) error {
	if handle == nil {
		return ErrUnknownHandle
	}

	if err := c.nc.Publish(CancelSubject(handle.JobID), nil); err != nil {
		return fmt.Errorf("failed to publish cancel for %s: %w", handle.JobID, err)
	}

	c.logger.Info().Str("job_id", handle.JobID).Msg("Cancellation requested")

	return nil
}

func (c *PoolClient) Poll(handle *Handle) (Status, error) {
	if handle == nil {
		return Status{}, ErrUnknownHandle
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	st, ok := c.handles[handle.JobID]
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrUnknownHandle, handle.JobID)
	}

	return st.status, nil
}

func (c *PoolClient) Events() <-chan Event {
	return c.events
}

// Publish sends one message on the shared cluster connection. The
// orchestrator uses this for completion notifications.
func (c *PoolClient) Publish(subject string, data []byte) error {
	return c.nc.Publish(subject, data)
}

// Subscribe attaches a handler on the shared cluster connection.
func (c *PoolClient) Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error) {
	return c.nc.Subscribe(subject, handler)
}

// Forget drops the in-memory bookkeeping for a job once the dispatcher
// has recorded its terminal state.
func (c *PoolClient) Forget(jobID string) {
	c.unregister(jobID)
}

func (c *PoolClient) Close() {
	if c.sub != nil {
		_ = c.sub.Unsubscribe()
	}

	if c.nc != nil {
		c.nc.Close()
	}

	close(c.events)
}

func (c *PoolClient) register(jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handles[jobID] = &handleState{status: Status{State: StatePending, LastSeen: time.Now()}}
}

func (c *PoolClient) unregister(jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.handles, jobID)
}

// handleEventMsg decodes one worker event, updates the handle snapshot,
// and forwards it to the dispatcher. Events for unknown jobs (e.g.
// submitted by a previous incarnation of this process) are dropped; the
// liveness sweep reconciles those jobs instead.
func (c *PoolClient) handleEventMsg(data []byte) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		c.logger.Warn().Err(err).Msg("Dropping undecodable worker event")
		return
	}

	c.mu.Lock()

	st, ok := c.handles[event.JobID]
	if !ok {
		c.mu.Unlock()
		c.logger.Debug().Str("job_id", event.JobID).Msg("Event for untracked job dropped")

		return
	}

	st.status.LastSeen = event.Time
	if st.status.LastSeen.IsZero() {
		st.status.LastSeen = time.Now()
	}

	switch event.Type {
	case EventAccepted, EventHeartbeat:
		if st.status.State == StatePending {
			st.status.State = StateStreaming
		}
	case EventBatch:
		st.status.State = StateStreaming
	case EventCompleted:
		st.status.State = StateSucceeded
	case EventFailed:
		st.status.State = StateFailed
		st.status.Reason = event.Error
	}

	c.mu.Unlock()

	select {
	case c.events <- event:
	default:
		// A full buffer means the consumer stalled; block rather than
		// drop, batches are not replayable.
		c.events <- event
	}
}
