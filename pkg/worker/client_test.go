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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memtriage/memtriage/pkg/logger"
	"github.com/memtriage/memtriage/pkg/models"
)

func newTestClient(t *testing.T, publish func(ctx context.Context, subject string, data []byte) error) *PoolClient {
	t.Helper()

	return &PoolClient{
		cfg:         models.NATS{ConnectAttempts: 2, ConnectBackoff: models.Duration(time.Millisecond)},
		logger:      logger.NewTestLogger(),
		handles:     make(map[string]*handleState),
		events:      make(chan Event, eventBufferSize),
		publishFunc: publish,
	}
}

func TestSubmitRegistersHandle(t *testing.T) {
	t.Parallel()

	var published [][]byte

	client := newTestClient(t, func(_ context.Context, subject string, data []byte) error {
		assert.Equal(t, SubjectExec, subject)
		published = append(published, data)

		return nil
	})

	spec := &models.ExecutionSpec{JobID: "job-1", DumpID: "dump-1", Plugin: "pslist"}

	handle, err := client.Submit(context.Background(), spec)
	require.NoError(t, err)
	require.Equal(t, "job-1", handle.JobID)
	require.Len(t, published, 1)

	var decoded models.ExecutionSpec
	require.NoError(t, json.Unmarshal(published[0], &decoded))
	assert.Equal(t, *spec, decoded)

	status, err := client.Poll(handle)
	require.NoError(t, err)
	assert.Equal(t, StatePending, status.State)
}

func TestSubmitExhaustedRetriesReturnsClusterUnavailable(t *testing.T) {
	t.Parallel()

	attempts := 0

	client := newTestClient(t, func(context.Context, string, []byte) error {
		attempts++
		return errors.New("no route to cluster")
	})

	_, err := client.Submit(context.Background(), &models.ExecutionSpec{JobID: "job-2"})
	require.ErrorIs(t, err, ErrClusterUnavailable)
	assert.Equal(t, 2, attempts)

	_, err = client.Poll(&Handle{JobID: "job-2"})
	assert.ErrorIs(t, err, ErrUnknownHandle)
}

func TestPollUnknownHandle(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, nil)

	_, err := client.Poll(&Handle{JobID: "never-submitted"})
	assert.ErrorIs(t, err, ErrUnknownHandle)

	_, err = client.Poll(nil)
	assert.ErrorIs(t, err, ErrUnknownHandle)
}

func TestEventLifecycleUpdatesStatus(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(context.Context, string, []byte) error { return nil })

	handle, err := client.Submit(context.Background(), &models.ExecutionSpec{JobID: "job-3"})
	require.NoError(t, err)

	steps := []struct {
		event Event
		want  State
	}{
		{Event{JobID: "job-3", Type: EventAccepted}, StateStreaming},
		{Event{JobID: "job-3", Type: EventBatch, Rows: []map[string]interface{}{{"pid": 4}}}, StateStreaming},
		{Event{JobID: "job-3", Type: EventHeartbeat}, StateStreaming},
		{Event{JobID: "job-3", Type: EventCompleted}, StateSucceeded},
	}

	for _, step := range steps {
		step.event.Time = time.Now()
		data, merr := json.Marshal(step.event)
		require.NoError(t, merr)

		client.handleEventMsg(data)

		status, perr := client.Poll(handle)
		require.NoError(t, perr)
		assert.Equal(t, step.want, status.State)
		assert.False(t, status.LastSeen.IsZero())
	}

	// Every event was forwarded in order.
	for _, step := range steps {
		select {
		case got := <-client.Events():
			assert.Equal(t, step.event.Type, got.Type)
		default:
			t.Fatal("expected forwarded event")
		}
	}
}

func TestFailedEventCarriesReason(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(context.Context, string, []byte) error { return nil })

	handle, err := client.Submit(context.Background(), &models.ExecutionSpec{JobID: "job-4"})
	require.NoError(t, err)

	data, err := json.Marshal(Event{JobID: "job-4", Type: EventFailed, Error: "symbol table missing", Time: time.Now()})
	require.NoError(t, err)

	client.handleEventMsg(data)

	status, err := client.Poll(handle)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, status.State)
	assert.Equal(t, "symbol table missing", status.Reason)
}

func TestEventForUntrackedJobDropped(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, nil)

	data, err := json.Marshal(Event{JobID: "ghost", Type: EventCompleted, Time: time.Now()})
	require.NoError(t, err)

	client.handleEventMsg(data)

	select {
	case <-client.Events():
		t.Fatal("event for untracked job must not be forwarded")
	default:
	}
}

func TestForgetDropsHandle(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(context.Context, string, []byte) error { return nil })

	handle, err := client.Submit(context.Background(), &models.ExecutionSpec{JobID: "job-5"})
	require.NoError(t, err)

	client.Forget("job-5")

	_, err = client.Poll(handle)
	assert.ErrorIs(t, err, ErrUnknownHandle)
}

func TestExpandArgv(t *testing.T) {
	t.Parallel()

	spec := &models.ExecutionSpec{
		JobID:         "job-6",
		OS:            models.OSWindows,
		Plugin:        "pslist",
		Params:        map[string]interface{}{"pid": 4},
		StorageHandle: "/dumps/a.raw",
	}

	argv, err := expandArgv([]string{"vol-runner", "--dump", "{dump}", "--os", "{os}", "--plugin", "{plugin}", "--params", "{params}"}, spec)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"vol-runner",
		"--dump", "/dumps/a.raw",
		"--os", "windows",
		"--plugin", "pslist",
		"--params", `{"pid":4}`,
	}, argv)
}

func TestRunAnalyzerBatchesOutput(t *testing.T) {
	t.Parallel()

	r := &Runner{
		cfg: RunnerConfig{
			Analyzer:  []string{"sh", "-c", `printf '{"pid":1}\n{"pid":2}\n{"pid":3}\n'`},
			BatchSize: 2,
		},
		logger: logger.NewTestLogger(),
	}

	var batches [][]map[string]interface{}

	err := r.runAnalyzer(context.Background(), &models.ExecutionSpec{JobID: "job-7"}, func(rows []map[string]interface{}) error {
		batches = append(batches, rows)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 1)
	assert.Equal(t, float64(3), batches[1][0]["pid"])
}

func TestRunAnalyzerMalformedOutput(t *testing.T) {
	t.Parallel()

	r := &Runner{
		cfg: RunnerConfig{
			Analyzer: []string{"sh", "-c", `printf 'not json\n'`},
		},
		logger: logger.NewTestLogger(),
	}

	err := r.runAnalyzer(context.Background(), &models.ExecutionSpec{JobID: "job-8"}, func([]map[string]interface{}) error {
		t.Fatal("malformed output must not reach emit")
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed output")
}

func TestRunAnalyzerFailingCommand(t *testing.T) {
	t.Parallel()

	r := &Runner{
		cfg: RunnerConfig{
			Analyzer: []string{"sh", "-c", "exit 9"},
		},
		logger: logger.NewTestLogger(),
	}

	err := r.runAnalyzer(context.Background(), &models.ExecutionSpec{JobID: "job-9"}, func([]map[string]interface{}) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited with error")
}

func TestRunnerConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := &RunnerConfig{}
	require.Error(t, cfg.Validate())

	cfg.NATS.URL = "nats://localhost:4222"
	require.Error(t, cfg.Validate())

	cfg.Analyzer = []string{"vol-runner"}
	require.NoError(t, cfg.Validate())
}
