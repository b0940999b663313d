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

package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	t.Parallel()

	c := NewCollector()

	c.RecordSubmitted()
	c.RecordSubmitted()
	c.RecordRunning()
	c.RecordRowsIngested(500)
	c.RecordSettled()
	c.RecordCompleted()

	assert.Equal(t, float64(2), testutil.ToFloat64(c.jobsSubmitted))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.jobsCompleted))
	assert.Equal(t, float64(500), testutil.ToFloat64(c.rowsIngested))
	assert.Equal(t, float64(0), testutil.ToFloat64(c.jobsRunning), "settle decrements the running gauge")
}

func TestCollectorHandlerServesRegistry(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.RecordPageServed()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "memtriage_pages_served_total 1")
}

func TestCollectorsAreIndependent(t *testing.T) {
	t.Parallel()

	a := NewCollector()
	b := NewCollector()

	a.RecordFailed()

	assert.Equal(t, float64(1), testutil.ToFloat64(a.jobsFailed))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.jobsFailed))
}
