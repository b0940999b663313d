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

package models

// Database holds the Postgres connection settings for job and
// version-pointer persistence.
type Database struct {
	Host            string   `json:"host"`
	Port            int      `json:"port"`
	Database        string   `json:"database"`
	Username        string   `json:"username"`
	Password        string   `json:"password,omitempty"`
	SSLMode         string   `json:"ssl_mode,omitempty"`
	ApplicationName string   `json:"application_name,omitempty"`
	MaxConnections  int32    `json:"max_connections,omitempty"`
	MinConnections  int32    `json:"min_connections,omitempty"`
	MaxConnLifetime Duration `json:"max_conn_lifetime,omitempty"`
}

// Elasticsearch holds the result-store settings.
type Elasticsearch struct {
	URLs []string `json:"urls"`

	// MaxResultWindow mirrors the index.max_result_window setting
	// applied to each result index; windowed queries never request
	// more than this many rows at once.
	MaxResultWindow int  `json:"max_result_window,omitempty"`
	Sniff           bool `json:"sniff,omitempty"`
	Healthcheck     bool `json:"healthcheck,omitempty"`
}

// NATS holds the worker-cluster transport settings.
type NATS struct {
	URL             string   `json:"url"`
	Name            string   `json:"name,omitempty"`
	ConnectAttempts int      `json:"connect_attempts,omitempty"`
	ConnectBackoff  Duration `json:"connect_backoff,omitempty"`
	RequestTimeout  Duration `json:"request_timeout,omitempty"`
}
