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

package core

import (
	"fmt"
	"time"

	"github.com/memtriage/memtriage/pkg/logger"
	"github.com/memtriage/memtriage/pkg/models"
)

const (
	defaultSweepInterval = 30 * time.Second
	defaultStaleAfter    = 2 * time.Minute
	defaultMaxPageSize   = 1000
	defaultListenAddr    = ":8090"
)

// Config is the orchestrator daemon configuration.
type Config struct {
	Logging       logger.Config        `json:"logging"`
	Database      models.Database      `json:"database"`
	Elasticsearch models.Elasticsearch `json:"elasticsearch,omitempty"`
	NATS          models.NATS          `json:"nats"`

	// CatalogPath is the plugin descriptor catalog (JSON).
	CatalogPath string `json:"catalog_path"`

	// Store selects the result-store backend: "elastic" (default) or
	// "memory" for single-node dev deployments.
	Store string `json:"store,omitempty"`

	// ListenAddr serves /metrics and /healthz.
	ListenAddr string `json:"listen_addr,omitempty"`

	MaxPageSize   int             `json:"max_page_size,omitempty"`
	SweepInterval models.Duration `json:"sweep_interval,omitempty"`

	// StaleAfter is how long a running job may go without a heartbeat
	// before the sweep fails it.
	StaleAfter models.Duration `json:"stale_after,omitempty"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}

	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}

	if c.CatalogPath == "" {
		return fmt.Errorf("catalog_path is required")
	}

	switch c.Store {
	case "", "elastic", "memory":
	default:
		return fmt.Errorf("store must be elastic or memory, got %q", c.Store)
	}

	if c.Store != "memory" && len(c.Elasticsearch.URLs) == 0 {
		return fmt.Errorf("elasticsearch.urls is required for the elastic store")
	}

	return nil
}

func (c *Config) sweepInterval() time.Duration {
	if d := time.Duration(c.SweepInterval); d > 0 {
		return d
	}

	return defaultSweepInterval
}

func (c *Config) staleAfter() time.Duration {
	if d := time.Duration(c.StaleAfter); d > 0 {
		return d
	}

	return defaultStaleAfter
}

func (c *Config) maxPageSize() int {
	if c.MaxPageSize > 0 {
		return c.MaxPageSize
	}

	return defaultMaxPageSize
}

func (c *Config) listenAddr() string {
	if c.ListenAddr != "" {
		return c.ListenAddr
	}

	return defaultListenAddr
}
