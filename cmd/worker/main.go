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

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/memtriage/memtriage/pkg/config"
	"github.com/memtriage/memtriage/pkg/logger"
	"github.com/memtriage/memtriage/pkg/worker"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/memtriage/worker.json", "Path to worker config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootstrapLog, err := logger.New(logger.Config{})
	if err != nil {
		return err
	}

	var cfg worker.RunnerConfig

	loader := config.NewConfig(bootstrapLog)
	if err := loader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return err
	}

	runnerLog, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}

	runner, err := worker.NewRunner(ctx, cfg, runnerLog)
	if err != nil {
		return err
	}

	defer runner.Close()

	return runner.Run(ctx)
}
