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

// Package logger provides JSON structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls log level and destination for a process.
type Config struct {
	Level      string `json:"level"`
	Debug      bool   `json:"debug"`
	Output     string `json:"output"`
	TimeFormat string `json:"time_format"`
}

type zerologAdapter struct {
	logger zerolog.Logger
}

// New builds a Logger from config. The zero-value config yields an
// info-level JSON logger on stdout.
func New(config Config) (Logger, error) {
	var output io.Writer = os.Stdout

	if config.Output == "stderr" {
		output = os.Stderr
	}

	level := zerolog.InfoLevel

	if config.Debug {
		level = zerolog.DebugLevel
	} else if config.Level != "" {
		var err error

		level, err = zerolog.ParseLevel(config.Level)
		if err != nil {
			return nil, err
		}
	}

	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	zlog := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &zerologAdapter{logger: zlog}, nil
}

// NewTestLogger returns a discard-level logger for use in tests.
func NewTestLogger() Logger {
	zlog := zerolog.New(io.Discard)

	return &zerologAdapter{logger: zlog}
}

func (a *zerologAdapter) Trace() *zerolog.Event {
	return a.logger.Trace()
}

func (a *zerologAdapter) Debug() *zerolog.Event {
	return a.logger.Debug()
}

func (a *zerologAdapter) Info() *zerolog.Event {
	return a.logger.Info()
}

func (a *zerologAdapter) Warn() *zerolog.Event {
	return a.logger.Warn()
}

func (a *zerologAdapter) Error() *zerolog.Event {
	return a.logger.Error()
}

func (a *zerologAdapter) Fatal() *zerolog.Event {
	return a.logger.Fatal()
}

func (a *zerologAdapter) Panic() *zerolog.Event {
	return a.logger.Panic()
}

func (a *zerologAdapter) With() zerolog.Context {
	return a.logger.With()
}

func (a *zerologAdapter) WithComponent(component string) Logger {
	return &zerologAdapter{logger: a.logger.With().Str("component", component).Logger()}
}

func (a *zerologAdapter) WithFields(fields map[string]interface{}) Logger {
	ctx := a.logger.With()
	for key, value := range fields {
		ctx = ctx.Interface(key, value)
	}

	return &zerologAdapter{logger: ctx.Logger()}
}
