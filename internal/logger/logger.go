// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger configures the process-wide structured logger.
// Best-effort failures (a stale refresh, a flush that the remote
// rejected) are routed through here instead of being surfaced to the
// kernel.
package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

var defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// SessionID identifies one mount's worth of log lines, so that log
// aggregation can group a single `fhirfuse` process's output even when
// several mounts run on the same host.
var SessionID = uuid.NewString()

// Config controls where log output goes and how verbose it is.
type Config struct {
	// Path to a log file. Empty means stderr only.
	Path string

	// MaxSizeMB, MaxBackups and MaxAgeDays configure lumberjack rotation.
	// Zero values mean "use lumberjack's defaults".
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	JSON  bool
	Debug bool
}

// Init installs the process-wide logger according to cfg. It is safe to call
// at most once, from main.
func Init(cfg Config) {
	var w io.Writer = os.Stderr
	if cfg.Path != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	defaultLogger = slog.New(handler).With("session", SessionID)
}

// L returns the process-wide logger.
func L() *slog.Logger { return defaultLogger }

// Warn logs a best-effort-failure line with slog key/value context: a
// refresh that failed, or a flush the remote rejected. These never surface
// as filesystem errors.
func Warn(msg string, args ...any) { defaultLogger.Warn(msg, args...) }

// Info logs a routine lifecycle event (mount, capability discovery).
func Info(msg string, args ...any) { defaultLogger.Info(msg, args...) }

// Error logs an unexpected condition that a human operator should know
// about, without necessarily surfacing as an EIO to the caller.
func Error(msg string, args ...any) { defaultLogger.Error(msg, args...) }

// Debug logs per-operation tracing, off by default.
func Debug(msg string, args ...any) { defaultLogger.Debug(msg, args...) }
