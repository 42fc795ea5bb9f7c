// Package obs carries the ambient logging and metrics stack: zerolog for
// structured logs, OpenTelemetry for counters/histograms.
//
// Grounded on internal/observability/logging.go's InitLogger (zerolog
// global logger init, RFC3339Nano timestamps, level parsing, optional log
// file) and internal/rag/obs/metrics.go's OtelMetrics (instrument caching
// over a sync.RWMutex-guarded map, keyed by metric name).
package obs

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger initializes the global zerolog logger. If logPath is
// non-empty, logs are written to that file (append mode) instead of
// stdout; a failure to open the file falls back to stdout with a
// best-effort message to stderr.
func InitLogger(logPath string, level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var w io.Writer = os.Stdout
	if logPath != "" {
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			w = f
		} else {
			fmt.Fprintf(os.Stderr, "obs: failed to open log file %q: %v\n", logPath, err)
		}
	}
	log.Logger = log.Output(w).With().Timestamp().Logger()

	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	lvl := zerolog.InfoLevel
	if level != "" {
		if l, err := zerolog.ParseLevel(level); err == nil {
			lvl = l
		}
	}
	zerolog.SetGlobalLevel(lvl)
	stdlog.SetFlags(0)
	stdlog.SetOutput(log.Logger)
}

// Logger returns the process-wide zerolog logger.
func Logger() zerolog.Logger { return log.Logger }
