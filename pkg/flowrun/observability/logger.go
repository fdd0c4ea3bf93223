// Package observability provides structured logging, metrics, and tracing
// for flowrun runs.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// Metrics and tracing are opt-in and have no-op implementations when disabled.
// Logging helpers accept a nil logger and do nothing.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// EnrichLogger adds run context to a logger.
// Returns a new logger with run_id, node_id, and step fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "run-123", "split", 1)
//	enriched.Info("chunking") // includes run_id, node_id, step
func EnrichLogger(logger *slog.Logger, runID, nodeID string, step int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("node_id", nodeID),
		slog.Int("step", step),
	)
}

// LogRunStart logs the start of a run.
func LogRunStart(logger *slog.Logger, runID, graphID, entry string) {
	if logger == nil {
		return
	}
	logger.Info("run starting",
		slog.String("run_id", runID),
		slog.String("graph_id", graphID),
		slog.String("entry", entry),
	)
}

// LogRunFinished logs the end of a run. Every run finishes; outcome says how.
func LogRunFinished(logger *slog.Logger, runID, outcome string, steps int, durationMs float64) {
	if logger == nil {
		return
	}
	level := slog.LevelInfo
	if outcome != "completed" {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "run finished",
		slog.String("run_id", runID),
		slog.String("outcome", outcome),
		slog.Int("steps", steps),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeStart logs node execution start.
func LogNodeStart(logger *slog.Logger, nodeID string, step int) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("node_id", nodeID),
		slog.Int("step", step),
	)
}

// LogNodeComplete logs successful node completion.
func LogNodeComplete(logger *slog.Logger, nodeID string, step int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.Int("step", step),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeError logs a node execution error.
func LogNodeError(logger *slog.Logger, nodeID string, step int, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.Int("step", step),
		slog.String("error", err.Error()),
	)
}

// LogMissingNode logs a node name that has no registered unit.
func LogMissingNode(logger *slog.Logger, nodeID string, step int) {
	if logger == nil {
		return
	}
	logger.Error("node not registered",
		slog.String("node_id", nodeID),
		slog.Int("step", step),
	)
}

// LogPersistError logs a failed run write (non-fatal).
func LogPersistError(logger *slog.Logger, runID, stage string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("run persist failed",
		slog.String("run_id", runID),
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
}

// LogBroadcastError logs a failed delivery to live subscribers (non-fatal).
func LogBroadcastError(logger *slog.Logger, runID, stage string, failed int, err error) {
	if logger == nil {
		return
	}
	attrs := []any{
		slog.String("run_id", runID),
		slog.String("stage", stage),
		slog.Int("failed_subscribers", failed),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logger.Warn("broadcast failed", attrs...)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
