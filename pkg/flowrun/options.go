package flowrun

import (
	"log/slog"

	"github.com/randalmurphal/flowrun/pkg/flowrun/expr"
	"github.com/randalmurphal/flowrun/pkg/flowrun/observability"
)

// DefaultMaxSteps bounds the number of steps a run may take.
const DefaultMaxSteps = 500

// engineConfig holds Engine construction settings.
type engineConfig struct {
	nodes    *NodeRegistry
	tools    *ToolRegistry
	store    Store
	hub      Broadcaster
	sinks    []EventSink
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	eval     *expr.Evaluator
	maxSteps int
	logSink  bool
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		logger:   slog.Default(),
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
		maxSteps: DefaultMaxSteps,
	}
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithNodes sets the node registry. Default: an empty registry, reachable
// through Engine.Nodes.
func WithNodes(nodes *NodeRegistry) Option {
	return func(c *engineConfig) {
		if nodes != nil {
			c.nodes = nodes
		}
	}
}

// WithTools sets the tool registry passed to nodes and conditions.
func WithTools(tools *ToolRegistry) Option {
	return func(c *engineConfig) {
		if tools != nil {
			c.tools = tools
		}
	}
}

// WithStore sets the durable store. Runs are written through to it after
// every event, and created graphs are saved to it.
func WithStore(store Store) Option {
	return func(c *engineConfig) {
		c.store = store
	}
}

// WithBroadcaster sets the hub that receives every event for live subscribers.
func WithBroadcaster(hub Broadcaster) Option {
	return func(c *engineConfig) {
		c.hub = hub
	}
}

// WithSink adds an extra event sink, emitted after persistence and broadcast.
func WithSink(sink EventSink) Option {
	return func(c *engineConfig) {
		if sink != nil {
			c.sinks = append(c.sinks, sink)
		}
	}
}

// WithEventLog adds a LogSink writing one line per event to the engine logger.
func WithEventLog() Option {
	return func(c *engineConfig) {
		c.logSink = true
	}
}

// WithEvaluator sets the condition evaluator, e.g. one carrying custom
// operators. Default: expr.New().
func WithEvaluator(ev *expr.Evaluator) Option {
	return func(c *engineConfig) {
		if ev != nil {
			c.eval = ev
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables OpenTelemetry metrics through the given recorder.
//
// Example:
//
//	engine := flowrun.NewEngine(flowrun.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(recorder observability.MetricsRecorder) Option {
	return func(c *engineConfig) {
		if recorder != nil {
			c.metrics = recorder
		}
	}
}

// WithTracing enables OpenTelemetry spans for runs and nodes.
func WithTracing(spans observability.SpanManager) Option {
	return func(c *engineConfig) {
		if spans != nil {
			c.spans = spans
		}
	}
}

// WithDefaultMaxSteps sets the step bound for runs that do not override it.
// Default: 500. Non-positive values are ignored.
func WithDefaultMaxSteps(n int) Option {
	return func(c *engineConfig) {
		if n > 0 {
			c.maxSteps = n
		}
	}
}

// runConfig holds per-run settings.
type runConfig struct {
	runID    string
	maxSteps int
}

// RunOption configures a single run.
type RunOption func(*runConfig)

// WithRunID sets a caller-chosen run id. Default: a fresh UUID.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithMaxSteps overrides the step bound for one run.
// Non-positive values are ignored.
//
// Reaching the bound stops the run like a terminal edge does; the outcome
// is recorded as step_limit.
func WithMaxSteps(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxSteps = n
		}
	}
}
