package flowrun

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/flowrun/pkg/flowrun/observability"
)

// Context provides execution context to nodes.
// It extends context.Context with run metadata and a logger.
//
// The engine derives a new Context for every step; it is immutable.
type Context interface {
	context.Context

	// Logger returns the engine logger, enriched with run_id, node_id and step.
	// Never returns nil.
	Logger() *slog.Logger

	// RunID returns the identifier of the executing run.
	RunID() string

	// NodeID returns the node being executed.
	NodeID() string

	// Step returns the 1-based step index.
	Step() int
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger *slog.Logger
	runID  string
	nodeID string
	step   int
}

// Logger returns the enriched logger.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// RunID returns the run identifier.
func (c *executionContext) RunID() string {
	return c.runID
}

// NodeID returns the current node identifier.
func (c *executionContext) NodeID() string {
	return c.nodeID
}

// Step returns the step index.
func (c *executionContext) Step() int {
	return c.step
}

// newNodeContext builds the per-step context handed to a node.
func newNodeContext(ctx context.Context, logger *slog.Logger, runID, nodeID string, step int) *executionContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &executionContext{
		Context: ctx,
		logger:  observability.EnrichLogger(logger, runID, nodeID, step),
		runID:   runID,
		nodeID:  nodeID,
		step:    step,
	}
}

// NewContext wraps ctx for calling a node outside the engine, e.g. in tests.
func NewContext(ctx context.Context, runID, nodeID string) Context {
	return newNodeContext(ctx, slog.Default(), runID, nodeID, 1)
}
