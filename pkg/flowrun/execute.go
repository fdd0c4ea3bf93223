package flowrun

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/randalmurphal/flowrun/pkg/flowrun/observability"
	"go.opentelemetry.io/otel/attribute"
)

// Execute runs a graph to completion on the calling goroutine and returns
// the run id. The only error is ErrGraphNotFound; everything that happens
// during the run is captured in its record and event stream.
//
// Example:
//
//	runID, err := engine.Execute(ctx, graphID, flowrun.State{"n": 0})
//	if err != nil {
//	    return err // unknown graph
//	}
//	rec, _ := engine.Run(runID)
func (e *Engine) Execute(ctx context.Context, graphID string, initial State, opts ...RunOption) (string, error) {
	g, r, maxSteps, err := e.prepare(graphID, initial, opts)
	if err != nil {
		return "", err
	}
	e.execute(ctx, g, r, maxSteps)
	return r.id, nil
}

// Start registers a run and executes it on a background goroutine. It
// returns as soon as the run is visible to Run. Cancelling ctx does not stop
// the run; there is no abort once started.
func (e *Engine) Start(ctx context.Context, graphID string, initial State, opts ...RunOption) (string, error) {
	g, r, maxSteps, err := e.prepare(graphID, initial, opts)
	if err != nil {
		return "", err
	}

	runCtx := context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.execute(runCtx, g, r, maxSteps)
	}()
	return r.id, nil
}

// execute is the step loop. It never returns an error: node failures,
// missing nodes and the step bound all end the run with status finished.
func (e *Engine) execute(ctx context.Context, g *Graph, r *run, maxSteps int) {
	done := observability.TimedOperation()
	start := time.Now()

	ctx, runSpan := e.spans.StartRunSpan(ctx, g.ID, r.id)
	observability.LogRunStart(e.logger, r.id, g.ID, g.Entry)

	started := newEvent(EventRunStarted, r)
	started.State = r.stateSnapshot()
	e.emit(ctx, r, started)

	var (
		current = g.Entry
		step    = 0
		outcome = OutcomeCompleted
		runErr  error
	)

	for current != "" {
		if step >= maxSteps {
			outcome = OutcomeStepLimit
			e.spans.AddSpanEvent(ctx, "step_limit",
				attribute.Int("max_steps", maxSteps),
				attribute.String("node.id", current),
			)
			e.logger.Warn("step limit reached",
				slog.String("run_id", r.id),
				slog.Int("max_steps", maxSteps),
				slog.String("next_node", current),
			)
			break
		}
		step++

		r.append(StepRecord{Step: step, Node: current, Phase: PhaseStart})
		ev := newEvent(EventNodeStart, r)
		ev.Node, ev.Step, ev.State = current, step, r.stateSnapshot()
		e.emit(ctx, r, ev)

		node, ok := e.nodes.Lookup(current)
		if !ok {
			r.append(StepRecord{Step: step, Node: current, Phase: PhaseMissingNode})
			observability.LogMissingNode(e.logger, current, step)
			e.spans.AddSpanEvent(ctx, "missing_node", attribute.String("node.id", current))

			ev := newEvent(EventMissingNode, r)
			ev.Node, ev.Step, ev.Message = current, step, ErrNodeNotFound.Error()
			e.emit(ctx, r, ev)

			outcome = OutcomeMissingNode
			break
		}

		update, err := e.executeNode(ctx, r, node, current, step)
		if err != nil {
			r.append(StepRecord{Step: step, Node: current, Phase: PhaseError, Error: err.Error()})

			ev := newEvent(EventNodeException, r)
			ev.Node, ev.Step, ev.Error = current, step, err.Error()
			e.emit(ctx, r, ev)

			outcome = OutcomeNodeError
			runErr = &NodeError{NodeID: current, Step: step, Err: err}
			break
		}

		r.merge(update)
		r.append(StepRecord{Step: step, Node: current, Phase: PhaseEnd, State: r.stateSnapshot()})
		ev = newEvent(EventNodeEnd, r)
		ev.Node, ev.Step, ev.State = current, step, r.stateSnapshot()
		e.emit(ctx, r, ev)

		current = e.nextNode(g, r, current)
	}

	r.finish(outcome)
	finished := newEvent(EventRunFinished, r)
	finished.Step, finished.State, finished.Outcome = step, r.stateSnapshot(), outcome
	e.emit(ctx, r, finished)

	e.metrics.RecordRun(ctx, string(outcome), step, time.Since(start))
	observability.LogRunFinished(e.logger, r.id, string(outcome), step, done())
	e.spans.EndSpanWithError(runSpan, runErr)
}

// executeNode invokes one node with panic recovery. The node sees a shallow
// copy of the state.
func (e *Engine) executeNode(ctx context.Context, r *run, node Node, nodeID string, step int) (result State, err error) {
	observability.LogNodeStart(e.logger, nodeID, step)
	spanCtx, span := e.spans.StartNodeSpan(ctx, nodeID, step)
	nodeStart := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = &PanicError{
				NodeID: nodeID,
				Value:  rec,
				Stack:  string(debug.Stack()),
			}
		}

		duration := time.Since(nodeStart)
		e.metrics.RecordNodeExecution(spanCtx, nodeID, duration, err)
		e.spans.EndSpanWithError(span, err)
		if err != nil {
			observability.LogNodeError(e.logger, nodeID, step, err)
			return
		}
		observability.LogNodeComplete(e.logger, nodeID, step, float64(duration.Microseconds())/1000)
	}()

	nodeCtx := newNodeContext(spanCtx, e.logger, r.id, nodeID, step)
	return node.Invoke(nodeCtx, r.nodeInput(), e.tools)
}

// nextNode applies the edge rule of current against the post-node state.
// An empty result ends the run.
func (e *Engine) nextNode(g *Graph, r *run, current string) string {
	edge, ok := g.Edge(current)
	if !ok || !edge.IsBranch() {
		return edge.Target()
	}

	cond := edge.Condition()
	if cond == "" {
		e.logger.Warn("conditional edge has no condition",
			slog.String("run_id", r.id),
			slog.String("node_id", current),
		)
		return ""
	}

	onTrue, onFalse := edge.Targets()
	matched, err := e.eval.Evaluate(cond, r.nodeInput(), e.tools.Map())
	if err != nil {
		e.logger.Debug("condition evaluated to false",
			slog.String("run_id", r.id),
			slog.String("node_id", current),
			slog.String("condition", cond),
			slog.String("error", err.Error()),
		)
	}
	if matched && err == nil {
		return onTrue
	}
	return onFalse
}
