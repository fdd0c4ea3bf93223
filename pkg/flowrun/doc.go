/*
Package flowrun executes named-node workflow graphs against a shared,
mutable state map.

# Overview

A Graph names an entry node and one edge rule per node. Nodes are looked up
by name in a NodeRegistry when the run reaches them, so a graph can be
stored and loaded as plain JSON or YAML while the units of work live in Go.
Every step is recorded in the run's log and emitted as an Event to the
configured sinks: the store, the broadcast hub, and any extra EventSink.

# Basic Usage

	nodes := flowrun.NewNodeRegistry()
	nodes.RegisterFunc("count", func(ctx flowrun.Context, s flowrun.State, _ flowrun.Tools) (flowrun.State, error) {
	    n, _ := s["n"].(int)
	    return flowrun.State{"n": n + 1}, nil
	})

	engine := flowrun.NewEngine(flowrun.WithNodes(nodes))
	graphID, err := engine.CreateGraph(ctx, flowrun.GraphSpec{
	    Name:  "loop",
	    Entry: "count",
	    Edges: map[string]flowrun.Edge{
	        "count": flowrun.Branch("state.n < 3", "count", ""),
	    },
	})
	if err != nil {
	    log.Fatal(err)
	}

	runID, _ := engine.Execute(ctx, graphID, flowrun.State{"n": 0})
	rec, _ := engine.Run(runID)
	fmt.Println(rec.State["n"]) // 3

# Edges

An edge is either unconditional (Next) or conditional (Branch). A node with
no edge ends the run. Conditions are evaluated by package expr against the
post-node state and fail closed: a condition that cannot be parsed or
evaluated takes the false branch.

In JSON and YAML an unconditional edge is a node name and a conditional
edge is a mapping:

	edges:
	  split: summarize
	  measure:
	    condition: "state.length > 400"
	    true: refine
	    false: null

# Termination

Every run ends with status finished. Outcome tells why:

  - completed: an edge rule ended the run
  - missing_node: the current node has no registered unit
  - node_error: the node returned an error or panicked
  - step_limit: the step bound (default 500) was reached

# Events

Each run emits run_started, then node_start followed by node_end,
missing_node or node_exception per step, and finally run_finished. Sinks
are called synchronously in that order on the run's goroutine; a failing
sink is logged and never affects the run.

# Observability

Logging uses log/slog (WithLogger). Metrics and tracing are opt-in through
WithMetrics and WithTracing with the OpenTelemetry implementations in
package observability.
*/
package flowrun
