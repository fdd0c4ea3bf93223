package benchmarks

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/randalmurphal/flowrun/pkg/flowrun"
	"github.com/randalmurphal/flowrun/pkg/flowrun/expr"
)

func noopNode(flowrun.Context, flowrun.State, flowrun.Tools) (flowrun.State, error) {
	return nil, nil
}

func incrementNode(_ flowrun.Context, s flowrun.State, _ flowrun.Tools) (flowrun.State, error) {
	n, _ := s["n"].(int)
	return flowrun.State{"n": n + 1}, nil
}

func nodeID(n int) string {
	return fmt.Sprintf("node%d", n)
}

func newEngine(opts ...flowrun.Option) *flowrun.Engine {
	nodes := flowrun.NewNodeRegistry()
	for i := range 100 {
		_ = nodes.RegisterFunc(nodeID(i), noopNode)
	}
	_ = nodes.RegisterFunc("inc", incrementNode)
	_ = nodes.RegisterFunc("high", noopNode)
	_ = nodes.RegisterFunc("low", noopNode)

	opts = append([]flowrun.Option{
		flowrun.WithNodes(nodes),
		flowrun.WithLogger(slog.New(slog.DiscardHandler)),
	}, opts...)
	return flowrun.NewEngine(opts...)
}

func linearSpec(n int) flowrun.GraphSpec {
	edges := make(map[string]flowrun.Edge, n)
	for i := range n - 1 {
		edges[nodeID(i)] = flowrun.Next(nodeID(i + 1))
	}
	return flowrun.GraphSpec{Name: fmt.Sprintf("linear-%d", n), Entry: nodeID(0), Edges: edges}
}

func branchingSpec() flowrun.GraphSpec {
	return flowrun.GraphSpec{
		Name:  "branching",
		Entry: nodeID(0),
		Edges: map[string]flowrun.Edge{
			nodeID(0): flowrun.Branch("value > 50", "high", "low"),
		},
	}
}

func loopSpec(iterations int) flowrun.GraphSpec {
	return flowrun.GraphSpec{
		Name:  fmt.Sprintf("loop-%d", iterations),
		Entry: "inc",
		Edges: map[string]flowrun.Edge{
			"inc": flowrun.Branch(fmt.Sprintf("n < %d", iterations), "inc", ""),
		},
	}
}

func mustCreate(b *testing.B, e *flowrun.Engine, spec flowrun.GraphSpec) string {
	b.Helper()
	id, err := e.CreateGraph(context.Background(), spec)
	if err != nil {
		b.Fatal(err)
	}
	return id
}

// BenchmarkCreateGraph_Linear_10 registers a 10-node linear graph.
func BenchmarkCreateGraph_Linear_10(b *testing.B) {
	e := newEngine()
	spec := linearSpec(10)
	for b.Loop() {
		mustCreate(b, e, spec)
	}
}

// BenchmarkCreateGraph_Linear_100 registers a 100-node linear graph.
func BenchmarkCreateGraph_Linear_100(b *testing.B) {
	e := newEngine()
	spec := linearSpec(100)
	for b.Loop() {
		mustCreate(b, e, spec)
	}
}

// BenchmarkGraphClone measures the copy made on every Graph lookup.
func BenchmarkGraphClone(b *testing.B) {
	spec := linearSpec(50)
	g := &flowrun.Graph{ID: "g", Name: spec.Name, Entry: spec.Entry, Edges: spec.Edges, Nodes: map[string]any{}}
	for b.Loop() {
		_ = g.Clone()
	}
}

// BenchmarkEvaluate_Simple parses and evaluates a comparison.
func BenchmarkEvaluate_Simple(b *testing.B) {
	state := map[string]any{"n": 2}
	for b.Loop() {
		_, _ = expr.Eval("n < 3", state, nil)
	}
}

// BenchmarkEvaluate_Complex parses and evaluates a compound condition.
func BenchmarkEvaluate_Complex(b *testing.B) {
	state := map[string]any{"summary_length": 140, "limit": 120, "chunks": []any{"a", "b"}, "status": "ready"}
	tools := map[string]any{"summarize": struct{}{}}
	const condition = "state.get('summary_length', 0) > state.get('limit', 100) and len(state.chunks) >= 2 and 'summarize' in tools and status != 'done'"
	for b.Loop() {
		_, _ = expr.Eval(condition, state, tools)
	}
}

// BenchmarkEvaluate_Compiled evaluates a pre-parsed program.
func BenchmarkEvaluate_Compiled(b *testing.B) {
	prog, err := expr.New().Compile("state.get('summary_length', 0) > state.get('limit', 100)")
	if err != nil {
		b.Fatal(err)
	}
	state := map[string]any{"summary_length": 140, "limit": 120}
	for b.Loop() {
		_, _ = prog.Run(state, nil)
	}
}

// BenchmarkEvaluate_SyntaxError measures the fail-closed path.
func BenchmarkEvaluate_SyntaxError(b *testing.B) {
	for b.Loop() {
		_, _ = expr.Eval("invalid ~ syntax", nil, nil)
	}
}
