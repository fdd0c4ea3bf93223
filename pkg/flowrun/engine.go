package flowrun

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/randalmurphal/flowrun/pkg/flowrun/expr"
	"github.com/randalmurphal/flowrun/pkg/flowrun/observability"
	"github.com/randalmurphal/flowrun/pkg/flowrun/registry"
)

// Engine executes runs of registered graphs. It owns the graph and run
// registries; nodes and tools are supplied by the caller.
//
// An Engine is safe for concurrent use. Distinct runs execute independently;
// within one run steps are strictly sequential.
type Engine struct {
	nodes *NodeRegistry
	tools *ToolRegistry
	store Store
	sink  *MultiSink
	eval  *expr.Evaluator

	graphs *registry.Registry[string, *Graph]
	runs   *registry.Registry[string, *run]

	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	maxSteps int

	wg sync.WaitGroup
}

// NewEngine creates an engine.
//
// Example:
//
//	nodes := flowrun.NewNodeRegistry()
//	nodes.RegisterFunc("count", count)
//	engine := flowrun.NewEngine(
//	    flowrun.WithNodes(nodes),
//	    flowrun.WithStore(sqliteStore),
//	    flowrun.WithBroadcaster(hub),
//	)
func NewEngine(opts ...Option) *Engine {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.nodes == nil {
		cfg.nodes = NewNodeRegistry()
	}
	if cfg.tools == nil {
		cfg.tools = NewToolRegistry()
	}
	if cfg.eval == nil {
		cfg.eval = expr.New()
	}

	var sinks []EventSink
	if cfg.store != nil {
		sinks = append(sinks, NewPersistSink(cfg.store, cfg.logger, cfg.metrics))
	}
	if cfg.hub != nil {
		sinks = append(sinks, NewBroadcastSink(cfg.hub, cfg.logger, cfg.metrics))
	}
	if cfg.logSink {
		sinks = append(sinks, NewLogSink(cfg.logger))
	}
	sinks = append(sinks, cfg.sinks...)

	return &Engine{
		nodes:    cfg.nodes,
		tools:    cfg.tools,
		store:    cfg.store,
		sink:     NewMultiSink(cfg.logger, sinks...),
		eval:     cfg.eval,
		graphs:   registry.New[string, *Graph](),
		runs:     registry.New[string, *run](),
		logger:   cfg.logger,
		metrics:  cfg.metrics,
		spans:    cfg.spans,
		maxSteps: cfg.maxSteps,
	}
}

// Nodes returns the node registry.
func (e *Engine) Nodes() *NodeRegistry { return e.nodes }

// Tools returns the tool registry.
func (e *Engine) Tools() *ToolRegistry { return e.tools }

// CreateGraph assigns a fresh id to spec, persists it when a store is
// configured, and makes it available to Execute. A persist failure is
// returned and the graph is not registered.
func (e *Engine) CreateGraph(ctx context.Context, spec GraphSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}

	g := (&Graph{
		ID:    uuid.New().String(),
		Name:  spec.Name,
		Nodes: spec.Nodes,
		Edges: spec.Edges,
		Entry: spec.Entry,
	}).Clone()
	if g.Nodes == nil {
		g.Nodes = map[string]any{}
	}

	if e.store != nil {
		if err := e.store.SaveGraph(ctx, g); err != nil {
			return "", fmt.Errorf("save graph %s: %w", g.ID, err)
		}
	}
	e.graphs.Register(g.ID, g)

	e.logger.Info("graph created",
		slog.String("graph_id", g.ID),
		slog.String("name", g.Name),
		slog.String("entry", g.Entry),
	)
	return g.ID, nil
}

// RegisterGraph makes an already-identified graph available in memory
// without persisting it. A graph with the same id is replaced.
func (e *Engine) RegisterGraph(g *Graph) error {
	if g == nil {
		return fmt.Errorf("%w: nil graph", ErrInvalidGraph)
	}
	if g.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidGraph)
	}
	if err := g.Spec().Validate(); err != nil {
		return err
	}
	e.graphs.Register(g.ID, g.Clone())
	return nil
}

// LoadGraphs registers every graph in the store and returns how many were
// loaded. Without a store it does nothing.
func (e *Engine) LoadGraphs(ctx context.Context) int {
	if e.store == nil {
		return 0
	}
	loaded := 0
	for id, g := range e.store.LoadAllGraphs(ctx) {
		if g == nil {
			continue
		}
		if g.ID == "" {
			g.ID = id
		}
		if err := e.RegisterGraph(g); err != nil {
			e.logger.Warn("skipping stored graph",
				slog.String("graph_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		loaded++
	}
	e.logger.Info("graphs loaded", slog.Int("count", loaded))
	return loaded
}

// Graph returns a copy of a registered graph.
func (e *Engine) Graph(id string) (*Graph, bool) {
	g, ok := e.graphs.Get(id)
	if !ok {
		return nil, false
	}
	return g.Clone(), true
}

// GraphIDs returns the registered graph ids, sorted.
func (e *Engine) GraphIDs() []string {
	ids := e.graphs.Keys()
	sort.Strings(ids)
	return ids
}

// Run returns a snapshot of an in-memory run. It is safe to call while the
// run is executing.
func (e *Engine) Run(id string) (RunRecord, bool) {
	r, ok := e.runs.Get(id)
	if !ok {
		return RunRecord{}, false
	}
	return r.record(), true
}

// Runs returns snapshots of all in-memory runs keyed by id.
func (e *Engine) Runs() map[string]RunRecord {
	out := make(map[string]RunRecord, e.runs.Len())
	e.runs.Range(func(id string, r *run) bool {
		out[id] = r.record()
		return true
	})
	return out
}

// LoadRun returns an in-memory run, or falls back to the store for runs from
// earlier processes. The error wraps ErrRunNotFound when neither has it.
func (e *Engine) LoadRun(ctx context.Context, id string) (RunRecord, error) {
	if rec, ok := e.Run(id); ok {
		return rec, nil
	}
	if e.store == nil {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return e.store.LoadRun(ctx, id)
}

// Wait blocks until every run launched with Start has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// prepare resolves the graph and registers a new run for it.
func (e *Engine) prepare(graphID string, initial State, opts []RunOption) (*Graph, *run, int, error) {
	g, ok := e.graphs.Get(graphID)
	if !ok {
		return nil, nil, 0, fmt.Errorf("%w: %s", ErrGraphNotFound, graphID)
	}

	cfg := runConfig{maxSteps: e.maxSteps}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.runID == "" {
		cfg.runID = uuid.New().String()
	}

	r := newRun(cfg.runID, g.ID, g.Entry, initial)
	e.runs.Register(r.id, r)
	return g, r, cfg.maxSteps, nil
}

// emit hands a snapshot of the run and the event to every sink.
func (e *Engine) emit(ctx context.Context, r *run, ev Event) {
	if e.sink.Len() == 0 {
		return
	}
	e.sink.Emit(ctx, r.record(), ev)
}
