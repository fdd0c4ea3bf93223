package flowrun

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/randalmurphal/flowrun/pkg/flowrun/observability"
)

// EventSink receives every log-affecting event of every run, in order, on the
// run's goroutine. The record is a snapshot taken right after the event was
// applied. Sinks must not fail the run: errors are theirs to log.
type EventSink interface {
	Emit(ctx context.Context, record RunRecord, event Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, record RunRecord, event Event)

// Emit calls f.
func (f EventSinkFunc) Emit(ctx context.Context, record RunRecord, event Event) {
	f(ctx, record, event)
}

// RunStore persists run records. SaveRun is a last-write-wins upsert keyed
// by run id.
type RunStore interface {
	SaveRun(ctx context.Context, record RunRecord) error
	LoadRun(ctx context.Context, runID string) (RunRecord, error)
}

// GraphStore persists graph definitions. LoadAllGraphs never fails: on any
// error it returns an empty map and logs.
type GraphStore interface {
	SaveGraph(ctx context.Context, graph *Graph) error
	LoadGraph(ctx context.Context, graphID string) (*Graph, error)
	LoadAllGraphs(ctx context.Context) map[string]*Graph
}

// Store is a durable backend for both graphs and runs.
type Store interface {
	RunStore
	GraphStore
	Close() error
}

// Delivery reports one broadcast pass.
type Delivery struct {
	// Attempted is the number of subscribers the event was offered to.
	Attempted int
	// Failed is the number of subscribers that rejected it and were pruned.
	Failed int
	// Err joins the subscriber errors, nil when Failed is zero.
	Err error
}

// Broadcaster fans an event out to the live subscribers of a run.
type Broadcaster interface {
	Deliver(ctx context.Context, runID string, event Event) Delivery
}

// RunCloser is implemented by broadcasters that keep per-run subscriber
// state. CloseRun is called once the run's terminal event is delivered.
type RunCloser interface {
	CloseRun(runID string)
}

// PersistSink writes the run record through to a RunStore after every event.
type PersistSink struct {
	store   RunStore
	logger  *slog.Logger
	metrics observability.MetricsRecorder
}

// NewPersistSink creates a sink that saves records to store. logger and
// metrics may be nil.
func NewPersistSink(store RunStore, logger *slog.Logger, metrics observability.MetricsRecorder) *PersistSink {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &PersistSink{store: store, logger: logger, metrics: metrics}
}

// Emit saves the record. Failures are logged and counted.
func (s *PersistSink) Emit(ctx context.Context, record RunRecord, event Event) {
	if err := s.store.SaveRun(ctx, record); err != nil {
		observability.LogPersistError(s.logger, record.ID, string(event.Type), err)
		s.metrics.RecordSinkFailure(ctx, "persist", string(event.Type))
	}
}

// BroadcastSink delivers every event to a Broadcaster.
type BroadcastSink struct {
	hub     Broadcaster
	logger  *slog.Logger
	metrics observability.MetricsRecorder
}

// NewBroadcastSink creates a sink that delivers events through hub.
func NewBroadcastSink(hub Broadcaster, logger *slog.Logger, metrics observability.MetricsRecorder) *BroadcastSink {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &BroadcastSink{hub: hub, logger: logger, metrics: metrics}
}

// Emit delivers the event. Failed subscribers are logged and counted.
// After the terminal event the run's subscribers are released.
func (s *BroadcastSink) Emit(ctx context.Context, record RunRecord, event Event) {
	d := s.hub.Deliver(ctx, record.ID, event)
	if d.Failed > 0 {
		observability.LogBroadcastError(s.logger, record.ID, string(event.Type), d.Failed, d.Err)
		s.metrics.RecordSinkFailure(ctx, "broadcast", string(event.Type))
	}
	if closer, ok := s.hub.(RunCloser); ok && event.Terminal() {
		closer.CloseRun(record.ID)
	}
}

// LogSink writes one structured line per event, the run's audit trail.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging to logger, or slog.Default() when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Emit logs the event. Missing nodes and node errors log at error level.
func (s *LogSink) Emit(ctx context.Context, _ RunRecord, event Event) {
	level := slog.LevelInfo
	switch event.Type {
	case EventMissingNode, EventNodeException:
		level = slog.LevelError
	}

	attrs := []slog.Attr{
		slog.String("event", string(event.Type)),
		slog.String("run_id", event.RunID),
	}
	if event.GraphID != "" {
		attrs = append(attrs, slog.String("graph_id", event.GraphID))
	}
	if event.Node != "" {
		attrs = append(attrs, slog.String("node", event.Node), slog.Int("step", event.Step))
	}
	if event.State != nil {
		attrs = append(attrs, slog.Any("state", event.State))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}
	if event.Message != "" {
		attrs = append(attrs, slog.String("message", event.Message))
	}
	if event.Outcome != "" {
		attrs = append(attrs, slog.String("outcome", string(event.Outcome)))
	}
	s.logger.LogAttrs(ctx, level, "workflow event", attrs...)
}

// MultiSink emits to each sink in order. A panicking sink is logged and
// skipped; the remaining sinks still receive the event.
type MultiSink struct {
	sinks  []EventSink
	logger *slog.Logger
}

// NewMultiSink combines sinks. Nil entries are dropped.
func NewMultiSink(logger *slog.Logger, sinks ...EventSink) *MultiSink {
	m := &MultiSink{logger: logger}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Emit forwards the event to every sink.
func (m *MultiSink) Emit(ctx context.Context, record RunRecord, event Event) {
	for _, s := range m.sinks {
		m.emitOne(ctx, s, record, event)
	}
}

// Len returns the number of combined sinks.
func (m *MultiSink) Len() int {
	return len(m.sinks)
}

func (m *MultiSink) emitOne(ctx context.Context, s EventSink, record RunRecord, event Event) {
	defer func() {
		if r := recover(); r != nil && m.logger != nil {
			m.logger.Error("event sink panicked",
				slog.String("run_id", record.ID),
				slog.String("event", string(event.Type)),
				slog.String("panic", fmt.Sprint(r)),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	s.Emit(ctx, record, event)
}
