package flowrun_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/randalmurphal/flowrun/pkg/flowrun"
	"github.com/stretchr/testify/require"
)

// recordingSink keeps every event and the record emitted with it.
type recordingSink struct {
	mu      sync.Mutex
	events  []flowrun.Event
	records []flowrun.RunRecord
}

func (s *recordingSink) Emit(_ context.Context, rec flowrun.RunRecord, ev flowrun.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	s.records = append(s.records, rec)
}

func (s *recordingSink) Events() []flowrun.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]flowrun.Event(nil), s.events...)
}

func (s *recordingSink) Types() []flowrun.EventType {
	var types []flowrun.EventType
	for _, ev := range s.Events() {
		types = append(types, ev.Type)
	}
	return types
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// failingStore rejects every write.
type failingStore struct {
	mu    sync.Mutex
	saves int
}

var errDiskFull = errors.New("disk full")

func (s *failingStore) SaveRun(context.Context, flowrun.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	return errDiskFull
}

func (s *failingStore) LoadRun(_ context.Context, id string) (flowrun.RunRecord, error) {
	return flowrun.RunRecord{}, flowrun.ErrRunNotFound
}

func (s *failingStore) SaveGraph(context.Context, *flowrun.Graph) error { return errDiskFull }

func (s *failingStore) LoadGraph(context.Context, string) (*flowrun.Graph, error) {
	return nil, flowrun.ErrGraphNotFound
}

func (s *failingStore) LoadAllGraphs(context.Context) map[string]*flowrun.Graph {
	return map[string]*flowrun.Graph{}
}

func (s *failingStore) Close() error { return nil }

func (s *failingStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// returning builds a node that always returns update.
func returning(update flowrun.State) flowrun.NodeFunc {
	return func(flowrun.Context, flowrun.State, flowrun.Tools) (flowrun.State, error) {
		return update, nil
	}
}

// increment adds one to state["n"].
func increment(_ flowrun.Context, s flowrun.State, _ flowrun.Tools) (flowrun.State, error) {
	n, _ := s["n"].(int)
	return flowrun.State{"n": n + 1}, nil
}

// mustCreateGraph registers a graph and returns its id.
func mustCreateGraph(t *testing.T, engine *flowrun.Engine, spec flowrun.GraphSpec) string {
	t.Helper()
	if spec.Name == "" {
		spec.Name = t.Name()
	}
	id, err := engine.CreateGraph(context.Background(), spec)
	require.NoError(t, err)
	return id
}

// mustRun executes a graph synchronously and returns the finished record.
func mustRun(t *testing.T, engine *flowrun.Engine, graphID string, initial flowrun.State, opts ...flowrun.RunOption) flowrun.RunRecord {
	t.Helper()
	runID, err := engine.Execute(context.Background(), graphID, initial, opts...)
	require.NoError(t, err)
	rec, ok := engine.Run(runID)
	require.True(t, ok)
	return rec
}

func phases(rec flowrun.RunRecord) []flowrun.Phase {
	out := make([]flowrun.Phase, 0, len(rec.Log))
	for _, l := range rec.Log {
		out = append(out, l.Phase)
	}
	return out
}
