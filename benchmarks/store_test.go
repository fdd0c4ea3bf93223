package benchmarks

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/randalmurphal/flowrun/pkg/flowrun"
	"github.com/randalmurphal/flowrun/pkg/flowrun/broadcast"
	"github.com/randalmurphal/flowrun/pkg/flowrun/store"
)

func createLargeRecord() flowrun.RunRecord {
	items := make([]any, 100)
	for i := range items {
		items[i] = fmt.Sprintf("item-%d", i)
	}
	metadata := make(map[string]any, 50)
	for i := range 50 {
		metadata[fmt.Sprintf("key-%d", i)] = fmt.Sprintf("value-%d", i)
	}
	state := flowrun.State{"items": items, "metadata": metadata, "counter": 42}

	log := make([]flowrun.StepRecord, 0, 20)
	for step := 1; step <= 10; step++ {
		log = append(log,
			flowrun.StepRecord{Step: step, Node: nodeID(step), Phase: flowrun.PhaseStart},
			flowrun.StepRecord{Step: step, Node: nodeID(step), Phase: flowrun.PhaseEnd, State: state},
		)
	}
	return flowrun.RunRecord{
		ID:        "bench-run",
		GraphID:   "bench-graph",
		State:     state,
		Status:    flowrun.StatusRunning,
		Current:   nodeID(10),
		Log:       log,
		StartedAt: time.Now().UTC(),
	}
}

func createSQLiteStore(b *testing.B) *store.SQLiteStore {
	b.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"),
		store.WithLogger(slog.New(slog.DiscardHandler)))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = s.Close() })
	return s
}

// BenchmarkMemoryStore_SaveRun measures in-memory run writes.
func BenchmarkMemoryStore_SaveRun(b *testing.B) {
	s := store.NewMemoryStore()
	rec := createLargeRecord()
	ctx := context.Background()
	for b.Loop() {
		_ = s.SaveRun(ctx, rec)
	}
}

// BenchmarkMemoryStore_LoadRun measures in-memory run reads.
func BenchmarkMemoryStore_LoadRun(b *testing.B) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	_ = s.SaveRun(ctx, createLargeRecord())
	for b.Loop() {
		_, _ = s.LoadRun(ctx, "bench-run")
	}
}

// BenchmarkSQLiteStore_SaveRun measures SQLite upserts.
func BenchmarkSQLiteStore_SaveRun(b *testing.B) {
	s := createSQLiteStore(b)
	rec := createLargeRecord()
	ctx := context.Background()
	for b.Loop() {
		_ = s.SaveRun(ctx, rec)
	}
}

// BenchmarkSQLiteStore_LoadRun measures SQLite reads.
func BenchmarkSQLiteStore_LoadRun(b *testing.B) {
	s := createSQLiteStore(b)
	ctx := context.Background()
	_ = s.SaveRun(ctx, createLargeRecord())
	for b.Loop() {
		_, _ = s.LoadRun(ctx, "bench-run")
	}
}

// BenchmarkRun_WithPersistence runs a linear graph writing through to SQLite.
func BenchmarkRun_WithPersistence(b *testing.B) {
	e := newEngine(flowrun.WithStore(createSQLiteStore(b)))
	benchmarkRun(b, e, mustCreate(b, e, linearSpec(10)), emptyState)
}

// BenchmarkRun_WithoutPersistence is the baseline for BenchmarkRun_WithPersistence.
func BenchmarkRun_WithoutPersistence(b *testing.B) {
	e := newEngine()
	benchmarkRun(b, e, mustCreate(b, e, linearSpec(10)), emptyState)
}

// BenchmarkHub_Deliver fans one event out to 100 channel subscribers.
func BenchmarkHub_Deliver(b *testing.B) {
	hub := broadcast.NewHub(broadcast.Config{})
	subs := make([]*broadcast.ChannelSubscriber, 100)
	for i := range subs {
		subs[i] = broadcast.NewChannelSubscriber(1)
		if _, err := hub.Register("run", subs[i]); err != nil {
			b.Fatal(err)
		}
	}
	ev := flowrun.Event{Type: flowrun.EventNodeEnd, RunID: "run", Node: "a", Step: 1}
	ctx := context.Background()
	for b.Loop() {
		hub.Deliver(ctx, "run", ev)
		for _, s := range subs {
			<-s.Events()
		}
	}
}
