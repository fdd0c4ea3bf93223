package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/randalmurphal/flowrun/pkg/flowrun"
)

// MemoryStore keeps graphs and runs in memory, encoded as JSON so that
// callers never share structure with stored records.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	graphs map[string][]byte
	runs   map[string]storedRun
	seq    int
	closed bool
	logger *slog.Logger
}

// storedRun holds an encoded run with the metadata RunIDs filters on.
type storedRun struct {
	id      string
	graphID string
	data    []byte
	seq     int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := applyOptions(opts)
	return &MemoryStore{
		graphs: make(map[string][]byte),
		runs:   make(map[string]storedRun),
		logger: o.logger,
	}
}

// SaveGraph implements flowrun.GraphStore.
func (m *MemoryStore) SaveGraph(_ context.Context, g *flowrun.Graph) error {
	data, err := encodeGraph(g)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	m.graphs[g.ID] = data
	return nil
}

// LoadGraph implements flowrun.GraphStore.
func (m *MemoryStore) LoadGraph(_ context.Context, id string) (*flowrun.Graph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	data, ok := m.graphs[id]
	if !ok {
		return nil, graphNotFound(id)
	}
	return decodeGraph(id, data)
}

// LoadAllGraphs implements flowrun.GraphStore. Undecodable graphs are
// logged and skipped; a closed store yields an empty map.
func (m *MemoryStore) LoadAllGraphs(_ context.Context) map[string]*flowrun.Graph {
	out := make(map[string]*flowrun.Graph)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		m.logger.Warn("load graphs failed", slog.String("error", ErrStoreClosed.Error()))
		return out
	}
	for id, data := range m.graphs {
		g, err := decodeGraph(id, data)
		if err != nil {
			m.logger.Warn("skipping stored graph", slog.String("graph_id", id), slog.String("error", err.Error()))
			continue
		}
		out[id] = g
	}
	return out
}

// SaveRun implements flowrun.RunStore.
func (m *MemoryStore) SaveRun(_ context.Context, rec flowrun.RunRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("save run: empty id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", rec.ID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	m.seq++
	m.runs[rec.ID] = storedRun{id: rec.ID, graphID: rec.GraphID, data: data, seq: m.seq}
	return nil
}

// LoadRun implements flowrun.RunStore.
func (m *MemoryStore) LoadRun(_ context.Context, id string) (flowrun.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return flowrun.RunRecord{}, ErrStoreClosed
	}
	stored, ok := m.runs[id]
	if !ok {
		return flowrun.RunRecord{}, runNotFound(id)
	}
	var rec flowrun.RunRecord
	if err := json.Unmarshal(stored.data, &rec); err != nil {
		return flowrun.RunRecord{}, fmt.Errorf("decode run %s: %w", id, err)
	}
	return rec, nil
}

// RunIDs returns the ids of stored runs for a graph, oldest update first.
func (m *MemoryStore) RunIDs(_ context.Context, graphID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	var matched []storedRun
	for _, r := range m.runs {
		if r.graphID == graphID {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	ids := make([]string, 0, len(matched))
	for _, r := range matched {
		ids = append(ids, r.id)
	}
	return ids, nil
}

// Close implements flowrun.Store. Closing twice is safe.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
