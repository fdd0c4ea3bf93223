// Package store provides durable backends for flowrun graphs and runs.
//
// Both implementations satisfy flowrun.Store: MemoryStore for tests and
// single-process use, SQLiteStore for persistence across restarts. Records
// are stored as JSON, so values read back have JSON types (numbers decode
// as float64) regardless of the backend.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/flowrun/pkg/flowrun"
)

// ErrStoreClosed indicates the store has been closed.
var ErrStoreClosed = errors.New("store closed")

var (
	_ flowrun.Store = (*MemoryStore)(nil)
	_ flowrun.Store = (*SQLiteStore)(nil)
)

// Option configures a store.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for the failures LoadAllGraphs swallows.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func encodeGraph(g *flowrun.Graph) ([]byte, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil graph", flowrun.ErrInvalidGraph)
	}
	if g.ID == "" {
		return nil, fmt.Errorf("%w: id is required", flowrun.ErrInvalidGraph)
	}
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encode graph %s: %w", g.ID, err)
	}
	return data, nil
}

func decodeGraph(id string, data []byte) (*flowrun.Graph, error) {
	var g flowrun.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode graph %s: %w", id, err)
	}
	if g.ID == "" {
		g.ID = id
	}
	if g.Nodes == nil {
		g.Nodes = map[string]any{}
	}
	if g.Edges == nil {
		g.Edges = map[string]flowrun.Edge{}
	}
	return &g, nil
}

func graphNotFound(id string) error {
	return fmt.Errorf("%w: %s", flowrun.ErrGraphNotFound, id)
}

func runNotFound(id string) error {
	return fmt.Errorf("%w: %s", flowrun.ErrRunNotFound, id)
}
