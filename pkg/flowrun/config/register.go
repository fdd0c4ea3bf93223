package config

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/randalmurphal/flowrun/pkg/flowrun"
)

// GraphRegistrar is the part of *flowrun.Engine used to register graph
// definitions at startup.
type GraphRegistrar interface {
	CreateGraph(ctx context.Context, spec flowrun.GraphSpec) (string, error)
	Graph(id string) (*flowrun.Graph, bool)
	GraphIDs() []string
}

var _ GraphRegistrar = (*flowrun.Engine)(nil)

// EnsureGraph returns the id of a registered graph with the same name and
// definition as spec, creating the graph when there is none. created
// reports whether CreateGraph was called.
//
// Call it after Engine.LoadGraphs so that restarting a process against the
// same store reuses the stored graph instead of adding a copy per start.
func EnsureGraph(ctx context.Context, r GraphRegistrar, spec flowrun.GraphSpec) (id string, created bool, err error) {
	want, err := canonicalSpec(spec)
	if err != nil {
		return "", false, err
	}
	for _, existing := range r.GraphIDs() {
		g, ok := r.Graph(existing)
		if !ok || g.Name != spec.Name {
			continue
		}
		have, err := canonicalSpec(g.Spec())
		if err != nil {
			continue
		}
		if have == want {
			return existing, false, nil
		}
	}

	id, err = r.CreateGraph(ctx, spec)
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// RegisterGraphFiles loads each graph file and ensures it is registered.
// The result maps graph names to ids. Loading stops at the first error.
func RegisterGraphFiles(ctx context.Context, r GraphRegistrar, paths ...string) (map[string]string, error) {
	ids := make(map[string]string, len(paths))
	for _, path := range paths {
		g, err := LoadGraphFile(path)
		if err != nil {
			return ids, fmt.Errorf("graph file %s: %w", path, err)
		}
		if prev, ok := ids[g.Name]; ok {
			return ids, fmt.Errorf("graph file %s: name %q already registered as %s", path, g.Name, prev)
		}
		id, _, err := EnsureGraph(ctx, r, g.Spec())
		if err != nil {
			return ids, fmt.Errorf("graph file %s: %w", path, err)
		}
		ids[g.Name] = id
	}
	return ids, nil
}

// RegisterGraphs registers the graph files listed in the settings.
func (s Settings) RegisterGraphs(ctx context.Context, r GraphRegistrar) (map[string]string, error) {
	return RegisterGraphFiles(ctx, r, s.Graphs...)
}

// canonicalSpec renders a spec as JSON with empty maps in place of nil, so
// a definition compares equal after a round trip through a store.
func canonicalSpec(spec flowrun.GraphSpec) (string, error) {
	if spec.Nodes == nil {
		spec.Nodes = map[string]any{}
	}
	if spec.Edges == nil {
		spec.Edges = map[string]flowrun.Edge{}
	}
	data, err := json.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("encode graph %s: %w", spec.Name, err)
	}
	return string(data), nil
}
