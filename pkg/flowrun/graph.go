package flowrun

import (
	"encoding/json"
	"fmt"
	"maps"

	"gopkg.in/yaml.v3"
)

// Graph is an immutable plan: named nodes, an entry point, and one edge
// rule per node. Once registered with an Engine a Graph is never mutated,
// so concurrent runs share it safely.
//
// Nodes carries opaque metadata for external tooling; the engine resolves
// node names through its NodeRegistry, not through Nodes. Entry does not
// have to appear in Nodes or Edges: a dangling entry simply produces a
// missing_node step at run time.
type Graph struct {
	ID    string          `json:"id,omitempty" yaml:"id,omitempty"`
	Name  string          `json:"name" yaml:"name"`
	Nodes map[string]any  `json:"nodes" yaml:"nodes"`
	Edges map[string]Edge `json:"edges" yaml:"edges"`
	Entry string          `json:"entry" yaml:"entry"`
}

// GraphSpec is the payload submitted to create a graph. The engine assigns the ID.
type GraphSpec struct {
	Name  string          `json:"name" yaml:"name"`
	Nodes map[string]any  `json:"nodes" yaml:"nodes"`
	Edges map[string]Edge `json:"edges" yaml:"edges"`
	Entry string          `json:"entry" yaml:"entry"`
}

// Validate checks the fields a graph cannot run without.
func (s GraphSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidGraph)
	}
	if s.Entry == "" {
		return fmt.Errorf("%w: entry is required", ErrInvalidGraph)
	}
	return nil
}

// Spec returns the creation payload for g, without the id.
func (g *Graph) Spec() GraphSpec {
	return GraphSpec{Name: g.Name, Nodes: g.Nodes, Edges: g.Edges, Entry: g.Entry}
}

// Edge returns the edge rule for a node. The zero Edge (no rule) terminates.
func (g *Graph) Edge(node string) (Edge, bool) {
	e, ok := g.Edges[node]
	return e, ok
}

// Clone returns a deep copy of the graph. Node metadata is copied through
// nested maps and slices so the copy shares no mutable structure.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	out := &Graph{
		ID:    g.ID,
		Name:  g.Name,
		Entry: g.Entry,
		Nodes: CloneValue(g.Nodes).(map[string]any),
		Edges: maps.Clone(g.Edges),
	}
	if out.Edges == nil {
		out.Edges = map[string]Edge{}
	}
	return out
}

// Edge is one node's transition rule. It is a closed union:
//
//   - zero value: no transition, the run stops after the node
//   - Next(to): unconditional transition
//   - Branch(cond, onTrue, onFalse): conditional transition; an empty
//     target on the taken side stops the run
//
// A Branch with an empty condition is malformed and stops the run.
type Edge struct {
	to        string
	condition string
	onTrue    string
	onFalse   string
	branch    bool
}

// Next returns an unconditional edge to node.
func Next(node string) Edge {
	return Edge{to: node}
}

// Branch returns a conditional edge.
func Branch(condition, onTrue, onFalse string) Edge {
	return Edge{condition: condition, onTrue: onTrue, onFalse: onFalse, branch: true}
}

// IsBranch reports whether the edge is conditional.
func (e Edge) IsBranch() bool { return e.branch }

// IsTerminal reports whether the edge always stops the run.
func (e Edge) IsTerminal() bool {
	return !e.branch && e.to == ""
}

// Target returns the unconditional target, or "" for branches.
func (e Edge) Target() string { return e.to }

// Condition returns the branch condition expression.
func (e Edge) Condition() string { return e.condition }

// Targets returns the true and false targets of a branch.
func (e Edge) Targets() (onTrue, onFalse string) { return e.onTrue, e.onFalse }

// String implements fmt.Stringer.
func (e Edge) String() string {
	switch {
	case e.branch:
		return fmt.Sprintf("if %s then %q else %q", e.condition, e.onTrue, e.onFalse)
	case e.to == "":
		return "stop"
	default:
		return "-> " + e.to
	}
}

// branchWire is the serialized form of a conditional edge.
type branchWire struct {
	Condition *string `json:"condition,omitempty" yaml:"condition,omitempty"`
	True      string  `json:"true,omitempty" yaml:"true,omitempty"`
	False     string  `json:"false,omitempty" yaml:"false,omitempty"`
}

func (e Edge) wire() any {
	if !e.branch {
		if e.to == "" {
			return nil
		}
		return e.to
	}
	w := branchWire{True: e.onTrue, False: e.onFalse}
	if e.condition != "" {
		c := e.condition
		w.Condition = &c
	}
	return w
}

func edgeFromWire(w branchWire) Edge {
	e := Edge{branch: true, onTrue: w.True, onFalse: w.False}
	if w.Condition != nil {
		e.condition = *w.Condition
	}
	return e
}

// MarshalJSON encodes an unconditional edge as a string and a branch as
// {"condition", "true", "false"}.
func (e Edge) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.wire())
}

// UnmarshalJSON accepts a string, an object, or null.
func (e *Edge) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*e = Edge{}
	case string:
		*e = Next(v)
	case map[string]any:
		var w branchWire
		if err := json.Unmarshal(data, &w); err != nil {
			return fmt.Errorf("edge: %w", err)
		}
		*e = edgeFromWire(w)
	default:
		return fmt.Errorf("edge: unsupported JSON value %T", raw)
	}
	return nil
}

// MarshalYAML mirrors MarshalJSON.
func (e Edge) MarshalYAML() (any, error) {
	return e.wire(), nil
}

// UnmarshalYAML accepts a scalar target, a mapping, or null.
func (e *Edge) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*e = Edge{}
			return nil
		}
		*e = Next(value.Value)
	case yaml.MappingNode:
		// Keys are read raw: unquoted true/false keys resolve to booleans in YAML.
		var w branchWire
		for i := 0; i+1 < len(value.Content); i += 2 {
			key, val := value.Content[i], value.Content[i+1]
			if val.Kind != yaml.ScalarNode {
				return fmt.Errorf("edge: line %d: %s must be a scalar", val.Line, key.Value)
			}
			if val.Tag == "!!null" {
				continue
			}
			switch key.Value {
			case "condition":
				c := val.Value
				w.Condition = &c
			case "true":
				w.True = val.Value
			case "false":
				w.False = val.Value
			default:
				return fmt.Errorf("edge: line %d: unknown key %q", key.Line, key.Value)
			}
		}
		*e = edgeFromWire(w)
	default:
		return fmt.Errorf("edge: line %d: expected a node name or a condition mapping", value.Line)
	}
	return nil
}
