package flowrun

import (
	"fmt"
	"sort"

	"github.com/randalmurphal/flowrun/pkg/flowrun/registry"
)

// Node is a named unit of work. It receives a shallow copy of the run's
// state and the tool registry, and returns a partial state to merge.
// Returning a nil map means no state change; returning an error stops the run.
//
// Invoke may block. The engine always waits for it before the next step.
type Node interface {
	Invoke(ctx Context, state State, tools Tools) (State, error)
}

// NodeFunc adapts a function to the Node interface.
//
// Example:
//
//	count := flowrun.NodeFunc(func(ctx flowrun.Context, s flowrun.State, _ flowrun.Tools) (flowrun.State, error) {
//	    n, _ := s["n"].(int)
//	    return flowrun.State{"n": n + 1}, nil
//	})
type NodeFunc func(ctx Context, state State, tools Tools) (State, error)

// Invoke calls f.
func (f NodeFunc) Invoke(ctx Context, state State, tools Tools) (State, error) {
	return f(ctx, state, tools)
}

// NodeRegistry maps node names to units. It is safe for concurrent use;
// re-registering a name replaces the previous unit for subsequent lookups.
type NodeRegistry struct {
	nodes *registry.Registry[string, Node]
}

// NewNodeRegistry creates an empty node registry.
func NewNodeRegistry() *NodeRegistry {
	return &NodeRegistry{nodes: registry.New[string, Node]()}
}

// Register adds or replaces a node. Empty names and nil units are rejected.
func (r *NodeRegistry) Register(name string, node Node) error {
	if name == "" {
		return fmt.Errorf("%w: empty node name", ErrInvalidNode)
	}
	if node == nil {
		return fmt.Errorf("%w: nil node %q", ErrInvalidNode, name)
	}
	if fn, ok := node.(NodeFunc); ok && fn == nil {
		return fmt.Errorf("%w: nil node %q", ErrInvalidNode, name)
	}
	r.nodes.Register(name, node)
	return nil
}

// RegisterFunc is shorthand for Register(name, NodeFunc(fn)).
func (r *NodeRegistry) RegisterFunc(name string, fn func(Context, State, Tools) (State, error)) error {
	if fn == nil {
		return fmt.Errorf("%w: nil node %q", ErrInvalidNode, name)
	}
	return r.Register(name, NodeFunc(fn))
}

// Lookup returns the unit registered under name.
func (r *NodeRegistry) Lookup(name string) (Node, bool) {
	return r.nodes.Get(name)
}

// Unregister removes a node.
func (r *NodeRegistry) Unregister(name string) {
	r.nodes.Delete(name)
}

// Names returns the registered node names, sorted.
func (r *NodeRegistry) Names() []string {
	names := r.nodes.Keys()
	sort.Strings(names)
	return names
}

// Len returns the number of registered nodes.
func (r *NodeRegistry) Len() int {
	return r.nodes.Len()
}

// Tools is the read-only view of the tool registry handed to nodes and to
// condition expressions. The engine never interprets tool values.
type Tools interface {
	// Lookup returns the tool registered under name.
	Lookup(name string) (any, bool)
	// Names returns the registered tool names, sorted.
	Names() []string
	// Map returns a snapshot suitable for condition evaluation.
	Map() map[string]any
}

// ToolRegistry maps tool names to arbitrary values (functions, clients,
// constants). It implements Tools.
type ToolRegistry struct {
	tools *registry.Registry[string, any]
}

var _ Tools = (*ToolRegistry)(nil)

// NewToolRegistry creates an empty tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: registry.New[string, any]()}
}

// Register adds or replaces a tool. Empty names and nil values are rejected.
func (r *ToolRegistry) Register(name string, tool any) error {
	if name == "" {
		return fmt.Errorf("%w: empty tool name", ErrInvalidNode)
	}
	if tool == nil {
		return fmt.Errorf("%w: nil tool %q", ErrInvalidNode, name)
	}
	r.tools.Register(name, tool)
	return nil
}

// Lookup returns the tool registered under name.
func (r *ToolRegistry) Lookup(name string) (any, bool) {
	return r.tools.Get(name)
}

// Names returns the registered tool names, sorted.
func (r *ToolRegistry) Names() []string {
	names := r.tools.Keys()
	sort.Strings(names)
	return names
}

// Map returns a snapshot of the registry.
func (r *ToolRegistry) Map() map[string]any {
	return r.tools.Snapshot()
}
