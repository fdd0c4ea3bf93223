package flowrun

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph and node registration.
var (
	// ErrGraphNotFound indicates Execute or Start referenced an unknown graph id.
	ErrGraphNotFound = errors.New("graph not found")

	// ErrInvalidGraph indicates a submitted graph is missing required fields.
	ErrInvalidGraph = errors.New("invalid graph")

	// ErrInvalidNode indicates a registration with an empty name or nil unit.
	ErrInvalidNode = errors.New("invalid node registration")

	// ErrNodeNotFound indicates the current node has no registered unit.
	// It is recorded in the run, never returned by Execute.
	ErrNodeNotFound = errors.New("node not registered")
)

// Sentinel errors for run inspection.
var (
	// ErrRunNotFound indicates no run with the given id exists in memory or the store.
	ErrRunNotFound = errors.New("run not found")
)

// NodeError wraps an error returned by a node with its step context.
type NodeError struct {
	// NodeID is the node that failed.
	NodeID string
	// Step is the step index at which it failed.
	Step int
	// Err is the underlying error from the node.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s (step %d): %v", e.NodeID, e.Step, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from node execution.
// It includes the stack trace for debugging.
type PanicError struct {
	// NodeID is the identifier of the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}
