package operation

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrNoStartNode is returned when a graph has no start node defined.
	ErrNoStartNode = errors.New("operation: no start node defined")

	// ErrNodeNotFound is returned when a referenced node doesn't exist.
	ErrNodeNotFound = errors.New("operation: node not found")

	// ErrDuplicateNode is returned when a node name is declared twice.
	ErrDuplicateNode = errors.New("operation: duplicate node")

	// ErrNilBody is returned when a node is declared without a body.
	ErrNilBody = errors.New("operation: node has no body")

	// ErrUndeclaredStatus is returned when an edge expects a status outside
	// the graph's declared status set.
	ErrUndeclaredStatus = errors.New("operation: undeclared status")
)

// ValidationError describes why a graph declaration was rejected.
type ValidationError struct {
	// Op is the declaration step that failed.
	Op string
	// Node is the node involved, if any.
	Node string
	Err  error
}

func (e *ValidationError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("graph validation failed: %s: node %q: %v", e.Op, e.Node, e.Err)
	}
	return fmt.Sprintf("graph validation failed: %s: %v", e.Op, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// StatusError is the error view of a failed Result.
type StatusError struct {
	Status  Status
	Aborted bool
}

func (e *StatusError) Error() string {
	if e.Aborted {
		return "operation aborted"
	}
	if e.Status == "" {
		return "operation failed"
	}
	return "operation failed: " + string(e.Status)
}
