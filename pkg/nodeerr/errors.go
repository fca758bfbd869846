// Package nodeerr defines the error taxonomy shared by the graph model, the
// operation registry and the evaluator.
//
// Every failure is reported as a *Error carrying the identity chain of the
// node that produced it, so an editor can highlight the failing node. The
// sentinel errors below classify the failure and work with errors.Is.
package nodeerr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors, one per error kind.
var (
	ErrCycleDetected              = errors.New("cycle detected")
	ErrUnknownOperation           = errors.New("unknown operation")
	ErrArityMismatch              = errors.New("arity mismatch")
	ErrTypeMismatch               = errors.New("type mismatch")
	ErrPortNotFound               = errors.New("port not found")
	ErrDuplicateConnectionToInput = errors.New("duplicate connection to input")
	ErrOpPanic                    = errors.New("operation failed")
	ErrNodeNotFound               = errors.New("node not found")
	ErrNoRenderedNode             = errors.New("network has no rendered node")
	ErrRecursiveNetwork           = errors.New("recursive network reference")
	ErrRegistryFrozen             = errors.New("registry is frozen")
	ErrAlreadyRegistered          = errors.New("operation already registered")
)

// Error provides structured information about a failed graph operation.
type Error struct {
	Op       string   // Operation that failed (e.g., "Evaluate", "Connect", "Invoke")
	Kind     error    // One of the sentinel errors
	Path     []string // Node identity chain, outermost compound node first
	Port     string   // Port name (if applicable)
	Name     string   // Operation name (for registry failures)
	Expected string   // Expected type or count
	Found    string   // Found type or count
	Cycle    []string // Ordered node names on a detected cycle
	Cause    error    // Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if len(e.Path) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(e.Path, "/"))
	}
	if e.Port != "" {
		b.WriteString(" port ")
		b.WriteString(e.Port)
	}
	b.WriteString(": ")
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	switch {
	case len(e.Cycle) > 0:
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Cycle, " -> "))
	case e.Expected != "" || e.Found != "":
		fmt.Fprintf(&b, " (expected %s, found %s)", e.Expected, e.Found)
	}
	if e.Name != "" {
		fmt.Fprintf(&b, " %q", e.Name)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's kind or its cause.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if e.Kind == target {
		return true
	}
	return errors.Is(e.Cause, target)
}

// Node returns the innermost node name of the identity chain.
func (e *Error) Node() string {
	if len(e.Path) == 0 {
		return ""
	}
	return e.Path[len(e.Path)-1]
}

// WithParent returns a copy of e with name prepended to the identity chain.
// Used when an error propagates out of a compound node.
func (e *Error) WithParent(name string) *Error {
	clone := *e
	clone.Path = append([]string{name}, e.Path...)
	return &clone
}

// Builder provides a fluent interface for building Errors.
type Builder struct {
	err Error
}

// New creates a new error builder for the given operation.
func New(op string) *Builder {
	return &Builder{err: Error{Op: op}}
}

// Kind sets the sentinel kind.
func (b *Builder) Kind(kind error) *Builder {
	b.err.Kind = kind
	return b
}

// Node appends a node name to the identity chain.
func (b *Builder) Node(name string) *Builder {
	b.err.Path = append(b.err.Path, name)
	return b
}

// Port sets the port name.
func (b *Builder) Port(name string) *Builder {
	b.err.Port = name
	return b
}

// Name sets the operation name.
func (b *Builder) Name(name string) *Builder {
	b.err.Name = name
	return b
}

// Types sets the expected and found descriptions.
func (b *Builder) Types(expected, found string) *Builder {
	b.err.Expected = expected
	b.err.Found = found
	return b
}

// Cycle sets the ordered cycle members.
func (b *Builder) Cycle(names []string) *Builder {
	b.err.Cycle = append([]string(nil), names...)
	return b
}

// Cause sets the underlying error cause.
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Build returns the constructed Error.
func (b *Builder) Build() *Error {
	e := b.err
	return &e
}

// Err returns the error as an error interface.
func (b *Builder) Err() error {
	return b.Build()
}

// As extracts a *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the sentinel kind of err, or nil if err is not a graph error.
func KindOf(err error) error {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return nil
}

// KindName returns a short label for a sentinel kind, used as a metric label.
func KindName(kind error) string {
	switch kind {
	case ErrCycleDetected:
		return "cycle_detected"
	case ErrUnknownOperation:
		return "unknown_operation"
	case ErrArityMismatch:
		return "arity_mismatch"
	case ErrTypeMismatch:
		return "type_mismatch"
	case ErrPortNotFound:
		return "port_not_found"
	case ErrDuplicateConnectionToInput:
		return "duplicate_connection"
	case ErrOpPanic:
		return "op_panic"
	case ErrNodeNotFound:
		return "node_not_found"
	case ErrNoRenderedNode:
		return "no_rendered_node"
	case ErrRecursiveNetwork:
		return "recursive_network"
	case ErrRegistryFrozen:
		return "registry_frozen"
	case ErrAlreadyRegistered:
		return "already_registered"
	default:
		return "other"
	}
}
