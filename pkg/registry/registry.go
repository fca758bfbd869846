// Package registry maps operation names to their signatures and bodies.
//
// A Registry is populated at startup, then frozen. After Freeze it is
// read-only and safe for concurrent Lookup and Invoke calls.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/dd0wney/cluso-nodegraph/pkg/nodeerr"
	"github.com/dd0wney/cluso-nodegraph/pkg/value"
)

// Func is an operation body. Args arrive already coerced, in parameter order.
type Func func(ctx context.Context, args []value.Value) (value.Value, error)

// Param describes one operation parameter
type Param struct {
	Name        string
	Type        value.TypeClass
	Default     *value.Value // nil means the parameter is required
	AcceptsList bool         // list-mode: many connections, receives a List
}

// Signature describes an operation
type Signature struct {
	Name    string
	Params  []Param
	Returns value.TypeClass

	// Elementwise operations are mapped over a List arriving on
	// ElementwiseParam instead of rejecting it.
	Elementwise      bool
	ElementwiseParam string
}

// Required returns the number of leading arguments Invoke needs, i.e. the
// position after the last parameter without a default.
func (s Signature) Required() int {
	n := 0
	for i, p := range s.Params {
		if p.Default == nil {
			n = i + 1
		}
	}
	return n
}

// ParamIndex returns the position of the named parameter, or -1
func (s Signature) ParamIndex(name string) int {
	for i, p := range s.Params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

type entry struct {
	sig Signature
	fn  Func
}

// Registry holds the available operations
type Registry struct {
	ops    map[string]entry
	frozen bool
	mu     sync.RWMutex
}

// New creates an empty registry
func New() *Registry {
	return &Registry{ops: make(map[string]entry)}
}

// Register adds an operation. It fails once the registry is frozen or when
// the name is already taken.
func (r *Registry) Register(sig Signature, fn Func) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return nodeerr.New("Register").Kind(nodeerr.ErrRegistryFrozen).Name(sig.Name).Err()
	}
	if _, exists := r.ops[sig.Name]; exists {
		return nodeerr.New("Register").Kind(nodeerr.ErrAlreadyRegistered).Name(sig.Name).Err()
	}
	if sig.Elementwise && sig.ParamIndex(sig.ElementwiseParam) < 0 {
		return fmt.Errorf("register %q: elementwise parameter %q not declared", sig.Name, sig.ElementwiseParam)
	}
	r.ops[sig.Name] = entry{sig: sig, fn: fn}
	return nil
}

// MustRegister is Register that panics on error. Intended for startup code.
func (r *Registry) MustRegister(sig Signature, fn Func) {
	if err := r.Register(sig, fn); err != nil {
		panic(err)
	}
}

// Freeze makes the registry read-only
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Lookup returns the signature of the named operation
func (r *Registry) Lookup(name string) (Signature, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.ops[name]
	return e.sig, ok
}

// Len returns the number of registered operations
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ops)
}

// Signatures returns all signatures sorted by name
func (r *Registry) Signatures() []Signature {
	r.mu.RLock()
	sigs := make([]Signature, 0, len(r.ops))
	for _, e := range r.ops {
		sigs = append(sigs, e.sig)
	}
	r.mu.RUnlock()

	sort.Slice(sigs, func(i, j int) bool { return sigs[i].Name < sigs[j].Name })
	return sigs
}

// Invoke runs the named operation. Missing trailing arguments are filled
// from parameter defaults. A panic or error in the body is returned as
// ErrOpPanic; the caller adds the node identity.
func (r *Registry) Invoke(ctx context.Context, name string, args []value.Value) (result value.Value, err error) {
	r.mu.RLock()
	e, ok := r.ops[name]
	r.mu.RUnlock()

	if !ok {
		return value.Null, nodeerr.New("Invoke").Kind(nodeerr.ErrUnknownOperation).Name(name).Err()
	}

	params := e.sig.Params
	if len(args) > len(params) || len(args) < e.sig.Required() {
		return value.Null, nodeerr.New("Invoke").
			Kind(nodeerr.ErrArityMismatch).
			Name(name).
			Types(e.sig.Arity(), strconv.Itoa(len(args))).
			Err()
	}

	full := args
	if len(args) < len(params) {
		full = make([]value.Value, len(params))
		copy(full, args)
		for i := len(args); i < len(params); i++ {
			full[i] = *params[i].Default
		}
	}

	defer func() {
		if p := recover(); p != nil {
			result = value.Null
			err = nodeerr.New("Invoke").
				Kind(nodeerr.ErrOpPanic).
				Name(name).
				Cause(fmt.Errorf("panic: %v", p)).
				Err()
		}
	}()

	result, err = e.fn(ctx, full)
	if err != nil {
		return value.Null, nodeerr.New("Invoke").Kind(nodeerr.ErrOpPanic).Name(name).Cause(err).Err()
	}
	return result, nil
}

// Arity returns the accepted argument count, "n" or "min..max"
func (s Signature) Arity() string {
	req := s.Required()
	if req == len(s.Params) {
		return strconv.Itoa(req)
	}
	return fmt.Sprintf("%d..%d", req, len(s.Params))
}

// Default is a helper for building Param defaults
func Default(v value.Value) *value.Value {
	return &v
}
