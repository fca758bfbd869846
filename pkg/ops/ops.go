// Package ops provides the standard operation set: math, list, string,
// color and corevector geometry operations.
//
// Operation bodies receive their arguments already coerced to the declared
// parameter types. They are pure functions of those arguments.
package ops

import (
	"errors"
	"fmt"

	"github.com/dd0wney/cluso-nodegraph/pkg/geometry"
	"github.com/dd0wney/cluso-nodegraph/pkg/registry"
	"github.com/dd0wney/cluso-nodegraph/pkg/value"
)

// RegisterAll registers every standard operation. The caller freezes the
// registry afterwards.
func RegisterAll(reg *registry.Registry) error {
	for _, register := range []func(*registry.Registry) error{
		registerMath,
		registerList,
		registerString,
		registerColor,
		registerCorevector,
	} {
		if err := register(reg); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a frozen registry holding the standard operations
func NewRegistry() (*registry.Registry, error) {
	reg := registry.New()
	if err := RegisterAll(reg); err != nil {
		return nil, err
	}
	reg.Freeze()
	return reg, nil
}

// MaxItems bounds the length of any list or contour an operation builds
const MaxItems = 1 << 22

// ErrTooManyItems is returned when an operation would build more than
// MaxItems items
var ErrTooManyItems = errors.New("too many items")

type op struct {
	sig registry.Signature
	fn  registry.Func
}

func registerOps(reg *registry.Registry, ops []op) error {
	for _, o := range ops {
		if err := reg.Register(o.sig, o.fn); err != nil {
			return fmt.Errorf("failed to register %s: %w", o.sig.Name, err)
		}
	}
	return nil
}

// Parameter constructors

func required(name string, t value.TypeClass) registry.Param {
	return registry.Param{Name: name, Type: t}
}

func optional(name string, t value.TypeClass, def value.Value) registry.Param {
	return registry.Param{Name: name, Type: t, Default: registry.Default(def)}
}

func list(name string, t value.TypeClass) registry.Param {
	return registry.Param{Name: name, Type: t, Default: registry.Default(value.List()), AcceptsList: true}
}

// elementwise marks param as the one a List is mapped over
func elementwise(sig registry.Signature, param string) registry.Signature {
	sig.Elementwise = true
	sig.ElementwiseParam = param
	return sig
}

// reader decodes arguments, keeping the first failure
type reader struct {
	args []value.Value
	err  error
}

func read(args []value.Value) *reader {
	return &reader{args: args}
}

func (r *reader) fail(i int, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("argument %d: %w", i, err)
	}
}

func (r *reader) at(i int) value.Value {
	if i >= len(r.args) {
		r.fail(i, fmt.Errorf("missing"))
		return value.Null
	}
	return r.args[i]
}

func (r *reader) Float(i int) float64 {
	f, err := r.at(i).AsFloat()
	if err != nil {
		r.fail(i, err)
	}
	return f
}

func (r *reader) Int(i int) int64 {
	n, err := r.at(i).AsInt()
	if err != nil {
		r.fail(i, err)
	}
	return n
}

func (r *reader) Bool(i int) bool {
	b, err := r.at(i).AsBool()
	if err != nil {
		r.fail(i, err)
	}
	return b
}

func (r *reader) String(i int) string {
	v := r.at(i)
	if v.Kind() != value.KindString {
		return v.String()
	}
	s, _ := v.AsString()
	return s
}

func (r *reader) Point(i int) geometry.Point {
	p, err := r.at(i).AsPoint()
	if err != nil {
		r.fail(i, err)
	}
	return p
}

func (r *reader) Color(i int) geometry.Color {
	c, err := r.at(i).AsColor()
	if err != nil {
		r.fail(i, err)
	}
	return c
}

func (r *reader) Geometry(i int) geometry.Geometry {
	g, err := r.at(i).AsGeometry()
	if err != nil {
		r.fail(i, err)
	}
	return g
}

// Count reads an integer that sizes an allocation. Values above MaxItems
// fail the read and yield zero.
func (r *reader) Count(i int) int {
	n := r.Int(i)
	if n > MaxItems {
		r.fail(i, fmt.Errorf("%w: %d exceeds %d", ErrTooManyItems, n, MaxItems))
		return 0
	}
	return int(n)
}

// Items returns the list argument's items; a scalar reads as one item
func (r *reader) Items(i int) []value.Value {
	return r.at(i).Items()
}

func (r *reader) Floats(i int) []float64 {
	items := r.Items(i)
	out := make([]float64, 0, len(items))
	for _, it := range items {
		f, err := it.AsFloat()
		if err != nil {
			r.fail(i, err)
			continue
		}
		out = append(out, f)
	}
	return out
}

func (r *reader) Points(i int) []geometry.Point {
	items := r.Items(i)
	out := make([]geometry.Point, 0, len(items))
	for _, it := range items {
		p, err := it.AsPoint()
		if err != nil {
			r.fail(i, err)
			continue
		}
		out = append(out, p)
	}
	return out
}

// result returns v unless decoding failed
func (r *reader) result(v value.Value) (value.Value, error) {
	if r.err != nil {
		return value.Null, r.err
	}
	return v, nil
}
