package ops

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/constraints"

	"github.com/dd0wney/cluso-nodegraph/pkg/registry"
	"github.com/dd0wney/cluso-nodegraph/pkg/value"
)

var (
	// ErrDivideByZero is returned by math.divide
	ErrDivideByZero = errors.New("divider cannot be zero")

	// ErrNotFinite is returned by math.range for NaN or infinite bounds
	ErrNotFinite = errors.New("value is not finite")
)

// rangeCheckEvery is how many range items are produced between context checks
const rangeCheckEvery = 1 << 16

type number interface {
	constraints.Integer | constraints.Float
}

func sum[T number](xs []T) T {
	var total T
	for _, x := range xs {
		total += x
	}
	return total
}

func average[T number](xs []T) float64 {
	if len(xs) == 0 {
		return 0
	}
	return float64(sum(xs)) / float64(len(xs))
}

// extremum folds xs with pick, starting from init
func extremum[T number](xs []T, init T, pick func(a, b T) T) T {
	out := init
	for _, x := range xs {
		out = pick(out, x)
	}
	return out
}

func compare[T constraints.Ordered](a, b T, comparator string) (bool, error) {
	switch comparator {
	case "<":
		return a < b, nil
	case ">":
		return a > b, nil
	case "<=":
		return a <= b, nil
	case ">=":
		return a >= b, nil
	case "==":
		return a == b, nil
	case "!=":
		return a != b, nil
	}
	return false, fmt.Errorf("unknown comparison operation %q", comparator)
}

// floatRange returns start, start+step, ... up to but excluding end. A zero
// step or one pointing away from end gives an empty range. Bounds must be
// finite and the range may hold at most MaxItems items.
func floatRange(ctx context.Context, start, end, step float64) ([]float64, error) {
	for _, f := range [...]float64{start, end, step} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: range(start=%v, end=%v, step=%v)", ErrNotFinite, start, end, step)
		}
	}
	if step == 0 || start == end {
		return nil, nil
	}
	if (start < end && step < 0) || (start > end && step > 0) {
		return nil, nil
	}

	// The quotient is positive here; it overflows to +Inf for extreme bounds
	n := math.Ceil((end - start) / step)
	if n > MaxItems {
		return nil, fmt.Errorf("%w: range(start=%v, end=%v, step=%v) has %.0f items, limit %d",
			ErrTooManyItems, start, end, step, n, MaxItems)
	}

	limit := int(n) + 1
	out := make([]float64, 0, limit)
	for i := 0; i < limit; i++ {
		if i%rangeCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		cur := start + float64(i)*step
		if (step > 0 && cur >= end) || (step < 0 && cur <= end) {
			break
		}
		out = append(out, cur)
	}
	return out, nil
}

func unaryFloat(name string, fn func(float64) float64) op {
	return op{
		sig: elementwise(registry.Signature{
			Name:    name,
			Params:  []registry.Param{required("value", value.TypeFloat)},
			Returns: value.TypeFloat,
		}, "value"),
		fn: func(_ context.Context, args []value.Value) (value.Value, error) {
			r := read(args)
			return r.result(value.Float(fn(r.Float(0))))
		},
	}
}

func binaryFloat(name string, def float64, fn func(a, b float64) (float64, error)) op {
	return op{
		sig: registry.Signature{
			Name: name,
			Params: []registry.Param{
				optional("value1", value.TypeFloat, value.Float(0)),
				optional("value2", value.TypeFloat, value.Float(def)),
			},
			Returns: value.TypeFloat,
		},
		fn: func(_ context.Context, args []value.Value) (value.Value, error) {
			r := read(args)
			a, b := r.Float(0), r.Float(1)
			if r.err != nil {
				return value.Null, r.err
			}
			out, err := fn(a, b)
			if err != nil {
				return value.Null, err
			}
			return value.Float(out), nil
		},
	}
}

func listFloat(name string, fn func([]float64) float64) op {
	return op{
		sig: registry.Signature{
			Name:    name,
			Params:  []registry.Param{list("values", value.TypeFloat)},
			Returns: value.TypeFloat,
		},
		fn: func(_ context.Context, args []value.Value) (value.Value, error) {
			r := read(args)
			return r.result(value.Float(fn(r.Floats(0))))
		},
	}
}

func registerMath(reg *registry.Registry) error {
	return registerOps(reg, []op{
		{
			sig: registry.Signature{
				Name:    "math.number",
				Params:  []registry.Param{optional("value", value.TypeFloat, value.Float(0))},
				Returns: value.TypeFloat,
			},
			fn: func(_ context.Context, args []value.Value) (value.Value, error) {
				r := read(args)
				return r.result(value.Float(r.Float(0)))
			},
		},
		{
			sig: registry.Signature{
				Name:    "math.integer",
				Params:  []registry.Param{optional("value", value.TypeInt, value.Int(0))},
				Returns: value.TypeInt,
			},
			fn: func(_ context.Context, args []value.Value) (value.Value, error) {
				r := read(args)
				return r.result(value.Int(r.Int(0)))
			},
		},
		binaryFloat("math.add", 0, func(a, b float64) (float64, error) { return a + b, nil }),
		binaryFloat("math.subtract", 0, func(a, b float64) (float64, error) { return a - b, nil }),
		binaryFloat("math.multiply", 1, func(a, b float64) (float64, error) { return a * b, nil }),
		binaryFloat("math.divide", 1, func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, ErrDivideByZero
			}
			return a / b, nil
		}),
		{
			sig: elementwise(registry.Signature{
				Name: "math.scale",
				Params: []registry.Param{
					required("value", value.TypeFloat),
					optional("factor", value.TypeFloat, value.Float(1)),
				},
				Returns: value.TypeFloat,
			}, "value"),
			fn: func(_ context.Context, args []value.Value) (value.Value, error) {
				r := read(args)
				return r.result(value.Float(r.Float(0) * r.Float(1)))
			},
		},
		unaryFloat("math.negate", func(f float64) float64 { return -f }),
		unaryFloat("math.abs", math.Abs),
		unaryFloat("math.sqrt", math.Sqrt),
		unaryFloat("math.add_one", func(f float64) float64 { return f + 1 }),
		listFloat("math.sum", sum[float64]),
		listFloat("math.average", average[float64]),
		listFloat("math.max", func(xs []float64) float64 { return extremum(xs, math.Inf(-1), math.Max) }),
		listFloat("math.min", func(xs []float64) float64 { return extremum(xs, math.Inf(1), math.Min) }),
		{
			sig: registry.Signature{
				Name: "math.range",
				Params: []registry.Param{
					optional("start", value.TypeFloat, value.Float(0)),
					optional("end", value.TypeFloat, value.Float(10)),
					optional("step", value.TypeFloat, value.Float(1)),
				},
				Returns: value.TypeList,
			},
			fn: func(ctx context.Context, args []value.Value) (value.Value, error) {
				r := read(args)
				start, end, step := r.Float(0), r.Float(1), r.Float(2)
				if r.err != nil {
					return value.Null, r.err
				}
				xs, err := floatRange(ctx, start, end, step)
				if err != nil {
					return value.Null, err
				}
				return value.Floats(xs...), nil
			},
		},
		{
			sig: registry.Signature{
				Name: "math.compare",
				Params: []registry.Param{
					optional("value1", value.TypeFloat, value.Float(0)),
					optional("value2", value.TypeFloat, value.Float(0)),
					optional("comparator", value.TypeString, value.String("<")),
				},
				Returns: value.TypeBool,
			},
			fn: func(_ context.Context, args []value.Value) (value.Value, error) {
				r := read(args)
				a, b, cmp := r.Float(0), r.Float(1), r.String(2)
				if r.err != nil {
					return value.Null, r.err
				}
				ok, err := compare(a, b, cmp)
				if err != nil {
					return value.Null, err
				}
				return value.Bool(ok), nil
			},
		},
	})
}
