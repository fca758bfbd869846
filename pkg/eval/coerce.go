package eval

import (
	"github.com/dd0wney/cluso-nodegraph/pkg/geometry"
	"github.com/dd0wney/cluso-nodegraph/pkg/nodeerr"
	"github.com/dd0wney/cluso-nodegraph/pkg/value"
)

// Coerce converts v to the type class a port expects.
//
// List-mode ports always receive a List: a scalar is wrapped, Null becomes
// the empty list and every item is coerced to t. For other ports a List is a
// type mismatch; the evaluator maps elementwise operations over lists
// before coercion reaches this point.
func Coerce(v value.Value, t value.TypeClass, listMode bool) (value.Value, error) {
	if listMode {
		items := v.Items()
		out := make([]value.Value, len(items))
		for i, item := range items {
			c, err := coerceScalar(item, t)
			if err != nil {
				return value.Null, err
			}
			out[i] = c
		}
		return value.List(out...), nil
	}
	return coerceScalar(v, t)
}

func coerceScalar(v value.Value, t value.TypeClass) (value.Value, error) {
	if t == value.TypeAny {
		return v, nil
	}
	if t == value.TypeList {
		return value.List(v.Items()...), nil
	}
	if v.IsList() {
		return value.Null, mismatch(t, v)
	}
	if value.ClassOf(v) == t {
		return v, nil
	}

	switch t {
	case value.TypeInt:
		switch v.Kind() {
		case value.KindFloat, value.KindBool:
			i, err := v.AsInt()
			if err != nil {
				return value.Null, mismatch(t, v)
			}
			return value.Int(i), nil
		}
	case value.TypeFloat:
		switch v.Kind() {
		case value.KindInt, value.KindBool:
			f, err := v.AsFloat()
			if err != nil {
				return value.Null, mismatch(t, v)
			}
			return value.Float(f), nil
		}
	case value.TypePoint:
		switch v.Kind() {
		case value.KindInt, value.KindFloat:
			p, err := v.AsPoint()
			if err != nil {
				return value.Null, mismatch(t, v)
			}
			return value.Point(p), nil
		}
	case value.TypeString:
		return value.String(v.String()), nil
	case value.TypeGeometry:
		if v.IsNull() {
			return value.Geometry(geometry.Geometry{}), nil
		}
	}
	return value.Null, mismatch(t, v)
}

func mismatch(t value.TypeClass, v value.Value) error {
	return nodeerr.New("Coerce").Kind(nodeerr.ErrTypeMismatch).Types(t.String(), v.TypeName()).Err()
}
