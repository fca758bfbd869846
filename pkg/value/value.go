// Package value defines the tagged runtime value that flows along
// connections in a node graph.
package value

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/dd0wney/cluso-nodegraph/pkg/geometry"
)

// Kind identifies the variant held by a Value
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindColor
	KindPoint
	KindGeometry
	KindList
)

var kindNames = [...]string{
	KindNull:     "null",
	KindInt:      "int",
	KindFloat:    "float",
	KindBool:     "boolean",
	KindString:   "string",
	KindColor:    "color",
	KindPoint:    "point",
	KindGeometry: "geometry",
	KindList:     "list",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is an immutable runtime value. The zero Value is Null.
//
// A List never directly contains another List; List splices nested lists
// one level when it is built.
type Value struct {
	kind  Kind
	i     int64
	f     float64
	b     bool
	s     string
	color geometry.Color
	point geometry.Point
	geom  *geometry.Geometry
	list  []Value
}

// Null is the absent value
var Null = Value{}

// Helper functions to create typed values
func Int(i int64) Value {
	return Value{kind: KindInt, i: i}
}

func Float(f float64) Value {
	return Value{kind: KindFloat, f: f}
}

func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

func String(s string) Value {
	return Value{kind: KindString, s: s}
}

func Color(c geometry.Color) Value {
	return Value{kind: KindColor, color: c}
}

func Point(p geometry.Point) Value {
	return Value{kind: KindPoint, point: p}
}

// Geometry wraps a geometry. The geometry must not be modified afterwards.
func Geometry(g geometry.Geometry) Value {
	return Value{kind: KindGeometry, geom: &g}
}

// Path wraps a single path as geometry
func Path(p geometry.Path) Value {
	return Geometry(geometry.FromPaths(p))
}

// List builds a list value. Items that are themselves lists are spliced in
// place, so the result is always flat at the first level.
func List(items ...Value) Value {
	out := make([]Value, 0, len(items))
	for _, it := range items {
		if it.kind == KindList {
			out = append(out, it.list...)
			continue
		}
		out = append(out, it)
	}
	return Value{kind: KindList, list: out}
}

// Floats is a convenience constructor for a list of floats
func Floats(fs ...float64) Value {
	out := make([]Value, len(fs))
	for i, f := range fs {
		out[i] = Float(f)
	}
	return Value{kind: KindList, list: out}
}

// Ints is a convenience constructor for a list of ints
func Ints(is ...int64) Value {
	out := make([]Value, len(is))
	for i, n := range is {
		out[i] = Int(n)
	}
	return Value{kind: KindList, list: out}
}

// Kind returns the variant tag
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsList reports whether v is a List
func (v Value) IsList() bool { return v.kind == KindList }

// TypeName returns the lowercase name of the variant
func (v Value) TypeName() string { return v.kind.String() }

// Decode methods. Numeric accessors widen the way connections do: ints and
// booleans read as floats, floats truncate to ints.

func (v Value) AsInt() (int64, error) {
	switch v.kind {
	case KindInt:
		return v.i, nil
	case KindFloat:
		return int64(v.f), nil
	case KindBool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("value of type %s is not an int", v.kind)
}

func (v Value) AsFloat() (float64, error) {
	switch v.kind {
	case KindFloat:
		return v.f, nil
	case KindInt:
		return float64(v.i), nil
	case KindBool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("value of type %s is not a float", v.kind)
}

func (v Value) AsBool() (bool, error) {
	switch v.kind {
	case KindBool:
		return v.b, nil
	case KindInt:
		return v.i != 0, nil
	case KindFloat:
		return v.f != 0, nil
	}
	return false, fmt.Errorf("value of type %s is not a boolean", v.kind)
}

func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", fmt.Errorf("value of type %s is not a string", v.kind)
	}
	return v.s, nil
}

func (v Value) AsColor() (geometry.Color, error) {
	if v.kind != KindColor {
		return geometry.Color{}, fmt.Errorf("value of type %s is not a color", v.kind)
	}
	return v.color, nil
}

// AsPoint returns the point; numbers become (n, n)
func (v Value) AsPoint() (geometry.Point, error) {
	switch v.kind {
	case KindPoint:
		return v.point, nil
	case KindInt, KindFloat:
		f, _ := v.AsFloat()
		return geometry.Point{X: f, Y: f}, nil
	}
	return geometry.Point{}, fmt.Errorf("value of type %s is not a point", v.kind)
}

// AsGeometry returns the geometry; Null reads as empty geometry
func (v Value) AsGeometry() (geometry.Geometry, error) {
	switch v.kind {
	case KindGeometry:
		return *v.geom, nil
	case KindNull:
		return geometry.Geometry{}, nil
	}
	return geometry.Geometry{}, fmt.Errorf("value of type %s is not geometry", v.kind)
}

// AsList returns the items of a List. The slice must not be modified.
func (v Value) AsList() ([]Value, error) {
	if v.kind != KindList {
		return nil, fmt.Errorf("value of type %s is not a list", v.kind)
	}
	return v.list, nil
}

// Items returns v as a slice: a List yields its items, Null yields nothing
// and any other value yields itself.
func (v Value) Items() []Value {
	switch v.kind {
	case KindList:
		return v.list
	case KindNull:
		return nil
	}
	return []Value{v}
}

// Len returns the number of list items, 0 for Null and 1 otherwise
func (v Value) Len() int {
	return len(v.Items())
}

// String returns the display form of the value
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.s
	case KindColor:
		return v.color.Hex()
	case KindPoint:
		return v.point.String()
	case KindGeometry:
		return fmt.Sprintf("[Geometry: %d paths]", len(v.geom.Paths))
	case KindList:
		return fmt.Sprintf("[List: %d items]", len(v.list))
	}
	return v.kind.String()
}

// Equal reports deep equality. Int and Float never compare equal to each
// other; NaN floats compare equal to themselves.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.s == o.s
	case KindColor:
		return v.color == o.color
	case KindPoint:
		return v.point == o.point
	case KindGeometry:
		return v.geom.Equal(*o.geom)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON encodes the value as {"type": ..., "value": ...}
func (v Value) MarshalJSON() ([]byte, error) {
	type envelope struct {
		Type  string `json:"type"`
		Value any    `json:"value"`
	}
	e := envelope{Type: v.kind.String()}
	switch v.kind {
	case KindInt:
		e.Value = v.i
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			e.Value = strconv.FormatFloat(v.f, 'g', -1, 64)
		} else {
			e.Value = v.f
		}
	case KindBool:
		e.Value = v.b
	case KindString:
		e.Value = v.s
	case KindColor:
		e.Value = v.color.Hex()
	case KindPoint:
		e.Value = v.point
	case KindGeometry:
		e.Value = v.geom
	case KindList:
		e.Value = v.list
	}
	return json.Marshal(e)
}
