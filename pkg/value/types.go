package value

import (
	"fmt"
	"strings"

	"github.com/dd0wney/cluso-nodegraph/pkg/geometry"
)

// TypeClass is the declared type of a port or operation parameter
type TypeClass uint8

const (
	TypeAny TypeClass = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeString
	TypeColor
	TypePoint
	TypeGeometry
	TypeList
)

var typeNames = [...]string{
	TypeAny:      "any",
	TypeInt:      "int",
	TypeFloat:    "float",
	TypeBool:     "boolean",
	TypeString:   "string",
	TypeColor:    "color",
	TypePoint:    "point",
	TypeGeometry: "geometry",
	TypeList:     "list",
}

func (t TypeClass) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// ParseTypeClass converts a type name ("int", "float", "boolean", ...) to
// a TypeClass. "bool" is accepted as an alias; unknown names map to TypeAny.
func ParseTypeClass(s string) TypeClass {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "int":
		return TypeInt
	case "float":
		return TypeFloat
	case "boolean", "bool":
		return TypeBool
	case "string":
		return TypeString
	case "color":
		return TypeColor
	case "point":
		return TypePoint
	case "geometry":
		return TypeGeometry
	case "list":
		return TypeList
	default:
		return TypeAny
	}
}

// DefaultFor returns the value an unset port of type t holds
func DefaultFor(t TypeClass) Value {
	switch t {
	case TypeInt:
		return Int(0)
	case TypeFloat:
		return Float(0)
	case TypeBool:
		return Bool(false)
	case TypeString:
		return String("")
	case TypeColor:
		return Color(geometry.Black)
	case TypePoint:
		return Point(geometry.Origin)
	case TypeList:
		return List()
	default:
		return Null
	}
}

// ClassOf returns the type class that exactly matches the value's kind.
// Null maps to TypeAny.
func ClassOf(v Value) TypeClass {
	switch v.kind {
	case KindInt:
		return TypeInt
	case KindFloat:
		return TypeFloat
	case KindBool:
		return TypeBool
	case KindString:
		return TypeString
	case KindColor:
		return TypeColor
	case KindPoint:
		return TypePoint
	case KindGeometry:
		return TypeGeometry
	case KindList:
		return TypeList
	default:
		return TypeAny
	}
}

// IsCompatible reports whether an output of type out may be connected to an
// input of type in. Used for editor-time connection checks; the evaluator
// applies the full coercion table at run time.
func IsCompatible(out, in TypeClass) bool {
	if out == in || in == TypeAny || out == TypeAny {
		return true
	}
	if in == TypeString {
		return true
	}
	isNumber := out == TypeInt || out == TypeFloat
	if isNumber && (in == TypeInt || in == TypeFloat || in == TypePoint) {
		return true
	}
	return false
}
