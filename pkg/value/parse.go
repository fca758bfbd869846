package value

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dd0wney/cluso-nodegraph/pkg/geometry"
)

// Parse converts the text form of a parameter into a value of type t.
// Colors are hex strings, points are "x,y" and lists are comma separated
// numbers. TypeAny guesses int, float, boolean and falls back to string.
func Parse(s string, t TypeClass) (Value, error) {
	s = strings.TrimSpace(s)

	switch t {
	case TypeInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil {
				return Null, fmt.Errorf("invalid int %q", s)
			}
			n = int64(f)
		}
		return Int(n), nil

	case TypeFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Null, fmt.Errorf("invalid float %q", s)
		}
		return Float(f), nil

	case TypeBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Null, fmt.Errorf("invalid boolean %q", s)
		}
		return Bool(b), nil

	case TypeString:
		return String(s), nil

	case TypeColor:
		c, err := geometry.ParseHex(s)
		if err != nil {
			return Null, err
		}
		return Color(c), nil

	case TypePoint:
		p, err := geometry.ParsePoint(s)
		if err != nil {
			return Null, err
		}
		return Point(p), nil

	case TypeList:
		if s == "" {
			return List(), nil
		}
		parts := strings.Split(s, ",")
		items := make([]Value, 0, len(parts))
		for _, part := range parts {
			item, err := Parse(part, TypeAny)
			if err != nil {
				return Null, err
			}
			items = append(items, item)
		}
		return List(items...), nil

	case TypeGeometry:
		return Null, fmt.Errorf("geometry has no text form")

	default:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(n), nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Float(f), nil
		}
		if b, err := strconv.ParseBool(s); err == nil {
			return Bool(b), nil
		}
		return String(s), nil
	}
}
