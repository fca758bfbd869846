package geometry

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePoint parses "x,y"
func ParsePoint(s string) (Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Point{}, fmt.Errorf("point %q needs two components, e.g. 12.3,45.6", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid x coordinate %q", parts[0])
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid y coordinate %q", parts[1])
	}
	return Point{X: x, Y: y}, nil
}

// ParseHex parses "#rgb", "#rgba", "#rrggbb" or "#rrggbbaa". The leading
// '#' is optional.
func ParseHex(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")

	var digits int
	switch len(hex) {
	case 3, 4:
		digits = 1
	case 6, 8:
		digits = 2
	default:
		return Color{}, fmt.Errorf("invalid hex color %q", s)
	}

	comps := [4]float64{1, 1, 1, 1}
	for i := 0; i*digits < len(hex); i++ {
		n, err := strconv.ParseUint(hex[i*digits:(i+1)*digits], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("invalid hex color %q", s)
		}
		if digits == 1 {
			n *= 17
		}
		comps[i] = float64(n) / 255
	}
	return RGBA(comps[0], comps[1], comps[2], comps[3]), nil
}
