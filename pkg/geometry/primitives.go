// Package geometry provides the 2D primitives that flow through a node graph
// as opaque Geometry values: points, colors, bounds, affine transforms and
// paths.
package geometry

import (
	"fmt"
	"math"
)

// Point is a 2D coordinate
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Origin is the zero point
var Origin = Point{}

// Pt creates a point
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns p + q
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p - q
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Distance returns the euclidean distance between p and q
func (p Point) Distance(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// String formats the point as "x,y"
func (p Point) String() string {
	return fmt.Sprintf("%g,%g", p.X, p.Y)
}

// Color is an RGBA color with components in [0, 1]
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// Common colors
var (
	Black       = Color{A: 1}
	White       = Color{R: 1, G: 1, B: 1, A: 1}
	Transparent = Color{}
)

// RGB creates an opaque color, clamping components to [0, 1]
func RGB(r, g, b float64) Color {
	return RGBA(r, g, b, 1)
}

// RGBA creates a color, clamping components to [0, 1]
func RGBA(r, g, b, a float64) Color {
	return Color{R: clamp01(r), G: clamp01(g), B: clamp01(b), A: clamp01(a)}
}

// Hex returns "#rrggbb" for opaque colors and "#rrggbbaa" otherwise
func (c Color) Hex() string {
	r, g, b := to8(c.R), to8(c.G), to8(c.B)
	if c.A >= 1 {
		return fmt.Sprintf("#%02x%02x%02x", r, g, b)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", r, g, b, to8(c.A))
}

// String returns the hex form
func (c Color) String() string {
	return c.Hex()
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func to8(v float64) uint8 {
	return uint8(math.Round(clamp01(v) * 255))
}

// Rect is an axis-aligned bounding box
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the rectangle
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Union returns the smallest rectangle containing both r and o
func (r Rect) Union(o Rect) Rect {
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.X+r.Width, o.X+o.Width)
	maxY := math.Max(r.Y+r.Height, o.Y+o.Height)
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Transform is a 2D affine matrix [a c e; b d f; 0 0 1]
type Transform struct {
	A, B, C, D, E, F float64
}

// Identity is the identity transform
var Identity = Transform{A: 1, D: 1}

// Translate returns a translation
func Translate(tx, ty float64) Transform {
	return Transform{A: 1, D: 1, E: tx, F: ty}
}

// Scale returns a scale around the origin
func Scale(sx, sy float64) Transform {
	return Transform{A: sx, D: sy}
}

// Rotate returns a rotation around the origin; degrees are clockwise in
// screen space (y down)
func Rotate(degrees float64) Transform {
	rad := degrees * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return Transform{A: cos, B: sin, C: -sin, D: cos}
}

// Then returns the transform that applies t first and then o
func (t Transform) Then(o Transform) Transform {
	return Transform{
		A: o.A*t.A + o.C*t.B,
		B: o.B*t.A + o.D*t.B,
		C: o.A*t.C + o.C*t.D,
		D: o.B*t.C + o.D*t.D,
		E: o.A*t.E + o.C*t.F + o.E,
		F: o.B*t.E + o.D*t.F + o.F,
	}
}

// Apply transforms a point
func (t Transform) Apply(p Point) Point {
	return Point{
		X: t.A*p.X + t.C*p.Y + t.E,
		Y: t.B*p.X + t.D*p.Y + t.F,
	}
}

// Around returns t applied around origin instead of (0,0)
func (t Transform) Around(origin Point) Transform {
	return Translate(-origin.X, -origin.Y).Then(t).Then(Translate(origin.X, origin.Y))
}
