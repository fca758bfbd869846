package geometry

import (
	"math"
)

// EllipseSegments is the number of line segments used to approximate an ellipse
const EllipseSegments = 32

// Contour is a single polyline within a path
type Contour struct {
	Points []Point `json:"points"`
	Closed bool    `json:"closed"`
}

// Path is an ordered set of contours sharing one style.
// Fill and Stroke are nil when the path is not filled or not stroked.
type Path struct {
	Contours    []Contour `json:"contours"`
	Fill        *Color    `json:"fill,omitempty"`
	Stroke      *Color    `json:"stroke,omitempty"`
	StrokeWidth float64   `json:"stroke_width,omitempty"`
}

// NewPath creates a filled path (black fill, no stroke) from contours
func NewPath(contours ...Contour) Path {
	fill := Black
	return Path{Contours: contours, Fill: &fill}
}

// Geometry is an ordered collection of paths
type Geometry struct {
	Paths []Path `json:"paths"`
}

// FromPaths wraps paths in a Geometry
func FromPaths(paths ...Path) Geometry {
	return Geometry{Paths: paths}
}

// Merge concatenates geometries in order
func Merge(gs ...Geometry) Geometry {
	var out Geometry
	for _, g := range gs {
		for _, p := range g.Paths {
			out.Paths = append(out.Paths, p.Clone())
		}
	}
	return out
}

// IsEmpty reports whether the geometry holds no points
func (g Geometry) IsEmpty() bool {
	return g.PointCount() == 0
}

// PointCount returns the total number of points across all contours
func (g Geometry) PointCount() int {
	n := 0
	for _, p := range g.Paths {
		for _, c := range p.Contours {
			n += len(c.Points)
		}
	}
	return n
}

// Points returns every point in path and contour order
func (g Geometry) Points() []Point {
	pts := make([]Point, 0, g.PointCount())
	for _, p := range g.Paths {
		for _, c := range p.Contours {
			pts = append(pts, c.Points...)
		}
	}
	return pts
}

// Bounds returns the bounding box of all points. The zero Rect is returned
// for empty geometry.
func (g Geometry) Bounds() Rect {
	pts := g.Points()
	if len(pts) == 0 {
		return Rect{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, pt := range pts[1:] {
		minX = math.Min(minX, pt.X)
		minY = math.Min(minY, pt.Y)
		maxX = math.Max(maxX, pt.X)
		maxY = math.Max(maxY, pt.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Transform returns a copy of g with t applied to every point
func (g Geometry) Transform(t Transform) Geometry {
	out := Geometry{Paths: make([]Path, len(g.Paths))}
	for i, p := range g.Paths {
		cp := p.Clone()
		for ci := range cp.Contours {
			for pi, pt := range cp.Contours[ci].Points {
				cp.Contours[ci].Points[pi] = t.Apply(pt)
			}
		}
		out.Paths[i] = cp
	}
	return out
}

// WithFill returns a copy of g with every path's fill replaced
func (g Geometry) WithFill(fill *Color) Geometry {
	out := Geometry{Paths: make([]Path, len(g.Paths))}
	for i, p := range g.Paths {
		cp := p.Clone()
		cp.Fill = copyColor(fill)
		out.Paths[i] = cp
	}
	return out
}

// WithStroke returns a copy of g with every path's stroke replaced
func (g Geometry) WithStroke(stroke *Color, width float64) Geometry {
	out := Geometry{Paths: make([]Path, len(g.Paths))}
	for i, p := range g.Paths {
		cp := p.Clone()
		cp.Stroke = copyColor(stroke)
		cp.StrokeWidth = width
		out.Paths[i] = cp
	}
	return out
}

// Clone returns a deep copy of the path
func (p Path) Clone() Path {
	cp := Path{
		Contours:    make([]Contour, len(p.Contours)),
		Fill:        copyColor(p.Fill),
		Stroke:      copyColor(p.Stroke),
		StrokeWidth: p.StrokeWidth,
	}
	for i, c := range p.Contours {
		cp.Contours[i] = Contour{
			Points: append([]Point(nil), c.Points...),
			Closed: c.Closed,
		}
	}
	return cp
}

// Equal reports structural equality of two geometries
func (g Geometry) Equal(o Geometry) bool {
	if len(g.Paths) != len(o.Paths) {
		return false
	}
	for i := range g.Paths {
		if !g.Paths[i].Equal(o.Paths[i]) {
			return false
		}
	}
	return true
}

// Equal reports structural equality of two paths
func (p Path) Equal(o Path) bool {
	if !colorPtrEqual(p.Fill, o.Fill) || !colorPtrEqual(p.Stroke, o.Stroke) {
		return false
	}
	if p.StrokeWidth != o.StrokeWidth || len(p.Contours) != len(o.Contours) {
		return false
	}
	for i, c := range p.Contours {
		oc := o.Contours[i]
		if c.Closed != oc.Closed || len(c.Points) != len(oc.Points) {
			return false
		}
		for j := range c.Points {
			if c.Points[j] != oc.Points[j] {
				return false
			}
		}
	}
	return true
}

func copyColor(c *Color) *Color {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func colorPtrEqual(a, b *Color) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
