package geometry

import "math"

// RectPath creates a closed rectangle centered at position
func RectPath(position Point, width, height float64) Path {
	x := position.X - width/2
	y := position.Y - height/2
	return NewPath(Contour{
		Points: []Point{
			{X: x, Y: y},
			{X: x + width, Y: y},
			{X: x + width, Y: y + height},
			{X: x, Y: y + height},
		},
		Closed: true,
	})
}

// EllipsePath approximates an ellipse centered at position with
// EllipseSegments line segments
func EllipsePath(position Point, width, height float64) Path {
	rx, ry := width/2, height/2
	pts := make([]Point, EllipseSegments)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / EllipseSegments
		pts[i] = Point{X: position.X + rx*math.Cos(a), Y: position.Y + ry*math.Sin(a)}
	}
	return NewPath(Contour{Points: pts, Closed: true})
}

// PolygonPath creates a regular polygon centered at position. The first
// vertex points up; with align set the bottom edge is horizontal instead.
// Fewer than three sides are raised to three.
func PolygonPath(position Point, radius float64, sides int, align bool) Path {
	if sides < 3 {
		sides = 3
	}
	step := 2 * math.Pi / float64(sides)
	start := -math.Pi / 2
	if align {
		start += step / 2
	}
	pts := make([]Point, sides)
	for i := range pts {
		a := start + float64(i)*step
		pts[i] = Point{X: position.X + radius*math.Cos(a), Y: position.Y + radius*math.Sin(a)}
	}
	return NewPath(Contour{Points: pts, Closed: true})
}

// StarPath creates a star with the given number of arms alternating
// between outer and inner radius
func StarPath(position Point, arms int, outer, inner float64) Path {
	if arms < 2 {
		arms = 2
	}
	step := math.Pi / float64(arms)
	pts := make([]Point, arms*2)
	for i := range pts {
		a := -math.Pi/2 + float64(i)*step
		r := outer
		if i%2 == 1 {
			r = inner
		}
		pts[i] = Point{X: position.X + r*math.Cos(a), Y: position.Y + r*math.Sin(a)}
	}
	return NewPath(Contour{Points: pts, Closed: true})
}

// LinePath creates an open stroked line from p1 to p2 with the given number
// of evenly spaced points (minimum 2)
func LinePath(p1, p2 Point, points int) Path {
	if points < 2 {
		points = 2
	}
	pts := make([]Point, points)
	for i := range pts {
		t := float64(i) / float64(points-1)
		pts[i] = Point{X: p1.X + (p2.X-p1.X)*t, Y: p1.Y + (p2.Y-p1.Y)*t}
	}
	return strokedPath(Contour{Points: pts})
}

// ConnectPath joins points into a single stroked contour. An empty input
// gives an empty path.
func ConnectPath(points []Point, closed bool) Path {
	if len(points) == 0 {
		return Path{}
	}
	return strokedPath(Contour{Points: append([]Point(nil), points...), Closed: closed})
}

// Grid returns columns*rows points in row-major order, spread over
// width x height and centered at position. A single column or row sits on
// the position itself.
func Grid(columns, rows int, width, height float64, position Point) []Point {
	if columns < 1 {
		columns = 1
	}
	if rows < 1 {
		rows = 1
	}
	colSize, left := 0.0, position.X
	if columns > 1 {
		colSize = width / float64(columns-1)
		left = position.X - width/2
	}
	rowSize, top := 0.0, position.Y
	if rows > 1 {
		rowSize = height / float64(rows-1)
		top = position.Y - height/2
	}
	pts := make([]Point, 0, columns*rows)
	for r := 0; r < rows; r++ {
		for c := 0; c < columns; c++ {
			pts = append(pts, Point{X: left + float64(c)*colSize, Y: top + float64(r)*rowSize})
		}
	}
	return pts
}

func strokedPath(c Contour) Path {
	stroke := Black
	return Path{Contours: []Contour{c}, Stroke: &stroke, StrokeWidth: 1}
}
