package ops

import (
	"context"
	"fmt"

	"github.com/dd0wney/cluso-nodegraph/pkg/geometry"
	"github.com/dd0wney/cluso-nodegraph/pkg/registry"
	"github.com/dd0wney/cluso-nodegraph/pkg/value"
)

func point(x, y float64) value.Value {
	return value.Point(geometry.Pt(x, y))
}

func generator(name string, params []registry.Param, fn func(r *reader) geometry.Path) op {
	return op{
		sig: registry.Signature{Name: name, Params: params, Returns: value.TypeGeometry},
		fn: func(_ context.Context, args []value.Value) (value.Value, error) {
			r := read(args)
			return r.result(value.Path(fn(r)))
		},
	}
}

// filter is an elementwise geometry transform over its "shape" parameter
func filter(name string, extra []registry.Param, fn func(g geometry.Geometry, r *reader) geometry.Geometry) op {
	params := append([]registry.Param{optional("shape", value.TypeGeometry, value.Null)}, extra...)
	return op{
		sig: elementwise(registry.Signature{Name: name, Params: params, Returns: value.TypeGeometry}, "shape"),
		fn: func(_ context.Context, args []value.Value) (value.Value, error) {
			r := read(args)
			return r.result(value.Geometry(fn(r.Geometry(0), r)))
		},
	}
}

func colorize(g geometry.Geometry, fill, stroke geometry.Color, width float64) geometry.Geometry {
	var fillPtr, strokePtr *geometry.Color
	if fill.A > 0 {
		fillPtr = &fill
	}
	if width > 0 {
		strokePtr = &stroke
	} else {
		width = 0
	}
	return g.WithFill(fillPtr).WithStroke(strokePtr, width)
}

func registerCorevector(reg *registry.Registry) error {
	origin := point(0, 0)

	return registerOps(reg, []op{
		generator("corevector.rect",
			[]registry.Param{
				optional("position", value.TypePoint, origin),
				optional("width", value.TypeFloat, value.Float(100)),
				optional("height", value.TypeFloat, value.Float(100)),
			},
			func(r *reader) geometry.Path {
				return geometry.RectPath(r.Point(0), r.Float(1), r.Float(2))
			}),
		generator("corevector.ellipse",
			[]registry.Param{
				optional("position", value.TypePoint, origin),
				optional("width", value.TypeFloat, value.Float(100)),
				optional("height", value.TypeFloat, value.Float(100)),
			},
			func(r *reader) geometry.Path {
				return geometry.EllipsePath(r.Point(0), r.Float(1), r.Float(2))
			}),
		generator("corevector.polygon",
			[]registry.Param{
				optional("position", value.TypePoint, origin),
				optional("radius", value.TypeFloat, value.Float(100)),
				optional("sides", value.TypeInt, value.Int(3)),
				optional("align", value.TypeBool, value.Bool(false)),
			},
			func(r *reader) geometry.Path {
				return geometry.PolygonPath(r.Point(0), r.Float(1), r.Count(2), r.Bool(3))
			}),
		generator("corevector.star",
			[]registry.Param{
				optional("position", value.TypePoint, origin),
				optional("points", value.TypeInt, value.Int(20)),
				optional("outer", value.TypeFloat, value.Float(200)),
				optional("inner", value.TypeFloat, value.Float(100)),
			},
			func(r *reader) geometry.Path {
				return geometry.StarPath(r.Point(0), r.Count(1), r.Float(2), r.Float(3))
			}),
		generator("corevector.line",
			[]registry.Param{
				optional("point1", value.TypePoint, origin),
				optional("point2", value.TypePoint, point(100, 100)),
				optional("points", value.TypeInt, value.Int(2)),
			},
			func(r *reader) geometry.Path {
				return geometry.LinePath(r.Point(0), r.Point(1), r.Count(2))
			}),
		{
			sig: registry.Signature{
				Name: "corevector.point",
				Params: []registry.Param{
					optional("x", value.TypeFloat, value.Float(0)),
					optional("y", value.TypeFloat, value.Float(0)),
				},
				Returns: value.TypePoint,
			},
			fn: func(_ context.Context, args []value.Value) (value.Value, error) {
				r := read(args)
				return r.result(point(r.Float(0), r.Float(1)))
			},
		},
		{
			sig: registry.Signature{
				Name: "corevector.grid",
				Params: []registry.Param{
					optional("columns", value.TypeInt, value.Int(10)),
					optional("rows", value.TypeInt, value.Int(10)),
					optional("width", value.TypeFloat, value.Float(300)),
					optional("height", value.TypeFloat, value.Float(300)),
					optional("position", value.TypePoint, origin),
				},
				Returns: value.TypeList,
			},
			fn: func(_ context.Context, args []value.Value) (value.Value, error) {
				r := read(args)
				columns, rows := max(r.Count(0), 1), max(r.Count(1), 1)
				if int64(columns)*int64(rows) > MaxItems {
					return value.Null, fmt.Errorf("%w: %d x %d grid exceeds %d points", ErrTooManyItems, columns, rows, MaxItems)
				}
				pts := geometry.Grid(columns, rows, r.Float(2), r.Float(3), r.Point(4))
				out := make([]value.Value, len(pts))
				for i, p := range pts {
					out[i] = value.Point(p)
				}
				return r.result(value.List(out...))
			},
		},
		{
			sig: registry.Signature{
				Name: "corevector.connect",
				Params: []registry.Param{
					list("points", value.TypePoint),
					optional("closed", value.TypeBool, value.Bool(false)),
				},
				Returns: value.TypeGeometry,
			},
			fn: func(_ context.Context, args []value.Value) (value.Value, error) {
				r := read(args)
				return r.result(value.Path(geometry.ConnectPath(r.Points(0), r.Bool(1))))
			},
		},
		{
			sig: registry.Signature{
				Name:    "corevector.merge",
				Params:  []registry.Param{list("shapes", value.TypeGeometry)},
				Returns: value.TypeGeometry,
			},
			fn: func(_ context.Context, args []value.Value) (value.Value, error) {
				r := read(args)
				items := r.Items(0)
				gs := make([]geometry.Geometry, 0, len(items))
				for _, it := range items {
					g, err := it.AsGeometry()
					if err != nil {
						return value.Null, err
					}
					gs = append(gs, g)
				}
				return value.Geometry(geometry.Merge(gs...)), nil
			},
		},
		filter("corevector.translate",
			[]registry.Param{optional("offset", value.TypePoint, origin)},
			func(g geometry.Geometry, r *reader) geometry.Geometry {
				off := r.Point(1)
				return g.Transform(geometry.Translate(off.X, off.Y))
			}),
		filter("corevector.scale",
			[]registry.Param{
				optional("scale", value.TypePoint, point(100, 100)),
				optional("origin", value.TypePoint, origin),
			},
			func(g geometry.Geometry, r *reader) geometry.Geometry {
				pct := r.Point(1)
				return g.Transform(geometry.Scale(pct.X/100, pct.Y/100).Around(r.Point(2)))
			}),
		filter("corevector.rotate",
			[]registry.Param{
				optional("angle", value.TypeFloat, value.Float(0)),
				optional("origin", value.TypePoint, origin),
			},
			func(g geometry.Geometry, r *reader) geometry.Geometry {
				return g.Transform(geometry.Rotate(r.Float(1)).Around(r.Point(2)))
			}),
		filter("corevector.colorize",
			[]registry.Param{
				optional("fill", value.TypeColor, value.Color(geometry.Black)),
				optional("stroke", value.TypeColor, value.Color(geometry.Black)),
				optional("stroke_width", value.TypeFloat, value.Float(0)),
			},
			func(g geometry.Geometry, r *reader) geometry.Geometry {
				return colorize(g, r.Color(1), r.Color(2), r.Float(3))
			}),
	})
}
