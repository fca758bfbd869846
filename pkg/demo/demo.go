// Package demo builds small example libraries used by the command line
// tools and the examples directory.
package demo

import (
	"fmt"
	"sort"

	"github.com/dd0wney/cluso-nodegraph/pkg/geometry"
	"github.com/dd0wney/cluso-nodegraph/pkg/graph"
	"github.com/dd0wney/cluso-nodegraph/pkg/registry"
	"github.com/dd0wney/cluso-nodegraph/pkg/value"
)

// Demo is a named library builder with an optional follow-up edit
type Demo struct {
	Name        string
	Description string

	// Build creates the library. Ports are populated from reg.
	Build func(reg *registry.Registry) (*graph.Library, error)

	// Edit changes one parameter of a built library so a second pass can
	// show selective re-evaluation. It returns a description of the change.
	Edit func(lib *graph.Library) (string, error)
}

var demos = map[string]Demo{
	"numbers": {
		Name:        "numbers",
		Description: "range -> sqrt (elementwise) -> sum",
		Build:       buildNumbers,
		Edit:        editParam("range1", "end", value.Float(200)),
	},
	"shapes": {
		Name:        "shapes",
		Description: "rect, ellipse and star colorized and merged",
		Build:       buildShapes,
		Edit:        editParam("star1", "points", value.Int(7)),
	},
	"grid": {
		Name:        "grid",
		Description: "grid points joined into a stroked polyline",
		Build:       buildGrid,
		Edit:        editParam("grid1", "columns", value.Int(8)),
	},
	"compound": {
		Name:        "compound",
		Description: "rect passed through a child network that translates and colors it",
		Build:       buildCompound,
		Edit:        editPath("/root/compound1/translate1", "offset", value.Point(geometry.Pt(0, 80))),
	},
	"strings": {
		Name:        "strings",
		Description: "split, uppercase and rejoin a string",
		Build:       buildStrings,
		Edit:        editParam("split", "value", value.String("nodes,all,the,way,down")),
	},
}

// Names returns the demo names in order
func Names() []string {
	names := make([]string, 0, len(demos))
	for name := range demos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named demo
func Lookup(name string) (Demo, bool) {
	d, ok := demos[name]
	return d, ok
}

// builder wraps a network under construction and keeps the first error
type builder struct {
	net *graph.Network
	reg *registry.Registry
	err error
}

func newBuilder(name string, reg *registry.Registry) *builder {
	return &builder{net: graph.NewNetwork(name), reg: reg}
}

func (b *builder) node(name, op string) graph.NodeID {
	if b.err != nil {
		return 0
	}
	if _, ok := b.reg.Lookup(op); !ok {
		b.err = fmt.Errorf("demo uses unknown operation %s", op)
		return 0
	}
	id, err := b.net.AddNode(graph.NewNode(name, op))
	if err != nil {
		b.err = err
		return 0
	}
	graph.PopulateDefaultPorts(b.net, b.reg.Lookup)
	return id
}

func (b *builder) add(n *graph.Node) graph.NodeID {
	if b.err != nil {
		return 0
	}
	id, err := b.net.AddNode(n)
	if err != nil {
		b.err = err
	}
	return id
}

func (b *builder) set(id graph.NodeID, port string, v value.Value) {
	if b.err == nil {
		b.err = b.net.SetDefault(id, port, v)
	}
}

func (b *builder) connect(from, to graph.NodeID, port string) {
	if b.err == nil {
		b.err = b.net.Connect(from, graph.DefaultOutput, to, port)
	}
}

func (b *builder) render(id graph.NodeID) {
	if b.err == nil {
		b.err = b.net.SetRendered(id)
	}
}

func (b *builder) library(name string) (*graph.Library, error) {
	if b.err != nil {
		return nil, fmt.Errorf("failed to build %s demo: %w", name, b.err)
	}
	lib := graph.NewLibrary(name, b.net)
	if err := graph.Validate(lib.Root); err != nil {
		return nil, fmt.Errorf("%s demo is invalid: %w", name, err)
	}
	if err := graph.ValidateOps(lib.Root, b.reg.Lookup); err != nil {
		return nil, fmt.Errorf("%s demo is invalid: %w", name, err)
	}
	return lib, nil
}

func buildNumbers(reg *registry.Registry) (*graph.Library, error) {
	b := newBuilder("root", reg)

	rng := b.node("range1", "math.range")
	b.set(rng, "end", value.Float(100))
	root := b.node("sqrt1", "math.sqrt")
	b.connect(rng, root, "value")
	total := b.node("sum1", "math.sum")
	b.connect(root, total, "values")
	b.render(total)

	return b.library("numbers")
}

func buildShapes(reg *registry.Registry) (*graph.Library, error) {
	b := newBuilder("root", reg)

	rect := b.node("rect1", "corevector.rect")
	b.set(rect, "position", value.Point(geometry.Pt(-250, 0)))
	ellipse := b.node("ellipse1", "corevector.ellipse")
	b.set(ellipse, "width", value.Float(150))
	star := b.node("star1", "corevector.star")
	b.set(star, "position", value.Point(geometry.Pt(250, 0)))
	b.set(star, "points", value.Int(5))
	b.set(star, "outer", value.Float(90))
	b.set(star, "inner", value.Float(40))

	red := b.node("red", "color.rgb")
	b.set(red, "red", value.Float(230))
	b.set(red, "green", value.Float(60))
	b.set(red, "blue", value.Float(50))
	b.set(red, "alpha", value.Float(255))
	b.set(red, "range", value.Float(255))

	merge := b.node("merge1", "corevector.merge")
	for _, id := range []graph.NodeID{rect, ellipse, star} {
		b.connect(id, merge, "shapes")
	}
	paint := b.node("colorize1", "corevector.colorize")
	b.connect(merge, paint, "shape")
	b.connect(red, paint, "fill")
	b.set(paint, "stroke_width", value.Float(2))
	b.render(paint)

	return b.library("shapes")
}

func buildGrid(reg *registry.Registry) (*graph.Library, error) {
	b := newBuilder("root", reg)

	grid := b.node("grid1", "corevector.grid")
	b.set(grid, "columns", value.Int(4))
	b.set(grid, "rows", value.Int(4))
	line := b.node("connect1", "corevector.connect")
	b.connect(grid, line, "points")
	rot := b.node("rotate1", "corevector.rotate")
	b.connect(line, rot, "shape")
	b.set(rot, "angle", value.Float(45))
	b.render(rot)

	lib, err := b.library("grid")
	if err != nil {
		return nil, err
	}
	lib.SetProperty(graph.PropCanvasWidth, "600")
	lib.SetProperty(graph.PropCanvasHeight, "600")
	return lib, nil
}

// shiftAndPaint is a child network: its "shape" input is translated and
// filled
func shiftAndPaint(reg *registry.Registry) (*graph.Network, error) {
	b := newBuilder("shift_and_paint", reg)

	in := b.add(graph.NewInputNode("shape", value.TypeGeometry, value.Null))
	tr := b.node("translate1", "corevector.translate")
	b.connect(in, tr, "shape")
	b.set(tr, "offset", value.Point(geometry.Pt(50, 0)))
	paint := b.node("colorize1", "corevector.colorize")
	b.connect(tr, paint, "shape")
	b.set(paint, "fill", value.Color(geometry.RGB(0.2, 0.4, 0.9)))
	b.render(paint)

	if b.err != nil {
		return nil, b.err
	}
	return b.net, nil
}

func buildCompound(reg *registry.Registry) (*graph.Library, error) {
	child, err := shiftAndPaint(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to build compound demo: %w", err)
	}

	b := newBuilder("root", reg)
	rect := b.node("rect1", "corevector.rect")
	comp := b.add(graph.NewCompoundNode("compound1", child))
	b.connect(rect, comp, "shape")
	b.render(comp)

	lib, err := b.library("compound")
	if err != nil {
		return nil, err
	}
	if err := lib.AddPrototype(graph.NewCompoundNode("shift_and_paint", child.Clone())); err != nil {
		return nil, err
	}
	return lib, nil
}

func buildStrings(reg *registry.Registry) (*graph.Library, error) {
	b := newBuilder("root", reg)

	split := b.node("split", "string.make_strings")
	b.set(split, "value", value.String("hello,node,graph"))
	b.set(split, "separator", value.String(","))
	upper := b.node("upper", "string.uppercase")
	b.connect(split, upper, "value")
	join := b.node("join", "string.concatenate")
	b.connect(upper, join, "strings")
	b.render(join)

	return b.library("strings")
}

func editParam(node, port string, v value.Value) func(*graph.Library) (string, error) {
	return editPath("/root/"+node, port, v)
}

func editPath(path, port string, v value.Value) func(*graph.Library) (string, error) {
	return func(lib *graph.Library) (string, error) {
		ref, err := lib.NodeAtPath(path)
		if err != nil {
			return "", err
		}
		if err := ref.Net.SetDefault(ref.ID, port, v); err != nil {
			return "", err
		}
		return fmt.Sprintf("set %s.%s = %s", path, port, v), nil
	}
}
