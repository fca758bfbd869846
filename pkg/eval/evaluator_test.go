package eval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/sync/errgroup"

	"github.com/dd0wney/cluso-nodegraph/pkg/config"
	"github.com/dd0wney/cluso-nodegraph/pkg/geometry"
	"github.com/dd0wney/cluso-nodegraph/pkg/graph"
	"github.com/dd0wney/cluso-nodegraph/pkg/metrics"
	"github.com/dd0wney/cluso-nodegraph/pkg/nodeerr"
	"github.com/dd0wney/cluso-nodegraph/pkg/ops"
	"github.com/dd0wney/cluso-nodegraph/pkg/parallel"
	"github.com/dd0wney/cluso-nodegraph/pkg/registry"
	"github.com/dd0wney/cluso-nodegraph/pkg/value"
)

// tally counts calls of the test.tally operation per tag
type tally struct {
	mu    sync.Mutex
	calls map[string]int
}

func (tl *tally) count(tag string) int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.calls[tag]
}

// testRegistry returns the standard operations plus a few instrumented ones
func testRegistry(t *testing.T) (*registry.Registry, *tally) {
	t.Helper()

	reg := registry.New()
	require.NoError(t, ops.RegisterAll(reg))

	tl := &tally{calls: make(map[string]int)}

	reg.MustRegister(registry.Signature{
		Name: "test.tally",
		Params: []registry.Param{
			{Name: "value", Type: value.TypeAny, Default: registry.Default(value.Null)},
			{Name: "tag", Type: value.TypeString, Default: registry.Default(value.String(""))},
		},
		Returns: value.TypeAny,
	}, func(_ context.Context, args []value.Value) (value.Value, error) {
		tag, _ := args[1].AsString()
		tl.mu.Lock()
		tl.calls[tag]++
		tl.mu.Unlock()
		return args[0], nil
	})

	reg.MustRegister(registry.Signature{
		Name:    "test.panic_if",
		Params:  []registry.Param{{Name: "value", Type: value.TypeBool, Default: registry.Default(value.Bool(false))}},
		Returns: value.TypeBool,
	}, func(_ context.Context, args []value.Value) (value.Value, error) {
		if b, _ := args[0].AsBool(); b {
			panic("boom")
		}
		return args[0], nil
	})

	reg.MustRegister(registry.Signature{
		Name:             "test.positive",
		Params:           []registry.Param{{Name: "value", Type: value.TypeFloat}},
		Returns:          value.TypeFloat,
		Elementwise:      true,
		ElementwiseParam: "value",
	}, func(_ context.Context, args []value.Value) (value.Value, error) {
		f, _ := args[0].AsFloat()
		if f < 0 {
			return value.Null, fmt.Errorf("negative value %v", f)
		}
		return args[0], nil
	})

	reg.MustRegister(registry.Signature{
		Name:             "test.block",
		Params:           []registry.Param{{Name: "value", Type: value.TypeFloat}},
		Returns:          value.TypeFloat,
		Elementwise:      true,
		ElementwiseParam: "value",
	}, func(ctx context.Context, _ []value.Value) (value.Value, error) {
		<-ctx.Done()
		return value.Null, ctx.Err()
	})

	reg.Freeze()
	return reg, tl
}

func newEvaluator(t *testing.T, reg *registry.Registry, mutate ...func(*config.Config)) *Evaluator {
	t.Helper()
	cfg := config.Default()
	cfg.Workers = 4
	for _, m := range mutate {
		m(&cfg)
	}
	e, err := New(nil, reg, WithConfig(cfg), WithMetrics(metrics.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

// builder adds nodes with ports populated from the registry
type builder struct {
	t   testing.TB
	net *graph.Network
	reg *registry.Registry
}

func newBuilder(t testing.TB, reg *registry.Registry, name string) *builder {
	return &builder{t: t, net: graph.NewNetwork(name), reg: reg}
}

func (b *builder) node(name, op string) graph.NodeID {
	id, err := b.net.AddNode(graph.NewNode(name, op))
	require.NoError(b.t, err)
	graph.PopulateDefaultPorts(b.net, b.reg.Lookup)
	return id
}

func (b *builder) set(id graph.NodeID, port string, v value.Value) {
	require.NoError(b.t, b.net.SetDefault(id, port, v))
}

func (b *builder) connect(from, to graph.NodeID, port string) {
	require.NoError(b.t, b.net.Connect(from, graph.DefaultOutput, to, port))
}

func (b *builder) render(id graph.NodeID) {
	require.NoError(b.t, b.net.SetRendered(id))
}

func (b *builder) ref(id graph.NodeID) graph.Ref {
	return graph.Ref{Net: b.net, ID: id}
}

func (b *builder) generation(id graph.NodeID) uint64 {
	n, ok := b.net.Node(id)
	require.True(b.t, ok)
	return n.Generation()
}

func TestNew_RequiresFrozenRegistry(t *testing.T) {
	_, err := New(nil, registry.New())
	assert.ErrorIs(t, err, ErrRegistryNotFrozen)

	_, err = New(nil, nil)
	assert.Error(t, err)

	reg, _ := testRegistry(t)
	cfg := config.Default()
	cfg.Workers = 0
	_, err = New(nil, reg, WithConfig(cfg))
	assert.Error(t, err)
}

func TestEvaluate_Deterministic(t *testing.T) {
	reg, _ := testRegistry(t)
	b := newBuilder(t, reg, "root")

	rng := b.node("range1", "math.range")
	b.set(rng, "end", value.Float(20))
	inc := b.node("add_one1", "math.add_one")
	b.connect(rng, inc, "value")
	total := b.node("sum1", "math.sum")
	b.connect(inc, total, "values")

	ctx := context.Background()
	first, err := newEvaluator(t, reg).Evaluate(ctx, b.ref(total))
	require.NoError(t, err)
	assert.True(t, first.Equal(value.Float(210)), "got %v", first)

	e := newEvaluator(t, reg, func(c *config.Config) { c.Workers = 1 })
	for i := 0; i < 3; i++ {
		again, err := e.Evaluate(ctx, b.ref(total))
		require.NoError(t, err)
		assert.True(t, again.Equal(first))
	}
}

func TestEvaluate_CycleDetected(t *testing.T) {
	reg, _ := testRegistry(t)
	b := newBuilder(t, reg, "root")

	a := b.node("A", "math.add")
	c := b.node("B", "math.add")
	b.connect(a, c, "value1")
	b.connect(c, a, "value1")

	e := newEvaluator(t, reg)
	_, err := e.Evaluate(context.Background(), b.ref(a))
	require.ErrorIs(t, err, nodeerr.ErrCycleDetected)

	ne, ok := nodeerr.As(err)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"A", "B"}, uniqueNames(ne.Cycle))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.ValidationFailuresTotal.WithLabelValues("cycle_detected")))
}

func uniqueNames(names []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func TestEvaluate_FanInOrder(t *testing.T) {
	reg, _ := testRegistry(t)
	b := newBuilder(t, reg, "root")

	strs := make(map[string]graph.NodeID)
	for _, s := range []string{"a", "b", "c"} {
		id := b.node("str_"+s, "string.string")
		b.set(id, "value", value.String(s))
		strs[s] = id
	}
	cat := b.node("concat", "string.concatenate")
	for _, s := range []string{"c", "a", "b"} {
		b.connect(strs[s], cat, "strings")
	}

	e := newEvaluator(t, reg)
	got, err := e.Evaluate(context.Background(), b.ref(cat))
	require.NoError(t, err)
	assert.True(t, got.Equal(value.String("cab")), "got %v", got)

	// A list source is flattened one level among scalar sources
	rng := b.node("range1", "math.range")
	b.set(rng, "end", value.Float(2))
	five := b.node("five", "math.number")
	b.set(five, "value", value.Float(5))
	comb := b.node("combine", "list.combine")
	b.connect(rng, comb, "list1")
	b.connect(five, comb, "list1")

	got, err = e.Evaluate(context.Background(), b.ref(comb))
	require.NoError(t, err)
	assert.True(t, got.Equal(value.Floats(0, 1, 5)), "got %v", got.Items())
}

func TestEvaluate_DefaultFallback(t *testing.T) {
	reg, _ := testRegistry(t)

	build := func(connectFactor bool) (*builder, graph.NodeID) {
		b := newBuilder(t, reg, "root")
		n := b.node("number1", "math.number")
		b.set(n, "value", value.Float(5))
		s := b.node("scale1", "math.scale")
		b.connect(n, s, "value")
		if connectFactor {
			one := b.node("one", "math.number")
			b.set(one, "value", value.Float(1))
			b.connect(one, s, "factor")
		}
		return b, s
	}

	e := newEvaluator(t, reg)
	bare, id := build(false)
	withDefault, err := e.Evaluate(context.Background(), bare.ref(id))
	require.NoError(t, err)

	wired, id2 := build(true)
	withConnection, err := e.Evaluate(context.Background(), wired.ref(id2))
	require.NoError(t, err)

	assert.True(t, withDefault.Equal(withConnection))
	assert.True(t, withDefault.Equal(value.Float(5)))

	// A node without ports falls back to the signature's defaults
	raw := graph.NewNetwork("raw")
	n := raw.MustAddNode(graph.NewNode("scale", "math.scale", graph.InputPort("value", value.TypeFloat, value.Float(5))))
	got, err := e.Evaluate(context.Background(), graph.Ref{Net: raw, ID: n})
	require.NoError(t, err)
	assert.True(t, got.Equal(value.Float(5)))
}

func TestEvaluate_SelectiveInvalidation(t *testing.T) {
	reg, tl := testRegistry(t)
	b := newBuilder(t, reg, "root")

	a := b.node("A", "math.number")
	b.set(a, "value", value.Float(1))
	nb := b.node("B", "test.tally")
	b.set(nb, "tag", value.String("b"))
	nc := b.node("C", "test.tally")
	b.set(nc, "tag", value.String("c"))
	nd := b.node("D", "test.tally")
	b.set(nd, "tag", value.String("d"))
	b.connect(a, nb, "value")
	b.connect(nb, nc, "value")

	e := newEvaluator(t, reg)
	ctx := context.Background()

	v, err := e.Evaluate(ctx, b.ref(nc))
	require.NoError(t, err)
	assert.True(t, v.Equal(value.Float(1)))
	_, err = e.Evaluate(ctx, b.ref(nd))
	require.NoError(t, err)
	require.Equal(t, 1, tl.count("b"))
	require.Equal(t, 1, tl.count("c"))
	require.Equal(t, 1, tl.count("d"))

	genA, genB, genC, genD := b.generation(a), b.generation(nb), b.generation(nc), b.generation(nd)

	b.set(a, "value", value.Float(2))

	assert.Greater(t, b.generation(a), genA)
	assert.Greater(t, b.generation(nb), genB)
	assert.Greater(t, b.generation(nc), genC)
	assert.Equal(t, genD, b.generation(nd), "unrelated node was invalidated")

	v, err = e.Evaluate(ctx, b.ref(nc))
	require.NoError(t, err)
	assert.True(t, v.Equal(value.Float(2)))
	assert.Equal(t, 2, tl.count("b"))
	assert.Equal(t, 2, tl.count("c"))
	assert.Equal(t, 3, e.LastPass().Computed)

	_, err = e.Evaluate(ctx, b.ref(nd))
	require.NoError(t, err)
	assert.Equal(t, 1, tl.count("d"), "unrelated node was recomputed")
	assert.Equal(t, 1, e.LastPass().Cached)
	assert.Equal(t, 0, e.LastPass().Computed)

	// Setting the same value again bumps generations but the resolved
	// inputs are unchanged, so every node reuses its value
	b.set(a, "value", value.Float(2))
	v, err = e.Evaluate(ctx, b.ref(nc))
	require.NoError(t, err)
	assert.True(t, v.Equal(value.Float(2)))
	assert.Equal(t, 2, tl.count("b"))
	assert.Equal(t, 2, tl.count("c"))
	assert.Equal(t, 3, e.LastPass().Reused)
	assert.Equal(t, 0, e.LastPass().Computed)

	assert.Equal(t, 3.0, testutil.ToFloat64(e.metrics.NodeEvaluationsTotal.WithLabelValues("test.tally", metrics.ResultReused))+
		testutil.ToFloat64(e.metrics.NodeEvaluationsTotal.WithLabelValues("math.number", metrics.ResultReused)))
	assert.Equal(t, 6.0, testutil.ToFloat64(e.metrics.InvalidationsTotal))
}

func TestEvaluate_ParallelOrderPreserved(t *testing.T) {
	reg, _ := testRegistry(t)
	b := newBuilder(t, reg, "root")

	rng := b.node("range1", "math.range")
	b.set(rng, "start", value.Float(1))
	b.set(rng, "end", value.Float(5))
	inc := b.node("add_one1", "math.add_one")
	b.connect(rng, inc, "value")

	want := value.Floats(2, 3, 4, 5)
	for workers := 1; workers <= 8; workers++ {
		for chunk := 1; chunk <= 4; chunk++ {
			t.Run(fmt.Sprintf("workers=%d/chunk=%d", workers, chunk), func(t *testing.T) {
				e := newEvaluator(t, reg, func(c *config.Config) {
					c.Workers = workers
					c.ChunkSize = chunk
				})
				got, err := e.Evaluate(context.Background(), b.ref(inc))
				require.NoError(t, err)
				assert.True(t, got.Equal(want), "got %v", got.Items())
				assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.ParallelDispatchesTotal))
				assert.Equal(t, float64(parallel.ChunkCount(4, chunk)), testutil.ToFloat64(e.metrics.ParallelChunksTotal))
			})
		}
	}
}

func TestEvaluate_ShortListsRunInline(t *testing.T) {
	reg, _ := testRegistry(t)
	b := newBuilder(t, reg, "root")

	rng := b.node("range1", "math.range")
	b.set(rng, "end", value.Float(3))
	neg := b.node("negate1", "math.negate")
	b.connect(rng, neg, "value")

	e := newEvaluator(t, reg, func(c *config.Config) { c.MinParallelItems = 10 })
	got, err := e.Evaluate(context.Background(), b.ref(neg))
	require.NoError(t, err)
	assert.True(t, got.Equal(value.Floats(0, -1, -2)))
	assert.Equal(t, 0.0, testutil.ToFloat64(e.metrics.ParallelDispatchesTotal))

	b.set(rng, "end", value.Float(0))
	got, err = e.Evaluate(context.Background(), b.ref(neg))
	require.NoError(t, err)
	assert.True(t, got.Equal(value.List()))
}

// translateNetwork returns a child network translating its "shape" input
func translateNetwork(t *testing.T, reg *registry.Registry, dx float64) (*builder, graph.NodeID) {
	cb := newBuilder(t, reg, "translate_net")
	in := cb.net.MustAddNode(graph.NewInputNode("shape", value.TypeGeometry, value.Null))
	tr := cb.node("translate1", "corevector.translate")
	cb.connect(in, tr, "shape")
	cb.set(tr, "offset", value.Point(geometry.Pt(dx, 0)))
	cb.render(tr)
	return cb, tr
}

func TestEvaluate_CompoundPassThrough(t *testing.T) {
	reg, _ := testRegistry(t)
	child, tr := translateNetwork(t, reg, 50)

	b := newBuilder(t, reg, "root")
	rect := b.node("rect1", "corevector.rect")
	comp := b.net.MustAddNode(graph.NewCompoundNode("compound1", child.net))
	b.connect(rect, comp, "shape")
	b.render(comp)

	e := newEvaluator(t, reg)
	ctx := context.Background()

	got, err := e.Evaluate(ctx, b.ref(comp))
	require.NoError(t, err)
	g, err := got.AsGeometry()
	require.NoError(t, err)
	assert.Equal(t, geometry.Rect{X: 0, Y: -50, Width: 100, Height: 100}, g.Bounds())

	// Same result as translating at the root
	direct := b.node("translate_direct", "corevector.translate")
	b.connect(rect, direct, "shape")
	b.set(direct, "offset", value.Point(geometry.Pt(50, 0)))
	want, err := e.Evaluate(ctx, b.ref(direct))
	require.NoError(t, err)
	assert.True(t, got.Equal(want))

	// Editing inside the child invalidates the compound node
	child.set(tr, "offset", value.Point(geometry.Pt(100, 0)))
	got, err = e.Evaluate(ctx, b.ref(comp))
	require.NoError(t, err)
	g, _ = got.AsGeometry()
	assert.Equal(t, 50.0, g.Bounds().X)
}

func TestEvaluate_CompoundErrorPath(t *testing.T) {
	reg, _ := testRegistry(t)

	cb := newBuilder(t, reg, "inner")
	boom := cb.node("boom", "test.panic_if")
	cb.set(boom, "value", value.Bool(true))
	cb.render(boom)

	b := newBuilder(t, reg, "root")
	comp := b.net.MustAddNode(graph.NewCompoundNode("outer", cb.net))

	e := newEvaluator(t, reg)
	_, err := e.Evaluate(context.Background(), b.ref(comp))
	require.ErrorIs(t, err, nodeerr.ErrOpPanic)
	ne, _ := nodeerr.As(err)
	assert.Equal(t, []string{"outer", "boom"}, ne.Path)

	empty := b.net.MustAddNode(graph.NewCompoundNode("empty", graph.NewNetwork("nothing")))
	_, err = e.Evaluate(context.Background(), b.ref(empty))
	assert.ErrorIs(t, err, nodeerr.ErrNoRenderedNode)
}

func TestEvaluateNetwork_Bindings(t *testing.T) {
	reg, _ := testRegistry(t)
	b := newBuilder(t, reg, "scaler")

	x := b.net.MustAddNode(graph.NewInputNode("x", value.TypeFloat, value.Float(1)))
	s := b.node("scale1", "math.scale")
	b.connect(x, s, "value")
	b.set(s, "factor", value.Float(3))
	b.render(s)

	e := newEvaluator(t, reg)
	ctx := context.Background()

	tests := []struct {
		name     string
		bindings []value.Value
		want     value.Value
	}{
		{"unbound uses own value", nil, value.Float(3)},
		{"bound float", []value.Value{value.Float(2)}, value.Float(6)},
		{"bound int is coerced", []value.Value{value.Int(4)}, value.Float(12)},
		{"unbound again", nil, value.Float(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.EvaluateNetwork(ctx, b.net, tt.bindings)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v", got)
		})
	}

	_, err := e.EvaluateNetwork(ctx, b.net, []value.Value{value.String("nope")})
	assert.ErrorIs(t, err, nodeerr.ErrTypeMismatch)

	_, err = e.EvaluateNetwork(ctx, graph.NewNetwork("empty"), nil)
	assert.ErrorIs(t, err, nodeerr.ErrNoRenderedNode)
}

func TestEvaluate_FailuresAreNotCached(t *testing.T) {
	reg, _ := testRegistry(t)
	b := newBuilder(t, reg, "root")

	boom := b.node("exploder", "test.panic_if")
	b.set(boom, "value", value.Bool(true))

	e := newEvaluator(t, reg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := e.Evaluate(ctx, b.ref(boom))
		require.ErrorIs(t, err, nodeerr.ErrOpPanic)
		ne, _ := nodeerr.As(err)
		assert.Equal(t, "exploder", ne.Node())
		assert.Equal(t, 1, e.LastPass().Failed)
	}

	b.set(boom, "value", value.Bool(false))
	got, err := e.Evaluate(ctx, b.ref(boom))
	require.NoError(t, err)
	assert.True(t, got.Equal(value.Bool(false)))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.metrics.EvaluationsTotal.WithLabelValues("error")))
}

func TestEvaluate_ElementErrorReportsSmallestIndex(t *testing.T) {
	reg, _ := testRegistry(t)
	b := newBuilder(t, reg, "root")

	src := b.node("items", "list.combine")
	b.set(src, "list1", value.Floats(1, -1, 2, -2, 3, -3))
	check := b.node("check", "test.positive")
	b.connect(src, check, "value")

	for _, chunk := range []int{1, 2, 4} {
		e := newEvaluator(t, reg, func(c *config.Config) { c.ChunkSize = chunk })
		_, err := e.Evaluate(context.Background(), b.ref(check))
		require.ErrorIs(t, err, nodeerr.ErrOpPanic)

		var item *parallel.ItemError
		require.True(t, errors.As(err, &item))
		assert.Equal(t, 1, item.Index)

		ne, _ := nodeerr.As(err)
		assert.Equal(t, "check", ne.Node())
		assert.Equal(t, "value", ne.Port)
	}
}

func TestEvaluate_NodeErrors(t *testing.T) {
	reg, _ := testRegistry(t)
	e := newEvaluator(t, reg)
	ctx := context.Background()

	t.Run("type mismatch", func(t *testing.T) {
		b := newBuilder(t, reg, "root")
		s := b.node("text", "string.string")
		b.set(s, "value", value.String("abc"))
		add := b.node("add1", "math.add")
		b.connect(s, add, "value1")

		_, err := e.Evaluate(ctx, b.ref(add))
		require.ErrorIs(t, err, nodeerr.ErrTypeMismatch)
		ne, _ := nodeerr.As(err)
		assert.Equal(t, "add1", ne.Node())
		assert.Equal(t, "value1", ne.Port)
		assert.Equal(t, "float", ne.Expected)
		assert.Equal(t, "string", ne.Found)
	})

	t.Run("unknown operation", func(t *testing.T) {
		net := graph.NewNetwork("root")
		id := net.MustAddNode(graph.NewNode("mystery", "nope.missing"))
		_, err := e.Evaluate(ctx, graph.Ref{Net: net, ID: id})
		require.ErrorIs(t, err, nodeerr.ErrUnknownOperation)
		ne, _ := nodeerr.As(err)
		assert.Equal(t, "nope.missing", ne.Name)
	})

	t.Run("missing node", func(t *testing.T) {
		_, err := e.Evaluate(ctx, graph.Ref{Net: graph.NewNetwork("root"), ID: 42})
		assert.ErrorIs(t, err, nodeerr.ErrNodeNotFound)
		_, err = e.Evaluate(ctx, graph.Ref{})
		assert.ErrorIs(t, err, nodeerr.ErrNodeNotFound)
	})

	t.Run("missing required port", func(t *testing.T) {
		net := graph.NewNetwork("root")
		id := net.MustAddNode(graph.NewNode("pos", "test.positive"))
		_, err := e.Evaluate(ctx, graph.Ref{Net: net, ID: id})
		require.ErrorIs(t, err, nodeerr.ErrArityMismatch)
		ne, _ := nodeerr.As(err)
		assert.Equal(t, "pos", ne.Node())
		assert.Equal(t, "1", ne.Expected)
		assert.Equal(t, "0", ne.Found)
	})

	t.Run("unexpected input port", func(t *testing.T) {
		net := graph.NewNetwork("root")
		id := net.MustAddNode(graph.NewNode("pos", "test.positive",
			graph.InputPort("value", value.TypeFloat, value.Float(1)),
			graph.InputPort("bogus", value.TypeFloat, value.Float(2)),
			graph.OutputPort(graph.DefaultOutput, value.TypeFloat),
		))
		_, err := e.Evaluate(ctx, graph.Ref{Net: net, ID: id})
		require.ErrorIs(t, err, nodeerr.ErrArityMismatch)
		ne, _ := nodeerr.As(err)
		assert.Equal(t, "pos", ne.Node())
		assert.Equal(t, "2", ne.Found)
	})

	t.Run("divide by zero", func(t *testing.T) {
		b := newBuilder(t, reg, "root")
		div := b.node("divide1", "math.divide")
		b.set(div, "value2", value.Float(0))
		_, err := e.Evaluate(ctx, b.ref(div))
		assert.ErrorIs(t, err, ops.ErrDivideByZero)
		assert.ErrorIs(t, err, nodeerr.ErrOpPanic)
	})
}

func TestEvaluate_NonFiniteRangeFailsOnlyItsNode(t *testing.T) {
	reg, _ := testRegistry(t)
	b := newBuilder(t, reg, "root")

	sq := b.node("sqrt1", "math.sqrt")
	b.set(sq, "value", value.Float(-1))
	rng := b.node("range1", "math.range")
	b.connect(sq, rng, "start")
	b.set(rng, "end", value.Float(10))

	e := newEvaluator(t, reg)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := e.Evaluate(ctx, b.ref(rng))
	require.ErrorIs(t, err, ops.ErrNotFinite)
	require.NoError(t, ctx.Err(), "range must fail before the deadline")
	ne, _ := nodeerr.As(err)
	assert.Equal(t, "range1", ne.Node())

	// The engine stays usable: edits land and the next pass succeeds
	b.set(sq, "value", value.Float(4))
	got, err := e.Evaluate(ctx, b.ref(rng))
	require.NoError(t, err)
	assert.True(t, got.Equal(value.Floats(2, 3, 4, 5, 6, 7, 8, 9)))

	b.set(rng, "end", value.Float(1e12))
	_, err = e.Evaluate(ctx, b.ref(rng))
	assert.ErrorIs(t, err, ops.ErrTooManyItems)
}

func TestEvaluate_DepthLimit(t *testing.T) {
	reg, _ := testRegistry(t)

	leaf := newBuilder(t, reg, "level3")
	n := leaf.node("n", "math.number")
	leaf.set(n, "value", value.Float(7))
	leaf.render(n)

	inner := leaf.net
	for i := 2; i >= 0; i-- {
		outer := graph.NewNetwork(fmt.Sprintf("level%d", i))
		c := outer.MustAddNode(graph.NewCompoundNode(fmt.Sprintf("c%d", i), inner))
		require.NoError(t, outer.SetRendered(c))
		inner = outer
	}
	root := inner
	id, _ := root.Rendered()

	shallow := newEvaluator(t, reg, func(c *config.Config) { c.MaxNetworkDepth = 2 })
	_, err := shallow.Evaluate(context.Background(), graph.Ref{Net: root, ID: id})
	assert.ErrorIs(t, err, nodeerr.ErrRecursiveNetwork)

	deep := newEvaluator(t, reg)
	got, err := deep.Evaluate(context.Background(), graph.Ref{Net: root, ID: id})
	require.NoError(t, err)
	assert.True(t, got.Equal(value.Float(7)))
}

func TestEvaluate_Cancellation(t *testing.T) {
	reg, _ := testRegistry(t)
	b := newBuilder(t, reg, "root")

	src := b.node("items", "list.combine")
	b.set(src, "list1", value.Floats(1, 2, 3, 4, 5, 6, 7, 8))
	blocked := b.node("block", "test.block")
	b.connect(src, blocked, "value")
	num := b.node("number1", "math.number")

	e := newEvaluator(t, reg)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Evaluate(canceled, b.ref(num))
	assert.ErrorIs(t, err, context.Canceled)

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancelTimeout()
	_, err = e.Evaluate(ctx, b.ref(blocked))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2.0, testutil.ToFloat64(e.metrics.EvaluationsTotal.WithLabelValues("canceled")))

	// Nothing from the canceled passes was cached
	got, err := e.Evaluate(context.Background(), b.ref(num))
	require.NoError(t, err)
	assert.True(t, got.Equal(value.Float(0)))
	assert.Equal(t, 1, e.LastPass().Computed)
}

func TestEvaluate_ConcurrentCallers(t *testing.T) {
	reg, _ := testRegistry(t)
	b := newBuilder(t, reg, "root")

	rng := b.node("range1", "math.range")
	b.set(rng, "end", value.Float(100))
	sq := b.node("sqrt1", "math.sqrt")
	b.connect(rng, sq, "value")
	total := b.node("sum1", "math.sum")
	b.connect(sq, total, "values")

	e := newEvaluator(t, reg)
	want, err := e.Evaluate(context.Background(), b.ref(total))
	require.NoError(t, err)
	e.Reset()

	var g errgroup.Group
	results := make([]value.Value, 16)
	for i := range results {
		g.Go(func() error {
			v, err := e.Evaluate(context.Background(), b.ref(total))
			results[i] = v
			return err
		})
	}
	require.NoError(t, g.Wait())
	for _, v := range results {
		assert.True(t, v.Equal(want))
	}

	// Edits interleaved with evaluations; every result matches some
	// committed end value and the last one matches the final state
	g = errgroup.Group{}
	g.Go(func() error {
		for end := 1; end <= 20; end++ {
			if err := b.net.SetDefault(rng, "end", value.Float(float64(end))); err != nil {
				return err
			}
		}
		return nil
	})
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			for j := 0; j < 10; j++ {
				if _, err := e.Evaluate(context.Background(), b.ref(total)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	final, err := e.Evaluate(context.Background(), b.ref(total))
	require.NoError(t, err)
	fresh, err := newEvaluator(t, reg).Evaluate(context.Background(), b.ref(total))
	require.NoError(t, err)
	assert.True(t, final.Equal(fresh))
}

func TestEvaluate_SharedPassOutlivesCanceledCaller(t *testing.T) {
	reg := registry.New()
	require.NoError(t, ops.RegisterAll(reg))

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	reg.MustRegister(registry.Signature{
		Name:    "test.wait",
		Params:  []registry.Param{{Name: "value", Type: value.TypeFloat, Default: registry.Default(value.Float(0))}},
		Returns: value.TypeFloat,
	}, func(ctx context.Context, args []value.Value) (value.Value, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-release:
			return args[0], nil
		case <-ctx.Done():
			return value.Null, ctx.Err()
		}
	})
	reg.Freeze()

	b := newBuilder(t, reg, "root")
	w := b.node("wait1", "test.wait")
	b.set(w, "value", value.Float(3))
	e := newEvaluator(t, reg)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	firstErr := make(chan error, 1)
	go func() {
		_, err := e.Evaluate(firstCtx, b.ref(w))
		firstErr <- err
	}()
	<-started

	type result struct {
		v   value.Value
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, err := e.Evaluate(context.Background(), b.ref(w))
		second <- result{v, err}
	}()

	// Both callers wait on the same pass
	require.Eventually(t, func() bool {
		e.flightMu.Lock()
		defer e.flightMu.Unlock()
		for _, f := range e.flights {
			return f.waiters == 2
		}
		return false
	}, time.Second, time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	r := <-second
	require.NoError(t, r.err)
	assert.True(t, r.v.Equal(value.Float(3)))
	assert.Equal(t, 1, e.LastPass().Computed)
}

func TestEvaluateRendered(t *testing.T) {
	reg, _ := testRegistry(t)
	b := newBuilder(t, reg, "root")
	lib := graph.NewLibrary("demo", b.net)

	cfg := config.Default()
	e, err := New(lib, reg, WithConfig(cfg), WithMetrics(metrics.NewRegistry()))
	require.NoError(t, err)
	defer e.Close()

	_, err = e.EvaluateRendered(context.Background())
	assert.ErrorIs(t, err, nodeerr.ErrNoRenderedNode)

	n := b.node("number1", "math.number")
	b.set(n, "value", value.Float(9))
	b.render(n)

	got, err := e.EvaluateRendered(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Equal(value.Float(9)))

	e.Reset()
	_, err = e.EvaluateRendered(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, e.LastPass().Computed, "reset should drop cached values")
	assert.NotEmpty(t, e.LastPass().ID)
}

func TestEvaluate_Spans(t *testing.T) {
	reg, _ := testRegistry(t)
	b := newBuilder(t, reg, "root")

	rng := b.node("range1", "math.range")
	inc := b.node("add_one1", "math.add_one")
	b.connect(rng, inc, "value")
	boom := b.node("boom", "test.panic_if")
	b.set(boom, "value", value.Bool(true))

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	e, err := New(nil, reg, WithTracerProvider(tp), WithMetrics(metrics.NewRegistry()))
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Evaluate(context.Background(), b.ref(inc))
	require.NoError(t, err)
	_, err = e.Evaluate(context.Background(), b.ref(boom))
	require.Error(t, err)

	var passes, dispatches int
	var sawError bool
	for _, s := range sr.Ended() {
		switch s.Name() {
		case "nodegraph.Evaluate":
			passes++
			if s.Status().Code == codes.Error {
				sawError = true
			}
		case "nodegraph.Elementwise":
			dispatches++
		}
	}
	assert.Equal(t, 2, passes)
	assert.Equal(t, 1, dispatches)
	assert.True(t, sawError, "failed pass should record an error status")
}
