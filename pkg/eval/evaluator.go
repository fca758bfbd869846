// Package eval turns a node graph into a value.
//
// An Evaluator walks the graph from a target node, gathering each node's
// inputs in port and connection order, coercing them to the operation's
// parameter types and invoking the registry. Results are cached per node
// and reused until the node's generation changes; a stale node whose
// resolved inputs are unchanged reuses its previous value without running
// the operation. Elementwise operations receiving a list are mapped over it
// on a bounded worker pool.
//
// Passes are serialized. Concurrent requests for the same target in the
// same edit epoch share one pass. Graph edits block while a pass runs.
package eval

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/dd0wney/cluso-nodegraph/pkg/config"
	"github.com/dd0wney/cluso-nodegraph/pkg/graph"
	"github.com/dd0wney/cluso-nodegraph/pkg/logging"
	"github.com/dd0wney/cluso-nodegraph/pkg/metrics"
	"github.com/dd0wney/cluso-nodegraph/pkg/nodeerr"
	"github.com/dd0wney/cluso-nodegraph/pkg/parallel"
	"github.com/dd0wney/cluso-nodegraph/pkg/registry"
	"github.com/dd0wney/cluso-nodegraph/pkg/value"
)

const tracerName = "nodegraph.eval"

// Operation labels for nodes that are not bound to a registry operation
const (
	labelCompound = "network"
)

// ErrRegistryNotFrozen is returned by New when the registry can still change
var ErrRegistryNotFrozen = errors.New("registry must be frozen before evaluation")

// Option configures an Evaluator
type Option func(*Evaluator)

// WithConfig sets worker count, chunking and depth limits
func WithConfig(cfg config.Config) Option {
	return func(e *Evaluator) {
		e.cfg = cfg
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l logging.Logger) Option {
	return func(e *Evaluator) {
		e.logger = l
	}
}

// WithMetrics sets the metrics registry. The default is the process-wide
// metrics.DefaultRegistry.
func WithMetrics(m *metrics.Registry) Option {
	return func(e *Evaluator) {
		e.metrics = m
	}
}

// WithTracerProvider sets the OpenTelemetry provider. The default is the
// global provider, a no-op unless the host installs one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Evaluator) {
		e.tracer = tp.Tracer(tracerName)
	}
}

// PassStats summarizes one evaluation pass
type PassStats struct {
	ID       string
	Computed int
	Cached   int
	Reused   int
	Failed   int
	Duration time.Duration
}

type cacheKey struct {
	net *graph.Network
	id  graph.NodeID
}

type cacheEntry struct {
	generation  uint64
	scope       Fingerprint
	fingerprint Fingerprint
	value       value.Value
}

// Evaluator evaluates nodes of a library against a frozen registry
type Evaluator struct {
	lib     *graph.Library
	reg     *registry.Registry
	cfg     config.Config
	logger  logging.Logger
	metrics *metrics.Registry
	tracer  trace.Tracer
	pool    *parallel.WorkerPool

	group     singleflight.Group
	flightMu  sync.Mutex
	flights   map[string]*flight
	flightSeq uint64

	// passMu serializes passes and guards everything below it
	passMu            sync.Mutex
	cache             map[cacheKey]*cacheEntry
	seenInvalidations map[*graph.EditGuard]uint64
	last              PassStats
}

// New creates an evaluator. lib may be nil when only Evaluate and
// EvaluateNetwork are used.
func New(lib *graph.Library, reg *registry.Registry, opts ...Option) (*Evaluator, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if !reg.Frozen() {
		return nil, ErrRegistryNotFrozen
	}

	e := &Evaluator{
		lib:               lib,
		reg:               reg,
		cfg:               config.Default(),
		logger:            logging.NewNopLogger(),
		tracer:            otel.Tracer(tracerName),
		cache:             make(map[cacheKey]*cacheEntry),
		seenInvalidations: make(map[*graph.EditGuard]uint64),
		flights:           make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.DefaultRegistry()
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid evaluator config: %w", err)
	}

	pool, err := parallel.NewWorkerPool(e.cfg.Workers, parallel.WithPanicHandler(func(r any) {
		e.logger.Error("worker panic recovered", logging.Any("panic", r))
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	e.pool = pool
	e.metrics.SetRegistryOperations(reg.Len())

	return e, nil
}

// Close stops the worker pool. The evaluator must not be used afterwards.
func (e *Evaluator) Close() {
	e.pool.Close()
}

// Config returns the evaluator's configuration
func (e *Evaluator) Config() config.Config {
	return e.cfg
}

// LastPass returns statistics of the most recent pass
func (e *Evaluator) LastPass() PassStats {
	e.passMu.Lock()
	defer e.passMu.Unlock()
	return e.last
}

// Reset drops every cached result
func (e *Evaluator) Reset() {
	e.passMu.Lock()
	defer e.passMu.Unlock()
	e.cache = make(map[cacheKey]*cacheEntry)
}

// Evaluate computes the value of the target node. Concurrent calls for the
// same target within one edit epoch share a single pass and its result.
// A caller whose ctx ends stops waiting; the shared pass is canceled only
// once every caller has stopped waiting.
func (e *Evaluator) Evaluate(ctx context.Context, target graph.Ref) (value.Value, error) {
	if target.Net == nil {
		return value.Null, nodeerr.New("Evaluate").Kind(nodeerr.ErrNodeNotFound).Err()
	}
	if err := ctx.Err(); err != nil {
		e.metrics.RecordEvaluation("canceled", 0)
		return value.Null, err
	}

	key := fmt.Sprintf("%p:%d:%d", target.Net, target.ID, target.Net.Guard().Epoch())
	f := e.join(ctx, key)
	ch := e.group.DoChan(f.id, func() (any, error) {
		return e.run(f.ctx, target.Net, target.ID, nil)
	})

	select {
	case res := <-ch:
		e.leave(key, f)
		v, _ := res.Val.(value.Value)
		return v, res.Err
	case <-ctx.Done():
		if e.leave(key, f) {
			// Wait for the canceled pass to unwind so its stats and
			// metrics are settled when this call returns
			<-ch
		}
		return value.Null, ctx.Err()
	}
}

// EvaluateRendered evaluates the rendered node of the library's root network
func (e *Evaluator) EvaluateRendered(ctx context.Context) (value.Value, error) {
	if e.lib == nil {
		return value.Null, fmt.Errorf("evaluator has no library")
	}
	ref, err := e.lib.Rendered()
	if err != nil {
		return value.Null, err
	}
	return e.Evaluate(ctx, ref)
}

// EvaluateNetwork evaluates the rendered node of net with bindings supplied
// positionally to its boundary-in nodes. Unbound inputs use their own value.
func (e *Evaluator) EvaluateNetwork(ctx context.Context, net *graph.Network, bindings []value.Value) (value.Value, error) {
	id, ok := net.Rendered()
	if !ok {
		return value.Null, nodeerr.New("EvaluateNetwork").Kind(nodeerr.ErrNoRenderedNode).Node(net.Name).Err()
	}
	return e.run(ctx, net, id, bindings)
}

// Invalidate bumps the generation of a node and everything downstream of
// it. It blocks while a pass is running.
func (e *Evaluator) Invalidate(net *graph.Network, id graph.NodeID) int {
	n := net.Invalidate(id)
	e.logger.Debug("nodes invalidated",
		logging.Network(net.Name),
		logging.NodeID(uint32(id)),
		logging.Count(n),
	)
	return n
}

func (e *Evaluator) run(ctx context.Context, net *graph.Network, id graph.NodeID, bindings []value.Value) (value.Value, error) {
	e.passMu.Lock()
	defer e.passMu.Unlock()

	return e.pass(ctx, net, id, bindings)
}

type passState struct {
	log   logging.Logger
	stats PassStats
}

// pass runs one evaluation. The guard's read side is held throughout, so
// no edit can land while it runs.
func (e *Evaluator) pass(ctx context.Context, net *graph.Network, id graph.NodeID, bindings []value.Value) (value.Value, error) {
	passID := uuid.NewString()[:12]

	ctx, span := e.tracer.Start(ctx, "nodegraph.Evaluate",
		trace.WithAttributes(
			attribute.String("nodegraph.network", net.Name),
			attribute.Int("nodegraph.node_id", int(id)),
			attribute.String("nodegraph.pass_id", passID),
		),
	)
	defer span.End()

	guard := net.Guard()
	guard.BeginPass()
	defer guard.EndPass()

	e.syncInvalidations(guard)

	log := e.logger.With(logging.PassID(passID), logging.Network(net.Name))
	p := &passState{log: log, stats: PassStats{ID: passID}}
	timer := logging.StartTimer(log, "evaluation pass finished", logging.NodeID(uint32(id)))
	log.Info("evaluation pass started", logging.NodeID(uint32(id)))

	v, err := e.evaluateChecked(ctx, p, net, id, bindings)

	status := "ok"
	if err != nil {
		status = "error"
		if ctx.Err() != nil {
			status = "canceled"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.stats.Duration = timer.EndError(err)
	} else {
		span.SetStatus(codes.Ok, "")
		p.stats.Duration = timer.End()
	}
	span.SetAttributes(
		attribute.Int("nodegraph.computed", p.stats.Computed),
		attribute.Int("nodegraph.cached", p.stats.Cached),
		attribute.Int("nodegraph.reused", p.stats.Reused),
	)

	e.metrics.RecordEvaluation(status, p.stats.Duration)
	e.last = p.stats
	return v, err
}

func (e *Evaluator) evaluateChecked(ctx context.Context, p *passState, net *graph.Network, id graph.NodeID, bindings []value.Value) (value.Value, error) {
	if err := graph.ValidateDepth(net, e.cfg.MaxNetworkDepth); err != nil {
		e.metrics.RecordFailure(nodeerr.KindName(nodeerr.KindOf(err)))
		p.log.Warn("network failed validation", logging.Error(err))
		return value.Null, err
	}
	return e.evalNode(ctx, p, newScope(net, bindings, 0), id)
}

// syncInvalidations reports generation bumps made since the previous pass
// over the same guard
func (e *Evaluator) syncInvalidations(guard *graph.EditGuard) {
	cur := guard.Invalidations()
	if prev, ok := e.seenInvalidations[guard]; ok && cur > prev {
		e.metrics.RecordInvalidations(int(cur - prev))
		e.logger.Debug("invalidations since last pass", logging.Count(int(cur-prev)))
	}
	e.seenInvalidations[guard] = cur
}

// scope is one activation of a network: the root of a pass, or a compound
// node's child evaluated with that node's inputs as bindings
type scope struct {
	net      *graph.Network
	bindings []value.Value
	slots    map[graph.NodeID]int
	token    Fingerprint
	depth    int
}

func newScope(net *graph.Network, bindings []value.Value, depth int) *scope {
	sc := &scope{
		net:      net,
		bindings: bindings,
		slots:    make(map[graph.NodeID]int),
		token:    fingerprintInputs("scope", nil, bindings),
		depth:    depth,
	}
	for i, in := range net.InputNodes() {
		sc.slots[in.ID] = i
	}
	return sc
}

func operationLabel(node *graph.Node) string {
	if node.IsCompound() {
		return labelCompound
	}
	return node.Operation
}

func (e *Evaluator) evalNode(ctx context.Context, p *passState, sc *scope, id graph.NodeID) (value.Value, error) {
	if err := ctx.Err(); err != nil {
		return value.Null, err
	}

	node, ok := sc.net.Node(id)
	if !ok {
		return value.Null, nodeerr.New("Evaluate").Kind(nodeerr.ErrNodeNotFound).Node(strconv.Itoa(int(id))).Err()
	}

	label := operationLabel(node)
	key := cacheKey{net: sc.net, id: id}
	ent, hit := e.cache[key]
	if hit && ent.generation == node.Generation() && ent.scope == sc.token {
		p.stats.Cached++
		e.metrics.RecordNode(label, metrics.ResultCached, 0)
		p.log.Debug("cache hit", logging.NodeName(node.Name), logging.Generation(node.Generation()))
		return ent.value, nil
	}

	names, raw, err := e.gatherInputs(ctx, p, sc, node)
	if err != nil {
		return value.Null, err
	}

	// A compound node's value also depends on its child network, which the
	// input fingerprint does not cover
	fp := fingerprintInputs(label, names, raw)
	if hit && !node.IsCompound() && ent.fingerprint == fp {
		ent.generation = node.Generation()
		ent.scope = sc.token
		p.stats.Reused++
		e.metrics.RecordNode(label, metrics.ResultReused, 0)
		p.log.Debug("inputs unchanged, value reused", logging.NodeName(node.Name), logging.Generation(node.Generation()))
		return ent.value, nil
	}

	start := time.Now()
	var v value.Value
	switch {
	case node.IsCompound():
		v, err = e.evalCompound(ctx, p, sc, node, raw)
	case node.IsInput():
		v, err = evalInput(node, names, raw)
	default:
		v, err = e.evalLeaf(ctx, p, node, names, raw)
	}
	if err != nil {
		p.stats.Failed++
		e.metrics.RecordNode(label, metrics.ResultFailed, 0)
		if ctx.Err() == nil {
			p.log.Error("node evaluation failed",
				logging.NodeName(node.Name),
				logging.Operation(label),
				logging.Error(err),
			)
		}
		return value.Null, err
	}

	e.cache[key] = &cacheEntry{
		generation:  node.Generation(),
		scope:       sc.token,
		fingerprint: fp,
		value:       v,
	}
	elapsed := time.Since(start)
	p.stats.Computed++
	e.metrics.RecordNode(label, metrics.ResultComputed, elapsed)
	p.log.Debug("node computed",
		logging.NodeName(node.Name),
		logging.Operation(label),
		logging.Generation(node.Generation()),
		logging.Latency(elapsed),
	)
	return v, nil
}

// gatherInputs resolves every input port in declaration order. A bound
// boundary-in node resolves to its binding alone.
func (e *Evaluator) gatherInputs(ctx context.Context, p *passState, sc *scope, node *graph.Node) ([]string, []value.Value, error) {
	if node.IsInput() {
		if slot, ok := sc.slots[node.ID]; ok && slot < len(sc.bindings) {
			return []string{graph.InputValuePort}, []value.Value{sc.bindings[slot]}, nil
		}
	}

	ins := node.Inputs()
	names := make([]string, len(ins))
	vals := make([]value.Value, len(ins))

	for i, port := range ins {
		names[i] = port.Name
		conns := sc.net.ConnectionsTo(node.ID, port.Name)

		switch {
		case len(conns) == 0 && port.AcceptsList:
			if port.Default.IsList() {
				vals[i] = port.Default
			} else {
				vals[i] = value.List(port.Default)
			}
		case len(conns) == 0:
			vals[i] = port.Default
		case port.AcceptsList:
			// Mixed fan-in flattens one level in connection order
			items := make([]value.Value, 0, len(conns))
			for _, c := range conns {
				v, err := e.evalNode(ctx, p, sc, c.From)
				if err != nil {
					return nil, nil, err
				}
				items = append(items, v)
			}
			vals[i] = value.List(items...)
		default:
			v, err := e.evalNode(ctx, p, sc, conns[0].From)
			if err != nil {
				return nil, nil, err
			}
			vals[i] = v
		}
	}
	return names, vals, nil
}

func evalInput(node *graph.Node, names []string, raw []value.Value) (value.Value, error) {
	port, _ := node.Port(graph.InputValuePort, graph.In)
	v := value.Null
	for i, name := range names {
		if name == graph.InputValuePort {
			v = raw[i]
		}
	}
	c, err := Coerce(v, port.Type, port.AcceptsList)
	if err != nil {
		return value.Null, atPort(err, node, graph.InputValuePort)
	}
	return c, nil
}

func (e *Evaluator) evalCompound(ctx context.Context, p *passState, sc *scope, node *graph.Node, raw []value.Value) (value.Value, error) {
	if sc.depth+1 > e.cfg.MaxNetworkDepth {
		return value.Null, nodeerr.New("Evaluate").
			Kind(nodeerr.ErrRecursiveNetwork).
			Node(node.Name).
			Types(fmt.Sprintf("depth <= %d", e.cfg.MaxNetworkDepth), strconv.Itoa(sc.depth+1)).
			Err()
	}

	child := node.Child
	rendered, ok := child.Rendered()
	if !ok {
		return value.Null, nodeerr.New("Evaluate").Kind(nodeerr.ErrNoRenderedNode).Node(node.Name).Err()
	}

	ins := node.Inputs()
	bindings := make([]value.Value, len(raw))
	for i, v := range raw {
		c, err := Coerce(v, ins[i].Type, ins[i].AcceptsList)
		if err != nil {
			return value.Null, atPort(err, node, ins[i].Name)
		}
		bindings[i] = c
	}

	v, err := e.evalNode(ctx, p, newScope(child, bindings, sc.depth+1), rendered)
	if err != nil {
		if ne, ok := nodeerr.As(err); ok {
			return value.Null, ne.WithParent(node.Name)
		}
		return value.Null, err
	}
	return v, nil
}

func (e *Evaluator) evalLeaf(ctx context.Context, p *passState, node *graph.Node, names []string, raw []value.Value) (value.Value, error) {
	sig, ok := e.reg.Lookup(node.Operation)
	if !ok {
		return value.Null, nodeerr.New("Evaluate").
			Kind(nodeerr.ErrUnknownOperation).
			Node(node.Name).
			Name(node.Operation).
			Err()
	}
	if err := graph.CheckArity("Evaluate", node, sig); err != nil {
		return value.Null, err
	}

	args := make([]value.Value, len(sig.Params))
	elem := -1
	var items []value.Value

	for i, param := range sig.Params {
		v, port, found := lookupInput(node, names, raw, param.Name)
		if !found {
			// CheckArity guarantees a port for every required parameter
			v = *param.Default
		}
		listMode := param.AcceptsList || port.AcceptsList

		if sig.Elementwise && param.Name == sig.ElementwiseParam && !listMode && v.IsList() {
			elem = i
			items = v.Items()
			continue
		}

		c, err := Coerce(v, param.Type, listMode)
		if err != nil {
			return value.Null, atPort(err, node, param.Name)
		}
		args[i] = c
	}

	if elem >= 0 {
		return e.dispatch(ctx, p, node, sig, args, elem, items)
	}

	v, err := e.reg.Invoke(ctx, sig.Name, args)
	if err != nil {
		return value.Null, atNode(err, node)
	}
	return v, nil
}

func lookupInput(node *graph.Node, names []string, raw []value.Value, name string) (value.Value, graph.Port, bool) {
	for i, n := range names {
		if n == name {
			port, _ := node.Port(name, graph.In)
			return raw[i], port, true
		}
	}
	return value.Null, graph.Port{}, false
}

// atNode attaches the node identity to an error raised while computing it
func atNode(err error, node *graph.Node) error {
	if ne, ok := nodeerr.As(err); ok {
		if len(ne.Path) > 0 {
			return err
		}
		cp := *ne
		cp.Path = []string{node.Name}
		return &cp
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nodeerr.New("Evaluate").
		Kind(nodeerr.ErrOpPanic).
		Node(node.Name).
		Name(node.Operation).
		Cause(err).
		Err()
}

// atPort turns a coercion failure into an evaluation error at a node's port
func atPort(err error, node *graph.Node, port string) error {
	ne, ok := nodeerr.As(err)
	if !ok {
		return atNode(err, node)
	}
	cp := *ne
	cp.Op = "Evaluate"
	cp.Path = []string{node.Name}
	cp.Port = port
	return &cp
}
