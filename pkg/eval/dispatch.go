package eval

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dd0wney/cluso-nodegraph/pkg/graph"
	"github.com/dd0wney/cluso-nodegraph/pkg/logging"
	"github.com/dd0wney/cluso-nodegraph/pkg/nodeerr"
	"github.com/dd0wney/cluso-nodegraph/pkg/parallel"
	"github.com/dd0wney/cluso-nodegraph/pkg/registry"
	"github.com/dd0wney/cluso-nodegraph/pkg/value"
)

type elementFunc func(ctx context.Context, i int) (value.Value, error)

// dispatch maps an elementwise operation over items arriving on parameter
// elem. Lists of at least MinParallelItems run in chunks on the worker
// pool; shorter lists run inline. Results keep item order and are
// flattened one level.
func (e *Evaluator) dispatch(ctx context.Context, p *passState, node *graph.Node, sig registry.Signature, args []value.Value, elem int, items []value.Value) (value.Value, error) {
	n := len(items)
	if n == 0 {
		return value.List(), nil
	}

	param := sig.Params[elem]
	call := func(ctx context.Context, i int) (value.Value, error) {
		item, err := Coerce(items[i], param.Type, false)
		if err != nil {
			return value.Null, err
		}
		elemArgs := make([]value.Value, len(args))
		copy(elemArgs, args)
		elemArgs[elem] = item
		return e.reg.Invoke(ctx, sig.Name, elemArgs)
	}

	var (
		results []value.Value
		err     error
	)
	if n < e.cfg.MinParallelItems {
		results, err = mapInline(ctx, n, call)
	} else {
		results, err = e.mapParallel(ctx, p, node, n, call)
	}
	if err != nil {
		return value.Null, elementError(err, node, param.Name)
	}
	return value.List(results...), nil
}

func mapInline(ctx context.Context, n int, fn elementFunc) ([]value.Value, error) {
	out := make([]value.Value, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, &parallel.ItemError{Index: i, Err: err}
		}
		v, err := fn(ctx, i)
		if err != nil {
			return nil, &parallel.ItemError{Index: i, Err: err}
		}
		out[i] = v
	}
	return out, nil
}

func (e *Evaluator) mapParallel(ctx context.Context, p *passState, node *graph.Node, n int, fn elementFunc) ([]value.Value, error) {
	chunks := parallel.ChunkCount(n, e.cfg.ChunkSize)

	ctx, span := e.tracer.Start(ctx, "nodegraph.Elementwise",
		trace.WithAttributes(
			attribute.String("nodegraph.node", node.Name),
			attribute.String("nodegraph.operation", node.Operation),
			attribute.Int("nodegraph.items", n),
			attribute.Int("nodegraph.chunks", chunks),
		),
	)
	defer span.End()

	results, err := parallel.MapChunks(ctx, e.pool, n, e.cfg.ChunkSize, fn)
	e.metrics.RecordDispatch(n, chunks)
	p.log.Debug("elementwise dispatch",
		logging.NodeName(node.Name),
		logging.Count(n),
		logging.Int("chunks", chunks),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return results, nil
}

// elementError reports the failing element at the node. Cancellation
// passes through unchanged.
func elementError(err error, node *graph.Node, port string) error {
	var item *parallel.ItemError
	if !errors.As(err, &item) {
		return atNode(err, node)
	}
	if errors.Is(item.Err, context.Canceled) || errors.Is(item.Err, context.DeadlineExceeded) {
		return item.Err
	}

	b := nodeerr.New("Evaluate").Kind(nodeerr.ErrOpPanic).Node(node.Name).Port(port).Cause(err)
	if ne, ok := nodeerr.As(item.Err); ok {
		b.Kind(ne.Kind).Name(ne.Name).Types(ne.Expected, ne.Found)
	}
	return b.Err()
}
