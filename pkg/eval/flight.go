package eval

import (
	"context"
	"fmt"
)

// flight is one pass shared by every caller that requested the same target
// in the same edit epoch. Its context is detached from the callers and ends
// only when the last waiting caller gives up.
type flight struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// join attaches the caller to the open flight for key, starting a new one
// when none is open. The new flight keeps ctx's values for tracing.
func (e *Evaluator) join(ctx context.Context, key string) *flight {
	e.flightMu.Lock()
	defer e.flightMu.Unlock()

	f, ok := e.flights[key]
	if !ok {
		e.flightSeq++
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{
			id:     fmt.Sprintf("%s#%d", key, e.flightSeq),
			ctx:    fctx,
			cancel: cancel,
		}
		e.flights[key] = f
	}
	f.waiters++
	return f
}

// leave detaches a caller. The last one out closes the flight, canceling
// its pass if it is still running, and reports true.
func (e *Evaluator) leave(key string, f *flight) bool {
	e.flightMu.Lock()
	defer e.flightMu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return false
	}
	f.cancel()
	if e.flights[key] == f {
		delete(e.flights, key)
	}
	return true
}
