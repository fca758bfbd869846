package health

import (
	"fmt"
	"runtime"

	"github.com/dd0wney/cluso-nodegraph/pkg/eval"
)

// OperationsCheck is unhealthy when no operations are registered, since no
// node can be evaluated
func OperationsCheck(count func() int) CheckFunc {
	return func() Check {
		n := count()
		check := Check{
			Status:  StatusHealthy,
			Message: fmt.Sprintf("%d operations registered", n),
			Details: map[string]any{"operations": n},
		}
		if n == 0 {
			check.Status = StatusUnhealthy
			check.Message = "no operations registered"
		}
		return check
	}
}

// PassCheck reports on the most recent evaluation pass. last returns the
// pass statistics, false when no pass has run yet, and the pass error. A failed
// pass or failed nodes degrade the status; they never make the process
// unhealthy because the next edit may fix them.
func PassCheck(last func() (eval.PassStats, bool, error)) CheckFunc {
	return func() Check {
		st, ok, err := last()
		if !ok {
			return Check{Status: StatusHealthy, Message: "no evaluation yet"}
		}

		check := Check{
			Status: StatusHealthy,
			Details: map[string]any{
				"pass":     st.ID,
				"computed": st.Computed,
				"cached":   st.Cached,
				"reused":   st.Reused,
				"failed":   st.Failed,
			},
			Message: fmt.Sprintf("last pass took %s", st.Duration),
		}
		switch {
		case err != nil:
			check.Status = StatusDegraded
			check.Message = err.Error()
		case st.Failed > 0:
			check.Status = StatusDegraded
			check.Message = fmt.Sprintf("%d nodes failed in the last pass", st.Failed)
		}
		return check
	}
}

// MemoryCheck degrades when the heap holds more than limit bytes. A
// zero limit only reports usage.
func MemoryCheck(limit uint64) CheckFunc {
	return func() Check {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)

		check := Check{
			Status:  StatusHealthy,
			Message: "memory usage normal",
			Details: map[string]any{
				"heap_alloc_bytes": ms.HeapAlloc,
				"sys_bytes":        ms.Sys,
				"goroutines":       runtime.NumGoroutine(),
			},
		}
		if limit > 0 && ms.HeapAlloc > limit {
			check.Status = StatusDegraded
			check.Message = fmt.Sprintf("heap %d bytes exceeds %d", ms.HeapAlloc, limit)
		}
		return check
	}
}
