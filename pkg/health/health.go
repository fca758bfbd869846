// Package health aggregates named checks into one status for the metrics
// endpoint of the command line tools.
package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status represents the health of one check or of the whole process
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// rank orders statuses so the worst one wins
func (s Status) rank() int {
	switch s {
	case StatusUnhealthy:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// Check is the outcome of one named check
type Check struct {
	Name        string         `json:"name"`
	Status      Status         `json:"status"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	LastChecked time.Time      `json:"last_checked"`
	Duration    time.Duration  `json:"duration_ns"`
}

// CheckFunc performs a check
type CheckFunc func() Check

// Response is the aggregate served over HTTP
type Response struct {
	Status    Status           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Checks    map[string]Check `json:"checks"`
	Uptime    time.Duration    `json:"uptime_ns"`
}

// Checker holds the registered checks
type Checker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
	start  time.Time
}

// NewChecker creates a checker with no checks, which reports healthy
func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]CheckFunc),
		start:  time.Now(),
	}
}

// Register adds or replaces a check
func (c *Checker) Register(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = fn
}

// Names returns the registered check names, sorted
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs every check. The overall status is the worst individual one.
func (c *Checker) Check() Response {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	resp := Response{
		Status:    StatusHealthy,
		Timestamp: now,
		Checks:    make(map[string]Check, len(c.checks)),
		Uptime:    now.Sub(c.start),
	}
	for name, fn := range c.checks {
		start := time.Now()
		check := fn()
		check.Name = name
		check.LastChecked = start
		check.Duration = time.Since(start)
		resp.Checks[name] = check

		if check.Status.rank() > resp.Status.rank() {
			resp.Status = check.Status
		}
	}
	return resp
}

// Handler serves the aggregate as JSON. Degraded still answers 200;
// unhealthy answers 503.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := c.Check()

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
