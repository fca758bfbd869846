package graph

import (
	"sync"
	"sync/atomic"
)

// EditGuard serializes graph edits against evaluation passes. Every network
// in a tree of compound networks shares one guard. A pass holds the read
// side for its whole duration; mutators take the write side, so an edit
// blocks until in-flight passes complete. Each edit advances the epoch.
type EditGuard struct {
	mu            sync.RWMutex
	epoch         atomic.Uint64
	invalidations atomic.Uint64
}

func newEditGuard() *EditGuard {
	return &EditGuard{}
}

// BeginPass acquires the read side and returns the current epoch. It must
// be paired with EndPass and must not be called again by the same pass.
func (g *EditGuard) BeginPass() uint64 {
	g.mu.RLock()
	return g.epoch.Load()
}

// EndPass releases the read side
func (g *EditGuard) EndPass() {
	g.mu.RUnlock()
}

// Epoch returns the number of edits applied so far
func (g *EditGuard) Epoch() uint64 {
	return g.epoch.Load()
}

// Invalidations returns the total number of node generation bumps
func (g *EditGuard) Invalidations() uint64 {
	return g.invalidations.Load()
}

func (g *EditGuard) lock() {
	g.mu.Lock()
}

func (g *EditGuard) unlock() {
	g.epoch.Add(1)
	g.mu.Unlock()
}
