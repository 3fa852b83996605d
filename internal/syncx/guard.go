// Package syncx provides small synchronization helpers shared by the pipeline
package syncx

import (
	"sync"
	"sync/atomic"
)

// RWGuard holds a value behind an RWMutex. Readers get copies, so T should
// be a value type or treated as immutable once stored.
type RWGuard[T any] struct {
	mu    sync.RWMutex
	value T
}

// NewGuard creates a guarded value.
func NewGuard[T any](initial T) *RWGuard[T] {
	return &RWGuard[T]{value: initial}
}

// Get returns the current value.
func (g *RWGuard[T]) Get() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}

// Set replaces the value.
func (g *RWGuard[T]) Set(v T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
}

// Swap replaces the value and returns the previous one.
func (g *RWGuard[T]) Swap(v T) T {
	g.mu.Lock()
	defer g.mu.Unlock()
	old := g.value
	g.value = v
	return old
}

// Update mutates the value in place under the write lock and returns the
// result.
func (g *RWGuard[T]) Update(fn func(*T)) T {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(&g.value)
	return g.value
}

// Gate admits one holder at a time and turns others away without blocking.
type Gate struct {
	busy    atomic.Bool
	dropped atomic.Uint64
}

// TryEnter claims the gate. It returns false, and counts a drop, when the
// gate is already held.
func (g *Gate) TryEnter() bool {
	if g.busy.CompareAndSwap(false, true) {
		return true
	}
	g.dropped.Add(1)
	return false
}

// Leave releases the gate.
func (g *Gate) Leave() {
	g.busy.Store(false)
}

// Busy reports whether the gate is held.
func (g *Gate) Busy() bool {
	return g.busy.Load()
}

// Dropped returns how many TryEnter calls were turned away.
func (g *Gate) Dropped() uint64 {
	return g.dropped.Load()
}
