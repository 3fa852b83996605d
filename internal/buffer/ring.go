// Package buffer holds the recent results and notifications shown by the UI.
// Everything here is process-local and bounded.
package buffer

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Capacities
const (
	ResultCapacity       = 20 // per game
	NotificationCapacity = 5  // total
	DefaultEventBuffer   = 64
)

// Entry is one stored value.
type Entry[T any] struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Value     T         `json:"data"`
}

// Ring is a bounded buffer that evicts its oldest entry when full.
type Ring[T any] struct {
	mu      sync.RWMutex
	entries []Entry[T] // oldest first
	size    int
}

// NewRing creates a ring holding at most capacity entries.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{entries: make([]Entry[T], 0, capacity), size: capacity}
}

// Push stores v under a fresh id, evicting the oldest entry if needed.
func (r *Ring[T]) Push(v T) Entry[T] {
	e := Entry[T]{ID: uuid.NewString(), CreatedAt: time.Now(), Value: v}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	if len(r.entries) > r.size {
		r.entries = r.entries[len(r.entries)-r.size:]
	}
	return e
}

// Remove drops the entry with id. It reports whether one was found.
func (r *Ring[T]) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.ID == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// List returns a copy of the entries, newest first.
func (r *Ring[T]) List() []Entry[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry[T], len(r.entries))
	for i, e := range r.entries {
		out[len(r.entries)-1-i] = e
	}
	return out
}

// Len returns the number of stored entries.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Cap returns the capacity.
func (r *Ring[T]) Cap() int {
	return r.size
}
