// Package state is the shared state bus: level signals for configuration
// intents and cross-task commands, and guarded values for parameters that
// always have a current value.
package state

import (
	"context"
	"sync"
)

// Signal is a single-slot, last-write-wins value. Signal never blocks the
// writer; a pending value is replaced by the newer one. A value is consumed
// by exactly one of Wait, TryTake or a receive from C.
type Signal[T any] struct {
	mu sync.Mutex
	ch chan T
}

// NewSignal returns an empty signal.
func NewSignal[T any]() *Signal[T] {
	return &Signal[T]{ch: make(chan T, 1)}
}

// Signal publishes v, replacing any value not yet consumed.
func (s *Signal[T]) Signal(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.ch:
	default:
	}
	// Holding mu means no other writer can fill the slot, so this never blocks.
	s.ch <- v
}

// Wait blocks until a value is available and consumes it.
func (s *Signal[T]) Wait(ctx context.Context) (T, error) {
	select {
	case v := <-s.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryTake consumes the pending value if there is one.
func (s *Signal[T]) TryTake() (T, bool) {
	select {
	case v := <-s.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// C exposes the slot for use in a select. Receiving from it consumes the value.
func (s *Signal[T]) C() <-chan T {
	return s.ch
}

// Reset drops any pending value.
func (s *Signal[T]) Reset() {
	s.TryTake()
}

// Guarded is a mutex protected value that always has a current value.
type Guarded[T any] struct {
	mu sync.Mutex
	v  T
}

// NewGuarded returns a Guarded holding initial.
func NewGuarded[T any](initial T) *Guarded[T] {
	return &Guarded[T]{v: initial}
}

func (g *Guarded[T]) Get() T {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.v
}

func (g *Guarded[T]) Set(v T) {
	g.mu.Lock()
	g.v = v
	g.mu.Unlock()
}
