// Package future models not-yet-known values as explicit lazy cells with a
// pending/resolved state, independent of any provisioning engine's async
// primitives. Cells memoize their first resolution, so chained lookups
// (account identity, AMI id) run at most once per build.
package future

import (
	"context"
	"sync"
)

// State reports whether a cell has been resolved yet.
type State int

const (
	Pending State = iota
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

// Cell is a lazily resolved value. The zero value is not usable; construct
// with New or Of.
type Cell[T any] struct {
	mu    sync.Mutex
	state State
	value T
	err   error
	fetch func(context.Context) (T, error)
}

// New returns a pending cell backed by fetch. The fetch runs on first Get.
func New[T any](fetch func(context.Context) (T, error)) *Cell[T] {
	return &Cell[T]{fetch: fetch}
}

// Of returns an already-resolved cell holding v.
func Of[T any](v T) *Cell[T] {
	return &Cell[T]{state: Resolved, value: v}
}

// State returns the cell's current state without triggering resolution.
func (c *Cell[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Get resolves the cell if needed and returns its value. Both the value and
// the error are memoized: a failed fetch is not retried.
func (c *Cell[T]) Get(ctx context.Context) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Pending {
		c.value, c.err = c.fetch(ctx)
		if c.err != nil {
			c.state = Failed
		} else {
			c.state = Resolved
		}
	}
	return c.value, c.err
}

// GetOr resolves the cell and returns its value, or fallback if resolution
// failed. The error is discarded; callers that need it use Get.
func (c *Cell[T]) GetOr(ctx context.Context, fallback T) T {
	v, err := c.Get(ctx)
	if err != nil {
		return fallback
	}
	return v
}

// Map derives a new pending cell whose value is f applied to c's value.
// Resolution chains: getting the derived cell resolves c first.
func Map[T, U any](c *Cell[T], f func(T) (U, error)) *Cell[U] {
	return New(func(ctx context.Context) (U, error) {
		v, err := c.Get(ctx)
		if err != nil {
			var zero U
			return zero, err
		}
		return f(v)
	})
}
