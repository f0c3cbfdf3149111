// Package backend holds process-wide handles to expensive clients such as embedders
// and generators.
package backend

import (
	"context"
	"sync"
	"sync/atomic"
)

// Lazy constructs a value on first use and shares it for the life of the process.
// A failed construction is not cached; the next Get tries again.
type Lazy[T any] struct {
	init func(ctx context.Context) (T, error)

	mu    sync.Mutex
	value atomic.Pointer[T]
}

// NewLazy returns a handle that builds its value with init.
func NewLazy[T any](init func(ctx context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{init: init}
}

// Get returns the shared value, constructing it if needed.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	if v := l.value.Load(); v != nil {
		return *v, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if v := l.value.Load(); v != nil {
		return *v, nil
	}
	v, err := l.init(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	l.value.Store(&v)
	return v, nil
}

// Loaded reports whether construction has succeeded.
func (l *Lazy[T]) Loaded() bool { return l.value.Load() != nil }
