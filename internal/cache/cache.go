// Package cache holds the explicit cache objects owned by the composition root.
// Every cache follows the same lifecycle: load once, invalidate on error, clear on navigation.
package cache

import (
	"context"
	"sync"
)

// Once caches the result of a single loader. Failed loads are not cached.
type Once[T any] struct {
	mu     sync.Mutex
	load   func(ctx context.Context) (T, error)
	val    T
	loaded bool
}

// NewOnce creates a cache around load.
func NewOnce[T any](load func(ctx context.Context) (T, error)) *Once[T] {
	return &Once[T]{load: load}
}

// Get returns the cached value, loading it on first use. Concurrent callers share one load.
func (o *Once[T]) Get(ctx context.Context) (T, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.loaded {
		return o.val, nil
	}
	v, err := o.load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	o.val, o.loaded = v, true
	return v, nil
}

// Peek returns the cached value without loading.
func (o *Once[T]) Peek() (T, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.val, o.loaded
}

// Set stores v as if it had been loaded.
func (o *Once[T]) Set(v T) {
	o.mu.Lock()
	o.val, o.loaded = v, true
	o.mu.Unlock()
}

// Invalidate drops the cached value; the next Get loads again.
func (o *Once[T]) Invalidate() {
	o.mu.Lock()
	var zero T
	o.val, o.loaded = zero, false
	o.mu.Unlock()
}

// Keyed caches one loaded value per key, e.g. reference notes per score id.
type Keyed[K comparable, V any] struct {
	mu    sync.Mutex
	load  func(ctx context.Context, key K) (V, error)
	items map[K]V
}

// NewKeyed creates a keyed cache around load.
func NewKeyed[K comparable, V any](load func(ctx context.Context, key K) (V, error)) *Keyed[K, V] {
	return &Keyed[K, V]{load: load, items: make(map[K]V)}
}

// Get returns the value for key, loading it when absent.
func (c *Keyed[K, V]) Get(ctx context.Context, key K) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.items[key]; ok {
		return v, nil
	}
	v, err := c.load(ctx, key)
	if err != nil {
		var zero V
		return zero, err
	}
	c.items[key] = v
	return v, nil
}

// Peek returns the value for key without loading.
func (c *Keyed[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

// Invalidate drops the value for key.
func (c *Keyed[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Clear drops every value.
func (c *Keyed[K, V]) Clear() {
	c.mu.Lock()
	c.items = make(map[K]V)
	c.mu.Unlock()
}

// Len is the number of cached keys.
func (c *Keyed[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
