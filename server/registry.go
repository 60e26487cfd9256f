package server

import (
	"fmt"
	"sync"
)

// registry is an insertion-ordered store mapping capability identifiers to
// descriptors. Enumeration is stable: descriptors come back in the order
// they were registered. Registering under a present identifier fails, it
// never overwrites.
type registry[T any] struct {
	mu    sync.RWMutex
	order []string
	items map[string]T
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{items: make(map[string]T)}
}

func (r *registry[T]) register(key string, item T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[key]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateCapability, key)
	}
	r.items[key] = item
	r.order = append(r.order, key)
	return nil
}

func (r *registry[T]) resolve(key string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[key]
	return item, ok
}

// list returns all descriptors in registration order.
func (r *registry[T]) list() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.items[key])
	}
	return out
}

func (r *registry[T]) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
