// Package registry lets modules attach behavior to models owned by other
// modules. Handlers are keyed by (model identifier, extension point) and are
// looked up explicitly by the code that owns the extension point.
package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Key identifies one extension point on one model, e.g. ("res.users", "team_id").
type Key struct {
	Model string
	Point string
}

func (k Key) String() string { return k.Model + "#" + k.Point }

// Registry holds handlers of a single type H. It is safe for concurrent use;
// registration normally happens once at startup.
type Registry[H any] struct {
	mu       sync.RWMutex
	handlers map[Key]H
}

// New creates an empty registry.
func New[H any]() *Registry[H] {
	return &Registry[H]{handlers: make(map[Key]H)}
}

// Register adds a handler. Registering the same key twice is an error so two
// modules cannot silently shadow each other.
func (r *Registry[H]) Register(model, point string, h H) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := Key{Model: model, Point: point}
	if _, exists := r.handlers[k]; exists {
		return fmt.Errorf("registry: %s already registered", k)
	}
	r.handlers[k] = h
	return nil
}

// MustRegister is Register for init-time wiring.
func (r *Registry[H]) MustRegister(model, point string, h H) {
	if err := r.Register(model, point, h); err != nil {
		panic(err)
	}
}

// Lookup returns the handler for (model, point).
func (r *Registry[H]) Lookup(model, point string) (H, bool) {
	if r == nil {
		var zero H
		return zero, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[Key{Model: model, Point: point}]
	return h, ok
}

// Keys lists registered keys in a stable order.
func (r *Registry[H]) Keys() []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]Key, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Model != keys[j].Model {
			return keys[i].Model < keys[j].Model
		}
		return keys[i].Point < keys[j].Point
	})
	return keys
}
