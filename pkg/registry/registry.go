// Package registry provides a name-keyed, publish-once registry for shared
// resources.
//
// A value is published under a name exactly once. Readers either look it up
// directly or wait until it is published. The registry keeps a plain reference
// to each value; whoever constructed the value is responsible for tearing it
// down.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Publication happens-before every
// Lookup or Wait that observes the value, so readers never see a partially
// initialized value as long as it is fully built before Publish is called.
package registry

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
)

var (
	// ErrAlreadyPublished is returned when a name is published twice.
	ErrAlreadyPublished = errors.New("registry: name already published")

	// ErrEmptyName is returned for operations that require a name.
	ErrEmptyName = errors.New("registry: empty name")
)

// Registry maps names to published values of type T.
type Registry[T any] struct {
	mu    sync.Mutex
	slots map[string]*slot[T]
}

type slot[T any] struct {
	value     T
	published bool

	// ready is closed when value is published.
	ready chan struct{}

	// attempt is non-nil while a Provide call is constructing the value and
	// is closed when that attempt ends, successfully or not.
	attempt chan struct{}
}

// New creates an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{slots: make(map[string]*slot[T])}
}

// slotLocked returns the slot for name, creating it if necessary.
// Caller must hold r.mu.
func (r *Registry[T]) slotLocked(name string) *slot[T] {
	s, ok := r.slots[name]
	if !ok {
		s = &slot[T]{ready: make(chan struct{})}
		r.slots[name] = s
	}
	return s
}

// Publish stores v under name and wakes every waiter.
// A name can be published only once.
func (r *Registry[T]) Publish(name string, v T) error {
	if name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.slotLocked(name)
	if s.published {
		return ErrAlreadyPublished
	}
	s.value = v
	s.published = true
	close(s.ready)
	return nil
}

// Lookup returns the value published under name.
func (r *Registry[T]) Lookup(name string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[name]
	if !ok || !s.published {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Ready returns a channel that is closed once name is published.
// The channel stays valid even if nothing is ever published.
func (r *Registry[T]) Ready(name string) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slotLocked(name).ready
}

// Wait blocks until name is published or ctx is done.
// It returns ctx.Err() when ctx ends first.
func (r *Registry[T]) Wait(ctx context.Context, name string) (T, error) {
	if name == "" {
		var zero T
		return zero, ErrEmptyName
	}

	select {
	case <-r.Ready(name):
		v, _ := r.Lookup(name)
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Provide returns the value published under name, constructing and
// publishing it with construct if nobody has yet. Concurrent callers for the
// same name never construct twice: one caller builds while the others wait
// for the outcome. If construction fails or panics, the builder sees the
// failure and the next waiter gets its own attempt. When a direct Publish
// wins the race, the constructed value is closed if it implements io.Closer
// and the published value is returned with ErrAlreadyPublished.
func (r *Registry[T]) Provide(ctx context.Context, name string, construct func(context.Context) (T, error)) (T, error) {
	var zero T
	if name == "" {
		return zero, ErrEmptyName
	}

	for {
		r.mu.Lock()
		s := r.slotLocked(name)
		if s.published {
			v := s.value
			r.mu.Unlock()
			return v, nil
		}
		if s.attempt == nil {
			attempt := make(chan struct{})
			s.attempt = attempt
			r.mu.Unlock()
			return r.build(ctx, name, s, attempt, construct)
		}
		attempt := s.attempt
		r.mu.Unlock()

		select {
		case <-attempt:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

func (r *Registry[T]) build(ctx context.Context, name string, s *slot[T], attempt chan struct{}, construct func(context.Context) (T, error)) (T, error) {
	var zero T

	// Waiters get their own attempt even when construct panics.
	finished := false
	defer func() {
		if !finished {
			r.mu.Lock()
			s.attempt = nil
			close(attempt)
			r.mu.Unlock()
		}
	}()

	v, err := construct(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	finished = true
	s.attempt = nil
	close(attempt)

	if err != nil {
		return zero, err
	}
	if s.published {
		// Someone used Publish directly while we were building.
		if c, ok := any(v).(io.Closer); ok {
			c.Close()
		}
		return s.value, ErrAlreadyPublished
	}
	s.value = v
	s.published = true
	close(s.ready)
	return v, nil
}

// Remove drops a published name so it can be published again.
// Names that are not published are left untouched so that pending waiters
// keep their channel.
func (r *Registry[T]) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[name]
	if !ok || !s.published {
		return false
	}
	delete(r.slots, name)
	return true
}

// Names returns the published names in sorted order.
func (r *Registry[T]) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.slots))
	for name, s := range r.slots {
		if s.published {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
