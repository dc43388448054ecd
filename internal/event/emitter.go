// Package event provides a typed, synchronous in-process publish/subscribe
// primitive used by every devd component to report what it is doing.
package event

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Handler receives emitted values.
type Handler[T any] func(T)

// Emitter fans a value out to every subscribed handler. Emit is synchronous:
// handlers run on the emitting goroutine in subscription order. The zero value
// is ready to use.
type Emitter[T any] struct {
	mu       sync.RWMutex
	handlers map[uint64]Handler[T]
	nextID   atomic.Uint64
}

// Subscribe registers fn and returns a func that removes it. The returned
// func is safe to call more than once.
func (e *Emitter[T]) Subscribe(fn Handler[T]) func() {
	if e == nil || fn == nil {
		return func() {}
	}
	id := e.nextID.Add(1)

	e.mu.Lock()
	if e.handlers == nil {
		e.handlers = make(map[uint64]Handler[T])
	}
	e.handlers[id] = fn
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.handlers, id)
			e.mu.Unlock()
		})
	}
}

// Emit delivers v to every current subscriber. Handlers may subscribe or
// unsubscribe during delivery; those changes apply to the next Emit.
func (e *Emitter[T]) Emit(v T) {
	if e == nil {
		return
	}
	for _, fn := range e.snapshot() {
		fn(v)
	}
}

// Len returns the number of subscribers.
func (e *Emitter[T]) Len() int {
	if e == nil {
		return 0
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers)
}

func (e *Emitter[T]) snapshot() []Handler[T] {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.handlers) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(e.handlers))
	for id := range e.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Handler[T], len(ids))
	for i, id := range ids {
		out[i] = e.handlers[id]
	}
	return out
}
