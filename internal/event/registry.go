// Package event implements the subscriber lists behind the communicator
// and acceptor notifications.
//
// Handlers are called in subscription order.  Emit works on a snapshot,
// so a handler may subscribe or unsubscribe (itself or others) while it
// runs.  Every handler call has its own recover boundary: a panicking
// subscriber is reported through OnPanic and the remaining subscribers
// still run.
package event

import (
	"sync"
	"sync/atomic"

	ncerr "tcpcomm/internal/errors"
)

// Subscription identifies one registered handler.  Identifiers are unique
// across all registries in the process, so an owner of several registries
// can remove a handler without knowing which list holds it.  The zero
// value never matches a live subscription.
type Subscription uint64

var lastID atomic.Uint64

type entry[T any] struct {
	id Subscription
	fn func(T)
}

// Registry is a list of handlers for payloads of type T.  The zero value
// is ready to use.
type Registry[T any] struct {
	mu      sync.RWMutex
	entries []entry[T]

	// OnPanic receives the InternalError built from a recovered handler
	// panic.  It must not panic itself.
	OnPanic func(err error)
}

// Subscribe adds fn to the end of the list.  A nil fn is ignored and
// yields the zero Subscription.
func (r *Registry[T]) Subscribe(fn func(T)) Subscription {
	if fn == nil {
		return 0
	}
	id := Subscription(lastID.Add(1))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry[T]{id: id, fn: fn})
	return id
}

// Unsubscribe removes the handler registered under id and reports
// whether it was present.
func (r *Registry[T]) Unsubscribe(id Subscription) bool {
	if id == 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registered handlers.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Emit calls every handler registered at the time of the call with ev.
func (r *Registry[T]) Emit(ev T) {
	r.mu.RLock()
	snapshot := r.entries
	onPanic := r.OnPanic
	r.mu.RUnlock()

	for _, e := range snapshot {
		call(e.fn, ev, onPanic)
	}
}

func call[T any](fn func(T), ev T, onPanic func(error)) {
	defer func() {
		if p := recover(); p != nil && onPanic != nil {
			onPanic(ncerr.Recovered("event handler", p))
		}
	}()
	fn(ev)
}
