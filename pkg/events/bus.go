// Package events provides an asynchronous multi-listener event bus whose
// emissions complete when every handler has finished, or fail fast on the
// first handler error.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/grovetools/basin/errors"
)

// Handler reacts to an emitted event.
type Handler func(ctx context.Context, args ...any) error

// ListenerID identifies a registration for Off.
type ListenerID uint64

type listener struct {
	id      ListenerID
	handler Handler
	once    bool
}

// Bus maps event names to ordered handler lists.
type Bus[K comparable] struct {
	mu        sync.Mutex
	listeners map[K][]listener
	nextID    ListenerID
}

// NewBus creates an empty bus.
func NewBus[K comparable]() *Bus[K] {
	return &Bus[K]{listeners: make(map[K][]listener)}
}

// On appends a handler for name.
func (b *Bus[K]) On(name K, h Handler) ListenerID {
	return b.add(name, h, false)
}

// Once appends a handler that runs for at most one emission. It is removed
// from the bus at the moment an emission picks it up, so concurrent emissions
// cannot both invoke it.
func (b *Bus[K]) Once(name K, h Handler) ListenerID {
	return b.add(name, h, true)
}

func (b *Bus[K]) add(name K, h Handler, once bool) ListenerID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.listeners[name] = append(b.listeners[name], listener{id: id, handler: h, once: once})
	return id
}

// Off removes a registration. It reports whether anything was removed.
func (b *Bus[K]) Off(name K, id ListenerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.listeners[name]
	for i, l := range list {
		if l.id != id {
			continue
		}
		b.listeners[name] = append(list[:i:i], list[i+1:]...)
		if len(b.listeners[name]) == 0 {
			delete(b.listeners, name)
		}
		return true
	}
	return false
}

// Count returns the number of handlers registered for name.
func (b *Bus[K]) Count(name K) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[name])
}

// snapshot copies the current handlers for name and drops once-handlers
// from the registry in the same critical section.
func (b *Bus[K]) snapshot(name K) []Handler {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.listeners[name]
	if len(list) == 0 {
		return nil
	}

	handlers := make([]Handler, 0, len(list))
	kept := list[:0:0]
	for _, l := range list {
		handlers = append(handlers, l.handler)
		if !l.once {
			kept = append(kept, l)
		}
	}

	if len(kept) == 0 {
		delete(b.listeners, name)
	} else {
		b.listeners[name] = kept
	}
	return handlers
}

// Emission tracks one in-flight emit.
type Emission struct {
	done    chan struct{}
	settled chan struct{}
	err     error
}

// Wait blocks until every handler succeeded or the first one failed, and
// returns that failure.
func (e *Emission) Wait() error {
	<-e.done
	return e.err
}

// Done is closed when Wait would return.
func (e *Emission) Done() <-chan struct{} {
	return e.done
}

// Settled is closed once every handler has returned, including handlers still
// running after an earlier failure.
func (e *Emission) Settled() <-chan struct{} {
	return e.settled
}

// Go snapshots the handlers registered for name and starts each one on its own
// goroutine, in registration order. Handlers registered afterwards are not
// part of this emission.
func (b *Bus[K]) Go(ctx context.Context, name K, args ...any) *Emission {
	e := &Emission{
		done:    make(chan struct{}),
		settled: make(chan struct{}),
	}

	handlers := b.snapshot(name)
	if len(handlers) == 0 {
		close(e.done)
		close(e.settled)
		return e
	}

	results := make(chan error, len(handlers))
	for _, h := range handlers {
		go func(h Handler) {
			results <- invoke(ctx, name, h, args)
		}(h)
	}

	go func() {
		defer close(e.settled)

		failed := false
		for range handlers {
			if err := <-results; err != nil && !failed {
				failed = true
				e.err = err
				close(e.done)
			}
		}
		if !failed {
			close(e.done)
		}
	}()

	return e
}

// Emit runs every handler for name and waits for the outcome.
// With no handlers it returns nil immediately.
func (b *Bus[K]) Emit(ctx context.Context, name K, args ...any) error {
	return b.Go(ctx, name, args...).Wait()
}

// invoke runs a handler, turning panics and uncoded errors into
// HANDLER_FAILED errors.
func invoke[K comparable](ctx context.Context, name K, h Handler, args []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.HandlerFailed(fmt.Sprint(name), fmt.Errorf("panic: %v", r))
		}
	}()

	if err := h(ctx, args...); err != nil {
		if _, ok := errors.AsBasinError(err); ok {
			return err
		}
		return errors.HandlerFailed(fmt.Sprint(name), err)
	}
	return nil
}
