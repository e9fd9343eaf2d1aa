package watcher

import (
	"sync"
)

const manualBuffer = 64

// Manual is a Watcher driven by explicit Send calls.
type Manual struct {
	mu        sync.RWMutex
	events    chan Notification
	errors    chan error
	done      chan struct{}
	closed    bool
	closeOnce sync.Once
}

// NewManual creates an open Manual watcher.
func NewManual() *Manual {
	return &Manual{
		events: make(chan Notification, manualBuffer),
		errors: make(chan error, manualBuffer),
		done:   make(chan struct{}),
	}
}

// Factory returns a Factory that always hands out m.
func (m *Manual) Factory() Factory {
	return func(Options) (Watcher, error) {
		return m, nil
	}
}

// Events implements Watcher.
func (m *Manual) Events() <-chan Notification {
	return m.events
}

// Errors implements Watcher.
func (m *Manual) Errors() <-chan error {
	return m.errors
}

// Send delivers n. It blocks while the buffer is full and reports false once
// the watcher is closed.
func (m *Manual) Send(n Notification) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false
	}
	select {
	case m.events <- n:
		return true
	case <-m.done:
		return false
	}
}

// Error delivers a watcher error.
func (m *Manual) Error(err error) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false
	}
	select {
	case m.errors <- err:
		return true
	case <-m.done:
		return false
	}
}

// Scan sends Added for every path followed by InitialScanComplete.
func (m *Manual) Scan(paths ...string) bool {
	for _, p := range paths {
		if !m.Send(Notification{Kind: Added, Path: p}) {
			return false
		}
	}
	return m.Send(Notification{Kind: InitialScanComplete})
}

// Close implements Watcher.
func (m *Manual) Close() error {
	m.closeOnce.Do(func() {
		// Unblock pending Sends before taking the write lock.
		close(m.done)

		m.mu.Lock()
		m.closed = true
		close(m.events)
		close(m.errors)
		m.mu.Unlock()
	})
	return nil
}

// Closed reports whether Close has been called.
func (m *Manual) Closed() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}
