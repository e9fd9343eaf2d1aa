// Package watcher reports file additions, modifications and removals below a
// root directory.
package watcher

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Kind is the type of a notification.
type Kind int

const (
	// InitialScanComplete is sent once, after the Added notifications of the
	// initial scan.
	InitialScanComplete Kind = iota
	Added
	Modified
	Removed
)

func (k Kind) String() string {
	switch k {
	case InitialScanComplete:
		return "ready"
	case Added:
		return "add"
	case Modified:
		return "change"
	case Removed:
		return "unlink"
	default:
		return "unknown"
	}
}

// Notification is a single watcher event. Path is absolute and empty for
// InitialScanComplete.
type Notification struct {
	Kind Kind
	Path string
}

// Watcher delivers notifications until closed. Close stops delivery and
// closes both channels.
type Watcher interface {
	Events() <-chan Notification
	Errors() <-chan error
	Close() error
}

// Options configures a filesystem watcher.
type Options struct {
	// Root is the directory to watch.
	Root string
	// Patterns selects files relative to Root. Empty selects every file.
	Patterns []string
	// Ignore excludes files and whole directories relative to Root.
	Ignore []string
	// Debounce coalesces rapid events on one path. Zero delivers immediately.
	Debounce time.Duration
	Logger   *logrus.Entry
}

// Factory creates a watcher. It lets callers swap the filesystem watcher for
// Manual.
type Factory func(Options) (Watcher, error)
