package basin

import (
	"path/filepath"

	"github.com/grovetools/basin/pkg/watcher"
)

// Kind is the type of a change.
type Kind = watcher.Kind

const (
	InitialScanDone = watcher.InitialScanComplete
	Added           = watcher.Added
	Modified        = watcher.Modified
	Removed         = watcher.Removed
)

// ChangeEvent describes one file change. Handlers receive it by value; to
// hand a transformed version to a later stage, emit a new event.
type ChangeEvent struct {
	Kind Kind
	// Path is relative to Root and slash separated.
	Path string
	Root string
	// Content is set for Added and Modified when the engine reads files.
	Content    string
	HasContent bool
}

// AbsPath returns the absolute path of the changed file.
func (e ChangeEvent) AbsPath() string {
	return filepath.Join(e.Root, filepath.FromSlash(e.Path))
}
