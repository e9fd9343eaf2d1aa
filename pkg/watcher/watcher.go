package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/basin/errors"
	"github.com/grovetools/basin/logging"
	"github.com/grovetools/basin/pkg/channel"
	"github.com/sirupsen/logrus"
)

const (
	eventBuffer = 64
	errorBuffer = 16
)

type pending struct {
	timer *time.Timer
	kind  Kind
}

// FSWatcher is an fsnotify-backed Watcher. fsnotify only watches single
// directories, so every directory below the root gets its own watch, and
// directories created later are added as they appear.
type FSWatcher struct {
	root    string
	include *channel.Matcher
	ignore  *channel.Matcher
	delay   time.Duration
	logger  *logrus.Entry

	fsw    *fsnotify.Watcher
	events chan Notification
	errors chan error
	flush  chan string
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup

	// Owned by the loop goroutine.
	known   map[string]bool
	pending map[string]*pending
}

// New starts watching opts.Root. The initial scan runs in the background and
// is reported as Added notifications followed by InitialScanComplete.
func New(opts Options) (*FSWatcher, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, errors.IOFailed("watch", opts.Root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.IOFailed("watch", root, err)
	}
	if !info.IsDir() {
		return nil, errors.IOFailed("watch", root, fs.ErrInvalid).
			WithDetail("reason", "root is not a directory")
	}

	var include *channel.Matcher
	if len(opts.Patterns) > 0 {
		include, err = channel.Compile(opts.Patterns...)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid watch pattern")
		}
	}
	ignore, err := channel.Compile(opts.Ignore...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid ignore pattern")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIO, "failed to create filesystem watcher")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger("watcher")
	}

	w := &FSWatcher{
		root:    root,
		include: include,
		ignore:  ignore,
		delay:   opts.Debounce,
		logger:  logger,
		fsw:     fsw,
		events:  make(chan Notification, eventBuffer),
		errors:  make(chan error, errorBuffer),
		flush:   make(chan string),
		done:    make(chan struct{}),
		known:   make(map[string]bool),
		pending: make(map[string]*pending),
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// NewFactory adapts New to the Factory signature.
func NewFactory() Factory {
	return func(opts Options) (Watcher, error) {
		return New(opts)
	}
}

// Events implements Watcher.
func (w *FSWatcher) Events() <-chan Notification {
	return w.events
}

// Errors implements Watcher.
func (w *FSWatcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *FSWatcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		w.closeErr = w.fsw.Close()
	})
	w.wg.Wait()
	return w.closeErr
}

func (w *FSWatcher) run() {
	defer w.wg.Done()
	defer close(w.errors)
	defer close(w.events)
	defer w.stopTimers()

	if !w.scan() {
		return
	}
	if !w.send(Notification{Kind: InitialScanComplete}) {
		return
	}

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			if !w.handle(event) {
				return
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.reportError(errors.Wrap(err, errors.ErrCodeIO, "filesystem watcher error"))
		case path := <-w.flush:
			p, ok := w.pending[path]
			if !ok {
				continue
			}
			delete(w.pending, path)
			if !w.send(Notification{Kind: p.kind, Path: path}) {
				return
			}
		}
	}
}

// scan walks the root, adds a watch for every directory and announces every
// selected file.
func (w *FSWatcher) scan() bool {
	var added []string
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.reportError(errors.IOFailed("scan", path, err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel := w.rel(path)
		if d.IsDir() {
			if rel != "." && w.ignore.Match(rel) {
				return filepath.SkipDir
			}
			if err := w.fsw.Add(path); err != nil {
				w.reportError(errors.IOFailed("watch", path, err))
			}
			return nil
		}

		if w.selected(rel) && !w.known[path] {
			w.known[path] = true
			added = append(added, path)
		}
		return nil
	})
	if err != nil {
		w.reportError(errors.IOFailed("scan", w.root, err))
	}

	w.logger.WithFields(logrus.Fields{
		"root":  w.root,
		"files": len(added),
	}).Debug("Initial scan complete")

	for _, path := range added {
		if !w.send(Notification{Kind: Added, Path: path}) {
			return false
		}
	}
	return true
}

func (w *FSWatcher) handle(event fsnotify.Event) bool {
	path := filepath.Clean(event.Name)
	rel := w.rel(path)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return true
	}

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			// Gone again before we looked.
			return true
		}
		if info.IsDir() {
			return w.addTree(path)
		}
		if !w.selected(rel) {
			return true
		}
		kind := Added
		if w.known[path] {
			kind = Modified
		}
		w.known[path] = true
		return w.schedule(path, kind)

	case event.Has(fsnotify.Write):
		if !w.selected(rel) {
			return true
		}
		kind := Modified
		if !w.known[path] {
			kind = Added
		}
		w.known[path] = true
		return w.schedule(path, kind)

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return w.removeTree(path)
	}

	// Chmod carries no content change.
	return true
}

// addTree watches a directory created after the initial scan and announces
// the files already inside it.
func (w *FSWatcher) addTree(dir string) bool {
	var added []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel := w.rel(path)
		if d.IsDir() {
			if w.ignore.Match(rel) {
				return filepath.SkipDir
			}
			if err := w.fsw.Add(path); err != nil {
				w.reportError(errors.IOFailed("watch", path, err))
			}
			return nil
		}
		if w.selected(rel) && !w.known[path] {
			w.known[path] = true
			added = append(added, path)
		}
		return nil
	})

	for _, path := range added {
		if !w.schedule(path, Added) {
			return false
		}
	}
	return true
}

// removeTree announces the removal of a file or of every known file below a
// removed directory.
func (w *FSWatcher) removeTree(path string) bool {
	var removed []string
	if w.known[path] {
		removed = append(removed, path)
	}
	prefix := path + string(filepath.Separator)
	for known := range w.known {
		if strings.HasPrefix(known, prefix) {
			removed = append(removed, known)
		}
	}

	for _, p := range removed {
		delete(w.known, p)
		if !w.schedule(p, Removed) {
			return false
		}
	}
	return true
}

// schedule delivers a notification now, or after the debounce window when one
// is configured. Events queued for the same path are merged.
func (w *FSWatcher) schedule(path string, kind Kind) bool {
	if w.delay <= 0 {
		return w.send(Notification{Kind: kind, Path: path})
	}

	if p, ok := w.pending[path]; ok {
		merged, keep := merge(p.kind, kind)
		if !keep {
			p.timer.Stop()
			delete(w.pending, path)
			return true
		}
		p.kind = merged
		p.timer.Reset(w.delay)
		return true
	}

	w.pending[path] = &pending{
		kind: kind,
		timer: time.AfterFunc(w.delay, func() {
			select {
			case w.flush <- path:
			case <-w.done:
			}
		}),
	}
	return true
}

// merge combines a queued kind with a newer one. keep is false when the
// two cancel out.
func merge(queued, next Kind) (merged Kind, keep bool) {
	switch {
	case queued == Added && next == Removed:
		return 0, false
	case queued == Added:
		return Added, true
	case queued == Removed && next != Removed:
		return Modified, true
	default:
		return next, true
	}
}

func (w *FSWatcher) stopTimers() {
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
}

func (w *FSWatcher) send(n Notification) bool {
	select {
	case w.events <- n:
		return true
	case <-w.done:
		return false
	}
}

func (w *FSWatcher) reportError(err error) {
	w.logger.WithError(err).Debug("Watcher error")
	select {
	case w.errors <- err:
	default:
		w.logger.WithError(err).Warn("Dropping watcher error, consumer is not keeping up")
	}
}

func (w *FSWatcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return ".."
	}
	return filepath.ToSlash(rel)
}

func (w *FSWatcher) selected(rel string) bool {
	if w.ignore.Match(rel) {
		return false
	}
	return w.include == nil || w.include.Match(rel)
}
