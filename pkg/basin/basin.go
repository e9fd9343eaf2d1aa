// Package basin is the file-change-driven build engine. It watches a tree,
// classifies every change into channels, dispatches it to handlers on an
// event bus and offers handlers an artifact cache and file I/O.
package basin

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grovetools/basin/errors"
	"github.com/grovetools/basin/logging"
	"github.com/grovetools/basin/pkg/cache"
	"github.com/grovetools/basin/pkg/channel"
	"github.com/grovetools/basin/pkg/events"
	"github.com/grovetools/basin/pkg/fsio"
	"github.com/grovetools/basin/pkg/watcher"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Handler reacts to an event. b is the engine that dispatched it.
type Handler func(ctx context.Context, b *Basin, args ...any) error

// ChangeHandler reacts to a file change.
type ChangeHandler func(ctx context.Context, b *Basin, ev ChangeEvent) error

// Options configures an engine.
type Options struct {
	// Root is the watched directory. Defaults to the working directory.
	Root string
	// Watch keeps the engine running after the initial scan. Without it the
	// engine stops as soon as it is ready.
	Watch bool
	// EmitFile attaches file contents to Added and Modified events.
	EmitFile bool
	// Ignore excludes paths relative to Root.
	Ignore []string
	// Channels in registration order. Empty registers the Default channel.
	Channels []channel.Spec
	Debounce time.Duration
	Logger   *logrus.Entry
	// Watcher creates the file watcher. Defaults to the fsnotify watcher.
	Watcher watcher.Factory
	// Read loads file contents for EmitFile and Basin.Read. Defaults to
	// fsio.Read.
	Read func(path, root string) (fsio.File, error)
	// ErrorHandler receives dispatch and watcher failures. Defaults to
	// logging them. Only one-shot runs also collect failures for Run.
	ErrorHandler func(error)
}

// State is the lifecycle phase of an engine.
type State int32

const (
	StateIdle State = iota
	StateScanning
	StateReadyWatching
	StateReadyClosed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateReadyWatching:
		return "ready-watching"
	case StateReadyClosed:
		return "ready-closed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Basin is a build engine. Create one with New, register handlers, then Run.
type Basin struct {
	opts     Options
	root     string
	logger   *logrus.Entry
	registry *channel.Registry
	ignore   *channel.Matcher
	bus      *events.Bus[Name]
	cache    *cache.Store

	state atomic.Int32
	ready atomic.Bool

	mu       sync.Mutex
	watcher  watcher.Watcher
	initial  *errgroup.Group
	settling *sync.WaitGroup

	done      chan struct{}
	closeOnce sync.Once
	inflight  sync.WaitGroup

	failMu   sync.Mutex
	failures []error
}

// New validates opts and creates an idle engine.
func New(opts Options) (*Basin, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to resolve root").
			WithDetail("root", opts.Root)
	}

	registry, err := channel.New(opts.Channels)
	if err != nil {
		return nil, err
	}

	ignore, err := channel.Compile(opts.Ignore...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid ignore pattern")
	}

	if opts.Logger == nil {
		opts.Logger = logging.NewLogger("basin")
	}
	if opts.Watcher == nil {
		opts.Watcher = watcher.NewFactory()
	}
	if opts.Read == nil {
		opts.Read = fsio.Read
	}

	b := &Basin{
		opts:     opts,
		root:     root,
		logger:   opts.Logger,
		registry: registry,
		ignore:   ignore,
		bus:      events.NewBus[Name](),
		cache:    cache.New(),
		done:     make(chan struct{}),
	}
	if b.opts.ErrorHandler == nil {
		b.opts.ErrorHandler = func(err error) {
			b.logger.WithError(err).Error("Dispatch failed")
		}
	}
	return b, nil
}

// On registers h for name and returns an id for Off.
func (b *Basin) On(name Name, h Handler) events.ListenerID {
	return b.bus.On(name, b.bind(h))
}

// Once registers h for the next emission of name only.
func (b *Basin) Once(name Name, h Handler) events.ListenerID {
	return b.bus.Once(name, b.bind(h))
}

// Off removes a handler registered with On, Once or OnChange.
func (b *Basin) Off(name Name, id events.ListenerID) bool {
	return b.bus.Off(name, id)
}

// OnChange registers a handler for a channel, or All, that receives the
// ChangeEvent directly.
func (b *Basin) OnChange(name Name, h ChangeHandler) events.ListenerID {
	return b.On(name, func(ctx context.Context, b *Basin, args ...any) error {
		if len(args) == 0 {
			return errors.New(errors.ErrCodeHandlerFailed, "change handler called without a ChangeEvent").
				WithDetail("event", name.String())
		}
		ev, ok := args[0].(ChangeEvent)
		if !ok {
			return errors.New(errors.ErrCodeHandlerFailed, "change handler called without a ChangeEvent").
				WithDetail("event", name.String())
		}
		return h(ctx, b, ev)
	})
}

// OnDefault registers a change handler on the Default channel.
func (b *Basin) OnDefault(h ChangeHandler) events.ListenerID {
	return b.OnChange(Default, h)
}

// Emit runs every handler for name and waits until they all succeed or one
// fails. Handlers use it to drive the next pipeline stage.
func (b *Basin) Emit(ctx context.Context, name Name, args ...any) error {
	return b.bus.Emit(ctx, name, args...)
}

func (b *Basin) bind(h Handler) events.Handler {
	return func(ctx context.Context, args ...any) error {
		return h(ctx, b, args...)
	}
}

// Cache stores value under (store, key). See cache.Store.Cache.
func (b *Basin) Cache(store, key string, value any) (any, error) {
	return b.cache.Cache(store, key, value)
}

// Purge removes (store, key). See cache.Store.Purge.
func (b *Basin) Purge(store, key string) (any, bool, error) {
	return b.cache.Purge(store, key)
}

// Get returns every value in store in insertion order.
func (b *Basin) Get(store string) ([]any, error) {
	return b.cache.Get(store)
}

// Lookup returns the value under (store, key).
func (b *Basin) Lookup(store, key string) (any, bool, error) {
	return b.cache.Lookup(store, key)
}

// Keys returns the keys of store in insertion order.
func (b *Basin) Keys(store string) []string {
	return b.cache.Keys(store)
}

// Len returns the number of entries in store.
func (b *Basin) Len(store string) int {
	return b.cache.Len(store)
}

// Read loads a file relative to the engine root.
func (b *Basin) Read(path string) (fsio.File, error) {
	return b.opts.Read(path, b.root)
}

// Write stores content at path below dir, creating parent directories. A
// relative dir is resolved against the engine root; an empty dir is the root.
func (b *Basin) Write(dir, path string, content []byte) error {
	return fsio.Write(path, content, b.resolve(dir))
}

// Remove deletes every path matching pattern. Relative patterns are resolved
// against the engine root.
func (b *Basin) Remove(pattern string) error {
	return fsio.RemoveAll(b.resolve(pattern))
}

func (b *Basin) resolve(path string) string {
	if path == "" {
		return b.root
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(b.root, path)
}

// Root returns the absolute engine root.
func (b *Basin) Root() string {
	return b.root
}

// Channels returns the channel registry.
func (b *Basin) Channels() *channel.Registry {
	return b.registry
}

// Logger returns the engine logger.
func (b *Basin) Logger() *logrus.Entry {
	return b.logger
}

// Ready reports whether the initial scan has settled.
func (b *Basin) Ready() bool {
	return b.ready.Load()
}

// State returns the current lifecycle phase.
func (b *Basin) State() State {
	return State(b.state.Load())
}

// Close stops the engine. Run returns once in-flight dispatches settle.
// A later Run fails with ENGINE_CLOSED.
func (b *Basin) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.state.Store(int32(StateClosed))
		close(b.done)
		err = b.stopWatcher()
	})
	return err
}

func (b *Basin) stopWatcher() error {
	b.mu.Lock()
	w := b.watcher
	b.mu.Unlock()

	if w == nil {
		return nil
	}
	return w.Close()
}

func (b *Basin) closed() bool {
	return b.State() == StateClosed
}
