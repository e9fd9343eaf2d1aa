package basin

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"strings"
	"sync"

	"github.com/grovetools/basin/errors"
	"github.com/grovetools/basin/pkg/events"
	"github.com/grovetools/basin/pkg/fsio"
	"github.com/grovetools/basin/pkg/watcher"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Run starts the watcher and dispatches changes until the engine stops: after
// the initial scan without Watch, or on Close or ctx cancellation with it.
// It returns once every in-flight dispatch has settled. Without Watch the
// returned error joins every dispatch failure.
func (b *Basin) Run(ctx context.Context) error {
	if !b.state.CompareAndSwap(int32(StateIdle), int32(StateScanning)) {
		if b.closed() {
			return errors.Closed()
		}
		return errors.AlreadyRunning()
	}
	defer b.Close()

	w, err := b.opts.Watcher(watcher.Options{
		Root:     b.root,
		Patterns: b.registry.AllPatterns(),
		Ignore:   b.opts.Ignore,
		Debounce: b.opts.Debounce,
		Logger:   b.logger,
	})
	if err != nil {
		b.state.Store(int32(StateClosed))
		return err
	}

	b.mu.Lock()
	b.watcher = w
	b.initial = &errgroup.Group{}
	b.settling = &sync.WaitGroup{}
	b.mu.Unlock()

	// Close may have run before the watcher was published.
	select {
	case <-b.done:
		_ = w.Close()
	default:
	}

	b.logger.WithFields(logrus.Fields{
		"root":     b.root,
		"watch":    b.opts.Watch,
		"channels": b.registry.Names(),
	}).Info("Starting basin")

	notifications := w.Events()
	watchErrs := w.Errors()
	ctxDone := ctx.Done()
	done := b.done
	scanDone := false

	for notifications != nil {
		select {
		case n, ok := <-notifications:
			if !ok {
				notifications = nil
				continue
			}
			if scanDone && !b.opts.Watch {
				// One-shot: nothing after the initial scan counts.
				continue
			}
			if n.Kind == watcher.InitialScanComplete {
				scanDone = true
			}
			b.handle(ctx, n)

		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			b.logger.WithError(err).Warn("Watcher error")
			b.opts.ErrorHandler(err)

		case <-ctxDone:
			ctxDone = nil
			b.logger.Debug("Context cancelled, stopping")
			_ = b.Close()

		case <-done:
			done = nil
			_ = b.stopWatcher()
		}
	}

	b.inflight.Wait()
	b.state.Store(int32(StateClosed))

	b.failMu.Lock()
	failures := b.failures
	b.failMu.Unlock()

	b.logger.WithFields(logrus.Fields{
		"failures": len(failures),
		"stores":   b.cache.Stores(),
	}).Info("Basin stopped")

	if b.opts.Watch {
		return nil
	}
	return stderrors.Join(failures...)
}

// handle turns one watcher notification into a dispatch. After Close it does
// nothing.
func (b *Basin) handle(ctx context.Context, n watcher.Notification) {
	switch b.State() {
	case StateClosed, StateReadyClosed:
		return
	}

	if n.Kind == watcher.InitialScanComplete {
		b.scanComplete(ctx)
		return
	}

	rel, ok := b.relative(n.Path)
	if !ok {
		b.logger.WithField("path", n.Path).Debug("Ignoring change outside root")
		return
	}
	if b.ignore.Match(rel) {
		return
	}

	ev := ChangeEvent{Kind: n.Kind, Path: rel, Root: b.root}

	// Changes seen before InitialScanComplete belong to the initial batch.
	b.mu.Lock()
	settling := b.settling
	b.mu.Unlock()
	if settling != nil {
		settling.Add(1)
	}
	b.inflight.Add(1)
	finish := func() {
		if settling != nil {
			settling.Done()
		}
		b.inflight.Done()
	}

	if !b.opts.EmitFile || n.Kind == Removed {
		go func() {
			defer finish()
			b.fail(b.dispatch(ctx, ev))
		}()
		return
	}

	type readResult struct {
		file fsio.File
		err  error
	}
	result := make(chan readResult, 1)
	read := func() error {
		f, err := b.opts.Read(n.Path, b.root)
		result <- readResult{file: f, err: err}
		return err
	}

	b.mu.Lock()
	if g := b.initial; g != nil && !b.Ready() {
		g.Go(read)
	} else {
		go read()
	}
	b.mu.Unlock()

	go func() {
		defer finish()
		r := <-result
		if r.err != nil {
			// No handlers run for a file that could not be read.
			b.fail(r.err)
			return
		}
		ev.Content = r.file.Content
		ev.HasContent = true
		b.fail(b.dispatch(ctx, ev))
	}()
}

// scanComplete waits for the reads started during the initial scan, then
// marks the engine ready and emits Ready. Without Watch the watcher is
// stopped at the same moment. Settled follows once the initial batch's
// dispatches have returned.
func (b *Basin) scanComplete(ctx context.Context) {
	b.mu.Lock()
	g := b.initial
	settling := b.settling
	b.initial = nil
	b.settling = nil
	b.mu.Unlock()

	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()

		if g != nil {
			if err := g.Wait(); err != nil {
				b.logger.WithError(err).Debug("Initial scan had unreadable files")
			}
		}

		next := StateReadyWatching
		if !b.opts.Watch {
			next = StateReadyClosed
		}
		if !b.state.CompareAndSwap(int32(StateScanning), int32(next)) {
			// Closed while the initial reads settled.
			return
		}
		b.ready.Store(true)

		if !b.opts.Watch {
			if err := b.stopWatcher(); err != nil {
				b.logger.WithError(err).Warn("Failed to stop watcher")
			}
		}

		b.logger.Info("Initial scan complete")
		b.fail(b.bus.Emit(ctx, Ready))

		if settling != nil {
			settling.Wait()
		}
		b.logger.Debug("Initial batch settled")
		b.fail(b.bus.Emit(ctx, Settled))
	}()
}

// dispatch emits ev on All and on every matching channel. All emissions run
// concurrently; the result is the first failure in channel order once every
// handler has returned.
func (b *Basin) dispatch(ctx context.Context, ev ChangeEvent) error {
	matched := b.registry.ChannelsMatching(ev.Path)

	b.logger.WithFields(logrus.Fields{
		"kind":     ev.Kind.String(),
		"path":     ev.Path,
		"channels": matched,
	}).Debug("Dispatching change")

	emissions := make([]*events.Emission, 0, len(matched)+1)
	emissions = append(emissions, b.bus.Go(ctx, All, ev))
	for _, name := range matched {
		emissions = append(emissions, b.bus.Go(ctx, channelEvent(name), ev))
	}

	var first error
	for _, e := range emissions {
		if err := e.Wait(); err != nil && first == nil {
			first = err
		}
	}
	for _, e := range emissions {
		<-e.Settled()
	}
	return first
}

// fail reports err. One-shot runs also keep it for Run's result; a watch
// session only reports, so it does not grow with every failure.
func (b *Basin) fail(err error) {
	if err == nil {
		return
	}
	if !b.opts.Watch {
		b.failMu.Lock()
		b.failures = append(b.failures, err)
		b.failMu.Unlock()
	}

	b.opts.ErrorHandler(err)
}

// relative converts an absolute watcher path to a slash-separated path below
// the root.
func (b *Basin) relative(path string) (string, bool) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(b.root, path)
	}
	rel, err := filepath.Rel(b.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
