// Package watch keeps a metadata.Registry in sync with component source files.
// A Watcher performs an initial scan, then listens for file system events
// and re-extracts changed files after a debounce period.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/conduit-lang/catalog/internal/discovery"
	"github.com/conduit-lang/catalog/internal/fsys"
	"github.com/conduit-lang/catalog/internal/tooling/scan"
	"github.com/conduit-lang/catalog/runtime/metadata"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// State is the lifecycle state of a Watcher.
type State int

const (
	StateStopped State = iota
	StateInitializing
	StateWatching
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateWatching:
		return "watching"
	default:
		return "stopped"
	}
}

// ErrAlreadyStarted is returned by Start when the watcher is not stopped.
var ErrAlreadyStarted = errors.New("watch: watcher already started")

// Locator finds the source files to watch.
type Locator interface {
	Locate(ctx context.Context) []string
	Roots() []string
	MatchesAbs(path string) bool
}

// Observer is called once per file handled by a refresh. err is nil for
// successful re-extractions and removals.
type Observer func(path string, removed bool, err error)

// Watcher monitors component source files and keeps the registry current
type Watcher struct {
	registry    *metadata.Registry
	locator     Locator
	extractor   scan.FileExtractor
	fs          fsys.Capability
	logger      *zap.Logger
	debounce    time.Duration
	concurrency int
	observer    Observer

	mu        sync.Mutex
	state     State
	notifier  fsys.Notifier
	debouncer *Debouncer
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	filesMu sync.Mutex
	files   map[string]struct{}
	dirs    map[string]struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a refresh.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithFileSystem sets the file system capability. OS is the default.
func WithFileSystem(c fsys.Capability) Option {
	return func(w *Watcher) {
		if c != nil {
			w.fs = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithConcurrency bounds the initial scan worker pool.
func WithConcurrency(n int) Option {
	return func(w *Watcher) { w.concurrency = n }
}

// WithObserver registers a callback for every refreshed file.
func WithObserver(fn Observer) Option {
	return func(w *Watcher) { w.observer = fn }
}

// New creates a stopped watcher.
func New(registry *metadata.Registry, locator Locator, extractor scan.FileExtractor, opts ...Option) *Watcher {
	w := &Watcher{
		registry:  registry,
		locator:   locator,
		extractor: extractor,
		fs:        fsys.OS{},
		logger:    zap.NewNop(),
		debounce:  DefaultDebounce,
		files:     make(map[string]struct{}),
		dirs:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Watching reports whether the watcher is in StateWatching.
func (w *Watcher) Watching() bool {
	return w.State() == StateWatching
}

// Registry returns the registry kept in sync by the watcher.
func (w *Watcher) Registry() *metadata.Registry {
	return w.registry
}

// Start scans every located file into the registry and begins watching
// their directories. With a file system capability that is not enabled,
// Start does nothing and returns a nil result.
func (w *Watcher) Start(ctx context.Context) (*scan.Result, error) {
	if !w.fs.Enabled() {
		w.logger.Debug("file system unavailable, watcher disabled")
		return nil, nil
	}

	w.mu.Lock()
	if w.state != StateStopped {
		w.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	w.state = StateInitializing
	w.mu.Unlock()

	result, err := w.initialize(ctx)
	if err != nil {
		w.mu.Lock()
		w.state = StateStopped
		w.mu.Unlock()
		return result, err
	}
	return result, nil
}

func (w *Watcher) initialize(ctx context.Context) (*scan.Result, error) {
	rec := &recordingLocator{Locator: w.locator}
	scanner := scan.New(rec, w.extractor,
		scan.WithConcurrency(w.concurrency),
		scan.WithLogger(w.logger),
	)
	result := scanner.Scan(ctx)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	for _, c := range result.Components {
		if _, err := w.registry.Upsert(ctx, c); err != nil {
			w.logger.Warn("failed to register component", zap.String("path", c.Path), zap.Error(err))
		}
	}

	notifier, err := w.fs.NewWatcher()
	if err != nil {
		return result, err
	}

	w.filesMu.Lock()
	w.files = make(map[string]struct{}, len(rec.files))
	w.dirs = make(map[string]struct{})
	for _, f := range rec.files {
		w.files[f] = struct{}{}
	}
	w.filesMu.Unlock()

	dirs := make([]string, 0, len(rec.files))
	dirs = append(dirs, w.locator.Roots()...)
	for _, f := range rec.files {
		dirs = append(dirs, filepath.Dir(f))
	}
	for _, dir := range dirs {
		w.watchDir(notifier, dir)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	debouncer := NewDebouncer(w.debounce)
	debouncer.SetCallback(func(files []string) {
		w.refresh(loopCtx, files)
	})

	w.mu.Lock()
	w.notifier = notifier
	w.debouncer = debouncer
	w.cancel = cancel
	w.state = StateWatching
	w.mu.Unlock()

	w.wg.Add(1)
	go w.watch(loopCtx, notifier, debouncer)

	w.logger.Info("watching component sources",
		zap.Int("files", len(rec.files)),
		zap.Int("components", len(result.Components)),
		zap.Int("failures", len(result.Failures)),
	)
	return result, nil
}

// Stop stops watching. It is safe to call more than once and cancels any
// pending debounced refresh.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.state != StateWatching {
		w.mu.Unlock()
		return nil
	}
	w.cancel()
	debouncer := w.debouncer
	err := w.notifier.Close()
	w.state = StateStopped
	w.mu.Unlock()

	debouncer.Stop()
	w.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close file watcher: %w", err)
	}
	return nil
}

// watch is the main event loop
func (w *Watcher) watch(ctx context.Context, notifier fsys.Notifier, debouncer *Debouncer) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-notifier.Events():
			if !ok {
				return
			}
			w.handleEvent(notifier, debouncer, event)

		case err, ok := <-notifier.Errors():
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(notifier fsys.Notifier, debouncer *Debouncer, event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.watchTree(notifier, debouncer, path)
			return
		}
	}

	if !w.tracked(path) {
		return
	}
	w.logger.Debug("component source changed", zap.String("path", path), zap.String("op", event.Op.String()))
	debouncer.Add(path)
}

// tracked reports whether path is a located file or newly matches the
// include patterns.
func (w *Watcher) tracked(path string) bool {
	w.filesMu.Lock()
	_, known := w.files[path]
	w.filesMu.Unlock()
	return known || w.locator.MatchesAbs(path)
}

// watchTree starts watching a newly created directory and queues the
// component files already inside it.
func (w *Watcher) watchTree(notifier fsys.Notifier, debouncer *Debouncer, root string) {
	if discovery.SkipDir(filepath.Base(root)) {
		return
	}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && discovery.SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			w.watchDir(notifier, path)
			return nil
		}
		if w.locator.MatchesAbs(path) {
			debouncer.Add(path)
		}
		return nil
	})
}

func (w *Watcher) watchDir(notifier fsys.Notifier, dir string) {
	w.filesMu.Lock()
	_, seen := w.dirs[dir]
	if !seen {
		w.dirs[dir] = struct{}{}
	}
	w.filesMu.Unlock()
	if seen {
		return
	}
	if err := notifier.Add(dir); err != nil {
		w.logger.Warn("failed to watch directory", zap.String("dir", dir), zap.Error(err))
		return
	}
	w.logger.Debug("watching directory", zap.String("dir", dir))
}

// refresh re-extracts or removes each changed file.
func (w *Watcher) refresh(ctx context.Context, files []string) {
	start := time.Now()
	for _, path := range files {
		if ctx.Err() != nil {
			return
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			w.remove(ctx, path)
			continue
		}
		w.update(ctx, path)
	}
	w.logger.Info("refreshed component sources",
		zap.Int("files", len(files)),
		zap.Duration("duration", time.Since(start)),
	)
}

func (w *Watcher) update(ctx context.Context, path string) {
	components, err := w.extractor.ExtractFile(ctx, path)
	if err != nil {
		w.logger.Warn("failed to extract component source", zap.String("path", path), zap.Error(err))
		w.notify(path, false, err)
		return
	}

	w.filesMu.Lock()
	w.files[path] = struct{}{}
	w.filesMu.Unlock()

	current := make(map[string]bool, len(components))
	for _, c := range components {
		current[c.Path] = true
		if _, err := w.registry.Upsert(ctx, c); err != nil {
			w.logger.Warn("failed to register component", zap.String("path", c.Path), zap.Error(err))
		}
	}
	for _, p := range w.registry.PathsForSource(path) {
		if current[p] {
			continue
		}
		if _, err := w.registry.Remove(ctx, p); err != nil {
			w.logger.Warn("failed to remove component", zap.String("path", p), zap.Error(err))
		}
	}
	w.notify(path, false, nil)
}

func (w *Watcher) remove(ctx context.Context, path string) {
	w.filesMu.Lock()
	delete(w.files, path)
	w.filesMu.Unlock()

	removed := w.registry.RemoveSource(ctx, path)
	w.logger.Info("component source removed", zap.String("path", path), zap.Int("components", len(removed)))
	w.notify(path, true, nil)
}

func (w *Watcher) notify(path string, removed bool, err error) {
	if w.observer != nil {
		w.observer(path, removed, err)
	}
}

// recordingLocator remembers the files handed to the scanner.
type recordingLocator struct {
	Locator
	files []string
}

func (r *recordingLocator) Locate(ctx context.Context) []string {
	r.files = r.Locator.Locate(ctx)
	return r.files
}
