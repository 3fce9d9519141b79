// Package watcher turns bursts of new video files in watched directories
// into rename batches.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Nomadcxx/jellyrename/internal/logging"
	"github.com/Nomadcxx/jellyrename/internal/planner"
	"github.com/Nomadcxx/jellyrename/internal/scanner"
)

// DefaultSettle is how long a burst must stay quiet before it is handled.
const DefaultSettle = 5 * time.Second

// Handler runs one batch over settled files and returns the paths the batch
// produced, which the watcher then ignores.
type Handler interface {
	HandleBatch(ctx context.Context, paths []string) ([]string, error)
}

type Watcher struct {
	fsWatcher *fsnotify.Watcher
	handler   Handler
	recursive bool
	settle    time.Duration
	logger    *logging.Logger
	now       func() time.Time

	mu      sync.Mutex
	pending map[string]time.Time
	ignore  map[string]time.Time
}

type Option func(*Watcher)

func WithRecursive(recursive bool) Option {
	return func(w *Watcher) {
		w.recursive = recursive
	}
}

// WithSettle sets the quiet period. Non-positive values keep the default.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

func NewWatcher(handler Handler, opts ...Option) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("unable to create watcher: %w", err)
	}

	w := newWatcher(handler, opts...)
	w.fsWatcher = fsWatcher
	return w, nil
}

func newWatcher(handler Handler, opts ...Option) *Watcher {
	w := &Watcher{
		handler:   handler,
		recursive: true,
		settle:    DefaultSettle,
		logger:    logging.Nop(),
		now:       time.Now,
		pending:   make(map[string]time.Time),
		ignore:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Watcher) Watch(paths []string) error {
	for _, path := range paths {
		if w.recursive {
			if err := w.addRecursive(path); err != nil {
				return err
			}
			continue
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return fmt.Errorf("unable to watch %s: %w", path, err)
		}
		w.logger.Info("watcher", "watching", logging.F("dir", path))
	}
	return nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("unable to watch %s: %w", root, err)
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(filepath.Base(path), ".") {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return fmt.Errorf("unable to watch %s: %w", path, err)
		}
		w.logger.Info("watcher", "watching", logging.F("dir", path))
		return nil
	})
}

// Start handles events until ctx is done. Files already present when Start
// is called are not picked up.
func (w *Watcher) Start(ctx context.Context) error {
	tick := w.settle / 4
	if tick < 50*time.Millisecond {
		tick = 50 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Warn("watcher", "watcher error", logging.F("error", err))

		case <-ticker.C:
			if paths := w.due(); len(paths) > 0 {
				w.run(ctx, paths)
			}
		}
	}
}

func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.recursive && !strings.HasPrefix(filepath.Base(event.Name), ".") {
				if err := w.fsWatcher.Add(event.Name); err == nil {
					w.logger.Info("watcher", "now watching new directory", logging.F("dir", event.Name))
				}
			}
			return
		}
	}

	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		w.observe(event.Name)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.forget(event.Name)
	}
}

// observe records activity on path. Hidden files, temporary rename files
// and paths a batch just produced are ignored.
func (w *Watcher) observe(path string) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, planner.TempSuffix) || !scanner.IsVideoFile(base) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if until, ok := w.ignore[path]; ok {
		if now.Before(until) {
			return
		}
		delete(w.ignore, path)
	}
	if _, seen := w.pending[path]; !seen {
		w.logger.Debug("watcher", "new file", logging.F("path", path))
	}
	w.pending[path] = now
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()
}

// due returns the whole burst once every pending file has been quiet for
// the settle period, and clears it.
func (w *Watcher) due() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 {
		return nil
	}
	now := w.now()
	for _, last := range w.pending {
		if now.Sub(last) < w.settle {
			return nil
		}
	}

	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	w.pending = make(map[string]time.Time)

	for p, until := range w.ignore {
		if now.After(until) {
			delete(w.ignore, p)
		}
	}
	return paths
}

// suppress ignores events on paths for two settle periods.
func (w *Watcher) suppress(paths []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	until := w.now().Add(2 * w.settle)
	for _, p := range paths {
		w.ignore[p] = until
		delete(w.pending, p)
	}
}

func (w *Watcher) run(ctx context.Context, paths []string) {
	w.logger.Info("watcher", "handling settled files", logging.F("count", len(paths)))
	produced, err := w.handler.HandleBatch(ctx, paths)
	if err != nil {
		w.logger.Error("watcher", "batch failed", err, logging.F("count", len(paths)))
	}
	w.suppress(produced)
}
