// Package watcher watches content directories and reports changed files in
// debounced batches.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher collects create and write events under its roots and calls onChange
// with the sorted set of touched files once no event has arrived for the debounce
// interval. Removed files are logged but not reported: entries outlive their files.
type Watcher struct {
	roots    []string
	accept   func(path string) bool
	onChange func(paths []string)
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	pending map[string]struct{}
	timer   *time.Timer
	stopped bool
	done    chan struct{}
	stop    sync.Once
}

// New creates a watcher. accept filters which files count; nil accepts all.
// A non-positive debounce uses the default.
func New(roots []string, accept func(string) bool, debounce time.Duration, onChange func([]string), logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if accept == nil {
		accept = func(string) bool { return true }
	}
	return &Watcher{
		roots:    roots,
		accept:   accept,
		onChange: onChange,
		debounce: debounce,
		logger:   logger,
		pending:  make(map[string]struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins watching. It returns once every root is registered; events are
// handled in the background until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, root := range w.roots {
		if err := addTree(fsw, root); err != nil {
			_ = fsw.Close()
			return err
		}
	}
	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()

	w.logger.Info("watching content", "roots", w.roots, "debounce", w.debounce)
	go w.run(ctx, fsw)
	return nil
}

func addTree(fsw *fsnotify.Watcher, root string) error {
	root = filepath.Clean(root)
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := addTree(fsw, ev.Name); err != nil {
				w.logger.Warn("watcher: adding directory", "path", ev.Name, "error", err)
			}
			w.queueTree(ev.Name)
			return
		}
		if w.accept(ev.Name) {
			w.queue(ev.Name)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		if w.accept(ev.Name) {
			w.logger.Info("content file removed; its entries stay in the corpus", "path", ev.Name)
		}
	}
}

func (w *Watcher) queueTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && w.accept(path) {
			w.queue(path)
		}
		return nil
	})
}

func (w *Watcher) queue(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.timer = nil
	w.mu.Unlock()

	sort.Strings(paths)
	w.logger.Debug("content changed", "files", len(paths))
	w.onChange(paths)
}

// Stop stops watching and drops any pending batch.
func (w *Watcher) Stop() {
	w.stop.Do(func() {
		w.mu.Lock()
		w.stopped = true
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		w.pending = make(map[string]struct{})
		fsw := w.fsw
		w.fsw = nil
		w.mu.Unlock()
		if fsw != nil {
			_ = fsw.Close()
		}
		close(w.done)
	})
}
