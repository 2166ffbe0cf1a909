package atolldev

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// Ignore patterns - these are glob patterns, not path segments
const (
	globGit         = "**/.git"
	globNodeModules = "**/node_modules"
)

// Watcher manages file watching for the dev server. Include and ignore
// patterns are doublestar globs over absolute forward-slash paths.
type Watcher struct {
	log     *slog.Logger
	fsWatch *fsnotify.Watcher

	watchedDirs sync.Map

	absWatchRoot string
	ignored      []string
	included     []string
}

// NewWatcher creates a watcher rooted at watchRoot. distDir and any extra
// ignore globs are excluded; include patterns limit which files count as
// relevant changes (empty means everything not ignored).
func NewWatcher(watchRoot, distDir string, include, ignore []string, log *slog.Logger) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	absWatchRoot, err := filepath.Abs(watchRoot)
	if err != nil {
		absWatchRoot = watchRoot
	}

	w := &Watcher{
		log:          log,
		fsWatch:      fsWatch,
		absWatchRoot: filepath.ToSlash(absWatchRoot),
	}

	w.ignored = []string{
		w.norm(distDir),
		w.norm(distDir) + "/**",
		w.absWatchRoot + "/" + globGit,
		w.absWatchRoot + "/" + globGit + "/**",
		w.absWatchRoot + "/" + globNodeModules,
		w.absWatchRoot + "/" + globNodeModules + "/**",
	}
	for _, p := range ignore {
		w.ignored = append(w.ignored, w.joinRoot(p))
	}
	for _, p := range include {
		w.included = append(w.included, w.joinRoot(p))
	}

	if err := w.AddDir(watchRoot); err != nil {
		fsWatch.Close()
		return nil, err
	}
	return w, nil
}

// norm converts a path to absolute with forward slashes for consistent matching
func (w *Watcher) norm(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(abs)
}

func (w *Watcher) joinRoot(pattern string) string {
	if filepath.IsAbs(pattern) {
		return w.norm(pattern)
	}
	return w.absWatchRoot + "/" + filepath.ToSlash(pattern)
}

func (w *Watcher) Events() <-chan fsnotify.Event {
	return w.fsWatch.Events
}

func (w *Watcher) Errors() <-chan error {
	return w.fsWatch.Errors
}

func (w *Watcher) Close() error {
	return w.fsWatch.Close()
}

// AddDir adds a directory and its subdirectories to the watcher
func (w *Watcher) AddDir(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}

		if w.IsIgnored(path) {
			return filepath.SkipDir
		}

		// Use absolute path as key to avoid duplicates
		absPath := w.norm(path)
		if _, exists := w.watchedDirs.Load(absPath); exists {
			return nil
		}

		if err := w.fsWatch.Add(path); err != nil {
			return err
		}

		w.watchedDirs.Store(absPath, true)
		return nil
	})
}

// RemoveStale removes watches for directories that no longer exist
func (w *Watcher) RemoveStale() {
	w.watchedDirs.Range(func(key, _ any) bool {
		path := key.(string)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			w.fsWatch.Remove(path)
			w.watchedDirs.Delete(path)
		}
		return true
	})
}

func (w *Watcher) matchAny(patterns []string, path string) bool {
	np := w.norm(path)
	for _, pattern := range patterns {
		matches, err := doublestar.Match(pattern, np)
		if err != nil {
			w.log.Error("Pattern match error", "pattern", pattern, "path", path, "error", err)
			continue
		}
		if matches {
			return true
		}
	}
	return false
}

func (w *Watcher) IsIgnored(path string) bool {
	return w.matchAny(w.ignored, path)
}

// IsRelevant reports whether a changed file should trigger dev-loop work.
func (w *Watcher) IsRelevant(path string) bool {
	if w.IsIgnored(path) {
		return false
	}
	if len(w.included) == 0 {
		return true
	}
	return w.matchAny(w.included, path)
}

// Debouncer batches rapid file events and ensures callbacks don't overlap.
type Debouncer struct {
	duration time.Duration
	callback func([]fsnotify.Event)
	mu       sync.Mutex
	timer    *time.Timer
	events   []fsnotify.Event
	stopped  bool
	inFlight bool
	pending  []fsnotify.Event
}

func NewDebouncer(d time.Duration, cb func([]fsnotify.Event)) *Debouncer {
	return &Debouncer{duration: d, callback: cb}
}

func (d *Debouncer) Add(evt fsnotify.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.events = append(d.events, evt)

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.duration, d.flush)
}

// flush is called by the timer. It checks if a callback is in-flight and
// either runs the callback or queues events for later.
func (d *Debouncer) flush() {
	d.mu.Lock()

	if d.stopped {
		d.mu.Unlock()
		return
	}

	events := d.events
	d.events = nil

	if len(events) == 0 {
		d.mu.Unlock()
		return
	}

	if d.inFlight {
		d.pending = append(d.pending, events...)
		d.mu.Unlock()
		return
	}

	d.inFlight = true
	d.mu.Unlock()

	// Run callback outside of lock
	d.callback(events)

	d.mu.Lock()
	d.inFlight = false

	if len(d.pending) > 0 && !d.stopped {
		d.events = d.pending
		d.pending = nil
		d.timer = time.AfterFunc(d.duration, d.flush)
	}
	d.mu.Unlock()
}

// Stop cancels any pending debounced callback and prevents future events.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.events = nil
	d.pending = nil
}
