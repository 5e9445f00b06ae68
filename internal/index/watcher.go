package index

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/73ai/docextract/internal/walker"
)

// Watcher monitors source trees and re-extracts changed files into the index
type Watcher struct {
	builder      *Builder
	config       WatcherConfig
	logger       *slog.Logger
	fsWatcher    *fsnotify.Watcher
	ignores      map[string]*walker.IgnoreManager
	eventChan    chan WatchEvent
	cancelFunc   context.CancelFunc
	done         chan struct{}
	runningMutex sync.RWMutex
	running      bool
	stats        WatchStats
	statsMutex   sync.Mutex
}

// WatcherConfig configures the file system watcher behavior
type WatcherConfig struct {
	// DebounceDuration batches rapid changes to the same files
	DebounceDuration time.Duration

	// BatchSize flushes a batch early once this many events are pending
	BatchSize int

	// Roots are the directories watched recursively
	Roots []string

	// Hidden watches hidden directories too
	Hidden bool

	// NoIgnore disables .gitignore and .docextractignore handling
	NoIgnore bool

	// DefaultIgnores skips dependency and build directories
	DefaultIgnores bool

	// OnBatch is called after each batch is applied to the index
	OnBatch func(WatchBatch)

	// OnError is called for watch and indexing errors
	OnError func(error)

	Logger *slog.Logger
}

// DefaultWatcherConfig returns sensible defaults for the watcher
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		DebounceDuration: 500 * time.Millisecond,
		BatchSize:        50,
	}
}

// WatchEvent represents a relevant file system change
type WatchEvent struct {
	Path      string    `json:"path"`
	Operation string    `json:"operation"` // "create", "write", "remove", "rename"
	Time      time.Time `json:"time"`
}

// WatchBatch is the outcome of applying a batch of events
type WatchBatch struct {
	Events []WatchEvent `json:"events"`
	Stats  *BuildStats  `json:"stats"`
}

// WatchStats provides statistics about watcher activity
type WatchStats struct {
	WatchedDirs   int       `json:"watched_dirs"`
	EventsTotal   int64     `json:"events_total"`
	EventsWritten int64     `json:"events_written"`
	EventsRemoved int64     `json:"events_removed"`
	BatchesTotal  int64     `json:"batches_total"`
	LastEvent     time.Time `json:"last_event"`
}

// NewWatcher creates a watcher that updates the index through builder
func NewWatcher(builder *Builder, config WatcherConfig) (*Watcher, error) {
	if config.DebounceDuration <= 0 {
		config.DebounceDuration = 500 * time.Millisecond
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		builder:   builder,
		config:    config,
		logger:    logger,
		fsWatcher: fsWatcher,
		ignores:   make(map[string]*walker.IgnoreManager),
		eventChan: make(chan WatchEvent, config.BatchSize*2),
	}, nil
}

// Start begins watching the configured roots
func (w *Watcher) Start(ctx context.Context) error {
	w.runningMutex.Lock()
	defer w.runningMutex.Unlock()

	if w.running {
		return fmt.Errorf("watcher is already running")
	}

	for _, root := range w.config.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return err
		}
		if err := w.addRoot(abs); err != nil {
			return fmt.Errorf("failed to watch %s: %w", root, err)
		}
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel
	w.done = make(chan struct{})
	w.running = true

	go w.watchFileSystem(watchCtx)
	go func() {
		defer close(w.done)
		w.processEvents(watchCtx)
	}()

	w.logger.Info("watching for changes", "roots", w.config.Roots, "directories", len(w.fsWatcher.WatchList()))
	return nil
}

// Stop stops watching and waits for the pending batch to be applied
func (w *Watcher) Stop() error {
	w.runningMutex.Lock()
	defer w.runningMutex.Unlock()

	if !w.running {
		return nil
	}

	err := w.fsWatcher.Close()
	<-w.done
	w.cancelFunc()
	w.running = false

	w.logger.Info("stopped watching")
	return err
}

// IsRunning returns true if the watcher is currently active
func (w *Watcher) IsRunning() bool {
	w.runningMutex.RLock()
	defer w.runningMutex.RUnlock()
	return w.running
}

// addRoot loads the ignore rules of a root and watches its directories
func (w *Watcher) addRoot(root string) error {
	ignores, err := walker.NewIgnoreManager()
	if err != nil {
		return err
	}
	ignores.SetEnabled(!w.config.NoIgnore)
	ignores.SetDefaults(w.config.DefaultIgnores)
	if err := ignores.LoadFromPath(root); err != nil {
		return err
	}
	w.ignores[root] = ignores

	_, err = w.addDirectory(root, root)
	return err
}

// addDirectory watches dir and every non-ignored directory below it. It
// returns the files already present, which a directory created after the
// watch started may hold before its own watch is in place.
func (w *Watcher) addDirectory(root, dir string) ([]string, error) {
	ignores := w.ignores[root]
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
			return nil
		}

		rel, _ := filepath.Rel(root, path)
		if rel != "." {
			if w.skipDirectory(ignores, rel, d.Name()) {
				return filepath.SkipDir
			}
			if err := ignores.LoadDir(path, rel); err != nil {
				w.reportError(err)
			}
		}

		if err := w.fsWatcher.Add(path); err != nil {
			w.reportError(fmt.Errorf("failed to watch directory %s: %w", path, err))
		}
		return nil
	})
	return files, err
}

func (w *Watcher) skipDirectory(ignores *walker.IgnoreManager, rel, name string) bool {
	if name == ".git" {
		return true
	}
	if !w.config.Hidden && strings.HasPrefix(name, ".") {
		return true
	}
	return ignores.ShouldIgnore(rel, true)
}

// rootOf returns the watched root containing path
func (w *Watcher) rootOf(path string) (string, bool) {
	var best string
	for root := range w.ignores {
		if (path == root || strings.HasPrefix(path, root+string(filepath.Separator))) && len(root) > len(best) {
			best = root
		}
	}
	return best, best != ""
}

// shouldProcessFile reports whether a changed path belongs in the index
func (w *Watcher) shouldProcessFile(path string) bool {
	root, ok := w.rootOf(path)
	if !ok {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == ".git" || (!w.config.Hidden && strings.HasPrefix(part, ".")) {
			return false
		}
	}
	if w.ignores[root].ShouldIgnore(rel, false) {
		return false
	}
	return w.builder.Collector().Language(path) != ""
}

// watchFileSystem converts fsnotify events into WatchEvents
func (w *Watcher) watchFileSystem(ctx context.Context) {
	defer close(w.eventChan)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			var events []WatchEvent
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if !event.Has(fsnotify.Create) {
					continue
				}
				root, ok := w.rootOf(event.Name)
				if !ok {
					continue
				}
				files, err := w.addDirectory(root, event.Name)
				if err != nil {
					w.reportError(err)
				}
				for _, file := range files {
					events = append(events, WatchEvent{Path: file, Operation: "create", Time: time.Now()})
				}
			} else if watchEvent := convertEvent(event); watchEvent != nil {
				events = append(events, *watchEvent)
			}

			for _, watchEvent := range events {
				if !w.shouldProcessFile(watchEvent.Path) {
					continue
				}
				select {
				case w.eventChan <- watchEvent:
				case <-ctx.Done():
					return
				}
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.reportError(fmt.Errorf("watcher error: %w", err))

		case <-ctx.Done():
			return
		}
	}
}

func convertEvent(event fsnotify.Event) *WatchEvent {
	var operation string

	switch {
	case event.Has(fsnotify.Create):
		operation = "create"
	case event.Has(fsnotify.Write):
		operation = "write"
	case event.Has(fsnotify.Remove):
		operation = "remove"
	case event.Has(fsnotify.Rename):
		operation = "rename"
	default:
		return nil
	}

	return &WatchEvent{
		Path:      event.Name,
		Operation: operation,
		Time:      time.Now(),
	}
}

// processEvents debounces events into batches
func (w *Watcher) processEvents(ctx context.Context) {
	var events []WatchEvent
	var timer *time.Timer
	var timerChan <-chan time.Time

	for {
		select {
		case event, ok := <-w.eventChan:
			if !ok {
				if len(events) > 0 {
					w.processBatch(context.WithoutCancel(ctx), events)
				}
				return
			}

			events = append(events, event)

			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.config.DebounceDuration)
			timerChan = timer.C

			if len(events) >= w.config.BatchSize {
				timer.Stop()
				w.processBatch(ctx, events)
				events = nil
				timerChan = nil
			}

		case <-timerChan:
			if len(events) > 0 {
				w.processBatch(ctx, events)
				events = nil
			}
			timerChan = nil

		case <-ctx.Done():
			return
		}
	}
}

// processBatch applies a batch of events to the index. Every path is
// re-checked on disk, so a create followed by a remove is a removal.
func (w *Watcher) processBatch(ctx context.Context, events []WatchEvent) {
	seen := make(map[string]bool)
	var paths []string
	var written, removed int64
	for _, event := range events {
		switch event.Operation {
		case "create", "write":
			written++
		case "remove", "rename":
			removed++
		}
		if !seen[event.Path] {
			seen[event.Path] = true
			paths = append(paths, event.Path)
		}
	}
	sort.Strings(paths)

	stats, err := w.builder.UpdateFiles(ctx, paths)
	if err != nil {
		w.reportError(fmt.Errorf("failed to index changed files: %w", err))
	}

	w.statsMutex.Lock()
	w.stats.EventsTotal += int64(len(events))
	w.stats.EventsWritten += written
	w.stats.EventsRemoved += removed
	w.stats.BatchesTotal++
	w.stats.LastEvent = events[len(events)-1].Time
	w.statsMutex.Unlock()

	if stats != nil {
		w.logger.Info("index updated",
			"run_id", stats.RunID,
			"changed", len(paths),
			"extracted", stats.FilesProcessed,
			"removed", stats.FilesRemoved,
			"failed", stats.FilesErrored)
	}
	if w.config.OnBatch != nil {
		w.config.OnBatch(WatchBatch{Events: events, Stats: stats})
	}
}

func (w *Watcher) reportError(err error) {
	w.logger.Warn("watch error", "error", err)
	if w.config.OnError != nil {
		w.config.OnError(err)
	}
}

// WatchedDirectories returns the directories currently watched
func (w *Watcher) WatchedDirectories() []string {
	dirs := w.fsWatcher.WatchList()
	sort.Strings(dirs)
	return dirs
}

// Stats returns watcher statistics
func (w *Watcher) Stats() WatchStats {
	w.statsMutex.Lock()
	defer w.statsMutex.Unlock()

	stats := w.stats
	stats.WatchedDirs = len(w.fsWatcher.WatchList())
	return stats
}
