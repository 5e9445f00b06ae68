package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/73ai/docextract/internal/collect"
	"github.com/73ai/docextract/internal/walker"
)

// Build modes recorded in BuildInfo
const (
	ModeFull        = "full"
	ModeIncremental = "incremental"
	ModeWatch       = "watch"
)

// Builder handles full and incremental index builds with parallel extraction
type Builder struct {
	store      *Store
	collector  *collect.Collector
	config     BuilderConfig
	logger     *slog.Logger
	progress   *BuildProgress
	mu         sync.Mutex
	cancelFunc context.CancelFunc
}

// BuilderConfig configures the index builder behavior
type BuilderConfig struct {
	// Number of worker goroutines for parallel extraction
	Workers int

	// Incremental skips files whose size, mod time or content hash match
	// the indexed record
	Incremental bool

	// ReportProgress logs progress every ProgressInterval
	ReportProgress   bool
	ProgressInterval time.Duration

	// Progress is called after each extracted file
	Progress func(done, total int, path string)

	Logger *slog.Logger
}

// DefaultBuilderConfig returns sensible defaults for the builder
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		Workers:          4,
		Incremental:      true,
		ProgressInterval: time.Second,
	}
}

// BuildProgress tracks the progress of one build
type BuildProgress struct {
	filesDiscovered int64
	filesProcessed  int64
	filesSkipped    int64
	filesRemoved    int64
	filesErrored    int64
	declarations    int64
	documented      int64

	runID       string
	mode        string
	roots       []string
	startTime   time.Time
	updateTime  time.Time
	currentFile string
	mutex       sync.RWMutex

	errors []BuildError
}

// BuildError represents a file that could not be extracted
type BuildError struct {
	FilePath string    `json:"file_path" yaml:"file_path"`
	Error    string    `json:"error" yaml:"error"`
	Time     time.Time `json:"time" yaml:"time"`
}

// BuildStats provides detailed statistics about a build
type BuildStats struct {
	RunID           string        `json:"run_id" yaml:"run_id"`
	Mode            string        `json:"mode" yaml:"mode"`
	Roots           []string      `json:"roots" yaml:"roots"`
	FilesDiscovered int64         `json:"files_discovered" yaml:"files_discovered"`
	FilesProcessed  int64         `json:"files_processed" yaml:"files_processed"`
	FilesSkipped    int64         `json:"files_skipped" yaml:"files_skipped"`
	FilesRemoved    int64         `json:"files_removed" yaml:"files_removed"`
	FilesErrored    int64         `json:"files_errored" yaml:"files_errored"`
	Declarations    int64         `json:"declarations" yaml:"declarations"`
	Documented      int64         `json:"documented" yaml:"documented"`
	Duration        time.Duration `json:"duration" yaml:"duration"`
	StartTime       time.Time     `json:"start_time" yaml:"start_time"`
	EndTime         time.Time     `json:"end_time" yaml:"end_time"`
	Errors          []BuildError  `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Info converts build statistics into the record kept in the index
func (s *BuildStats) Info() BuildInfo {
	return BuildInfo{
		RunID:        s.RunID,
		Mode:         s.Mode,
		Roots:        s.Roots,
		StartedAt:    s.StartTime,
		FinishedAt:   s.EndTime,
		Files:        s.FilesDiscovered,
		Extracted:    s.FilesProcessed,
		Skipped:      s.FilesSkipped,
		Removed:      s.FilesRemoved,
		Failed:       s.FilesErrored,
		Declarations: s.Declarations,
		Documented:   s.Documented,
	}
}

// NewBuilder creates a new index builder
func NewBuilder(store *Store, collector *collect.Collector, config BuilderConfig) *Builder {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.ProgressInterval <= 0 {
		config.ProgressInterval = time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		store:     store,
		collector: collector,
		config:    config,
		logger:    logger,
		progress:  &BuildProgress{},
	}
}

// BuildIndex builds or updates the index for the given roots. Records of
// files that disappeared from under a root are removed.
func (b *Builder) BuildIndex(ctx context.Context, roots ...string) (*BuildStats, error) {
	mode := ModeFull
	if b.config.Incremental {
		mode = ModeIncremental
	}

	buildCtx, err := b.start(ctx, mode, roots)
	if err != nil {
		return nil, err
	}
	defer b.finish()

	var progressDone chan struct{}
	if b.config.ReportProgress {
		progressDone = make(chan struct{})
		go b.reportProgress(buildCtx, progressDone)
		defer close(progressDone)
	}

	found, err := b.collector.Discover(buildCtx, roots...)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	atomic.StoreInt64(&b.progress.filesDiscovered, int64(len(found)))

	if err := b.removeMissing(buildCtx, roots, found); err != nil {
		return nil, fmt.Errorf("failed to remove deleted files: %w", err)
	}

	if b.config.Incremental {
		found, err = b.filterChangedFiles(buildCtx, found)
		if err != nil {
			return nil, fmt.Errorf("failed to filter changed files: %w", err)
		}
	}

	err = b.processFiles(buildCtx, found)
	stats := b.collectStats()
	if err != nil {
		return stats, fmt.Errorf("failed to process files: %w", err)
	}

	if err := b.store.PutBuild(ctx, stats.Info()); err != nil {
		return stats, err
	}
	b.logger.Info("index build complete",
		"run_id", stats.RunID,
		"mode", stats.Mode,
		"files", stats.FilesDiscovered,
		"extracted", stats.FilesProcessed,
		"skipped", stats.FilesSkipped,
		"removed", stats.FilesRemoved,
		"failed", stats.FilesErrored,
		"duration", stats.Duration)
	return stats, nil
}

// RebuildIndex clears the index and extracts every file again
func (b *Builder) RebuildIndex(ctx context.Context, roots ...string) (*BuildStats, error) {
	if err := b.store.Clear(ctx); err != nil {
		return nil, err
	}

	b.mu.Lock()
	originalIncremental := b.config.Incremental
	b.config.Incremental = false
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.config.Incremental = originalIncremental
		b.mu.Unlock()
	}()

	return b.BuildIndex(ctx, roots...)
}

// UpdateFiles re-extracts the given paths and drops the ones that no
// longer exist. Paths with no known language are ignored.
func (b *Builder) UpdateFiles(ctx context.Context, paths []string) (*BuildStats, error) {
	buildCtx, err := b.start(ctx, ModeWatch, paths)
	if err != nil {
		return nil, err
	}
	defer b.finish()

	var changed []walker.Result
	for _, path := range paths {
		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			if err := b.store.DeleteFile(buildCtx, path); err != nil {
				return nil, fmt.Errorf("failed to remove %s: %w", path, err)
			}
			atomic.AddInt64(&b.progress.filesRemoved, 1)
			continue
		}
		if err != nil || info.IsDir() {
			continue
		}
		lang := b.collector.Language(path)
		if lang == "" {
			continue
		}
		changed = append(changed, walker.Result{Path: path, Language: lang, Info: info})
	}
	atomic.StoreInt64(&b.progress.filesDiscovered, int64(len(changed)))

	err = b.processFiles(buildCtx, changed)
	stats := b.collectStats()
	if err != nil {
		return stats, fmt.Errorf("failed to process files: %w", err)
	}
	if err := b.store.PutBuild(ctx, stats.Info()); err != nil {
		return stats, err
	}
	return stats, nil
}

func (b *Builder) start(ctx context.Context, mode string, roots []string) (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancelFunc != nil {
		return nil, fmt.Errorf("an index build is already running")
	}
	buildCtx, cancel := context.WithCancel(ctx)
	b.cancelFunc = cancel
	b.progress = &BuildProgress{
		runID:     uuid.NewString(),
		mode:      mode,
		roots:     append([]string(nil), roots...),
		startTime: time.Now(),
	}
	return buildCtx, nil
}

func (b *Builder) finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancelFunc != nil {
		b.cancelFunc()
		b.cancelFunc = nil
	}
}

// removeMissing deletes the records under roots that the walk did not find
func (b *Builder) removeMissing(ctx context.Context, roots []string, found []walker.Result) error {
	seen := make(map[string]bool, len(found))
	for _, r := range found {
		seen[r.Path] = true
	}

	var absRoots []string
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return err
		}
		absRoots = append(absRoots, abs)
	}

	paths, err := b.store.Paths(ctx)
	if err != nil {
		return err
	}
	for _, path := range paths {
		if seen[path] || !underAny(path, absRoots) {
			continue
		}
		if err := b.store.DeleteFile(ctx, path); err != nil {
			return err
		}
		atomic.AddInt64(&b.progress.filesRemoved, 1)
		b.logger.Debug("removed deleted file from index", "path", path)
	}
	return nil
}

func underAny(path string, roots []string) bool {
	for _, root := range roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// filterChangedFiles drops the files whose indexed record is current
func (b *Builder) filterChangedFiles(ctx context.Context, files []walker.Result) ([]walker.Result, error) {
	var changed []walker.Result

	for _, file := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		record, err := b.store.GetFile(ctx, file.Path)
		if errors.Is(err, ErrKeyNotFound) {
			changed = append(changed, file)
			continue
		}
		if err != nil {
			return nil, err
		}

		current, err := b.isCurrent(ctx, record, file)
		if err != nil {
			return nil, err
		}
		if current {
			atomic.AddInt64(&b.progress.filesSkipped, 1)
			continue
		}
		changed = append(changed, file)
	}

	return changed, nil
}

// isCurrent compares size and mod time first and falls back to the
// content hash, so a touched but unmodified file is not re-extracted
func (b *Builder) isCurrent(ctx context.Context, record *FileRecord, file walker.Result) (bool, error) {
	if file.Info == nil {
		return false, nil
	}
	if record.Size != file.Info.Size() {
		return false, nil
	}
	if record.ModTime.Equal(file.Info.ModTime()) {
		return true, nil
	}
	if record.Hash == "" {
		return false, nil
	}

	content, err := os.ReadFile(file.Path)
	if err != nil {
		return false, nil
	}
	if collect.HashContent(content) != record.Hash {
		return false, nil
	}

	record.ModTime = file.Info.ModTime()
	return true, b.store.PutFile(ctx, *record)
}

// processFiles extracts files in parallel using worker goroutines
func (b *Builder) processFiles(ctx context.Context, files []walker.Result) error {
	workChan := make(chan walker.Result, b.config.Workers)
	var done int64

	g, gCtx := errgroup.WithContext(ctx)

	for i := 0; i < b.config.Workers; i++ {
		g.Go(func() error {
			return b.worker(gCtx, workChan, len(files), &done)
		})
	}

	g.Go(func() error {
		defer close(workChan)

		for _, file := range files {
			select {
			case workChan <- file:
			case <-gCtx.Done():
				return gCtx.Err()
			}
		}
		return nil
	})

	return g.Wait()
}

// worker extracts files from the work channel and stores their records.
// Extraction failures are recorded; storage failures stop the build.
func (b *Builder) worker(ctx context.Context, workChan <-chan walker.Result, total int, done *int64) error {
	for {
		select {
		case file, ok := <-workChan:
			if !ok {
				return nil
			}

			b.updateCurrentFile(file.Path)
			extracted := b.collector.ExtractFile(file.Path, file.Language)
			if err := b.store.PutFile(ctx, NewFileRecord(extracted, b.progress.runID)); err != nil {
				return fmt.Errorf("failed to store %s: %w", file.Path, err)
			}

			if extracted.Failed() {
				b.recordError(file.Path, extracted.Error)
				atomic.AddInt64(&b.progress.filesErrored, 1)
			} else {
				atomic.AddInt64(&b.progress.filesProcessed, 1)
				atomic.AddInt64(&b.progress.declarations, int64(len(extracted.Bindings)))
				for _, binding := range extracted.Bindings {
					if binding.Documented() {
						atomic.AddInt64(&b.progress.documented, 1)
					}
				}
			}

			n := atomic.AddInt64(done, 1)
			if b.config.Progress != nil {
				b.progress.mutex.Lock()
				b.config.Progress(int(n), total, file.Path)
				b.progress.mutex.Unlock()
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *Builder) updateCurrentFile(file string) {
	b.progress.mutex.Lock()
	defer b.progress.mutex.Unlock()

	b.progress.currentFile = file
	b.progress.updateTime = time.Now()
}

func (b *Builder) recordError(file, message string) {
	b.progress.mutex.Lock()
	defer b.progress.mutex.Unlock()

	b.progress.errors = append(b.progress.errors, BuildError{
		FilePath: file,
		Error:    message,
		Time:     time.Now(),
	})
}

// reportProgress logs build progress at regular intervals
func (b *Builder) reportProgress(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(b.config.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.logProgress()
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (b *Builder) logProgress() {
	b.progress.mutex.RLock()
	currentFile := b.progress.currentFile
	b.progress.mutex.RUnlock()

	discovered := atomic.LoadInt64(&b.progress.filesDiscovered)
	processed := atomic.LoadInt64(&b.progress.filesProcessed)
	skipped := atomic.LoadInt64(&b.progress.filesSkipped)
	errored := atomic.LoadInt64(&b.progress.filesErrored)
	elapsed := time.Since(b.progress.startTime)

	attrs := []any{
		"processed", processed,
		"discovered", discovered,
		"skipped", skipped,
		"failed", errored,
		"elapsed", elapsed.Round(time.Second),
		"current", currentFile,
	}
	if processed > 0 {
		remaining := discovered - processed - skipped - errored
		avg := elapsed / time.Duration(processed)
		attrs = append(attrs, "eta", (time.Duration(remaining) * avg).Round(time.Second))
	}
	b.logger.Info("index build progress", attrs...)
}

func (b *Builder) collectStats() *BuildStats {
	endTime := time.Now()

	b.progress.mutex.RLock()
	errs := make([]BuildError, len(b.progress.errors))
	copy(errs, b.progress.errors)
	b.progress.mutex.RUnlock()

	return &BuildStats{
		RunID:           b.progress.runID,
		Mode:            b.progress.mode,
		Roots:           b.progress.roots,
		FilesDiscovered: atomic.LoadInt64(&b.progress.filesDiscovered),
		FilesProcessed:  atomic.LoadInt64(&b.progress.filesProcessed),
		FilesSkipped:    atomic.LoadInt64(&b.progress.filesSkipped),
		FilesRemoved:    atomic.LoadInt64(&b.progress.filesRemoved),
		FilesErrored:    atomic.LoadInt64(&b.progress.filesErrored),
		Declarations:    atomic.LoadInt64(&b.progress.declarations),
		Documented:      atomic.LoadInt64(&b.progress.documented),
		Duration:        endTime.Sub(b.progress.startTime),
		StartTime:       b.progress.startTime,
		EndTime:         endTime,
		Errors:          errs,
	}
}

// Progress returns a snapshot of the current or last build
func (b *Builder) Progress() *BuildStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.collectStats()
}

// Cancel cancels the ongoing build
func (b *Builder) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancelFunc != nil {
		b.cancelFunc()
	}
}

// IsRunning returns true if a build is currently in progress
func (b *Builder) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancelFunc != nil
}

// Store returns the store the builder writes to
func (b *Builder) Store() *Store {
	return b.store
}

// Collector returns the collector used for discovery and extraction
func (b *Builder) Collector() *collect.Collector {
	return b.collector
}
