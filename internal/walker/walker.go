// Package walker discovers source files for extraction, honoring ignore
// files, include/exclude globs and per-language filters
package walker

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Result represents a file discovered during traversal
type Result struct {
	Path      string      // Absolute path to the file
	RelPath   string      // Path relative to the walk root
	Language  string      // Canonical language name, "" when unknown
	Info      fs.FileInfo // File information
	IsSymlink bool        // Whether this is a symbolic link
	Explicit  bool        // The file was named directly as a walk root
	Error     error       // Any error encountered processing this file
}

// Stats contains traversal statistics
type Stats struct {
	FilesFound     int64         // Total files found
	FilesFiltered  int64         // Files filtered out
	DirsTraversed  int64         // Directories traversed
	DirsIgnored    int64         // Directories ignored
	SymlinksFound  int64         // Symbolic links found
	Errors         int64         // Errors encountered
	Duration       time.Duration // Total traversal time
	BytesTraversed int64         // Total bytes of files traversed
}

// Config holds configuration for the walker
type Config struct {
	// MaxDepth limits how many directory levels below the root are
	// entered; zero means no limit
	MaxDepth       int
	FollowSymlinks bool
	HiddenFiles    bool
	BufferSize     int
	Filters        *Filters
	IgnoreRules    *IgnoreManager
	Context        context.Context
}

func DefaultConfig() *Config {
	return &Config{
		BufferSize: 1000,
		Context:    context.Background(),
	}
}

// Walker traverses directories and streams matching source files
type Walker struct {
	config *Config
	stats  *Stats
	mu     sync.RWMutex
}

func New(config *Config) (*Walker, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	if config.Context == nil {
		config.Context = context.Background()
	}
	if config.Filters == nil {
		config.Filters = NewFilters(nil)
	}
	if config.IgnoreRules == nil {
		ignoreManager, err := NewIgnoreManager()
		if err != nil {
			return nil, fmt.Errorf("failed to create ignore manager: %w", err)
		}
		config.IgnoreRules = ignoreManager
	}
	config.Filters.SetAllowHidden(config.HiddenFiles)

	return &Walker{
		config: config,
		stats:  &Stats{},
	}, nil
}

// Filters returns the walker's file filters
func (w *Walker) Filters() *Filters {
	return w.config.Filters
}

// Walk streams the files under root. A root that is itself a file is
// emitted as an explicit result without pattern or language filtering.
func (w *Walker) Walk(root string) (<-chan Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	rootInfo, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root path: %w", err)
	}

	if rootInfo.IsDir() {
		if err := w.config.IgnoreRules.LoadFromPath(absRoot); err != nil {
			return nil, fmt.Errorf("failed to load ignore rules: %w", err)
		}
	}

	ctx := w.config.Context
	results := make(chan Result, w.config.BufferSize)
	start := time.Now()

	go func() {
		defer func() {
			w.mu.Lock()
			w.stats.Duration += time.Since(start)
			w.mu.Unlock()
			close(results)
		}()

		if !rootInfo.IsDir() {
			w.recordFile(rootInfo.Size())
			select {
			case results <- Result{
				Path:     absRoot,
				RelPath:  filepath.Base(absRoot),
				Language: w.config.Filters.Language(absRoot),
				Info:     rootInfo,
				Explicit: true,
			}:
			case <-ctx.Done():
			}
			return
		}

		send := func(r Result) error {
			select {
			case results <- r:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		_ = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				w.recordError()
				return send(Result{Path: path, Error: err})
			}

			relPath, _ := filepath.Rel(absRoot, path)
			if relPath == "." {
				return nil
			}

			depth := strings.Count(relPath, string(filepath.Separator))
			if w.config.MaxDepth > 0 && depth >= w.config.MaxDepth && d.IsDir() {
				return filepath.SkipDir
			}

			if !w.config.HiddenFiles && isHiddenFile(d.Name()) {
				w.recordFiltered()
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			isSymlink := d.Type()&fs.ModeSymlink != 0
			if isSymlink {
				w.recordSymlink()
				if !w.config.FollowSymlinks {
					return nil
				}
			}

			// symlinked directories are not descended into
			info, err := os.Stat(path)
			if err != nil {
				w.recordError()
				return send(Result{Path: path, RelPath: relPath, Error: err})
			}

			if d.IsDir() {
				if w.config.IgnoreRules.ShouldIgnore(relPath, true) || w.config.Filters.ExcludesDir(relPath) {
					w.recordDirIgnored()
					return filepath.SkipDir
				}
				w.recordDirTraversed()
				if err := w.config.IgnoreRules.LoadDir(path, relPath); err != nil {
					w.recordError()
					return send(Result{Path: path, RelPath: relPath, Error: err})
				}
				return nil
			}
			if info.IsDir() {
				return nil
			}

			if w.config.IgnoreRules.ShouldIgnore(relPath, false) {
				w.recordFiltered()
				return nil
			}
			lang, ok := w.config.Filters.ShouldInclude(path, relPath, info)
			if !ok {
				w.recordFiltered()
				return nil
			}

			w.recordFile(info.Size())
			return send(Result{
				Path:      path,
				RelPath:   relPath,
				Language:  lang,
				Info:      info,
				IsSymlink: isSymlink,
			})
		})
	}()

	return results, nil
}

// Files walks every root and returns the discovered files sorted by path.
// Traversal errors are returned joined with the files found.
func (w *Walker) Files(roots ...string) ([]Result, error) {
	var (
		files []Result
		errs  []string
	)
	for _, root := range roots {
		results, err := w.Walk(root)
		if err != nil {
			return nil, err
		}
		for result := range results {
			if result.Error != nil {
				errs = append(errs, result.Error.Error())
				continue
			}
			files = append(files, result)
		}
	}
	if err := w.config.Context.Err(); err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	if len(errs) > 0 {
		return files, fmt.Errorf("walk errors: %s", strings.Join(errs, "; "))
	}
	return files, nil
}

func (w *Walker) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return *w.stats
}

func (w *Walker) recordFile(size int64) {
	w.mu.Lock()
	w.stats.FilesFound++
	w.stats.BytesTraversed += size
	w.mu.Unlock()
}

func (w *Walker) recordFiltered() {
	w.mu.Lock()
	w.stats.FilesFiltered++
	w.mu.Unlock()
}

func (w *Walker) recordDirTraversed() {
	w.mu.Lock()
	w.stats.DirsTraversed++
	w.mu.Unlock()
}

func (w *Walker) recordDirIgnored() {
	w.mu.Lock()
	w.stats.DirsIgnored++
	w.mu.Unlock()
}

func (w *Walker) recordSymlink() {
	w.mu.Lock()
	w.stats.SymlinksFound++
	w.mu.Unlock()
}

func (w *Walker) recordError() {
	w.mu.Lock()
	w.stats.Errors++
	w.mu.Unlock()
}

// WalkSimple returns the source files under root with default settings
func WalkSimple(root string) ([]Result, error) {
	walker, err := New(DefaultConfig())
	if err != nil {
		return nil, err
	}
	return walker.Files(root)
}
