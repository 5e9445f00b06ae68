// Package collect extracts documentation from many files in parallel
package collect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/73ai/docextract/internal/metrics"
	"github.com/73ai/docextract/internal/parser"
	"github.com/73ai/docextract/internal/walker"
)

// File is the extraction report for one source file. Error is set when
// the file could not be read or has no grammar; the other files of a
// batch are unaffected.
type File struct {
	Path     string              `json:"path" yaml:"path"`
	Language string              `json:"language" yaml:"language"`
	FileDoc  *parser.FileDoc     `json:"file_doc,omitempty" yaml:"file_doc,omitempty"`
	Bindings []parser.DocBinding `json:"bindings" yaml:"bindings"`
	Warnings []parser.Warning    `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Error    string              `json:"error,omitempty" yaml:"error,omitempty"`

	Hash    string    `json:"-" yaml:"-"`
	Size    int64     `json:"-" yaml:"-"`
	ModTime time.Time `json:"-" yaml:"-"`
}

// Failed reports whether the file could not be extracted
func (f *File) Failed() bool {
	return f.Error != ""
}

// Options configures a Collector
type Options struct {
	// Workers is the number of files extracted concurrently
	Workers int
	// Language forces a language tag for every file
	Language string
	// Extractor defaults to the built-in grammars with default options
	Extractor *parser.Extractor
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	// Progress is called after each file with the number of files done
	Progress func(done, total int, path string)
}

// Collector walks roots and extracts every discovered file
type Collector struct {
	walker    *walker.Walker
	extractor *parser.Extractor
	opts      Options
	logger    *slog.Logger
}

// New creates a collector. A nil walker uses the default walk settings
// over the extractor's registry.
func New(w *walker.Walker, opts Options) (*Collector, error) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Extractor == nil {
		opts.Extractor = parser.NewExtractor(nil, parser.Options{})
	}
	if opts.Language != "" {
		if _, err := opts.Extractor.Registry().Lookup(opts.Language); err != nil {
			return nil, err
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if w == nil {
		var err error
		w, err = walker.New(&walker.Config{Filters: walker.NewFilters(opts.Extractor.Registry())})
		if err != nil {
			return nil, err
		}
	}

	return &Collector{
		walker:    w,
		extractor: opts.Extractor,
		opts:      opts,
		logger:    logger,
	}, nil
}

// Discover walks roots and returns the files to extract, sorted by path
// and without duplicates. Traversal errors are logged and skipped.
func (c *Collector) Discover(ctx context.Context, roots ...string) ([]walker.Result, error) {
	seen := make(map[string]bool)
	var found []walker.Result

	for _, root := range roots {
		results, err := c.walker.Walk(root)
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root, err)
		}
		for r := range results {
			if r.Error != nil {
				c.logger.Warn("skipping unreadable path", "path", r.Path, "error", r.Error)
				continue
			}
			if !seen[r.Path] {
				seen[r.Path] = true
				found = append(found, r)
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
	return found, nil
}

// Collect extracts every file under roots. The result is sorted by path.
func (c *Collector) Collect(ctx context.Context, roots ...string) ([]File, error) {
	found, err := c.Discover(ctx, roots...)
	if err != nil {
		return nil, err
	}
	return c.ExtractAll(ctx, found)
}

// ExtractAll extracts the given files with a pool of workers. Per-file
// failures are reported in File.Error; only cancellation fails the batch.
func (c *Collector) ExtractAll(ctx context.Context, found []walker.Result) ([]File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files := make([]File, len(found))
	work := make(chan int, c.opts.Workers)
	var done int64
	var progressMu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < c.opts.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case idx, ok := <-work:
					if !ok {
						return nil
					}
					r := found[idx]
					files[idx] = c.ExtractFile(r.Path, r.Language)

					n := atomic.AddInt64(&done, 1)
					if c.opts.Progress != nil {
						progressMu.Lock()
						c.opts.Progress(int(n), len(found), r.Path)
						progressMu.Unlock()
					}
				case <-gCtx.Done():
					return gCtx.Err()
				}
			}
		})
	}

	g.Go(func() error {
		defer close(work)
		for i := range found {
			select {
			case work <- i:
			case <-gCtx.Done():
				return gCtx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// ExtractFile reads and extracts one file. language is the detected
// language; the collector's forced language takes precedence.
func (c *Collector) ExtractFile(path, language string) File {
	file := File{Path: path, Language: language}

	info, err := os.Stat(path)
	if err != nil {
		return c.fail(file, fmt.Errorf("failed to stat file: %w", err))
	}
	file.Size = info.Size()
	file.ModTime = info.ModTime()

	content, err := os.ReadFile(path)
	if err != nil {
		return c.fail(file, fmt.Errorf("failed to read file: %w", err))
	}
	file.Hash = HashContent(content)

	return c.extract(file, string(content))
}

// ExtractSource extracts in-memory source, such as standard input
func (c *Collector) ExtractSource(name, source, language string) File {
	file := File{
		Path:     name,
		Language: language,
		Hash:     HashContent([]byte(source)),
		Size:     int64(len(source)),
	}
	return c.extract(file, source)
}

// Language returns the language detected for path, or the forced language
func (c *Collector) Language(path string) string {
	if c.opts.Language != "" {
		return c.opts.Language
	}
	return c.walker.Filters().Language(path)
}

// Walker returns the walker used for discovery
func (c *Collector) Walker() *walker.Walker {
	return c.walker
}

// HashContent returns the hex SHA-256 of file content
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func (c *Collector) extract(file File, source string) File {
	tag := file.Language
	if c.opts.Language != "" {
		tag = c.opts.Language
	}
	if tag == "" {
		return c.fail(file, parser.NewUnsupportedLanguageError(""))
	}

	start := time.Now()
	res, err := c.extractor.Extract(source, tag)
	if err != nil {
		return c.fail(file, err)
	}
	c.opts.Metrics.ObserveResult(res, time.Since(start))

	file.Language = res.Language
	file.FileDoc = res.FileDoc
	file.Bindings = res.Bindings
	file.Warnings = res.Warnings
	for _, w := range res.Warnings {
		c.logger.Warn("extraction warning",
			"path", file.Path,
			"language", res.Language,
			"line", w.Line,
			"code", w.Code,
			"error", w.Message)
	}
	c.logger.Debug("extracted file",
		"path", file.Path,
		"language", res.Language,
		"declarations", len(res.Bindings),
		"documented", res.Documented())
	return file
}

func (c *Collector) fail(file File, err error) File {
	file.Error = err.Error()
	c.opts.Metrics.ObserveFailure(file.Language)
	c.logger.Warn("failed to extract file", "path", file.Path, "language", file.Language, "error", err)
	return file
}

// Summary aggregates a batch of extraction reports
type Summary struct {
	Files        int `json:"files" yaml:"files"`
	Failed       int `json:"failed" yaml:"failed"`
	Declarations int `json:"declarations" yaml:"declarations"`
	Documented   int `json:"documented" yaml:"documented"`
	Warnings     int `json:"warnings" yaml:"warnings"`
}

// Coverage is the fraction of declarations that are documented
func (s Summary) Coverage() float64 {
	if s.Declarations == 0 {
		return 0
	}
	return float64(s.Documented) / float64(s.Declarations)
}

// Summarize counts files, declarations and documentation over a batch
func Summarize(files []File) Summary {
	var s Summary
	for i := range files {
		f := &files[i]
		s.Files++
		if f.Failed() {
			s.Failed++
			continue
		}
		s.Warnings += len(f.Warnings)
		for _, b := range f.Bindings {
			s.Declarations++
			if b.Documented() {
				s.Documented++
			}
		}
	}
	return s
}
