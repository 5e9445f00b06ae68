package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/73ai/docextract/internal/index"
	"github.com/73ai/docextract/internal/parser"
)

// DocFilter selects declarations by whether they carry documentation
type DocFilter string

const (
	DocAny          DocFilter = ""
	DocDocumented   DocFilter = "documented"
	DocUndocumented DocFilter = "undocumented"
)

// Query describes which indexed declarations to return. Empty fields match
// everything.
type Query struct {
	// Name is a glob over declaration names, matched case-insensitively.
	// A name without glob metacharacters is looked up in the name index.
	Name string `json:"name,omitempty"`

	// Parent is a glob over the enclosing container name
	Parent string `json:"parent,omitempty"`

	// Path is a doublestar glob over indexed file paths
	Path string `json:"path,omitempty"`

	Kinds        []parser.DeclarationKind `json:"kinds,omitempty"`
	Visibilities []parser.Visibility      `json:"visibilities,omitempty"`
	Languages    []string                 `json:"languages,omitempty"`
	Doc          DocFilter                `json:"doc,omitempty"`

	// DocPattern is a regular expression matched against the joined doc text
	DocPattern string `json:"doc_pattern,omitempty"`

	// ResolveVisibility applies the language default before filtering and
	// reports the resolved value in matches
	ResolveVisibility bool `json:"resolve_visibility,omitempty"`

	Limit int `json:"limit,omitempty"`
}

// Match is one declaration returned by a query
type Match struct {
	Path     string            `json:"path" yaml:"path"`
	Language string            `json:"language" yaml:"language"`
	Binding  parser.DocBinding `json:"binding" yaml:"binding"`
}

// SearchStats contains statistics about the last search
type SearchStats struct {
	FilesScanned        int           `json:"files_scanned"`
	DeclarationsScanned int           `json:"declarations_scanned"`
	TotalMatches        int           `json:"total_matches"`
	Truncated           bool          `json:"truncated"`
	UsedNameIndex       bool          `json:"used_name_index"`
	SearchDuration      time.Duration `json:"search_duration"`
}

// EngineOptions configures an Engine
type EngineOptions struct {
	// Registry resolves grammars for visibility defaults. Nil means the
	// default registry.
	Registry *parser.LanguageRegistry

	// Timeout bounds a single search. Zero means no timeout.
	Timeout time.Duration

	Logger *slog.Logger
}

// Engine answers queries over a doc index
type Engine struct {
	store      *index.Store
	registry   *parser.LanguageRegistry
	timeout    time.Duration
	logger     *slog.Logger
	stats      SearchStats
	statsMutex sync.RWMutex
}

// NewEngine creates a query engine over store
func NewEngine(store *index.Store, opts EngineOptions) *Engine {
	registry := opts.Registry
	if registry == nil {
		registry = parser.DefaultRegistry()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		registry: registry,
		timeout:  opts.Timeout,
		logger:   logger,
	}
}

// compiledQuery is a validated query ready for matching
type compiledQuery struct {
	Query
	name         string
	exactName    bool
	parent       string
	docRegex     *regexp.Regexp
	kinds        map[parser.DeclarationKind]bool
	visibilities map[parser.Visibility]bool
	languages    map[string]bool
}

// Compile validates q without running it
func Compile(q Query) error {
	_, err := compile(q)
	return err
}

func compile(q Query) (*compiledQuery, error) {
	cq := &compiledQuery{Query: q}

	if q.Name != "" {
		cq.name = strings.ToLower(q.Name)
		if !doublestar.ValidatePattern(cq.name) {
			return nil, NewQueryError(ErrInvalidPattern, fmt.Sprintf("bad name pattern %q", q.Name), nil)
		}
		cq.exactName = !hasMeta(cq.name)
	}
	if q.Parent != "" {
		cq.parent = strings.ToLower(q.Parent)
		if !doublestar.ValidatePattern(cq.parent) {
			return nil, NewQueryError(ErrInvalidPattern, fmt.Sprintf("bad parent pattern %q", q.Parent), nil)
		}
	}
	if q.Path != "" && !doublestar.ValidatePattern(q.Path) {
		return nil, NewQueryError(ErrInvalidPattern, fmt.Sprintf("bad path pattern %q", q.Path), nil)
	}

	if q.DocPattern != "" {
		re, err := regexp.Compile(q.DocPattern)
		if err != nil {
			return nil, NewQueryError(ErrInvalidRegex, fmt.Sprintf("bad doc pattern %q", q.DocPattern), err)
		}
		cq.docRegex = re
	}

	switch q.Doc {
	case DocAny, DocDocumented, DocUndocumented:
	default:
		return nil, NewQueryError(ErrInvalidFilter, fmt.Sprintf("unknown doc filter %q", q.Doc), nil)
	}
	if q.Limit < 0 {
		return nil, NewQueryError(ErrInvalidFilter, fmt.Sprintf("negative limit %d", q.Limit), nil)
	}

	if len(q.Kinds) > 0 {
		cq.kinds = make(map[parser.DeclarationKind]bool, len(q.Kinds))
		for _, kind := range q.Kinds {
			if !kind.Valid() {
				return nil, NewQueryError(ErrInvalidFilter, fmt.Sprintf("unknown kind %q", kind), nil)
			}
			cq.kinds[kind] = true
		}
	}
	if len(q.Visibilities) > 0 {
		cq.visibilities = make(map[parser.Visibility]bool, len(q.Visibilities))
		for _, vis := range q.Visibilities {
			if !vis.Valid() {
				return nil, NewQueryError(ErrInvalidFilter, fmt.Sprintf("unknown visibility %q", vis), nil)
			}
			cq.visibilities[vis] = true
		}
	}
	if len(q.Languages) > 0 {
		cq.languages = make(map[string]bool, len(q.Languages))
		for _, lang := range q.Languages {
			cq.languages[strings.ToLower(lang)] = true
		}
	}

	return cq, nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{\\")
}

// Search runs q against the index and returns matches ordered by path and line
func (e *Engine) Search(ctx context.Context, q Query) ([]Match, error) {
	startTime := time.Now()

	cq, err := compile(q)
	if err != nil {
		return nil, err
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var (
		matches []Match
		stats   SearchStats
	)
	if cq.exactName {
		stats.UsedNameIndex = true
		matches, err = e.searchNameIndex(ctx, cq, &stats)
	} else {
		matches, err = e.searchFiles(ctx, cq, &stats)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewSearchError("timeout", "search timeout exceeded", errors.Join(ErrSearchTimeout, err))
		}
		return nil, err
	}
	if len(matches) == 0 && stats.FilesScanned == 0 {
		if empty, err := e.indexEmpty(ctx); err == nil && empty {
			return nil, NewSearchError("index_error", "nothing has been indexed yet", ErrIndexEmpty)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Path != matches[j].Path {
			return matches[i].Path < matches[j].Path
		}
		return matches[i].Binding.Declaration.Line < matches[j].Binding.Declaration.Line
	})
	if cq.Limit > 0 && len(matches) > cq.Limit {
		matches = matches[:cq.Limit]
		stats.Truncated = true
	}

	stats.TotalMatches = len(matches)
	stats.SearchDuration = time.Since(startTime)

	e.statsMutex.Lock()
	e.stats = stats
	e.statsMutex.Unlock()

	e.logger.Debug("query finished",
		"name", q.Name,
		"matches", stats.TotalMatches,
		"files", stats.FilesScanned,
		"name_index", stats.UsedNameIndex,
		"duration", stats.SearchDuration)

	return matches, nil
}

// searchNameIndex resolves an exact name through the name index and only
// loads the records it points at
func (e *Engine) searchNameIndex(ctx context.Context, cq *compiledQuery, stats *SearchStats) ([]Match, error) {
	refs, err := e.store.LookupName(ctx, cq.name)
	if err != nil {
		return nil, fmt.Errorf("name lookup failed: %w", err)
	}

	var matches []Match
	records := make(map[string]*index.FileRecord)
	for _, ref := range refs {
		record, ok := records[ref.Path]
		if !ok {
			record, err = e.store.GetFile(ctx, ref.Path)
			if errors.Is(err, index.ErrKeyNotFound) {
				e.logger.Warn("name index points at a missing file", "path", ref.Path, "name", ref.Name)
				records[ref.Path] = nil
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", ref.Path, err)
			}
			records[ref.Path] = record
			stats.FilesScanned++
		}
		if record == nil {
			continue
		}
		if !cq.matchFile(record) {
			continue
		}

		if ref.Index < 0 || ref.Index >= len(record.Bindings) {
			e.logger.Warn("stale name index entry",
				"error", NewRecordError("binding index out of range", ref.Path, ref.Line))
			continue
		}
		stats.DeclarationsScanned++
		if m, ok := e.matchBinding(cq, record, record.Bindings[ref.Index]); ok {
			matches = append(matches, m)
		}
	}
	return matches, nil
}

// searchFiles scans every indexed file
func (e *Engine) searchFiles(ctx context.Context, cq *compiledQuery, stats *SearchStats) ([]Match, error) {
	var matches []Match
	err := e.store.EachFile(ctx, func(record index.FileRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.FilesScanned++
		if !cq.matchFile(&record) {
			return nil
		}
		for _, b := range record.Bindings {
			stats.DeclarationsScanned++
			if m, ok := e.matchBinding(cq, &record, b); ok {
				matches = append(matches, m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("index scan failed: %w", err)
	}
	return matches, nil
}

func (cq *compiledQuery) matchFile(record *index.FileRecord) bool {
	if record.Error != "" {
		return false
	}
	if cq.languages != nil && !cq.languages[record.Language] {
		return false
	}
	if cq.Path != "" {
		ok, _ := doublestar.PathMatch(cq.Path, record.Path)
		if !ok {
			return false
		}
	}
	return true
}

func (e *Engine) matchBinding(cq *compiledQuery, record *index.FileRecord, b parser.DocBinding) (Match, bool) {
	site := b.Declaration

	if cq.name != "" {
		if ok, _ := doublestar.Match(cq.name, strings.ToLower(site.Name)); !ok {
			return Match{}, false
		}
	}
	if cq.parent != "" {
		if ok, _ := doublestar.Match(cq.parent, strings.ToLower(site.Parent)); !ok {
			return Match{}, false
		}
	}
	if cq.kinds != nil && !cq.kinds[site.Kind] {
		return Match{}, false
	}

	switch cq.Doc {
	case DocDocumented:
		if !b.Documented() {
			return Match{}, false
		}
	case DocUndocumented:
		if b.Documented() {
			return Match{}, false
		}
	}
	if cq.docRegex != nil && (!b.Documented() || !cq.docRegex.MatchString(b.Text())) {
		return Match{}, false
	}

	if cq.ResolveVisibility {
		grammar, _ := e.registry.Lookup(record.Language)
		b.Declaration.Visibility = parser.ResolveVisibility(grammar, site)
	}
	if cq.visibilities != nil && !cq.visibilities[b.Declaration.Visibility] {
		return Match{}, false
	}

	return Match{Path: record.Path, Language: record.Language, Binding: b}, true
}

func (e *Engine) indexEmpty(ctx context.Context) (bool, error) {
	iter := e.store.Storage().Scan(ctx, []byte(index.PrefixFile), index.ScanOptions{KeysOnly: true, Limit: 1})
	defer iter.Close()
	found := iter.Next()
	return !found, iter.Error()
}

// Stats returns statistics of the last successful search
func (e *Engine) Stats() SearchStats {
	e.statsMutex.RLock()
	defer e.statsMutex.RUnlock()
	return e.stats
}

// Store returns the index the engine queries
func (e *Engine) Store() *index.Store {
	return e.store
}
