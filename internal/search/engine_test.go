package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp/syntax"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/73ai/docextract/internal/index"
	"github.com/73ai/docextract/internal/parser"
)

func newTestStore(t testing.TB) *index.Store {
	t.Helper()
	opts := index.DefaultBadgerOptions("")
	opts.InMemory = true

	storage, err := index.NewBadgerStorage(opts)
	require.NoError(t, err, "Failed to create storage")
	store, err := index.NewStore(context.Background(), storage)
	require.NoError(t, err, "Failed to create store")
	t.Cleanup(func() { store.Close() })
	return store
}

func decl(name string, kind parser.DeclarationKind, vis parser.Visibility, parent string, line int, doc ...string) parser.DocBinding {
	b := parser.DocBinding{
		Declaration: parser.DeclarationSite{
			Name:       name,
			Kind:       kind,
			Visibility: vis,
			Line:       line,
			Parent:     parent,
		},
	}
	if doc != nil {
		b.Doc = doc
		b.Source = &parser.LineRange{Start: line - len(doc), End: line - 1}
	}
	return b
}

// newTestEngine indexes a small multi-language project
func newTestEngine(t testing.TB) *Engine {
	t.Helper()
	ctx := context.Background()
	store := newTestStore(t)

	records := []index.FileRecord{
		{
			Path:     "/src/server/server.go",
			Language: "go",
			Bindings: []parser.DocBinding{
				decl("Server", parser.KindStruct, parser.VisibilityExported, "", 5, "Server handles requests."),
				decl("Start", parser.KindMethod, parser.VisibilityExported, "Server", 10, "Start runs the server.", "It blocks until ctx is done."),
				decl("handle", parser.KindMethod, parser.VisibilityInternal, "Server", 20),
			},
		},
		{
			Path:     "/src/lib/util.py",
			Language: "python",
			Bindings: []parser.DocBinding{
				decl("Parser", parser.KindClass, parser.VisibilityUnspecified, "", 1, "Parses config files."),
				decl("_scan", parser.KindMethod, parser.VisibilityUnspecified, "Parser", 4),
				decl("start", parser.KindFunction, parser.VisibilityUnspecified, "", 12, ""),
			},
		},
		{
			Path:     "/src/web/Shape.java",
			Language: "java",
			Bindings: []parser.DocBinding{
				decl("Shape", parser.KindClass, parser.VisibilityPublic, "", 3, "A drawable shape."),
				decl("area", parser.KindMethod, parser.VisibilityUnspecified, "Shape", 8),
			},
		},
		{
			Path:  "/src/notes.txt",
			Error: "unsupported language",
		},
	}
	for _, record := range records {
		require.NoError(t, store.PutFile(ctx, record))
	}

	return NewEngine(store, EngineOptions{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func names(matches []Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Binding.Declaration.Name
	}
	return out
}

func TestEngineSearch(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		query     Query
		want      []string
		nameIndex bool
	}{
		{
			name:  "empty query returns everything in path order",
			query: Query{},
			want:  []string{"Parser", "_scan", "start", "Server", "Start", "handle", "Shape", "area"},
		},
		{
			name:      "exact name is case insensitive",
			query:     Query{Name: "start"},
			want:      []string{"start", "Start"},
			nameIndex: true,
		},
		{
			name:  "name glob",
			query: Query{Name: "s*"},
			want:  []string{"start", "Server", "Start", "Shape"},
		},
		{
			name:  "kind filter",
			query: Query{Kinds: []parser.DeclarationKind{parser.KindClass, parser.KindStruct}},
			want:  []string{"Parser", "Server", "Shape"},
		},
		{
			name:  "parent glob",
			query: Query{Parent: "server"},
			want:  []string{"Start", "handle"},
		},
		{
			name:  "language filter",
			query: Query{Languages: []string{"Java"}},
			want:  []string{"Shape", "area"},
		},
		{
			name:  "path glob",
			query: Query{Path: "/src/{lib,web}/*"},
			want:  []string{"Parser", "_scan", "start", "Shape", "area"},
		},
		{
			name:  "documented only",
			query: Query{Doc: DocDocumented},
			want:  []string{"Parser", "start", "Server", "Start", "Shape"},
		},
		{
			name:  "undocumented only",
			query: Query{Doc: DocUndocumented},
			want:  []string{"_scan", "handle", "area"},
		},
		{
			name:  "doc pattern spans joined lines",
			query: Query{DocPattern: `server\.\nIt blocks`},
			want:  []string{"Start"},
		},
		{
			name:  "raw visibility",
			query: Query{Visibilities: []parser.Visibility{parser.VisibilityUnspecified}},
			want:  []string{"Parser", "_scan", "start", "area"},
		},
		{
			name: "resolved visibility",
			query: Query{
				Visibilities:      []parser.Visibility{parser.VisibilityPrivate},
				ResolveVisibility: true,
			},
			want: []string{"_scan"},
		},
		{
			name:  "limit",
			query: Query{Limit: 2},
			want:  []string{"Parser", "_scan"},
		},
		{
			name:      "exact name combined with filters",
			query:     Query{Name: "Start", Languages: []string{"go"}},
			want:      []string{"Start"},
			nameIndex: true,
		},
		{
			name:      "unknown name",
			query:     Query{Name: "missing"},
			want:      []string{},
			nameIndex: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := engine.Search(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(matches))
			assert.Equal(t, tt.nameIndex, engine.Stats().UsedNameIndex)
		})
	}
}

func TestEngineMatchDetails(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	matches, err := engine.Search(ctx, Query{Name: "Start", Languages: []string{"go"}})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	m := matches[0]
	assert.Equal(t, "/src/server/server.go", m.Path)
	assert.Equal(t, "go", m.Language)
	assert.Equal(t, "Server", m.Binding.Declaration.Parent)
	assert.Len(t, m.Binding.Doc, 2)

	// a documented declaration with an empty comment keeps its empty doc
	matches, err = engine.Search(ctx, Query{Name: "start", Languages: []string{"python"}})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, []string{""}, matches[0].Binding.Doc)

	// resolution is reported in the match and never written back
	matches, err = engine.Search(ctx, Query{Name: "area", ResolveVisibility: true})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.NotEqual(t, parser.VisibilityUnspecified, matches[0].Binding.Declaration.Visibility)
	record, err := engine.Store().GetFile(ctx, "/src/web/Shape.java")
	require.NoError(t, err)
	assert.Equal(t, parser.VisibilityUnspecified, record.Bindings[1].Declaration.Visibility,
		"resolved visibility leaked into the index")

	stats := engine.Stats()
	assert.Equal(t, 1, stats.TotalMatches)
	assert.Equal(t, 1, stats.FilesScanned)
}

func TestEngineTruncation(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Search(context.Background(), Query{Doc: DocUndocumented, Limit: 1})
	require.NoError(t, err)
	stats := engine.Stats()
	assert.True(t, stats.Truncated)
	assert.Equal(t, 1, stats.TotalMatches)
}

func TestEngineInvalidQueries(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		query    Query
		sentinel error
	}{
		{"bad name glob", Query{Name: "[abc"}, ErrInvalidPattern},
		{"bad parent glob", Query{Parent: "{a,b"}, ErrInvalidPattern},
		{"bad path glob", Query{Path: "/src/[x"}, ErrInvalidPattern},
		{"bad regex", Query{DocPattern: "(unclosed"}, ErrInvalidRegex},
		{"unknown kind", Query{Kinds: []parser.DeclarationKind{"module"}}, ErrInvalidFilter},
		{"unknown visibility", Query{Visibilities: []parser.Visibility{"friend"}}, ErrInvalidFilter},
		{"unknown doc filter", Query{Doc: "sometimes"}, ErrInvalidFilter},
		{"negative limit", Query{Limit: -1}, ErrInvalidFilter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Search(ctx, tt.query)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.True(t, IsPatternError(err), "IsPatternError(%v)", err)
			var searchErr *SearchError
			require.ErrorAs(t, err, &searchErr)
			assert.Equal(t, "query_error", searchErr.Type)
		})
	}

	// the regexp compile error stays reachable
	err := Compile(Query{DocPattern: "(unclosed"})
	var syntaxErr *syntax.Error
	assert.ErrorAs(t, err, &syntaxErr)
}

func TestEngineEmptyIndex(t *testing.T) {
	engine := NewEngine(newTestStore(t), EngineOptions{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	_, err := engine.Search(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrIndexEmpty)
	assert.True(t, IsIndexError(err))
}

func TestEngineCancelled(t *testing.T) {
	engine := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.Search(ctx, Query{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineTimeout(t *testing.T) {
	engine := newTestEngine(t)
	engine.timeout = time.Nanosecond

	_, err := engine.Search(context.Background(), Query{})
	if err != nil {
		assert.True(t, IsTimeout(err), "expected a timeout error, got %v", err)
	}
}

func TestSearchError(t *testing.T) {
	err := NewRecordError("binding index out of range", "/src/a.go", 12)
	assert.EqualError(t, err, "[index_error] binding index out of range at /src/a.go:12 during reading index: index record is corrupted")
	assert.ErrorIs(t, err, ErrIndexCorrupt)

	summary := FormatErrorSummary([]error{
		NewQueryError(ErrInvalidRegex, "bad", nil),
		NewQueryError(ErrInvalidPattern, "bad", nil),
		errors.New("plain"),
	})
	assert.Equal(t, "query_error: 2\nother: 1", summary)
}
