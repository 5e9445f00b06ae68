package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/73ai/docextract/internal/index"
	"github.com/73ai/docextract/internal/parser"
)

// newBenchmarkEngine indexes files*decls synthetic declarations
func newBenchmarkEngine(b *testing.B, files, decls int) *Engine {
	b.Helper()
	ctx := context.Background()
	store := newTestStore(b)

	kinds := []parser.DeclarationKind{parser.KindFunction, parser.KindClass, parser.KindMethod, parser.KindConstant}
	for i := 0; i < files; i++ {
		record := index.FileRecord{
			Path:     fmt.Sprintf("/bench/pkg%02d/file%04d.go", i%20, i),
			Language: "go",
		}
		for j := 0; j < decls; j++ {
			var doc []string
			if j%3 != 0 {
				doc = []string{fmt.Sprintf("Handler%d processes request batch %d.", j, i)}
			}
			record.Bindings = append(record.Bindings,
				decl(fmt.Sprintf("Handler%d", j), kinds[j%len(kinds)], parser.VisibilityExported, "", j*10+5, doc...))
		}
		require.NoError(b, store.PutFile(ctx, record))
	}

	return NewEngine(store, EngineOptions{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func BenchmarkEngineSearch(b *testing.B) {
	engine := newBenchmarkEngine(b, 200, 20)
	ctx := context.Background()

	queries := []struct {
		name  string
		query Query
	}{
		{"ExactName", Query{Name: "Handler7"}},
		{"NameGlob", Query{Name: "handler1*"}},
		{"Undocumented", Query{Doc: DocUndocumented}},
		{"DocPattern", Query{DocPattern: `batch 1\d\.`}},
		{"KindAndPath", Query{Kinds: []parser.DeclarationKind{parser.KindClass}, Path: "/bench/pkg0[0-4]/**"}},
		{"Resolved", Query{Visibilities: []parser.Visibility{parser.VisibilityExported}, ResolveVisibility: true}},
	}

	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, err := engine.Search(ctx, q.query)
				require.NoError(b, err)
			}
		})
	}
}

func BenchmarkCompile(b *testing.B) {
	q := Query{
		Name:         "get*",
		Parent:       "{Server,Client}",
		DocPattern:   `(?i)deprecated`,
		Kinds:        []parser.DeclarationKind{parser.KindMethod},
		Visibilities: []parser.Visibility{parser.VisibilityPublic},
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		require.NoError(b, Compile(q))
	}
}
