package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/73ai/docextract/internal/output"
	"github.com/73ai/docextract/internal/parser"
	"github.com/73ai/docextract/internal/search"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the documentation index",
	Long: `Search the declarations stored in the index. Every filter is optional and
filters combine with AND. Name and parent patterns are case-insensitive globs;
a name without glob characters uses the name index directly.

EXAMPLES:
    docextract query --name 'Parse*' --kind function
    docextract query --undocumented --visibility public --resolve-visibility
    docextract query --doc-pattern 'deprecated' --path 'src/**' --format text
    docextract query --language python --parent Config --limit 20`,
	RunE: runQuery,
}

var queryOpts struct {
	name         string
	parent       string
	path         string
	kinds        []string
	visibilities []string
	languages    []string
	docPattern   string
	limit        int
	timeout      time.Duration
}

func init() {
	rootCmd.AddCommand(queryCmd)

	fs := queryCmd.Flags()
	fs.StringVar(&queryOpts.name, "name", "", "Declaration name glob")
	fs.StringVar(&queryOpts.parent, "parent", "", "Enclosing container name glob")
	fs.StringVar(&queryOpts.path, "path", "", "File path glob (supports **)")
	fs.StringSliceVar(&queryOpts.kinds, "kind", nil, "Declaration kinds (function, method, class, ...)")
	fs.StringSliceVar(&queryOpts.visibilities, "visibility", nil, "Visibilities (public, private, internal, exported, unspecified)")
	fs.StringSliceVar(&queryOpts.languages, "language", nil, "Languages of the indexed files")
	fs.StringVar(&queryOpts.docPattern, "doc-pattern", "", "Regular expression matched against documentation")
	fs.IntVar(&queryOpts.limit, "limit", 0, "Maximum number of declarations (0 = no limit)")
	fs.DurationVar(&queryOpts.timeout, "timeout", 30*time.Second, "Abort the search after this long")
	addOutputFlags(fs)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	q := search.Query{
		Name:              queryOpts.name,
		Parent:            queryOpts.parent,
		Path:              queryOpts.path,
		Languages:         queryOpts.languages,
		DocPattern:        queryOpts.docPattern,
		ResolveVisibility: config.ResolveVisibility,
		Limit:             queryOpts.limit,
	}
	for _, k := range queryOpts.kinds {
		q.Kinds = append(q.Kinds, parser.DeclarationKind(strings.ToLower(k)))
	}
	for _, v := range queryOpts.visibilities {
		q.Visibilities = append(q.Visibilities, parser.Visibility(strings.ToLower(v)))
	}
	switch {
	case config.Undocumented:
		q.Doc = search.DocUndocumented
	case config.Documented:
		q.Doc = search.DocDocumented
	}

	registry, err := newRegistry(config)
	if err != nil {
		return err
	}

	store, err := openIndex(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	engine := search.NewEngine(store, search.EngineOptions{
		Registry: registry,
		Timeout:  queryOpts.timeout,
		Logger:   slog.Default(),
	})
	matches, err := engine.Search(ctx, q)
	if err != nil {
		return err
	}
	stats := engine.Stats()
	if stats.Truncated {
		slog.Warn("results truncated", "limit", q.Limit, "total", stats.TotalMatches)
	}

	w, terminal, err := openOutput(config.Output)
	if err != nil {
		return err
	}
	defer w.Close()

	formatterConfig, err := newFormatterConfig(config, terminal)
	if err != nil {
		return err
	}
	formatter, err := output.NewFormatter(w, formatterConfig)
	if err != nil {
		return err
	}

	manager := output.NewOutputManager(ctx, formatter)
	results := groupMatches(matches)
	for _, result := range results {
		if err := manager.ProcessFile(result); err != nil {
			return fmt.Errorf("failed to write results: %w", err)
		}
	}

	if config.Summary {
		summary := output.Summary{
			Files:   len(results),
			Elapsed: output.NewDuration(time.Since(start)),
		}
		for _, m := range matches {
			summary.Declarations++
			if m.Binding.Documented() {
				summary.Documented++
			}
		}
		if err := manager.ProcessSummary(summary); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}
	return manager.Close()
}

// groupMatches collects matches, which arrive sorted by path and line,
// into one result per file
func groupMatches(matches []search.Match) []output.FileResult {
	var results []output.FileResult
	for _, m := range matches {
		if n := len(results); n == 0 || results[n-1].Path != m.Path {
			results = append(results, output.FileResult{Path: m.Path, Language: m.Language})
		}
		last := &results[len(results)-1]
		last.Bindings = append(last.Bindings, m.Binding)
	}
	return results
}
