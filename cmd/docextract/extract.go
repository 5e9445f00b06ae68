package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/73ai/docextract/internal/collect"
	"github.com/73ai/docextract/internal/metrics"
	"github.com/73ai/docextract/internal/output"
	"github.com/73ai/docextract/internal/parser"
	"github.com/73ai/docextract/internal/walker"
)

// stdinPath is the path argument that reads source from standard input
const stdinPath = "-"

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	paths := args
	if len(paths) == 0 {
		paths = []string{"."}
	}

	m := metrics.New()
	progress := newProgressBar(config.Progress, "Extracting")
	collector, err := newCollector(ctx, config, m, progress.Callback())
	if err != nil {
		return err
	}

	files, err := collectPaths(ctx, collector, paths)
	progress.Finish()
	if err != nil {
		return err
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

	registry := collector.Walker().Filters().Registry()
	manager := output.NewOutputManager(ctx, formatter)
	for _, f := range files {
		if err := manager.ProcessFile(toFileResult(f, registry, config.ResolveVisibility)); err != nil {
			return fmt.Errorf("failed to write results: %w", err)
		}
	}

	if config.Summary {
		s := collect.Summarize(files)
		err := manager.ProcessSummary(output.Summary{
			Files:        s.Files,
			Failed:       s.Failed,
			Declarations: s.Declarations,
			Documented:   s.Documented,
			Warnings:     s.Warnings,
			Elapsed:      output.NewDuration(time.Since(start)),
		})
		if err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}
	if err := manager.Close(); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	if config.MetricsFile != "" {
		if err := m.WriteTextfile(config.MetricsFile); err != nil {
			return err
		}
	}
	return nil
}

// collectPaths extracts the given paths in order. Standard input may be
// given once among them.
func collectPaths(ctx context.Context, collector *collect.Collector, paths []string) ([]collect.File, error) {
	var roots []string
	var stdin *collect.File

	for _, path := range paths {
		if path != stdinPath {
			roots = append(roots, path)
			continue
		}
		if stdin != nil {
			return nil, errors.New("standard input can only be read once")
		}
		if config.Lang == "" {
			return nil, errors.New("--lang is required when reading standard input")
		}
		source, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read standard input: %w", err)
		}
		f := collector.ExtractSource("<stdin>", string(source), config.Lang)
		stdin = &f
	}

	var files []collect.File
	if stdin != nil {
		files = append(files, *stdin)
	}
	if len(roots) > 0 {
		collected, err := collector.Collect(ctx, roots...)
		if err != nil {
			return nil, err
		}
		files = append(files, collected...)
	}
	return files, nil
}

// newRegistry returns the built-in grammars plus those loaded from
// --grammars files
func newRegistry(cfg *Config) (*parser.LanguageRegistry, error) {
	if len(cfg.Grammars) == 0 {
		return parser.DefaultRegistry(), nil
	}

	var extra []*parser.LanguageGrammar
	for _, path := range cfg.Grammars {
		grammars, err := parser.LoadGrammarFile(path)
		if err != nil {
			return nil, err
		}
		slog.Debug("loaded grammars", "path", path, "count", len(grammars))
		extra = append(extra, grammars...)
	}
	return parser.NewLanguageRegistry(extra...)
}

// newWalker applies the file selection settings
func newWalker(ctx context.Context, cfg *Config, registry *parser.LanguageRegistry) (*walker.Walker, error) {
	filters := walker.NewFilters(registry)
	if err := filters.SetPatterns(cfg.Include, cfg.Exclude); err != nil {
		return nil, err
	}
	if cfg.MaxFileSize > 0 {
		filters.SetMaxSize(cfg.MaxFileSize)
	}

	ignores, err := walker.NewIgnoreManager()
	if err != nil {
		return nil, err
	}
	ignores.SetEnabled(!cfg.NoIgnore)
	ignores.SetDefaults(true)
	ignores.SetGlobal(true)

	return walker.New(&walker.Config{
		MaxDepth:       cfg.MaxDepth,
		FollowSymlinks: cfg.FollowSymlinks,
		HiddenFiles:    cfg.Hidden,
		Filters:        filters,
		IgnoreRules:    ignores,
		Context:        ctx,
	})
}

// newCollector wires the registry, extractor and walker for a run
func newCollector(ctx context.Context, cfg *Config, m *metrics.Metrics, progress func(done, total int, path string)) (*collect.Collector, error) {
	registry, err := newRegistry(cfg)
	if err != nil {
		return nil, err
	}
	w, err := newWalker(ctx, cfg, registry)
	if err != nil {
		return nil, err
	}

	extractor := parser.NewExtractor(registry, parser.Options{
		DocOnly:               cfg.DocOnly,
		AttachAfterStatements: cfg.Relaxed,
	})
	return collect.New(w, collect.Options{
		Workers:   cfg.Workers,
		Language:  cfg.Lang,
		Extractor: extractor,
		Logger:    slog.Default(),
		Metrics:   m,
		Progress:  progress,
	})
}
