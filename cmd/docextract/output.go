package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/73ai/docextract/internal/collect"
	"github.com/73ai/docextract/internal/output"
	"github.com/73ai/docextract/internal/parser"
)

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// openOutput returns where rendered results go: stdout, or the --output
// file created with its parent directories
func openOutput(path string) (io.WriteCloser, bool, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{os.Stdout}, isTerminal(os.Stdout), nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, false, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, false, nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newFormatterConfig maps the merged configuration onto formatter settings
func newFormatterConfig(cfg *Config, terminal bool) (output.FormatterConfig, error) {
	format, err := output.ParseFormat(cfg.Format)
	if err != nil {
		return output.FormatterConfig{}, err
	}

	view := output.ViewAll
	switch {
	case cfg.Undocumented:
		view = output.ViewUndocumented
	case cfg.Documented:
		view = output.ViewDocumented
	}

	var colors bool
	switch cfg.Color {
	case "always":
		colors = true
	case "auto":
		colors = terminal
	}

	return output.FormatterConfig{
		Format:         format,
		View:           view,
		ShowColors:     colors,
		ShowWarnings:   cfg.Warnings,
		ShowSignatures: cfg.Signatures,
		SkipEmpty:      view != output.ViewAll,
	}, nil
}

// toFileResult converts an extracted file into its rendered form. When
// resolve is set, unspecified visibilities take the language default.
func toFileResult(f collect.File, registry *parser.LanguageRegistry, resolve bool) output.FileResult {
	result := output.FileResult{
		Path:     f.Path,
		Language: f.Language,
		FileDoc:  f.FileDoc,
		Bindings: f.Bindings,
		Warnings: f.Warnings,
		Error:    f.Error,
	}
	if !resolve || f.Failed() {
		return result
	}

	g, err := registry.Lookup(f.Language)
	if err != nil {
		return result
	}
	resolved := make([]parser.DocBinding, len(f.Bindings))
	for i, b := range f.Bindings {
		b.Declaration.Visibility = parser.ResolveVisibility(g, b.Declaration)
		resolved[i] = b
	}
	result.Bindings = resolved
	return result
}

// progressBar draws extraction progress on stderr. It stays silent
// unless stderr is a terminal.
type progressBar struct {
	description string
	bar         *progressbar.ProgressBar
}

func newProgressBar(enabled bool, description string) *progressBar {
	if !enabled || !isTerminal(os.Stderr) {
		return nil
	}
	return &progressBar{description: description}
}

// Report is a collect.Options.Progress callback. Calls are serialized by
// the caller.
func (p *progressBar) Report(done, total int, _ string) {
	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowBytes(false),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("[cyan]"+p.description+"[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(os.Stderr)
			}),
		)
	}
	p.bar.Set(done)
}

// Callback returns the progress hook, or nil when the bar is disabled
func (p *progressBar) Callback() func(done, total int, path string) {
	if p == nil {
		return nil
	}
	return p.Report
}

// Finish clears an unfinished bar, for example after cancellation
func (p *progressBar) Finish() {
	if p == nil || p.bar == nil {
		return
	}
	p.bar.Exit()
}
