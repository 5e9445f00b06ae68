package output

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/73ai/docextract/internal/parser"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON     OutputFormat = "json"
	FormatJSONL    OutputFormat = "jsonl"
	FormatYAML     OutputFormat = "yaml"
	FormatMarkdown OutputFormat = "markdown"
	FormatText     OutputFormat = "text"
)

// Formats lists every supported format
var Formats = []OutputFormat{FormatJSON, FormatJSONL, FormatYAML, FormatMarkdown, FormatText}

// ParseFormat resolves a format name. "md" and "yml" are accepted aliases.
func ParseFormat(name string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "jsonl", "ndjson":
		return FormatJSONL, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown output format %q (want one of %s)", name, formatNames())
}

func formatNames() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// View selects which declarations are rendered
type View string

const (
	ViewAll          View = "all"
	ViewDocumented   View = "documented"
	ViewUndocumented View = "undocumented"
)

// FileResult is the extraction result of one file as handed to a formatter
type FileResult struct {
	Path     string
	Language string
	FileDoc  *parser.FileDoc
	Bindings []parser.DocBinding
	Warnings []parser.Warning
	Error    string
}

// Summary contains overall extraction statistics
type Summary struct {
	Files        int      `json:"files" yaml:"files"`
	Failed       int      `json:"failed" yaml:"failed"`
	Declarations int      `json:"declarations" yaml:"declarations"`
	Documented   int      `json:"documented" yaml:"documented"`
	Warnings     int      `json:"warnings" yaml:"warnings"`
	Elapsed      Duration `json:"elapsed" yaml:"elapsed"`
}

// Coverage is the fraction of declarations that are documented
func (s Summary) Coverage() float64 {
	if s.Declarations == 0 {
		return 0
	}
	return float64(s.Documented) / float64(s.Declarations)
}

// Duration represents a time duration in a machine and human readable form
type Duration struct {
	Secs  int64  `json:"secs" yaml:"secs"`
	Nanos int64  `json:"nanos" yaml:"nanos"`
	Human string `json:"human" yaml:"human"`
}

// NewDuration creates a Duration from time.Duration
func NewDuration(d time.Duration) Duration {
	nanos := d.Nanoseconds()
	secs := nanos / 1e9
	remainingNanos := nanos % 1e9

	return Duration{
		Secs:  secs,
		Nanos: remainingNanos,
		Human: d.String(),
	}
}

// FormatterConfig contains configuration for output formatting
type FormatterConfig struct {
	Format OutputFormat
	View   View

	// ShowColors enables ANSI colors in text output
	ShowColors bool

	// ShowWarnings renders per-file warnings
	ShowWarnings bool

	// ShowSignatures renders the declaration line in text and markdown
	ShowSignatures bool

	// SkipEmpty omits files with no declarations left after the view is applied
	SkipEmpty bool
}

// Formatter defines the interface for output formatting
type Formatter interface {
	// FormatFile renders the result of one file
	FormatFile(result FileResult) error

	// FormatSummary renders overall statistics
	FormatSummary(summary Summary) error

	// Flush any buffered output
	Flush() error

	// Close the formatter
	Close() error
}

// FormatterFactory creates formatters based on configuration
type FormatterFactory struct {
	writer io.Writer
	config FormatterConfig
}

// NewFormatterFactory creates a new formatter factory
func NewFormatterFactory(writer io.Writer, config FormatterConfig) *FormatterFactory {
	if config.View == "" {
		config.View = ViewAll
	}
	return &FormatterFactory{
		writer: writer,
		config: config,
	}
}

// CreateFormatter creates a formatter based on the configuration
func (f *FormatterFactory) CreateFormatter() (Formatter, error) {
	switch f.config.View {
	case ViewAll, ViewDocumented, ViewUndocumented:
	default:
		return nil, fmt.Errorf("unknown view %q", f.config.View)
	}

	switch f.config.Format {
	case FormatJSON, "":
		return NewJSONFormatter(f.writer, f.config), nil
	case FormatJSONL:
		return NewJSONLFormatter(f.writer, f.config), nil
	case FormatYAML:
		return NewYAMLFormatter(f.writer, f.config), nil
	case FormatMarkdown:
		return NewMarkdownFormatter(f.writer, f.config), nil
	case FormatText:
		return NewTextFormatter(f.writer, f.config), nil
	}
	return nil, fmt.Errorf("unknown output format %q (want one of %s)", f.config.Format, formatNames())
}

// NewFormatter is shorthand for NewFormatterFactory(writer, config).CreateFormatter()
func NewFormatter(writer io.Writer, config FormatterConfig) (Formatter, error) {
	return NewFormatterFactory(writer, config).CreateFormatter()
}

// filterBindings applies the configured view
func (c FormatterConfig) filterBindings(bindings []parser.DocBinding) []parser.DocBinding {
	if c.View == ViewAll || c.View == "" {
		return bindings
	}
	out := make([]parser.DocBinding, 0, len(bindings))
	for _, b := range bindings {
		if b.Documented() == (c.View == ViewDocumented) {
			out = append(out, b)
		}
	}
	return out
}

// skip reports whether a file renders nothing under the configured view
func (c FormatterConfig) skip(result FileResult, bindings []parser.DocBinding) bool {
	return c.SkipEmpty && len(bindings) == 0 && result.Error == ""
}

// SortResults orders results by path
func SortResults(results []FileResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})
}

// OutputManager manages the overall output process
type OutputManager struct {
	formatter Formatter
	ctx       context.Context
}

// NewOutputManager creates a new output manager
func NewOutputManager(ctx context.Context, formatter Formatter) *OutputManager {
	return &OutputManager{
		formatter: formatter,
		ctx:       ctx,
	}
}

// ProcessFile processes a single file result through the formatter
func (om *OutputManager) ProcessFile(result FileResult) error {
	select {
	case <-om.ctx.Done():
		return om.ctx.Err()
	default:
		return om.formatter.FormatFile(result)
	}
}

// ProcessSummary processes the final summary
func (om *OutputManager) ProcessSummary(summary Summary) error {
	select {
	case <-om.ctx.Done():
		return om.ctx.Err()
	default:
		return om.formatter.FormatSummary(summary)
	}
}

// Close closes the output manager
func (om *OutputManager) Close() error {
	return om.formatter.Close()
}
