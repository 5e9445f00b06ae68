package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/73ai/docextract/internal/parser"
)

// ANSI color codes for output highlighting
const (
	Reset = "\033[0m"

	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"

	Bold = "\033[1m"
)

const undocumentedText = "(undocumented)"

// TextFormatter writes a compact human readable listing
type TextFormatter struct {
	writer *bufio.Writer
	config FormatterConfig
	files  int
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(writer io.Writer, config FormatterConfig) *TextFormatter {
	return &TextFormatter{
		writer: bufio.NewWriter(writer),
		config: config,
	}
}

// FormatFile writes one block per file:
//
//	path/to/file.go [go]
//	  12: method Server.Start [exported]
//	      Start runs the server.
func (f *TextFormatter) FormatFile(result FileResult) error {
	bindings := f.config.filterBindings(result.Bindings)
	if f.config.skip(result, bindings) {
		return nil
	}

	if f.files > 0 {
		f.writer.WriteString("\n")
	}
	f.files++

	if result.Error != "" {
		fmt.Fprintf(f.writer, "%s: %s\n", f.colorize(result.Path, Magenta), f.colorize("error: "+result.Error, Red))
		return nil
	}

	fmt.Fprintf(f.writer, "%s [%s]\n", f.colorize(result.Path, Magenta), result.Language)

	if result.FileDoc != nil && f.config.View != ViewUndocumented {
		fmt.Fprintf(f.writer, "  %s\n", f.colorize("file", Cyan))
		f.writeDoc(result.FileDoc.Doc, "      ")
	}

	for _, b := range bindings {
		f.writeBinding(b)
	}

	if f.config.ShowWarnings {
		for _, w := range result.Warnings {
			fmt.Fprintf(f.writer, "  %s\n", f.colorize("warning: "+w.Error(), Red))
		}
	}
	return nil
}

func (f *TextFormatter) writeBinding(b parser.DocBinding) {
	site := b.Declaration

	var line strings.Builder
	line.WriteString("  ")
	line.WriteString(f.colorize(strconv.Itoa(site.Line), Green))
	line.WriteString(": ")
	line.WriteString(string(site.Kind))
	line.WriteString(" ")
	line.WriteString(f.colorize(qualifiedName(site), Bold))
	line.WriteString(" [")
	line.WriteString(string(site.Visibility))
	line.WriteString("]\n")
	f.writer.WriteString(line.String())

	if f.config.ShowSignatures && site.Signature != "" {
		fmt.Fprintf(f.writer, "      %s\n", f.colorize(site.Signature, Blue))
	}

	if !b.Documented() {
		fmt.Fprintf(f.writer, "      %s\n", f.colorize(undocumentedText, Yellow))
		return
	}
	f.writeDoc(b.Doc, "      ")
}

func (f *TextFormatter) writeDoc(doc []string, indent string) {
	for _, line := range doc {
		if line == "" {
			f.writer.WriteString("\n")
			continue
		}
		f.writer.WriteString(indent)
		f.writer.WriteString(line)
		f.writer.WriteString("\n")
	}
}

// colorize applies color if colors are enabled
func (f *TextFormatter) colorize(text, color string) string {
	if !f.config.ShowColors {
		return text
	}
	return color + text + Reset
}

// FormatSummary writes a one line summary
func (f *TextFormatter) FormatSummary(summary Summary) error {
	if f.files > 0 {
		f.writer.WriteString("\n")
	}
	_, err := fmt.Fprintf(f.writer, "%d files, %d failed, %d declarations, %d documented (%.1f%%), %d warnings in %s\n",
		summary.Files, summary.Failed, summary.Declarations, summary.Documented,
		summary.Coverage()*100, summary.Warnings, summary.Elapsed.Human)
	return err
}

// Flush flushes any buffered output
func (f *TextFormatter) Flush() error {
	return f.writer.Flush()
}

// Close flushes and closes the formatter
func (f *TextFormatter) Close() error {
	return f.Flush()
}

// qualifiedName prefixes members with their container
func qualifiedName(site parser.DeclarationSite) string {
	if site.Parent == "" {
		return site.Name
	}
	return site.Parent + "." + site.Name
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
