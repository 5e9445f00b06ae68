package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/73ai/docextract/internal/parser"
)

const undocumentedMarkdown = "_undocumented_"

// MarkdownFormatter renders one section per file and one subsection per declaration
type MarkdownFormatter struct {
	writer *bufio.Writer
	config FormatterConfig
	files  int
}

func NewMarkdownFormatter(writer io.Writer, config FormatterConfig) *MarkdownFormatter {
	return &MarkdownFormatter{
		writer: bufio.NewWriter(writer),
		config: config,
	}
}

func (f *MarkdownFormatter) FormatFile(result FileResult) error {
	bindings := f.config.filterBindings(result.Bindings)
	if f.config.skip(result, bindings) {
		return nil
	}

	if f.files > 0 {
		f.writer.WriteString("\n")
	}
	f.files++

	fmt.Fprintf(f.writer, "# `%s`\n\n", result.Path)

	if result.Error != "" {
		fmt.Fprintf(f.writer, "**Error:** %s\n", escapeMarkdown(result.Error))
		return nil
	}

	fmt.Fprintf(f.writer, "_Language: %s_\n", result.Language)

	if result.FileDoc != nil && f.config.View != ViewUndocumented {
		f.writer.WriteString("\n")
		for _, line := range result.FileDoc.Doc {
			if line == "" {
				f.writer.WriteString(">\n")
				continue
			}
			fmt.Fprintf(f.writer, "> %s\n", line)
		}
	}

	for _, b := range bindings {
		f.writeBinding(result.Language, b)
	}

	if f.config.ShowWarnings && len(result.Warnings) > 0 {
		f.writer.WriteString("\n### Warnings\n\n")
		for _, w := range result.Warnings {
			fmt.Fprintf(f.writer, "- line %d: %s (`%s`)\n", w.Line, escapeMarkdown(w.Message), w.Code)
		}
	}
	return nil
}

func (f *MarkdownFormatter) writeBinding(language string, b parser.DocBinding) {
	site := b.Declaration

	fmt.Fprintf(f.writer, "\n## `%s` %s\n\n", qualifiedName(site), site.Kind)
	fmt.Fprintf(f.writer, "`%s` · line %d\n\n", site.Visibility, site.Line)

	if f.config.ShowSignatures && site.Signature != "" {
		fmt.Fprintf(f.writer, "```%s\n%s\n```\n\n", language, site.Signature)
	}

	if !b.Documented() {
		f.writer.WriteString(undocumentedMarkdown + "\n")
		return
	}
	text := strings.TrimSpace(b.Text())
	if text == "" {
		// documented by an empty comment
		f.writer.WriteString("\n")
		return
	}
	f.writer.WriteString(text)
	f.writer.WriteString("\n")
}

func (f *MarkdownFormatter) FormatSummary(summary Summary) error {
	if f.files > 0 {
		f.writer.WriteString("\n")
	}
	f.writer.WriteString("---\n\n")
	f.writer.WriteString("| Files | Failed | Declarations | Documented | Coverage | Warnings |\n")
	f.writer.WriteString("|---:|---:|---:|---:|---:|---:|\n")
	_, err := fmt.Fprintf(f.writer, "| %d | %d | %d | %d | %.1f%% | %d |\n",
		summary.Files, summary.Failed, summary.Declarations, summary.Documented,
		summary.Coverage()*100, summary.Warnings)
	return err
}

func (f *MarkdownFormatter) Flush() error {
	return f.writer.Flush()
}

func (f *MarkdownFormatter) Close() error {
	return f.Flush()
}

var markdownEscaper = strings.NewReplacer("*", `\*`, "_", `\_`, "`", "\\`")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
