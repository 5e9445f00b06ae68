package output

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/73ai/docextract/internal/parser"
)

func sampleResults() []FileResult {
	return []FileResult{
		{
			Path:     "server/server.go",
			Language: "go",
			FileDoc: &parser.FileDoc{
				Doc:    []string{"Package server serves."},
				Source: parser.LineRange{Start: 1, End: 1},
			},
			Bindings: []parser.DocBinding{
				{
					Declaration: parser.DeclarationSite{
						Name:       "Server",
						Kind:       parser.KindStruct,
						Visibility: parser.VisibilityExported,
						Signature:  "type Server struct {",
						Line:       5,
					},
					Doc:    []string{"Server handles requests."},
					Source: &parser.LineRange{Start: 4, End: 4},
				},
				{
					Declaration: parser.DeclarationSite{
						Name:       "handle",
						Kind:       parser.KindMethod,
						Visibility: parser.VisibilityInternal,
						Signature:  "func (s *Server) handle() {",
						Line:       20,
						Parent:     "Server",
					},
				},
			},
			Warnings: []parser.Warning{
				{Code: "unterminated_comment", Line: 30, Message: "block comment opened with \"/*\" is never closed"},
			},
		},
		{
			Path:  "notes.txt",
			Error: "unsupported language \"txt\"",
		},
	}
}

func sampleSummary() Summary {
	return Summary{
		Files:        2,
		Failed:       1,
		Declarations: 2,
		Documented:   1,
		Warnings:     1,
		Elapsed:      NewDuration(1500 * time.Microsecond),
	}
}

// render runs every sample result and the summary through a formatter
func render(t *testing.T, config FormatterConfig, withSummary bool) string {
	t.Helper()
	var buf bytes.Buffer
	formatter, err := NewFormatter(&buf, config)
	require.NoError(t, err)

	for _, result := range sampleResults() {
		require.NoError(t, formatter.FormatFile(result))
	}
	if withSummary {
		require.NoError(t, formatter.FormatSummary(sampleSummary()))
	}
	require.NoError(t, formatter.Close())
	return buf.String()
}

func TestFormatterFactory(t *testing.T) {
	tests := []struct {
		format       OutputFormat
		expectedType string
	}{
		{FormatJSON, "*output.JSONFormatter"},
		{FormatJSONL, "*output.JSONLFormatter"},
		{FormatYAML, "*output.YAMLFormatter"},
		{FormatMarkdown, "*output.MarkdownFormatter"},
		{FormatText, "*output.TextFormatter"},
		{"", "*output.JSONFormatter"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			formatter, err := NewFormatterFactory(&buf, FormatterConfig{Format: tt.format}).CreateFormatter()
			require.NoError(t, err)
			assert.Equal(t, tt.expectedType, fmt.Sprintf("%T", formatter))
		})
	}

	t.Run("unknown format", func(t *testing.T) {
		_, err := NewFormatter(&bytes.Buffer{}, FormatterConfig{Format: "xml"})
		assert.ErrorContains(t, err, `unknown output format "xml"`)
	})

	t.Run("unknown view", func(t *testing.T) {
		_, err := NewFormatter(&bytes.Buffer{}, FormatterConfig{Format: FormatText, View: "some"})
		assert.ErrorContains(t, err, `unknown view "some"`)
	})
}

func TestParseFormat(t *testing.T) {
	tests := map[string]OutputFormat{
		"":         FormatJSON,
		"JSON":     FormatJSON,
		"ndjson":   FormatJSONL,
		"yml":      FormatYAML,
		"md":       FormatMarkdown,
		"markdown": FormatMarkdown,
		" text ":   FormatText,
	}
	for name, want := range tests {
		got, err := ParseFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseFormat("html")
	assert.Error(t, err)
}

func TestViews(t *testing.T) {
	bindings := sampleResults()[0].Bindings

	tests := []struct {
		view View
		want []string
	}{
		{ViewAll, []string{"Server", "handle"}},
		{"", []string{"Server", "handle"}},
		{ViewDocumented, []string{"Server"}},
		{ViewUndocumented, []string{"handle"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.view), func(t *testing.T) {
			var got []string
			for _, b := range (FormatterConfig{View: tt.view}).filterBindings(bindings) {
				got = append(got, b.Declaration.Name)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSkipEmpty(t *testing.T) {
	out := render(t, FormatterConfig{Format: FormatText, View: ViewUndocumented, SkipEmpty: true}, false)
	assert.Contains(t, out, "handle")

	var buf bytes.Buffer
	formatter, err := NewFormatter(&buf, FormatterConfig{Format: FormatText, View: ViewUndocumented, SkipEmpty: true})
	require.NoError(t, err)
	require.NoError(t, formatter.FormatFile(FileResult{
		Path:     "doc.go",
		Language: "go",
		Bindings: sampleResults()[0].Bindings[:1],
	}))
	require.NoError(t, formatter.Close())
	assert.Empty(t, buf.String())
}

func TestSummaryCoverage(t *testing.T) {
	assert.InDelta(t, 0.5, sampleSummary().Coverage(), 1e-9)
	assert.Zero(t, Summary{}.Coverage())
}

func TestNewDuration(t *testing.T) {
	d := NewDuration(2*time.Second + 5*time.Millisecond)
	assert.Equal(t, int64(2), d.Secs)
	assert.Equal(t, int64(5_000_000), d.Nanos)
	assert.Equal(t, "2.005s", d.Human)
}

func TestSortResults(t *testing.T) {
	results := []FileResult{{Path: "b.go"}, {Path: "a.py"}, {Path: "a.go"}}
	SortResults(results)
	assert.Equal(t, []string{"a.go", "a.py", "b.go"}, []string{results[0].Path, results[1].Path, results[2].Path})
}

func TestOutputManager(t *testing.T) {
	var buf bytes.Buffer
	formatter, err := NewFormatter(&buf, FormatterConfig{Format: FormatJSONL})
	require.NoError(t, err)

	manager := NewOutputManager(context.Background(), formatter)
	require.NoError(t, manager.ProcessFile(sampleResults()[1]))
	require.NoError(t, manager.ProcessSummary(sampleSummary()))
	require.NoError(t, manager.Close())
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\n")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cancelled := NewOutputManager(ctx, formatter)
	assert.ErrorIs(t, cancelled.ProcessFile(sampleResults()[0]), context.Canceled)
	assert.ErrorIs(t, cancelled.ProcessSummary(sampleSummary()), context.Canceled)
}
