package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/73ai/docextract/internal/collect"
	"github.com/73ai/docextract/internal/output"
	"github.com/73ai/docextract/internal/parser"
	"github.com/73ai/docextract/internal/search"
)

func binding(name, parent string, line int, doc ...string) parser.DocBinding {
	b := parser.DocBinding{Declaration: parser.DeclarationSite{
		Name:       name,
		Kind:       parser.KindFunction,
		Visibility: parser.VisibilityUnspecified,
		Parent:     parent,
		Line:       line,
	}}
	if len(doc) > 0 {
		b.Doc = doc
	}
	return b
}

func TestGroupMatches(t *testing.T) {
	matches := []search.Match{
		{Path: "a.py", Language: "python", Binding: binding("one", "", 1)},
		{Path: "a.py", Language: "python", Binding: binding("two", "", 5)},
		{Path: "b.go", Language: "go", Binding: binding("Three", "", 2)},
	}

	results := groupMatches(matches)
	require.Len(t, results, 2)
	assert.Equal(t, "a.py", results[0].Path)
	assert.Equal(t, "python", results[0].Language)
	assert.Len(t, results[0].Bindings, 2)
	assert.Equal(t, "b.go", results[1].Path)
	assert.Len(t, results[1].Bindings, 1)

	assert.Empty(t, groupMatches(nil))
}

func TestToFileResult(t *testing.T) {
	file := collect.File{
		Path:     "util.py",
		Language: "python",
		Bindings: []parser.DocBinding{binding("_scan", "", 1), binding("start", "", 4, "Start it.")},
	}
	registry := parser.DefaultRegistry()

	raw := toFileResult(file, registry, false)
	assert.Equal(t, parser.VisibilityUnspecified, raw.Bindings[0].Declaration.Visibility)

	resolved := toFileResult(file, registry, true)
	assert.Equal(t, parser.VisibilityPrivate, resolved.Bindings[0].Declaration.Visibility)
	assert.Equal(t, parser.VisibilityPublic, resolved.Bindings[1].Declaration.Visibility)
	assert.Equal(t, []string{"Start it."}, resolved.Bindings[1].Doc)

	// the extracted file keeps the raw visibility
	assert.Equal(t, parser.VisibilityUnspecified, file.Bindings[0].Declaration.Visibility)

	failed := toFileResult(collect.File{Path: "x.txt", Error: "unsupported language"}, registry, true)
	assert.Equal(t, "unsupported language", failed.Error)
}

func TestNewFormatterConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		terminal bool
		want     output.FormatterConfig
	}{
		{
			name: "defaults",
			cfg:  Config{Format: "json", Color: "auto"},
			want: output.FormatterConfig{Format: output.FormatJSON, View: output.ViewAll},
		},
		{
			name:     "auto color on terminal",
			cfg:      Config{Format: "text", Color: "auto"},
			terminal: true,
			want:     output.FormatterConfig{Format: output.FormatText, View: output.ViewAll, ShowColors: true},
		},
		{
			name:     "never color",
			cfg:      Config{Format: "text", Color: "never"},
			terminal: true,
			want:     output.FormatterConfig{Format: output.FormatText, View: output.ViewAll},
		},
		{
			name: "undocumented view",
			cfg:  Config{Format: "md", Color: "always", Undocumented: true, Warnings: true, Signatures: true},
			want: output.FormatterConfig{
				Format:         output.FormatMarkdown,
				View:           output.ViewUndocumented,
				ShowColors:     true,
				ShowWarnings:   true,
				ShowSignatures: true,
				SkipEmpty:      true,
			},
		},
		{
			name: "documented view",
			cfg:  Config{Format: "ndjson", Documented: true},
			want: output.FormatterConfig{Format: output.FormatJSONL, View: output.ViewDocumented, SkipEmpty: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newFormatterConfig(&tt.cfg, tt.terminal)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := newFormatterConfig(&Config{Format: "xml"}, false)
	assert.Error(t, err)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("format", "JSON")
	viper.Set("color", "auto")
	viper.Set("log_level", "warn")
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Format)

	viper.Set("format", "xml")
	_, err = loadConfig()
	assert.ErrorContains(t, err, "invalid configuration")

	viper.Set("format", "text")
	viper.Set("undocumented", true)
	viper.Set("documented", true)
	_, err = loadConfig()
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2<<20))
}

func TestExtractCommand(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	source := "def greet(name):\n    \"\"\"Say hello.\"\"\"\n    return name\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greet.py"), []byte(source), 0644))
	out := filepath.Join(dir, "out", "docs.json")

	rootCmd.SetArgs([]string{"--format", "json", "--output", out, "--summary", dir})
	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "greet"`)
	assert.Contains(t, string(data), `"doc": "Say hello."`)
	assert.Contains(t, string(data), `"summary"`)
}
