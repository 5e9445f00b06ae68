package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/73ai/docextract/internal/parser"
)

func statFile(t *testing.T, dir, name, content string) (string, os.FileInfo) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	info, err := os.Stat(path)
	require.NoError(t, err)
	return path, info
}

func TestFilters_ShouldInclude(t *testing.T) {
	tmpDir := t.TempDir()
	f := NewFilters(nil)

	tests := []struct {
		name     string
		file     string
		content  string
		wantLang string
		want     bool
	}{
		{"go source", "main.go", "package main\n", "go", true},
		{"python source", "pkg/mod.py", "x = 1\n", "python", true},
		{"unknown extension", "notes.txt", "hello\n", "", false},
		{"hidden file", ".eslintrc.js", "module.exports = {};\n", "", false},
		{"binary content", "blob.c", "\x00\x01\x02ELF", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, info := statFile(t, tmpDir, tt.file, tt.content)
			lang, ok := f.ShouldInclude(path, tt.file, info)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.wantLang, lang)
		})
	}
}

func TestFilters_SizeLimit(t *testing.T) {
	tmpDir := t.TempDir()
	path, info := statFile(t, tmpDir, "big.go", "package big\n// padding padding padding\n")

	f := NewFilters(nil)
	f.SetMaxSize(10)
	_, ok := f.ShouldInclude(path, "big.go", info)
	assert.False(t, ok, "file over the size limit should be skipped")

	f.SetMaxSize(0)
	_, ok = f.ShouldInclude(path, "big.go", info)
	assert.True(t, ok, "a zero limit should disable the size check")
}

func TestFilters_IncludeLanguage(t *testing.T) {
	tmpDir := t.TempDir()
	goPath, goInfo := statFile(t, tmpDir, "a.go", "package a\n")
	pyPath, pyInfo := statFile(t, tmpDir, "a.py", "x = 1\n")

	f := NewFilters(nil)
	require.NoError(t, f.IncludeLanguage("py"))

	_, ok := f.ShouldInclude(goPath, "a.go", goInfo)
	assert.False(t, ok, "go should be filtered out")

	lang, ok := f.ShouldInclude(pyPath, "a.py", pyInfo)
	assert.True(t, ok)
	assert.Equal(t, "python", lang)

	err := f.IncludeLanguage("cobol")
	assert.True(t, parser.IsUnsupportedLanguage(err), "expected unsupported language error, got %v", err)
}

func TestFilters_SetPatterns(t *testing.T) {
	f := NewFilters(nil)
	assert.Error(t, f.SetPatterns([]string{"src/[a-"}, nil), "malformed glob")

	require.NoError(t, f.SetPatterns(nil, []string{"**/testdata/**", "vendor"}))
	tests := map[string]bool{
		"vendor":           true,
		"pkg/testdata":     true,
		"pkg/testdata/sub": true,
		"pkg/src":          false,
	}
	for dir, want := range tests {
		assert.Equal(t, want, f.ExcludesDir(dir), "ExcludesDir(%s)", dir)
	}
}

func TestFilters_CustomGrammarExtension(t *testing.T) {
	custom := &parser.LanguageGrammar{
		Name:         "lua",
		Extensions:   []string{".lua"},
		LineComments: []parser.CommentMarker{{Prefix: "--"}},
	}
	registry, err := parser.NewLanguageRegistry(custom)
	require.NoError(t, err)

	f := NewFilters(registry)
	assert.Equal(t, "lua", f.Language("init.lua"))
	assert.True(t, f.IsSourceFile("a/b/c.lua"))
	assert.False(t, f.IsSourceFile("a/b/c.txt"))
}

func TestIsBinaryContent(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    bool
	}{
		{"empty", nil, false},
		{"text", []byte("int main(void) {\n\treturn 0;\n}\n"), false},
		{"null byte", []byte("abc\x00def"), true},
		{"control heavy", []byte("\x01\x02\x03\x04a"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isBinaryContent(tt.content))
		})
	}
}
