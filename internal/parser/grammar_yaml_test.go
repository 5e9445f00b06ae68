package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kotlinGrammar = `
languages:
  - name: kotlin
    aliases: [kt]
    extensions: [.kt, .kts]
    line_comments:
      - prefix: "//"
    block_comments:
      - open: "/**"
        close: "*/"
        doc: true
        gutter: "*"
      - open: "/*"
        close: "*/"
        gutter: "*"
    strings: ['"']
    annotation: '^\s*@\w+'
    modifiers:
      public: public
      private: private
      internal: internal
    declarations:
      - kind: class
        pattern: '^\s*(?:(?:public|private|internal|data|open)\s+)*class\s+(?P<name>\w+)'
        priority: 30
        container: true
        scopes: [any]
      - kind: function
        pattern: '^\s*(?:(?:public|private|internal|override)\s+)*fun\s+(?P<name>\w+)'
        priority: 20
        scopes: [file, member]
    default_visibility: public
`

func TestParseGrammars(t *testing.T) {
	grammars, err := ParseGrammars(strings.NewReader(kotlinGrammar))
	require.NoError(t, err)
	require.Len(t, grammars, 1)

	registry, err := NewLanguageRegistry(grammars...)
	require.NoError(t, err)
	assert.Equal(t, "kotlin", registry.GetLanguageForFile("Main.kt"))

	source := "/** A user. */\n" +
		"data class User {\n" +
		"    /** Greets. */\n" +
		"    @JvmStatic\n" +
		"    private fun greet() {}\n" +
		"}\n"

	res, err := NewExtractor(registry, Options{}).Extract(source, "kt")
	require.NoError(t, err)
	assert.Equal(t, []binding{
		{"User", KindClass, VisibilityUnspecified, "", lines("A user.")},
		{"greet", KindMethod, VisibilityPrivate, "User", lines("Greets.")},
	}, view(res))
}

func TestParseGrammars_InnerComments(t *testing.T) {
	doc := `
languages:
  - name: zig
    extensions: [.zig]
    line_comments:
      - {prefix: "//!", doc: true, inner: true}
      - {prefix: "///", doc: true}
      - {prefix: "//"}
    declarations:
      - kind: function
        pattern: '^\s*(?:pub\s+)?fn\s+(?P<name>\w+)'
        priority: 20
        scopes: [any]
`
	grammars, err := ParseGrammars(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, grammars, 1)
	assert.True(t, grammars[0].LineComments[0].Inner)
	assert.False(t, grammars[0].LineComments[1].Inner)

	registry, err := NewLanguageRegistry(grammars...)
	require.NoError(t, err)
	res, err := NewExtractor(registry, Options{}).Extract("//! Module doc.\n/// Adds.\npub fn add() void {}\n", "zig")
	require.NoError(t, err)
	require.Len(t, res.Bindings, 1)
	assert.Equal(t, lines("Adds."), res.Bindings[0].Doc)
	require.NotNil(t, res.FileDoc)
	assert.Equal(t, lines("Module doc."), res.FileDoc.Doc)
}

func TestParseGrammars_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty document", ""},
		{"no languages", "languages: []\n"},
		{"unknown field", "languages:\n  - name: x\n    colour: red\n"},
		{"bad kind", `
languages:
  - name: x
    line_comments: [{prefix: "#"}]
    declarations:
      - kind: macro
        pattern: '^(?P<name>\w+)'
`},
		{"bad regexp", `
languages:
  - name: x
    line_comments: [{prefix: "#"}]
    declarations:
      - kind: function
        pattern: '^(?P<name>\w+'
`},
		{"no comment syntax", `
languages:
  - name: x
    declarations:
      - kind: function
        pattern: '^(?P<name>\w+)'
`},
		{"bad visibility", `
languages:
  - name: x
    line_comments: [{prefix: "#"}]
    modifiers: {pub: everyone}
    declarations:
      - kind: function
        pattern: '^(?P<name>\w+)'
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGrammars(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidGrammar)
		})
	}
}

func TestLoadGrammarFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grammars.yaml")
	require.NoError(t, os.WriteFile(path, []byte(kotlinGrammar), 0o644))

	grammars, err := LoadGrammarFile(path)
	require.NoError(t, err)
	require.Len(t, grammars, 1)
	assert.Equal(t, "kotlin", grammars[0].Name)

	_, err = LoadGrammarFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
