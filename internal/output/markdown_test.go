package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkdownFormatter(t *testing.T) {
	out := render(t, FormatterConfig{Format: FormatMarkdown, ShowSignatures: true, ShowWarnings: true}, true)

	want := "# `server/server.go`\n" +
		"\n" +
		"_Language: go_\n" +
		"\n" +
		"> Package server serves.\n" +
		"\n" +
		"## `Server` struct\n" +
		"\n" +
		"`exported` · line 5\n" +
		"\n" +
		"```go\ntype Server struct {\n```\n" +
		"\n" +
		"Server handles requests.\n" +
		"\n" +
		"## `Server.handle` method\n" +
		"\n" +
		"`internal` · line 20\n" +
		"\n" +
		"```go\nfunc (s *Server) handle() {\n```\n" +
		"\n" +
		"_undocumented_\n" +
		"\n" +
		"### Warnings\n" +
		"\n" +
		"- line 30: block comment opened with \"/\\*\" is never closed (`unterminated_comment`)\n" +
		"\n" +
		"# `notes.txt`\n" +
		"\n" +
		"**Error:** unsupported language \"txt\"\n" +
		"\n" +
		"---\n" +
		"\n" +
		"| Files | Failed | Declarations | Documented | Coverage | Warnings |\n" +
		"|---:|---:|---:|---:|---:|---:|\n" +
		"| 2 | 1 | 2 | 1 | 50.0% | 1 |\n"

	assert.Equal(t, want, out)
}

func TestMarkdownFormatterUndocumentedView(t *testing.T) {
	out := render(t, FormatterConfig{Format: FormatMarkdown, View: ViewUndocumented}, false)

	assert.NotContains(t, out, "> Package server serves.")
	assert.NotContains(t, out, "## `Server` struct")
	assert.Contains(t, out, "## `Server.handle` method")
	assert.Contains(t, out, undocumentedMarkdown)
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `a\*b\_c\`+"`", escapeMarkdown("a*b_c`"))
}
