package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestJSONFormatter(t *testing.T) {
	out := render(t, FormatterConfig{Format: FormatJSON}, true)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.True(t, strings.HasPrefix(out, "{\n  \"files\": ["), "output should be indented:\n%s", out)

	files := doc["files"].([]interface{})
	require.Len(t, files, 2)

	server := files[0].(map[string]interface{})
	assert.Equal(t, "server/server.go", server["path"])
	assert.Equal(t, "go", server["language"])
	assert.Equal(t, "Package server serves.", server["file_doc"])

	decls := server["declarations"].([]interface{})
	require.Len(t, decls, 2)

	documented := decls[0].(map[string]interface{})
	assert.Equal(t, "Server", documented["name"])
	assert.Equal(t, "struct", documented["kind"])
	assert.Equal(t, "Server handles requests.", documented["doc"])
	assert.Equal(t, map[string]interface{}{"start": 4.0, "end": 4.0}, documented["doc_lines"])

	undocumented := decls[1].(map[string]interface{})
	doc2, present := undocumented["doc"]
	assert.True(t, present, "absent doc must be written as null")
	assert.Nil(t, doc2)
	assert.Equal(t, "Server", undocumented["parent"])
	assert.NotContains(t, undocumented, "doc_lines")

	warnings := server["warnings"].([]interface{})
	require.Len(t, warnings, 1)
	assert.Equal(t, "unterminated_comment", warnings[0].(map[string]interface{})["code"])

	failed := files[1].(map[string]interface{})
	assert.Equal(t, "unsupported language \"txt\"", failed["error"])
	assert.Equal(t, []interface{}{}, failed["declarations"])

	summary := doc["summary"].(map[string]interface{})
	assert.Equal(t, 2.0, summary["declarations"])
}

func TestJSONFormatterEmpty(t *testing.T) {
	var buf bytes.Buffer
	formatter := NewJSONFormatter(&buf, FormatterConfig{})
	require.NoError(t, formatter.Close())
	require.NoError(t, formatter.Close())

	assert.JSONEq(t, `{"files": []}`, buf.String())
}

func TestJSONFormatterDocumentedView(t *testing.T) {
	out := render(t, FormatterConfig{Format: FormatJSON, View: ViewDocumented}, false)

	var doc documentView
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Files, 2)
	require.Len(t, doc.Files[0].Declarations, 1)
	assert.Equal(t, "Server", doc.Files[0].Declarations[0].Name)
	assert.Nil(t, doc.Summary)
}

func TestEmptyDocIsNotNull(t *testing.T) {
	results := sampleResults()
	results[0].Bindings[1].Doc = []string{}

	var buf bytes.Buffer
	formatter := NewJSONFormatter(&buf, FormatterConfig{})
	require.NoError(t, formatter.FormatFile(results[0]))
	require.NoError(t, formatter.Close())

	var doc documentView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.NotNil(t, doc.Files[0].Declarations[1].Doc)
	assert.Equal(t, "", *doc.Files[0].Declarations[1].Doc)
}

func TestJSONLFormatter(t *testing.T) {
	out := render(t, FormatterConfig{Format: FormatJSONL}, true)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	var types []string
	var messages []map[string]interface{}
	for _, line := range lines {
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &msg), line)
		types = append(types, msg["type"].(string))
		messages = append(messages, msg)
	}
	assert.Equal(t, []string{"file_doc", "declaration", "declaration", "warning", "error", "summary"}, types)

	decl := messages[2]["data"].(map[string]interface{})
	assert.Equal(t, "server/server.go", decl["path"])
	assert.Equal(t, "go", decl["language"])
	assert.Equal(t, "handle", decl["name"])
	assert.Equal(t, 20.0, decl["line"])
	doc, present := decl["doc"]
	assert.True(t, present)
	assert.Nil(t, doc)

	warning := messages[3]["data"].(map[string]interface{})
	assert.Equal(t, 30.0, warning["line"])
	assert.NotContains(t, warning, "Err")
}

func TestJSONLFormatterUndocumentedView(t *testing.T) {
	out := render(t, FormatterConfig{Format: FormatJSONL, View: ViewUndocumented}, false)

	assert.NotContains(t, out, `"file_doc"`)
	assert.NotContains(t, out, `"Server handles requests."`)
	assert.Contains(t, out, `"name":"handle"`)
}

func TestYAMLFormatter(t *testing.T) {
	out := render(t, FormatterConfig{Format: FormatYAML}, true)

	assert.Contains(t, out, "doc: null")
	assert.Contains(t, out, "doc: Server handles requests.")

	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))

	files := doc["files"].([]interface{})
	require.Len(t, files, 2)
	decls := files[0].(map[string]interface{})["declarations"].([]interface{})
	require.Len(t, decls, 2)

	undocumented := decls[1].(map[string]interface{})
	value, present := undocumented["doc"]
	assert.True(t, present)
	assert.Nil(t, value)

	summary := doc["summary"].(map[string]interface{})
	assert.Equal(t, 1, summary["failed"])
}
