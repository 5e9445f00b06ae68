package output

import (
	"encoding/json"
	"io"

	"github.com/73ai/docextract/internal/parser"
)

// documentView is the structured document written by the JSON and YAML formatters
type documentView struct {
	Files   []fileView `json:"files" yaml:"files"`
	Summary *Summary   `json:"summary,omitempty" yaml:"summary,omitempty"`
}

type fileView struct {
	Path         string            `json:"path" yaml:"path"`
	Language     string            `json:"language,omitempty" yaml:"language,omitempty"`
	FileDoc      *string           `json:"file_doc,omitempty" yaml:"file_doc,omitempty"`
	Declarations []declarationView `json:"declarations" yaml:"declarations"`
	Warnings     []parser.Warning  `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Error        string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// declarationView flattens a DocBinding. Doc is nil, and renders as null,
// when the declaration is undocumented.
type declarationView struct {
	Name       string            `json:"name" yaml:"name"`
	Kind       string            `json:"kind" yaml:"kind"`
	Visibility string            `json:"visibility" yaml:"visibility"`
	Parent     string            `json:"parent,omitempty" yaml:"parent,omitempty"`
	Signature  string            `json:"signature,omitempty" yaml:"signature,omitempty"`
	Line       int               `json:"line" yaml:"line"`
	Doc        *string           `json:"doc" yaml:"doc"`
	DocLines   *parser.LineRange `json:"doc_lines,omitempty" yaml:"doc_lines,omitempty"`
}

func newDeclarationView(b parser.DocBinding) declarationView {
	v := declarationView{
		Name:       b.Declaration.Name,
		Kind:       string(b.Declaration.Kind),
		Visibility: string(b.Declaration.Visibility),
		Parent:     b.Declaration.Parent,
		Signature:  b.Declaration.Signature,
		Line:       b.Declaration.Line,
		DocLines:   b.Source,
	}
	if b.Documented() {
		text := b.Text()
		v.Doc = &text
	}
	return v
}

func newFileView(result FileResult, bindings []parser.DocBinding) fileView {
	v := fileView{
		Path:         result.Path,
		Language:     result.Language,
		Declarations: make([]declarationView, 0, len(bindings)),
		Warnings:     result.Warnings,
		Error:        result.Error,
	}
	if result.FileDoc != nil {
		text := joinLines(result.FileDoc.Doc)
		v.FileDoc = &text
	}
	for _, b := range bindings {
		v.Declarations = append(v.Declarations, newDeclarationView(b))
	}
	return v
}

// JSONFormatter writes one indented JSON document once all files are known
type JSONFormatter struct {
	writer   io.Writer
	config   FormatterConfig
	document documentView
	closed   bool
}

func NewJSONFormatter(writer io.Writer, config FormatterConfig) *JSONFormatter {
	return &JSONFormatter{
		writer:   writer,
		config:   config,
		document: documentView{Files: []fileView{}},
	}
}

// FormatFile buffers a file for the final document
func (f *JSONFormatter) FormatFile(result FileResult) error {
	bindings := f.config.filterBindings(result.Bindings)
	if f.config.skip(result, bindings) {
		return nil
	}
	f.document.Files = append(f.document.Files, newFileView(result, bindings))
	return nil
}

// FormatSummary attaches the summary to the final document
func (f *JSONFormatter) FormatSummary(summary Summary) error {
	f.document.Summary = &summary
	return nil
}

// Flush is a no-op; the document is written by Close
func (f *JSONFormatter) Flush() error {
	return nil
}

// Close writes the document
func (f *JSONFormatter) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	encoder := json.NewEncoder(f.writer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	return encoder.Encode(f.document)
}

// JSONMessage is one line of JSONL output
type JSONMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// JSONDeclarationData is the data of a "declaration" message
type JSONDeclarationData struct {
	Path     string `json:"path"`
	Language string `json:"language"`
	declarationView
}

// JSONFileDocData is the data of a "file_doc" message
type JSONFileDocData struct {
	Path     string           `json:"path"`
	Language string           `json:"language"`
	Doc      string           `json:"doc"`
	DocLines parser.LineRange `json:"doc_lines"`
}

// JSONWarningData is the data of a "warning" message
type JSONWarningData struct {
	Path string `json:"path"`
	parser.Warning
}

// JSONErrorData is the data of an "error" message
type JSONErrorData struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// JSONLFormatter streams one JSON message per line
type JSONLFormatter struct {
	writer  io.Writer
	config  FormatterConfig
	encoder *json.Encoder
}

func NewJSONLFormatter(writer io.Writer, config FormatterConfig) *JSONLFormatter {
	encoder := json.NewEncoder(writer)
	encoder.SetEscapeHTML(false)

	return &JSONLFormatter{
		writer:  writer,
		config:  config,
		encoder: encoder,
	}
}

// FormatFile writes the file doc, declarations, warnings or error of a file
func (f *JSONLFormatter) FormatFile(result FileResult) error {
	if result.Error != "" {
		return f.encoder.Encode(JSONMessage{
			Type: "error",
			Data: JSONErrorData{Path: result.Path, Error: result.Error},
		})
	}

	if result.FileDoc != nil && f.config.View != ViewUndocumented {
		msg := JSONMessage{
			Type: "file_doc",
			Data: JSONFileDocData{
				Path:     result.Path,
				Language: result.Language,
				Doc:      joinLines(result.FileDoc.Doc),
				DocLines: result.FileDoc.Source,
			},
		}
		if err := f.encoder.Encode(msg); err != nil {
			return err
		}
	}

	for _, b := range f.config.filterBindings(result.Bindings) {
		msg := JSONMessage{
			Type: "declaration",
			Data: JSONDeclarationData{
				Path:            result.Path,
				Language:        result.Language,
				declarationView: newDeclarationView(b),
			},
		}
		if err := f.encoder.Encode(msg); err != nil {
			return err
		}
	}

	for _, w := range result.Warnings {
		msg := JSONMessage{
			Type: "warning",
			Data: JSONWarningData{Path: result.Path, Warning: w},
		}
		if err := f.encoder.Encode(msg); err != nil {
			return err
		}
	}
	return nil
}

// FormatSummary writes a "summary" message
func (f *JSONLFormatter) FormatSummary(summary Summary) error {
	return f.encoder.Encode(JSONMessage{Type: "summary", Data: summary})
}

func (f *JSONLFormatter) Flush() error {
	if flusher, ok := f.writer.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

func (f *JSONLFormatter) Close() error {
	return f.Flush()
}
