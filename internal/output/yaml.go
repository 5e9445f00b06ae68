package output

import (
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter writes the same document as JSONFormatter as YAML
type YAMLFormatter struct {
	writer   io.Writer
	config   FormatterConfig
	document documentView
	closed   bool
}

func NewYAMLFormatter(writer io.Writer, config FormatterConfig) *YAMLFormatter {
	return &YAMLFormatter{
		writer:   writer,
		config:   config,
		document: documentView{Files: []fileView{}},
	}
}

func (f *YAMLFormatter) FormatFile(result FileResult) error {
	bindings := f.config.filterBindings(result.Bindings)
	if f.config.skip(result, bindings) {
		return nil
	}
	f.document.Files = append(f.document.Files, newFileView(result, bindings))
	return nil
}

func (f *YAMLFormatter) FormatSummary(summary Summary) error {
	f.document.Summary = &summary
	return nil
}

func (f *YAMLFormatter) Flush() error {
	return nil
}

func (f *YAMLFormatter) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	encoder := yaml.NewEncoder(f.writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(f.document); err != nil {
		return err
	}
	return encoder.Close()
}
