package parser

import (
	"errors"
	"fmt"
	"strings"
)

// Extraction error types
var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrUnterminatedComment = errors.New("unterminated block comment")
	ErrInvalidGrammar      = errors.New("invalid language grammar")
)

// ExtractError provides detailed error information
type ExtractError struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Language string `json:"language,omitempty"`
	Line     int    `json:"line,omitempty"`
	Cause    error  `json:"-"`
}

func (e *ExtractError) Error() string {
	var parts []string

	if e.Type != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Type))
	}

	parts = append(parts, e.Message)

	if e.Language != "" {
		parts = append(parts, fmt.Sprintf("for %q", e.Language))
	}
	if e.Line > 0 {
		parts = append(parts, fmt.Sprintf("at line %d", e.Line))
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

func (e *ExtractError) Unwrap() error {
	return e.Cause
}

// NewUnsupportedLanguageError reports a language tag with no registered grammar
func NewUnsupportedLanguageError(tag string) *ExtractError {
	return &ExtractError{
		Type:     "unsupported_language",
		Message:  "no grammar registered",
		Language: tag,
		Cause:    ErrUnsupportedLanguage,
	}
}

// NewGrammarError reports a grammar definition that cannot be used
func NewGrammarError(language, message string, cause error) *ExtractError {
	if cause == nil {
		cause = ErrInvalidGrammar
	} else {
		cause = fmt.Errorf("%w: %w", ErrInvalidGrammar, cause)
	}
	return &ExtractError{
		Type:     "invalid_grammar",
		Message:  message,
		Language: language,
		Cause:    cause,
	}
}

// IsUnsupportedLanguage reports whether err was caused by an unknown language tag
func IsUnsupportedLanguage(err error) bool {
	return errors.Is(err, ErrUnsupportedLanguage)
}

// Warning is a non-fatal condition found while extracting a file
type Warning struct {
	Code    string `json:"code" yaml:"code"`
	Line    int    `json:"line" yaml:"line"`
	Message string `json:"message" yaml:"message"`
	Err     error  `json:"-" yaml:"-"`
}

func (w Warning) Error() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Message)
}

func (w Warning) Unwrap() error {
	return w.Err
}

func unterminatedWarning(line int, open string) Warning {
	return Warning{
		Code:    "unterminated_comment",
		Line:    line,
		Message: fmt.Sprintf("block comment opened with %q is never closed", open),
		Err:     ErrUnterminatedComment,
	}
}
