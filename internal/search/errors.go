package search

import (
	"errors"
	"fmt"
	"strings"
)

// Query error types
var (
	ErrInvalidPattern = errors.New("invalid name pattern")
	ErrInvalidRegex   = errors.New("invalid regular expression")
	ErrInvalidFilter  = errors.New("invalid filter value")
	ErrIndexEmpty     = errors.New("index is empty")
	ErrIndexCorrupt   = errors.New("index record is corrupted")
	ErrSearchTimeout  = errors.New("search operation timed out")
)

// SearchError provides detailed error information
type SearchError struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	FilePath  string `json:"file_path,omitempty"`
	Line      int    `json:"line,omitempty"`
	Operation string `json:"operation,omitempty"`
	Cause     error  `json:"-"`
}

func (e *SearchError) Error() string {
	var parts []string

	if e.Type != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Type))
	}

	parts = append(parts, e.Message)

	if e.FilePath != "" {
		if e.Line > 0 {
			parts = append(parts, fmt.Sprintf("at %s:%d", e.FilePath, e.Line))
		} else {
			parts = append(parts, fmt.Sprintf("in %s", e.FilePath))
		}
	}

	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("during %s", e.Operation))
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

func (e *SearchError) Unwrap() error {
	return e.Cause
}

// NewSearchError creates a new search error
func NewSearchError(errorType, message string, cause error) *SearchError {
	return &SearchError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewQueryError reports a query that cannot be compiled. The cause is
// joined with the sentinel so both remain matchable with errors.Is.
func NewQueryError(sentinel error, message string, cause error) *SearchError {
	if cause != nil {
		cause = errors.Join(sentinel, cause)
	} else {
		cause = sentinel
	}
	return &SearchError{
		Type:      "query_error",
		Message:   message,
		Operation: "compiling query",
		Cause:     cause,
	}
}

// NewRecordError reports an index record that cannot be used
func NewRecordError(message, filePath string, line int) *SearchError {
	return &SearchError{
		Type:      "index_error",
		Message:   message,
		FilePath:  filePath,
		Line:      line,
		Operation: "reading index",
		Cause:     ErrIndexCorrupt,
	}
}

// Error classification functions
func IsPatternError(err error) bool {
	return errors.Is(err, ErrInvalidPattern) ||
		errors.Is(err, ErrInvalidRegex) ||
		errors.Is(err, ErrInvalidFilter)
}

func IsIndexError(err error) bool {
	return errors.Is(err, ErrIndexEmpty) || errors.Is(err, ErrIndexCorrupt)
}

func IsTimeout(err error) bool {
	return errors.Is(err, ErrSearchTimeout)
}

// FormatErrorSummary condenses a list of errors into one line per type
func FormatErrorSummary(errs []error) string {
	if len(errs) == 0 {
		return ""
	}

	counts := make(map[string]int)
	var order []string
	for _, err := range errs {
		errorType := "other"
		var searchErr *SearchError
		if errors.As(err, &searchErr) && searchErr.Type != "" {
			errorType = searchErr.Type
		}
		if counts[errorType] == 0 {
			order = append(order, errorType)
		}
		counts[errorType]++
	}

	lines := make([]string, 0, len(order))
	for _, errorType := range order {
		lines = append(lines, fmt.Sprintf("%s: %d", errorType, counts[errorType]))
	}
	return strings.Join(lines, "\n")
}
