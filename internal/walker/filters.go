package walker

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/73ai/docextract/internal/parser"
)

// DefaultMaxFileSize skips generated bundles and data dumps
const DefaultMaxFileSize = 10 * 1024 * 1024

// Filters decides which discovered files are extracted and in which
// language. Languages come from the parser registry, so custom grammars
// are picked up by extension like the built-in ones.
type Filters struct {
	registry        *parser.LanguageRegistry
	includes        []string        // doublestar patterns, empty means everything
	excludes        []string        // doublestar patterns
	languages       map[string]bool // canonical language names, empty means all
	maxSize         int64
	binaryDetection bool
	allowHidden     bool
	mu              sync.RWMutex
}

// NewFilters creates a filter over a language registry. A nil registry
// means the built-in grammars.
func NewFilters(registry *parser.LanguageRegistry) *Filters {
	if registry == nil {
		registry = parser.DefaultRegistry()
	}
	return &Filters{
		registry:        registry,
		languages:       make(map[string]bool),
		maxSize:         DefaultMaxFileSize,
		binaryDetection: true,
	}
}

// Registry returns the registry used for language detection
func (f *Filters) Registry() *parser.LanguageRegistry {
	return f.registry
}

// SetPatterns replaces the include and exclude globs. Patterns are
// matched against slash-separated walk-relative paths.
func (f *Filters) SetPatterns(includes, excludes []string) error {
	for _, p := range append(append([]string(nil), includes...), excludes...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid glob pattern %q", p)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.includes = append([]string(nil), includes...)
	f.excludes = append([]string(nil), excludes...)
	return nil
}

// IncludeLanguage restricts the filter to a language tag or alias
func (f *Filters) IncludeLanguage(tag string) error {
	g, err := f.registry.Lookup(tag)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.languages[g.Name] = true
	return nil
}

// SetMaxSize sets the largest file size considered; zero disables the limit
func (f *Filters) SetMaxSize(maxSize int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maxSize = maxSize
}

// SetBinaryDetection enables or disables binary file detection
func (f *Filters) SetBinaryDetection(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.binaryDetection = enabled
}

// SetAllowHidden enables or disables inclusion of hidden files
func (f *Filters) SetAllowHidden(allow bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allowHidden = allow
}

// Language returns the language of a file, or "" when no grammar claims
// its extension
func (f *Filters) Language(path string) string {
	return f.registry.GetLanguageForFile(path)
}

// ShouldInclude decides whether a file found during a walk is extracted.
// It returns the file's language when it is.
func (f *Filters) ShouldInclude(path, relPath string, info fs.FileInfo) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.maxSize > 0 && info.Size() > f.maxSize {
		return "", false
	}
	if !f.allowHidden && isHiddenFile(filepath.Base(path)) {
		return "", false
	}

	lang := f.registry.GetLanguageForFile(path)
	if lang == "" {
		return "", false
	}
	if len(f.languages) > 0 && !f.languages[lang] {
		return "", false
	}

	if !f.matchesPatterns(filepath.ToSlash(relPath)) {
		return "", false
	}

	if f.binaryDetection && isBinaryFile(path) {
		return "", false
	}
	return lang, true
}

// ExcludesDir reports whether an exclude glob prunes a whole directory
func (f *Filters) ExcludesDir(relPath string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	rel := filepath.ToSlash(relPath)
	for _, pattern := range f.excludes {
		if matchGlob(pattern, rel) || matchGlob(pattern, rel+"/") {
			return true
		}
	}
	return false
}

func (f *Filters) matchesPatterns(rel string) bool {
	for _, pattern := range f.excludes {
		if matchGlob(pattern, rel) {
			return false
		}
	}
	if len(f.includes) == 0 {
		return true
	}
	for _, pattern := range f.includes {
		if matchGlob(pattern, rel) {
			return true
		}
	}
	return false
}

func matchGlob(pattern, path string) bool {
	matched, err := doublestar.Match(pattern, path)
	return err == nil && matched
}

// isBinaryFile determines if a file is binary by examining its content
func isBinaryFile(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && n == 0 {
		return false
	}
	return isBinaryContent(buffer[:n])
}

// isBinaryContent checks if the given content is binary
func isBinaryContent(content []byte) bool {
	if len(content) == 0 {
		return false
	}
	if bytes.IndexByte(content, 0) >= 0 {
		return true
	}

	nonPrintable := 0
	for _, b := range content {
		if b < 32 && b != '\t' && b != '\n' && b != '\r' && b != '\f' {
			nonPrintable++
		}
	}
	// more than 30% control bytes
	return float64(nonPrintable)/float64(len(content)) > 0.30
}

// isHiddenFile checks if a filename represents a hidden file
func isHiddenFile(name string) bool {
	return len(name) > 1 && name[0] == '.' && name != ".."
}

// IsSourceFile reports whether a path has an extension some grammar claims
func (f *Filters) IsSourceFile(path string) bool {
	return f.Language(path) != ""
}
