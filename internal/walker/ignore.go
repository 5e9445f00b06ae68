package walker

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnoreFileNames are the ignore files read in every traversed directory
var IgnoreFileNames = []string{".gitignore", ".docextractignore"}

// IgnoreRule represents a single ignore rule
type IgnoreRule struct {
	Pattern  string // Original pattern
	Glob     string // doublestar pattern matched against paths below Prefix
	Negate   bool   // Whether this is a negation rule (starts with !)
	DirOnly  bool   // Whether this rule applies only to directories (ends with /)
	Anchored bool   // Whether this rule is anchored to its ignore file's directory
	Prefix   string // Walk-relative directory the rule applies under ("" for the root)
	LineNum  int    // Line number in the ignore file
	Source   string // Source file path
}

// IgnoreFile represents an ignore file and its rules
type IgnoreFile struct {
	Path  string        // Path to the ignore file
	Dir   string        // Directory containing the ignore file
	Rules []*IgnoreRule // Parsed rules from this file
}

// IgnoreManager manages ignore rules across multiple ignore files. Rules
// are evaluated in load order and the last matching rule wins, so files
// loaded later (deeper directories, custom rules) take precedence.
type IgnoreManager struct {
	files    []*IgnoreFile
	cache    map[string]bool
	mu       sync.RWMutex
	enabled  bool
	global   bool
	defaults bool
}

// NewIgnoreManager creates a new ignore manager
func NewIgnoreManager() (*IgnoreManager, error) {
	return &IgnoreManager{
		files:   make([]*IgnoreFile, 0),
		cache:   make(map[string]bool),
		enabled: true,
	}, nil
}

// SetGlobal enables reading the user's global gitignore on LoadFromPath
func (im *IgnoreManager) SetGlobal(enabled bool) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.global = enabled
}

// SetDefaults enables DefaultIgnorePatterns on LoadFromPath. They load
// before any ignore file, so a negation in .gitignore can re-include them.
func (im *IgnoreManager) SetDefaults(enabled bool) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.defaults = enabled
}

// LoadFromPath resets the manager and loads the ignore files of root and
// every directory above it. Rules from ancestors apply as if written at root.
func (im *IgnoreManager) LoadFromPath(root string) error {
	im.mu.Lock()
	defer im.mu.Unlock()

	im.files = im.files[:0]
	im.cache = make(map[string]bool)

	var dirs []string
	for current := root; ; {
		dirs = append(dirs, current)
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	if im.defaults {
		defaults := &IgnoreFile{Path: "defaults"}
		for _, pattern := range DefaultIgnorePatterns {
			rule, err := parseRule(pattern, "", 0, "defaults")
			if err != nil {
				return err
			}
			defaults.Rules = append(defaults.Rules, rule)
		}
		im.files = append(im.files, defaults)
	}

	if im.global {
		if globalPath := getGlobalGitignore(); globalPath != "" {
			if f, err := im.loadIgnoreFile(globalPath, ""); err == nil {
				im.files = append(im.files, f)
			}
		}
	}

	// outermost first so rules closer to root override
	for i := len(dirs) - 1; i >= 0; i-- {
		for _, name := range IgnoreFileNames {
			path := filepath.Join(dirs[i], name)
			if info, err := os.Stat(path); err != nil || info.IsDir() {
				continue
			}
			f, err := im.loadIgnoreFile(path, "")
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", path, err)
			}
			im.files = append(im.files, f)
		}
	}
	return nil
}

// LoadDir loads the ignore files of a directory below the walk root.
// relDir is the directory's walk-relative path.
func (im *IgnoreManager) LoadDir(absDir, relDir string) error {
	relDir = filepath.ToSlash(relDir)
	if relDir == "." {
		relDir = ""
	}

	var loaded []*IgnoreFile
	for _, name := range IgnoreFileNames {
		path := filepath.Join(absDir, name)
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			continue
		}
		f, err := im.loadIgnoreFile(path, relDir)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		loaded = append(loaded, f)
	}
	if len(loaded) == 0 {
		return nil
	}

	im.mu.Lock()
	im.files = append(im.files, loaded...)
	im.cache = make(map[string]bool)
	im.mu.Unlock()
	return nil
}

// loadIgnoreFile loads and parses an ignore file
func (im *IgnoreManager) loadIgnoreFile(path, prefix string) (*IgnoreFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	ignoreFile := &IgnoreFile{
		Path:  path,
		Dir:   filepath.Dir(path),
		Rules: make([]*IgnoreRule, 0),
	}

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rule, err := parseRule(line, prefix, lineNum, path)
		if err != nil {
			continue
		}
		ignoreFile.Rules = append(ignoreFile.Rules, rule)
	}
	return ignoreFile, scanner.Err()
}

// parseRule turns one gitignore line into a doublestar rule
func parseRule(pattern, prefix string, lineNum int, source string) (*IgnoreRule, error) {
	if strings.HasPrefix(strings.TrimSpace(pattern), "#") {
		return nil, fmt.Errorf("comment lines are not rules")
	}

	rule := &IgnoreRule{
		Pattern: pattern,
		Prefix:  prefix,
		LineNum: lineNum,
		Source:  source,
	}

	if strings.HasPrefix(pattern, "!") {
		rule.Negate = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		rule.DirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		rule.Anchored = true
		pattern = pattern[1:]
	} else if strings.Contains(pattern, "/") && !strings.HasPrefix(pattern, "**/") {
		rule.Anchored = true
	}
	if pattern == "" {
		return nil, fmt.Errorf("empty pattern")
	}

	rule.Glob = pattern
	if !rule.Anchored && !strings.HasPrefix(pattern, "**/") {
		rule.Glob = "**/" + pattern
	}
	if !doublestar.ValidatePattern(rule.Glob) {
		return nil, fmt.Errorf("invalid pattern %q", rule.Pattern)
	}
	return rule, nil
}

// Matches reports whether the rule matches relPath or one of its parent
// directories
func (r *IgnoreRule) Matches(relPath string, isDir bool) bool {
	path := filepath.ToSlash(relPath)
	if r.Prefix != "" {
		if !strings.HasPrefix(path, r.Prefix+"/") {
			return false
		}
		path = path[len(r.Prefix)+1:]
	}

	parts := strings.Split(path, "/")
	for i := len(parts); i >= 1; i-- {
		dir := isDir || i < len(parts)
		if r.DirOnly && !dir {
			continue
		}
		if ok, _ := doublestar.Match(r.Glob, strings.Join(parts[:i], "/")); ok {
			return true
		}
	}
	return false
}

// ShouldIgnore determines if a walk-relative path is ignored
func (im *IgnoreManager) ShouldIgnore(relPath string, isDir bool) bool {
	cacheKey := fmt.Sprintf("%s:%t", relPath, isDir)

	im.mu.RLock()
	if !im.enabled {
		im.mu.RUnlock()
		return false
	}
	if cached, ok := im.cache[cacheKey]; ok {
		im.mu.RUnlock()
		return cached
	}
	ignored := false
	for _, ignoreFile := range im.files {
		for _, rule := range ignoreFile.Rules {
			if rule.Matches(relPath, isDir) {
				ignored = !rule.Negate
			}
		}
	}
	im.mu.RUnlock()

	im.mu.Lock()
	im.cache[cacheKey] = ignored
	im.mu.Unlock()
	return ignored
}

// AddRule adds a custom ignore rule that applies from the walk root
func (im *IgnoreManager) AddRule(pattern string) error {
	rule, err := parseRule(pattern, "", 0, "custom")
	if err != nil {
		return err
	}

	im.mu.Lock()
	defer im.mu.Unlock()
	im.files = append(im.files, &IgnoreFile{Path: "custom", Rules: []*IgnoreRule{rule}})
	im.cache = make(map[string]bool)
	return nil
}

// SetEnabled enables or disables ignore processing
func (im *IgnoreManager) SetEnabled(enabled bool) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.enabled = enabled
	im.cache = make(map[string]bool)
}

// RuleCount returns the number of loaded rules
func (im *IgnoreManager) RuleCount() int {
	im.mu.RLock()
	defer im.mu.RUnlock()

	n := 0
	for _, f := range im.files {
		n += len(f.Rules)
	}
	return n
}

// getGlobalGitignore returns the path to the global gitignore file
func getGlobalGitignore() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	candidates := []string{
		filepath.Join(home, ".config", "git", "ignore"),
		filepath.Join(home, ".gitignore_global"),
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidates = append([]string{filepath.Join(xdg, "git", "ignore")}, candidates...)
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// DefaultIgnorePatterns are dependency and build directories that never
// hold first-party documentation
var DefaultIgnorePatterns = []string{
	"node_modules/", "vendor/", "target/", "__pycache__/", "dist/", "build/",
	".venv/", "venv/", "*.min.js",
}
