package parser

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// CommentMarker is a line-comment prefix such as "//" or "#". Inner
// markers document the enclosing item (Rust "//!"), so they only ever
// become the file doc.
type CommentMarker struct {
	Prefix string
	Doc    bool
	Inner  bool
}

// BlockDelimiter is a block-comment open/close pair such as "/*" and "*/".
// Trailing delimiters document the declaration they follow (Python
// docstrings) and never count as a leading doc comment. Gutter is the
// decoration repeated at the start of inner lines, usually "*".
type BlockDelimiter struct {
	Open     string
	Close    string
	Doc      bool
	Trailing bool
	Inner    bool
	Gutter   string
}

// Scope says where in a file a declaration pattern may match
type Scope uint8

const (
	// ScopeFile is file level, or directly inside a namespace-like block
	ScopeFile Scope = 1 << iota
	// ScopeMember is directly inside a class, struct, interface or enum body
	ScopeMember
	// ScopeNested is inside a function body or any unrecognized block
	ScopeNested

	ScopeDeclared = ScopeFile | ScopeMember
	ScopeAny      = ScopeFile | ScopeMember | ScopeNested
)

// DeclPattern recognizes one declaration form on the first line of a declaration
type DeclPattern struct {
	Kind     DeclarationKind
	Pattern  *regexp.Regexp
	Priority int
	Scopes   Scope

	// Container patterns open a scope whose direct members are reported with
	// this declaration as their parent.
	Container bool
	// Silent patterns open a scope but produce no declaration (namespaces,
	// impl blocks).
	Silent bool
	// Constructor patterns only match when the captured name equals the
	// enclosing container's name.
	Constructor bool

	nameIndex int
}

// LanguageGrammar is the comment and declaration syntax of one language
type LanguageGrammar struct {
	Name       string
	Aliases    []string
	Extensions []string

	LineComments     []CommentMarker
	BlockComments    []BlockDelimiter
	StringDelimiters []string

	Declarations []DeclPattern
	// Modifiers maps modifier tokens to the visibility they declare
	Modifiers map[string]Visibility
	// Keywords are identifiers that are never declaration names
	Keywords []string
	// Annotation matches decorator or attribute lines that may sit between
	// a doc comment and its declaration
	Annotation *regexp.Regexp
	// ConstructorNames are method names renamed to the enclosing class name
	ConstructorNames []string

	ExportByCase     bool
	IndentScoped     bool
	DocstringFollows bool

	// Defaults used by ResolveVisibility only
	DefaultVisibility Visibility
	MemberVisibility  Visibility
	PrivatePrefix     string

	keywords  map[string]struct{}
	hasDocs   bool
	variantOf map[int]bool
}

// HasDocVariants reports whether the grammar distinguishes doc comments from
// plain comments. Languages without doc variants treat every comment as doc.
func (g *LanguageGrammar) HasDocVariants() bool {
	return g.hasDocs
}

// prepare validates the grammar and precomputes lookup tables. Patterns are
// ordered by priority, then by specificity (longer expression first).
func (g *LanguageGrammar) prepare() error {
	if g.Name == "" {
		return NewGrammarError("", "grammar has no name", nil)
	}
	if len(g.LineComments) == 0 && len(g.BlockComments) == 0 {
		return NewGrammarError(g.Name, "grammar defines no comment syntax", nil)
	}

	g.LineComments = append([]CommentMarker(nil), g.LineComments...)
	g.BlockComments = append([]BlockDelimiter(nil), g.BlockComments...)
	g.StringDelimiters = append([]string(nil), g.StringDelimiters...)
	g.Declarations = append([]DeclPattern(nil), g.Declarations...)

	sort.SliceStable(g.LineComments, func(i, j int) bool {
		return len(g.LineComments[i].Prefix) > len(g.LineComments[j].Prefix)
	})
	sort.SliceStable(g.BlockComments, func(i, j int) bool {
		return len(g.BlockComments[i].Open) > len(g.BlockComments[j].Open)
	})
	sort.SliceStable(g.StringDelimiters, func(i, j int) bool {
		return len(g.StringDelimiters[i]) > len(g.StringDelimiters[j])
	})

	g.hasDocs = false
	for _, m := range g.LineComments {
		if m.Prefix == "" {
			return NewGrammarError(g.Name, "empty line comment prefix", nil)
		}
		g.hasDocs = g.hasDocs || m.Doc
	}
	g.variantOf = make(map[int]bool)
	for i, d := range g.BlockComments {
		if d.Open == "" || d.Close == "" {
			return NewGrammarError(g.Name, "block comment needs open and close delimiters", nil)
		}
		g.hasDocs = g.hasDocs || d.Doc
		for j, other := range g.BlockComments {
			if i != j && len(other.Open) < len(d.Open) && strings.HasPrefix(d.Open, other.Open) {
				g.variantOf[i] = true
			}
		}
	}

	for i := range g.Declarations {
		p := &g.Declarations[i]
		if p.Pattern == nil {
			return NewGrammarError(g.Name, fmt.Sprintf("declaration pattern %d has no expression", i), nil)
		}
		if !p.Silent && !p.Kind.Valid() {
			return NewGrammarError(g.Name, fmt.Sprintf("unknown declaration kind %q", p.Kind), nil)
		}
		p.nameIndex = p.Pattern.SubexpIndex("name")
		if p.nameIndex < 0 && !p.Silent {
			return NewGrammarError(g.Name, fmt.Sprintf("pattern %q has no (?P<name>...) group", p.Pattern), nil)
		}
		if p.Scopes == 0 {
			p.Scopes = ScopeDeclared
		}
	}
	sort.SliceStable(g.Declarations, func(i, j int) bool {
		a, b := g.Declarations[i], g.Declarations[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return len(a.Pattern.String()) > len(b.Pattern.String())
	})

	g.keywords = make(map[string]struct{}, len(g.Keywords))
	for _, kw := range g.Keywords {
		g.keywords[kw] = struct{}{}
	}
	return nil
}

func (g *LanguageGrammar) isKeyword(name string) bool {
	_, ok := g.keywords[name]
	return ok
}

func (g *LanguageGrammar) isConstructorName(name string) bool {
	for _, n := range g.ConstructorNames {
		if n == name {
			return true
		}
	}
	return false
}

// LanguageRegistry maps language tags and file extensions to grammars.
// A registry is immutable once built.
type LanguageRegistry struct {
	grammars   map[string]*LanguageGrammar
	tags       map[string]*LanguageGrammar
	extensions map[string]*LanguageGrammar
	names      []string
}

var (
	defaultRegistry     *LanguageRegistry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the registry of built-in grammars
func DefaultRegistry() *LanguageRegistry {
	defaultRegistryOnce.Do(func() {
		lr, err := NewLanguageRegistry()
		if err != nil {
			panic(fmt.Sprintf("built-in grammars are invalid: %v", err))
		}
		defaultRegistry = lr
	})
	return defaultRegistry
}

// NewLanguageRegistry creates a registry holding the built-in grammars plus
// any extra grammars. An extra grammar replaces a built-in of the same name.
func NewLanguageRegistry(extra ...*LanguageGrammar) (*LanguageRegistry, error) {
	lr := &LanguageRegistry{
		grammars:   make(map[string]*LanguageGrammar),
		tags:       make(map[string]*LanguageGrammar),
		extensions: make(map[string]*LanguageGrammar),
	}

	all := append(builtinGrammars(), extra...)
	for _, g := range all {
		if err := lr.register(g); err != nil {
			return nil, err
		}
	}

	for name := range lr.grammars {
		lr.names = append(lr.names, name)
	}
	sort.Strings(lr.names)
	return lr, nil
}

func (lr *LanguageRegistry) register(g *LanguageGrammar) error {
	if err := g.prepare(); err != nil {
		return err
	}

	name := strings.ToLower(g.Name)
	if old, ok := lr.grammars[name]; ok {
		for tag, owner := range lr.tags {
			if owner == old {
				delete(lr.tags, tag)
			}
		}
		for ext, owner := range lr.extensions {
			if owner == old {
				delete(lr.extensions, ext)
			}
		}
	}
	lr.grammars[name] = g

	lr.tags[name] = g
	for _, alias := range g.Aliases {
		lr.tags[strings.ToLower(alias)] = g
	}
	for _, ext := range g.Extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		lr.extensions[ext] = g
	}
	return nil
}

// Lookup returns the grammar for a language name or alias
func (lr *LanguageRegistry) Lookup(tag string) (*LanguageGrammar, error) {
	g, ok := lr.tags[strings.ToLower(strings.TrimSpace(tag))]
	if !ok {
		return nil, NewUnsupportedLanguageError(tag)
	}
	return g, nil
}

// IsSupported reports whether tag names a registered grammar
func (lr *LanguageRegistry) IsSupported(tag string) bool {
	_, err := lr.Lookup(tag)
	return err == nil
}

// GetSupportedLanguages returns the canonical names of all grammars, sorted
func (lr *LanguageRegistry) GetSupportedLanguages() []string {
	return append([]string(nil), lr.names...)
}

// GetLanguageForFile determines the language of a file from its extension.
// It returns an empty string for unknown extensions.
func (lr *LanguageRegistry) GetLanguageForFile(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	if g, ok := lr.extensions[ext]; ok {
		return g.Name
	}
	return ""
}

// LanguageFeatures describes what a grammar recognizes
type LanguageFeatures struct {
	Language         string            `json:"language" yaml:"language"`
	Aliases          []string          `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Extensions       []string          `json:"extensions" yaml:"extensions"`
	LineComments     []string          `json:"line_comments,omitempty" yaml:"line_comments,omitempty"`
	BlockComments    []string          `json:"block_comments,omitempty" yaml:"block_comments,omitempty"`
	DocVariants      []string          `json:"doc_variants,omitempty" yaml:"doc_variants,omitempty"`
	Kinds            []DeclarationKind `json:"kinds" yaml:"kinds"`
	DocstringFollows bool              `json:"docstring_follows,omitempty" yaml:"docstring_follows,omitempty"`
}

// GetLanguageFeatures describes every registered grammar
func (lr *LanguageRegistry) GetLanguageFeatures() []LanguageFeatures {
	features := make([]LanguageFeatures, 0, len(lr.names))
	for _, name := range lr.names {
		g := lr.grammars[name]
		f := LanguageFeatures{
			Language:         g.Name,
			Aliases:          g.Aliases,
			Extensions:       g.Extensions,
			DocstringFollows: g.DocstringFollows,
		}
		for _, m := range g.LineComments {
			f.LineComments = append(f.LineComments, m.Prefix)
			if m.Doc {
				f.DocVariants = append(f.DocVariants, m.Prefix)
			}
		}
		for _, d := range g.BlockComments {
			pair := d.Open + " " + d.Close
			f.BlockComments = append(f.BlockComments, pair)
			if d.Doc {
				f.DocVariants = append(f.DocVariants, pair)
			}
		}
		seen := make(map[DeclarationKind]bool)
		for _, p := range g.Declarations {
			if !p.Silent && !seen[p.Kind] {
				seen[p.Kind] = true
			}
		}
		if len(seen) > 0 {
			seen[KindMethod] = seen[KindMethod] || seen[KindFunction]
		}
		for _, k := range AllKinds {
			if seen[k] {
				f.Kinds = append(f.Kinds, k)
			}
		}
		features = append(features, f)
	}
	return features
}
