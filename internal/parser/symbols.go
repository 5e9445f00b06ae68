package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DeclarationKind represents the kind of a documentable declaration
type DeclarationKind string

const (
	KindFunction  DeclarationKind = "function"
	KindMethod    DeclarationKind = "method"
	KindClass     DeclarationKind = "class"
	KindInterface DeclarationKind = "interface"
	KindStruct    DeclarationKind = "struct"
	KindEnum      DeclarationKind = "enum"
	KindField     DeclarationKind = "field"
	KindConstant  DeclarationKind = "constant"
)

// AllKinds lists every declaration kind in a stable order
var AllKinds = []DeclarationKind{
	KindFunction, KindMethod, KindClass, KindInterface,
	KindStruct, KindEnum, KindField, KindConstant,
}

// IsContainer reports whether declarations of this kind hold member declarations
func (k DeclarationKind) IsContainer() bool {
	switch k {
	case KindClass, KindInterface, KindStruct, KindEnum:
		return true
	}
	return false
}

// Valid reports whether k is one of the known kinds
func (k DeclarationKind) Valid() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Visibility is the access level of a declaration as written in the source
type Visibility string

const (
	VisibilityPublic      Visibility = "public"
	VisibilityPrivate     Visibility = "private"
	VisibilityExported    Visibility = "exported"
	VisibilityInternal    Visibility = "internal"
	VisibilityUnspecified Visibility = "unspecified"
)

// Valid reports whether v is one of the known visibilities
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityExported, VisibilityInternal, VisibilityUnspecified:
		return true
	}
	return false
}

// LineRange is an inclusive, 1-based range of source lines
type LineRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// DeclarationSite is a recognized declaration in a source file
type DeclarationSite struct {
	Name       string          `json:"name" yaml:"name"`
	Kind       DeclarationKind `json:"kind" yaml:"kind"`
	Visibility Visibility      `json:"visibility" yaml:"visibility"`
	Signature  string          `json:"signature" yaml:"signature"`
	Line       int             `json:"line" yaml:"line"`
	Parent     string          `json:"parent,omitempty" yaml:"parent,omitempty"`

	// index of the declaring token in the token stream
	token int
}

// DocBinding associates a declaration with the comment that documents it.
// Doc is nil when the declaration is undocumented; a documented declaration
// whose comment holds no text has a non-nil, empty Doc.
type DocBinding struct {
	Declaration DeclarationSite `json:"declaration" yaml:"declaration"`
	Doc         []string        `json:"doc" yaml:"doc"`
	Source      *LineRange      `json:"source_lines,omitempty" yaml:"source_lines,omitempty"`
}

// Documented reports whether a comment was bound to the declaration
func (b DocBinding) Documented() bool {
	return b.Doc != nil
}

// Text returns the documentation joined by newlines
func (b DocBinding) Text() string {
	return strings.Join(b.Doc, "\n")
}

// FileDoc is the leading comment of a file that documents no declaration
type FileDoc struct {
	Doc    []string  `json:"doc" yaml:"doc"`
	Source LineRange `json:"source_lines" yaml:"source_lines"`
}

// Result is the outcome of extracting one file
type Result struct {
	Language string       `json:"language" yaml:"language"`
	FileDoc  *FileDoc     `json:"file_doc,omitempty" yaml:"file_doc,omitempty"`
	Bindings []DocBinding `json:"bindings" yaml:"bindings"`
	Warnings []Warning    `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Documented counts the bindings that carry documentation
func (r *Result) Documented() int {
	n := 0
	for _, b := range r.Bindings {
		if b.Documented() {
			n++
		}
	}
	return n
}

// ResolveVisibility applies the language's default to declarations whose
// visibility is unspecified in the source. Extraction itself never does this.
func ResolveVisibility(g *LanguageGrammar, site DeclarationSite) Visibility {
	if site.Visibility != VisibilityUnspecified && site.Visibility != "" {
		return site.Visibility
	}
	if g == nil {
		return VisibilityUnspecified
	}
	if g.PrivatePrefix != "" && strings.HasPrefix(site.Name, g.PrivatePrefix) {
		return VisibilityPrivate
	}
	if site.Parent != "" && g.MemberVisibility != "" {
		return g.MemberVisibility
	}
	if g.DefaultVisibility != "" {
		return g.DefaultVisibility
	}
	return VisibilityUnspecified
}

// caseVisibility implements the exported-by-capitalization rule
func caseVisibility(name string) Visibility {
	r, _ := utf8.DecodeRuneInString(name)
	if unicode.IsUpper(r) {
		return VisibilityExported
	}
	return VisibilityInternal
}
