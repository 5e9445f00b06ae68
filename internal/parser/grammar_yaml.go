package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// GrammarFile is the YAML document that defines custom languages
type GrammarFile struct {
	Languages []GrammarSpec `yaml:"languages" validate:"required,min=1,dive"`
}

// GrammarSpec is the YAML form of a LanguageGrammar
type GrammarSpec struct {
	Name              string                `yaml:"name" validate:"required"`
	Aliases           []string              `yaml:"aliases" validate:"dive,required"`
	Extensions        []string              `yaml:"extensions" validate:"dive,required"`
	LineComments      []LineCommentSpec     `yaml:"line_comments" validate:"required_without=BlockComments,dive"`
	BlockComments     []BlockCommentSpec    `yaml:"block_comments" validate:"required_without=LineComments,dive"`
	Strings           []string              `yaml:"strings" validate:"dive,required"`
	Declarations      []DeclarationSpec     `yaml:"declarations" validate:"required,min=1,dive"`
	Modifiers         map[string]Visibility `yaml:"modifiers" validate:"dive,keys,required,endkeys,oneof=public private exported internal unspecified"`
	Keywords          []string              `yaml:"keywords"`
	Annotation        string                `yaml:"annotation"`
	ConstructorNames  []string              `yaml:"constructor_names"`
	ExportByCase      bool                  `yaml:"export_by_case"`
	IndentScoped      bool                  `yaml:"indent_scoped"`
	DocstringFollows  bool                  `yaml:"docstring_follows"`
	DefaultVisibility Visibility            `yaml:"default_visibility" validate:"omitempty,oneof=public private exported internal unspecified"`
	MemberVisibility  Visibility            `yaml:"member_visibility" validate:"omitempty,oneof=public private exported internal unspecified"`
	PrivatePrefix     string                `yaml:"private_prefix"`
}

// LineCommentSpec is the YAML form of a CommentMarker
type LineCommentSpec struct {
	Prefix string `yaml:"prefix" validate:"required"`
	Doc    bool   `yaml:"doc"`
	Inner  bool   `yaml:"inner"`
}

// BlockCommentSpec is the YAML form of a BlockDelimiter
type BlockCommentSpec struct {
	Open     string `yaml:"open" validate:"required"`
	Close    string `yaml:"close" validate:"required"`
	Doc      bool   `yaml:"doc"`
	Trailing bool   `yaml:"trailing"`
	Inner    bool   `yaml:"inner"`
	Gutter   string `yaml:"gutter"`
}

// DeclarationSpec is the YAML form of a DeclPattern
type DeclarationSpec struct {
	Kind        DeclarationKind `yaml:"kind" validate:"omitempty,oneof=function method class interface struct enum field constant"`
	Pattern     string          `yaml:"pattern" validate:"required"`
	Priority    int             `yaml:"priority"`
	Scopes      []string        `yaml:"scopes" validate:"dive,oneof=file member nested any"`
	Container   bool            `yaml:"container"`
	Silent      bool            `yaml:"silent"`
	Constructor bool            `yaml:"constructor"`
}

var grammarValidator = validator.New()

// LoadGrammarFile reads custom grammars from a YAML file
func LoadGrammarFile(path string) ([]*LanguageGrammar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read grammar file %s: %w", path, err)
	}
	grammars, err := ParseGrammars(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("grammar file %s: %w", path, err)
	}
	return grammars, nil
}

// ParseGrammars decodes and validates a YAML grammar document
func ParseGrammars(r io.Reader) ([]*LanguageGrammar, error) {
	var file GrammarFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, NewGrammarError("", "grammar document is empty", nil)
		}
		return nil, NewGrammarError("", "failed to decode grammar document", err)
	}

	if err := grammarValidator.Struct(file); err != nil {
		return nil, NewGrammarError("", "grammar document failed validation", err)
	}

	grammars := make([]*LanguageGrammar, 0, len(file.Languages))
	for _, gs := range file.Languages {
		g, err := gs.Grammar()
		if err != nil {
			return nil, err
		}
		grammars = append(grammars, g)
	}
	return grammars, nil
}

// Grammar compiles the description into a LanguageGrammar
func (s GrammarSpec) Grammar() (*LanguageGrammar, error) {
	g := &LanguageGrammar{
		Name:              s.Name,
		Aliases:           s.Aliases,
		Extensions:        s.Extensions,
		StringDelimiters:  s.Strings,
		Modifiers:         s.Modifiers,
		Keywords:          s.Keywords,
		ConstructorNames:  s.ConstructorNames,
		ExportByCase:      s.ExportByCase,
		IndentScoped:      s.IndentScoped,
		DocstringFollows:  s.DocstringFollows,
		DefaultVisibility: s.DefaultVisibility,
		MemberVisibility:  s.MemberVisibility,
		PrivatePrefix:     s.PrivatePrefix,
	}

	for _, lc := range s.LineComments {
		g.LineComments = append(g.LineComments, CommentMarker{Prefix: lc.Prefix, Doc: lc.Doc, Inner: lc.Inner})
	}
	for _, bc := range s.BlockComments {
		g.BlockComments = append(g.BlockComments, BlockDelimiter{
			Open: bc.Open, Close: bc.Close, Doc: bc.Doc, Trailing: bc.Trailing, Inner: bc.Inner, Gutter: bc.Gutter,
		})
	}

	if s.Annotation != "" {
		re, err := regexp.Compile(s.Annotation)
		if err != nil {
			return nil, NewGrammarError(s.Name, "invalid annotation pattern", err)
		}
		g.Annotation = re
	}

	for _, ds := range s.Declarations {
		re, err := regexp.Compile(ds.Pattern)
		if err != nil {
			return nil, NewGrammarError(s.Name, fmt.Sprintf("invalid declaration pattern %q", ds.Pattern), err)
		}
		g.Declarations = append(g.Declarations, DeclPattern{
			Kind:        ds.Kind,
			Pattern:     re,
			Priority:    ds.Priority,
			Scopes:      parseScopes(ds.Scopes),
			Container:   ds.Container,
			Silent:      ds.Silent,
			Constructor: ds.Constructor,
		})
	}
	return g, nil
}

func parseScopes(names []string) Scope {
	var scope Scope
	for _, name := range names {
		switch name {
		case "file":
			scope |= ScopeFile
		case "member":
			scope |= ScopeMember
		case "nested":
			scope |= ScopeNested
		case "any":
			scope |= ScopeAny
		}
	}
	return scope
}
