package parser

import (
	"regexp"
	"strings"
)

// scopeFrame is an open declaration body while detecting
type scopeFrame struct {
	name      string
	container bool
	silent    bool
	// brace depth inside the body, or the header's indentation for
	// indentation-scoped grammars
	depth int
}

type detector struct {
	g       *LanguageGrammar
	sites   []DeclarationSite
	stack   []scopeFrame
	depth   int
	pending *scopeFrame
}

// DetectDeclarations finds declaration sites among the code-line tokens, in
// source order. Only the first line of each code token is matched.
func DetectDeclarations(tokens []Token, g *LanguageGrammar) []DeclarationSite {
	d := &detector{g: g}
	for i, tok := range tokens {
		if tok.Kind != TokenCode {
			continue
		}
		if g.IndentScoped {
			d.indentLine(i, tok)
		} else {
			d.braceLine(i, tok)
		}
	}
	return d.sites
}

func (d *detector) braceLine(i int, tok Token) {
	text, line := d.g.declarationLine(tok)
	depthBefore := d.depth

	delta, opened := d.braces(tok.Text)
	frame := d.match(i, text, line)

	if frame != nil {
		frame.depth = depthBefore + 1
		d.pending = nil
		if opened {
			d.stack = append(d.stack, *frame)
		} else if !endsStatement(d.g.codeText(tok.Text)) {
			d.pending = frame
		}
	} else if d.pending != nil {
		if opened {
			d.pending.depth = depthBefore + 1
			d.stack = append(d.stack, *d.pending)
			d.pending = nil
		} else if endsStatement(d.g.codeText(tok.Text)) {
			d.pending = nil
		}
	}

	d.depth = depthBefore + delta
	if d.depth < 0 {
		d.depth = 0
	}
	for len(d.stack) > 0 && d.stack[len(d.stack)-1].depth > d.depth {
		d.stack = d.stack[:len(d.stack)-1]
	}
}

func (d *detector) indentLine(i int, tok Token) {
	text, line := d.g.declarationLine(tok)
	indent := indentWidth(text)
	for len(d.stack) > 0 && d.stack[len(d.stack)-1].depth >= indent {
		d.stack = d.stack[:len(d.stack)-1]
	}
	if frame := d.match(i, text, line); frame != nil {
		frame.depth = indent
		d.stack = append(d.stack, *frame)
	}
}

// scope classifies the current position for pattern selection
func (d *detector) scope() Scope {
	if len(d.stack) == 0 {
		if d.depth == 0 || d.g.IndentScoped {
			return ScopeFile
		}
		return ScopeNested
	}
	top := d.stack[len(d.stack)-1]
	if !d.g.IndentScoped && d.depth != top.depth {
		return ScopeNested
	}
	switch {
	case top.container:
		return ScopeMember
	case top.silent:
		return ScopeFile
	default:
		return ScopeNested
	}
}

// parent returns the innermost enclosing container
func (d *detector) parent() string {
	for i := len(d.stack) - 1; i >= 0; i-- {
		if d.stack[i].container {
			return d.stack[i].name
		}
	}
	return ""
}

// match runs the grammar's patterns against one declaration line. It
// records a site for the first matching pattern and returns the scope the
// declaration would open.
func (d *detector) match(i int, text string, line int) *scopeFrame {
	scope := d.scope()
	parent := d.parent()

	for _, p := range d.g.Declarations {
		if p.Scopes&scope == 0 {
			continue
		}
		loc := p.Pattern.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}

		name, nameStart := "", len(text)
		if p.nameIndex >= 0 && loc[2*p.nameIndex] >= 0 {
			nameStart = loc[2*p.nameIndex]
			name = text[nameStart:loc[2*p.nameIndex+1]]
		}
		if p.Silent {
			return &scopeFrame{name: name, container: p.Container, silent: true}
		}
		if name == "" || d.g.isKeyword(name) {
			continue
		}
		if p.Constructor && name != parent {
			continue
		}

		site := DeclarationSite{
			Name:      name,
			Kind:      p.Kind,
			Signature: strings.TrimSpace(text),
			Line:      line,
			Parent:    parent,
			token:     i,
		}
		if k := strings.LastIndex(name, "::"); k >= 0 {
			site.Parent = name[:k]
			site.Name = name[k+2:]
			if site.Kind == KindFunction {
				site.Kind = KindMethod
			}
		}
		if site.Kind == KindFunction && scope == ScopeMember {
			site.Kind = KindMethod
		}
		if site.Kind == KindMethod && parent != "" && d.g.isConstructorName(site.Name) {
			site.Name = parent
		}
		site.Visibility = d.visibility(text[:nameStart], site.Name)
		d.sites = append(d.sites, site)

		if p.Container || site.Kind == KindFunction || site.Kind == KindMethod || site.Kind == KindConstant {
			return &scopeFrame{name: site.Name, container: p.Container}
		}
		return nil
	}
	return nil
}

var modifierToken = regexp.MustCompile(`[A-Za-z_]\w*(?:\([^)]*\))?`)

// visibility derives the declared access level from modifier tokens that
// appear before the name
func (d *detector) visibility(prefix, name string) Visibility {
	if d.g.ExportByCase {
		return caseVisibility(name)
	}
	for _, word := range modifierToken.FindAllString(prefix, -1) {
		if v, ok := d.g.Modifiers[strings.ReplaceAll(word, " ", "")]; ok {
			return v
		}
	}
	return VisibilityUnspecified
}

// braces counts the net brace depth change of a code span and whether it
// opens at least one brace
func (d *detector) braces(text string) (delta int, opened bool) {
	d.g.walkCode(text, func(c byte) {
		switch c {
		case '{':
			delta++
			opened = true
		case '}':
			delta--
		}
	})
	return delta, opened
}

// declarationLine returns the first line of a code token that holds code,
// skipping block comments the token starts with, and its line number
func (g *LanguageGrammar) declarationLine(tok Token) (string, int) {
	text, line := tok.Text, tok.StartLine
	indent := len(text) - len(strings.TrimLeft(text, " \t"))
	if d := g.blockOpenerAt(text, indent); d != nil {
		start := indent + len(d.Open)
		if k := strings.Index(text[start:], d.Close); k >= 0 {
			skipped := text[:start+k+len(d.Close)]
			line += strings.Count(skipped, "\n")
			text = text[start+k+len(d.Close):]
		}
	}
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[:nl]
	}
	return strings.TrimRight(text, "\r"), line
}

// endsStatement reports whether a code span ends a statement without
// opening a body
func endsStatement(code string) bool {
	code = strings.TrimSpace(code)
	return strings.HasSuffix(code, ";") || strings.HasSuffix(code, "}")
}

func indentWidth(s string) int {
	width := 0
	for _, c := range s {
		switch c {
		case ' ':
			width++
		case '\t':
			width += 4
		default:
			return width
		}
	}
	return width
}
