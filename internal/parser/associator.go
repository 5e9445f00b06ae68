package parser

import (
	"strings"
)

// commentRun is a contiguous range of comment tokens, by token index
type commentRun struct {
	first, last int
}

// maxHeaderTokens bounds the search for the end of a multi-line
// declaration header before a body docstring
const maxHeaderTokens = 32

type associator struct {
	tokens []Token
	g      *LanguageGrammar
	opts   Options
	used   map[int]bool
}

// Associate binds each declaration to the comment run that documents it.
// It returns one binding per site, in the order of sites.
func Associate(tokens []Token, sites []DeclarationSite, g *LanguageGrammar, opts Options) []DocBinding {
	return newAssociator(tokens, g, opts).bindAll(sites)
}

func newAssociator(tokens []Token, g *LanguageGrammar, opts Options) *associator {
	return &associator{tokens: tokens, g: g, opts: opts, used: make(map[int]bool)}
}

func (a *associator) bindAll(sites []DeclarationSite) []DocBinding {
	bindings := make([]DocBinding, 0, len(sites))
	for _, site := range sites {
		binding := DocBinding{Declaration: site}
		if r, ok := a.bind(site.token); ok {
			binding.Doc = a.text(r)
			binding.Source = &LineRange{
				Start: a.tokens[r.first].StartLine,
				End:   a.tokens[r.last].EndLine,
			}
		}
		bindings = append(bindings, binding)
	}
	return bindings
}

func (a *associator) bind(k int) (commentRun, bool) {
	if a.g.DocstringFollows {
		if r, ok := a.following(k); ok && a.claim(r) {
			return r, true
		}
	}
	if r, ok := a.leading(k); ok && a.claim(r) {
		return r, true
	}
	return commentRun{}, false
}

// claim marks a run as bound; a run documents at most one declaration
func (a *associator) claim(r commentRun) bool {
	if a.used[r.first] {
		return false
	}
	a.used[r.first] = true
	return true
}

// leading finds the comment run that ends just above token k
func (a *associator) leading(k int) (commentRun, bool) {
	j := k - 1
	for j >= 0 && a.isAnnotation(j) {
		j--
	}
	if j >= 0 && a.tokens[j].Kind == TokenBlank {
		j--
	}
	if j < 0 {
		return commentRun{}, false
	}

	tok := a.tokens[j]
	if tok.Inner() {
		return commentRun{}, false
	}
	var r commentRun
	switch {
	case tok.Kind == TokenCommentBlock && !tok.Block.Trailing:
		r = commentRun{first: j, last: j}
	case tok.Kind == TokenCommentLine:
		r = a.lineRun(j)
	default:
		return commentRun{}, false
	}

	// a comment directly under a statement annotates that statement
	if !a.opts.AttachAfterStatements && r.first > 0 && a.isStatement(r.first-1) {
		return commentRun{}, false
	}
	if !a.eligible(r) {
		return commentRun{}, false
	}
	return r, true
}

// lineRun extends a comment-line token upward over consecutive comment
// lines. Doc and plain lines merge; inner and outer lines do not.
func (a *associator) lineRun(last int) commentRun {
	first := last
	inner := a.tokens[last].Inner()
	for first > 0 {
		prev := a.tokens[first-1]
		if prev.Kind != TokenCommentLine || prev.Inner() != inner {
			break
		}
		first--
	}
	return commentRun{first: first, last: last}
}

// following finds a body docstring after the header that starts at token k
func (a *associator) following(k int) (commentRun, bool) {
	j, depth, closed := k, 0, false
	for n := 0; j < len(a.tokens) && n < maxHeaderTokens; n++ {
		tok := a.tokens[j]
		if tok.Kind == TokenCode {
			code := a.g.codeText(tok.Text)
			depth += strings.Count(code, "(") + strings.Count(code, "[") -
				strings.Count(code, ")") - strings.Count(code, "]")
			if depth <= 0 {
				if !strings.HasSuffix(strings.TrimSpace(code), ":") {
					return commentRun{}, false
				}
				closed = true
				break
			}
		} else if tok.Kind != TokenBlank && tok.Kind != TokenCommentLine {
			return commentRun{}, false
		}
		j++
	}
	if !closed {
		return commentRun{}, false
	}

	j++
	if j < len(a.tokens) && a.tokens[j].Kind == TokenBlank {
		j++
	}
	if j >= len(a.tokens) {
		return commentRun{}, false
	}
	tok := a.tokens[j]
	r := commentRun{first: j, last: j}
	if tok.Kind != TokenCommentBlock || !tok.Block.Trailing || !a.eligible(r) {
		return commentRun{}, false
	}
	return r, true
}

// eligible applies DocOnly to a whole run: one doc-variant line is enough
func (a *associator) eligible(r commentRun) bool {
	if !a.opts.DocOnly || !a.g.HasDocVariants() {
		return true
	}
	for i := r.first; i <= r.last; i++ {
		if a.tokens[i].Doc {
			return true
		}
	}
	return false
}

func (a *associator) isAnnotation(j int) bool {
	tok := a.tokens[j]
	return tok.Kind == TokenCode && a.g.Annotation != nil && a.g.Annotation.MatchString(tok.Text)
}

// isStatement reports whether token j is code that is not a mere separator.
// Separators are lines of bare punctuation and lines that open a body.
func (a *associator) isStatement(j int) bool {
	tok := a.tokens[j]
	if tok.Kind != TokenCode {
		return false
	}
	code := strings.TrimSpace(a.g.codeText(tok.Text))
	if code == "" || strings.Trim(code, "{}()[];,") == "" {
		return false
	}
	switch code[len(code)-1] {
	case '{', ':', '(', '[':
		return false
	}
	return true
}

// text strips comment markers from a run, keeping line order. Leading and
// trailing empty lines are dropped; the result is never nil.
func (a *associator) text(r commentRun) []string {
	lines := []string{}
	for i := r.first; i <= r.last; i++ {
		tok := a.tokens[i]
		switch tok.Kind {
		case TokenCommentLine:
			s := strings.TrimSpace(tok.Text)
			lines = append(lines, strings.TrimSpace(strings.TrimPrefix(s, tok.Marker.Prefix)))
		case TokenCommentBlock:
			lines = append(lines, blockLines(tok)...)
		}
	}

	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func blockLines(tok Token) []string {
	d := tok.Block
	body := strings.TrimSpace(tok.Text)
	body = strings.TrimPrefix(body, d.Open)
	if !tok.Unterminated {
		body = strings.TrimSuffix(body, d.Close)
	}

	raw := strings.Split(body, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if d.Gutter != "" && strings.HasPrefix(line, d.Gutter) {
			line = strings.TrimSpace(strings.TrimPrefix(line, d.Gutter))
		}
		lines = append(lines, line)
	}
	return lines
}

// fileDoc returns the file's leading comment when no declaration claimed it
func (a *associator) fileDoc() *FileDoc {
	j := 0
	for j < len(a.tokens) && a.tokens[j].Kind == TokenBlank {
		j++
	}
	if j >= len(a.tokens) {
		return nil
	}

	var r commentRun
	switch a.tokens[j].Kind {
	case TokenCommentBlock:
		r = commentRun{first: j, last: j}
	case TokenCommentLine:
		last := j
		for last+1 < len(a.tokens) && a.tokens[last+1].Kind == TokenCommentLine &&
			a.tokens[last+1].Inner() == a.tokens[j].Inner() {
			last++
		}
		r = commentRun{first: j, last: last}
	default:
		return nil
	}
	if a.used[r.first] {
		return nil
	}
	return &FileDoc{
		Doc: a.text(r),
		Source: LineRange{
			Start: a.tokens[r.first].StartLine,
			End:   a.tokens[r.last].EndLine,
		},
	}
}
