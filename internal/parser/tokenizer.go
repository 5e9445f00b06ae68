package parser

import (
	"strings"
)

// TokenKind classifies a span of source lines
type TokenKind int

const (
	TokenBlank TokenKind = iota
	TokenCode
	TokenCommentLine
	TokenCommentBlock
)

func (k TokenKind) String() string {
	switch k {
	case TokenBlank:
		return "blank-line"
	case TokenCode:
		return "code-line"
	case TokenCommentLine:
		return "comment-line"
	case TokenCommentBlock:
		return "comment-block"
	default:
		return "unknown"
	}
}

// Token is one classified span of source. Text holds the raw source
// including line terminators, so concatenating the Text of every token
// reproduces the input exactly.
type Token struct {
	Kind      TokenKind
	Text      string
	StartLine int
	EndLine   int

	// Doc marks doc-comment variants
	Doc bool
	// Marker is the line prefix of a comment-line
	Marker *CommentMarker
	// Block is the delimiter pair of a comment-block
	Block *BlockDelimiter
	// Unterminated is set on a block whose closer was never found
	Unterminated bool
}

// Inner reports whether the comment documents its enclosing item rather
// than the declaration that follows it
func (t Token) Inner() bool {
	switch {
	case t.Marker != nil:
		return t.Marker.Inner
	case t.Block != nil:
		return t.Block.Inner
	}
	return false
}

// Tokenize splits source into an ordered, lossless token sequence.
// Unterminated block comments are reported as warnings; the remainder of
// the file becomes part of the open comment.
func Tokenize(source string, g *LanguageGrammar) ([]Token, []Warning) {
	t := &tokenizer{g: g, lines: splitLines(source)}
	t.run()
	return t.tokens, t.warnings
}

type tokenizer struct {
	g        *LanguageGrammar
	lines    []string
	tokens   []Token
	warnings []Warning
}

func (t *tokenizer) run() {
	for i := 0; i < len(t.lines); {
		line := t.lines[i]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			t.emit(Token{Kind: TokenBlank}, i, i)
			i++
			continue
		}

		indent := len(line) - len(strings.TrimLeft(line, " \t"))

		if d := t.g.blockOpenerAt(line, indent); d != nil {
			endLine, endCol, closed := t.findClose(i, indent+len(d.Open), d)
			if !closed {
				t.warnings = append(t.warnings, unterminatedWarning(i+1, d.Open))
				t.emit(Token{Kind: TokenCommentBlock, Doc: d.Doc, Block: d, Unterminated: true}, i, len(t.lines)-1)
				return
			}
			if !t.g.hasCode(t.lines[endLine][endCol:]) {
				t.emit(Token{Kind: TokenCommentBlock, Doc: d.Doc, Block: d}, i, endLine)
				i = endLine + 1
				continue
			}
			// code follows the comment on its closing line
		} else if m := t.g.linePrefixAt(line[indent:]); m != nil {
			t.emit(Token{Kind: TokenCommentLine, Doc: m.Doc, Marker: m}, i, i)
			i++
			continue
		}

		i = t.code(i)
	}
}

// code emits a code-line token starting at line i. A block comment opened
// and left open by the code extends the token to the comment's closer.
func (t *tokenizer) code(i int) int {
	end := i
	open := t.g.walkCode(t.lines[i], nil)
	for open != nil {
		closed := false
		for end+1 < len(t.lines) {
			end++
			if k := strings.Index(t.lines[end], open.Close); k >= 0 {
				open = t.g.walkCode(t.lines[end][k+len(open.Close):], nil)
				closed = true
				break
			}
		}
		if !closed {
			t.warnings = append(t.warnings, unterminatedWarning(i+1, open.Open))
			break
		}
	}
	t.emit(Token{Kind: TokenCode}, i, end)
	return end + 1
}

// findClose locates the closer of a block opened on line i at column col
func (t *tokenizer) findClose(i, col int, d *BlockDelimiter) (line, endCol int, ok bool) {
	if k := strings.Index(t.lines[i][col:], d.Close); k >= 0 {
		return i, col + k + len(d.Close), true
	}
	for j := i + 1; j < len(t.lines); j++ {
		if k := strings.Index(t.lines[j], d.Close); k >= 0 {
			return j, k + len(d.Close), true
		}
	}
	return 0, 0, false
}

func (t *tokenizer) emit(tok Token, first, last int) {
	tok.Text = strings.Join(t.lines[first:last+1], "")
	tok.StartLine = first + 1
	tok.EndLine = last + 1
	t.tokens = append(t.tokens, tok)
}

// splitLines splits s after every "\n", keeping the terminators
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// blockOpenerAt returns the block delimiter opening at s[pos:], preferring
// the longest opener. A doc variant such as "/**" is not taken when it is
// really an empty plain comment ("/**/").
func (g *LanguageGrammar) blockOpenerAt(s string, pos int) *BlockDelimiter {
	rest := s[pos:]
	for i := range g.BlockComments {
		d := &g.BlockComments[i]
		if !strings.HasPrefix(rest, d.Open) {
			continue
		}
		if g.variantOf[i] && strings.HasPrefix(rest[len(d.Open)-1:], d.Close) {
			continue
		}
		return d
	}
	return nil
}

// linePrefixAt returns the line comment marker s starts with, if any
func (g *LanguageGrammar) linePrefixAt(s string) *CommentMarker {
	for i := range g.LineComments {
		m := &g.LineComments[i]
		if strings.HasPrefix(s, m.Prefix) {
			return m
		}
	}
	return nil
}

func (g *LanguageGrammar) stringDelimiterAt(s string, pos int) string {
	for _, q := range g.StringDelimiters {
		if strings.HasPrefix(s[pos:], q) {
			return q
		}
	}
	return ""
}

// hasCode reports whether s holds anything besides whitespace and comments
func (g *LanguageGrammar) hasCode(s string) bool {
	found := false
	g.walkCode(s, func(c byte) {
		if c != ' ' && c != '\t' && c != '\r' && c != '\n' {
			found = true
		}
	})
	return found
}

// walkCode calls visit for every byte of s outside comments and string
// literals. It returns the block delimiter still open at the end of s.
// Line comments end at the next newline; strings never span lines.
func (g *LanguageGrammar) walkCode(s string, visit func(c byte)) *BlockDelimiter {
	for pos := 0; pos < len(s); {
		if d := g.blockOpenerAt(s, pos); d != nil {
			start := pos + len(d.Open)
			k := strings.Index(s[start:], d.Close)
			if k < 0 {
				return d
			}
			pos = start + k + len(d.Close)
			continue
		}
		if g.linePrefixAt(s[pos:]) != nil {
			nl := strings.IndexByte(s[pos:], '\n')
			if nl < 0 {
				return nil
			}
			pos += nl
			continue
		}
		if q := g.stringDelimiterAt(s, pos); q != "" {
			pos = skipString(s, pos+len(q), q)
			continue
		}
		if visit != nil {
			visit(s[pos])
		}
		pos++
	}
	return nil
}

// skipString returns the position after the string literal whose body
// starts at pos, stopping at an unescaped quote or the end of the line
func skipString(s string, pos int, quote string) int {
	for pos < len(s) {
		switch {
		case s[pos] == '\\':
			pos += 2
		case s[pos] == '\n':
			return pos
		case strings.HasPrefix(s[pos:], quote):
			return pos + len(quote)
		default:
			pos++
		}
	}
	return len(s)
}

// codeText returns the code of s with comments and string bodies removed
func (g *LanguageGrammar) codeText(s string) string {
	var b strings.Builder
	g.walkCode(s, func(c byte) { b.WriteByte(c) })
	return b.String()
}
