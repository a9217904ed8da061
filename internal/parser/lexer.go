package parser

import "fmt"

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokTypeVar // 'a
	tokArrow   // ->
	tokStar    // *
	tokLParen  // (
	tokRParen  // )
	tokLBrace  // {
	tokRBrace  // }
	tokSemi    // ;
	tokColon   // :
	tokEquals  // =
	tokPipe    // |
)

type token struct {
	kind tokenKind
	text string
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of declaration"
	case tokIdent, tokTypeVar:
		return fmt.Sprintf("'%s'", t.text)
	}
	return fmt.Sprintf("'%s'", t.text)
}

// lexer tokenizes a single declaration that has already been joined
// into one line and stripped of comments.
type lexer struct {
	input string
	pos   int
	toks  []token
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

// lexDecl splits a declaration into tokens. The only error case is an
// unexpected character.
func lexDecl(input string) ([]token, error) {
	l := &lexer{input: input}
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case c == ' ' || c == '\t':
			l.pos++
		case c == '-' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '>':
			l.emit(tokArrow, "->")
			l.pos += 2
		case c == '*':
			l.emit(tokStar, "*")
			l.pos++
		case c == '(':
			l.emit(tokLParen, "(")
			l.pos++
		case c == ')':
			l.emit(tokRParen, ")")
			l.pos++
		case c == '{':
			l.emit(tokLBrace, "{")
			l.pos++
		case c == '}':
			l.emit(tokRBrace, "}")
			l.pos++
		case c == ';':
			l.emit(tokSemi, ";")
			l.pos++
		case c == ':':
			l.emit(tokColon, ":")
			l.pos++
		case c == '=':
			l.emit(tokEquals, "=")
			l.pos++
		case c == '|':
			l.emit(tokPipe, "|")
			l.pos++
		case c == '\'':
			start := l.pos
			l.pos++
			for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
				l.pos++
			}
			if l.pos == start+1 {
				return nil, fmt.Errorf("expected type variable name after '")
			}
			l.emit(tokTypeVar, l.input[start+1:l.pos])
		case isIdentStart(c):
			start := l.pos
			for l.pos < len(l.input) && (isIdentPart(l.input[l.pos]) || l.input[l.pos] == '\'') {
				l.pos++
			}
			l.emit(tokIdent, l.input[start:l.pos])
		default:
			return nil, fmt.Errorf("unexpected character %q", string(c))
		}
	}
	l.emit(tokEOF, "")
	return l.toks, nil
}

func (l *lexer) emit(kind tokenKind, text string) {
	l.toks = append(l.toks, token{kind: kind, text: text})
}

// tokens is a cursor over a lexed declaration.
type tokens struct {
	toks []token
	pos  int
}

func (t *tokens) peek() token { return t.toks[t.pos] }

func (t *tokens) next() token {
	tok := t.toks[t.pos]
	if tok.kind != tokEOF {
		t.pos++
	}
	return tok
}

func (t *tokens) accept(kind tokenKind) (token, bool) {
	if t.toks[t.pos].kind == kind {
		return t.next(), true
	}
	return token{}, false
}
