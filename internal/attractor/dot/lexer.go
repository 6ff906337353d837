package dot

import (
	"fmt"
	"strings"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenIdent
	tokenString
	tokenSymbol
)

type token struct {
	typ tokenType
	lit string
	pos int
}

// stripComments removes `// line` and `/* block */` comments from src,
// leaving quoted strings untouched. Block comments do not nest; an
// unterminated block comment is a hard error.
func stripComments(src []byte) ([]byte, error) {
	var out strings.Builder
	i := 0
	n := len(src)
	for i < n {
		c := src[i]
		switch {
		case c == '"':
			start := i
			i++
			for i < n && src[i] != '"' {
				if src[i] == '\\' && i+1 < n {
					i++
				}
				i++
			}
			if i >= n {
				return nil, fmt.Errorf("dot parse: unterminated string starting at %d", start)
			}
			i++ // consume closing quote
			out.Write(src[start:i])
		case c == '/' && i+1 < n && src[i+1] == '/':
			for i < n && src[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && src[i+1] == '*':
			start := i
			i += 2
			closed := false
			for i+1 < n {
				if src[i] == '*' && src[i+1] == '/' {
					i += 2
					closed = true
					break
				}
				i++
			}
			if !closed {
				return nil, fmt.Errorf("dot parse: unterminated block comment starting at %d", start)
			}
		default:
			out.WriteByte(c)
			i++
		}
	}
	return []byte(out.String()), nil
}

type lexer struct {
	src []byte
	pos int
}

func newLexer(src []byte) *lexer {
	return &lexer{src: src}
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '-' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isIdentCont(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case ' ', '\t', '\r', '\n':
			l.pos++
		default:
			return
		}
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	start := l.pos
	if l.pos >= len(l.src) {
		return token{typ: tokenEOF, pos: start}, nil
	}
	c := l.src[l.pos]

	if c == '"' {
		return l.lexString()
	}

	if c == '-' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '>' {
		l.pos += 2
		return token{typ: tokenSymbol, lit: "->", pos: start}, nil
	}

	switch c {
	case '{', '}', '[', ']', '=', ',', ';', '.', '(', ')':
		l.pos++
		return token{typ: tokenSymbol, lit: string(c), pos: start}, nil
	}

	if isIdentStart(c) {
		j := l.pos + 1
		for j < len(l.src) && isIdentCont(l.src[j]) {
			j++
		}
		lit := string(l.src[l.pos:j])
		l.pos = j
		return token{typ: tokenIdent, lit: lit, pos: start}, nil
	}

	return token{}, fmt.Errorf("dot parse: unexpected character %q at %d", c, start)
}

func (l *lexer) lexString() (token, error) {
	start := l.pos
	l.pos++ // consume opening quote
	var b strings.Builder
	for l.pos < len(l.src) && l.src[l.pos] != '"' {
		c := l.src[l.pos]
		if c == '\\' && l.pos+1 < len(l.src) {
			switch l.src[l.pos+1] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			default:
				b.WriteByte(l.src[l.pos+1])
			}
			l.pos += 2
			continue
		}
		b.WriteByte(c)
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{}, fmt.Errorf("dot parse: unterminated string starting at %d", start)
	}
	l.pos++ // consume closing quote
	return token{typ: tokenString, lit: b.String(), pos: start}, nil
}
