// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package idl

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokDouble
	tokString
	tokPunct
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of file"
	case tokIdent:
		return "identifier"
	case tokInt:
		return "integer"
	case tokDouble:
		return "double"
	case tokString:
		return "string literal"
	default:
		return "punctuation"
	}
}

type token struct {
	kind tokenKind
	pos  Pos
	text string // identifier text, punctuation, or decoded string literal
	i    int64
	f    float64
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of file"
	case tokString:
		return strconv.Quote(t.text)
	}
	return fmt.Sprintf("%q", t.text)
}

var keywords = map[string]bool{
	"include":     true,
	"cpp_include": true,
	"namespace":   true,
	"typedef":     true,
	"const":       true,
	"enum":        true,
	"struct":      true,
	"union":       true,
	"exception":   true,
	"service":     true,
	"extends":     true,
	"throws":      true,
	"oneway":      true,
	"void":        true,
	"required":    true,
	"optional":    true,
	"true":        true,
	"false":       true,
}

const punctuation = "{}()<>[],;:=*"

type lexer struct {
	file string
	src  []byte
	off  int
	line int
	col  int
}

func newLexer(file string, src []byte) *lexer {
	return &lexer{file: file, src: src, line: 1, col: 1}
}

func (l *lexer) pos() Pos {
	return Pos{File: l.file, Line: l.line, Column: l.col}
}

func (l *lexer) errorf(pos Pos, format string, args ...any) error {
	return &SyntaxError{Kind: LexerError, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) peekByte(n int) byte {
	if l.off+n < len(l.src) {
		return l.src[l.off+n]
	}
	return 0
}

func (l *lexer) advance() byte {
	c := l.src[l.off]
	l.off++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

// skipSpace consumes whitespace and comments.
func (l *lexer) skipSpace() error {
	for l.off < len(l.src) {
		c := l.src[l.off]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance()
		case c == '#' || (c == '/' && l.peekByte(1) == '/'):
			for l.off < len(l.src) && l.src[l.off] != '\n' {
				l.advance()
			}
		case c == '/' && l.peekByte(1) == '*':
			start := l.pos()
			l.advance()
			l.advance()
			closed := false
			for l.off < len(l.src) {
				if l.src[l.off] == '*' && l.peekByte(1) == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				return l.errorf(start, "unterminated block comment")
			}
		default:
			return nil
		}
	}
	return nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '.'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func (l *lexer) next() (token, error) {
	if err := l.skipSpace(); err != nil {
		return token{}, err
	}
	pos := l.pos()
	if l.off >= len(l.src) {
		return token{kind: tokEOF, pos: pos}, nil
	}
	c := l.src[l.off]
	switch {
	case isIdentStart(c):
		start := l.off
		for l.off < len(l.src) && isIdentPart(l.src[l.off]) {
			l.advance()
		}
		text := string(l.src[start:l.off])
		if strings.HasSuffix(text, ".") || strings.Contains(text, "..") {
			return token{}, l.errorf(pos, "malformed identifier %q", text)
		}
		return token{kind: tokIdent, pos: pos, text: text}, nil
	case isDigit(c) || ((c == '+' || c == '-') && (isDigit(l.peekByte(1)) || l.peekByte(1) == '.')):
		return l.number(pos)
	case c == '"' || c == '\'':
		return l.literal(pos)
	case strings.IndexByte(punctuation, c) >= 0:
		l.advance()
		return token{kind: tokPunct, pos: pos, text: string(c)}, nil
	}
	return token{}, l.errorf(pos, "unexpected character %q", c)
}

func (l *lexer) number(pos Pos) (token, error) {
	start := l.off
	if c := l.src[l.off]; c == '+' || c == '-' {
		l.advance()
	}
	if l.src[l.off] == '0' && (l.peekByte(1) == 'x' || l.peekByte(1) == 'X') {
		l.advance()
		l.advance()
		digits := l.off
		for l.off < len(l.src) && isHexDigit(l.src[l.off]) {
			l.advance()
		}
		if digits == l.off {
			return token{}, l.errorf(pos, "malformed hex literal")
		}
		text := string(l.src[start:l.off])
		neg := strings.HasPrefix(text, "-")
		hex := strings.TrimLeft(text, "+-")[2:]
		u, err := strconv.ParseUint(hex, 16, 64)
		if err != nil || (!neg && u > 1<<63-1) || (neg && u > 1<<63) {
			return token{}, l.errorf(pos, "integer literal %s out of range", text)
		}
		v := int64(u)
		if neg {
			v = -v
		}
		return token{kind: tokInt, pos: pos, text: text, i: v}, nil
	}
	isFloat := false
	for l.off < len(l.src) && isDigit(l.src[l.off]) {
		l.advance()
	}
	if l.off < len(l.src) && l.src[l.off] == '.' {
		isFloat = true
		l.advance()
		for l.off < len(l.src) && isDigit(l.src[l.off]) {
			l.advance()
		}
	}
	if l.off < len(l.src) && (l.src[l.off] == 'e' || l.src[l.off] == 'E') {
		isFloat = true
		l.advance()
		if l.off < len(l.src) && (l.src[l.off] == '+' || l.src[l.off] == '-') {
			l.advance()
		}
		digits := l.off
		for l.off < len(l.src) && isDigit(l.src[l.off]) {
			l.advance()
		}
		if digits == l.off {
			return token{}, l.errorf(pos, "malformed exponent")
		}
	}
	if l.off < len(l.src) && isIdentStart(l.src[l.off]) {
		return token{}, l.errorf(pos, "malformed number %q", string(l.src[start:l.off+1]))
	}
	text := string(l.src[start:l.off])
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return token{}, l.errorf(pos, "malformed double literal %s", text)
		}
		return token{kind: tokDouble, pos: pos, text: text, f: f}, nil
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return token{}, l.errorf(pos, "integer literal %s out of range", text)
	}
	return token{kind: tokInt, pos: pos, text: text, i: v}, nil
}

func (l *lexer) literal(pos Pos) (token, error) {
	quote := l.advance()
	var sb strings.Builder
	for {
		if l.off >= len(l.src) {
			return token{}, l.errorf(pos, "unterminated string literal")
		}
		c := l.advance()
		if c == quote {
			break
		}
		if c == '\n' {
			return token{}, l.errorf(pos, "newline in string literal")
		}
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		if l.off >= len(l.src) {
			return token{}, l.errorf(pos, "unterminated string literal")
		}
		escPos := l.pos()
		switch e := l.advance(); e {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '\\', '"', '\'':
			sb.WriteByte(e)
		default:
			return token{}, l.errorf(escPos, "unknown escape sequence \\%c", e)
		}
	}
	return token{kind: tokString, pos: pos, text: sb.String()}, nil
}
