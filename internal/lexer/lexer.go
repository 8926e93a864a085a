// Copyright 2024 cc64 Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package lexer turns a byte buffer into a stream of tokens.
package lexer

import (
	"fmt"

	"github.com/ajroetker/cc64/internal/diag"
	"github.com/ajroetker/cc64/internal/token"
)

// Lexer holds our object-state: a byte cursor and a one-byte lookahead.
type Lexer struct {
	file    diag.FileID
	src     []byte
	pos     int // current byte position
	readPos int // next byte position
	ch      byte
	line    int
	col     int
}

// New returns a Lexer scanning src, attributing every token to file.
func New(file diag.FileID, src []byte) *Lexer {
	l := &Lexer{file: file, src: src, line: 1, col: 0}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.src) {
		l.ch = 0
	} else {
		l.ch = l.src[l.readPos]
	}
	if l.pos < len(l.src) && l.src[l.pos] == '\n' {
		l.line++
		l.col = 0
	}
	l.pos = l.readPos
	l.readPos++
	l.col++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.src) {
		return 0
	}
	return l.src[l.readPos]
}

func (l *Lexer) pos2() diag.Position {
	return diag.Position{File: l.file, Line: l.line, Column: l.col}
}

// LexError is returned for an unknown byte or an unterminated string,
// character literal, or block comment.
type LexError struct {
	Pos     diag.Position
	Message string
}

func (e *LexError) Error() string { return e.Message }

func (l *Lexer) errorf(pos diag.Position, format string, args ...any) error {
	return &LexError{Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// AsDiag converts a *LexError into a *diag.Error in CategoryLex.
func AsDiag(err error) *diag.Error {
	le, ok := err.(*LexError)
	if !ok {
		return nil
	}
	return diag.New(diag.CategoryLex, le.Pos, "%s", le.Message)
}

// Tokenize scans the entire input and returns the token stream, always
// terminated by a single token.EOF. It fails fast: the first LexError halts
// scanning and is returned instead of a partial token list.
func Tokenize(file diag.FileID, src []byte) ([]token.Token, error) {
	l := New(file, src)
	var toks []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks, nil
		}
	}
}

// Next scans and returns the next token, skipping whitespace and comments.
func (l *Lexer) Next() (token.Token, error) {
	if err := l.skipTrivia(); err != nil {
		return token.Token{}, err
	}

	pos := l.pos2()

	if l.ch == 0 {
		return token.Token{Kind: token.EOF, Pos: pos}, nil
	}

	switch {
	case isIdentStart(l.ch):
		lit := l.readIdentifier()
		if kw, ok := token.Lookup(lit); ok {
			return token.Token{Kind: kw, Lexeme: lit, Pos: pos}, nil
		}
		return token.Token{Kind: token.IDENT, Lexeme: lit, Pos: pos}, nil
	case isDigit(l.ch):
		return l.readNumber(pos)
	case l.ch == '\'':
		return l.readCharLiteral(pos)
	case l.ch == '"':
		return l.readStringLiteral(pos)
	}

	return l.readPunct(pos)
}

func (l *Lexer) skipTrivia() error {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n':
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			start := l.pos2()
			l.readChar()
			l.readChar()
			closed := false
			for l.ch != 0 {
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar()
					l.readChar()
					closed = true
					break
				}
				l.readChar()
			}
			if !closed {
				return l.errorf(start, "unterminated block comment")
			}
		default:
			return nil
		}
	}
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentCont(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func isOctDigit(ch byte) bool { return ch >= '0' && ch <= '7' }

func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isIdentCont(l.ch) {
		l.readChar()
	}
	return string(l.src[start:l.pos])
}

// readNumber parses decimal, 0x-hex, and leading-zero octal integer
// literals into a 64-bit signed value, recording both the value and the
// original textual form.
func (l *Lexer) readNumber(pos diag.Position) (token.Token, error) {
	start := l.pos
	base := 10
	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		base = 16
		l.readChar()
		l.readChar()
		for isHexDigit(l.ch) {
			l.readChar()
		}
	} else if l.ch == '0' && isOctDigit(l.peekChar()) {
		base = 8
		l.readChar()
		for isOctDigit(l.ch) {
			l.readChar()
		}
	} else {
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	lit := string(l.src[start:l.pos])

	digits := lit
	switch base {
	case 16:
		digits = lit[2:]
	case 8:
		digits = lit[1:]
		if digits == "" {
			digits = "0"
		}
	}
	var value int64
	for i := 0; i < len(digits); i++ {
		d := int64(hexDigitValue(digits[i]))
		value = value*int64(base) + d
	}
	return token.Token{Kind: token.INT_LIT, Lexeme: lit, Pos: pos, IntValue: value}, nil
}

func hexDigitValue(ch byte) int {
	switch {
	case ch >= '0' && ch <= '9':
		return int(ch - '0')
	case ch >= 'a' && ch <= 'f':
		return int(ch-'a') + 10
	case ch >= 'A' && ch <= 'F':
		return int(ch-'A') + 10
	}
	return 0
}

// readEscape decodes one backslash escape, given l.ch positioned at the
// character following the backslash. It advances past the escape.
func (l *Lexer) readEscape(pos diag.Position) (byte, error) {
	ch := l.ch
	l.readChar()
	switch ch {
	case 'n':
		return '\n', nil
	case 't':
		return '\t', nil
	case 'r':
		return '\r', nil
	case '\\':
		return '\\', nil
	case '\'':
		return '\'', nil
	case '"':
		return '"', nil
	case '0':
		return 0, nil
	case 'x':
		var v byte
		n := 0
		for isHexDigit(l.ch) && n < 2 {
			v = v*16 + byte(hexDigitValue(l.ch))
			l.readChar()
			n++
		}
		if n == 0 {
			return 0, l.errorf(pos, "\\x used with no following hex digits")
		}
		return v, nil
	default:
		return 0, l.errorf(pos, "unknown escape sequence '\\%c'", ch)
	}
}

func (l *Lexer) readCharLiteral(pos diag.Position) (token.Token, error) {
	l.readChar() // consume opening '
	if l.ch == 0 || l.ch == '\n' {
		return token.Token{}, l.errorf(pos, "unterminated character literal")
	}
	var value byte
	if l.ch == '\\' {
		l.readChar()
		v, err := l.readEscape(pos)
		if err != nil {
			return token.Token{}, err
		}
		value = v
	} else {
		value = l.ch
		l.readChar()
	}
	if l.ch != '\'' {
		return token.Token{}, l.errorf(pos, "unterminated character literal")
	}
	l.readChar() // consume closing '
	return token.Token{Kind: token.CHAR_LIT, Pos: pos, IntValue: int64(value), Lexeme: string(value)}, nil
}

func (l *Lexer) readStringLiteral(pos diag.Position) (token.Token, error) {
	l.readChar() // consume opening "
	var buf []byte
	for l.ch != '"' {
		if l.ch == 0 || l.ch == '\n' {
			return token.Token{}, l.errorf(pos, "unterminated string literal")
		}
		if l.ch == '\\' {
			l.readChar()
			v, err := l.readEscape(pos)
			if err != nil {
				return token.Token{}, err
			}
			buf = append(buf, v)
			continue
		}
		buf = append(buf, l.ch)
		l.readChar()
	}
	l.readChar() // consume closing "
	buf = append(buf, 0)
	return token.Token{Kind: token.STRING_LIT, Pos: pos, Bytes: buf, Lexeme: string(buf)}, nil
}

// punctuators is checked longest-match-first so that e.g. "<<" and "<="
// beat "<". There is no "<<=" or ">>=" entry: "<<=" lexes as "<<" then "=".
var punctuators = []struct {
	text string
	kind token.Kind
}{
	{"...", token.ELLIPSIS},
	{"<<", token.SHL}, {">>", token.SHR},
	{"==", token.EQ}, {"!=", token.NEQ}, {"<=", token.LE}, {">=", token.GE},
	{"&&", token.ANDAND}, {"||", token.OROR},
	{"++", token.INC}, {"--", token.DEC},
	{"+=", token.PLUSEQ}, {"-=", token.MINUSEQ}, {"*=", token.STAREQ},
	{"/=", token.SLASHEQ}, {"%=", token.PERCENTEQ},
	{"(", token.LPAREN}, {")", token.RPAREN},
	{"{", token.LBRACE}, {"}", token.RBRACE},
	{"[", token.LBRACKET}, {"]", token.RBRACKET},
	{",", token.COMMA}, {";", token.SEMI}, {"#", token.HASH},
	{"+", token.PLUS}, {"-", token.MINUS}, {"*", token.STAR}, {"/", token.SLASH},
	{"%", token.PERCENT}, {"=", token.ASSIGN},
	{"<", token.LT}, {">", token.GT},
	{"!", token.NOT}, {"&", token.AMP}, {"|", token.PIPE}, {"^", token.CARET},
	{"~", token.TILDE}, {"?", token.QUESTION}, {":", token.COLON},
}

func (l *Lexer) readPunct(pos diag.Position) (token.Token, error) {
	avail := len(l.src) - l.pos
	for _, p := range punctuators {
		if len(p.text) > avail {
			continue
		}
		if string(l.src[l.pos:l.pos+len(p.text)]) == p.text {
			for range p.text {
				l.readChar()
			}
			return token.Token{Kind: p.kind, Lexeme: p.text, Pos: pos}, nil
		}
	}
	ch := l.ch
	l.readChar()
	return token.Token{}, l.errorf(pos, "unexpected character %q", ch)
}
