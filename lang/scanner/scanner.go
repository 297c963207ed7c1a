// Package scanner lazily tokenizes Lox source text. It is adapted from the
// cursor-based scanning style of the teacher's lang/scanner package, scoped
// down to a single borrowed source buffer and a line-only position model.
package scanner

import "github.com/loxscript/loxvm/lang/token"

// A Scanner produces a stream of Tokens from a borrowed source string. It is
// stateless between calls to Scan apart from its three cursors.
type Scanner struct {
	src     string
	start   int // index of the start of the current lexeme
	current int // index of the next unread byte
	line    int
}

// New initialises a Scanner over src. The scanner never copies src; returned
// Token.Lexeme values are sub-slices of it.
func New(src string) *Scanner {
	return &Scanner{src: src, line: 1}
}

// Scan returns the next token in the stream. Once EOF is reached, every
// subsequent call returns another EOF token.
func (s *Scanner) Scan() token.Token {
	s.skipWhitespace()
	s.start = s.current

	if s.atEnd() {
		return s.make(token.EOF)
	}

	c := s.advance()
	if isAlpha(c) {
		return s.identifier()
	}
	if isDigit(c) {
		return s.number()
	}

	switch c {
	case '(':
		return s.make(token.LeftParen)
	case ')':
		return s.make(token.RightParen)
	case '{':
		return s.make(token.LeftBrace)
	case '}':
		return s.make(token.RightBrace)
	case ';':
		return s.make(token.Semicolon)
	case ',':
		return s.make(token.Comma)
	case '.':
		return s.make(token.Dot)
	case '-':
		return s.make(token.Minus)
	case '+':
		return s.make(token.Plus)
	case '/':
		return s.make(token.Slash)
	case '*':
		return s.make(token.Star)
	case '!':
		return s.make(s.selectType('=', token.BangEqual, token.Bang))
	case '=':
		return s.make(s.selectType('=', token.EqualEqual, token.Equal))
	case '<':
		return s.make(s.selectType('=', token.LessEqual, token.Less))
	case '>':
		return s.make(s.selectType('=', token.GreaterEqual, token.Greater))
	case '"':
		return s.string()
	}

	return s.errorToken("Unexpected character.")
}

func (s *Scanner) atEnd() bool { return s.current >= len(s.src) }

func (s *Scanner) advance() byte {
	c := s.src[s.current]
	s.current++
	return c
}

func (s *Scanner) peek() byte {
	if s.atEnd() {
		return 0
	}
	return s.src[s.current]
}

func (s *Scanner) peekNext() byte {
	if s.current+1 >= len(s.src) {
		return 0
	}
	return s.src[s.current+1]
}

func (s *Scanner) match(expected byte) bool {
	if s.atEnd() || s.src[s.current] != expected {
		return false
	}
	s.current++
	return true
}

// selectType is the common "one or two character operator" shape: advance
// past expected if present and return the two-char type, else the one-char
// type.
func (s *Scanner) selectType(expected byte, twoChar, oneChar token.Type) token.Type {
	if s.match(expected) {
		return twoChar
	}
	return oneChar
}

func (s *Scanner) skipWhitespace() {
	for {
		switch s.peek() {
		case ' ', '\r', '\t':
			s.advance()
		case '\n':
			s.line++
			s.advance()
		case '/':
			if s.peekNext() == '/' {
				for s.peek() != '\n' && !s.atEnd() {
					s.advance()
				}
			} else {
				return
			}
		default:
			return
		}
	}
}

func (s *Scanner) string() token.Token {
	for s.peek() != '"' && !s.atEnd() {
		if s.peek() == '\n' {
			s.line++
		}
		s.advance()
	}
	if s.atEnd() {
		return s.errorToken("Unterminated string.")
	}
	s.advance() // closing quote
	return s.make(token.String)
}

func (s *Scanner) number() token.Token {
	for isDigit(s.peek()) {
		s.advance()
	}
	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.advance() // consume the '.'
		for isDigit(s.peek()) {
			s.advance()
		}
	}
	return s.make(token.Number)
}

func (s *Scanner) identifier() token.Token {
	for isAlpha(s.peek()) || isDigit(s.peek()) {
		s.advance()
	}
	return s.make(s.identifierType())
}

// identifierType classifies the current lexeme as a keyword or a plain
// identifier by looking the whole lexeme up in token.Keywords; there is no
// per-byte trie dispatch.
func (s *Scanner) identifierType() token.Type {
	lexeme := s.src[s.start:s.current]
	if t, ok := token.Keywords[lexeme]; ok {
		return t
	}
	return token.Identifier
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func (s *Scanner) make(t token.Type) token.Token {
	return token.Token{Type: t, Lexeme: s.src[s.start:s.current], Line: s.line}
}

// errorToken produces a Token of type token.Error whose Lexeme is the static
// message describing the problem, per spec: its "start" points at the
// message, not at source text.
func (s *Scanner) errorToken(msg string) token.Token {
	return token.Token{Type: token.Error, Lexeme: msg, Line: s.line}
}
