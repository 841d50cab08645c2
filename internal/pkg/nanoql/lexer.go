package nanoql

import (
	"strings"
	"unicode"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenString
	TokenColon
	TokenLParen
	TokenRParen
	TokenAnd
	TokenOr
	TokenNot
	TokenNeq  // !=
	TokenGte  // >=
	TokenLte  // <=
	TokenStar // *
	TokenIllegal
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "end of input"
	case TokenIdent:
		return "identifier"
	case TokenString:
		return "string"
	case TokenColon:
		return "':'"
	case TokenLParen:
		return "'('"
	case TokenRParen:
		return "')'"
	case TokenAnd:
		return "AND"
	case TokenOr:
		return "OR"
	case TokenNot:
		return "NOT"
	case TokenNeq:
		return "'!='"
	case TokenGte:
		return "'>='"
	case TokenLte:
		return "'<='"
	case TokenStar:
		return "'*'"
	default:
		return "illegal character"
	}
}

// Token represents a lexical token.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// Lexer tokenizes NanoQL input.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, pos: 0}
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	start := l.pos
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: start}
	}

	ch := l.input[l.pos]

	switch ch {
	case ':':
		l.pos++
		return Token{Type: TokenColon, Value: ":", Pos: start}
	case '(':
		l.pos++
		return Token{Type: TokenLParen, Value: "(", Pos: start}
	case ')':
		l.pos++
		return Token{Type: TokenRParen, Value: ")", Pos: start}
	case '*':
		l.pos++
		return Token{Type: TokenStar, Value: "*", Pos: start}
	case '!', '>', '<':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			typ := TokenNeq
			switch ch {
			case '>':
				typ = TokenGte
			case '<':
				typ = TokenLte
			}
			return Token{Type: typ, Value: l.input[start:l.pos], Pos: start}
		}
		l.pos++
		return Token{Type: TokenIllegal, Value: string(ch), Pos: start}
	case '"':
		return l.readString()
	}

	if isIdentChar(ch) {
		return l.readIdent()
	}

	l.pos++
	return Token{Type: TokenIllegal, Value: string(ch), Pos: start}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
}

// readString reads a double-quoted string. A backslash escapes the next byte.
func (l *Lexer) readString() Token {
	start := l.pos
	l.pos++ // skip opening quote
	var sb strings.Builder
	for l.pos < len(l.input) && l.input[l.pos] != '"' {
		if l.input[l.pos] == '\\' && l.pos+1 < len(l.input) {
			l.pos++
		}
		sb.WriteByte(l.input[l.pos])
		l.pos++
	}
	if l.pos >= len(l.input) {
		return Token{Type: TokenIllegal, Value: `unterminated string`, Pos: start}
	}
	l.pos++ // skip closing quote
	return Token{Type: TokenString, Value: sb.String(), Pos: start}
}

func (l *Lexer) readIdent() Token {
	start := l.pos
	for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
		l.pos++
	}
	value := l.input[start:l.pos]

	switch upper := strings.ToUpper(value); upper {
	case "AND":
		return Token{Type: TokenAnd, Value: upper, Pos: start}
	case "OR":
		return Token{Type: TokenOr, Value: upper, Pos: start}
	case "NOT":
		return Token{Type: TokenNot, Value: upper, Pos: start}
	}

	return Token{Type: TokenIdent, Value: value, Pos: start}
}

// isIdentChar accepts field path and bare value characters. Values containing
// anything else, such as ':' in a timestamp, must be quoted.
func isIdentChar(ch byte) bool {
	if ch >= 0x80 {
		return true
	}
	r := rune(ch)
	return unicode.IsLetter(r) || unicode.IsDigit(r) || strings.IndexByte("_-./@+", ch) >= 0
}
