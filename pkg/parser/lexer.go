package parser

import (
	"strings"
	"unicode"
)

// Lexer tokenizes SQL input.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)

	dialect *Dialect
}

// NewLexer creates a new Lexer for the given input. A nil dialect lexes ANSI.
func NewLexer(input string, d *Dialect) *Lexer {
	if d == nil {
		d = ANSI
	}
	l := &Lexer{
		input:   input,
		line:    1,
		dialect: d,
	}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
	l.col++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) currentPos() Position {
	return Position{Line: l.line, Column: l.col, Offset: l.pos}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.currentPos()
	tok := Token{Pos: pos}

	switch l.ch {
	case 0:
		tok.Type = TOKEN_EOF
		return tok
	case '+':
		tok.Type, tok.Literal = TOKEN_PLUS, "+"
	case '-':
		tok.Type, tok.Literal = TOKEN_MINUS, "-"
	case '*':
		tok.Type, tok.Literal = TOKEN_STAR, "*"
	case '/':
		tok.Type, tok.Literal = TOKEN_SLASH, "/"
	case '%':
		tok.Type, tok.Literal = TOKEN_MOD, "%"
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
		}
		tok.Type, tok.Literal = TOKEN_EQ, "="
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok.Type, tok.Literal = TOKEN_LE, "<="
		case '>':
			l.readChar()
			tok.Type, tok.Literal = TOKEN_NE, "<>"
		default:
			tok.Type, tok.Literal = TOKEN_LT, "<"
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type, tok.Literal = TOKEN_GE, ">="
		} else {
			tok.Type, tok.Literal = TOKEN_GT, ">"
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type, tok.Literal = TOKEN_NE, "<>"
		} else {
			tok.Type, tok.Literal = TOKEN_ILLEGAL, "!"
		}
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			tok.Type, tok.Literal = TOKEN_DPIPE, "||"
		} else {
			tok.Type, tok.Literal = TOKEN_ILLEGAL, "|"
		}
	case ':':
		if l.peekChar() == ':' {
			l.readChar()
			tok.Type, tok.Literal = TOKEN_DCOLON, "::"
		} else {
			tok.Type, tok.Literal = TOKEN_ILLEGAL, ":"
		}
	case '.':
		if isDigit(l.peekChar()) {
			tok.Type = TOKEN_NUMBER
			tok.Literal = l.readNumber()
			return tok
		}
		tok.Type, tok.Literal = TOKEN_DOT, "."
	case ',':
		tok.Type, tok.Literal = TOKEN_COMMA, ","
	case ';':
		tok.Type, tok.Literal = TOKEN_SEMICOLON, ";"
	case '(':
		tok.Type, tok.Literal = TOKEN_LPAREN, "("
	case ')':
		tok.Type, tok.Literal = TOKEN_RPAREN, ")"
	case '[':
		tok.Type, tok.Literal = TOKEN_LBRACKET, "["
	case ']':
		tok.Type, tok.Literal = TOKEN_RBRACKET, "]"
	case '\'':
		lit, ok := l.readQuoted('\'')
		if !ok {
			tok.Type, tok.Literal = TOKEN_ILLEGAL, ErrUnterminatedString
			return tok
		}
		tok.Type, tok.Literal = TOKEN_STRING, lit
		return tok
	default:
		switch {
		case l.dialect.isIdentQuote(l.ch):
			lit, ok := l.readQuoted(l.ch)
			if !ok {
				tok.Type, tok.Literal = TOKEN_ILLEGAL, ErrUnterminatedIdentifier
				return tok
			}
			tok.Type, tok.Literal, tok.Quoted = TOKEN_IDENT, lit, true
			return tok
		case isLetter(l.ch) || l.ch == '_':
			tok.Literal = l.readIdentifier()
			tok.Type = LookupIdent(tok.Literal)
			return tok
		case isDigit(l.ch):
			tok.Type = TOKEN_NUMBER
			tok.Literal = l.readNumber()
			return tok
		default:
			tok.Type, tok.Literal = TOKEN_ILLEGAL, string(l.ch)
		}
	}

	l.readChar()
	return tok
}

// skipWhitespaceAndComments skips whitespace, line comments and block comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		if l.ch == '-' && l.peekChar() == '-' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			l.readChar()
			l.readChar()
			for l.ch != 0 && (l.ch != '*' || l.peekChar() != '/') {
				l.readChar()
			}
			if l.ch != 0 {
				l.readChar()
				l.readChar()
			}
			continue
		}

		return
	}
}

// readQuoted reads a string or quoted identifier opened by quote.
// A doubled quote is an escaped quote. Reports false when unterminated.
func (l *Lexer) readQuoted(quote byte) (string, bool) {
	l.readChar() // skip opening quote

	var result strings.Builder
	for l.ch != 0 {
		if l.ch == quote {
			if l.peekChar() == quote {
				result.WriteByte(quote)
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing quote
			return result.String(), true
		}
		result.WriteByte(l.ch)
		l.readChar()
	}
	return result.String(), false
}

func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' || l.ch == '$' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal (integer, decimal, or scientific).
func (l *Lexer) readNumber() string {
	start := l.pos

	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	if (l.ch == 'e' || l.ch == 'E') && (isDigit(l.peekChar()) || l.peekChar() == '+' || l.peekChar() == '-') {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	return l.input[start:l.pos]
}

func isLetter(ch byte) bool {
	return ch >= 0x80 || unicode.IsLetter(rune(ch))
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// Tokenize returns all tokens from the input, ending with TOKEN_EOF.
func Tokenize(input string, d *Dialect) []Token {
	l := NewLexer(input, d)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TOKEN_EOF {
			break
		}
	}
	return tokens
}
