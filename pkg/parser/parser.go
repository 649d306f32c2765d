// Package parser reads the SELECT statements found in transformation model
// files into a small, closed AST.
//
// # Usage
//
//	d, _ := parser.GetDialect("duckdb")
//	stmt, err := parser.Parse("SELECT a, b FROM t", d)
//	if err != nil {
//	    // handle error
//	}
//
// # Grammar Overview
//
//	statement   → [WITH [RECURSIVE] cte_list] query [ORDER BY order_list]
//	              [LIMIT expr] [OFFSET expr]
//	query       → term ((UNION|EXCEPT) [ALL|DISTINCT] term)*
//	term        → operand (INTERSECT [ALL|DISTINCT] operand)*
//	operand     → select_core | "(" query ")"
//	select_core → SELECT [DISTINCT [ON (...)]|ALL] select_list [FROM from_clause]
//	              [WHERE expr] [GROUP BY expr_list] [HAVING expr] [QUALIFY expr]
//
// See each file for the grammar rules of that section.
package parser

import (
	"fmt"
	"strings"
)

// Parser parses SQL into an AST.
type Parser struct {
	lexer  *Lexer
	token  Token // current token
	peek   Token // lookahead token
	peek2  Token // second lookahead token
	errors []error
}

// NewParser creates a new parser for the given SQL input.
func NewParser(sql string, d *Dialect) *Parser {
	p := &Parser{lexer: NewLexer(sql, d)}
	// Read three tokens to initialize current, peek, and peek2
	p.nextToken()
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses one SELECT statement. A trailing semicolon is allowed.
func Parse(sql string, d *Dialect) (*SelectStmt, error) {
	p := NewParser(sql, d)
	stmt := p.parseStatement()
	p.match(TOKEN_SEMICOLON)
	if len(p.errors) == 0 && !p.check(TOKEN_EOF) {
		p.addError(fmt.Sprintf(ErrTrailingInput, p.token))
	}
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return stmt, nil
}

// ParseExpr parses a standalone expression.
func ParseExpr(sql string, d *Dialect) (Expr, error) {
	p := NewParser(sql, d)
	expr := p.parseExpression()
	if len(p.errors) == 0 && !p.check(TOKEN_EOF) {
		p.addError(fmt.Sprintf(ErrTrailingInput, p.token))
	}
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return expr, nil
}

// ---------- Token Helpers ----------

func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.peek2
	p.peek2 = p.lexer.NextToken()
}

func (p *Parser) check(t TokenType) bool {
	return p.token.Type == t
}

func (p *Parser) checkPeek(t TokenType) bool {
	return p.peek.Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
func (p *Parser) expect(t TokenType) bool {
	if p.match(t) {
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, t))
	return false
}

// checkWord reports whether the current token is the non-reserved word w.
func (p *Parser) checkWord(w string) bool {
	return p.token.Type == TOKEN_IDENT && !p.token.Quoted && strings.EqualFold(p.token.Literal, w)
}

// matchWord consumes the non-reserved word w if present.
func (p *Parser) matchWord(w string) bool {
	if p.checkWord(w) {
		p.nextToken()
		return true
	}
	return false
}

// addError records an error at the current token. Only the first error is
// reported; later ones are usually cascades.
func (p *Parser) addError(msg string) {
	if p.token.Type == TOKEN_ILLEGAL && len(p.errors) == 0 {
		msg = fmt.Sprintf("illegal input %q: %s", p.token.Literal, msg)
	}
	p.errors = append(p.errors, &ParseError{Pos: p.token.Pos, Message: msg})
}

func (p *Parser) failed() bool {
	return len(p.errors) > 0
}

// parseIdent consumes an identifier.
func (p *Parser) parseIdent() (string, bool) {
	if p.check(TOKEN_IDENT) {
		name := p.token.Literal
		p.nextToken()
		return name, true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "identifier"))
	return "", false
}

// parseIdentList parses "(a, b, c)".
func (p *Parser) parseIdentList() []string {
	if !p.expect(TOKEN_LPAREN) {
		return nil
	}
	var names []string
	for !p.failed() {
		name, ok := p.parseIdent()
		if !ok {
			return nil
		}
		names = append(names, name)
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	p.expect(TOKEN_RPAREN)
	return names
}
