package parser

import (
	"fmt"
	"strings"
)

// Primary expression parsing.
//
//	primary → literal | column_ref | func_call | "(" expr ")" | "(" statement ")"
//	        | CASE ... END | CAST "(" expr AS type ")" | EXISTS "(" statement ")"
//	        | INTERVAL expr [unit] | EXTRACT "(" field FROM expr ")"
//	        | type_name string | "[" expr_list "]"

// niladicFuncs are builtins written without parentheses.
var niladicFuncs = map[string]bool{
	"current_date":      true,
	"current_time":      true,
	"current_timestamp": true,
	"current_user":      true,
	"localtime":         true,
	"localtimestamp":    true,
	"session_user":      true,
}

// typedLiteralPrefixes are type names that may prefix a string constant.
var typedLiteralPrefixes = map[string]bool{
	"date":        true,
	"time":        true,
	"timestamp":   true,
	"timestamptz": true,
}

var intervalUnits = map[string]bool{
	"microsecond": true, "microseconds": true,
	"millisecond": true, "milliseconds": true,
	"second": true, "seconds": true,
	"minute": true, "minutes": true,
	"hour": true, "hours": true,
	"day": true, "days": true,
	"week": true, "weeks": true,
	"month": true, "months": true,
	"quarter": true, "quarters": true,
	"year": true, "years": true,
}

// parsePrimary parses a primary expression. It returns nil without an error
// when the current token cannot start an expression; callers report that.
func (p *Parser) parsePrimary() Expr {
	switch p.token.Type {
	case TOKEN_NUMBER:
		lit := &Literal{Type: LiteralNumber, Value: p.token.Literal}
		p.nextToken()
		return lit
	case TOKEN_STRING:
		lit := &Literal{Type: LiteralString, Value: p.token.Literal}
		p.nextToken()
		return lit
	case TOKEN_TRUE, TOKEN_FALSE:
		lit := &Literal{Type: LiteralBool, Value: strings.ToUpper(p.token.Literal)}
		p.nextToken()
		return lit
	case TOKEN_NULL:
		p.nextToken()
		return &Literal{Type: LiteralNull, Value: "NULL"}
	case TOKEN_LPAREN:
		return p.parseParenExpr()
	case TOKEN_CASE:
		return p.parseCaseExpr()
	case TOKEN_CAST:
		return p.parseCastExpr("")
	case TOKEN_EXISTS:
		if exists := p.parseExists(); exists != nil {
			return exists
		}
		return nil
	case TOKEN_INTERVAL:
		return p.parseInterval()
	case TOKEN_LBRACKET:
		return p.parseListExpr()
	case TOKEN_LEFT, TOKEN_RIGHT:
		if p.checkPeek(TOKEN_LPAREN) {
			return p.funcCallExpr()
		}
		return nil
	case TOKEN_IDENT:
		return p.parseIdentifierExpr()
	default:
		return nil
	}
}

// parseIdentifierExpr parses expressions that start with an identifier.
func (p *Parser) parseIdentifierExpr() Expr {
	tok := p.token
	lower := strings.ToLower(tok.Literal)

	if !tok.Quoted {
		switch {
		case p.checkPeek(TOKEN_LPAREN) && lower == "extract":
			return p.parseExtract()
		case p.checkPeek(TOKEN_LPAREN) && (lower == "try_cast" || lower == "safe_cast"):
			return p.parseCastExpr(strings.ToUpper(lower))
		case niladicFuncs[lower] && !p.checkPeek(TOKEN_LPAREN) && !p.checkPeek(TOKEN_DOT):
			p.nextToken()
			return &FuncCall{Name: strings.ToUpper(lower), NoParens: true}
		case typedLiteralPrefixes[lower] && p.peek.Type == TOKEN_STRING:
			p.nextToken()
			lit := &TypedLiteral{TypeName: strings.ToUpper(lower), Value: p.token.Literal}
			p.nextToken()
			return lit
		}
	}

	if p.checkPeek(TOKEN_LPAREN) {
		return p.funcCallExpr()
	}

	// column, table.column, schema.table.column, catalog.schema.table.column,
	// or a schema-qualified function call.
	parts := []string{tok.Literal}
	p.nextToken()
	for p.check(TOKEN_DOT) && p.peek.Type == TOKEN_IDENT {
		p.nextToken()
		if p.checkPeek(TOKEN_LPAREN) {
			fn := p.parseFuncCall()
			if fn == nil {
				return nil
			}
			fn.Name = strings.Join(parts, ".") + "." + fn.Name
			return fn
		}
		parts = append(parts, p.token.Literal)
		p.nextToken()
	}
	if p.check(TOKEN_DOT) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.peek, "column name"))
		return nil
	}

	last := len(parts) - 1
	return &ColumnRef{Table: strings.Join(parts[:last], "."), Column: parts[last]}
}

// parseParenExpr parses a parenthesized expression or a scalar subquery.
func (p *Parser) parseParenExpr() Expr {
	p.expect(TOKEN_LPAREN)
	if p.check(TOKEN_SELECT) || p.check(TOKEN_WITH) {
		stmt := p.parseStatement()
		if !p.expect(TOKEN_RPAREN) {
			return nil
		}
		return &SubqueryExpr{Query: stmt}
	}

	inner := p.parseExpression()
	if inner == nil {
		if !p.failed() {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "expression"))
		}
		return nil
	}
	if !p.expect(TOKEN_RPAREN) {
		return nil
	}
	return &ParenExpr{Expr: inner}
}

// parseCaseExpr parses CASE [operand] WHEN ... THEN ... [ELSE ...] END.
func (p *Parser) parseCaseExpr() Expr {
	p.expect(TOKEN_CASE)
	c := &CaseExpr{}
	if !p.check(TOKEN_WHEN) {
		c.Operand = p.parseExpression()
	}
	for p.match(TOKEN_WHEN) {
		cond := p.parseExpression()
		if !p.expect(TOKEN_THEN) {
			return nil
		}
		c.Whens = append(c.Whens, WhenClause{Condition: cond, Result: p.parseExpression()})
	}
	if len(c.Whens) == 0 {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "WHEN"))
		return nil
	}
	if p.match(TOKEN_ELSE) {
		c.Else = p.parseExpression()
	}
	if !p.expect(TOKEN_END) {
		return nil
	}
	return c
}

// parseCastExpr parses CAST(expr AS type) and its TRY_/SAFE_ variants.
func (p *Parser) parseCastExpr(function string) Expr {
	p.nextToken() // CAST / TRY_CAST / SAFE_CAST
	if !p.expect(TOKEN_LPAREN) {
		return nil
	}
	expr := p.parseExpression()
	if !p.expect(TOKEN_AS) {
		return nil
	}
	typeName := p.parseTypeName()
	if !p.expect(TOKEN_RPAREN) {
		return nil
	}
	return &CastExpr{Expr: expr, TypeName: typeName, Function: function}
}

// parseExists parses EXISTS "(" statement ")".
func (p *Parser) parseExists() *ExistsExpr {
	p.expect(TOKEN_EXISTS)
	if !p.expect(TOKEN_LPAREN) {
		return nil
	}
	stmt := p.parseStatement()
	if !p.expect(TOKEN_RPAREN) {
		return nil
	}
	return &ExistsExpr{Query: stmt}
}

// parseInterval parses INTERVAL value [unit].
func (p *Parser) parseInterval() Expr {
	p.expect(TOKEN_INTERVAL)
	value := p.parseExpressionWithPrecedence(precedenceUnary)
	if value == nil {
		if !p.failed() {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "interval value"))
		}
		return nil
	}
	interval := &IntervalExpr{Value: value}
	if p.check(TOKEN_IDENT) && !p.token.Quoted && intervalUnits[strings.ToLower(p.token.Literal)] {
		interval.Unit = strings.ToUpper(p.token.Literal)
		p.nextToken()
	}
	return interval
}

// parseExtract parses EXTRACT(field FROM expr).
func (p *Parser) parseExtract() Expr {
	p.nextToken() // EXTRACT
	p.expect(TOKEN_LPAREN)
	field, ok := p.parseIdent()
	if !ok || !p.expect(TOKEN_FROM) {
		return nil
	}
	from := p.parseExpression()
	if !p.expect(TOKEN_RPAREN) {
		return nil
	}
	return &ExtractExpr{Field: strings.ToUpper(field), From: from}
}

// parseListExpr parses "[" [expr_list] "]".
func (p *Parser) parseListExpr() Expr {
	p.expect(TOKEN_LBRACKET)
	list := &ListExpr{}
	if !p.check(TOKEN_RBRACKET) {
		list.Elements = p.parseExprList()
	}
	if !p.expect(TOKEN_RBRACKET) {
		return nil
	}
	return list
}

// funcCallExpr wraps parseFuncCall so a failed call yields a nil Expr.
func (p *Parser) funcCallExpr() Expr {
	if fn := p.parseFuncCall(); fn != nil {
		return fn
	}
	return nil
}

// parseFuncCall parses:
//
//	name "(" [DISTINCT|ALL] ("*" | expr_list [ORDER BY order_list]) ")"
//	[FILTER "(" WHERE expr ")"] [OVER (name | window_spec)]
//
// The current token is the function name.
func (p *Parser) parseFuncCall() *FuncCall {
	fn := &FuncCall{Name: p.token.Literal}
	p.nextToken()
	if !p.expect(TOKEN_LPAREN) {
		return nil
	}

	switch {
	case p.check(TOKEN_STAR):
		p.nextToken()
		fn.Star = true
	case p.check(TOKEN_RPAREN):
	default:
		if p.match(TOKEN_DISTINCT) {
			fn.Distinct = true
		} else {
			p.match(TOKEN_ALL)
		}
		fn.Args = p.parseExprList()
		if p.check(TOKEN_ORDER) && p.checkPeek(TOKEN_BY) {
			p.nextToken()
			p.nextToken()
			fn.OrderBy = p.parseOrderByList()
		}
	}
	if !p.expect(TOKEN_RPAREN) {
		return nil
	}

	if p.checkWord("filter") && p.checkPeek(TOKEN_LPAREN) {
		p.nextToken()
		p.nextToken()
		if !p.expect(TOKEN_WHERE) {
			return nil
		}
		fn.Filter = p.parseExpression()
		if !p.expect(TOKEN_RPAREN) {
			return nil
		}
	}

	if p.match(TOKEN_OVER) {
		if p.check(TOKEN_IDENT) {
			fn.Window = &WindowSpec{Name: p.token.Literal}
			p.nextToken()
		} else {
			fn.Window = p.parseWindowSpec()
		}
	}

	if p.failed() {
		return nil
	}
	return fn
}
