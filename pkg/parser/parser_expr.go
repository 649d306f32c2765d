package parser

import (
	"fmt"
	"strings"
)

// Expression precedence parsing using a Pratt parser.
//
// Precedence levels:
//
//	precedenceOr         = 1
//	precedenceAnd        = 2
//	precedenceNot        = 3
//	precedenceComparison = 4  (=, <>, <, >, <=, >=, IS, IN, BETWEEN, LIKE, ILIKE)
//	precedenceAddition   = 5  (+, -, ||)
//	precedenceMultiply   = 6  (*, /, %)
//	precedenceUnary      = 7  (-, +)
//	precedencePostfix    = 8  (::, [])
const (
	precedenceNone = iota
	precedenceOr
	precedenceAnd
	precedenceNot
	precedenceComparison
	precedenceAddition
	precedenceMultiply
	precedenceUnary
	precedencePostfix
)

// parseExpression parses an expression using precedence climbing.
func (p *Parser) parseExpression() Expr {
	return p.parseExpressionWithPrecedence(precedenceOr)
}

func (p *Parser) parseExpressionWithPrecedence(minPrecedence int) Expr {
	left := p.parsePrefixExpr()
	if left == nil {
		return nil
	}

	for !p.failed() {
		prec := p.infixPrecedence()
		if prec < minPrecedence || prec == precedenceNone {
			break
		}
		left = p.parseInfixExpr(left, prec)
		if left == nil {
			return nil
		}
	}
	return left
}

// parsePrefixExpr parses unary operators and primary expressions.
func (p *Parser) parsePrefixExpr() Expr {
	switch p.token.Type {
	case TOKEN_NOT:
		p.nextToken()
		if p.check(TOKEN_EXISTS) {
			exists := p.parseExists()
			if exists == nil {
				return nil
			}
			exists.Not = true
			return exists
		}
		return &UnaryExpr{Op: "NOT", Expr: p.parseExpressionWithPrecedence(precedenceNot)}
	case TOKEN_MINUS:
		p.nextToken()
		return &UnaryExpr{Op: "-", Expr: p.parseExpressionWithPrecedence(precedenceUnary)}
	case TOKEN_PLUS:
		p.nextToken()
		return &UnaryExpr{Op: "+", Expr: p.parseExpressionWithPrecedence(precedenceUnary)}
	default:
		return p.parsePrimary()
	}
}

// infixPrecedence returns the precedence of the current token as an infix
// operator, or precedenceNone.
func (p *Parser) infixPrecedence() int {
	switch p.token.Type {
	case TOKEN_OR:
		return precedenceOr
	case TOKEN_AND:
		return precedenceAnd
	case TOKEN_EQ, TOKEN_NE, TOKEN_LT, TOKEN_GT, TOKEN_LE, TOKEN_GE,
		TOKEN_IS, TOKEN_IN, TOKEN_BETWEEN, TOKEN_LIKE, TOKEN_ILIKE:
		return precedenceComparison
	case TOKEN_NOT:
		// NOT IN, NOT BETWEEN, NOT LIKE, NOT ILIKE
		switch p.peek.Type {
		case TOKEN_IN, TOKEN_BETWEEN, TOKEN_LIKE, TOKEN_ILIKE:
			return precedenceComparison
		}
		return precedenceNone
	case TOKEN_PLUS, TOKEN_MINUS, TOKEN_DPIPE:
		return precedenceAddition
	case TOKEN_STAR, TOKEN_SLASH, TOKEN_MOD:
		return precedenceMultiply
	case TOKEN_DCOLON, TOKEN_LBRACKET:
		return precedencePostfix
	default:
		return precedenceNone
	}
}

// parseInfixExpr parses an infix or postfix operation on left.
func (p *Parser) parseInfixExpr(left Expr, prec int) Expr {
	switch p.token.Type {
	case TOKEN_NOT:
		p.nextToken()
		return p.parseNegatableInfix(left, true)
	case TOKEN_IN, TOKEN_BETWEEN, TOKEN_LIKE, TOKEN_ILIKE:
		return p.parseNegatableInfix(left, false)
	case TOKEN_IS:
		return p.parseIsExpr(left)
	case TOKEN_DCOLON:
		p.nextToken()
		typeName := p.parseTypeName()
		if typeName == "" {
			return nil
		}
		return &CastExpr{Expr: left, TypeName: typeName, DoubleColon: true}
	case TOKEN_LBRACKET:
		p.nextToken()
		index := p.parseExpression()
		if !p.expect(TOKEN_RBRACKET) {
			return nil
		}
		return &IndexExpr{Expr: left, Index: index}
	}

	op := canonicalOp(p.token)
	p.nextToken()
	right := p.parseExpressionWithPrecedence(prec + 1)
	if right == nil {
		if !p.failed() {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "expression"))
		}
		return nil
	}
	return &BinaryExpr{Left: left, Op: op, Right: right}
}

// parseNegatableInfix parses IN, BETWEEN, LIKE and ILIKE after an optional NOT.
func (p *Parser) parseNegatableInfix(left Expr, not bool) Expr {
	switch p.token.Type {
	case TOKEN_IN:
		p.nextToken()
		return p.parseInExpr(left, not)
	case TOKEN_BETWEEN:
		p.nextToken()
		low := p.parseExpressionWithPrecedence(precedenceAddition)
		if !p.expect(TOKEN_AND) {
			return nil
		}
		high := p.parseExpressionWithPrecedence(precedenceAddition)
		return &BetweenExpr{Expr: left, Not: not, Low: low, High: high}
	case TOKEN_LIKE, TOKEN_ILIKE:
		ilike := p.check(TOKEN_ILIKE)
		p.nextToken()
		pattern := p.parseExpressionWithPrecedence(precedenceAddition)
		return &LikeExpr{Expr: left, Not: not, ILike: ilike, Pattern: pattern}
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "IN, BETWEEN or LIKE"))
		return nil
	}
}

// parseInExpr parses "(" expr_list ")" or "(" statement ")".
func (p *Parser) parseInExpr(left Expr, not bool) Expr {
	if !p.expect(TOKEN_LPAREN) {
		return nil
	}
	in := &InExpr{Expr: left, Not: not}
	if p.check(TOKEN_SELECT) || p.check(TOKEN_WITH) {
		in.Query = p.parseStatement()
	} else {
		in.Values = p.parseExprList()
	}
	if !p.expect(TOKEN_RPAREN) {
		return nil
	}
	return in
}

// parseIsExpr parses IS [NOT] NULL|TRUE|FALSE|DISTINCT FROM expr.
func (p *Parser) parseIsExpr(left Expr) Expr {
	p.expect(TOKEN_IS)
	is := &IsExpr{Expr: left, Not: p.match(TOKEN_NOT)}

	switch {
	case p.match(TOKEN_NULL):
		is.Value = "NULL"
	case p.match(TOKEN_TRUE):
		is.Value = "TRUE"
	case p.match(TOKEN_FALSE):
		is.Value = "FALSE"
	case p.match(TOKEN_DISTINCT):
		if !p.expect(TOKEN_FROM) {
			return nil
		}
		is.DistinctFrom = p.parseExpressionWithPrecedence(precedenceAddition)
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "NULL, TRUE, FALSE or DISTINCT FROM"))
		return nil
	}
	return is
}

// parseTypeName parses a type such as INTEGER, DECIMAL(10, 2),
// DOUBLE PRECISION, VARCHAR[] or TIMESTAMP WITH TIME ZONE.
func (p *Parser) parseTypeName() string {
	if !p.check(TOKEN_IDENT) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "type name"))
		return ""
	}
	var b strings.Builder
	b.WriteString(strings.ToUpper(p.token.Literal))
	p.nextToken()

	// Multi-word types.
	for p.check(TOKEN_IDENT) && isTypeContinuation(p.token.Literal) {
		b.WriteByte(' ')
		b.WriteString(strings.ToUpper(p.token.Literal))
		p.nextToken()
	}
	if p.check(TOKEN_WITH) && equalWord(p.peek, "time") {
		p.nextToken()
		p.nextToken()
		if p.matchWord("zone") {
			b.WriteString(" WITH TIME ZONE")
		}
	}

	if p.match(TOKEN_LPAREN) {
		b.WriteByte('(')
		for i := 0; !p.failed() && !p.check(TOKEN_RPAREN); i++ {
			if i > 0 {
				if !p.expect(TOKEN_COMMA) {
					return ""
				}
				b.WriteString(", ")
			}
			if !p.check(TOKEN_NUMBER) && !p.check(TOKEN_IDENT) {
				p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "type parameter"))
				return ""
			}
			b.WriteString(p.token.Literal)
			p.nextToken()
		}
		if !p.expect(TOKEN_RPAREN) {
			return ""
		}
		b.WriteByte(')')
	}

	for p.check(TOKEN_LBRACKET) && p.checkPeek(TOKEN_RBRACKET) {
		p.nextToken()
		p.nextToken()
		b.WriteString("[]")
	}
	return b.String()
}

func isTypeContinuation(word string) bool {
	switch strings.ToLower(word) {
	case "precision", "varying":
		return true
	}
	return false
}

// canonicalOp returns the operator text stored in BinaryExpr.Op.
func canonicalOp(tok Token) string {
	switch tok.Type {
	case TOKEN_AND:
		return "AND"
	case TOKEN_OR:
		return "OR"
	default:
		return tok.Literal
	}
}
