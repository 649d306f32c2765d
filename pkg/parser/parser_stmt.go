package parser

import (
	"fmt"
	"strings"
)

// Statement parsing.
//
//	statement → [WITH [RECURSIVE] cte ("," cte)*] query
//	            [ORDER BY order_list] [LIMIT expr] [OFFSET expr]
//	cte       → name ["(" ident_list ")"] AS "(" statement ")"

// parseStatement parses a complete query.
func (p *Parser) parseStatement() *SelectStmt {
	stmt := &SelectStmt{}

	if p.check(TOKEN_WITH) {
		stmt.With = p.parseWithClause()
		if p.failed() {
			return nil
		}
	}

	stmt.Body = p.parseQuery()
	if p.failed() {
		return nil
	}

	p.parseStatementTail(stmt)
	if p.failed() {
		return nil
	}
	return stmt
}

// parseStatementTail parses ORDER BY, LIMIT and OFFSET.
func (p *Parser) parseStatementTail(stmt *SelectStmt) {
	if p.check(TOKEN_ORDER) && p.checkPeek(TOKEN_BY) {
		p.nextToken()
		p.nextToken()
		stmt.OrderBy = p.parseOrderByList()
	}
	if p.match(TOKEN_LIMIT) {
		stmt.Limit = p.parseRequiredExpr()
	}
	if p.match(TOKEN_OFFSET) {
		stmt.Offset = p.parseRequiredExpr()
	}
}

// parseWithClause parses WITH [RECURSIVE] cte_list.
func (p *Parser) parseWithClause() *WithClause {
	p.expect(TOKEN_WITH)
	with := &WithClause{Recursive: p.match(TOKEN_RECURSIVE)}

	for !p.failed() {
		cte := p.parseCTE()
		if cte == nil {
			return nil
		}
		with.CTEs = append(with.CTEs, cte)
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return with
}

// parseCTE parses: name ["(" cols ")"] AS [[NOT] MATERIALIZED] "(" statement ")"
func (p *Parser) parseCTE() *CTE {
	name, ok := p.parseIdent()
	if !ok {
		return nil
	}
	cte := &CTE{Name: name}

	if p.check(TOKEN_LPAREN) {
		cte.Columns = p.parseIdentList()
	}

	if !p.expect(TOKEN_AS) {
		return nil
	}

	// Postgres materialization hints.
	if p.check(TOKEN_NOT) {
		p.nextToken()
	}
	p.matchWord("materialized")

	if !p.expect(TOKEN_LPAREN) {
		return nil
	}
	cte.Select = p.parseStatement()
	if !p.expect(TOKEN_RPAREN) {
		return nil
	}
	return cte
}

// parseQuery parses UNION and EXCEPT chains (left-associative).
func (p *Parser) parseQuery() QueryExpr {
	left := p.parseQueryTerm()
	for !p.failed() && (p.check(TOKEN_UNION) || p.check(TOKEN_EXCEPT)) {
		op := SetOpUnion
		if p.check(TOKEN_EXCEPT) {
			op = SetOpExcept
		}
		p.nextToken()
		all := p.parseSetQuantifier()
		p.parseByName()
		right := p.parseQueryTerm()
		if right == nil {
			return nil
		}
		left = &SetOperation{Op: op, All: all, Left: left, Right: right}
	}
	return left
}

// parseQueryTerm parses INTERSECT chains, which bind tighter than UNION.
func (p *Parser) parseQueryTerm() QueryExpr {
	left := p.parseQueryOperand()
	for !p.failed() && p.check(TOKEN_INTERSECT) {
		p.nextToken()
		all := p.parseSetQuantifier()
		p.parseByName()
		right := p.parseQueryOperand()
		if right == nil {
			return nil
		}
		left = &SetOperation{Op: SetOpIntersect, All: all, Left: left, Right: right}
	}
	return left
}

// parseSetQuantifier parses [ALL | DISTINCT] after a set operator.
func (p *Parser) parseSetQuantifier() bool {
	if p.match(TOKEN_ALL) {
		return true
	}
	p.match(TOKEN_DISTINCT)
	return false
}

// parseByName skips DuckDB's "BY NAME" set-operation modifier.
func (p *Parser) parseByName() {
	if p.check(TOKEN_BY) && p.peek.Type == TOKEN_IDENT && equalWord(p.peek, "name") {
		p.nextToken()
		p.nextToken()
	}
}

// parseQueryOperand parses a SELECT or a parenthesized query.
func (p *Parser) parseQueryOperand() QueryExpr {
	switch {
	case p.check(TOKEN_SELECT):
		return p.parseSelectCore()
	case p.check(TOKEN_LPAREN):
		p.nextToken()
		if p.check(TOKEN_WITH) {
			p.addError(ErrNestedWith)
			return nil
		}
		inner := p.parseQuery()
		if p.failed() {
			return nil
		}
		// ORDER BY / LIMIT inside a parenthesized operand do not change which
		// columns flow out of it.
		p.parseStatementTail(&SelectStmt{})
		if !p.expect(TOKEN_RPAREN) {
			return nil
		}
		return inner
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "SELECT"))
		return nil
	}
}

// parseSelectCore parses a single SELECT block.
func (p *Parser) parseSelectCore() *SelectCore {
	if !p.expect(TOKEN_SELECT) {
		return nil
	}
	core := &SelectCore{}

	if p.match(TOKEN_DISTINCT) {
		core.Distinct = true
		if p.match(TOKEN_ON) {
			if !p.expect(TOKEN_LPAREN) {
				return nil
			}
			core.DistinctOn = p.parseExprList()
			p.expect(TOKEN_RPAREN)
		}
	} else {
		p.match(TOKEN_ALL)
	}

	core.Columns = p.parseSelectList()
	if p.failed() {
		return nil
	}

	if p.match(TOKEN_FROM) {
		core.From = p.parseFromClause()
	}
	if p.match(TOKEN_WHERE) {
		core.Where = p.parseRequiredExpr()
	}
	if p.check(TOKEN_GROUP) {
		p.nextToken()
		p.expect(TOKEN_BY)
		if p.match(TOKEN_ALL) {
			core.GroupByAll = true
		} else {
			core.GroupBy = p.parseExprList()
		}
	}
	if p.match(TOKEN_HAVING) {
		core.Having = p.parseRequiredExpr()
	}
	if p.match(TOKEN_WINDOW) {
		core.Windows = p.parseNamedWindows()
	}
	if p.match(TOKEN_QUALIFY) {
		core.Qualify = p.parseRequiredExpr()
	}

	if p.failed() {
		return nil
	}
	return core
}

// parseSelectList parses the comma-separated select items.
func (p *Parser) parseSelectList() []SelectItem {
	var items []SelectItem
	for !p.failed() {
		item, ok := p.parseSelectItem()
		if !ok {
			return nil
		}
		items = append(items, item)
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	if len(items) == 0 && !p.failed() {
		p.addError(ErrEmptySelectList)
	}
	return items
}

// parseSelectItem parses:
//
//	"*" [star_modifier] | ident "." "*" [star_modifier] | expr [[AS] alias]
func (p *Parser) parseSelectItem() (SelectItem, bool) {
	if p.check(TOKEN_STAR) {
		p.nextToken()
		item := SelectItem{Star: true}
		item.Exclude = p.parseStarModifier()
		return item, !p.failed()
	}

	if p.check(TOKEN_IDENT) && p.checkPeek(TOKEN_DOT) && p.peek2.Type == TOKEN_STAR {
		item := SelectItem{TableStar: p.token.Literal}
		p.nextToken()
		p.nextToken()
		p.nextToken()
		item.Exclude = p.parseStarModifier()
		return item, !p.failed()
	}

	expr := p.parseExpression()
	if expr == nil || p.failed() {
		if !p.failed() {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "expression"))
		}
		return SelectItem{}, false
	}

	item := SelectItem{Expr: expr}
	item.Alias = p.parseAlias()
	return item, !p.failed()
}

// parseStarModifier parses EXCLUDE (cols) or EXCEPT (cols) after a wildcard.
func (p *Parser) parseStarModifier() []string {
	switch {
	case p.check(TOKEN_EXCLUDE):
		p.nextToken()
		if p.check(TOKEN_LPAREN) {
			return p.parseIdentList()
		}
		name, _ := p.parseIdent()
		return []string{name}
	case p.check(TOKEN_EXCEPT) && p.checkPeek(TOKEN_LPAREN) && p.peek2.Type == TOKEN_IDENT:
		p.nextToken()
		return p.parseIdentList()
	}
	return nil
}

// parseAlias parses an optional [AS] alias. After AS, keywords and string
// literals are accepted as names.
func (p *Parser) parseAlias() string {
	if p.match(TOKEN_AS) {
		if p.check(TOKEN_IDENT) || p.check(TOKEN_STRING) || p.token.Type.IsKeyword() {
			name := p.token.Literal
			p.nextToken()
			return name
		}
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "alias"))
		return ""
	}
	if p.check(TOKEN_IDENT) {
		name := p.token.Literal
		p.nextToken()
		return name
	}
	return ""
}

// parseOrderByList parses: expr [ASC|DESC] [NULLS FIRST|LAST] ("," ...)*
func (p *Parser) parseOrderByList() []OrderByItem {
	var items []OrderByItem
	for !p.failed() {
		item := OrderByItem{Expr: p.parseExpression()}
		if p.match(TOKEN_DESC) {
			item.Desc = true
		} else {
			p.match(TOKEN_ASC)
		}
		if p.match(TOKEN_NULLS) {
			first := p.matchWord("first")
			if !first && !p.matchWord("last") {
				p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "FIRST or LAST"))
				return nil
			}
			item.NullsFirst = &first
		}
		items = append(items, item)
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return items
}

// parseRequiredExpr parses an expression and reports an error when none is
// present.
func (p *Parser) parseRequiredExpr() Expr {
	expr := p.parseExpression()
	if expr == nil && !p.failed() {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "expression"))
	}
	return expr
}

// parseExprList parses expr ("," expr)*.
func (p *Parser) parseExprList() []Expr {
	var exprs []Expr
	for !p.failed() {
		expr := p.parseExpression()
		if expr == nil {
			if !p.failed() {
				p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "expression"))
			}
			return nil
		}
		exprs = append(exprs, expr)
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return exprs
}

func equalWord(tok Token, w string) bool {
	return tok.Type == TOKEN_IDENT && !tok.Quoted && strings.EqualFold(tok.Literal, w)
}
