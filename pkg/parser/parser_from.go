package parser

import (
	"fmt"
	"strings"
)

// FROM clause parsing.
//
//	from_clause → table_ref (join | "," table_ref)*
//	join        → [NATURAL] [INNER | LEFT [OUTER] | RIGHT [OUTER] | FULL [OUTER] | CROSS]
//	              JOIN table_ref [ON expr | USING "(" ident_list ")"]
//	table_ref   → table_name [[AS] alias]
//	            | "(" statement ")" [AS] alias
//	            | func_call [[AS] alias]

// parseFromClause parses the FROM clause.
func (p *Parser) parseFromClause() *FromClause {
	from := &FromClause{Source: p.parseTableRef()}
	if p.failed() {
		return nil
	}

	for !p.failed() {
		if p.match(TOKEN_COMMA) {
			right := p.parseTableRef()
			if right == nil {
				return nil
			}
			from.Joins = append(from.Joins, &Join{Type: JoinComma, Right: right})
			continue
		}
		if !p.isJoinStart() {
			break
		}
		join := p.parseJoin()
		if join == nil {
			return nil
		}
		from.Joins = append(from.Joins, join)
	}
	return from
}

// isJoinStart reports whether the current token begins a JOIN clause.
func (p *Parser) isJoinStart() bool {
	switch p.token.Type {
	case TOKEN_JOIN, TOKEN_INNER, TOKEN_CROSS, TOKEN_NATURAL, TOKEN_FULL:
		return true
	case TOKEN_LEFT, TOKEN_RIGHT:
		// LEFT(...) / RIGHT(...) are string functions, not joins.
		return !p.checkPeek(TOKEN_LPAREN)
	}
	return false
}

// parseJoin parses one JOIN clause.
func (p *Parser) parseJoin() *Join {
	join := &Join{Type: JoinInner}

	join.Natural = p.match(TOKEN_NATURAL)

	switch {
	case p.match(TOKEN_INNER):
	case p.match(TOKEN_LEFT):
		join.Type = JoinLeft
		p.match(TOKEN_OUTER)
	case p.match(TOKEN_RIGHT):
		join.Type = JoinRight
		p.match(TOKEN_OUTER)
	case p.match(TOKEN_FULL):
		join.Type = JoinFull
		p.match(TOKEN_OUTER)
	case p.match(TOKEN_CROSS):
		join.Type = JoinCross
	}

	if !p.expect(TOKEN_JOIN) {
		return nil
	}

	join.Right = p.parseTableRef()
	if join.Right == nil {
		return nil
	}

	switch {
	case p.match(TOKEN_ON):
		join.Condition = p.parseRequiredExpr()
	case p.match(TOKEN_USING):
		join.Using = p.parseIdentList()
	}

	if p.failed() {
		return nil
	}
	return join
}

// parseTableRef parses one FROM source.
func (p *Parser) parseTableRef() TableRef {
	if p.check(TOKEN_LPAREN) {
		p.nextToken()
		if !p.check(TOKEN_SELECT) && !p.check(TOKEN_WITH) && !p.check(TOKEN_LPAREN) {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "subquery"))
			return nil
		}
		stmt := p.parseStatement()
		if !p.expect(TOKEN_RPAREN) {
			return nil
		}
		return &DerivedTable{Select: stmt, Alias: p.parseAlias()}
	}

	if !p.check(TOKEN_IDENT) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "table name"))
		return nil
	}

	if p.checkPeek(TOKEN_LPAREN) {
		fn := p.parseFuncCall()
		if fn == nil {
			return nil
		}
		return &TableFunction{Func: fn, Alias: p.parseAlias()}
	}

	table := p.parseTableName()
	if table == nil {
		return nil
	}
	table.Alias = p.parseAlias()
	return table
}

// parseTableName parses name ("." name){0,2}.
func (p *Parser) parseTableName() *TableName {
	var parts []string
	for {
		name, ok := p.parseIdent()
		if !ok {
			return nil
		}
		parts = append(parts, name)
		if !p.check(TOKEN_DOT) {
			break
		}
		p.nextToken()
	}

	switch len(parts) {
	case 1:
		return &TableName{Name: parts[0]}
	case 2:
		return &TableName{Schema: parts[0], Name: parts[1]}
	case 3:
		return &TableName{Catalog: parts[0], Schema: parts[1], Name: parts[2]}
	default:
		p.addError(fmt.Sprintf(ErrTooManyNameParts, strings.Join(parts, ".")))
		return nil
	}
}
