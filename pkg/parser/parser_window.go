package parser

import (
	"fmt"
	"strings"
)

// Window clause parsing.
//
//	window_spec → "(" [base_window] [PARTITION BY expr_list]
//	              [ORDER BY order_list] [frame_clause] ")"
//	frame_clause → (ROWS | RANGE | GROUPS) ...
//
// The frame clause never references columns that matter for lineage beyond
// its bound expressions, so it is kept as normalized text.

// parseWindowSpec parses a parenthesized window specification.
func (p *Parser) parseWindowSpec() *WindowSpec {
	if !p.expect(TOKEN_LPAREN) {
		return nil
	}
	spec := &WindowSpec{}

	if p.check(TOKEN_IDENT) && !p.isFrameStart() && !p.checkWord("partition") {
		spec.Name = p.token.Literal
		p.nextToken()
	}

	if p.matchWord("partition") {
		if !p.expect(TOKEN_BY) {
			return nil
		}
		spec.PartitionBy = p.parseExprList()
	}

	if p.check(TOKEN_ORDER) {
		p.nextToken()
		if !p.expect(TOKEN_BY) {
			return nil
		}
		spec.OrderBy = p.parseOrderByList()
	}

	if p.isFrameStart() {
		spec.Frame = p.parseFrameText()
	}

	if !p.expect(TOKEN_RPAREN) {
		return nil
	}
	return spec
}

func (p *Parser) isFrameStart() bool {
	return p.checkWord("rows") || p.checkWord("range") || p.checkWord("groups")
}

// parseFrameText consumes tokens up to the closing parenthesis of the window
// and returns them as upper-cased, space-separated text.
func (p *Parser) parseFrameText() string {
	var words []string
	depth := 0
	for !p.check(TOKEN_EOF) {
		if p.check(TOKEN_RPAREN) {
			if depth == 0 {
				break
			}
			depth--
		}
		if p.check(TOKEN_LPAREN) {
			depth++
		}
		switch p.token.Type {
		case TOKEN_STRING:
			words = append(words, quoteString(p.token.Literal))
		case TOKEN_NUMBER:
			words = append(words, p.token.Literal)
		default:
			words = append(words, strings.ToUpper(p.token.Literal))
		}
		p.nextToken()
	}
	return strings.Join(words, " ")
}

// parseNamedWindows parses: name AS window_spec ("," name AS window_spec)*
func (p *Parser) parseNamedWindows() []NamedWindow {
	var windows []NamedWindow
	for !p.failed() {
		name, ok := p.parseIdent()
		if !ok || !p.expect(TOKEN_AS) {
			return nil
		}
		spec := p.parseWindowSpec()
		if spec == nil {
			if !p.failed() {
				p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token, "window specification"))
			}
			return nil
		}
		windows = append(windows, NamedWindow{Name: name, Spec: spec})
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return windows
}
