package parser

import (
	"bytes"
	"strings"
)

// ToSQL renders a node back to canonical single-line SQL. Keywords are upper
// case, identifiers are quoted only when needed, and parsing the output again
// yields an equivalent tree.
func ToSQL(n Node) string {
	pr := &printer{}
	pr.node(n)
	return pr.String()
}

// FormatExpr renders an expression as SQL.
func FormatExpr(e Expr) string {
	if e == nil {
		return ""
	}
	return ToSQL(e)
}

type printer struct {
	out bytes.Buffer
}

func (p *printer) String() string {
	return p.out.String()
}

func (p *printer) write(s string) {
	p.out.WriteString(s)
}

func (p *printer) ident(name string) {
	p.write(quoteIdent(name))
}

// list renders items separated by ", ".
func (p *printer) exprList(exprs []Expr) {
	for i, e := range exprs {
		if i > 0 {
			p.write(", ")
		}
		p.node(e)
	}
}

func (p *printer) identList(names []string) {
	p.write("(")
	for i, name := range names {
		if i > 0 {
			p.write(", ")
		}
		p.ident(name)
	}
	p.write(")")
}

func (p *printer) orderBy(items []OrderByItem) {
	for i, item := range items {
		if i > 0 {
			p.write(", ")
		}
		p.node(item.Expr)
		if item.Desc {
			p.write(" DESC")
		}
		if item.NullsFirst != nil {
			if *item.NullsFirst {
				p.write(" NULLS FIRST")
			} else {
				p.write(" NULLS LAST")
			}
		}
	}
}

//nolint:gocyclo // one case per node kind
func (p *printer) node(n Node) {
	switch n := n.(type) {
	case nil:
	case *SelectStmt:
		p.selectStmt(n)
	case *SelectCore:
		p.selectCore(n)
	case *SetOperation:
		p.setOperand(n.Left)
		p.write(" ")
		p.write(string(n.Op))
		if n.All {
			p.write(" ALL")
		}
		p.write(" ")
		p.setOperand(n.Right)
	case *TableName:
		for i, part := range n.Parts() {
			if i > 0 {
				p.write(".")
			}
			p.ident(part)
		}
		p.alias(n.Alias)
	case *DerivedTable:
		p.write("(")
		p.selectStmt(n.Select)
		p.write(")")
		p.alias(n.Alias)
	case *TableFunction:
		p.node(n.Func)
		p.alias(n.Alias)
	case *ColumnRef:
		if n.Table != "" {
			for _, part := range strings.Split(n.Table, ".") {
				p.ident(part)
				p.write(".")
			}
		}
		p.ident(n.Column)
	case *Literal:
		switch n.Type {
		case LiteralString:
			p.write(quoteString(n.Value))
		default:
			p.write(n.Value)
		}
	case *TypedLiteral:
		p.write(n.TypeName)
		p.write(" ")
		p.write(quoteString(n.Value))
	case *IntervalExpr:
		p.write("INTERVAL ")
		p.node(n.Value)
		if n.Unit != "" {
			p.write(" ")
			p.write(n.Unit)
		}
	case *BinaryExpr:
		p.node(n.Left)
		p.write(" ")
		p.write(n.Op)
		p.write(" ")
		p.node(n.Right)
	case *UnaryExpr:
		p.write(n.Op)
		if n.Op == "NOT" {
			p.write(" ")
		}
		p.node(n.Expr)
	case *FuncCall:
		p.funcCall(n)
	case *CaseExpr:
		p.write("CASE")
		if n.Operand != nil {
			p.write(" ")
			p.node(n.Operand)
		}
		for _, when := range n.Whens {
			p.write(" WHEN ")
			p.node(when.Condition)
			p.write(" THEN ")
			p.node(when.Result)
		}
		if n.Else != nil {
			p.write(" ELSE ")
			p.node(n.Else)
		}
		p.write(" END")
	case *CastExpr:
		if n.DoubleColon {
			p.node(n.Expr)
			p.write("::")
			p.write(n.TypeName)
			return
		}
		if n.Function != "" {
			p.write(n.Function)
		} else {
			p.write("CAST")
		}
		p.write("(")
		p.node(n.Expr)
		p.write(" AS ")
		p.write(n.TypeName)
		p.write(")")
	case *InExpr:
		p.node(n.Expr)
		p.not(n.Not)
		p.write(" IN (")
		if n.Query != nil {
			p.selectStmt(n.Query)
		} else {
			p.exprList(n.Values)
		}
		p.write(")")
	case *BetweenExpr:
		p.node(n.Expr)
		p.not(n.Not)
		p.write(" BETWEEN ")
		p.node(n.Low)
		p.write(" AND ")
		p.node(n.High)
	case *LikeExpr:
		p.node(n.Expr)
		p.not(n.Not)
		if n.ILike {
			p.write(" ILIKE ")
		} else {
			p.write(" LIKE ")
		}
		p.node(n.Pattern)
	case *IsExpr:
		p.node(n.Expr)
		p.write(" IS")
		p.not(n.Not)
		if n.DistinctFrom != nil {
			p.write(" DISTINCT FROM ")
			p.node(n.DistinctFrom)
		} else {
			p.write(" ")
			p.write(n.Value)
		}
	case *ExistsExpr:
		if n.Not {
			p.write("NOT ")
		}
		p.write("EXISTS (")
		p.selectStmt(n.Query)
		p.write(")")
	case *SubqueryExpr:
		p.write("(")
		p.selectStmt(n.Query)
		p.write(")")
	case *ParenExpr:
		p.write("(")
		p.node(n.Expr)
		p.write(")")
	case *ExtractExpr:
		p.write("EXTRACT(")
		p.write(n.Field)
		p.write(" FROM ")
		p.node(n.From)
		p.write(")")
	case *ListExpr:
		p.write("[")
		p.exprList(n.Elements)
		p.write("]")
	case *IndexExpr:
		p.node(n.Expr)
		p.write("[")
		p.node(n.Index)
		p.write("]")
	}
}

func (p *printer) not(not bool) {
	if not {
		p.write(" NOT")
	}
}

func (p *printer) alias(alias string) {
	if alias != "" {
		p.write(" AS ")
		p.ident(alias)
	}
}

func (p *printer) selectStmt(s *SelectStmt) {
	if s == nil {
		return
	}
	if s.With != nil {
		p.write("WITH ")
		if s.With.Recursive {
			p.write("RECURSIVE ")
		}
		for i, cte := range s.With.CTEs {
			if i > 0 {
				p.write(", ")
			}
			p.ident(cte.Name)
			if len(cte.Columns) > 0 {
				p.identList(cte.Columns)
			}
			p.write(" AS (")
			p.selectStmt(cte.Select)
			p.write(")")
		}
		p.write(" ")
	}
	p.node(s.Body)
	if len(s.OrderBy) > 0 {
		p.write(" ORDER BY ")
		p.orderBy(s.OrderBy)
	}
	if s.Limit != nil {
		p.write(" LIMIT ")
		p.node(s.Limit)
	}
	if s.Offset != nil {
		p.write(" OFFSET ")
		p.node(s.Offset)
	}
}

// setOperand parenthesizes a nested set operation on the right, and an
// INTERSECT operand that is itself a UNION/EXCEPT, so the tree shape survives.
func (p *printer) setOperand(q QueryExpr) {
	if op, ok := q.(*SetOperation); ok && op.Op != SetOpIntersect {
		p.write("(")
		p.node(op)
		p.write(")")
		return
	}
	p.node(q)
}

func (p *printer) selectCore(c *SelectCore) {
	p.write("SELECT ")
	if c.Distinct {
		p.write("DISTINCT ")
		if len(c.DistinctOn) > 0 {
			p.write("ON (")
			p.exprList(c.DistinctOn)
			p.write(") ")
		}
	}
	for i, item := range c.Columns {
		if i > 0 {
			p.write(", ")
		}
		p.selectItem(item)
	}
	if c.From != nil {
		p.write(" FROM ")
		p.node(c.From.Source)
		for _, j := range c.From.Joins {
			p.join(j)
		}
	}
	if c.Where != nil {
		p.write(" WHERE ")
		p.node(c.Where)
	}
	if c.GroupByAll {
		p.write(" GROUP BY ALL")
	} else if len(c.GroupBy) > 0 {
		p.write(" GROUP BY ")
		p.exprList(c.GroupBy)
	}
	if c.Having != nil {
		p.write(" HAVING ")
		p.node(c.Having)
	}
	if len(c.Windows) > 0 {
		p.write(" WINDOW ")
		for i, w := range c.Windows {
			if i > 0 {
				p.write(", ")
			}
			p.ident(w.Name)
			p.write(" AS ")
			p.windowSpec(w.Spec)
		}
	}
	if c.Qualify != nil {
		p.write(" QUALIFY ")
		p.node(c.Qualify)
	}
}

func (p *printer) selectItem(item SelectItem) {
	switch {
	case item.Star:
		p.write("*")
	case item.TableStar != "":
		p.ident(item.TableStar)
		p.write(".*")
	default:
		p.node(item.Expr)
		p.alias(item.Alias)
		return
	}
	if len(item.Exclude) > 0 {
		p.write(" EXCLUDE ")
		p.identList(item.Exclude)
	}
}

func (p *printer) join(j *Join) {
	if j.Type == JoinComma {
		p.write(", ")
		p.node(j.Right)
		return
	}
	p.write(" ")
	if j.Natural {
		p.write("NATURAL ")
	}
	p.write(string(j.Type))
	p.write(" JOIN ")
	p.node(j.Right)
	if j.Condition != nil {
		p.write(" ON ")
		p.node(j.Condition)
	}
	if len(j.Using) > 0 {
		p.write(" USING ")
		p.identList(j.Using)
	}
}

func (p *printer) funcCall(f *FuncCall) {
	p.write(f.Name)
	if f.NoParens {
		return
	}
	p.write("(")
	switch {
	case f.Star:
		p.write("*")
	default:
		if f.Distinct {
			p.write("DISTINCT ")
		}
		p.exprList(f.Args)
		if len(f.OrderBy) > 0 {
			p.write(" ORDER BY ")
			p.orderBy(f.OrderBy)
		}
	}
	p.write(")")
	if f.Filter != nil {
		p.write(" FILTER (WHERE ")
		p.node(f.Filter)
		p.write(")")
	}
	if f.Window != nil {
		p.write(" OVER ")
		if f.Window.Name != "" && len(f.Window.PartitionBy) == 0 && len(f.Window.OrderBy) == 0 && f.Window.Frame == "" {
			p.ident(f.Window.Name)
			return
		}
		p.windowSpec(f.Window)
	}
}

func (p *printer) windowSpec(w *WindowSpec) {
	p.write("(")
	var parts []string
	if w.Name != "" {
		parts = append(parts, quoteIdent(w.Name))
	}
	if len(w.PartitionBy) > 0 {
		sub := &printer{}
		sub.exprList(w.PartitionBy)
		parts = append(parts, "PARTITION BY "+sub.String())
	}
	if len(w.OrderBy) > 0 {
		sub := &printer{}
		sub.orderBy(w.OrderBy)
		parts = append(parts, "ORDER BY "+sub.String())
	}
	if w.Frame != "" {
		parts = append(parts, w.Frame)
	}
	p.write(strings.Join(parts, " "))
	p.write(")")
}

// quoteIdent quotes name when it is not a plain lower-case identifier or
// collides with a keyword.
func quoteIdent(name string) string {
	if isPlainIdent(name) && LookupIdent(name) == TOKEN_IDENT {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func isPlainIdent(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c == '_':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
