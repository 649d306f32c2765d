package parser

// Branches returns every SELECT block of a query body in left-to-right
// order. Only set-operation edges are followed: a *SelectCore is a leaf, and
// nothing inside its FROM clause or expressions is visited. CTE definitions
// live on the SelectStmt, not in the body, and are never returned.
func Branches(q QueryExpr) []*SelectCore {
	var out []*SelectCore
	var visit func(QueryExpr)
	visit = func(q QueryExpr) {
		switch n := q.(type) {
		case *SelectCore:
			out = append(out, n)
		case *SetOperation:
			visit(n.Left)
			visit(n.Right)
		}
	}
	visit(q)
	return out
}

// ColumnRefs returns the column references of expr in first-seen order.
// Subqueries (scalar, IN, EXISTS) introduce their own scope and are not
// entered.
func ColumnRefs(expr Expr) []*ColumnRef {
	var refs []*ColumnRef
	collectColumnRefs(expr, &refs)
	return refs
}

func collectColumnRefs(expr Expr, refs *[]*ColumnRef) {
	if expr == nil {
		return
	}
	switch e := expr.(type) {
	case *ColumnRef:
		*refs = append(*refs, e)
	case *BinaryExpr:
		collectColumnRefs(e.Left, refs)
		collectColumnRefs(e.Right, refs)
	case *UnaryExpr:
		collectColumnRefs(e.Expr, refs)
	case *ParenExpr:
		collectColumnRefs(e.Expr, refs)
	case *FuncCall:
		for _, arg := range e.Args {
			collectColumnRefs(arg, refs)
		}
		for _, item := range e.OrderBy {
			collectColumnRefs(item.Expr, refs)
		}
		collectColumnRefs(e.Filter, refs)
		if e.Window != nil {
			for _, part := range e.Window.PartitionBy {
				collectColumnRefs(part, refs)
			}
			for _, item := range e.Window.OrderBy {
				collectColumnRefs(item.Expr, refs)
			}
		}
	case *CaseExpr:
		collectColumnRefs(e.Operand, refs)
		for _, when := range e.Whens {
			collectColumnRefs(when.Condition, refs)
			collectColumnRefs(when.Result, refs)
		}
		collectColumnRefs(e.Else, refs)
	case *CastExpr:
		collectColumnRefs(e.Expr, refs)
	case *InExpr:
		collectColumnRefs(e.Expr, refs)
		for _, v := range e.Values {
			collectColumnRefs(v, refs)
		}
	case *BetweenExpr:
		collectColumnRefs(e.Expr, refs)
		collectColumnRefs(e.Low, refs)
		collectColumnRefs(e.High, refs)
	case *LikeExpr:
		collectColumnRefs(e.Expr, refs)
		collectColumnRefs(e.Pattern, refs)
	case *IsExpr:
		collectColumnRefs(e.Expr, refs)
		collectColumnRefs(e.DistinctFrom, refs)
	case *IntervalExpr:
		collectColumnRefs(e.Value, refs)
	case *ExtractExpr:
		collectColumnRefs(e.From, refs)
	case *ListExpr:
		for _, el := range e.Elements {
			collectColumnRefs(el, refs)
		}
	case *IndexExpr:
		collectColumnRefs(e.Expr, refs)
		collectColumnRefs(e.Index, refs)
	case *Literal, *TypedLiteral, *SubqueryExpr, *ExistsExpr:
		// no column references in this scope
	}
}

// TableNames returns every base table named anywhere in stmt, including CTE
// bodies, derived tables and subqueries, in first-seen order. CTE names
// referenced as tables are included; callers filter them when needed.
func TableNames(stmt *SelectStmt) []*TableName {
	var names []*TableName
	collectStmtTables(stmt, &names)
	return names
}

func collectStmtTables(stmt *SelectStmt, names *[]*TableName) {
	if stmt == nil {
		return
	}
	if stmt.With != nil {
		for _, cte := range stmt.With.CTEs {
			collectStmtTables(cte.Select, names)
		}
	}
	for _, core := range Branches(stmt.Body) {
		for _, ref := range core.From.Tables() {
			switch t := ref.(type) {
			case *TableName:
				*names = append(*names, t)
			case *DerivedTable:
				collectStmtTables(t.Select, names)
			}
		}
		for _, item := range core.Columns {
			collectExprTables(item.Expr, names)
		}
		collectExprTables(core.Where, names)
		collectExprTables(core.Having, names)
	}
}

// collectExprTables finds tables referenced by subqueries nested in an
// expression.
func collectExprTables(expr Expr, names *[]*TableName) {
	switch e := expr.(type) {
	case *SubqueryExpr:
		collectStmtTables(e.Query, names)
	case *ExistsExpr:
		collectStmtTables(e.Query, names)
	case *InExpr:
		collectStmtTables(e.Query, names)
		collectExprTables(e.Expr, names)
	case *BinaryExpr:
		collectExprTables(e.Left, names)
		collectExprTables(e.Right, names)
	case *UnaryExpr:
		collectExprTables(e.Expr, names)
	case *ParenExpr:
		collectExprTables(e.Expr, names)
	}
}
