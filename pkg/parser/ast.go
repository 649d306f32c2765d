package parser

// Node is implemented by every AST node.
type Node interface {
	node()
}

// Expr is a value expression.
type Expr interface {
	Node
	exprNode()
}

// TableRef is a FROM-clause source.
type TableRef interface {
	Node
	tableRefNode()
}

// QueryExpr is the body of a query. It is closed over *SelectCore and
// *SetOperation; no other type implements it.
type QueryExpr interface {
	Node
	queryNode()
}

// ---------- Statements ----------

// SelectStmt is a complete query: optional WITH, a body, and trailing
// ORDER BY / LIMIT / OFFSET that apply to the whole body.
type SelectStmt struct {
	With    *WithClause
	Body    QueryExpr
	OrderBy []OrderByItem
	Limit   Expr
	Offset  Expr
}

// WithClause holds the CTE definitions of a statement.
type WithClause struct {
	Recursive bool
	CTEs      []*CTE
}

// CTE is one named common table expression.
type CTE struct {
	Name    string
	Columns []string // optional column list: name(a, b) AS (...)
	Select  *SelectStmt
}

// SetOpType is the combinator of a SetOperation.
type SetOpType string

// Set operation combinators.
const (
	SetOpUnion     SetOpType = "UNION"
	SetOpIntersect SetOpType = "INTERSECT"
	SetOpExcept    SetOpType = "EXCEPT"
)

// SetOperation combines two query bodies.
type SetOperation struct {
	Op    SetOpType
	All   bool
	Left  QueryExpr
	Right QueryExpr
}

// SelectCore is a single SELECT ... FROM ... block.
type SelectCore struct {
	Distinct   bool
	DistinctOn []Expr
	Columns    []SelectItem
	From       *FromClause
	Where      Expr
	GroupBy    []Expr
	GroupByAll bool
	Having     Expr
	Windows    []NamedWindow
	Qualify    Expr
}

// NamedWindow is a WINDOW clause entry: name AS (spec).
type NamedWindow struct {
	Name string
	Spec *WindowSpec
}

// SelectItem is one entry in the select list.
type SelectItem struct {
	Star      bool     // SELECT *
	TableStar string   // SELECT t.*
	Exclude   []string // * EXCLUDE (a, b) / * EXCEPT (a, b)
	Expr      Expr
	Alias     string
}

// IsStar reports whether the item is a wildcard, qualified or not.
func (s SelectItem) IsStar() bool {
	return s.Star || s.TableStar != ""
}

// OrderByItem is one ORDER BY key.
type OrderByItem struct {
	Expr       Expr
	Desc       bool
	NullsFirst *bool
}

// FromClause is the FROM clause with its joins in source order.
type FromClause struct {
	Source TableRef
	Joins  []*Join
}

// Tables returns the source followed by every join target.
func (f *FromClause) Tables() []TableRef {
	if f == nil || f.Source == nil {
		return nil
	}
	refs := make([]TableRef, 0, 1+len(f.Joins))
	refs = append(refs, f.Source)
	for _, j := range f.Joins {
		refs = append(refs, j.Right)
	}
	return refs
}

// JoinType is the kind of join.
type JoinType string

// Join types. JoinComma is the implicit cross join written as ",".
const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
	JoinCross JoinType = "CROSS"
	JoinComma JoinType = ","
)

// Join is a JOIN clause.
type Join struct {
	Type      JoinType
	Natural   bool
	Right     TableRef
	Condition Expr
	Using     []string
}

// ---------- Table references ----------

// TableName is a possibly qualified table name.
type TableName struct {
	Catalog string
	Schema  string
	Name    string
	Alias   string
}

// Parts returns the name segments that were written, outermost first.
func (t *TableName) Parts() []string {
	parts := make([]string, 0, 3)
	if t.Catalog != "" {
		parts = append(parts, t.Catalog)
	}
	if t.Schema != "" {
		parts = append(parts, t.Schema)
	}
	return append(parts, t.Name)
}

// DerivedTable is a subquery in FROM.
type DerivedTable struct {
	Select *SelectStmt
	Alias  string
}

// TableFunction is a table-valued function call in FROM.
type TableFunction struct {
	Func  *FuncCall
	Alias string
}

// ---------- Expressions ----------

// ColumnRef is a column reference. Table holds the full qualifier as written
// ("o", "raw.orders"), empty when unqualified.
type ColumnRef struct {
	Table  string
	Column string
}

// LiteralType is the kind of a literal.
type LiteralType string

// Literal kinds.
const (
	LiteralNumber LiteralType = "NUMBER"
	LiteralString LiteralType = "STRING"
	LiteralBool   LiteralType = "BOOL"
	LiteralNull   LiteralType = "NULL"
)

// Literal is a constant value.
type Literal struct {
	Type  LiteralType
	Value string
}

// TypedLiteral is a type-prefixed string constant such as DATE '2024-01-01'.
type TypedLiteral struct {
	TypeName string
	Value    string
}

// IntervalExpr is INTERVAL <value> [unit].
type IntervalExpr struct {
	Value Expr
	Unit  string
}

// BinaryExpr is a binary operation. Op is the canonical operator text
// ("+", "AND", "||", ...).
type BinaryExpr struct {
	Left  Expr
	Op    string
	Right Expr
}

// UnaryExpr is a prefix operation ("-", "+", "NOT").
type UnaryExpr struct {
	Op   string
	Expr Expr
}

// FuncCall is a function invocation, aggregate or window call.
type FuncCall struct {
	Name     string
	Distinct bool
	Star     bool // COUNT(*)
	NoParens bool // CURRENT_DATE and friends
	Args     []Expr
	OrderBy  []OrderByItem // STRING_AGG(x, ',' ORDER BY y)
	Filter   Expr
	Window   *WindowSpec
}

// WindowSpec is the OVER clause of a window function.
type WindowSpec struct {
	Name        string // OVER w
	PartitionBy []Expr
	OrderBy     []OrderByItem
	Frame       string // frame clause text, e.g. "ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW"
}

// WhenClause is one WHEN ... THEN ... arm.
type WhenClause struct {
	Condition Expr
	Result    Expr
}

// CaseExpr is a simple or searched CASE.
type CaseExpr struct {
	Operand Expr // nil for searched CASE
	Whens   []WhenClause
	Else    Expr
}

// CastExpr is CAST(x AS t), TRY_CAST(x AS t) or x::t.
type CastExpr struct {
	Expr        Expr
	TypeName    string
	DoubleColon bool
	Function    string // "TRY_CAST", "SAFE_CAST"; empty for CAST
}

// InExpr is x [NOT] IN (values) or x [NOT] IN (subquery).
type InExpr struct {
	Expr   Expr
	Not    bool
	Values []Expr
	Query  *SelectStmt
}

// BetweenExpr is x [NOT] BETWEEN low AND high.
type BetweenExpr struct {
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

// LikeExpr is x [NOT] LIKE|ILIKE pattern.
type LikeExpr struct {
	Expr    Expr
	Not     bool
	ILike   bool
	Pattern Expr
}

// IsExpr is x IS [NOT] NULL|TRUE|FALSE or x IS [NOT] DISTINCT FROM y.
type IsExpr struct {
	Expr         Expr
	Not          bool
	Value        string // "NULL", "TRUE", "FALSE"; empty with DistinctFrom
	DistinctFrom Expr
}

// ExistsExpr is [NOT] EXISTS (subquery).
type ExistsExpr struct {
	Not   bool
	Query *SelectStmt
}

// SubqueryExpr is a scalar subquery.
type SubqueryExpr struct {
	Query *SelectStmt
}

// ParenExpr is a parenthesized expression.
type ParenExpr struct {
	Expr Expr
}

// ExtractExpr is EXTRACT(field FROM x).
type ExtractExpr struct {
	Field string
	From  Expr
}

// ListExpr is a list literal [a, b].
type ListExpr struct {
	Elements []Expr
}

// IndexExpr is x[i].
type IndexExpr struct {
	Expr  Expr
	Index Expr
}

// ---------- marker methods ----------

func (*SelectStmt) node()    {}
func (*WithClause) node()    {}
func (*CTE) node()           {}
func (*SetOperation) node()  {}
func (*SelectCore) node()    {}
func (*FromClause) node()    {}
func (*Join) node()          {}
func (*TableName) node()     {}
func (*DerivedTable) node()  {}
func (*TableFunction) node() {}
func (*ColumnRef) node()     {}
func (*Literal) node()       {}
func (*TypedLiteral) node()  {}
func (*IntervalExpr) node()  {}
func (*BinaryExpr) node()    {}
func (*UnaryExpr) node()     {}
func (*FuncCall) node()      {}
func (*CaseExpr) node()      {}
func (*CastExpr) node()      {}
func (*InExpr) node()        {}
func (*BetweenExpr) node()   {}
func (*LikeExpr) node()      {}
func (*IsExpr) node()        {}
func (*ExistsExpr) node()    {}
func (*SubqueryExpr) node()  {}
func (*ParenExpr) node()     {}
func (*ExtractExpr) node()   {}
func (*ListExpr) node()      {}
func (*IndexExpr) node()     {}

func (*SelectCore) queryNode()   {}
func (*SetOperation) queryNode() {}

func (*TableName) tableRefNode()     {}
func (*DerivedTable) tableRefNode()  {}
func (*TableFunction) tableRefNode() {}

func (*ColumnRef) exprNode()    {}
func (*Literal) exprNode()      {}
func (*TypedLiteral) exprNode() {}
func (*IntervalExpr) exprNode() {}
func (*BinaryExpr) exprNode()   {}
func (*UnaryExpr) exprNode()    {}
func (*FuncCall) exprNode()     {}
func (*CaseExpr) exprNode()     {}
func (*CastExpr) exprNode()     {}
func (*InExpr) exprNode()       {}
func (*BetweenExpr) exprNode()  {}
func (*LikeExpr) exprNode()     {}
func (*IsExpr) exprNode()       {}
func (*ExistsExpr) exprNode()   {}
func (*SubqueryExpr) exprNode() {}
func (*ParenExpr) exprNode()    {}
func (*ExtractExpr) exprNode()  {}
func (*ListExpr) exprNode()     {}
func (*IndexExpr) exprNode()    {}
