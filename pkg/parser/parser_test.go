package parser_test

import (
	"testing"

	"github.com/leapstack-labs/leaptrace/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, sql string) *parser.SelectStmt {
	t.Helper()
	d, ok := parser.GetDialect("duckdb")
	require.True(t, ok)
	stmt, err := parser.Parse(sql, d)
	require.NoError(t, err)
	require.NotNil(t, stmt)
	return stmt
}

func firstCore(t *testing.T, stmt *parser.SelectStmt) *parser.SelectCore {
	t.Helper()
	core, ok := stmt.Body.(*parser.SelectCore)
	require.True(t, ok, "expected *SelectCore body, got %T", stmt.Body)
	return core
}

// ---------- Select list Tests ----------

func TestParseSelectItems(t *testing.T) {
	stmt := mustParse(t, `SELECT o.id, o.amt * 1.1 AS total, 'x' label, *, o.* EXCLUDE (secret) FROM raw.orders o`)
	core := firstCore(t, stmt)
	require.Len(t, core.Columns, 5)

	id, ok := core.Columns[0].Expr.(*parser.ColumnRef)
	require.True(t, ok)
	assert.Equal(t, "o", id.Table)
	assert.Equal(t, "id", id.Column)

	assert.Equal(t, "total", core.Columns[1].Alias)
	bin, ok := core.Columns[1].Expr.(*parser.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "*", bin.Op)

	assert.Equal(t, "label", core.Columns[2].Alias)
	assert.True(t, core.Columns[3].Star)
	assert.Equal(t, "o", core.Columns[4].TableStar)
	assert.Equal(t, []string{"secret"}, core.Columns[4].Exclude)

	table, ok := core.From.Source.(*parser.TableName)
	require.True(t, ok)
	assert.Equal(t, "raw", table.Schema)
	assert.Equal(t, "orders", table.Name)
	assert.Equal(t, "o", table.Alias)
	assert.Equal(t, []string{"raw", "orders"}, table.Parts())
}

func TestParseStarExcept(t *testing.T) {
	d, _ := parser.GetDialect("bigquery")
	stmt, err := parser.Parse("SELECT * EXCEPT (a, b) FROM `proj`.`ds`.t", d)
	require.NoError(t, err)
	core := stmt.Body.(*parser.SelectCore)
	assert.Equal(t, []string{"a", "b"}, core.Columns[0].Exclude)
	table := core.From.Source.(*parser.TableName)
	assert.Equal(t, []string{"proj", "ds", "t"}, table.Parts())
}

// ---------- FROM Tests ----------

func TestParseJoins(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		wantType parser.JoinType
		natural  bool
		hasOn    bool
		using    []string
	}{
		{name: "inner", sql: "SELECT 1 FROM a JOIN b ON a.id = b.id", wantType: parser.JoinInner, hasOn: true},
		{name: "left outer", sql: "SELECT 1 FROM a LEFT OUTER JOIN b ON a.id = b.id", wantType: parser.JoinLeft, hasOn: true},
		{name: "right", sql: "SELECT 1 FROM a RIGHT JOIN b USING (id)", wantType: parser.JoinRight, using: []string{"id"}},
		{name: "full", sql: "SELECT 1 FROM a FULL JOIN b ON true", wantType: parser.JoinFull, hasOn: true},
		{name: "cross", sql: "SELECT 1 FROM a CROSS JOIN b", wantType: parser.JoinCross},
		{name: "natural", sql: "SELECT 1 FROM a NATURAL JOIN b", wantType: parser.JoinInner, natural: true},
		{name: "comma", sql: "SELECT 1 FROM a, b", wantType: parser.JoinComma},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core := firstCore(t, mustParse(t, tt.sql))
			require.NotNil(t, core.From)
			require.Len(t, core.From.Joins, 1)
			join := core.From.Joins[0]
			assert.Equal(t, tt.wantType, join.Type)
			assert.Equal(t, tt.natural, join.Natural)
			assert.Equal(t, tt.hasOn, join.Condition != nil)
			assert.Equal(t, tt.using, join.Using)
			assert.Len(t, core.From.Tables(), 2)
		})
	}
}

func TestParseLeftFunctionIsNotJoin(t *testing.T) {
	core := firstCore(t, mustParse(t, "SELECT left(name, 2) AS prefix FROM users"))
	fn, ok := core.Columns[0].Expr.(*parser.FuncCall)
	require.True(t, ok)
	assert.Equal(t, "left", fn.Name)
	assert.Len(t, fn.Args, 2)
	assert.Empty(t, core.From.Joins)
}

func TestParseDerivedTableAndTableFunction(t *testing.T) {
	core := firstCore(t, mustParse(t, `SELECT d.x, f.y FROM (SELECT x FROM t) AS d, read_csv('a.csv') f`))
	derived, ok := core.From.Source.(*parser.DerivedTable)
	require.True(t, ok)
	assert.Equal(t, "d", derived.Alias)
	require.NotNil(t, derived.Select)

	fn, ok := core.From.Joins[0].Right.(*parser.TableFunction)
	require.True(t, ok)
	assert.Equal(t, "read_csv", fn.Func.Name)
	assert.Equal(t, "f", fn.Alias)
}

func TestParseThreePartName(t *testing.T) {
	core := firstCore(t, mustParse(t, "SELECT c FROM db.sch.tbl"))
	table := core.From.Source.(*parser.TableName)
	assert.Equal(t, "db", table.Catalog)
	assert.Equal(t, "sch", table.Schema)
	assert.Equal(t, "tbl", table.Name)
	assert.Empty(t, table.Alias)
}

// ---------- WITH / set operation Tests ----------

func TestParseWithClause(t *testing.T) {
	stmt := mustParse(t, `
		WITH m AS (
			SELECT cust_id, COUNT(*) n, SUM(amt) s FROM int_ns.orders GROUP BY cust_id
		), "Other" (a) AS (SELECT 1)
		SELECT m.n AS total_orders, m.s AS total_amt FROM m`)
	require.NotNil(t, stmt.With)
	require.Len(t, stmt.With.CTEs, 2)
	assert.Equal(t, "m", stmt.With.CTEs[0].Name)
	assert.Equal(t, "Other", stmt.With.CTEs[1].Name)
	assert.Equal(t, []string{"a"}, stmt.With.CTEs[1].Columns)

	body := firstCore(t, stmt.With.CTEs[0].Select)
	require.Len(t, body.Columns, 3)
	count := body.Columns[1].Expr.(*parser.FuncCall)
	assert.True(t, count.Star)
	assert.Equal(t, "n", body.Columns[1].Alias)
	require.Len(t, body.GroupBy, 1)
}

func TestParseSetOperations(t *testing.T) {
	stmt := mustParse(t, "SELECT a FROM t1 UNION ALL SELECT a FROM t2 UNION SELECT a FROM t3 ORDER BY a LIMIT 10")
	outer, ok := stmt.Body.(*parser.SetOperation)
	require.True(t, ok)
	assert.Equal(t, parser.SetOpUnion, outer.Op)
	assert.False(t, outer.All)

	inner, ok := outer.Left.(*parser.SetOperation)
	require.True(t, ok)
	assert.True(t, inner.All)

	assert.Len(t, parser.Branches(stmt.Body), 3)
	require.Len(t, stmt.OrderBy, 1)
	assert.NotNil(t, stmt.Limit)
}

func TestParseIntersectBindsTighter(t *testing.T) {
	stmt := mustParse(t, "SELECT a FROM t1 UNION SELECT a FROM t2 INTERSECT SELECT a FROM t3")
	outer := stmt.Body.(*parser.SetOperation)
	assert.Equal(t, parser.SetOpUnion, outer.Op)
	right, ok := outer.Right.(*parser.SetOperation)
	require.True(t, ok)
	assert.Equal(t, parser.SetOpIntersect, right.Op)
}

func TestParseParenthesizedOperands(t *testing.T) {
	stmt := mustParse(t, "(SELECT a FROM t1 ORDER BY a LIMIT 1) EXCEPT (SELECT a FROM t2)")
	op := stmt.Body.(*parser.SetOperation)
	assert.Equal(t, parser.SetOpExcept, op.Op)
	assert.Len(t, parser.Branches(stmt.Body), 2)
}

// ---------- Expression Tests ----------

func TestParseExpressions(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{name: "precedence", sql: "a + b * c", want: "a + b * c"},
		{name: "and or", sql: "a = 1 OR b = 2 AND c = 3", want: "a = 1 OR b = 2 AND c = 3"},
		{name: "not in", sql: "x NOT IN (1, 2)", want: "x NOT IN (1, 2)"},
		{name: "between", sql: "x BETWEEN 1 AND 10", want: "x BETWEEN 1 AND 10"},
		{name: "is not null", sql: "x IS NOT NULL", want: "x IS NOT NULL"},
		{name: "distinct from", sql: "x IS DISTINCT FROM y", want: "x IS DISTINCT FROM y"},
		{name: "ilike", sql: "name ILIKE '%a%'", want: "name ILIKE '%a%'"},
		{name: "cast", sql: "cast(x as decimal(10,2))", want: "CAST(x AS DECIMAL(10, 2))"},
		{name: "double colon", sql: "x::varchar", want: "x::VARCHAR"},
		{name: "try cast", sql: "try_cast(x AS int)", want: "TRY_CAST(x AS INT)"},
		{name: "case", sql: "case when a > 0 then 'p' else 'n' end", want: "CASE WHEN a > 0 THEN 'p' ELSE 'n' END"},
		{name: "simple case", sql: "CASE a WHEN 1 THEN 'one' END", want: "CASE a WHEN 1 THEN 'one' END"},
		{name: "window", sql: "row_number() over (partition by a order by b desc)", want: "row_number() OVER (PARTITION BY a ORDER BY b DESC)"},
		{name: "frame", sql: "sum(x) OVER (ORDER BY d ROWS BETWEEN 2 PRECEDING AND CURRENT ROW)", want: "sum(x) OVER (ORDER BY d ROWS BETWEEN 2 PRECEDING AND CURRENT ROW)"},
		{name: "filter", sql: "count(*) filter (where x > 1)", want: "count(*) FILTER (WHERE x > 1)"},
		{name: "distinct agg", sql: "count(distinct user_id)", want: "count(DISTINCT user_id)"},
		{name: "string agg order", sql: "string_agg(x, ',' order by y)", want: "string_agg(x, ',' ORDER BY y)"},
		{name: "niladic", sql: "current_date", want: "CURRENT_DATE"},
		{name: "typed literal", sql: "date '2024-01-01'", want: "DATE '2024-01-01'"},
		{name: "interval", sql: "ts + interval '1' day", want: "ts + INTERVAL '1' DAY"},
		{name: "extract", sql: "extract(year from created_at)", want: "EXTRACT(YEAR FROM created_at)"},
		{name: "concat", sql: "first_name || ' ' || last_name", want: "first_name || ' ' || last_name"},
		{name: "quoted", sql: `"Order Total" + "select"`, want: `"Order Total" + "select"`},
		{name: "escaped string", sql: "'it''s'", want: "'it''s'"},
		{name: "list and index", sql: "[1, 2][1]", want: "[1, 2][1]"},
		{name: "qualified func", sql: "main.my_func(a)", want: "main.my_func(a)"},
		{name: "four part column", sql: "db.sch.tbl.col", want: "db.sch.tbl.col"},
		{name: "not exists", sql: "NOT EXISTS (SELECT 1 FROM t)", want: "NOT EXISTS (SELECT 1 FROM t)"},
		{name: "unary", sql: "-a", want: "-a"},
		{name: "not", sql: "NOT a", want: "NOT a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := parser.ParseExpr(tt.sql, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, parser.FormatExpr(expr))
		})
	}
}

func TestParseColumnRefQualifier(t *testing.T) {
	expr, err := parser.ParseExpr("raw.orders.amt", nil)
	require.NoError(t, err)
	ref, ok := expr.(*parser.ColumnRef)
	require.True(t, ok)
	assert.Equal(t, "raw.orders", ref.Table)
	assert.Equal(t, "amt", ref.Column)
}

// ---------- Error Tests ----------

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantMsg string
	}{
		{name: "not a select", sql: "UPDATE t SET a = 1", wantMsg: "expected SELECT"},
		{name: "empty select list", sql: "SELECT FROM t", wantMsg: "expected expression"},
		{name: "unterminated string", sql: "SELECT 'abc", wantMsg: ErrUnterminated},
		{name: "trailing garbage", sql: "SELECT a FROM t )", wantMsg: "after end of statement"},
		{name: "too many parts", sql: "SELECT a FROM a.b.c.d", wantMsg: "more than three parts"},
		{name: "missing paren", sql: "SELECT count(a FROM t", wantMsg: "expected )"},
		{name: "nested with", sql: "(WITH x AS (SELECT 1) SELECT * FROM x) UNION SELECT 2", wantMsg: "WITH inside"},
		{name: "jinja left over", sql: "SELECT a FROM {{ ref('x') }}", wantMsg: "illegal input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := parser.Parse(tt.sql, nil)
			require.Error(t, err)
			assert.Nil(t, stmt)
			var perr *parser.ParseError
			require.ErrorAs(t, err, &perr)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.GreaterOrEqual(t, perr.Pos.Line, 1)
		})
	}
}

// ErrUnterminated is the prefix of the lexer's unterminated-string message.
const ErrUnterminated = "unterminated string"

func TestParseErrorPosition(t *testing.T) {
	_, err := parser.Parse("SELECT a\nFROM t\nWHERE )", nil)
	require.Error(t, err)
	var perr *parser.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 3, perr.Pos.Line)
	assert.Equal(t, 7, perr.Pos.Column)
}

func TestParseTrailingSemicolonAndComments(t *testing.T) {
	stmt := mustParse(t, "-- header\nSELECT a /* inline */ FROM t;")
	core := firstCore(t, stmt)
	assert.Len(t, core.Columns, 1)
}

func TestDialects(t *testing.T) {
	assert.Contains(t, parser.Dialects(), "duckdb")
	assert.Contains(t, parser.Dialects(), "bigquery")

	d, ok := parser.GetDialect("Snowflake")
	require.True(t, ok)
	assert.Equal(t, "ORDERS", d.Normalize("orders"))

	_, ok = parser.GetDialect("oracle")
	assert.False(t, ok)
}
