package lineage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaptrace/pkg/parser"
)

func parseCore(t *testing.T, sql string) *parser.SelectCore {
	t.Helper()
	stmt, err := parser.Parse(sql, parser.ANSI)
	require.NoError(t, err)
	branches := parser.Branches(stmt.Body)
	require.NotEmpty(t, branches)
	return branches[0]
}

func TestClassifyProjection(t *testing.T) {
	core := parseCore(t, `SELECT o.id, o.amt * 1.1 AS total, 'x' label, a + 1, *, o.* EXCLUDE (secret), COUNT(*) n FROM raw.orders o`)

	tests := []struct {
		name   string
		output string
		kind   ProjectionKind
		refs   []RawRef
	}{
		{name: "bare column", output: "id", kind: KindDirect, refs: []RawRef{{Table: "o", Column: "id"}}},
		{name: "arithmetic", output: "total", kind: KindCalculated, refs: []RawRef{{Table: "o", Column: "amt"}}},
		{name: "literal", output: "label", kind: KindConstant},
		{name: "unnamed", output: "column4", kind: KindCalculated, refs: []RawRef{{Column: "a"}}},
		{name: "star", output: "column5", kind: KindStar},
		{name: "qualified star", output: "column6", kind: KindStar},
		{name: "aggregate without columns", output: "n", kind: KindConstant},
	}
	require.Len(t, core.Columns, len(tests))

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := classifyProjection(core.Columns[i], i+1)
			assert.Equal(t, tt.output, p.OutputName())
			assert.Equal(t, tt.kind, p.Kind)
			assert.Equal(t, tt.refs, p.RawRefs)
			assert.Equal(t, i+1, p.Position)
		})
	}

	star := classifyProjection(core.Columns[5], 6)
	assert.Equal(t, "o", star.StarTable)
	assert.Equal(t, []string{"secret"}, star.Exclude)
	assert.True(t, star.starCovers("amount"))
	assert.False(t, star.starCovers("SECRET"))
}

// Rendering an expression and classifying the re-parsed text must agree
// with classifying the original.
func TestClassifyProjection_RoundTrip(t *testing.T) {
	exprs := []string{
		`o.amt * 1.1`,
		`CASE WHEN a > 0 THEN b ELSE c END`,
		`COALESCE(x.a, y.b, 0)`,
		`SUM(amt) FILTER (WHERE status = 'paid')`,
		`ROW_NUMBER() OVER (PARTITION BY cust ORDER BY ts DESC)`,
		`CAST(a AS DECIMAL(10, 2))`,
		`a IN (SELECT b FROM t)`,
		`42`,
		`NOT (a AND b)`,
	}
	for _, sql := range exprs {
		t.Run(sql, func(t *testing.T) {
			expr, err := parser.ParseExpr(sql, parser.ANSI)
			require.NoError(t, err)
			again, err := parser.ParseExpr(parser.FormatExpr(expr), parser.ANSI)
			require.NoError(t, err)

			want := classifyProjection(parser.SelectItem{Expr: expr}, 1)
			got := classifyProjection(parser.SelectItem{Expr: again}, 1)
			assert.Equal(t, want.Kind, got.Kind)
			assert.Equal(t, want.RawRefs, got.RawRefs)
			assert.Equal(t, want.ExpressionText, got.ExpressionText)
		})
	}
}

func TestRawRefs_DedupIgnoresCase(t *testing.T) {
	expr, err := parser.ParseExpr(`a + A + t.b + T.B`, parser.ANSI)
	require.NoError(t, err)
	assert.Equal(t, []RawRef{{Column: "a"}, {Table: "t", Column: "b"}}, rawRefs(expr))
}

func TestScope(t *testing.T) {
	ctes := CTERegistry{}.extend(&parser.WithClause{
		CTEs: []*parser.CTE{{Name: "m", Select: &parser.SelectStmt{}}},
	})

	t.Run("aliases, bare and dotted names", func(t *testing.T) {
		sc := newScope(parseCore(t, `SELECT 1 FROM raw.orders o JOIN stg.customers ON 1 = 1 JOIN m ON 1 = 1`), ctes)
		require.Len(t, sc.tables, 3)

		id, ok := sc.lookup("O")
		require.True(t, ok)
		assert.Equal(t, []string{"raw", "orders"}, id.Segments)

		_, ok = sc.lookup("orders")
		assert.False(t, ok, "an aliased table is only reachable by its alias")

		id, ok = sc.lookup("stg.customers")
		require.True(t, ok)
		assert.Equal(t, "customers", id.Bare())
		_, ok = sc.lookup("customers")
		assert.True(t, ok)

		id, ok = sc.lookup("m")
		require.True(t, ok)
		assert.True(t, id.IsCTE())
	})

	t.Run("conflicting bare names", func(t *testing.T) {
		sc := newScope(parseCore(t, `SELECT 1 FROM a.orders JOIN b.orders ON 1 = 1`), ctes)
		_, ok := sc.lookup("orders")
		assert.False(t, ok)
		_, ok = sc.lookup("b.orders")
		assert.True(t, ok)
	})

	t.Run("derived tables become inline CTEs", func(t *testing.T) {
		sc := newScope(parseCore(t, `SELECT 1 FROM (SELECT 1 AS x) d, (SELECT 2 AS y) AS e`), ctes)
		require.Len(t, sc.tables, 2)
		assert.Equal(t, "d", sc.tables[0].CTE)
		assert.NotNil(t, sc.tables[0].Query)
	})

	t.Run("resolution", func(t *testing.T) {
		single := newScope(parseCore(t, `SELECT 1 FROM raw.orders`), ctes)
		assert.Equal(t, Resolved, single.resolve(RawRef{Column: "id"}).Resolution)
		assert.Equal(t, Unresolved, single.resolve(RawRef{Table: "x", Column: "id"}).Resolution)

		none := newScope(parseCore(t, `SELECT 1`), ctes)
		assert.Equal(t, Unresolved, none.resolve(RawRef{Column: "id"}).Resolution)

		multi := newScope(parseCore(t, `SELECT 1 FROM raw.a, raw.b`), ctes)
		assert.Equal(t, Ambiguous, multi.resolve(RawRef{Column: "id"}).Resolution)
		assert.Equal(t, Resolved, multi.resolve(RawRef{Table: "b", Column: "id"}).Resolution)
	})
}
