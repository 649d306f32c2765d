package parser_test

import (
	"testing"

	"github.com/leapstack-labs/leaptrace/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBranchesSkipCTEsAndSubqueries(t *testing.T) {
	stmt := mustParse(t, `
		WITH c AS (SELECT a FROM x UNION ALL SELECT a FROM y)
		SELECT a FROM (SELECT a FROM z UNION SELECT a FROM w) d
		UNION ALL
		SELECT a FROM c WHERE a IN (SELECT a FROM v)`)

	branches := parser.Branches(stmt.Body)
	require.Len(t, branches, 2)

	first := branches[0].From.Source.(*parser.DerivedTable)
	assert.Equal(t, "d", first.Alias)
	second := branches[1].From.Source.(*parser.TableName)
	assert.Equal(t, "c", second.Name)

	assert.Len(t, parser.Branches(stmt.With.CTEs[0].Select.Body), 2)
}

func TestColumnRefsSkipSubqueries(t *testing.T) {
	expr, err := parser.ParseExpr(
		"coalesce(o.amt, 0) + (SELECT max(x) FROM t) + CASE WHEN b IN (SELECT c FROM u) THEN d END",
		nil,
	)
	require.NoError(t, err)

	var names []string
	for _, ref := range parser.ColumnRefs(expr) {
		names = append(names, ref.Table+"."+ref.Column)
	}
	assert.Equal(t, []string{"o.amt", ".b", ".d"}, names)
}

func TestTableNames(t *testing.T) {
	stmt := mustParse(t, `
		WITH c AS (SELECT a FROM staging.x)
		SELECT a FROM c JOIN (SELECT a FROM raw.y) d ON c.a = d.a
		WHERE EXISTS (SELECT 1 FROM raw.z)`)

	var names []string
	for _, tn := range parser.TableNames(stmt) {
		names = append(names, tn.Schema+"."+tn.Name)
	}
	assert.Equal(t, []string{"staging.x", ".c", "raw.y", "raw.z"}, names)
}

func TestFormatRoundTrip(t *testing.T) {
	queries := []string{
		"SELECT DISTINCT a, b AS c FROM s.t AS x LEFT JOIN u ON x.id = u.id WHERE a > 1 GROUP BY a HAVING count(*) > 2",
		"WITH m AS (SELECT a FROM t) SELECT a FROM m UNION ALL SELECT a FROM n ORDER BY a DESC LIMIT 5",
		"SELECT * EXCLUDE (a) FROM t",
		"SELECT row_number() OVER w AS rn FROM t WINDOW w AS (PARTITION BY a ORDER BY b)",
	}
	for _, sql := range queries {
		t.Run(sql, func(t *testing.T) {
			first := mustParse(t, sql)
			text := parser.ToSQL(first)
			second := mustParse(t, text)
			assert.Equal(t, text, parser.ToSQL(second))
		})
	}
}
