package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaptrace/internal/lineage"
	"github.com/leapstack-labs/leaptrace/internal/testutil"
	"github.com/leapstack-labs/leaptrace/pkg/parser"
)

func mustParse(t *testing.T, sql string) *parser.SelectStmt {
	t.Helper()
	stmt, err := parser.Parse(sql, parser.ANSI)
	require.NoError(t, err)
	return stmt
}

func TestParseCache_FirstWriterWins(t *testing.T) {
	c, err := New(10)
	require.NoError(t, err)
	defer c.Close()

	first := mustParse(t, "SELECT a FROM t")
	second := mustParse(t, "SELECT b FROM t")

	_, ok := c.Get("t@1")
	assert.False(t, ok)

	c.Set("t@1", first)
	c.Wait()
	c.Set("t@1", second)
	c.Wait()

	got, ok := c.Get("t@1")
	require.True(t, ok)
	assert.Same(t, first, got)

	// Set looks the key up first, so both Sets count too.
	hits, misses := c.Stats()
	assert.Equal(t, uint64(2), hits)
	assert.Equal(t, uint64(2), misses)

	c.Clear()
	_, ok = c.Get("t@1")
	assert.False(t, ok)
}

func TestParseCache_DefaultSize(t *testing.T) {
	c, err := New(0)
	require.NoError(t, err)
	defer c.Close()

	c.Set("k", mustParse(t, "SELECT 1"))
	c.Wait()
	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestParseCache_SharedByConcurrentTraces(t *testing.T) {
	c, err := New(100)
	require.NoError(t, err)
	defer c.Close()

	files := testutil.Files{
		"staging.orders": "WITH base AS (SELECT id, amt FROM raw.orders) SELECT id, amt * 2 AS amt2 FROM base",
		"marts.orders":   "SELECT id, amt2 FROM staging.orders",
	}
	tracer := lineage.NewTracer(files, lineage.WithCache(c), lineage.WithLogger(testutil.NewTestLogger(t)))

	var wg sync.WaitGroup
	results := make([]*lineage.Result, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := tracer.Trace("marts.orders", "amt2")
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	want := lineage.Flatten(results[0].Root, nil)
	for _, res := range results[1:] {
		assert.Equal(t, want, lineage.Flatten(res.Root, nil))
	}
}
