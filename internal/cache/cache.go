// Package cache provides the parsed-statement cache shared by concurrent
// traces.
package cache

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/leapstack-labs/leaptrace/pkg/parser"
)

// DefaultSize is the capacity used when New is given a non-positive size.
const DefaultSize = 1000

// ParseCache holds parsed statements keyed by file key and content hash.
// The first statement stored under a key wins; cached statements are never
// modified. It implements lineage.ParseCache.
type ParseCache struct {
	c *ristretto.Cache[string, *parser.SelectStmt]
}

// New creates a cache holding up to size statements.
func New(size int) (*ParseCache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, *parser.SelectStmt]{
		NumCounters:        int64(size) * 10,
		MaxCost:            int64(size),
		BufferItems:        64,
		IgnoreInternalCost: true,
		Metrics:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create parse cache: %w", err)
	}
	return &ParseCache{c: c}, nil
}

// Get returns the statement stored under key.
func (p *ParseCache) Get(key string) (*parser.SelectStmt, bool) {
	return p.c.Get(key)
}

// Set stores stmt unless key already holds a statement. Writes are applied
// asynchronously; Wait blocks until they are visible.
func (p *ParseCache) Set(key string, stmt *parser.SelectStmt) {
	if _, ok := p.c.Get(key); ok {
		return
	}
	p.c.Set(key, stmt, 1)
}

// Wait blocks until pending writes are applied.
func (p *ParseCache) Wait() {
	p.c.Wait()
}

// Stats returns the hit and miss counters.
func (p *ParseCache) Stats() (hits, misses uint64) {
	m := p.c.Metrics
	return m.Hits(), m.Misses()
}

// Clear drops every entry. The watch loop calls it when files change.
func (p *ParseCache) Clear() {
	p.c.Clear()
}

// Close stops the cache's background goroutines.
func (p *ParseCache) Close() {
	p.c.Close()
}
