package parser

import (
	"sort"
	"strings"
)

// Dialect describes the lexical differences between SQL engines that matter
// when reading model files.
type Dialect struct {
	Name string
	// IdentQuotes lists the characters that open a quoted identifier.
	IdentQuotes string
	// UpperCaseIdents is set for engines that fold unquoted identifiers to
	// upper case. Matching is case-insensitive either way; the flag only
	// affects how Normalize presents names.
	UpperCaseIdents bool
}

// Normalize folds an unquoted identifier the way the dialect stores it.
func (d *Dialect) Normalize(ident string) string {
	if d != nil && d.UpperCaseIdents {
		return strings.ToUpper(ident)
	}
	return strings.ToLower(ident)
}

func (d *Dialect) isIdentQuote(ch byte) bool {
	if d == nil {
		return ch == '"'
	}
	return strings.IndexByte(d.IdentQuotes, ch) >= 0
}

// ANSI is the default dialect used when none is given.
var ANSI = &Dialect{Name: "ansi", IdentQuotes: `"`}

var dialects = map[string]*Dialect{
	"ansi":       ANSI,
	"duckdb":     {Name: "duckdb", IdentQuotes: `"`},
	"postgres":   {Name: "postgres", IdentQuotes: `"`},
	"snowflake":  {Name: "snowflake", IdentQuotes: `"`, UpperCaseIdents: true},
	"bigquery":   {Name: "bigquery", IdentQuotes: "`"},
	"databricks": {Name: "databricks", IdentQuotes: "`"},
	"mysql":      {Name: "mysql", IdentQuotes: "`\""},
}

// GetDialect returns the dialect registered under name.
func GetDialect(name string) (*Dialect, bool) {
	d, ok := dialects[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

// Dialects returns the names of all known dialects, sorted.
func Dialects() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
