package lineage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leaptrace/pkg/parser"
)

// DefaultMaxDepth caps CTE and cross-file recursion.
const DefaultMaxDepth = 100

// FileRegistry maps table names to project SQL files.
type FileRegistry interface {
	// Has reports whether the table has a project file.
	Has(table string) bool
	// Key returns a stable identifier for the table's file.
	Key(table string) string
	// Load returns the SQL text of the table's file.
	Load(table string) (string, error)
}

// ManifestRef is one upstream of a snapshot as declared in a manifest.
type ManifestRef struct {
	Database     string
	Schema       string
	Name         string
	ResourceType string
}

// Segments returns the non-empty database, schema and name parts.
func (m ManifestRef) Segments() []string {
	var out []string
	for _, s := range []string{m.Database, m.Schema, m.Name} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Manifest declares snapshot tables and their upstreams.
type Manifest interface {
	SnapshotDependencies(table string) ([]ManifestRef, bool)
}

// SourceColumnInfo describes a source column for presentation.
type SourceColumnInfo struct {
	DataType    string
	Description string
}

// SourceCatalog looks up source column metadata. It never affects
// resolution.
type SourceCatalog interface {
	Lookup(table, column string) (SourceColumnInfo, bool)
}

// ParseCache stores parsed statements shared between traces.
type ParseCache interface {
	Get(key string) (*parser.SelectStmt, bool)
	Set(key string, stmt *parser.SelectStmt)
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithInternalPrefixes sets the schema/database prefixes that mark a table as
// produced by the project. Matching ignores case.
func WithInternalPrefixes(prefixes ...string) Option {
	return func(t *Tracer) {
		for _, p := range prefixes {
			if p = strings.TrimSpace(p); p != "" {
				t.prefixes = append(t.prefixes, strings.ToLower(p))
			}
		}
	}
}

// WithManifest enables snapshot resolution.
func WithManifest(m Manifest) Option {
	return func(t *Tracer) { t.manifest = m }
}

// WithDialect sets the parser dialect. The default is ANSI.
func WithDialect(d *parser.Dialect) Option {
	return func(t *Tracer) { t.dialect = d }
}

// WithCache shares parsed files between traces.
func WithCache(c ParseCache) Option {
	return func(t *Tracer) { t.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracer) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithMaxDepth sets the recursion cap. Values below 1 keep the default.
func WithMaxDepth(n int) Option {
	return func(t *Tracer) {
		if n > 0 {
			t.maxDepth = n
		}
	}
}

// WithMaxSteps sets a per-trace step budget. 0 means unlimited.
func WithMaxSteps(n int) Option {
	return func(t *Tracer) { t.maxSteps = n }
}

// Tracer resolves column lineage over a project. It is safe for concurrent
// use; every trace owns its own CTE registries and visited sets.
type Tracer struct {
	files    FileRegistry
	manifest Manifest
	dialect  *parser.Dialect
	cache    ParseCache
	logger   *slog.Logger
	prefixes []string
	maxDepth int
	maxSteps int
}

// NewTracer creates a tracer over files.
func NewTracer(files FileRegistry, opts ...Option) *Tracer {
	t := &Tracer{
		files:    files,
		dialect:  parser.ANSI,
		logger:   slog.New(slog.DiscardHandler),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Trace resolves the lineage of one column.
func (t *Tracer) Trace(table, column string) (*Result, error) {
	return t.TraceColumns(table, column)
}

// TraceColumns resolves several columns of the same table in one pass, so
// CTE dependencies shared between them are consolidated. The root node's
// Column is the comma-joined column list.
func (t *Tracer) TraceColumns(table string, columns ...string) (*Result, error) {
	columns = uniqueColumns(columns)
	if len(columns) == 0 {
		return nil, fmt.Errorf("no columns requested for %s", table)
	}

	r := t.newRun()
	t.logger.Debug("starting trace", "table", table, "columns", columns)

	if len(columns) == 1 {
		id := TableIdentity{Segments: strings.Split(table, ".")}
		if node := r.resolveSnapshot(id, columns[0], frame{visited: VisitedSet{}}); node != nil {
			return &Result{Table: table, Columns: columns, Root: node}, nil
		}
	}

	if !t.files.Has(table) {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	stmt, _, err := r.load(table)
	if err != nil {
		return nil, err
	}

	fileKey := t.files.Key(table)
	keys := make([]string, len(columns))
	for i, col := range columns {
		keys[i] = tableVisitKey(fileKey, col)
	}
	f := frame{file: fileKey, visited: VisitedSet{}.With(keys...)}

	edges, missing := r.resolveQuery(stmt, f, columns)
	if len(missing) > 0 {
		return nil, &ColumnNotFoundError{Table: table, Column: missing[0]}
	}

	root := &InternalNode{Table: table, Column: strings.Join(columns, ","), Upstream: edges}
	t.logger.Debug("trace finished", "table", table, "columns", columns, "steps", r.steps)
	return &Result{Table: table, Columns: columns, Root: root}, nil
}

// run is the state of one top-level request.
type run struct {
	*Tracer
	steps  int
	parsed map[string]parsedFile
}

type parsedFile struct {
	stmt *parser.SelectStmt
	kind ErrorKind
	err  error
}

// frame is the context of one query analysis.
type frame struct {
	file    string // registry key of the file being analyzed
	ctes    CTERegistry
	visited VisitedSet
	depth   int
}

func (t *Tracer) newRun() *run {
	return &run{Tracer: t, parsed: make(map[string]parsedFile)}
}

// load reads and parses a table's file. kind tells load failures from parse
// failures.
func (r *run) load(table string) (*parser.SelectStmt, ErrorKind, error) {
	key := r.files.Key(table)
	if p, ok := r.parsed[key]; ok {
		return p.stmt, p.kind, p.err
	}

	var p parsedFile
	sql, err := r.files.Load(table)
	if err != nil {
		p = parsedFile{kind: ErrorFileLoad, err: fmt.Errorf("failed to load %s: %w", table, err)}
	} else {
		stmt, err := r.parse(key, sql)
		if err != nil {
			p = parsedFile{kind: ErrorParse, err: fmt.Errorf("failed to parse %s: %w", table, err)}
		} else {
			p = parsedFile{stmt: stmt}
		}
	}
	r.parsed[key] = p
	return p.stmt, p.kind, p.err
}

func (r *run) parse(key, sql string) (*parser.SelectStmt, error) {
	sum := sha256.Sum256([]byte(sql))
	cacheKey := key + "@" + hex.EncodeToString(sum[:8])

	if r.cache != nil {
		if stmt, ok := r.cache.Get(cacheKey); ok {
			return stmt, nil
		}
	}
	stmt, err := parser.Parse(sql, r.dialect)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Set(cacheKey, stmt)
	}
	return stmt, nil
}

// spend charges one step against the budget and returns an error leaf once
// the budget is exhausted.
func (r *run) spend(table, column string) Node {
	r.steps++
	if r.maxSteps > 0 && r.steps > r.maxSteps {
		return &ErrorNode{
			Table:   table,
			Column:  column,
			Error:   ErrorStepBudgetExceeded,
			Message: fmt.Sprintf("step budget of %d exhausted", r.maxSteps),
		}
	}
	return nil
}

// tooDeep returns an error leaf when descending from f would pass the cap.
func (r *run) tooDeep(table, column string, f frame) Node {
	if f.depth+1 <= r.maxDepth {
		return nil
	}
	r.logger.Warn("recursion limit reached", "table", table, "column", column, "depth", f.depth)
	return &ErrorNode{
		Table:   table,
		Column:  column,
		Error:   ErrorRecursionLimitExceeded,
		Message: fmt.Sprintf("recursion depth %d exceeded", r.maxDepth),
	}
}

func tableVisitKey(fileKey, column string) string {
	return "table:" + strings.ToLower(fileKey) + "." + strings.ToLower(column)
}

func uniqueColumns(columns []string) []string {
	seen := make(map[string]bool, len(columns))
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		c = strings.TrimSpace(c)
		if c == "" || seen[strings.ToLower(c)] {
			continue
		}
		seen[strings.ToLower(c)] = true
		out = append(out, c)
	}
	return out
}
