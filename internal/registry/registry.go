// Package registry maps table names referenced in SQL to the project models
// that build them. It is the file registry the lineage tracer reads through.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/leaptrace/internal/dag"
	"github.com/leapstack-labs/leaptrace/internal/loader"
	"github.com/leapstack-labs/leaptrace/pkg/parser"
)

// ErrModelNotFound is returned by Load for tables without a model.
var ErrModelNotFound = errors.New("model not found")

// Registry indexes models by table name. It is safe for concurrent use.
type Registry struct {
	mu sync.RWMutex

	// byTable maps lower-cased "schema.name" to its model
	byTable map[string]*loader.Model

	// byName maps lower-cased bare names to models.
	// Note: if multiple models share a name, the last registered wins
	byName map[string]*loader.Model
}

// New creates a registry holding models.
func New(models ...*loader.Model) *Registry {
	r := &Registry{
		byTable: make(map[string]*loader.Model),
		byName:  make(map[string]*loader.Model),
	}
	for _, m := range models {
		r.Register(m)
	}
	return r
}

// Register adds a model under its bare name and its schema-qualified name.
func (r *Registry) Register(m *loader.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byName[strings.ToLower(m.Name)] = m
	r.byTable[strings.ToLower(m.Table())] = m
}

// Resolve finds the model for a table name as written in SQL. A bare name
// matches by model name; a qualified name matches schema.name, ignoring a
// leading database segment, and otherwise falls back to its bare table name,
// so int_ns.orders finds the orders model in any schema.
func (r *Registry) Resolve(table string) (*loader.Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.resolve(table); ok {
		return m, true
	}
	parts := strings.Split(strings.ToLower(strings.TrimSpace(table)), ".")
	m, ok := r.byName[parts[len(parts)-1]]
	return m, ok
}

// resolveExact is Resolve without the bare-name fallback.
func (r *Registry) resolveExact(table string) (*loader.Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolve(table)
}

func (r *Registry) resolve(table string) (*loader.Model, bool) {
	key := strings.ToLower(strings.TrimSpace(table))

	// 1. Exact match on schema.name (or bare name for root-level models)
	if m, ok := r.byTable[key]; ok {
		return m, true
	}

	parts := strings.Split(key, ".")
	switch {
	// 2. Bare name
	case len(parts) == 1:
		m, ok := r.byName[key]
		return m, ok
	// 3. database.schema.name: drop the database
	case len(parts) > 2:
		m, ok := r.byTable[strings.Join(parts[len(parts)-2:], ".")]
		return m, ok
	}
	return nil, false
}

// Has reports whether table is built by a project model.
func (r *Registry) Has(table string) bool {
	_, ok := r.Resolve(table)
	return ok
}

// Key returns the lower-cased relative path of the table's model file, so
// every spelling of the same table shares a key.
func (r *Registry) Key(table string) string {
	if m, ok := r.Resolve(table); ok {
		return strings.ToLower(m.RelPath)
	}
	return strings.ToLower(table)
}

// Load renders the SQL of the table's model.
func (r *Registry) Load(table string) (string, error) {
	m, ok := r.Resolve(table)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrModelNotFound, table)
	}
	sql, err := loader.Render(m.Content, r)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", m.RelPath, err)
	}
	return sql, nil
}

// ResolveRef implements loader.RefResolver: ref('name') becomes the model's
// table name.
func (r *Registry) ResolveRef(name string) (string, bool) {
	m, ok := r.Resolve(name)
	if !ok {
		return "", false
	}
	return m.Table(), true
}

// Models returns all registered models sorted by relative path.
func (r *Registry) Models() []*loader.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]*loader.Model, 0, len(r.byTable))
	for _, m := range r.byTable {
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].RelPath < models[j].RelPath })
	return models
}

// Names returns every table name and bare model name, sorted. The shell uses
// it for completion.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.byTable)+len(r.byName))
	for k := range r.byTable {
		seen[k] = struct{}{}
	}
	for k := range r.byName {
		seen[k] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered models.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byTable)
}

// ResolveDependencies splits table names into the models they resolve to
// (deduplicated, by table name) and external sources (deduplicated, as
// written). Qualified names must match schema.name: raw.orders stays
// external even when a marts.orders model exists.
func (r *Registry) ResolveDependencies(tableNames []string) (dependencies []string, externalSources []string) {
	seenDeps := make(map[string]struct{})
	seenExternal := make(map[string]struct{})

	for _, name := range tableNames {
		if m, ok := r.resolveExact(name); ok {
			if _, dup := seenDeps[m.Table()]; !dup {
				seenDeps[m.Table()] = struct{}{}
				dependencies = append(dependencies, m.Table())
			}
			continue
		}
		if _, dup := seenExternal[name]; !dup {
			seenExternal[name] = struct{}{}
			externalSources = append(externalSources, name)
		}
	}
	return dependencies, externalSources
}

// ModelError reports a model whose SQL could not be rendered or parsed.
type ModelError struct {
	Model string
	Err   error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("%s: %v", e.Model, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// DependencyGraph builds the model-level graph of the project: one node per
// model (data *loader.Model) and an edge from every model to the models
// that read it. Models that fail to render or parse stay in the graph
// without edges and are reported as *ModelError values.
func (r *Registry) DependencyGraph(d *parser.Dialect) (*dag.Graph, []error) {
	models := r.Models()
	g := dag.NewGraph()
	for _, m := range models {
		g.AddNode(m.Table(), m)
	}

	var errs []error
	for _, m := range models {
		sql, err := r.Load(m.Table())
		if err != nil {
			errs = append(errs, &ModelError{Model: m.Table(), Err: err})
			continue
		}
		stmt, err := parser.Parse(sql, d)
		if err != nil {
			errs = append(errs, &ModelError{Model: m.Table(), Err: err})
			continue
		}

		ctes := cteNames(stmt)
		var tables []string
		for _, tn := range parser.TableNames(stmt) {
			if tn.Catalog == "" && tn.Schema == "" {
				if _, isCTE := ctes[strings.ToLower(tn.Name)]; isCTE {
					continue
				}
			}
			tables = append(tables, strings.Join(tn.Parts(), "."))
		}

		deps, _ := r.ResolveDependencies(tables)
		for _, dep := range deps {
			if dep != m.Table() {
				_ = g.AddEdge(dep, m.Table())
			}
		}
	}
	return g, errs
}

// cteNames collects the lower-cased names of every CTE declared in stmt,
// including WITH clauses nested in CTE bodies.
func cteNames(stmt *parser.SelectStmt) map[string]struct{} {
	names := make(map[string]struct{})
	var walk func(s *parser.SelectStmt)
	walk = func(s *parser.SelectStmt) {
		if s == nil || s.With == nil {
			return
		}
		for _, cte := range s.With.CTEs {
			names[strings.ToLower(cte.Name)] = struct{}{}
			walk(cte.Select)
		}
	}
	walk(stmt)
	return names
}
