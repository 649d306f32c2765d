package lineage

import (
	"strings"

	"github.com/leapstack-labs/leaptrace/pkg/parser"
)

// resolveQuery traces columns through every SELECT branch of stmt. The
// returned edges are tagged with their 1-based branch; missing lists the
// columns no branch produces.
func (r *run) resolveQuery(stmt *parser.SelectStmt, f frame, columns []string) (edges []Edge, missing []string) {
	f.ctes = f.ctes.extend(stmt.With)

	found := make(map[string]bool, len(columns))
	for i, core := range parser.Branches(stmt.Body) {
		var deps []dependency
		for _, col := range columns {
			d, ok := branchDependencies(core, f.ctes, col)
			if ok {
				found[strings.ToLower(col)] = true
			}
			deps = append(deps, d...)
		}
		edges = append(edges, r.traceBranch(deps, i+1, f)...)
	}

	for _, col := range columns {
		if !found[strings.ToLower(col)] {
			missing = append(missing, col)
		}
	}
	return sortEdges(dedupEdges(edges)), missing
}

// cteGroup gathers the dependencies of one SELECT on one CTE.
type cteGroup struct {
	table   TableIdentity
	columns []string
	deps    []dependency // first dependency per column
	emitted bool
}

// traceBranch traces the dependencies of one SELECT branch. Dependencies on
// the same CTE are grouped so several columns cost one analysis.
func (r *run) traceBranch(deps []dependency, branch int, f frame) []Edge {
	deps = uniqueDependencies(deps)

	groups := make(map[string]*cteGroup)
	for _, d := range deps {
		if !d.source.Table.IsCTE() {
			continue
		}
		key := strings.ToLower(d.source.Table.CTE)
		g, ok := groups[key]
		if !ok {
			g = &cteGroup{table: d.source.Table}
			groups[key] = g
		}
		g.columns = append(g.columns, d.source.Column.Name)
		g.deps = append(g.deps, d)
	}

	var edges []Edge
	for _, d := range deps {
		if !d.source.Table.IsCTE() {
			up := r.spend(d.source.Table.Name(), d.source.Column.Name)
			if up == nil {
				up = r.walk(d.source, f)
			}
			edges = append(edges, newEdge(d, branch, f.depth, up))
			continue
		}

		g := groups[strings.ToLower(d.source.Table.CTE)]
		if g.emitted {
			continue
		}
		g.emitted = true
		edges = append(edges, r.traceGroup(g, branch, f))
	}
	return edges
}

// traceGroup emits a plain CTE edge for a single column and one
// consolidated edge otherwise.
func (r *run) traceGroup(g *cteGroup, branch int, f frame) Edge {
	up := r.spend(g.table.Name(), strings.Join(g.columns, ","))
	if up == nil {
		up = r.resolveCTE(g.table, g.columns, f)
	}
	if len(g.columns) == 1 {
		return newEdge(g.deps[0], branch, f.depth, up)
	}

	kind := g.deps[0].proj.Kind
	var exprs []string
	seen := make(map[string]bool)
	for _, d := range g.deps {
		if d.proj.Kind != kind {
			kind = KindCalculated
		}
		if !seen[d.proj.ExpressionText] {
			seen[d.proj.ExpressionText] = true
			exprs = append(exprs, d.proj.ExpressionText)
		}
	}

	first := g.deps[0].source
	return Edge{
		Dependency: ResolvedSource{
			Table:      first.Table,
			Alias:      first.Alias,
			Column:     SourceColumn{Name: strings.Join(sortedCopy(g.columns), ",")},
			Resolution: Resolved,
		},
		Branch:     branch,
		Level:      f.depth,
		Expression: strings.Join(exprs, ", "),
		Kind:       kind,
		Upstream:   up,
	}
}

func newEdge(d dependency, branch, level int, up Node) Edge {
	return Edge{
		Dependency: d.source,
		Branch:     branch,
		Level:      level,
		Expression: d.proj.ExpressionText,
		Kind:       d.proj.Kind,
		Upstream:   up,
	}
}

// uniqueDependencies drops repeated (table, column) pairs, keeping the first.
func uniqueDependencies(deps []dependency) []dependency {
	seen := make(map[string]bool, len(deps))
	out := deps[:0:0]
	for _, d := range deps {
		key := strings.ToLower(d.source.Table.Name()) + "\x00" + strings.ToLower(d.source.Column.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}
