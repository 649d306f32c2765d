package lineage

import (
	"fmt"
	"sort"
	"strings"
)

// resolveCTE traces columns inside the defining query of a CTE or derived
// table. One column yields a *CTENode; several yield a single
// *ConsolidatedCTENode.
func (r *run) resolveCTE(table TableIdentity, columns []string, f frame) Node {
	name := table.CTE
	joined := strings.Join(columns, ",")

	query := table.Query
	prefix := "derived:"
	if query == nil {
		def, ok := f.ctes.Lookup(name)
		if !ok {
			return &ErrorNode{
				Table:   name,
				Column:  joined,
				Error:   ErrorColumnNotFound,
				Message: fmt.Sprintf("CTE %s is not defined", name),
			}
		}
		query = def.Query
		prefix = "cte:"
	}

	keys := make([]string, len(columns))
	for i, col := range columns {
		keys[i] = prefix + strings.ToLower(f.file) + "/" + strings.ToLower(name) + "." + strings.ToLower(col)
		if f.visited.Has(keys[i]) {
			return &ErrorNode{
				Table:   name,
				Column:  col,
				Error:   ErrorCircularReference,
				Message: fmt.Sprintf("CTE %s references its own column %s", name, col),
			}
		}
	}
	if node := r.tooDeep(name, joined, f); node != nil {
		return node
	}

	r.logger.Debug("tracing CTE", "cte", name, "columns", columns, "depth", f.depth+1)

	child := frame{file: f.file, ctes: f.ctes, visited: f.visited.With(keys...), depth: f.depth + 1}
	edges, missing := r.resolveQuery(query, child, columns)

	if len(columns) == 1 {
		if len(missing) > 0 {
			return &ErrorNode{
				Table:   name,
				Column:  columns[0],
				Error:   ErrorColumnNotFound,
				Message: fmt.Sprintf("column %q not found in CTE %s", columns[0], name),
			}
		}
		return &CTENode{Name: name, Column: columns[0], Upstream: edges}
	}

	for _, col := range missing {
		edges = append(edges, Edge{
			Dependency: ResolvedSource{Table: table, Column: SourceColumn{Name: col}, Resolution: Resolved},
			Level:      child.depth,
			Kind:       KindDirect,
			Upstream: &ErrorNode{
				Table:   name,
				Column:  col,
				Error:   ErrorColumnNotFound,
				Message: fmt.Sprintf("column %q not found in CTE %s", col, name),
			},
		})
	}
	return &ConsolidatedCTENode{
		Name:     name,
		Columns:  sortedCopy(columns),
		Upstream: sortEdges(dedupEdges(edges)),
	}
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
