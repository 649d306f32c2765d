package lineage

import (
	"sort"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leaptrace/internal/dag"
)

// dedupEdges keeps the first edge per (table, column, level, branch).
func dedupEdges(edges []Edge) []Edge {
	seen := make(map[string]bool, len(edges))
	out := edges[:0:0]
	for _, e := range edges {
		key := strings.ToLower(e.Dependency.Table.Name()) + "\x00" +
			strings.ToLower(e.Dependency.Column.Name) + "\x00" +
			strconv.Itoa(e.Level) + "\x00" + strconv.Itoa(e.Branch)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

// sortEdges orders edges by (table, column, branch), keeping the relative
// order of equal keys.
func sortEdges(edges []Edge) []Edge {
	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i].Dependency, edges[j].Dependency
		if ta, tb := strings.ToLower(a.Table.Name()), strings.ToLower(b.Table.Name()); ta != tb {
			return ta < tb
		}
		if ca, cb := strings.ToLower(a.Column.Name), strings.ToLower(b.Column.Name); ca != cb {
			return ca < cb
		}
		return edges[i].Branch < edges[j].Branch
	})
	return edges
}

// Describe returns the table, column and detail text of a node. Detail is
// the source reason, snapshot strategy or error description.
func Describe(n Node) (table, column, detail string) {
	switch n := n.(type) {
	case *SourceNode:
		return n.Table, n.Column, n.Reason
	case *InternalNode:
		return n.Table, n.Column, ""
	case *CTENode:
		return n.Name, n.Column, ""
	case *ConsolidatedCTENode:
		return n.Name, strings.Join(n.Columns, ","), ""
	case *SnapshotNode:
		return n.Table, n.Column, n.Strategy
	case *ErrorNode:
		return n.Table, n.Column, string(n.Error) + ": " + n.Message
	default:
		return "", "", ""
	}
}

// Step is one row of a flattened lineage tree.
type Step struct {
	Index          int            `json:"index"`
	Depth          int            `json:"depth"`
	Kind           NodeKind       `json:"kind"`
	Table          string         `json:"table,omitempty"`
	Column         string         `json:"column"`
	Detail         string         `json:"detail,omitempty"`
	Branch         int            `json:"branch,omitempty"`
	Expression     string         `json:"expression,omitempty"`
	ProjectionKind ProjectionKind `json:"projection_kind,omitempty"`
	DataType       string         `json:"data_type,omitempty"`
	Description    string         `json:"description,omitempty"`
}

// Flatten lists the tree in depth-first pre-order with 1-based indexes. The
// catalog is optional and only decorates source steps.
func Flatten(root Node, catalog SourceCatalog) []Step {
	var steps []Step

	var visit func(n Node, depth int, via *Edge)
	visit = func(n Node, depth int, via *Edge) {
		if n == nil {
			return
		}
		table, column, detail := Describe(n)
		step := Step{
			Index:  len(steps) + 1,
			Depth:  depth,
			Kind:   n.Kind(),
			Table:  table,
			Column: column,
			Detail: detail,
		}
		if via != nil {
			step.Branch = via.Branch
			step.Expression = via.Expression
			step.ProjectionKind = via.Kind
		}
		if src, ok := n.(*SourceNode); ok && catalog != nil {
			if info, found := catalog.Lookup(src.Table, src.Column); found {
				step.DataType = info.DataType
				step.Description = info.Description
			}
		}
		steps = append(steps, step)

		for _, e := range upstreamOf(n) {
			visit(e.Upstream, depth+1, &e)
		}
	}
	visit(root, 0, nil)
	return steps
}

// DependencyGraph builds the table-level graph of a lineage tree. Nodes are
// internal and snapshot tables; CTE layers are skipped so each table links
// to the nearest tables it reads.
func DependencyGraph(root Node) *dag.Graph {
	g := dag.NewGraph()

	var visit func(n Node, downstream string)
	visit = func(n Node, downstream string) {
		var table string
		switch n := n.(type) {
		case *InternalNode:
			table = n.Table
		case *SnapshotNode:
			table = n.Table
		}
		owner := downstream
		if table != "" {
			g.AddNode(table, n.Kind())
			if downstream != "" && downstream != table {
				_ = g.AddEdge(table, downstream)
			}
			owner = table
		}
		for _, e := range upstreamOf(n) {
			visit(e.Upstream, owner)
		}
	}
	visit(root, "")
	return g
}

// ReverseDependencies maps every internal or snapshot table in the tree to
// the sorted tables it reads directly.
func ReverseDependencies(root Node) map[string][]string {
	g := DependencyGraph(root)
	out := make(map[string][]string, g.Len())
	for _, n := range g.Nodes() {
		out[n.ID] = g.Upstream(n.ID)
	}
	return out
}
