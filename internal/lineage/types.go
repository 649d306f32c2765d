package lineage

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leaptrace/pkg/parser"
)

// TableIdentity names a table as it was written in a FROM clause. Only the
// parts present in the SQL are kept; missing catalog or schema parts are never
// filled in.
type TableIdentity struct {
	Segments []string // 1 to 3 name parts, empty for derived tables
	Alias    string   // explicit alias, empty when none

	// CTE is set when the name refers to a CTE (or a derived table, which is
	// treated as an inline CTE named after its alias).
	CTE string
	// Query is the defining query of a derived table. CTE references leave
	// it nil and are looked up in the CTE registry.
	Query *parser.SelectStmt
}

// Name returns the dotted table name, or the CTE name for CTE references.
func (t TableIdentity) Name() string {
	if t.CTE != "" {
		return t.CTE
	}
	return strings.Join(t.Segments, ".")
}

// Bare returns the last name segment.
func (t TableIdentity) Bare() string {
	if t.CTE != "" {
		return t.CTE
	}
	if len(t.Segments) == 0 {
		return ""
	}
	return t.Segments[len(t.Segments)-1]
}

// IsCTE reports whether the identity refers to a CTE or derived table.
func (t TableIdentity) IsCTE() bool {
	return t.CTE != ""
}

// IsZero reports whether the identity names nothing (ambiguous references).
func (t TableIdentity) IsZero() bool {
	return t.CTE == "" && len(t.Segments) == 0
}

// CTEDef is one named subquery from a WITH clause.
type CTEDef struct {
	Name  string
	Query *parser.SelectStmt
}

// CTERegistry maps lower-cased CTE names to their definitions.
type CTERegistry map[string]*CTEDef

// Lookup finds a CTE by name, ignoring case.
func (r CTERegistry) Lookup(name string) (*CTEDef, bool) {
	def, ok := r[strings.ToLower(name)]
	return def, ok
}

// extend returns a copy of r with the CTEs of with added. The receiver is
// left untouched.
func (r CTERegistry) extend(with *parser.WithClause) CTERegistry {
	if with == nil || len(with.CTEs) == 0 {
		return r
	}
	out := make(CTERegistry, len(r)+len(with.CTEs))
	for k, v := range r {
		out[k] = v
	}
	for _, cte := range with.CTEs {
		out[strings.ToLower(cte.Name)] = &CTEDef{Name: cte.Name, Query: cte.Select}
	}
	return out
}

// ProjectionKind classifies an output projection.
type ProjectionKind string

// Projection kinds.
const (
	KindDirect     ProjectionKind = "direct"     // a bare column reference
	KindStar       ProjectionKind = "star"       // * or t.*
	KindConstant   ProjectionKind = "constant"   // no column references
	KindCalculated ProjectionKind = "calculated" // any other expression
)

// RawRef is a column reference as written: optional qualifier and column.
type RawRef struct {
	Table  string
	Column string
}

// ProjectionColumn is one classified SELECT list entry.
type ProjectionColumn struct {
	OutputAlias    string // explicit alias or bare column name, empty when unnamed
	ExpressionText string
	Kind           ProjectionKind
	RawRefs        []RawRef // deduplicated, sorted

	Position  int      // 1-based position in the SELECT list
	StarTable string   // qualifier of t.*
	Exclude   []string // EXCLUDE / EXCEPT column list of a star
}

// OutputName returns the name the projection is reachable under. Unnamed
// computed projections get the generated name column<N>.
func (p ProjectionColumn) OutputName() string {
	if p.OutputAlias != "" {
		return p.OutputAlias
	}
	return fmt.Sprintf("column%d", p.Position)
}

// Resolution records how a column reference was bound.
type Resolution string

// Resolution states.
const (
	Resolved   Resolution = "resolved"
	Unresolved Resolution = "unresolved" // qualifier not found in scope
	Ambiguous  Resolution = "ambiguous"  // unqualified with several FROM tables
)

// SourceColumn is either a named column or a wildcard. A wildcard keeps the
// name being traced through it.
type SourceColumn struct {
	Name string
	Star bool
}

func (c SourceColumn) String() string {
	if c.Star {
		return "*"
	}
	return c.Name
}

// ResolvedSource is a column reference bound to a table in scope.
type ResolvedSource struct {
	Table      TableIdentity
	Alias      string
	Column     SourceColumn
	Resolution Resolution
}

func (s ResolvedSource) String() string {
	if s.Table.IsZero() {
		return s.Column.String()
	}
	return s.Table.Name() + "." + s.Column.String()
}

// NodeKind names the variant of a Node.
type NodeKind string

// Node kinds.
const (
	NodeSource          NodeKind = "source"
	NodeInternal        NodeKind = "internal"
	NodeCTE             NodeKind = "cte"
	NodeConsolidatedCTE NodeKind = "consolidated_cte"
	NodeSnapshot        NodeKind = "snapshot"
	NodeError           NodeKind = "error"
)

// Node is one vertex of a lineage tree. The set of implementations is closed.
type Node interface {
	Kind() NodeKind
	node()
}

// Source reasons.
const (
	ReasonExternalSourceTable = "external_source_table"
	ReasonExternalDatabase    = "external_database"
	ReasonExternalSchema      = "external_schema"
	ReasonMissingFile         = "missing_file"
)

// SourceNode is a terminal external column.
type SourceNode struct {
	Table  string
	Column string
	Reason string
}

// InternalNode is a column of a project table, traced through its SQL.
type InternalNode struct {
	Table    string
	Column   string
	Upstream []Edge
}

// CTENode is one column traced through a CTE or derived table.
type CTENode struct {
	Name     string
	Column   string
	Upstream []Edge
}

// ConsolidatedCTENode covers several columns of one CTE traced in a single
// pass.
type ConsolidatedCTENode struct {
	Name     string
	Columns  []string
	Upstream []Edge
}

// Snapshot strategies.
const (
	StrategySingleSource   = "single_source"
	StrategyMultiSource    = "multi_source"
	StrategyNoDependencies = "no_dependencies"
)

// SnapshotNode is a manifest-declared snapshot. Its upstream comes from the
// manifest, not from SQL.
type SnapshotNode struct {
	Table    string
	Column   string
	Strategy string
	Upstream []Edge
}

// ErrorNode is a failure recorded in place of a subtree.
type ErrorNode struct {
	Table   string
	Column  string
	Error   ErrorKind
	Message string
}

func (*SourceNode) Kind() NodeKind          { return NodeSource }
func (*InternalNode) Kind() NodeKind        { return NodeInternal }
func (*CTENode) Kind() NodeKind             { return NodeCTE }
func (*ConsolidatedCTENode) Kind() NodeKind { return NodeConsolidatedCTE }
func (*SnapshotNode) Kind() NodeKind        { return NodeSnapshot }
func (*ErrorNode) Kind() NodeKind           { return NodeError }

func (*SourceNode) node()          {}
func (*InternalNode) node()        {}
func (*CTENode) node()             {}
func (*ConsolidatedCTENode) node() {}
func (*SnapshotNode) node()        {}
func (*ErrorNode) node()           {}

// Edge links a node to one upstream dependency.
type Edge struct {
	Dependency ResolvedSource
	Branch     int // 1-based SELECT branch the dependency came from
	Level      int // recursion depth at which it was found
	Expression string
	Kind       ProjectionKind
	Upstream   Node
}

// upstreamOf returns the edges below n, nil for leaves.
func upstreamOf(n Node) []Edge {
	switch n := n.(type) {
	case *InternalNode:
		return n.Upstream
	case *CTENode:
		return n.Upstream
	case *ConsolidatedCTENode:
		return n.Upstream
	case *SnapshotNode:
		return n.Upstream
	default:
		return nil
	}
}

// Result is the lineage tree of one request.
type Result struct {
	Table   string
	Columns []string
	Root    Node
}

// VisitedSet holds the keys on the current recursion path. With returns a
// copy so sibling paths never see each other's keys.
type VisitedSet map[string]struct{}

// Has reports whether key is on the path.
func (v VisitedSet) Has(key string) bool {
	_, ok := v[key]
	return ok
}

// With returns a copy of v with keys added.
func (v VisitedSet) With(keys ...string) VisitedSet {
	out := make(VisitedSet, len(v)+len(keys))
	for k := range v {
		out[k] = struct{}{}
	}
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}
