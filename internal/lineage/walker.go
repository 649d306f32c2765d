package lineage

import (
	"fmt"
	"strings"
)

// walk follows a non-CTE dependency: snapshot, terminal source, or a
// project table whose file is traced recursively.
func (r *run) walk(src ResolvedSource, f frame) Node {
	col := src.Column.Name

	if src.Resolution == Ambiguous {
		return &ErrorNode{
			Column:  col,
			Error:   ErrorAmbiguousReference,
			Message: fmt.Sprintf("unqualified column %q matches more than one FROM table", col),
		}
	}
	if src.Table.IsZero() {
		return &ErrorNode{
			Column:  col,
			Error:   ErrorColumnNotFound,
			Message: fmt.Sprintf("column %q has no table in scope", col),
		}
	}

	if node := r.resolveSnapshot(src.Table, col, f); node != nil {
		return node
	}

	name := src.Table.Name()
	internal, reason := r.classify(src.Table)
	if !internal {
		return &SourceNode{Table: name, Column: col, Reason: reason}
	}
	if !r.files.Has(name) {
		return &SourceNode{Table: name, Column: col, Reason: ReasonMissingFile}
	}
	return r.traceTable(name, col, f)
}

// classify applies the internal/external policy to a table identity.
func (r *run) classify(table TableIdentity) (internal bool, reason string) {
	segs := table.Segments
	switch {
	case len(segs) <= 1:
		return false, ReasonExternalSourceTable
	case len(segs) >= 3:
		if r.hasInternalPrefix(segs[0]) {
			return true, ""
		}
		return false, ReasonExternalDatabase
	default:
		if r.hasInternalPrefix(segs[0]) {
			return true, ""
		}
		return false, ReasonExternalSchema
	}
}

func (r *run) hasInternalPrefix(segment string) bool {
	segment = strings.ToLower(segment)
	for _, p := range r.prefixes {
		if strings.HasPrefix(segment, p) {
			return true
		}
	}
	return false
}

// traceTable recurses into a project table's file.
func (r *run) traceTable(table, column string, f frame) Node {
	fileKey := r.files.Key(table)
	key := tableVisitKey(fileKey, column)
	if f.visited.Has(key) {
		return &ErrorNode{
			Table:   table,
			Column:  column,
			Error:   ErrorCircularReference,
			Message: fmt.Sprintf("%s.%s is already on the lineage path", table, column),
		}
	}
	if node := r.tooDeep(table, column, f); node != nil {
		return node
	}

	stmt, kind, err := r.load(table)
	if err != nil {
		r.logger.Warn("dependency not traced", "table", table, "column", column, "kind", kind, "error", err)
		if kind == ErrorFileLoad {
			return &SourceNode{Table: table, Column: column, Reason: ReasonMissingFile}
		}
		return &ErrorNode{Table: table, Column: column, Error: kind, Message: err.Error()}
	}

	r.logger.Debug("tracing table", "table", table, "column", column, "depth", f.depth+1)

	child := frame{file: fileKey, visited: f.visited.With(key), depth: f.depth + 1}
	edges, missing := r.resolveQuery(stmt, child, []string{column})
	if len(missing) > 0 {
		return &ErrorNode{
			Table:   table,
			Column:  column,
			Error:   ErrorColumnNotFound,
			Message: fmt.Sprintf("column %q not found in %s", column, table),
		}
	}
	return &InternalNode{Table: table, Column: column, Upstream: edges}
}
