package lineage

import (
	"fmt"
	"strings"
)

// resolveSnapshot returns a *SnapshotNode when the manifest declares table
// as a snapshot, nil otherwise. The SQL of a snapshot is never read.
func (r *run) resolveSnapshot(table TableIdentity, column string, f frame) Node {
	if r.manifest == nil || table.IsCTE() {
		return nil
	}
	name := table.Name()
	refs, ok := r.manifest.SnapshotDependencies(name)
	if !ok {
		return nil
	}

	key := "snapshot:" + strings.ToLower(name) + "." + strings.ToLower(column)
	if f.visited.Has(key) {
		return &ErrorNode{
			Table:   name,
			Column:  column,
			Error:   ErrorCircularReference,
			Message: fmt.Sprintf("snapshot %s depends on itself", name),
		}
	}
	if node := r.tooDeep(name, column, f); node != nil {
		return node
	}

	node := &SnapshotNode{Table: name, Column: column}
	switch len(refs) {
	case 0:
		node.Strategy = StrategyNoDependencies
		return node
	case 1:
		node.Strategy = StrategySingleSource
	default:
		node.Strategy = StrategyMultiSource
	}

	r.logger.Debug("resolving snapshot", "table", name, "column", column, "upstreams", len(refs))

	child := frame{file: f.file, visited: f.visited.With(key), depth: f.depth + 1}
	for i, ref := range refs {
		src := ResolvedSource{
			Table:      TableIdentity{Segments: ref.Segments()},
			Column:     SourceColumn{Name: column},
			Resolution: Resolved,
		}
		up := r.spend(src.Table.Name(), column)
		if up == nil {
			up = r.walk(src, child)
		}
		node.Upstream = append(node.Upstream, Edge{
			Dependency: src,
			Branch:     i + 1,
			Level:      child.depth,
			Expression: ref.ResourceType,
			Kind:       KindDirect,
			Upstream:   up,
		})
	}
	node.Upstream = sortEdges(dedupEdges(node.Upstream))
	return node
}
