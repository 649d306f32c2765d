package lineage

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/leaptrace/pkg/parser"
)

// classifyProjection classifies the SELECT item at 1-based position index.
func classifyProjection(item parser.SelectItem, index int) ProjectionColumn {
	if item.IsStar() {
		text := "*"
		if item.TableStar != "" {
			text = item.TableStar + ".*"
		}
		if len(item.Exclude) > 0 {
			text += " EXCLUDE (" + strings.Join(item.Exclude, ", ") + ")"
		}
		return ProjectionColumn{
			ExpressionText: text,
			Kind:           KindStar,
			Position:       index,
			StarTable:      item.TableStar,
			Exclude:        item.Exclude,
		}
	}

	p := ProjectionColumn{
		OutputAlias:    item.Alias,
		ExpressionText: parser.FormatExpr(item.Expr),
		Position:       index,
		RawRefs:        rawRefs(item.Expr),
	}

	ref, bare := item.Expr.(*parser.ColumnRef)
	if p.OutputAlias == "" && bare {
		p.OutputAlias = ref.Column
	}

	switch {
	case bare:
		p.Kind = KindDirect
	case len(p.RawRefs) == 0:
		p.Kind = KindConstant
	default:
		p.Kind = KindCalculated
	}
	return p
}

// rawRefs collects the column leaves of expr as a sorted set. Subquery
// contents are not part of this scope.
func rawRefs(expr parser.Expr) []RawRef {
	seen := make(map[RawRef]bool)
	var refs []RawRef
	for _, ref := range parser.ColumnRefs(expr) {
		key := RawRef{Table: strings.ToLower(ref.Table), Column: strings.ToLower(ref.Column)}
		if seen[key] {
			continue
		}
		seen[key] = true
		refs = append(refs, RawRef{Table: ref.Table, Column: ref.Column})
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Table != refs[j].Table {
			return refs[i].Table < refs[j].Table
		}
		return refs[i].Column < refs[j].Column
	})
	return refs
}

// matches reports whether a named projection produces column.
func (p ProjectionColumn) matches(column string) bool {
	if p.Kind == KindStar {
		return false
	}
	return strings.EqualFold(p.OutputName(), column)
}

// starCovers reports whether a star projection can produce column.
func (p ProjectionColumn) starCovers(column string) bool {
	if p.Kind != KindStar {
		return false
	}
	for _, ex := range p.Exclude {
		if strings.EqualFold(ex, column) {
			return false
		}
	}
	return true
}

// dependency is one resolved reference together with the projection that
// produced it.
type dependency struct {
	source ResolvedSource
	proj   ProjectionColumn
}

// branchDependencies returns the dependencies of column in one SELECT
// branch. A named projection wins over star projections; found is false when
// neither produces the column.
func branchDependencies(core *parser.SelectCore, ctes CTERegistry, column string) (deps []dependency, found bool) {
	projections := make([]ProjectionColumn, len(core.Columns))
	for i, item := range core.Columns {
		projections[i] = classifyProjection(item, i+1)
	}

	sc := newScope(core, ctes)

	for _, p := range projections {
		if !p.matches(column) {
			continue
		}
		for _, ref := range p.RawRefs {
			deps = append(deps, dependency{source: sc.resolve(ref), proj: p})
		}
		return deps, true
	}

	for _, p := range projections {
		if !p.starCovers(column) {
			continue
		}
		found = true
		for _, src := range sc.star(p, column) {
			deps = append(deps, dependency{source: src, proj: p})
		}
	}
	return deps, found
}
