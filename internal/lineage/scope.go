package lineage

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leaptrace/pkg/parser"
)

// scope binds the aliases of one SELECT to table identities.
type scope struct {
	tables    []TableIdentity          // FROM tables in source order
	byKey     map[string]TableIdentity // lower-cased alias / bare / dotted name
	conflicts map[string]bool          // keys claimed by more than one table
}

// newScope collects the base FROM table and every JOIN (including comma
// joins) of core. Names matching a CTE in ctes are tagged as that CTE.
func newScope(core *parser.SelectCore, ctes CTERegistry) *scope {
	s := &scope{
		byKey:     make(map[string]TableIdentity),
		conflicts: make(map[string]bool),
	}
	if core == nil || core.From == nil {
		return s
	}

	for i, ref := range core.From.Tables() {
		switch t := ref.(type) {
		case *parser.TableName:
			id := TableIdentity{Segments: t.Parts(), Alias: t.Alias}
			if len(id.Segments) == 1 {
				if def, ok := ctes.Lookup(t.Name); ok {
					id.CTE = def.Name
				}
			}
			s.add(id)
		case *parser.DerivedTable:
			name := t.Alias
			if name == "" {
				name = fmt.Sprintf("derived_%d", i+1)
			}
			s.add(TableIdentity{Alias: t.Alias, CTE: name, Query: t.Select})
		case *parser.TableFunction:
			s.add(TableIdentity{Segments: []string{t.Func.Name}, Alias: t.Alias})
		}
	}
	return s
}

func (s *scope) add(id TableIdentity) {
	s.tables = append(s.tables, id)

	if id.Alias != "" {
		s.bind(id.Alias, id)
		return
	}
	s.bind(id.Bare(), id)
	if len(id.Segments) > 1 {
		s.bind(strings.Join(id.Segments, "."), id)
	}
}

func (s *scope) bind(key string, id TableIdentity) {
	key = strings.ToLower(key)
	if key == "" {
		return
	}
	if _, exists := s.byKey[key]; exists {
		s.conflicts[key] = true
		return
	}
	s.byKey[key] = id
}

// lookup finds the table bound to a qualifier.
func (s *scope) lookup(qualifier string) (TableIdentity, bool) {
	key := strings.ToLower(qualifier)
	if s.conflicts[key] {
		return TableIdentity{}, false
	}
	id, ok := s.byKey[key]
	return id, ok
}

// resolve binds one raw column reference.
func (s *scope) resolve(ref RawRef) ResolvedSource {
	col := SourceColumn{Name: ref.Column}

	if ref.Table != "" {
		if id, ok := s.lookup(ref.Table); ok {
			return ResolvedSource{Table: id, Alias: id.Alias, Column: col, Resolution: Resolved}
		}
		return ResolvedSource{
			Table:      TableIdentity{Segments: strings.Split(ref.Table, ".")},
			Alias:      ref.Table,
			Column:     col,
			Resolution: Unresolved,
		}
	}

	switch len(s.tables) {
	case 0:
		return ResolvedSource{Column: col, Resolution: Unresolved}
	case 1:
		id := s.tables[0]
		return ResolvedSource{Table: id, Alias: id.Alias, Column: col, Resolution: Resolved}
	default:
		return ResolvedSource{Column: col, Resolution: Ambiguous}
	}
}

// star returns the wildcard dependencies of a star projection while tracing
// target: every FROM table for *, only the qualified table for t.*.
func (s *scope) star(p ProjectionColumn, target string) []ResolvedSource {
	col := SourceColumn{Name: target, Star: true}

	if p.StarTable != "" {
		if id, ok := s.lookup(p.StarTable); ok {
			return []ResolvedSource{{Table: id, Alias: id.Alias, Column: col, Resolution: Resolved}}
		}
		return []ResolvedSource{{
			Table:      TableIdentity{Segments: strings.Split(p.StarTable, ".")},
			Alias:      p.StarTable,
			Column:     col,
			Resolution: Unresolved,
		}}
	}

	out := make([]ResolvedSource, 0, len(s.tables))
	for _, id := range s.tables {
		out = append(out, ResolvedSource{Table: id, Alias: id.Alias, Column: col, Resolution: Resolved})
	}
	return out
}
