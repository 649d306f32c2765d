// Package lineage resolves column-level lineage across the models of a
// SQL project.
//
// A trace starts at one (table, column) pair, loads the table's SQL through a
// FileRegistry, and walks upstream: aliases are bound per SELECT, CTE bodies
// are traced in place, every branch of a UNION/INTERSECT/EXCEPT is analyzed,
// and references to other project tables recurse into their files until a
// terminal source is reached.
//
// # Result shape
//
// The result is a tree of Node values. Failures below the entry column are
// recorded as *ErrorNode leaves so the rest of the tree stays inspectable;
// only a missing entry column (or an unloadable entry table) is returned as
// an error.
//
// # Basic Usage
//
//	tracer := lineage.NewTracer(reg,
//	    lineage.WithInternalPrefixes("staging", "int_"),
//	    lineage.WithLogger(logger),
//	)
//
//	result, err := tracer.Trace("marts.customers", "total_orders")
//	if errors.Is(err, lineage.ErrColumnNotFound) {
//	    ...
//	}
//
//	for _, step := range lineage.Flatten(result.Root, nil) {
//	    fmt.Println(step.Index, step.Kind, step.Table, step.Column)
//	}
package lineage
