package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaptrace/internal/cli/output"
	"github.com/leapstack-labs/leaptrace/internal/lineage"
)

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <table> <column>",
		Short: "Show the table dependencies behind a column",
		Long: `Trace a column and print, for every project table and snapshot the trace
passes through, the tables it reads directly. CTE layers are folded into the
table that declares them.`,
		Example: `  leaptrace graph marts.customer_totals total_cents
  leaptrace graph marts.customer_totals total_cents --output json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, args[0], args[1])
		},
	}
	return cmd
}

func runGraph(cmd *cobra.Command, table, column string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	res, err := cmdCtx.Engine.Trace(table, column)
	if err != nil {
		return err
	}

	g := lineage.DependencyGraph(res.Root)
	levels, err := g.Levels()
	if err != nil {
		return err
	}
	deps := lineage.ReverseDependencies(res.Root)

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(output.GraphOutput{
			Table:        res.Table,
			Column:       column,
			Dependencies: deps,
			Levels:       levels,
		})
	}

	styles := r.Styles()
	r.Header(1, fmt.Sprintf("Dependencies of %s.%s", res.Table, column))
	for i, level := range levels {
		r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", i)))
		for _, tbl := range level {
			r.Printf("  %s\n", styles.Bold.Render(tbl))
			if up := deps[tbl]; len(up) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("reads:"), strings.Join(up, ", "))
			}
		}
		r.Println()
	}
	r.Muted(fmt.Sprintf("Total: %d tables, %d dependencies", g.Len(), g.EdgeCount()))
	return nil
}
