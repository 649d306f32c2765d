package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaptrace/internal/cli/output"
)

// NewHistoryCommand creates the history command group.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved trace runs",
		Long: `List trace runs saved with "leaptrace trace --save", newest first.

Use "leaptrace history show <run-id>" to print the lineage of a saved run.
A unique prefix of the run id is enough.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistoryList(cmd, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")

	cmd.AddCommand(newHistoryShowCommand())
	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the lineage of a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(cmd, args[0])
		},
	}
}

func runHistoryList(cmd *cobra.Command, limit int) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	store, err := cmdCtx.Engine.Store()
	if err != nil {
		return err
	}
	runs, err := store.ListRuns(commandContext(cmd), limit)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		if runs == nil {
			return r.JSON([]any{})
		}
		return r.JSON(runs)
	}

	if len(runs) == 0 {
		r.Muted("No saved runs")
		return nil
	}
	rows := make([]table.Row, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, table.Row{
			run.ID,
			run.CreatedAt.Local().Format(time.DateTime),
			run.Table,
			strings.Join(run.Columns, ","),
			run.StepCount,
			run.ErrorCount,
		})
	}
	r.Println(r.Table(table.Row{"ID", "Created", "Table", "Columns", "Steps", "Errors"}, rows))
	return nil
}

func runHistoryShow(cmd *cobra.Command, id string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	store, err := cmdCtx.Engine.Store()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	steps, err := store.GetSteps(ctx, run.ID)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() != output.ModeJSON {
		r.Muted(fmt.Sprintf("Run %s, saved %s", run.ID, run.CreatedAt.Local().Format(time.DateTime)))
	}
	return renderTrace(r, run.Table, run.Columns, steps, run.ID)
}
