package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaptrace/internal/cli/output"
	"github.com/leapstack-labs/leaptrace/internal/engine"
	"github.com/leapstack-labs/leaptrace/internal/lineage"
)

// TraceOptions holds options for the trace command.
type TraceOptions struct {
	Save  bool
	Watch bool
}

// NewTraceCommand creates the trace command.
func NewTraceCommand() *cobra.Command {
	opts := &TraceOptions{}

	cmd := &cobra.Command{
		Use:   "trace <table> <column> [column...]",
		Short: "Trace the lineage of one or more columns",
		Long: `Trace where the columns of a project table come from.

Several columns of the same table are traced in one pass, so CTE work shared
between them is done once. The command fails when a requested column is not
projected by the table.

Output adapts to environment:
  - Terminal: styled lineage tree
  - Piped/Scripted: JSON

Use --output to override: auto, text, table, json`,
		Example: `  # Trace one column
  leaptrace trace marts.customer_totals total_cents

  # Trace several columns together and save the run
  leaptrace trace marts.customer_totals customer_id total_cents --save

  # Step table instead of a tree
  leaptrace trace marts.customer_totals total_cents -o table

  # Re-trace whenever a model changes
  leaptrace trace marts.customer_totals total_cents --watch`,
		Args: cobra.MinimumNArgs(2),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return completeTables(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd, args[0], args[1:], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Save, "save", false, "Save the run to the history database")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Re-trace when model files change")

	return cmd
}

func runTrace(cmd *cobra.Command, table string, columns []string, opts *TraceOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	eng := cmdCtx.Engine
	r := cmdCtx.Renderer

	if err := traceOnce(commandContext(cmd), eng, r, table, columns, opts.Save); err != nil {
		return err
	}
	if !opts.Watch {
		return nil
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.Muted(fmt.Sprintf("Watching %s for changes (Ctrl+C to stop)", eng.Config().ModelsDir))
	return eng.Watch(ctx, func(changed string, err error) {
		r.Println()
		r.Muted("Change detected: " + filepath.Base(changed))
		if err != nil {
			r.Error(err.Error())
			return
		}
		if err := traceOnce(ctx, eng, r, table, columns, opts.Save); err != nil {
			r.Error(err.Error())
		}
	})
}

// traceOnce traces, optionally saves and renders one request.
func traceOnce(ctx context.Context, eng *engine.Engine, r *output.Renderer, table string, columns []string, save bool) error {
	res, err := eng.Trace(table, columns...)
	if err != nil {
		return err
	}
	steps := eng.Steps(res)

	var runID string
	if save {
		if runID, err = eng.Save(ctx, res, steps); err != nil {
			return err
		}
	}
	return renderTrace(r, res.Table, res.Columns, steps, runID)
}

func renderTrace(r *output.Renderer, table string, columns []string, steps []lineage.Step, runID string) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(output.TraceOutput{
			Table:   table,
			Columns: columns,
			RunID:   runID,
			Tree:    output.StepsToTree(steps),
			Steps:   steps,
		})
	case output.ModeTable:
		r.Println(r.StepTable(steps))
	default:
		r.Header(1, fmt.Sprintf("Lineage of %s.%s", table, strings.Join(columns, ",")))
		r.Println(r.LineageTree(steps))
		r.Println()
	}

	r.Muted(output.Summary(steps))
	if runID != "" {
		r.Success("Saved run " + runID)
	}
	return nil
}

// completeTables offers model table names for shell completion.
func completeTables(cmd *cobra.Command) ([]string, cobra.ShellCompDirective) {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	defer cleanup()

	var names []string
	for _, m := range cmdCtx.Engine.Registry().Models() {
		names = append(names, m.Table())
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
