package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaptrace/internal/cli/output"
	"github.com/leapstack-labs/leaptrace/internal/lineage"
)

// NewBatchCommand creates the batch command.
func NewBatchCommand() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "batch <table.column>...",
		Short: "Trace many columns concurrently",
		Long: `Trace many columns at once and print a summary per table.

Columns of the same table are traced together in one request. Independent
requests run concurrently and share the parse cache. The command fails if
any request fails, after printing the summary.`,
		Example: `  # Trace three columns across two tables
  leaptrace batch marts.orders.amount marts.orders.order_id marts.daily.day

  # Limit parallelism
  leaptrace batch marts.orders.amount marts.daily.day --concurrency 2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args, concurrency)
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Maximum concurrent traces (default from config)")

	return cmd
}

// groupRequests turns table.column references into one request per table,
// in order of first appearance.
func groupRequests(refs []string) ([]lineage.Request, error) {
	var reqs []lineage.Request
	index := make(map[string]int)
	for _, ref := range refs {
		tbl, col, err := splitTableColumn(ref)
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(tbl)
		if i, ok := index[key]; ok {
			reqs[i].Columns = append(reqs[i].Columns, col)
			continue
		}
		index[key] = len(reqs)
		reqs = append(reqs, lineage.Request{Table: tbl, Columns: []string{col}})
	}
	return reqs, nil
}

func runBatch(cmd *cobra.Command, refs []string, concurrency int) error {
	reqs, err := groupRequests(refs)
	if err != nil {
		return err
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	eng := cmdCtx.Engine
	r := cmdCtx.Renderer
	if concurrency < 1 {
		concurrency = cmdCtx.Cfg.Concurrency
	}

	cmdCtx.Logger.Debug("running batch", "requests", len(reqs), "concurrency", concurrency)
	results, err := eng.TraceAll(commandContext(cmd), reqs, concurrency)
	if err != nil {
		return err
	}

	out := output.BatchOutput{Results: make([]output.BatchItem, 0, len(results))}
	for _, br := range results {
		item := output.BatchItem{Table: br.Request.Table, Columns: br.Request.Columns}
		if br.Err != nil {
			item.Error = br.Err.Error()
			out.Failed++
		} else {
			for _, s := range eng.Steps(br.Result) {
				item.Steps++
				switch s.Kind {
				case lineage.NodeSource:
					item.Sources++
				case lineage.NodeError:
					item.Errors++
				}
			}
		}
		out.Results = append(out.Results, item)
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := r.JSON(out); err != nil {
			return err
		}
	default:
		rows := make([]table.Row, 0, len(out.Results))
		for _, item := range out.Results {
			status := r.Styles().Success.Render("ok")
			if item.Error != "" {
				status = r.Styles().Error.Render(item.Error)
			}
			rows = append(rows, table.Row{item.Table, strings.Join(item.Columns, ","), item.Steps, item.Sources, item.Errors, status})
		}
		r.Println(r.Table(table.Row{"Table", "Columns", "Steps", "Sources", "Errors", "Status"}, rows))
		hits, misses := eng.CacheStats()
		r.Muted(fmt.Sprintf("%d requests, %d failed, parse cache %d hits / %d misses", len(out.Results), out.Failed, hits, misses))
	}

	if out.Failed > 0 {
		return fmt.Errorf("%d of %d traces failed", out.Failed, len(out.Results))
	}
	return nil
}
