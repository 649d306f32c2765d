package commands

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaptrace/internal/cli/output"
	clitestutil "github.com/leapstack-labs/leaptrace/internal/cli/testutil"
	"github.com/leapstack-labs/leaptrace/internal/config"
	"github.com/leapstack-labs/leaptrace/internal/engine"
	"github.com/leapstack-labs/leaptrace/internal/lineage"
	"github.com/leapstack-labs/leaptrace/internal/testutil"
)

func TestNewTraceCommand(t *testing.T) {
	cmd := NewTraceCommand()

	assert.Equal(t, "trace <table> <column> [column...]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	for _, flag := range []string{"save", "watch"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
	assert.Error(t, cmd.Args(cmd, []string{"marts.orders"}))
	assert.NoError(t, cmd.Args(cmd, []string{"marts.orders", "amount"}))
}

func TestNewBatchCommand(t *testing.T) {
	cmd := NewBatchCommand()

	assert.Equal(t, "batch <table.column>...", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("concurrency"))
	assert.Error(t, cmd.Args(cmd, nil))
}

func TestNewGraphCommand(t *testing.T) {
	cmd := NewGraphCommand()

	assert.Equal(t, "graph <table> <column>", cmd.Use)
	assert.Error(t, cmd.Args(cmd, []string{"marts.orders"}))
	assert.Error(t, cmd.Args(cmd, []string{"marts.orders", "a", "b"}))
}

func TestNewHistoryCommand(t *testing.T) {
	cmd := NewHistoryCommand()

	assert.Equal(t, "history", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("limit"))

	show, _, err := cmd.Find([]string{"show"})
	require.NoError(t, err)
	assert.Equal(t, "show <run-id>", show.Use)
}

func TestNewShellAndModelsCommands(t *testing.T) {
	assert.Equal(t, "shell", NewShellCommand().Use)
	assert.Equal(t, "models", NewModelsCommand().Use)
}

func TestNewVersionCommand(t *testing.T) {
	tests := []struct {
		name    string
		version string
		wantOut []string
	}{
		{name: "default version", version: "0.1.0", wantOut: []string{"leaptrace v0.1.0", "lineage"}},
		{name: "custom version", version: "1.2.3", wantOut: []string{"leaptrace v1.2.3"}},
		{name: "dev version", version: "dev", wantOut: []string{"leaptrace vdev"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewVersionCommand(tt.version)
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)

			require.NoError(t, cmd.Execute())
			for _, want := range tt.wantOut {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestSplitTableColumn(t *testing.T) {
	tests := []struct {
		ref       string
		wantTable string
		wantCol   string
		wantErr   bool
	}{
		{ref: "marts.orders.amount", wantTable: "marts.orders", wantCol: "amount"},
		{ref: "db.marts.orders.amount", wantTable: "db.marts.orders", wantCol: "amount"},
		{ref: "orders.amount", wantTable: "orders", wantCol: "amount"},
		{ref: "amount", wantErr: true},
		{ref: ".amount", wantErr: true},
		{ref: "marts.orders.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			table, col, err := splitTableColumn(tt.ref)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "expected <table>.<column>")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTable, table)
			assert.Equal(t, tt.wantCol, col)
		})
	}
}

func TestGroupRequests(t *testing.T) {
	reqs, err := groupRequests([]string{
		"marts.orders.amount",
		"marts.daily.day",
		"MARTS.ORDERS.order_id",
		"marts.orders.amount",
	})
	require.NoError(t, err)

	require.Len(t, reqs, 2)
	assert.Equal(t, lineage.Request{Table: "marts.orders", Columns: []string{"amount", "order_id", "amount"}}, reqs[0])
	assert.Equal(t, lineage.Request{Table: "marts.daily", Columns: []string{"day"}}, reqs[1])

	_, err = groupRequests([]string{"marts.orders.amount", "nodot"})
	assert.Error(t, err)
}

func newSampleEngine(t *testing.T) *engine.Engine {
	t.Helper()
	root := clitestutil.SetupTestProject(t)

	pc, err := config.LoadFromDir(root)
	require.NoError(t, err)
	require.NotNil(t, pc)

	cfg, err := engine.FromProject(pc, testutil.NewTestLogger(t))
	require.NoError(t, err)
	eng, err := engine.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestHandleShellLine(t *testing.T) {
	eng := newSampleEngine(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		line     string
		wantQuit bool
		wantOut  []string
		wantErr  string
	}{
		{name: "blank", line: "   "},
		{name: "quit", line: ".quit", wantQuit: true},
		{name: "exit word", line: "exit", wantQuit: true},
		{name: "help", line: ".help", wantOut: []string{".models", ".reload"}},
		{name: "models", line: ".models", wantOut: []string{"marts.all_ids", "staging.stg_orders"}},
		{name: "reload", line: ".reload", wantOut: []string{"Loaded 4 models"}},
		{name: "unknown dot command", line: ".nope", wantErr: "unknown command .nope"},
		{
			name:    "table and column",
			line:    "marts.customer_totals total_cents",
			wantOut: []string{"marts.customer_totals", "staging.stg_orders", "raw.orders"},
		},
		{
			name:    "dotted reference",
			line:    "staging.stg_customers.name",
			wantOut: []string{"raw.customers"},
		},
		{name: "bare table", line: "orders", wantErr: "usage:"},
		{name: "unknown table", line: "marts.missing id", wantErr: "marts.missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := clitestutil.NewTestRenderer(output.ModeText, false)

			quit := handleShellLine(ctx, eng, tr.Renderer, tt.line)

			assert.Equal(t, tt.wantQuit, quit)
			for _, want := range tt.wantOut {
				assert.Contains(t, tr.Output(), want)
			}
			if tt.wantErr != "" {
				assert.Contains(t, tr.ErrorOutput(), tt.wantErr)
			} else {
				assert.Empty(t, tr.ErrorOutput())
			}
			clitestutil.AssertNoANSI(t, tr.Output())
		})
	}
}

func TestRenderTrace(t *testing.T) {
	steps := []lineage.Step{
		{Index: 1, Depth: 0, Kind: lineage.NodeInternal, Table: "marts.orders", Column: "amount"},
		{Index: 2, Depth: 1, Kind: lineage.NodeSource, Table: "raw.orders", Column: "amount", Expression: "amount / 100", ProjectionKind: lineage.KindCalculated},
	}

	t.Run("text", func(t *testing.T) {
		tr := clitestutil.NewTestRenderer(output.ModeText, false)
		require.NoError(t, renderTrace(tr.Renderer, "marts.orders", []string{"amount"}, steps, ""))

		out := tr.Output()
		assert.Contains(t, out, "Lineage of marts.orders.amount")
		assert.Contains(t, out, "raw.orders.amount")
		assert.Contains(t, out, "2 steps")
		assert.NotContains(t, out, "Saved run")
	})

	t.Run("table with run id", func(t *testing.T) {
		tr := clitestutil.NewTestRenderer(output.ModeTable, false)
		require.NoError(t, renderTrace(tr.Renderer, "marts.orders", []string{"amount"}, steps, "abc123"))

		out := tr.Output()
		assert.Contains(t, out, "EXPRESSION")
		assert.Contains(t, out, "amount / 100")
		assert.Contains(t, out, "Saved run abc123")
	})

	t.Run("json", func(t *testing.T) {
		tr := clitestutil.NewTestRenderer(output.ModeJSON, false)
		require.NoError(t, renderTrace(tr.Renderer, "marts.orders", []string{"amount"}, steps, "abc123"))

		out := tr.Output()
		assert.Contains(t, out, `"run_id": "abc123"`)
		assert.Contains(t, out, `"upstream"`)
	})
}
