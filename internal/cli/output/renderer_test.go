package output

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaptrace/internal/lineage"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func sampleSteps() []lineage.Step {
	return []lineage.Step{
		{Index: 1, Depth: 0, Kind: lineage.NodeInternal, Table: "marts.orders", Column: "total"},
		{Index: 2, Depth: 1, Kind: lineage.NodeCTE, Table: "base", Column: "amount", Branch: 1, Expression: "amount * 2", ProjectionKind: lineage.KindCalculated},
		{Index: 3, Depth: 2, Kind: lineage.NodeSource, Table: "raw.orders", Column: "amount", Detail: "external_schema", Branch: 1, Expression: "amount", ProjectionKind: lineage.KindDirect, DataType: "decimal(10,2)"},
		{Index: 4, Depth: 1, Kind: lineage.NodeError, Table: "marts.x", Column: "y", Detail: "parse_error: boom", Branch: 2},
	}
}

func TestMode(t *testing.T) {
	tests := []struct {
		in   string
		want OutputMode
	}{
		{"", ModeAuto},
		{"auto", ModeAuto},
		{"TEXT", ModeText},
		{" table ", ModeTable},
		{"json", ModeJSON},
		{"markdown", ModeAuto},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Mode(tt.in))
		})
	}
}

func TestRenderer_EffectiveMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  OutputMode
		isTTY bool
		want  OutputMode
	}{
		{"auto on tty", ModeAuto, true, ModeText},
		{"auto piped", ModeAuto, false, ModeJSON},
		{"explicit text piped", ModeText, false, ModeText},
		{"explicit table on tty", ModeTable, true, ModeTable},
		{"explicit json on tty", ModeJSON, true, ModeJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRendererWithTTY(&bytes.Buffer{}, &bytes.Buffer{}, tt.isTTY, tt.mode)
			assert.Equal(t, tt.want, r.EffectiveMode())
			assert.Equal(t, tt.isTTY, r.IsTTY())
		})
	}
}

func TestNewRenderer_BufferIsNotTTY(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.False(t, r.IsTTY())
	assert.Equal(t, ModeJSON, r.EffectiveMode())
}

func TestRenderer_Messages(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	r := NewRendererWithTTY(out, errOut, false, ModeText)

	r.Header(1, "Lineage")
	r.Success("saved")
	r.Muted("3 steps")
	r.Printf("%s=%d\n", "depth", 2)
	r.Warning("careful")
	r.Error("failed")

	assert.Equal(t, "Lineage\n\n✓ saved\n3 steps\ndepth=2\n", out.String())
	assert.Equal(t, "! careful\n✗ failed\n", errOut.String())
}

func TestRenderer_NoColorOnTTY(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewRendererWithTTY(out, &bytes.Buffer{}, true, ModeText)
	r.SetNoColor(true)

	r.Println(r.LineageTree(sampleSteps()))
	assert.False(t, ansi.MatchString(out.String()), "unexpected escape codes in %q", out.String())
}

func TestRenderer_JSON(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewRendererWithTTY(out, &bytes.Buffer{}, false, ModeJSON)

	steps := sampleSteps()
	require.NoError(t, r.JSON(TraceOutput{
		Table:   "marts.orders",
		Columns: []string{"total"},
		Tree:    StepsToTree(steps),
		Steps:   steps,
	}))

	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "marts.orders", got["table"])
	assert.NotContains(t, got, "run_id")

	tree := got["tree"].(map[string]any)
	assert.Equal(t, "internal", tree["kind"])
	upstream := tree["upstream"].([]any)
	require.Len(t, upstream, 2)
	assert.Equal(t, "cte", upstream[0].(map[string]any)["kind"])
	assert.Equal(t, "error", upstream[1].(map[string]any)["kind"])

	assert.Error(t, r.JSON(func() {}))
}

func TestKindLabel(t *testing.T) {
	assert.Equal(t, "Source", KindLabel(lineage.NodeSource))
	assert.Equal(t, "CTE", KindLabel(lineage.NodeCTE))
	assert.Equal(t, "Consolidated CTE", KindLabel(lineage.NodeConsolidatedCTE))
	assert.Equal(t, "Snapshot", KindLabel(lineage.NodeSnapshot))
}

func TestLineageTree(t *testing.T) {
	r := NewRendererWithTTY(&bytes.Buffer{}, &bytes.Buffer{}, false, ModeText)

	got := r.LineageTree(sampleSteps())
	lines := strings.Split(got, "\n")
	require.Len(t, lines, 4)

	assert.Equal(t, "[Internal] marts.orders.total", lines[0])
	assert.Contains(t, lines[1], "├──")
	assert.Contains(t, lines[1], "[CTE] base.amount")
	assert.Contains(t, lines[1], "← amount * 2")
	assert.Contains(t, lines[2], "└──")
	assert.Contains(t, lines[2], "[Source] raw.orders.amount decimal(10,2) (external_schema)")
	assert.NotContains(t, lines[2], "←", "direct projections hide the expression")
	assert.Contains(t, lines[3], "└──")
	assert.Contains(t, lines[3], "branch 2")

	assert.Empty(t, r.LineageTree(nil))
}

func TestStepTable(t *testing.T) {
	r := NewRendererWithTTY(&bytes.Buffer{}, &bytes.Buffer{}, false, ModeTable)

	got := r.StepTable(sampleSteps())
	for _, want := range []string{"KIND", "EXPRESSION", "CTE", "amount * 2", "decimal(10,2) external_schema", "parse_error: boom"} {
		assert.Contains(t, got, want)
	}
	assert.Contains(t, got, "    raw.orders", "depth 2 indents the table")
	assert.False(t, ansi.MatchString(got))
}

func TestStepsToTree(t *testing.T) {
	assert.Nil(t, StepsToTree(nil))

	steps := []lineage.Step{
		{Index: 1, Depth: 0, Kind: lineage.NodeInternal, Table: "a", Column: "x"},
		{Index: 2, Depth: 1, Kind: lineage.NodeInternal, Table: "b", Column: "x"},
		{Index: 3, Depth: 2, Kind: lineage.NodeSource, Table: "c", Column: "x"},
		{Index: 4, Depth: 1, Kind: lineage.NodeSource, Table: "d", Column: "x"},
	}
	root := StepsToTree(steps)
	require.Len(t, root.Upstream, 2)
	assert.Equal(t, "b", root.Upstream[0].Table)
	require.Len(t, root.Upstream[0].Upstream, 1)
	assert.Equal(t, "c", root.Upstream[0].Upstream[0].Table)
	assert.Equal(t, "d", root.Upstream[1].Table)
	assert.Empty(t, root.Upstream[1].Upstream)
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "4 steps: 1 source, 1 internal, 1 cte, 1 error", Summary(sampleSteps()))
	assert.Equal(t, "0 steps", Summary(nil))
}
