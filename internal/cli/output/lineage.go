package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss/tree"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/leaptrace/internal/lineage"
)

// KindLabel returns the display label of a node kind, e.g. "Consolidated CTE".
func KindLabel(kind lineage.NodeKind) string {
	label := cases.Title(language.English).String(strings.ReplaceAll(string(kind), "_", " "))
	return strings.ReplaceAll(label, "Cte", "CTE")
}

func qualified(table, column string) string {
	if table == "" {
		return column
	}
	return table + "." + column
}

func (r *Renderer) stepLabel(s lineage.Step) string {
	st := r.styles
	var b strings.Builder
	b.WriteString(st.Kind(s.Kind).Render("[" + KindLabel(s.Kind) + "]"))
	b.WriteString(" ")
	b.WriteString(st.Bold.Render(qualified(s.Table, s.Column)))
	if s.DataType != "" {
		b.WriteString(" " + st.Info.Render(s.DataType))
	}
	if s.Detail != "" {
		b.WriteString(" " + st.Muted.Render("("+s.Detail+")"))
	}
	if s.Branch > 1 {
		b.WriteString(" " + st.Muted.Render("branch "+strconv.Itoa(s.Branch)))
	}
	if s.Expression != "" && s.ProjectionKind != lineage.KindDirect {
		b.WriteString(" " + st.Expression.Render("← "+s.Expression))
	}
	return b.String()
}

// LineageTree draws flattened steps as a tree. Steps must be in pre-order
// with depths as produced by lineage.Flatten.
func (r *Renderer) LineageTree(steps []lineage.Step) string {
	if len(steps) == 0 {
		return ""
	}
	root := tree.Root(r.stepLabel(steps[0])).
		EnumeratorStyle(r.styles.Enumerator)

	stack := []*tree.Tree{root}
	for _, s := range steps[1:] {
		depth := min(max(s.Depth, 1), len(stack))
		node := tree.Root(r.stepLabel(s))
		stack[depth-1].Child(node)
		stack = append(stack[:depth], node)
	}
	return root.String()
}

// StepTable lists flattened steps, indenting tables by depth.
func (r *Renderer) StepTable(steps []lineage.Step) string {
	header := table.Row{"#", "Kind", "Table", "Column", "Detail", "Branch", "Expression"}
	rows := make([]table.Row, 0, len(steps))
	for _, s := range steps {
		detail := s.Detail
		if s.DataType != "" {
			detail = strings.TrimSpace(s.DataType + " " + detail)
		}
		branch := ""
		if s.Branch > 0 {
			branch = strconv.Itoa(s.Branch)
		}
		rows = append(rows, table.Row{
			s.Index,
			KindLabel(s.Kind),
			strings.Repeat("  ", s.Depth) + s.Table,
			s.Column,
			detail,
			branch,
			s.Expression,
		})
	}
	return r.Table(header, rows)
}

// Table renders rows with a light box style.
func (r *Renderer) Table(header table.Row, rows []table.Row) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	t.AppendRows(rows)
	return t.Render()
}

// StepsToTree rebuilds the nested JSON form of flattened steps.
func StepsToTree(steps []lineage.Step) *NodeOutput {
	if len(steps) == 0 {
		return nil
	}
	root := newNodeOutput(steps[0])
	stack := []*NodeOutput{root}
	for _, s := range steps[1:] {
		depth := min(max(s.Depth, 1), len(stack))
		node := newNodeOutput(s)
		parent := stack[depth-1]
		parent.Upstream = append(parent.Upstream, node)
		stack = append(stack[:depth], node)
	}
	return root
}

func newNodeOutput(s lineage.Step) *NodeOutput {
	return &NodeOutput{
		Kind:           s.Kind,
		Table:          s.Table,
		Column:         s.Column,
		Detail:         s.Detail,
		Branch:         s.Branch,
		Expression:     s.Expression,
		ProjectionKind: s.ProjectionKind,
		DataType:       s.DataType,
		Description:    s.Description,
	}
}

// Summary counts step kinds, e.g. "7 steps: 3 source, 1 error".
func Summary(steps []lineage.Step) string {
	counts := map[lineage.NodeKind]int{}
	for _, s := range steps {
		counts[s.Kind]++
	}
	var parts []string
	for _, k := range []lineage.NodeKind{
		lineage.NodeSource, lineage.NodeInternal, lineage.NodeCTE,
		lineage.NodeConsolidatedCTE, lineage.NodeSnapshot, lineage.NodeError,
	} {
		if n := counts[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, strings.ReplaceAll(string(k), "_", " ")))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d steps", len(steps))
	}
	return fmt.Sprintf("%d steps: %s", len(steps), strings.Join(parts, ", "))
}
