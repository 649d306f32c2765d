package output

import "github.com/leapstack-labs/leaptrace/internal/lineage"

// NodeOutput is one lineage node in JSON output.
type NodeOutput struct {
	Kind           lineage.NodeKind       `json:"kind"`
	Table          string                 `json:"table,omitempty"`
	Column         string                 `json:"column"`
	Detail         string                 `json:"detail,omitempty"`
	Branch         int                    `json:"branch,omitempty"`
	Expression     string                 `json:"expression,omitempty"`
	ProjectionKind lineage.ProjectionKind `json:"projection_kind,omitempty"`
	DataType       string                 `json:"data_type,omitempty"`
	Description    string                 `json:"description,omitempty"`
	Upstream       []*NodeOutput          `json:"upstream,omitempty"`
}

// TraceOutput is the JSON output of the trace command.
type TraceOutput struct {
	Table   string         `json:"table"`
	Columns []string       `json:"columns"`
	RunID   string         `json:"run_id,omitempty"`
	Tree    *NodeOutput    `json:"tree"`
	Steps   []lineage.Step `json:"steps"`
}

// BatchItem is one request of the batch command.
type BatchItem struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
	Steps   int      `json:"steps"`
	Sources int      `json:"sources"`
	Errors  int      `json:"errors"`
	Error   string   `json:"error,omitempty"`
}

// BatchOutput is the JSON output of the batch command.
type BatchOutput struct {
	Results []BatchItem `json:"results"`
	Failed  int         `json:"failed"`
}

// GraphOutput is the JSON output of the graph command.
type GraphOutput struct {
	Table        string              `json:"table"`
	Column       string              `json:"column"`
	Dependencies map[string][]string `json:"dependencies"`
	Levels       [][]string          `json:"levels"`
}

// ModelOutput describes one discovered model.
type ModelOutput struct {
	Name         string   `json:"name"`
	Table        string   `json:"table"`
	Path         string   `json:"path"`
	Materialized string   `json:"materialized,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	DependsOn    []string `json:"depends_on"`
	Level        int      `json:"level"`
}
