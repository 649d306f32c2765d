package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaptrace/internal/cli/output"
	"github.com/leapstack-labs/leaptrace/internal/loader"
)

// NewModelsCommand creates the models command.
func NewModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List project models and their dependencies",
		Long: `List every model discovered under the models directory, in dependency
order, with the project tables each one reads.

Models that fail to parse are listed without dependencies and reported as
warnings.`,
		Example: `  leaptrace models
  leaptrace models --output json`,
		Args: cobra.NoArgs,
		RunE: runModels,
	}
}

func runModels(cmd *cobra.Command, _ []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	g, errs := cmdCtx.Engine.Graph()
	levels, err := g.Levels()
	if err != nil {
		return fmt.Errorf("failed to order models: %w", err)
	}

	var models []output.ModelOutput
	for level, ids := range levels {
		for _, id := range ids {
			n, _ := g.Node(id)
			m, ok := n.Data.(*loader.Model)
			if !ok {
				continue
			}
			deps := g.Upstream(id)
			if deps == nil {
				deps = []string{}
			}
			models = append(models, output.ModelOutput{
				Name:         m.Name,
				Table:        m.Table(),
				Path:         m.RelPath,
				Materialized: m.Materialized,
				Tags:         m.Tags,
				DependsOn:    deps,
				Level:        level,
			})
		}
	}

	for _, e := range errs {
		r.Warning(e.Error())
	}

	if r.EffectiveMode() == output.ModeJSON {
		if models == nil {
			models = []output.ModelOutput{}
		}
		return r.JSON(models)
	}

	r.Header(1, fmt.Sprintf("Models (%d total)", len(models)))
	rows := make([]table.Row, 0, len(models))
	for _, m := range models {
		rows = append(rows, table.Row{m.Level, m.Table, m.Path, m.Materialized, strings.Join(m.DependsOn, ", ")})
	}
	r.Println(r.Table(table.Row{"Level", "Table", "Path", "Materialized", "Depends On"}, rows))
	return nil
}
