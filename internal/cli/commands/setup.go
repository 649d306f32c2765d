// Package commands implements the leaptrace subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaptrace/internal/cli/config"
	"github.com/leapstack-labs/leaptrace/internal/cli/output"
	"github.com/leapstack-labs/leaptrace/internal/engine"
	"github.com/leapstack-labs/leaptrace/pkg/parser"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc := NewCommandContextWithoutEngine(cmd)

	if err := cc.Cfg.ValidateDirectories(); err != nil {
		return nil, nil, err
	}

	engCfg, err := engine.FromProject(&cc.Cfg.ProjectConfig, cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	eng, err := engine.New(commandContext(cmd), engCfg)
	if err != nil {
		return nil, nil, err
	}
	cc.Engine = eng

	cleanup := func() {
		_ = eng.Close()
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't read the project.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := config.GetConfig(cmd.Context())
	logger := config.GetLogger(cmd.Context())

	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
	r.SetNoColor(cfg.NoColor)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// commandContext returns the command's context, which is unset when cobra
// calls completion functions directly.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// DialectNames lists the dialect presets for flag completion.
func DialectNames() []string {
	return parser.Dialects()
}

// splitTableColumn parses "schema.table.column" into table and column. The
// column is the last segment.
func splitTableColumn(ref string) (table, column string, err error) {
	i := strings.LastIndex(ref, ".")
	if i <= 0 || i == len(ref)-1 {
		return "", "", fmt.Errorf("invalid column reference %q, expected <table>.<column>", ref)
	}
	return ref[:i], ref[i+1:], nil
}
