package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaptrace/internal/cli/output"
	"github.com/leapstack-labs/leaptrace/internal/engine"
)

const shellPrompt = "leaptrace> "

// NewShellCommand creates the interactive shell command.
func NewShellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Trace columns interactively",
		Long: `Start an interactive shell over the project.

Enter "<table> <column> [column...]" to trace. Models are discovered once at
startup; use .reload after editing files. Tab completes table names.`,
		Args: cobra.NoArgs,
		RunE: runShell,
	}
}

func runShell(cmd *cobra.Command, _ []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	eng := cmdCtx.Engine
	ctx := commandContext(cmd)

	var historyFile string
	if sp := eng.Config().StatePath; sp != "" {
		historyFile = filepath.Join(filepath.Dir(sp), "shell_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          shellPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newShellCompleter(eng),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize shell: %w", err)
	}
	defer func() { _ = rl.Close() }()

	r := cmdCtx.Renderer
	r.Printf("leaptrace shell (%d models in %s)\n", eng.Registry().Count(), eng.Config().ModelsDir)
	r.Println("Type .help for commands, .quit to exit")
	r.Println()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if quit := handleShellLine(ctx, eng, r, line); quit {
			return nil
		}
		if strings.HasPrefix(strings.TrimSpace(line), ".reload") {
			rl.Config.AutoComplete = newShellCompleter(eng)
		}
	}
}

// handleShellLine runs one shell input line and reports whether the shell
// should exit.
func handleShellLine(ctx context.Context, eng *engine.Engine, r *output.Renderer, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch strings.ToLower(fields[0]) {
	case ".quit", ".exit", "quit", "exit":
		return true
	case ".help":
		printShellHelp(r)
		return false
	case ".models":
		for _, m := range eng.Registry().Models() {
			r.Println(m.Table())
		}
		return false
	case ".reload":
		n, err := eng.Discover(ctx)
		if err != nil {
			r.Error(err.Error())
			return false
		}
		r.Success(fmt.Sprintf("Loaded %d models", n))
		return false
	}

	if strings.HasPrefix(fields[0], ".") {
		r.Error(fmt.Sprintf("unknown command %s (type .help for commands)", fields[0]))
		return false
	}

	table, columns := fields[0], fields[1:]
	if len(columns) == 0 {
		// allow "table.column"
		tbl, col, err := splitTableColumn(table)
		if err != nil {
			r.Error("usage: <table> <column> [column...]")
			return false
		}
		table, columns = tbl, []string{col}
	}
	if err := traceOnce(ctx, eng, r, table, columns, false); err != nil {
		r.Error(err.Error())
	}
	r.Println()
	return false
}

func printShellHelp(r *output.Renderer) {
	r.Println(`Commands:
  <table> <column>...  Trace columns of a table
  <table>.<column>     Trace one column
  .models              List project tables
  .reload              Rediscover models from disk
  .help                Show this help message
  .quit / .exit        Exit the shell`)
}

func newShellCompleter(eng *engine.Engine) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, m := range eng.Registry().Models() {
		items = append(items, readline.PcItem(m.Table()))
	}
	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".models"),
		readline.PcItem(".reload"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
	return readline.NewPrefixCompleter(items...)
}
