// Package main provides tests for the leaptrace CLI.
package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/leaptrace/internal/cli"
	clitestutil "github.com/leapstack-labs/leaptrace/internal/cli/testutil"
)

func TestVersionCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Errorf("version command error = %v", err)
	}
	if !strings.Contains(buf.String(), "leaptrace") {
		t.Errorf("version output should contain 'leaptrace', got: %s", buf.String())
	}
}

func TestHelpCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Errorf("help command error = %v", err)
	}

	output := buf.String()
	for _, expected := range []string{"trace", "batch", "graph", "history", "shell", "models"} {
		if !strings.Contains(output, expected) {
			t.Errorf("help output should contain '%s', got: %s", expected, output)
		}
	}
}

func TestTraceCommandWithModelsDir(t *testing.T) {
	root := clitestutil.SetupTestProject(t)

	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{
		"trace", "staging.stg_orders", "amount_cents",
		"--models-dir", filepath.Join(root, "models"),
		"--internal-prefix", "staging",
		"--internal-prefix", "marts",
		"--output", "text",
	})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("trace command error = %v", err)
	}

	output := buf.String()
	for _, expected := range []string{"staging.stg_orders", "raw.orders.amount", "amount * 100"} {
		if !strings.Contains(output, expected) {
			t.Errorf("trace output should contain %q, got: %s", expected, output)
		}
	}
}
