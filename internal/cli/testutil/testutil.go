// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/leapstack-labs/leaptrace/internal/cli/output"
	"github.com/leapstack-labs/leaptrace/internal/testutil"
)

// SampleProject is a small project: one staging model over a raw source,
// a mart that aggregates it through a CTE, and a union model.
var SampleProject = map[string]string{
	"leaptrace.yaml": `models_dir: models
internal_prefixes: [staging, marts]
dialect: duckdb
state_path: .leaptrace/state.db
`,
	"models/staging/stg_orders.sql": `/*---
name: stg_orders
materialized: view
---*/
SELECT id AS order_id, customer_id, amount * 100 AS amount_cents, status
FROM {{ source('raw', 'orders') }}`,
	"models/staging/stg_customers.sql": `SELECT id AS customer_id, name FROM raw.customers`,
	"models/marts/customer_totals.sql": `WITH totals AS (
    SELECT customer_id, SUM(amount_cents) AS total_cents
    FROM {{ ref('stg_orders') }}
    GROUP BY customer_id
)
SELECT c.customer_id, c.name, t.total_cents
FROM {{ ref('stg_customers') }} c
JOIN totals t ON t.customer_id = c.customer_id`,
	"models/marts/all_ids.sql": `SELECT order_id AS id FROM staging.stg_orders
UNION ALL
SELECT customer_id AS id FROM staging.stg_customers`,
}

// SetupTestProject writes SampleProject to a temporary directory and returns
// its root.
func SetupTestProject(t *testing.T) string {
	t.Helper()
	return testutil.WriteProject(t, SampleProject)
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}
