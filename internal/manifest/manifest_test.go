package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaptrace/internal/lineage"
	"github.com/leapstack-labs/leaptrace/internal/testutil"
)

const manifestJSON = `{
  "metadata": {"dbt_version": "1.8.0"},
  "nodes": {
    "snapshot.shop.orders_snapshot": {
      "resource_type": "snapshot",
      "database": "warehouse",
      "schema": "snapshots",
      "name": "orders_snapshot",
      "alias": "orders_history",
      "depends_on": {"nodes": ["model.shop.stg_orders"]}
    },
    "snapshot.shop.customers_snapshot": {
      "resource_type": "snapshot",
      "schema": "snapshots",
      "name": "customers_snapshot",
      "depends_on": {"nodes": ["source.shop.raw.customers", "model.shop.stg_customers", "model.other.gone"]}
    },
    "snapshot.shop.static_snapshot": {
      "resource_type": "snapshot",
      "schema": "snapshots",
      "name": "static_snapshot",
      "depends_on": {"nodes": []}
    },
    "model.shop.stg_orders": {
      "resource_type": "model",
      "database": "warehouse",
      "schema": "staging",
      "name": "stg_orders",
      "depends_on": {"nodes": ["source.shop.raw.orders"]}
    },
    "model.shop.stg_customers": {
      "resource_type": "model",
      "schema": "staging",
      "name": "stg_customers",
      "alias": "customers"
    }
  },
  "sources": {
    "source.shop.raw.customers": {
      "resource_type": "source",
      "database": "warehouse",
      "schema": "raw",
      "name": "customers",
      "identifier": "customers_v2"
    }
  }
}`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(manifestJSON))
	require.NoError(t, err)

	assert.Equal(t, []string{"customers_snapshot", "orders_snapshot", "static_snapshot"}, m.Snapshots())

	tests := []struct {
		name  string
		table string
		want  []lineage.ManifestRef
		found bool
	}{
		{
			name:  "bare name",
			table: "orders_snapshot",
			want:  []lineage.ManifestRef{{Database: "warehouse", Schema: "staging", Name: "stg_orders", ResourceType: "model"}},
			found: true,
		},
		{
			name:  "alias",
			table: "ORDERS_HISTORY",
			want:  []lineage.ManifestRef{{Database: "warehouse", Schema: "staging", Name: "stg_orders", ResourceType: "model"}},
			found: true,
		},
		{
			name:  "database qualified alias",
			table: "warehouse.snapshots.orders_history",
			want:  []lineage.ManifestRef{{Database: "warehouse", Schema: "staging", Name: "stg_orders", ResourceType: "model"}},
			found: true,
		},
		{
			name:  "multiple sources with identifier, alias and unknown node",
			table: "snapshots.customers_snapshot",
			want: []lineage.ManifestRef{
				{Database: "warehouse", Schema: "raw", Name: "customers_v2", ResourceType: "source"},
				{Schema: "staging", Name: "customers", ResourceType: "model"},
				{Name: "gone", ResourceType: "model"},
			},
			found: true,
		},
		{
			name:  "no dependencies",
			table: "static_snapshot",
			want:  []lineage.ManifestRef{},
			found: true,
		},
		{
			name:  "models are not snapshots",
			table: "staging.stg_orders",
		},
		{
			name:  "wrong schema",
			table: "marts.orders_snapshot",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs, ok := m.SnapshotDependencies(tt.table)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, refs)
			}
		})
	}
}

func TestLoadManifest(t *testing.T) {
	root := testutil.WriteProject(t, map[string]string{
		"target/manifest.json": manifestJSON,
		"target/broken.json":   `{"nodes": [`,
	})

	m, err := LoadManifest(filepath.Join(root, "target", "manifest.json"))
	require.NoError(t, err)
	assert.Len(t, m.Snapshots(), 3)

	_, err = LoadManifest(filepath.Join(root, "target", "broken.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse manifest")

	_, err = LoadManifest(filepath.Join(root, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNilManifest(t *testing.T) {
	var m *Manifest
	_, ok := m.SnapshotDependencies("anything")
	assert.False(t, ok)
}

func TestManifest_DrivesSnapshotTrace(t *testing.T) {
	m, err := ParseManifest([]byte(manifestJSON))
	require.NoError(t, err)

	files := testutil.Files{
		"marts.history": "SELECT order_id FROM snapshots.orders_history",
	}
	tracer := lineage.NewTracer(files, lineage.WithManifest(m), lineage.WithLogger(testutil.NewTestLogger(t)))
	res, err := tracer.Trace("marts.history", "order_id")
	require.NoError(t, err)

	var kinds []lineage.NodeKind
	for _, s := range lineage.Flatten(res.Root, nil) {
		kinds = append(kinds, s.Kind)
	}
	assert.Contains(t, kinds, lineage.NodeSnapshot)
}

const sourcesYAML = `version: 2
sources:
  - name: raw
    database: warehouse
    tables:
      - name: orders
        description: Raw orders
        columns:
          - name: id
            data_type: integer
            description: Order key
          - name: amount
            data_type: numeric
  - name: crm
    schema: crm_prod
    tables:
      - name: contacts
        identifier: contacts_v3
        columns:
          - name: email
            data_type: varchar
`

func TestParseSources(t *testing.T) {
	s, err := ParseSources([]byte(sourcesYAML))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Tables())

	tests := []struct {
		name     string
		table    string
		column   string
		wantType string
		found    bool
	}{
		{name: "source.table", table: "raw.orders", column: "id", wantType: "integer", found: true},
		{name: "case insensitive", table: "RAW.Orders", column: "AMOUNT", wantType: "numeric", found: true},
		{name: "database qualified", table: "warehouse.raw.orders", column: "id", wantType: "integer", found: true},
		{name: "schema and identifier", table: "crm_prod.contacts_v3", column: "email", wantType: "varchar", found: true},
		{name: "source name and table name", table: "crm.contacts", column: "email", wantType: "varchar", found: true},
		{name: "undeclared column", table: "raw.orders", column: "status"},
		{name: "undeclared table", table: "raw.users", column: "id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := s.Lookup(tt.table, tt.column)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.wantType, info.DataType)
		})
	}

	info, _ := s.Lookup("raw.orders", "id")
	assert.Equal(t, "Order key", info.Description)
}

func TestLoadSources(t *testing.T) {
	root := testutil.WriteProject(t, map[string]string{
		"models/staging/_sources.yml": sourcesYAML,
		"models/marts/_sources.yml": `version: 2
sources:
  - name: events
    tables:
      - name: clicks
        columns:
          - name: ts
            data_type: timestamp
`,
		"bad/sources.yml": "version: 3\nsources: []\n",
	})

	s, err := LoadSources(filepath.Join(root, "models", "*", "_sources.yml"), filepath.Join(root, "nothing", "*.yml"))
	require.NoError(t, err)
	assert.Equal(t, 3, s.Tables())
	_, ok := s.Lookup("events.clicks", "ts")
	assert.True(t, ok)

	_, err = LoadSources(filepath.Join(root, "bad", "sources.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported sources version 3")

	_, err = LoadSources("[")
	assert.Error(t, err)
}
