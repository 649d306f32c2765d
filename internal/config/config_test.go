package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaptrace/internal/testutil"
)

func TestLoadFromDir(t *testing.T) {
	t.Run("no config file", func(t *testing.T) {
		cfg, err := LoadFromDir(t.TempDir())
		require.NoError(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("defaults and resolved paths", func(t *testing.T) {
		root := testutil.WriteProject(t, map[string]string{
			"leaptrace.yml": "internal_prefixes: [int_, core_]\nmanifest: target/manifest.json\nsources:\n  - models/*.yml\n",
		})

		cfg, err := LoadFromDir(root)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, []string{"int_", "core_"}, cfg.InternalPrefixes)
		assert.Equal(t, filepath.Join(root, "models"), cfg.ModelsDir)
		assert.Equal(t, filepath.Join(root, "target", "manifest.json"), cfg.Manifest)
		assert.Equal(t, []string{filepath.Join(root, "models", "*.yml")}, cfg.Sources)
		assert.Equal(t, filepath.Join(root, ".leaptrace", "state.db"), cfg.StatePath)
		assert.Equal(t, DefaultDialect, cfg.Dialect)
		assert.Equal(t, DefaultMaxDepth, cfg.MaxDepth)
		assert.Equal(t, DefaultCacheSize, cfg.CacheSize)
		assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
		require.NoError(t, cfg.Validate())
	})

	t.Run("yaml wins over yml", func(t *testing.T) {
		root := testutil.WriteProject(t, map[string]string{
			"leaptrace.yaml": "dialect: snowflake\n",
			"leaptrace.yml":  "dialect: bigquery\n",
		})
		cfg, err := LoadFromDir(root)
		require.NoError(t, err)
		assert.Equal(t, "snowflake", cfg.Dialect)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		root := testutil.WriteProject(t, map[string]string{"leaptrace.yaml": "dialect: [\n"})
		_, err := LoadFromDir(root)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})
}

func TestFindProjectRoot(t *testing.T) {
	root := testutil.WriteProject(t, map[string]string{
		"leaptrace.yaml":           "",
		"models/staging/a/b/c.sql": "SELECT 1",
	})

	assert.Equal(t, root, FindProjectRoot(filepath.Join(root, "models", "staging", "a")))
	assert.Equal(t, root, FindProjectRoot(root))
	assert.Empty(t, FindProjectRoot(t.TempDir()))
}

func TestProjectConfig_Validate(t *testing.T) {
	valid := func() *ProjectConfig {
		cfg := &ProjectConfig{}
		cfg.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *ProjectConfig)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*ProjectConfig) {}},
		{name: "unknown dialect", mutate: func(c *ProjectConfig) { c.Dialect = "oracle" }, wantErr: `unknown dialect "oracle"`},
		{name: "dialect ignores case", mutate: func(c *ProjectConfig) { c.Dialect = "Postgres" }},
		{name: "zero max depth", mutate: func(c *ProjectConfig) { c.MaxDepth = 0 }, wantErr: "max_depth must be positive"},
		{name: "negative max steps", mutate: func(c *ProjectConfig) { c.MaxSteps = -1 }, wantErr: "max_steps must not be negative"},
		{name: "zero cache", mutate: func(c *ProjectConfig) { c.CacheSize = 0 }, wantErr: "cache_size must be positive"},
		{name: "zero concurrency", mutate: func(c *ProjectConfig) { c.Concurrency = 0 }, wantErr: "concurrency must be positive"},
		{name: "empty models dir", mutate: func(c *ProjectConfig) { c.ModelsDir = "" }, wantErr: "models_dir is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, "", ResolvePath("", "/base"))
	assert.Equal(t, ":memory:", ResolvePath(":memory:", "/base"))
	assert.Equal(t, "/abs/x", ResolvePath("/abs/x", "/base"))
	assert.Equal(t, filepath.Join("/base", "rel"), ResolvePath("rel", "/base"))
}
