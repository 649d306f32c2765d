package config

// Default configuration values.
const (
	DefaultModelsDir   = "models"
	DefaultDialect     = "duckdb"
	DefaultMaxDepth    = 100
	DefaultCacheSize   = 1000
	DefaultConcurrency = 4
	DefaultStatePath   = ".leaptrace/state.db"
)

// Defaults returns the default values keyed like the config file, ready for
// a confmap provider.
func Defaults() map[string]any {
	return map[string]any{
		"models_dir":        DefaultModelsDir,
		"internal_prefixes": []string{},
		"dialect":           DefaultDialect,
		"manifest":          "",
		"sources":           []string{},
		"max_depth":         DefaultMaxDepth,
		"max_steps":         0,
		"cache_size":        DefaultCacheSize,
		"concurrency":       DefaultConcurrency,
		"state_path":        DefaultStatePath,
	}
}

// ApplyDefaults fills zero values.
func (c *ProjectConfig) ApplyDefaults() {
	if c == nil {
		return
	}
	if c.ModelsDir == "" {
		c.ModelsDir = DefaultModelsDir
	}
	if c.Dialect == "" {
		c.Dialect = DefaultDialect
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.CacheSize == 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.StatePath == "" {
		c.StatePath = DefaultStatePath
	}
}
