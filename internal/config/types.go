// Package config provides the project configuration shared by the CLI and
// library users: the leaptrace.yaml schema, its defaults and file discovery.
// It holds no CLI concerns.
package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leaptrace/pkg/parser"
)

// ProjectConfig holds the settings that shape tracing over a project.
type ProjectConfig struct {
	ModelsDir        string   `koanf:"models_dir"`
	InternalPrefixes []string `koanf:"internal_prefixes"`
	Dialect          string   `koanf:"dialect"`
	Manifest         string   `koanf:"manifest"`
	Sources          []string `koanf:"sources"`
	MaxDepth         int      `koanf:"max_depth"`
	MaxSteps         int      `koanf:"max_steps"` // 0 = unlimited
	CacheSize        int      `koanf:"cache_size"`
	Concurrency      int      `koanf:"concurrency"`
	StatePath        string   `koanf:"state_path"`
}

// ParserDialect returns the dialect named by Dialect.
func (c *ProjectConfig) ParserDialect() (*parser.Dialect, error) {
	d, ok := parser.GetDialect(c.Dialect)
	if !ok {
		return nil, &UnknownDialectError{Name: c.Dialect}
	}
	return d, nil
}

// Validate checks value ranges and the dialect name.
func (c *ProjectConfig) Validate() error {
	if c.ModelsDir == "" {
		return fmt.Errorf("models_dir is required")
	}
	if _, err := c.ParserDialect(); err != nil {
		return err
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth)
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("max_steps must not be negative, got %d", c.MaxSteps)
	}
	if c.CacheSize < 1 {
		return fmt.Errorf("cache_size must be positive, got %d", c.CacheSize)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	return nil
}

// UnknownDialectError is returned for dialect names without a preset.
type UnknownDialectError struct {
	Name string
}

func (e *UnknownDialectError) Error() string {
	return fmt.Sprintf("unknown dialect %q (available: %s)", e.Name, strings.Join(parser.Dialects(), ", "))
}
