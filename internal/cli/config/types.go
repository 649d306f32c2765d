// Package config provides configuration management for the leaptrace CLI.
//
// It layers defaults, the project file, LEAPTRACE_* environment variables and
// explicitly set flags on top of the shared project configuration in
// internal/config.
package config

import (
	"fmt"
	"os"
	"slices"

	intconfig "github.com/leapstack-labs/leaptrace/internal/config"
)

// ProjectConfig is an alias for the shared project configuration.
type ProjectConfig = intconfig.ProjectConfig

// Output modes.
const (
	OutputAuto  = "auto"
	OutputText  = "text"
	OutputTable = "table"
	OutputJSON  = "json"
)

// OutputModes lists the accepted values of the output key.
var OutputModes = []string{OutputAuto, OutputText, OutputTable, OutputJSON}

// Default configuration values.
const (
	DefaultOutput = OutputAuto // TTY=text, non-TTY=json
	EnvPrefix     = "LEAPTRACE_"
)

// Config holds all CLI configuration options.
type Config struct {
	ProjectConfig `koanf:",squash"`

	OutputFormat string `koanf:"output"`
	NoColor      bool   `koanf:"no_color"`
	Verbose      bool   `koanf:"verbose"`

	// ProjectRoot is the directory relative paths were resolved against.
	ProjectRoot string `koanf:"-"`
	// ConfigFile is the config file that was loaded, if any.
	ConfigFile string `koanf:"-"`
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.ProjectConfig.Validate(); err != nil {
		return err
	}
	if !slices.Contains(OutputModes, c.OutputFormat) {
		return fmt.Errorf("invalid output %q, must be one of: auto, text, table, json", c.OutputFormat)
	}
	return nil
}

// ValidateDirectories checks if required directories exist.
func (c *Config) ValidateDirectories() error {
	if _, err := os.Stat(c.ModelsDir); os.IsNotExist(err) {
		return fmt.Errorf("models directory does not exist: %s\nHint: Create the directory or use --models-dir to specify a different path", c.ModelsDir)
	}
	return nil
}
