// Package loader discovers SQL model files and turns their templated source
// into plain SQL the lineage tracer can parse.
package loader

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Frontmatter is the YAML block at the top of a model file.
// Unknown fields cause parse errors (use Meta for extensions).
type Frontmatter struct {
	Name         string         `yaml:"name"`
	Description  string         `yaml:"description"`
	Materialized string         `yaml:"materialized"` // table, view, incremental, ephemeral
	Owner        string         `yaml:"owner"`
	Schema       string         `yaml:"schema"`
	Tags         []string       `yaml:"tags"`
	Meta         map[string]any `yaml:"meta"`
}

// frontmatterPattern matches /*--- ... ---*/ blocks at the start of a file.
var frontmatterPattern = regexp.MustCompile(`(?s)^\s*/\*---\s*\n(.*?)\s*---\*/`)

var knownFrontmatterFields = map[string]bool{
	"name":         true,
	"description":  true,
	"materialized": true,
	"owner":        true,
	"schema":       true,
	"tags":         true,
	"meta":         true,
}

var validMaterialized = map[string]bool{
	"table":       true,
	"view":        true,
	"incremental": true,
	"ephemeral":   true,
}

// ExtractFrontmatter splits content into its frontmatter and the SQL after
// it. A file without frontmatter yields an empty config and found=false.
func ExtractFrontmatter(content string) (fm *Frontmatter, sql string, found bool, err error) {
	matches := frontmatterPattern.FindStringSubmatch(content)
	if len(matches) < 2 {
		return &Frontmatter{}, content, false, nil
	}

	fm, err = parseFrontmatterYAML(matches[1])
	if err != nil {
		return nil, "", true, err
	}
	sql = strings.TrimSpace(frontmatterPattern.ReplaceAllString(content, ""))
	return fm, sql, true, nil
}

// StripFrontmatter removes a leading frontmatter block without parsing it.
func StripFrontmatter(content string) string {
	if !frontmatterPattern.MatchString(content) {
		return content
	}
	return strings.TrimSpace(frontmatterPattern.ReplaceAllString(content, ""))
}

// parseFrontmatterYAML parses YAML content with strict field validation.
func parseFrontmatterYAML(content string) (*Frontmatter, error) {
	// First, decode into a map to check for unknown fields
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(content), &raw); err != nil {
		return nil, &FrontmatterParseError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	for field := range raw {
		if !knownFrontmatterFields[field] {
			return nil, &UnknownFieldError{Field: field}
		}
	}

	var fm Frontmatter
	if err := yaml.Unmarshal([]byte(content), &fm); err != nil {
		return nil, &FrontmatterParseError{Message: fmt.Sprintf("failed to parse frontmatter: %v", err)}
	}

	if fm.Materialized != "" && !validMaterialized[fm.Materialized] {
		return nil, &FrontmatterParseError{
			Message: fmt.Sprintf("invalid materialized value: %q, must be one of: table, view, incremental, ephemeral", fm.Materialized),
		}
	}
	return &fm, nil
}

// ApplyDefaults fills the name from the file name, the schema from the
// directory below the models root and materialized with "table".
func (f *Frontmatter) ApplyDefaults(filename, schemaDir string) {
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filename, ".sql")
	}
	if f.Materialized == "" {
		f.Materialized = "table"
	}
	if f.Schema == "" {
		f.Schema = schemaDir
	}
}

// FrontmatterParseError represents a frontmatter parsing error.
type FrontmatterParseError struct {
	File    string
	Message string
}

func (e *FrontmatterParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// UnknownFieldError represents an error for unknown frontmatter fields.
type UnknownFieldError struct {
	File  string
	Field string
}

func (e *UnknownFieldError) Error() string {
	msg := fmt.Sprintf("unknown field %q in frontmatter, use \"meta\" field for custom fields", e.Field)
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, msg)
	}
	return msg
}
