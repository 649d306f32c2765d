package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leaptrace/internal/lineage"
)

type sourcesFile struct {
	Version int           `yaml:"version"`
	Sources []sourceBlock `yaml:"sources"`
}

type sourceBlock struct {
	Name     string        `yaml:"name"`
	Database string        `yaml:"database"`
	Schema   string        `yaml:"schema"`
	Tables   []sourceTable `yaml:"tables"`
}

type sourceTable struct {
	Name        string         `yaml:"name"`
	Identifier  string         `yaml:"identifier"`
	Description string         `yaml:"description"`
	Columns     []sourceColumn `yaml:"columns"`
}

type sourceColumn struct {
	Name        string `yaml:"name"`
	DataType    string `yaml:"data_type"`
	Description string `yaml:"description"`
}

// Sources is a catalog of declared source columns. It implements
// lineage.SourceCatalog.
type Sources struct {
	columns map[string]lineage.SourceColumnInfo // "table.column" -> info
	tables  int
}

// LoadSources reads dbt source YAML files. Each argument may be a path or a
// glob pattern; a pattern matching nothing is not an error.
func LoadSources(paths ...string) (*Sources, error) {
	s := &Sources{columns: make(map[string]lineage.SourceColumnInfo)}
	for _, pattern := range paths {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid sources pattern %q: %w", pattern, err)
		}
		for _, path := range matches {
			data, err := os.ReadFile(path) //nolint:gosec // G304: path is user configuration
			if err != nil {
				return nil, fmt.Errorf("failed to read sources file: %w", err)
			}
			if err := s.add(data); err != nil {
				return nil, fmt.Errorf("failed to parse sources file %s: %w", path, err)
			}
		}
	}
	return s, nil
}

// ParseSources builds a catalog from one sources.yml document.
func ParseSources(data []byte) (*Sources, error) {
	s := &Sources{columns: make(map[string]lineage.SourceColumnInfo)}
	if err := s.add(data); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sources) add(data []byte) error {
	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}
	if file.Version != 0 && file.Version != 2 {
		return fmt.Errorf("unsupported sources version %d", file.Version)
	}

	for _, src := range file.Sources {
		schema := src.Schema
		if schema == "" {
			schema = src.Name
		}
		for _, tbl := range src.Tables {
			relation := tbl.Identifier
			if relation == "" {
				relation = tbl.Name
			}
			prefixes := []string{src.Name + "." + tbl.Name, schema + "." + relation}
			if src.Database != "" {
				prefixes = append(prefixes, src.Database+"."+schema+"."+relation)
			}
			s.tables++

			for _, col := range tbl.Columns {
				info := lineage.SourceColumnInfo{DataType: col.DataType, Description: col.Description}
				for _, p := range prefixes {
					s.columns[strings.ToLower(p+"."+col.Name)] = info
				}
			}
		}
	}
	return nil
}

// Lookup returns the metadata of a source column. The table matches as
// source.table, schema.identifier or database.schema.identifier, ignoring
// case.
func (s *Sources) Lookup(table, column string) (lineage.SourceColumnInfo, bool) {
	if s == nil {
		return lineage.SourceColumnInfo{}, false
	}
	info, ok := s.columns[strings.ToLower(table+"."+column)]
	return info, ok
}

// Tables returns the number of declared source tables.
func (s *Sources) Tables() int {
	return s.tables
}
