// Package manifest reads dbt project artifacts: snapshot declarations from
// manifest.json and source column metadata from sources.yml files.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/leapstack-labs/leaptrace/internal/lineage"
)

// manifestFile is the subset of a dbt manifest.json the tracer needs.
type manifestFile struct {
	Nodes   map[string]manifestNode `json:"nodes"`
	Sources map[string]manifestNode `json:"sources"`
}

type manifestNode struct {
	ResourceType string `json:"resource_type"`
	Database     string `json:"database"`
	Schema       string `json:"schema"`
	Name         string `json:"name"`
	Alias        string `json:"alias"`
	Identifier   string `json:"identifier"`
	DependsOn    struct {
		Nodes []string `json:"nodes"`
	} `json:"depends_on"`
}

// relation returns the object name the node builds in the warehouse.
func (n manifestNode) relation() string {
	switch {
	case n.Identifier != "":
		return n.Identifier
	case n.Alias != "":
		return n.Alias
	default:
		return n.Name
	}
}

// Manifest indexes the snapshots of a dbt manifest. It implements
// lineage.Manifest.
type Manifest struct {
	snapshots map[string][]lineage.ManifestRef
	names     []string
}

// LoadManifest reads a manifest.json file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is user configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return m, nil
}

// ParseManifest builds a Manifest from manifest.json content. Dependencies
// whose node is missing from the manifest are kept, named after the last
// segment of their unique ID.
func ParseManifest(data []byte) (*Manifest, error) {
	var file manifestFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	m := &Manifest{snapshots: make(map[string][]lineage.ManifestRef)}
	ids := make([]string, 0, len(file.Nodes))
	for id := range file.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		node := file.Nodes[id]
		if node.ResourceType != "snapshot" {
			continue
		}

		refs := make([]lineage.ManifestRef, 0, len(node.DependsOn.Nodes))
		for _, depID := range node.DependsOn.Nodes {
			refs = append(refs, resolveRef(file, depID))
		}

		m.names = append(m.names, strings.ToLower(node.Name))
		for _, key := range snapshotKeys(node) {
			m.snapshots[key] = refs
		}
	}
	sort.Strings(m.names)
	return m, nil
}

func resolveRef(file manifestFile, id string) lineage.ManifestRef {
	dep, ok := file.Nodes[id]
	if !ok {
		dep, ok = file.Sources[id]
	}
	if ok {
		return lineage.ManifestRef{
			Database:     dep.Database,
			Schema:       dep.Schema,
			Name:         dep.relation(),
			ResourceType: dep.ResourceType,
		}
	}

	// Unique IDs look like "<resource_type>.<package>.<name>".
	parts := strings.Split(id, ".")
	return lineage.ManifestRef{Name: parts[len(parts)-1], ResourceType: parts[0]}
}

func snapshotKeys(n manifestNode) []string {
	names := []string{strings.ToLower(n.Name)}
	if rel := n.relation(); rel != n.Name {
		names = append(names, strings.ToLower(rel))
	}
	keys := slices.Clone(names)
	if n.Schema != "" {
		for _, name := range names {
			keys = append(keys, strings.ToLower(n.Schema)+"."+name)
		}
	}
	return keys
}

// SnapshotDependencies returns the declared upstreams of a snapshot table.
// The table matches by bare name, alias or schema-qualified name, ignoring
// case and a leading database segment.
func (m *Manifest) SnapshotDependencies(table string) ([]lineage.ManifestRef, bool) {
	if m == nil {
		return nil, false
	}
	key := strings.ToLower(strings.TrimSpace(table))
	if refs, ok := m.snapshots[key]; ok {
		return refs, true
	}
	if parts := strings.Split(key, "."); len(parts) > 2 {
		refs, ok := m.snapshots[strings.Join(parts[len(parts)-2:], ".")]
		return refs, ok
	}
	return nil, false
}

// Snapshots returns the lower-cased names of all declared snapshots.
func (m *Manifest) Snapshots() []string {
	return m.names
}
