package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// WriteProject writes files (slash-separated path -> content) below a fresh
// temporary directory and returns the directory.
func WriteProject(t testing.TB, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", rel, err)
		}
	}
	return root
}

// Files is an in-memory table registry keyed by table name. Lookups follow
// registry.Registry: ignore case, match the full name, then schema.name
// without a leading database, then the bare table name in any schema.
type Files map[string]string

func (f Files) find(table string) (string, bool) {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := strings.Split(strings.ToLower(strings.TrimSpace(table)), ".")
	candidates := []string{strings.Join(parts, ".")}
	if len(parts) > 2 {
		candidates = append(candidates, strings.Join(parts[len(parts)-2:], "."))
	}
	for _, candidate := range candidates {
		for _, name := range names {
			if strings.ToLower(name) == candidate {
				return name, true
			}
		}
	}

	bare := parts[len(parts)-1]
	for _, name := range names {
		segs := strings.Split(strings.ToLower(name), ".")
		if segs[len(segs)-1] == bare {
			return name, true
		}
	}
	return "", false
}

// Has reports whether table has SQL.
func (f Files) Has(table string) bool {
	_, ok := f.find(table)
	return ok
}

// Key returns the registered name for table.
func (f Files) Key(table string) string {
	if name, ok := f.find(table); ok {
		return strings.ToLower(name)
	}
	return strings.ToLower(table)
}

// Load returns the SQL of table.
func (f Files) Load(table string) (string, error) {
	name, ok := f.find(table)
	if !ok {
		return "", fmt.Errorf("no file for table %s", table)
	}
	return f[name], nil
}
