package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// readConcurrency bounds parallel file reads during discovery.
const readConcurrency = 8

// Model is one SQL file of the project.
type Model struct {
	Name         string
	Schema       string // first directory below the models root, or frontmatter override
	Path         string // absolute file path
	RelPath      string // slash-separated path below the models root
	Materialized string
	Description  string
	Owner        string
	Tags         []string
	HasYAML      bool

	// Content is the raw file, frontmatter and templating included.
	Content string
	// Hash is the hex SHA-256 of Content.
	Hash string
}

// Table returns the name the model is referenced by in SQL: schema.name, or
// just name for files at the models root.
func (m *Model) Table() string {
	if m.Schema == "" {
		return m.Name
	}
	return m.Schema + "." + m.Name
}

// Discover walks modelsDir for *.sql files, skipping hidden files and
// directories, and loads them concurrently. Models are sorted by RelPath.
func Discover(ctx context.Context, modelsDir string) ([]*Model, error) {
	root, err := filepath.Abs(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve models directory: %w", err)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(d.Name()), ".sql") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan models directory: %w", err)
	}

	models := make([]*Model, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := LoadModel(root, path)
			if err != nil {
				return err
			}
			models[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(models, func(i, j int) bool { return models[i].RelPath < models[j].RelPath })
	return models, nil
}

// LoadModel reads one model file below root.
func LoadModel(root, path string) (*Model, error) {
	content, err := os.ReadFile(path) //nolint:gosec // G304: path comes from walking the models directory
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve model path %s: %w", path, err)
	}
	rel = filepath.ToSlash(rel)

	fm, _, found, err := ExtractFrontmatter(string(content))
	if err != nil {
		return nil, withFile(err, rel)
	}

	schemaDir := ""
	if i := strings.Index(rel, "/"); i > 0 {
		schemaDir = rel[:i]
	}
	fm.ApplyDefaults(filepath.Base(path), schemaDir)

	sum := sha256.Sum256(content)
	return &Model{
		Name:         fm.Name,
		Schema:       fm.Schema,
		Path:         path,
		RelPath:      rel,
		Materialized: fm.Materialized,
		Description:  fm.Description,
		Owner:        fm.Owner,
		Tags:         fm.Tags,
		HasYAML:      found,
		Content:      string(content),
		Hash:         hex.EncodeToString(sum[:]),
	}, nil
}

// withFile attaches the file name to frontmatter errors.
func withFile(err error, file string) error {
	var parseErr *FrontmatterParseError
	if errors.As(err, &parseErr) {
		parseErr.File = file
		return parseErr
	}
	var fieldErr *UnknownFieldError
	if errors.As(err, &fieldErr) {
		fieldErr.File = file
		return fieldErr
	}
	return fmt.Errorf("%s: %w", file, err)
}
