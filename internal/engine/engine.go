// Package engine wires a project together: model discovery, the table
// registry, the shared parse cache, manifest and source metadata, the
// lineage tracer and the run history store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/leaptrace/internal/cache"
	"github.com/leapstack-labs/leaptrace/internal/config"
	"github.com/leapstack-labs/leaptrace/internal/dag"
	"github.com/leapstack-labs/leaptrace/internal/lineage"
	"github.com/leapstack-labs/leaptrace/internal/loader"
	"github.com/leapstack-labs/leaptrace/internal/manifest"
	"github.com/leapstack-labs/leaptrace/internal/registry"
	"github.com/leapstack-labs/leaptrace/internal/state"
	"github.com/leapstack-labs/leaptrace/pkg/parser"
)

// Config holds engine configuration.
type Config struct {
	// ModelsDir is the root of the project's SQL files
	ModelsDir string
	// InternalPrefixes mark schemas/databases produced by the project
	InternalPrefixes []string
	// Dialect is the parser dialect (nil means ANSI)
	Dialect *parser.Dialect
	// ManifestPath is an optional dbt manifest.json
	ManifestPath string
	// SourcePaths are optional dbt source YAML files or globs
	SourcePaths []string
	MaxDepth    int
	MaxSteps    int
	// CacheSize is the parse cache capacity in entries
	CacheSize int
	// StatePath is the SQLite run history; opened on first use
	StatePath string
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// FromProject converts a loaded project configuration.
func FromProject(pc *config.ProjectConfig, logger *slog.Logger) (Config, error) {
	d, err := pc.ParserDialect()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ModelsDir:        pc.ModelsDir,
		InternalPrefixes: pc.InternalPrefixes,
		Dialect:          d,
		ManifestPath:     pc.Manifest,
		SourcePaths:      pc.Sources,
		MaxDepth:         pc.MaxDepth,
		MaxSteps:         pc.MaxSteps,
		CacheSize:        pc.CacheSize,
		StatePath:        pc.StatePath,
		Logger:           logger,
	}, nil
}

// Engine traces column lineage over one project.
type Engine struct {
	cfg      Config
	logger   *slog.Logger
	cache    *cache.ParseCache
	manifest *manifest.Manifest
	sources  *manifest.Sources

	mu       sync.RWMutex
	registry *registry.Registry
	tracer   *lineage.Tracer

	storeMu sync.Mutex
	store   *state.Store
}

// New loads manifest and source metadata and discovers the project's models.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Dialect == nil {
		cfg.Dialect = parser.ANSI
	}

	logger.Debug("initializing engine", "models_dir", cfg.ModelsDir, "dialect", cfg.Dialect.Name)

	pc, err := cache.New(cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, logger: logger, cache: pc}

	if cfg.ManifestPath != "" {
		m, err := manifest.LoadManifest(cfg.ManifestPath)
		if err != nil {
			pc.Close()
			return nil, err
		}
		logger.Debug("loaded manifest", "path", cfg.ManifestPath, "snapshots", len(m.Snapshots()))
		e.manifest = m
	}

	if len(cfg.SourcePaths) > 0 {
		s, err := manifest.LoadSources(cfg.SourcePaths...)
		if err != nil {
			pc.Close()
			return nil, err
		}
		logger.Debug("loaded sources", "tables", s.Tables())
		e.sources = s
	}

	if _, err := e.Discover(ctx); err != nil {
		pc.Close()
		return nil, err
	}
	return e, nil
}

// Discover (re)reads the models directory and swaps in a fresh registry and
// tracer. Parsed files stay cached; cache keys include the file content.
func (e *Engine) Discover(ctx context.Context) (int, error) {
	models, err := loader.Discover(ctx, e.cfg.ModelsDir)
	if err != nil {
		return 0, fmt.Errorf("failed to discover models: %w", err)
	}

	reg := registry.New(models...)
	opts := []lineage.Option{
		lineage.WithInternalPrefixes(e.cfg.InternalPrefixes...),
		lineage.WithDialect(e.cfg.Dialect),
		lineage.WithCache(e.cache),
		lineage.WithLogger(e.logger),
		lineage.WithMaxDepth(e.cfg.MaxDepth),
		lineage.WithMaxSteps(e.cfg.MaxSteps),
	}
	if e.manifest != nil {
		opts = append(opts, lineage.WithManifest(e.manifest))
	}

	e.mu.Lock()
	e.registry = reg
	e.tracer = lineage.NewTracer(reg, opts...)
	e.mu.Unlock()

	e.logger.Debug("discovered models", "count", len(models))
	return len(models), nil
}

// Registry returns the current model registry.
func (e *Engine) Registry() *registry.Registry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry
}

// Tracer returns the current tracer.
func (e *Engine) Tracer() *lineage.Tracer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tracer
}

// Manifest returns the loaded manifest, or nil.
func (e *Engine) Manifest() *manifest.Manifest {
	return e.manifest
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Trace resolves one or more columns of a table.
func (e *Engine) Trace(table string, columns ...string) (*lineage.Result, error) {
	return e.Tracer().TraceColumns(table, columns...)
}

// TraceAll runs independent requests concurrently.
func (e *Engine) TraceAll(ctx context.Context, reqs []lineage.Request, concurrency int) ([]lineage.BatchResult, error) {
	return e.Tracer().TraceAll(ctx, reqs, concurrency)
}

// Steps flattens a result, decorating sources with catalog metadata.
func (e *Engine) Steps(res *lineage.Result) []lineage.Step {
	if res == nil {
		return nil
	}
	var catalog lineage.SourceCatalog
	if e.sources != nil {
		catalog = e.sources
	}
	return lineage.Flatten(res.Root, catalog)
}

// Graph builds the model dependency graph.
func (e *Engine) Graph() (*dag.Graph, []error) {
	return e.Registry().DependencyGraph(e.cfg.Dialect)
}

// CacheStats reports parse cache hits and misses.
func (e *Engine) CacheStats() (hits, misses uint64) {
	return e.cache.Stats()
}

// Store opens the run history on first use.
func (e *Engine) Store() (*state.Store, error) {
	e.storeMu.Lock()
	defer e.storeMu.Unlock()

	if e.store != nil {
		return e.store, nil
	}
	if e.cfg.StatePath == "" {
		return nil, errors.New("no state path configured")
	}
	s, err := state.Open(e.cfg.StatePath, e.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	e.store = s
	return s, nil
}

// Save stores a result and its steps in the run history.
func (e *Engine) Save(ctx context.Context, res *lineage.Result, steps []lineage.Step) (string, error) {
	s, err := e.Store()
	if err != nil {
		return "", err
	}
	return s.SaveRun(ctx, res, steps)
}

// Close releases all resources.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")
	e.cache.Close()

	e.storeMu.Lock()
	defer e.storeMu.Unlock()
	if e.store != nil {
		err := e.store.Close()
		e.store = nil
		return err
	}
	return nil
}
