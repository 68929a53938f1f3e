package tscache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jward/tscache/internal/checker"
	"github.com/jward/tscache/internal/hasher"
	"github.com/jward/tscache/internal/runtime"
	"github.com/jward/tscache/internal/store"
	"github.com/jward/tscache/internal/symbol"
)

// ErrNotInitialized is returned by Engine methods after Close.
var ErrNotInitialized = errors.New("tscache: engine not initialized")

const (
	symbolCacheFile = "symbols.json"
	snapshotDBFile  = "snapshots.db"
)

// Engine owns the caches for one project and compiler configuration and
// keeps them in step with the files on disk.
//
// Not safe for concurrent use.
type Engine struct {
	cfg        Config
	checker    checker.Checker
	hasher     *hasher.Hasher
	classifier *symbol.Classifier
	symbols    *store.SymbolCache
	files      *store.FileCache
	store      *store.Store
	filter     *runtime.Filter
	filterSrc  string
	logger     *slog.Logger
	now        func() time.Time
	configHash string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the Engine's logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithSymbolFilter selects which exported symbols are ingested, overriding
// Config.SymbolFilter. An empty source ingests everything.
func WithSymbolFilter(source string) Option {
	return func(e *Engine) {
		e.filterSrc = source
	}
}

// New opens (or creates) the caches under cfg.CacheDir and loads whatever
// was persisted for the active compiler configuration.
func New(ctx context.Context, cfg Config, chk checker.Checker, opts ...Option) (*Engine, error) {
	if chk == nil {
		return nil, fmt.Errorf("tscache: nil checker")
	}
	cfg = cfg.normalize()
	e := &Engine{
		cfg:       cfg,
		checker:   chk,
		filterSrc: cfg.SymbolFilter,
		logger:    slog.New(slog.DiscardHandler),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.hasher = hasher.New()
	if err := e.hasher.Init(ctx); err != nil {
		return nil, fmt.Errorf("tscache: init hasher: %w", err)
	}
	e.classifier = symbol.NewClassifier(e.hasher, symbol.WithClock(e.now))

	if e.filterSrc != "" {
		f, err := runtime.NewFilter(ctx, e.filterSrc, runtime.WithFilterLogger(e.logger))
		if err != nil {
			return nil, fmt.Errorf("tscache: symbol filter: %w", err)
		}
		e.filter = f
	}

	configHash, err := e.hashConfig()
	if err != nil {
		return nil, err
	}
	e.configHash = configHash

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("tscache: create cache dir: %w", err)
	}
	s, err := store.NewStore(filepath.Join(cfg.CacheDir, snapshotDBFile))
	if err != nil {
		return nil, fmt.Errorf("tscache: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("tscache: migrate: %w", err)
	}
	e.store = s

	e.symbols = store.NewSymbolCache(filepath.Join(cfg.CacheDir, symbolCacheFile), e.logger)
	e.files = store.NewFileCache(filepath.Join(cfg.CacheDir, store.FileCacheName(configHash)), e.logger)
	if err := e.symbols.Load(); err != nil {
		s.Close()
		return nil, fmt.Errorf("tscache: load symbols: %w", err)
	}
	if err := e.files.Load(); err != nil {
		s.Close()
		return nil, fmt.Errorf("tscache: load files: %w", err)
	}

	if err := s.SetMetadata("config_path", cfg.CompilerConfigPath()); err != nil {
		s.Close()
		return nil, fmt.Errorf("tscache: metadata: %w", err)
	}
	e.logger.Debug("engine ready",
		"root", cfg.Root,
		"config_hash", configHash,
		"symbols", e.symbols.Len(),
		"files", e.files.Len(),
	)
	return e, nil
}

// hashConfig fingerprints the compiler configuration by path and content,
// so switching or editing the config selects a different file cache.
func (e *Engine) hashConfig() (string, error) {
	path := e.cfg.CompilerConfigPath()
	content, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("tscache: read compiler config: %w", err)
	}
	sum, err := e.hasher.Join(path, string(content))
	if err != nil {
		return "", fmt.Errorf("tscache: hash compiler config: %w", err)
	}
	return sum.String(), nil
}

// Close releases the snapshot database. The Engine is unusable afterwards.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	err := e.store.Close()
	e.store = nil
	return err
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil || !e.hasher.Ready() {
		return ErrNotInitialized
	}
	return nil
}

// Config returns the normalized configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// ConfigHash identifies the active compiler configuration.
func (e *Engine) ConfigHash() string {
	return e.configHash
}

// Store returns the snapshot and run-history store.
func (e *Engine) Store() *Store {
	return e.store
}

// Query returns a QueryBuilder over the Engine's caches.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{engine: e}
}

// Runs returns up to limit recorded refresh runs, newest first.
func (e *Engine) Runs(limit int) ([]*RefreshRun, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.store.Runs(limit)
}

// Clear empties both caches and forgets every snapshot for the active
// configuration. With removeFiles the persisted cache files are deleted.
func (e *Engine) Clear(removeFiles bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.symbols.Clear(removeFiles); err != nil {
		return fmt.Errorf("tscache: clear symbols: %w", err)
	}
	if err := e.files.Clear(removeFiles); err != nil {
		return fmt.Errorf("tscache: clear files: %w", err)
	}
	if err := e.store.DeleteSnapshots(e.configHash); err != nil {
		return fmt.Errorf("tscache: clear snapshots: %w", err)
	}
	e.logger.Info("cache cleared", "remove_files", removeFiles)
	return nil
}

// rel converts an absolute or root-relative path into the slash-separated
// project-relative form used as a cache key.
func (e *Engine) rel(path string) string {
	if filepath.IsAbs(path) {
		if r, err := filepath.Rel(e.cfg.Root, path); err == nil {
			path = r
		}
	}
	return filepath.ToSlash(filepath.Clean(path))
}

func (e *Engine) abs(rel string) string {
	return filepath.Join(e.cfg.Root, filepath.FromSlash(rel))
}
