package tscache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar"

	"github.com/jward/tscache/internal/checker"
	"github.com/jward/tscache/internal/runtime"
	"github.com/jward/tscache/internal/store"
	"github.com/jward/tscache/internal/symbol"
)

// racyWindow is how close a file's mtime may be to the moment its snapshot
// was taken before the snapshot stops vouching for it. Writes landing in the
// same timestamp tick as the snapshot would otherwise go unnoticed.
const racyWindow = 2 * time.Second

// freshness is the outcome of a staleness check.
type freshness int

const (
	stale freshness = iota
	freshByStat
	freshByHash
)

// ClassifyFile asks the checker about path, ingests the file's symbols, and
// stores the resulting FileRecord. Symbol writes only reach the cache when
// the whole file succeeds.
func (e *Engine) ClassifyFile(ctx context.Context, path string) (*FileRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	path = e.rel(path)
	abs := e.abs(path)
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	batch := store.NewSymbolBatch(e.symbols)
	rec, err := e.buildRecord(ctx, batch, path, src)
	if err != nil {
		batch.Discard()
		return nil, err
	}
	batch.Commit()
	e.files.Put(rec)

	snap := &store.Snapshot{
		ConfigHash:  e.configHash,
		Path:        path,
		ModTime:     info.ModTime(),
		Size:        info.Size(),
		ContentHash: rec.ContentHash,
		ObservedAt:  e.now(),
	}
	if err := e.store.PutSnapshot(snap); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	e.logger.Debug("classified file", "path", path, "symbols", len(rec.Symbols), "diagnostics", len(rec.Diagnostics))
	return rec, nil
}

func (e *Engine) buildRecord(ctx context.Context, batch *store.SymbolBatch, path string, src []byte) (*FileRecord, error) {
	imports, err := e.checker.Imports(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("imports: %w", err)
	}
	exported, err := e.checker.ExportedSymbols(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("exported symbols: %w", err)
	}
	raw, err := e.checker.Diagnostics(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: %w", err)
	}

	rec := &FileRecord{Filepath: path, UpdatedAt: e.now()}

	imported := make(map[string]bool)
	for _, imp := range imports {
		ref := store.ImportRef{
			Symbol:          store.SymbolRef{Name: imp.Name},
			Alias:           imp.Alias,
			ModuleSpecifier: imp.ModuleSpecifier,
			Kind:            imp.Kind,
			IsExternal:      checker.IsExternalSpecifier(imp.ModuleSpecifier),
		}
		if imp.Symbol != nil {
			sr, err := e.touch(batch, imp.Symbol)
			switch {
			case errors.Is(err, symbol.ErrInvalidSymbol):
			case err != nil:
				return nil, fmt.Errorf("import %s: %w", imp.Name, err)
			default:
				ref.Symbol = sr.Ref()
				imported[sr.FQN] = true
			}
		}
		rec.Imports = append(rec.Imports, ref)
	}

	listed := make(map[string]bool)
	for _, sym := range exported {
		sr, deps, err := e.ingest(ctx, batch, sym)
		if errors.Is(err, symbol.ErrInvalidSymbol) {
			e.logger.Debug("dropping unresolvable symbol", "path", path)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("symbol %s: %w", sym.Name(), err)
		}
		if sr == nil {
			continue
		}
		if !listed[sr.FQN] {
			listed[sr.FQN] = true
			rec.Symbols = append(rec.Symbols, sr.Ref())
		}
		// Local one-hop neighbours declared in this file are listed too.
		for _, dep := range deps {
			if dep.Scope != store.ScopeLocal || dep.Kind == store.KindProperty || imported[dep.FQN] {
				continue
			}
			if dep.Filepath != path || listed[dep.FQN] {
				continue
			}
			listed[dep.FQN] = true
			rec.Symbols = append(rec.Symbols, dep.Ref())
		}
	}

	diags := make([]store.Diagnostic, 0, len(raw))
	for _, r := range raw {
		d := checker.NormalizeDiagnostic(r, src)
		if d.SourceFilepath == "" {
			d.SourceFilepath = path
		}
		diags = append(diags, d)
	}
	rec.Diagnostics = checker.Dedup(diags)

	store.SortFileRecord(rec)
	if err := store.ComputeFileHashes(e.hasher, rec); err != nil {
		return nil, err
	}
	contentHash, err := store.ContentHash(e.hasher, src)
	if err != nil {
		return nil, err
	}
	rec.ContentHash = contentHash
	return rec, nil
}

// IsStale reports whether path changed since rec was built. A nil record or
// a missing file is stale. When only the content hash vouches for the file
// its snapshot is refreshed so the next check can stop at stat.
func (e *Engine) IsStale(path string, rec *FileRecord) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	path = e.rel(path)
	f, snap, err := e.check(path, rec)
	if err != nil {
		return false, err
	}
	if f == freshByHash {
		if err := e.store.PutSnapshot(snap); err != nil {
			return false, fmt.Errorf("snapshot: %w", err)
		}
	}
	return f == stale, nil
}

// check runs the two-tier staleness test. For freshByHash it also returns
// the snapshot that would let the fast path succeed next time.
func (e *Engine) check(path string, rec *FileRecord) (freshness, *store.Snapshot, error) {
	if rec == nil {
		return stale, nil, nil
	}
	info, err := os.Stat(e.abs(path))
	if errors.Is(err, fs.ErrNotExist) {
		return stale, nil, nil
	}
	if err != nil {
		return stale, nil, fmt.Errorf("stat: %w", err)
	}

	if !e.cfg.AlwaysVerify {
		snap, err := e.store.Snapshot(e.configHash, path)
		if err != nil {
			return stale, nil, fmt.Errorf("snapshot: %w", err)
		}
		if snap != nil &&
			snap.ContentHash == rec.ContentHash &&
			snap.Size == info.Size() &&
			snap.ModTime.Equal(info.ModTime()) &&
			snap.ObservedAt.Sub(snap.ModTime) >= racyWindow {
			return freshByStat, nil, nil
		}
	}

	src, err := os.ReadFile(e.abs(path))
	if err != nil {
		return stale, nil, fmt.Errorf("read: %w", err)
	}
	hash, err := store.ContentHash(e.hasher, src)
	if err != nil {
		return stale, nil, err
	}
	if hash != rec.ContentHash {
		return stale, nil, nil
	}
	return freshByHash, &store.Snapshot{
		ConfigHash:  e.configHash,
		Path:        path,
		ModTime:     info.ModTime(),
		Size:        info.Size(),
		ContentHash: hash,
		ObservedAt:  e.now(),
	}, nil
}

// DiscoverFiles walks the root and returns the project-relative source files
// matching Include and not Exclude, sorted.
func (e *Engine) DiscoverFiles() ([]string, error) {
	return e.walk(e.cfg.Include, e.cfg.Exclude)
}

// TestFiles returns the files matching TestGlobs, sorted.
func (e *Engine) TestFiles() ([]string, error) {
	return e.walk(e.cfg.TestGlobs, e.cfg.Exclude)
}

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
}

func (e *Engine) walk(include, exclude []string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(e.cfg.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == e.cfg.CacheDir || (path != e.cfg.Root && (skipDirs[d.Name()] || strings.HasPrefix(d.Name(), "."))) {
				return filepath.SkipDir
			}
			return nil
		}
		rel := e.rel(path)
		if matches(rel, include, exclude) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("tscache: walk %s: %w", e.cfg.Root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Tracks reports whether path is a source file the project includes.
func (e *Engine) Tracks(path string) bool {
	rel := e.rel(path)
	if strings.HasPrefix(rel, "../") {
		return false
	}
	return matches(rel, e.cfg.Include, e.cfg.Exclude)
}

func matches(rel string, include, exclude []string) bool {
	return runtime.IsSourceFile(rel) && matchAny(include, rel) && !matchAny(exclude, rel)
}

func matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, path); err == nil && ok {
			return true
		}
	}
	return false
}
