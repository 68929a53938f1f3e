package tscache

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jward/tscache/internal/store"
)

// RefreshSummary reports what one Refresh did.
type RefreshSummary struct {
	RunID          string        `json:"runId,omitempty" yaml:"runId,omitempty"`
	Added          int           `json:"added" yaml:"added"`
	Updated        int           `json:"updated" yaml:"updated"`
	Removed        int           `json:"removed" yaml:"removed"`
	CacheHits      int           `json:"cacheHits" yaml:"cacheHits"`
	CacheMisses    int           `json:"cacheMisses" yaml:"cacheMisses"`
	EarlyCacheHits int           `json:"earlyCacheHits" yaml:"earlyCacheHits"`
	Affected       []string      `json:"affected,omitempty" yaml:"affected,omitempty"`
	Errors         []FileError   `json:"errors,omitempty" yaml:"errors,omitempty"`
	Duration       time.Duration `json:"duration" yaml:"duration"`
}

// Changed reports whether the refresh modified either cache.
func (s *RefreshSummary) Changed() bool {
	return s.Added+s.Updated+s.Removed > 0
}

// FileError is a per-file failure collected during Refresh.
type FileError struct {
	Path    string `json:"path" yaml:"path"`
	Message string `json:"message" yaml:"message"`
}

func (f FileError) Error() string {
	return f.Path + ": " + f.Message
}

// Refresh brings the caches up to date for paths. With no paths it refreshes
// every discovered source file plus every cached file, so deleted files are
// noticed. Per-file failures are collected in the summary and never stop the
// batch. Caches are persisted and the run recorded only when something
// changed; an unchanged batch writes nothing.
func (e *Engine) Refresh(ctx context.Context, paths []string) (*RefreshSummary, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	started := e.now()

	if len(paths) == 0 {
		discovered, err := e.DiscoverFiles()
		if err != nil {
			return nil, err
		}
		paths = unionSorted(discovered, e.files.Paths())
	} else {
		rels := make([]string, len(paths))
		for i, p := range paths {
			rels[i] = e.rel(p)
		}
		paths = unionSorted(rels, nil)
	}

	summary := &RefreshSummary{}
	var (
		verified []*store.Snapshot
		affected = make(map[string]bool)
	)
	for _, r := range e.checkFiles(ctx, paths) {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		snap, err := e.refreshFile(ctx, r, summary, affected)
		if err != nil {
			e.logger.Warn("refresh failed", "path", r.path, "err", err)
			summary.Errors = append(summary.Errors, FileError{Path: r.path, Message: err.Error()})
			continue
		}
		if snap != nil {
			verified = append(verified, snap)
		}
	}

	for fqn := range affected {
		summary.Affected = append(summary.Affected, fqn)
	}
	sort.Strings(summary.Affected)
	summary.Duration = e.now().Sub(started)

	if !summary.Changed() {
		return summary, nil
	}

	if err := e.persist(verified); err != nil {
		return summary, err
	}
	summary.RunID = uuid.NewString()
	run := &store.RefreshRun{
		ID:             summary.RunID,
		ConfigHash:     e.configHash,
		StartedAt:      started,
		Duration:       summary.Duration,
		Added:          summary.Added,
		Updated:        summary.Updated,
		Removed:        summary.Removed,
		CacheHits:      summary.CacheHits,
		CacheMisses:    summary.CacheMisses,
		EarlyCacheHits: summary.EarlyCacheHits,
	}
	if err := e.store.RecordRun(run); err != nil {
		return summary, fmt.Errorf("tscache: record run: %w", err)
	}
	e.logger.Info("refresh complete",
		"added", summary.Added,
		"updated", summary.Updated,
		"removed", summary.Removed,
		"hits", summary.CacheHits,
		"misses", summary.CacheMisses,
	)
	return summary, nil
}

// refreshFile applies the staleness result for one path. It returns a
// snapshot to store when the file was verified unchanged by hash.
func (e *Engine) refreshFile(ctx context.Context, r checkResult, summary *RefreshSummary, affected map[string]bool) (*store.Snapshot, error) {
	if r.err != nil {
		return nil, r.err
	}
	path, rec := r.path, r.rec

	if r.missing {
		if rec == nil {
			return nil, nil
		}
		for _, fqn := range e.symbols.DependentsOf(symbolFQNs(rec)...) {
			affected[fqn] = true
		}
		e.files.Delete(path)
		if err := e.store.DeleteSnapshots(e.configHash, path); err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
		summary.Removed++
		return nil, nil
	}

	switch r.fresh {
	case freshByStat:
		summary.CacheHits++
		summary.EarlyCacheHits++
		return nil, nil
	case freshByHash:
		summary.CacheHits++
		return r.snap, nil
	}

	summary.CacheMisses++
	before := e.symbolHashes(rec)
	if err := e.checker.Refresh(ctx, path); err != nil {
		return nil, fmt.Errorf("checker refresh: %w", err)
	}
	updated, err := e.ClassifyFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		summary.Added++
		return nil, nil
	}
	summary.Updated++

	changed := store.ChangedSymbols(before, e.symbolHashes(updated))
	for _, fqn := range e.symbols.DependentsOf(changed...) {
		affected[fqn] = true
	}
	return nil, nil
}

// symbolHashes maps each module-scope symbol of rec to its cached content
// hash.
func (e *Engine) symbolHashes(rec *FileRecord) map[string]string {
	out := make(map[string]string)
	if rec == nil {
		return out
	}
	for _, ref := range rec.Symbols {
		if ref.Scope != store.ScopeModule {
			continue
		}
		hash := ""
		if sr := e.symbols.Get(ref.FQN); sr != nil {
			hash = sr.ContentHash
		}
		out[ref.FQN] = hash
	}
	return out
}

func symbolFQNs(rec *FileRecord) []string {
	out := make([]string, 0, len(rec.Symbols))
	for _, ref := range rec.Symbols {
		out = append(out, ref.FQN)
	}
	return out
}

// Persist writes both caches to disk. Refresh does this on its own; callers
// that classify files directly use it to keep the results.
func (e *Engine) Persist() error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.persist(nil)
}

// persist writes both caches and the verified snapshots.
func (e *Engine) persist(verified []*store.Snapshot) error {
	if err := e.symbols.Persist(); err != nil {
		return fmt.Errorf("tscache: persist symbols: %w", err)
	}
	if err := e.files.Persist(); err != nil {
		return fmt.Errorf("tscache: persist files: %w", err)
	}
	for _, snap := range verified {
		if err := e.store.PutSnapshot(snap); err != nil {
			return fmt.Errorf("tscache: snapshot %s: %w", snap.Path, err)
		}
	}
	e.logger.Debug("caches persisted", "symbols", e.symbols.Len(), "files", e.files.Len())
	return nil
}

func unionSorted(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out
}
