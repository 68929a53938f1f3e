package tscache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jward/tscache/internal/checker"
	"github.com/jward/tscache/internal/store"
	"github.com/jward/tscache/internal/symbol"
)

// classify turns a checker symbol into a record without touching any cache.
func (e *Engine) classify(sym checker.Symbol) (*store.SymbolRecord, error) {
	return e.classifier.Classify(checker.Describe(e.checker, sym))
}

// wanted applies the symbol filter. Without one every symbol is wanted.
func (e *Engine) wanted(ctx context.Context, rec *store.SymbolRecord) (bool, error) {
	if e.filter == nil {
		return true, nil
	}
	return e.filter.Match(ctx, rec)
}

// ingest classifies sym, discovers its one-hop dependencies when it is a
// type definition, and buffers everything in batch. Every reference is
// classified, but only type definitions become Deps. It returns the record
// and the dependency records found, or a nil record when the symbol filter
// rejects sym. Unresolvable dependencies are dropped.
func (e *Engine) ingest(ctx context.Context, batch store.SymbolSink, sym checker.Symbol) (*store.SymbolRecord, []*store.SymbolRecord, error) {
	rec, err := e.classify(sym)
	if err != nil {
		return nil, nil, err
	}
	ok, err := e.wanted(ctx, rec)
	if err != nil || !ok {
		return nil, nil, err
	}

	var deps []*store.SymbolRecord
	if rec.Kind == store.KindTypeDefinition {
		refs, err := e.checker.ReferencedSymbols(ctx, sym)
		if err != nil {
			return nil, nil, fmt.Errorf("referenced symbols of %s: %w", rec.Name, err)
		}
		seen := make(map[string]bool, len(refs))
		for _, ref := range refs {
			dep, err := e.touch(batch, ref)
			if errors.Is(err, symbol.ErrInvalidSymbol) {
				e.logger.Debug("dropping unresolvable dependency", "fqn", rec.FQN)
				continue
			}
			if err != nil {
				return nil, nil, err
			}
			if dep.Kind != store.KindTypeDefinition || dep.FQN == rec.FQN || seen[dep.FQN] {
				continue
			}
			seen[dep.FQN] = true
			rec.Deps = append(rec.Deps, dep.FQN)
			deps = append(deps, dep)
		}
	}

	batch.Upsert(rec)
	return rec, deps, nil
}

// touch classifies sym as a one-hop neighbour. An existing record with the
// same content hash is kept as is so its own Deps survive; otherwise the
// fresh record replaces it.
func (e *Engine) touch(batch store.SymbolSink, sym checker.Symbol) (*store.SymbolRecord, error) {
	rec, err := e.classify(sym)
	if err != nil {
		return nil, err
	}
	if existing := batch.Get(rec.FQN); existing != nil && existing.ContentHash == rec.ContentHash {
		return existing, nil
	}
	batch.Upsert(rec)
	return rec, nil
}
