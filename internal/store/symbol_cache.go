package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// MatchMode selects how FindByName compares short names.
type MatchMode int

const (
	MatchExact MatchMode = iota
	MatchContains
)

// SymbolSummary counts cached symbols by scope. Counters only move when an
// FQN is seen for the first time.
type SymbolSummary struct {
	Exported   int      `json:"exported" yaml:"exported"`
	ExportKeys []string `json:"exportKeys" yaml:"exportKeys"`
	Local      int      `json:"local" yaml:"local"`
	External   int      `json:"external" yaml:"external"`
}

// SymbolCache is the in-memory FQN → SymbolRecord map with a short-name
// index over module-scope symbols, persisted as a single JSON array.
//
// Not safe for concurrent use.
type SymbolCache struct {
	path    string
	logger  *slog.Logger
	records map[string]*SymbolRecord
	names   map[string][]string // short name → module-scope FQNs
	summary SymbolSummary
}

// Compile-time check: *SymbolCache satisfies SymbolSink.
var _ SymbolSink = (*SymbolCache)(nil)

// NewSymbolCache creates an empty cache persisted at path. A nil logger
// discards.
func NewSymbolCache(path string, logger *slog.Logger) *SymbolCache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &SymbolCache{path: path, logger: logger}
	c.reset()
	return c
}

func (c *SymbolCache) reset() {
	c.records = make(map[string]*SymbolRecord)
	c.names = make(map[string][]string)
	c.summary = SymbolSummary{ExportKeys: []string{}}
}

// Path returns the file the cache persists to.
func (c *SymbolCache) Path() string {
	return c.path
}

// Get returns the record for fqn, or nil.
func (c *SymbolCache) Get(fqn string) *SymbolRecord {
	return c.records[fqn]
}

// Upsert stores each record as given, replacing any record with the same FQN.
func (c *SymbolCache) Upsert(records ...*SymbolRecord) {
	for _, rec := range records {
		if rec == nil || rec.FQN == "" {
			continue
		}
		_, seen := c.records[rec.FQN]
		c.records[rec.FQN] = rec
		if seen {
			continue
		}
		switch rec.Scope {
		case ScopeModule:
			c.summary.Exported++
			c.summary.ExportKeys = append(c.summary.ExportKeys, rec.FQN)
			c.names[rec.Name] = append(c.names[rec.Name], rec.FQN)
		case ScopeLocal:
			c.summary.Local++
		case ScopeExternal:
			c.summary.External++
		}
	}
}

// FindByName looks up module-scope symbols by short name. Results are
// ordered by FQN.
func (c *SymbolCache) FindByName(name string, mode MatchMode) []*SymbolRecord {
	var fqns []string
	switch mode {
	case MatchExact:
		fqns = append(fqns, c.names[name]...)
	case MatchContains:
		for short, keys := range c.names {
			if strings.Contains(short, name) {
				fqns = append(fqns, keys...)
			}
		}
	}
	sort.Strings(fqns)

	result := make([]*SymbolRecord, 0, len(fqns))
	for _, fqn := range fqns {
		if rec := c.records[fqn]; rec != nil {
			result = append(result, rec)
		}
	}
	return result
}

// Keys returns all cached FQNs, or only exported ones, sorted.
func (c *SymbolCache) Keys(onlyExported bool) []string {
	var keys []string
	if onlyExported {
		keys = append(keys, c.summary.ExportKeys...)
	} else {
		keys = make([]string, 0, len(c.records))
		for fqn := range c.records {
			keys = append(keys, fqn)
		}
	}
	sort.Strings(keys)
	return keys
}

// Values returns every cached record ordered by FQN.
func (c *SymbolCache) Values() []*SymbolRecord {
	keys := c.Keys(false)
	out := make([]*SymbolRecord, len(keys))
	for i, k := range keys {
		out[i] = c.records[k]
	}
	return out
}

// Len returns the number of cached records.
func (c *SymbolCache) Len() int {
	return len(c.records)
}

// Summary returns a copy of the scope counters.
func (c *SymbolCache) Summary() SymbolSummary {
	s := c.summary
	s.ExportKeys = append([]string{}, c.summary.ExportKeys...)
	return s
}

// Clear drops every record and counter. With removeFile the persisted file
// is deleted too.
func (c *SymbolCache) Clear(removeFile bool) error {
	c.reset()
	if removeFile {
		if err := removeIfExists(c.path); err != nil {
			return fmt.Errorf("clear symbol cache: %w", err)
		}
	}
	return nil
}

// Persist rewrites the cache file with every record.
func (c *SymbolCache) Persist() error {
	if err := writeJSONFile(c.path, c.Values()); err != nil {
		return fmt.Errorf("persist symbol cache: %w", err)
	}
	c.logger.Debug("symbol cache written", "path", c.path, "count", len(c.records))
	return nil
}

// Load replaces the in-memory cache with the persisted file. A missing file
// leaves the cache empty. A corrupt file is deleted and the cache starts
// empty; that is not an error.
func (c *SymbolCache) Load() error {
	var records []*SymbolRecord
	found, err := readJSONFile(c.path, &records)
	if errors.Is(err, ErrCorrupt) {
		c.logger.Warn("symbol cache corrupt, rebuilding", "path", c.path, "err", err)
		return c.Clear(true)
	}
	if err != nil {
		return fmt.Errorf("load symbol cache: %w", err)
	}
	c.reset()
	if !found {
		return nil
	}
	c.Upsert(records...)
	c.logger.Debug("symbol cache loaded", "path", c.path, "count", len(c.records))
	return nil
}
