package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// FileCacheName returns the cache file name for a compiler configuration
// hash, so projects analysed under different configurations never share a
// file cache.
func FileCacheName(configHash string) string {
	return "files-" + configHash + ".json"
}

// DiagnosticCount is one aggregate row of a DiagnosticSummary.
type DiagnosticCount struct {
	Count         int `json:"count" yaml:"count"`
	FilesAffected int `json:"filesAffected" yaml:"filesAffected"`
}

// DiagnosticSummary aggregates cached diagnostics by category and by code.
type DiagnosticSummary struct {
	ByCategory map[Category]DiagnosticCount `json:"byCategory" yaml:"byCategory"`
	ByCode     map[int]DiagnosticCount      `json:"byCode" yaml:"byCode"`
}

// tally counts diagnostics and how many of them each file contributes.
type tally struct {
	count int
	files map[string]int
}

func (t *tally) add(file string, n int) {
	t.count += n
	t.files[file] += n
	if t.files[file] <= 0 {
		delete(t.files, file)
	}
}

// FileCache maps project-relative file paths to FileRecords and keeps running
// diagnostic aggregates in step with the records.
//
// Not safe for concurrent use.
type FileCache struct {
	path       string
	logger     *slog.Logger
	records    map[string]*FileRecord
	byCategory map[Category]*tally
	byCode     map[int]*tally
}

// NewFileCache creates an empty cache persisted at path. A nil logger
// discards.
func NewFileCache(path string, logger *slog.Logger) *FileCache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &FileCache{path: path, logger: logger}
	c.reset()
	return c
}

func (c *FileCache) reset() {
	c.records = make(map[string]*FileRecord)
	c.byCategory = make(map[Category]*tally)
	c.byCode = make(map[int]*tally)
}

// Path returns the file the cache persists to.
func (c *FileCache) Path() string {
	return c.path
}

// Get returns the record for a file path, or nil.
func (c *FileCache) Get(path string) *FileRecord {
	return c.records[path]
}

// Put stores rec, replacing any previous record for the same path and
// moving the diagnostic aggregates accordingly.
func (c *FileCache) Put(rec *FileRecord) {
	if rec == nil {
		return
	}
	if old, ok := c.records[rec.Filepath]; ok {
		c.account(old, -1)
	}
	c.records[rec.Filepath] = rec
	c.account(rec, 1)
}

// Delete drops the record for path. It reports whether one existed.
func (c *FileCache) Delete(path string) bool {
	old, ok := c.records[path]
	if !ok {
		return false
	}
	c.account(old, -1)
	delete(c.records, path)
	return true
}

func (c *FileCache) account(rec *FileRecord, sign int) {
	for _, d := range rec.Diagnostics {
		cat, ok := c.byCategory[d.Category]
		if !ok {
			cat = &tally{files: make(map[string]int)}
			c.byCategory[d.Category] = cat
		}
		cat.add(rec.Filepath, sign)
		if cat.count == 0 {
			delete(c.byCategory, d.Category)
		}

		code, ok := c.byCode[d.Code]
		if !ok {
			code = &tally{files: make(map[string]int)}
			c.byCode[d.Code] = code
		}
		code.add(rec.Filepath, sign)
		if code.count == 0 {
			delete(c.byCode, d.Code)
		}
	}
}

// Paths returns every cached file path, sorted.
func (c *FileCache) Paths() []string {
	paths := make([]string, 0, len(c.records))
	for p := range c.records {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Values returns every cached record ordered by path.
func (c *FileCache) Values() []*FileRecord {
	paths := c.Paths()
	out := make([]*FileRecord, len(paths))
	for i, p := range paths {
		out[i] = c.records[p]
	}
	return out
}

// Len returns the number of cached files.
func (c *FileCache) Len() int {
	return len(c.records)
}

// Summary returns the current diagnostic aggregates.
func (c *FileCache) Summary() DiagnosticSummary {
	s := DiagnosticSummary{
		ByCategory: make(map[Category]DiagnosticCount, len(c.byCategory)),
		ByCode:     make(map[int]DiagnosticCount, len(c.byCode)),
	}
	for cat, t := range c.byCategory {
		s.ByCategory[cat] = DiagnosticCount{Count: t.count, FilesAffected: len(t.files)}
	}
	for code, t := range c.byCode {
		s.ByCode[code] = DiagnosticCount{Count: t.count, FilesAffected: len(t.files)}
	}
	return s
}

// Clear drops every record. With removeFile the persisted file is deleted too.
func (c *FileCache) Clear(removeFile bool) error {
	c.reset()
	if removeFile {
		if err := removeIfExists(c.path); err != nil {
			return fmt.Errorf("clear file cache: %w", err)
		}
	}
	return nil
}

// Persist rewrites the cache file with every record.
func (c *FileCache) Persist() error {
	if err := writeJSONFile(c.path, c.Values()); err != nil {
		return fmt.Errorf("persist file cache: %w", err)
	}
	c.logger.Debug("file cache written", "path", c.path, "count", len(c.records))
	return nil
}

// Load replaces the in-memory cache with the persisted file, recovering from
// a corrupt file by deleting it.
func (c *FileCache) Load() error {
	var records []*FileRecord
	found, err := readJSONFile(c.path, &records)
	if errors.Is(err, ErrCorrupt) {
		c.logger.Warn("file cache corrupt, rebuilding", "path", c.path, "err", err)
		return c.Clear(true)
	}
	if err != nil {
		return fmt.Errorf("load file cache: %w", err)
	}
	c.reset()
	if !found {
		return nil
	}
	for _, rec := range records {
		c.Put(rec)
	}
	c.logger.Debug("file cache loaded", "path", c.path, "count", len(c.records))
	return nil
}
