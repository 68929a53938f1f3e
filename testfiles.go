package tscache

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jward/tscache/internal/regions"
	"github.com/jward/tscache/internal/store"
)

// TestFile is a test file broken into its describe blocks and test cases,
// with the file's diagnostics attributed to them.
type TestFile struct {
	Filepath     string             `json:"filepath" yaml:"filepath"`
	ContentHash  string             `json:"contentHash" yaml:"contentHash"`
	Size         int64              `json:"size" yaml:"size"`
	ModTime      time.Time          `json:"modTime" yaml:"modTime"`
	Imports      []store.ImportRef  `json:"imports" yaml:"imports"`
	Blocks       []*Region          `json:"blocks" yaml:"blocks"`
	Outside      *Region            `json:"outside,omitempty" yaml:"outside,omitempty"`
	Skip         bool               `json:"skip" yaml:"skip"`
	Tests        int                `json:"tests" yaml:"tests"`
	SkippedTests int                `json:"skippedTests" yaml:"skippedTests"`
	TestLines    int                `json:"testLines" yaml:"testLines"`
	Duration     time.Duration      `json:"duration" yaml:"duration"`
	Diagnostics  []store.Diagnostic `json:"-" yaml:"-"`
}

// AllBlocks returns the synthetic outside block, when present, followed by
// the real blocks.
func (t *TestFile) AllBlocks() []*Region {
	if t.Outside == nil {
		return t.Blocks
	}
	return append([]*Region{t.Outside}, t.Blocks...)
}

// microsPerLine is the analysis time per test line in microseconds.
func (t *TestFile) microsPerLine() int64 {
	if t.Duration < time.Millisecond || t.TestLines == 0 {
		return 0
	}
	return t.Duration.Microseconds() / int64(t.TestLines)
}

// Slow reports files over 100ms that also spend more than 500µs per line.
func (t *TestFile) Slow() bool {
	return t.Duration > 100*time.Millisecond && t.microsPerLine() > 500
}

// VerySlow reports files over 300ms or more than 2.5ms per line.
func (t *TestFile) VerySlow() bool {
	return t.Duration > 300*time.Millisecond || t.microsPerLine() > 2500
}

// AnalyzeTestFile classifies path if its cached record is stale, scans its
// test regions, and attributes its diagnostics.
func (e *Engine) AnalyzeTestFile(ctx context.Context, path string) (*TestFile, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	started := e.now()
	path = e.rel(path)

	rec := e.files.Get(path)
	isStale, err := e.IsStale(path, rec)
	if err != nil {
		return nil, err
	}
	if isStale {
		if err := e.checker.Refresh(ctx, path); err != nil {
			return nil, fmt.Errorf("checker refresh: %w", err)
		}
		if rec, err = e.ClassifyFile(ctx, path); err != nil {
			return nil, err
		}
	}

	abs := e.abs(path)
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	blocks, err := regions.Scan(ctx, path, src)
	if err != nil {
		return nil, err
	}
	outside := regions.Attribute(blocks, rec.Diagnostics)

	tf := &TestFile{
		Filepath:     path,
		ContentHash:  rec.ContentHash,
		Size:         info.Size(),
		ModTime:      info.ModTime(),
		Blocks:       blocks,
		Outside:      regions.Outside(path, outside),
		Skip:         regions.FileSkipped(blocks),
		Tests:        regions.Cases(blocks),
		SkippedTests: regions.SkippedCases(blocks),
		TestLines:    regions.TestLines(blocks),
		Diagnostics:  rec.Diagnostics,
	}
	for _, imp := range rec.Imports {
		if !imp.IsExternal {
			tf.Imports = append(tf.Imports, imp)
		}
	}
	tf.Duration = e.now().Sub(started)
	return tf, nil
}
