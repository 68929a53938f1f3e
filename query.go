package tscache

import (
	"context"
	"fmt"
	"sort"

	"github.com/jward/tscache/internal/runtime"
)

// QueryBuilder answers read-only questions from the Engine's caches. It
// never consults the checker.
type QueryBuilder struct {
	engine *Engine
}

// Symbol returns the symbol with the given FQN, or nil.
func (q *QueryBuilder) Symbol(fqn string) *SymbolRecord {
	return q.engine.symbols.Get(fqn)
}

// SymbolsByName looks up module-scope symbols by short name.
func (q *QueryBuilder) SymbolsByName(name string, mode MatchMode) []*SymbolRecord {
	return q.engine.symbols.FindByName(name, mode)
}

// Symbols lists cached symbols ordered by FQN, optionally only module-scope
// ones, optionally narrowed by a filter expression.
func (q *QueryBuilder) Symbols(ctx context.Context, onlyExported bool, filter string) ([]*SymbolRecord, error) {
	var recs []*SymbolRecord
	for _, fqn := range q.engine.symbols.Keys(onlyExported) {
		recs = append(recs, q.engine.symbols.Get(fqn))
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].FQN < recs[j].FQN })
	if filter == "" {
		return recs, nil
	}
	f, err := runtime.NewFilter(ctx, filter, runtime.WithFilterLogger(q.engine.logger))
	if err != nil {
		return nil, fmt.Errorf("symbols: %w", err)
	}
	return f.Select(ctx, recs)
}

// SymbolSummary returns the symbol cache's scope counters.
func (q *QueryBuilder) SymbolSummary() SymbolSummary {
	return q.engine.symbols.Summary()
}

// Dependents returns the FQNs of cached symbols that list fqn in Deps.
func (q *QueryBuilder) Dependents(fqn string) []string {
	return q.engine.symbols.DependentsOf(fqn)
}

// File returns the cached record for path, or nil.
func (q *QueryBuilder) File(path string) *FileRecord {
	return q.engine.files.Get(q.engine.rel(path))
}

// Files returns every cached file record ordered by path.
func (q *QueryBuilder) Files() []*FileRecord {
	var out []*FileRecord
	for _, p := range q.engine.files.Paths() {
		out = append(out, q.engine.files.Get(p))
	}
	return out
}

// DiagnosticSummary returns the running diagnostic aggregates.
func (q *QueryBuilder) DiagnosticSummary() DiagnosticSummary {
	return q.engine.files.Summary()
}

// DiagnosticsReport splits cached diagnostics into errors and warnings.
type DiagnosticsReport struct {
	FileCount    int          `json:"fileCount" yaml:"fileCount"`
	ErrorCount   int          `json:"errorCount" yaml:"errorCount"`
	ErrorFiles   []string     `json:"errorFiles" yaml:"errorFiles"`
	WarningCount int          `json:"warningCount" yaml:"warningCount"`
	WarningFiles []string     `json:"warningFiles" yaml:"warningFiles"`
	Errors       []Diagnostic `json:"errors" yaml:"errors"`
	Warnings     []Diagnostic `json:"warnings" yaml:"warnings"`
}

// ExitCode is 1 when any error was found.
func (r *DiagnosticsReport) ExitCode() int {
	if r.ErrorCount > 0 {
		return 1
	}
	return 0
}

// SplitDiagnostics separates diags into errors and warnings. A diagnostic is
// a warning when its code is in warnCodes. Both lists are ordered by line
// then column.
func SplitDiagnostics(diags []Diagnostic, warnCodes []int) (errs, warnings []Diagnostic) {
	warn := make(map[int]bool, len(warnCodes))
	for _, c := range warnCodes {
		warn[c] = true
	}
	for _, d := range diags {
		if warn[d.Code] {
			warnings = append(warnings, d)
		} else {
			errs = append(errs, d)
		}
	}
	byPosition := func(list []Diagnostic) {
		sort.SliceStable(list, func(i, j int) bool {
			a, b := list[i].Location, list[j].Location
			if a.LineNumber != b.LineNumber {
				return a.LineNumber < b.LineNumber
			}
			return a.Column < b.Column
		})
	}
	byPosition(errs)
	byPosition(warnings)
	return errs, warnings
}

// DiagnosticsByCode splits every cached diagnostic into errors and warnings
// using warnCodes; nil uses the configured codes.
func (q *QueryBuilder) DiagnosticsByCode(warnCodes []int) *DiagnosticsReport {
	if warnCodes == nil {
		warnCodes = q.engine.cfg.WarnCodes
	}
	report := &DiagnosticsReport{ErrorFiles: []string{}, WarningFiles: []string{}}
	for _, rec := range q.Files() {
		report.FileCount++
		errs, warnings := SplitDiagnostics(rec.Diagnostics, warnCodes)
		if len(errs) > 0 {
			report.ErrorFiles = append(report.ErrorFiles, rec.Filepath)
		}
		if len(warnings) > 0 {
			report.WarningFiles = append(report.WarningFiles, rec.Filepath)
		}
		report.Errors = append(report.Errors, errs...)
		report.Warnings = append(report.Warnings, warnings...)
	}
	report.ErrorCount = len(report.Errors)
	report.WarningCount = len(report.Warnings)
	return report
}

// FilesWithCode returns the paths of cached files carrying a diagnostic with
// code, ordered by path.
func (q *QueryBuilder) FilesWithCode(code int) []string {
	var out []string
	for _, rec := range q.Files() {
		for _, d := range rec.Diagnostics {
			if d.Code == code {
				out = append(out, rec.Filepath)
				break
			}
		}
	}
	return out
}
