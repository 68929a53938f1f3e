package checker

import (
	"bytes"

	"github.com/jward/tscache/internal/store"
)

// RawDiagnostic is a diagnostic in one of the shapes a checker emits.
type RawDiagnostic interface {
	rawDiagnostic()
}

// CompilerDiagnostic is the compiler-native shape: positions are byte
// offsets into the file and may be absent.
type CompilerDiagnostic struct {
	Code        int
	Category    int // 0 warning, 1 error, 2 suggestion, 3 message
	MessageText string
	File        string
	Start       *int
	Length      *int
}

// ProjectDiagnostic is the project-level shape with zero-based line and
// character already resolved.
type ProjectDiagnostic struct {
	Code      int
	Category  store.Category
	Message   string
	File      string
	Line      int
	Character int
	Start     int
	Length    int
}

func (CompilerDiagnostic) rawDiagnostic() {}
func (ProjectDiagnostic) rawDiagnostic()  {}

var compilerCategories = map[int]store.Category{
	0: store.CategoryWarning,
	1: store.CategoryError,
	2: store.CategorySuggestion,
	3: store.CategoryMessage,
}

// NormalizeDiagnostic converts either raw shape into a Diagnostic with
// 1-based line and column. src is the file text, used to turn offsets into
// positions; it may be nil for ProjectDiagnostics.
func NormalizeDiagnostic(raw RawDiagnostic, src []byte) store.Diagnostic {
	switch d := raw.(type) {
	case CompilerDiagnostic:
		out := store.Diagnostic{
			Code:           d.Code,
			Category:       compilerCategories[d.Category],
			Message:        d.MessageText,
			SourceFilepath: d.File,
		}
		if out.Category == "" {
			out.Category = store.CategoryError
		}
		if d.Start != nil {
			line, col := position(src, *d.Start)
			out.Location = store.Location{LineNumber: line + 1, Column: col + 1, StartOffset: *d.Start}
		}
		if d.Length != nil {
			out.Location.Length = *d.Length
		}
		return out
	case ProjectDiagnostic:
		cat := d.Category
		if cat == "" {
			cat = store.CategoryError
		}
		return store.Diagnostic{
			Code:           d.Code,
			Category:       cat,
			Message:        d.Message,
			SourceFilepath: d.File,
			Location: store.Location{
				LineNumber:  d.Line + 1,
				Column:      d.Character + 1,
				StartOffset: d.Start,
				Length:      d.Length,
			},
		}
	}
	return store.Diagnostic{}
}

// position returns the zero-based line and byte column of offset in src.
// Offsets past the end clamp to the end.
func position(src []byte, offset int) (line, col int) {
	if offset > len(src) {
		offset = len(src)
	}
	if offset < 0 {
		offset = 0
	}
	prefix := src[:offset]
	line = bytes.Count(prefix, []byte{'\n'})
	col = offset - (bytes.LastIndexByte(prefix, '\n') + 1)
	return line, col
}

// Dedup drops diagnostics with the same (code, line, column) as an earlier
// one, keeping order.
func Dedup(diags []store.Diagnostic) []store.Diagnostic {
	seen := make(map[store.DiagnosticKey]bool, len(diags))
	out := diags[:0:0]
	for _, d := range diags {
		k := d.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, d)
	}
	return out
}
