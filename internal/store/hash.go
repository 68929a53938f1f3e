package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jward/tscache/internal/hasher"
)

// SortFileRecord puts a record's lists into canonical order: imports and
// symbols by name, diagnostics by line then column. Ties are broken so the
// order never depends on checker iteration order.
func SortFileRecord(rec *FileRecord) {
	sort.SliceStable(rec.Imports, func(i, j int) bool {
		a, b := rec.Imports[i], rec.Imports[j]
		if a.Symbol.Name != b.Symbol.Name {
			return a.Symbol.Name < b.Symbol.Name
		}
		if a.ModuleSpecifier != b.ModuleSpecifier {
			return a.ModuleSpecifier < b.ModuleSpecifier
		}
		return a.Alias < b.Alias
	})
	sort.SliceStable(rec.Symbols, func(i, j int) bool {
		a, b := rec.Symbols[i], rec.Symbols[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.FQN < b.FQN
	})
	sort.SliceStable(rec.Diagnostics, func(i, j int) bool {
		a, b := rec.Diagnostics[i].Location, rec.Diagnostics[j].Location
		if a.LineNumber != b.LineNumber {
			return a.LineNumber < b.LineNumber
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return rec.Diagnostics[i].Code < rec.Diagnostics[j].Code
	})
}

// ComputeFileHashes fills the imports, symbols, diagnostics and combined
// hashes of rec. The lists must already be in canonical order.
// The content hash is not touched; it depends on file text, not analysis.
func ComputeFileHashes(h *hasher.Hasher, rec *FileRecord) error {
	imports := make([]string, len(rec.Imports))
	for i, imp := range rec.Imports {
		imports[i] = fmt.Sprintf("%s|%s|%s|%s", imp.Symbol.Name, imp.Alias, imp.ModuleSpecifier, imp.Kind)
	}
	symbols := make([]string, len(rec.Symbols))
	for i, sym := range rec.Symbols {
		symbols[i] = sym.FQN
	}
	diags := make([]string, len(rec.Diagnostics))
	for i, d := range rec.Diagnostics {
		diags[i] = fmt.Sprintf("%d:%d:%d", d.Location.LineNumber, d.Location.Column, d.Code)
	}

	ih, err := h.Join(imports...)
	if err != nil {
		return fmt.Errorf("imports hash: %w", err)
	}
	sh, err := h.Join(symbols...)
	if err != nil {
		return fmt.Errorf("symbols hash: %w", err)
	}
	dh, err := h.Join(diags...)
	if err != nil {
		return fmt.Errorf("diagnostics hash: %w", err)
	}
	ch, err := h.Hash(ih.String() + "-" + sh.String() + "-" + dh.String())
	if err != nil {
		return fmt.Errorf("combined hash: %w", err)
	}

	rec.ImportsHash = ih.String()
	rec.SymbolsHash = sh.String()
	rec.DiagnosticsHash = dh.String()
	rec.CombinedHash = ch.String()
	return nil
}

// ContentHash hashes file text with surrounding whitespace trimmed.
func ContentHash(h *hasher.Hasher, text []byte) (string, error) {
	sum, err := h.Hash(strings.TrimSpace(string(text)))
	if err != nil {
		return "", fmt.Errorf("content hash: %w", err)
	}
	return sum.String(), nil
}
