// Package checker defines the narrow contract tscache needs from a type
// checker, the normalisation of its diagnostics, and a syntactic
// TypeScript implementation built on tree-sitter.
package checker

import (
	"context"
	"strings"

	"github.com/jward/tscache/internal/store"
	"github.com/jward/tscache/internal/symbol"
)

// Symbol is an opaque checker symbol handle.
type Symbol interface {
	Name() string
}

// ImportDecl is one imported binding of a file. Symbol is the resolved
// target and may be nil when the checker cannot resolve it.
type ImportDecl struct {
	Name            string
	Alias           string
	ModuleSpecifier string
	Kind            store.ImportKind
	Symbol          Symbol
}

// Checker answers questions about a type-checked program. File arguments are
// project-relative slash-separated paths.
type Checker interface {
	// ConfigPath identifies the active compiler configuration.
	ConfigPath() string
	// Refresh drops anything the checker remembers about file so the next
	// question re-reads it from disk.
	Refresh(ctx context.Context, file string) error

	Diagnostics(ctx context.Context, file string) ([]RawDiagnostic, error)
	ExportedSymbols(ctx context.Context, file string) ([]Symbol, error)
	Imports(ctx context.Context, file string) ([]ImportDecl, error)
	// ReferencedSymbols returns the symbols named inside sym's declarations.
	ReferencedSymbols(ctx context.Context, sym Symbol) ([]Symbol, error)

	Declarations(sym Symbol) []symbol.Declaration
	Flags(sym Symbol) symbol.Flags
	ResolvedType(sym Symbol) symbol.TypeTraits
	QualifiedName(sym Symbol) string
}

// Describe collects everything the classifier needs about sym.
func Describe(c Checker, sym Symbol) symbol.Descriptor {
	return symbol.Descriptor{
		Name:          sym.Name(),
		Declarations:  c.Declarations(sym),
		Flags:         c.Flags(sym),
		Type:          c.ResolvedType(sym),
		QualifiedPath: c.QualifiedName(sym),
	}
}

// IsExternalSpecifier reports whether a module specifier points outside the
// project: anything not relative, rooted, or under src/.
func IsExternalSpecifier(spec string) bool {
	return !(strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "src/") || strings.HasPrefix(spec, "/"))
}
