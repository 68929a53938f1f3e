package tscache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jward/tscache/internal/checker"
	"github.com/jward/tscache/internal/symbol"
)

// fakeSym is an in-memory checker symbol.
type fakeSym struct {
	name      string
	decls     []symbol.Declaration
	flags     symbol.Flags
	traits    symbol.TypeTraits
	qualified string
	refs      []*fakeSym
}

func (s *fakeSym) Name() string { return s.name }

// fakeChecker answers from maps filled in by the test.
type fakeChecker struct {
	exports   map[string][]*fakeSym
	imports   map[string][]checker.ImportDecl
	diags     map[string][]checker.RawDiagnostic
	fail      map[string]error
	refFail   error
	refreshed []string
}

var _ checker.Checker = (*fakeChecker)(nil)

func newFakeChecker() *fakeChecker {
	return &fakeChecker{
		exports: make(map[string][]*fakeSym),
		imports: make(map[string][]checker.ImportDecl),
		diags:   make(map[string][]checker.RawDiagnostic),
		fail:    make(map[string]error),
	}
}

func (f *fakeChecker) ConfigPath() string { return "tsconfig.json" }

func (f *fakeChecker) Refresh(_ context.Context, file string) error {
	f.refreshed = append(f.refreshed, file)
	return nil
}

func (f *fakeChecker) Diagnostics(_ context.Context, file string) ([]checker.RawDiagnostic, error) {
	return f.diags[file], nil
}

func (f *fakeChecker) ExportedSymbols(_ context.Context, file string) ([]checker.Symbol, error) {
	if err := f.fail[file]; err != nil {
		return nil, err
	}
	var out []checker.Symbol
	for _, s := range f.exports[file] {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeChecker) Imports(_ context.Context, file string) ([]checker.ImportDecl, error) {
	return f.imports[file], nil
}

func (f *fakeChecker) ReferencedSymbols(_ context.Context, sym checker.Symbol) ([]checker.Symbol, error) {
	if f.refFail != nil {
		return nil, f.refFail
	}
	var out []checker.Symbol
	for _, r := range sym.(*fakeSym).refs {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeChecker) Declarations(sym checker.Symbol) []symbol.Declaration {
	return sym.(*fakeSym).decls
}

func (f *fakeChecker) Flags(sym checker.Symbol) symbol.Flags {
	return sym.(*fakeSym).flags
}

func (f *fakeChecker) ResolvedType(sym checker.Symbol) symbol.TypeTraits {
	return sym.(*fakeSym).traits
}

func (f *fakeChecker) QualifiedName(sym checker.Symbol) string {
	return sym.(*fakeSym).qualified
}

// typeAlias builds an exported type alias declared on line of file.
func typeAlias(file, name, text string, line int, refs ...*fakeSym) *fakeSym {
	return &fakeSym{
		name: name,
		decls: []symbol.Declaration{{
			Filepath:  file,
			StartLine: line,
			EndLine:   line,
			FullText:  text,
			Syntax:    symbol.SyntaxTypeAlias,
			Exported:  true,
		}},
		flags:     symbol.FlagTypeAlias,
		qualified: fmt.Sprintf("%q.%s", strings.TrimSuffix(file, ".ts"), name),
		refs:      refs,
	}
}

// localAlias is typeAlias without the export.
func localAlias(file, name, text string, line int) *fakeSym {
	s := typeAlias(file, name, text, line)
	s.decls[0].Exported = false
	return s
}

func externalSym(pkg, name string) *fakeSym {
	return &fakeSym{
		name:      name,
		decls:     []symbol.Declaration{{External: true, SourcePackage: pkg, Syntax: symbol.SyntaxOther}},
		qualified: fmt.Sprintf("%q.%s", pkg, name),
	}
}

func projectDiag(file string, code, line int, msg string) checker.RawDiagnostic {
	return checker.ProjectDiagnostic{Code: code, Message: msg, File: file, Line: line - 1}
}

// writeFiles writes content under root, creating directories.
func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// laterClock runs an hour ahead so freshly written files are outside the
// racy window when their snapshot is taken.
func laterClock() time.Time {
	return time.Now().Add(time.Hour)
}

func newTestEngine(t *testing.T, root string, chk checker.Checker, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithClock(laterClock)}, opts...)
	e, err := New(context.Background(), DefaultConfig(root), chk, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

const (
	fooText = "export type Foo = { id: string };"
	barText = "export type Bar = Foo[];"
)

// fooBarProject is a.ts exporting Foo and b.ts exporting Bar = Foo[].
func fooBarProject(t *testing.T) (string, *fakeChecker, *fakeSym, *fakeSym) {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/a.ts": fooText + "\n",
		"src/b.ts": "import { Foo } from \"./a\";\n" + barText + "\n",
	})
	foo := typeAlias("src/a.ts", "Foo", fooText, 1)
	bar := typeAlias("src/b.ts", "Bar", barText, 2, foo)

	chk := newFakeChecker()
	chk.exports["src/a.ts"] = []*fakeSym{foo}
	chk.exports["src/b.ts"] = []*fakeSym{bar}
	chk.imports["src/b.ts"] = []checker.ImportDecl{{Name: "Foo", ModuleSpecifier: "./a", Kind: "named", Symbol: foo}}
	return root, chk, foo, bar
}
