package tscache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/tscache/internal/checker"
	"github.com/jward/tscache/internal/store"
	"github.com/jward/tscache/internal/symbol"
)

// ===========================================================================
// Construction
// ===========================================================================

func TestNew_CreatesCacheDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	e := newTestEngine(t, root, newFakeChecker())

	assert.DirExists(t, filepath.Join(root, ".tscache"))
	assert.FileExists(t, filepath.Join(root, ".tscache", snapshotDBFile))
	assert.Len(t, e.ConfigHash(), 16)
	require.NotNil(t, e.Store())
}

func TestNew_NilChecker(t *testing.T) {
	t.Parallel()
	_, err := New(context.Background(), DefaultConfig(t.TempDir()), nil)
	assert.Error(t, err)
}

func TestNew_BadSymbolFilter(t *testing.T) {
	t.Parallel()
	_, err := New(context.Background(), DefaultConfig(t.TempDir()), newFakeChecker(), WithSymbolFilter(`symbol[`))
	assert.Error(t, err)
}

func TestNew_RelativeRoot(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"proj/src/a.ts": fooText + "\n"})
	t.Chdir(dir)
	chk := newFakeChecker()
	chk.exports["src/a.ts"] = []*fakeSym{typeAlias("src/a.ts", "Foo", fooText, 1)}

	e, err := New(context.Background(), DefaultConfig("proj"), chk, WithClock(laterClock))
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, filepath.Join(dir, "proj"), e.Config().Root)

	files, err := e.DiscoverFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.ts"}, files)

	summary, err := e.Refresh(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Added)
	assert.Empty(t, summary.Errors)
}

func TestConfigHash_TracksCompilerConfig(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	e1 := newTestEngine(t, root, newFakeChecker())
	h1 := e1.ConfigHash()
	require.NoError(t, e1.Close())

	writeFiles(t, root, map[string]string{"tsconfig.json": `{"compilerOptions":{}}`})
	e2 := newTestEngine(t, root, newFakeChecker())
	assert.NotEqual(t, h1, e2.ConfigHash())
}

func TestClosedEngine(t *testing.T) {
	t.Parallel()
	root, chk, _, _ := fooBarProject(t)
	e := newTestEngine(t, root, chk)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err := e.Refresh(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = e.ClassifyFile(context.Background(), "src/a.ts")
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = e.IsStale("src/a.ts", nil)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

// ===========================================================================
// End to end
// ===========================================================================

func TestEndToEnd_FooBar(t *testing.T) {
	t.Parallel()
	root, chk, _, _ := fooBarProject(t)
	e := newTestEngine(t, root, chk)
	ctx := context.Background()

	_, err := e.ClassifyFile(ctx, "src/a.ts")
	require.NoError(t, err)
	_, err = e.ClassifyFile(ctx, "src/b.ts")
	require.NoError(t, err)

	q := e.Query()
	foos := q.SymbolsByName("Foo", MatchExact)
	bars := q.SymbolsByName("Bar", MatchExact)
	require.Len(t, foos, 1)
	require.Len(t, bars, 1)
	foo, bar := foos[0], bars[0]

	assert.Contains(t, q.Symbol(bar.FQN).Deps, foo.FQN)

	graph := Expand(e.symbols, []string{bar.FQN}, false, 1, map[string]GraphNode{})
	require.Len(t, graph, 2)
	assert.Equal(t, 0, graph[bar.FQN].Depth)
	assert.Equal(t, 1, graph[foo.FQN].Depth)
	assert.Equal(t, "Bar", graph[foo.FQN].RequiredBy)
}

// ===========================================================================
// ClassifyFile
// ===========================================================================

func TestClassifyFile_Record(t *testing.T) {
	t.Parallel()
	root, chk, _, _ := fooBarProject(t)
	chk.imports["src/b.ts"] = append(chk.imports["src/b.ts"],
		checker.ImportDecl{Name: "Props", ModuleSpecifier: "react", Kind: store.ImportNamed, Symbol: externalSym("react", "Props")},
		checker.ImportDecl{Name: "Ghost", ModuleSpecifier: "./ghost", Kind: store.ImportNamed},
	)
	chk.diags["src/b.ts"] = []checker.RawDiagnostic{
		projectDiag("src/b.ts", 2304, 2, "late"),
		projectDiag("src/b.ts", 2307, 1, "early"),
		projectDiag("src/b.ts", 2307, 1, "duplicate"),
	}
	e := newTestEngine(t, root, chk)

	rec, err := e.ClassifyFile(context.Background(), "src/b.ts")
	require.NoError(t, err)

	require.Len(t, rec.Imports, 3)
	assert.Equal(t, "Foo", rec.Imports[0].Symbol.Name)
	assert.NotEmpty(t, rec.Imports[0].Symbol.FQN)
	assert.False(t, rec.Imports[0].IsExternal)
	assert.Equal(t, "Ghost", rec.Imports[1].Symbol.Name)
	assert.Empty(t, rec.Imports[1].Symbol.FQN)
	assert.Equal(t, "Props", rec.Imports[2].Symbol.Name)
	assert.True(t, rec.Imports[2].IsExternal)
	assert.Equal(t, store.ScopeExternal, rec.Imports[2].Symbol.Scope)

	require.Len(t, rec.Symbols, 1)
	assert.Equal(t, "Bar", rec.Symbols[0].Name)

	require.Len(t, rec.Diagnostics, 2)
	assert.Equal(t, "early", rec.Diagnostics[0].Message)
	assert.Equal(t, "late", rec.Diagnostics[1].Message)
	assert.Equal(t, "src/b.ts", rec.Diagnostics[0].SourceFilepath)

	assert.NotEmpty(t, rec.ImportsHash)
	assert.NotEmpty(t, rec.SymbolsHash)
	assert.NotEmpty(t, rec.DiagnosticsHash)
	assert.NotEmpty(t, rec.CombinedHash)
	assert.NotEmpty(t, rec.ContentHash)
	assert.Same(t, rec, e.Query().File("src/b.ts"))
}

func TestClassifyFile_CombinedHash(t *testing.T) {
	t.Parallel()
	root, chk, _, _ := fooBarProject(t)
	e := newTestEngine(t, root, chk)
	ctx := context.Background()

	first, err := e.ClassifyFile(ctx, "src/b.ts")
	require.NoError(t, err)
	again, err := e.ClassifyFile(ctx, "src/b.ts")
	require.NoError(t, err)
	assert.Equal(t, first.CombinedHash, again.CombinedHash)

	chk.diags["src/b.ts"] = []checker.RawDiagnostic{projectDiag("src/b.ts", 2304, 2, "new")}
	changed, err := e.ClassifyFile(ctx, "src/b.ts")
	require.NoError(t, err)
	assert.NotEqual(t, first.CombinedHash, changed.CombinedHash)
	assert.Equal(t, first.ImportsHash, changed.ImportsHash)
	assert.Equal(t, first.SymbolsHash, changed.SymbolsHash)
}

func TestClassifyFile_LocalNeighbours(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"src/a.ts": "type Inner = string;\nexport type Outer = { i: Inner };\n"})
	inner := localAlias("src/a.ts", "Inner", "type Inner = string;", 1)
	outer := typeAlias("src/a.ts", "Outer", "export type Outer = { i: Inner };", 2, inner)
	chk := newFakeChecker()
	chk.exports["src/a.ts"] = []*fakeSym{outer}
	e := newTestEngine(t, root, chk)

	rec, err := e.ClassifyFile(context.Background(), "src/a.ts")
	require.NoError(t, err)
	require.Len(t, rec.Symbols, 2)
	assert.Equal(t, "Inner", rec.Symbols[0].Name)
	assert.Equal(t, store.ScopeLocal, rec.Symbols[0].Scope)
	assert.Equal(t, "Outer", rec.Symbols[1].Name)
	assert.Equal(t, 1, e.Query().SymbolSummary().Local)
}

func TestClassifyFile_DepsAreTypeDefinitionsOnly(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"src/a.ts": "export const x = 1;\nexport type Bar = typeof x;\n"})
	x := &fakeSym{
		name: "x",
		decls: []symbol.Declaration{{
			Filepath: "src/a.ts", StartLine: 1, EndLine: 1,
			FullText: "export const x = 1;", Syntax: symbol.SyntaxVariable, Exported: true,
		}},
		flags:     symbol.FlagBlockScopedVariable,
		traits:    symbol.TraitNumber,
		qualified: `"src/a".x`,
	}
	bar := typeAlias("src/a.ts", "Bar", "export type Bar = typeof x;", 2, x)
	chk := newFakeChecker()
	chk.exports["src/a.ts"] = []*fakeSym{bar}
	e := newTestEngine(t, root, chk)

	_, err := e.ClassifyFile(context.Background(), "src/a.ts")
	require.NoError(t, err)

	barRec := e.Query().SymbolsByName("Bar", MatchExact)[0]
	assert.Empty(t, barRec.Deps)
	xRec := e.Query().SymbolsByName("x", MatchExact)
	require.Len(t, xRec, 1, "references are still classified")
	assert.Equal(t, store.KindScalar, xRec[0].Kind)

	graph := Expand(e.symbols, []string{barRec.FQN}, false, 5, nil)
	assert.Len(t, graph, 1)
}

func TestIngest_WritesToCacheDirectly(t *testing.T) {
	t.Parallel()
	root, chk, _, bar := fooBarProject(t)
	e := newTestEngine(t, root, chk)

	rec, deps, err := e.ingest(context.Background(), e.symbols, bar)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "Foo", deps[0].Name)
	assert.Same(t, rec, e.symbols.Get(rec.FQN))
	assert.NotNil(t, e.symbols.Get(deps[0].FQN))
	assert.Equal(t, []string{deps[0].FQN}, rec.Deps)
}

func TestClassifyFile_DropsInvalidSymbols(t *testing.T) {
	t.Parallel()
	root, chk, _, _ := fooBarProject(t)
	chk.exports["src/a.ts"] = append(chk.exports["src/a.ts"], &fakeSym{name: "  "})
	e := newTestEngine(t, root, chk)

	rec, err := e.ClassifyFile(context.Background(), "src/a.ts")
	require.NoError(t, err)
	assert.Len(t, rec.Symbols, 1)
}

func TestClassifyFile_FailureLeavesCachesUntouched(t *testing.T) {
	t.Parallel()
	root, chk, _, _ := fooBarProject(t)
	chk.refFail = errors.New("checker exploded")
	e := newTestEngine(t, root, chk)

	_, err := e.ClassifyFile(context.Background(), "src/b.ts")
	require.Error(t, err)
	assert.Equal(t, 0, e.symbols.Len())
	assert.Nil(t, e.Query().File("src/b.ts"))
}

func TestClassifyFile_OneHopKeepsExistingDeps(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/a.ts": "x\n",
		"src/b.ts": "y\n",
		"src/c.ts": "z\n",
	})
	base := typeAlias("src/a.ts", "Base", "export type Base = string;", 1)
	mid := typeAlias("src/b.ts", "Mid", "export type Mid = Base[];", 1, base)
	top := typeAlias("src/c.ts", "Top", "export type Top = Mid[];", 1, mid)
	chk := newFakeChecker()
	chk.exports["src/a.ts"] = []*fakeSym{base}
	chk.exports["src/b.ts"] = []*fakeSym{mid}
	chk.exports["src/c.ts"] = []*fakeSym{top}
	e := newTestEngine(t, root, chk)
	ctx := context.Background()

	for _, p := range []string{"src/a.ts", "src/b.ts", "src/c.ts"} {
		_, err := e.ClassifyFile(ctx, p)
		require.NoError(t, err)
	}

	midRec := e.Query().SymbolsByName("Mid", MatchExact)[0]
	baseRec := e.Query().SymbolsByName("Base", MatchExact)[0]
	topRec := e.Query().SymbolsByName("Top", MatchExact)[0]
	assert.Equal(t, []string{baseRec.FQN}, e.Query().Symbol(midRec.FQN).Deps)

	graph := Expand(e.symbols, []string{topRec.FQN}, true, 5, nil)
	assert.Len(t, graph, 2)
	assert.Equal(t, 2, graph[baseRec.FQN].Depth)
	assert.Equal(t, "Mid", graph[baseRec.FQN].RequiredBy)
}

func TestSymbolFilter_GatesIngestion(t *testing.T) {
	t.Parallel()
	root, chk, _, _ := fooBarProject(t)
	answer := &fakeSym{
		name:      "answer",
		decls:     []symbol.Declaration{{Filepath: "src/a.ts", StartLine: 2, EndLine: 2, FullText: "export const answer = 42;", Syntax: symbol.SyntaxVariable, Exported: true}},
		flags:     symbol.FlagBlockScopedVariable,
		traits:    symbol.TraitNumber | symbol.TraitLiteral,
		qualified: `"src/a".answer`,
	}
	chk.exports["src/a.ts"] = append(chk.exports["src/a.ts"], answer)
	e := newTestEngine(t, root, chk, WithSymbolFilter(`symbol["kind"] == "type-definition"`))

	rec, err := e.ClassifyFile(context.Background(), "src/a.ts")
	require.NoError(t, err)
	require.Len(t, rec.Symbols, 1)
	assert.Equal(t, "Foo", rec.Symbols[0].Name)
	assert.Empty(t, e.Query().SymbolsByName("answer", MatchExact), "filtered symbols are not ingested")
}

// ===========================================================================
// Staleness
// ===========================================================================

func TestIsStale(t *testing.T) {
	t.Parallel()
	root, chk, _, _ := fooBarProject(t)
	e := newTestEngine(t, root, chk)
	ctx := context.Background()

	stale, err := e.IsStale("src/a.ts", nil)
	require.NoError(t, err)
	assert.True(t, stale)

	rec, err := e.ClassifyFile(ctx, "src/a.ts")
	require.NoError(t, err)

	stale, err = e.IsStale("src/a.ts", rec)
	require.NoError(t, err)
	assert.False(t, stale)
	stale, err = e.IsStale("src/a.ts", rec)
	require.NoError(t, err)
	assert.False(t, stale, "staleness check is idempotent")

	// Touch without editing: stat differs, hash agrees.
	p := filepath.Join(root, "src", "a.ts")
	later := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(p, later, later))
	stale, err = e.IsStale("src/a.ts", rec)
	require.NoError(t, err)
	assert.False(t, stale)

	// Whitespace only: trimmed content hashes the same.
	writeFiles(t, root, map[string]string{"src/a.ts": "\n\n" + fooText + "\n\n"})
	stale, err = e.IsStale("src/a.ts", rec)
	require.NoError(t, err)
	assert.False(t, stale)

	writeFiles(t, root, map[string]string{"src/a.ts": "export type Foo = { id: number; rev: 2 };\n"})
	stale, err = e.IsStale("src/a.ts", rec)
	require.NoError(t, err)
	assert.True(t, stale)

	require.NoError(t, os.Remove(p))
	stale, err = e.IsStale("src/a.ts", rec)
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestCheck_FastAndSlowPaths(t *testing.T) {
	t.Parallel()
	root, chk, _, _ := fooBarProject(t)
	e := newTestEngine(t, root, chk)

	rec, err := e.ClassifyFile(context.Background(), "src/a.ts")
	require.NoError(t, err)

	f, _, err := e.check("src/a.ts", rec)
	require.NoError(t, err)
	assert.Equal(t, freshByStat, f)

	e.cfg.AlwaysVerify = true
	f, snap, err := e.check("src/a.ts", rec)
	require.NoError(t, err)
	assert.Equal(t, freshByHash, f)
	require.NotNil(t, snap)
	assert.Equal(t, rec.ContentHash, snap.ContentHash)
}

func TestCheck_RacySnapshotVerifies(t *testing.T) {
	t.Parallel()
	root, chk, _, _ := fooBarProject(t)
	// Clock agrees with the filesystem, so the snapshot lands inside the
	// racy window of the file's mtime.
	e := newTestEngine(t, root, chk, WithClock(time.Now))

	rec, err := e.ClassifyFile(context.Background(), "src/a.ts")
	require.NoError(t, err)

	f, _, err := e.check("src/a.ts", rec)
	require.NoError(t, err)
	assert.Equal(t, freshByHash, f)
}

// ===========================================================================
// Discovery
// ===========================================================================

func TestDiscoverFiles(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/a.ts":                 "",
		"src/view.tsx":             "",
		"src/a.test.ts":            "",
		"src/readme.md":            "",
		"node_modules/pkg/x.ts":    "",
		"dist/out.ts":              "",
		".hidden/y.ts":             "",
		"src/nested/deep/types.ts": "",
	})
	e := newTestEngine(t, root, newFakeChecker())

	files, err := e.DiscoverFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.test.ts", "src/a.ts", "src/nested/deep/types.ts", "src/view.tsx"}, files)

	tests, err := e.TestFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.test.ts"}, tests)
}

func TestTracks(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	e := newTestEngine(t, root, newFakeChecker())

	assert.True(t, e.Tracks("src/a.ts"))
	assert.True(t, e.Tracks(filepath.Join(root, "src", "view.tsx")))
	assert.False(t, e.Tracks("src/readme.md"))
	assert.False(t, e.Tracks("node_modules/pkg/index.ts"))
	assert.False(t, e.Tracks("../elsewhere/a.ts"))
}

func TestCheckFiles(t *testing.T) {
	t.Parallel()
	root, chk, _, _ := fooBarProject(t)
	e := newTestEngine(t, root, chk)
	ctx := context.Background()

	_, err := e.ClassifyFile(ctx, "src/a.ts")
	require.NoError(t, err)

	results := e.checkFiles(ctx, []string{"src/a.ts", "src/b.ts", "src/gone.ts"})
	require.Len(t, results, 3)
	assert.Equal(t, "src/a.ts", results[0].path)
	assert.Equal(t, freshByStat, results[0].fresh)
	assert.NotNil(t, results[0].rec)
	assert.Equal(t, stale, results[1].fresh)
	assert.Nil(t, results[1].rec)
	assert.True(t, results[2].missing)

	assert.Empty(t, e.checkFiles(ctx, nil))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	for _, r := range e.checkFiles(cancelled, []string{"src/a.ts"}) {
		assert.ErrorIs(t, r.err, context.Canceled)
	}
}
