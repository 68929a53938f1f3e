// Package tscache keeps an incremental, content-addressed cache of what a
// TypeScript type checker knows about a project: per-file imports, exported
// symbols and diagnostics, plus a symbol table linked by type dependencies.
//
// # Pipeline
//
// [Engine.Refresh] walks a batch of files. Each file is checked for
// staleness in two tiers:
//
//  1. Stat: size and modification time are compared with the snapshot
//     recorded when the file was last classified. A match ends the check
//     without reading the file.
//  2. Hash: otherwise the trimmed content is hashed and compared with the
//     cached record. Only a hash mismatch counts as a change.
//
// The checks run on a worker pool; classification and cache writes that
// follow are serial.
//
// Changed and new files are reclassified. The checker is asked for the
// file's imports, exported symbols and diagnostics; every symbol is
// classified into a [SymbolRecord] with a fully-qualified name of the form
// scope::hash::name, and type definitions record their one-hop type
// dependencies. Both caches are persisted only when something changed.
//
// # Usage
//
//	cfg, err := tscache.LoadConfig(".")
//	chk, err := checker.NewTreeSitter(cfg.Root, cfg.CompilerConfigPath())
//	e, err := tscache.New(ctx, cfg, chk)
//	defer e.Close()
//
//	summary, err := e.Refresh(ctx, nil)
//	q := e.Query()
//	foo := q.SymbolsByName("Foo", tscache.MatchExact)
//	graph, err := q.DependencyGraph(ctx, []string{foo[0].FQN}, tscache.GraphOptions{MaxDepth: -1})
//
// # Query API
//
// The [QueryBuilder] returned by [Engine.Query] reads the caches only:
//
//   - [QueryBuilder.Symbol] and [QueryBuilder.SymbolsByName]: lookup by FQN
//     or short name.
//   - [QueryBuilder.DependencyGraph]: depth-bounded expansion of type
//     dependencies, built on [Expand].
//   - [QueryBuilder.Dependents]: reverse dependency lookup.
//   - [QueryBuilder.DiagnosticSummary] and [QueryBuilder.DiagnosticsByCode]:
//     diagnostic aggregates.
//
// # Test files
//
// [Engine.AnalyzeTestFile] splits a test file into describe blocks and test
// cases and attributes each diagnostic to the innermost region containing
// its line. Diagnostics outside every block are gathered into a leading
// synthetic block.
package tscache
