package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/tscache"
)

// ---------------------------------------------------------------------------
// refresh
// ---------------------------------------------------------------------------

var refreshCmd = &cobra.Command{
	Use:   "refresh [files...]",
	Short: "Bring the caches up to date",
	Long:  "Re-analyses stale files, drops deleted ones, and reports which cached symbols depend on what changed. With no files the whole project is refreshed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		engine, err := openEngine(ctx)
		if err != nil {
			return outputError("refresh", err)
		}
		defer engine.Close()

		summary, err := engine.Refresh(ctx, args)
		if err != nil {
			return outputError("refresh", err)
		}
		if len(summary.Errors) > 0 {
			exitCode = 1
		}
		return outputResult(CLIResult{Command: "refresh", Results: summary})
	},
}

// ---------------------------------------------------------------------------
// symbols
// ---------------------------------------------------------------------------

var (
	flagContains bool
	flagExported bool
	flagFilter   string
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols [name]",
	Short: "List cached symbols",
	Long:  "Lists cached symbols, optionally by short name and narrowed by a Risor filter expression over `symbol`.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		engine, err := openEngine(ctx)
		if err != nil {
			return outputError("symbols", err)
		}
		defer engine.Close()

		recs, err := listSymbols(ctx, engine.Query(), args)
		if err != nil {
			return outputError("symbols", err)
		}
		syms := make([]CLISymbol, len(recs))
		for i, rec := range recs {
			syms[i] = toCLISymbol(rec)
		}
		return outputResult(CLIResult{Command: "symbols", Results: syms})
	},
}

func init() {
	symbolsCmd.Flags().BoolVar(&flagContains, "contains", false, "match names containing the argument")
	symbolsCmd.Flags().BoolVar(&flagExported, "exported", false, "only module-scope symbols")
	symbolsCmd.Flags().StringVar(&flagFilter, "filter", "", "filter expression, e.g. 'symbol[\"kind\"] == \"type-definition\"'")
}

func listSymbols(ctx context.Context, q *tscache.QueryBuilder, args []string) ([]*tscache.SymbolRecord, error) {
	if len(args) == 1 && flagFilter == "" {
		mode := tscache.MatchExact
		if flagContains {
			mode = tscache.MatchContains
		}
		return q.SymbolsByName(args[0], mode), nil
	}
	recs, err := q.Symbols(ctx, flagExported, flagFilter)
	if err != nil || len(args) == 0 {
		return recs, err
	}
	var out []*tscache.SymbolRecord
	for _, rec := range recs {
		if rec.Name == args[0] || (flagContains && strings.Contains(rec.Name, args[0])) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// graph
// ---------------------------------------------------------------------------

var (
	flagDepth        int
	flagExcludeSeeds bool
)

var graphCmd = &cobra.Command{
	Use:   "graph <symbol>...",
	Short: "Expand the dependency graph of symbols",
	Long:  "Walks cached dependencies breadth first from the given symbols. Arguments are FQNs or short names of module-scope symbols.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		engine, err := openEngine(ctx)
		if err != nil {
			return outputError("graph", err)
		}
		defer engine.Close()

		q := engine.Query()
		seeds, err := resolveSeeds(q, args)
		if err != nil {
			return outputError("graph", err)
		}
		nodes, err := q.DependencyGraph(ctx, seeds, tscache.GraphOptions{
			ExcludeSeeds: flagExcludeSeeds,
			MaxDepth:     flagDepth,
			Filter:       flagFilter,
		})
		if err != nil {
			return outputError("graph", err)
		}
		return outputResult(CLIResult{Command: "graph", Results: toCLIGraph(nodes)})
	},
}

func init() {
	graphCmd.Flags().IntVar(&flagDepth, "depth", -1, "maximum depth (default: max_depth from config)")
	graphCmd.Flags().BoolVar(&flagExcludeSeeds, "exclude-seeds", false, "leave the starting symbols out of the result")
	graphCmd.Flags().StringVar(&flagFilter, "filter", "", "filter expression applied to the result")
}

// resolveSeeds maps each argument to FQNs: an exact FQN, else every
// module-scope symbol with that short name.
func resolveSeeds(q *tscache.QueryBuilder, args []string) ([]string, error) {
	var seeds []string
	for _, arg := range args {
		if q.Symbol(arg) != nil {
			seeds = append(seeds, arg)
			continue
		}
		matches := q.SymbolsByName(arg, tscache.MatchExact)
		if len(matches) == 0 {
			return nil, fmt.Errorf("symbol not found: %s", arg)
		}
		for _, m := range matches {
			seeds = append(seeds, m.FQN)
		}
	}
	return seeds, nil
}

// ---------------------------------------------------------------------------
// diagnostics
// ---------------------------------------------------------------------------

var (
	flagWarnCodes []int
	flagCode      int
	flagNoRefresh bool
)

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "Report cached diagnostics as errors and warnings",
	Long:  "Refreshes the project, then splits every cached diagnostic into errors and warnings by code. Exits 1 when any error remains.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		engine, err := openEngine(ctx)
		if err != nil {
			return outputError("diagnostics", err)
		}
		defer engine.Close()

		if !flagNoRefresh {
			if _, err := engine.Refresh(ctx, nil); err != nil {
				return outputError("diagnostics", err)
			}
		}
		q := engine.Query()
		if cmd.Flags().Changed("code") {
			files := q.FilesWithCode(flagCode)
			if files == nil {
				files = []string{}
			}
			return outputResult(CLIResult{Command: "diagnostics", Results: CLIDiagnostics{Files: files}})
		}

		var warn []int
		if cmd.Flags().Changed("warn-codes") {
			warn = flagWarnCodes
			if warn == nil {
				warn = []int{}
			}
		}
		report := q.DiagnosticsByCode(warn)
		exitCode = report.ExitCode()
		return outputResult(CLIResult{Command: "diagnostics", Results: CLIDiagnostics{Report: report}})
	},
}

func init() {
	diagnosticsCmd.Flags().IntSliceVar(&flagWarnCodes, "warn-codes", nil, "codes reported as warnings (default: warn_codes from config)")
	diagnosticsCmd.Flags().IntVar(&flagCode, "code", 0, "only list files carrying this diagnostic code")
	diagnosticsCmd.Flags().BoolVar(&flagNoRefresh, "no-refresh", false, "report the caches as they are")
}

// ---------------------------------------------------------------------------
// test
// ---------------------------------------------------------------------------

var testCmd = &cobra.Command{
	Use:   "test [files...]",
	Short: "Attribute diagnostics to describe and test blocks",
	Long:  "Analyses test files and places each diagnostic in the innermost describe, it or test block containing it. With no files every file matching test_globs is analysed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		engine, err := openEngine(ctx)
		if err != nil {
			return outputError("test", err)
		}
		defer engine.Close()

		files := args
		if len(files) == 0 {
			if files, err = engine.TestFiles(); err != nil {
				return outputError("test", err)
			}
		}
		results := make([]*tscache.TestFile, 0, len(files))
		for _, f := range files {
			tf, err := engine.AnalyzeTestFile(ctx, f)
			if err != nil {
				return outputError("test", fmt.Errorf("%s: %w", f, err))
			}
			results = append(results, tf)
			if len(tf.Diagnostics) > 0 {
				exitCode = 1
			}
		}
		if err := engine.Persist(); err != nil {
			return outputError("test", err)
		}
		return outputResult(CLIResult{Command: "test", Results: results})
	},
}

// ---------------------------------------------------------------------------
// runs, clear
// ---------------------------------------------------------------------------

var flagLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent refresh runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine(cmd.Context())
		if err != nil {
			return outputError("runs", err)
		}
		defer engine.Close()

		runs, err := engine.Runs(flagLimit)
		if err != nil {
			return outputError("runs", err)
		}
		return outputResult(CLIResult{Command: "runs", Results: runs})
	},
}

func init() {
	runsCmd.Flags().IntVar(&flagLimit, "limit", 10, "number of runs to show")
}

var flagRemoveFiles bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the caches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine(cmd.Context())
		if err != nil {
			return outputError("clear", err)
		}
		defer engine.Close()

		if err := engine.Clear(flagRemoveFiles); err != nil {
			return outputError("clear", err)
		}
		return outputResult(CLIResult{Command: "clear", Results: "cache cleared"})
	},
}

func init() {
	clearCmd.Flags().BoolVar(&flagRemoveFiles, "remove-files", false, "also delete the persisted cache files")
}
