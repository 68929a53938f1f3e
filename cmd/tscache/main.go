package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jward/tscache"
	"github.com/jward/tscache/internal/checker"
)

var (
	flagRoot    string
	flagFormat  string
	flagVerbose bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// exitCode lets a command fail the process without an error message.
var exitCode int

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
	os.Exit(exitCode)
}

var rootCmd = &cobra.Command{
	Use:           "tscache",
	Short:         "Incremental TypeScript analysis cache",
	Long:          "tscache keeps symbol and per-file diagnostic caches for a TypeScript project in step with the files on disk.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "project root (default: nearest ancestor with .tscache.yaml, tsconfig.json or .git)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: json|text|yaml")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log progress to stderr")

	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(symbolsCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(diagnosticsCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(watchCmd)
}

// newLogger returns a text logger on stderr, or a discarding one.
func newLogger(verbose bool) *slog.Logger {
	if !verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// openEngine loads the project config and opens an Engine backed by the
// tree-sitter checker.
func openEngine(ctx context.Context) (*tscache.Engine, error) {
	root, err := resolveRoot()
	if err != nil {
		return nil, err
	}
	cfg, err := tscache.LoadConfig(root)
	if err != nil {
		return nil, err
	}
	chk, err := checker.NewTreeSitter(cfg.Root, cfg.CompilerConfigPath())
	if err != nil {
		return nil, fmt.Errorf("creating checker: %w", err)
	}
	engine, err := tscache.New(ctx, cfg, chk, tscache.WithLogger(newLogger(flagVerbose)))
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return engine, nil
}

// resolveRoot returns --root, or the project root above the working
// directory.
func resolveRoot() (string, error) {
	if flagRoot != "" {
		abs, err := filepath.Abs(flagRoot)
		if err != nil {
			return "", fmt.Errorf("resolving path %q: %w", flagRoot, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return "", fmt.Errorf("directory not found: %s", abs)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("not a directory: %s", abs)
		}
		return abs, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return findProjectRoot(wd), nil
}

// projectMarkers identify a project root, in order of preference.
var projectMarkers = []string{tscache.ConfigFileName, "tsconfig.json", ".git"}

// findProjectRoot walks up from startDir to the first directory holding a
// project marker. Returns startDir if none is found.
func findProjectRoot(startDir string) string {
	for _, marker := range projectMarkers {
		dir := startDir
		for {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	return startDir
}
