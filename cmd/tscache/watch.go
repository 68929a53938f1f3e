package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/jward/tscache"
)

var flagDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refresh the caches whenever source files change",
	Long:  "Runs a full refresh, then watches the project and refreshes changed files in debounced batches until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		engine, err := openEngine(ctx)
		if err != nil {
			return outputError("watch", err)
		}
		defer engine.Close()

		summary, err := engine.Refresh(ctx, nil)
		if err != nil {
			return outputError("watch", err)
		}
		if err := outputResult(CLIResult{Command: "watch", Results: summary}); err != nil {
			return err
		}
		if err := watch(ctx, engine, flagDebounce, func(s *tscache.RefreshSummary) error {
			return outputResult(CLIResult{Command: "watch", Results: s})
		}); err != nil {
			return outputError("watch", err)
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().DurationVar(&flagDebounce, "debounce", 200*time.Millisecond, "quiet period before a batch is refreshed")
}

// watch refreshes batches of changed files until ctx is done. Each batch
// is collected until no event arrives for debounce.
func watch(ctx context.Context, engine *tscache.Engine, debounce time.Duration, report func(*tscache.RefreshSummary) error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	cfg := engine.Config()
	if err := addTree(w, cfg.Root, cfg.CacheDir); err != nil {
		return err
	}

	pending := make(map[string]bool)
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, warningStyle.Render("watch: "+err.Error()))
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addTree(w, ev.Name, cfg.CacheDir); err != nil {
						return err
					}
					continue
				}
			}
			if ev.Op == fsnotify.Chmod || !engine.Tracks(ev.Name) {
				continue
			}
			pending[ev.Name] = true
			timer.Reset(debounce)
		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)

			summary, err := engine.Refresh(ctx, paths)
			if err != nil {
				return err
			}
			if err := report(summary); err != nil {
				return err
			}
		}
	}
}

// addTree watches dir and every directory below it, skipping the cache
// directory, node_modules and hidden directories.
func addTree(w *fsnotify.Watcher, dir, cacheDir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path == cacheDir || (path != dir && (name == "node_modules" || strings.HasPrefix(name, "."))) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}
