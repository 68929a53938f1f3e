package tscache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	goruntime "runtime"
	"sync"

	"github.com/jward/tscache/internal/store"
)

// checkResult is the outcome of the staleness pass for one path.
type checkResult struct {
	path    string
	rec     *FileRecord
	missing bool
	fresh   freshness
	snap    *store.Snapshot
	err     error
}

// checkFiles runs the staleness check for paths on a worker pool. Results
// come back in input order.
//
//	Phase A (serial):   look up the cached record of every path.
//	Phase B (parallel): stat, and read and hash where stat cannot decide.
//
// Nothing is written here. The caller applies the results serially, so the
// caches never see concurrent access.
func (e *Engine) checkFiles(ctx context.Context, paths []string) []checkResult {
	results := make([]checkResult, len(paths))
	for i, p := range paths {
		results[i] = checkResult{path: p, rec: e.files.Get(p)}
	}
	if len(results) == 0 {
		return results
	}

	numWorkers := min(goruntime.NumCPU(), len(results))
	work := make(chan int, len(results))
	for i := range results {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				if err := ctx.Err(); err != nil {
					results[i].err = err
					continue
				}
				e.checkOne(&results[i])
			}
		}()
	}
	wg.Wait()
	return results
}

func (e *Engine) checkOne(r *checkResult) {
	if _, err := os.Stat(e.abs(r.path)); errors.Is(err, fs.ErrNotExist) {
		r.missing = true
		return
	}
	r.fresh, r.snap, r.err = e.check(r.path, r.rec)
}
