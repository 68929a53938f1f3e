package tscache

import (
	"context"
	"fmt"
	"sort"

	"github.com/jward/tscache/internal/runtime"
	"github.com/jward/tscache/internal/store"
)

// GraphNode is one symbol reached by Expand. RequiredBy names the symbol
// whose Deps pulled it in; seeds name themselves.
type GraphNode struct {
	Symbol     *SymbolRecord `json:"symbol" yaml:"symbol"`
	RequiredBy string        `json:"requiredBy" yaml:"requiredBy"`
	Depth      int           `json:"depth" yaml:"depth"`
}

// Expand walks Deps breadth first from seeds, one level per depth, for
// levels 0 through maxDepth. FQNs missing from src are dropped. seen
// accumulates across calls and stops revisits, which also bounds cycles;
// nil allocates a fresh map. With excludeSeeds the seeds and every depth-0
// entry are left out of the result.
func Expand(src store.SymbolSource, seeds []string, excludeSeeds bool, maxDepth int, seen map[string]GraphNode) map[string]GraphNode {
	if seen == nil {
		seen = make(map[string]GraphNode)
	}

	type pending struct {
		fqn        string
		requiredBy string
	}
	var frontier []pending
	for _, fqn := range seeds {
		frontier = append(frontier, pending{fqn: fqn})
	}

	for depth := 0; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []pending
		queued := make(map[string]bool)
		for _, p := range frontier {
			if _, ok := seen[p.fqn]; ok {
				continue
			}
			rec := src.Get(p.fqn)
			if rec == nil {
				continue
			}
			requiredBy := p.requiredBy
			if requiredBy == "" {
				requiredBy = rec.Name
			}
			seen[p.fqn] = GraphNode{Symbol: rec, RequiredBy: requiredBy, Depth: depth}
			for _, dep := range rec.Deps {
				if _, ok := seen[dep]; ok || queued[dep] {
					continue
				}
				queued[dep] = true
				next = append(next, pending{fqn: dep, requiredBy: rec.Name})
			}
		}
		frontier = next
	}

	out := make(map[string]GraphNode, len(seen))
	for fqn, node := range seen {
		out[fqn] = node
	}
	if excludeSeeds {
		for fqn, node := range out {
			if node.Depth == 0 {
				delete(out, fqn)
			}
		}
		for _, fqn := range seeds {
			delete(out, fqn)
		}
	}
	return out
}

// GraphOptions tunes QueryBuilder.DependencyGraph.
type GraphOptions struct {
	ExcludeSeeds bool
	// MaxDepth < 0 uses the configured depth.
	MaxDepth int
	// Filter is a symbol filter expression applied to the result.
	Filter string
}

// DependencyGraph expands seeds against the symbol cache and returns the
// nodes ordered by depth, then FQN.
func (q *QueryBuilder) DependencyGraph(ctx context.Context, seeds []string, opts GraphOptions) ([]GraphNode, error) {
	if err := q.engine.ready(); err != nil {
		return nil, err
	}
	depth := opts.MaxDepth
	if depth < 0 {
		depth = q.engine.cfg.MaxDepth
	}

	var filter *runtime.Filter
	if opts.Filter != "" {
		f, err := runtime.NewFilter(ctx, opts.Filter, runtime.WithFilterLogger(q.engine.logger))
		if err != nil {
			return nil, fmt.Errorf("dependency graph: %w", err)
		}
		filter = f
	}

	nodes := Expand(q.engine.symbols, seeds, opts.ExcludeSeeds, depth, nil)
	out := make([]GraphNode, 0, len(nodes))
	for _, node := range nodes {
		if filter != nil {
			ok, err := filter.Match(ctx, node.Symbol)
			if err != nil {
				return nil, fmt.Errorf("dependency graph: %w", err)
			}
			if !ok {
				continue
			}
		}
		out = append(out, node)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Depth != out[j].Depth {
			return out[i].Depth < out[j].Depth
		}
		return out[i].Symbol.FQN < out[j].Symbol.FQN
	})
	return out, nil
}
