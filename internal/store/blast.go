package store

import "sort"

// DependentsOf returns the FQNs of cached symbols whose Deps reference any of
// the given FQNs, excluding the inputs themselves. Sorted.
func (c *SymbolCache) DependentsOf(fqns ...string) []string {
	if len(fqns) == 0 {
		return nil
	}
	targets := make(map[string]bool, len(fqns))
	for _, f := range fqns {
		targets[f] = true
	}

	var out []string
	for fqn, rec := range c.records {
		if targets[fqn] {
			continue
		}
		for _, dep := range rec.Deps {
			if targets[dep] {
				out = append(out, fqn)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// ChangedSymbols compares two generations of a file's symbols and returns the
// FQNs that were removed or whose content hash changed. Added symbols are not
// reported since nothing can depend on them yet.
func ChangedSymbols(old, updated map[string]string) []string {
	var out []string
	for fqn, oldHash := range old {
		if newHash, ok := updated[fqn]; !ok || newHash != oldHash {
			out = append(out, fqn)
		}
	}
	sort.Strings(out)
	return out
}
