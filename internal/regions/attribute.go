package regions

import "github.com/jward/tscache/internal/store"

// Attribute appends each diagnostic to the deepest region containing its
// line. Sibling ties go to the first region in tree order. Diagnostics no
// region contains are returned.
func Attribute(regions []*Region, diags []store.Diagnostic) []store.Diagnostic {
	var outside []store.Diagnostic
	for _, d := range diags {
		r := deepest(regions, d.Location.LineNumber)
		if r == nil {
			outside = append(outside, d)
			continue
		}
		r.Diagnostics = append(r.Diagnostics, d)
	}
	return outside
}

func deepest(regions []*Region, line int) *Region {
	for _, r := range regions {
		if !r.Contains(line) {
			continue
		}
		if child := deepest(r.Children, line); child != nil {
			return child
		}
		return r
	}
	return nil
}

// DiagnosticsOutside returns the diagnostics not contained by any of blocks.
func DiagnosticsOutside(blocks []*Region, diags []store.Diagnostic) []store.Diagnostic {
	var out []store.Diagnostic
	for _, d := range diags {
		inside := false
		for _, b := range blocks {
			if b.Contains(d.Location.LineNumber) {
				inside = true
				break
			}
		}
		if !inside {
			out = append(out, d)
		}
	}
	return out
}

// Outside wraps diagnostics outside every block in the synthetic leading
// block. It returns nil when there are none.
func Outside(filepath string, diags []store.Diagnostic) *Region {
	if len(diags) == 0 {
		return nil
	}
	return &Region{
		Kind:        KindBlock,
		Description: OutsideDescription,
		Filepath:    filepath,
		Diagnostics: diags,
	}
}

// IsSkipped reports whether r was marked skip or every child it has is
// skipped.
func IsSkipped(r *Region) bool {
	if r.Skip {
		return true
	}
	if len(r.Children) == 0 {
		return false
	}
	for _, c := range r.Children {
		if !IsSkipped(c) {
			return false
		}
	}
	return true
}

// FileSkipped reports whether a file with these top-level regions is
// skipped as a whole. A file with no regions is not.
func FileSkipped(regions []*Region) bool {
	if len(regions) == 0 {
		return false
	}
	for _, r := range regions {
		if !IsSkipped(r) {
			return false
		}
	}
	return true
}

// SkippedCases counts test cases that will not run, either marked skip
// themselves or inside a skipped block.
func SkippedCases(regions []*Region) int {
	var count func(rs []*Region, skipped bool) int
	count = func(rs []*Region, skipped bool) int {
		n := 0
		for _, r := range rs {
			s := skipped || r.Skip
			if r.Kind == KindCase && s {
				n++
			}
			n += count(r.Children, s)
		}
		return n
	}
	return count(regions, false)
}

// Cases counts every test case in the tree.
func Cases(regions []*Region) int {
	n := 0
	for _, r := range regions {
		if r.Kind == KindCase {
			n++
		}
		n += Cases(r.Children)
	}
	return n
}

// TestLines sums the line spans of the top-level regions.
func TestLines(regions []*Region) int {
	n := 0
	for _, r := range regions {
		n += r.EndLine - r.StartLine
	}
	return n
}
