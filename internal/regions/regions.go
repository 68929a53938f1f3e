// Package regions finds describe/it/test regions in test files and
// attributes diagnostics to them by line range.
package regions

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/tscache/internal/runtime"
	"github.com/jward/tscache/internal/store"
)

// Kind distinguishes grouping blocks from leaf test cases.
type Kind string

const (
	KindBlock Kind = "block"
	KindCase  Kind = "case"
)

// OutsideDescription names the synthetic block holding diagnostics that
// fall outside every top-level region.
const OutsideDescription = "outside test blocks"

// Region is a describe block or a test case. Lines are 1-based and
// inclusive.
type Region struct {
	Kind        Kind               `json:"kind" yaml:"kind"`
	Description string             `json:"description" yaml:"description"`
	Filepath    string             `json:"filepath" yaml:"filepath"`
	StartLine   int                `json:"startLine" yaml:"startLine"`
	EndLine     int                `json:"endLine" yaml:"endLine"`
	Skip        bool               `json:"skip" yaml:"skip"`
	Diagnostics []store.Diagnostic `json:"diagnostics" yaml:"diagnostics"`
	Children    []*Region          `json:"children,omitempty" yaml:"children,omitempty"`
}

// Contains reports whether line falls inside r.
func (r *Region) Contains(line int) bool {
	return r.StartLine <= line && line <= r.EndLine
}

// AllDiagnostics returns r's diagnostics followed by those of its
// descendants, in tree order.
func (r *Region) AllDiagnostics() []store.Diagnostic {
	out := append([]store.Diagnostic(nil), r.Diagnostics...)
	for _, c := range r.Children {
		out = append(out, c.AllDiagnostics()...)
	}
	return out
}

// Scan parses src and returns its top-level regions in source order.
// Nested describe and test calls become children of the region whose call
// encloses them.
func Scan(ctx context.Context, filepath string, src []byte) ([]*Region, error) {
	tree, err := runtime.Parse(ctx, filepath, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var top []*Region
	var walk func(n *sitter.Node, parent *Region)
	walk = func(n *sitter.Node, parent *Region) {
		if n.Type() == "call_expression" {
			if r := regionFor(n, filepath, src); r != nil {
				if parent == nil {
					top = append(top, r)
				} else {
					parent.Children = append(parent.Children, r)
				}
				parent = r
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i), parent)
		}
	}
	walk(tree.RootNode(), nil)
	return top, nil
}

// regionFor recognises describe, it and test calls plus their .skip and
// .only forms.
func regionFor(call *sitter.Node, filepath string, src []byte) *Region {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return nil
	}
	var name, modifier string
	switch fn.Type() {
	case "identifier":
		name = fn.Content(src)
	case "member_expression":
		obj := fn.ChildByFieldName("object")
		prop := fn.ChildByFieldName("property")
		if obj == nil || prop == nil || obj.Type() != "identifier" {
			return nil
		}
		name, modifier = obj.Content(src), prop.Content(src)
		if modifier != "skip" && modifier != "only" {
			return nil
		}
	default:
		return nil
	}

	var kind Kind
	switch name {
	case "describe":
		kind = KindBlock
	case "it", "test":
		kind = KindCase
	default:
		return nil
	}

	return &Region{
		Kind:        kind,
		Description: description(call, src),
		Filepath:    filepath,
		StartLine:   int(call.StartPoint().Row) + 1,
		EndLine:     int(call.EndPoint().Row) + 1,
		Skip:        modifier == "skip",
	}
}

func description(call *sitter.Node, src []byte) string {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return ""
	}
	text := args.NamedChild(0).Content(src)
	return strings.NewReplacer(`"`, "", "'", "", "`", "").Replace(text)
}
