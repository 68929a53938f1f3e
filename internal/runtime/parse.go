package runtime

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Parse parses src with the grammar chosen by path's extension. The caller
// owns the returned tree and must Close it.
func Parse(ctx context.Context, path string, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(GrammarForFile(path))

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("runtime: parse %s: %w", path, err)
	}
	return tree, nil
}
