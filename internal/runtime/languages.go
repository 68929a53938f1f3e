package runtime

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// extToDialect maps source file extensions to grammar dialects.
var extToDialect = map[string]string{
	".ts":  "typescript",
	".mts": "typescript",
	".cts": "typescript",
	".tsx": "tsx",
}

// dialectToGrammar maps dialects to tree-sitter Language objects.
// Lazily initialized on first call via sync.Once.
var (
	dialectToGrammar map[string]*sitter.Language
	grammarsOnce     sync.Once
)

func initGrammars() {
	grammarsOnce.Do(func() {
		dialectToGrammar = map[string]*sitter.Language{
			"typescript": ts.GetLanguage(),
			"tsx":        tsx.GetLanguage(),
		}
	})
}

// DialectForFile returns the grammar dialect for a file path based on its
// extension. Returns ("", false) if the extension is not a TypeScript source.
func DialectForFile(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	dialect, ok := extToDialect[ext]
	return dialect, ok
}

// IsSourceFile reports whether path has a TypeScript source extension.
func IsSourceFile(path string) bool {
	_, ok := DialectForFile(path)
	return ok
}

// GrammarForFile returns the tree-sitter Language used to parse path.
// Unknown extensions fall back to the plain TypeScript grammar.
func GrammarForFile(path string) *sitter.Language {
	initGrammars()
	dialect, ok := DialectForFile(path)
	if !ok {
		dialect = "typescript"
	}
	return dialectToGrammar[dialect]
}
