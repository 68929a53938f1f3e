package checker

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jward/tscache/internal/store"
	"github.com/jward/tscache/internal/symbol"
)

// maxResolveDepth bounds re-export chains.
const maxResolveDepth = 8

// DefaultModelCacheSize is the number of parsed files a TreeSitter keeps.
const DefaultModelCacheSize = 512

// TreeSitter is a syntactic Checker for TypeScript projects. It resolves
// names through imports and re-exports but does no type inference, so flags
// and traits come from declaration syntax.
type TreeSitter struct {
	root       string
	configPath string
	cacheSize  int
	models     *lru.Cache[string, *fileModel]
}

// TreeSitterOption configures a TreeSitter checker.
type TreeSitterOption func(*TreeSitter)

// WithModelCacheSize sets how many parsed files are kept in memory.
func WithModelCacheSize(n int) TreeSitterOption {
	return func(c *TreeSitter) {
		if n > 0 {
			c.cacheSize = n
		}
	}
}

var _ Checker = (*TreeSitter)(nil)

// NewTreeSitter creates a checker rooted at root. configPath is only used
// for identification.
func NewTreeSitter(root, configPath string, opts ...TreeSitterOption) (*TreeSitter, error) {
	c := &TreeSitter{root: root, configPath: configPath, cacheSize: DefaultModelCacheSize}
	for _, opt := range opts {
		opt(c)
	}
	models, err := lru.New[string, *fileModel](c.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("checker: model cache: %w", err)
	}
	c.models = models
	return c, nil
}

// tsSymbol is the Symbol handle returned by TreeSitter. External symbols
// have no declarations and a package name.
type tsSymbol struct {
	name  string
	decls []*declInfo
	pkg   string
}

func (s *tsSymbol) Name() string { return s.name }

func (s *tsSymbol) key() string {
	if len(s.decls) > 0 {
		return s.decls[0].file.path + "\x00" + s.name
	}
	return "ext\x00" + s.pkg + "\x00" + s.name
}

func (c *TreeSitter) ConfigPath() string { return c.configPath }

func (c *TreeSitter) Refresh(_ context.Context, file string) error {
	c.models.Remove(file)
	return nil
}

// model returns the parsed model for file, reparsing when the file changed
// on disk since it was cached.
func (c *TreeSitter) model(ctx context.Context, file string) (*fileModel, error) {
	abs := filepath.Join(c.root, filepath.FromSlash(file))
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("checker: stat %s: %w", file, err)
	}
	if m, ok := c.models.Get(file); ok && m.modTime.Equal(info.ModTime()) && m.size == info.Size() {
		return m, nil
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("checker: read %s: %w", file, err)
	}
	m, err := buildModel(ctx, file, src)
	if err != nil {
		return nil, err
	}
	m.modTime, m.size = info.ModTime(), info.Size()
	c.models.Add(file, m)
	return m, nil
}

// resolveModule maps a project specifier to a project-relative file, or ""
// when nothing on disk matches.
func (c *TreeSitter) resolveModule(from, spec string) string {
	var base string
	switch {
	case strings.HasPrefix(spec, "."):
		base = path.Join(path.Dir(from), spec)
	case strings.HasPrefix(spec, "/"):
		base = strings.TrimPrefix(path.Clean(spec), "/")
	default:
		base = path.Clean(spec)
	}
	stem := strings.TrimSuffix(base, ".js")
	candidates := []string{base, stem + ".ts", stem + ".tsx", stem + ".d.ts", stem + "/index.ts", stem + "/index.tsx"}
	for _, cand := range candidates {
		if path.Ext(cand) == "" {
			continue
		}
		info, err := os.Stat(filepath.Join(c.root, filepath.FromSlash(cand)))
		if err == nil && !info.IsDir() {
			return cand
		}
	}
	return ""
}

func (c *TreeSitter) resolveLocal(ctx context.Context, m *fileModel, name string, depth int) *tsSymbol {
	if decls := m.decls[name]; len(decls) > 0 {
		return &tsSymbol{name: name, decls: decls}
	}
	for _, imp := range m.imports {
		if imp.local == name {
			return c.resolveImport(ctx, m, imp, depth)
		}
	}
	if globalTypes[name] {
		return &tsSymbol{name: name, pkg: "typescript"}
	}
	return nil
}

func (c *TreeSitter) resolveImport(ctx context.Context, m *fileModel, imp *importInfo, depth int) *tsSymbol {
	if IsExternalSpecifier(imp.specifier) {
		name := imp.imported
		if imp.kind == store.ImportDefault {
			name = imp.local
		}
		return &tsSymbol{name: name, pkg: imp.specifier}
	}
	target := c.resolveModule(m.path, imp.specifier)
	if target == "" {
		return nil
	}
	tm, err := c.model(ctx, target)
	if err != nil {
		return nil
	}
	return c.lookupExport(ctx, tm, imp.imported, depth+1)
}

func (c *TreeSitter) resolveExport(ctx context.Context, m *fileModel, exp *exportInfo, depth int) *tsSymbol {
	if exp.from == "" {
		return c.resolveLocal(ctx, m, exp.local, depth)
	}
	if IsExternalSpecifier(exp.from) {
		return &tsSymbol{name: exp.local, pkg: exp.from}
	}
	target := c.resolveModule(m.path, exp.from)
	if target == "" {
		return nil
	}
	tm, err := c.model(ctx, target)
	if err != nil {
		return nil
	}
	return c.lookupExport(ctx, tm, exp.local, depth+1)
}

func (c *TreeSitter) lookupExport(ctx context.Context, m *fileModel, name string, depth int) *tsSymbol {
	if depth > maxResolveDepth {
		return nil
	}
	for _, exp := range m.exports {
		if !exp.star && exp.name == name {
			return c.resolveExport(ctx, m, exp, depth)
		}
	}
	if name == "default" {
		return nil
	}
	for _, exp := range m.exports {
		if !exp.star {
			continue
		}
		target := c.resolveModule(m.path, exp.from)
		if target == "" {
			continue
		}
		tm, err := c.model(ctx, target)
		if err != nil {
			continue
		}
		if sym := c.lookupExport(ctx, tm, name, depth+1); sym != nil {
			return sym
		}
	}
	return nil
}

func (c *TreeSitter) ExportedSymbols(ctx context.Context, file string) ([]Symbol, error) {
	m, err := c.model(ctx, file)
	if err != nil {
		return nil, err
	}
	var out []Symbol
	seen := make(map[string]bool)
	c.collectExports(ctx, m, seen, make(map[string]bool), 0, &out)
	return out, nil
}

func (c *TreeSitter) collectExports(ctx context.Context, m *fileModel, seen, visited map[string]bool, depth int, out *[]Symbol) {
	if depth > maxResolveDepth || visited[m.path] {
		return
	}
	visited[m.path] = true
	for _, exp := range m.exports {
		if exp.star {
			target := c.resolveModule(m.path, exp.from)
			if target == "" {
				continue
			}
			tm, err := c.model(ctx, target)
			if err != nil {
				continue
			}
			c.collectExports(ctx, tm, seen, visited, depth+1, out)
			continue
		}
		if depth > 0 && exp.name == "default" {
			continue
		}
		sym := c.resolveExport(ctx, m, exp, depth)
		if sym == nil || seen[sym.key()] {
			continue
		}
		seen[sym.key()] = true
		*out = append(*out, sym)
	}
}

func (c *TreeSitter) Imports(ctx context.Context, file string) ([]ImportDecl, error) {
	m, err := c.model(ctx, file)
	if err != nil {
		return nil, err
	}
	out := make([]ImportDecl, 0, len(m.imports))
	for _, imp := range m.imports {
		decl := ImportDecl{
			Name:            imp.imported,
			ModuleSpecifier: imp.specifier,
			Kind:            imp.kind,
		}
		if imp.kind == store.ImportDefault {
			decl.Name = imp.local
		} else if imp.local != imp.imported {
			decl.Alias = imp.local
		}
		if sym := c.resolveImport(ctx, m, imp, 0); sym != nil {
			decl.Symbol = sym
		}
		out = append(out, decl)
	}
	return out, nil
}

func (c *TreeSitter) ReferencedSymbols(ctx context.Context, sym Symbol) ([]Symbol, error) {
	ts, ok := sym.(*tsSymbol)
	if !ok {
		return nil, nil
	}
	var out []Symbol
	seen := map[string]bool{ts.key(): true}
	for _, d := range ts.decls {
		for _, ref := range d.refs {
			if ref.name == ts.name {
				continue
			}
			target := c.resolveLocal(ctx, d.file, ref.name, 0)
			if target == nil || seen[target.key()] {
				continue
			}
			seen[target.key()] = true
			out = append(out, target)
		}
	}
	return out, nil
}

func (c *TreeSitter) Declarations(sym Symbol) []symbol.Declaration {
	ts, ok := sym.(*tsSymbol)
	if !ok {
		return nil
	}
	if ts.pkg != "" {
		return []symbol.Declaration{{
			Syntax:        symbol.SyntaxOther,
			External:      true,
			SourcePackage: ts.pkg,
		}}
	}
	out := make([]symbol.Declaration, len(ts.decls))
	for i, d := range ts.decls {
		out[i] = symbol.Declaration{
			Filepath:  d.file.path,
			StartLine: d.startLine,
			EndLine:   d.endLine,
			FullText:  d.text,
			Syntax:    d.syntax,
			Exported:  d.exported,
			Generics:  d.generics,
			Docs:      d.docs,
		}
	}
	return out
}

func (c *TreeSitter) Flags(sym Symbol) symbol.Flags {
	ts, ok := sym.(*tsSymbol)
	if !ok {
		return 0
	}
	var f symbol.Flags
	for _, d := range ts.decls {
		f |= d.flags
	}
	return f
}

func (c *TreeSitter) ResolvedType(sym Symbol) symbol.TypeTraits {
	ts, ok := sym.(*tsSymbol)
	if !ok {
		return 0
	}
	var t symbol.TypeTraits
	for _, d := range ts.decls {
		t |= d.traits
	}
	return t
}

// QualifiedName renders "module/path".Name, the module path being the file
// without its extension.
func (c *TreeSitter) QualifiedName(sym Symbol) string {
	ts, ok := sym.(*tsSymbol)
	if !ok {
		return ""
	}
	if ts.pkg != "" {
		return fmt.Sprintf("%q.%s", ts.pkg, ts.name)
	}
	if len(ts.decls) == 0 {
		return ts.name
	}
	p := ts.decls[0].file.path
	p = strings.TrimSuffix(p, path.Ext(p))
	p = strings.TrimSuffix(p, ".d")
	return fmt.Sprintf("%q.%s", p, ts.name)
}

// Diagnostics reports syntax errors, unresolved modules and names, and
// unused imports.
func (c *TreeSitter) Diagnostics(ctx context.Context, file string) ([]RawDiagnostic, error) {
	m, err := c.model(ctx, file)
	if err != nil {
		return nil, err
	}
	out := append([]RawDiagnostic(nil), m.syntax...)

	for _, imp := range m.imports {
		pos := ProjectDiagnostic{File: file, Line: imp.line, Character: imp.col, Start: imp.start, Length: imp.size}
		if !IsExternalSpecifier(imp.specifier) {
			target := c.resolveModule(file, imp.specifier)
			if target == "" {
				pos.Code = 2307
				pos.Category = store.CategoryError
				pos.Message = fmt.Sprintf("Cannot find module '%s' or its corresponding type declarations.", imp.specifier)
				out = append(out, pos)
				continue
			}
			if c.resolveImport(ctx, m, imp, 0) == nil {
				pos.Category = store.CategoryError
				if imp.kind == store.ImportDefault {
					pos.Code = 1192
					pos.Message = fmt.Sprintf("Module '\"%s\"' has no default export.", imp.specifier)
				} else {
					pos.Code = 2305
					pos.Message = fmt.Sprintf("Module '\"%s\"' has no exported member '%s'.", imp.specifier, imp.imported)
				}
				out = append(out, pos)
				continue
			}
		}
		if !m.idents[imp.local] {
			pos.Code = 6133
			pos.Category = store.CategorySuggestion
			pos.Message = fmt.Sprintf("'%s' is declared but its value is never read.", imp.local)
			out = append(out, pos)
		}
	}

	for _, d := range m.order {
		for _, ref := range d.refs {
			if c.resolveLocal(ctx, m, ref.name, 0) != nil {
				continue
			}
			out = append(out, ProjectDiagnostic{
				Code:      2304,
				Category:  store.CategoryError,
				Message:   fmt.Sprintf("Cannot find name '%s'.", ref.name),
				File:      file,
				Line:      ref.line,
				Character: ref.col,
				Start:     ref.start,
				Length:    ref.size,
			})
		}
	}
	return out, nil
}
