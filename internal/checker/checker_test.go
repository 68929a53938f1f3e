package checker

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/tscache/internal/store"
	"github.com/jward/tscache/internal/symbol"
)

// writeProject lays files out under a temp root and returns a checker for it.
func writeProject(t *testing.T, files map[string]string) *TreeSitter {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	c, err := NewTreeSitter(root, filepath.Join(root, "tsconfig.json"))
	require.NoError(t, err)
	return c
}

func names(syms []Symbol) []string {
	out := make([]string, len(syms))
	for i, s := range syms {
		out[i] = s.Name()
	}
	sort.Strings(out)
	return out
}

func codes(t *testing.T, c *TreeSitter, file string) []int {
	t.Helper()
	raw, err := c.Diagnostics(context.Background(), file)
	require.NoError(t, err)
	var out []int
	for _, r := range raw {
		out = append(out, NormalizeDiagnostic(r, nil).Code)
	}
	sort.Ints(out)
	return out
}

// ===========================================================================
// Diagnostic normalisation
// ===========================================================================

func TestNormalizeDiagnostic_Compiler(t *testing.T) {
	t.Parallel()
	src := []byte("line one\nline two\n")
	start, length := 14, 3
	d := NormalizeDiagnostic(CompilerDiagnostic{
		Code:        2322,
		Category:    1,
		MessageText: "Type mismatch.",
		File:        "src/a.ts",
		Start:       &start,
		Length:      &length,
	}, src)

	assert.Equal(t, 2322, d.Code)
	assert.Equal(t, store.CategoryError, d.Category)
	assert.Equal(t, "src/a.ts", d.SourceFilepath)
	assert.Equal(t, store.Location{LineNumber: 2, Column: 6, StartOffset: 14, Length: 3}, d.Location)
}

func TestNormalizeDiagnostic_CompilerNoPosition(t *testing.T) {
	t.Parallel()
	d := NormalizeDiagnostic(CompilerDiagnostic{Code: 6133, Category: 2}, nil)
	assert.Equal(t, store.CategorySuggestion, d.Category)
	assert.Equal(t, store.Location{}, d.Location)

	d = NormalizeDiagnostic(CompilerDiagnostic{Code: 1, Category: 0}, nil)
	assert.Equal(t, store.CategoryWarning, d.Category)

	d = NormalizeDiagnostic(CompilerDiagnostic{Code: 1, Category: 42}, nil)
	assert.Equal(t, store.CategoryError, d.Category)
}

func TestNormalizeDiagnostic_Project(t *testing.T) {
	t.Parallel()
	d := NormalizeDiagnostic(ProjectDiagnostic{
		Code:      2304,
		Message:   "Cannot find name 'X'.",
		File:      "src/a.ts",
		Line:      0,
		Character: 4,
		Start:     4,
		Length:    1,
	}, nil)
	assert.Equal(t, store.CategoryError, d.Category)
	assert.Equal(t, 1, d.Location.LineNumber)
	assert.Equal(t, 5, d.Location.Column)
}

func TestPosition_Clamps(t *testing.T) {
	t.Parallel()
	src := []byte("ab\ncd")
	line, col := position(src, 100)
	assert.Equal(t, 1, line)
	assert.Equal(t, 2, col)

	line, col = position(src, -1)
	assert.Equal(t, 0, line)
	assert.Equal(t, 0, col)
}

func TestDedup(t *testing.T) {
	t.Parallel()
	at := func(code, line, col int, msg string) store.Diagnostic {
		return store.Diagnostic{Code: code, Message: msg, Location: store.Location{LineNumber: line, Column: col}}
	}
	got := Dedup([]store.Diagnostic{
		at(2304, 1, 1, "first"),
		at(2304, 1, 1, "second"),
		at(2304, 1, 2, "other column"),
		at(2305, 1, 1, "other code"),
	})
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Message)
	assert.Equal(t, "other column", got[1].Message)
	assert.Equal(t, "other code", got[2].Message)
}

func TestIsExternalSpecifier(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{
		"./foo":        false,
		"../foo":       false,
		"src/foo":      false,
		"/abs/foo":     false,
		"react":        true,
		"@scope/pkg":   true,
		"node:fs":      true,
		"lodash/merge": true,
	}
	for spec, want := range tests {
		assert.Equal(t, want, IsExternalSpecifier(spec), spec)
	}
}

// ===========================================================================
// Tree-sitter checker
// ===========================================================================

func TestTreeSitter_ExportedSymbols(t *testing.T) {
	t.Parallel()
	c := writeProject(t, map[string]string{
		"src/a.ts": `
export type Foo = { bar: Bar };
type Bar = string;
export interface Shape { area(): number }
export class Circle {}
export function make(): Circle { return new Circle(); }
export const answer = 42, label = "x";
export enum Color { Red }
const hidden = 1;
export { hidden as visible };
`,
	})

	syms, err := c.ExportedSymbols(context.Background(), "src/a.ts")
	require.NoError(t, err)
	assert.Equal(t, []string{"Circle", "Color", "Foo", "Shape", "answer", "hidden", "label", "make"}, names(syms))
}

func TestTreeSitter_DeclarationsAndFlags(t *testing.T) {
	t.Parallel()
	c := writeProject(t, map[string]string{
		"src/a.ts": `/**
 * A box.
 * @param T contents
 */
export type Box<T extends object> = { value: T };
export interface Named { name: string }
export const count = 3;
export class Thing {}
export const made = new Thing();
`,
	})
	ctx := context.Background()
	syms, err := c.ExportedSymbols(ctx, "src/a.ts")
	require.NoError(t, err)
	byName := map[string]Symbol{}
	for _, s := range syms {
		byName[s.Name()] = s
	}

	box := byName["Box"]
	require.NotNil(t, box)
	decls := c.Declarations(box)
	require.Len(t, decls, 1)
	assert.Equal(t, "src/a.ts", decls[0].Filepath)
	assert.Equal(t, 5, decls[0].StartLine)
	assert.Equal(t, 5, decls[0].EndLine)
	assert.True(t, decls[0].Exported)
	assert.Equal(t, symbol.SyntaxTypeAlias, decls[0].Syntax)
	assert.Equal(t, []store.Generic{{Name: "T", Constraint: "object"}}, decls[0].Generics)
	require.Len(t, decls[0].Docs, 1)
	assert.Equal(t, "A box.", decls[0].Docs[0].Comment)
	assert.Equal(t, []store.DocTag{{Name: "param", Comment: "T contents"}}, decls[0].Docs[0].Tags)
	assert.True(t, c.Flags(box).Has(symbol.FlagTypeAlias))
	assert.Equal(t, `"src/a".Box`, c.QualifiedName(box))

	assert.True(t, c.Flags(byName["Named"]).Has(symbol.FlagInterface))
	assert.True(t, c.ResolvedType(byName["count"]).Has(symbol.TraitNumber))
	assert.True(t, c.ResolvedType(byName["Thing"]).Has(symbol.TraitClass))
	assert.True(t, c.ResolvedType(byName["made"]).Has(symbol.TraitClassInstance))
}

func TestTreeSitter_ReferencedSymbols(t *testing.T) {
	t.Parallel()
	c := writeProject(t, map[string]string{
		"src/a.ts": `
import { Remote } from "./b";
import type { Props } from "react";
export type Foo<T> = { bar: Bar; remote: Remote; t: T; props: Props; list: Array<Bar> };
type Bar = { n: number };
`,
		"src/b.ts": `export interface Remote { id: string }`,
	})
	ctx := context.Background()
	syms, err := c.ExportedSymbols(ctx, "src/a.ts")
	require.NoError(t, err)
	require.Len(t, syms, 1)

	refs, err := c.ReferencedSymbols(ctx, syms[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"Array", "Bar", "Props", "Remote"}, names(refs))

	for _, r := range refs {
		decls := c.Declarations(r)
		require.NotEmpty(t, decls, r.Name())
		switch r.Name() {
		case "Remote":
			assert.Equal(t, "src/b.ts", decls[0].Filepath)
			assert.True(t, decls[0].Exported)
		case "Bar":
			assert.Equal(t, "src/a.ts", decls[0].Filepath)
			assert.False(t, decls[0].Exported)
		case "Props":
			assert.True(t, decls[0].External)
			assert.Equal(t, "react", decls[0].SourcePackage)
		case "Array":
			assert.True(t, decls[0].External)
			assert.Equal(t, "typescript", decls[0].SourcePackage)
		}
	}
}

func TestTreeSitter_Imports(t *testing.T) {
	t.Parallel()
	c := writeProject(t, map[string]string{
		"src/a.ts": `
import React from "react";
import { Foo as F, Bar } from "./b";
export const x: F = null as any as Bar;
`,
		"src/b.ts": `
export type Foo = string;
export type Bar = number;
`,
	})
	imports, err := c.Imports(context.Background(), "src/a.ts")
	require.NoError(t, err)
	require.Len(t, imports, 3)

	assert.Equal(t, "React", imports[0].Name)
	assert.Equal(t, store.ImportDefault, imports[0].Kind)
	assert.Equal(t, "react", imports[0].ModuleSpecifier)
	require.NotNil(t, imports[0].Symbol)

	assert.Equal(t, "Foo", imports[1].Name)
	assert.Equal(t, "F", imports[1].Alias)
	assert.Equal(t, store.ImportNamed, imports[1].Kind)
	require.NotNil(t, imports[1].Symbol)
	assert.Equal(t, "src/b.ts", c.Declarations(imports[1].Symbol)[0].Filepath)

	assert.Equal(t, "Bar", imports[2].Name)
	assert.Empty(t, imports[2].Alias)
}

func TestTreeSitter_ReExports(t *testing.T) {
	t.Parallel()
	c := writeProject(t, map[string]string{
		"src/index.ts":        `export * from "./models";` + "\n" + `export { Widget as Gadget } from "./widget";`,
		"src/models/index.ts": `export type Model = { id: string };`,
		"src/widget.ts":       `export class Widget {}`,
		"src/use.ts":          `import { Model, Gadget } from "./index.js";` + "\n" + `export type Both = Model | Gadget;`,
	})
	ctx := context.Background()

	syms, err := c.ExportedSymbols(ctx, "src/index.ts")
	require.NoError(t, err)
	assert.Equal(t, []string{"Model", "Widget"}, names(syms))

	use, err := c.ExportedSymbols(ctx, "src/use.ts")
	require.NoError(t, err)
	require.Len(t, use, 1)
	refs, err := c.ReferencedSymbols(ctx, use[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"Model", "Widget"}, names(refs))
}

func TestTreeSitter_Diagnostics(t *testing.T) {
	t.Parallel()
	c := writeProject(t, map[string]string{
		"src/a.ts": `
import { Missing } from "./nowhere";
import { Nope } from "./b";
import { Unused } from "./b";
export type Foo = { a: Unknown };
`,
		"src/b.ts": `export type Unused = string;`,
	})
	assert.Equal(t, []int{2304, 2305, 2307, 6133}, codes(t, c, "src/a.ts"))
}

func TestTreeSitter_SyntaxErrors(t *testing.T) {
	t.Parallel()
	c := writeProject(t, map[string]string{
		"src/bad.ts": "export type Foo = {\n",
	})
	raw, err := c.Diagnostics(context.Background(), "src/bad.ts")
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	for _, r := range raw {
		d := NormalizeDiagnostic(r, []byte("export type Foo = {\n"))
		assert.Equal(t, store.CategoryError, d.Category)
		assert.Contains(t, []int{1005, 1128}, d.Code)
	}
}

func TestTreeSitter_RefreshReparses(t *testing.T) {
	t.Parallel()
	c := writeProject(t, map[string]string{"src/a.ts": `export type A = string;`})
	ctx := context.Background()

	syms, err := c.ExportedSymbols(ctx, "src/a.ts")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, names(syms))

	p := filepath.Join(c.root, "src", "a.ts")
	require.NoError(t, os.WriteFile(p, []byte(`export type B = string;`), 0o644))
	require.NoError(t, c.Refresh(ctx, "src/a.ts"))

	syms, err = c.ExportedSymbols(ctx, "src/a.ts")
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, names(syms))
}

func TestTreeSitter_MissingFile(t *testing.T) {
	t.Parallel()
	c := writeProject(t, nil)
	_, err := c.ExportedSymbols(context.Background(), "src/none.ts")
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	t.Parallel()
	c := writeProject(t, map[string]string{"src/a.ts": `export interface Foo { a: string }`})
	syms, err := c.ExportedSymbols(context.Background(), "src/a.ts")
	require.NoError(t, err)
	require.Len(t, syms, 1)

	d := Describe(c, syms[0])
	assert.Equal(t, "Foo", d.Name)
	assert.Equal(t, `"src/a".Foo`, d.QualifiedPath)
	assert.True(t, d.Flags.Has(symbol.FlagInterface))
	require.Len(t, d.Declarations, 1)
	assert.Equal(t, "export interface Foo { a: string }", d.Declarations[0].FullText)
}
