package checker

import (
	"context"
	"fmt"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/tscache/internal/runtime"
	"github.com/jward/tscache/internal/store"
	"github.com/jward/tscache/internal/symbol"
)

// fileModel is everything extracted from one parsed file. Trees are closed
// right after extraction; nothing here points into tree-sitter memory.
type fileModel struct {
	path    string
	modTime time.Time
	size    int64

	decls   map[string][]*declInfo
	order   []*declInfo
	exports []*exportInfo
	imports []*importInfo
	idents  map[string]bool // identifiers used outside import statements
	syntax  []RawDiagnostic
}

// declInfo is one top-level declaration.
type declInfo struct {
	file      *fileModel
	name      string
	syntax    symbol.Syntax
	flags     symbol.Flags
	traits    symbol.TypeTraits
	startLine int // 1-based
	endLine   int
	text      string
	exported  bool
	generics  []store.Generic
	docs      []store.DocComment
	refs      []refInfo
}

// refInfo is a type name referenced inside a declaration.
type refInfo struct {
	name  string
	line  int // 0-based
	col   int
	start int
	size  int
}

type exportInfo struct {
	name  string // exported name
	local string // binding in this file, or name in the source module
	from  string // re-export specifier
	star  bool
}

type importInfo struct {
	local     string
	imported  string
	specifier string
	kind      store.ImportKind
	line      int
	col       int
	start     int
	size      int
}

// buildModel parses src and extracts declarations, imports, exports and
// syntax errors.
func buildModel(ctx context.Context, path string, src []byte) (*fileModel, error) {
	tree, err := runtime.Parse(ctx, path, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	m := &fileModel{
		path:   path,
		decls:  make(map[string][]*declInfo),
		idents: make(map[string]bool),
	}
	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "import_statement":
			m.addImport(n, src)
		case "export_statement":
			m.addExport(n, src)
		case "ambient_declaration":
			if inner := firstDeclarationChild(n); inner != nil {
				m.addDeclaration(inner, n, src, false)
			}
		default:
			m.addDeclaration(n, n, src, false)
		}
	}

	// export { Foo } and export default Foo mark local declarations.
	for _, exp := range m.exports {
		if exp.from != "" || exp.star {
			continue
		}
		for _, d := range m.decls[exp.local] {
			d.exported = true
		}
	}

	m.collectIdents(root, src)
	m.collectSyntaxErrors(root, src)
	return m, nil
}

func firstDeclarationChild(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "comment" {
			return c
		}
	}
	return nil
}

// addDeclaration records node as a declaration. outer is the statement that
// carries its docs and text (an export statement wraps the declaration).
func (m *fileModel) addDeclaration(node, outer *sitter.Node, src []byte, exported bool) []*declInfo {
	base := declInfo{
		file:      m,
		startLine: int(outer.StartPoint().Row) + 1,
		endLine:   int(outer.EndPoint().Row) + 1,
		text:      outer.Content(src),
		exported:  exported,
		docs:      docsFor(outer, src),
	}

	var out []*declInfo
	add := func(name string, d declInfo) {
		if name == "" {
			return
		}
		d.name = name
		info := &d
		m.decls[name] = append(m.decls[name], info)
		m.order = append(m.order, info)
		out = append(out, info)
	}

	switch node.Type() {
	case "type_alias_declaration":
		d := base
		d.syntax, d.flags = symbol.SyntaxTypeAlias, symbol.FlagTypeAlias
		d.traits = typeTraits(node.ChildByFieldName("value"), src)
		d.generics = genericsOf(node, src)
		d.refs = collectRefs(node, src)
		add(fieldText(node, "name", src), d)
	case "interface_declaration":
		d := base
		d.syntax, d.flags, d.traits = symbol.SyntaxInterface, symbol.FlagInterface, symbol.TraitObject
		d.generics = genericsOf(node, src)
		d.refs = collectRefs(node, src)
		add(fieldText(node, "name", src), d)
	case "class_declaration", "abstract_class_declaration":
		d := base
		d.syntax, d.flags, d.traits = symbol.SyntaxClass, symbol.FlagClass, symbol.TraitClass|symbol.TraitObject
		d.generics = genericsOf(node, src)
		d.refs = collectRefs(node, src)
		add(fieldText(node, "name", src), d)
	case "function_declaration", "generator_function_declaration", "function_signature":
		d := base
		d.syntax, d.flags, d.traits = symbol.SyntaxFunction, symbol.FlagFunction, symbol.TraitFunction|symbol.TraitObject
		d.generics = genericsOf(node, src)
		d.refs = collectRefs(node, src)
		add(fieldText(node, "name", src), d)
	case "enum_declaration":
		d := base
		d.syntax, d.flags, d.traits = symbol.SyntaxEnum, symbol.FlagRegularEnum, symbol.TraitEnum
		if strings.HasPrefix(strings.TrimSpace(node.Content(src)), "const ") {
			d.flags = symbol.FlagConstEnum
		}
		add(fieldText(node, "name", src), d)
	case "lexical_declaration", "variable_declaration":
		flags := symbol.FlagBlockScopedVariable
		if node.Type() == "variable_declaration" {
			flags = symbol.FlagFunctionScopedVariable
		}
		isConst := strings.HasPrefix(strings.TrimSpace(node.Content(src)), "const")
		for i := 0; i < int(node.NamedChildCount()); i++ {
			decl := node.NamedChild(i)
			if decl.Type() != "variable_declarator" {
				continue
			}
			nameNode := decl.ChildByFieldName("name")
			if nameNode == nil || nameNode.Type() != "identifier" {
				continue
			}
			d := base
			d.syntax, d.flags = symbol.SyntaxVariable, flags
			if ann := decl.ChildByFieldName("type"); ann != nil && ann.NamedChildCount() > 0 {
				d.traits = typeTraits(ann.NamedChild(0), src)
			} else {
				d.traits = valueTraits(decl.ChildByFieldName("value"), src, isConst)
			}
			d.refs = collectRefs(decl, src)
			add(nameNode.Content(src), d)
		}
	}
	return out
}

func (m *fileModel) addExport(n *sitter.Node, src []byte) {
	isDefault := false
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil && c.Type() == "default" {
			isDefault = true
		}
	}

	if decl := n.ChildByFieldName("declaration"); decl != nil {
		for _, d := range m.addDeclaration(decl, n, src, true) {
			m.exports = append(m.exports, &exportInfo{name: d.name, local: d.name})
			if isDefault {
				m.exports = append(m.exports, &exportInfo{name: "default", local: d.name})
			}
		}
		return
	}
	if value := n.ChildByFieldName("value"); value != nil {
		if isDefault && value.Type() == "identifier" {
			m.exports = append(m.exports, &exportInfo{name: "default", local: value.Content(src)})
		}
		return
	}

	from := ""
	if source := n.ChildByFieldName("source"); source != nil {
		from = unquote(source.Content(src))
	}
	clause := childOfType(n, "export_clause")
	if clause == nil {
		if from != "" && childOfType(n, "namespace_export") == nil {
			m.exports = append(m.exports, &exportInfo{star: true, from: from})
		}
		return
	}
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		spec := clause.NamedChild(i)
		if spec.Type() != "export_specifier" {
			continue
		}
		local := fieldText(spec, "name", src)
		name := fieldText(spec, "alias", src)
		if name == "" {
			name = local
		}
		m.exports = append(m.exports, &exportInfo{name: name, local: local, from: from})
	}
}

func (m *fileModel) addImport(n *sitter.Node, src []byte) {
	source := n.ChildByFieldName("source")
	if source == nil {
		return
	}
	spec := unquote(source.Content(src))
	clause := childOfType(n, "import_clause")
	if clause == nil {
		return
	}
	record := func(node *sitter.Node, local, imported string, kind store.ImportKind) {
		m.imports = append(m.imports, &importInfo{
			local:     local,
			imported:  imported,
			specifier: spec,
			kind:      kind,
			line:      int(node.StartPoint().Row),
			col:       int(node.StartPoint().Column),
			start:     int(node.StartByte()),
			size:      int(node.EndByte() - node.StartByte()),
		})
	}
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		c := clause.NamedChild(i)
		switch c.Type() {
		case "identifier":
			name := c.Content(src)
			record(c, name, "default", store.ImportDefault)
		case "named_imports":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				spec := c.NamedChild(j)
				if spec.Type() != "import_specifier" {
					continue
				}
				imported := fieldText(spec, "name", src)
				local := fieldText(spec, "alias", src)
				if local == "" {
					local = imported
				}
				record(spec, local, imported, store.ImportNamed)
			}
		}
	}
}

// collectIdents records every identifier used outside import statements.
func (m *fileModel) collectIdents(n *sitter.Node, src []byte) {
	if n.Type() == "import_statement" {
		return
	}
	switch n.Type() {
	case "identifier", "type_identifier", "shorthand_property_identifier", "shorthand_property_identifier_pattern":
		m.idents[n.Content(src)] = true
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		m.collectIdents(n.NamedChild(i), src)
	}
}

// collectSyntaxErrors turns ERROR and MISSING nodes into compiler
// diagnostics.
func (m *fileModel) collectSyntaxErrors(n *sitter.Node, src []byte) {
	if n.IsMissing() {
		start := int(n.StartByte())
		length := 0
		m.syntax = append(m.syntax, CompilerDiagnostic{
			Code:        1005,
			Category:    1,
			MessageText: fmt.Sprintf("'%s' expected.", n.Type()),
			File:        m.path,
			Start:       &start,
			Length:      &length,
		})
		return
	}
	if n.Type() == "ERROR" {
		start := int(n.StartByte())
		length := int(n.EndByte() - n.StartByte())
		m.syntax = append(m.syntax, CompilerDiagnostic{
			Code:        1128,
			Category:    1,
			MessageText: "Declaration or statement expected.",
			File:        m.path,
			Start:       &start,
			Length:      &length,
		})
		return
	}
	if !n.HasError() {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil {
			m.collectSyntaxErrors(c, src)
		}
	}
}

// --- node helpers ---

func fieldText(n *sitter.Node, field string, src []byte) string {
	c := n.ChildByFieldName(field)
	if c == nil {
		return ""
	}
	return c.Content(src)
}

func childOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

func unquote(s string) string {
	return strings.Trim(s, "\"'`")
}

func genericsOf(n *sitter.Node, src []byte) []store.Generic {
	params := n.ChildByFieldName("type_parameters")
	if params == nil {
		return nil
	}
	var out []store.Generic
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		if p.Type() != "type_parameter" {
			continue
		}
		g := store.Generic{Name: fieldText(p, "name", src)}
		if c := p.ChildByFieldName("constraint"); c != nil {
			g.Constraint = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(c.Content(src)), "extends"))
		}
		out = append(out, g)
	}
	return out
}

// collectRefs returns the distinct type names referenced under n, skipping
// n's own name and any type parameter bound inside n.
func collectRefs(n *sitter.Node, src []byte) []refInfo {
	bound := make(map[string]bool)
	collectBound(n, src, bound)

	var nameStart uint32
	hasName := false
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		nameStart, hasName = nameNode.StartByte(), true
	}

	seen := make(map[string]bool)
	var out []refInfo
	var walk func(c *sitter.Node, inHeritage bool)
	walk = func(c *sitter.Node, inHeritage bool) {
		switch c.Type() {
		case "nested_type_identifier", "comment":
			return
		case "type_identifier":
			name := c.Content(src)
			if (hasName && c.StartByte() == nameStart) || bound[name] || seen[name] {
				return
			}
			seen[name] = true
			out = append(out, refInfo{
				name:  name,
				line:  int(c.StartPoint().Row),
				col:   int(c.StartPoint().Column),
				start: int(c.StartByte()),
				size:  int(c.EndByte() - c.StartByte()),
			})
			return
		case "identifier":
			if !inHeritage {
				return
			}
			name := c.Content(src)
			if seen[name] {
				return
			}
			seen[name] = true
			out = append(out, refInfo{
				name:  name,
				line:  int(c.StartPoint().Row),
				col:   int(c.StartPoint().Column),
				start: int(c.StartByte()),
				size:  int(c.EndByte() - c.StartByte()),
			})
			return
		case "extends_clause":
			inHeritage = true
		case "arguments", "statement_block", "class_body":
			if c != n {
				inHeritage = false
			}
		}
		for i := 0; i < int(c.NamedChildCount()); i++ {
			walk(c.NamedChild(i), inHeritage)
		}
	}
	walk(n, false)
	return out
}

func collectBound(n *sitter.Node, src []byte, bound map[string]bool) {
	switch n.Type() {
	case "type_parameter", "mapped_type_clause":
		if name := n.ChildByFieldName("name"); name != nil {
			bound[name.Content(src)] = true
		}
	case "infer_type":
		if c := childOfType(n, "type_identifier"); c != nil {
			bound[c.Content(src)] = true
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		collectBound(n.NamedChild(i), src, bound)
	}
}

func typeTraits(n *sitter.Node, src []byte) symbol.TypeTraits {
	if n == nil {
		return 0
	}
	switch n.Type() {
	case "union_type":
		return symbol.TraitUnion
	case "intersection_type":
		return symbol.TraitIntersection
	case "object_type", "type_identifier", "nested_type_identifier":
		return symbol.TraitObject
	case "array_type", "tuple_type":
		return symbol.TraitArray | symbol.TraitObject
	case "function_type", "constructor_type":
		return symbol.TraitFunction | symbol.TraitObject
	case "predefined_type":
		switch n.Content(src) {
		case "string":
			return symbol.TraitString
		case "number", "bigint":
			return symbol.TraitNumber
		case "boolean":
			return symbol.TraitBoolean
		}
		return 0
	case "literal_type":
		t := symbol.TraitLiteral
		if n.NamedChildCount() > 0 {
			t |= valueTraits(n.NamedChild(0), src, true)
		}
		return t
	case "parenthesized_type", "readonly_type":
		if n.NamedChildCount() > 0 {
			return typeTraits(n.NamedChild(int(n.NamedChildCount())-1), src)
		}
	case "generic_type":
		switch fieldText(n, "name", src) {
		case "Array", "ReadonlyArray":
			return symbol.TraitArray | symbol.TraitObject
		}
		return symbol.TraitObject
	}
	return 0
}

func valueTraits(n *sitter.Node, src []byte, isConst bool) symbol.TypeTraits {
	if n == nil {
		return 0
	}
	lit := symbol.TypeTraits(0)
	if isConst {
		lit = symbol.TraitLiteral
	}
	switch n.Type() {
	case "string", "template_string":
		return symbol.TraitString | lit
	case "number":
		return symbol.TraitNumber | lit
	case "true", "false":
		return symbol.TraitBoolean | lit
	case "array":
		return symbol.TraitArray | symbol.TraitObject
	case "object":
		return symbol.TraitObject
	case "new_expression":
		return symbol.TraitClassInstance | symbol.TraitObject
	case "arrow_function", "function_expression", "function":
		return symbol.TraitFunction | symbol.TraitObject
	case "class":
		return symbol.TraitClass | symbol.TraitObject
	case "as_expression", "satisfies_expression":
		if c := n.NamedChildCount(); c > 1 {
			return typeTraits(n.NamedChild(int(c)-1), src)
		}
	case "parenthesized_expression":
		if n.NamedChildCount() > 0 {
			return valueTraits(n.NamedChild(0), src, isConst)
		}
	}
	return 0
}

// docsFor parses the JSDoc block directly above n, if any.
func docsFor(n *sitter.Node, src []byte) []store.DocComment {
	prev := n.PrevNamedSibling()
	if prev == nil || prev.Type() != "comment" {
		return nil
	}
	if int(n.StartPoint().Row)-int(prev.EndPoint().Row) > 1 {
		return nil
	}
	text := prev.Content(src)
	if !strings.HasPrefix(text, "/**") {
		return nil
	}
	return []store.DocComment{parseDoc(text)}
}

func parseDoc(text string) store.DocComment {
	body := strings.TrimSuffix(strings.TrimPrefix(text, "/**"), "*/")
	var (
		doc   store.DocComment
		lines []string
	)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimPrefix(line, "*"))
		switch {
		case strings.HasPrefix(line, "@"):
			name, rest, _ := strings.Cut(line[1:], " ")
			doc.Tags = append(doc.Tags, store.DocTag{Name: name, Comment: strings.TrimSpace(rest)})
		case line == "":
			continue
		case len(doc.Tags) > 0:
			last := &doc.Tags[len(doc.Tags)-1]
			last.Comment = strings.TrimSpace(last.Comment + " " + line)
		default:
			lines = append(lines, line)
		}
	}
	doc.Comment = strings.Join(lines, "\n")
	return doc
}
