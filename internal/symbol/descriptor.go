package symbol

import "github.com/jward/tscache/internal/store"

// Syntax is the syntactic kind of a declaration node.
type Syntax string

const (
	SyntaxTypeAlias     Syntax = "type-alias"
	SyntaxInterface     Syntax = "interface"
	SyntaxTypeReference Syntax = "type-reference"
	SyntaxTypeParameter Syntax = "type-parameter"
	SyntaxClass         Syntax = "class"
	SyntaxFunction      Syntax = "function"
	SyntaxVariable      Syntax = "variable"
	SyntaxEnum          Syntax = "enum"
	SyntaxProperty      Syntax = "property"
	SyntaxOther         Syntax = "other"
)

// TypeTraits describes the resolved type at a symbol's declaration.
type TypeTraits uint32

const (
	TraitObject TypeTraits = 1 << iota
	TraitClassInstance
	TraitClass
	TraitString
	TraitNumber
	TraitBoolean
	TraitEnum
	TraitLiteral
	TraitUnion
	TraitIntersection
	TraitArray
	TraitFunction
)

// Has reports whether any bit of want is set.
func (t TypeTraits) Has(want TypeTraits) bool {
	return t&want != 0
}

// Declaration is one declaration site of a symbol as reported by the checker.
// Filepath is project-relative for project files. For external
// declarations SourcePackage names the package they come from.
type Declaration struct {
	Filepath      string
	StartLine     int
	EndLine       int
	FullText      string
	Syntax        Syntax
	External      bool
	SourcePackage string
	Exported      bool
	Generics      []store.Generic
	Docs          []store.DocComment
}

// Descriptor is everything the classifier needs to know about one symbol.
type Descriptor struct {
	Name          string
	Declarations  []Declaration
	Flags         Flags
	Type          TypeTraits
	QualifiedPath string
}

// primary returns the first declaration, or nil.
func (d *Descriptor) primary() *Declaration {
	if len(d.Declarations) == 0 {
		return nil
	}
	return &d.Declarations[0]
}
