// Package symbol assigns identity and classification to checker symbols:
// scope, kind, flag tags, fully-qualified name and content hash.
package symbol

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jward/tscache/internal/hasher"
	"github.com/jward/tscache/internal/store"
)

// ErrInvalidSymbol is returned when no name can be derived for a symbol.
var ErrInvalidSymbol = errors.New("symbol: invalid symbol")

// FQN prefixes.
const (
	prefixLocal    = "local"
	prefixModule   = "module"
	prefixExternal = "ext"
)

// Classifier turns Descriptors into SymbolRecords. It never reads or writes
// a cache and never follows dependencies.
type Classifier struct {
	hasher *hasher.Hasher
	now    func() time.Time
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) {
		c.now = now
	}
}

// NewClassifier creates a Classifier using h for FQNs and content hashes.
func NewClassifier(h *hasher.Hasher, opts ...Option) *Classifier {
	c := &Classifier{hasher: h, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify builds the record for one symbol.
func (c *Classifier) Classify(d Descriptor) (*store.SymbolRecord, error) {
	if strings.TrimSpace(d.Name) == "" {
		return nil, ErrInvalidSymbol
	}

	scope := ScopeOf(d)
	fqn, err := c.FQN(d, scope)
	if err != nil {
		return nil, err
	}
	contentHash, err := c.contentHash(d, scope)
	if err != nil {
		return nil, err
	}

	rec := &store.SymbolRecord{
		FQN:         fqn,
		Name:        d.Name,
		Scope:       scope,
		Kind:        KindOf(d),
		Flags:       d.Flags.Tags(),
		ContentHash: contentHash,
		UpdatedAt:   c.now(),
	}
	if decl := d.primary(); decl != nil {
		rec.Filepath = decl.Filepath
		rec.StartLine = decl.StartLine
		rec.EndLine = decl.EndLine
		rec.Generics = decl.Generics
		rec.Docs = decl.Docs
	}
	return rec, nil
}

// ScopeOf places a symbol: external when it has no declarations or its
// first one lives outside the project, module when any declaration is
// exported, local otherwise.
func ScopeOf(d Descriptor) store.Scope {
	decl := d.primary()
	if decl == nil || decl.External {
		return store.ScopeExternal
	}
	for _, dd := range d.Declarations {
		if dd.Exported {
			return store.ScopeModule
		}
	}
	return store.ScopeLocal
}

// KindOf applies the kind precedence. The first matching rule wins.
func KindOf(d Descriptor) store.Kind {
	for _, dd := range d.Declarations {
		if dd.External {
			return store.KindExternalType
		}
	}

	if isTypeDefinition(d) {
		return store.KindTypeDefinition
	}
	if d.Flags.Has(FlagTypeParameter) || hasSyntax(d, SyntaxTypeParameter) {
		return store.KindTypeConstraint
	}
	if d.Flags.Has(FlagProperty) || hasSyntax(d, SyntaxProperty) {
		return store.KindProperty
	}
	if len(d.Declarations) == 0 {
		return store.KindOther
	}

	t := d.Type
	switch {
	case t.Has(TraitClassInstance):
		return store.KindInstance
	case t.Has(TraitClass):
		return store.KindClass
	case t.Has(TraitString | TraitNumber | TraitBoolean | TraitEnum | TraitLiteral):
		return store.KindScalar
	case t.Has(TraitUnion | TraitIntersection):
		return store.KindUnionOrIntersection
	case t.Has(TraitObject | TraitArray):
		return store.KindContainer
	}
	return store.KindOther
}

func isTypeDefinition(d Descriptor) bool {
	f := d.Flags
	if f.Any(FlagTypeAlias|FlagInterface|FlagTypeLiteral) || f.Has(FlagType) {
		return true
	}
	if f.Has(FlagTypeParameter | FlagAlias) {
		return true
	}
	return hasSyntax(d, SyntaxTypeAlias) || hasSyntax(d, SyntaxInterface) || hasSyntax(d, SyntaxTypeReference)
}

func hasSyntax(d Descriptor, s Syntax) bool {
	for _, dd := range d.Declarations {
		if dd.Syntax == s {
			return true
		}
	}
	return false
}

// FQN builds the fully-qualified name for a symbol in the given scope.
func (c *Classifier) FQN(d Descriptor, scope store.Scope) (string, error) {
	var prefix, context string
	switch scope {
	case store.ScopeExternal:
		prefix, context = prefixExternal, sourcePackage(d)
	case store.ScopeLocal:
		prefix = prefixLocal
		if decl := d.primary(); decl != nil {
			context = decl.Filepath
		}
	default:
		prefix, context = prefixModule, d.QualifiedPath
		if context == "" {
			if decl := d.primary(); decl != nil {
				context = decl.Filepath + "." + d.Name
			}
		}
	}
	sum, err := c.hasher.Hash(context)
	if err != nil {
		return "", fmt.Errorf("symbol %s: fqn: %w", d.Name, err)
	}
	return prefix + "::" + sum.String() + "::" + d.Name, nil
}

func (c *Classifier) contentHash(d Descriptor, scope store.Scope) (string, error) {
	var text string
	if scope == store.ScopeExternal {
		text = sourcePackage(d)
	} else {
		parts := make([]string, len(d.Declarations))
		for i, dd := range d.Declarations {
			parts[i] = dd.FullText
		}
		text = strings.Join(parts, "\n")
	}
	sum, err := c.hasher.Hash(text)
	if err != nil {
		return "", fmt.Errorf("symbol %s: content hash: %w", d.Name, err)
	}
	return sum.String(), nil
}

func sourcePackage(d Descriptor) string {
	if decl := d.primary(); decl != nil && decl.SourcePackage != "" {
		return decl.SourcePackage
	}
	return d.QualifiedPath
}
