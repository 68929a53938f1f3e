package tscache

import (
	"github.com/jward/tscache/internal/regions"
	"github.com/jward/tscache/internal/store"
)

// Public aliases for the internal record types returned by the Engine and
// QueryBuilder. No conversion is needed between the two names.

type Store = store.Store
type SymbolRecord = store.SymbolRecord
type SymbolRef = store.SymbolRef
type FileRecord = store.FileRecord
type ImportRef = store.ImportRef
type Diagnostic = store.Diagnostic
type Location = store.Location
type Scope = store.Scope
type Kind = store.Kind
type Category = store.Category
type RefreshRun = store.RefreshRun
type SymbolSummary = store.SymbolSummary
type DiagnosticSummary = store.DiagnosticSummary
type DiagnosticCount = store.DiagnosticCount
type MatchMode = store.MatchMode
type Region = regions.Region

const (
	MatchExact    = store.MatchExact
	MatchContains = store.MatchContains
)
