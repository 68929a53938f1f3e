package store

import "time"

// Scope places a symbol relative to the project.
type Scope string

const (
	ScopeLocal    Scope = "local"
	ScopeModule   Scope = "module"
	ScopeExternal Scope = "external"
)

// Kind is the coarse classification assigned to a symbol.
type Kind string

const (
	KindTypeDefinition      Kind = "type-definition"
	KindTypeConstraint      Kind = "type-constraint"
	KindExternalType        Kind = "external-type"
	KindProperty            Kind = "property"
	KindScalar              Kind = "scalar"
	KindContainer           Kind = "container"
	KindClass               Kind = "class"
	KindInstance            Kind = "instance"
	KindUnionOrIntersection Kind = "union-or-intersection"
	KindOther               Kind = "other"
)

// Category is the severity bucket of a diagnostic.
type Category string

const (
	CategoryError      Category = "error"
	CategoryWarning    Category = "warning"
	CategorySuggestion Category = "suggestion"
	CategoryMessage    Category = "message"
)

// Symbol cache domain types

type Generic struct {
	Name       string `json:"name" yaml:"name"`
	Constraint string `json:"constraint,omitempty" yaml:"constraint,omitempty"`
}

type DocTag struct {
	Name    string `json:"name" yaml:"name"`
	Comment string `json:"comment,omitempty" yaml:"comment,omitempty"`
}

type DocComment struct {
	Comment string   `json:"comment" yaml:"comment"`
	Tags    []DocTag `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// SymbolRecord is the cached identity and classification of one symbol.
// Deps is populated only for type-definition symbols.
type SymbolRecord struct {
	FQN         string       `json:"fqn" yaml:"fqn"`
	Name        string       `json:"name" yaml:"name"`
	Scope       Scope        `json:"scope" yaml:"scope"`
	Kind        Kind         `json:"kind" yaml:"kind"`
	Filepath    string       `json:"filepath,omitempty" yaml:"filepath,omitempty"`
	StartLine   int          `json:"startLine" yaml:"startLine"`
	EndLine     int          `json:"endLine" yaml:"endLine"`
	Flags       []string     `json:"flags,omitempty" yaml:"flags,omitempty"`
	Generics    []Generic    `json:"generics,omitempty" yaml:"generics,omitempty"`
	Docs        []DocComment `json:"docs,omitempty" yaml:"docs,omitempty"`
	Deps        []string     `json:"deps,omitempty" yaml:"deps,omitempty"`
	ContentHash string       `json:"contentHash" yaml:"contentHash"`
	UpdatedAt   time.Time    `json:"updatedAt" yaml:"updatedAt"`
}

// Ref returns the lightweight reference stored in FileRecords.
func (r *SymbolRecord) Ref() SymbolRef {
	return SymbolRef{FQN: r.FQN, Name: r.Name, Kind: r.Kind, Scope: r.Scope}
}

// SymbolRef points at a SymbolRecord by FQN.
type SymbolRef struct {
	FQN   string `json:"fqn" yaml:"fqn"`
	Name  string `json:"name" yaml:"name"`
	Kind  Kind   `json:"kind" yaml:"kind"`
	Scope Scope  `json:"scope" yaml:"scope"`
}

// File cache domain types

type ImportKind string

const (
	ImportDefault ImportKind = "default"
	ImportNamed   ImportKind = "named"
)

type ImportRef struct {
	Symbol          SymbolRef  `json:"symbol" yaml:"symbol"`
	Alias           string     `json:"alias,omitempty" yaml:"alias,omitempty"`
	ModuleSpecifier string     `json:"moduleSpecifier" yaml:"moduleSpecifier"`
	Kind            ImportKind `json:"kind" yaml:"kind"`
	IsExternal      bool       `json:"isExternal" yaml:"isExternal"`
}

// Location positions are 1-based.
type Location struct {
	LineNumber  int `json:"lineNumber" yaml:"lineNumber"`
	Column      int `json:"column" yaml:"column"`
	StartOffset int `json:"startOffset" yaml:"startOffset"`
	Length      int `json:"length" yaml:"length"`
}

type Diagnostic struct {
	Code           int      `json:"code" yaml:"code"`
	Category       Category `json:"category" yaml:"category"`
	Message        string   `json:"message" yaml:"message"`
	Location       Location `json:"location" yaml:"location"`
	SourceFilepath string   `json:"sourceFilepath" yaml:"sourceFilepath"`
}

// DiagnosticKey identifies a diagnostic for deduplication.
type DiagnosticKey struct {
	Code   int
	Line   int
	Column int
}

func (d Diagnostic) Key() DiagnosticKey {
	return DiagnosticKey{Code: d.Code, Line: d.Location.LineNumber, Column: d.Location.Column}
}

// FileRecord is the cached analysis of one source file.
type FileRecord struct {
	Filepath        string       `json:"filepath" yaml:"filepath"`
	Imports         []ImportRef  `json:"imports" yaml:"imports"`
	Symbols         []SymbolRef  `json:"symbols" yaml:"symbols"`
	Diagnostics     []Diagnostic `json:"diagnostics" yaml:"diagnostics"`
	ImportsHash     string       `json:"importsHash" yaml:"importsHash"`
	SymbolsHash     string       `json:"symbolsHash" yaml:"symbolsHash"`
	DiagnosticsHash string       `json:"diagnosticsHash" yaml:"diagnosticsHash"`
	CombinedHash    string       `json:"combinedHash" yaml:"combinedHash"`
	ContentHash     string       `json:"contentHash" yaml:"contentHash"`
	UpdatedAt       time.Time    `json:"updatedAt" yaml:"updatedAt"`
}

// Snapshot store types

// Snapshot is the last observed file-system state of a file.
type Snapshot struct {
	ConfigHash  string
	Path        string
	ModTime     time.Time
	Size        int64
	ContentHash string
	ObservedAt  time.Time
}

// RefreshRun is one recorded batch refresh.
type RefreshRun struct {
	ID             string        `json:"id" yaml:"id"`
	ConfigHash     string        `json:"configHash" yaml:"configHash"`
	StartedAt      time.Time     `json:"startedAt" yaml:"startedAt"`
	Duration       time.Duration `json:"duration" yaml:"duration"`
	Added          int           `json:"added" yaml:"added"`
	Updated        int           `json:"updated" yaml:"updated"`
	Removed        int           `json:"removed" yaml:"removed"`
	CacheHits      int           `json:"cacheHits" yaml:"cacheHits"`
	CacheMisses    int           `json:"cacheMisses" yaml:"cacheMisses"`
	EarlyCacheHits int           `json:"earlyCacheHits" yaml:"earlyCacheHits"`
}
