package store

// SymbolSource is read access to cached symbols. The dependency graph
// builder only needs this.
type SymbolSource interface {
	Get(fqn string) *SymbolRecord
}

// SymbolSink is where classified symbols are written. Both SymbolCache
// (direct) and SymbolBatch (buffered per file) implement it.
type SymbolSink interface {
	SymbolSource
	Upsert(records ...*SymbolRecord)
}
