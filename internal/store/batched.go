package store

// SymbolBatch buffers symbol upserts for one file so a classification that
// fails part-way leaves the cache untouched. Reads see buffered records
// first, then the underlying cache.
type SymbolBatch struct {
	cache   *SymbolCache
	order   []string
	pending map[string]*SymbolRecord
}

// Compile-time check: *SymbolBatch satisfies SymbolSink.
var _ SymbolSink = (*SymbolBatch)(nil)

// NewSymbolBatch creates a batch that commits into cache.
func NewSymbolBatch(cache *SymbolCache) *SymbolBatch {
	return &SymbolBatch{
		cache:   cache,
		pending: make(map[string]*SymbolRecord),
	}
}

// Get returns the buffered record for fqn, falling back to the cache.
func (b *SymbolBatch) Get(fqn string) *SymbolRecord {
	if rec, ok := b.pending[fqn]; ok {
		return rec
	}
	return b.cache.Get(fqn)
}

// Upsert buffers records. A later upsert of the same FQN replaces the
// earlier one but keeps its original position.
func (b *SymbolBatch) Upsert(records ...*SymbolRecord) {
	for _, rec := range records {
		if rec == nil || rec.FQN == "" {
			continue
		}
		if _, ok := b.pending[rec.FQN]; !ok {
			b.order = append(b.order, rec.FQN)
		}
		b.pending[rec.FQN] = rec
	}
}

// Len returns the number of buffered records.
func (b *SymbolBatch) Len() int {
	return len(b.order)
}

// Records returns the buffered records in first-upsert order.
func (b *SymbolBatch) Records() []*SymbolRecord {
	out := make([]*SymbolRecord, len(b.order))
	for i, fqn := range b.order {
		out[i] = b.pending[fqn]
	}
	return out
}

// Commit writes every buffered record into the cache and empties the batch.
func (b *SymbolBatch) Commit() {
	b.cache.Upsert(b.Records()...)
	b.Discard()
}

// Discard drops the buffered records.
func (b *SymbolBatch) Discard() {
	b.order = nil
	b.pending = make(map[string]*SymbolRecord)
}
