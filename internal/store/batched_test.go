package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolBatch_ReadsThroughToCache(t *testing.T) {
	t.Parallel()
	c := newTestSymbolCache(t)
	foo := moduleRecord("Foo")
	c.Upsert(foo)

	batch := NewSymbolBatch(c)
	assert.Same(t, foo, batch.Get(foo.FQN))

	bar := moduleRecord("Bar")
	batch.Upsert(bar)
	assert.Same(t, bar, batch.Get(bar.FQN))
	assert.Nil(t, c.Get(bar.FQN), "buffered records stay out of the cache")
}

func TestSymbolBatch_CommitKeepsFirstUpsertOrder(t *testing.T) {
	t.Parallel()
	c := newTestSymbolCache(t)
	batch := NewSymbolBatch(c)

	first := moduleRecord("A")
	batch.Upsert(first, moduleRecord("B"))
	replaced := moduleRecord("A")
	replaced.ContentHash = "h-A2"
	batch.Upsert(replaced, nil, &SymbolRecord{})

	require.Equal(t, 2, batch.Len())
	recs := batch.Records()
	assert.Equal(t, "A", recs[0].Name)
	assert.Same(t, replaced, recs[0])

	batch.Commit()
	assert.Equal(t, 0, batch.Len())
	assert.Same(t, replaced, c.Get(replaced.FQN))
	assert.Equal(t, 2, c.Len())
}

func TestSymbolBatch_Discard(t *testing.T) {
	t.Parallel()
	c := newTestSymbolCache(t)
	batch := NewSymbolBatch(c)
	batch.Upsert(moduleRecord("A"))

	batch.Discard()
	assert.Equal(t, 0, batch.Len())
	batch.Commit()
	assert.Equal(t, 0, c.Len())
}
