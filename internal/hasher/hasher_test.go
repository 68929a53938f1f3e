package hasher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h := New()
	require.NoError(t, h.Init(context.Background()))
	return h
}

func TestHashBeforeInit(t *testing.T) {
	t.Parallel()
	h := New()
	_, err := h.Hash("x")
	assert.ErrorIs(t, err, ErrUninitialized)
	_, err = h.Join("a", "b")
	assert.ErrorIs(t, err, ErrUninitialized)
	assert.False(t, h.Ready())
}

func TestInitIdempotent(t *testing.T) {
	t.Parallel()
	h := newTestHasher(t)
	require.NoError(t, h.Init(context.Background()))
	assert.True(t, h.Ready())
}

func TestInitCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New().Init(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHashDeterministic(t *testing.T) {
	t.Parallel()
	a := newTestHasher(t)
	b := newTestHasher(t)

	s1, err := a.Hash("type Foo = { a: string }")
	require.NoError(t, err)
	s2, err := b.Hash("type Foo = { a: string }")
	require.NoError(t, err)
	assert.Equal(t, s1, s2)

	empty, err := a.Hash("")
	require.NoError(t, err)
	assert.Equal(t, "ef46db3751d8e999", empty.String())

	other, err := a.Hash("type Foo = { a: number }")
	require.NoError(t, err)
	assert.NotEqual(t, s1, other)
}

func TestJoin(t *testing.T) {
	t.Parallel()
	h := newTestHasher(t)
	joined, err := h.Join("a", "b", "c")
	require.NoError(t, err)
	direct, err := h.Hash("a,b,c")
	require.NoError(t, err)
	assert.Equal(t, direct, joined)
}

func TestSumString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "00000000000000ff", Sum(255).String())
	assert.Len(t, Sum(1<<63).String(), 16)
}
