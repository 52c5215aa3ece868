package fsstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collectiq/collectiq/internal/persistence"
)

func TestStoreRoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "uploads/u1/card.png", []byte("image-bytes")))

	data, err := store.Get(ctx, "uploads/u1/card.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), data)

	require.NoError(t, store.Delete(ctx, "uploads/u1/card.png"))
	_, err = store.Get(ctx, "uploads/u1/card.png")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestStoreListByPrefix(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "authentic-samples/charizard/a.json", []byte("{}")))
	require.NoError(t, store.Put(ctx, "authentic-samples/charizard/b.json", []byte("{}")))
	require.NoError(t, store.Put(ctx, "authentic-samples/pikachu/c.json", []byte("{}")))
	require.NoError(t, store.Put(ctx, "uploads/x.png", []byte("x")))

	keys, err := store.List(ctx, "authentic-samples/charizard/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"authentic-samples/charizard/a.json",
		"authentic-samples/charizard/b.json",
	}, keys)

	keys, err = store.List(ctx, "authentic-samples/missing/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStoreRejectsTraversal(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "../outside")
	assert.Error(t, err)
	assert.Error(t, store.Put(context.Background(), "/abs/path", []byte("x")))
}

func TestStoreDeleteMissingIsNoop(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, store.Delete(context.Background(), "uploads/never-existed"))
}
