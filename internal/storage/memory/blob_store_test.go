package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	require.NoError(t, store.Put(context.Background(), "magazines/a.pdf", "application/pdf", payload))
	payload[0] = 'C'

	stored, ok := store.Get("magazines/a.pdf")
	require.True(t, ok)
	require.Equal(t, "content", string(stored))
}

func TestBlobStoreExistsAndDelete(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "k", "", []byte("v")))

	ok, err := store.Exists(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	store.Delete("k")
	ok, err = store.Exists(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, store.Len())

	require.Error(t, store.Put(ctx, "", "", nil))
}
