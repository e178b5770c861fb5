package imagestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemRoundTrip(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "avatars/42.png", []byte("png-bytes")))

	data, err := store.Get(ctx, "avatars/42.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)

	require.NoError(t, store.Delete(ctx, "avatars/42.png"))

	_, err = store.Get(ctx, "avatars/42.png")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting a missing key is not an error
	assert.NoError(t, store.Delete(ctx, "avatars/42.png"))
}

func TestFilesystemRejectsTraversal(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Put(context.Background(), "../outside", []byte("x")))
	_, err = store.Get(context.Background(), "")
	assert.Error(t, err)
}
