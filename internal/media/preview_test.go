package media

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPreviews_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryPreviews()

	url, err := store.Allocate(ctx, []byte("pixels"), "image/png")
	require.NoError(t, err)
	assert.True(t, IsLocal(url))
	assert.Equal(t, 1, store.Len())

	id, _ := previewID(url)
	p, err := store.Open(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("pixels"), p.Data)
	assert.Equal(t, "image/png", p.ContentType)

	require.NoError(t, store.Release(ctx, url))
	assert.Equal(t, 0, store.Len())

	// a second release is reported, not silently accepted
	assert.ErrorIs(t, store.Release(ctx, url), ErrPreviewNotFound)
	_, err = store.Open(ctx, id)
	assert.ErrorIs(t, err, ErrPreviewNotFound)
}

func TestMemoryPreviews_ReleaseRemoteIsNoop(t *testing.T) {
	store := NewMemoryPreviews()
	assert.NoError(t, store.Release(context.Background(), "https://res.cloudinary.com/demo/image/upload/a.webp"))
}

func setupRedisPreviews(t *testing.T) (*RedisPreviews, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisPreviews(client, 30*time.Minute), mr
}

func TestRedisPreviews_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store, mr := setupRedisPreviews(t)

	url, err := store.Allocate(ctx, []byte{0x89, 'P', 'N', 'G'}, "image/png")
	require.NoError(t, err)
	id, ok := previewID(url)
	require.True(t, ok)

	assert.True(t, mr.Exists(previewKey(id)))
	assert.Equal(t, 30*time.Minute, mr.TTL(previewKey(id)))

	p, err := store.Open(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, p.Data)
	assert.Equal(t, "image/png", p.ContentType)

	require.NoError(t, store.Release(ctx, url))
	assert.False(t, mr.Exists(previewKey(id)))
	assert.ErrorIs(t, store.Release(ctx, url), ErrPreviewNotFound)
}

func TestRedisPreviews_OpenMissing(t *testing.T) {
	store, _ := setupRedisPreviews(t)
	_, err := store.Open(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrPreviewNotFound)
}

func TestRedisPreviews_Expire(t *testing.T) {
	ctx := context.Background()
	store, mr := setupRedisPreviews(t)

	url, err := store.Allocate(ctx, []byte("x"), "image/png")
	require.NoError(t, err)
	mr.FastForward(31 * time.Minute)

	id, _ := previewID(url)
	_, err = store.Open(ctx, id)
	assert.ErrorIs(t, err, ErrPreviewNotFound)
}
