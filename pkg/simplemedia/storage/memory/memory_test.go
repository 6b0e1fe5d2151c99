package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

func TestMemoryBackend_PutGet(t *testing.T) {
	ctx := context.Background()
	b := New()

	_, err := b.Get(ctx, "originals/missing.jpg")
	assert.ErrorIs(t, err, simplemedia.ErrNotFound)

	addr, err := b.Put(ctx, "originals/a.jpg", []byte("one"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "memory://originals/a.jpg", addr)

	_, err = b.Put(ctx, "originals/a.jpg", []byte("two"), "image/jpeg")
	require.NoError(t, err)

	data, err := b.Get(ctx, "originals/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)

	mt, ok := b.MimeType("originals/a.jpg")
	assert.True(t, ok)
	assert.Equal(t, "image/jpeg", mt)
}

func TestMemoryBackend_CopiesData(t *testing.T) {
	ctx := context.Background()
	b := New()

	src := []byte("abc")
	_, err := b.Put(ctx, "k", src, "")
	require.NoError(t, err)
	src[0] = 'x'

	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestMemoryBackend_List(t *testing.T) {
	ctx := context.Background()
	b := New()
	for _, key := range []string{
		"originals/a.jpg",
		"originals/b.png",
		"originals/trips/c.jpg",
		"originals/trips/2024/d.jpg",
		"users/alice/e.jpg",
	} {
		_, err := b.Put(ctx, key, []byte("x"), "")
		require.NoError(t, err)
	}

	items, err := b.List(ctx, "originals")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "a.jpg", items[0].Name)
	assert.False(t, items[0].IsDirectory)
	require.NotNil(t, items[0].Size)
	assert.Equal(t, int64(1), *items[0].Size)
	assert.Equal(t, "trips", items[2].Name)
	assert.True(t, items[2].IsDirectory)
	assert.Nil(t, items[2].Size)

	items, err = b.List(ctx, "/originals/trips/")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "2024", items[0].Name)
	assert.Equal(t, "c.jpg", items[1].Name)

	items, err = b.List(ctx, "nothing-here")
	require.NoError(t, err)
	assert.Empty(t, items)
}
