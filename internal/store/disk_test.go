package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Upload(ctx, "photo.png", []byte("png-bytes"), "image/png"))

	data, ct, err := s.Download(ctx, "photo.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
	assert.Equal(t, "image/png", ct)

	require.NoError(t, s.Remove(ctx, "photo.png"))
	_, _, err = s.Download(ctx, "photo.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDiskStoreStaysInsideDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewDiskStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Upload(ctx, "../../escape.jpeg", []byte("x"), "image/jpeg"))
	data, _, err := s.Download(ctx, "escape.jpeg")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}
