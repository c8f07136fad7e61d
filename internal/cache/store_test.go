package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetDelete(t *testing.T) {
	s := NewStore(t.TempDir())
	data := []byte("poster bytes")

	hash, path, err := s.Put(models.KindImage, data)
	require.NoError(t, err)
	assert.Len(t, hash, 64)
	assert.Equal(t, s.PathFor(models.KindImage, hash), path)

	// Sharded layout: cache/image/<hh>/<hash>
	assert.Equal(t, hash[:2], filepath.Base(filepath.Dir(path)))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	assert.Equal(t, path, s.Get(models.KindImage, hash))
	require.NoError(t, s.Delete(models.KindImage, hash))
	assert.Empty(t, s.Get(models.KindImage, hash))
	// Deleting a missing hash is not an error.
	require.NoError(t, s.Delete(models.KindImage, hash))
}

func TestPutIdempotent(t *testing.T) {
	s := NewStore(t.TempDir())
	data := []byte("same content")

	h1, p1, err := s.Put(models.KindImage, data)
	require.NoError(t, err)

	// Rewrite with a marker: a second Put must not touch the existing file.
	require.NoError(t, os.WriteFile(p1, []byte("marker"), 0o644))
	h2, p2, err := s.Put(models.KindImage, data)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Equal(t, p1, p2)

	got, _ := os.ReadFile(p1)
	assert.Equal(t, []byte("marker"), got)
}

func TestHashBytesMatchesHashFile(t *testing.T) {
	data := []byte("some media content")
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	fromFile, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, HashBytes(data), fromFile)
}

func TestWalkSkipsTempFiles(t *testing.T) {
	s := NewStore(t.TempDir())
	_, p, err := s.Put(models.KindImage, []byte("a"))
	require.NoError(t, err)
	_, _, err = s.Put(models.KindVideo, []byte("b"))
	require.NoError(t, err)

	// Simulate an interrupted write.
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(p), ".abc.tmp123"), []byte("junk"), 0o644))

	var seen []string
	require.NoError(t, s.Walk(func(path string, size int64) error {
		seen = append(seen, path)
		return nil
	}))
	assert.Len(t, seen, 2)
}

func TestWalkMissingRoot(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, s.Walk(func(string, int64) error { return nil }))
}
