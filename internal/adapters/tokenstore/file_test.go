package tokenstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/glhm/console/internal/cryptoutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileStorage(t *testing.T, sealer cryptoutil.Sealer) *FileStorage {
	t.Helper()
	s, err := NewFileStorage(FileStorageOptions{
		Path:   filepath.Join(t.TempDir(), "nested", "storage.json"),
		Sealer: sealer,
	})
	require.NoError(t, err)
	return s
}

func TestFileStorage_SetGetRemove(t *testing.T) {
	s := newFileStorage(t, nil)
	ctx := context.Background()

	_, ok, err := s.GetItem(ctx, "glhmauth")
	require.NoError(t, err)
	assert.False(t, ok, "missing file reads as empty")

	require.NoError(t, s.SetItem(ctx, "glhmauth", "tok"))
	require.NoError(t, s.SetItem(ctx, "other", "x"))

	v, ok, err := s.GetItem(ctx, "glhmauth")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)

	require.NoError(t, s.RemoveItem(ctx, "glhmauth"))
	_, ok, err = s.GetItem(ctx, "glhmauth")
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err = s.GetItem(ctx, "other")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestFileStorage_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	ctx := context.Background()

	first, err := NewFileStorage(FileStorageOptions{Path: path})
	require.NoError(t, err)
	require.NoError(t, first.SetItem(ctx, "glhmauth", "persisted"))

	second, err := NewFileStorage(FileStorageOptions{Path: path})
	require.NoError(t, err)
	v, ok, err := second.GetItem(ctx, "glhmauth")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "persisted", v)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStorage_EncryptedAtRest(t *testing.T) {
	key := make([]byte, 32)
	sealer, err := cryptoutil.NewAESGCMSealer(key)
	require.NoError(t, err)

	s := newFileStorage(t, sealer)
	ctx := context.Background()
	require.NoError(t, s.SetItem(ctx, "glhmauth", "secret-token"))

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-token")

	v, ok, err := s.GetItem(ctx, "glhmauth")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "secret-token", v)
}

func TestFileStorage_UnreadableValueReadsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	data, err := json.Marshal(map[string]string{"glhmauth": "v1:not-base64!"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	sealer, err := cryptoutil.NewAESGCMSealer(make([]byte, 32))
	require.NoError(t, err)
	s, err := NewFileStorage(FileStorageOptions{Path: path, Sealer: sealer})
	require.NoError(t, err)

	_, ok, err := s.GetItem(context.Background(), "glhmauth")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStorage_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s, err := NewFileStorage(FileStorageOptions{Path: path})
	require.NoError(t, err)

	_, _, err = s.GetItem(context.Background(), "glhmauth")
	require.Error(t, err)
}

func TestFileStorage_RequiresPath(t *testing.T) {
	_, err := NewFileStorage(FileStorageOptions{})
	require.Error(t, err)
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	require.ErrorIs(t, s.SetItem(ctx, "", "v"), ErrEmptyKey)
	require.NoError(t, s.SetItem(ctx, "k", "v"))

	v, ok, err := s.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, s.RemoveItem(ctx, "k"))
	_, ok, err = s.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
