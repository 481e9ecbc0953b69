package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPutAndDelete(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewLocal(root)
	require.NoError(t, err)

	loc, err := store.Put(ctx, Key("doc-1", "Notes.PDF"), []byte("%PDF"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "documents", "doc-1", "Notes.PDF"), loc)
	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))

	require.NoError(t, store.Delete(ctx, loc))
	_, err = os.Stat(loc)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, store.Delete(ctx, loc), "deleting twice is fine")
}

func TestLocalKeysStayUnderRoot(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocal(root)
	require.NoError(t, err)

	loc, err := store.Put(context.Background(), "../../escape.txt", []byte("x"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "escape.txt"), loc)
}

func TestKeyStripsDirectories(t *testing.T) {
	assert.Equal(t, "documents/d/notes.txt", Key("d", "../../etc/notes.txt"))
	assert.Equal(t, "documents/d/upload", Key("d", ""))
}

func TestMinIODeleteRejectsForeignLocation(t *testing.T) {
	err := NewMinIO(nil, "uploads").Delete(context.Background(), "/tmp/file.pdf")
	assert.Error(t, err)
}
