package storagesvc

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/file"
)

func newDiskStore(t *testing.T) *DiskStore {
	conf := core.NewTestConfig()
	conf.Storage.Dir = t.TempDir()
	store, err := NewDiskStore(conf, core.NopLogger{})
	require.NoError(t, err)
	return store
}

func TestDiskStore(t *testing.T) {
	ctx := context.Background()
	store := newDiskStore(t)
	key := "submissions/s-1/manuscript/v1-abc-paper.pdf"

	n, err := store.Put(ctx, key, strings.NewReader("%PDF-1.4 content"))
	require.NoError(t, err)
	assert.EqualValues(t, 16, n)

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 content", string(data))

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Join(store.root, "submissions", "s-1", "manuscript"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Open(ctx, key)
	assert.Equal(t, file.ErrNotFound, err)

	// deleting twice is fine
	assert.NoError(t, store.Delete(ctx, key))
}

func TestDiskStore_path(t *testing.T) {
	store := newDiskStore(t)

	fp, err := store.path("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.root, "etc", "passwd"), fp)

	for _, key := range []string{"", "/", "..", `a\b`} {
		_, err = store.path(key)
		assert.Equal(t, ErrInvalidKey, err, key)
	}
}

func TestDiskStore_PutCancelled(t *testing.T) {
	store := newDiskStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Put(ctx, "a/b.txt", strings.NewReader("data"))
	assert.Error(t, err)
	_, err = os.Stat(filepath.Join(store.root, "a", "b.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Put(ctx, "k", strings.NewReader("v"))
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	rc, err := store.Open(ctx, "k")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "v", string(data))

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Open(ctx, "k")
	assert.Equal(t, file.ErrNotFound, err)
}
