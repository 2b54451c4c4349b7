package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kaleub/kaleub-back/internal/repository"
)

func TestLocalBlobStore_PutAndDelete(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalBlobStore(root, "http://localhost:8080/images/")
	require.NoError(t, err)
	ctx := context.Background()

	key, err := store.Put(ctx, "Holiday.JPG", strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(key, ".jpg"), "扩展名应保留并转为小写")

	data, err := os.ReadFile(filepath.Join(root, key))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
	assert.Equal(t, "http://localhost:8080/images/"+key, store.URL(key))

	require.NoError(t, store.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(root, key))
	assert.True(t, os.IsNotExist(err))

	err = store.Delete(ctx, key)
	assert.ErrorIs(t, err, repository.ErrBlobNotFound)
}

func TestLocalBlobStore_Delete_RejectsPathTraversal(t *testing.T) {
	store, err := NewLocalBlobStore(t.TempDir(), "")
	require.NoError(t, err)

	err = store.Delete(context.Background(), "../etc/passwd")
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrBlobNotFound)
}

func TestLocalBlobStore_UniqueKeys(t *testing.T) {
	store, err := NewLocalBlobStore(t.TempDir(), "")
	require.NoError(t, err)
	ctx := context.Background()

	k1, err := store.Put(ctx, "a.png", strings.NewReader("1"))
	require.NoError(t, err)
	k2, err := store.Put(ctx, "a.png", strings.NewReader("2"))
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, k1, store.URL(k1), "没有 baseURL 时直接返回 key")
}
