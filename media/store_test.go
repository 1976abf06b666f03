package media

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir(), "https://studio.example/media/")
	require.NoError(t, err)

	key := "galleries/01ABC/photo one.jpg"
	require.NoError(t, store.Put(ctx, key, strings.NewReader("hello")))

	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	size, err := store.Size(ctx, key)
	require.NoError(t, err)
	assert.EqualValues(t, 5, size)

	modified, err := store.LastModified(ctx, key)
	require.NoError(t, err)
	assert.False(t, modified.IsZero())

	reader, err := store.Get(ctx, key)
	require.NoError(t, err)
	body, err := io.ReadAll(reader)
	require.NoError(t, reader.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	assert.Equal(t, "https://studio.example/media/galleries/01ABC/photo%20one.jpg", store.URL(key))

	entries, err := os.ReadDir(filepath.Join(store.BasePath(), "galleries", "01ABC"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary upload files must not be left behind")

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key), "deleting a missing asset is not an error")

	exists, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Size(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorage_Overwrite(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir(), "/media")
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "a/b.txt", strings.NewReader("first")))
	require.NoError(t, store.Put(ctx, "a/b.txt", strings.NewReader("second value")))

	size, err := store.Size(ctx, "a/b.txt")
	require.NoError(t, err)
	assert.EqualValues(t, len("second value"), size)
}

func TestLocalStorage_RejectsEscapes(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir(), "/media")
	require.NoError(t, err)

	for _, key := range []string{"../outside.txt", "a/../../outside.txt", "", "."} {
		t.Run(key, func(t *testing.T) {
			assert.Error(t, store.Put(ctx, key, strings.NewReader("x")))
			_, err := store.GetFullPath(key)
			assert.Error(t, err)
		})
	}
}

func TestBackends(t *testing.T) {
	store, backends := newLocalBackends(t)

	got, err := backends.Get(DiskLocal)
	require.NoError(t, err)
	assert.Same(t, store, got)
	assert.Equal(t, DiskLocal, backends.Durable())

	_, err = backends.Get(DiskS3)
	assert.ErrorIs(t, err, ErrUnknownDisk)

	assert.Equal(t, "/media/x/y.jpg", backends.URL(Location{Disk: DiskLocal, Path: "x/y.jpg"}))
	assert.Empty(t, backends.URL(Location{Disk: DiskS3, Path: "x/y.jpg"}))

	_, err = NewBackends(map[Disk]Store{DiskLocal: store}, DiskS3)
	assert.ErrorIs(t, err, ErrUnknownDisk)
}

func TestParseDisk(t *testing.T) {
	d, err := ParseDisk("s3")
	require.NoError(t, err)
	assert.Equal(t, DiskS3, d)

	_, err = ParseDisk("ftp")
	assert.ErrorIs(t, err, ErrUnknownDisk)
}
