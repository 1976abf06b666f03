package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelocator_PlaceAndFetch(t *testing.T) {
	ctx := context.Background()
	store, backends := newLocalBackends(t)
	r := NewRelocator(backends)

	local := filepath.Join(t.TempDir(), "in.bin")
	require.NoError(t, os.WriteFile(local, []byte("0123456789"), 0644))

	target := Location{Disk: DiskLocal, Path: "galleries/01G/in.bin"}
	size, err := r.Place(ctx, local, target)
	require.NoError(t, err)
	assert.EqualValues(t, 10, size)

	exists, err := store.Exists(ctx, target.Path)
	require.NoError(t, err)
	assert.True(t, exists)

	out := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, r.Fetch(ctx, target, out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))

	err = r.Fetch(ctx, Location{Disk: DiskLocal, Path: "missing.bin"}, out)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Place(ctx, local, Location{Disk: DiskS3, Path: "x"})
	assert.ErrorIs(t, err, ErrUnknownDisk)
}

func TestRelocator_ReleaseKeepsCurrentLocations(t *testing.T) {
	ctx := context.Background()
	store, backends := newLocalBackends(t)
	r := NewRelocator(backends)

	for _, key := range []string{"uploads/01G/a.jpg", "galleries/01G/a.jpg", "galleries/01G/thumbnails/a.jpg"} {
		require.NoError(t, store.Put(ctx, key, strings.NewReader("x")))
	}

	old := []Location{
		{Disk: DiskLocal, Path: "uploads/01G/a.jpg"},
		{Disk: DiskLocal, Path: "galleries/01G/thumbnails/a.jpg"},
	}
	current := []Location{
		{Disk: DiskLocal, Path: "galleries/01G/a.jpg"},
		{Disk: DiskLocal, Path: "galleries/01G/thumbnails/a.jpg"},
	}
	require.NoError(t, r.Release(ctx, old, current))

	exists, _ := store.Exists(ctx, "uploads/01G/a.jpg")
	assert.False(t, exists, "superseded upload must be deleted")
	exists, _ = store.Exists(ctx, "galleries/01G/thumbnails/a.jpg")
	assert.True(t, exists, "a blob overwritten in place must survive")
	exists, _ = store.Exists(ctx, "galleries/01G/a.jpg")
	assert.True(t, exists)
}

func TestRelocator_PurgeIsRepeatable(t *testing.T) {
	ctx := context.Background()
	store, backends := newLocalBackends(t)
	r := NewRelocator(backends)

	require.NoError(t, store.Put(ctx, "galleries/01G/a.jpg", strings.NewReader("x")))
	locs := []Location{{Disk: DiskLocal, Path: "galleries/01G/a.jpg"}, {Disk: DiskLocal, Path: ""}}

	require.NoError(t, r.Purge(ctx, locs))
	require.NoError(t, r.Purge(ctx, locs))

	exists, _ := store.Exists(ctx, "galleries/01G/a.jpg")
	assert.False(t, exists)

	assert.ErrorIs(t, r.Purge(ctx, []Location{{Disk: DiskS3, Path: "x"}}), ErrUnknownDisk)
}
