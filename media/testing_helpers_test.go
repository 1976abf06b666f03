package media

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

func writeTestImage(t *testing.T, path string, width, height int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	img := imaging.New(width, height, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
	require.NoError(t, imaging.Save(img, path))
}

func imageSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func newLocalBackends(t *testing.T) (*LocalStorage, *Backends) {
	t.Helper()
	store, err := NewLocalStorage(t.TempDir(), "/media")
	require.NoError(t, err)
	backends, err := NewBackends(map[Disk]Store{DiskLocal: store}, DiskLocal)
	require.NoError(t, err)
	return store, backends
}
