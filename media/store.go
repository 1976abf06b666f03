package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Store defines the interface for saving, retrieving, and deleting media assets.
// Keys are slash separated and relative to the store root.
type Store interface {
	// Put writes data to key, replacing any existing object
	Put(ctx context.Context, key string, data io.Reader) error
	// Get opens the asset for reading; missing keys return ErrNotFound
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes an asset; missing keys are not an error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Size(ctx context.Context, key string) (int64, error)
	LastModified(ctx context.Context, key string) (time.Time, error)
	// URL builds the public URL of an asset
	URL(key string) string
}

// LocalStorage implements the Store interface using the local filesystem
type LocalStorage struct {
	basePath  string // absolute root of the store
	publicURL string // URL prefix the asset server is mounted on
}

// NewLocalStorage creates a new local filesystem store
func NewLocalStorage(basePath, publicURL string) (*LocalStorage, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}

	if err := os.MkdirAll(absBasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBasePath, err)
	}

	log.Printf("media.store: Initialized LocalStorage at %s", absBasePath)
	return &LocalStorage{
		basePath:  absBasePath,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// BasePath returns the absolute root directory of the store.
func (ls *LocalStorage) BasePath() string {
	return ls.basePath
}

// Put writes to a temporary sibling first and renames it into place so readers
// never observe a half-written asset.
func (ls *LocalStorage) Put(ctx context.Context, key string, data io.Reader) error {
	fullPath, err := ls.GetFullPath(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for '%s': %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create destination file for '%s': %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write data to '%s': %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close '%s': %w", key, err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move asset into place at '%s': %w", key, err)
	}

	log.Printf("media.store: Saved asset to %s", fullPath)
	return nil
}

func (ls *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := ls.GetFullPath(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: '%s'", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open asset '%s': %w", key, err)
	}
	return file, nil
}

// Delete removes an asset file
func (ls *LocalStorage) Delete(ctx context.Context, key string) error {
	fullPath, err := ls.GetFullPath(key)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete asset '%s': %w", key, err)
	}
	if err == nil {
		log.Printf("media.store: Deleted asset %s", fullPath)
	}
	return nil
}

func (ls *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := ls.stat(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (ls *LocalStorage) Size(ctx context.Context, key string) (int64, error) {
	info, err := ls.stat(key)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (ls *LocalStorage) LastModified(ctx context.Context, key string) (time.Time, error) {
	info, err := ls.stat(key)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (ls *LocalStorage) URL(key string) string {
	escaped := (&url.URL{Path: path.Clean("/" + key)}).EscapedPath()
	return ls.publicURL + escaped
}

func (ls *LocalStorage) stat(key string) (os.FileInfo, error) {
	fullPath, err := ls.GetFullPath(key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: '%s'", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to stat asset '%s': %w", key, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: '%s' is a directory", ErrNotFound, key)
	}
	return info, nil
}

// GetFullPath calculates the absolute path and performs security check
func (ls *LocalStorage) GetFullPath(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("invalid path: empty key")
	}
	cleanRelativePath := filepath.Clean(filepath.FromSlash(key))

	absFullPath, err := filepath.Abs(filepath.Join(ls.basePath, cleanRelativePath))
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s': %w", key, err)
	}

	if absFullPath == ls.basePath || !strings.HasPrefix(absFullPath, ls.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path: access denied for '%s'", key)
	}

	return absFullPath, nil
}
