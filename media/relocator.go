package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
)

// Relocator moves photo bytes between backends. It never touches database
// records: callers commit the new locations and only then Release the old ones.
type Relocator struct {
	backends *Backends
}

func NewRelocator(backends *Backends) *Relocator {
	return &Relocator{backends: backends}
}

// Place uploads a local file to target and returns its size in bytes.
func (r *Relocator) Place(ctx context.Context, localPath string, target Location) (int64, error) {
	store, err := r.backends.Get(target.Disk)
	if err != nil {
		return 0, err
	}

	file, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open staged file '%s': %w", localPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat staged file '%s': %w", localPath, err)
	}

	if err := store.Put(ctx, target.Path, file); err != nil {
		return 0, fmt.Errorf("failed to place %s: %w", target, err)
	}
	return info.Size(), nil
}

// Fetch copies the blob at loc into a local file at localPath.
func (r *Relocator) Fetch(ctx context.Context, loc Location, localPath string) error {
	store, err := r.backends.Get(loc.Disk)
	if err != nil {
		return err
	}
	reader, err := store.Get(ctx, loc.Path)
	if err != nil {
		return err
	}
	defer reader.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create staging file '%s': %w", localPath, err)
	}
	if _, err := out.ReadFrom(reader); err != nil {
		out.Close()
		return fmt.Errorf("failed to stage %s: %w", loc, err)
	}
	return out.Close()
}

// Open streams the blob at loc.
func (r *Relocator) Open(ctx context.Context, loc Location) (io.ReadCloser, error) {
	store, err := r.backends.Get(loc.Disk)
	if err != nil {
		return nil, err
	}
	return store.Get(ctx, loc.Path)
}

// Release deletes every superseded location that is not also current. A blob
// that was overwritten in place (same disk and path) is never deleted.
func (r *Relocator) Release(ctx context.Context, superseded, current []Location) error {
	keep := make(map[Location]struct{}, len(current))
	for _, loc := range current {
		keep[loc] = struct{}{}
	}

	var errs []error
	for _, loc := range superseded {
		if loc.Path == "" {
			continue
		}
		if _, ok := keep[loc]; ok {
			continue
		}
		if err := r.delete(ctx, loc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Purge deletes every listed blob. Missing blobs are not errors, so purging
// twice is safe.
func (r *Relocator) Purge(ctx context.Context, locs []Location) error {
	var errs []error
	for _, loc := range locs {
		if loc.Path == "" {
			continue
		}
		if err := r.delete(ctx, loc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Relocator) delete(ctx context.Context, loc Location) error {
	store, err := r.backends.Get(loc.Disk)
	if err != nil {
		log.Printf("media.relocator: cannot delete %s: %v", loc, err)
		return err
	}
	if err := store.Delete(ctx, loc.Path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", loc, err)
	}
	return nil
}
