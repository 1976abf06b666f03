package utils

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log"
	"time"
)

// ZipEntry is one file of a streamed archive. Open is called lazily while the
// archive is written.
type ZipEntry struct {
	Name     string
	Modified time.Time
	Open     func(ctx context.Context) (io.ReadCloser, error)
}

// StreamZip writes entries as a ZIP archive to w. Entries that cannot be
// opened are skipped and logged. It returns the number of files written.
func StreamZip(ctx context.Context, w io.Writer, entries []ZipEntry) (int, error) {
	zipWriter := zip.NewWriter(w)
	written := 0

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			zipWriter.Close()
			return written, err
		}

		src, err := entry.Open(ctx)
		if err != nil {
			log.Printf("zipper: Failed to open %s for zipping: %v. Skipping.", entry.Name, err)
			continue
		}

		header := &zip.FileHeader{Name: entry.Name, Method: zip.Store, Modified: entry.Modified}
		dst, err := zipWriter.CreateHeader(header)
		if err != nil {
			src.Close()
			zipWriter.Close()
			return written, fmt.Errorf("failed to create zip entry %s: %w", entry.Name, err)
		}

		_, err = io.Copy(dst, src)
		src.Close()
		if err != nil {
			zipWriter.Close()
			return written, fmt.Errorf("failed to write %s to zip: %w", entry.Name, err)
		}
		written++
	}

	if err := zipWriter.Close(); err != nil {
		return written, fmt.Errorf("failed to finalize zip: %w", err)
	}
	return written, nil
}
