// media/types.go
package media

import (
	"errors"
	"fmt"
	"time"
)

// Disk identifies the backend holding an asset. It is persisted on photos and
// resolved to a Store through Backends.
type Disk string

const (
	DiskLocal Disk = "local"
	DiskS3    Disk = "s3"
)

var (
	// ErrUnknownDisk is returned when a Disk has no registered Store.
	ErrUnknownDisk = errors.New("unknown storage disk")
	// ErrUnprocessable marks input that can never be processed (corrupt or
	// unsupported image). Jobs failing with it are not retried.
	ErrUnprocessable = errors.New("unprocessable image")
	// ErrNotFound is returned by stores for missing keys.
	ErrNotFound = errors.New("asset not found")
)

// ParseDisk converts a stored or configured value into a Disk.
func ParseDisk(value string) (Disk, error) {
	switch Disk(value) {
	case DiskLocal, DiskS3:
		return Disk(value), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDisk, value)
	}
}

// Location addresses one blob on one backend.
type Location struct {
	Disk Disk
	Path string
}

func (l Location) String() string {
	return string(l.Disk) + ":" + l.Path
}

// Metadata holds the EXIF and dimension information kept for a photo.
type Metadata struct {
	Width       *int       `json:"width,omitempty"`
	Height      *int       `json:"height,omitempty"`
	CameraMake  *string    `json:"camera_make,omitempty"`
	CameraModel *string    `json:"camera_model,omitempty"`
	TakenAt     *time.Time `json:"taken_at,omitempty"`
	Orientation *int       `json:"orientation,omitempty"`
}
