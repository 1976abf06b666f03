package media

import (
	"image"
	"log"
	"os"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

// helper to safely get an integer tag (like Orientation)
func getInt(exifData *exif.Exif, tagName exif.FieldName) *int {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	val, err := tag.Int(0)
	if err != nil {
		return nil
	}
	return &val
}

// helper to safely get a string tag, trimming null terminators and quotes
func getString(exifData *exif.Exif, tagName exif.FieldName) *string {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	val, err := tag.StringVal()
	if err != nil {
		val = strings.Trim(tag.String(), "\"")
	}
	val = strings.TrimSpace(strings.TrimRight(val, "\x00"))
	if val == "" {
		return nil
	}
	return &val
}

// ReadMetadata extracts dimensions and the EXIF fields kept for photos. Missing
// or unreadable EXIF is not an error; the returned Metadata is simply sparse.
func ReadMetadata(filePath string) *Metadata {
	meta := &Metadata{}

	file, err := os.Open(filePath)
	if err != nil {
		log.Printf("metadata: failed to open %s: %v", filePath, err)
		return meta
	}
	defer file.Close()

	if config, _, err := image.DecodeConfig(file); err == nil {
		w, h := config.Width, config.Height
		meta.Width = &w
		meta.Height = &h
	}

	if _, err := file.Seek(0, 0); err != nil {
		return meta
	}
	exifData, err := exif.Decode(file)
	if err != nil {
		return meta
	}

	meta.CameraMake = getString(exifData, exif.Make)
	meta.CameraModel = getString(exifData, exif.Model)
	meta.Orientation = getInt(exifData, exif.Orientation)
	if taken, err := exifData.DateTime(); err == nil && !taken.IsZero() {
		utc := taken.UTC()
		meta.TakenAt = &utc
	}
	return meta
}

// OrientationDegrees maps an EXIF orientation value to a clockwise rotation.
// Only the pure rotations 1, 3, 6 and 8 are known.
func OrientationDegrees(orientation int) (int, bool) {
	switch orientation {
	case 1:
		return 0, true
	case 3:
		return 180, true
	case 6:
		return 90, true
	case 8:
		return 270, true
	default:
		return 0, false
	}
}
