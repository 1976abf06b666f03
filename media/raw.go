package media

import (
	"context"
	"fmt"
	"image"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/samber/lo"
)

// MaxPreviewBytes bounds the size of an accepted embedded preview.
const MaxPreviewBytes = 50 * 1024 * 1024

const previewJpegQuality = 92

var rawExtensions = []string{
	".cr2", ".cr3", ".nef", ".arw", ".dng", ".orf", ".rw2", ".pef", ".srw", ".mos", ".mrw", ".3fr",
}

// rasterExtensions are the formats imaging decodes directly.
var rasterExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff"}

// IsRawFile reports whether filename carries a known camera RAW extension.
func IsRawFile(filename string) bool {
	return lo.Contains(rawExtensions, strings.ToLower(filepath.Ext(filename)))
}

func IsRasterImage(filename string) bool {
	return lo.Contains(rasterExtensions, strings.ToLower(filepath.Ext(filename)))
}

// IsAcceptedUpload reports whether a file can enter the photo pipeline,
// either as a decodable raster image or as a camera RAW.
func IsAcceptedUpload(filename string) bool {
	return IsRasterImage(filename) || IsRawFile(filename)
}

// PreviewExtractor pulls a viewable JPEG out of a RAW file.
type PreviewExtractor interface {
	Extract(ctx context.Context, src, dst string) bool
}

// RawPreviewExtractor extracts embedded previews with exiftool. Every failure
// is reported as false; RAW previews are best effort.
type RawPreviewExtractor struct {
	toolPath string
	timeout  time.Duration
}

func NewRawPreviewExtractor(toolPath string, timeout time.Duration) *RawPreviewExtractor {
	if toolPath == "" {
		toolPath = "exiftool"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RawPreviewExtractor{toolPath: toolPath, timeout: timeout}
}

// Available reports whether the extraction tool can be found on this host.
func (e *RawPreviewExtractor) Available() bool {
	_, err := exec.LookPath(e.toolPath)
	return err == nil
}

// Extract writes the best embedded preview of src to dst, rotated upright when
// the orientation is known. dst is left for the caller to clean up.
func (e *RawPreviewExtractor) Extract(ctx context.Context, src, dst string) bool {
	if !e.Available() {
		log.Printf("media.raw: %s not available, skipping preview for %s", e.toolPath, src)
		return false
	}

	for _, stream := range []string{"-PreviewImage", "-ThumbnailImage"} {
		if err := e.extractStream(ctx, stream, src, dst); err != nil {
			log.Printf("media.raw: %s extraction failed for %s: %v", stream, src, err)
			continue
		}
		if err := validatePreview(dst); err != nil {
			log.Printf("media.raw: %s output rejected for %s: %v", stream, src, err)
			continue
		}

		if degrees, ok := e.Orientation(ctx, src); ok && degrees != 0 {
			if err := rotateInPlace(dst, degrees); err != nil {
				log.Printf("media.raw: failed to rotate preview for %s: %v", src, err)
			}
		}
		log.Printf("media.raw: extracted %s from %s", stream, src)
		return true
	}
	return false
}

func (e *RawPreviewExtractor) extractStream(ctx context.Context, stream, src, dst string) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	cmd := exec.CommandContext(ctx, e.toolPath, "-b", stream, src)
	cmd.Stdout = out
	if err := cmd.Run(); err != nil {
		return err
	}
	return nil
}

// Orientation returns the clockwise rotation recorded for src.
func (e *RawPreviewExtractor) Orientation(ctx context.Context, src string) (int, bool) {
	if value, ok := e.readOrientationTag(ctx, src); ok {
		return OrientationDegrees(value)
	}
	if meta := ReadMetadata(src); meta.Orientation != nil {
		return OrientationDegrees(*meta.Orientation)
	}
	return 0, false
}

func (e *RawPreviewExtractor) readOrientationTag(ctx context.Context, src string) (int, bool) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, e.toolPath, "-s3", "-n", "-Orientation", src).Output()
	if err != nil {
		return 0, false
	}
	value, err := strconv.Atoi(strings.TrimSpace(string(output)))
	if err != nil {
		return 0, false
	}
	return value, true
}

// validatePreview checks that path holds a non-empty JPEG of sane size,
// judged by its header rather than its name.
func validatePreview(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() <= 0 {
		return fmt.Errorf("preview is empty")
	}
	if info.Size() > MaxPreviewBytes {
		return fmt.Errorf("preview is %d bytes, above the %d byte limit", info.Size(), MaxPreviewBytes)
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	_, format, err := image.DecodeConfig(file)
	if err != nil {
		return fmt.Errorf("preview is not a decodable image: %w", err)
	}
	if format != "jpeg" {
		return fmt.Errorf("preview is %s, expected jpeg", format)
	}
	return nil
}

// rotateInPlace turns the image at path clockwise by degrees.
func rotateInPlace(path string, degrees int) error {
	img, err := imaging.Open(path)
	if err != nil {
		return err
	}
	switch degrees {
	case 90:
		img = imaging.Rotate270(img)
	case 180:
		img = imaging.Rotate180(img)
	case 270:
		img = imaging.Rotate90(img)
	default:
		return nil
	}
	return imaging.Save(img, path, imaging.JPEGQuality(previewJpegQuality))
}
