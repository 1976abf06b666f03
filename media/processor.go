package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/samber/lo"
)

const (
	DefaultMasterMaxDimension    = 2048
	DefaultThumbnailMaxDimension = 1000
	DefaultJpegQuality           = 90

	thumbnailsDir = "thumbnails"
	rawDir        = "raw"
)

// DerivativeConfig is the explicit configuration of the generator.
type DerivativeConfig struct {
	MasterMaxDimension    int
	ThumbnailMaxDimension int
	JpegQuality           int
	StagingRoot           string
	Collection            string
}

// DerivativeInput describes one photo to process.
type DerivativeInput struct {
	GalleryULID      string
	Name             string   // basename kept by the derivatives
	Source           Location // currently recorded path of the photo
	RawPath          *string  // RAW original already split off by an earlier run
	KeepOriginalSize bool
	Current          []Location // blobs the photo record points at; never removed on failure
}

// DerivativeResult is everything a successful run produced. It is applied to
// the photo record in one place, after all uploads succeeded.
type DerivativeResult struct {
	MasterPath string
	ThumbPath  *string
	RawPath    *string
	ByteSize   int64
	Width      *int
	Height     *int
	TakenAt    *time.Time
	Disk       Disk
}

// Locations lists the blobs the result points at.
func (r DerivativeResult) Locations() []Location {
	locs := []Location{{Disk: r.Disk, Path: r.MasterPath}}
	if r.ThumbPath != nil {
		locs = append(locs, Location{Disk: r.Disk, Path: *r.ThumbPath})
	}
	if r.RawPath != nil {
		locs = append(locs, Location{Disk: r.Disk, Path: *r.RawPath})
	}
	return locs
}

// GalleryStoragePath returns the durable prefix of a gallery: {collection}/{ulid}.
func GalleryStoragePath(collection, galleryULID string) string {
	return path.Join(collection, galleryULID)
}

// DerivativeGenerator turns an uploaded original into a bounded master and a
// thumbnail on the durable disk.
type DerivativeGenerator struct {
	cfg       DerivativeConfig
	backends  *Backends
	relocator *Relocator
	raw       PreviewExtractor
}

func NewDerivativeGenerator(cfg DerivativeConfig, backends *Backends, relocator *Relocator, raw PreviewExtractor) *DerivativeGenerator {
	if cfg.MasterMaxDimension <= 0 {
		cfg.MasterMaxDimension = DefaultMasterMaxDimension
	}
	if cfg.ThumbnailMaxDimension <= 0 {
		cfg.ThumbnailMaxDimension = DefaultThumbnailMaxDimension
	}
	if cfg.JpegQuality <= 0 {
		cfg.JpegQuality = DefaultJpegQuality
	}
	return &DerivativeGenerator{cfg: cfg, backends: backends, relocator: relocator, raw: raw}
}

// Generate runs the pipeline for one photo. Keys are deterministic, so running
// it again for the same photo overwrites the same blobs. The staging directory
// is removed whatever the outcome, and a failed run removes the blobs it placed
// unless the photo record still references them.
func (g *DerivativeGenerator) Generate(ctx context.Context, in DerivativeInput) (_ DerivativeResult, err error) {
	if in.Name == "" || in.GalleryULID == "" {
		return DerivativeResult{}, fmt.Errorf("%w: missing name or gallery", ErrUnprocessable)
	}
	if err := os.MkdirAll(g.cfg.StagingRoot, 0755); err != nil {
		return DerivativeResult{}, fmt.Errorf("failed to create staging root: %w", err)
	}
	stagingDir, err := os.MkdirTemp(g.cfg.StagingRoot, "derive-*")
	if err != nil {
		return DerivativeResult{}, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(stagingDir); err != nil {
			log.Printf("processor: failed to clean staging directory %s: %v", stagingDir, err)
		}
	}()

	staged := filepath.Join(stagingDir, "original"+strings.ToLower(path.Ext(in.Source.Path)))
	if err := g.relocator.Fetch(ctx, in.Source, staged); err != nil {
		if errors.Is(err, ErrNotFound) {
			return DerivativeResult{}, fmt.Errorf("%w: source missing: %v", ErrUnprocessable, err)
		}
		return DerivativeResult{}, fmt.Errorf("failed to stage source: %w", err)
	}

	durable := g.backends.Durable()
	prefix := GalleryStoragePath(g.cfg.Collection, in.GalleryULID)
	result := DerivativeResult{Disk: durable, RawPath: in.RawPath}

	var placed []Location
	defer func() {
		if err != nil {
			g.discard(ctx, in, placed)
		}
	}()

	workPath := staged
	name := in.Name
	if IsRawFile(in.Source.Path) {
		rawKey := path.Join(prefix, rawDir, in.Name)
		rawLoc := Location{Disk: durable, Path: rawKey}
		rawSize, err := g.relocator.Place(ctx, staged, rawLoc)
		if err != nil {
			return DerivativeResult{}, err
		}
		placed = append(placed, rawLoc)
		result.RawPath = &rawKey

		name = strings.TrimSuffix(in.Name, path.Ext(in.Name)) + ".jpg"
		preview := filepath.Join(stagingDir, "preview.jpg")
		if g.raw == nil || !g.raw.Extract(ctx, staged, preview) {
			// not previewable: the RAW itself is the master and read paths show a placeholder
			log.Printf("processor: no preview for RAW %s, keeping it without derivatives", in.Name)
			result.MasterPath = rawKey
			result.ByteSize = rawSize
			return result, nil
		}
		workPath = preview
	}

	if err := ctx.Err(); err != nil {
		return DerivativeResult{}, err
	}

	img, err := imaging.Open(workPath, imaging.AutoOrientation(true))
	if err != nil {
		return DerivativeResult{}, fmt.Errorf("%w: failed to decode %s: %v", ErrUnprocessable, in.Name, err)
	}
	if _, err := imaging.FormatFromFilename(name); err != nil {
		return DerivativeResult{}, fmt.Errorf("%w: unsupported output format for %s", ErrUnprocessable, name)
	}

	masterFile := workPath
	master := img
	if !in.KeepOriginalSize && exceeds(img, g.cfg.MasterMaxDimension) {
		master = imaging.Fit(img, g.cfg.MasterMaxDimension, g.cfg.MasterMaxDimension, imaging.Lanczos)
		masterFile = filepath.Join(stagingDir, "master"+strings.ToLower(path.Ext(name)))
		if err := imaging.Save(master, masterFile, imaging.JPEGQuality(g.cfg.JpegQuality)); err != nil {
			return DerivativeResult{}, fmt.Errorf("failed to write resized master: %w", err)
		}
	}

	masterKey := path.Join(prefix, name)
	masterLoc := Location{Disk: durable, Path: masterKey}
	size, err := g.relocator.Place(ctx, masterFile, masterLoc)
	if err != nil {
		return DerivativeResult{}, err
	}
	placed = append(placed, masterLoc)
	result.MasterPath = masterKey
	result.ByteSize = size
	width, height := master.Bounds().Dx(), master.Bounds().Dy()
	result.Width, result.Height = &width, &height

	if err := ctx.Err(); err != nil {
		return DerivativeResult{}, err
	}

	thumb := imaging.Fit(img, g.cfg.ThumbnailMaxDimension, g.cfg.ThumbnailMaxDimension, imaging.Lanczos)
	thumbFile := filepath.Join(stagingDir, "thumbnail"+strings.ToLower(path.Ext(name)))
	if err := imaging.Save(thumb, thumbFile, imaging.JPEGQuality(g.cfg.JpegQuality)); err != nil {
		return DerivativeResult{}, fmt.Errorf("failed to write thumbnail: %w", err)
	}
	thumbKey := path.Join(prefix, thumbnailsDir, name)
	thumbLoc := Location{Disk: durable, Path: thumbKey}
	if _, err := g.relocator.Place(ctx, thumbFile, thumbLoc); err != nil {
		return DerivativeResult{}, err
	}
	placed = append(placed, thumbLoc)
	result.ThumbPath = &thumbKey

	if meta := ReadMetadata(workPath); meta.TakenAt != nil {
		result.TakenAt = meta.TakenAt
	}

	log.Printf("processor: generated derivatives for %s (master %s, thumbnail %s)", in.Name, masterKey, thumbKey)
	return result, nil
}

// discard removes blobs placed by a failed run. The source, the known RAW
// original and anything in in.Current stay untouched.
func (g *DerivativeGenerator) discard(ctx context.Context, in DerivativeInput, placed []Location) {
	keep := append([]Location{in.Source}, in.Current...)
	if in.RawPath != nil {
		keep = append(keep, Location{Disk: in.Source.Disk, Path: *in.RawPath})
	}
	orphans := lo.Filter(placed, func(loc Location, _ int) bool {
		return !lo.Contains(keep, loc)
	})
	if len(orphans) == 0 {
		return
	}
	if err := g.relocator.Purge(context.WithoutCancel(ctx), orphans); err != nil {
		log.Printf("processor: failed to remove blobs of failed run for %s: %v", in.Name, err)
	}
}

func exceeds(img image.Image, limit int) bool {
	b := img.Bounds()
	return b.Dx() > limit || b.Dy() > limit
}
