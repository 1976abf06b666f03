package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"

	"github.com/camden-git/studiobackend/config"
	"github.com/camden-git/studiobackend/database"
	"github.com/camden-git/studiobackend/media"
	"github.com/camden-git/studiobackend/models"
	"github.com/camden-git/studiobackend/repository"
	"github.com/camden-git/studiobackend/utils"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

var (
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrPhotoNotFound   = errors.New("photo not found")
	ErrPhotoBusy       = errors.New("photo is being processed")
)

// JobQueue accepts derivative jobs for photos.
type JobQueue interface {
	QueueJob(photoID uint) bool
}

// PhotoService accepts uploads and manages photo records.
type PhotoService struct {
	photos    repository.PhotoRepositoryInterface
	uploads   media.Store
	relocator *media.Relocator
	queue     JobQueue
}

// NewPhotoService wires the service. uploads is the local store originals are
// written to before processing.
func NewPhotoService(photos repository.PhotoRepositoryInterface, uploads media.Store, relocator *media.Relocator, queue JobQueue) *PhotoService {
	return &PhotoService{photos: photos, uploads: uploads, relocator: relocator, queue: queue}
}

// SetQueue replaces the job queue once the worker pool exists.
func (s *PhotoService) SetQueue(queue JobQueue) {
	s.queue = queue
}

// Ingest stores an uploaded original under uploads/{gallery}/{name}, records
// a pending photo and enqueues its derivative job. A name whose stem is
// already used in the gallery gets a random suffix.
func (s *PhotoService) Ingest(ctx context.Context, gallery *models.Gallery, filename string, data io.Reader) (*models.Photo, error) {
	name := utils.SanitizeFilename(filename)
	if !media.IsAcceptedUpload(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, name)
	}

	taken, err := s.photos.ListNamesByGallery(gallery.ID)
	if err != nil {
		return nil, err
	}
	name = utils.UniqueFilename(name, taken)

	key := path.Join(config.DefaultUploadsPrefix, gallery.ULID, name)
	if err := s.uploads.Put(ctx, key, data); err != nil {
		return nil, fmt.Errorf("failed to store upload %s: %w", name, err)
	}
	size, err := s.uploads.Size(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to stat upload %s: %w", name, err)
	}

	photo := &models.Photo{
		ULID:      ulid.Make().String(),
		GalleryID: gallery.ID,
		Name:      name,
		Path:      key,
		Size:      size,
		Disk:      media.DiskLocal,
		Status:    database.StatusPending,
	}
	if err := s.photos.Create(photo); err != nil {
		if delErr := s.uploads.Delete(ctx, key); delErr != nil {
			log.Printf("services: failed to remove orphaned upload %s: %v", key, delErr)
		}
		return nil, err
	}

	s.enqueue(photo)
	return photo, nil
}

// Get returns a photo of the gallery by ULID.
func (s *PhotoService) Get(gallery *models.Gallery, photoULID string) (*models.Photo, error) {
	photo, err := s.photos.GetByULID(gallery.ID, photoULID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPhotoNotFound
		}
		return nil, err
	}
	return photo, nil
}

// List returns the photos of a gallery in the gallery's sort order.
func (s *PhotoService) List(gallery *models.Gallery) ([]models.Photo, error) {
	photos, err := s.photos.ListByGallery(gallery.ID)
	if err != nil {
		return nil, err
	}
	database.SortPhotos(photos, gallery.SortOrder)
	return photos, nil
}

// Delete removes a photo's blobs and then its record.
func (s *PhotoService) Delete(ctx context.Context, photo *models.Photo) error {
	if err := s.relocator.Purge(ctx, photo.Locations()); err != nil {
		return fmt.Errorf("failed to delete blobs of photo %s: %w", photo.ULID, err)
	}
	return s.photos.Delete(photo.ID)
}

// Reprocess puts a photo back into the pipeline.
func (s *PhotoService) Reprocess(photo *models.Photo) error {
	if photo.Status == database.StatusProcessing {
		return ErrPhotoBusy
	}
	if err := s.photos.ResetForReprocessing(photo.ID); err != nil {
		return err
	}
	s.enqueue(photo)
	return nil
}

func (s *PhotoService) enqueue(photo *models.Photo) {
	if s.queue == nil || !s.queue.QueueJob(photo.ID) {
		// the photo stays pending and is picked up by the startup requeue
		log.Printf("services: photo %s (%s) not queued now, left pending", photo.ULID, photo.Name)
	}
}

// CountFavorited returns how many photos of the gallery a client selected.
func (s *PhotoService) CountFavorited(gallery *models.Gallery) (int64, error) {
	return s.photos.CountFavorited(gallery.ID)
}

// Open streams a stored blob of the photo.
func (s *PhotoService) Open(ctx context.Context, loc media.Location) (io.ReadCloser, error) {
	return s.relocator.Open(ctx, loc)
}
