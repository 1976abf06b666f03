package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/camden-git/studiobackend/database"
	"github.com/camden-git/studiobackend/media"
	"github.com/camden-git/studiobackend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrSelectionFull is returned when favoriting would exceed the gallery's
// selection limit.
var ErrSelectionFull = errors.New("selection limit reached")

// FavoriteOutcome reports the effect of a favorite toggle.
type FavoriteOutcome struct {
	Changed bool  // false when the photo already had the requested state
	Count   int64 // favorited photos in the gallery afterwards
}

// PhotoRepository handles database operations for Photo entities
type PhotoRepository struct {
	DB *gorm.DB
}

// NewPhotoRepository creates a new instance of PhotoRepository
func NewPhotoRepository(db *gorm.DB) *PhotoRepository {
	return &PhotoRepository{DB: db}
}

// Create inserts a new photo in the pending state
func (r *PhotoRepository) Create(photo *models.Photo) error {
	if photo.Status == "" {
		photo.Status = database.StatusPending
	}
	if err := r.DB.Create(photo).Error; err != nil {
		return fmt.Errorf("failed to create photo %s: %w", photo.Name, err)
	}
	return nil
}

// GetByID retrieves a photo by its ID
func (r *PhotoRepository) GetByID(id uint) (*models.Photo, error) {
	var photo models.Photo
	err := r.DB.First(&photo, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get photo by ID %d: %w", id, err)
	}
	return &photo, nil
}

// GetByULID retrieves a photo of a gallery by its public identifier
func (r *PhotoRepository) GetByULID(galleryID uint, ulid string) (*models.Photo, error) {
	var photo models.Photo
	err := r.DB.Where("gallery_id = ? AND ulid = ?", galleryID, ulid).First(&photo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get photo %s: %w", ulid, err)
	}
	return &photo, nil
}

// ListByGallery retrieves all photos of a gallery
func (r *PhotoRepository) ListByGallery(galleryID uint) ([]models.Photo, error) {
	var photos []models.Photo
	if err := r.DB.Where("gallery_id = ?", galleryID).Order("id ASC").Find(&photos).Error; err != nil {
		return nil, fmt.Errorf("failed to list photos for gallery %d: %w", galleryID, err)
	}
	return photos, nil
}

// ListNamesByGallery retrieves the file names already used in a gallery
func (r *PhotoRepository) ListNamesByGallery(galleryID uint) ([]string, error) {
	var names []string
	if err := r.DB.Model(&models.Photo{}).Where("gallery_id = ?", galleryID).Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("failed to list photo names for gallery %d: %w", galleryID, err)
	}
	return names, nil
}

// ListRequiringProcessing returns pending photos and photos whose processing
// lease has gone stale (the worker died or timed out).
func (r *PhotoRepository) ListRequiringProcessing(now time.Time, lease time.Duration) ([]models.Photo, error) {
	var photos []models.Photo
	staleBefore := now.Add(-lease).UTC()
	err := r.DB.Where("status = ? OR (status = ? AND (processing_started_at IS NULL OR processing_started_at < ?))",
		database.StatusPending, database.StatusProcessing, staleBefore).
		Order("id ASC").
		Find(&photos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list photos requiring processing: %w", err)
	}
	return photos, nil
}

// ClaimForProcessing moves a photo into the processing state unless another
// worker holds a fresh lease on it. It reports whether the claim succeeded.
func (r *PhotoRepository) ClaimForProcessing(photoID uint, now time.Time, lease time.Duration) (bool, error) {
	staleBefore := now.Add(-lease).UTC()
	result := r.DB.Model(&models.Photo{}).
		Where("id = ? AND (status <> ? OR processing_started_at IS NULL OR processing_started_at < ?)",
			photoID, database.StatusProcessing, staleBefore).
		Updates(map[string]interface{}{
			"status":                database.StatusProcessing,
			"processing_started_at": now.UTC(),
			"attempts":              gorm.Expr("attempts + 1"),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim photo %d: %w", photoID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ApplyDerivatives records a finished pipeline run in a single update.
func (r *PhotoRepository) ApplyDerivatives(photoID uint, res media.DerivativeResult, now time.Time) error {
	updates := map[string]interface{}{
		"path":                  res.MasterPath,
		"thumb_path":            res.ThumbPath,
		"raw_path":              res.RawPath,
		"size":                  res.ByteSize,
		"disk":                  res.Disk,
		"width":                 res.Width,
		"height":                res.Height,
		"status":                database.StatusDone,
		"processed_at":          now.UTC(),
		"processing_error":      nil,
		"processing_started_at": nil,
	}
	if res.TakenAt != nil {
		updates["taken_at"] = res.TakenAt.UTC()
	}

	result := r.DB.Model(&models.Photo{}).Where("id = ?", photoID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to apply derivatives to photo %d: %w", photoID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkFailed releases the processing lease, recording the error. status is
// StatusPending for a retry or StatusError when giving up. Paths are left
// untouched.
func (r *PhotoRepository) MarkFailed(photoID uint, status string, taskErr error) error {
	var errMsg *string
	if taskErr != nil {
		msg := taskErr.Error()
		errMsg = &msg
	}
	err := r.DB.Model(&models.Photo{}).Where("id = ?", photoID).Updates(map[string]interface{}{
		"status":                status,
		"processing_error":      errMsg,
		"processing_started_at": nil,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to mark photo %d as %s: %w", photoID, status, err)
	}
	return nil
}

// ResetForReprocessing puts a photo back to pending with a fresh attempt
// budget. Photos currently being processed are left alone.
func (r *PhotoRepository) ResetForReprocessing(photoID uint) error {
	err := r.DB.Model(&models.Photo{}).
		Where("id = ? AND status <> ?", photoID, database.StatusProcessing).
		Updates(map[string]interface{}{
			"status":           database.StatusPending,
			"processing_error": nil,
			"attempts":         0,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to reset photo %d: %w", photoID, err)
	}
	return nil
}

// SetFavorited sets or clears the favorite mark of a photo. When favoriting
// and limit is positive, the gallery may hold at most limit favorites.
func (r *PhotoRepository) SetFavorited(galleryID, photoID uint, favorited bool, limit int, now time.Time) (FavoriteOutcome, error) {
	var outcome FavoriteOutcome
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		// serialise selections per gallery where the database supports row locks
		var gallery models.Gallery
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&gallery, galleryID).Error; err != nil {
			return err
		}

		var photo models.Photo
		if err := tx.Where("id = ? AND gallery_id = ?", photoID, galleryID).First(&photo).Error; err != nil {
			return err
		}

		count, err := countFavorited(tx, galleryID)
		if err != nil {
			return err
		}

		if favorited == (photo.FavoritedAt != nil) {
			outcome.Count = count
			return nil
		}
		if favorited && limit > 0 && count >= int64(limit) {
			outcome.Count = count
			return ErrSelectionFull
		}

		var value interface{}
		if favorited {
			value = now.UTC()
			count++
		} else {
			count--
		}
		if err := tx.Model(&models.Photo{}).Where("id = ?", photo.ID).Update("favorited_at", value).Error; err != nil {
			return err
		}
		outcome.Changed = true
		outcome.Count = count
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrSelectionFull) {
			return outcome, err
		}
		return outcome, fmt.Errorf("failed to update favorite for photo %d: %w", photoID, err)
	}
	return outcome, nil
}

// CountFavorited counts favorited photos of a gallery
func (r *PhotoRepository) CountFavorited(galleryID uint) (int64, error) {
	count, err := countFavorited(r.DB, galleryID)
	if err != nil {
		return 0, fmt.Errorf("failed to count favorites for gallery %d: %w", galleryID, err)
	}
	return count, nil
}

func countFavorited(db *gorm.DB, galleryID uint) (int64, error) {
	var count int64
	err := db.Model(&models.Photo{}).Where("gallery_id = ? AND favorited_at IS NOT NULL", galleryID).Count(&count).Error
	return count, err
}

// Delete removes a photo and its comments
func (r *PhotoRepository) Delete(photoID uint) error {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("photo_id = ?", photoID).Delete(&models.PhotoComment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Photo{}, photoID).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete photo ID %d: %w", photoID, err)
	}
	return nil
}
