package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/camden-git/studiobackend/models"
	"gorm.io/gorm"
)

// GalleryRepository handles database operations for Gallery entities
type GalleryRepository struct {
	DB *gorm.DB
}

// NewGalleryRepository creates a new instance of GalleryRepository
func NewGalleryRepository(db *gorm.DB) *GalleryRepository {
	return &GalleryRepository{DB: db}
}

// Create creates a new gallery record in the database
func (r *GalleryRepository) Create(gallery *models.Gallery) error {
	if err := r.DB.Create(gallery).Error; err != nil {
		return fmt.Errorf("failed to create gallery %s: %w", gallery.Name, err)
	}
	return nil
}

// GetByID retrieves a gallery by its ID, with its team
func (r *GalleryRepository) GetByID(id uint) (*models.Gallery, error) {
	var gallery models.Gallery
	err := r.DB.Preload("Team").First(&gallery, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get gallery by ID %d: %w", id, err)
	}
	return &gallery, nil
}

// GetByULID retrieves a gallery by its public identifier, with its team
func (r *GalleryRepository) GetByULID(ulid string) (*models.Gallery, error) {
	var gallery models.Gallery
	err := r.DB.Preload("Team").Where("ulid = ?", ulid).First(&gallery).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get gallery by ULID %s: %w", ulid, err)
	}
	return &gallery, nil
}

// ListByTeam retrieves a team's galleries, newest first. Expired galleries are
// left out unless includeExpired is set.
func (r *GalleryRepository) ListByTeam(teamID uint, includeExpired bool, now time.Time) ([]models.Gallery, error) {
	var galleries []models.Gallery
	query := r.DB.Where("team_id = ?", teamID)
	if !includeExpired {
		query = notExpired(query, now)
	}
	if err := query.Order("created_at DESC").Find(&galleries).Error; err != nil {
		return nil, fmt.Errorf("failed to list galleries for team %d: %w", teamID, err)
	}
	return galleries, nil
}

// ListPortfolio retrieves the public, unexpired galleries of a team in
// portfolio order
func (r *GalleryRepository) ListPortfolio(teamID uint, now time.Time) ([]models.Gallery, error) {
	var galleries []models.Gallery
	query := notExpired(r.DB.Where("team_id = ? AND is_public = ?", teamID, true), now)
	if err := query.Order("portfolio_order ASC").Order("id ASC").Find(&galleries).Error; err != nil {
		return nil, fmt.Errorf("failed to list portfolio for team %d: %w", teamID, err)
	}
	return galleries, nil
}

func notExpired(query *gorm.DB, now time.Time) *gorm.DB {
	return query.Where("(expiration_date IS NULL OR expiration_date >= ?)", now.UTC())
}

// Update applies column updates to a gallery
func (r *GalleryRepository) Update(galleryID uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now().UTC()

	result := r.DB.Model(&models.Gallery{}).Where("id = ?", galleryID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update gallery ID %d: %w", galleryID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkSelectionNotified sets the selection notification marker if it is not
// set yet. It reports whether this call set it, so exactly one caller wins.
func (r *GalleryRepository) MarkSelectionNotified(galleryID uint, now time.Time) (bool, error) {
	result := r.DB.Model(&models.Gallery{}).
		Where("id = ? AND selection_limit_notified_at IS NULL", galleryID).
		Update("selection_limit_notified_at", now.UTC())
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark selection notified for gallery %d: %w", galleryID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// MarkReminderSent sets reminder_sent_at if it is not set yet, reporting
// whether this call set it.
func (r *GalleryRepository) MarkReminderSent(galleryID uint, now time.Time) (bool, error) {
	result := r.DB.Model(&models.Gallery{}).
		Where("id = ? AND reminder_sent_at IS NULL", galleryID).
		Update("reminder_sent_at", now.UTC())
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark reminder sent for gallery %d: %w", galleryID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Delete removes a gallery with its photos and comments. Deleting a gallery
// that no longer exists is not an error.
func (r *GalleryRepository) Delete(galleryID uint) error {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		photoIDs := tx.Model(&models.Photo{}).Select("id").Where("gallery_id = ?", galleryID)
		if err := tx.Where("photo_id IN (?)", photoIDs).Delete(&models.PhotoComment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("gallery_id = ?", galleryID).Delete(&models.Photo{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Gallery{}, galleryID).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete gallery ID %d: %w", galleryID, err)
	}
	return nil
}
