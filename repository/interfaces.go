package repository

import (
	"time"

	"github.com/camden-git/studiobackend/media"
	"github.com/camden-git/studiobackend/models"
)

// GalleryRepositoryInterface defines the methods for gallery data operations
type GalleryRepositoryInterface interface {
	Create(gallery *models.Gallery) error
	GetByID(id uint) (*models.Gallery, error)
	GetByULID(ulid string) (*models.Gallery, error)
	ListByTeam(teamID uint, includeExpired bool, now time.Time) ([]models.Gallery, error)
	ListPortfolio(teamID uint, now time.Time) ([]models.Gallery, error)
	Update(galleryID uint, updates map[string]interface{}) error
	MarkSelectionNotified(galleryID uint, now time.Time) (bool, error)
	MarkReminderSent(galleryID uint, now time.Time) (bool, error)
	Delete(galleryID uint) error
}

// PhotoRepositoryInterface defines the methods for photo data operations
type PhotoRepositoryInterface interface {
	Create(photo *models.Photo) error
	GetByID(id uint) (*models.Photo, error)
	GetByULID(galleryID uint, ulid string) (*models.Photo, error)
	ListByGallery(galleryID uint) ([]models.Photo, error)
	ListNamesByGallery(galleryID uint) ([]string, error)
	ListRequiringProcessing(now time.Time, lease time.Duration) ([]models.Photo, error)
	ClaimForProcessing(photoID uint, now time.Time, lease time.Duration) (bool, error)
	ApplyDerivatives(photoID uint, result media.DerivativeResult, now time.Time) error
	MarkFailed(photoID uint, status string, taskErr error) error
	ResetForReprocessing(photoID uint) error
	SetFavorited(galleryID, photoID uint, favorited bool, limit int, now time.Time) (FavoriteOutcome, error)
	CountFavorited(galleryID uint) (int64, error)
	Delete(photoID uint) error
}

// TeamRepositoryInterface defines the methods for team data operations
type TeamRepositoryInterface interface {
	Create(team *models.Team) error
	GetByID(id uint) (*models.Team, error)
	GetBySlug(slug string) (*models.Team, error)
}

// UserRepository defines the methods for user data operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
}

// CommentRepositoryInterface defines the methods for photo comment operations
type CommentRepositoryInterface interface {
	Create(comment *models.PhotoComment) error
	ListByPhoto(photoID uint) ([]models.PhotoComment, error)
}
