package repository

import (
	"fmt"

	"github.com/camden-git/studiobackend/models"
	"gorm.io/gorm"
)

// CommentRepository handles database operations for photo comments
type CommentRepository struct {
	DB *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{DB: db}
}

func (r *CommentRepository) Create(comment *models.PhotoComment) error {
	if err := r.DB.Create(comment).Error; err != nil {
		return fmt.Errorf("failed to create comment on photo %d: %w", comment.PhotoID, err)
	}
	return nil
}

// ListByPhoto returns the comments of a photo, oldest first
func (r *CommentRepository) ListByPhoto(photoID uint) ([]models.PhotoComment, error) {
	var comments []models.PhotoComment
	if err := r.DB.Where("photo_id = ?", photoID).Order("created_at ASC").Order("id ASC").Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("failed to list comments for photo %d: %w", photoID, err)
	}
	return comments, nil
}
