package repository

import (
	"errors"
	"fmt"

	"github.com/camden-git/studiobackend/models"
	"gorm.io/gorm"
)

// TeamRepository handles database operations for Team entities
type TeamRepository struct {
	DB *gorm.DB
}

// NewTeamRepository creates a new instance of TeamRepository
func NewTeamRepository(db *gorm.DB) *TeamRepository {
	return &TeamRepository{DB: db}
}

func (r *TeamRepository) Create(team *models.Team) error {
	if err := r.DB.Create(team).Error; err != nil {
		return fmt.Errorf("failed to create team %s: %w", team.Slug, err)
	}
	return nil
}

func (r *TeamRepository) GetByID(id uint) (*models.Team, error) {
	var team models.Team
	if err := r.DB.First(&team, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get team by ID %d: %w", id, err)
	}
	return &team, nil
}

// GetBySlug looks a team up by the slug used in portfolio URLs
func (r *TeamRepository) GetBySlug(slug string) (*models.Team, error) {
	var team models.Team
	if err := r.DB.Where("slug = ?", slug).First(&team).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get team by slug %s: %w", slug, err)
	}
	return &team, nil
}
