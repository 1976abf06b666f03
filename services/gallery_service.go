package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"

	"github.com/camden-git/studiobackend/database"
	"github.com/camden-git/studiobackend/media"
	"github.com/camden-git/studiobackend/models"
	"github.com/camden-git/studiobackend/repository"
	"github.com/camden-git/studiobackend/sharing"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

var (
	ErrGalleryNotFound  = errors.New("gallery not found")
	ErrInvalidSortOrder = errors.New("invalid sort order")
)

// GalleryInput carries the owner-editable gallery fields. Nil pointers leave
// the current value untouched.
type GalleryInput struct {
	Name             *string
	Description      *string
	SortOrder        *string
	KeepOriginalSize *bool
	IsPublic         *bool
	PortfolioOrder   *int
}

// ShareSettings carries the share flags. An empty Password removes the
// password and a zero SelectionLimit removes the limit.
type ShareSettings struct {
	Selectable      *bool
	Downloadable    *bool
	Watermarked     *bool
	Password        *string
	SelectionLimit  *int
	ExpirationDate  *time.Time
	ClearExpiration bool
}

// GalleryService implements the owner operations on galleries.
type GalleryService struct {
	galleries repository.GalleryRepositoryInterface
	photos    repository.PhotoRepositoryInterface
	relocator *media.Relocator
	now       func() time.Time
}

func NewGalleryService(galleries repository.GalleryRepositoryInterface, photos repository.PhotoRepositoryInterface, relocator *media.Relocator) *GalleryService {
	return &GalleryService{
		galleries: galleries,
		photos:    photos,
		relocator: relocator,
		now:       time.Now,
	}
}

// Create adds a gallery to a team with a fresh ULID.
func (s *GalleryService) Create(teamID uint, name string, in GalleryInput) (*models.Gallery, error) {
	gallery := &models.Gallery{
		ULID:      ulid.Make().String(),
		TeamID:    teamID,
		Name:      strings.TrimSpace(name),
		Slug:      Slugify(name),
		SortOrder: database.DefaultSortOrder,
	}
	if in.Description != nil {
		gallery.Description = in.Description
	}
	if in.SortOrder != nil {
		if !database.IsValidSortOrder(*in.SortOrder) {
			return nil, ErrInvalidSortOrder
		}
		gallery.SortOrder = *in.SortOrder
	}
	if in.KeepOriginalSize != nil {
		gallery.KeepOriginalSize = *in.KeepOriginalSize
	}
	if in.IsPublic != nil {
		gallery.IsPublic = *in.IsPublic
	}
	if in.PortfolioOrder != nil {
		gallery.PortfolioOrder = *in.PortfolioOrder
	}

	if err := s.galleries.Create(gallery); err != nil {
		return nil, err
	}
	log.Printf("services: created gallery %s (%s) for team %d", gallery.ULID, gallery.Name, teamID)
	return gallery, nil
}

// Get returns a gallery of the team. Galleries of other teams are reported as
// not found.
func (s *GalleryService) Get(teamID uint, galleryULID string) (*models.Gallery, error) {
	gallery, err := s.galleries.GetByULID(galleryULID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGalleryNotFound
		}
		return nil, err
	}
	if gallery.TeamID != teamID {
		return nil, ErrGalleryNotFound
	}
	return gallery, nil
}

// List returns the team's galleries; expired ones only when includeExpired.
func (s *GalleryService) List(teamID uint, includeExpired bool) ([]models.Gallery, error) {
	return s.galleries.ListByTeam(teamID, includeExpired, s.now())
}

// Portfolio returns the team's public, unexpired galleries.
func (s *GalleryService) Portfolio(teamID uint) ([]models.Gallery, error) {
	return s.galleries.ListPortfolio(teamID, s.now())
}

// Update applies owner edits to a gallery.
func (s *GalleryService) Update(gallery *models.Gallery, in GalleryInput) (*models.Gallery, error) {
	updates := map[string]interface{}{}
	if in.Name != nil {
		updates["name"] = strings.TrimSpace(*in.Name)
		updates["slug"] = Slugify(*in.Name)
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.SortOrder != nil {
		if !database.IsValidSortOrder(*in.SortOrder) {
			return nil, ErrInvalidSortOrder
		}
		updates["sort_order"] = *in.SortOrder
	}
	if in.KeepOriginalSize != nil {
		updates["keep_original_size"] = *in.KeepOriginalSize
	}
	if in.IsPublic != nil {
		updates["is_public"] = *in.IsPublic
	}
	if in.PortfolioOrder != nil {
		updates["portfolio_order"] = *in.PortfolioOrder
	}
	return s.apply(gallery, updates)
}

// UpdateShareSettings changes the share flags. Changing the selection limit
// or the selectable flag re-arms the selection notification, and changing
// the expiration re-arms the expiry reminder.
func (s *GalleryService) UpdateShareSettings(gallery *models.Gallery, in ShareSettings) (*models.Gallery, error) {
	updates := map[string]interface{}{}

	if in.Selectable != nil && *in.Selectable != gallery.IsShareSelectable {
		updates["is_share_selectable"] = *in.Selectable
		updates["selection_limit_notified_at"] = nil
	}
	if in.SelectionLimit != nil {
		current := 0
		if gallery.ShareSelectionLimit != nil {
			current = *gallery.ShareSelectionLimit
		}
		if *in.SelectionLimit < 0 {
			return nil, fmt.Errorf("selection limit must not be negative")
		}
		if *in.SelectionLimit != current {
			if *in.SelectionLimit == 0 {
				updates["share_selection_limit"] = nil
			} else {
				updates["share_selection_limit"] = *in.SelectionLimit
			}
			updates["selection_limit_notified_at"] = nil
		}
	}
	if in.Downloadable != nil {
		updates["is_share_downloadable"] = *in.Downloadable
	}
	if in.Watermarked != nil {
		updates["is_share_watermarked"] = *in.Watermarked
	}
	if in.Password != nil {
		if *in.Password == "" {
			updates["share_password"] = nil
		} else {
			hash, err := sharing.HashPassword(*in.Password)
			if err != nil {
				return nil, fmt.Errorf("failed to hash share password: %w", err)
			}
			updates["share_password"] = hash
		}
	}
	if in.ClearExpiration {
		updates["expiration_date"] = nil
		updates["reminder_sent_at"] = nil
	} else if in.ExpirationDate != nil {
		updates["expiration_date"] = in.ExpirationDate.UTC()
		updates["reminder_sent_at"] = nil
	}

	return s.apply(gallery, updates)
}

func (s *GalleryService) apply(gallery *models.Gallery, updates map[string]interface{}) (*models.Gallery, error) {
	if len(updates) > 0 {
		if err := s.galleries.Update(gallery.ID, updates); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrGalleryNotFound
			}
			return nil, err
		}
	}
	return s.galleries.GetByULID(gallery.ULID)
}

// Purge deletes a gallery's blobs, then its records. Blob failures abort
// before any row is removed so a later run can retry; running it on an
// already purged gallery does nothing.
func (s *GalleryService) Purge(ctx context.Context, galleryID uint) error {
	photos, err := s.photos.ListByGallery(galleryID)
	if err != nil {
		return err
	}

	var locations []media.Location
	for i := range photos {
		locations = append(locations, photos[i].Locations()...)
	}
	if err := s.relocator.Purge(ctx, locations); err != nil {
		return fmt.Errorf("failed to purge blobs of gallery %d: %w", galleryID, err)
	}

	if err := s.galleries.Delete(galleryID); err != nil {
		return err
	}
	log.Printf("services: purged gallery %d (%d photos, %d blobs)", galleryID, len(photos), len(locations))
	return nil
}

// Slugify turns a gallery name into a URL fragment.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteRune('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "gallery"
	}
	return slug
}
