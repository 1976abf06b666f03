package sharing

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/camden-git/studiobackend/models"
	"github.com/camden-git/studiobackend/notify"
	"github.com/camden-git/studiobackend/repository"
)

// ErrSelectionLimitReached is returned when a favorite would exceed the
// gallery's selection limit.
var ErrSelectionLimitReached = errors.New("selection limit reached")

// SelectionResult describes the gallery's selection after a toggle.
type SelectionResult struct {
	Favorited bool  `json:"favorited"`
	Count     int64 `json:"count"`
	Limit     int   `json:"limit,omitempty"`
}

// SelectionService toggles favorites and notifies the owner when a client
// fills the selection.
type SelectionService struct {
	galleries repository.GalleryRepositoryInterface
	photos    repository.PhotoRepositoryInterface
	notifier  notify.Notifier
	now       func() time.Time
}

func NewSelectionService(galleries repository.GalleryRepositoryInterface, photos repository.PhotoRepositoryInterface, notifier notify.Notifier) *SelectionService {
	return &SelectionService{
		galleries: galleries,
		photos:    photos,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Favorite marks photo as selected. Reaching the limit notifies the owner at
// most once until the owner changes the limit.
func (s *SelectionService) Favorite(ctx context.Context, gallery *models.Gallery, photo *models.Photo) (SelectionResult, error) {
	limit := gallery.SelectionLimit()
	outcome, err := s.photos.SetFavorited(gallery.ID, photo.ID, true, limit, s.now())
	result := SelectionResult{Favorited: err == nil, Count: outcome.Count, Limit: limit}
	if err != nil {
		if errors.Is(err, repository.ErrSelectionFull) {
			return result, ErrSelectionLimitReached
		}
		return result, err
	}

	if outcome.Changed && limit > 0 && outcome.Count == int64(limit) {
		s.notifyLimitReached(ctx, gallery, limit)
	}
	return result, nil
}

// Unfavorite clears the selection mark of photo. The notification marker is
// left in place.
func (s *SelectionService) Unfavorite(ctx context.Context, gallery *models.Gallery, photo *models.Photo) (SelectionResult, error) {
	limit := gallery.SelectionLimit()
	outcome, err := s.photos.SetFavorited(gallery.ID, photo.ID, false, limit, s.now())
	if err != nil {
		return SelectionResult{Limit: limit}, err
	}
	return SelectionResult{Favorited: false, Count: outcome.Count, Limit: limit}, nil
}

func (s *SelectionService) notifyLimitReached(ctx context.Context, gallery *models.Gallery, limit int) {
	marked, err := s.galleries.MarkSelectionNotified(gallery.ID, s.now())
	if err != nil {
		log.Printf("sharing: failed to record selection notification for gallery %s: %v", gallery.ULID, err)
		return
	}
	if !marked {
		return
	}

	notice := notify.SelectionNotice{
		GalleryName: gallery.Name,
		GalleryULID: gallery.ULID,
		Limit:       limit,
	}
	if gallery.Team != nil {
		notice.TeamName = gallery.Team.Name
		if gallery.Team.NotificationEmail != nil {
			notice.Recipient = *gallery.Team.NotificationEmail
		}
	}
	if err := s.notifier.SelectionLimitReached(ctx, notice); err != nil {
		log.Printf("sharing: failed to notify selection limit for gallery %s: %v", gallery.ULID, err)
	}
}
