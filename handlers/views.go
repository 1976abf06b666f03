package handlers

import (
	"time"

	"github.com/camden-git/studiobackend/media"
	"github.com/camden-git/studiobackend/models"
	"github.com/camden-git/studiobackend/sharing"
)

// PhotoView is the read model of a photo. URL and ThumbnailURL stay null
// until derivatives exist, so clients render a pending placeholder.
type PhotoView struct {
	ULID            string     `json:"ulid"`
	Name            string     `json:"name"`
	Status          string     `json:"status"`
	URL             *string    `json:"url"`
	ThumbnailURL    *string    `json:"thumbnail_url"`
	RawAvailable    bool       `json:"raw_available"`
	Width           *int       `json:"width,omitempty"`
	Height          *int       `json:"height,omitempty"`
	Size            int64      `json:"size"`
	TakenAt         *time.Time `json:"taken_at,omitempty"`
	FavoritedAt     *time.Time `json:"favorited_at,omitempty"`
	ProcessingError *string    `json:"processing_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func newPhotoView(backends *media.Backends, p *models.Photo) PhotoView {
	view := PhotoView{
		ULID:         p.ULID,
		Name:         p.Name,
		Status:       p.Status,
		RawAvailable: p.RawPath != nil && *p.RawPath != "",
		Width:        p.Width,
		Height:       p.Height,
		Size:         p.Size,
		TakenAt:      p.TakenAt,
		FavoritedAt:  p.FavoritedAt,
		CreatedAt:    p.CreatedAt,

		ProcessingError: p.ProcessingError,
	}
	if p.HasPreview() {
		url := backends.URL(media.Location{Disk: p.Disk, Path: p.Path})
		thumb := backends.URL(media.Location{Disk: p.Disk, Path: *p.ThumbPath})
		view.URL = &url
		view.ThumbnailURL = &thumb
	}
	return view
}

func newPhotoViews(backends *media.Backends, photos []models.Photo) []PhotoView {
	views := make([]PhotoView, 0, len(photos))
	for i := range photos {
		views = append(views, newPhotoView(backends, &photos[i]))
	}
	return views
}

// WatermarkView tells the client how to overlay the team watermark.
type WatermarkView struct {
	URL      string `json:"url"`
	Position string `json:"position"`
	Opacity  int    `json:"opacity"`
}

func newWatermarkView(backends *media.Backends, team *models.Team) *WatermarkView {
	if team == nil || team.WatermarkPath == nil || *team.WatermarkPath == "" {
		return nil
	}
	return &WatermarkView{
		URL:      backends.URL(media.Location{Disk: media.DiskLocal, Path: *team.WatermarkPath}),
		Position: team.WatermarkPosition,
		Opacity:  team.WatermarkOpacity,
	}
}

// AdminGalleryView is the owner's view of a gallery.
type AdminGalleryView struct {
	models.Gallery
	Locked         bool        `json:"locked"`
	Expired        bool        `json:"expired"`
	FavoritedCount int64       `json:"favorited_count"`
	Photos         []PhotoView `json:"photos,omitempty"`
}

// ShareGalleryView is what a share-link viewer sees.
type ShareGalleryView struct {
	ULID        string                   `json:"ulid"`
	Name        string                   `json:"name"`
	Description *string                  `json:"description,omitempty"`
	TeamName    string                   `json:"team_name,omitempty"`
	State       sharing.ShareState       `json:"state"`
	Expiration  *time.Time               `json:"expiration_date,omitempty"`
	Watermark   *WatermarkView           `json:"watermark,omitempty"`
	Selection   *sharing.SelectionResult `json:"selection,omitempty"`
	Photos      []PhotoView              `json:"photos"`
}

// PortfolioGalleryView is one entry of a team's public portfolio.
type PortfolioGalleryView struct {
	ULID        string    `json:"ulid"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description,omitempty"`
	Order       int       `json:"portfolio_order"`
	CoverURL    *string   `json:"cover_url"`
	CreatedAt   time.Time `json:"created_at"`
}
