package models

import (
	"time"

	"github.com/camden-git/studiobackend/media"
)

// Photo is one uploaded asset of a gallery. Path starts out as the upload
// location on local disk; ThumbPath stays nil until derivatives exist.
type Photo struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	ULID      string `gorm:"column:ulid;size:26;not null;uniqueIndex" json:"ulid"`
	GalleryID uint   `gorm:"not null;uniqueIndex:idx_gallery_photo_name" json:"-"`
	Name      string `gorm:"not null;uniqueIndex:idx_gallery_photo_name" json:"name"`

	Path      string     `gorm:"not null" json:"-"`
	ThumbPath *string    `gorm:"" json:"-"`
	RawPath   *string    `gorm:"" json:"-"`
	Size      int64      `gorm:"not null;default:0" json:"size"`
	Disk      media.Disk `gorm:"type:varchar(16);not null;default:'local'" json:"disk"`

	Width   *int       `gorm:"" json:"width,omitempty"`
	Height  *int       `gorm:"" json:"height,omitempty"`
	TakenAt *time.Time `gorm:"index" json:"taken_at,omitempty"`

	Status              string     `gorm:"not null;default:pending;index" json:"status"`
	ProcessingStartedAt *time.Time `gorm:"" json:"-"`
	ProcessedAt         *time.Time `gorm:"" json:"processed_at,omitempty"`
	ProcessingError     *string    `gorm:"" json:"processing_error,omitempty"`
	Attempts            int        `gorm:"not null;default:0" json:"-"`

	FavoritedAt *time.Time `gorm:"index" json:"favorited_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Gallery *Gallery `gorm:"foreignKey:GalleryID" json:"-"`
}

// TableName explicitly sets the table name for GORM.
func (Photo) TableName() string {
	return "photos"
}

// Locations lists every blob currently backing the photo.
func (p *Photo) Locations() []media.Location {
	locs := []media.Location{{Disk: p.Disk, Path: p.Path}}
	if p.ThumbPath != nil && *p.ThumbPath != "" {
		locs = append(locs, media.Location{Disk: p.Disk, Path: *p.ThumbPath})
	}
	if p.RawPath != nil && *p.RawPath != "" {
		locs = append(locs, media.Location{Disk: p.Disk, Path: *p.RawPath})
	}
	return locs
}

// HasPreview reports whether a thumbnail exists for read paths.
func (p *Photo) HasPreview() bool {
	return p.ThumbPath != nil && *p.ThumbPath != ""
}

// PhotoComment is a note left by a share viewer on a photo.
type PhotoComment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PhotoID   uint      `gorm:"not null;index" json:"-"`
	Author    string    `gorm:"not null" json:"author"`
	Body      string    `gorm:"not null" json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName explicitly sets the table name for GORM.
func (PhotoComment) TableName() string {
	return "photo_comments"
}
