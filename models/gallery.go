package models

import "time"

// Gallery is a named collection of photos owned by a team, shared with
// clients through its ULID.
type Gallery struct {
	ID               uint       `gorm:"primaryKey;autoIncrement" json:"-"`
	ULID             string     `gorm:"column:ulid;size:26;not null;uniqueIndex" json:"ulid"`
	TeamID           uint       `gorm:"not null;index" json:"team_id"`
	Name             string     `gorm:"not null" json:"name"`
	Slug             string     `gorm:"not null;index" json:"slug"`
	Description      *string    `gorm:"" json:"description,omitempty"`
	SortOrder        string     `gorm:"not null;default:'filename_nat'" json:"sort_order"`
	KeepOriginalSize bool       `gorm:"not null;default:false" json:"keep_original_size"`
	IsPublic         bool       `gorm:"not null;default:false;index" json:"is_public"`
	PortfolioOrder   int        `gorm:"not null;default:0" json:"portfolio_order"`
	ExpirationDate   *time.Time `gorm:"index" json:"expiration_date,omitempty"`
	ReminderSentAt   *time.Time `gorm:"" json:"reminder_sent_at,omitempty"`

	IsShareSelectable   bool       `gorm:"not null;default:false" json:"is_share_selectable"`
	IsShareDownloadable bool       `gorm:"not null;default:false" json:"is_share_downloadable"`
	IsShareWatermarked  bool       `gorm:"not null;default:false" json:"is_share_watermarked"`
	SharePasswordHash   *string    `gorm:"column:share_password" json:"-"`
	ShareSelectionLimit *int       `gorm:"" json:"share_selection_limit,omitempty"`
	SelectionNotifiedAt *time.Time `gorm:"column:selection_limit_notified_at" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Team   *Team   `gorm:"foreignKey:TeamID" json:"-"`
	Photos []Photo `gorm:"foreignKey:GalleryID" json:"photos,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Gallery) TableName() string {
	return "galleries"
}

// IsExpired reports whether the expiration date has passed at now.
func (g *Gallery) IsExpired(now time.Time) bool {
	return g.ExpirationDate != nil && g.ExpirationDate.Before(now)
}

// IsPasswordProtected reports whether viewers must unlock the share first.
func (g *Gallery) IsPasswordProtected() bool {
	return g.SharePasswordHash != nil && *g.SharePasswordHash != ""
}

// SelectionLimit returns the active selection limit, or 0 when selections are
// unlimited or disabled.
func (g *Gallery) SelectionLimit() int {
	if !g.IsShareSelectable || g.ShareSelectionLimit == nil || *g.ShareSelectionLimit <= 0 {
		return 0
	}
	return *g.ShareSelectionLimit
}
