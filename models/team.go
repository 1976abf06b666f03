package models

import "time"

const (
	WatermarkTopLeft     = "top_left"
	WatermarkTopRight    = "top_right"
	WatermarkCenter      = "center"
	WatermarkBottomLeft  = "bottom_left"
	WatermarkBottomRight = "bottom_right"
)

// Team is the tenant boundary. It owns galleries and carries the branding
// used for view-time watermark overlays.
type Team struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name              string    `gorm:"not null" json:"name"`
	Slug              string    `gorm:"not null;uniqueIndex" json:"slug"`
	NotificationEmail *string   `gorm:"" json:"notification_email,omitempty"`
	WatermarkPath     *string   `gorm:"" json:"watermark_path,omitempty"`
	WatermarkPosition string    `gorm:"not null;default:bottom_right" json:"watermark_position"`
	WatermarkOpacity  int       `gorm:"not null;default:50" json:"watermark_opacity"` // percent
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName explicitly sets the table name for GORM.
func (Team) TableName() string {
	return "teams"
}
