// Package sharing decides what a client holding a gallery share link may do.
package sharing

import (
	"errors"
	"time"

	"github.com/camden-git/studiobackend/models"
	"golang.org/x/crypto/bcrypt"
)

// Decision is the outcome of evaluating a share request.
type Decision int

const (
	Allow Decision = iota
	RequireUnlock
	Expired
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RequireUnlock:
		return "require_unlock"
	case Expired:
		return "expired"
	}
	return "unknown"
}

// Action is a photo-level operation a viewer can attempt.
type Action string

const (
	ActionView       Action = "view"
	ActionFavorite   Action = "favorite"
	ActionUnfavorite Action = "unfavorite"
	ActionDownload   Action = "download"
	ActionComment    Action = "comment"
)

var (
	ErrGalleryExpired   = errors.New("gallery has expired")
	ErrGalleryLocked    = errors.New("gallery is password protected")
	ErrActionNotAllowed = errors.New("action not allowed for this gallery")
	ErrInvalidPassword  = errors.New("invalid password")
)

// ShareState is a snapshot of the flags governing a share at a moment.
type ShareState struct {
	Public         bool `json:"public"`
	Locked         bool `json:"locked"`
	Selectable     bool `json:"selectable"`
	Downloadable   bool `json:"downloadable"`
	Watermarked    bool `json:"watermarked"`
	Expired        bool `json:"expired"`
	SelectionLimit int  `json:"selection_limit,omitempty"`
}

// StateOf derives the share state of g at now.
func StateOf(g *models.Gallery, now time.Time) ShareState {
	return ShareState{
		Public:         g.IsPublic,
		Locked:         g.IsPasswordProtected(),
		Selectable:     g.IsShareSelectable,
		Downloadable:   g.IsShareDownloadable,
		Watermarked:    g.IsShareWatermarked,
		Expired:        g.IsExpired(now),
		SelectionLimit: g.SelectionLimit(),
	}
}

// Evaluate decides whether a viewer may open the share of g. Expiration wins
// over the password lock.
func Evaluate(g *models.Gallery, unlocked bool, now time.Time) Decision {
	if g.IsExpired(now) {
		return Expired
	}
	if g.IsPasswordProtected() && !unlocked {
		return RequireUnlock
	}
	return Allow
}

// Guard checks a photo-level action against the gallery's current flags. It
// must be called with a freshly loaded gallery on every request.
func Guard(action Action, g *models.Gallery, unlocked bool, now time.Time) error {
	switch Evaluate(g, unlocked, now) {
	case Expired:
		return ErrGalleryExpired
	case RequireUnlock:
		return ErrGalleryLocked
	}

	switch action {
	case ActionFavorite, ActionUnfavorite:
		if !g.IsShareSelectable {
			return ErrActionNotAllowed
		}
	case ActionDownload:
		if !g.IsShareDownloadable {
			return ErrActionNotAllowed
		}
	case ActionView, ActionComment:
	default:
		return ErrActionNotAllowed
	}
	return nil
}

// HashPassword returns the bcrypt hash stored as a gallery's share password.
func HashPassword(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword compares plaintext with the gallery's share password hash.
func CheckPassword(g *models.Gallery, plaintext string) error {
	if !g.IsPasswordProtected() {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*g.SharePasswordHash), []byte(plaintext)); err != nil {
		return ErrInvalidPassword
	}
	return nil
}
