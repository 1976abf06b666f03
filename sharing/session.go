package sharing

import (
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/samber/lo"
)

const (
	SessionName = "studio_share"
	unlockedKey = "unlocked_gallery_ulid"

	// keeps the cookie well below browser size limits
	maxUnlockedGalleries = 50
)

// SessionManager remembers which galleries a viewer unlocked. Unlocks live as
// long as the browser session; there is no separate expiry.
type SessionManager struct {
	store sessions.Store
}

func NewSessionManager(secret string, secure bool) *SessionManager {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   0,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionManager{store: store}
}

// IsUnlocked reports whether the request's session unlocked galleryULID.
func (m *SessionManager) IsUnlocked(r *http.Request, galleryULID string) bool {
	return lo.Contains(m.unlocked(r), galleryULID)
}

// MarkUnlocked records galleryULID in the session and writes the cookie.
func (m *SessionManager) MarkUnlocked(w http.ResponseWriter, r *http.Request, galleryULID string) error {
	session, err := m.store.Get(r, SessionName)
	if err != nil {
		// undecodable cookie (e.g. rotated secret): start over with a fresh session
		log.Printf("sharing: discarding unreadable session: %v", err)
	}

	ulids := m.unlocked(r)
	if !lo.Contains(ulids, galleryULID) {
		ulids = append(ulids, galleryULID)
	}
	if len(ulids) > maxUnlockedGalleries {
		ulids = ulids[len(ulids)-maxUnlockedGalleries:]
	}
	session.Values[unlockedKey] = strings.Join(ulids, ",")
	return session.Save(r, w)
}

func (m *SessionManager) unlocked(r *http.Request) []string {
	session, err := m.store.Get(r, SessionName)
	if err != nil {
		return nil
	}
	raw, _ := session.Values[unlockedKey].(string)
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
