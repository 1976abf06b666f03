package sharing

import (
	"testing"
	"time"

	"github.com/camden-git/studiobackend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lockedGallery(t *testing.T, password string) *models.Gallery {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	return &models.Gallery{ULID: "01LOCKED", SharePasswordHash: &hash}
}

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	open := &models.Gallery{}
	assert.Equal(t, Allow, Evaluate(open, false, now))

	locked := lockedGallery(t, "secret")
	assert.Equal(t, RequireUnlock, Evaluate(locked, false, now))
	assert.Equal(t, Allow, Evaluate(locked, true, now))

	expired := &models.Gallery{ExpirationDate: &past}
	assert.Equal(t, Expired, Evaluate(expired, false, now))

	locked.ExpirationDate = &past
	assert.Equal(t, Expired, Evaluate(locked, true, now), "expiration wins over the lock")

	notYet := &models.Gallery{ExpirationDate: &future}
	assert.Equal(t, Allow, Evaluate(notYet, false, now))

	emptyHash := ""
	assert.Equal(t, Allow, Evaluate(&models.Gallery{SharePasswordHash: &emptyHash}, false, now))
}

func TestGuard(t *testing.T) {
	now := time.Now()
	g := &models.Gallery{}

	assert.NoError(t, Guard(ActionView, g, false, now))
	assert.NoError(t, Guard(ActionComment, g, false, now))
	assert.ErrorIs(t, Guard(ActionFavorite, g, false, now), ErrActionNotAllowed)
	assert.ErrorIs(t, Guard(ActionDownload, g, false, now), ErrActionNotAllowed)
	assert.ErrorIs(t, Guard(Action("delete"), g, false, now), ErrActionNotAllowed)

	g.IsShareSelectable = true
	g.IsShareDownloadable = true
	assert.NoError(t, Guard(ActionFavorite, g, false, now))
	assert.NoError(t, Guard(ActionUnfavorite, g, false, now))
	assert.NoError(t, Guard(ActionDownload, g, false, now))

	// flags flipped after the viewer loaded the gallery
	g.IsShareDownloadable = false
	assert.ErrorIs(t, Guard(ActionDownload, g, false, now), ErrActionNotAllowed)

	locked := lockedGallery(t, "pw")
	assert.ErrorIs(t, Guard(ActionView, locked, false, now), ErrGalleryLocked)

	past := now.Add(-time.Hour)
	g.ExpirationDate = &past
	assert.ErrorIs(t, Guard(ActionFavorite, g, true, now), ErrGalleryExpired)
}

func TestCheckPassword(t *testing.T) {
	g := lockedGallery(t, "correct horse")
	assert.NoError(t, CheckPassword(g, "correct horse"))
	assert.ErrorIs(t, CheckPassword(g, "wrong"), ErrInvalidPassword)
	assert.NotEqual(t, "correct horse", *g.SharePasswordHash)

	assert.NoError(t, CheckPassword(&models.Gallery{}, "anything"))
}

func TestStateOf(t *testing.T) {
	limit := 5
	g := &models.Gallery{IsPublic: true, IsShareSelectable: true, IsShareWatermarked: true, ShareSelectionLimit: &limit}
	state := StateOf(g, time.Now())
	assert.Equal(t, ShareState{Public: true, Selectable: true, Watermarked: true, SelectionLimit: 5}, state)

	g.IsShareSelectable = false
	assert.Zero(t, StateOf(g, time.Now()).SelectionLimit, "limit only applies while selectable")
}
