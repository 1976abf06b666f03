package database

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/studiobackend/models"
)

func TestExpiredGalleryIDs_PostgresPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id FROM galleries WHERE expiration_date IS NOT NULL AND expiration_date < $1 ORDER BY expiration_date ASC, id ASC LIMIT 50",
	)).WithArgs(now).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3).AddRow(7))

	ids, err := ExpiredGalleryIDs(db, DriverPostgres, now, 50)
	require.NoError(t, err)
	assert.Equal(t, []uint{3, 7}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGalleriesDueForReminder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	lead := 7 * 24 * time.Hour
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id FROM galleries WHERE reminder_sent_at IS NULL AND expiration_date IS NOT NULL AND expiration_date >= ? AND expiration_date < ? ORDER BY id ASC",
	)).WithArgs(now, now.Add(lead)).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))

	ids, err := GalleriesDueForReminder(db, DriverSQLite, now, lead)
	require.NoError(t, err)
	assert.Equal(t, []uint{9}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpiredGalleryIDs_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id FROM galleries").WillReturnError(assert.AnError)

	_, err = ExpiredGalleryIDs(db, DriverSQLite, time.Now(), 10)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSortPhotos(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	taken := base.Add(time.Hour)
	photos := func() []models.Photo {
		return []models.Photo{
			{Name: "img10.jpg", CreatedAt: base.Add(3 * time.Minute)},
			{Name: "img2.jpg", CreatedAt: base.Add(1 * time.Minute), TakenAt: &taken},
			{Name: "IMG1.jpg", CreatedAt: base.Add(2 * time.Minute)},
		}
	}
	names := func(ps []models.Photo) []string {
		out := make([]string, len(ps))
		for i, p := range ps {
			out[i] = p.Name
		}
		return out
	}

	ps := photos()
	SortPhotos(ps, SortFilenameNat)
	assert.Equal(t, []string{"IMG1.jpg", "img2.jpg", "img10.jpg"}, names(ps))

	ps = photos()
	SortPhotos(ps, SortFilenameAsc)
	assert.Equal(t, []string{"IMG1.jpg", "img10.jpg", "img2.jpg"}, names(ps))

	ps = photos()
	SortPhotos(ps, SortDateAsc)
	assert.Equal(t, []string{"IMG1.jpg", "img10.jpg", "img2.jpg"}, names(ps))

	ps = photos()
	SortPhotos(ps, SortDateDesc)
	assert.Equal(t, []string{"img2.jpg", "img10.jpg", "IMG1.jpg"}, names(ps))

	assert.True(t, IsValidSortOrder(SortDateAsc))
	assert.False(t, IsValidSortOrder("size_desc"))
}
