package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/camden-git/studiobackend/database"
	"github.com/camden-git/studiobackend/media"
	"github.com/camden-git/studiobackend/models"
	"github.com/camden-git/studiobackend/notify"
	"github.com/camden-git/studiobackend/realtime"
	"github.com/camden-git/studiobackend/repository"
	"github.com/camden-git/studiobackend/services"
	"github.com/camden-git/studiobackend/sharing"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

type nopQueue struct{}

func (nopQueue) QueueJob(uint) bool { return true }

type apiFixture struct {
	server     *httptest.Server
	client     *http.Client
	root       string
	store      *media.LocalStorage
	users      repository.UserRepository
	teams      *repository.TeamRepository
	photos     *repository.PhotoRepository
	gallerySvc *services.GalleryService
	team       *models.Team
	user       *models.User
	token      string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db, err := database.OpenTestDB(t.Name())
	require.NoError(t, err)

	root := t.TempDir()
	store, err := media.NewLocalStorage(root, "/media")
	require.NoError(t, err)
	backends, err := media.NewBackends(map[media.Disk]media.Store{media.DiskLocal: store}, media.DiskLocal)
	require.NoError(t, err)
	relocator := media.NewRelocator(backends)

	f := &apiFixture{
		root:   root,
		store:  store,
		users:  repository.NewGormUserRepository(db),
		teams:  repository.NewTeamRepository(db),
		photos: repository.NewPhotoRepository(db),
	}

	f.team = &models.Team{Name: "Northlight Studio", Slug: "northlight"}
	require.NoError(t, f.teams.Create(f.team))
	f.user = &models.User{TeamID: f.team.ID, Email: "owner@northlight.test", Name: "Owner"}
	require.NoError(t, f.user.SetPassword("correct horse"))
	require.NoError(t, f.users.Create(f.user))
	f.token, _, err = IssueToken(testSecret, f.user.ID, time.Hour)
	require.NoError(t, err)

	galleries := repository.NewGalleryRepository(db)
	f.gallerySvc = services.NewGalleryService(galleries, f.photos, relocator)
	photoSvc := services.NewPhotoService(f.photos, store, relocator, nopQueue{})
	selections := sharing.NewSelectionService(galleries, f.photos, notify.LogNotifier{})

	router := NewRouter(RouterDeps{
		Auth:        NewAuthHandler(f.users, testSecret, time.Hour),
		Galleries:   NewGalleryAdminHandler(f.gallerySvc, photoSvc, backends, realtime.NewHub()),
		Share:       NewShareHandler(galleries, photoSvc, selections, repository.NewCommentRepository(db), sharing.NewSessionManager("session-secret", false), backends),
		Portfolio:   NewPortfolioHandler(f.teams, f.gallerySvc, photoSvc, backends),
		UserRepo:    f.users,
		JWTSecret:   testSecret,
		AssetRoot:   root,
		AssetPrefix: "/media/",
	})
	f.server = httptest.NewServer(router)
	t.Cleanup(f.server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	f.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}, token string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func (f *apiFixture) createGallery(t *testing.T, name string) *models.Gallery {
	t.Helper()
	g, err := f.gallerySvc.Create(f.team.ID, name, services.GalleryInput{})
	require.NoError(t, err)
	return g
}

func (f *apiFixture) share(t *testing.T, g *models.Gallery, in services.ShareSettings) {
	t.Helper()
	_, err := f.gallerySvc.UpdateShareSettings(g, in)
	require.NoError(t, err)
}

// addProcessedPhoto stores a finished photo with master and thumbnail blobs.
func (f *apiFixture) addProcessedPhoto(t *testing.T, g *models.Gallery, name, content string) *models.Photo {
	t.Helper()
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	master := media.GalleryStoragePath("galleries", g.ULID) + "/" + stem + ".jpg"
	thumb := media.GalleryStoragePath("galleries", g.ULID) + "/thumb/" + stem + ".jpg"
	require.NoError(t, f.store.Put(context.Background(), master, strings.NewReader(content)))
	require.NoError(t, f.store.Put(context.Background(), thumb, strings.NewReader("thumb")))

	photo := &models.Photo{
		ULID:      ulid.Make().String(),
		GalleryID: g.ID,
		Name:      name,
		Path:      master,
		ThumbPath: &thumb,
		Size:      int64(len(content)),
		Disk:      media.DiskLocal,
		Status:    database.StatusDone,
	}
	require.NoError(t, f.photos.Create(photo))
	return photo
}

func boolPtr(v bool) *bool { return &v }
func intPtr(v int) *int    { return &v }
func strPtr(v string) *string {
	return &v
}

func TestLogin(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "owner@northlight.test", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "not-an-email", "password": "x"}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "owner@northlight.test", "password": "correct horse"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login LoginResponse
	decodeBody(t, resp, &login)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, f.user.ID, login.User.ID)

	resp = f.do(t, http.MethodGet, "/api/auth/me", nil, login.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me models.User
	decodeBody(t, resp, &me)
	assert.Equal(t, "owner@northlight.test", me.Email)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/api/admin/galleries", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/admin/galleries", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	expired, _, err := IssueToken(testSecret, f.user.ID, -time.Minute)
	require.NoError(t, err)
	resp = f.do(t, http.MethodGet, "/api/admin/galleries", nil, expired)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/admin/galleries?token="+url.QueryEscape(f.token), nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminGalleryCRUD(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/admin/galleries", map[string]interface{}{"name": ""}, f.token)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/admin/galleries", map[string]interface{}{"name": "Smith Wedding", "is_public": true}, f.token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created AdminGalleryView
	decodeBody(t, resp, &created)
	assert.Equal(t, "smith-wedding", created.Slug)
	assert.True(t, created.IsPublic)
	require.NotEmpty(t, created.ULID)

	resp = f.do(t, http.MethodPatch, "/api/admin/galleries/"+created.ULID, map[string]interface{}{"sort_order": "random"}, f.token)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = f.do(t, http.MethodPatch, "/api/admin/galleries/"+created.ULID, map[string]interface{}{"name": "Smith & Jones", "sort_order": "date_desc"}, f.token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated AdminGalleryView
	decodeBody(t, resp, &updated)
	assert.Equal(t, "Smith & Jones", updated.Name)
	assert.Equal(t, "date_desc", updated.SortOrder)

	resp = f.do(t, http.MethodPut, "/api/admin/galleries/"+created.ULID+"/share", map[string]interface{}{"password": "secret", "share_selection_limit": 5, "is_share_selectable": true}, f.token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var shared AdminGalleryView
	decodeBody(t, resp, &shared)
	assert.True(t, shared.Locked)
	require.NotNil(t, shared.ShareSelectionLimit)
	assert.Equal(t, 5, *shared.ShareSelectionLimit)

	resp = f.do(t, http.MethodGet, "/api/admin/galleries", nil, f.token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []AdminGalleryView
	decodeBody(t, resp, &list)
	assert.Len(t, list, 1)

	resp = f.do(t, http.MethodDelete, "/api/admin/galleries/"+created.ULID, nil, f.token)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = f.do(t, http.MethodGet, "/api/admin/galleries/"+created.ULID, nil, f.token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminGalleryIsScopedToTeam(t *testing.T) {
	f := newAPIFixture(t)
	g := f.createGallery(t, "Private Session")

	other := &models.Team{Name: "Other", Slug: "other"}
	require.NoError(t, f.teams.Create(other))
	intruder := &models.User{TeamID: other.ID, Email: "intruder@other.test"}
	require.NoError(t, intruder.SetPassword("pw"))
	require.NoError(t, f.users.Create(intruder))
	token, _, err := IssueToken(testSecret, intruder.ID, time.Hour)
	require.NoError(t, err)

	resp := f.do(t, http.MethodGet, "/api/admin/galleries/"+g.ULID, nil, token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = f.do(t, http.MethodDelete, "/api/admin/galleries/"+g.ULID, nil, token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminUploadPhotos(t *testing.T) {
	f := newAPIFixture(t)
	g := f.createGallery(t, "Uploads")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, name := range []string{"IMG_0001.jpg", "notes.txt"} {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("data of " + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/admin/galleries/"+g.ULID+"/photos", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+f.token)
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var result UploadResult
	decodeBody(t, resp, &result)
	require.Len(t, result.Photos, 1)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "notes.txt", result.Errors[0].Name)

	uploaded := result.Photos[0]
	assert.Equal(t, "IMG_0001.jpg", uploaded.Name)
	assert.Equal(t, database.StatusPending, uploaded.Status)
	assert.Nil(t, uploaded.URL)
	assert.Nil(t, uploaded.ThumbnailURL)

	_, err = os.Stat(filepath.Join(f.root, "uploads", g.ULID, "IMG_0001.jpg"))
	assert.NoError(t, err)

	resp2 := f.do(t, http.MethodGet, "/api/admin/galleries/"+g.ULID, nil, f.token)
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	var view AdminGalleryView
	decodeBody(t, resp2, &view)
	require.Len(t, view.Photos, 1)
	assert.Nil(t, view.Photos[0].URL)

	resp3 := f.do(t, http.MethodPost, "/api/admin/galleries/"+g.ULID+"/photos/"+uploaded.ULID+"/reprocess", nil, f.token)
	assert.Equal(t, http.StatusAccepted, resp3.StatusCode)

	resp4 := f.do(t, http.MethodDelete, "/api/admin/galleries/"+g.ULID+"/photos/"+uploaded.ULID, nil, f.token)
	assert.Equal(t, http.StatusNoContent, resp4.StatusCode)
	_, err = os.Stat(filepath.Join(f.root, "uploads", g.ULID, "IMG_0001.jpg"))
	assert.True(t, os.IsNotExist(err))
}

func TestShareViewRedirectsUntilUnlocked(t *testing.T) {
	f := newAPIFixture(t)
	g := f.createGallery(t, "Locked")
	f.addProcessedPhoto(t, g, "a.jpg", "master-a")
	f.share(t, g, services.ShareSettings{Password: strPtr("letmein")})

	resp := f.do(t, http.MethodGet, "/api/share/"+g.ULID, nil, "")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/api/share/"+g.ULID+"/unlock", resp.Header.Get("Location"))

	resp = f.do(t, http.MethodGet, "/api/share/"+g.ULID+"/unlock", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info UnlockInfo
	decodeBody(t, resp, &info)
	assert.True(t, info.Locked)

	resp = f.do(t, http.MethodPost, "/api/share/"+g.ULID+"/unlock", map[string]string{"password": "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/share/"+g.ULID+"/unlock", map[string]string{"password": "letmein"}, "")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/api/share/"+g.ULID, resp.Header.Get("Location"))

	resp = f.do(t, http.MethodGet, "/api/share/"+g.ULID, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view ShareGalleryView
	decodeBody(t, resp, &view)
	assert.True(t, view.State.Locked)
	require.Len(t, view.Photos, 1)
	require.NotNil(t, view.Photos[0].URL)
	assert.Contains(t, *view.Photos[0].URL, "/media/")
}

func TestShareUnlockIsPerGallery(t *testing.T) {
	f := newAPIFixture(t)
	first := f.createGallery(t, "First")
	second := f.createGallery(t, "Second")
	f.share(t, first, services.ShareSettings{Password: strPtr("one")})
	f.share(t, second, services.ShareSettings{Password: strPtr("two")})

	form := url.Values{"password": {"one"}}
	resp, err := f.client.PostForm(f.server.URL+"/api/share/"+first.ULID+"/unlock", form)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/share/"+first.ULID, nil, "").StatusCode)
	assert.Equal(t, http.StatusSeeOther, f.do(t, http.MethodGet, "/api/share/"+second.ULID, nil, "").StatusCode)

	resp = f.do(t, http.MethodPost, "/api/share/"+second.ULID+"/unlock", map[string]string{"password": "two"}, "")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/share/"+first.ULID, nil, "").StatusCode)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/share/"+second.ULID, nil, "").StatusCode)
}

func TestShareExpiredGalleryIsGone(t *testing.T) {
	f := newAPIFixture(t)
	g := f.createGallery(t, "Old")
	photo := f.addProcessedPhoto(t, g, "a.jpg", "master-a")
	past := time.Now().Add(-time.Hour)
	f.share(t, g, services.ShareSettings{
		Selectable:     boolPtr(true),
		Downloadable:   boolPtr(true),
		Password:       strPtr("pw"),
		ExpirationDate: &past,
	})

	assert.Equal(t, http.StatusGone, f.do(t, http.MethodGet, "/api/share/"+g.ULID, nil, "").StatusCode)
	assert.Equal(t, http.StatusGone, f.do(t, http.MethodPost, "/api/share/"+g.ULID+"/unlock", map[string]string{"password": "pw"}, "").StatusCode)
	assert.Equal(t, http.StatusGone, f.do(t, http.MethodPost, "/api/share/"+g.ULID+"/photos/"+photo.ULID+"/favorite", nil, "").StatusCode)
	assert.Equal(t, http.StatusGone, f.do(t, http.MethodGet, "/api/share/"+g.ULID+"/download", nil, "").StatusCode)
}

func TestShareFavoriteChecksCurrentFlags(t *testing.T) {
	f := newAPIFixture(t)
	g := f.createGallery(t, "Selection")
	a := f.addProcessedPhoto(t, g, "a.jpg", "master-a")
	b := f.addProcessedPhoto(t, g, "b.jpg", "master-b")
	favoriteA := "/api/share/" + g.ULID + "/photos/" + a.ULID + "/favorite"
	favoriteB := "/api/share/" + g.ULID + "/photos/" + b.ULID + "/favorite"

	resp := f.do(t, http.MethodGet, "/api/share/"+g.ULID, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// the viewer loaded the page before the owner enabled selections
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, favoriteA, nil, "").StatusCode)

	f.share(t, g, services.ShareSettings{Selectable: boolPtr(true), SelectionLimit: intPtr(1)})

	resp = f.do(t, http.MethodPost, favoriteA, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result sharing.SelectionResult
	decodeBody(t, resp, &result)
	assert.True(t, result.Favorited)
	assert.EqualValues(t, 1, result.Count)
	assert.Equal(t, 1, result.Limit)

	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, favoriteB, nil, "").StatusCode)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodDelete, favoriteA, nil, "").StatusCode)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, favoriteB, nil, "").StatusCode)

	f.share(t, g, services.ShareSettings{Selectable: boolPtr(false)})
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodDelete, favoriteB, nil, "").StatusCode)
}

func TestShareLockedActionsAreDenied(t *testing.T) {
	f := newAPIFixture(t)
	g := f.createGallery(t, "Locked Actions")
	photo := f.addProcessedPhoto(t, g, "a.jpg", "master-a")
	f.share(t, g, services.ShareSettings{Selectable: boolPtr(true), Password: strPtr("pw")})

	resp := f.do(t, http.MethodPost, "/api/share/"+g.ULID+"/photos/"+photo.ULID+"/favorite", nil, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	var apiErr APIErrorResponse
	decodeBody(t, resp, &apiErr)
	require.Len(t, apiErr.Errors, 1)
	assert.Equal(t, "gallery_locked", apiErr.Errors[0].Code)
}

func TestShareDownloads(t *testing.T) {
	f := newAPIFixture(t)
	g := f.createGallery(t, "Downloads")
	a := f.addProcessedPhoto(t, g, "Ceremony.JPG", "master-a")
	f.addProcessedPhoto(t, g, "reception.png", "master-b")
	pending := &models.Photo{ULID: ulid.Make().String(), GalleryID: g.ID, Name: "late.jpg", Path: "uploads/" + g.ULID + "/late.jpg", Disk: media.DiskLocal}
	require.NoError(t, f.photos.Create(pending))

	photoURL := "/api/share/" + g.ULID + "/photos/" + a.ULID + "/download"
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, photoURL, nil, "").StatusCode)

	f.share(t, g, services.ShareSettings{Downloadable: boolPtr(true)})

	resp := f.do(t, http.MethodGet, photoURL, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "master-a", string(body))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "Ceremony.jpg")

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, photoURL+"?raw=1", nil, "").StatusCode)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodGet, "/api/share/"+g.ULID+"/photos/"+pending.ULID+"/download", nil, "").StatusCode)

	resp = f.do(t, http.MethodGet, "/api/share/"+g.ULID+"/download", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	archive, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	var names []string
	for _, file := range zr.File {
		names = append(names, file.Name)
	}
	assert.ElementsMatch(t, []string{"Ceremony.jpg", "reception.jpg"}, names)
}

func TestShareDownloadsRawWithoutPreview(t *testing.T) {
	f := newAPIFixture(t)
	g := f.createGallery(t, "Raw")
	rawKey := media.GalleryStoragePath("galleries", g.ULID) + "/raw/IMG.CR2"
	require.NoError(t, f.store.Put(context.Background(), rawKey, strings.NewReader("raw-bytes")))
	photo := &models.Photo{
		ULID:      ulid.Make().String(),
		GalleryID: g.ID,
		Name:      "IMG.CR2",
		Path:      rawKey,
		RawPath:   &rawKey,
		Disk:      media.DiskLocal,
		Status:    database.StatusDone,
	}
	require.NoError(t, f.photos.Create(photo))
	f.share(t, g, services.ShareSettings{Downloadable: boolPtr(true)})

	photoURL := "/api/share/" + g.ULID + "/photos/" + photo.ULID + "/download"
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodGet, photoURL, nil, "").StatusCode)

	resp := f.do(t, http.MethodGet, photoURL+"?raw=1", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "raw-bytes", string(body))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "IMG.cr2")

	resp = f.do(t, http.MethodGet, "/api/share/"+g.ULID+"/download", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	archive, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "IMG.cr2", zr.File[0].Name)
}

func TestShareComments(t *testing.T) {
	f := newAPIFixture(t)
	g := f.createGallery(t, "Comments")
	photo := f.addProcessedPhoto(t, g, "a.jpg", "master-a")
	commentsURL := "/api/share/" + g.ULID + "/photos/" + photo.ULID + "/comments"

	assert.Equal(t, http.StatusUnprocessableEntity, f.do(t, http.MethodPost, commentsURL, map[string]string{"author": "Ann"}, "").StatusCode)

	resp := f.do(t, http.MethodPost, commentsURL, map[string]string{"author": " Ann ", "body": "Love this one"}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodGet, commentsURL, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var comments []models.PhotoComment
	decodeBody(t, resp, &comments)
	require.Len(t, comments, 1)
	assert.Equal(t, "Ann", comments[0].Author)
	assert.Equal(t, "Love this one", comments[0].Body)
}

func TestShareViewIncludesWatermark(t *testing.T) {
	f := newAPIFixture(t)
	mark := "teams/northlight/watermark.png"
	f.team.WatermarkPath = &mark
	f.team.WatermarkPosition = models.WatermarkCenter
	f.team.WatermarkOpacity = 30
	require.NoError(t, f.teams.DB.Save(f.team).Error)

	g := f.createGallery(t, "Proofs")
	resp := f.do(t, http.MethodGet, "/api/share/"+g.ULID, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var plain ShareGalleryView
	decodeBody(t, resp, &plain)
	assert.Nil(t, plain.Watermark)
	assert.Equal(t, "Northlight Studio", plain.TeamName)

	f.share(t, g, services.ShareSettings{Watermarked: boolPtr(true)})
	resp = f.do(t, http.MethodGet, "/api/share/"+g.ULID, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var marked ShareGalleryView
	decodeBody(t, resp, &marked)
	require.NotNil(t, marked.Watermark)
	assert.Equal(t, "/media/teams/northlight/watermark.png", marked.Watermark.URL)
	assert.Equal(t, models.WatermarkCenter, marked.Watermark.Position)
	assert.Equal(t, 30, marked.Watermark.Opacity)
}

func TestShareUnknownGallery(t *testing.T) {
	f := newAPIFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/share/"+ulid.Make().String(), nil, "").StatusCode)
}

func TestPortfolio(t *testing.T) {
	f := newAPIFixture(t)
	public := f.createGallery(t, "Landscapes")
	_, err := f.gallerySvc.Update(public, services.GalleryInput{IsPublic: boolPtr(true), PortfolioOrder: intPtr(2)})
	require.NoError(t, err)
	f.addProcessedPhoto(t, public, "a.jpg", "master-a")

	first := f.createGallery(t, "Portraits")
	_, err = f.gallerySvc.Update(first, services.GalleryInput{IsPublic: boolPtr(true), PortfolioOrder: intPtr(1)})
	require.NoError(t, err)

	f.createGallery(t, "Client Work")

	expired := f.createGallery(t, "Retired")
	_, err = f.gallerySvc.Update(expired, services.GalleryInput{IsPublic: boolPtr(true)})
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	f.share(t, expired, services.ShareSettings{ExpirationDate: &past})

	resp := f.do(t, http.MethodGet, "/api/portfolio/northlight", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var views []PortfolioGalleryView
	decodeBody(t, resp, &views)
	require.Len(t, views, 2)
	assert.Equal(t, "Portraits", views[0].Name)
	assert.Nil(t, views[0].CoverURL)
	assert.Equal(t, "Landscapes", views[1].Name)
	require.NotNil(t, views[1].CoverURL)
	assert.Contains(t, *views[1].CoverURL, "/thumb/")

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/portfolio/nobody", nil, "").StatusCode)
}

func TestAssetServer(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "galleries", "g1"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "uploads", "g1"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "galleries", "g1", "a.jpg"), []byte("derivative"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "uploads", "g1", "a.jpg"), []byte("original"), 0644))

	handler := AssetServer(root, "/media/", "uploads")

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/media/galleries/g1/a.jpg", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "derivative", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Cache-Control"), "max-age=86400")

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/media/uploads/g1/a.jpg", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/media/galleries/missing.jpg", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, os.WriteFile(filepath.Join(root, "galleries", "g1", ".upload-123"), []byte("half"), 0644))
	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/media/galleries/g1/.upload-123", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "in-flight writes are hidden")

	req := httptest.NewRequest(http.MethodGet, "/media/x", nil)
	req.URL.Path = "/media/../secret"
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
