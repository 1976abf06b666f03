package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/camden-git/studiobackend/database"
	"github.com/camden-git/studiobackend/media"
	"github.com/camden-git/studiobackend/models"
	"github.com/camden-git/studiobackend/repository"
	"github.com/camden-git/studiobackend/services"
	"github.com/camden-git/studiobackend/sharing"
	"github.com/camden-git/studiobackend/utils"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// ShareHandler serves gallery share links. The gallery is loaded fresh on
// every request so flag changes apply immediately.
type ShareHandler struct {
	Galleries  repository.GalleryRepositoryInterface
	Photos     *services.PhotoService
	Selections *sharing.SelectionService
	Comments   repository.CommentRepositoryInterface
	Sessions   *sharing.SessionManager
	Backends   *media.Backends
	now        func() time.Time
}

func NewShareHandler(
	galleries repository.GalleryRepositoryInterface,
	photos *services.PhotoService,
	selections *sharing.SelectionService,
	comments repository.CommentRepositoryInterface,
	sessions *sharing.SessionManager,
	backends *media.Backends,
) *ShareHandler {
	return &ShareHandler{
		Galleries:  galleries,
		Photos:     photos,
		Selections: selections,
		Comments:   comments,
		Sessions:   sessions,
		Backends:   backends,
		now:        time.Now,
	}
}

type UnlockPayload struct {
	Password string `json:"password" validate:"required"`
}

type CommentPayload struct {
	Author string `json:"author" validate:"required,max=100"`
	Body   string `json:"body" validate:"required,max=2000"`
}

// UnlockInfo is returned to viewers who still need to enter the password.
type UnlockInfo struct {
	ULID   string `json:"ulid"`
	Name   string `json:"name"`
	Locked bool   `json:"locked"`
}

func shareURL(galleryULID string) string {
	return "/api/share/" + galleryULID
}

// View returns the gallery and its photos. Locked galleries redirect to the
// unlock endpoint; expired ones answer 410.
func (h *ShareHandler) View(w http.ResponseWriter, r *http.Request) {
	gallery, ok := h.loadGallery(w, r)
	if !ok {
		return
	}
	now := h.now()
	switch sharing.Evaluate(gallery, h.Sessions.IsUnlocked(r, gallery.ULID), now) {
	case sharing.Expired:
		writeDomainError(w, sharing.ErrGalleryExpired)
		return
	case sharing.RequireUnlock:
		http.Redirect(w, r, shareURL(gallery.ULID)+"/unlock", http.StatusSeeOther)
		return
	}

	photos, err := h.Photos.List(gallery)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	view := ShareGalleryView{
		ULID:        gallery.ULID,
		Name:        gallery.Name,
		Description: gallery.Description,
		State:       sharing.StateOf(gallery, now),
		Expiration:  gallery.ExpirationDate,
		Photos:      newPhotoViews(h.Backends, photos),
	}
	if gallery.Team != nil {
		view.TeamName = gallery.Team.Name
		if gallery.IsShareWatermarked {
			view.Watermark = newWatermarkView(h.Backends, gallery.Team)
		}
	}
	if gallery.IsShareSelectable {
		count, err := h.Photos.CountFavorited(gallery)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		view.Selection = &sharing.SelectionResult{Count: count, Limit: gallery.SelectionLimit()}
	}
	writeJSON(w, http.StatusOK, view)
}

// UnlockForm tells the viewer whether a password is still needed.
func (h *ShareHandler) UnlockForm(w http.ResponseWriter, r *http.Request) {
	gallery, ok := h.loadGallery(w, r)
	if !ok {
		return
	}
	switch sharing.Evaluate(gallery, h.Sessions.IsUnlocked(r, gallery.ULID), h.now()) {
	case sharing.Expired:
		writeDomainError(w, sharing.ErrGalleryExpired)
	case sharing.Allow:
		http.Redirect(w, r, shareURL(gallery.ULID), http.StatusSeeOther)
	default:
		writeJSON(w, http.StatusOK, UnlockInfo{ULID: gallery.ULID, Name: gallery.Name, Locked: true})
	}
}

// Unlock checks the share password and records the unlock in the session.
// Both JSON and form posts are accepted.
func (h *ShareHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	gallery, ok := h.loadGallery(w, r)
	if !ok {
		return
	}
	if gallery.IsExpired(h.now()) {
		writeDomainError(w, sharing.ErrGalleryExpired)
		return
	}

	var payload UnlockPayload
	if isFormPost(r) {
		payload.Password = r.PostFormValue("password")
		if payload.Password == "" {
			WriteAPIError(w, http.StatusUnprocessableEntity, "validation_failed", "Password failed 'required'")
			return
		}
	} else if !decodeJSON(w, r, &payload) {
		return
	}

	if err := sharing.CheckPassword(gallery, payload.Password); err != nil {
		log.Printf("handlers: failed unlock attempt for gallery %s from %s", gallery.ULID, r.RemoteAddr)
		writeDomainError(w, err)
		return
	}
	if err := h.Sessions.MarkUnlocked(w, r, gallery.ULID); err != nil {
		writeDomainError(w, fmt.Errorf("failed to save share session: %w", err))
		return
	}
	http.Redirect(w, r, shareURL(gallery.ULID), http.StatusSeeOther)
}

func (h *ShareHandler) Favorite(w http.ResponseWriter, r *http.Request) {
	gallery, photo, ok := h.guardPhoto(w, r, sharing.ActionFavorite)
	if !ok {
		return
	}
	result, err := h.Selections.Favorite(r.Context(), gallery, photo)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ShareHandler) Unfavorite(w http.ResponseWriter, r *http.Request) {
	gallery, photo, ok := h.guardPhoto(w, r, sharing.ActionUnfavorite)
	if !ok {
		return
	}
	result, err := h.Selections.Unfavorite(r.Context(), gallery, photo)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// DownloadPhoto streams the photo's master, or its RAW original with ?raw=1.
func (h *ShareHandler) DownloadPhoto(w http.ResponseWriter, r *http.Request) {
	_, photo, ok := h.guardPhoto(w, r, sharing.ActionDownload)
	if !ok {
		return
	}

	loc := media.Location{Disk: photo.Disk, Path: photo.Path}
	// the RAW original needs no preview
	if r.URL.Query().Get("raw") == "1" {
		if photo.RawPath == nil || *photo.RawPath == "" {
			WriteAPIError(w, http.StatusNotFound, "raw_not_available", "No RAW original for this photo")
			return
		}
		loc.Path = *photo.RawPath
	} else if !photo.HasPreview() {
		WriteAPIError(w, http.StatusConflict, "photo_pending", "Photo is still being processed")
		return
	}

	reader, err := h.Photos.Open(r.Context(), loc)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			WriteAPIError(w, http.StatusNotFound, "file_not_found", "File not found")
			return
		}
		writeDomainError(w, err)
		return
	}
	defer reader.Close()

	name := downloadName(photo, loc.Path)
	if ctype := mime.TypeByExtension(path.Ext(name)); ctype != "" {
		w.Header().Set("Content-Type", ctype)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	if _, err := io.Copy(w, reader); err != nil {
		log.Printf("handlers: download of %s interrupted: %v", loc, err)
	}
}

// DownloadGallery streams every processed photo of the gallery as a zip.
// Processed RAWs without a preview are included as their RAW original.
func (h *ShareHandler) DownloadGallery(w http.ResponseWriter, r *http.Request) {
	gallery, ok := h.loadGallery(w, r)
	if !ok {
		return
	}
	if err := sharing.Guard(sharing.ActionDownload, gallery, h.Sessions.IsUnlocked(r, gallery.ULID), h.now()); err != nil {
		writeDomainError(w, err)
		return
	}
	photos, err := h.Photos.List(gallery)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var entries []utils.ZipEntry
	for i := range photos {
		photo := photos[i]
		loc := media.Location{Disk: photo.Disk, Path: photo.Path}
		switch {
		case photo.HasPreview():
		case photo.Status == database.StatusDone && photo.RawPath != nil && *photo.RawPath != "":
			loc.Path = *photo.RawPath
		default:
			continue
		}
		entries = append(entries, utils.ZipEntry{
			Name:     downloadName(&photo, loc.Path),
			Modified: photo.UpdatedAt,
			Open: func(ctx context.Context) (io.ReadCloser, error) {
				return h.Photos.Open(ctx, loc)
			},
		})
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": gallery.Slug + ".zip"}))
	written, err := utils.StreamZip(r.Context(), w, entries)
	if err != nil {
		log.Printf("handlers: zip of gallery %s aborted after %d files: %v", gallery.ULID, written, err)
		return
	}
	log.Printf("handlers: streamed %d/%d photos of gallery %s", written, len(entries), gallery.ULID)
}

func (h *ShareHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	_, photo, ok := h.guardPhoto(w, r, sharing.ActionView)
	if !ok {
		return
	}
	comments, err := h.Comments.ListByPhoto(photo.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *ShareHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	_, photo, ok := h.guardPhoto(w, r, sharing.ActionComment)
	if !ok {
		return
	}
	var payload CommentPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	comment := &models.PhotoComment{
		PhotoID: photo.ID,
		Author:  strings.TrimSpace(payload.Author),
		Body:    strings.TrimSpace(payload.Body),
	}
	if err := h.Comments.Create(comment); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (h *ShareHandler) loadGallery(w http.ResponseWriter, r *http.Request) (*models.Gallery, bool) {
	gallery, err := h.Galleries.GetByULID(chi.URLParam(r, "galleryULID"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = services.ErrGalleryNotFound
		}
		writeDomainError(w, err)
		return nil, false
	}
	return gallery, true
}

// guardPhoto loads the gallery and photo of the request and checks action
// against the gallery's current flags.
func (h *ShareHandler) guardPhoto(w http.ResponseWriter, r *http.Request, action sharing.Action) (*models.Gallery, *models.Photo, bool) {
	gallery, ok := h.loadGallery(w, r)
	if !ok {
		return nil, nil, false
	}
	if err := sharing.Guard(action, gallery, h.Sessions.IsUnlocked(r, gallery.ULID), h.now()); err != nil {
		writeDomainError(w, err)
		return nil, nil, false
	}
	photo, err := h.Photos.Get(gallery, chi.URLParam(r, "photoULID"))
	if err != nil {
		writeDomainError(w, err)
		return nil, nil, false
	}
	return gallery, photo, true
}

// downloadName keeps the photo's name but takes the extension of the stored
// blob, since masters may have been re-encoded.
func downloadName(photo *models.Photo, key string) string {
	return strings.TrimSuffix(photo.Name, path.Ext(photo.Name)) + strings.ToLower(path.Ext(key))
}

func isFormPost(r *http.Request) bool {
	ctype, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ctype == "application/x-www-form-urlencoded" || ctype == "multipart/form-data"
}
