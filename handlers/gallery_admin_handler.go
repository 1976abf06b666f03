package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/camden-git/studiobackend/media"
	"github.com/camden-git/studiobackend/models"
	"github.com/camden-git/studiobackend/realtime"
	"github.com/camden-git/studiobackend/services"
	"github.com/go-chi/chi/v5"
)

const maxUploadMemory = 32 << 20

// GalleryAdminHandler serves the owner API for galleries and their photos.
// Every gallery is resolved within the authenticated user's team.
type GalleryAdminHandler struct {
	Galleries *services.GalleryService
	Photos    *services.PhotoService
	Backends  *media.Backends
	Hub       *realtime.Hub
	now       func() time.Time
}

func NewGalleryAdminHandler(galleries *services.GalleryService, photos *services.PhotoService, backends *media.Backends, hub *realtime.Hub) *GalleryAdminHandler {
	return &GalleryAdminHandler{
		Galleries: galleries,
		Photos:    photos,
		Backends:  backends,
		Hub:       hub,
		now:       time.Now,
	}
}

type GalleryPayload struct {
	Name             *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description      *string `json:"description" validate:"omitempty,max=2000"`
	SortOrder        *string `json:"sort_order" validate:"omitempty,oneof=filename_asc filename_nat date_desc date_asc"`
	KeepOriginalSize *bool   `json:"keep_original_size"`
	IsPublic         *bool   `json:"is_public"`
	PortfolioOrder   *int    `json:"portfolio_order" validate:"omitempty,gte=0"`
}

func (p GalleryPayload) input() services.GalleryInput {
	return services.GalleryInput{
		Name:             p.Name,
		Description:      p.Description,
		SortOrder:        p.SortOrder,
		KeepOriginalSize: p.KeepOriginalSize,
		IsPublic:         p.IsPublic,
		PortfolioOrder:   p.PortfolioOrder,
	}
}

type CreateGalleryPayload struct {
	GalleryPayload
	Name string `json:"name" validate:"required,min=1,max=200"`
}

type ShareSettingsPayload struct {
	Selectable      *bool      `json:"is_share_selectable"`
	Downloadable    *bool      `json:"is_share_downloadable"`
	Watermarked     *bool      `json:"is_share_watermarked"`
	Password        *string    `json:"password" validate:"omitempty,max=72"`
	SelectionLimit  *int       `json:"share_selection_limit" validate:"omitempty,gte=0"`
	ExpirationDate  *time.Time `json:"expiration_date"`
	ClearExpiration bool       `json:"clear_expiration"`
}

// UploadResult reports the outcome of a multipart upload per file.
type UploadResult struct {
	Photos []PhotoView     `json:"photos"`
	Errors []UploadFailure `json:"errors,omitempty"`
}

type UploadFailure struct {
	Name   string `json:"name"`
	Detail string `json:"detail"`
}

func (h *GalleryAdminHandler) ListGalleries(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(w, r)
	if !ok {
		return
	}
	includeExpired, _ := strconv.ParseBool(r.URL.Query().Get("include_expired"))

	galleries, err := h.Galleries.List(user.TeamID, includeExpired)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	now := h.now()
	views := make([]AdminGalleryView, 0, len(galleries))
	for i := range galleries {
		views = append(views, h.adminView(&galleries[i], now, nil))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *GalleryAdminHandler) CreateGallery(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(w, r)
	if !ok {
		return
	}
	var payload CreateGalleryPayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	gallery, err := h.Galleries.Create(user.TeamID, payload.Name, payload.input())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.adminView(gallery, h.now(), nil))
}

// GetGallery returns the gallery with its photos in display order.
func (h *GalleryAdminHandler) GetGallery(w http.ResponseWriter, r *http.Request) {
	gallery, ok := h.ownedGallery(w, r)
	if !ok {
		return
	}
	photos, err := h.Photos.List(gallery)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	view := h.adminView(gallery, h.now(), newPhotoViews(h.Backends, photos))
	if count, err := h.Photos.CountFavorited(gallery); err == nil {
		view.FavoritedCount = count
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *GalleryAdminHandler) UpdateGallery(w http.ResponseWriter, r *http.Request) {
	gallery, ok := h.ownedGallery(w, r)
	if !ok {
		return
	}
	var payload GalleryPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	updated, err := h.Galleries.Update(gallery, payload.input())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.adminView(updated, h.now(), nil))
}

func (h *GalleryAdminHandler) UpdateShareSettings(w http.ResponseWriter, r *http.Request) {
	gallery, ok := h.ownedGallery(w, r)
	if !ok {
		return
	}
	var payload ShareSettingsPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	updated, err := h.Galleries.UpdateShareSettings(gallery, services.ShareSettings{
		Selectable:      payload.Selectable,
		Downloadable:    payload.Downloadable,
		Watermarked:     payload.Watermarked,
		Password:        payload.Password,
		SelectionLimit:  payload.SelectionLimit,
		ExpirationDate:  payload.ExpirationDate,
		ClearExpiration: payload.ClearExpiration,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.adminView(updated, h.now(), nil))
}

// DeleteGallery removes the gallery with all its photos and blobs.
func (h *GalleryAdminHandler) DeleteGallery(w http.ResponseWriter, r *http.Request) {
	gallery, ok := h.ownedGallery(w, r)
	if !ok {
		return
	}
	if err := h.Galleries.Purge(r.Context(), gallery.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadPhotos accepts one or more files in the multipart field "files".
// Every accepted file becomes a pending photo queued for processing.
func (h *GalleryAdminHandler) UploadPhotos(w http.ResponseWriter, r *http.Request) {
	gallery, ok := h.ownedGallery(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_upload", "Expected a multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		WriteAPIError(w, http.StatusBadRequest, "invalid_upload", "No files in field 'files'")
		return
	}

	result := UploadResult{Photos: []PhotoView{}}
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			result.Errors = append(result.Errors, UploadFailure{Name: header.Filename, Detail: "unreadable file"})
			continue
		}
		photo, err := h.Photos.Ingest(r.Context(), gallery, header.Filename, file)
		file.Close()
		if err != nil {
			result.Errors = append(result.Errors, UploadFailure{Name: header.Filename, Detail: err.Error()})
			continue
		}
		result.Photos = append(result.Photos, newPhotoView(h.Backends, photo))
	}

	status := http.StatusCreated
	if len(result.Photos) == 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

func (h *GalleryAdminHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	gallery, ok := h.ownedGallery(w, r)
	if !ok {
		return
	}
	photo, err := h.Photos.Get(gallery, chi.URLParam(r, "photoULID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.Photos.Delete(r.Context(), photo); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReprocessPhoto regenerates derivatives from the stored original.
func (h *GalleryAdminHandler) ReprocessPhoto(w http.ResponseWriter, r *http.Request) {
	gallery, ok := h.ownedGallery(w, r)
	if !ok {
		return
	}
	photo, err := h.Photos.Get(gallery, chi.URLParam(r, "photoULID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.Photos.Reprocess(photo); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// Events streams processing events of the user's team over a websocket.
func (h *GalleryAdminHandler) Events(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(w, r)
	if !ok {
		return
	}
	h.Hub.ServeWS(w, r, user.TeamID)
}

func (h *GalleryAdminHandler) ownedGallery(w http.ResponseWriter, r *http.Request) (*models.Gallery, bool) {
	user, ok := userFromContext(w, r)
	if !ok {
		return nil, false
	}
	gallery, err := h.Galleries.Get(user.TeamID, chi.URLParam(r, "galleryULID"))
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return gallery, true
}

func (h *GalleryAdminHandler) adminView(g *models.Gallery, now time.Time, photos []PhotoView) AdminGalleryView {
	return AdminGalleryView{
		Gallery: *g,
		Locked:  g.IsPasswordProtected(),
		Expired: g.IsExpired(now),
		Photos:  photos,
	}
}
