package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/camden-git/studiobackend/services"
	"github.com/camden-git/studiobackend/sharing"
	"github.com/go-playground/validator/v10"
)

// APIErrorDetail represents a single error in the standardized error response.
type APIErrorDetail struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// APIErrorResponse represents the standardized error response body.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

// WriteAPIError writes a standardized error response with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	resp := APIErrorResponse{
		Errors: []APIErrorDetail{
			{
				Code:   code,
				Status: strconv.Itoa(httpStatus),
				Detail: detail,
			},
		},
	}

	_ = json.NewEncoder(w).Encode(resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Error encoding JSON response: %v", err)
		}
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeJSON decodes the request body into dst and validates it. On failure
// the error response has been written and false is returned.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid request payload")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		WriteAPIError(w, http.StatusUnprocessableEntity, "validation_failed", validationDetail(err))
		return false
	}
	return true
}

func validationDetail(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed '%s'", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// writeDomainError maps service and access-control errors to API errors.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrGalleryNotFound):
		WriteAPIError(w, http.StatusNotFound, "gallery_not_found", "Gallery not found")
	case errors.Is(err, services.ErrPhotoNotFound):
		WriteAPIError(w, http.StatusNotFound, "photo_not_found", "Photo not found")
	case errors.Is(err, services.ErrInvalidSortOrder):
		WriteAPIError(w, http.StatusUnprocessableEntity, "invalid_sort_order", "Invalid sort order")
	case errors.Is(err, services.ErrUnsupportedFile):
		WriteAPIError(w, http.StatusUnsupportedMediaType, "unsupported_file", err.Error())
	case errors.Is(err, services.ErrPhotoBusy):
		WriteAPIError(w, http.StatusConflict, "photo_busy", "Photo is being processed")
	case errors.Is(err, sharing.ErrGalleryExpired):
		WriteAPIError(w, http.StatusGone, "gallery_expired", "This gallery has expired")
	case errors.Is(err, sharing.ErrGalleryLocked):
		WriteAPIError(w, http.StatusForbidden, "gallery_locked", "This gallery is password protected")
	case errors.Is(err, sharing.ErrActionNotAllowed):
		WriteAPIError(w, http.StatusForbidden, "action_not_allowed", "This action is not enabled for the gallery")
	case errors.Is(err, sharing.ErrInvalidPassword):
		WriteAPIError(w, http.StatusUnauthorized, "invalid_password", "Invalid password")
	case errors.Is(err, sharing.ErrSelectionLimitReached):
		WriteAPIError(w, http.StatusConflict, "selection_limit_reached", "The selection limit has been reached")
	default:
		log.Printf("handlers: internal error: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}
