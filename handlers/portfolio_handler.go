package handlers

import (
	"errors"
	"net/http"

	"github.com/camden-git/studiobackend/media"
	"github.com/camden-git/studiobackend/repository"
	"github.com/camden-git/studiobackend/services"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// PortfolioHandler lists a team's public galleries.
type PortfolioHandler struct {
	Teams     repository.TeamRepositoryInterface
	Galleries *services.GalleryService
	Photos    *services.PhotoService
	Backends  *media.Backends
}

func NewPortfolioHandler(teams repository.TeamRepositoryInterface, galleries *services.GalleryService, photos *services.PhotoService, backends *media.Backends) *PortfolioHandler {
	return &PortfolioHandler{Teams: teams, Galleries: galleries, Photos: photos, Backends: backends}
}

// List returns the public, unexpired galleries of the team in portfolio
// order. The cover is the first processed photo in gallery order.
func (h *PortfolioHandler) List(w http.ResponseWriter, r *http.Request) {
	team, err := h.Teams.GetBySlug(chi.URLParam(r, "teamSlug"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "team_not_found", "Team not found")
			return
		}
		writeDomainError(w, err)
		return
	}

	galleries, err := h.Galleries.Portfolio(team.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	views := make([]PortfolioGalleryView, 0, len(galleries))
	for i := range galleries {
		g := &galleries[i]
		view := PortfolioGalleryView{
			ULID:        g.ULID,
			Name:        g.Name,
			Slug:        g.Slug,
			Description: g.Description,
			Order:       g.PortfolioOrder,
			CreatedAt:   g.CreatedAt,
		}
		photos, err := h.Photos.List(g)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		for j := range photos {
			if photos[j].HasPreview() {
				cover := h.Backends.URL(media.Location{Disk: photos[j].Disk, Path: *photos[j].ThumbPath})
				view.CoverURL = &cover
				break
			}
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, views)
}
