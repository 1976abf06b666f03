package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/camden-git/studiobackend/config"
	"github.com/camden-git/studiobackend/repository"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

const requestTimeout = 60 * time.Second

// RouterDeps collects the handlers mounted by NewRouter.
type RouterDeps struct {
	Auth      *AuthHandler
	Galleries *GalleryAdminHandler
	Share     *ShareHandler
	Portfolio *PortfolioHandler
	UserRepo  repository.UserRepository
	JWTSecret []byte

	CORSAllowedOrigins []string

	// local store root and the URL path it is served under, e.g. "/media/"
	AssetRoot   string
	AssetPrefix string
}

// NewRouter builds the HTTP API. Streaming routes (downloads, websocket)
// are mounted outside the request timeout.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   d.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)

	r.Route("/api", func(r chi.Router) {
		r.With(middleware.Timeout(requestTimeout)).Post("/auth/login", d.Auth.Login)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.UserRepo, d.JWTSecret))

			r.Get("/admin/events", d.Galleries.Events)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(requestTimeout))
				r.Get("/auth/me", d.Auth.CurrentUser)

				r.Route("/admin/galleries", func(r chi.Router) {
					r.Get("/", d.Galleries.ListGalleries)
					r.Post("/", d.Galleries.CreateGallery)
					r.Route("/{galleryULID}", func(r chi.Router) {
						r.Get("/", d.Galleries.GetGallery)
						r.Patch("/", d.Galleries.UpdateGallery)
						r.Delete("/", d.Galleries.DeleteGallery)
						r.Put("/share", d.Galleries.UpdateShareSettings)
						r.Post("/photos", d.Galleries.UploadPhotos)
						r.Delete("/photos/{photoULID}", d.Galleries.DeletePhoto)
						r.Post("/photos/{photoULID}/reprocess", d.Galleries.ReprocessPhoto)
					})
				})
			})
		})

		r.Route("/share/{galleryULID}", func(r chi.Router) {
			r.Get("/download", d.Share.DownloadGallery)
			r.Get("/photos/{photoULID}/download", d.Share.DownloadPhoto)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(requestTimeout))
				r.Get("/", d.Share.View)
				r.Get("/unlock", d.Share.UnlockForm)
				r.Post("/unlock", d.Share.Unlock)
				r.Post("/photos/{photoULID}/favorite", d.Share.Favorite)
				r.Delete("/photos/{photoULID}/favorite", d.Share.Unfavorite)
				r.Get("/photos/{photoULID}/comments", d.Share.ListComments)
				r.Post("/photos/{photoULID}/comments", d.Share.CreateComment)
			})
		})

		r.With(middleware.Timeout(requestTimeout)).Get("/portfolio/{teamSlug}", d.Portfolio.List)
	})

	if d.AssetRoot != "" && d.AssetPrefix != "" {
		r.Get(d.AssetPrefix+"*", AssetServer(d.AssetRoot, d.AssetPrefix, config.DefaultUploadsPrefix))
		log.Printf("Registered asset server at %s*", d.AssetPrefix)
	}

	return r
}
