package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/camden-git/studiobackend/handlers"
	"github.com/camden-git/studiobackend/realtime"
	"github.com/camden-git/studiobackend/sharing"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the derivative workers and the expiration sweep",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		hub := realtime.NewHub()
		go hub.Run()

		warmer := a.newPrewarmer()
		if warmer.Enabled() {
			log.Printf("Prewarming image proxy at %s", cfg.ImageProxyURL)
		}
		proc := a.startProcessor(warmer, hub)
		defer warmer.Wait()
		defer proc.Stop()
		if _, err := proc.RequeueUnfinished(); err != nil {
			log.Printf("Warning: failed to requeue unfinished photos: %v", err)
		}

		sweeper := a.newSweeper()
		if err := sweeper.Start(cfg.SweepSchedule); err != nil {
			return err
		}
		defer sweeper.Stop()

		galleryHandler := handlers.NewGalleryAdminHandler(a.gallerySvc, a.photoSvc, a.backends, hub)
		selections := sharing.NewSelectionService(a.galleries, a.photos, a.notifier)
		sessions := sharing.NewSessionManager(cfg.SessionSecret, cfg.IsProduction())
		router := handlers.NewRouter(handlers.RouterDeps{
			Auth:               handlers.NewAuthHandler(a.users, []byte(cfg.JWTSecret), cfg.JWTExpiration),
			Galleries:          galleryHandler,
			Share:              handlers.NewShareHandler(a.galleries, a.photoSvc, selections, a.comments, sessions, a.backends),
			Portfolio:          handlers.NewPortfolioHandler(a.teams, a.gallerySvc, a.photoSvc, a.backends),
			UserRepo:           a.users,
			JWTSecret:          []byte(cfg.JWTSecret),
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
			AssetRoot:          a.local.BasePath(),
			AssetPrefix:        assetPrefix(cfg.LocalPublicURL),
		})

		server := &http.Server{
			Addr:        ":" + cfg.Port,
			Handler:     router,
			ReadTimeout: 60 * time.Second,
			IdleTimeout: 120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Printf("Server listening on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

// assetPrefix returns the URL path the local store is served under, with a
// trailing slash. It is empty when local assets are served by another host.
func assetPrefix(publicURL string) string {
	u, err := url.Parse(publicURL)
	if err != nil || strings.Trim(u.Path, "/") == "" {
		return ""
	}
	return strings.TrimRight(u.Path, "/") + "/"
}
