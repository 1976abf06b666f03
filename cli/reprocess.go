package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/camden-git/studiobackend/database"
	"github.com/camden-git/studiobackend/models"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const reprocessPollInterval = 2 * time.Second

var (
	reprocessGallery    string
	reprocessFailedOnly bool
	reprocessWait       time.Duration
)

var reprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Regenerate the derivatives of a gallery's photos",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		gallery, err := a.galleries.GetByULID(reprocessGallery)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("gallery %s not found", reprocessGallery)
			}
			return err
		}
		photos, err := a.photoSvc.List(gallery)
		if err != nil {
			return err
		}
		targets := selectReprocessTargets(photos, reprocessFailedOnly)
		if len(targets) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "nothing to reprocess")
			return nil
		}

		proc := a.startProcessor(nil, nil)
		defer proc.Stop()

		ids := make([]uint, 0, len(targets))
		for i := range targets {
			if err := a.photoSvc.Reprocess(&targets[i]); err != nil {
				log.Printf("Skipping photo %s: %v", targets[i].Name, err)
				continue
			}
			ids = append(ids, targets[i].ID)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), reprocessWait)
		defer cancel()
		done, failed, err := waitForPhotos(ctx, a, ids)
		fmt.Fprintf(cmd.OutOrStdout(), "reprocessed %d of %d photo(s), %d failed\n", done, len(ids), failed)
		return err
	},
}

func init() {
	reprocessCmd.Flags().StringVar(&reprocessGallery, "gallery", "", "ULID of the gallery")
	reprocessCmd.Flags().BoolVar(&reprocessFailedOnly, "failed-only", false, "only photos whose processing failed")
	reprocessCmd.Flags().DurationVar(&reprocessWait, "wait", 30*time.Minute, "how long to wait for the workers")
	_ = reprocessCmd.MarkFlagRequired("gallery")
}

func selectReprocessTargets(photos []models.Photo, failedOnly bool) []models.Photo {
	return lo.Filter(photos, func(p models.Photo, _ int) bool {
		if p.Status == database.StatusProcessing {
			return false
		}
		return !failedOnly || p.Status == database.StatusError
	})
}

// waitForPhotos polls until every photo left the pipeline.
func waitForPhotos(ctx context.Context, a *app, ids []uint) (int, int, error) {
	ticker := time.NewTicker(reprocessPollInterval)
	defer ticker.Stop()
	for {
		done, failed, open := 0, 0, 0
		for _, id := range ids {
			photo, err := a.photos.GetByID(id)
			if err != nil {
				// deleted while we waited
				continue
			}
			switch photo.Status {
			case database.StatusDone:
				done++
			case database.StatusError:
				failed++
			default:
				open++
			}
		}
		if open == 0 {
			return done, failed, nil
		}
		select {
		case <-ctx.Done():
			return done, failed, fmt.Errorf("%d photo(s) still pending: %w", open, ctx.Err())
		case <-ticker.C:
		}
	}
}
