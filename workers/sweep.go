package workers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/camden-git/studiobackend/database"
	"github.com/camden-git/studiobackend/notify"
	"github.com/camden-git/studiobackend/repository"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const defaultSweepBatch = 500

// GalleryPurger deletes a gallery's blobs and records.
type GalleryPurger interface {
	Purge(ctx context.Context, galleryID uint) error
}

// SweepOptions configures the expiration sweep.
type SweepOptions struct {
	Driver       string
	ReminderLead time.Duration
	BatchSize    uint64
}

// SweepReport summarises one sweep run.
type SweepReport struct {
	Reminded int
	Purged   int
	Failed   int
}

// Sweeper purges expired galleries and sends expiry reminders.
type Sweeper struct {
	db        *sql.DB
	opts      SweepOptions
	galleries repository.GalleryRepositoryInterface
	purger    GalleryPurger
	notifier  notify.Notifier
	cron      *cron.Cron
	now       func() time.Time
}

func NewSweeper(db *sql.DB, opts SweepOptions, galleries repository.GalleryRepositoryInterface, purger GalleryPurger, notifier notify.Notifier) *Sweeper {
	if opts.BatchSize == 0 {
		opts.BatchSize = defaultSweepBatch
	}
	return &Sweeper{
		db:        db,
		opts:      opts,
		galleries: galleries,
		purger:    purger,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Run performs one sweep. It is safe to run repeatedly: purged galleries are
// gone and reminded galleries carry reminder_sent_at.
func (s *Sweeper) Run(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	now := s.now()

	if s.opts.ReminderLead > 0 {
		reminded, err := s.sendReminders(ctx, now)
		report.Reminded = reminded
		if err != nil {
			return report, err
		}
	}

	ids, err := database.ExpiredGalleryIDs(s.db, s.opts.Driver, now, s.opts.BatchSize)
	if err != nil {
		return report, err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.purger.Purge(ctx, id); err != nil {
			log.Printf("sweep: failed to purge gallery %d: %v", id, err)
			report.Failed++
			continue
		}
		report.Purged++
	}

	log.Printf("sweep: reminded %d, purged %d, failed %d", report.Reminded, report.Purged, report.Failed)
	return report, nil
}

func (s *Sweeper) sendReminders(ctx context.Context, now time.Time) (int, error) {
	ids, err := database.GalleriesDueForReminder(s.db, s.opts.Driver, now, s.opts.ReminderLead)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, id := range ids {
		gallery, err := s.galleries.GetByID(id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return sent, err
		}
		marked, err := s.galleries.MarkReminderSent(id, now)
		if err != nil {
			return sent, err
		}
		if !marked || gallery.ExpirationDate == nil {
			continue
		}

		notice := notify.ExpiryNotice{
			GalleryName: gallery.Name,
			GalleryULID: gallery.ULID,
			ExpiresAt:   *gallery.ExpirationDate,
		}
		if gallery.Team != nil {
			notice.TeamName = gallery.Team.Name
			if gallery.Team.NotificationEmail != nil {
				notice.Recipient = *gallery.Team.NotificationEmail
			}
		}
		if err := s.notifier.GalleryExpiringSoon(ctx, notice); err != nil {
			log.Printf("sweep: failed to send expiry reminder for gallery %s: %v", gallery.ULID, err)
			continue
		}
		sent++
	}
	return sent, nil
}

// Start runs the sweep on a cron schedule until Stop is called.
func (s *Sweeper) Start(schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := s.Run(context.Background()); err != nil {
			log.Printf("sweep: run failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	s.cron = c
	c.Start()
	log.Printf("sweep: scheduled with %q", schedule)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}
