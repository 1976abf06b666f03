package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/camden-git/studiobackend/config"
	"github.com/camden-git/studiobackend/database"
	"github.com/camden-git/studiobackend/media"
	"github.com/camden-git/studiobackend/notify"
	"github.com/camden-git/studiobackend/prewarm"
	"github.com/camden-git/studiobackend/repository"
	"github.com/camden-git/studiobackend/services"
	"github.com/camden-git/studiobackend/workers"
	"gorm.io/gorm"
)

const notifyTimeout = 30 * time.Second

// app holds the components shared by the commands.
type app struct {
	cfg   config.Config
	db    *gorm.DB
	sqlDB *sql.DB

	local     *media.LocalStorage
	backends  *media.Backends
	relocator *media.Relocator
	generator *media.DerivativeGenerator

	galleries *repository.GalleryRepository
	photos    *repository.PhotoRepository
	teams     *repository.TeamRepository
	users     repository.UserRepository
	comments  *repository.CommentRepository

	gallerySvc *services.GalleryService
	photoSvc   *services.PhotoService
	notifier   *notify.Async
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	db, err := database.InitGormDB(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}

	local, err := media.NewLocalStorage(cfg.LocalStoragePath, cfg.LocalPublicURL)
	if err != nil {
		return nil, err
	}
	stores := map[media.Disk]media.Store{media.DiskLocal: local}
	if cfg.S3Bucket != "" {
		s3Store, err := media.NewS3Storage(ctx, media.S3Options{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			PublicURL:    cfg.S3PublicURL,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		stores[media.DiskS3] = s3Store
	}
	durable, err := media.ParseDisk(cfg.DurableDisk)
	if err != nil {
		return nil, err
	}
	backends, err := media.NewBackends(stores, durable)
	if err != nil {
		return nil, err
	}
	relocator := media.NewRelocator(backends)

	rawExtractor := media.NewRawPreviewExtractor(cfg.ExifToolPath, cfg.ExifToolTimeout)
	if !rawExtractor.Available() {
		log.Printf("Warning: %s not found, RAW uploads will be kept without a preview", cfg.ExifToolPath)
	}
	generator := media.NewDerivativeGenerator(media.DerivativeConfig{
		MasterMaxDimension:    cfg.MasterMaxDimension,
		ThumbnailMaxDimension: cfg.ThumbnailMaxDimension,
		StagingRoot:           cfg.StagingRoot,
		Collection:            cfg.GalleryCollection,
	}, backends, relocator, rawExtractor)

	a := &app{
		cfg:       cfg,
		db:        db,
		sqlDB:     sqlDB,
		local:     local,
		backends:  backends,
		relocator: relocator,
		generator: generator,
		galleries: repository.NewGalleryRepository(db),
		photos:    repository.NewPhotoRepository(db),
		teams:     repository.NewTeamRepository(db),
		users:     repository.NewGormUserRepository(db),
		comments:  repository.NewCommentRepository(db),
	}
	a.gallerySvc = services.NewGalleryService(a.galleries, a.photos, relocator)
	a.photoSvc = services.NewPhotoService(a.photos, local, relocator, nil)
	a.notifier = notify.NewAsync(newNotifier(cfg), notifyTimeout)
	return a, nil
}

func newNotifier(cfg config.Config) notify.Notifier {
	if cfg.SMTPHost == "" {
		log.Printf("SMTP_HOST not set, notifications are logged only")
		return notify.LogNotifier{}
	}
	return notify.NewMailNotifier(notify.MailOptions{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		BaseURL:  cfg.BaseURL,
	})
}

// startProcessor starts the derivative worker pool and hooks it into the
// photo service.
func (a *app) startProcessor(warmer workers.Warmer, events workers.EventPublisher) *workers.ImageProcessor {
	proc := workers.NewImageProcessor(workers.ProcessorOptions{
		QueueSize:   a.cfg.ImageQueueSize,
		NumWorkers:  a.cfg.NumImageWorkers,
		JobTimeout:  a.cfg.JobTimeout,
		MaxAttempts: a.cfg.JobMaxAttempts,
	}, workers.ProcessorDeps{
		Photos:    a.photos,
		Galleries: a.galleries,
		Generator: a.generator,
		Relocator: a.relocator,
		Backends:  a.backends,
		Warmer:    warmer,
		Events:    events,
	})
	a.photoSvc.SetQueue(proc)
	return proc
}

func (a *app) newPrewarmer() *prewarm.Prewarmer {
	return prewarm.New(prewarm.Options{
		Production:          a.cfg.IsProduction(),
		ProxyURL:            a.cfg.ImageProxyURL,
		ThumbnailDimension:  a.cfg.ThumbnailMaxDimension,
		LargeThumbDimension: a.cfg.LargeThumbDimension,
		RatePerSecond:       a.cfg.PrewarmRatePerSec,
	})
}

func (a *app) newSweeper() *workers.Sweeper {
	return workers.NewSweeper(a.sqlDB, workers.SweepOptions{
		Driver:       a.cfg.DatabaseDriver,
		ReminderLead: time.Duration(a.cfg.ReminderLeadDays) * 24 * time.Hour,
	}, a.galleries, a.gallerySvc, a.notifier)
}

func (a *app) Close() {
	a.notifier.Wait()
	if err := a.sqlDB.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}
