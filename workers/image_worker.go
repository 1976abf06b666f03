package workers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/camden-git/studiobackend/database"
	"github.com/camden-git/studiobackend/media"
	"github.com/camden-git/studiobackend/models"
	"github.com/camden-git/studiobackend/prewarm"
	"github.com/camden-git/studiobackend/realtime"
	"github.com/camden-git/studiobackend/repository"
	"github.com/jpillora/backoff"
	"gorm.io/gorm"
)

// PhotoJob asks the pool to generate the derivatives of one photo.
type PhotoJob struct {
	PhotoID uint
}

// ProcessorOptions configures the worker pool.
type ProcessorOptions struct {
	QueueSize   int
	NumWorkers  int
	JobTimeout  time.Duration
	MaxAttempts int
	RetryMin    time.Duration
	RetryMax    time.Duration
}

// Lease is how long a processing claim blocks other workers.
func (o ProcessorOptions) Lease() time.Duration {
	return 2 * o.JobTimeout
}

// DerivativeGenerator produces the derivatives of a photo.
type DerivativeGenerator interface {
	Generate(ctx context.Context, in media.DerivativeInput) (media.DerivativeResult, error)
}

// Warmer is notified of freshly generated derivatives.
type Warmer interface {
	Warm(urls prewarm.PhotoURLs)
}

// EventPublisher receives processing events.
type EventPublisher interface {
	Broadcast(event realtime.Event)
}

// ImageProcessor is a fixed pool of workers consuming photo jobs.
type ImageProcessor struct {
	JobQueue chan PhotoJob
	Options  ProcessorOptions
	Wg       sync.WaitGroup
	StopChan chan struct{}
	Pending  map[uint]bool
	Mutex    sync.Mutex

	photos    repository.PhotoRepositoryInterface
	galleries repository.GalleryRepositoryInterface
	generator DerivativeGenerator
	relocator *media.Relocator
	backends  *media.Backends
	warmer    Warmer
	events    EventPublisher
	retry     *backoff.Backoff
	now       func() time.Time
	stopOnce  sync.Once
}

// ProcessorDeps groups the collaborators of the pool.
type ProcessorDeps struct {
	Photos    repository.PhotoRepositoryInterface
	Galleries repository.GalleryRepositoryInterface
	Generator DerivativeGenerator
	Relocator *media.Relocator
	Backends  *media.Backends
	Warmer    Warmer
	Events    EventPublisher
}

func NewImageProcessor(opts ProcessorOptions, deps ProcessorDeps) *ImageProcessor {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 2 * time.Minute
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.RetryMin <= 0 {
		opts.RetryMin = 5 * time.Second
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 5 * time.Minute
	}

	proc := &ImageProcessor{
		JobQueue:  make(chan PhotoJob, opts.QueueSize),
		Options:   opts,
		StopChan:  make(chan struct{}),
		Pending:   make(map[uint]bool),
		photos:    deps.Photos,
		galleries: deps.Galleries,
		generator: deps.Generator,
		relocator: deps.Relocator,
		backends:  deps.Backends,
		warmer:    deps.Warmer,
		events:    deps.Events,
		retry:     &backoff.Backoff{Min: opts.RetryMin, Max: opts.RetryMax, Factor: 2, Jitter: true},
		now:       time.Now,
	}
	proc.Wg.Add(opts.NumWorkers)
	for i := 0; i < opts.NumWorkers; i++ {
		go proc.worker(i)
	}
	log.Printf("Started %d image processing worker(s) with queue size %d", opts.NumWorkers, opts.QueueSize)
	return proc
}

func (ip *ImageProcessor) worker(id int) {
	defer ip.Wg.Done()

	log.Printf("Image worker %d started", id)
	for {
		select {
		case job, ok := <-ip.JobQueue:
			if !ok {
				log.Printf("Image worker %d stopping: Job queue closed", id)
				return
			}
			log.Printf("Worker %d: Received job for photo %d", id, job.PhotoID)
			retryAfter, retry := ip.processPhoto(job)

			ip.Mutex.Lock()
			delete(ip.Pending, job.PhotoID)
			ip.Mutex.Unlock()

			if retry {
				ip.scheduleRetry(job.PhotoID, retryAfter)
			}

		case <-ip.StopChan:
			log.Printf("Image worker %d stopping: Stop signal received", id)
			return
		}
	}
}

// processPhoto claims the photo, runs the generator under the job timeout and
// records the outcome. It reports whether and when the job should be retried.
func (ip *ImageProcessor) processPhoto(job PhotoJob) (time.Duration, bool) {
	claimed, err := ip.photos.ClaimForProcessing(job.PhotoID, ip.now(), ip.Options.Lease())
	if err != nil {
		log.Printf("Worker: ERROR claiming photo %d: %v. Skipping job.", job.PhotoID, err)
		return 0, false
	}
	if !claimed {
		log.Printf("Worker: photo %d is already being processed, skipping", job.PhotoID)
		return 0, false
	}

	photo, err := ip.photos.GetByID(job.PhotoID)
	if err != nil {
		log.Printf("Worker: ERROR loading photo %d: %v", job.PhotoID, err)
		if err := ip.photos.MarkFailed(job.PhotoID, database.StatusPending, err); err != nil {
			log.Printf("Worker: ERROR releasing claim on photo %d: %v", job.PhotoID, err)
		}
		return 0, false
	}
	gallery, err := ip.galleries.GetByID(photo.GalleryID)
	if err != nil {
		log.Printf("Worker: ERROR loading gallery of photo %d: %v", job.PhotoID, err)
		return ip.fail(photo, nil, fmt.Errorf("gallery unavailable: %w", err))
	}
	ip.publish(gallery, photo, realtime.EventPhotoProcessing, database.StatusProcessing, "")

	source := media.Location{Disk: photo.Disk, Path: photo.Path}
	if photo.RawPath != nil && *photo.RawPath != "" {
		source.Path = *photo.RawPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), ip.Options.JobTimeout)
	result, err := ip.generator.Generate(ctx, media.DerivativeInput{
		GalleryULID:      gallery.ULID,
		Name:             photo.Name,
		Source:           source,
		RawPath:          photo.RawPath,
		KeepOriginalSize: gallery.KeepOriginalSize,
		Current:          photo.Locations(),
	})
	cancel()
	if err != nil {
		return ip.fail(photo, gallery, err)
	}

	superseded := photo.Locations()
	if err := ip.photos.ApplyDerivatives(photo.ID, result, ip.now()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// deleted while processing: drop what this run placed
			log.Printf("Worker: photo %d was deleted during processing", photo.ID)
			ip.releaseBlobs(result.Locations(), nil)
			return 0, false
		}
		log.Printf("Worker: ERROR recording derivatives for photo %d: %v", photo.ID, err)
		return ip.fail(photo, gallery, err)
	}
	ip.releaseBlobs(superseded, result.Locations())

	log.Printf("Worker: Processed photo %s (%s)", photo.ULID, photo.Name)
	ip.publish(gallery, photo, realtime.EventPhotoProcessed, database.StatusDone, "")

	if ip.warmer != nil && ip.backends != nil && result.ThumbPath != nil {
		ip.warmer.Warm(prewarm.PhotoURLs{
			Public:    ip.backends.URL(media.Location{Disk: result.Disk, Path: result.MasterPath}),
			Thumbnail: ip.backends.URL(media.Location{Disk: result.Disk, Path: *result.ThumbPath}),
		})
	}
	return 0, false
}

// releaseBlobs deletes the superseded blobs that current does not reference.
// It runs only after the new locations were committed.
func (ip *ImageProcessor) releaseBlobs(superseded, current []media.Location) {
	ctx, cancel := context.WithTimeout(context.Background(), ip.Options.JobTimeout)
	defer cancel()
	if err := ip.relocator.Release(ctx, superseded, current); err != nil {
		log.Printf("Worker: failed to release superseded blobs: %v", err)
	}
}

// fail records a failed run. Unprocessable input and exhausted attempts end
// in the error state; anything else is retried after a backoff delay.
func (ip *ImageProcessor) fail(photo *models.Photo, gallery *models.Gallery, taskErr error) (time.Duration, bool) {
	permanent := errors.Is(taskErr, media.ErrUnprocessable) || photo.Attempts >= ip.Options.MaxAttempts
	status := database.StatusPending
	if permanent {
		status = database.StatusError
	}

	if err := ip.photos.MarkFailed(photo.ID, status, taskErr); err != nil {
		log.Printf("Worker: ERROR recording failure for photo %d: %v", photo.ID, err)
	}
	if gallery != nil {
		ip.publish(gallery, photo, realtime.EventPhotoFailed, status, taskErr.Error())
	}

	if permanent {
		log.Printf("Worker: photo %d failed permanently after %d attempt(s): %v", photo.ID, photo.Attempts, taskErr)
		return 0, false
	}

	delay := ip.retry.ForAttempt(float64(photo.Attempts - 1))
	log.Printf("Worker: photo %d failed (attempt %d), retrying in %s: %v", photo.ID, photo.Attempts, delay, taskErr)
	return delay, true
}

// scheduleRetry re-queues a photo after delay unless the pool stops first. A
// photo that cannot be queued stays pending for the startup requeue.
func (ip *ImageProcessor) scheduleRetry(photoID uint, delay time.Duration) {
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			ip.QueueJob(photoID)
		case <-ip.StopChan:
		}
	}()
}

func (ip *ImageProcessor) publish(gallery *models.Gallery, photo *models.Photo, eventType, status, errMsg string) {
	if ip.events == nil {
		return
	}
	ip.events.Broadcast(realtime.Event{
		Type:        eventType,
		TeamID:      gallery.TeamID,
		GalleryULID: gallery.ULID,
		PhotoULID:   photo.ULID,
		Status:      status,
		Error:       errMsg,
		Timestamp:   ip.now().Unix(),
	})
}

// QueueJob queues a photo if it is not already pending
func (ip *ImageProcessor) QueueJob(photoID uint) bool {
	ip.Mutex.Lock()
	if ip.Pending[photoID] {
		ip.Mutex.Unlock()
		return false
	}
	ip.Pending[photoID] = true
	ip.Mutex.Unlock()

	select {
	case ip.JobQueue <- PhotoJob{PhotoID: photoID}:
		log.Printf("Queued derivative job for photo %d", photoID)
		return true
	default:
		log.Printf("WARNING: Image processing job queue full. Failed to queue photo %d", photoID)
		ip.Mutex.Lock()
		delete(ip.Pending, photoID)
		ip.Mutex.Unlock()
		return false
	}
}

// RequeueUnfinished queues photos left pending or holding a stale
// processing lease, typically after a restart.
func (ip *ImageProcessor) RequeueUnfinished() (int, error) {
	photos, err := ip.photos.ListRequiringProcessing(ip.now(), ip.Options.Lease())
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, photo := range photos {
		if ip.QueueJob(photo.ID) {
			queued++
		}
	}
	log.Printf("Requeued %d of %d unfinished photo(s)", queued, len(photos))
	return queued, nil
}

func (ip *ImageProcessor) Stop() {
	ip.stopOnce.Do(func() {
		log.Println("Stopping image processor workers...")
		close(ip.StopChan)
		ip.Wg.Wait()
		log.Println("All image processor workers stopped")
	})
}
