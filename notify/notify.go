package notify

import (
	"context"
	"log"
	"sync"
	"time"
)

// SelectionNotice tells a team that a client filled a gallery's selection.
type SelectionNotice struct {
	Recipient   string
	TeamName    string
	GalleryName string
	GalleryULID string
	Limit       int
}

// ExpiryNotice warns a team that a gallery will expire soon.
type ExpiryNotice struct {
	Recipient   string
	TeamName    string
	GalleryName string
	GalleryULID string
	ExpiresAt   time.Time
}

// Notifier delivers owner notifications.
type Notifier interface {
	SelectionLimitReached(ctx context.Context, notice SelectionNotice) error
	GalleryExpiringSoon(ctx context.Context, notice ExpiryNotice) error
}

// LogNotifier writes notifications to the log. It is used when no SMTP server
// is configured.
type LogNotifier struct{}

func (LogNotifier) SelectionLimitReached(_ context.Context, n SelectionNotice) error {
	log.Printf("notify: selection limit of %d reached for gallery %s (%s), recipient %q", n.Limit, n.GalleryName, n.GalleryULID, n.Recipient)
	return nil
}

func (LogNotifier) GalleryExpiringSoon(_ context.Context, n ExpiryNotice) error {
	log.Printf("notify: gallery %s (%s) expires at %s, recipient %q", n.GalleryName, n.GalleryULID, n.ExpiresAt.Format(time.RFC3339), n.Recipient)
	return nil
}

// Async delivers through next on background goroutines so callers never wait
// on the transport. Delivery errors are logged.
type Async struct {
	next    Notifier
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsync(next Notifier, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Async{next: next, timeout: timeout}
}

func (a *Async) SelectionLimitReached(_ context.Context, n SelectionNotice) error {
	a.dispatch("selection limit", func(ctx context.Context) error {
		return a.next.SelectionLimitReached(ctx, n)
	})
	return nil
}

func (a *Async) GalleryExpiringSoon(_ context.Context, n ExpiryNotice) error {
	a.dispatch("expiry reminder", func(ctx context.Context) error {
		return a.next.GalleryExpiringSoon(ctx, n)
	})
	return nil
}

// the request context is not reused: it ends when the handler returns
func (a *Async) dispatch(kind string, send func(ctx context.Context) error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := send(ctx); err != nil {
			log.Printf("notify: failed to deliver %s notification: %v", kind, err)
		}
	}()
}

// Wait blocks until every dispatched notification finished.
func (a *Async) Wait() {
	a.wg.Wait()
}
