package notify

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-mail/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	messages []*mail.Message
	err      error
}

func (f *fakeSender) DialAndSend(m ...*mail.Message) error {
	f.messages = append(f.messages, m...)
	return f.err
}

func TestMailNotifier_SelectionLimitReached(t *testing.T) {
	sender := &fakeSender{}
	n := NewMailNotifier(MailOptions{From: "studio@example.com", BaseURL: "https://photos.example"})
	n.sender = sender

	err := n.SelectionLimitReached(context.Background(), SelectionNotice{
		Recipient:   "owner@example.com",
		GalleryName: "Wedding",
		GalleryULID: "01HXYZ",
		Limit:       3,
	})
	require.NoError(t, err)
	require.Len(t, sender.messages, 1)

	m := sender.messages[0]
	assert.Equal(t, []string{"owner@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Selection complete: Wedding"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "https://photos.example/share/01HXYZ")
}

func TestMailNotifier_SkipsWithoutRecipient(t *testing.T) {
	sender := &fakeSender{}
	n := NewMailNotifier(MailOptions{})
	n.sender = sender

	require.NoError(t, n.GalleryExpiringSoon(context.Background(), ExpiryNotice{GalleryName: "x"}))
	assert.Empty(t, sender.messages)
}

func TestMailNotifier_SendError(t *testing.T) {
	n := NewMailNotifier(MailOptions{})
	n.sender = &fakeSender{err: errors.New("connection refused")}

	err := n.GalleryExpiringSoon(context.Background(), ExpiryNotice{Recipient: "a@b.c", ExpiresAt: time.Now()})
	assert.ErrorContains(t, err, "connection refused")
}

type recordingNotifier struct {
	mu         sync.Mutex
	selections []SelectionNotice
	expiries   []ExpiryNotice
}

func (r *recordingNotifier) SelectionLimitReached(_ context.Context, n SelectionNotice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selections = append(r.selections, n)
	return nil
}

func (r *recordingNotifier) GalleryExpiringSoon(_ context.Context, n ExpiryNotice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expiries = append(r.expiries, n)
	return errors.New("ignored")
}

func TestAsync_DeliversInBackground(t *testing.T) {
	rec := &recordingNotifier{}
	async := NewAsync(rec, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, async.SelectionLimitReached(ctx, SelectionNotice{GalleryULID: "a"}))
	require.NoError(t, async.GalleryExpiringSoon(ctx, ExpiryNotice{GalleryULID: "b"}))
	cancel()
	async.Wait()

	assert.Len(t, rec.selections, 1)
	assert.Len(t, rec.expiries, 1)
}

func TestLogNotifier(t *testing.T) {
	var n Notifier = LogNotifier{}
	assert.NoError(t, n.SelectionLimitReached(context.Background(), SelectionNotice{}))
	assert.NoError(t, n.GalleryExpiringSoon(context.Background(), ExpiryNotice{}))
}
