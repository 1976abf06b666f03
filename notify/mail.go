package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-mail/mail"
)

// MailOptions configures the SMTP notifier.
type MailOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// BaseURL is prefixed to share links in messages
	BaseURL string
}

type mailSender interface {
	DialAndSend(m ...*mail.Message) error
}

// MailNotifier sends notifications as plain text email.
type MailNotifier struct {
	opts   MailOptions
	sender mailSender
}

func NewMailNotifier(opts MailOptions) *MailNotifier {
	return &MailNotifier{
		opts:   opts,
		sender: mail.NewDialer(opts.Host, opts.Port, opts.Username, opts.Password),
	}
}

func (n *MailNotifier) SelectionLimitReached(ctx context.Context, notice SelectionNotice) error {
	subject := fmt.Sprintf("Selection complete: %s", notice.GalleryName)
	body := fmt.Sprintf(
		"Your client finished selecting photos in %q.\n\nAll %d selections are used.\n\n%s\n",
		notice.GalleryName, notice.Limit, n.shareLink(notice.GalleryULID),
	)
	return n.send(ctx, notice.Recipient, subject, body)
}

func (n *MailNotifier) GalleryExpiringSoon(ctx context.Context, notice ExpiryNotice) error {
	subject := fmt.Sprintf("Gallery expiring soon: %s", notice.GalleryName)
	body := fmt.Sprintf(
		"The gallery %q expires on %s.\nAfter that date its photos are deleted.\n\n%s\n",
		notice.GalleryName, notice.ExpiresAt.UTC().Format("January 2, 2006"), n.shareLink(notice.GalleryULID),
	)
	return n.send(ctx, notice.Recipient, subject, body)
}

func (n *MailNotifier) shareLink(galleryULID string) string {
	return n.opts.BaseURL + "/share/" + galleryULID
}

func (n *MailNotifier) send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		log.Printf("notify: no recipient for %q, skipping email", subject)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetHeader("From", n.opts.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetDateHeader("Date", time.Now())
	m.SetBody("text/plain", body)

	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	log.Printf("notify: sent %q to %s", subject, to)
	return nil
}
