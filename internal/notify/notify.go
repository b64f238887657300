// Package notify sends email notifications about found slots, bookings
// and errors to the configured recipients.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"

	"github.com/easyslot/easyslot/internal/config"
)

// Notifier delivers a notification message.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// EmailNotifier sends notifications over smtp with starttls.
type EmailNotifier struct {
	client     *mail.Client
	from       string
	recipients []string
	logger     *slog.Logger
}

func NewEmailNotifier(smtp config.SMTP, notification config.Notification) (*EmailNotifier, error) {
	client, err := mail.NewClient(smtp.Host,
		mail.WithPort(smtp.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(smtp.Username),
		mail.WithPassword(smtp.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return &EmailNotifier{
		client:     client,
		from:       smtp.Username,
		recipients: notification.Recipients,
		logger:     slog.With(slog.String("notifier", "email")),
	}, nil
}

func (n *EmailNotifier) Notify(ctx context.Context, subject, body string) error {
	if len(n.recipients) == 0 {
		n.logger.Warn("no recipients configured, skipping notification")
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return fmt.Errorf("invalid sender address %s: %w", n.from, err)
	}
	if err := msg.To(n.recipients...); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	n.logger.Info("notification sent", slog.String("subject", subject))
	return nil
}

// NopNotifier drops all notifications. Used when notifications are
// disabled.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, subject, body string) error {
	slog.Debug("notifications disabled, dropping message", slog.String("subject", subject))
	return nil
}
