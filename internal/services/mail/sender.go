package mail

import (
	"context"
	"fmt"
	"log/slog"

	"tourbook/internal/config"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender builds the delivery driver selected by MAIL_DRIVER.
func NewSender(ctx context.Context, cfg config.Config, log *slog.Logger) (Sender, error) {
	switch cfg.MailDriver {
	case "log":
		return NewLogSender(cfg.MailFrom, log), nil
	case "smtp":
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom, log), nil
	case "ses":
		return NewSESSender(ctx, cfg.AWSRegion, cfg.MailFrom, log)
	default:
		return nil, fmt.Errorf("unsupported mail driver %q", cfg.MailDriver)
	}
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	from string
	log  *slog.Logger
}

// NewLogSender creates a sender for local development.
func NewLogSender(from string, log *slog.Logger) *LogSender {
	return &LogSender{from: from, log: log}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.log.Info("email (not delivered)",
		slog.String("from", s.from),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("text", msg.Text))
	return nil
}
