package mail

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender delivers through an SMTP relay.
type SMTPSender struct {
	dialer dialer
	from   string
	log    *slog.Logger
}

// NewSMTPSender creates an SMTP sender. Credentials may be empty for
// relays that accept unauthenticated mail.
func NewSMTPSender(host string, port int, user, pass, from string, log *slog.Logger) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, user, pass),
		from:   from,
		log:    log,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	m.AddAlternative("text/html", msg.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	s.log.Info("email sent", slog.String("to", msg.To), slog.String("subject", msg.Subject))
	return nil
}
