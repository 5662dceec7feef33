package mail

import (
	"bytes"
	"context"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"tourbook/internal/services/auth"
)

const (
	subjectWelcome = "Welcome to the Tourbook Family!"
	subjectReset   = "Your password reset token (valid for only 10 minutes)"
)

type templateData struct {
	FirstName string
	URL       string
}

var htmlTemplates = htmltemplate.Must(htmltemplate.New("mail").Parse(`
{{define "welcome"}}<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif;">
  <p>Hi {{.FirstName}},</p>
  <p>Welcome to Tourbook, we're glad to have you 🎉</p>
  <p>Upload a profile photo and start exploring tours:</p>
  <p><a href="{{.URL}}">Upload user photo</a></p>
</body></html>{{end}}
{{define "reset"}}<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif;">
  <p>Hi {{.FirstName}},</p>
  <p>Forgot your password? Submit a PATCH request with your new password and passwordConfirm to:</p>
  <p><a href="{{.URL}}">{{.URL}}</a></p>
  <p>If you didn't forget your password, please ignore this email.</p>
</body></html>{{end}}
`))

var textTemplates = texttemplate.Must(texttemplate.New("mail").Parse(`
{{define "welcome"}}Hi {{.FirstName}},

Welcome to Tourbook, we're glad to have you.
Upload a profile photo and start exploring tours: {{.URL}}
{{end}}
{{define "reset"}}Hi {{.FirstName}},

Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: {{.URL}}
If you didn't forget your password, please ignore this email.
{{end}}
`))

// Mailer renders account emails and hands them to a Sender.
type Mailer struct {
	sender Sender
}

// NewMailer creates a mailer on top of sender.
func NewMailer(sender Sender) *Mailer {
	return &Mailer{sender: sender}
}

// SendWelcome greets a freshly signed up user.
func (m *Mailer) SendWelcome(ctx context.Context, user *auth.User, url string) error {
	return m.send(ctx, user, "welcome", subjectWelcome, url)
}

// SendPasswordReset mails the reset link carrying the plaintext token.
func (m *Mailer) SendPasswordReset(ctx context.Context, user *auth.User, resetURL string) error {
	return m.send(ctx, user, "reset", subjectReset, resetURL)
}

func (m *Mailer) send(ctx context.Context, user *auth.User, name, subject, url string) error {
	data := templateData{FirstName: firstName(user.Name), URL: url}

	var html, text bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&html, name, data); err != nil {
		return err
	}
	if err := textTemplates.ExecuteTemplate(&text, name, data); err != nil {
		return err
	}

	return m.sender.Send(ctx, Message{
		To:      user.Email,
		Subject: subject,
		HTML:    html.String(),
		Text:    strings.TrimSpace(text.String()),
	})
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}
