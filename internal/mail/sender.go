// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

// Package mail implements outbound email delivery over SMTP. The Sender
// satisfies auth.Mailer; LogSender is a development stand-in that logs
// instead of dialing.
package mail

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"strings"

	"github.com/samber/oops"
	"gopkg.in/gomail.v2"

	"github.com/lockbird/lockbird/internal/auth"
)

var verificationTmpl = template.Must(template.New("verification").Parse(`
<h1>Hello {{.Name}}!</h1>
<p>Please verify your email address by clicking the link below:</p>
<a href="{{.URL}}">Verify Email</a>
<p>If you didn't create an account, you can safely ignore this email.</p>
`))

var resetTmpl = template.Must(template.New("reset").Parse(`
<h1>Hello {{.Name}}!</h1>
<p>Someone requested a password reset for your account.</p>
<p>Click the link below to reset your password:</p>
<a href="{{.URL}}">Reset Password</a>
<p>If you didn't request this, you can safely ignore this email.</p>
<p>This link will expire in 1 hour.</p>
`))

// Dialer sends an assembled message. *gomail.Dialer satisfies it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Sender delivers verification and password reset email over SMTP.
type Sender struct {
	dialer      Dialer
	from        string
	frontendURL string
}

var _ auth.Mailer = (*Sender)(nil)

// NewSender builds an SMTP-backed Sender. frontendURL is the base URL
// embedded in verification and reset links.
func NewSender(host string, port int, username, password, from, frontendURL string) *Sender {
	return &Sender{
		dialer:      gomail.NewDialer(host, port, username, password),
		from:        from,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// NewSenderWithDialer is NewSender with an injected dialer, for tests.
func NewSenderWithDialer(dialer Dialer, from, frontendURL string) *Sender {
	return &Sender{
		dialer:      dialer,
		from:        from,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// SendVerificationEmail implements auth.Mailer.
func (s *Sender) SendVerificationEmail(ctx context.Context, to, name, token string) error {
	url := s.frontendURL + "/auth/verify-email?token=" + token
	if err := s.send(ctx, to, "Verify your email address", verificationTmpl, name, url); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("kind", "verification").
			Wrap(err)
	}
	return nil
}

// SendPasswordResetEmail implements auth.Mailer.
func (s *Sender) SendPasswordResetEmail(ctx context.Context, to, name, token string) error {
	url := s.frontendURL + "/auth/reset-password?token=" + token
	if err := s.send(ctx, to, "Reset your password", resetTmpl, name, url); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("kind", "password_reset").
			Wrap(err)
	}
	return nil
}

func (s *Sender) send(ctx context.Context, to, subject string, tmpl *template.Template, name, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if name == "" {
		name = "there"
	}
	var body bytes.Buffer
	if err := tmpl.Execute(&body, struct{ Name, URL string }{name, url}); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body.String())

	return s.dialer.DialAndSend(m)
}

// LogSender logs outbound mail instead of sending it. Used when no SMTP
// host is configured so the full flow stays exercisable in development.
type LogSender struct {
	logger *slog.Logger
}

var _ auth.Mailer = (*LogSender)(nil)

// NewLogSender builds a LogSender. A nil logger uses slog.Default().
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// SendVerificationEmail implements auth.Mailer.
func (s *LogSender) SendVerificationEmail(ctx context.Context, to, name, token string) error {
	s.logger.InfoContext(ctx, "verification email (log-only mailer)",
		slog.String("to", to),
		slog.String("token", token))
	return nil
}

// SendPasswordResetEmail implements auth.Mailer.
func (s *LogSender) SendPasswordResetEmail(ctx context.Context, to, name, token string) error {
	s.logger.InfoContext(ctx, "password reset email (log-only mailer)",
		slog.String("to", to),
		slog.String("token", token))
	return nil
}
