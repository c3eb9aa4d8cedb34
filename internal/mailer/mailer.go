// Package mailer sends transactional email over SMTP.
package mailer

import (
	"fmt"
	"time"

	"portal/internal/config"
	"portal/internal/middleware"

	"gopkg.in/gomail.v2"
)

// Mailer sends a single HTML email.
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

// SMTPMailer delivers mail through a configured SMTP relay.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSMTPMailer builds a mailer from application configuration.
func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
	}
}

func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(m.host, m.port, m.username, m.password)
	if err := d.DialAndSend(msg); err != nil {
		middleware.MailerErrors.Inc()
		return err
	}
	return nil
}

// VerificationCodeHTML renders the email body for an email verification code.
func VerificationCodeHTML(code string, ttl time.Duration) string {
	return fmt.Sprintf(
		`<p>Hello,</p><p>Your verification code is <b style="font-size:18px;">%s</b>.</p><p>It expires in %d minutes. Do not share it with anyone.</p>`,
		code, int(ttl.Minutes()))
}

// PasswordResetHTML renders the email body for a password reset link.
func PasswordResetHTML(link string, ttl time.Duration) string {
	return fmt.Sprintf(
		`<p>Hello,</p><p>A password reset was requested for your account. <a href="%s">Reset your password</a>.</p><p>The link expires in %d minutes. If you did not request this, you can ignore this email.</p>`,
		link, int(ttl.Minutes()))
}
