// Package mail provides the SMTP delivery channel used by the weekly digest.
package mail

import (
	"gopkg.in/gomail.v2"
)

// Mailer sends plain HTML emails.
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

// SMTPMailer is the gomail-backed Mailer.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer creates a mailer for the given SMTP account.
func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// Send implements Mailer.
func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)
	return m.dialer.DialAndSend(msg)
}

// compile-time check
var _ Mailer = (*SMTPMailer)(nil)
