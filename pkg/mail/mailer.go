package mail

import (
	"crypto/tls"
	"fmt"
	"io"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/model"
)

// Mailer delivers rendered documents over SMTP.
type Mailer struct {
	config model.SMTPConfig
}

// NewMailer creates a mailer from SMTP configuration.
func NewMailer(config model.SMTPConfig) *Mailer {
	return &Mailer{config: config}
}

func (m *Mailer) dialer() *gomail.Dialer {
	dialer := gomail.NewDialer(m.config.Host, m.config.Port, m.config.Username, m.config.Password)
	if m.config.UseTLS {
		dialer.TLSConfig = &tls.Config{
			InsecureSkipVerify: m.config.SkipTLSVerify,
			ServerName:         m.config.Host,
		}
	} else {
		dialer.TLSConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
		dialer.SSL = false
	}
	return dialer
}

// TestConnection dials the SMTP server and closes the connection.
func (m *Mailer) TestConnection() error {
	if m.config.Host == "" {
		return fmt.Errorf("SMTP host is required")
	}
	if m.config.Port == 0 {
		return fmt.Errorf("SMTP port is required")
	}
	if m.config.From == "" {
		return fmt.Errorf("from address is required")
	}

	closer, err := m.dialer().Dial()
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	return closer.Close()
}

// SendDocument emails a rendered document as an attachment.
func (m *Mailer) SendDocument(recipients []string, subject, body string, attachment []byte, filename string) error {
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients specified")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.config.From)
	msg.SetHeader("To", recipients...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)
	msg.Attach(filename, gomail.SetCopyFunc(func(w io.Writer) error {
		_, err := w.Write(attachment)
		return err
	}))

	if err := m.dialer().DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// InterpolateTemplate replaces {name} placeholders in subject and body
// templates with values from vars.
func InterpolateTemplate(template string, vars map[string]string) string {
	result := template
	for key, value := range vars {
		result = strings.ReplaceAll(result, "{"+key+"}", value)
	}
	return result
}
