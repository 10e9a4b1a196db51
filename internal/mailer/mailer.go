// Package mailer submits rendered messages to the configured SMTP relay.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/jordan-wright/email"

	"github.com/mailfold/mailfold/internal/config"
	mailaddr "github.com/mailfold/mailfold/internal/email"
)

// Message is one fully rendered email for one recipient.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Transport attempts one delivery and reports success or a transport
// error. No retries: a failed delivery is the caller's to account for.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
}

// SMTP delivers messages through a single relay using SASL PLAIN auth.
type SMTP struct {
	cfg    config.SMTPConfig
	sender config.SenderConfig
	logger *slog.Logger
}

func NewSMTP(cfg config.SMTPConfig, sender config.SenderConfig, logger *slog.Logger) *SMTP {
	return &SMTP{
		cfg:    cfg,
		sender: sender,
		logger: logger.With("component", "mailer"),
	}
}

// Send builds an RFC 5322 message and submits it to the relay. One dial
// per message; the relay connection is not pooled.
func (s *SMTP) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := s.buildMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	client, err := s.dial()
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
	}
	defer client.Close()

	client.CommandTimeout = s.cfg.Timeout
	client.SubmissionTimeout = s.cfg.Timeout

	if s.cfg.Username != "" {
		auth := sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("relay auth failed: %w", err)
		}
	}

	if err := client.SendMail(s.sender.Email, []string{msg.To}, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("delivery failed: %w", err)
	}

	s.logger.Debug("message delivered", "to", msg.To, "subject", msg.Subject)
	return client.Quit()
}

func (s *SMTP) dial() (*smtp.Client, error) {
	tlsConfig := &tls.Config{ServerName: s.cfg.Host}

	switch s.cfg.TLS {
	case "tls":
		return smtp.DialTLS(s.cfg.Addr(), tlsConfig)
	case "starttls":
		return smtp.DialStartTLS(s.cfg.Addr(), tlsConfig)
	default:
		return smtp.Dial(s.cfg.Addr())
	}
}

func (s *SMTP) buildMessage(msg *Message) ([]byte, error) {
	e := email.NewEmail()
	e.From = mailaddr.FormatAddress(s.sender.Name, s.sender.Email)
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	if msg.HTML != "" {
		e.HTML = []byte(msg.HTML)
	}
	if msg.Text != "" {
		e.Text = []byte(msg.Text)
	}
	return e.Bytes()
}
