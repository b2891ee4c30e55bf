// Package mail sends plain-text notifications over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Message is a plain-text mail.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Config describes the SMTP relay.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      bool
}

// SendFunc matches smtp.SendMail and smtp.SendMailTLS.
type SendFunc func(addr string, a sasl.Client, from string, to []string, r io.Reader) error

// Sender delivers messages through the configured relay.
type Sender struct {
	cfg    Config
	logger *slog.Logger
	send   SendFunc
	now    func() time.Time
}

// NewSender constructs a Sender.
func NewSender(cfg Config, logger *slog.Logger) *Sender {
	send := smtp.SendMail
	if cfg.TLS {
		send = smtp.SendMailTLS
	}
	return &Sender{cfg: cfg, logger: logger, send: send, now: time.Now}
}

// WithSendFunc replaces the transport, used by tests.
func (s *Sender) WithSendFunc(fn SendFunc) *Sender {
	s.send = fn
	return s
}

// Send delivers msg. A sender without a host is a no-op.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.cfg.Host == "" {
		return nil
	}
	if len(msg.To) == 0 {
		return errors.New("mail: no recipients")
	}
	var auth sasl.Client
	if s.cfg.Username != "" {
		auth = sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.send(addr, auth, s.cfg.From, msg.To, strings.NewReader(s.render(msg))); err != nil {
		return fmt.Errorf("mail: send: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("mail sent", slog.Int("recipients", len(msg.To)), slog.String("subject", msg.Subject))
	}
	return nil
}

func (s *Sender) render(msg Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return b.String()
}
