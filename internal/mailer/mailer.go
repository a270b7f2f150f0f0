package mailer

import (
	"bytes"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
)

// Sender dispatches a rendered email to a single recipient.
type Sender interface {
	Send(to, subject, html string) error
}

// Config holds the SMTP relay settings.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Mailer sends email through a configured SMTP relay.
type Mailer struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Mailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Mailer{cfg: cfg, logger: logger}
}

// Send delivers a message with an HTML body to a single recipient.
func (m *Mailer) Send(to, subject, html string) error {
	if m.cfg.Host == "" {
		return fmt.Errorf("smtp relay is not configured")
	}

	var auth sasl.Client
	if m.cfg.Username != "" {
		auth = sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)
	}

	data := buildMessage(m.cfg.From, to, subject, html)
	addr := net.JoinHostPort(m.cfg.Host, fmt.Sprintf("%d", m.cfg.Port))

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to send mail via %s: %w", addr, err)
	}

	m.logger.Info("test email sent", "to", to, "subject", subject)
	return nil
}

// buildMessage constructs RFC 5322 email data with an HTML body.
func buildMessage(from, to, subject, html string) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("From: %s\r\n", from))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", to))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	buf.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	buf.WriteString(fmt.Sprintf("Message-ID: <%s@%s>\r\n", uuid.New().String(), extractDomain(from)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(html)
	buf.WriteString("\r\n")

	return buf.Bytes()
}

func extractDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) == 2 {
		return parts[1]
	}
	return "localhost"
}
