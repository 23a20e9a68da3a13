package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/ogulcanaydogan/stocksync/pkg/model"
	"github.com/ogulcanaydogan/stocksync/pkg/policy"
)

// SMTPConfig holds SMTP server settings.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromName  string
	ClientURL string
}

// SendFunc delivers a fully formatted message.
type SendFunc func(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends HTML email through an SMTP relay.
type SMTPMailer struct {
	addr      string
	auth      smtp.Auth
	from      string
	fromName  string
	clientURL string
	send      SendFunc
}

// MailerOption customizes an SMTPMailer.
type MailerOption func(*SMTPMailer)

// WithSendFunc replaces the SMTP transport.
func WithSendFunc(fn SendFunc) MailerOption {
	return func(m *SMTPMailer) { m.send = fn }
}

// NewSMTPMailer creates a mailer. It returns ErrNotConfigured when the host or
// the account is missing.
func NewSMTPMailer(cfg SMTPConfig, opts ...MailerOption) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.Username == "" {
		return nil, ErrNotConfigured
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	fromName := cfg.FromName
	if fromName == "" {
		fromName = "StockSync"
	}

	m := &SMTPMailer{
		addr:      net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		auth:      smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host),
		from:      cfg.Username,
		fromName:  fromName,
		clientURL: strings.TrimRight(cfg.ClientURL, "/"),
		send:      dialAndSend,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *SMTPMailer) SendAggregated(ctx context.Context, to string, kind model.AlertKind, products []model.Product, now time.Time) error {
	if len(products) == 0 {
		return nil
	}

	var (
		subject string
		tmpl    *template.Template
	)
	switch kind {
	case model.KindLowStock:
		subject = "⚠️ Low Stock Alert - StockSync"
		tmpl = lowStockTmpl
	case model.KindExpiringSoon:
		subject = "📅 Products Expiring Soon - StockSync"
		tmpl = expiryTmpl
	default:
		return fmt.Errorf("unknown alert kind %q", kind)
	}

	items := make([]emailItem, 0, len(products))
	for _, p := range products {
		item := emailItem{Name: p.ProductName, Quantity: p.Quantity, Unit: p.Unit, Batch: p.BatchNumber}
		if p.ExpiryDate != nil {
			item.DaysLeft = policy.DaysUntil(*p.ExpiryDate, now)
		}
		items = append(items, item)
	}

	body, err := render(tmpl, alertEmailData{Items: items, DashboardURL: m.clientURL + "/dashboard"})
	if err != nil {
		return err
	}
	return m.deliver(ctx, m.fromName+" Alerts", to, subject, body)
}

func (m *SMTPMailer) SendVerification(ctx context.Context, to, code string, ttl time.Duration) error {
	body, err := render(verifyTmpl, verifyEmailData{Code: code, Minutes: int(ttl.Minutes())})
	if err != nil {
		return err
	}
	return m.deliver(ctx, m.fromName, to, "Verify Your Email - StockSync", body)
}

func (m *SMTPMailer) deliver(ctx context.Context, fromName, to, subject, html string) error {
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", fromName), m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(html)

	if err := m.send(ctx, m.addr, m.auth, m.from, []string{to}, msg.Bytes()); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// dialAndSend is smtp.SendMail with context cancellation.
func dialAndSend(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("parse smtp address: %w", err)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt: %w", err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}
	return c.Quit()
}
