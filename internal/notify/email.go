package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"statuswatch/internal/config"
	"statuswatch/internal/model"
)

var errEmailRateLimited = errors.New("email rate limit exceeded")

// EmailChannel delivers alerts over SMTP with a sliding per-hour rate limit.
type EmailChannel struct {
	addr       string
	username   string
	password   string
	from       string
	recipients []string
	maxPerHour int

	mu   sync.Mutex
	sent []time.Time

	// send is swappable for tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailChannel(cfg config.EmailConfig) *EmailChannel {
	return &EmailChannel{
		addr:       cfg.SMTPAddr,
		username:   cfg.Username,
		password:   cfg.Password,
		from:       cfg.From,
		recipients: cfg.Recipients,
		maxPerHour: cfg.MaxPerHour,
		send:       smtp.SendMail,
	}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(_ context.Context, alert model.AlertRecord) DeliveryResult {
	start := time.Now()
	res := DeliveryResult{Channel: c.Name()}
	if len(c.recipients) == 0 {
		res.Err = errors.New("no recipients configured")
		return res
	}
	if !c.allow(start) {
		res.Err = errEmailRateLimited
		return res
	}

	var auth smtp.Auth
	if c.username != "" {
		host := c.addr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", c.username, c.password, host)
	}
	msg := c.render(alert)
	err := c.send(c.addr, auth, c.from, c.recipients, msg)
	res.Elapsed = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	c.record(start)
	res.Delivered = true
	return res
}

func (c *EmailChannel) allow(now time.Time) bool {
	if c.maxPerHour <= 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := now.Add(-time.Hour)
	kept := c.sent[:0]
	for _, ts := range c.sent {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	c.sent = kept
	return len(c.sent) < c.maxPerHour
}

func (c *EmailChannel) record(ts time.Time) {
	c.mu.Lock()
	c.sent = append(c.sent, ts)
	c.mu.Unlock()
}

func (c *EmailChannel) render(alert model.AlertRecord) []byte {
	subject := fmt.Sprintf("[%s] statuswatch alert: %s", strings.ToUpper(string(alert.Severity)), alert.Component)
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", c.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(c.recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&b, "Severity: %s\r\n", alert.Severity)
	fmt.Fprintf(&b, "Component: %s\r\n", alert.Component)
	fmt.Fprintf(&b, "Category: %s\r\n", alert.Category)
	fmt.Fprintf(&b, "Time: %s\r\n", alert.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Availability: %.1f%%\r\n\r\n", alert.Availability)
	fmt.Fprintf(&b, "%s\r\n", alert.Message)
	return []byte(b.String())
}
