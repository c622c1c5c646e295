package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"statuswatch/internal/config"
	"statuswatch/internal/model"
)

// WebhookChannel POSTs alerts as JSON, retrying with exponential backoff.
type WebhookChannel struct {
	url        string
	headers    map[string]string
	bearer     string
	maxRetries int
	client     *http.Client
}

func NewWebhookChannel(cfg config.WebhookConfig) *WebhookChannel {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookChannel{
		url:        cfg.URL,
		headers:    cfg.Headers,
		bearer:     cfg.BearerToken,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: timeout},
	}
}

func (c *WebhookChannel) Name() string { return "webhook" }

func (c *WebhookChannel) Send(ctx context.Context, alert model.AlertRecord) DeliveryResult {
	start := time.Now()
	res := DeliveryResult{Channel: c.Name()}

	payload, err := json.Marshal(map[string]any{
		"timestamp":        alert.Timestamp.UTC().Format(time.RFC3339),
		"severity":         alert.Severity,
		"component":        alert.Component,
		"category":         alert.Category,
		"message":          alert.Message,
		"fingerprint":      alert.Fingerprint,
		"availability_pct": alert.Availability,
	})
	if err != nil {
		res.Err = err
		return res
	}

	attempts := c.maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	backoff := 500 * time.Millisecond
	for i := 0; i < attempts; i++ {
		if i > 0 {
			t := time.NewTimer(backoff)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				res.Err = ctx.Err()
				res.Elapsed = time.Since(start)
				return res
			}
			backoff *= 2
		}
		err = c.post(ctx, payload)
		if err == nil {
			res.Delivered = true
			res.Elapsed = time.Since(start)
			return res
		}
	}
	res.Err = err
	res.Elapsed = time.Since(start)
	return res
}

func (c *WebhookChannel) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "statuswatch")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
