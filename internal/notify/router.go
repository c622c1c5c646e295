package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"statuswatch/internal/config"
	"statuswatch/internal/model"
)

// DeliveryResult reports one channel's attempt at delivering an alert.
type DeliveryResult struct {
	Channel   string
	Delivered bool
	Err       error
	Elapsed   time.Duration
}

// Channel delivers a finalized alert record to one destination. Rendering
// into channel-specific payloads and retrying belong to the implementation.
type Channel interface {
	Name() string
	Send(ctx context.Context, alert model.AlertRecord) DeliveryResult
}

type ChannelStats struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Router fans alert records out to the configured channels, gated by each
// channel's minimum severity. Delivery is best effort: failures are logged
// and counted, never retried here beyond what the channel itself does.
type Router struct {
	logger   *slog.Logger
	channels []Channel
	minSev   map[string]model.Severity

	mu    sync.Mutex
	stats map[string]ChannelStats
}

func NewRouter(cfg config.NotifyConfig, logger *slog.Logger) *Router {
	r := &Router{
		logger: logger,
		minSev: make(map[string]model.Severity),
		stats:  make(map[string]ChannelStats),
	}
	if cfg.Email.Enabled {
		ch := NewEmailChannel(cfg.Email)
		r.channels = append(r.channels, ch)
		r.minSev[ch.Name()] = model.Severity(cfg.Email.MinSeverity)
	}
	if cfg.Webhook.Enabled {
		ch := NewWebhookChannel(cfg.Webhook)
		r.channels = append(r.channels, ch)
		r.minSev[ch.Name()] = model.Severity(cfg.Webhook.MinSeverity)
	}
	return r
}

// AddChannel registers an extra channel, mainly for tests and extensions.
func (r *Router) AddChannel(ch Channel, minSeverity model.Severity) {
	r.channels = append(r.channels, ch)
	r.minSev[ch.Name()] = minSeverity
}

func (r *Router) Dispatch(ctx context.Context, records []model.AlertRecord) {
	for _, record := range records {
		for _, ch := range r.channels {
			if model.SeverityRank(record.Severity) < model.SeverityRank(r.minSev[ch.Name()]) {
				continue
			}
			res := ch.Send(ctx, record)
			r.track(res)
			if r.logger != nil {
				if res.Delivered {
					r.logger.Info("alert delivered",
						"channel", res.Channel,
						"severity", record.Severity,
						"fingerprint", record.Fingerprint,
						"elapsed", res.Elapsed,
					)
				} else {
					r.logger.Warn("alert delivery failed",
						"channel", res.Channel,
						"severity", record.Severity,
						"err", res.Err,
					)
				}
			}
		}
	}
}

func (r *Router) track(res DeliveryResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.stats[res.Channel]
	if res.Delivered {
		st.Sent++
	} else {
		st.Failed++
	}
	r.stats[res.Channel] = st
}

func (r *Router) Stats() map[string]ChannelStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]ChannelStats, len(r.stats))
	for name, st := range r.stats {
		out[name] = st
	}
	return out
}
