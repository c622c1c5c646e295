package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"statuswatch/internal/config"
	"statuswatch/internal/ingest"
	"statuswatch/internal/model"
	"statuswatch/internal/prom"
)

// Summary is the subset of a Statuspage v2 summary.json document we read.
type Summary struct {
	Page struct {
		Name      string    `json:"name"`
		UpdatedAt time.Time `json:"updated_at"`
	} `json:"page"`
	Components []Component `json:"components"`
	Status     struct {
		Indicator   string `json:"indicator"`
		Description string `json:"description"`
	} `json:"status"`
}

type Component struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Group   bool   `json:"group"`
	GroupID string `json:"group_id"`
}

// Client fetches the status feed, caching raw responses on disk so rapid
// restarts and repeated runs inside the TTL do not hammer the endpoint.
type Client struct {
	url    string
	client *http.Client
	cache  *Cache
	logger *slog.Logger
}

func NewClient(cfg config.PollerConfig, logger *slog.Logger) *Client {
	var cache *Cache
	if cfg.Cache.Enabled {
		cache = NewCache(cfg.Cache.Dir, cfg.Cache.TTL)
	}
	return &Client{
		url:    cfg.URL,
		client: &http.Client{Timeout: cfg.Timeout},
		cache:  cache,
		logger: logger,
	}
}

// Fetch returns the parsed summary, the request round-trip in seconds (zero
// on a cache hit), and whether the cache served it.
func (c *Client) Fetch(ctx context.Context) (*Summary, float64, bool, error) {
	if c.cache != nil {
		if raw, ok := c.cache.Get("summary"); ok {
			var s Summary
			if err := json.Unmarshal(raw, &s); err == nil {
				return &s, 0, true, nil
			}
			// Corrupt cache entry; fall through to a fresh fetch.
		}
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, 0, false, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "statuswatch")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, false, fmt.Errorf("status feed returned %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, 0, false, err
	}
	elapsed := time.Since(start).Seconds()

	var s Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, 0, false, fmt.Errorf("decoding status feed: %w", err)
	}
	if len(s.Components) == 0 {
		return nil, 0, false, fmt.Errorf("status feed has no components")
	}
	if c.cache != nil {
		if err := c.cache.Set("summary", raw); err != nil && c.logger != nil {
			c.logger.Warn("failed to cache status response", "err", err)
		}
	}
	return &s, elapsed, false, nil
}

// ObservationFrom derives one availability observation from a summary.
// Component groups are containers, not services, and are excluded from the
// count.
func ObservationFrom(s *Summary, now time.Time, responseTime float64) model.Observation {
	total := 0
	operational := 0
	for _, comp := range s.Components {
		if comp.Group {
			continue
		}
		total++
		if comp.Status == "operational" {
			operational++
		}
	}
	availability := 0.0
	if total > 0 {
		availability = float64(operational) / float64(total) * 100
	}
	return model.Observation{
		Timestamp:        now,
		Availability:     availability,
		OperationalCount: operational,
		TotalCount:       total,
		ResponseTime:     responseTime,
	}
}

// Run polls the feed on the configured interval, emitting one observation
// per successful fetch. A failed poll logs and simply produces no
// observation for that cycle.
func Run(ctx context.Context, cfg *config.Manager, out chan<- model.Observation, logger *slog.Logger) {
	current := cfg.Get().Poller
	if !current.Enabled {
		if logger != nil {
			logger.Info("poller disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("poller enabled", "url", current.URL, "interval", current.Interval)
	}
	client := NewClient(current, logger)
	go func() {
		ticker := time.NewTicker(current.Interval)
		defer ticker.Stop()
		poll(ctx, client, out, logger)
		for {
			select {
			case <-ticker.C:
				poll(ctx, client, out, logger)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func poll(ctx context.Context, client *Client, out chan<- model.Observation, logger *slog.Logger) {
	s, elapsed, cached, err := client.Fetch(ctx)
	if err != nil {
		prom.ObservePoll("error")
		if logger != nil {
			logger.Warn("status poll failed", "err", err)
		}
		return
	}
	if cached {
		prom.ObservePoll("cache_hit")
	} else {
		prom.ObservePoll("ok")
	}
	ob := ObservationFrom(s, time.Now().UTC(), elapsed)
	ingest.SendNonBlocking(ctx, out, ob, logger)
}
