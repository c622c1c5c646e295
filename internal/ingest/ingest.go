package ingest

import (
	"context"
	"log/slog"
	"time"

	"statuswatch/internal/model"
)

func SendNonBlocking(ctx context.Context, out chan<- model.Observation, ob model.Observation, logger *slog.Logger) bool {
	select {
	case out <- ob:
		return true
	case <-ctx.Done():
		return false
	default:
		if logger != nil {
			logger.Warn("observation channel full, dropping observation", "timestamp", ob.Timestamp)
		}
		return false
	}
}

func BackoffSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 200 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
