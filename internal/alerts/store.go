package alerts

import (
	"sync"
	"time"

	"statuswatch/internal/model"
)

// Store keeps a bounded, chronologically ordered history of emitted alert
// records for the read API, plus running per-severity totals that survive
// eviction.
type Store struct {
	mu     sync.RWMutex
	buf    []model.AlertRecord
	limit  int
	totals map[model.Severity]int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 1000
	}
	return &Store{
		limit:  limit,
		totals: make(map[model.Severity]int),
	}
}

func (s *Store) Add(alert model.AlertRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals[alert.Severity]++
	if len(s.buf) < s.limit {
		s.buf = append(s.buf, alert)
		return
	}
	copy(s.buf, s.buf[1:])
	s.buf[len(s.buf)-1] = alert
}

// Query returns records at or above min severity, not older than since, the
// newest limit entries in chronological order. The zero value of each
// argument disables that filter.
func (s *Store) Query(min model.Severity, since time.Time, limit int) []model.AlertRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]model.AlertRecord, 0, len(s.buf))
	for _, a := range s.buf {
		if min != "" && model.SeverityRank(a.Severity) < model.SeverityRank(min) {
			continue
		}
		if !since.IsZero() && a.Timestamp.Before(since) {
			continue
		}
		matched = append(matched, a)
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched
}

// List returns the newest limit records without filtering.
func (s *Store) List(limit int) []model.AlertRecord {
	return s.Query("", time.Time{}, limit)
}

// Totals reports how many records have ever been added per severity,
// including records the ring has since evicted.
func (s *Store) Totals() map[model.Severity]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.Severity]int, len(s.totals))
	for sev, n := range s.totals {
		out[sev] = n
	}
	return out
}

// Clear drops the history and the totals.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
	s.totals = make(map[model.Severity]int)
}
