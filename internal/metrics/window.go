package metrics

import (
	"errors"
	"fmt"
	"sync"

	"statuswatch/internal/model"
)

// ErrInvalidObservation rejects out-of-range availability values and
// non-monotonic timestamps at the window boundary. The window is unchanged
// when Record returns it.
var ErrInvalidObservation = errors.New("invalid observation")

// Window is the rolling observation history used for statistical baselining.
// It owns observation lifetime: once capacity is reached the oldest entry is
// evicted on each append. All access is serialized by a single mutex.
type Window struct {
	mu       sync.Mutex
	capacity int
	obs      []model.Observation
}

func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 100
	}
	return &Window{
		capacity: capacity,
		obs:      make([]model.Observation, 0, capacity),
	}
}

func (w *Window) Record(ob model.Observation) error {
	if ob.Availability < 0 || ob.Availability > 100 {
		return fmt.Errorf("%w: availability %.2f outside [0,100]", ErrInvalidObservation, ob.Availability)
	}
	if ob.Timestamp.IsZero() {
		return fmt.Errorf("%w: zero timestamp", ErrInvalidObservation)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if n := len(w.obs); n > 0 && ob.Timestamp.Before(w.obs[n-1].Timestamp) {
		return fmt.Errorf("%w: timestamp %s precedes last recorded %s",
			ErrInvalidObservation, ob.Timestamp.Format("2006-01-02T15:04:05Z07:00"), w.obs[n-1].Timestamp.Format("2006-01-02T15:04:05Z07:00"))
	}
	w.obs = append(w.obs, ob)
	if len(w.obs) > w.capacity {
		over := len(w.obs) - w.capacity
		copy(w.obs, w.obs[over:])
		w.obs = w.obs[:w.capacity]
	}
	return nil
}

// Snapshot returns a point-in-time copy of the window, oldest first. Callers
// never see the live slice mutate underneath them.
func (w *Window) Snapshot() []model.Observation {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]model.Observation, len(w.obs))
	copy(out, w.obs)
	return out
}

func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.obs)
}

func (w *Window) Latest() (model.Observation, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.obs) == 0 {
		return model.Observation{}, false
	}
	return w.obs[len(w.obs)-1], true
}

// Resize adjusts capacity, evicting oldest entries if the window shrinks.
func (w *Window) Resize(capacity int) {
	if capacity <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.capacity = capacity
	if len(w.obs) > capacity {
		over := len(w.obs) - capacity
		copy(w.obs, w.obs[over:])
		w.obs = w.obs[:capacity]
	}
}

func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.obs = w.obs[:0]
}
