package metrics

import (
	"sync"
	"time"

	"statuswatch/internal/model"
)

// Store keeps the latest evaluation per component for the read API.
type Store struct {
	mu          sync.RWMutex
	byComponent map[string]model.Evaluation
	updatedAt   map[string]time.Time
	limit       int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 100
	}
	return &Store{
		byComponent: make(map[string]model.Evaluation),
		updatedAt:   make(map[string]time.Time),
		limit:       limit,
	}
}

func (s *Store) Update(component string, ev model.Evaluation) {
	if component == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byComponent[component] = ev
	s.updatedAt[component] = time.Now().UTC()
	if len(s.byComponent) > s.limit {
		s.evictOldest()
	}
}

func (s *Store) Get(component string) (model.Evaluation, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.byComponent[component]
	if !ok {
		return model.Evaluation{}, time.Time{}, false
	}
	return ev, s.updatedAt[component], true
}

func (s *Store) GetAll() map[string]model.Evaluation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.Evaluation, len(s.byComponent))
	for component, ev := range s.byComponent {
		out[component] = ev
	}
	return out
}

func (s *Store) evictOldest() {
	var oldestComponent string
	var oldest time.Time
	for component, ts := range s.updatedAt {
		if oldestComponent == "" || ts.Before(oldest) {
			oldestComponent = component
			oldest = ts
		}
	}
	if oldestComponent != "" {
		delete(s.byComponent, oldestComponent)
		delete(s.updatedAt, oldestComponent)
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byComponent = make(map[string]model.Evaluation)
	s.updatedAt = make(map[string]time.Time)
}
