package alerts

import (
	"sync"
	"time"

	"hrvguard/internal/model"
)

// Store is a bounded ring of quality alerts, oldest dropped first.
type Store struct {
	mu    sync.RWMutex
	buf   []model.Alert
	limit int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 1000
	}
	return &Store{limit: limit}
}

func (s *Store) Add(alert model.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) < s.limit {
		s.buf = append(s.buf, alert)
		return
	}
	copy(s.buf, s.buf[1:])
	s.buf[len(s.buf)-1] = alert
}

// List returns the newest limit alerts in insertion order; limit <= 0 means all.
func (s *Store) List(limit int) []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.buf) {
		limit = len(s.buf)
	}
	return append([]model.Alert(nil), s.buf[len(s.buf)-limit:]...)
}

func (s *Store) Since(ts time.Time) []model.Alert {
	return s.filter(func(a model.Alert) bool { return !a.Timestamp.Before(ts) })
}

func (s *Store) ForRecord(recordID string) []model.Alert {
	return s.filter(func(a model.Alert) bool { return a.RecordID == recordID })
}

func (s *Store) filter(keep func(model.Alert) bool) []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Alert, 0)
	for _, a := range s.buf {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buf)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}
