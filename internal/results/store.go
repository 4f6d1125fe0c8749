package results

import (
	"sort"
	"sync"
	"time"

	"hrvguard/internal/model"
)

// Store keeps the latest result per record and channel.
type Store struct {
	mu        sync.RWMutex
	byRecord  map[string]map[int]model.Result
	updatedAt map[string]time.Time
	limit     int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 5000
	}
	return &Store{
		byRecord:  make(map[string]map[int]model.Result),
		updatedAt: make(map[string]time.Time),
		limit:     limit,
	}
}

func (s *Store) Update(res model.Result) {
	if res.RecordID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byRecord[res.RecordID]
	if !ok {
		m = make(map[int]model.Result)
		s.byRecord[res.RecordID] = m
	}
	m[res.Channel] = res
	s.updatedAt[res.RecordID] = time.Now().UTC()
	if len(s.byRecord) > s.limit {
		s.evictOldest()
	}
}

func (s *Store) Get(recordID string) ([]model.Result, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byRecord[recordID]
	if !ok {
		return nil, time.Time{}, false
	}
	return sortedByChannel(m), s.updatedAt[recordID], true
}

func (s *Store) GetAll() map[string][]model.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]model.Result, len(s.byRecord))
	for recordID, m := range s.byRecord {
		out[recordID] = sortedByChannel(m)
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byRecord)
}

func sortedByChannel(m map[int]model.Result) []model.Result {
	out := make([]model.Result, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}

func (s *Store) evictOldest() {
	var oldestRecord string
	var oldest time.Time
	for record, ts := range s.updatedAt {
		if oldestRecord == "" || ts.Before(oldest) {
			oldestRecord = record
			oldest = ts
		}
	}
	if oldestRecord != "" {
		delete(s.byRecord, oldestRecord)
		delete(s.updatedAt, oldestRecord)
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byRecord = make(map[string]map[int]model.Result)
	s.updatedAt = make(map[string]time.Time)
}
