package storage

import (
	"sort"
	"sync"
	"time"
)

// InMemoryJournal is a Journal for tests and dry runs.
type InMemoryJournal struct {
	mu      sync.Mutex
	events  map[string]EventRecord
	mirrors map[string]MirrorRecord
}

func NewInMemoryJournal() *InMemoryJournal {
	return &InMemoryJournal{
		events:  make(map[string]EventRecord),
		mirrors: make(map[string]MirrorRecord),
	}
}

var _ Journal = (*InMemoryJournal)(nil)

func (s *InMemoryJournal) ClaimEvent(key string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[key]; ok {
		return false, nil
	}
	s.events[key] = EventRecord{Key: key, ClaimedAt: now.UTC()}
	return true, nil
}

func (s *InMemoryJournal) SaveMirror(rec *MirrorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirrors[rec.ID] = *rec
	return nil
}

func (s *InMemoryJournal) GetMirror(id string) (*MirrorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.mirrors[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *InMemoryJournal) RecentMirrors(limit int, symbol string) ([]*MirrorRecord, error) {
	s.mu.Lock()
	out := make([]*MirrorRecord, 0, len(s.mirrors))
	for _, rec := range s.mirrors {
		if symbol != "" && rec.Symbol != symbol {
			continue
		}
		rec := rec
		out = append(out, &rec)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryJournal) Close() error { return nil }
