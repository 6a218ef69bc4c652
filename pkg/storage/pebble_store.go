package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

// PebbleJournal is the on-disk Journal.
type PebbleJournal struct {
	mu sync.Mutex // serializes claim read-modify-write
	db *pebble.DB
}

func NewPebbleJournal(path string) (*PebbleJournal, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return &PebbleJournal{db: db}, nil
}

func (s *PebbleJournal) Close() error { return s.db.Close() }

var _ Journal = (*PebbleJournal)(nil)

func (s *PebbleJournal) ClaimEvent(key string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := eventKey(key)
	_, closer, err := s.db.Get(k)
	if err == nil {
		closer.Close()
		return false, nil
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return false, fmt.Errorf("failed to read event: %w", err)
	}

	data, err := json.Marshal(EventRecord{Key: key, ClaimedAt: now.UTC()})
	if err != nil {
		return false, fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := s.db.Set(k, data, pebble.Sync); err != nil {
		return false, fmt.Errorf("failed to save event: %w", err)
	}
	return true, nil
}

// SaveMirror inserts or replaces rec. The primary key is derived from
// CreatedAt so updates keep their position in the time index.
func (s *PebbleJournal) SaveMirror(rec *MirrorRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal mirror: %w", err)
	}
	key := mirrorKey(rec.CreatedAt, rec.ID)

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(key, data, nil); err != nil {
		return err
	}
	if err := b.Set(mirrorIDKey(rec.ID), key, nil); err != nil {
		return err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to save mirror: %w", err)
	}
	return nil
}

func (s *PebbleJournal) GetMirror(id string) (*MirrorRecord, error) {
	key, err := s.get(mirrorIDKey(id))
	if err != nil {
		return nil, err
	}
	data, err := s.get(key)
	if err != nil {
		return nil, err
	}
	var rec MirrorRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mirror: %w", err)
	}
	return &rec, nil
}

func (s *PebbleJournal) RecentMirrors(limit int, symbol string) ([]*MirrorRecord, error) {
	prefix := []byte(prefixMirror)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*MirrorRecord
	for iter.Last(); iter.Valid() && (limit <= 0 || len(out) < limit); iter.Prev() {
		var rec MirrorRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue // Skip invalid entries
		}
		if symbol != "" && rec.Symbol != symbol {
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

// get copies the value out before the closer releases it.
func (s *PebbleJournal) get(key []byte) ([]byte, error) {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}
