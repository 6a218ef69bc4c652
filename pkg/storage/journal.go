package storage

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("record not found")

// Mirror statuses
const (
	StatusSubmitted = "submitted"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// EventRecord marks a source log as claimed by the engine.
type EventRecord struct {
	Key       string    `json:"key"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// MirrorRecord tracks one mirrored order from submission to confirmation.
// Amounts are decimal strings in protocol units.
type MirrorRecord struct {
	ID              string    `json:"id"`
	EventKey        string    `json:"event_key"`
	Event           string    `json:"event"`
	Symbol          string    `json:"symbol"`
	IsLong          bool      `json:"is_long"`
	Venue           string    `json:"venue"`
	Method          string    `json:"method"`
	TxHash          string    `json:"tx_hash,omitempty"`
	Nonce           uint64    `json:"nonce"`
	Status          string    `json:"status"`
	Block           uint64    `json:"block,omitempty"`
	SizeDelta       string    `json:"size_delta,omitempty"`
	Leverage        string    `json:"leverage,omitempty"`
	Collateral      string    `json:"collateral,omitempty"`
	EventSizeDelta  string    `json:"event_size_delta,omitempty"`
	EventCollateral string    `json:"event_collateral,omitempty"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewMirrorRecord assigns an ID and creation time.
func NewMirrorRecord(eventKey string, now time.Time) *MirrorRecord {
	return &MirrorRecord{
		ID:        uuid.NewString(),
		EventKey:  eventKey,
		Status:    StatusSubmitted,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

// Journal persists which events were handled and what was sent for them.
type Journal interface {
	// ClaimEvent records key and reports whether this call was the first
	// to do so. Concurrent claims for the same key succeed at most once.
	ClaimEvent(key string, now time.Time) (bool, error)
	SaveMirror(rec *MirrorRecord) error
	GetMirror(id string) (*MirrorRecord, error)
	// RecentMirrors returns up to limit records, newest first. A non-empty
	// symbol restricts the scan to that instrument before the limit applies.
	RecentMirrors(limit int, symbol string) ([]*MirrorRecord, error)
	Close() error
}
