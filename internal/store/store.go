// Package store persists completed investigations. Two implementations:
// MemStore for ephemeral runs and SqlStore for a durable SQLite archive.
package store

import (
	"errors"
	"time"
)

// ErrNilRecord is returned when a nil record is offered for saving.
var ErrNilRecord = errors.New("store: record is nil")

// ErrEmptyID is returned when a record arrives without an ID.
var ErrEmptyID = errors.New("store: record has empty id")

// Record is the persisted envelope of one investigation: the columns worth
// querying on, plus the full report as a JSON payload.
type Record struct {
	ID         string  `json:"id"`
	Kind       string  `json:"kind"`
	Verdict    string  `json:"verdict"`
	Confidence float64 `json:"confidence"`
	// CreatedAt is an ISO 8601 UTC timestamp.
	CreatedAt string `json:"created_at"`
	// Payload is the canonical JSON of the full investigation report.
	Payload []byte `json:"payload"`
}

// Store is the persistence surface for investigations. Lookups for unknown
// IDs return (nil, nil), not an error.
type Store interface {
	SaveInvestigation(rec *Record) error
	GetInvestigation(id string) (*Record, error)
	// ListInvestigations returns records newest first; limit <= 0 means all.
	ListInvestigations(limit int) ([]*Record, error)
	Close() error
}

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

func validate(rec *Record) error {
	if rec == nil {
		return ErrNilRecord
	}
	if rec.ID == "" {
		return ErrEmptyID
	}
	return nil
}
