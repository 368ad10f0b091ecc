// Package audit produces and persists the tamper-evidence trail of signing
// requests: a digest of each document before and after signing.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when no record matches a lookup.
var ErrNotFound = errors.New("audit record not found")

// Record is one entry in the audit trail.
type Record struct {
	ID           string    `firestore:"id" json:"id"`
	DocumentID   string    `firestore:"documentId,omitempty" json:"documentId,omitempty"`
	OriginalHash string    `firestore:"originalHash" json:"originalHash"`
	FinalHash    string    `firestore:"finalHash" json:"finalHash"`
	Algorithm    string    `firestore:"algorithm" json:"algorithm"`
	FieldCount   int       `firestore:"fieldCount" json:"fieldCount"`
	SignedURI    string    `firestore:"signedUri,omitempty" json:"signedUri,omitempty"`
	CreatedAt    time.Time `firestore:"createdAt" json:"createdAt"`
}

// Store appends audit records and looks them up by the digest of the signed
// document.
type Store interface {
	Append(ctx context.Context, rec Record) error
	FindByFinalHash(ctx context.Context, finalHash string) (*Record, error)
	Close() error
}

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// FindByFinalHash returns the most recent record for finalHash.
func (m *MemoryStore) FindByFinalHash(_ context.Context, finalHash string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].FinalHash == finalHash {
			rec := m.records[i]
			return &rec, nil
		}
	}
	return nil, ErrNotFound
}

// Records returns a copy of all appended records in order.
func (m *MemoryStore) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

func (m *MemoryStore) Close() error { return nil }
