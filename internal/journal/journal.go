// Package journal keeps a history of task failures reported by the watchdog.
package journal

import (
	"errors"
	"sync"

	"github.com/danpasecinic/taskwarden/internal/types"
)

// DefaultCapacity is the number of records kept by an InMemoryJournal
const DefaultCapacity = 1024

// ErrClosed is returned by operations on a closed journal
var ErrClosed = errors.New("journal closed")

// Journal stores failure records. List returns at most limit records, newest
// first; a limit <= 0 returns everything.
type Journal interface {
	Append(rec types.FailureRecord) error
	List(limit int) ([]types.FailureRecord, error)
	Close() error
}

// InMemoryJournal is a bounded ring of failure records
type InMemoryJournal struct {
	mu      sync.RWMutex
	records []types.FailureRecord
	next    int
	full    bool
	closed  bool
}

// NewInMemoryJournal creates a journal holding up to capacity records
func NewInMemoryJournal(capacity int) *InMemoryJournal {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &InMemoryJournal{records: make([]types.FailureRecord, capacity)}
}

// Append stores rec, overwriting the oldest record when full
func (j *InMemoryJournal) Append(rec types.FailureRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}

	j.records[j.next] = rec
	j.next = (j.next + 1) % len(j.records)
	if j.next == 0 {
		j.full = true
	}
	return nil
}

// List returns up to limit records, newest first
func (j *InMemoryJournal) List(limit int) ([]types.FailureRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, ErrClosed
	}

	n := j.next
	if j.full {
		n = len(j.records)
	}
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]types.FailureRecord, 0, n)
	for i := 1; i <= n; i++ {
		idx := (j.next - i + len(j.records)) % len(j.records)
		out = append(out, j.records[idx])
	}
	return out, nil
}

// Close releases the records
func (j *InMemoryJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.closed = true
	j.records = nil
	return nil
}
