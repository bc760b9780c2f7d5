// Package journal keeps a bounded in-memory history of generated
// setups.
package journal

import (
	"sync"

	"goldbach-backtester/services/engine"
)

// Setup statuses a caller can move a record through.
const (
	StatusPending = "PENDING"
	StatusActive  = "ACTIVE"
	StatusClosed  = "CLOSED"
	StatusExpired = "EXPIRED"
)

// Journal is a fixed-capacity ring of recent setups, newest first on
// read. Safe for concurrent use.
type Journal struct {
	mu      sync.RWMutex
	entries []*engine.TradeSetup
	next    int
	full    bool
}

// New creates a journal holding up to capacity setups; older entries
// are overwritten once full.
func New(capacity int) *Journal {
	if capacity <= 0 {
		capacity = 100
	}
	return &Journal{entries: make([]*engine.TradeSetup, capacity)}
}

// Add records a copy of the setup; later status updates touch the
// journal's record, never the caller's value.
func (j *Journal) Add(s *engine.TradeSetup) {
	if s == nil {
		return
	}
	cp := *s
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[j.next] = &cp
	j.next++
	if j.next == len(j.entries) {
		j.next = 0
		j.full = true
	}
}

// Recent returns up to n setups, newest first. n <= 0 returns all.
// Entries are snapshots: reading them races with nothing, and
// SetStatus calls landing afterwards are not reflected. Slice fields
// are shared and never mutated by the journal.
func (j *Journal) Recent(n int) []*engine.TradeSetup {
	j.mu.RLock()
	defer j.mu.RUnlock()

	size := j.next
	if j.full {
		size = len(j.entries)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]*engine.TradeSetup, 0, n)
	for i := 1; i <= n; i++ {
		idx := j.next - i
		if idx < 0 {
			idx += len(j.entries)
		}
		cp := *j.entries[idx]
		out = append(out, &cp)
	}
	return out
}

// Find returns a snapshot of the recorded setup with the given id,
// or nil.
func (j *Journal) Find(id int) *engine.TradeSetup {
	j.mu.RLock()
	defer j.mu.RUnlock()
	for _, s := range j.entries {
		if s != nil && s.ID == id {
			cp := *s
			return &cp
		}
	}
	return nil
}

// SetStatus updates the status (and optional result) of a recorded
// setup. Returns false when the id is unknown.
func (j *Journal) SetStatus(id int, status, result string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, s := range j.entries {
		if s != nil && s.ID == id {
			s.Status = status
			if result != "" {
				s.Result = result
			}
			return true
		}
	}
	return false
}
