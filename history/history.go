// Package history keeps a bounded, in-memory ring of recent normalized
// events for replay and debugging. All operations are total: lookups on
// evicted or unknown ids return a not-found result, never an error.
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity matches the number of events a freshly connected overlay
// may want to backfill.
const DefaultCapacity = 50

// Entry is a recorded event. Entries are never mutated after creation.
type Entry struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp int64          `json:"timestamp"` // unix milliseconds
}

// Stats summarizes the current ring contents.
type Stats struct {
	Total  int            `json:"total"`
	ByType map[string]int `json:"byType"`
}

// History is a most-recent-first ring of entries with a fixed capacity.
type History struct {
	mu       sync.RWMutex
	capacity int
	entries  []Entry
}

// New returns a History holding at most capacity entries. Non-positive
// capacity falls back to DefaultCapacity.
func New(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{capacity: capacity}
}

// Record prepends a new entry, evicting the oldest beyond capacity.
func (h *History) Record(eventType string, data map[string]any) Entry {
	e := Entry{
		ID:        uuid.New().String(),
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append([]Entry{e}, h.entries...)
	if len(h.entries) > h.capacity {
		h.entries = h.entries[:h.capacity]
	}
	return e
}

// List returns up to limit entries, most recent first. A non-positive limit
// means the full ring.
func (h *History) List(limit int) []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if limit <= 0 || limit > len(h.entries) {
		limit = len(h.entries)
	}
	out := make([]Entry, limit)
	copy(out, h.entries[:limit])
	return out
}

// ListByType returns up to limit entries of the given type, most recent first.
func (h *History) ListByType(eventType string, limit int) []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if limit <= 0 {
		limit = len(h.entries)
	}
	out := make([]Entry, 0, limit)
	for _, e := range h.entries {
		if e.Type != eventType {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out
}

// GetByID returns the entry with the given id, or ok=false when it is
// unknown or already evicted.
func (h *History) GetByID(id string) (Entry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, e := range h.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Clear drops all entries.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}

// GetStats returns entry counts, total and per type.
func (h *History) GetStats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := Stats{Total: len(h.entries), ByType: make(map[string]int)}
	for _, e := range h.entries {
		s.ByType[e.Type]++
	}
	return s
}
