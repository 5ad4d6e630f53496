package dispatch

import (
	"sync"
	"time"
)

// Record is one dispatched system command
type Record struct {
	ID          string         `json:"id"`
	Command     string         `json:"command"`
	Data        map[string]any `json:"data,omitempty"`
	Status      string         `json:"status"` // OK, OK_REBOOT, ERROR, UNREACHABLE
	Message     string         `json:"message"`
	ReloadAfter int            `json:"reload_after_ms,omitempty"`
	Duration    time.Duration  `json:"duration_ns"`
	CreatedAt   time.Time      `json:"created_at"`
}

// History is a thread-safe ring buffer of dispatched commands
type History struct {
	mu      sync.RWMutex
	entries []Record
	cap     int
}

// NewHistory creates a history holding at most capacity records
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{
		entries: make([]Record, 0, capacity),
		cap:     capacity,
	}
}

// Add appends a record, evicting the oldest when full
func (h *History) Add(rec Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) >= h.cap {
		copy(h.entries, h.entries[1:])
		h.entries[len(h.entries)-1] = rec
	} else {
		h.entries = append(h.entries, rec)
	}
}

// Entries returns all records, newest first
func (h *History) Entries() []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]Record, len(h.entries))
	for i, j := 0, len(h.entries)-1; j >= 0; i, j = i+1, j-1 {
		result[i] = h.entries[j]
	}
	return result
}

// Len returns the number of stored records
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
