// Package audit records every portal mutation and permission denial.
package audit

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Result classifies the outcome of an audited operation.
const (
	ResultOK     = "ok"
	ResultDenied = "denied"
	ResultError  = "error"
)

// Entry is one audited event.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	Result    string    `json:"result"`
	Detail    string    `json:"detail,omitempty"`
}

// Log is an in-memory ring of audit entries, capped so an unattended
// instance cannot grow without bound.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	cap     int
	logger  zerolog.Logger
}

// NewLog creates an audit log retaining at most capacity entries.
func NewLog(capacity int, logger zerolog.Logger) *Log {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Log{
		entries: make([]Entry, 0, capacity),
		cap:     capacity,
		logger:  logger.With().Str("component", "audit").Logger(),
	}
}

// Record adds an entry, stamping it with the current time.
func (l *Log) Record(entry Entry) {
	entry.Timestamp = time.Now().UTC()

	l.mu.Lock()
	if len(l.entries) == l.cap {
		l.entries = append(l.entries[:0], l.entries[1:]...)
	}
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	l.logger.Info().
		Str("user_id", entry.UserID).
		Str("action", entry.Action).
		Str("resource", entry.Resource).
		Str("result", entry.Result).
		Msg("audit event")
}

// Entries returns the newest entries first, optionally filtered by user.
func (l *Log) Entries(userID string, limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 {
		limit = len(l.entries)
	}
	var out []Entry
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if userID == "" || l.entries[i].UserID == userID {
			out = append(out, l.entries[i])
		}
	}
	return out
}

// Count returns the number of retained entries.
func (l *Log) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
