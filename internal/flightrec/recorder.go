// Package flightrec provides a bounded in-memory flight recorder.
//
// The control loop appends short entries for the happenings that matter in a
// postmortem (loads, power transitions, timer fires, dispatched signals).
// The ring keeps the most recent N entries and is embedded in the diagnostic
// dump. Entries are cheap to add; the recorder must never block or fail the
// control path.
package flightrec

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one recorded happening.
type Entry struct {
	ID      string         `json:"id"`
	Time    time.Time      `json:"time"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Recorder is a fixed-capacity ring of entries. Safe for concurrent use:
// connection callbacks record from their own goroutines.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// New creates a Recorder keeping the most recent size entries. A size below
// one falls back to a single-entry ring.
func New(size int) *Recorder {
	if size < 1 {
		size = 1
	}
	return &Recorder{entries: make([]Entry, size)}
}

// Add appends an entry. Fields come as alternating key-value pairs, like
// slog arguments; a trailing key without a value is recorded as nil.
func (r *Recorder) Add(message string, keyvals ...any) {
	var fields map[string]any
	if len(keyvals) > 0 {
		fields = make(map[string]any, (len(keyvals)+1)/2)
		for i := 0; i < len(keyvals); i += 2 {
			key, ok := keyvals[i].(string)
			if !ok {
				continue
			}
			if i+1 < len(keyvals) {
				fields[key] = keyvals[i+1]
			} else {
				fields[key] = nil
			}
		}
	}

	entry := Entry{
		ID:      uuid.New().String(),
		Time:    time.Now().UTC(),
		Message: message,
		Fields:  fields,
	}

	r.mu.Lock()
	r.entries[r.next] = entry
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.full = true
	}
	r.mu.Unlock()
}

// Entries returns the recorded entries, oldest first.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]Entry, r.next)
		copy(out, r.entries[:r.next])
		return out
	}

	out := make([]Entry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)
	return out
}

// Len returns the number of recorded entries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.entries)
	}
	return r.next
}
