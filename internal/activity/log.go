package activity

import (
	"sync"
	"time"
)

// Status marks the phase of a dispatch attempt an entry records.
type Status string

const (
	// StatusStart is appended before a command is issued.
	StatusStart Status = "start"

	// StatusSuccess terminates an attempt that completed.
	StatusSuccess Status = "success"

	// StatusError terminates an attempt that failed.
	StatusError Status = "error"
)

// maxURLLength bounds the stored URL so one long link cannot bloat the
// log or the feed payloads.
const maxURLLength = 80

// Entry is one recorded dispatch event.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
	URL       string    `json:"url"`
	Device    string    `json:"device,omitempty"`
	Method    string    `json:"method,omitempty"`
	Message   string    `json:"message,omitempty"`
	MergeUsed bool      `json:"merge_used,omitempty"`
}

// Notifier receives every appended entry. Used to fan events out to the
// websocket feed and MQTT without the log knowing about either.
type Notifier func(Entry)

// Log is a bounded in-memory activity log. Oldest entries are evicted
// once capacity is reached; listing returns newest first.
//
// Safe for concurrent use.
type Log struct {
	mu        sync.Mutex
	entries   []Entry
	capacity  int
	notifiers []Notifier
}

// NewLog creates a log holding at most capacity entries.
func NewLog(capacity int) *Log {
	if capacity < 1 {
		capacity = 1
	}
	return &Log{capacity: capacity}
}

// Subscribe registers a notifier called synchronously on every append.
// Notifiers must not block; hand off to a channel if delivery is slow.
func (l *Log) Subscribe(n Notifier) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notifiers = append(l.notifiers, n)
}

// Append records an entry, stamping it and truncating the URL.
func (l *Log) Append(entry Entry) Entry {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if len(entry.URL) > maxURLLength {
		entry.URL = entry.URL[:maxURLLength]
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}
	notifiers := make([]Notifier, len(l.notifiers))
	copy(notifiers, l.notifiers)
	l.mu.Unlock()

	for _, n := range notifiers {
		n(entry)
	}
	return entry
}

// List returns up to limit entries, newest first. A limit of zero or
// less returns everything retained.
func (l *Log) List(limit int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.entries)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		out[i] = l.entries[len(l.entries)-1-i]
	}
	return out
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
