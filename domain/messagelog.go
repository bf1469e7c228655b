package domain

import "sync"

// MessageLog is a bounded append-only buffer of messages.
// When the limit is exceeded the oldest entries are evicted first.
//
// Writes come from the coordinator goroutine only; the lock exists so the
// status endpoint can read lengths and snapshots concurrently.
type MessageLog struct {
	mu      sync.RWMutex
	limit   int
	entries []Message
}

func NewMessageLog(limit int) *MessageLog {
	if limit <= 0 {
		limit = 1
	}
	return &MessageLog{limit: limit}
}

func (l *MessageLog) Append(msg Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, msg)
	if len(l.entries) > l.limit {
		evicted := len(l.entries) - l.limit
		l.entries = append(l.entries[:0], l.entries[evicted:]...)
	}
}

// Recent returns the last n entries in chronological order. A non-positive
// n yields an empty slice.
func (l *MessageLog) Recent(n int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]Message, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Clear drops every retained message. Owner-only "clear chat" is the
// single consumer-triggered full reset.
func (l *MessageLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
