package bus

import (
	"sync"

	"github.com/mcb1510/v2v-simulator/internal/v2v"
)

// DefaultLogCapacity bounds the recent-message log when no capacity is
// configured.
const DefaultLogCapacity = 25

// Log is a fixed-capacity ring of the most recently delivered messages.
// Evicting the oldest entry on overflow is normal operation, not an error.
type Log struct {
	mu      sync.RWMutex
	entries []v2v.Message
	next    int
	total   uint64
}

// NewLog creates a log retaining up to capacity messages. Capacities below
// 1 fall back to DefaultLogCapacity.
func NewLog(capacity int) *Log {
	if capacity < 1 {
		capacity = DefaultLogCapacity
	}
	return &Log{entries: make([]v2v.Message, 0, capacity)}
}

// Record appends a message, evicting the oldest once full.
func (l *Log) Record(m v2v.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) < cap(l.entries) {
		l.entries = append(l.entries, m)
	} else {
		l.entries[l.next] = m
	}
	l.next = (l.next + 1) % cap(l.entries)
	l.total++
}

// Recent returns the retained messages, oldest first.
func (l *Log) Recent() []v2v.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]v2v.Message, 0, len(l.entries))
	if len(l.entries) < cap(l.entries) {
		return append(out, l.entries...)
	}
	out = append(out, l.entries[l.next:]...)
	out = append(out, l.entries[:l.next]...)
	return out
}

// Total returns how many messages have ever been recorded.
func (l *Log) Total() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

// Cap returns the retention capacity.
func (l *Log) Cap() int {
	return cap(l.entries)
}
