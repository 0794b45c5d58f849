package messages

import (
	"fmt"
	"sync"
)

// Log collects user facing diagnostics. Duplicate messages are dropped and
// insertion order is kept until the log is drained.
type Log struct {
	mu    sync.Mutex
	items []string
	seen  map[string]struct{}
}

// NewLog creates an empty message log
func NewLog() *Log {
	return &Log{
		seen: make(map[string]struct{}),
	}
}

func (l *Log) Add(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.seen[msg]; exists {
		return
	}
	l.seen[msg] = struct{}{}
	l.items = append(l.items, msg)
}

func (l *Log) Addf(format string, args ...interface{}) {
	l.Add(fmt.Sprintf(format, args...))
}

// Drain returns every pending message and clears the log in one step.
func (l *Log) Drain() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.items
	l.items = nil
	l.seen = make(map[string]struct{})
	if out == nil {
		return []string{}
	}
	return out
}

// Peek returns a copy of the pending messages without clearing them.
func (l *Log) Peek() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, len(l.items))
	copy(out, l.items)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}
