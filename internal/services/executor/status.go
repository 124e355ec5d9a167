package executor

import (
	"sync"
	"time"
)

const statusHistory = 256

// StatusEvent one status line as published to operators.
type StatusEvent struct {
	Index uint64    `json:"index"`
	Line  string    `json:"line"`
	Time  time.Time `json:"time"`
}

// StatusBoard holds the single human-readable status line. Every write
// replaces the whole line; a bounded history lets streams resume by index.
type StatusBoard struct {
	mu      sync.RWMutex
	index   uint64
	history []StatusEvent
	notify  chan struct{}
}

// NewStatusBoard creates an empty board.
func NewStatusBoard() *StatusBoard {
	return &StatusBoard{notify: make(chan struct{})}
}

// Set replaces the status line.
func (b *StatusBoard) Set(line string) StatusEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.index++
	ev := StatusEvent{Index: b.index, Line: line, Time: time.Now().UTC()}
	b.history = append(b.history, ev)
	if len(b.history) > statusHistory {
		b.history = append([]StatusEvent(nil), b.history[len(b.history)-statusHistory:]...)
	}

	close(b.notify)
	b.notify = make(chan struct{})
	return ev
}

// Current returns the latest event, zero if nothing was published.
func (b *StatusBoard) Current() StatusEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.history) == 0 {
		return StatusEvent{}
	}
	return b.history[len(b.history)-1]
}

// EventsAfter returns retained events with an index greater than index.
func (b *StatusBoard) EventsAfter(index uint64) []StatusEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]StatusEvent, 0)
	for _, ev := range b.history {
		if ev.Index > index {
			out = append(out, ev)
		}
	}
	return out
}

// Changed returns a channel closed on the next Set.
func (b *StatusBoard) Changed() <-chan struct{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.notify
}
