package scanner

import (
	"sync"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
)

// Latest holds the most recently published candidate list.
type Latest struct {
	mu   sync.RWMutex
	list domain.CandidateList
}

// Publish replaces the held list if list comes from a later cycle.
func (l *Latest) Publish(list domain.CandidateList) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if list.Cycle <= l.list.Cycle {
		return false
	}
	l.list = list
	return true
}

// Get returns a copy of the held list.
func (l *Latest) Get() domain.CandidateList {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := l.list
	out.Candidates = append([]domain.ScoredCandidate(nil), l.list.Candidates...)
	return out
}
