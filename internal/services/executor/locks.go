package executor

import "sync"

// mintLocks serializes attempts per mint while letting different mints run in parallel.
type mintLocks struct {
	mu    sync.Mutex
	locks map[string]*mintLock
}

type mintLock struct {
	mu   sync.Mutex
	refs int
}

func newMintLocks() *mintLocks {
	return &mintLocks{locks: make(map[string]*mintLock)}
}

// lock blocks until mint is free and returns the release func.
func (m *mintLocks) lock(mint string) func() {
	m.mu.Lock()
	l, ok := m.locks[mint]
	if !ok {
		l = &mintLock{}
		m.locks[mint] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, mint)
		}
		m.mu.Unlock()
	}
}
