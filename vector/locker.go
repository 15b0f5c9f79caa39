package vector

import "sync"

// Locker hands out one mutex per index location so that at most one
// writer runs against a location at a time.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocker() *Locker {
	return &Locker{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock blocks until location is free and returns the matching unlock.
func (l *Locker) Lock(location string) (unlock func()) {
	l.mu.Lock()
	m, ok := l.locks[location]
	if !ok {
		m = new(sync.Mutex)
		l.locks[location] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
