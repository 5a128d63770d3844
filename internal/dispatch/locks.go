package dispatch

import "sync"

// subjectLocks serializes ingestion per subject so trend detectors always
// see history in non-decreasing timestamp order. Entries are reference
// counted and reaped as soon as the last holder releases, so the map stays
// proportional to in-flight subjects, not to the population.
type subjectLocks struct {
	mu    sync.Mutex
	locks map[string]*subjectLock
}

type subjectLock struct {
	mu   sync.Mutex
	refs int
}

func newSubjectLocks() *subjectLocks {
	return &subjectLocks{locks: make(map[string]*subjectLock)}
}

// acquire blocks until the caller holds the subject's lock.
func (l *subjectLocks) acquire(subjectID string) *subjectLock {
	l.mu.Lock()
	entry, ok := l.locks[subjectID]
	if !ok {
		entry = &subjectLock{}
		l.locks[subjectID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return entry
}

// release unlocks the subject's lock and reaps the entry when no other
// goroutine is waiting on it.
func (l *subjectLocks) release(subjectID string, entry *subjectLock) {
	entry.mu.Unlock()

	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, subjectID)
	}
	l.mu.Unlock()
}

// size reports the number of live entries, for metrics and tests.
func (l *subjectLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
