package store

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// keyLock is the exclusive lock of one record identifier. refs counts the
// callers that currently hold or are trying the lock and is guarded by the
// owning registry's mutex.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// keyLocks maps identifiers to their locks. Entries are created on demand.
// An entry is retired by the last caller to drop it when that caller asks
// for retirement: after a delete, after a failed precondition on an absent
// record, or after losing a try-lock race.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*keyLock)}
}

// tryAcquire takes the lock for id without waiting.
func (r *keyLocks) tryAcquire(id string) (*keyLock, bool) {
	r.mu.Lock()
	l, ok := r.locks[id]
	if !ok {
		l = &keyLock{}
		r.locks[id] = l
	}
	l.refs++
	r.mu.Unlock()

	if l.mu.TryLock() {
		return l, true
	}
	r.unref(id, l, true)
	return nil, false
}

// release unlocks l. When retire is set the entry is removed, but only if
// id still maps to this exact lock and no other caller references it.
func (r *keyLocks) release(id string, l *keyLock, retire bool) {
	l.mu.Unlock()
	r.unref(id, l, retire)
}

func (r *keyLocks) unref(id string, l *keyLock, retire bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l.refs--
	if retire && l.refs == 0 && r.locks[id] == l {
		delete(r.locks, id)
	}
}

func (r *keyLocks) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}

// maxReaders bounds the number of concurrent shared holders.
const maxReaders = 1 << 30

// indexLock is a shared/exclusive lock whose exclusive side can wait with a
// deadline. While a writer waits, new shared attempts fail.
type indexLock struct {
	sem *semaphore.Weighted
}

func newIndexLock() *indexLock {
	return &indexLock{sem: semaphore.NewWeighted(maxReaders)}
}

func (l *indexLock) tryRLock() bool { return l.sem.TryAcquire(1) }

func (l *indexLock) rUnlock() { l.sem.Release(1) }

// lock waits for exclusive ownership until ctx is done.
func (l *indexLock) lock(ctx context.Context) error {
	return l.sem.Acquire(ctx, maxReaders)
}

func (l *indexLock) tryLock() bool { return l.sem.TryAcquire(maxReaders) }

func (l *indexLock) unlock() { l.sem.Release(maxReaders) }
