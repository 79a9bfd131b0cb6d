package indexer

import "sync/atomic"

// IndexLock is a non-blocking try-lock. A second Build while one is running
// fails fast instead of queueing behind it.
type IndexLock struct {
	held atomic.Bool
}

// TryAcquire reports whether the caller now holds the lock
func (l *IndexLock) TryAcquire() bool {
	return l.held.CompareAndSwap(false, true)
}

// Release must only be called by the holder
func (l *IndexLock) Release() {
	l.held.Store(false)
}

// Held reports whether a build currently owns the lock
func (l *IndexLock) Held() bool {
	return l.held.Load()
}
