package biz

import (
	"context"
	"sync"
)

// keyLock serializes operations per key. Concurrent ingests of identical
// content and concurrent rebuilds of one workspace's cache collapse here:
// the second caller blocks until the first finishes, then observes its
// result in the store.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	ch   chan struct{} // capacity 1, holding the slot means holding the lock
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*lockEntry)}
}

// Acquire blocks until the key's lock is held or ctx is done. The returned
// release function must be called exactly once.
func (k *keyLock) Acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{ch: make(chan struct{}, 1)}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
		return func() { k.release(key, entry) }, nil
	case <-ctx.Done():
		k.unref(key, entry)
		return nil, ctx.Err()
	}
}

func (k *keyLock) release(key string, entry *lockEntry) {
	<-entry.ch
	k.unref(key, entry)
}

func (k *keyLock) unref(key string, entry *lockEntry) {
	k.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}
