package service

import (
	"context"
	"sync"
)

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// keyedLock serialises work per key inside the process. Entries are reference
// counted and dropped when no caller holds or waits on them.
type keyedLock struct {
	mu      sync.Mutex
	entries map[int64]*keyedEntry
}

func newKeyedLock() *keyedLock {
	return &keyedLock{entries: make(map[int64]*keyedEntry)}
}

// Lock blocks until key is free or ctx is done. The returned func releases the key
// and must be called exactly once.
func (k *keyedLock) Lock(ctx context.Context, key int64) (func(), error) {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &keyedEntry{sem: make(chan struct{}, 1)}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-entry.sem
				k.release(key, entry)
			})
		}, nil
	case <-ctx.Done():
		k.release(key, entry)
		return nil, ctx.Err()
	}
}

func (k *keyedLock) release(key int64, entry *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(k.entries, key)
	}
}

func (k *keyedLock) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
