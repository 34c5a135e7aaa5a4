package service

import "sync"

// keyedMutex serializes work per aggregate key so concurrent requests cannot
// interleave a read-modify-write on the same sale or customer.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[string]*lockEntry)}
}

// Lock acquires the mutex for key, creating it on first use.
func (m *keyedMutex) Lock(key string) {
	m.mu.Lock()
	entry, ok := m.entries[key]
	if !ok {
		entry = &lockEntry{}
		m.entries[key] = entry
	}
	entry.refs++
	m.mu.Unlock()

	entry.mu.Lock()
}

// Unlock releases the mutex for key and drops it once no one is waiting.
func (m *keyedMutex) Unlock(key string) {
	m.mu.Lock()
	entry, ok := m.entries[key]
	if ok {
		entry.refs--
		if entry.refs == 0 {
			delete(m.entries, key)
		}
	}
	m.mu.Unlock()

	if ok {
		entry.mu.Unlock()
	}
}

// lockKeys acquires several keys in the given order and returns an unlock
// function that releases them in reverse. Callers must pass keys in a stable
// order (sale before customer) to avoid deadlocks.
func (m *keyedMutex) lockKeys(keys ...string) func() {
	acquired := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		m.Lock(key)
		acquired = append(acquired, key)
	}
	return func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			m.Unlock(acquired[i])
		}
	}
}
