package engine

import "sync"

// keyedMutex serializes merge commits per winner id. Entries are
// reference-counted and removed once the last holder releases, so the map
// does not grow with the id space.
type keyedMutex struct {
	entries map[string]*lockEntry
	mu      sync.Mutex
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{
		entries: make(map[string]*lockEntry),
	}
}

// lock blocks until the key's mutex is held and returns the release func.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &lockEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
