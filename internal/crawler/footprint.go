package crawler

import "sync"

// Footprint remembers every URL key the engine has queued during this run,
// so a link found on many pages is fetched once. It complements the ledger,
// which only learns about a page after it has been fetched.
type Footprint struct {
	mu      sync.Mutex
	entries map[string]struct{}
}

// NewFootprint initialises an empty footprint.
func NewFootprint() *Footprint {
	return &Footprint{entries: make(map[string]struct{})}
}

// Claim records key and reports whether it was new.
func (f *Footprint) Claim(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[key]; ok {
		return false
	}
	f.entries[key] = struct{}{}
	return true
}

// Release forgets key, letting it be queued again.
func (f *Footprint) Release(key string) {
	f.mu.Lock()
	delete(f.entries, key)
	f.mu.Unlock()
}

// Len reports how many keys are claimed.
func (f *Footprint) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}
