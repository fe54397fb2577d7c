package ledger

import (
	"context"
	"sync"
)

// Memory keeps both sets in process memory for the lifetime of the run.
// Entries are never evicted.
type Memory struct {
	mu           sync.Mutex
	urls         map[string]struct{}
	fingerprints map[string]struct{}
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		urls:         make(map[string]struct{}),
		fingerprints: make(map[string]struct{}),
	}
}

// Seen reports whether url was marked.
func (m *Memory) Seen(_ context.Context, url string) (bool, error) {
	m.mu.Lock()
	_, ok := m.urls[url]
	m.mu.Unlock()
	return ok, nil
}

// MarkSeen inserts url and reports whether it was absent.
func (m *Memory) MarkSeen(_ context.Context, url string) (bool, error) {
	return m.insert(m.urls, url), nil
}

// IsDuplicate reports whether fingerprint was recorded.
func (m *Memory) IsDuplicate(_ context.Context, fingerprint string) (bool, error) {
	m.mu.Lock()
	_, ok := m.fingerprints[fingerprint]
	m.mu.Unlock()
	return ok, nil
}

// RecordFingerprint inserts fingerprint and reports whether it was absent.
func (m *Memory) RecordFingerprint(_ context.Context, fingerprint string) (bool, error) {
	return m.insert(m.fingerprints, fingerprint), nil
}

// Stats reports the size of both sets.
func (m *Memory) Stats(context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{URLs: int64(len(m.urls)), Fingerprints: int64(len(m.fingerprints))}, nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}

func (m *Memory) insert(set map[string]struct{}, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := set[key]; ok {
		return false
	}
	set[key] = struct{}{}
	return true
}
