// Package history provides the sent-recipient store for sendhub.
// Re-running the whole dispatch is the retry mechanism, so a rerun must not
// message recipients the previous run already reached. The store records
// sent recipients under a caller-chosen run key and answers "already sent?"
// on the next run. It never retries anything itself.
package history

import (
	"context"
	"sync"
)

// Store records which recipients a keyed run has already reached.
type Store interface {
	// Seen reports whether the recipient was already sent to under runKey.
	Seen(ctx context.Context, runKey, recipientID string) (bool, error)
	// MarkSent records a successful delivery under runKey.
	MarkSent(ctx context.Context, runKey, recipientID string) error
	// Close releases the store.
	Close() error
}

// MemoryStore is an in-process Store. It only survives a single process, so
// it suppresses duplicates within one invocation (e.g. overlapping platforms)
// rather than across reruns.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]map[string]bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]map[string]bool),
	}
}

// Seen reports whether the recipient was recorded under runKey.
func (s *MemoryStore) Seen(_ context.Context, runKey, recipientID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runs[runKey][recipientID], nil
}

// MarkSent records the recipient under runKey.
func (s *MemoryStore) MarkSent(_ context.Context, runKey, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := s.runs[runKey]
	if run == nil {
		run = make(map[string]bool)
		s.runs[runKey] = run
	}
	run[recipientID] = true
	return nil
}

// Close does nothing for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
