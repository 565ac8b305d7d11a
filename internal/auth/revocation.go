package auth

import (
	"context"
	"sync"
	"time"
)

// pruneThreshold triggers an inline prune when the map grows past it.
const pruneThreshold = 10_000

// MemoryRevocationStore keeps revocation entries in a guarded map.
// Entries are dropped once their expiry passes.
type MemoryRevocationStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocationStore creates an empty store.
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke records tokenID until expiresAt.
func (s *MemoryRevocationStore) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	now := s.now()
	if !expiresAt.After(now) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= pruneThreshold {
		s.pruneLocked(now)
	}
	s.entries[tokenID] = expiresAt
	return nil
}

// IsRevoked reports whether tokenID has a live entry.
func (s *MemoryRevocationStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	expiresAt, ok := s.entries[tokenID]
	s.mu.RUnlock()

	return ok && expiresAt.After(s.now()), nil
}

// Prune removes expired entries and returns how many were removed.
func (s *MemoryRevocationStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(s.now())
}

func (s *MemoryRevocationStore) pruneLocked(now time.Time) int {
	removed := 0
	for id, expiresAt := range s.entries {
		if !expiresAt.After(now) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, including stale ones not yet pruned.
func (s *MemoryRevocationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Run prunes every interval until ctx is cancelled.
func (s *MemoryRevocationStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Prune()
		}
	}
}
