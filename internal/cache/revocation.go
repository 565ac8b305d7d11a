package cache

import (
	"context"
	"fmt"
	"time"
)

// revokedTokenPrefix is the Redis key prefix for revoked token identifiers.
const revokedTokenPrefix = "revoked:token:"

// RevocationStore keeps revoked token identifiers in Redis.
// Each key expires together with the token it blocks, so the set never
// holds entries that expiry alone would reject.
type RevocationStore struct {
	cache *Cache
	now   func() time.Time
}

// NewRevocationStore creates a Redis-backed revocation store.
func NewRevocationStore(c *Cache) *RevocationStore {
	return &RevocationStore{cache: c, now: time.Now}
}

// Revoke stores tokenID until expiresAt.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := revocationTTL(expiresAt, s.now())
	if ttl <= 0 {
		return nil
	}

	if err := s.cache.client.Set(ctx, revokedTokenPrefix+tokenID, expiresAt.Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("store revocation: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID has a live revocation key.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.cache.client.Exists(ctx, revokedTokenPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return n > 0, nil
}

// revocationTTL returns the remaining token lifetime rounded up to a whole second.
func revocationTTL(expiresAt, now time.Time) time.Duration {
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	if rem := remaining % time.Second; rem != 0 {
		remaining += time.Second - rem
	}
	return remaining
}
