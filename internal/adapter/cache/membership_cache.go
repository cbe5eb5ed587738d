package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smallbiznis/valora-identity/internal/service"
)

// MembershipCache stores per-user organisation ID sets in Redis with a short
// TTL. It is purely an authorization-path accelerator; membership writes
// invalidate the affected user's entry.
type MembershipCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ service.MembershipCache = (*MembershipCache)(nil)

// NewMembershipCache constructs a Redis-backed membership cache.
func NewMembershipCache(client redis.UniversalClient, ttl time.Duration) *MembershipCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &MembershipCache{client: client, ttl: ttl}
}

// Get loads the cached org-ID set. A miss returns hit=false with no error.
func (c *MembershipCache) Get(ctx context.Context, userID string) ([]string, bool, error) {
	payload, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load membership set: %w", err)
	}

	var orgIDs []string
	if err := json.Unmarshal(payload, &orgIDs); err != nil {
		return nil, false, fmt.Errorf("decode membership set: %w", err)
	}
	return orgIDs, true, nil
}

// Set stores the org-ID set with the configured TTL.
func (c *MembershipCache) Set(ctx context.Context, userID string, orgIDs []string) error {
	payload, err := json.Marshal(orgIDs)
	if err != nil {
		return fmt.Errorf("encode membership set: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(userID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("persist membership set: %w", err)
	}
	return nil
}

// Invalidate removes the cached entry for a user.
func (c *MembershipCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("invalidate membership set: %w", err)
	}
	return nil
}

func cacheKey(userID string) string {
	return "memberships:" + userID
}
