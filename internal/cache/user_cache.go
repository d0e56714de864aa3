package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	OnlineUsersTTL = 90 * time.Second // Match pong timeout
)

// PresenceCache tracks which users hold at least one live socket on any
// instance. A user with several devices is online until the last one leaves.
type PresenceCache struct {
	redis *RedisCache
}

// NewPresenceCache creates a new presence cache
func NewPresenceCache(redis *RedisCache) *PresenceCache {
	return &PresenceCache{redis: redis}
}

func presenceKey(userID uint) string {
	return fmt.Sprintf("online:%d", userID)
}

// Connect records one more live connection for userID
func (pc *PresenceCache) Connect(ctx context.Context, userID uint) error {
	if pc == nil || pc.redis == nil {
		return nil
	}
	key := presenceKey(userID)
	if _, err := pc.redis.Incr(ctx, key); err != nil {
		return err
	}
	return pc.redis.Expire(ctx, key, OnlineUsersTTL)
}

// Disconnect drops one live connection for userID
func (pc *PresenceCache) Disconnect(ctx context.Context, userID uint) error {
	if pc == nil || pc.redis == nil {
		return nil
	}
	key := presenceKey(userID)
	n, err := pc.redis.Decr(ctx, key)
	if err != nil {
		return err
	}
	if n <= 0 {
		return pc.redis.Delete(ctx, key)
	}
	return nil
}

// Refresh extends the TTL for an online user
func (pc *PresenceCache) Refresh(ctx context.Context, userID uint) error {
	if pc == nil || pc.redis == nil {
		return nil
	}
	return pc.redis.Expire(ctx, presenceKey(userID), OnlineUsersTTL)
}

// IsOnline checks if a user is online
func (pc *PresenceCache) IsOnline(ctx context.Context, userID uint) bool {
	if pc == nil || pc.redis == nil {
		return false
	}
	return pc.redis.Exists(ctx, presenceKey(userID))
}
