package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/orirot10/GIVEIT-sub000/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

const ProfileTTL = 5 * time.Minute

// ProfileCache keeps user profiles for push titles and list rows. Only the
// fields messaging reads are stored.
type ProfileCache struct {
	redis *RedisCache
}

// NewProfileCache creates a new profile cache
func NewProfileCache(redis *RedisCache) *ProfileCache {
	return &ProfileCache{redis: redis}
}

type cachedProfile struct {
	ID          uint   `msgpack:"id"`
	DisplayName string `msgpack:"dn"`
	FirstName   string `msgpack:"fn"`
	LastName    string `msgpack:"ln"`
}

func profileKey(userID uint) string {
	return fmt.Sprintf("profile:%d", userID)
}

func encodeProfile(user *models.User) ([]byte, error) {
	return msgpack.Marshal(cachedProfile{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
	})
}

func decodeProfile(data []byte) (*models.User, error) {
	var p cachedProfile
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &models.User{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
	}, nil
}

// Get returns the cached profile and whether it was found
func (pc *ProfileCache) Get(ctx context.Context, userID uint) (*models.User, bool) {
	if pc == nil || pc.redis == nil {
		return nil, false
	}
	data, err := pc.redis.Get(ctx, profileKey(userID))
	if err != nil || data == nil {
		return nil, false
	}
	user, err := decodeProfile(data)
	if err != nil {
		return nil, false
	}
	return user, true
}

// Set caches a profile
func (pc *ProfileCache) Set(ctx context.Context, user *models.User) error {
	if pc == nil || pc.redis == nil || user == nil {
		return nil
	}
	data, err := encodeProfile(user)
	if err != nil {
		return err
	}
	return pc.redis.Set(ctx, profileKey(user.ID), data, ProfileTTL)
}
