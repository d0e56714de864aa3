package cache

import (
	"context"
	"testing"

	"github.com/orirot10/GIVEIT-sub000/internal/models"
)

func TestNilCachesAreNoops(t *testing.T) {
	ctx := context.Background()

	var presence *PresenceCache
	if err := presence.Connect(ctx, 1); err != nil {
		t.Errorf("Connect on nil cache: %v", err)
	}
	if err := presence.Disconnect(ctx, 1); err != nil {
		t.Errorf("Disconnect on nil cache: %v", err)
	}
	if presence.IsOnline(ctx, 1) {
		t.Error("nil cache reported user online")
	}

	profiles := NewProfileCache(nil)
	if err := profiles.Set(ctx, &models.User{ID: 1}); err != nil {
		t.Errorf("Set on nil redis: %v", err)
	}
	if _, ok := profiles.Get(ctx, 1); ok {
		t.Error("nil redis returned a cached profile")
	}
}

func TestProfileEncoding(t *testing.T) {
	user := &models.User{
		ID:          7,
		Email:       "bob@example.com",
		DisplayName: "Bob",
		FirstName:   "Robert",
		LastName:    "Smith",
	}

	data, err := encodeProfile(user)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeProfile(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.ID != 7 || got.Name() != "Bob" || got.LastName != "Smith" {
		t.Errorf("unexpected profile %+v", got)
	}
	if got.Email != "" {
		t.Errorf("email should not be cached, got %q", got.Email)
	}
}

func TestKeys(t *testing.T) {
	if got := presenceKey(42); got != "online:42" {
		t.Errorf("presenceKey = %q", got)
	}
	if got := profileKey(42); got != "profile:42" {
		t.Errorf("profileKey = %q", got)
	}
}
