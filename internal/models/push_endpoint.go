package models

import (
	"strings"
	"time"
)

type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

// ParsePlatform normalizes case and surrounding space. The result may still be invalid.
func ParsePlatform(s string) Platform {
	return Platform(strings.ToLower(strings.TrimSpace(s)))
}

func (p Platform) Valid() bool {
	return p == PlatformAndroid || p == PlatformIOS
}

// PushEndpoint is one registered device of a user.
type PushEndpoint struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_push_endpoint" json:"user_id"`
	Token     string    `gorm:"type:text;not null;uniqueIndex:idx_push_endpoint" json:"token"`
	Platform  Platform  `gorm:"type:varchar(16);not null;uniqueIndex:idx_push_endpoint" json:"platform"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
