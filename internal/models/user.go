package models

import (
	"strconv"
	"strings"
	"time"
)

// User is the directory record of a marketplace member. Identity itself lives
// with the external identity provider; this row only carries what messaging needs.
type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DisplayName string `json:"display_name"`

	PushEndpoints []PushEndpoint `gorm:"foreignKey:UserID" json:"-"`
}

// Name resolves the human readable name: DisplayName, then "first last".
// It returns "" when neither is set.
func (u *User) Name() string {
	if u == nil {
		return ""
	}
	if n := strings.TrimSpace(u.DisplayName); n != "" {
		return n
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NameOr returns Name() or fallback when the user has no name.
func (u *User) NameOr(fallback string) string {
	if n := u.Name(); n != "" {
		return n
	}
	return fallback
}

type UserResponse struct {
	ID          uint   `json:"id"`
	DisplayName string `json:"display_name"`
}

func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:          u.ID,
		DisplayName: u.NameOr(strconv.FormatUint(uint64(u.ID), 10)),
	}
}
