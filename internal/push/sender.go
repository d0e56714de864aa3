package push

import (
	"context"
	"errors"
	"fmt"

	"github.com/orirot10/GIVEIT-sub000/internal/models"
)

var (
	// ErrProviderUnavailable is returned for a platform with no configured provider.
	ErrProviderUnavailable = errors.New("push provider unavailable")
	// ErrUnregistered means the provider no longer accepts the device token.
	ErrUnregistered = errors.New("device token unregistered")
)

// Sender delivers one notification to one device token.
type Sender interface {
	Send(ctx context.Context, token string, n Notification) error
}

// UnavailableSender stands in for a platform whose provider is not configured.
type UnavailableSender struct{}

func (UnavailableSender) Send(context.Context, string, Notification) error {
	return ErrProviderUnavailable
}

// DeliveryError is the failure of a single endpoint. It is logged by the
// dispatcher and never returned to callers.
type DeliveryError struct {
	Platform models.Platform
	Token    string
	Cause    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("push to %s endpoint %s: %v", e.Platform, redact(e.Token), e.Cause)
}

func (e *DeliveryError) Unwrap() error {
	return e.Cause
}

// redact keeps enough of a token to correlate logs.
func redact(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "…"
}
