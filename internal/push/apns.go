package push

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// APNsClient is the part of *apns2.Client used here.
type APNsClient interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// APNsSender delivers to iOS devices with token based authentication.
type APNsSender struct {
	client APNsClient
	topic  string
}

func NewAPNsSender(keyPath, keyID, teamID, bundleID string, production bool) (*APNsSender, error) {
	authKey, err := token.AuthKeyFromFile(keyPath)
	if err != nil {
		return nil, errors.Wrap(err, "load apns auth key")
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   keyID,
		TeamID:  teamID,
	})
	if production {
		client = client.Production()
	} else {
		client = client.Development()
	}
	return NewAPNsSenderWithClient(client, bundleID), nil
}

func NewAPNsSenderWithClient(client APNsClient, bundleID string) *APNsSender {
	return &APNsSender{client: client, topic: bundleID}
}

func (s *APNsSender) Send(ctx context.Context, deviceToken string, n Notification) error {
	p := payload.NewPayload().
		AlertTitle(n.Title).
		AlertBody(n.Body).
		Badge(n.Badge).
		Sound(n.Sound)
	for k, v := range n.Data {
		p.Custom(k, v)
	}
	// Clients read the badge value back as a number.
	p.Custom("unread_total", n.Badge)

	res, err := s.client.PushWithContext(ctx, &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       s.topic,
		Priority:    apns2.PriorityHigh,
		Payload:     p,
	})
	if err != nil {
		return errors.Wrap(err, "apns push")
	}
	if res.Sent() {
		return nil
	}

	switch res.Reason {
	case apns2.ReasonBadDeviceToken, apns2.ReasonUnregistered:
		return errors.Wrap(ErrUnregistered, res.Reason)
	}
	return errors.Errorf("apns rejected notification: %d %s", res.StatusCode, res.Reason)
}
