package push

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/orirot10/GIVEIT-sub000/internal/models"
)

const defaultFanOutLimit = 8

// Directory resolves users and their devices.
type Directory interface {
	GetProfile(ctx context.Context, userID uint) (*models.User, error)
	GetPushEndpoints(ctx context.Context, userID uint) ([]models.PushEndpoint, error)
	RemovePushEndpoint(ctx context.Context, userID uint, token string, platform models.Platform) error
}

// Dispatcher sends one notification per recipient endpoint through the sender
// registered for the endpoint's platform. It never reports failure to callers.
type Dispatcher struct {
	directory     Directory
	senders       map[models.Platform]Sender
	bodyMaxLength int
	fanOutLimit   int
	logger        *zap.Logger
}

func NewDispatcher(directory Directory, senders map[models.Platform]Sender, bodyMaxLength int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if senders == nil {
		senders = map[models.Platform]Sender{}
	}
	return &Dispatcher{
		directory:     directory,
		senders:       senders,
		bodyMaxLength: bodyMaxLength,
		fanOutLimit:   defaultFanOutLimit,
		logger:        logger.Named("push"),
	}
}

// SendMessageNotification delivers n to every registered device of the
// recipient. Missing users and users without devices are silently skipped.
func (d *Dispatcher) SendMessageNotification(ctx context.Context, n MessageNotification) {
	log := d.logger.With(
		zap.Uint("recipient_id", n.RecipientID),
		zap.Uint("conversation_id", n.ConversationID),
	)

	endpoints, err := d.directory.GetPushEndpoints(ctx, n.RecipientID)
	if err != nil {
		log.Debug("skip push: endpoints unavailable", zap.Error(err))
		return
	}
	if len(endpoints) == 0 {
		return
	}

	sender, err := d.directory.GetProfile(ctx, n.SenderID)
	if err != nil {
		log.Debug("skip push: sender unavailable", zap.Uint("sender_id", n.SenderID), zap.Error(err))
		return
	}

	note := BuildNotification(n, sender.NameOr(DefaultTitle), d.bodyMaxLength)

	var g errgroup.Group
	g.SetLimit(d.fanOutLimit)
	for _, ep := range endpoints {
		ep := ep
		g.Go(func() error {
			if err := d.deliver(ctx, ep, note); err != nil {
				d.handleFailure(ctx, log, ep, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, ep models.PushEndpoint, note Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DeliveryError{Platform: ep.Platform, Token: ep.Token, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	sender, ok := d.senders[ep.Platform]
	if !ok || sender == nil {
		return &DeliveryError{Platform: ep.Platform, Token: ep.Token, Cause: ErrProviderUnavailable}
	}
	if err := sender.Send(ctx, ep.Token, note); err != nil {
		return &DeliveryError{Platform: ep.Platform, Token: ep.Token, Cause: err}
	}
	return nil
}

func (d *Dispatcher) handleFailure(ctx context.Context, log *zap.Logger, ep models.PushEndpoint, err error) {
	if errors.Is(err, ErrProviderUnavailable) {
		log.Debug("push provider not configured", zap.String("platform", string(ep.Platform)))
		return
	}
	log.Warn("push delivery failed", zap.Error(err))

	if errors.Is(err, ErrUnregistered) {
		if rmErr := d.directory.RemovePushEndpoint(ctx, ep.UserID, ep.Token, ep.Platform); rmErr != nil {
			log.Warn("failed to prune push endpoint", zap.Error(rmErr))
		}
	}
}
