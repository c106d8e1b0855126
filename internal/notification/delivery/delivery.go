// Package delivery hands gated notifications to email, SMS and in-app
// channels. Delivery is best effort: failures are reported, never retried.
package delivery

import (
	"context"
	"errors"
	"fmt"

	apperrors "servicedesk/internal/common/errors"
	"servicedesk/internal/common/logger"
	"servicedesk/internal/models"
)

// Service delivers one notification over one channel.
type Service interface {
	Send(ctx context.Context, recipientID string, channel models.Channel, title, body string) error
}

// Channel is a single delivery medium.
type Channel interface {
	Deliver(ctx context.Context, recipientID, title, body string) error
}

// Router implements Service by dispatching to the configured Channel.
type Router struct {
	channels map[models.Channel]Channel
	logger   logger.Logger
}

func NewRouter(log logger.Logger) *Router {
	return &Router{
		channels: make(map[models.Channel]Channel),
		logger:   log.WithFields(map[string]interface{}{"component": "delivery-router"}),
	}
}

// Register binds ch to channel. It is not safe to call after Send is in use.
func (r *Router) Register(channel models.Channel, ch Channel) *Router {
	r.channels[channel] = ch
	return r
}

func (r *Router) Send(ctx context.Context, recipientID string, channel models.Channel, title, body string) error {
	ch, ok := r.channels[channel]
	if !ok {
		return apperrors.NewDeliveryFailedError(string(channel), errors.New("channel not configured"))
	}

	if err := ch.Deliver(ctx, recipientID, title, body); err != nil {
		return apperrors.NewDeliveryFailedError(string(channel), err)
	}

	r.logger.Debug("notification delivered", map[string]interface{}{
		"recipientId": recipientID,
		"channel":     string(channel),
	})
	return nil
}

func missingAddress(kind, recipientID string) error {
	return fmt.Errorf("recipient %s has no %s on file", recipientID, kind)
}
