// Package events fans lifecycle events out to every registered sink.
package events

import (
	"context"

	"servicedesk/internal/common/logger"
	"servicedesk/internal/common/metrics"
	"servicedesk/internal/models"
)

type subscriber struct {
	name string
	sink models.EventSink
}

// Bus is a models.EventSink that forwards each event to its subscribers in
// registration order. A panicking subscriber is logged and skipped.
type Bus struct {
	subscribers []subscriber
	logger      logger.Logger
}

func NewBus(log logger.Logger) *Bus {
	return &Bus{logger: log.WithFields(map[string]interface{}{"component": "event-bus"})}
}

// Subscribe must be called before the bus is shared.
func (b *Bus) Subscribe(name string, sink models.EventSink) *Bus {
	if sink != nil {
		b.subscribers = append(b.subscribers, subscriber{name: name, sink: sink})
	}
	return b
}

func (b *Bus) Publish(ctx context.Context, event models.LifecycleEvent) {
	for _, s := range b.subscribers {
		b.deliver(ctx, s, event)
	}
}

func (b *Bus) deliver(ctx context.Context, s subscriber, event models.LifecycleEvent) {
	defer func() {
		if r := recover(); r != nil {
			metrics.EventSinkPanics.WithLabelValues(s.name).Inc()
			b.logger.Error("event sink panicked", map[string]interface{}{
				"sink":  s.name,
				"code":  event.Request.Code,
				"type":  string(event.Type),
				"panic": r,
			})
		}
	}()
	s.sink.Publish(ctx, event)
}
