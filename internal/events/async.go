package events

import (
	"context"
	"sync"

	"servicedesk/internal/common/logger"
	"servicedesk/internal/common/metrics"
	"servicedesk/internal/models"
)

type queuedEvent struct {
	ctx   context.Context
	event models.LifecycleEvent
}

// AsyncSink runs the wrapped sink on a fixed pool of goroutines so the
// mutation that produced an event never waits on it. When the queue is full
// the event is dropped.
type AsyncSink struct {
	name   string
	next   models.EventSink
	queue  chan queuedEvent
	logger logger.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewAsyncSink(name string, next models.EventSink, workers, queueSize int, log logger.Logger) *AsyncSink {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}

	s := &AsyncSink{
		name:   name,
		next:   next,
		queue:  make(chan queuedEvent, queueSize),
		logger: log.WithFields(map[string]interface{}{"component": "async-sink", "sink": name}),
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.run()
	}
	return s
}

func (s *AsyncSink) Publish(ctx context.Context, event models.LifecycleEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		metrics.EventSinkDropped.WithLabelValues(s.name, "closed").Inc()
		s.logger.Warn("sink closed, dropping lifecycle event", map[string]interface{}{
			"code": event.Request.Code,
			"type": string(event.Type),
		})
		return
	}

	// Detach from the caller's cancellation; request-scoped values survive.
	select {
	case s.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
		metrics.EventSinkQueueDepth.WithLabelValues(s.name).Set(float64(len(s.queue)))
	default:
		metrics.EventSinkDropped.WithLabelValues(s.name, "queue_full").Inc()
		s.logger.Warn("sink queue full, dropping lifecycle event", map[string]interface{}{
			"code": event.Request.Code,
			"type": string(event.Type),
		})
	}
}

func (s *AsyncSink) run() {
	defer s.wg.Done()
	for q := range s.queue {
		metrics.EventSinkQueueDepth.WithLabelValues(s.name).Set(float64(len(s.queue)))
		s.deliver(q)
	}
}

func (s *AsyncSink) deliver(q queuedEvent) {
	defer func() {
		if r := recover(); r != nil {
			metrics.EventSinkPanics.WithLabelValues(s.name).Inc()
			s.logger.Error("event sink panicked", map[string]interface{}{
				"code":  q.event.Request.Code,
				"type":  string(q.event.Type),
				"panic": r,
			})
		}
	}()
	s.next.Publish(q.ctx, q.event)
}

// Close stops accepting events and waits for queued ones to be delivered,
// or for ctx to end.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
