// internal/common/camunda/messages.go
package camunda

import (
	"context"
	"time"

	"servicedesk/internal/common/logger"
	"servicedesk/internal/models"
)

// Message names BPMN processes correlate on, keyed by request code.
const (
	MessageRequestSubmitted  = "service-request-submitted"
	MessageStatusChanged     = "service-request-status-changed"
	MessageAssignmentChanged = "service-request-assignment-changed"
	MessageRequestEdited     = "service-request-edited"
)

const (
	defaultMessageTimeToLive = time.Hour
	messagePublishTimeout    = 10 * time.Second
)

// MessageSink publishes lifecycle events as Zeebe messages so waiting process
// instances (SLA timers, escalation flows) can continue.
type MessageSink struct {
	client *Client
	ttl    time.Duration
	logger logger.Logger
}

func NewMessageSink(client *Client, log logger.Logger) *MessageSink {
	return &MessageSink{
		client: client,
		ttl:    defaultMessageTimeToLive,
		logger: log.WithFields(map[string]interface{}{"component": "zeebe-message-sink"}),
	}
}

func (s *MessageSink) Publish(ctx context.Context, event models.LifecycleEvent) {
	name, key, vars := lifecycleMessage(event)
	if name == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, messagePublishTimeout)
	defer cancel()

	_, err := s.client.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		cmd, err := s.client.GetClient().NewPublishMessageCommand().
			MessageName(name).
			CorrelationKey(key).
			TimeToLive(s.ttl).
			VariablesFromMap(vars)
		if err != nil {
			return nil, err
		}
		return cmd.Send(ctx)
	}, "publish "+name)
	if err != nil {
		s.logger.Warn("failed to publish lifecycle message", map[string]interface{}{
			"message":     name,
			"requestCode": key,
			"error":       err.Error(),
		})
	}
}

func lifecycleMessage(event models.LifecycleEvent) (name, correlationKey string, vars map[string]interface{}) {
	vars = map[string]interface{}{
		"requestCode": event.Request.Code,
		"status":      string(event.Request.Status),
		"priority":    string(event.Request.Priority),
		"actorId":     event.ActorID,
		"occurredAt":  event.OccurredAt.UTC().Format(time.RFC3339),
	}

	switch event.Type {
	case models.EventStatusChanged:
		name = MessageStatusChanged
		vars["fromStatus"] = string(event.FromStatus)
		vars["toStatus"] = string(event.ToStatus)
	case models.EventAssignmentChanged:
		name = MessageAssignmentChanged
		vars["previousWorkerId"] = event.PreviousWorkerID
		vars["newWorkerId"] = event.NewWorkerID
	case models.EventEdited:
		name = MessageRequestEdited
		vars["category"] = event.Request.Category
		vars["title"] = event.Request.Title
	case models.EventSubmitted:
		name = MessageRequestSubmitted
		vars["tenantId"] = event.Request.TenantID
	default:
		return "", event.Request.Code, nil
	}

	return name, event.Request.Code, vars
}
