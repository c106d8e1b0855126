package models

import (
	"context"
	"time"
)

type LifecycleEventType string

const (
	EventSubmitted         LifecycleEventType = "submitted"
	EventStatusChanged     LifecycleEventType = "status_changed"
	EventAssignmentChanged LifecycleEventType = "assignment_changed"
	// EventEdited follows a change to descriptive fields. No audit entry
	// backs it and nobody is notified.
	EventEdited LifecycleEventType = "edited"
)

// LifecycleEvent is emitted after a request mutation has been persisted.
type LifecycleEvent struct {
	Type             LifecycleEventType `json:"type"`
	Request          ServiceRequest     `json:"request"`
	ActorID          string             `json:"actorId"`
	FromStatus       Status             `json:"fromStatus,omitempty"`
	ToStatus         Status             `json:"toStatus,omitempty"`
	PreviousWorkerID string             `json:"previousWorkerId,omitempty"`
	NewWorkerID      string             `json:"newWorkerId,omitempty"`
	Comment          string             `json:"comment,omitempty"`
	OccurredAt       time.Time          `json:"occurredAt"`
}

// EventSink receives lifecycle events. Implementations must not fail the
// mutation that produced the event, so Publish has no error return.
type EventSink interface {
	Publish(ctx context.Context, event LifecycleEvent)
}
