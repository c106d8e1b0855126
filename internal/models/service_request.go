// internal/models/service_request.go
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a service request.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "InProgress"
	StatusOnHold     Status = "OnHold"
	StatusCompleted  Status = "Completed"
	StatusCanceled   Status = "Canceled"
)

// AllStatuses lists every status in declaration order.
var AllStatuses = []Status{StatusPending, StatusInProgress, StatusOnHold, StatusCompleted, StatusCanceled}

// ParseStatus accepts the canonical names case-insensitively, plus the
// "in_progress" / "on_hold" spellings older clients send.
func ParseStatus(s string) (Status, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	for _, st := range AllStatuses {
		if strings.ToLower(string(st)) == norm {
			return st, nil
		}
	}
	if norm == "cancelled" {
		return StatusCanceled, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// IsTerminal reports whether no further lifecycle mutation is permitted.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

func (s Status) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Priority of a service request.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

var AllPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func ParsePriority(s string) (Priority, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for _, p := range AllPriorities {
		if strings.ToLower(string(p)) == norm {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

// PropertyRef points at the property, and optionally the unit and room, a
// request was raised against.
type PropertyRef struct {
	PropertyID string `json:"propertyId" db:"property_id"`
	UnitID     string `json:"unitId,omitempty" db:"unit_id"`
	RoomID     string `json:"roomId,omitempty" db:"room_id"`
}

type MediaRef struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType,omitempty"`
	Caption     string `json:"caption,omitempty"`
}

// ServiceRequest is a tenant-submitted maintenance ticket.
type ServiceRequest struct {
	Code        string       `json:"code" db:"code"`
	SubmittedAt time.Time    `json:"submittedAt" db:"submitted_at"`
	Category    string       `json:"category" db:"category"`
	Title       string       `json:"title" db:"title"`
	Description string       `json:"description" db:"description"`
	Priority    Priority     `json:"priority" db:"priority"`
	Status      Status       `json:"status" db:"status"`
	TenantID    string       `json:"tenantId" db:"tenant_id"`
	Property    PropertyRef  `json:"property"`
	WorkerID    string       `json:"workerId,omitempty" db:"worker_id"`
	CompletedAt *time.Time   `json:"completedAt,omitempty" db:"completed_at"`
	Media       []MediaRef   `json:"media,omitempty"`
	ActivityLog []AuditEntry `json:"activityLog"`
	Version     int64        `json:"version" db:"version"`
}

// HasWorker reports whether a worker is currently assigned.
func (r *ServiceRequest) HasWorker() bool {
	return r.WorkerID != ""
}

// Clone returns a deep copy so callers can never alias store-owned slices.
func (r *ServiceRequest) Clone() *ServiceRequest {
	if r == nil {
		return nil
	}
	c := *r
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	c.Media = append([]MediaRef(nil), r.Media...)
	c.ActivityLog = append([]AuditEntry(nil), r.ActivityLog...)
	return &c
}

// Action labels an audit entry.
type Action string

const (
	ActionSubmitted        Action = "Submitted"
	ActionWorkerAssigned   Action = "WorkerAssigned"
	ActionWorkerReassigned Action = "WorkerReassigned"
	ActionStatusChanged    Action = "StatusChanged"
	ActionNoteAdded        Action = "NoteAdded"
)

// AuditEntry is one immutable line of a request's activity log.
type AuditEntry struct {
	ID               string    `json:"id" db:"id"`
	RequestCode      string    `json:"requestCode" db:"request_code"`
	Timestamp        time.Time `json:"timestamp" db:"created_at"`
	ActorID          string    `json:"actorId" db:"actor_id"`
	Action           Action    `json:"action" db:"action"`
	Details          string    `json:"details,omitempty" db:"details"`
	FromStatus       Status    `json:"fromStatus,omitempty" db:"from_status"`
	ToStatus         Status    `json:"toStatus,omitempty" db:"to_status"`
	PreviousWorkerID string    `json:"previousWorkerId,omitempty" db:"previous_worker_id"`
	NewWorkerID      string    `json:"newWorkerId,omitempty" db:"new_worker_id"`
}

// Worker is an assignable staff member or external contractor.
type Worker struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Role     string `json:"role" db:"role"`
	Active   bool   `json:"active" db:"active"`
	External bool   `json:"external" db:"external"`
}

// Contact holds the addresses a recipient can be reached on.
type Contact struct {
	RecipientID string `json:"recipientId" db:"recipient_id"`
	Name        string `json:"name" db:"name"`
	Email       string `json:"email" db:"email"`
	Phone       string `json:"phone" db:"phone"`
}

// NewAuditEntry stamps a fresh entry for code with a random id.
func NewAuditEntry(code, actorID string, action Action, at time.Time) AuditEntry {
	return AuditEntry{
		ID:          uuid.NewString(),
		RequestCode: code,
		Timestamp:   at,
		ActorID:     actorID,
		Action:      action,
	}
}
