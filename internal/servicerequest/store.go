package servicerequest

import (
	"context"
	"errors"
	"fmt"

	"servicedesk/internal/models"
)

var (
	// ErrDuplicateCode is returned by Insert when the code is already taken.
	ErrDuplicateCode = errors.New("service request code already exists")

	// ErrNoChange tells Update the mutation is a no-op; nothing is persisted
	// and the current snapshot is returned.
	ErrNoChange = errors.New("no change")
)

// MutateFunc edits a private copy of the request. New audit entries are
// appended to req.ActivityLog; existing entries must not be touched.
type MutateFunc func(req *models.ServiceRequest) error

// Store persists service requests and their activity logs. Update must
// serialize concurrent mutations of the same code.
type Store interface {
	Insert(ctx context.Context, req *models.ServiceRequest) error
	Get(ctx context.Context, code string) (*models.ServiceRequest, error)
	List(ctx context.Context, filter Filter) ([]*models.ServiceRequest, error)
	Update(ctx context.Context, code string, fn MutateFunc) (*models.ServiceRequest, error)
}

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Status     models.Status
	Priority   models.Priority
	WorkerID   string
	TenantID   string
	PropertyID string
	Limit      int
}

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	}
	return f.Limit
}

func (f Filter) matches(r *models.ServiceRequest) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Priority != "" && r.Priority != f.Priority {
		return false
	}
	if f.WorkerID != "" && r.WorkerID != f.WorkerID {
		return false
	}
	if f.TenantID != "" && r.TenantID != f.TenantID {
		return false
	}
	if f.PropertyID != "" && r.Property.PropertyID != f.PropertyID {
		return false
	}
	return true
}

// appendedEntries returns the audit entries a mutation added on top of orig.
// The log is append-only, so a shorter log is rejected.
func appendedEntries(orig, mutated *models.ServiceRequest) ([]models.AuditEntry, error) {
	if len(mutated.ActivityLog) < len(orig.ActivityLog) {
		return nil, fmt.Errorf("activity log of %s shrank from %d to %d entries", orig.Code, len(orig.ActivityLog), len(mutated.ActivityLog))
	}
	added := append([]models.AuditEntry(nil), mutated.ActivityLog[len(orig.ActivityLog):]...)
	for i := range added {
		added[i].RequestCode = orig.Code
	}
	return added, nil
}
