// Package directory resolves workers, properties and recipient contacts
// owned by other parts of the platform. All lookups are read-only.
package directory

import (
	"context"
	"errors"

	apperrors "servicedesk/internal/common/errors"
	"servicedesk/internal/models"
)

// UnknownWorker is shown when a stored worker reference no longer resolves.
const UnknownWorker = "unknown worker"

type WorkerDirectory interface {
	// Lookup returns a NOT_FOUND StandardError for unknown ids.
	Lookup(ctx context.Context, workerID string) (models.Worker, error)
	// DisplayName never fails; stale ids render as UnknownWorker.
	DisplayName(ctx context.Context, workerID string) string
}

type PropertyDirectory interface {
	TenantName(ctx context.Context, tenantID string) (string, error)
	PropertyLabel(ctx context.Context, ref models.PropertyRef) (string, error)
}

type ContactDirectory interface {
	Contact(ctx context.Context, recipientID string) (models.Contact, error)
}

// workerLookup is the part of a WorkerDirectory displayName needs.
type workerLookup interface {
	Lookup(ctx context.Context, workerID string) (models.Worker, error)
}

func displayName(ctx context.Context, d workerLookup, workerID string) string {
	if workerID == "" {
		return UnknownWorker
	}
	w, err := d.Lookup(ctx, workerID)
	if err != nil || w.Name == "" {
		return UnknownWorker
	}
	return w.Name
}

func isNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound)
}
