// Package preferences persists per-recipient notification preferences.
// A record is always replaced whole; there are no partial updates.
package preferences

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "servicedesk/internal/common/errors"
	"servicedesk/internal/models"
)

type Store interface {
	// Get returns a NOT_FOUND StandardError when the recipient has no record.
	Get(ctx context.Context, recipientID string) (models.NotificationPreferences, error)
	Replace(ctx context.Context, prefs models.NotificationPreferences) error
}

// Load returns the stored preferences, or DefaultPreferences when the
// recipient never saved any.
func Load(ctx context.Context, s Store, recipientID string) (models.NotificationPreferences, error) {
	prefs, err := s.Get(ctx, recipientID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return models.DefaultPreferences(recipientID), nil
	}
	if err != nil {
		return models.NotificationPreferences{}, err
	}
	return prefs, nil
}

// Validate rejects records the gate could not evaluate consistently.
func Validate(prefs models.NotificationPreferences) error {
	if strings.TrimSpace(prefs.RecipientID) == "" {
		return apperrors.NewValidationError("recipient id is required")
	}
	if (prefs.QuietHoursStart == nil) != (prefs.QuietHoursEnd == nil) {
		return apperrors.NewValidationError("quiet hours need both a start and an end")
	}
	for _, t := range []*models.TimeOfDay{prefs.QuietHoursStart, prefs.QuietHoursEnd} {
		if t != nil && (*t < 0 || *t >= 24*60) {
			return apperrors.NewValidationError("quiet hours must be within a single day")
		}
	}
	if prefs.Timezone != "" {
		if _, err := time.LoadLocation(prefs.Timezone); err != nil {
			return apperrors.NewValidationError("unknown timezone " + prefs.Timezone)
		}
	}
	return nil
}
