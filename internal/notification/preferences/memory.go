package preferences

import (
	"context"
	"sync"
	"time"

	apperrors "servicedesk/internal/common/errors"
	"servicedesk/internal/models"
)

type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.NotificationPreferences
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]models.NotificationPreferences),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, recipientID string) (models.NotificationPreferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.records[recipientID]
	if !ok {
		return models.NotificationPreferences{}, apperrors.NewNotFoundError("notification preferences", recipientID)
	}
	return clonePrefs(p), nil
}

func (s *MemoryStore) Replace(_ context.Context, prefs models.NotificationPreferences) error {
	if err := Validate(prefs); err != nil {
		return err
	}
	prefs = clonePrefs(prefs)
	prefs.UpdatedAt = s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[prefs.RecipientID] = prefs
	return nil
}

func clonePrefs(p models.NotificationPreferences) models.NotificationPreferences {
	if p.QuietHoursStart != nil {
		v := *p.QuietHoursStart
		p.QuietHoursStart = &v
	}
	if p.QuietHoursEnd != nil {
		v := *p.QuietHoursEnd
		p.QuietHoursEnd = &v
	}
	return p
}
