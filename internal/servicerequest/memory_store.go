package servicerequest

import (
	"context"
	"errors"
	"sort"
	"sync"

	apperrors "servicedesk/internal/common/errors"
	"servicedesk/internal/models"
)

type memoryEntry struct {
	mu  sync.Mutex
	req *models.ServiceRequest
}

// MemoryStore keeps requests in process. Each request has its own mutex so
// unrelated requests never contend.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) Insert(_ context.Context, req *models.ServiceRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[req.Code]; exists {
		return ErrDuplicateCode
	}
	s.entries[req.Code] = &memoryEntry{req: req.Clone()}
	return nil
}

func (s *MemoryStore) entry(code string) (*memoryEntry, error) {
	s.mu.RLock()
	e, ok := s.entries[code]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFoundError("service request", code)
	}
	return e, nil
}

func (s *MemoryStore) Get(_ context.Context, code string) (*models.ServiceRequest, error) {
	e, err := s.entry(code)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.req.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context, filter Filter) ([]*models.ServiceRequest, error) {
	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]*models.ServiceRequest, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if filter.matches(e.req) {
			out = append(out, e.req.Clone())
		}
		e.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].Code > out[j].Code
		}
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})

	if limit := filter.limit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, code string, fn MutateFunc) (*models.ServiceRequest, error) {
	e, err := s.entry(code)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	working := e.req.Clone()
	if err := fn(working); err != nil {
		if errors.Is(err, ErrNoChange) {
			return e.req.Clone(), nil
		}
		return nil, err
	}

	added, err := appendedEntries(e.req, working)
	if err != nil {
		return nil, err
	}

	working.Code = e.req.Code
	working.ActivityLog = append(append([]models.AuditEntry(nil), e.req.ActivityLog...), added...)
	working.Version = e.req.Version + 1
	e.req = working
	return working.Clone(), nil
}
