package directory

import (
	"context"
	"strings"
	"sync"

	"servicedesk/internal/common/config"
	apperrors "servicedesk/internal/common/errors"
	"servicedesk/internal/models"
)

// Memory is an in-process directory used by the memory store mode and tests.
type Memory struct {
	mu         sync.RWMutex
	workers    map[string]models.Worker
	tenants    map[string]string
	properties map[string]string
	contacts   map[string]models.Contact
}

func NewMemory() *Memory {
	return &Memory{
		workers:    make(map[string]models.Worker),
		tenants:    make(map[string]string),
		properties: make(map[string]string),
		contacts:   make(map[string]models.Contact),
	}
}

// NewMemoryFromConfig builds a Memory holding the entries listed under the
// directory section of the configuration.
func NewMemoryFromConfig(seed config.DirectoryConfig) *Memory {
	m := NewMemory()
	for _, w := range seed.Workers {
		m.PutWorker(models.Worker{ID: w.ID, Name: w.Name, Role: w.Role, Active: w.Active, External: w.External})
	}
	for _, t := range seed.Tenants {
		m.PutTenant(t.ID, t.Name)
	}
	for _, p := range seed.Properties {
		m.PutProperty(p.ID, p.Name)
	}
	for _, c := range seed.Contacts {
		m.PutContact(models.Contact{RecipientID: c.RecipientID, Name: c.Name, Email: c.Email, Phone: c.Phone})
	}
	return m
}

func (m *Memory) PutWorker(w models.Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers[w.ID] = w
}

func (m *Memory) RemoveWorker(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.workers, id)
}

func (m *Memory) PutTenant(id, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[id] = name
}

func (m *Memory) PutProperty(id, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.properties[id] = name
}

func (m *Memory) PutContact(c models.Contact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts[c.RecipientID] = c
}

func (m *Memory) Lookup(_ context.Context, workerID string) (models.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workers[workerID]
	if !ok {
		return models.Worker{}, apperrors.NewNotFoundError("worker", workerID)
	}
	return w, nil
}

func (m *Memory) DisplayName(ctx context.Context, workerID string) string {
	return displayName(ctx, m, workerID)
}

func (m *Memory) TenantName(_ context.Context, tenantID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.tenants[tenantID]
	if !ok {
		return "", apperrors.NewNotFoundError("tenant", tenantID)
	}
	return name, nil
}

func (m *Memory) PropertyLabel(_ context.Context, ref models.PropertyRef) (string, error) {
	m.mu.RLock()
	name, ok := m.properties[ref.PropertyID]
	m.mu.RUnlock()
	if !ok {
		return "", apperrors.NewNotFoundError("property", ref.PropertyID)
	}
	return joinLabel(name, ref.UnitID, ref.RoomID), nil
}

func (m *Memory) Contact(_ context.Context, recipientID string) (models.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contacts[recipientID]
	if !ok {
		return models.Contact{}, apperrors.NewNotFoundError("contact", recipientID)
	}
	return c, nil
}

// joinLabel renders "Property, Unit 4B, Kitchen", skipping empty parts.
func joinLabel(property, unit, room string) string {
	parts := []string{property}
	if unit != "" {
		parts = append(parts, "Unit "+unit)
	}
	if room != "" {
		parts = append(parts, room)
	}
	return strings.Join(parts, ", ")
}
