package repository

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/notifyhub/safety-dispatch/internal/domain"
)

// MockContactRepository is a hand-written, in-memory ContactRepository used
// in unit tests and when no DATABASE_URL is configured.
type MockContactRepository struct {
	mu       sync.RWMutex
	contacts map[string][]domain.Contact

	// Optional error overrides, set in tests to simulate failure paths.
	CreateErr error
	ListErr   error
}

func NewMockContactRepository() *MockContactRepository {
	return &MockContactRepository{contacts: make(map[string][]domain.Contact)}
}

func (m *MockContactRepository) Create(_ context.Context, c *domain.Contact) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts[c.OwnerID] = append(m.contacts[c.OwnerID], *c)
	return nil
}

func (m *MockContactRepository) ListByOwner(_ context.Context, ownerID string) ([]domain.Contact, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Contact, len(m.contacts[ownerID]))
	copy(out, m.contacts[ownerID])
	return out, nil
}

func (m *MockContactRepository) Delete(_ context.Context, ownerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.contacts[ownerID]
	for i, c := range list {
		if c.ID == id {
			m.contacts[ownerID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// MockDispatchRepository keeps dispatch records in memory. Records are deep
// copied through JSON so callers cannot mutate stored state.
type MockDispatchRepository struct {
	mu      sync.RWMutex
	records map[string][]byte

	SaveErr error
}

func NewMockDispatchRepository() *MockDispatchRepository {
	return &MockDispatchRepository{records: make(map[string][]byte)}
}

func (m *MockDispatchRepository) Save(_ context.Context, rec *domain.DispatchRecord) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = b
	return nil
}

func (m *MockDispatchRepository) GetByID(_ context.Context, id string) (*domain.DispatchRecord, error) {
	m.mu.RLock()
	b, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	var rec domain.DispatchRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (m *MockDispatchRepository) UpdateResult(ctx context.Context, id string, res *domain.AggregateResult) error {
	rec, err := m.GetByID(ctx, id)
	if err != nil {
		return err
	}
	rec.Result = res
	return m.Save(ctx, rec)
}

// Len reports how many records are stored.
func (m *MockDispatchRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
