package repository

import (
	"context"

	"github.com/notifyhub/safety-dispatch/internal/domain"
)

// ContactRepository persists each user's emergency contacts.
// The pgx implementation is in pg_contact_repo.go.
// Tests use a hand-written mock (mock_repo.go).
type ContactRepository interface {
	Create(ctx context.Context, c *domain.Contact) error
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Contact, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// DispatchRepository stores dispatch records so failed recipients can be
// looked up and retried later.
type DispatchRepository interface {
	Save(ctx context.Context, rec *domain.DispatchRecord) error
	GetByID(ctx context.Context, id string) (*domain.DispatchRecord, error)
	UpdateResult(ctx context.Context, id string, res *domain.AggregateResult) error
}
