package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/safety-dispatch/internal/domain"
)

type pgContactRepository struct {
	pool *pgxpool.Pool
}

// NewPgContactRepository returns a ContactRepository backed by PostgreSQL.
func NewPgContactRepository(pool *pgxpool.Pool) ContactRepository {
	return &pgContactRepository{pool: pool}
}

func (r *pgContactRepository) Create(ctx context.Context, c *domain.Contact) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO contacts (id, owner_id, name, phone, email, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		c.ID, c.OwnerID, c.Name, c.Phone, c.Email, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

func (r *pgContactRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Contact, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_id, name, phone, email, created_at
		FROM contacts WHERE owner_id = $1
		ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := []domain.Contact{}
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Phone, &c.Email, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (r *pgContactRepository) Delete(ctx context.Context, ownerID, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM contacts WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
