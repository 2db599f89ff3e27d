package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/safety-dispatch/internal/domain"
)

type pgDispatchRepository struct {
	pool *pgxpool.Pool
}

// NewPgDispatchRepository returns a DispatchRepository backed by PostgreSQL.
// Contacts, sender, location and result are stored as JSONB documents; the
// record is only ever read back whole.
func NewPgDispatchRepository(pool *pgxpool.Pool) DispatchRepository {
	return &pgDispatchRepository{pool: pool}
}

func (r *pgDispatchRepository) Save(ctx context.Context, rec *domain.DispatchRecord) error {
	contacts, err := json.Marshal(rec.Contacts)
	if err != nil {
		return fmt.Errorf("marshal contacts: %w", err)
	}
	sender, err := json.Marshal(rec.User)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	location, err := json.Marshal(rec.Location)
	if err != nil {
		return fmt.Errorf("marshal location: %w", err)
	}
	result, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO dispatches
			(id, owner_id, kind, channel, contacts, sender, location, result, overall_success, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		rec.ID, rec.OwnerID, rec.Kind, rec.Channel, contacts, sender, location, result,
		rec.Result != nil && rec.Result.OverallSuccess, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dispatch: %w", err)
	}
	return nil
}

func (r *pgDispatchRepository) GetByID(ctx context.Context, id string) (*domain.DispatchRecord, error) {
	var (
		rec                                domain.DispatchRecord
		contacts, sender, location, result []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, kind, channel, contacts, sender, location, result, created_at, updated_at
		FROM dispatches WHERE id = $1`, id).
		Scan(&rec.ID, &rec.OwnerID, &rec.Kind, &rec.Channel, &contacts, &sender, &location, &result,
			&rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dispatch: %w", err)
	}

	if err := json.Unmarshal(contacts, &rec.Contacts); err != nil {
		return nil, fmt.Errorf("unmarshal contacts: %w", err)
	}
	if err := json.Unmarshal(sender, &rec.User); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	if err := json.Unmarshal(location, &rec.Location); err != nil {
		return nil, fmt.Errorf("unmarshal location: %w", err)
	}
	if err := json.Unmarshal(result, &rec.Result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &rec, nil
}

func (r *pgDispatchRepository) UpdateResult(ctx context.Context, id string, res *domain.AggregateResult) error {
	result, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE dispatches SET result = $1, overall_success = $2, updated_at = $3
		WHERE id = $4`, result, res.OverallSuccess, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update dispatch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
