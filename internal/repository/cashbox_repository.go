package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/arvand/installment-engine/internal/domain"
)

type cashBoxRepository struct {
	db sqlx.ExtContext
}

func NewCashBoxRepository(db sqlx.ExtContext) CashBoxRepository {
	return &cashBoxRepository{db: db}
}

func (r *cashBoxRepository) Create(ctx context.Context, box *domain.CashBox) error {
	query := `
		INSERT INTO cash_boxes (id, name, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	now := time.Now()
	if box.CreatedAt.IsZero() {
		box.CreatedAt = now
		box.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx, query,
		box.ID,
		box.Name,
		box.Balance,
		box.CreatedAt,
		box.UpdatedAt,
	)

	return err
}

func (r *cashBoxRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CashBox, error) {
	query := `
		SELECT id, name, balance, created_at, updated_at
		FROM cash_boxes
		WHERE id = $1
	`

	var box domain.CashBox
	if err := sqlx.GetContext(ctx, r.db, &box, query, id); err != nil {
		return nil, err
	}

	return &box, nil
}

func (r *cashBoxRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.CashBox, error) {
	query := `
		SELECT id, name, balance, created_at, updated_at
		FROM cash_boxes
		WHERE id = $1
		FOR UPDATE
	`

	var box domain.CashBox
	if err := sqlx.GetContext(ctx, r.db, &box, query, id); err != nil {
		return nil, err
	}

	return &box, nil
}

func (r *cashBoxRepository) ApplyDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	query := `
		UPDATE cash_boxes
		SET balance = balance + $2, updated_at = $3
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, delta, time.Now())
	return err
}
