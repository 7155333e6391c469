package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/arvand/installment-engine/internal/domain"
)

type installmentRepository struct {
	db sqlx.ExtContext
}

func NewInstallmentRepository(db sqlx.ExtContext) InstallmentRepository {
	return &installmentRepository{db: db}
}

const installmentColumns = `id, loan_id, sequence, due_date, due_amount, paid_amount,
	payment_date, status, penalty_days, penalty_amount, total_amount, payment_remain,
	created_at, updated_at`

func (r *installmentRepository) CreateBatch(ctx context.Context, installments []*domain.Installment) error {
	query := `
		INSERT INTO installments (id, loan_id, sequence, due_date, due_amount, paid_amount,
			payment_date, status, penalty_days, penalty_amount, total_amount, payment_remain,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	now := time.Now()
	for _, inst := range installments {
		if inst.CreatedAt.IsZero() {
			inst.CreatedAt = now
			inst.UpdatedAt = now
		}

		_, err := r.db.ExecContext(ctx, query,
			inst.ID,
			inst.LoanID,
			inst.Sequence,
			inst.DueDate,
			inst.DueAmount,
			inst.PaidAmount,
			inst.PaymentDate,
			inst.Status,
			inst.PenaltyDays,
			inst.PenaltyAmount,
			inst.TotalAmount,
			inst.PaymentRemain,
			inst.CreatedAt,
			inst.UpdatedAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *installmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM installments WHERE id = $1`

	var inst domain.Installment
	if err := sqlx.GetContext(ctx, r.db, &inst, query, id); err != nil {
		return nil, err
	}

	return &inst, nil
}

func (r *installmentRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM installments WHERE id = $1 FOR UPDATE`

	var inst domain.Installment
	if err := sqlx.GetContext(ctx, r.db, &inst, query, id); err != nil {
		return nil, err
	}

	return &inst, nil
}

func (r *installmentRepository) ListByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM installments WHERE loan_id = $1 ORDER BY sequence`

	var installments []*domain.Installment
	if err := sqlx.SelectContext(ctx, r.db, &installments, query, loanID); err != nil {
		return nil, err
	}

	return installments, nil
}

func (r *installmentRepository) ListByLoanIDForUpdate(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM installments WHERE loan_id = $1 ORDER BY sequence FOR UPDATE`

	var installments []*domain.Installment
	if err := sqlx.SelectContext(ctx, r.db, &installments, query, loanID); err != nil {
		return nil, err
	}

	return installments, nil
}

func (r *installmentRepository) ListOpenForUpdate(ctx context.Context) ([]*OpenInstallment, error) {
	query := `
		SELECT i.id, i.loan_id, i.sequence, i.due_date, i.due_amount, i.paid_amount,
			i.payment_date, i.status, i.penalty_days, i.penalty_amount, i.total_amount,
			i.payment_remain, i.created_at, i.updated_at,
			l.penalty_rate_percent
		FROM installments i
		JOIN loans l ON l.id = i.loan_id
		WHERE i.status NOT IN ($1, $2, $3)
		ORDER BY i.loan_id, i.sequence
		FOR UPDATE OF i
	`

	var installments []*OpenInstallment
	err := sqlx.SelectContext(ctx, r.db, &installments, query,
		domain.StatusSettledOnTime,
		domain.StatusSettledLate,
		domain.StatusSettledEarly,
	)
	if err != nil {
		return nil, err
	}

	return installments, nil
}

func (r *installmentRepository) Update(ctx context.Context, inst *domain.Installment) error {
	query := `
		UPDATE installments
		SET due_amount = $2, paid_amount = $3, payment_date = $4, status = $5,
			penalty_days = $6, penalty_amount = $7, total_amount = $8,
			payment_remain = $9, updated_at = $10
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		inst.ID,
		inst.DueAmount,
		inst.PaidAmount,
		inst.PaymentDate,
		inst.Status,
		inst.PenaltyDays,
		inst.PenaltyAmount,
		inst.TotalAmount,
		inst.PaymentRemain,
		time.Now(),
	)

	return err
}
