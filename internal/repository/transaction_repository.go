package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/arvand/installment-engine/internal/domain"
)

type transactionRepository struct {
	db sqlx.ExtContext
}

func NewTransactionRepository(db sqlx.ExtContext) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, txn *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, type, amount, date, source_ref, destination_ref,
			loan_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		txn.ID,
		txn.Type,
		txn.Amount,
		txn.Date,
		txn.SourceRef,
		txn.DestinationRef,
		txn.LoanID,
		txn.Description,
		txn.CreatedAt,
	)

	return err
}

func (r *transactionRepository) ListByCashBox(ctx context.Context, boxID uuid.UUID) ([]*domain.Transaction, error) {
	query := `
		SELECT id, type, amount, date, source_ref, destination_ref, loan_id, description, created_at
		FROM transactions
		WHERE source_ref = $1 OR destination_ref = $1
		ORDER BY created_at
	`

	var txns []*domain.Transaction
	if err := sqlx.SelectContext(ctx, r.db, &txns, query, boxID); err != nil {
		return nil, err
	}

	return txns, nil
}

func (r *transactionRepository) SignedSumForCashBox(ctx context.Context, boxID uuid.UUID) (decimal.Decimal, error) {
	txns, err := r.ListByCashBox(ctx, boxID)
	if err != nil {
		return decimal.Zero, err
	}

	sum := decimal.Zero
	for _, txn := range txns {
		if txn.Type.DestinationIsCashBox() && txn.DestinationRef.Valid && txn.DestinationRef.UUID == boxID {
			sum = sum.Add(txn.Amount)
		}
		if txn.Type.SourceIsCashBox() && txn.SourceRef.Valid && txn.SourceRef.UUID == boxID {
			sum = sum.Sub(txn.Amount)
		}
	}

	return sum, nil
}
