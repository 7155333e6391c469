package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/arvand/installment-engine/internal/domain"
)

type expenseRepository struct {
	db sqlx.ExtContext
}

func NewExpenseRepository(db sqlx.ExtContext) ExpenseRepository {
	return &expenseRepository{db: db}
}

func (r *expenseRepository) CreateCategory(ctx context.Context, category *domain.ExpenseCategory) error {
	query := `
		INSERT INTO expense_categories (id, name, created_at)
		VALUES ($1, $2, $3)
	`

	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query, category.ID, category.Name, category.CreatedAt)
	return err
}

func (r *expenseRepository) GetCategory(ctx context.Context, id uuid.UUID) (*domain.ExpenseCategory, error) {
	query := `
		SELECT id, name, created_at
		FROM expense_categories
		WHERE id = $1
	`

	var category domain.ExpenseCategory
	if err := sqlx.GetContext(ctx, r.db, &category, query, id); err != nil {
		return nil, err
	}

	return &category, nil
}

func (r *expenseRepository) Create(ctx context.Context, expense *domain.Expense) error {
	query := `
		INSERT INTO expenses (id, category_id, cash_box_id, transaction_id, amount,
			date, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		expense.ID,
		expense.CategoryID,
		expense.CashBoxID,
		expense.TransactionID,
		expense.Amount,
		expense.Date,
		expense.Description,
		expense.CreatedAt,
	)

	return err
}
