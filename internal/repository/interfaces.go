package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arvand/installment-engine/internal/domain"
)

// OpenInstallment is an open installment joined with its loan's penalty rate,
// the unit the status engine recomputes over.
type OpenInstallment struct {
	domain.Installment
	PenaltyRatePercent decimal.Decimal `db:"penalty_rate_percent"`
}

// CashBoxRepository defines cash box data operations.
type CashBoxRepository interface {
	// Create creates a new cash box
	Create(ctx context.Context, box *domain.CashBox) error

	// GetByID retrieves a cash box
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CashBox, error)

	// GetByIDForUpdate retrieves a cash box with a row lock held for the
	// remainder of the enclosing transaction
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.CashBox, error)

	// ApplyDelta adds delta (signed) to the balance
	ApplyDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error
}

// LoanRepository defines loan data operations.
type LoanRepository interface {
	// Create creates a new loan
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// GetByIDForUpdate retrieves a loan with a row lock
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// UpdateStatus moves a loan between active and settled
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// InstallmentRepository defines installment data operations.
type InstallmentRepository interface {
	// CreateBatch persists a full installment set
	CreateBatch(ctx context.Context, installments []*domain.Installment) error

	// GetByID retrieves an installment
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Installment, error)

	// GetByIDForUpdate retrieves an installment with a row lock, serializing
	// concurrent payment and recomputation writes on the same row
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Installment, error)

	// ListByLoanID retrieves all installments of a loan ordered by sequence
	ListByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error)

	// ListByLoanIDForUpdate is ListByLoanID with row locks held
	ListByLoanIDForUpdate(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error)

	// ListOpenForUpdate retrieves every not-yet-settled installment together
	// with its loan's penalty rate, locked for recomputation
	ListOpenForUpdate(ctx context.Context) ([]*OpenInstallment, error)

	// Update writes back the mutable fields of an installment
	Update(ctx context.Context, installment *domain.Installment) error
}

// TransactionRepository defines ledger transaction operations. Transactions
// are append-only; there is deliberately no update or delete.
type TransactionRepository interface {
	// Create appends a ledger transaction
	Create(ctx context.Context, txn *domain.Transaction) error

	// ListByCashBox retrieves all transactions referencing a cash box
	ListByCashBox(ctx context.Context, boxID uuid.UUID) ([]*domain.Transaction, error)

	// SignedSumForCashBox returns the net effect of all transactions on a
	// cash box (credits minus debits)
	SignedSumForCashBox(ctx context.Context, boxID uuid.UUID) (decimal.Decimal, error)
}

// ExpenseRepository defines expense and expense category operations.
type ExpenseRepository interface {
	// CreateCategory creates an expense category
	CreateCategory(ctx context.Context, category *domain.ExpenseCategory) error

	// GetCategory retrieves an expense category
	GetCategory(ctx context.Context, id uuid.UUID) (*domain.ExpenseCategory, error)

	// Create records an expense row
	Create(ctx context.Context, expense *domain.Expense) error
}

// Repos bundles all repositories sharing one database handle, which is
// either the bare connection pool or a single transaction.
type Repos interface {
	CashBoxes() CashBoxRepository
	Loans() LoanRepository
	Installments() InstallmentRepository
	Transactions() TransactionRepository
	Expenses() ExpenseRepository
}

// UnitOfWork scopes multi-row mutations. Everything done inside WithinTx
// commits together or rolls back together.
type UnitOfWork interface {
	// WithinTx runs fn with transaction-scoped repositories. A non-nil error
	// from fn (or any panic) rolls the whole unit back.
	WithinTx(ctx context.Context, fn func(r Repos) error) error

	// Repos returns repositories bound to the plain pool for reads that need
	// no transactional scope.
	Repos() Repos
}
