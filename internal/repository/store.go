package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	customError "github.com/arvand/installment-engine/pkg/errors"
)

// Store implements UnitOfWork over a Postgres connection pool.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type repos struct {
	cashBoxes    CashBoxRepository
	loans        LoanRepository
	installments InstallmentRepository
	transactions TransactionRepository
	expenses     ExpenseRepository
}

func newRepos(q sqlx.ExtContext) *repos {
	return &repos{
		cashBoxes:    &cashBoxRepository{db: q},
		loans:        &loanRepository{db: q},
		installments: &installmentRepository{db: q},
		transactions: &transactionRepository{db: q},
		expenses:     &expenseRepository{db: q},
	}
}

func (r *repos) CashBoxes() CashBoxRepository        { return r.cashBoxes }
func (r *repos) Loans() LoanRepository               { return r.loans }
func (r *repos) Installments() InstallmentRepository { return r.installments }
func (r *repos) Transactions() TransactionRepository { return r.transactions }
func (r *repos) Expenses() ExpenseRepository         { return r.expenses }

// Repos returns repositories bound to the pool, outside any transaction.
func (s *Store) Repos() Repos {
	return newRepos(s.db)
}

// WithinTx runs fn inside a single database transaction. The deferred
// rollback is a no-op after a successful commit.
func (s *Store) WithinTx(ctx context.Context, fn func(r Repos) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return customError.WrapPersistenceError(err)
	}
	defer tx.Rollback()

	if err := fn(newRepos(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return customError.WrapPersistenceError(err)
	}
	return nil
}
