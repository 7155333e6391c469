// Package mocks provides hand-written testify mocks for the repository
// interfaces, shared by the engine and ledger unit tests.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/arvand/installment-engine/internal/domain"
	"github.com/arvand/installment-engine/internal/repository"
)

type MockCashBoxRepository struct {
	mock.Mock
}

func (m *MockCashBoxRepository) Create(ctx context.Context, box *domain.CashBox) error {
	args := m.Called(ctx, box)
	return args.Error(0)
}

func (m *MockCashBoxRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CashBox, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CashBox), args.Error(1)
}

func (m *MockCashBoxRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.CashBox, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CashBox), args.Error(1)
}

func (m *MockCashBoxRepository) ApplyDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	args := m.Called(ctx, id, delta)
	return args.Error(0)
}

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

type MockInstallmentRepository struct {
	mock.Mock
}

func (m *MockInstallmentRepository) CreateBatch(ctx context.Context, installments []*domain.Installment) error {
	args := m.Called(ctx, installments)
	return args.Error(0)
}

func (m *MockInstallmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Installment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Installment), args.Error(1)
}

func (m *MockInstallmentRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Installment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Installment), args.Error(1)
}

func (m *MockInstallmentRepository) ListByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Installment), args.Error(1)
}

func (m *MockInstallmentRepository) ListByLoanIDForUpdate(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Installment), args.Error(1)
}

func (m *MockInstallmentRepository) ListOpenForUpdate(ctx context.Context) ([]*repository.OpenInstallment, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.OpenInstallment), args.Error(1)
}

func (m *MockInstallmentRepository) Update(ctx context.Context, installment *domain.Installment) error {
	args := m.Called(ctx, installment)
	return args.Error(0)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, txn *domain.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) ListByCashBox(ctx context.Context, boxID uuid.UUID) ([]*domain.Transaction, error) {
	args := m.Called(ctx, boxID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) SignedSumForCashBox(ctx context.Context, boxID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, boxID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type MockExpenseRepository struct {
	mock.Mock
}

func (m *MockExpenseRepository) CreateCategory(ctx context.Context, category *domain.ExpenseCategory) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

func (m *MockExpenseRepository) GetCategory(ctx context.Context, id uuid.UUID) (*domain.ExpenseCategory, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExpenseCategory), args.Error(1)
}

func (m *MockExpenseRepository) Create(ctx context.Context, expense *domain.Expense) error {
	args := m.Called(ctx, expense)
	return args.Error(0)
}

// MockRepos bundles one mock per repository.
type MockRepos struct {
	CashBoxRepo     *MockCashBoxRepository
	LoanRepo        *MockLoanRepository
	InstallmentRepo *MockInstallmentRepository
	TransactionRepo *MockTransactionRepository
	ExpenseRepo     *MockExpenseRepository
}

func NewMockRepos() *MockRepos {
	return &MockRepos{
		CashBoxRepo:     &MockCashBoxRepository{},
		LoanRepo:        &MockLoanRepository{},
		InstallmentRepo: &MockInstallmentRepository{},
		TransactionRepo: &MockTransactionRepository{},
		ExpenseRepo:     &MockExpenseRepository{},
	}
}

func (m *MockRepos) CashBoxes() repository.CashBoxRepository        { return m.CashBoxRepo }
func (m *MockRepos) Loans() repository.LoanRepository               { return m.LoanRepo }
func (m *MockRepos) Installments() repository.InstallmentRepository { return m.InstallmentRepo }
func (m *MockRepos) Transactions() repository.TransactionRepository { return m.TransactionRepo }
func (m *MockRepos) Expenses() repository.ExpenseRepository         { return m.ExpenseRepo }

func (m *MockRepos) AssertExpectations(t mock.TestingT) {
	m.CashBoxRepo.AssertExpectations(t)
	m.LoanRepo.AssertExpectations(t)
	m.InstallmentRepo.AssertExpectations(t)
	m.TransactionRepo.AssertExpectations(t)
	m.ExpenseRepo.AssertExpectations(t)
}

// MockUnitOfWork runs the unit-of-work body against the mock repositories.
// BeginErr short-circuits before the body; CommitErr fires after a
// successful body, simulating a commit failure with rollback.
type MockUnitOfWork struct {
	ReposBundle *MockRepos
	BeginErr    error
	CommitErr   error
}

func NewMockUnitOfWork() *MockUnitOfWork {
	return &MockUnitOfWork{ReposBundle: NewMockRepos()}
}

func (m *MockUnitOfWork) WithinTx(ctx context.Context, fn func(r repository.Repos) error) error {
	if m.BeginErr != nil {
		return m.BeginErr
	}
	if err := fn(m.ReposBundle); err != nil {
		return err
	}
	return m.CommitErr
}

func (m *MockUnitOfWork) Repos() repository.Repos {
	return m.ReposBundle
}
