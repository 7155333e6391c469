// Package ledger implements the money-moving operations: loan disbursement,
// payment receipt, early settlement, manual transactions and expenses. Every
// operation mutates its rows inside one unit of work so cash-box balances
// always equal the signed sum of the transactions referencing them.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/arvand/installment-engine/internal/calendar"
	"github.com/arvand/installment-engine/internal/config"
	"github.com/arvand/installment-engine/internal/domain"
	"github.com/arvand/installment-engine/internal/engine"
	"github.com/arvand/installment-engine/internal/repository"
	"github.com/arvand/installment-engine/internal/schedule"
	customError "github.com/arvand/installment-engine/pkg/errors"
)

const outstandingCacheTTL = 24 * time.Hour

// Service is the ledger and balance manager.
type Service struct {
	store  repository.UnitOfWork
	clock  engine.Clock
	config *config.Config
	redis  *redis.Client
	logger *zap.Logger
}

func NewService(
	store repository.UnitOfWork,
	clock engine.Clock,
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:  store,
		clock:  clock,
		config: cfg,
		redis:  redisClient,
		logger: logger,
	}
}

// resolveDate falls back to the clock when no date was supplied.
func (s *Service) resolveDate(value string) (calendar.Date, error) {
	if value == "" {
		return s.clock.Today(), nil
	}
	return calendar.Parse(value)
}

// Disburse creates a loan with its full installment set, debits the cash box
// and appends the disbursement transaction, all in one atomic unit.
func (s *Service) Disburse(ctx context.Context, request *domain.DisburseRequest) (*domain.Loan, []*domain.Installment, error) {
	startDate, err := calendar.Parse(request.StartDate)
	if err != nil {
		return nil, nil, err
	}

	plan, err := schedule.Build(request.Principal, request.TermMonths, request.MonthlyRatePercent, startDate)
	if err != nil {
		return nil, nil, err
	}
	if request.PenaltyRatePercent.IsNegative() {
		return nil, nil, customError.WrapInvalidLoanTerms(
			fmt.Sprintf("penalty rate %s%% must not be negative", request.PenaltyRatePercent))
	}

	loan := &domain.Loan{
		ID:                 uuid.New(),
		CustomerID:         request.CustomerID,
		CashBoxID:          request.CashBoxID,
		Principal:          request.Principal,
		TermMonths:         request.TermMonths,
		MonthlyRatePercent: request.MonthlyRatePercent,
		PenaltyRatePercent: request.PenaltyRatePercent,
		StartDate:          startDate,
		Status:             domain.LoanStatusActive,
	}

	installments := make([]*domain.Installment, 0, len(plan.Lines))
	for _, line := range plan.Lines {
		installments = append(installments, &domain.Installment{
			ID:            uuid.New(),
			LoanID:        loan.ID,
			Sequence:      line.Sequence,
			DueDate:       line.DueDate,
			DueAmount:     line.DueAmount,
			PaidAmount:    decimal.Zero,
			Status:        domain.StatusNotYetDue,
			PenaltyAmount: decimal.Zero,
			TotalAmount:   line.DueAmount,
			PaymentRemain: line.DueAmount,
		})
	}

	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		box, err := r.CashBoxes().GetByIDForUpdate(ctx, request.CashBoxID)
		if err != nil {
			return mapNotFound(err, customError.WrapCashBoxNotFound(request.CashBoxID.String()))
		}

		if !s.config.Business.AllowNegativeBalance && box.Balance.LessThan(request.Principal) {
			return customError.WrapInsufficientFunds(
				box.ID.String(), box.Balance.String(), request.Principal.String())
		}

		if err := r.Loans().Create(ctx, loan); err != nil {
			return customError.WrapPersistenceError(err)
		}
		if err := r.Installments().CreateBatch(ctx, installments); err != nil {
			return customError.WrapPersistenceError(err)
		}

		txn := &domain.Transaction{
			ID:             uuid.New(),
			Type:           domain.TransactionDisbursement,
			Amount:         request.Principal,
			Date:           startDate,
			SourceRef:      uuid.NullUUID{UUID: request.CashBoxID, Valid: true},
			DestinationRef: uuid.NullUUID{UUID: request.CustomerID, Valid: true},
			LoanID:         uuid.NullUUID{UUID: loan.ID, Valid: true},
			Description:    request.Description,
		}
		if err := r.Transactions().Create(ctx, txn); err != nil {
			return customError.WrapPersistenceError(err)
		}

		if err := r.CashBoxes().ApplyDelta(ctx, request.CashBoxID, request.Principal.Neg()); err != nil {
			return customError.WrapPersistenceError(err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("loan disbursed",
		zap.String("loan_id", loan.ID.String()),
		zap.String("principal", loan.Principal.String()),
		zap.Int("installments", len(installments)),
	)

	return loan, installments, nil
}

// ReceivePayment applies a partial or full payment to one installment,
// credits the cash box and appends the receipt transaction. Full payment
// moves the installment into its settled status; the penalty figures are
// left to the batch pass otherwise.
func (s *Service) ReceivePayment(ctx context.Context, installmentID uuid.UUID, request *domain.ReceivePaymentRequest) (*domain.Transaction, error) {
	if request.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, customError.WrapInvalidAmount(request.Amount.String())
	}
	date, err := s.resolveDate(request.Date)
	if err != nil {
		return nil, err
	}

	var receipt *domain.Transaction
	var loanID uuid.UUID
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		inst, err := r.Installments().GetByIDForUpdate(ctx, installmentID)
		if err != nil {
			return mapNotFound(err, customError.WrapInstallmentNotFound(installmentID.String()))
		}

		if request.Amount.GreaterThan(inst.PaymentRemain) {
			return customError.WrapOverpayment(request.Amount.String(), inst.PaymentRemain.String())
		}

		loan, err := r.Loans().GetByID(ctx, inst.LoanID)
		if err != nil {
			return mapNotFound(err, customError.WrapLoanNotFound(inst.LoanID.String()))
		}
		loanID = loan.ID

		if _, err := r.CashBoxes().GetByIDForUpdate(ctx, loan.CashBoxID); err != nil {
			return mapNotFound(err, customError.WrapCashBoxNotFound(loan.CashBoxID.String()))
		}

		inst.PaidAmount = inst.PaidAmount.Add(request.Amount)
		inst.PaymentRemain = inst.TotalAmount.Sub(inst.PaidAmount)
		if inst.PaymentRemain.IsNegative() {
			return customError.WrapInconsistentState(
				fmt.Sprintf("installment %s would have negative remaining amount", inst.ID))
		}
		if inst.PaymentRemain.IsZero() {
			if inst.PaymentDate.IsZero() {
				inst.PaymentDate = date
			}
			inst.Status = engine.SettledStatus(inst.Status, inst.PaymentDate, inst.DueDate)
		}

		if err := r.Installments().Update(ctx, inst); err != nil {
			return customError.WrapPersistenceError(err)
		}

		receipt = &domain.Transaction{
			ID:             uuid.New(),
			Type:           domain.TransactionInstallmentReceipt,
			Amount:         request.Amount,
			Date:           date,
			SourceRef:      uuid.NullUUID{UUID: loan.CustomerID, Valid: true},
			DestinationRef: uuid.NullUUID{UUID: loan.CashBoxID, Valid: true},
			LoanID:         uuid.NullUUID{UUID: loan.ID, Valid: true},
			Description:    request.Description,
		}
		if err := r.Transactions().Create(ctx, receipt); err != nil {
			return customError.WrapPersistenceError(err)
		}
		if err := r.CashBoxes().ApplyDelta(ctx, loan.CashBoxID, request.Amount); err != nil {
			return customError.WrapPersistenceError(err)
		}

		return s.closeLoanIfFullyPaid(ctx, r, loan)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateOutstanding(ctx, loanID)
	return receipt, nil
}

// closeLoanIfFullyPaid marks the loan settled once no installment remains open.
func (s *Service) closeLoanIfFullyPaid(ctx context.Context, r repository.Repos, loan *domain.Loan) error {
	installments, err := r.Installments().ListByLoanID(ctx, loan.ID)
	if err != nil {
		return customError.WrapPersistenceError(err)
	}
	for _, inst := range installments {
		if !inst.Status.IsSettled() {
			return nil
		}
	}
	if err := r.Loans().UpdateStatus(ctx, loan.ID, domain.LoanStatusSettled); err != nil {
		return customError.WrapPersistenceError(err)
	}
	return nil
}

// Settle closes a loan early at a negotiated payoff. Forgiven interest is
// taken off the last installment only; every open installment is marked paid
// with the sticky settled-early status. Whether settlementAmount reconciles
// with newTotalLoanValue and prior payments is the caller's responsibility.
func (s *Service) Settle(ctx context.Context, loanID uuid.UUID, request *domain.SettleRequest) error {
	if request.SettlementAmount.LessThanOrEqual(decimal.Zero) {
		return customError.WrapInvalidAmount(request.SettlementAmount.String())
	}
	if request.NewTotalLoanValue.LessThanOrEqual(decimal.Zero) {
		return customError.WrapInvalidAmount(request.NewTotalLoanValue.String())
	}
	date, err := s.resolveDate(request.Date)
	if err != nil {
		return err
	}

	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		loan, err := r.Loans().GetByIDForUpdate(ctx, loanID)
		if err != nil {
			return mapNotFound(err, customError.WrapLoanNotFound(loanID.String()))
		}

		installments, err := r.Installments().ListByLoanIDForUpdate(ctx, loanID)
		if err != nil {
			return customError.WrapPersistenceError(err)
		}
		if len(installments) == 0 {
			return customError.WrapInconsistentState(
				fmt.Sprintf("loan %s has no installments", loanID))
		}

		originalTotalDue := decimal.Zero
		for _, inst := range installments {
			originalTotalDue = originalTotalDue.Add(inst.DueAmount)
		}
		if request.NewTotalLoanValue.GreaterThan(originalTotalDue) {
			return customError.WrapInvalidAmount(fmt.Sprintf(
				"new total loan value %s exceeds scheduled total %s",
				request.NewTotalLoanValue, originalTotalDue))
		}

		// Forgiven interest comes off the last installment, never the
		// principal or any earlier installment.
		forgiven := originalTotalDue.Sub(request.NewTotalLoanValue)
		if forgiven.IsPositive() {
			last := installments[len(installments)-1]
			last.DueAmount = last.DueAmount.Sub(forgiven)
			if last.DueAmount.IsNegative() {
				return customError.WrapInconsistentState(
					fmt.Sprintf("forgiven interest %s exceeds last installment", forgiven))
			}
			last.TotalAmount = last.DueAmount.Add(last.PenaltyAmount)
			last.PaymentRemain = last.TotalAmount.Sub(last.PaidAmount)
		}

		for _, inst := range installments {
			changed := false
			if inst.PaidAmount.LessThan(inst.DueAmount) {
				inst.PaidAmount = inst.DueAmount
				inst.PaymentRemain = inst.TotalAmount.Sub(inst.PaidAmount)
				inst.Status = domain.StatusSettledEarly
				if inst.PaymentDate.IsZero() {
					inst.PaymentDate = date
				}
				changed = true
			} else if inst == installments[len(installments)-1] && forgiven.IsPositive() {
				changed = true
			}
			if changed {
				if err := r.Installments().Update(ctx, inst); err != nil {
					return customError.WrapPersistenceError(err)
				}
			}
		}

		txn := &domain.Transaction{
			ID:             uuid.New(),
			Type:           domain.TransactionSettlementReceipt,
			Amount:         request.SettlementAmount,
			Date:           date,
			SourceRef:      uuid.NullUUID{UUID: loan.CustomerID, Valid: true},
			DestinationRef: uuid.NullUUID{UUID: loan.CashBoxID, Valid: true},
			LoanID:         uuid.NullUUID{UUID: loan.ID, Valid: true},
			Description:    request.Description,
		}
		if err := r.Transactions().Create(ctx, txn); err != nil {
			return customError.WrapPersistenceError(err)
		}
		if err := r.CashBoxes().ApplyDelta(ctx, loan.CashBoxID, request.SettlementAmount); err != nil {
			return customError.WrapPersistenceError(err)
		}

		if err := r.Loans().UpdateStatus(ctx, loan.ID, domain.LoanStatusSettled); err != nil {
			return customError.WrapPersistenceError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateOutstanding(ctx, loanID)
	s.logger.Info("loan settled early",
		zap.String("loan_id", loanID.String()),
		zap.String("settlement_amount", request.SettlementAmount.String()),
	)
	return nil
}

// RecordManualTransaction appends a manual ledger entry (transfer between
// cash boxes, manual payment or receipt, or a capital injection, which has
// no source) and applies the matching balance deltas.
func (s *Service) RecordManualTransaction(ctx context.Context, request *domain.ManualTransactionRequest) (*domain.Transaction, error) {
	if request.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, customError.WrapInvalidAmount(request.Amount.String())
	}
	if err := validateManualRefs(request); err != nil {
		return nil, err
	}
	date, err := s.resolveDate(request.Date)
	if err != nil {
		return nil, err
	}

	txn := &domain.Transaction{
		ID:             uuid.New(),
		Type:           request.Type,
		Amount:         request.Amount,
		Date:           date,
		SourceRef:      request.SourceRef,
		DestinationRef: request.DestinationRef,
		Description:    request.Description,
	}

	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		if txn.Type.SourceIsCashBox() && txn.SourceRef.Valid {
			box, err := r.CashBoxes().GetByIDForUpdate(ctx, txn.SourceRef.UUID)
			if err != nil {
				return mapNotFound(err, customError.WrapCashBoxNotFound(txn.SourceRef.UUID.String()))
			}
			if !s.config.Business.AllowNegativeBalance && box.Balance.LessThan(txn.Amount) {
				return customError.WrapInsufficientFunds(
					box.ID.String(), box.Balance.String(), txn.Amount.String())
			}
		}
		if txn.Type.DestinationIsCashBox() && txn.DestinationRef.Valid {
			if _, err := r.CashBoxes().GetByIDForUpdate(ctx, txn.DestinationRef.UUID); err != nil {
				return mapNotFound(err, customError.WrapCashBoxNotFound(txn.DestinationRef.UUID.String()))
			}
		}

		if err := r.Transactions().Create(ctx, txn); err != nil {
			return customError.WrapPersistenceError(err)
		}
		if txn.Type.SourceIsCashBox() && txn.SourceRef.Valid {
			if err := r.CashBoxes().ApplyDelta(ctx, txn.SourceRef.UUID, txn.Amount.Neg()); err != nil {
				return customError.WrapPersistenceError(err)
			}
		}
		if txn.Type.DestinationIsCashBox() && txn.DestinationRef.Valid {
			if err := r.CashBoxes().ApplyDelta(ctx, txn.DestinationRef.UUID, txn.Amount); err != nil {
				return customError.WrapPersistenceError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return txn, nil
}

func validateManualRefs(request *domain.ManualTransactionRequest) error {
	switch request.Type {
	case domain.TransactionTransfer:
		if !request.SourceRef.Valid || !request.DestinationRef.Valid {
			return customError.WrapInvalidAmount("transfer requires source and destination")
		}
		if request.SourceRef.UUID == request.DestinationRef.UUID {
			return customError.WrapSameAccount(request.SourceRef.UUID.String())
		}
	case domain.TransactionCapitalInjection:
		if request.SourceRef.Valid {
			return customError.WrapInvalidAmount("capital injection must not carry a source")
		}
		if !request.DestinationRef.Valid {
			return customError.WrapInvalidAmount("capital injection requires a destination cash box")
		}
	case domain.TransactionManualPayment:
		if !request.SourceRef.Valid {
			return customError.WrapInvalidAmount("manual payment requires a source cash box")
		}
	case domain.TransactionManualReceipt:
		if !request.DestinationRef.Valid {
			return customError.WrapInvalidAmount("manual receipt requires a destination cash box")
		}
	default:
		return customError.WrapInvalidAmount(fmt.Sprintf("type %s is not a manual transaction", request.Type))
	}
	return nil
}

// RecordExpense records a categorized expense and its cash-box debit.
func (s *Service) RecordExpense(ctx context.Context, request *domain.RecordExpenseRequest) (*domain.Expense, error) {
	if request.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, customError.WrapInvalidAmount(request.Amount.String())
	}
	date, err := s.resolveDate(request.Date)
	if err != nil {
		return nil, err
	}

	expense := &domain.Expense{
		ID:          uuid.New(),
		CategoryID:  request.CategoryID,
		CashBoxID:   request.CashBoxID,
		Amount:      request.Amount,
		Date:        date,
		Description: request.Description,
	}

	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		if _, err := r.Expenses().GetCategory(ctx, request.CategoryID); err != nil {
			return mapNotFound(err, customError.WrapExpenseCategoryNotFound(request.CategoryID.String()))
		}
		box, err := r.CashBoxes().GetByIDForUpdate(ctx, request.CashBoxID)
		if err != nil {
			return mapNotFound(err, customError.WrapCashBoxNotFound(request.CashBoxID.String()))
		}
		if !s.config.Business.AllowNegativeBalance && box.Balance.LessThan(request.Amount) {
			return customError.WrapInsufficientFunds(
				box.ID.String(), box.Balance.String(), request.Amount.String())
		}

		txn := &domain.Transaction{
			ID:          uuid.New(),
			Type:        domain.TransactionExpense,
			Amount:      request.Amount,
			Date:        date,
			SourceRef:   uuid.NullUUID{UUID: request.CashBoxID, Valid: true},
			Description: request.Description,
		}
		if err := r.Transactions().Create(ctx, txn); err != nil {
			return customError.WrapPersistenceError(err)
		}
		expense.TransactionID = txn.ID

		if err := r.Expenses().Create(ctx, expense); err != nil {
			return customError.WrapPersistenceError(err)
		}
		if err := r.CashBoxes().ApplyDelta(ctx, request.CashBoxID, request.Amount.Neg()); err != nil {
			return customError.WrapPersistenceError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return expense, nil
}

// MarkLegal escalates an installment to the sticky legal-action status. The
// batch pass refreshes its penalty figures but never transitions it out.
func (s *Service) MarkLegal(ctx context.Context, installmentID uuid.UUID) error {
	return s.store.WithinTx(ctx, func(r repository.Repos) error {
		inst, err := r.Installments().GetByIDForUpdate(ctx, installmentID)
		if err != nil {
			return mapNotFound(err, customError.WrapInstallmentNotFound(installmentID.String()))
		}
		if inst.Status.IsSettled() {
			return customError.WrapInconsistentState(
				fmt.Sprintf("installment %s is already settled", installmentID))
		}
		inst.Status = domain.StatusLegal
		if err := r.Installments().Update(ctx, inst); err != nil {
			return customError.WrapPersistenceError(err)
		}
		return nil
	})
}

// Outstanding returns the sum still owed across a loan's installments,
// cached until the next mutation of the loan.
func (s *Service) Outstanding(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, outstandingKey(loanID)).Result()
		if err == nil {
			if value, perr := decimal.NewFromString(cached); perr == nil {
				return value, nil
			}
		}
	}

	installments, err := s.store.Repos().Installments().ListByLoanID(ctx, loanID)
	if err != nil {
		return decimal.Zero, customError.WrapPersistenceError(err)
	}
	if len(installments) == 0 {
		return decimal.Zero, customError.WrapLoanNotFound(loanID.String())
	}

	outstanding := decimal.Zero
	for _, inst := range installments {
		if !inst.Status.IsSettled() {
			outstanding = outstanding.Add(inst.PaymentRemain)
		}
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, outstandingKey(loanID), outstanding.String(), outstandingCacheTTL).Err(); err != nil {
			s.logger.Warn("failed to cache outstanding balance", zap.Error(err))
		}
	}
	return outstanding, nil
}

// Schedule returns the installment schedule of a loan.
func (s *Service) Schedule(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error) {
	installments, err := s.store.Repos().Installments().ListByLoanID(ctx, loanID)
	if err != nil {
		return nil, customError.WrapPersistenceError(err)
	}
	if len(installments) == 0 {
		return nil, customError.WrapLoanNotFound(loanID.String())
	}
	return installments, nil
}

// CreateCashBox opens a cash box with a zero balance. Funds arrive through
// capital injections so the balance invariant holds from the first day.
func (s *Service) CreateCashBox(ctx context.Context, name string) (*domain.CashBox, error) {
	box := &domain.CashBox{
		ID:      uuid.New(),
		Name:    name,
		Balance: decimal.Zero,
	}
	if err := s.store.Repos().CashBoxes().Create(ctx, box); err != nil {
		return nil, customError.WrapPersistenceError(err)
	}
	return box, nil
}

// CreateExpenseCategory adds a category for expense reporting.
func (s *Service) CreateExpenseCategory(ctx context.Context, name string) (*domain.ExpenseCategory, error) {
	category := &domain.ExpenseCategory{
		ID:   uuid.New(),
		Name: name,
	}
	if err := s.store.Repos().Expenses().CreateCategory(ctx, category); err != nil {
		return nil, customError.WrapPersistenceError(err)
	}
	return category, nil
}

// CashBox returns a cash box with its current balance.
func (s *Service) CashBox(ctx context.Context, id uuid.UUID) (*domain.CashBox, error) {
	box, err := s.store.Repos().CashBoxes().GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, customError.WrapCashBoxNotFound(id.String()))
	}
	return box, nil
}

// CashBoxTransactions returns every ledger entry touching a cash box.
func (s *Service) CashBoxTransactions(ctx context.Context, id uuid.UUID) ([]*domain.Transaction, error) {
	txns, err := s.store.Repos().Transactions().ListByCashBox(ctx, id)
	if err != nil {
		return nil, customError.WrapPersistenceError(err)
	}
	return txns, nil
}

func (s *Service) invalidateOutstanding(ctx context.Context, loanID uuid.UUID) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, outstandingKey(loanID)).Err(); err != nil {
		s.logger.Warn("failed to invalidate outstanding cache",
			zap.String("loan_id", loanID.String()), zap.Error(err))
	}
}

func outstandingKey(loanID uuid.UUID) string {
	return fmt.Sprintf("loan:%s:outstanding", loanID)
}

// mapNotFound turns sql.ErrNoRows into the matching domain error and wraps
// anything else as a persistence fault.
func mapNotFound(err error, notFound error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return customError.WrapPersistenceError(err)
}
