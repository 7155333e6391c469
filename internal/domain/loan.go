package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arvand/installment-engine/internal/calendar"
)

const (
	LoanStatusActive  = "active"
	LoanStatusSettled = "settled"
)

var oneHundred = decimal.NewFromInt(100)

// Loan represents a flat-rate installment loan. Its terms are immutable
// after disbursement; only settlement changes its status.
type Loan struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	CustomerID         uuid.UUID       `json:"customer_id" db:"customer_id"`
	CashBoxID          uuid.UUID       `json:"cash_box_id" db:"cash_box_id"`
	Principal          decimal.Decimal `json:"principal" db:"principal"`
	TermMonths         int             `json:"term_months" db:"term_months"`
	MonthlyRatePercent decimal.Decimal `json:"monthly_rate_percent" db:"monthly_rate_percent"`
	PenaltyRatePercent decimal.Decimal `json:"penalty_rate_percent" db:"penalty_rate_percent"`
	StartDate          calendar.Date   `json:"start_date" db:"start_date"`
	Status             string          `json:"status" db:"status"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// TotalInterest is principal * monthlyRate/100 * termMonths (simple flat rate).
func (l *Loan) TotalInterest() decimal.Decimal {
	return l.Principal.
		Mul(l.MonthlyRatePercent).
		Div(oneHundred).
		Mul(decimal.NewFromInt(int64(l.TermMonths)))
}

// TotalWithInterest is the full amount the installment schedule sums to.
func (l *Loan) TotalWithInterest() decimal.Decimal {
	return l.Principal.Add(l.TotalInterest())
}

// DTOs for requests and responses

type DisburseRequest struct {
	CustomerID         uuid.UUID       `json:"customer_id" validate:"required"`
	CashBoxID          uuid.UUID       `json:"cash_box_id" validate:"required"`
	Principal          decimal.Decimal `json:"principal" validate:"decimal_gt_zero"`
	TermMonths         int             `json:"term_months" validate:"required,gt=0"`
	MonthlyRatePercent decimal.Decimal `json:"monthly_rate_percent" validate:"decimal_gte_zero"`
	PenaltyRatePercent decimal.Decimal `json:"penalty_rate_percent" validate:"decimal_gte_zero"`
	StartDate          string          `json:"start_date" validate:"required,jalali_date"`
	Description        string          `json:"description"`
}

type DisburseResponse struct {
	Loan         *Loan          `json:"loan"`
	Installments []*Installment `json:"installments"`
}

type SettleRequest struct {
	NewTotalLoanValue decimal.Decimal `json:"new_total_loan_value" validate:"decimal_gt_zero"`
	SettlementAmount  decimal.Decimal `json:"settlement_amount" validate:"decimal_gt_zero"`
	Date              string          `json:"date" validate:"omitempty,jalali_date"`
	Description       string          `json:"description"`
}

type OutstandingResponse struct {
	LoanID      uuid.UUID       `json:"loan_id"`
	Outstanding decimal.Decimal `json:"outstanding"`
}
