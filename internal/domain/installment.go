package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arvand/installment-engine/internal/calendar"
)

// InstallmentStatus is the delinquency state of a single installment.
type InstallmentStatus string

const (
	StatusNotYetDue            InstallmentStatus = "not_yet_due"
	StatusDueToday             InstallmentStatus = "due_today"
	StatusOverdueGrace         InstallmentStatus = "overdue_grace"
	StatusPartiallyPaidGrace   InstallmentStatus = "partially_paid_grace"
	StatusOverdue              InstallmentStatus = "overdue"
	StatusPartiallyPaidOverdue InstallmentStatus = "partially_paid_overdue"
	StatusDoubtful             InstallmentStatus = "doubtful"
	StatusSettledOnTime        InstallmentStatus = "settled_on_time"
	StatusSettledLate          InstallmentStatus = "settled_late"
	StatusSettledEarly         InstallmentStatus = "settled_early"
	StatusLegal                InstallmentStatus = "legal"
)

// IsSettled reports whether the installment needs no further collection.
func (s InstallmentStatus) IsSettled() bool {
	return s == StatusSettledOnTime || s == StatusSettledLate || s == StatusSettledEarly
}

// IsSticky reports whether the batch recomputation pass must never
// transition out of this status on its own. Legal escalation and early
// settlement are only entered and left by explicit manual operations.
func (s InstallmentStatus) IsSticky() bool {
	return s == StatusLegal || s == StatusSettledEarly
}

// Installment is one scheduled repayment of a loan. DueAmount is the
// originally scheduled figure (reduced at most once, by forgiven interest at
// settlement); PenaltyAmount, TotalAmount, PaymentRemain and Status are
// derived and refreshed by the status engine.
type Installment struct {
	ID            uuid.UUID         `json:"id" db:"id"`
	LoanID        uuid.UUID         `json:"loan_id" db:"loan_id"`
	Sequence      int               `json:"sequence" db:"sequence"`
	DueDate       calendar.Date     `json:"due_date" db:"due_date"`
	DueAmount     decimal.Decimal   `json:"due_amount" db:"due_amount"`
	PaidAmount    decimal.Decimal   `json:"paid_amount" db:"paid_amount"`
	PaymentDate   calendar.Date     `json:"payment_date" db:"payment_date"`
	Status        InstallmentStatus `json:"status" db:"status"`
	PenaltyDays   int               `json:"penalty_days" db:"penalty_days"`
	PenaltyAmount decimal.Decimal   `json:"penalty_amount" db:"penalty_amount"`
	TotalAmount   decimal.Decimal   `json:"total_amount" db:"total_amount"`
	PaymentRemain decimal.Decimal   `json:"payment_remain" db:"payment_remain"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at" db:"updated_at"`
}

type ReceivePaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"decimal_gt_zero"`
	Date        string          `json:"date" validate:"omitempty,jalali_date"`
	Description string          `json:"description"`
}

type ScheduleResponse struct {
	LoanID       uuid.UUID      `json:"loan_id"`
	Installments []*Installment `json:"installments"`
}
