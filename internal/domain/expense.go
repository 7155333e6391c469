package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arvand/installment-engine/internal/calendar"
)

// ExpenseCategory groups expenses for reporting.
type ExpenseCategory struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Expense is a categorized outflow. It carries no installment semantics;
// its cash-box effect goes through the same ledger path as any transaction.
type Expense struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	CategoryID    uuid.UUID       `json:"category_id" db:"category_id"`
	CashBoxID     uuid.UUID       `json:"cash_box_id" db:"cash_box_id"`
	TransactionID uuid.UUID       `json:"transaction_id" db:"transaction_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Date          calendar.Date   `json:"date" db:"date"`
	Description   string          `json:"description" db:"description"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

type RecordExpenseRequest struct {
	CategoryID  uuid.UUID       `json:"category_id" validate:"required"`
	CashBoxID   uuid.UUID       `json:"cash_box_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"decimal_gt_zero"`
	Date        string          `json:"date" validate:"omitempty,jalali_date"`
	Description string          `json:"description"`
}
