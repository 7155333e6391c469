package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arvand/installment-engine/internal/calendar"
)

// TransactionType classifies a ledger entry and fixes which of its two
// references is a cash box.
type TransactionType string

const (
	TransactionDisbursement       TransactionType = "disbursement"
	TransactionInstallmentReceipt TransactionType = "installment_receipt"
	TransactionSettlementReceipt  TransactionType = "settlement_receipt"
	TransactionExpense            TransactionType = "expense"
	TransactionCapitalInjection   TransactionType = "capital_injection"
	TransactionTransfer           TransactionType = "transfer"
	TransactionManualPayment      TransactionType = "manual_payment"
	TransactionManualReceipt      TransactionType = "manual_receipt"
)

// SourceIsCashBox reports whether SourceRef debits a cash box for this type.
func (t TransactionType) SourceIsCashBox() bool {
	switch t {
	case TransactionDisbursement, TransactionExpense, TransactionTransfer, TransactionManualPayment:
		return true
	}
	return false
}

// DestinationIsCashBox reports whether DestinationRef credits a cash box.
func (t TransactionType) DestinationIsCashBox() bool {
	switch t {
	case TransactionInstallmentReceipt, TransactionSettlementReceipt,
		TransactionCapitalInjection, TransactionTransfer, TransactionManualReceipt:
		return true
	}
	return false
}

// Transaction is an immutable, append-only record of money movement.
// Depending on Type, SourceRef/DestinationRef point at a cash box or a
// customer; capital injections carry no source at all.
type Transaction struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	Type           TransactionType `json:"type" db:"type"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Date           calendar.Date   `json:"date" db:"date"`
	SourceRef      uuid.NullUUID   `json:"source_ref" db:"source_ref"`
	DestinationRef uuid.NullUUID   `json:"destination_ref" db:"destination_ref"`
	LoanID         uuid.NullUUID   `json:"loan_id" db:"loan_id"`
	Description    string          `json:"description" db:"description"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

type ManualTransactionRequest struct {
	Type           TransactionType `json:"type" validate:"required,oneof=transfer manual_payment manual_receipt capital_injection"`
	Amount         decimal.Decimal `json:"amount" validate:"decimal_gt_zero"`
	Date           string          `json:"date" validate:"omitempty,jalali_date"`
	SourceRef      uuid.NullUUID   `json:"source_ref"`
	DestinationRef uuid.NullUUID   `json:"destination_ref"`
	Description    string          `json:"description"`
}
