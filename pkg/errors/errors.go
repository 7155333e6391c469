package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrInvalidDate         = errors.New("invalid calendar date")
	ErrInvalidLoanTerms    = errors.New("invalid loan terms")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrOverpayment         = errors.New("payment exceeds remaining amount")
	ErrSameAccount         = errors.New("source and destination are the same cash box")
	ErrInsufficientFunds   = errors.New("insufficient cash box balance")
	ErrPersistence         = errors.New("storage operation failed")
	ErrInconsistentState   = errors.New("invariant violated before commit")
	ErrLoanNotFound        = errors.New("loan not found")
	ErrInstallmentNotFound = errors.New("installment not found")
	ErrCashBoxNotFound     = errors.New("cash box not found")

	ErrExpenseCategoryNotFound = errors.New("expense category not found")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeInvalidDate         = "INVALID_DATE"
	ErrCodeInvalidLoanTerms    = "INVALID_LOAN_TERMS"
	ErrCodeInvalidAmount       = "INVALID_AMOUNT"
	ErrCodeOverpayment         = "OVERPAYMENT"
	ErrCodeSameAccount         = "SAME_ACCOUNT"
	ErrCodeInsufficientFunds   = "INSUFFICIENT_FUNDS"
	ErrCodePersistence         = "PERSISTENCE_ERROR"
	ErrCodeInconsistentState   = "INCONSISTENT_STATE"
	ErrCodeLoanNotFound        = "LOAN_NOT_FOUND"
	ErrCodeInstallmentNotFound = "INSTALLMENT_NOT_FOUND"
	ErrCodeCashBoxNotFound     = "CASH_BOX_NOT_FOUND"

	ErrCodeExpenseCategoryNotFound = "EXPENSE_CATEGORY_NOT_FOUND"
)

// Wrap common errors with business context

func WrapInvalidDate(value string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidDate,
		fmt.Sprintf("%q is not a valid calendar date", value),
		ErrInvalidDate,
	)
}

func WrapInvalidLoanTerms(detail string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidLoanTerms,
		detail,
		ErrInvalidLoanTerms,
	)
}

func WrapInvalidAmount(amount string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidAmount,
		fmt.Sprintf("amount %s must be greater than zero", amount),
		ErrInvalidAmount,
	)
}

func WrapOverpayment(amount, remain string) *BusinessError {
	return NewBusinessError(
		ErrCodeOverpayment,
		fmt.Sprintf("payment %s exceeds remaining %s", amount, remain),
		ErrOverpayment,
	)
}

func WrapSameAccount(boxID string) *BusinessError {
	return NewBusinessError(
		ErrCodeSameAccount,
		fmt.Sprintf("cash box %s cannot transfer to itself", boxID),
		ErrSameAccount,
	)
}

func WrapInsufficientFunds(boxID, balance, amount string) *BusinessError {
	return NewBusinessError(
		ErrCodeInsufficientFunds,
		fmt.Sprintf("cash box %s balance %s cannot cover %s", boxID, balance, amount),
		ErrInsufficientFunds,
	)
}

func WrapPersistenceError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodePersistence,
		"storage operation failed",
		errors.Join(ErrPersistence, err),
	)
}

func WrapInconsistentState(detail string) *BusinessError {
	return NewBusinessError(
		ErrCodeInconsistentState,
		detail,
		ErrInconsistentState,
	)
}

func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("loan %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapInstallmentNotFound(installmentID string) *BusinessError {
	return NewBusinessError(
		ErrCodeInstallmentNotFound,
		fmt.Sprintf("installment %s not found", installmentID),
		ErrInstallmentNotFound,
	)
}

func WrapExpenseCategoryNotFound(categoryID string) *BusinessError {
	return NewBusinessError(
		ErrCodeExpenseCategoryNotFound,
		fmt.Sprintf("expense category %s not found", categoryID),
		ErrExpenseCategoryNotFound,
	)
}

func WrapCashBoxNotFound(boxID string) *BusinessError {
	return NewBusinessError(
		ErrCodeCashBoxNotFound,
		fmt.Sprintf("cash box %s not found", boxID),
		ErrCashBoxNotFound,
	)
}
