package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/arvand/installment-engine/internal/calendar"
	"github.com/arvand/installment-engine/internal/domain"
	"github.com/arvand/installment-engine/internal/engine"
	"github.com/arvand/installment-engine/internal/ledger"
	customError "github.com/arvand/installment-engine/pkg/errors"
	"github.com/arvand/installment-engine/pkg/response"
)

type LedgerHandler struct {
	service   *ledger.Service
	engine    *engine.Engine
	validator *validator.Validate
}

func NewLedgerHandler(service *ledger.Service, eng *engine.Engine) *LedgerHandler {
	return &LedgerHandler{
		service:   service,
		engine:    eng,
		validator: newValidator(),
	}
}

// newValidator registers the decimal and calendar rules the request DTOs use.
func newValidator() *validator.Validate {
	v := validator.New()

	_ = v.RegisterValidation("decimal_gt_zero", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && value.GreaterThan(decimal.Zero)
	})
	_ = v.RegisterValidation("decimal_gte_zero", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && !value.IsNegative()
	})
	_ = v.RegisterValidation("jalali_date", func(fl validator.FieldLevel) bool {
		_, err := calendar.Parse(fl.Field().String())
		return err == nil
	})

	return v
}

// CreateLoan disburses a loan and returns it with the generated schedule.
func (h *LedgerHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var request domain.DisburseRequest
	if !h.decode(w, r, &request) {
		return
	}

	loan, installments, err := h.service.Disburse(r.Context(), &request)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Created(w, domain.DisburseResponse{Loan: loan, Installments: installments})
}

// ReceivePayment applies a payment to one installment.
func (h *LedgerHandler) ReceivePayment(w http.ResponseWriter, r *http.Request) {
	installmentID, ok := pathID(w, r, "installmentId")
	if !ok {
		return
	}

	var request domain.ReceivePaymentRequest
	if !h.decode(w, r, &request) {
		return
	}

	receipt, err := h.service.ReceivePayment(r.Context(), installmentID, &request)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Created(w, receipt)
}

// MarkLegal escalates an installment to legal action.
func (h *LedgerHandler) MarkLegal(w http.ResponseWriter, r *http.Request) {
	installmentID, ok := pathID(w, r, "installmentId")
	if !ok {
		return
	}

	if err := h.service.MarkLegal(r.Context(), installmentID); err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, map[string]string{"status": string(domain.StatusLegal)})
}

// Settle closes a loan early at a negotiated payoff.
func (h *LedgerHandler) Settle(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loanId")
	if !ok {
		return
	}

	var request domain.SettleRequest
	if !h.decode(w, r, &request) {
		return
	}

	if err := h.service.Settle(r.Context(), loanID, &request); err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, map[string]string{"status": domain.LoanStatusSettled})
}

// GetSchedule returns the full installment schedule of a loan.
func (h *LedgerHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loanId")
	if !ok {
		return
	}

	installments, err := h.service.Schedule(r.Context(), loanID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, domain.ScheduleResponse{LoanID: loanID, Installments: installments})
}

// GetOutstanding returns the amount still owed on a loan.
func (h *LedgerHandler) GetOutstanding(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "loanId")
	if !ok {
		return
	}

	outstanding, err := h.service.Outstanding(r.Context(), loanID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, domain.OutstandingResponse{LoanID: loanID, Outstanding: outstanding})
}

// CreateTransaction records a manual ledger entry.
func (h *LedgerHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var request domain.ManualTransactionRequest
	if !h.decode(w, r, &request) {
		return
	}

	txn, err := h.service.RecordManualTransaction(r.Context(), &request)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Created(w, txn)
}

// CreateExpense records a categorized expense.
func (h *LedgerHandler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var request domain.RecordExpenseRequest
	if !h.decode(w, r, &request) {
		return
	}

	expense, err := h.service.RecordExpense(r.Context(), &request)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Created(w, expense)
}

type createNamedRequest struct {
	Name string `json:"name" validate:"required"`
}

// CreateCashBox opens an empty cash box.
func (h *LedgerHandler) CreateCashBox(w http.ResponseWriter, r *http.Request) {
	var request createNamedRequest
	if !h.decode(w, r, &request) {
		return
	}

	box, err := h.service.CreateCashBox(r.Context(), request.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Created(w, box)
}

// CreateExpenseCategory adds an expense category.
func (h *LedgerHandler) CreateExpenseCategory(w http.ResponseWriter, r *http.Request) {
	var request createNamedRequest
	if !h.decode(w, r, &request) {
		return
	}

	category, err := h.service.CreateExpenseCategory(r.Context(), request.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Created(w, category)
}

// GetCashBox returns a cash box with its current balance.
func (h *LedgerHandler) GetCashBox(w http.ResponseWriter, r *http.Request) {
	boxID, ok := pathID(w, r, "cashBoxId")
	if !ok {
		return
	}

	box, err := h.service.CashBox(r.Context(), boxID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, box)
}

// GetCashBoxTransactions lists every ledger entry touching a cash box.
func (h *LedgerHandler) GetCashBoxTransactions(w http.ResponseWriter, r *http.Request) {
	boxID, ok := pathID(w, r, "cashBoxId")
	if !ok {
		return
	}

	txns, err := h.service.CashBoxTransactions(r.Context(), boxID)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, txns)
}

type statusRunRequest struct {
	AsOf string `json:"as_of" validate:"omitempty,jalali_date"`
}

type statusRunResponse struct {
	AsOf        string `json:"as_of"`
	RowsUpdated int    `json:"rows_updated"`
}

// RunStatusPass triggers the batch status and penalty recomputation,
// optionally as of a supplied evaluation date.
func (h *LedgerHandler) RunStatusPass(w http.ResponseWriter, r *http.Request) {
	var request statusRunRequest
	if r.ContentLength > 0 && !h.decode(w, r, &request) {
		return
	}

	var asOf calendar.Date
	if request.AsOf != "" {
		parsed, err := calendar.Parse(request.AsOf)
		if err != nil {
			writeError(w, err)
			return
		}
		asOf = parsed
	}

	updated, err := h.engine.Run(r.Context(), asOf)
	if err != nil {
		writeError(w, err)
		return
	}

	response.Success(w, statusRunResponse{AsOf: request.AsOf, RowsUpdated: updated})
}

// decode unmarshals and validates the request body, writing the 400 itself.
func (h *LedgerHandler) decode(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		response.BadRequest(w, "Invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps business errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, customError.ErrInvalidDate),
		errors.Is(err, customError.ErrInvalidLoanTerms),
		errors.Is(err, customError.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, customError.ErrLoanNotFound),
		errors.Is(err, customError.ErrInstallmentNotFound),
		errors.Is(err, customError.ErrCashBoxNotFound),
		errors.Is(err, customError.ErrExpenseCategoryNotFound):
		status = http.StatusNotFound
	case errors.Is(err, customError.ErrOverpayment),
		errors.Is(err, customError.ErrSameAccount),
		errors.Is(err, customError.ErrInsufficientFunds),
		errors.Is(err, customError.ErrInconsistentState):
		status = http.StatusUnprocessableEntity
	}

	var businessErr *customError.BusinessError
	if errors.As(err, &businessErr) {
		response.Error(w, status, businessErr.Code, businessErr.Message, businessErr.Err)
		return
	}
	response.Error(w, status, "", "request failed", err)
}
