package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arvand/installment-engine/internal/calendar"
	"github.com/arvand/installment-engine/internal/domain"
	"github.com/arvand/installment-engine/internal/mocks"
	"github.com/arvand/installment-engine/internal/repository"
	customError "github.com/arvand/installment-engine/pkg/errors"
)

type fixedClock struct {
	today calendar.Date
}

func (c fixedClock) Today() calendar.Date { return c.today }

func date(y, m, d int) calendar.Date {
	return calendar.Date{Year: y, Month: m, Day: d}
}

func openInstallment(dueDate calendar.Date, dueAmount, paidAmount int64, status domain.InstallmentStatus) domain.Installment {
	due := decimal.NewFromInt(dueAmount)
	paid := decimal.NewFromInt(paidAmount)
	return domain.Installment{
		DueDate:       dueDate,
		DueAmount:     due,
		PaidAmount:    paid,
		Status:        status,
		PenaltyAmount: decimal.Zero,
		TotalAmount:   due,
		PaymentRemain: due.Sub(paid),
	}
}

func TestEvaluate_PenaltyAccrual(t *testing.T) {
	today := date(1395, 4, 20)

	// Due 10 days ago at 1% daily penalty: 7 chargeable days, 70,000 penalty.
	inst := openInstallment(date(1395, 4, 10), 1000000, 0, domain.StatusNotYetDue)
	next, changed, err := Evaluate(&inst, decimal.NewFromInt(1), today, DefaultPolicy())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 7, next.PenaltyDays)
	assert.True(t, next.PenaltyAmount.Equal(decimal.NewFromInt(70000)),
		"penalty was %s", next.PenaltyAmount)
	assert.True(t, next.TotalAmount.Equal(decimal.NewFromInt(1070000)))
	assert.True(t, next.PaymentRemain.Equal(decimal.NewFromInt(1070000)))
	assert.Equal(t, domain.StatusOverdue, next.Status)
}

func TestEvaluate_PenaltyScalesLinearly(t *testing.T) {
	rate := decimal.NewFromInt(2)
	policy := DefaultPolicy()

	inst := openInstallment(date(1395, 4, 10), 500000, 0, domain.StatusOverdue)

	sevenDays, _, err := Evaluate(&inst, rate, date(1395, 4, 20), policy)
	require.NoError(t, err)
	fourteenDays, _, err := Evaluate(&inst, rate, date(1395, 4, 27), policy)
	require.NoError(t, err)

	assert.Equal(t, 7, sevenDays.PenaltyDays)
	assert.Equal(t, 14, fourteenDays.PenaltyDays)
	assert.True(t, fourteenDays.PenaltyAmount.Equal(sevenDays.PenaltyAmount.Mul(decimal.NewFromInt(2))))
}

func TestEvaluate_StatusRules(t *testing.T) {
	rate := decimal.NewFromInt(1)
	policy := DefaultPolicy()
	due := date(1395, 4, 10)

	tests := []struct {
		name  string
		inst  domain.Installment
		today calendar.Date
		want  domain.InstallmentStatus
	}{
		{
			name:  "not yet due",
			inst:  openInstallment(due, 1000000, 0, domain.StatusNotYetDue),
			today: date(1395, 4, 5),
			want:  domain.StatusNotYetDue,
		},
		{
			name: "due today regardless of partial payment",
			// At daysPassed == 0 the due-today rule precedes the grace rules.
			inst:  openInstallment(due, 1000000, 400000, domain.StatusNotYetDue),
			today: due,
			want:  domain.StatusDueToday,
		},
		{
			name:  "grace window unpaid",
			inst:  openInstallment(due, 1000000, 0, domain.StatusDueToday),
			today: date(1395, 4, 12),
			want:  domain.StatusOverdueGrace,
		},
		{
			name:  "grace window partially paid",
			inst:  openInstallment(due, 1000000, 400000, domain.StatusDueToday),
			today: date(1395, 4, 13),
			want:  domain.StatusPartiallyPaidGrace,
		},
		{
			name:  "overdue past grace",
			inst:  openInstallment(due, 1000000, 0, domain.StatusOverdueGrace),
			today: date(1395, 4, 14),
			want:  domain.StatusOverdue,
		},
		{
			name:  "partially paid overdue",
			inst:  openInstallment(due, 1000000, 400000, domain.StatusPartiallyPaidGrace),
			today: date(1395, 4, 14),
			want:  domain.StatusPartiallyPaidOverdue,
		},
		{
			name:  "still overdue at the doubtful boundary",
			inst:  openInstallment(due, 1000000, 0, domain.StatusOverdue),
			today: due.AddDays(35),
			want:  domain.StatusOverdue,
		},
		{
			name:  "doubtful past threshold",
			inst:  openInstallment(due, 1000000, 0, domain.StatusOverdue),
			today: due.AddDays(36),
			want:  domain.StatusDoubtful,
		},
		{
			name:  "legal is absorbing",
			inst:  openInstallment(due, 1000000, 0, domain.StatusLegal),
			today: due.AddDays(60),
			want:  domain.StatusLegal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, _, err := Evaluate(&tt.inst, rate, tt.today, policy)
			require.NoError(t, err)
			assert.Equal(t, tt.want, next.Status)
		})
	}
}

func TestEvaluate_LegalStillAccruesPenalty(t *testing.T) {
	inst := openInstallment(date(1395, 4, 10), 1000000, 0, domain.StatusLegal)
	next, changed, err := Evaluate(&inst, decimal.NewFromInt(1), date(1395, 4, 20), DefaultPolicy())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.StatusLegal, next.Status)
	assert.True(t, next.PenaltyAmount.Equal(decimal.NewFromInt(70000)))
}

func TestEvaluate_FullyPaidBecomesSettled(t *testing.T) {
	due := date(1395, 4, 10)

	t.Run("paid before due date", func(t *testing.T) {
		inst := openInstallment(due, 1000000, 1000000, domain.StatusNotYetDue)
		inst.PaymentDate = date(1395, 4, 8)
		next, _, err := Evaluate(&inst, decimal.Zero, date(1395, 4, 9), DefaultPolicy())
		require.NoError(t, err)
		assert.Equal(t, domain.StatusSettledOnTime, next.Status)
	})

	t.Run("paid on due date counts as late", func(t *testing.T) {
		inst := openInstallment(due, 1000000, 1000000, domain.StatusDueToday)
		inst.PaymentDate = due
		next, _, err := Evaluate(&inst, decimal.Zero, due, DefaultPolicy())
		require.NoError(t, err)
		assert.Equal(t, domain.StatusSettledLate, next.Status)
	})

	t.Run("settled early is sticky", func(t *testing.T) {
		inst := openInstallment(due, 1000000, 1000000, domain.StatusSettledEarly)
		inst.PaymentDate = date(1395, 5, 1)
		next, changed, err := Evaluate(&inst, decimal.NewFromInt(1), date(1395, 6, 1), DefaultPolicy())
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, domain.StatusSettledEarly, next.Status)
	})
}

func TestEvaluate_SettledRowsAreSkipped(t *testing.T) {
	inst := openInstallment(date(1395, 4, 10), 1000000, 1000000, domain.StatusSettledLate)
	inst.PaymentRemain = decimal.Zero

	// Time passing must not reopen or re-penalize a settled installment.
	next, changed, err := Evaluate(&inst, decimal.NewFromInt(1), date(1395, 6, 1), DefaultPolicy())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, domain.StatusSettledLate, next.Status)
	assert.True(t, next.PenaltyAmount.IsZero())
}

func TestEvaluate_Idempotent(t *testing.T) {
	today := date(1395, 4, 20)
	rate := decimal.NewFromInt(1)
	inst := openInstallment(date(1395, 4, 10), 1000000, 0, domain.StatusNotYetDue)

	first, changed, err := Evaluate(&inst, rate, today, DefaultPolicy())
	require.NoError(t, err)
	require.True(t, changed)

	second, changed, err := Evaluate(first, rate, today, DefaultPolicy())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, first, second)
}

func TestEvaluate_InvalidDueDate(t *testing.T) {
	inst := openInstallment(calendar.Date{Year: 1395, Month: 13, Day: 1}, 1000000, 0, domain.StatusNotYetDue)
	_, _, err := Evaluate(&inst, decimal.NewFromInt(1), date(1395, 4, 20), DefaultPolicy())
	assert.ErrorIs(t, err, customError.ErrInvalidDate)
}

func newTestEngine(uow *mocks.MockUnitOfWork, today calendar.Date) *Engine {
	return New(uow, fixedClock{today: today}, DefaultPolicy(), nil, zap.NewNop())
}

func TestRun_UpdatesChangedRowsOnly(t *testing.T) {
	today := date(1395, 4, 20)
	uow := mocks.NewMockUnitOfWork()

	overdue := openInstallment(date(1395, 4, 10), 1000000, 0, domain.StatusNotYetDue)
	current := openInstallment(date(1395, 5, 10), 1000000, 0, domain.StatusNotYetDue)

	rows := []*repository.OpenInstallment{
		{Installment: overdue, PenaltyRatePercent: decimal.NewFromInt(1)},
		{Installment: current, PenaltyRatePercent: decimal.NewFromInt(1)},
	}

	uow.ReposBundle.InstallmentRepo.On("ListOpenForUpdate", mock.Anything).Return(rows, nil)
	uow.ReposBundle.InstallmentRepo.On("Update", mock.Anything, mock.MatchedBy(func(inst *domain.Installment) bool {
		return inst.Status == domain.StatusOverdue && inst.PenaltyDays == 7
	})).Return(nil).Once()

	updated, err := newTestEngine(uow, today).Run(context.Background(), calendar.Date{})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	uow.ReposBundle.AssertExpectations(t)
}

func TestRun_SecondPassIsNoOp(t *testing.T) {
	today := date(1395, 4, 20)
	rate := decimal.NewFromInt(1)

	inst := openInstallment(date(1395, 4, 10), 1000000, 0, domain.StatusNotYetDue)
	recomputed, _, err := Evaluate(&inst, rate, today, DefaultPolicy())
	require.NoError(t, err)

	uow := mocks.NewMockUnitOfWork()
	rows := []*repository.OpenInstallment{
		{Installment: *recomputed, PenaltyRatePercent: rate},
	}
	uow.ReposBundle.InstallmentRepo.On("ListOpenForUpdate", mock.Anything).Return(rows, nil)

	updated, err := newTestEngine(uow, today).Run(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 0, updated)

	// Update was never called.
	uow.ReposBundle.InstallmentRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestRun_RowFaultAbortsWholePass(t *testing.T) {
	today := date(1395, 4, 20)
	uow := mocks.NewMockUnitOfWork()

	bad := openInstallment(calendar.Date{Year: 1395, Month: 13, Day: 1}, 1000000, 0, domain.StatusNotYetDue)
	good := openInstallment(date(1395, 4, 10), 1000000, 0, domain.StatusNotYetDue)

	rows := []*repository.OpenInstallment{
		{Installment: bad, PenaltyRatePercent: decimal.NewFromInt(1)},
		{Installment: good, PenaltyRatePercent: decimal.NewFromInt(1)},
	}
	uow.ReposBundle.InstallmentRepo.On("ListOpenForUpdate", mock.Anything).Return(rows, nil)

	updated, err := newTestEngine(uow, today).Run(context.Background(), calendar.Date{})
	assert.ErrorIs(t, err, customError.ErrInvalidDate)
	assert.Equal(t, 0, updated)
}

func TestRun_PersistenceFaultSurfaces(t *testing.T) {
	today := date(1395, 4, 20)
	uow := mocks.NewMockUnitOfWork()
	uow.ReposBundle.InstallmentRepo.On("ListOpenForUpdate", mock.Anything).
		Return(nil, errors.New("connection reset"))

	_, err := newTestEngine(uow, today).Run(context.Background(), calendar.Date{})
	assert.ErrorIs(t, err, customError.ErrPersistence)
}

func TestRun_RejectsInvalidEvaluationDate(t *testing.T) {
	uow := mocks.NewMockUnitOfWork()
	_, err := newTestEngine(uow, date(1395, 4, 20)).Run(context.Background(), calendar.Date{Year: 1395, Month: 0, Day: 5})
	assert.Error(t, err)
}
