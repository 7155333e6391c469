// Package engine implements the batch status and penalty recomputation pass
// over open installments. The pass is idempotent: rows are only written back
// when a derived field actually changed, so re-running it with the same
// evaluation date is a no-op.
package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/arvand/installment-engine/internal/calendar"
	"github.com/arvand/installment-engine/internal/domain"
	"github.com/arvand/installment-engine/internal/repository"
	customError "github.com/arvand/installment-engine/pkg/errors"
)

// LastRunKey is the cache key the most recent run summary is stored under.
const LastRunKey = "status_run:last"

var oneHundred = decimal.NewFromInt(100)

// Clock supplies the evaluation date, injectable for deterministic tests.
type Clock interface {
	Today() calendar.Date
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Today() calendar.Date {
	return calendar.FromTime(time.Now())
}

// Policy holds the collection policy constants.
type Policy struct {
	// GraceDays is the number of days after the due date during which no
	// penalty accrues.
	GraceDays int
	// DoubtfulAfterDays is the overdue age past which an installment is
	// considered likely uncollectible.
	DoubtfulAfterDays int
}

// DefaultPolicy reproduces the original bookkeeping constants.
func DefaultPolicy() Policy {
	return Policy{GraceDays: 3, DoubtfulAfterDays: 35}
}

// RunSummary describes one completed recomputation pass.
type RunSummary struct {
	AsOf        calendar.Date `json:"as_of"`
	RowsVisited int           `json:"rows_visited"`
	RowsUpdated int           `json:"rows_updated"`
	RanAt       time.Time     `json:"ran_at"`
}

// Engine recomputes installment statuses, penalty figures and remaining
// balances in a single all-or-nothing pass.
type Engine struct {
	store  repository.UnitOfWork
	clock  Clock
	policy Policy
	redis  *redis.Client
	logger *zap.Logger
}

func New(store repository.UnitOfWork, clock Clock, policy Policy, redisClient *redis.Client, logger *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		clock:  clock,
		policy: policy,
		redis:  redisClient,
		logger: logger,
	}
}

// Run recomputes every open installment as of the given date (the clock's
// today when asOf is zero) and returns the number of rows actually updated.
// Any per-row fault aborts the pass and rolls everything back: statuses
// across a loan's installments must stay mutually consistent.
func (e *Engine) Run(ctx context.Context, asOf calendar.Date) (int, error) {
	if asOf.IsZero() {
		asOf = e.clock.Today()
	}
	if err := asOf.Validate(); err != nil {
		return 0, err
	}

	var summary RunSummary
	err := e.store.WithinTx(ctx, func(r repository.Repos) error {
		open, err := r.Installments().ListOpenForUpdate(ctx)
		if err != nil {
			return customError.WrapPersistenceError(err)
		}
		summary.RowsVisited = len(open)

		for _, row := range open {
			next, changed, err := Evaluate(&row.Installment, row.PenaltyRatePercent, asOf, e.policy)
			if err != nil {
				return err
			}
			if !changed {
				continue
			}
			if err := r.Installments().Update(ctx, next); err != nil {
				return customError.WrapPersistenceError(err)
			}
			summary.RowsUpdated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	summary.AsOf = asOf
	summary.RanAt = time.Now()
	e.logger.Info("status recomputation pass completed",
		zap.String("as_of", asOf.String()),
		zap.Int("rows_visited", summary.RowsVisited),
		zap.Int("rows_updated", summary.RowsUpdated),
	)
	e.storeLastRun(ctx, summary)

	return summary.RowsUpdated, nil
}

// storeLastRun caches the run summary; failures are logged, not fatal.
func (e *Engine) storeLastRun(ctx context.Context, summary RunSummary) {
	if e.redis == nil {
		return
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := e.redis.Set(ctx, LastRunKey, payload, 0).Err(); err != nil {
		e.logger.Warn("failed to cache run summary", zap.Error(err))
	}
}

// Evaluate derives the status, penalty figures and remaining balance of one
// installment as of today. It returns the recomputed installment and whether
// any persisted field changed. Settled installments pass through untouched;
// penalties stop accruing once an installment is closed.
func Evaluate(inst *domain.Installment, penaltyRatePercent decimal.Decimal, today calendar.Date, policy Policy) (*domain.Installment, bool, error) {
	if err := inst.DueDate.Validate(); err != nil {
		return nil, false, err
	}
	if inst.Status.IsSettled() {
		return inst, false, nil
	}

	daysPassed := calendar.DaysBetween(inst.DueDate, today)

	penaltyDays := calendar.DaysBetween(inst.DueDate.AddDays(policy.GraceDays), today)
	if penaltyDays < 0 {
		penaltyDays = 0
	}

	penaltyAmount := inst.DueAmount.
		Mul(penaltyRatePercent).
		Div(oneHundred).
		Mul(decimal.NewFromInt(int64(penaltyDays))).
		Round(2)
	totalAmount := inst.DueAmount.Add(penaltyAmount)
	paymentRemain := totalAmount.Sub(inst.PaidAmount)

	next := *inst
	next.PenaltyDays = penaltyDays
	next.PenaltyAmount = penaltyAmount
	next.TotalAmount = totalAmount
	next.PaymentRemain = paymentRemain
	next.Status = deriveStatus(inst, daysPassed, paymentRemain, policy)

	changed := next.Status != inst.Status ||
		next.PenaltyDays != inst.PenaltyDays ||
		!next.PenaltyAmount.Equal(inst.PenaltyAmount) ||
		!next.TotalAmount.Equal(inst.TotalAmount) ||
		!next.PaymentRemain.Equal(inst.PaymentRemain)

	return &next, changed, nil
}

// deriveStatus applies the status rules in strict priority order; the first
// matching rule wins.
func deriveStatus(inst *domain.Installment, daysPassed int, paymentRemain decimal.Decimal, policy Policy) domain.InstallmentStatus {
	partiallyPaid := inst.PaidAmount.GreaterThan(decimal.Zero)

	switch {
	case paymentRemain.LessThanOrEqual(decimal.Zero):
		return SettledStatus(inst.Status, inst.PaymentDate, inst.DueDate)
	case inst.Status == domain.StatusLegal:
		// Manual escalation is absorbing: only penalty figures refresh.
		return domain.StatusLegal
	case daysPassed < 0:
		return domain.StatusNotYetDue
	case daysPassed == 0:
		return domain.StatusDueToday
	case daysPassed <= policy.GraceDays:
		if partiallyPaid {
			return domain.StatusPartiallyPaidGrace
		}
		return domain.StatusOverdueGrace
	case daysPassed > policy.DoubtfulAfterDays:
		return domain.StatusDoubtful
	default:
		if partiallyPaid {
			return domain.StatusPartiallyPaidOverdue
		}
		return domain.StatusOverdue
	}
}

// SettledStatus is the settlement branch of the status rules, shared with
// the payment path. SettledEarly is sticky and never downgraded.
func SettledStatus(prev domain.InstallmentStatus, paymentDate, dueDate calendar.Date) domain.InstallmentStatus {
	if prev == domain.StatusSettledEarly {
		return domain.StatusSettledEarly
	}
	if !paymentDate.IsZero() && paymentDate.Before(dueDate) {
		return domain.StatusSettledOnTime
	}
	return domain.StatusSettledLate
}
