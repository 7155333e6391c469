// Package schedule turns loan terms into an amortization plan of equal
// monthly installments under simple flat-rate interest.
package schedule

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/arvand/installment-engine/internal/calendar"
	customError "github.com/arvand/installment-engine/pkg/errors"
)

var oneHundred = decimal.NewFromInt(100)

// Line is one planned installment before it becomes a persisted row.
type Line struct {
	Sequence  int
	DueDate   calendar.Date
	DueAmount decimal.Decimal
}

// Plan is the full installment plan for a loan.
type Plan struct {
	TotalInterest     decimal.Decimal
	TotalWithInterest decimal.Decimal
	Lines             []Line
}

// Build computes the plan for the given terms. Installments are equal,
// rounded to 2 places; any division remainder is absorbed into the final
// installment so the lines always sum exactly to TotalWithInterest. Due
// dates step one calendar month per installment, clamped to shorter months.
func Build(principal decimal.Decimal, termMonths int, monthlyRatePercent decimal.Decimal, startDate calendar.Date) (*Plan, error) {
	if principal.LessThanOrEqual(decimal.Zero) {
		return nil, customError.WrapInvalidLoanTerms(
			fmt.Sprintf("principal %s must be greater than zero", principal))
	}
	if termMonths <= 0 {
		return nil, customError.WrapInvalidLoanTerms(
			fmt.Sprintf("term of %d months must be greater than zero", termMonths))
	}
	if monthlyRatePercent.IsNegative() {
		return nil, customError.WrapInvalidLoanTerms(
			fmt.Sprintf("monthly rate %s%% must not be negative", monthlyRatePercent))
	}
	if err := startDate.Validate(); err != nil {
		return nil, customError.WrapInvalidLoanTerms(
			fmt.Sprintf("start date %s is not a valid calendar date", startDate))
	}

	term := decimal.NewFromInt(int64(termMonths))
	totalInterest := principal.Mul(monthlyRatePercent).Div(oneHundred).Mul(term)
	totalWithInterest := principal.Add(totalInterest)

	base := totalWithInterest.Div(term).Round(2)
	// The last installment carries whatever rounding left over, keeping the
	// sum of all lines exactly equal to totalWithInterest.
	last := totalWithInterest.Sub(base.Mul(term.Sub(decimal.NewFromInt(1))))

	lines := make([]Line, 0, termMonths)
	for i := 0; i < termMonths; i++ {
		dueDate, err := startDate.AddMonths(i)
		if err != nil {
			return nil, err
		}

		amount := base
		if i == termMonths-1 {
			amount = last
		}
		lines = append(lines, Line{
			Sequence:  i + 1,
			DueDate:   dueDate,
			DueAmount: amount,
		})
	}

	return &Plan{
		TotalInterest:     totalInterest,
		TotalWithInterest: totalWithInterest,
		Lines:             lines,
	}, nil
}
