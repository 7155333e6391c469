package schedule

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvand/installment-engine/internal/calendar"
)

func planSum(p *Plan) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range p.Lines {
		sum = sum.Add(line.DueAmount)
	}
	return sum
}

func TestBuild_StandardLoan(t *testing.T) {
	start, err := calendar.New(1395, 2, 10)
	require.NoError(t, err)

	// 12,000,000 at 2%/month over 6 months:
	// interest 1,440,000, total 13,440,000, installment 2,240,000.
	plan, err := Build(decimal.NewFromInt(12000000), 6, decimal.NewFromInt(2), start)
	require.NoError(t, err)

	assert.True(t, plan.TotalInterest.Equal(decimal.NewFromInt(1440000)),
		"total interest was %s", plan.TotalInterest)
	assert.True(t, plan.TotalWithInterest.Equal(decimal.NewFromInt(13440000)))
	require.Len(t, plan.Lines, 6)

	for i, line := range plan.Lines {
		assert.Equal(t, i+1, line.Sequence)
		assert.True(t, line.DueAmount.Equal(decimal.NewFromInt(2240000)),
			"installment %d was %s", i+1, line.DueAmount)

		want, err := start.AddMonths(i)
		require.NoError(t, err)
		assert.Equal(t, want, line.DueDate)
	}

	assert.True(t, planSum(plan).Equal(plan.TotalWithInterest))
}

func TestBuild_RemainderGoesToLastInstallment(t *testing.T) {
	start, err := calendar.New(1395, 1, 1)
	require.NoError(t, err)

	// 1,000,000 at 0% over 7 months does not divide evenly:
	// 6 * 142,857.14 = 857,142.84, last = 142,857.16.
	plan, err := Build(decimal.NewFromInt(1000000), 7, decimal.Zero, start)
	require.NoError(t, err)
	require.Len(t, plan.Lines, 7)

	base := plan.Lines[0].DueAmount
	for _, line := range plan.Lines[:6] {
		assert.True(t, line.DueAmount.Equal(base))
	}
	assert.False(t, plan.Lines[6].DueAmount.Equal(base))
	assert.True(t, planSum(plan).Equal(decimal.NewFromInt(1000000)),
		"sum was %s", planSum(plan))
}

func TestBuild_DueDateClamping(t *testing.T) {
	// Starting on the 31st: months 7..11 only have 30 days.
	start, err := calendar.New(1395, 5, 31)
	require.NoError(t, err)

	plan, err := Build(decimal.NewFromInt(3000000), 4, decimal.NewFromInt(1), start)
	require.NoError(t, err)

	assert.Equal(t, calendar.Date{Year: 1395, Month: 5, Day: 31}, plan.Lines[0].DueDate)
	assert.Equal(t, calendar.Date{Year: 1395, Month: 6, Day: 31}, plan.Lines[1].DueDate)
	assert.Equal(t, calendar.Date{Year: 1395, Month: 7, Day: 30}, plan.Lines[2].DueDate)
	assert.Equal(t, calendar.Date{Year: 1395, Month: 8, Day: 30}, plan.Lines[3].DueDate)
}

func TestBuild_ZeroRate(t *testing.T) {
	start, err := calendar.New(1395, 1, 1)
	require.NoError(t, err)

	plan, err := Build(decimal.NewFromInt(600000), 6, decimal.Zero, start)
	require.NoError(t, err)

	assert.True(t, plan.TotalInterest.IsZero())
	for _, line := range plan.Lines {
		assert.True(t, line.DueAmount.Equal(decimal.NewFromInt(100000)))
	}
}

func TestBuild_InvalidTerms(t *testing.T) {
	start, _ := calendar.New(1395, 1, 1)

	tests := []struct {
		name      string
		principal decimal.Decimal
		term      int
		rate      decimal.Decimal
		start     calendar.Date
	}{
		{name: "zero principal", principal: decimal.Zero, term: 6, rate: decimal.NewFromInt(2), start: start},
		{name: "negative principal", principal: decimal.NewFromInt(-100), term: 6, rate: decimal.NewFromInt(2), start: start},
		{name: "zero term", principal: decimal.NewFromInt(1000), term: 0, rate: decimal.NewFromInt(2), start: start},
		{name: "negative rate", principal: decimal.NewFromInt(1000), term: 6, rate: decimal.NewFromInt(-1), start: start},
		{name: "invalid start date", principal: decimal.NewFromInt(1000), term: 6, rate: decimal.NewFromInt(2), start: calendar.Date{Year: 1395, Month: 13, Day: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.principal, tt.term, tt.rate, tt.start)
			assert.Error(t, err)
		})
	}
}
