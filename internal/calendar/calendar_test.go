package calendar

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, y, m, d int) Date {
	t.Helper()
	date, err := New(y, m, d)
	require.NoError(t, err)
	return date
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Date
		wantErr bool
	}{
		{name: "slash separated", input: "1395/01/23", want: Date{1395, 1, 23}},
		{name: "dash separated", input: "1395-01-23", want: Date{1395, 1, 23}},
		{name: "unpadded", input: "1395/1/5", want: Date{1395, 1, 5}},
		{name: "month out of range", input: "1395/13/01", wantErr: true},
		{name: "day out of range", input: "1395/07/31", wantErr: true},
		{name: "esfand 30 in non-leap year", input: "1394/12/30", wantErr: true},
		{name: "esfand 30 in leap year", input: "1395/12/30", want: Date{1395, 12, 30}},
		{name: "garbage", input: "not-a-date", wantErr: true},
		{name: "missing component", input: "1395/01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGregorianConversion(t *testing.T) {
	tests := []struct {
		jalali    Date
		gregorian time.Time
	}{
		{Date{1395, 1, 23}, time.Date(2016, time.April, 11, 0, 0, 0, 0, time.UTC)},
		{Date{1395, 1, 1}, time.Date(2016, time.March, 20, 0, 0, 0, 0, time.UTC)},
		{Date{1395, 12, 30}, time.Date(2017, time.March, 20, 0, 0, 0, 0, time.UTC)},
		{Date{1396, 1, 1}, time.Date(2017, time.March, 21, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.jalali.String(), func(t *testing.T) {
			assert.Equal(t, tt.gregorian, tt.jalali.Time())
			assert.Equal(t, tt.jalali, FromTime(tt.gregorian))
		})
	}
}

func TestConversionRoundtrip(t *testing.T) {
	// Every day of a leap and a non-leap year must survive the roundtrip.
	for _, year := range []int{1394, 1395} {
		d := mustDate(t, year, 1, 1)
		for i := 0; i < 366; i++ {
			back := FromTime(d.Time())
			require.Equal(t, d, back, "roundtrip of %s", d)
			d = d.AddDays(1)
		}
	}
}

func TestMonthLength(t *testing.T) {
	assert.Equal(t, 31, MonthLength(1395, 1))
	assert.Equal(t, 31, MonthLength(1395, 6))
	assert.Equal(t, 30, MonthLength(1395, 7))
	assert.Equal(t, 30, MonthLength(1395, 11))
	assert.Equal(t, 30, MonthLength(1395, 12)) // leap
	assert.Equal(t, 29, MonthLength(1394, 12))
}

func TestIsLeapYear(t *testing.T) {
	assert.True(t, IsLeapYear(1395))
	assert.False(t, IsLeapYear(1394))
	assert.False(t, IsLeapYear(1396))
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name string
		from Date
		n    int
		want Date
	}{
		{name: "simple step", from: Date{1395, 1, 10}, n: 1, want: Date{1395, 2, 10}},
		{name: "across year end", from: Date{1395, 12, 15}, n: 1, want: Date{1396, 1, 15}},
		{name: "clamp 31 to 30", from: Date{1395, 6, 31}, n: 1, want: Date{1395, 7, 30}},
		{name: "clamp to esfand non-leap", from: Date{1394, 11, 30}, n: 1, want: Date{1394, 12, 29}},
		{name: "no clamp to esfand in leap year", from: Date{1395, 11, 30}, n: 1, want: Date{1395, 12, 30}},
		{name: "twelve months", from: Date{1395, 3, 7}, n: 12, want: Date{1396, 3, 7}},
		{name: "negative step", from: Date{1395, 3, 7}, n: -2, want: Date{1395, 1, 7}},
		{name: "negative across year start", from: Date{1395, 1, 7}, n: -1, want: Date{1394, 12, 7}},
		{name: "zero months", from: Date{1395, 5, 5}, n: 0, want: Date{1395, 5, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.from.AddMonths(tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("invalid input date", func(t *testing.T) {
		_, err := Date{1395, 13, 1}.AddMonths(1)
		assert.Error(t, err)
	})
}

func TestAddMonthsRoundtrip(t *testing.T) {
	// Forward-then-back is the identity whenever no clamping occurs.
	d := mustDate(t, 1395, 4, 12)
	forward, err := d.AddMonths(1)
	require.NoError(t, err)
	back, err := forward.AddMonths(-1)
	require.NoError(t, err)
	assert.Equal(t, d, back)
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name string
		from Date
		to   Date
		want int
	}{
		{name: "same day", from: Date{1395, 1, 23}, to: Date{1395, 1, 23}, want: 0},
		{name: "within month", from: Date{1395, 1, 23}, to: Date{1395, 2, 1}, want: 9},
		{name: "reversed is negative", from: Date{1395, 2, 1}, to: Date{1395, 1, 23}, want: -9},
		{name: "leap year length", from: Date{1395, 1, 1}, to: Date{1396, 1, 1}, want: 366},
		{name: "non-leap year length", from: Date{1394, 1, 1}, to: Date{1395, 1, 1}, want: 365},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysBetween(tt.from, tt.to))
		})
	}
}

func TestAddDays(t *testing.T) {
	assert.Equal(t, Date{1395, 2, 1}, Date{1395, 1, 31}.AddDays(1))
	assert.Equal(t, Date{1395, 1, 31}, Date{1395, 2, 1}.AddDays(-1))
	assert.Equal(t, Date{1396, 1, 1}, Date{1395, 12, 30}.AddDays(1))
}

func TestJSONRoundtrip(t *testing.T) {
	d := mustDate(t, 1395, 7, 9)
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"1395/07/09"`, string(raw))

	var back Date
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, d, back)
}

func TestSQLValueScan(t *testing.T) {
	d := mustDate(t, 1395, 7, 9)
	v, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, "1395/07/09", v)

	var scanned Date
	require.NoError(t, scanned.Scan("1395/07/09"))
	assert.Equal(t, d, scanned)

	var zero Date
	require.NoError(t, zero.Scan(nil))
	assert.True(t, zero.IsZero())

	v, err = zero.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}
