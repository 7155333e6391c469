// Package calendar implements Jalali calendar dates and the arithmetic the
// installment engine needs: whole-month stepping with end-of-month clamping
// and day differences, which are computed in the Gregorian calendar.
//
// Conversion goes through Julian day numbers using the arithmetic published
// for the 2820-year-cycle Jalali calendar (the same tables jalaali-js uses).
package calendar

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	customError "github.com/arvand/installment-engine/pkg/errors"
)

// Layout is the normalized string form dates are stored and exchanged in.
const Layout = "YYYY/MM/DD"

// Date is a calendar day in the Jalali (primary) calendar.
type Date struct {
	Year  int
	Month int
	Day   int
}

// Years for which the break-point table below is defined.
const (
	minYear = -61
	maxYear = 3177
)

// Break points of the 2820-year Jalali leap cycle.
var breaks = [...]int{
	-61, 9, 38, 199, 426, 686, 756, 818, 1111, 1181, 1210,
	1635, 2060, 2097, 2192, 2262, 2324, 2394, 2456, 3178,
}

// New builds a validated date.
func New(year, month, day int) (Date, error) {
	d := Date{Year: year, Month: month, Day: day}
	if err := d.Validate(); err != nil {
		return Date{}, err
	}
	return d, nil
}

// Parse reads a normalized "YYYY/MM/DD" string. Dashes are accepted as
// separators since older exports used them.
func Parse(value string) (Date, error) {
	normalized := strings.ReplaceAll(value, "-", "/")
	parts := strings.Split(normalized, "/")
	if len(parts) != 3 {
		return Date{}, customError.WrapInvalidDate(value)
	}

	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Date{}, customError.WrapInvalidDate(value)
		}
		nums[i] = n
	}

	d, err := New(nums[0], nums[1], nums[2])
	if err != nil {
		return Date{}, customError.WrapInvalidDate(value)
	}
	return d, nil
}

// Validate checks the components against the Jalali month lengths.
func (d Date) Validate() error {
	if d.Year < minYear || d.Year > maxYear {
		return customError.WrapInvalidDate(d.String())
	}
	if d.Month < 1 || d.Month > 12 {
		return customError.WrapInvalidDate(d.String())
	}
	if d.Day < 1 || d.Day > MonthLength(d.Year, d.Month) {
		return customError.WrapInvalidDate(d.String())
	}
	return nil
}

// IsZero reports whether d is the unset zero value.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

func (d Date) String() string {
	return fmt.Sprintf("%04d/%02d/%02d", d.Year, d.Month, d.Day)
}

// MonthLength returns the number of days in the given Jalali month.
func MonthLength(year, month int) int {
	switch {
	case month <= 6:
		return 31
	case month <= 11:
		return 30
	case IsLeapYear(year):
		return 30
	default:
		return 29
	}
}

// IsLeapYear reports whether the Jalali year has 366 days.
func IsLeapYear(year int) bool {
	leap, _, _ := jalCal(year)
	return leap == 0
}

// AddMonths advances the date by n whole months (n may be negative),
// clamping the day to the last day of the target month.
func (d Date) AddMonths(n int) (Date, error) {
	if err := d.Validate(); err != nil {
		return Date{}, err
	}

	months := d.Year*12 + (d.Month - 1) + n
	year := months / 12
	month := months%12 + 1
	if month < 1 {
		// Go's % truncates toward zero; normalize for negative totals.
		month += 12
		year--
	}

	day := d.Day
	if max := MonthLength(year, month); day > max {
		day = max
	}
	return New(year, month, day)
}

// AddDays advances the date by n calendar days (n may be negative).
func (d Date) AddDays(n int) Date {
	return fromJDN(d.jdn() + n)
}

// DaysBetween returns to − from in whole days. Day subtraction is not
// defined on Jalali components directly, so both dates go through their
// Julian day numbers.
func DaysBetween(from, to Date) int {
	return to.jdn() - from.jdn()
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return DaysBetween(d, other) > 0
}

// ToGregorian converts d to Gregorian year, month and day.
func (d Date) ToGregorian() (int, time.Month, int) {
	gy, gm, gd := d2g(d.jdn())
	return gy, time.Month(gm), gd
}

// Time returns the date as a UTC midnight time.Time.
func (d Date) Time() time.Time {
	gy, gm, gd := d.ToGregorian()
	return time.Date(gy, gm, gd, 0, 0, 0, 0, time.UTC)
}

// FromGregorian converts a Gregorian calendar day to its Jalali date.
func FromGregorian(year int, month time.Month, day int) Date {
	return fromJDN(g2d(year, int(month), day))
}

// FromTime converts the calendar day of t (in its own location) to a Date.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return FromGregorian(y, m, d)
}

func (d Date) jdn() int {
	return j2d(d.Year, d.Month, d.Day)
}

func fromJDN(jdn int) Date {
	jy, jm, jd := d2j(jdn)
	return Date{Year: jy, Month: jm, Day: jd}
}

// MarshalJSON renders the date as its normalized string.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(d.String())), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores the date as its normalized string; the zero date maps to NULL.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan reads a date column written by Value.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into calendar.Date", src)
	}
}

// jalCal computes the leap status of a Jalali year together with the
// Gregorian year and the March day its first day falls on.
func jalCal(jy int) (leap, gy, march int) {
	gy = jy + 621
	leapJ := -14
	jp := breaks[0]

	var jump int
	for i := 1; i < len(breaks); i++ {
		jm := breaks[i]
		jump = jm - jp
		if jy < jm {
			break
		}
		leapJ += jump/33*8 + jump%33/4
		jp = jm
	}
	n := jy - jp

	leapJ += n/33*8 + (n%33+3)/4
	if jump%33 == 4 && jump-n == 4 {
		leapJ++
	}

	leapG := gy/4 - (gy/100+1)*3/4 - 150
	march = 20 + leapJ - leapG

	if jump-n < 6 {
		n = n - jump + (jump+4)/33*33
	}
	leap = ((n+1)%33 - 1) % 4
	if leap == -1 {
		leap = 4
	}
	return leap, gy, march
}

func j2d(jy, jm, jd int) int {
	_, gy, march := jalCal(jy)
	return g2d(gy, 3, march) + (jm-1)*31 - jm/7*(jm-7) + jd - 1
}

func d2j(jdn int) (jy, jm, jd int) {
	gy, _, _ := d2g(jdn)
	jy = gy - 621
	leap, _, march := jalCal(jy)
	jdn1f := g2d(gy, 3, march)

	k := jdn - jdn1f
	if k >= 0 {
		if k <= 185 {
			jm = 1 + k/31
			jd = k%31 + 1
			return jy, jm, jd
		}
		k -= 186
	} else {
		jy--
		k += 179
		if leap == 1 {
			k++
		}
	}
	jm = 7 + k/30
	jd = k%30 + 1
	return jy, jm, jd
}

func g2d(gy, gm, gd int) int {
	d := (gy+(gm-8)/6+100100)*1461/4 + (153*((gm+9)%12)+2)/5 + gd - 34840408
	return d - (gy+100100+(gm-8)/6)/100*3/4 + 752
}

func d2g(jdn int) (gy, gm, gd int) {
	j := 4*jdn + 139361631
	j += (4*jdn+183187720)/146097*3/4*4 - 3908
	i := j%1461/4*5 + 308
	gd = i%153/5 + 1
	gm = i/153%12 + 1
	gy = j/1461 - 100100 + (8-gm)/6
	return gy, gm, gd
}
