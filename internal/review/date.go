package review

import (
	"time"

	"github.com/rotisserie/eris"
)

const dateLayout = "2006-01-02"

// Date is a calendar date with day precision. The zero value means "not set".
// It serializes as ISO-8601 (YYYY-MM-DD) in JSON and YAML.
type Date struct {
	time.Time
}

// NewDate builds a Date from calendar components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses an ISO-8601 date string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, eris.Wrapf(err, "review: parse date %q", s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// AddDays returns the date shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{d.AddDate(0, 0, n)}
}

// MarshalJSON renders the date as "YYYY-MM-DD", or null when unset.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

// UnmarshalJSON accepts "YYYY-MM-DD" or null.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalText makes Date usable with YAML and text-based encoders.
func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte(""), nil
	}
	return []byte(d.Format(dateLayout)), nil
}

// UnmarshalText parses "YYYY-MM-DD"; empty input leaves the date unset.
func (d *Date) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// lastDayOfMonth reports the number of days in the given month.
func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ShiftMonths moves the date by n calendar months, clamping the day to the
// end of the target month (Jan 31 - 1 month = Dec 31; Mar 31 - 1 = Feb 28/29).
func (d Date) ShiftMonths(n int) Date {
	if d.IsZero() {
		return d
	}
	y, m, day := d.Date()
	total := y*12 + int(m) - 1 + n
	ny, nm := total/12, time.Month(total%12+1)
	if last := lastDayOfMonth(ny, nm); day > last {
		day = last
	}
	return NewDate(ny, nm, day)
}

// AddMonthsPreserveEnd moves the date by n months, keeping a month-end anchor
// on the month end (Jan 31 + 3 months = Apr 30, not Apr 30's literal day).
func (d Date) AddMonthsPreserveEnd(n int) Date {
	if d.IsZero() {
		return d
	}
	y, m, day := d.Date()
	atEnd := day == lastDayOfMonth(y, m)
	shifted := d.ShiftMonths(n)
	if atEnd {
		sy, sm, _ := shifted.Date()
		return NewDate(sy, sm, lastDayOfMonth(sy, sm))
	}
	return shifted
}

// MonthsBetween counts inclusive whole months between two dates
// (Jan..Mar = 3).
func MonthsBetween(start, end Date) int {
	return (end.Year()*12 + int(end.Month())) - (start.Year()*12 + int(start.Month())) + 1
}
