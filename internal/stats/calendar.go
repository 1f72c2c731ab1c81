package stats

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar day without a zone. It is stored as UTC midnight so that
// day arithmetic never crosses a DST boundary.
type Date struct {
	t time.Time
}

// NewDate builds a Date from its parts. Out-of-range parts are normalized the
// same way time.Date normalizes them.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", s, err)
	}
	return Date{t: t}, nil
}

// LocalDate is the single conversion from an instant to a calendar date.
// All date bucketing goes through here so raw UTC instants are never compared
// against calendar boundaries.
func LocalDate(instant time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	l := instant.In(loc)
	return NewDate(l.Year(), l.Month(), l.Day())
}

func (d Date) IsZero() bool { return d.t.IsZero() }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// MarshalText renders the date as YYYY-MM-DD (empty for the zero date).
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText accepts YYYY-MM-DD or an empty string.
func (d *Date) UnmarshalText(b []byte) error {
	if len(strings.TrimSpace(string(b))) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Year() int              { return d.t.Year() }
func (d Date) Month() time.Month      { return d.t.Month() }
func (d Date) Day() int               { return d.t.Day() }
func (d Date) Weekday() time.Weekday  { return d.t.Weekday() }
func (d Date) AddDays(n int) Date     { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }
func (d Date) After(other Date) bool  { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool  { return d.t.Equal(other.t) }

// Compare returns -1, 0 or +1.
func (d Date) Compare(other Date) int { return d.t.Compare(other.t) }

// DaysUntil returns the signed number of calendar days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.t.Sub(d.t).Round(time.Hour).Hours() / 24)
}

// WeekStart returns the Monday on or before d.
func (d Date) WeekStart() Date {
	weekday := int(d.t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday -> 7
	}
	return d.AddDays(-(weekday - 1))
}

// In returns local midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.t.Year(), d.t.Month(), d.t.Day(), 0, 0, 0, 0, loc)
}

// MinDate returns the earlier of two dates.
func MinDate(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

// MaxDate returns the later of two dates.
func MaxDate(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

// WorkDays counts Monday-Friday days in [from, to], both inclusive.
func WorkDays(from, to Date) int {
	if to.Before(from) {
		return 0
	}
	total := from.DaysUntil(to) + 1
	days := (total / 7) * 5
	wd := from.Weekday()
	for i := 0; i < total%7; i++ {
		if wd != time.Saturday && wd != time.Sunday {
			days++
		}
		wd = (wd + 1) % 7
	}
	return days
}

// Window is an inclusive calendar-date range.
type Window struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// ParseWindow parses both bounds and rejects inverted ranges.
func ParseWindow(start, end string) (Window, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return Window{}, err
	}
	if e.Before(s) {
		return Window{}, fmt.Errorf("window end %s is before start %s", end, start)
	}
	return Window{Start: s, End: e}, nil
}

// Contains reports whether d lies within the window.
func (w Window) Contains(d Date) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// Days returns every date in the window in ascending order.
func (w Window) Days() []Date {
	if w.End.Before(w.Start) {
		return nil
	}
	days := make([]Date, 0, w.Start.DaysUntil(w.End)+1)
	for d := w.Start; !d.After(w.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

var offsetZone = regexp.MustCompile(`^(?:UTC|GMT)([+-])(\d{1,2})(?::?(\d{2}))?$`)

// LoadZone resolves an IANA zone name or a fixed offset such as "UTC+7" or
// "UTC-03:30". An empty name means UTC.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "UTC") || strings.EqualFold(name, "Z") {
		return time.UTC, nil
	}
	if m := offsetZone.FindStringSubmatch(strings.ToUpper(name)); m != nil {
		hours, _ := strconv.Atoi(m[2])
		minutes := 0
		if m[3] != "" {
			minutes, _ = strconv.Atoi(m[3])
		}
		if hours > 14 || minutes > 59 {
			return nil, fmt.Errorf("invalid UTC offset %q", name)
		}
		offset := hours*3600 + minutes*60
		if m[1] == "-" {
			offset = -offset
		}
		return time.FixedZone(name, offset), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %w", name, err)
	}
	return loc, nil
}
