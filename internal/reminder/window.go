package reminder

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a local wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// ParseClock accepts HH:MM, HH:MM:SS and HH:MM:SS.ffffff. Fractional seconds
// are truncated.
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Clock{}, fmt.Errorf("parse clock %q: want HH:MM[:SS]", s)
	}

	var c Clock
	var err error
	if c.Hour, err = clockField(parts[0], 23); err != nil {
		return Clock{}, fmt.Errorf("parse clock %q: hour: %w", s, err)
	}
	if c.Minute, err = clockField(parts[1], 59); err != nil {
		return Clock{}, fmt.Errorf("parse clock %q: minute: %w", s, err)
	}
	if len(parts) == 3 {
		sec, _, _ := strings.Cut(parts[2], ".")
		if c.Second, err = clockField(sec, 59); err != nil {
			return Clock{}, fmt.Errorf("parse clock %q: second: %w", s, err)
		}
	}
	return c, nil
}

func clockField(s string, max int) (int, error) {
	if s == "" || len(s) > 2 {
		return 0, fmt.Errorf("invalid field %q", s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > max {
		return 0, fmt.Errorf("%d out of range 0-%d", n, max)
	}
	return n, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// Date is a calendar day without a zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate accepts YYYY-MM-DD, optionally followed by a time part as in an
// RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 && (s[10] == 'T' || s[10] == ' ') {
		s = s[:10]
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// AddDays returns the date n days later (earlier when n is negative).
func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC))
}

func (d Date) Before(other Date) bool {
	return d.String() < other.String()
}

func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC).Weekday()
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// EventInstant resolves a local wall time on a date to an absolute instant in UTC.
func EventInstant(d Date, c Clock, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, c.Second, 0, loc).UTC()
}

// Target is the instant a reminder with the given offset in minutes fires.
func Target(event time.Time, offsetMinutes int) time.Time {
	return event.Add(time.Duration(offsetMinutes) * time.Minute)
}

// Window is the half-open interval (Start, End] covered by one tick.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow returns (now-tick, now].
func NewWindow(now time.Time, tick time.Duration) Window {
	return Window{Start: now.Add(-tick), End: now}
}

func (w Window) Contains(t time.Time) bool {
	return t.After(w.Start) && !t.After(w.End)
}

// LeadOffset coerces a task or routine offset to "before the event".
func LeadOffset(v int) int {
	if v > 0 {
		return -v
	}
	return v
}
