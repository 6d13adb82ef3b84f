// Package recurrence models the recurring workout rules the dashboard
// exposes: daily, weekly on a set of weekdays, or monthly on one day of the
// month, every N units, ending after a count or at an end instant.
//
// Rules are built from raw UI input with Builder, stored as single-line
// text with Serialize/Parse, and turned into concrete dates with Expand.
// Everything here is pure; values are immutable and safe to share.
package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Frequency is the unit a rule repeats in.
type Frequency uint8

const (
	Daily Frequency = iota + 1
	Weekly
	Monthly
)

func (f Frequency) String() string {
	switch f {
	case Daily:
		return "DAILY"
	case Weekly:
		return "WEEKLY"
	case Monthly:
		return "MONTHLY"
	default:
		return "UNKNOWN"
	}
}

// Unit is the plural noun shown next to the interval ("every 2 weeks").
func (f Frequency) Unit() string {
	switch f {
	case Daily:
		return "days"
	case Weekly:
		return "weeks"
	default:
		return "months"
	}
}

// ParseFrequency accepts "daily", "weekly" or "monthly" in any case.
func ParseFrequency(s string) (Frequency, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DAILY":
		return Daily, true
	case "WEEKLY":
		return Weekly, true
	case "MONTHLY":
		return Monthly, true
	}
	return 0, false
}

func (f Frequency) rrule() rrule.Frequency {
	switch f {
	case Daily:
		return rrule.DAILY
	case Weekly:
		return rrule.WEEKLY
	default:
		return rrule.MONTHLY
	}
}

// Termination ends a series either after a number of occurrences or at an
// inclusive upper bound. Exactly one of the two is set.
type Termination struct {
	count int
	until time.Time
}

// AfterCount ends the series after n occurrences.
func AfterCount(n int) Termination { return Termination{count: n} }

// Until ends the series at t; an occurrence equal to t is included.
func Until(t time.Time) Termination { return Termination{until: t} }

func (t Termination) Count() (int, bool) { return t.count, t.count > 0 }

func (t Termination) Until() (time.Time, bool) { return t.until, t.count == 0 && !t.until.IsZero() }

func (t Termination) equal(o Termination) bool {
	return t.count == o.count && t.until.Equal(o.until)
}

// Options is the typed input to New. Weekdays is read only for Weekly and
// MonthDay only for Monthly.
type Options struct {
	Frequency Frequency
	Interval  int
	Weekdays  WeekdaySet
	MonthDay  int
	End       Termination
	Start     time.Time
}

// Spec is a validated recurrence rule. The zero value is not valid; build
// one with New, Builder.Build or Parse.
type Spec struct {
	freq     Frequency
	interval int
	weekdays WeekdaySet
	monthDay int
	end      Termination
	start    time.Time
}

// New validates opts and returns the Spec. Inputs that do not belong to
// the chosen frequency are dropped. Start and Until are truncated to whole
// seconds, the resolution of both the rule text and rrule expansion.
func New(opts Options) (Spec, error) {
	s := Spec{freq: opts.Frequency, interval: opts.Interval, start: opts.Start.Truncate(time.Second)}

	if opts.Interval < 1 {
		return Spec{}, invalid("interval", ErrInvalidInterval)
	}

	switch opts.Frequency {
	case Daily:
	case Weekly:
		if opts.Weekdays.Empty() {
			return Spec{}, invalid("weekdays", ErrEmptyWeekdaySet)
		}
		s.weekdays = opts.Weekdays & allWeekdays
	case Monthly:
		if opts.MonthDay < 1 || opts.MonthDay > 31 {
			return Spec{}, invalid("month_day", ErrInvalidMonthDay)
		}
		s.monthDay = opts.MonthDay
	default:
		return Spec{}, invalid("frequency", ErrInvalidFrequency)
	}

	if opts.Start.IsZero() {
		return Spec{}, invalid("start", ErrMissingStart)
	}

	if n, ok := opts.End.Count(); ok {
		s.end = AfterCount(n)
	} else if u, ok := opts.End.Until(); ok {
		u = u.Truncate(time.Second)
		if u.Before(s.start) {
			return Spec{}, invalid("end_date", ErrEndBeforeStart)
		}
		s.end = Until(u)
	} else {
		return Spec{}, invalid("count", ErrInvalidCount)
	}

	return s, nil
}

func (s Spec) Frequency() Frequency { return s.freq }

func (s Spec) Interval() int { return s.interval }

// Weekdays reports the weekday set of a Weekly rule.
func (s Spec) Weekdays() (WeekdaySet, bool) { return s.weekdays, s.freq == Weekly }

// MonthDay reports the day of month of a Monthly rule.
func (s Spec) MonthDay() (int, bool) { return s.monthDay, s.freq == Monthly }

func (s Spec) End() Termination { return s.end }

func (s Spec) Start() time.Time { return s.start }

// Valid reports whether s came out of New.
func (s Spec) Valid() bool { return s.freq != 0 && s.interval > 0 }

// Options returns the inputs that rebuild s.
func (s Spec) Options() Options {
	return Options{
		Frequency: s.freq,
		Interval:  s.interval,
		Weekdays:  s.weekdays,
		MonthDay:  s.monthDay,
		End:       s.end,
		Start:     s.start,
	}
}

// Equal compares rules by meaning: instants are compared with time.Equal,
// so the same moment in two zones is equal.
func (s Spec) Equal(o Spec) bool {
	return s.freq == o.freq &&
		s.interval == o.interval &&
		s.weekdays == o.weekdays &&
		s.monthDay == o.monthDay &&
		s.end.equal(o.end) &&
		s.start.Equal(o.start)
}

// Describe renders a short English summary, e.g.
// "Every 2 weeks on Monday, Wednesday, 10 times".
func (s Spec) Describe() string {
	var b strings.Builder
	if s.interval == 1 {
		b.WriteString("Every " + strings.TrimSuffix(s.freq.Unit(), "s"))
	} else {
		fmt.Fprintf(&b, "Every %d %s", s.interval, s.freq.Unit())
	}
	switch s.freq {
	case Weekly:
		days := s.weekdays.Days()
		names := make([]string, len(days))
		for i, d := range days {
			names[i] = d.String()
		}
		b.WriteString(" on " + strings.Join(names, ", "))
	case Monthly:
		fmt.Fprintf(&b, " on day %d", s.monthDay)
	}
	if n, ok := s.end.Count(); ok {
		if n == 1 {
			b.WriteString(", once")
		} else {
			fmt.Fprintf(&b, ", %d times", n)
		}
	} else if u, ok := s.end.Until(); ok {
		b.WriteString(", until " + u.In(s.start.Location()).Format("2006-01-02"))
	}
	return b.String()
}
