package recurrence

import (
	"time"

	"github.com/teambition/rrule-go"
)

// rruleOptions maps s onto rrule-go. Weeks start on Monday, so week zero of
// a weekly rule is the ISO week holding the start date.
func (s Spec) rruleOptions() rrule.ROption {
	opt := rrule.ROption{
		Freq:     s.freq.rrule(),
		Dtstart:  s.start,
		Interval: s.interval,
		Wkst:     rrule.MO,
	}
	switch s.freq {
	case Weekly:
		opt.Byweekday = s.weekdays.rrule()
	case Monthly:
		opt.Bymonthday = []int{s.monthDay}
	}
	if n, ok := s.end.Count(); ok {
		opt.Count = n
	} else if u, ok := s.end.Until(); ok {
		opt.Until = u
	}
	return opt
}

func (s Spec) rrule() (*rrule.RRule, bool) {
	if !s.Valid() {
		return nil, false
	}
	r, err := rrule.NewRRule(s.rruleOptions())
	if err != nil {
		return nil, false
	}
	return r, true
}

// RFC5545 renders the rule body in RFC 5545 form, with UNTIL in UTC basic
// format, for calendar clients (iCalendar RRULE property).
func (s Spec) RFC5545() string {
	opt := s.rruleOptions()
	opt.Dtstart = time.Time{}
	return opt.RRuleString()
}

// Expand returns the occurrences of s that fall in [from, to], oldest
// first. COUNT is applied to the whole series before the window is cut, so
// a window in the middle of a series sees the same dates as a full
// expansion would. A zero from means the series start; a zero to means no
// upper bound.
//
// A monthly rule on a day the month does not have (31 in April) yields
// nothing for that month.
func Expand(s Spec, from, to time.Time) []time.Time {
	r, ok := s.rrule()
	if !ok {
		return nil
	}
	if from.IsZero() || from.Before(s.start) {
		from = s.start
	}
	if to.IsZero() {
		out := make([]time.Time, 0)
		for _, t := range r.All() {
			if !t.Before(from) {
				out = append(out, t)
			}
		}
		return out
	}
	if to.Before(from) {
		return []time.Time{}
	}
	return r.Between(from, to, true)
}

// All returns every occurrence of s. Rules always terminate, so this is
// finite.
func All(s Spec) []time.Time {
	return Expand(s, time.Time{}, time.Time{})
}

// First returns up to n leading occurrences, for previews.
func First(s Spec, n int) []time.Time {
	r, ok := s.rrule()
	if !ok || n <= 0 {
		return []time.Time{}
	}
	out := make([]time.Time, 0, n)
	next := r.Iterator()
	for len(out) < n {
		t, ok := next()
		if !ok {
			break
		}
		out = append(out, t)
	}
	return out
}

// Last returns the final occurrence, or false when the series is empty.
func Last(s Spec) (time.Time, bool) {
	all := All(s)
	if len(all) == 0 {
		return time.Time{}, false
	}
	return all[len(all)-1], true
}
