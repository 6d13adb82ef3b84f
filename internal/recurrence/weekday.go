package recurrence

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Weekday is a day of the week ordered Monday first, the way RFC 5545
// orders BYDAY values.
type Weekday uint8

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

var weekdayCodes = [...]string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

var rruleWeekdays = [...]rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

func (d Weekday) valid() bool { return d <= Sunday }

// Name returns the lower-case English name ("monday").
func (d Weekday) Name() string {
	if !d.valid() {
		return ""
	}
	return weekdayNames[d]
}

// Code returns the two-letter RRULE code ("MO").
func (d Weekday) Code() string {
	if !d.valid() {
		return ""
	}
	return weekdayCodes[d]
}

func (d Weekday) String() string {
	n := d.Name()
	if n == "" {
		return "invalid"
	}
	return strings.ToUpper(n[:1]) + n[1:]
}

func (d Weekday) rrule() rrule.Weekday { return rruleWeekdays[d] }

// WeekdayOf converts a time.Weekday.
func WeekdayOf(d time.Weekday) Weekday {
	return Weekday((int(d) + 6) % 7)
}

// ParseWeekday accepts full names, three-letter abbreviations and
// two-letter RRULE codes, case-insensitively.
func ParseWeekday(s string) (Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 2 {
		return 0, false
	}
	for i, name := range weekdayNames {
		if s == name || s == name[:3] || s == name[:2] {
			return Weekday(i), true
		}
	}
	return 0, false
}

// WeekdaySet is a set of weekdays. The zero value is empty.
type WeekdaySet uint8

const allWeekdays WeekdaySet = 1<<7 - 1

// NewWeekdaySet builds a set; duplicates collapse.
func NewWeekdaySet(days ...Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.Add(d)
	}
	return s
}

func (s WeekdaySet) Add(d Weekday) WeekdaySet {
	if !d.valid() {
		return s
	}
	return s | 1<<d
}

func (s WeekdaySet) Has(d Weekday) bool {
	return d.valid() && s&(1<<d) != 0
}

func (s WeekdaySet) Empty() bool { return s&allWeekdays == 0 }

func (s WeekdaySet) Len() int {
	n := 0
	for d := Monday; d <= Sunday; d++ {
		if s.Has(d) {
			n++
		}
	}
	return n
}

// Days returns the members in Monday..Sunday order.
func (s WeekdaySet) Days() []Weekday {
	out := make([]Weekday, 0, 7)
	for d := Monday; d <= Sunday; d++ {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// String renders the set as comma-joined RRULE codes ("MO,WE").
func (s WeekdaySet) String() string {
	days := s.Days()
	codes := make([]string, len(days))
	for i, d := range days {
		codes[i] = d.Code()
	}
	return strings.Join(codes, ",")
}

func (s WeekdaySet) rrule() []rrule.Weekday {
	days := s.Days()
	out := make([]rrule.Weekday, len(days))
	for i, d := range days {
		out[i] = d.rrule()
	}
	return out
}
