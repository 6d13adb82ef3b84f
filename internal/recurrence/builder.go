package recurrence

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Field is raw text from a form input. JSON strings and bare JSON numbers
// both decode into it.
type Field string

func (f *Field) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = Field(s)
		return nil
	}
	*f = Field(b)
	return nil
}

func (f Field) text() string { return strings.TrimSpace(string(f)) }

// End modes accepted in Params.EndMode.
const (
	EndByCount = "count"
	EndByDate  = "until"
)

// Params is the state of the "add workout" dialog as the browser sends it:
// every input as typed, nothing validated yet.
type Params struct {
	Frequency string   `json:"frequency"`
	Interval  Field    `json:"interval"`
	Weekdays  []string `json:"weekdays,omitempty"`
	MonthDay  Field    `json:"month_day,omitempty"`
	EndMode   string   `json:"end_mode"`
	Count     Field    `json:"count,omitempty"`
	EndDate   string   `json:"end_date,omitempty"`
	Start     string   `json:"start"`
}

// Builder turns Params into a Spec. Date-only inputs are read as midnight in
// Location (UTC when nil). Builder never reads the clock.
type Builder struct {
	Location *time.Location
}

// Build validates p. Checks run in a fixed order (interval, frequency
// specific fields, start, termination) and the first failure is returned
// as a *ValidationError.
func (b Builder) Build(p Params) (Spec, error) {
	loc := b.Location
	if loc == nil {
		loc = time.UTC
	}

	interval, err := strconv.Atoi(p.Interval.text())
	if err != nil || interval < 1 {
		return Spec{}, invalid("interval", ErrInvalidInterval)
	}

	opts := Options{Interval: interval}

	freq, ok := ParseFrequency(p.Frequency)
	if !ok {
		return Spec{}, invalid("frequency", ErrInvalidFrequency)
	}
	opts.Frequency = freq

	switch freq {
	case Weekly:
		for _, name := range p.Weekdays {
			d, ok := ParseWeekday(name)
			if !ok {
				return Spec{}, invalid("weekdays", ErrInvalidWeekday)
			}
			opts.Weekdays = opts.Weekdays.Add(d)
		}
		if opts.Weekdays.Empty() {
			return Spec{}, invalid("weekdays", ErrEmptyWeekdaySet)
		}
	case Monthly:
		day, err := strconv.Atoi(p.MonthDay.text())
		if err != nil || day < 1 || day > 31 {
			return Spec{}, invalid("month_day", ErrInvalidMonthDay)
		}
		opts.MonthDay = day
	}

	start, ok := parseDate(p.Start, loc)
	if !ok {
		return Spec{}, invalid("start", ErrMissingStart)
	}
	opts.Start = start

	switch strings.ToLower(strings.TrimSpace(p.EndMode)) {
	case "", EndByCount, "occurrences":
		n, err := strconv.Atoi(p.Count.text())
		if err != nil || n < 1 {
			return Spec{}, invalid("count", ErrInvalidCount)
		}
		opts.End = AfterCount(n)
	case EndByDate, "end_date", "date":
		until, ok := parseDate(p.EndDate, loc)
		if !ok {
			return Spec{}, invalid("end_date", ErrInvalidEndDate)
		}
		if until.Before(start) {
			return Spec{}, invalid("end_date", ErrEndBeforeStart)
		}
		opts.End = Until(until)
	default:
		return Spec{}, invalid("end_mode", ErrInvalidEndDate)
	}

	return New(opts)
}

// ParseDate reads s the way Build reads its date inputs.
func (b Builder) ParseDate(s string) (time.Time, bool) {
	loc := b.Location
	if loc == nil {
		loc = time.UTC
	}
	return parseDate(s, loc)
}

// parseDate reads a date picker value ("2024-03-04"), a local date-time
// ("2024-03-04T07:30") or a full RFC 3339 instant, which is moved into loc.
// Fractions of a second are dropped.
func parseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", "2006-01-02T15:04", "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Truncate(time.Second).In(loc), true
	}
	return time.Time{}, false
}
