package recurrence

import (
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Serialize renders s as a single-line rule in canonical field order:
//
//	FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE;COUNT=10
//	FREQ=MONTHLY;INTERVAL=1;BYMONTHDAY=31;UNTIL=2024-12-31T00:00:00+01:00
//
// UNTIL is an RFC 3339 timestamp in the zone of s.Start(). The start itself
// is not part of the text; it is stored next to the rule.
func Serialize(s Spec) string {
	parts := make([]string, 0, 4)
	parts = append(parts, "FREQ="+s.freq.String(), "INTERVAL="+strconv.Itoa(s.interval))
	switch s.freq {
	case Weekly:
		parts = append(parts, "BYDAY="+s.weekdays.String())
	case Monthly:
		parts = append(parts, "BYMONTHDAY="+strconv.Itoa(s.monthDay))
	}
	if n, ok := s.end.Count(); ok {
		parts = append(parts, "COUNT="+strconv.Itoa(n))
	} else if u, ok := s.end.Until(); ok {
		parts = append(parts, "UNTIL="+u.In(s.start.Location()).Format(time.RFC3339))
	}
	return strings.Join(parts, ";")
}

// Parse is the inverse of Serialize for a series beginning at start. Field
// order is free and unknown fields are skipped. It also takes what common
// rrule libraries emit: an "RRULE:" prefix, a DTSTART line (ignored, start
// wins) and RFC 5545 basic-format UNTIL values. Every failure is a
// *ParseError.
func Parse(text string, start time.Time) (Spec, error) {
	fail := func(reason string) (Spec, error) {
		return Spec{}, &ParseError{Rule: text, Reason: reason}
	}

	if start.IsZero() {
		return fail("no start instant")
	}

	line, err := ruleLine(text)
	if err != "" {
		return fail(err)
	}

	fields := make(map[string]string)
	for _, part := range strings.Split(line, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return fail("field without value: " + part)
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		if _, dup := fields[key]; dup {
			return fail("duplicate " + key)
		}
		fields[key] = strings.TrimSpace(value)
	}

	rawFreq, ok := fields["FREQ"]
	if !ok {
		return fail("FREQ is required")
	}
	freq, ok := ParseFrequency(rawFreq)
	if !ok {
		return fail("unsupported FREQ " + rawFreq)
	}
	opts := Options{Frequency: freq, Interval: 1, Start: start}

	if v, ok := fields["INTERVAL"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fail("bad INTERVAL " + v)
		}
		opts.Interval = n
	}

	if v, ok := fields["WKST"]; ok && !strings.EqualFold(v, "MO") {
		return fail("only WKST=MO is supported")
	}

	byDay, hasByDay := fields["BYDAY"]
	byMonthDay, hasByMonthDay := fields["BYMONTHDAY"]
	if hasByDay && freq != Weekly {
		return fail("BYDAY with FREQ=" + freq.String())
	}
	if hasByMonthDay && freq != Monthly {
		return fail("BYMONTHDAY with FREQ=" + freq.String())
	}

	switch freq {
	case Weekly:
		if !hasByDay {
			opts.Weekdays = NewWeekdaySet(WeekdayOf(start.Weekday()))
			break
		}
		for _, code := range strings.Split(byDay, ",") {
			code = strings.TrimSpace(code)
			if len(code) != 2 {
				return fail("unsupported BYDAY value " + code)
			}
			d, ok := ParseWeekday(code)
			if !ok {
				return fail("unknown BYDAY value " + code)
			}
			opts.Weekdays = opts.Weekdays.Add(d)
		}
	case Monthly:
		if !hasByMonthDay {
			opts.MonthDay = start.Day()
			break
		}
		n, err := strconv.Atoi(byMonthDay)
		if err != nil {
			return fail("unsupported BYMONTHDAY " + byMonthDay)
		}
		opts.MonthDay = n
	}

	rawCount, hasCount := fields["COUNT"]
	rawUntil, hasUntil := fields["UNTIL"]
	switch {
	case hasCount && hasUntil:
		return fail("COUNT and UNTIL are exclusive")
	case hasCount:
		n, err := strconv.Atoi(rawCount)
		if err != nil {
			return fail("bad COUNT " + rawCount)
		}
		opts.End = AfterCount(n)
	case hasUntil:
		u, ok := parseUntil(rawUntil, start.Location())
		if !ok {
			return fail("bad UNTIL " + rawUntil)
		}
		opts.End = Until(u)
	default:
		return fail("COUNT or UNTIL is required")
	}

	s, verr := New(opts)
	if verr != nil {
		return fail(verr.Error())
	}
	return s, nil
}

// ruleLine picks the RRULE body out of text, dropping a DTSTART line and
// the RRULE: prefix. It returns a non-empty reason on failure.
func ruleLine(text string) (string, string) {
	var rule string
	found := false
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		upper := strings.ToUpper(line)
		if strings.HasPrefix(upper, "DTSTART") {
			continue
		}
		if found {
			return "", "more than one rule line"
		}
		if strings.HasPrefix(upper, "RRULE:") {
			line = line[len("RRULE:"):]
		}
		rule, found = line, true
	}
	if !found {
		return "", "empty rule"
	}
	return rule, ""
}

func parseUntil(v string, loc *time.Location) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.In(loc), true
	}
	if t, err := time.Parse(rrule.DateTimeFormat, v); err == nil {
		return t.In(loc), true
	}
	for _, layout := range []string{rrule.LocalDateTimeFormat, rrule.DateFormat} {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
