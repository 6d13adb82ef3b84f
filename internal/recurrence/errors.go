package recurrence

import (
	"errors"
	"fmt"
)

// Validation failures. Each is returned wrapped in a *ValidationError that
// names the offending input field.
var (
	ErrInvalidInterval  = errors.New("interval must be a positive integer")
	ErrEmptyWeekdaySet  = errors.New("weekly rule needs at least one weekday")
	ErrInvalidMonthDay  = errors.New("month day must be between 1 and 31")
	ErrInvalidCount     = errors.New("occurrence count must be at least 1")
	ErrEndBeforeStart   = errors.New("end date is before start date")
	ErrMissingStart     = errors.New("start date is missing or not a date")
	ErrInvalidFrequency = errors.New("frequency must be daily, weekly or monthly")
	ErrInvalidWeekday   = errors.New("unknown weekday")
	ErrInvalidEndDate   = errors.New("end date is missing or not a date")
	ErrStartMismatch    = errors.New("start does not match the rule's start")
)

// ErrMalformedRule is the root of every rule-text parse failure.
var ErrMalformedRule = errors.New("malformed recurrence rule")

// ValidationError is a caller-correctable input problem tied to one field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// ParseError reports stored rule text that cannot be turned back into a Spec.
type ParseError struct {
	Rule   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v %q: %s", ErrMalformedRule, e.Rule, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrMalformedRule }
