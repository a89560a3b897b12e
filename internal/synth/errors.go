package synth

import (
	"errors"
	"fmt"
)

// Expected grammars, reported back to the user alongside the bad value.
const (
	TimeGrammar = `"<H>g<MM> - <H>g<MM>"`
	DateGrammar = `"DD/MM"`
)

var (
	// ErrInvalidTime matches every *InvalidTimeFormatError via errors.Is.
	ErrInvalidTime = errors.New("invalid time format")
	// ErrInvalidDate matches every *InvalidDateFormatError via errors.Is.
	ErrInvalidDate = errors.New("invalid date format")
)

// InvalidTimeFormatError is reported once per course whose time range cannot
// be parsed. None of that course's meetings are synthesized.
type InvalidTimeFormatError struct {
	Course string
	Value  string
	Reason string
}

func (e *InvalidTimeFormatError) Error() string {
	return fmt.Sprintf("%s: course %q: time %q: %s (expected %s)", ErrInvalidTime, e.Course, e.Value, e.Reason, TimeGrammar)
}

func (e *InvalidTimeFormatError) Is(target error) bool {
	return target == ErrInvalidTime
}

// InvalidDateFormatError is reported for a single meeting date that cannot be
// parsed or does not exist in the resolved year. Only that meeting is skipped.
type InvalidDateFormatError struct {
	Course string
	Value  string
	Reason string
}

func (e *InvalidDateFormatError) Error() string {
	return fmt.Sprintf("%s: course %q: date %q: %s (expected %s)", ErrInvalidDate, e.Course, e.Value, e.Reason, DateGrammar)
}

func (e *InvalidDateFormatError) Is(target error) bool {
	return target == ErrInvalidDate
}
