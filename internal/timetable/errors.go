package timetable

import (
	"errors"
	"fmt"
)

// ErrMalformedPage matches every *MalformedPageError via errors.Is.
var ErrMalformedPage = errors.New("malformed timetable page")

// MalformedPageError reports a marker, line, prefix or delimiter that the
// page layout requires but the page does not have.
type MalformedPageError struct {
	Row      int    // 1-based table row, 0 when the page itself is malformed
	Field    string // Field being extracted, or the page section
	Expected string // What was expected
	Line     string // The offending text line, if any
}

func (e *MalformedPageError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("%s: %s: missing %s", ErrMalformedPage, e.Field, e.Expected)
	}
	if e.Line == "" {
		return fmt.Sprintf("%s: row %d: %s: missing %s", ErrMalformedPage, e.Row, e.Field, e.Expected)
	}
	return fmt.Sprintf("%s: row %d: %s: expected %s in %q", ErrMalformedPage, e.Row, e.Field, e.Expected, e.Line)
}

func (e *MalformedPageError) Is(target error) bool {
	return target == ErrMalformedPage
}
