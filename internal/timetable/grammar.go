package timetable

import (
	"strconv"
	"strings"

	"emscal/internal/models"
)

// Field names used in the row grammar and in MalformedPageError.
const (
	FieldCourseName = "courseName"
	FieldTeacher    = "teacher"
	FieldRoom       = "room"
	FieldTime       = "time"
	FieldDates      = "dates"
)

// fieldRule locates one field in the text lines of a row.
type fieldRule struct {
	Field  string
	Line   int    // index into the row's text lines
	Prefix string // the value starts after the first occurrence of Prefix
	Until  string // the value ends before the first Until after Prefix, if any
	// Required makes Until mandatory; otherwise the value runs to end of line.
	Required bool
	// Wrapped appends the following line, when present, as a continuation.
	Wrapped bool
}

// rowGrammar is the column layout of a timetable row:
//
//	0: STT
//	1: <code> - <course name> (<credits>)
//	2: GV: <teacher>
//	3: Phòng: <room> (<weekday>, <H>g<MM> - <H>g<MM>)
//	4: Tuần: ...
//	5: Ngày học: DD/MM, DD/MM, ...
//	6: (optional) continuation of the date list
var rowGrammar = []fieldRule{
	{Field: FieldCourseName, Line: 1, Prefix: "- ", Until: " ("},
	{Field: FieldTeacher, Line: 2, Prefix: "GV: "},
	{Field: FieldRoom, Line: 3, Prefix: "Phòng: ", Until: " (", Required: true},
	{Field: FieldTime, Line: 3, Prefix: "(", Until: ")", Required: true},
	{Field: FieldDates, Line: 5, Prefix: "Ngày học: ", Wrapped: true},
}

// weekdaySep separates the weekday label from the clock range inside the
// parentheses of the room line.
const weekdaySep = ","

// dateSep separates entries of the date list.
const dateSep = ","

func (r fieldRule) extract(row int, lines []string) (string, error) {
	if r.Line >= len(lines) {
		return "", &MalformedPageError{Row: row, Field: r.Field, Expected: "text line " + strconv.Itoa(r.Line)}
	}
	line := lines[r.Line]
	_, value, ok := strings.Cut(line, r.Prefix)
	if !ok {
		// A label printed with a blank value loses its trailing space when
		// the line is trimmed.
		label := strings.TrimRight(r.Prefix, " ")
		if label == r.Prefix || !strings.HasSuffix(line, label) {
			return "", &MalformedPageError{Row: row, Field: r.Field, Expected: strconv.Quote(r.Prefix), Line: line}
		}
		value = ""
	}
	if r.Wrapped && r.Line+1 < len(lines) {
		value += dateSep + lines[r.Line+1]
	}
	if r.Until != "" {
		head, _, found := strings.Cut(value, r.Until)
		if !found && r.Required {
			return "", &MalformedPageError{Row: row, Field: r.Field, Expected: strconv.Quote(r.Until), Line: lines[r.Line]}
		}
		value = head
	}
	return strings.TrimSpace(value), nil
}

// parseRow applies rowGrammar to the text lines of one table row.
func parseRow(row int, lines []string) (models.CourseSchedule, error) {
	values := make(map[string]string, len(rowGrammar))
	for _, rule := range rowGrammar {
		v, err := rule.extract(row, lines)
		if err != nil {
			return models.CourseSchedule{}, err
		}
		values[rule.Field] = v
	}

	if values[FieldCourseName] == "" {
		return models.CourseSchedule{}, &MalformedPageError{Row: row, Field: FieldCourseName, Expected: "course name", Line: lines[1]}
	}

	_, clock, ok := strings.Cut(values[FieldTime], weekdaySep)
	if !ok {
		return models.CourseSchedule{}, &MalformedPageError{Row: row, Field: FieldTime, Expected: strconv.Quote(weekdaySep), Line: lines[3]}
	}

	return models.CourseSchedule{
		CourseName: values[FieldCourseName],
		Teacher:    values[FieldTeacher],
		Room:       values[FieldRoom],
		Time:       strings.TrimSpace(clock),
		Dates:      splitDates(values[FieldDates]),
	}, nil
}

func splitDates(list string) []string {
	parts := strings.Split(list, dateSep)
	dates := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			dates = append(dates, p)
		}
	}
	return dates
}
