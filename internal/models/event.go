package models

import "time"

// CourseSchedule is one row of the student timetable page.
type CourseSchedule struct {
	CourseName string   // Course title as printed on the page
	Teacher    string   // Instructor name
	Room       string   // Raw room label, e.g. "B1-101 (Lầu 1)"
	Time       string   // Time range, e.g. "7g00 - 9g30"
	Dates      []string // Meeting dates as "DD/MM", in page order
}

// CalendarEvent is a single meeting of a course, ready to be written to a calendar.
// It is independent of any specific calendar provider.
type CalendarEvent struct {
	UID         string    // Deterministic identifier, stable across runs
	Summary     string    // "[<building>] <course>"
	Description string    // Teacher and room
	Location    string    // Room
	Start       time.Time // Start of the meeting, in TimeZone
	End         time.Time // End of the meeting, in TimeZone
	TimeZone    string    // IANA zone name attached to Start and End
	Reminders   []int     // Popup reminders, minutes before Start
}
