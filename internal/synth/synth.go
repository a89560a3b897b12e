// Package synth expands course schedules into one calendar event per meeting.
package synth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"

	"emscal/internal/models"
)

// TimeZone is the zone every meeting is anchored to.
const TimeZone = "Asia/Ho_Chi_Minh"

// reminders are popup offsets in minutes before the start of a meeting.
var reminders = []int{12 * 60, 60, 30, 15, 5}

var location = loadLocation()

// uidNamespace scopes the name-based UUIDs of synthesized events.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://ems.vlute.edu.vn/vTKBSinhVien/ViewTKBSV"))

func loadLocation() *time.Location {
	loc, err := time.LoadLocation(TimeZone)
	if err != nil {
		// Vietnam has been on UTC+7 without DST since 1975.
		return time.FixedZone(TimeZone, 7*60*60)
	}
	return loc
}

// Reminders returns the fixed reminder policy, in minutes before start.
func Reminders() []int {
	return append([]int(nil), reminders...)
}

// YearPolicy resolves the calendar year of a "DD/MM" meeting date.
type YearPolicy func(month time.Month) int

// FixedYear places every meeting in year.
func FixedYear(year int) YearPolicy {
	return func(time.Month) int { return year }
}

// SemesterYear places months from start's month onwards in start's year and
// earlier months in the following year, so a semester running from September
// to January gets its January meetings in the next year.
func SemesterYear(start time.Time) YearPolicy {
	return func(month time.Month) int {
		if month < start.Month() {
			return start.Year() + 1
		}
		return start.Year()
	}
}

// Synthesize expands schedules into events with every date in year.
func Synthesize(schedules []models.CourseSchedule, year int) ([]models.CalendarEvent, error) {
	return SynthesizeWith(schedules, FixedYear(year))
}

// SynthesizeWith expands schedules into one event per meeting date, ordered by
// course then by date within the course. Meetings that cannot be built are
// skipped; the returned error joins one *InvalidTimeFormatError or
// *InvalidDateFormatError per skipped course or date, and the events that
// could be built are returned alongside it.
func SynthesizeWith(schedules []models.CourseSchedule, years YearPolicy) ([]models.CalendarEvent, error) {
	total := 0
	for _, s := range schedules {
		total += len(s.Dates)
	}
	events := make([]models.CalendarEvent, 0, total)

	var errs []error
	for _, s := range schedules {
		start, end, err := parseTimeRange(s.Time)
		if err != nil {
			errs = append(errs, &InvalidTimeFormatError{Course: s.CourseName, Value: s.Time, Reason: err.Error()})
			continue
		}

		for _, d := range s.Dates {
			date, err := parseDate(d, years)
			if err != nil {
				errs = append(errs, &InvalidDateFormatError{Course: s.CourseName, Value: d, Reason: err.Error()})
				continue
			}
			events = append(events, newEvent(s, date, start, end))
		}
	}
	return events, errors.Join(errs...)
}

// BuildingCode returns the part of a room label before its first '-'.
func BuildingCode(room string) string {
	building, _, _ := strings.Cut(room, "-")
	return strings.TrimSpace(building)
}

func newEvent(s models.CourseSchedule, date time.Time, start, end clock) models.CalendarEvent {
	return models.CalendarEvent{
		UID:         eventUID(s, date),
		Summary:     fmt.Sprintf("[%s] %s", BuildingCode(s.Room), s.CourseName),
		Description: fmt.Sprintf("Giáo viên: %s;\nPhòng: %s;", s.Teacher, s.Room),
		Location:    fmt.Sprintf("Phòng: %s", s.Room),
		Start:       start.on(date),
		End:         end.on(date),
		TimeZone:    TimeZone,
		Reminders:   Reminders(),
	}
}

func eventUID(s models.CourseSchedule, date time.Time) string {
	name := strings.Join([]string{s.CourseName, s.Room, s.Time, date.Format(time.DateOnly)}, "\x1f")
	return uuid.NewSHA1(uidNamespace, []byte(name)).String()
}

// clock is a wall-clock time of day.
type clock struct {
	hour, minute int
}

func (c clock) on(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.hour, c.minute, 0, 0, location)
}

// parseTimeRange parses "<H>g<MM> - <H>g<MM>". An end before the start is
// returned as is.
func parseTimeRange(s string) (clock, clock, error) {
	parts := strings.Split(s, " - ")
	if len(parts) != 2 {
		return clock{}, clock{}, errors.New(`want two clock values separated by " - "`)
	}
	start, err := parseClock(parts[0])
	if err != nil {
		return clock{}, clock{}, fmt.Errorf("start %q: %w", parts[0], err)
	}
	end, err := parseClock(parts[1])
	if err != nil {
		return clock{}, clock{}, fmt.Errorf("end %q: %w", parts[1], err)
	}
	return start, end, nil
}

func parseClock(s string) (clock, error) {
	h, m, ok := strings.Cut(s, "g")
	if !ok {
		return clock{}, errors.New(`missing "g" between hour and minute`)
	}
	hour, err := parseNumber(h, 0, 23)
	if err != nil {
		return clock{}, fmt.Errorf("hour: %w", err)
	}
	minute, err := parseNumber(m, 0, 59)
	if err != nil {
		return clock{}, fmt.Errorf("minute: %w", err)
	}
	return clock{hour: hour, minute: minute}, nil
}

// parseDate parses "DD/MM" and resolves its year with years. The day must
// exist in that month and year.
func parseDate(s string, years YearPolicy) (time.Time, error) {
	d, m, ok := strings.Cut(s, "/")
	if !ok {
		return time.Time{}, errors.New(`missing "/" between day and month`)
	}
	month, err := parseNumber(m, 1, 12)
	if err != nil {
		return time.Time{}, fmt.Errorf("month: %w", err)
	}
	day, err := parseNumber(d, 1, 31)
	if err != nil {
		return time.Time{}, fmt.Errorf("day: %w", err)
	}

	year := years(time.Month(month))
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, location)
	if date.Day() != day || date.Month() != time.Month(month) {
		return time.Time{}, fmt.Errorf("day %d does not exist in %s %d", day, time.Month(month), year)
	}
	return date, nil
}

// parseNumber parses one or two ASCII digits within [lo, hi].
func parseNumber(s string, lo, hi int) (int, error) {
	if len(s) == 0 || len(s) > 2 {
		return 0, fmt.Errorf("%q is not a 1-2 digit number", s)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%q is not a 1-2 digit number", s)
		}
	}
	n, _ := strconv.Atoi(s)
	if n < lo || n > hi {
		return 0, fmt.Errorf("%d is out of range %d-%d", n, lo, hi)
	}
	return n, nil
}
