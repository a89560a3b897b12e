// Package ics renders calendar events as iCalendar data.
package ics

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"emscal/internal/models"
)

// ProductID identifies emscal in generated calendars.
const ProductID = "-//emscal//EN"

// NewEvent converts an event to a VEVENT with one display alarm per reminder.
// stamp is written as DTSTAMP.
func NewEvent(event models.CalendarEvent, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, event.UID)
	ve.Props.SetText(ical.PropSummary, event.Summary)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, event.Start)
	ve.Props.SetDateTime(ical.PropDateTimeEnd, event.End)

	if event.Description != "" {
		ve.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		ve.Props.SetText(ical.PropLocation, event.Location)
	}

	for _, minutes := range event.Reminders {
		ve.Children = append(ve.Children, newAlarm(event.Summary, minutes))
	}
	return ve
}

func newAlarm(summary string, minutes int) *ical.Component {
	alarm := ical.NewComponent(ical.CompAlarm)

	setValue(alarm.Props, ical.PropAction, "DISPLAY")
	setValue(alarm.Props, ical.PropTrigger, Trigger(minutes))

	alarm.Props.SetText(ical.PropDescription, summary)
	return alarm
}

// Trigger formats a reminder as a relative TRIGGER value, e.g. "-PT15M".
func Trigger(minutes int) string {
	return fmt.Sprintf("-PT%dM", minutes)
}

// NewCalendar wraps events in a VCALENDAR, preceded by one VTIMEZONE per
// zone the events start in.
func NewCalendar(events []models.CalendarEvent, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	seen := make(map[string]bool)
	for _, ev := range events {
		loc := ev.Start.Location()
		if loc == time.UTC || seen[loc.String()] {
			continue
		}
		seen[loc.String()] = true
		_, offset := ev.Start.Zone()
		cal.Children = append(cal.Children, newTimezone(loc.String(), offset))
	}

	for _, ev := range events {
		cal.Children = append(cal.Children, NewEvent(ev, stamp))
	}
	return cal
}

// newTimezone describes tzid with a single standard offset. Zones without
// daylight saving time, such as Asia/Ho_Chi_Minh, need nothing more.
func newTimezone(tzid string, offset int) *ical.Component {
	tz := ical.NewComponent(ical.CompTimezone)
	setValue(tz.Props, ical.PropTimezoneID, tzid)

	std := ical.NewComponent(ical.CompTimezoneStandard)
	setValue(std.Props, ical.PropDateTimeStart, "19700101T000000")
	setValue(std.Props, ical.PropTimezoneOffsetFrom, UTCOffset(offset))
	setValue(std.Props, ical.PropTimezoneOffsetTo, UTCOffset(offset))

	tz.Children = append(tz.Children, std)
	return tz
}

func setValue(props ical.Props, name, value string) {
	prop := ical.NewProp(name)
	prop.Value = value
	props.Set(prop)
}

// UTCOffset formats an offset in seconds east of UTC as "+hhmm".
func UTCOffset(seconds int) string {
	sign := '+'
	if seconds < 0 {
		sign = '-'
		seconds = -seconds
	}
	return fmt.Sprintf("%c%02d%02d", sign, seconds/3600, seconds%3600/60)
}

// Encode writes events to w as a single iCalendar stream.
func Encode(w io.Writer, events []models.CalendarEvent, stamp time.Time) error {
	if err := ical.NewEncoder(w).Encode(NewCalendar(events, stamp)); err != nil {
		return fmt.Errorf("failed to encode events to iCal format: %w", err)
	}
	return nil
}
