// Package timetable extracts course schedules from the EMS student timetable page.
package timetable

import (
	"strings"

	"emscal/internal/models"
)

// Page markers. The list view of the timetable sits between these two
// comments; the calendar view after it repeats the same data in a grid.
const (
	listStartMarker = "<!-- /.tab-pane - list -->"
	listEndMarker   = "<!-- /.tab-pane - calendar -->"
	bodyStartTag    = "<tbody>"
	bodyEndTag      = "</tbody>"
	rowStartTag     = "<tr>"
	rowEndTag       = "</tr>"
)

// Extract parses the raw timetable page into one CourseSchedule per table row,
// in page order. Any missing marker, line or delimiter fails the whole page
// with a *MalformedPageError.
func Extract(rawHTML string) ([]models.CourseSchedule, error) {
	rows, err := tableRows(rawHTML)
	if err != nil {
		return nil, err
	}

	schedules := make([]models.CourseSchedule, 0, len(rows))
	for i, row := range rows {
		s, err := parseRow(i+1, textLines(row))
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, nil
}

// tableRows isolates the list view's <tbody> and returns the inner markup of
// each of its rows.
func tableRows(rawHTML string) ([]string, error) {
	_, region, ok := strings.Cut(rawHTML, listStartMarker)
	if !ok {
		return nil, &MalformedPageError{Field: "page", Expected: listStartMarker}
	}
	region, _, ok = strings.Cut(region, listEndMarker)
	if !ok {
		return nil, &MalformedPageError{Field: "page", Expected: listEndMarker}
	}

	_, body, ok := strings.Cut(region, bodyStartTag)
	if !ok {
		return nil, &MalformedPageError{Field: "table", Expected: bodyStartTag}
	}
	body, _, ok = strings.Cut(body, bodyEndTag)
	if !ok {
		return nil, &MalformedPageError{Field: "table", Expected: bodyEndTag}
	}

	chunks := strings.Split(body, rowStartTag)
	rows := make([]string, 0, len(chunks))
	for _, chunk := range chunks[1:] {
		row, _, _ := strings.Cut(chunk, rowEndTag)
		if strings.TrimSpace(row) == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
