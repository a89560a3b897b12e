package syncer

import (
	"emscal/internal/models"
	"emscal/internal/synth"
	"emscal/internal/timetable"
)

// Batch is the outcome of turning one timetable page into events.
type Batch struct {
	Schedules []models.CourseSchedule
	Events    []models.CalendarEvent
	// Invalid holds one error per course or meeting date that was skipped.
	Invalid []error
}

// BuildBatch extracts the schedules of page and expands them into events.
// A malformed page fails the batch; invalid times and dates only skip the
// affected meetings and are listed in Batch.Invalid.
func BuildBatch(page string, years synth.YearPolicy) (*Batch, error) {
	schedules, err := timetable.Extract(page)
	if err != nil {
		return nil, err
	}

	events, err := synth.SynthesizeWith(schedules, years)
	return &Batch{
		Schedules: schedules,
		Events:    events,
		Invalid:   splitErrors(err),
	}, nil
}

// splitErrors flattens an errors.Join result.
func splitErrors(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
