package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"emscal/internal/synth"
)

// PageFetcher retrieves the raw timetable page of a student.
type PageFetcher interface {
	FetchTimetablePage(ctx context.Context, studentID, semesterID string) (string, error)
}

// Syncer orchestrates one run: fetch the page, build events, dispatch them.
type Syncer struct {
	logger     *slog.Logger
	fetcher    PageFetcher
	dispatcher *Dispatcher
	studentID  string
	semesterID string
	years      synth.YearPolicy
}

// NewSyncer creates a new Syncer.
func NewSyncer(logger *slog.Logger, fetcher PageFetcher, dispatcher *Dispatcher, studentID, semesterID string, years synth.YearPolicy) *Syncer {
	return &Syncer{
		logger:     logger,
		fetcher:    fetcher,
		dispatcher: dispatcher,
		studentID:  studentID,
		semesterID: semesterID,
		years:      years,
	}
}

// Load fetches the timetable page and builds its events. Skipped courses and
// dates are logged with the offending value.
func (s *Syncer) Load(ctx context.Context) (*Batch, error) {
	page, err := s.fetcher.FetchTimetablePage(ctx, s.studentID, s.semesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch timetable: %w", err)
	}

	batch, err := BuildBatch(page, s.years)
	if err != nil {
		return nil, fmt.Errorf("failed to extract timetable: %w", err)
	}

	for _, invalid := range batch.Invalid {
		s.logger.Warn("Skipping invalid schedule entry", "error", invalid)
	}
	s.logger.Info("Built events from timetable.", "courses", len(batch.Schedules), "events", len(batch.Events), "skipped", len(batch.Invalid))
	return batch, nil
}

// Sync performs a full synchronization cycle.
func (s *Syncer) Sync(ctx context.Context) (Report, error) {
	s.logger.Info("Starting sync cycle.", "studentID", s.studentID, "semesterID", s.semesterID)

	batch, err := s.Load(ctx)
	if err != nil {
		return Report{}, err
	}

	report, err := s.dispatcher.Dispatch(ctx, batch.Events)
	report.Courses = len(batch.Schedules)
	report.Invalid = len(batch.Invalid)
	if err != nil {
		return report, err
	}

	s.logger.Info("Sync cycle finished.",
		"created", report.Created,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"invalid", report.Invalid,
	)
	return report, nil
}

// Schedule runs Sync on the given cron spec until ctx is done. Runs that are
// still in progress when the next one is due are not overlapped.
func (s *Syncer) Schedule(ctx context.Context, spec string, opts ...cron.Option) error {
	opts = append(opts, cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c := cron.New(opts...)
	if _, err := c.AddFunc(spec, func() {
		if _, err := s.Sync(ctx); err != nil {
			s.logger.Error("Sync cycle failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	s.logger.Info("Starting scheduler.", "schedule", spec)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("Scheduler stopped.")
	return nil
}
