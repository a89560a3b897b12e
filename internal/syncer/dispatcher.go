package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"emscal/internal/models"
)

// DefaultPace is the minimum delay between two calendar writes.
const DefaultPace = 700 * time.Millisecond

// Sink is a calendar that events can be written to.
type Sink interface {
	InsertEvent(ctx context.Context, event models.CalendarEvent) (string, error)
}

// Report summarizes one dispatch or sync run.
type Report struct {
	Courses int // Courses found on the page
	Invalid int // Courses or meeting dates skipped as unparseable
	Events  int // Events handed to the dispatcher
	Created int // Events written to the sink
	Skipped int // Events already present in the state
	Failed  int // Events the sink rejected
}

// Dispatcher writes events to a Sink at a bounded rate, skipping events whose
// UID is already recorded in the state file for the same target.
type Dispatcher struct {
	mu        sync.Mutex
	logger    *slog.Logger
	sink      Sink
	target    string
	limiter   *rate.Limiter
	state     SyncState
	stateFile string
	dryRun    bool
}

// NewDispatcher creates a Dispatcher. target names the calendar behind sink;
// state entries of other targets are ignored. A pace of zero or less disables
// pacing.
func NewDispatcher(logger *slog.Logger, sink Sink, target string, pace time.Duration, stateFile string, dryRun bool) (*Dispatcher, error) {
	if stateFile == "" {
		stateFile = DefaultStateFile
	}
	state, err := loadState(stateFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync state: %w", err)
	}
	if len(state) == 0 {
		logger.Info("No sync state found, starting fresh.", "file", stateFile)
	}

	limit := rate.Inf
	if pace > 0 {
		limit = rate.Every(pace)
	}

	return &Dispatcher{
		logger:    logger,
		sink:      sink,
		target:    target,
		limiter:   rate.NewLimiter(limit, 1),
		state:     state,
		stateFile: stateFile,
		dryRun:    dryRun,
	}, nil
}

// Dispatch writes events in order. A failed write is logged and counted and
// the remaining events are still written. It stops early only when ctx is
// done, after saving the state of the writes that succeeded.
func (d *Dispatcher) Dispatch(ctx context.Context, events []models.CalendarEvent) (Report, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	report := Report{Events: len(events)}
	var runErr error

	for _, event := range events {
		key := stateKey(d.target, event.UID)
		if id, exists := d.state[key]; exists {
			d.logger.Debug("Event already synced, skipping.", "summary", event.Summary, "uid", event.UID, "id", id)
			report.Skipped++
			continue
		}

		if !event.End.After(event.Start) {
			d.logger.Warn("Event ends before it starts.", "summary", event.Summary, "start", event.Start, "end", event.End)
		}

		if d.dryRun {
			d.logger.Info("[DRY RUN] Would create event", "summary", event.Summary, "start", event.Start, "end", event.End)
			continue
		}

		if err := d.limiter.Wait(ctx); err != nil {
			runErr = fmt.Errorf("dispatch interrupted: %w", err)
			break
		}

		id, err := d.sink.InsertEvent(ctx, event)
		if err != nil {
			d.logger.Error("Failed to create event", "summary", event.Summary, "start", event.Start, "error", err)
			report.Failed++
			continue
		}
		d.state[key] = id
		report.Created++
	}

	if !d.dryRun && report.Created > 0 {
		if err := saveState(d.stateFile, d.state); err != nil {
			d.logger.Error("Failed to save sync state", "file", d.stateFile, "error", err)
		}
	}
	return report, runErr
}
