package syncer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emscal/internal/models"
	"emscal/internal/synth"
	"emscal/internal/timetable"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeFetcher struct {
	page string
	err  error
}

func (f *fakeFetcher) FetchTimetablePage(ctx context.Context, studentID, semesterID string) (string, error) {
	return f.page, f.err
}

type fakeSink struct {
	mu      sync.Mutex
	created []models.CalendarEvent
	failOn  string
}

func (s *fakeSink) InsertEvent(ctx context.Context, event models.CalendarEvent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != "" && strings.Contains(event.Summary, s.failOn) {
		return "", errors.New("backend error")
	}
	s.created = append(s.created, event)
	return "remote-" + event.UID, nil
}

func loadPage(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile("testdata/timetable.html")
	require.NoError(t, err)
	return string(b)
}

const testTarget = "google/default/primary"

func newTestSyncer(t *testing.T, fetcher PageFetcher, sink Sink, stateFile string, dryRun bool) *Syncer {
	t.Helper()
	return newTargetSyncer(t, fetcher, sink, testTarget, stateFile, dryRun)
}

func newTargetSyncer(t *testing.T, fetcher PageFetcher, sink Sink, target, stateFile string, dryRun bool) *Syncer {
	t.Helper()
	d, err := NewDispatcher(discardLogger(), sink, target, 0, stateFile, dryRun)
	require.NoError(t, err)
	return NewSyncer(discardLogger(), fetcher, d, "22004015", "35", synth.FixedYear(2024))
}

func TestBuildBatch(t *testing.T) {
	batch, err := BuildBatch(loadPage(t), synth.FixedYear(2024))
	require.NoError(t, err)

	assert.Len(t, batch.Schedules, 3)
	require.Len(t, batch.Events, 3)
	assert.Equal(t, "[B1] Lập trình Web", batch.Events[0].Summary)
	assert.Equal(t, "[B1] Lập trình Web", batch.Events[1].Summary)
	assert.Equal(t, "[C] Kế toán", batch.Events[2].Summary)

	require.Len(t, batch.Invalid, 2)
	assert.ErrorIs(t, batch.Invalid[0], synth.ErrInvalidTime)
	assert.ErrorIs(t, batch.Invalid[1], synth.ErrInvalidDate)
}

func TestBuildBatchMalformedPage(t *testing.T) {
	page := strings.Replace(loadPage(t), "<!-- /.tab-pane - calendar -->", "", 1)
	batch, err := BuildBatch(page, synth.FixedYear(2024))
	assert.Nil(t, batch)
	assert.ErrorIs(t, err, timetable.ErrMalformedPage)
}

func TestSync(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "state.json")
	sink := &fakeSink{}
	s := newTestSyncer(t, &fakeFetcher{page: loadPage(t)}, sink, stateFile, false)

	report, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Courses: 3, Invalid: 2, Events: 3, Created: 3}, report)
	assert.Len(t, sink.created, 3)

	state, err := loadState(stateFile)
	require.NoError(t, err)
	assert.Len(t, state, 3)
	for _, ev := range sink.created {
		assert.Equal(t, "remote-"+ev.UID, state[testTarget+"/"+ev.UID])
	}
}

func TestSyncSkipsAlreadySynced(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "state.json")
	fetcher := &fakeFetcher{page: loadPage(t)}

	first := &fakeSink{}
	_, err := newTestSyncer(t, fetcher, first, stateFile, false).Sync(context.Background())
	require.NoError(t, err)

	second := &fakeSink{}
	report, err := newTestSyncer(t, fetcher, second, stateFile, false).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Skipped)
	assert.Zero(t, report.Created)
	assert.Empty(t, second.created)
}

func TestSyncContinuesAfterSinkError(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "state.json")
	sink := &fakeSink{failOn: "Lập trình Web"}
	s := newTestSyncer(t, &fakeFetcher{page: loadPage(t)}, sink, stateFile, false)

	report, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 1, report.Created)
	require.Len(t, sink.created, 1)
	assert.Equal(t, "[C] Kế toán", sink.created[0].Summary)

	state, err := loadState(stateFile)
	require.NoError(t, err)
	assert.Len(t, state, 1)
}

func TestSyncDryRun(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "state.json")
	sink := &fakeSink{}
	s := newTestSyncer(t, &fakeFetcher{page: loadPage(t)}, sink, stateFile, true)

	report, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Created)
	assert.Empty(t, sink.created)

	_, err = os.Stat(stateFile)
	assert.True(t, os.IsNotExist(err))
}

func TestSyncFetchError(t *testing.T) {
	s := newTestSyncer(t, &fakeFetcher{err: errors.New("connection refused")}, &fakeSink{}, filepath.Join(t.TempDir(), "s.json"), false)

	_, err := s.Sync(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch timetable")
}

func TestDispatchCanceled(t *testing.T) {
	sink := &fakeSink{}
	d, err := NewDispatcher(discardLogger(), sink, testTarget, DefaultPace, filepath.Join(t.TempDir(), "s.json"), false)
	require.NoError(t, err)

	batch, err := BuildBatch(loadPage(t), synth.FixedYear(2024))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := d.Dispatch(ctx, batch.Events)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Created)
	assert.Empty(t, sink.created)
}

func TestNewDispatcherCorruptState(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(stateFile, []byte("{not json"), 0o644))

	_, err := NewDispatcher(discardLogger(), &fakeSink{}, testTarget, 0, stateFile, false)
	assert.Error(t, err)
}

func TestSyncNullState(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(stateFile, []byte("null"), 0o644))

	sink := &fakeSink{}
	report, err := newTestSyncer(t, &fakeFetcher{page: loadPage(t)}, sink, stateFile, false).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Created)

	state, err := loadState(stateFile)
	require.NoError(t, err)
	assert.Len(t, state, 3)
}

func TestSyncStateIsScopedByTarget(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "state.json")
	fetcher := &fakeFetcher{page: loadPage(t)}

	_, err := newTargetSyncer(t, fetcher, &fakeSink{}, "google/default/primary", stateFile, false).Sync(context.Background())
	require.NoError(t, err)

	other := &fakeSink{}
	report, err := newTargetSyncer(t, fetcher, other, "icloud/student@icloud.com/Lịch học", stateFile, false).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Created)
	assert.Zero(t, report.Skipped)
	assert.Len(t, other.created, 3)

	again := &fakeSink{}
	report, err = newTargetSyncer(t, fetcher, again, "google/default/primary", stateFile, false).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Skipped)
	assert.Empty(t, again.created)

	state, err := loadState(stateFile)
	require.NoError(t, err)
	assert.Len(t, state, 6)
}

func TestScheduleInvalidSpec(t *testing.T) {
	s := newTestSyncer(t, &fakeFetcher{}, &fakeSink{}, filepath.Join(t.TempDir(), "s.json"), true)
	err := s.Schedule(context.Background(), "every tuesday")
	assert.Error(t, err)
}

func TestScheduleStopsWithContext(t *testing.T) {
	s := newTestSyncer(t, &fakeFetcher{}, &fakeSink{}, filepath.Join(t.TempDir(), "s.json"), true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Schedule(ctx, "0 6 * * *"))
}
