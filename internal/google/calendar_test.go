package google

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"emscal/internal/models"
)

func sampleEvent(t *testing.T) models.CalendarEvent {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	require.NoError(t, err)
	return models.CalendarEvent{
		UID:         "uid-1",
		Summary:     "[B1] Lập trình Web",
		Description: "Giáo viên: Nguyễn Văn An;\nPhòng: B1-101;",
		Location:    "Phòng: B1-101",
		Start:       time.Date(2024, time.September, 5, 7, 0, 0, 0, loc),
		End:         time.Date(2024, time.September, 5, 9, 30, 0, 0, loc),
		TimeZone:    "Asia/Ho_Chi_Minh",
		Reminders:   []int{720, 60, 30, 15, 5},
	}
}

func testClient(t *testing.T, handler http.Handler) *CalendarClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClientWithOptions(context.Background(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		option.WithEndpoint(srv.URL+"/calendar/v3/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return c
}

func TestToGoogleEvent(t *testing.T) {
	gev := toGoogleEvent(sampleEvent(t))

	assert.Equal(t, "[B1] Lập trình Web", gev.Summary)
	assert.Equal(t, "Phòng: B1-101", gev.Location)
	assert.Equal(t, "2024-09-05T07:00:00+07:00", gev.Start.DateTime)
	assert.Equal(t, "Asia/Ho_Chi_Minh", gev.Start.TimeZone)
	assert.Equal(t, "2024-09-05T09:30:00+07:00", gev.End.DateTime)
	assert.Equal(t, "uid-1", gev.ExtendedProperties.Private[uidProperty])

	require.Len(t, gev.Reminders.Overrides, 5)
	for i, m := range []int64{720, 60, 30, 15, 5} {
		assert.Equal(t, "popup", gev.Reminders.Overrides[i].Method)
		assert.Equal(t, m, gev.Reminders.Overrides[i].Minutes)
	}

	body, err := json.Marshal(gev.Reminders)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"useDefault":false`)
}

func TestInsertEvent(t *testing.T) {
	var got map[string]any
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/calendar/v3/calendars/cal@group.calendar.google.com/events", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"evt123","summary":"[B1] Lập trình Web"}`)
	}))

	id, err := c.Sink("cal@group.calendar.google.com").InsertEvent(context.Background(), sampleEvent(t))
	require.NoError(t, err)
	assert.Equal(t, "evt123", id)

	reminders, ok := got["reminders"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, reminders["useDefault"])
	assert.Len(t, reminders["overrides"], 5)
	start := got["start"].(map[string]any)
	assert.Equal(t, "Asia/Ho_Chi_Minh", start["timeZone"])
}

func TestInsertEventError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"code":403,"message":"rate limit exceeded"}}`)
	}))

	_, err := c.InsertEvent(context.Background(), "primary", sampleEvent(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert event")
}

func TestToInternalEvents(t *testing.T) {
	items := []*calendar.Event{
		{
			Summary: "[B1] Lập trình Web",
			Start:   &calendar.EventDateTime{DateTime: "2024-09-05T07:00:00+07:00", TimeZone: "Asia/Ho_Chi_Minh"},
			End:     &calendar.EventDateTime{DateTime: "2024-09-05T09:30:00+07:00"},
			ExtendedProperties: &calendar.EventExtendedProperties{
				Private: map[string]string{uidProperty: "uid-1"},
			},
			Reminders: &calendar.EventReminders{Overrides: []*calendar.EventReminder{{Method: "popup", Minutes: 15}}},
		},
		{Summary: "all day", Start: &calendar.EventDateTime{Date: "2024-09-05"}},
	}

	events := toInternalEvents(items)
	require.Len(t, events, 1)
	assert.Equal(t, "uid-1", events[0].UID)
	assert.Equal(t, []int{15}, events[0].Reminders)
	assert.Equal(t, 30*time.Minute+2*time.Hour, events[0].End.Sub(events[0].Start))
}

func TestTokenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, TokenFile("personal"))

	tok := &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}
	require.NoError(t, SaveToken(path, tok))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := tokenFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "r", loaded.RefreshToken)

	accounts, err := GetTokenAccounts(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"personal"}, accounts)
}

func TestGetOAuthConfigFromEnv(t *testing.T) {
	cfg, err := GetOAuthConfigForAuthFlow("id", "secret")
	require.NoError(t, err)
	assert.Equal(t, []string{calendar.CalendarScope}, cfg.Scopes)
}

func TestGetOAuthConfigHasNoOutOfBandRedirect(t *testing.T) {
	cfg, err := GetOAuthConfigForAuthFlow("id", "secret")
	require.NoError(t, err)
	assert.Empty(t, cfg.RedirectURL)
}
