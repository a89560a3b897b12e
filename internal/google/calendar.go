package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"emscal/internal/models"
)

const (
	credentialsFile = "credentials.json"
	// uidProperty is the private extended property holding the emscal UID.
	uidProperty = "emscalUID"
	// reminderMethod is the only reminder kind emscal creates.
	reminderMethod = "popup"
)

// CalendarClient provides a client for interacting with the Google Calendar API.
type CalendarClient struct {
	service *calendar.Service
	logger  *slog.Logger
}

// NewClient creates a new Google Calendar client.
// It handles loading credentials and setting up an authenticated HTTP client.
// The accountName selects the token file written by the auth command.
func NewClient(ctx context.Context, logger *slog.Logger, clientID, clientSecret, accountName string) (*CalendarClient, error) {
	config, err := getOAuthConfig(clientID, clientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	token, err := tokenFromFile(TokenFile(accountName))
	if err != nil {
		return nil, fmt.Errorf("could not load token for account %s: %w. Please run the 'auth' command first", accountName, err)
	}

	return NewClientWithOptions(ctx, logger, option.WithHTTPClient(config.Client(ctx, token)))
}

// NewClientWithOptions creates a client from explicit API client options.
func NewClientWithOptions(ctx context.Context, logger *slog.Logger, opts ...option.ClientOption) (*CalendarClient, error) {
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &CalendarClient{service: service, logger: logger}, nil
}

// InsertEvent creates the event in the given calendar and returns its Google id.
func (c *CalendarClient) InsertEvent(ctx context.Context, calendarID string, event models.CalendarEvent) (string, error) {
	created, err := c.service.Events.Insert(calendarID, toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to insert event: %w", err)
	}
	c.logger.Info("Event created.", "summary", created.Summary, "id", created.Id, "start", event.Start)
	return created.Id, nil
}

// GetUpcomingEvents fetches up to maxResults upcoming events from the specified calendar.
func (c *CalendarClient) GetUpcomingEvents(ctx context.Context, calendarID string, maxResults int64) ([]models.CalendarEvent, error) {
	c.logger.Debug("Fetching upcoming events", "calendarID", calendarID, "max", maxResults)

	events, err := c.service.Events.List(calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(time.Now().UTC().Format(time.RFC3339)).
		MaxResults(maxResults).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	c.logger.Info("Successfully fetched events from Google Calendar", "count", len(events.Items), "calendarID", calendarID)
	return toInternalEvents(events.Items), nil
}

// toGoogleEvent converts an event to the Calendar API representation.
func toGoogleEvent(event models.CalendarEvent) *calendar.Event {
	overrides := make([]*calendar.EventReminder, 0, len(event.Reminders))
	for _, m := range event.Reminders {
		overrides = append(overrides, &calendar.EventReminder{Method: reminderMethod, Minutes: int64(m)})
	}

	return &calendar.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Start: &calendar.EventDateTime{
			DateTime: event.Start.Format(time.RFC3339),
			TimeZone: event.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: event.End.Format(time.RFC3339),
			TimeZone: event.TimeZone,
		},
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides:  overrides,
			// UseDefault is dropped from the request body when false otherwise.
			ForceSendFields: []string{"UseDefault"},
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{uidProperty: event.UID},
		},
	}
}

// toInternalEvents converts Google Calendar events to the internal model.
func toInternalEvents(googleEvents []*calendar.Event) []models.CalendarEvent {
	var internalEvents []models.CalendarEvent
	for _, item := range googleEvents {
		// Skip all-day events.
		if item.Start == nil || item.Start.DateTime == "" || item.End == nil {
			continue
		}

		startTime, _ := time.Parse(time.RFC3339, item.Start.DateTime)
		endTime, _ := time.Parse(time.RFC3339, item.End.DateTime)

		uid := item.ICalUID
		if item.ExtendedProperties != nil && item.ExtendedProperties.Private[uidProperty] != "" {
			uid = item.ExtendedProperties.Private[uidProperty]
		}

		var reminders []int
		if item.Reminders != nil {
			for _, r := range item.Reminders.Overrides {
				reminders = append(reminders, int(r.Minutes))
			}
		}

		internalEvents = append(internalEvents, models.CalendarEvent{
			UID:         uid,
			Summary:     item.Summary,
			Description: item.Description,
			Location:    item.Location,
			Start:       startTime,
			End:         endTime,
			TimeZone:    item.Start.TimeZone,
			Reminders:   reminders,
		})
	}
	return internalEvents
}

// GetOAuthConfigForAuthFlow is used by the auth command to get the config for the web flow.
func GetOAuthConfigForAuthFlow(clientID, clientSecret string) (*oauth2.Config, error) {
	return getOAuthConfig(clientID, clientSecret)
}

// getOAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes environment variables over a local credentials.json file.
func getOAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{calendar.CalendarScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the working directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	return config, nil
}

// TokenFromWeb is called by the auth flow to retrieve a token.
func TokenFromWeb(ctx context.Context, config *oauth2.Config, authCode string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	return config.Exchange(ctx, authCode, opts...)
}

// TokenFile is the token path for an account.
func TokenFile(accountName string) string {
	return fmt.Sprintf("token-%s.json", accountName)
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// ListCalendars returns the id and name of every calendar of the account.
func (c *CalendarClient) ListCalendars(ctx context.Context) (map[string]string, error) {
	list, err := c.service.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	calendars := make(map[string]string, len(list.Items))
	for _, item := range list.Items {
		calendars[item.Id] = item.Summary
	}
	return calendars, nil
}

// GetTokenAccounts lists the accounts that have a token file in dir.
func GetTokenAccounts(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var accounts []string
	for _, file := range files {
		if strings.HasPrefix(file.Name(), "token-") && strings.HasSuffix(file.Name(), ".json") {
			accountName := strings.TrimSuffix(strings.TrimPrefix(file.Name(), "token-"), ".json")
			accounts = append(accounts, accountName)
		}
	}
	return accounts, nil
}

// CalendarSink inserts events into a single calendar.
type CalendarSink struct {
	client     *CalendarClient
	calendarID string
}

// Sink binds the client to calendarID.
func (c *CalendarClient) Sink(calendarID string) *CalendarSink {
	return &CalendarSink{client: c, calendarID: calendarID}
}

// InsertEvent creates the event in the bound calendar.
func (s *CalendarSink) InsertEvent(ctx context.Context, event models.CalendarEvent) (string, error) {
	return s.client.InsertEvent(ctx, s.calendarID, event)
}
