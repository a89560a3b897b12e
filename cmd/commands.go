package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"emscal/internal/config"
	"emscal/internal/ems"
	"emscal/internal/google"
	"emscal/internal/icloud"
	"emscal/internal/ics"
	"emscal/internal/syncer"
)

var fileFlag = &cli.StringFlag{Name: "file", Usage: "Read the timetable page from a saved HTML file instead of the portal."}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token.",
		Action: func(c *cli.Context) error {
			logger := setupLogger("info")
			logger.Info("Starting Google authentication flow.")

			oauthConfig, err := google.GetOAuthConfigForAuthFlow(c.String("google-client-id"), c.String("google-client-secret"))
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			receiver, err := google.NewLoopbackReceiver(oauthConfig)
			if err != nil {
				return err
			}
			defer receiver.Close()

			fmt.Printf("Open the following link in your browser to authorize emscal:\n%v\n", receiver.AuthCodeURL(oauthConfig))
			logger.Info("Waiting for the authorization redirect.", "redirect", oauthConfig.RedirectURL)

			ctx, cancel := context.WithTimeout(c.Context, 5*time.Minute)
			defer cancel()
			authCode, err := receiver.Wait(ctx)
			if err != nil {
				return fmt.Errorf("no authorization code received: %w", err)
			}

			token, err := google.TokenFromWeb(ctx, oauthConfig, authCode, receiver.ExchangeOptions()...)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			reader := bufio.NewReader(os.Stdin)
			accountName := c.String("google-account")
			if accountName == "" {
				fmt.Print("Enter a name for this account (e.g., 'personal', 'school'): ")
				accountName, _ = reader.ReadString('\n')
				accountName = strings.TrimSpace(accountName)
			}
			if accountName == "" {
				accountName = "default"
			}
			tokenFile := google.TokenFile(accountName)

			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func calendarsCommand() *cli.Command {
	return &cli.Command{
		Name:  "calendars",
		Usage: "List the calendars of the authenticated Google account.",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)

			client, err := newGoogleClient(c, logger, cfg)
			if err != nil {
				return err
			}
			calendars, err := client.ListCalendars(c.Context)
			if err != nil {
				return err
			}

			ids := make([]string, 0, len(calendars))
			for id := range calendars {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Printf("%s\t%s\n", id, calendars[id])
			}
			return nil
		},
	}
}

func upcomingCommand() *cli.Command {
	return &cli.Command{
		Name:  "upcoming",
		Usage: "List the next 10 events of the target Google calendar.",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)

			client, err := newGoogleClient(c, logger, cfg)
			if err != nil {
				return err
			}
			events, err := client.GetUpcomingEvents(c.Context, cfg.CalendarID, 10)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println("No upcoming events found.")
				return nil
			}
			for _, ev := range events {
				fmt.Printf("%s  %s\n", ev.Start.Format("2006-01-02 15:04"), ev.Summary)
			}
			return nil
		},
	}
}

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:  "parse",
		Usage: "Print the events of the timetable without writing them anywhere.",
		Flags: []cli.Flag{fileFlag},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)

			batch, err := loadBatch(c, logger, cfg)
			if err != nil {
				return err
			}
			for _, ev := range batch.Events {
				fmt.Printf("%s - %s  %s  (%s)\n",
					ev.Start.Format("2006-01-02 15:04"), ev.End.Format("15:04"), ev.Summary, ev.Location)
			}
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write the events of the timetable to an iCalendar file.",
		Flags: []cli.Flag{
			fileFlag,
			&cli.StringFlag{Name: "out", Value: "timetable.ics", Usage: "Output .ics path."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)

			batch, err := loadBatch(c, logger, cfg)
			if err != nil {
				return err
			}

			out := c.String("out")
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			defer f.Close()

			if err := ics.Encode(f, batch.Events, time.Now()); err != nil {
				return fmt.Errorf("failed to write calendar: %w", err)
			}
			logger.Info("Exported events.", "file", out, "events", len(batch.Events))
			return f.Close()
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Write the events of the timetable to the configured calendar.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what would be synced without making changes."},
			&cli.StringFlag{Name: "schedule", Usage: "Cron spec; keep running and sync on it.", EnvVars: []string{"SYNC_SCHEDULE"}},
			&cli.StringFlag{Name: "sink", Usage: "google or icloud.", EnvVars: []string{"SINK"}},
			&cli.StringFlag{Name: "state-file", Usage: "JSON file recording the events already written.", EnvVars: []string{"STATE_FILE"}},
			&cli.DurationFlag{Name: "pace", Usage: "Minimum delay between two calendar writes.", EnvVars: []string{"SYNC_PACE"}},
			&cli.StringFlag{Name: "icloud-username", EnvVars: []string{"ICLOUD_USERNAME"}},
			&cli.StringFlag{Name: "icloud-password", EnvVars: []string{"ICLOUD_APP_SPECIFIC_PASSWORD"}},
			&cli.StringFlag{Name: "icloud-calendar", EnvVars: []string{"ICLOUD_CALENDAR_NAME"}},
			&cli.StringFlag{Name: "icloud-endpoint", EnvVars: []string{"ICLOUD_ENDPOINT"}},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := cfg.ValidateSink(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			dryRun := c.Bool("dry-run")
			if dryRun {
				logger.Info("Performing a dry run. No changes will be made.")
			}

			sink, err := newSink(c, logger, cfg, dryRun)
			if err != nil {
				return err
			}

			dispatcher, err := syncer.NewDispatcher(logger, sink, cfg.Target(), cfg.Pace, cfg.StateFile, dryRun)
			if err != nil {
				return fmt.Errorf("failed to create dispatcher: %w", err)
			}

			s, err := newSyncer(c, logger, cfg, dispatcher)
			if err != nil {
				return err
			}

			if cfg.Schedule != "" {
				return s.Schedule(c.Context, cfg.Schedule)
			}

			logger.Info("Running a single sync cycle.")
			report, err := s.Sync(c.Context)
			if err != nil {
				return fmt.Errorf("single sync cycle failed: %w", err)
			}
			fmt.Printf("courses=%d events=%d created=%d skipped=%d failed=%d invalid=%d\n",
				report.Courses, report.Events, report.Created, report.Skipped, report.Failed, report.Invalid)
			return nil
		},
	}
}

// newSyncer wires the page source and year policy of cfg. dispatcher may be
// nil for commands that only load the batch.
func newSyncer(c *cli.Context, logger *slog.Logger, cfg *config.Config, dispatcher *syncer.Dispatcher) (*syncer.Syncer, error) {
	years, err := cfg.YearPolicy(time.Now())
	if err != nil {
		return nil, err
	}

	var fetcher syncer.PageFetcher = ems.NewClient(logger, cfg.BaseURL, nil)
	if path := c.String("file"); path != "" {
		fetcher = fileFetcher(path)
	}
	return syncer.NewSyncer(logger, fetcher, dispatcher, cfg.StudentID, cfg.SemesterID, years), nil
}

func loadBatch(c *cli.Context, logger *slog.Logger, cfg *config.Config) (*syncer.Batch, error) {
	if c.String("file") == "" {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	s, err := newSyncer(c, logger, cfg, nil)
	if err != nil {
		return nil, err
	}
	return s.Load(c.Context)
}

func newSink(c *cli.Context, logger *slog.Logger, cfg *config.Config, dryRun bool) (syncer.Sink, error) {
	if dryRun {
		return nil, nil
	}
	switch cfg.Sink {
	case config.SinkICloud:
		client, err := icloud.NewClient(c.Context, logger, cfg.ICloud.Endpoint, cfg.ICloud.Username, cfg.ICloud.Password, cfg.ICloud.Calendar)
		if err != nil {
			return nil, fmt.Errorf("failed to create icloud client: %w", err)
		}
		return client, nil
	default:
		client, err := newGoogleClient(c, logger, cfg)
		if err != nil {
			return nil, err
		}
		return client.Sink(cfg.CalendarID), nil
	}
}

func newGoogleClient(c *cli.Context, logger *slog.Logger, cfg *config.Config) (*google.CalendarClient, error) {
	client, err := google.NewClient(c.Context, logger, c.String("google-client-id"), c.String("google-client-secret"), cfg.GoogleAccount)
	if err != nil {
		if accounts, _ := google.GetTokenAccounts("."); len(accounts) > 0 {
			return nil, fmt.Errorf("failed to create google client for account %s (saved accounts: %s): %w",
				cfg.GoogleAccount, strings.Join(accounts, ", "), err)
		}
		return nil, fmt.Errorf("failed to create google client for account %s: %w", cfg.GoogleAccount, err)
	}
	logger.Info("Initialized Google client.", "account", cfg.GoogleAccount)
	return client, nil
}

// fileFetcher serves a saved timetable page.
type fileFetcher string

func (f fileFetcher) FetchTimetablePage(ctx context.Context, studentID, semesterID string) (string, error) {
	b, err := os.ReadFile(string(f))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
