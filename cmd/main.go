package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"emscal/internal/config"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "emscal",
		Usage: "Turn an EMS student timetable into calendar events.",
		Flags: appFlags(),
		Commands: []*cli.Command{
			authCommand(),
			calendarsCommand(),
			upcomingCommand(),
			parseCommand(),
			exportCommand(),
			syncCommand(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

// appFlags are shared by every command.
func appFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "Path to a YAML config file.", EnvVars: []string{"EMSCAL_CONFIG"}},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error.", EnvVars: []string{"LOG_LEVEL"}},
		&cli.StringFlag{Name: "student-id", Usage: "Student id (masv).", EnvVars: []string{"STUDENT_ID"}},
		&cli.StringFlag{Name: "semester-id", Usage: "Semester id (hocky).", EnvVars: []string{"SEMESTER_ID"}},
		&cli.StringFlag{Name: "semester-start", Usage: "First day of the semester, YYYY-MM-DD.", EnvVars: []string{"SEMESTER_START"}},
		&cli.StringFlag{Name: "base-url", Usage: "EMS portal URL.", EnvVars: []string{"EMS_BASE_URL"}},
		&cli.StringFlag{Name: "calendar-id", Usage: "Target Google calendar id.", EnvVars: []string{"CALENDAR_ID"}},
		&cli.StringFlag{Name: "google-account", Usage: "Name of the saved Google token.", EnvVars: []string{"GOOGLE_ACCOUNT"}},
		&cli.StringFlag{Name: "google-client-id", EnvVars: []string{"GOOGLE_CLIENT_ID"}},
		&cli.StringFlag{Name: "google-client-secret", EnvVars: []string{"GOOGLE_CLIENT_SECRET"}},
	}
}

// loadConfig reads the config file and applies the flags that were set on
// the command line or through the environment.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		flag string
		dst  *string
	}{
		{"log-level", &cfg.LogLevel},
		{"student-id", &cfg.StudentID},
		{"semester-id", &cfg.SemesterID},
		{"semester-start", &cfg.SemesterStart},
		{"base-url", &cfg.BaseURL},
		{"calendar-id", &cfg.CalendarID},
		{"google-account", &cfg.GoogleAccount},
		{"sink", &cfg.Sink},
		{"state-file", &cfg.StateFile},
		{"schedule", &cfg.Schedule},
		{"icloud-username", &cfg.ICloud.Username},
		{"icloud-password", &cfg.ICloud.Password},
		{"icloud-calendar", &cfg.ICloud.Calendar},
		{"icloud-endpoint", &cfg.ICloud.Endpoint},
	}
	for _, o := range overrides {
		if c.IsSet(o.flag) {
			*o.dst = c.String(o.flag)
		}
	}
	if c.IsSet("pace") {
		cfg.Pace = c.Duration("pace")
	}

	cfg.Normalize()
	return cfg, nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
