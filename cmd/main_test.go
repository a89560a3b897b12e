package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"emscal/internal/config"
	"emscal/internal/syncer"
)

// runLoadConfig parses args against the sync flags and returns the resulting
// configuration.
func runLoadConfig(t *testing.T, args ...string) *config.Config {
	t.Helper()
	var cfg *config.Config
	app := &cli.App{
		Flags: appFlags(),
		Commands: []*cli.Command{{
			Name:  "sync",
			Flags: syncCommand().Flags,
			Action: func(c *cli.Context) error {
				var err error
				cfg, err = loadConfig(c)
				return err
			},
		}},
	}
	require.NoError(t, app.Run(append([]string{"emscal"}, args...)))
	require.NotNil(t, cfg)
	return cfg
}

func TestLoadConfigPace(t *testing.T) {
	assert.Equal(t, syncer.DefaultPace, runLoadConfig(t, "sync").Pace)
	assert.Zero(t, runLoadConfig(t, "sync", "--pace", "0s").Pace)
	assert.Equal(t, 2*time.Second, runLoadConfig(t, "sync", "--pace", "2s").Pace)
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emscal.yaml")
	require.NoError(t, os.WriteFile(path, []byte("student_id: \"1\"\npace: 0s\nsink: icloud\n"), 0o600))

	cfg := runLoadConfig(t, "--config", path, "--student-id", "22004015", "sync", "--sink", "google")
	assert.Equal(t, "22004015", cfg.StudentID)
	assert.Equal(t, config.SinkGoogle, cfg.Sink)
	assert.Zero(t, cfg.Pace)
}
