package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"schedwidget/internal/config"
	"schedwidget/internal/host"
	"schedwidget/internal/instance"
	appLog "schedwidget/internal/log"
	"schedwidget/internal/refresh"
	"schedwidget/internal/schedule"
	"schedwidget/internal/widget"
)

var (
	configPath string
	debug      bool

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "schedwidget",
	Short: "Lesson schedule home-screen widget host",

	SilenceErrors: true,
	SilenceUsage:  true,

	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config %s: %w", configPath, err)
		}
		cfg = c

		level := appLog.ParseLevel(cfg.LogLevel)
		if debug {
			level = appLog.LevelDebug
		}
		appLog.SetLevel(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/schedwidget/config.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd, renderCmd, removeCmd, configureCmd)
}

func openStore(c *config.Config) (*instance.BoltStore, error) {
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	store, err := instance.OpenBolt(c.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open instance store %s: %w", c.DBPath(), err)
	}
	return store, nil
}

func newRepository(ctx context.Context, c *config.Config) *schedule.Repository {
	sources := make([]schedule.Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		if s.URL == "" {
			continue
		}
		sources = append(sources, schedule.Source{ID: s.ID, URL: s.URL, Group: s.Group})
	}
	return schedule.New(ctx, schedule.Options{
		Sources:      sources,
		CacheDir:     c.CacheDir(),
		Location:     c.Location(),
		DefaultGroup: c.DefaultGroup,
	})
}

func newOrchestrator(ctx context.Context, c *config.Config, store instance.Store, repo refresh.Repository, h *host.Memory) *refresh.Orchestrator {
	loc := c.Location()
	return refresh.New(ctx, refresh.Deps{
		Store: store,
		Repo:  repo,
		Policy: refresh.StaticPolicy{
			Enabled:    c.Notifications.Enabled,
			Permission: c.Notifications.Permission,
		},
		Host:          h,
		Labels:        widget.LabelsFor(c.Locale),
		Clock:         func() time.Time { return time.Now().In(loc) },
		FallbackAfter: c.FallbackAfter,
	})
}
