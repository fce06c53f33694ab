package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"schedwidget/internal/host"
	appLog "schedwidget/internal/log"
	"schedwidget/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP widget host and the periodic refresh scheduler",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"refresh", cfg.RefreshCron,
		"locale", cfg.Locale,
		"sources", len(cfg.Sources),
		"fallback_after", cfg.FallbackAfter,
	)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	repo := newRepository(ctx, cfg)
	if err := repo.Reload(ctx); err != nil {
		appLog.Warn("initial timetable load incomplete", "reason", err)
	}

	h := host.NewMemory()
	orch := newOrchestrator(ctx, cfg, store, repo, h)

	sched, err := host.NewScheduler(cfg.RefreshCron, cfg.Location(), orch, store, h)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	srv := web.NewServer(cfg, store, h, orch)

	// Show every instance that already has settings right away.
	sched.RefreshAll()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return sched.Run(gctx) })

	err = g.Wait()
	appLog.Info("schedwidget exiting", "pending_refreshes", orch.Pending())
	return err
}
