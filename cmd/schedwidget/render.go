package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"schedwidget/internal/host"
	"schedwidget/internal/instance"
	appLog "schedwidget/internal/log"
	"schedwidget/internal/termview"
)

var renderWait time.Duration

var renderCmd = &cobra.Command{
	Use:   "render <instance-id>",
	Short: "Refresh one widget instance and print it",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

func init() {
	renderCmd.Flags().DurationVar(&renderWait, "wait", 30*time.Second, "how long to wait for lesson data")
}

func runRender(cmd *cobra.Command, args []string) error {
	id, err := instance.ParseID(args[0])
	if err != nil {
		return fmt.Errorf("invalid instance id %q: %w", args[0], err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), renderWait)
	defer cancel()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	repo := newRepository(ctx, cfg)
	if err := repo.Reload(ctx); err != nil {
		appLog.Warn("timetable load incomplete", "reason", err)
	}

	h := host.NewMemory()
	orch := newOrchestrator(ctx, cfg, store, repo, h)
	orch.Refresh(id)

	snap, _, err := h.Wait(ctx, id, 0)
	if err != nil {
		return fmt.Errorf("instance %v was not rendered within %s: %w", id, renderWait, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), termview.Render(snap))
	return nil
}
