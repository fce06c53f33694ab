package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"schedwidget/internal/instance"
	"schedwidget/internal/refresh"
)

var removeCmd = &cobra.Command{
	Use:   "remove <instance-id>...",
	Short: "Forget the settings of widget instances taken off the home screen",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRemove,
}

func runRemove(cmd *cobra.Command, args []string) error {
	ids := make([]instance.ID, 0, len(args))
	for _, a := range args {
		id, err := instance.ParseID(a)
		if err != nil {
			return fmt.Errorf("invalid instance id %q: %w", a, err)
		}
		ids = append(ids, id)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	refresh.New(cmd.Context(), refresh.Deps{Store: store}).Removed(ids...)
	return nil
}
