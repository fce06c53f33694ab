package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"schedwidget/internal/instance"
)

var configureFlags struct {
	group   string
	day     string
	theme   string
	dynamic bool
}

var configureCmd = &cobra.Command{
	Use:   "configure <instance-id>",
	Short: "Save settings for a widget instance",
	Long: `Save settings for a widget instance, as the widget settings screen does.
Only flags that are given change; the instance is marked customized so that
its themed template is used from the next refresh on.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigure,
}

func init() {
	f := configureCmd.Flags()
	f.StringVar(&configureFlags.group, "group", "", `group label, or "last" for the application's saved group`)
	f.StringVar(&configureFlags.day, "day", "", `"today" or "tomorrow"`)
	f.StringVar(&configureFlags.theme, "theme", "", `"system", "day" or "night"`)
	f.BoolVar(&configureFlags.dynamic, "dynamic-colors", false, "use dynamic colors")
}

func runConfigure(cmd *cobra.Command, args []string) error {
	id, err := instance.ParseID(args[0])
	if err != nil {
		return fmt.Errorf("invalid instance id %q: %w", args[0], err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ic, err := store.Get(id)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("group") {
		ic.Group = configureFlags.group
	}
	if flags.Changed("day") {
		ic.Day = configureFlags.day
	}
	if flags.Changed("theme") {
		ic.Theme = configureFlags.theme
	}
	if flags.Changed("dynamic-colors") {
		ic.DynamicColor = configureFlags.dynamic
	}
	ic.Customized = true

	if err := store.Put(id, ic); err != nil {
		return err
	}
	saved, err := store.Get(id)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(saved)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "instance %v:\n%s", id, out)
	return nil
}
