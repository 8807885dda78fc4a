package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	settingsCmd.Flags().Bool("notifications", true, "Deliver grade changes to the configured notifiers.")
	settingsCmd.Flags().Bool("notify-no-changes", false, "Send a confirmation when a check finds nothing.")
	rootCmd.AddCommand(settingsCmd)
}

var settingsCmd = &cobra.Command{
	Use:   "settings [--notifications=<bool>] [--notify-no-changes=<bool>]",
	Short: "Shows or changes the notification settings.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.Close()

		settings, err := a.store.Settings.Get(ctx)
		if err != nil {
			fatal("read settings", err)
		}

		flags := cmd.Flags()
		if flags.Changed("notifications") {
			settings.NotificationsEnabled, _ = flags.GetBool("notifications")
		}
		if flags.Changed("notify-no-changes") {
			settings.NotifyOnNoChanges, _ = flags.GetBool("notify-no-changes")
		}
		if flags.Changed("notifications") || flags.Changed("notify-no-changes") {
			err = a.store.Settings.Set(ctx, settings)
			if err != nil {
				fatal("save settings", err)
			}
		}

		t := newTable()
		t.AppendHeader(table.Row{"Setting", "Value"})
		t.AppendRow(table.Row{"notifications", settings.NotificationsEnabled})
		t.AppendRow(table.Row{"notify-no-changes", settings.NotifyOnNoChanges})
		t.Render()
	},
}
