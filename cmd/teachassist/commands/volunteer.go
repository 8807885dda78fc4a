package commands

import (
	"fmt"
	"strconv"
	"teachassist-backend/internal/store"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var volunteerEntry store.VolunteerEntry

func init() {
	flags := volunteerAddCmd.Flags()
	flags.StringVar(&volunteerEntry.Name, "name", "", "What was done.")
	flags.StringVar(&volunteerEntry.Organization, "org", "", "Who it was done for.")
	flags.Float64Var(&volunteerEntry.Hours, "hours", 0, "How many hours it took.")
	flags.StringVar(&volunteerEntry.Date, "date", "", "When it was done, YYYY-MM-DD.")
	flags.StringVar(&volunteerEntry.Description, "description", "", "Notes.")
	volunteerAddCmd.MarkFlagRequired("hours")

	volunteerCmd.AddCommand(volunteerAddCmd, volunteerListCmd, volunteerRemoveCmd)
	rootCmd.AddCommand(volunteerCmd)
}

var volunteerCmd = &cobra.Command{
	Use:   "volunteer",
	Short: "Keeps a log of community involvement hours.",
}

var volunteerAddCmd = &cobra.Command{
	Use:   "add --hours <hours> [--name <name>] [--org <org>] [--date <date>]",
	Short: "Logs volunteer hours.",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd.Context())
		defer a.Close()

		entry, err := a.store.AddVolunteerEntry(cmd.Context(), volunteerEntry)
		if err != nil {
			fatal("add volunteer entry", err)
		}
		fmt.Println(entry.Id)
	},
}

var volunteerListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists logged volunteer hours.",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd.Context())
		defer a.Close()

		entries, err := a.store.VolunteerEntries(cmd.Context())
		if err != nil {
			fatal("read volunteer log", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Id", "Date", "Name", "Organization", "Hours"})
		for _, e := range entries {
			t.AppendRow(table.Row{e.Id, e.Date, e.Name, e.Organization, e.Hours})
		}
		t.AppendFooter(table.Row{"", "", "", "Total", strconv.FormatFloat(store.TotalHours(entries), 'f', -1, 64)})
		t.Render()
	},
}

var volunteerRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Removes a logged entry.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd.Context())
		defer a.Close()

		removed, err := a.store.RemoveVolunteerEntry(cmd.Context(), args[0])
		if err != nil {
			fatal("remove volunteer entry", err)
		}
		if !removed {
			fatal("remove volunteer entry", fmt.Errorf("no entry %q", args[0]))
		}
	},
}
