package commands

import (
	"teachassist-backend/internal/coursecache"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [course code]",
	Short: "Shows the daily mark history of the cached courses.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.Close()

		courses, err := a.store.Courses(ctx)
		if err != nil {
			fatal("read courses", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Course", "Day", "Mark"})
		for _, course := range courses {
			if len(args) > 0 && course.CourseCode != args[0] {
				continue
			}
			points, err := a.snapshot.GetSnapshots(ctx, coursecache.Key(course))
			if err != nil {
				fatal("read history", err)
			}
			for _, p := range points {
				t.AppendRow(table.Row{course.CourseCode, p.Day, p.Value})
			}
			t.AppendSeparator()
		}
		t.Render()
	},
}
