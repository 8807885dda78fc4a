package commands

import (
	"os"
	"teachassist-backend/internal/store"

	"github.com/spf13/cobra"
)

var (
	exportOut       string
	exportVolunteer bool
)

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "The csv file to write, stdout when empty.")
	exportCmd.Flags().BoolVar(&exportVolunteer, "volunteer", false, "Export volunteer hours instead of courses.")
	rootCmd.AddCommand(coursesCmd, exportCmd)
}

var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "Lists the cached courses.",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd.Context())
		defer a.Close()

		courses, err := a.store.Courses(cmd.Context())
		if err != nil {
			fatal("read courses", err)
		}
		printCourses(courses)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [--volunteer] [-o <out.csv>]",
	Short: "Exports the cached courses or the volunteer log as csv.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.Close()

		out := os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				fatal("create output", err)
			}
			defer f.Close()
			out = f
		}

		if exportVolunteer {
			entries, err := a.store.VolunteerEntries(ctx)
			if err != nil {
				fatal("read volunteer log", err)
			}
			err = store.ExportVolunteerEntries(out, entries)
			if err != nil {
				fatal("export volunteer log", err)
			}
			return
		}

		courses, err := a.store.Courses(ctx)
		if err != nil {
			fatal("read courses", err)
		}
		err = store.ExportCourses(out, courses)
		if err != nil {
			fatal("export courses", err)
		}
	},
}
