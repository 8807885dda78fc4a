package commands

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"teachassist-backend/internal/changes"
	"teachassist-backend/internal/scrapers/teachassist"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	parseJson bool
	parseBase string
)

func init() {
	parseCmd.PersistentFlags().BoolVar(&parseJson, "json", false, "Print the parse result as json.")
	parseAppointmentsCmd.Flags().StringVar(&parseBase, "base", "", "The url the page was fetched from, used to resolve slot links.")

	parseCmd.AddCommand(parseCoursesCmd, parseReportCmd, parseSummaryCmd, parseAppointmentsCmd, parseFormCmd)
	rootCmd.AddCommand(parseCmd)
}

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parses saved portal pages without touching the network.",
}

func readPage(path string) string {
	content, err := os.ReadFile(path)
	if err != nil {
		fatal("read page", err)
	}
	return string(content)
}

// printJson reports whether --json was given, in which case value was printed.
func printJson(value any) bool {
	if !parseJson {
		return false
	}
	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fatal("encode json", err)
	}
	fmt.Println(string(out))
	return true
}

func printCourses(courses []teachassist.Course) {
	t := newTable()
	t.AppendHeader(table.Row{"Code", "Name", "Block", "Room", "Semester", "Grade", "Midterm", "Final", "Stale"})
	for _, c := range courses {
		t.AppendRow(table.Row{
			c.CourseCode, c.CourseName, c.Block, c.Room, c.Semester,
			c.Grade, c.MidtermMark, c.FinalMark, c.IsGradeStale,
		})
	}
	t.Render()
}

var parseCoursesCmd = &cobra.Command{
	Use:   "courses <home.html>",
	Short: "Parses the course list of the home page.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		result := teachassist.ParseCourses(readPage(args[0]))
		if !result.Success {
			fatal("parse courses", fmt.Errorf("%s", result.Error))
		}
		if printJson(result.Data) {
			return
		}
		printCourses(result.Data)
	},
}

func formatMark(mark *teachassist.Mark) string {
	if mark == nil {
		return ""
	}
	text := mark.Percentage
	if text == "" {
		text = mark.Score
	}
	if mark.Weight != "" {
		text += " w" + mark.Weight
	}
	return text
}

var parseReportCmd = &cobra.Command{
	Use:   "report <report.html>",
	Short: "Parses the assignments and summary of a course report.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		report := teachassist.ParseGradeData(readPage(args[0]))
		if printJson(report) {
			return
		}

		t := newTable()
		header := table.Row{"Assignment"}
		for _, category := range teachassist.AllCategories {
			header = append(header, string(category))
		}
		header = append(header, "Score")
		t.AppendHeader(header)
		for _, a := range report.Assignments {
			row := table.Row{a.Name}
			for _, category := range teachassist.AllCategories {
				row = append(row, formatMark(a.Categories.Get(category)))
			}
			score := ""
			if value, ok := changes.AssignmentScore(a); ok {
				score = strconv.FormatFloat(value, 'f', 1, 64)
			}
			row = append(row, score)
			t.AppendRow(row)
		}
		if overall, ok := teachassist.OverallMark(report.Assignments); ok {
			t.AppendFooter(table.Row{"Overall", "", "", "", "", "", fmt.Sprintf("%d%%", overall)})
		}
		t.Render()

		if report.Summary == nil {
			return
		}
		fmt.Printf("term %s, course %s\n", report.Summary.Term, report.Summary.Course)
		s := newTable()
		s.AppendHeader(table.Row{"Category", "Weighting", "Achievement"})
		for _, c := range report.Summary.Categories {
			s.AppendRow(table.Row{c.Name, c.Weighting, c.Achievement})
		}
		s.Render()
	},
}

var parseSummaryCmd = &cobra.Command{
	Use:   "summary <report.html>",
	Short: "Parses the course code and marks at the top of a course report.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		summary, ok := teachassist.ParseCourseSummary(readPage(args[0]))
		if !ok {
			fatal("parse summary", fmt.Errorf("no course summary in page"))
		}
		if printJson(summary) {
			return
		}
		t := newTable()
		t.AppendHeader(table.Row{"Code", "Term", "Course"})
		t.AppendRow(table.Row{summary.CourseCode, summary.TermMark, summary.CourseMark})
		t.Render()
	},
}

func printSlots(page teachassist.AppointmentPage) {
	fmt.Printf("appointments on %s\n", page.Date)
	t := newTable()
	t.AppendHeader(table.Row{"Id", "Counselor", "Time", "Link"})
	for _, a := range page.Appointments {
		t.AppendRow(table.Row{a.Id, a.CounselorName, a.Time, a.Link})
	}
	t.Render()
}

var parseAppointmentsCmd = &cobra.Command{
	Use:   "appointments <appointments.html>",
	Short: "Parses the bookable slots of an appointment page.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var base *url.URL
		if parseBase != "" {
			var err error
			base, err = url.Parse(parseBase)
			if err != nil {
				fatal("parse --base", err)
			}
		}
		page := teachassist.ParseAppointments(readPage(args[0]), base)
		if printJson(page) {
			return
		}
		printSlots(page)
	},
}

func printForm(form teachassist.ReasonForm) {
	fmt.Printf("%s %s\n", form.Method, form.Action)
	t := newTable()
	t.AppendHeader(table.Row{"Id", "Type", "Name", "Value", "Label"})
	for _, o := range form.Options {
		t.AppendRow(table.Row{o.Id, o.Type, o.Name, o.Value, o.Label})
	}
	t.Render()
}

var parseFormCmd = &cobra.Command{
	Use:   "form <reason.html>",
	Short: "Parses the reason form of an appointment slot.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		form := teachassist.ParseReasonForm(readPage(args[0]))
		if printJson(form) {
			return
		}
		printForm(form)
	},
}
