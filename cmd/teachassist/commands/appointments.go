package commands

import (
	"fmt"
	"strings"
	"teachassist-backend/internal/scrapers/teachassist"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var upcomingWithin time.Duration

func init() {
	appointmentsUpcomingCmd.Flags().DurationVar(&upcomingWithin, "within", time.Hour*24*7, "How far ahead to look.")

	appointmentsCmd.AddCommand(
		appointmentsListCmd,
		appointmentsReasonsCmd,
		appointmentsBookCmd,
		appointmentsCancelCmd,
		appointmentsUpcomingCmd,
	)
	rootCmd.AddCommand(appointmentsCmd)
}

var appointmentsCmd = &cobra.Command{
	Use:   "appointments",
	Short: "Lists, books and tracks guidance appointments.",
}

func printBooked(booked []teachassist.AppointmentData) {
	t := newTable()
	t.AppendHeader(table.Row{"Id", "Date", "Time", "Teacher", "Subject", "Reason"})
	for _, a := range booked {
		t.AppendRow(table.Row{a.Id, a.Date, a.Time, a.Teacher, a.Subject, a.Reason})
	}
	t.Render()
}

// findSlot matches either a full slot id or its trailing slot number.
func findSlot(page teachassist.AppointmentPage, id string) (teachassist.Appointment, error) {
	for _, a := range page.Appointments {
		if a.Id == id || strings.HasSuffix(a.Id, "-"+id) {
			return a, nil
		}
	}
	return teachassist.Appointment{}, fmt.Errorf("no slot %q on %s", id, page.Date)
}

var appointmentsListCmd = &cobra.Command{
	Use:   "list [YYYY-MM-DD]",
	Short: "Lists the open slots of a day.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd.Context())
		defer a.Close()

		date := ""
		if len(args) > 0 {
			date = args[0]
		}
		page, err := a.appointments().List(cmd.Context(), date)
		if err != nil {
			fatal("list appointments", err)
		}
		printSlots(page)
	},
}

var appointmentsReasonsCmd = &cobra.Command{
	Use:   "reasons <YYYY-MM-DD> <slot>",
	Short: "Shows the reasons a slot can be booked for.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.Close()

		service := a.appointments()
		page, err := service.List(ctx, args[0])
		if err != nil {
			fatal("list appointments", err)
		}
		slot, err := findSlot(page, args[1])
		if err != nil {
			fatal("find slot", err)
		}
		form, err := service.Reasons(ctx, slot)
		if err != nil {
			fatal("fetch reasons", err)
		}
		printForm(form)
	},
}

var appointmentsBookCmd = &cobra.Command{
	Use:   "book <YYYY-MM-DD> <slot> [reason]",
	Short: "Books a slot, the reason is matched against the option labels.",
	Args:  cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.Close()

		service := a.appointments()
		page, err := service.List(ctx, args[0])
		if err != nil {
			fatal("list appointments", err)
		}
		slot, err := findSlot(page, args[1])
		if err != nil {
			fatal("find slot", err)
		}
		reason := ""
		if len(args) > 2 {
			reason = args[2]
		}

		date := page.Date
		if date == "" {
			date = args[0]
		}
		booked, err := service.Book(ctx, date, slot, reason)
		if err != nil {
			fatal("book appointment", err)
		}
		printBooked([]teachassist.AppointmentData{booked})
	},
}

var appointmentsCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Forgets a booked appointment.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd.Context())
		defer a.Close()

		removed, err := a.appointments().Cancel(cmd.Context(), args[0])
		if err != nil {
			fatal("cancel appointment", err)
		}
		if !removed {
			fatal("cancel appointment", fmt.Errorf("no appointment %q", args[0]))
		}
	},
}

var appointmentsUpcomingCmd = &cobra.Command{
	Use:   "upcoming [--within <duration>]",
	Short: "Lists booked appointments that are coming up.",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd.Context())
		defer a.Close()

		upcoming, err := a.appointments().Upcoming(cmd.Context(), upcomingWithin)
		if err != nil {
			fatal("list upcoming appointments", err)
		}
		printBooked(upcoming)
	},
}
