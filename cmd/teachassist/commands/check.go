package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"teachassist-backend/internal/changes"
	"teachassist-backend/internal/components/chrono"
	"teachassist-backend/internal/components/telemetry"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const check_timeout = time.Minute * 2

func init() {
	rootCmd.AddCommand(checkCmd, watchCmd)
}

// runCheck performs one check, records the day's marks and drops stored reports
// of courses that left the course list.
func runCheck(ctx context.Context, a *app, detector changes.Detector) changes.Result {
	ctx, cancel := context.WithTimeout(ctx, check_timeout)
	defer cancel()

	result := detector.Check(ctx)
	if result.Failure != changes.FAILURE_NONE {
		return result
	}
	_, err := a.snapshot.MakeSnapshots(ctx, result.Courses)
	if err != nil {
		a.tel.ReportBroken("check.make-snapshots", err)
	}
	pruned, err := a.store.PruneReports(ctx, result.Courses)
	if err != nil {
		a.tel.ReportBroken("check.prune-reports", err)
	} else if pruned > 0 {
		a.tel.ReportDebug("pruned reports", pruned)
	}
	return result
}

// exclusive wraps fn so that a call made while another call is still running returns
// false without running fn.
func exclusive(fn func()) func() bool {
	lock := &sync.Mutex{}
	return func() bool {
		if !lock.TryLock() {
			return false
		}
		defer lock.Unlock()
		fn()
		return true
	}
}

func printResult(result changes.Result) {
	t := newTable()
	t.AppendHeader(table.Row{"Kind", "Course", "Previous", "Grade", "Detail"})
	for _, change := range result.Changes {
		t.AppendRow(table.Row{change.Kind, change.CourseCode, change.PreviousGrade, change.Grade, change.Body()})
	}
	t.Render()
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Fetches the course list once and reports grade changes.",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd.Context())
		defer a.Close()

		result := runCheck(cmd.Context(), a, a.detector())
		if result.Failure != changes.FAILURE_NONE {
			fatal(fmt.Sprintf("check failed: %s", result.Failure), result.Err)
		}
		if len(result.Changes) == 0 {
			slog.Info("no grade changes", "courses", len(result.Courses))
			return
		}
		printResult(result)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Checks for grade changes on the configured schedule until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.Close()

		telemetry.InstrumentPerfStats(ctx, a.tel, time.Minute)

		detector := a.detector()
		// the initial check runs outside of the cron job chain, so overlap with a
		// scheduled run is guarded here
		check := exclusive(func() {
			result := runCheck(ctx, a, detector)
			slog.Info(
				"check finished",
				"failure", result.Failure,
				"changes", len(result.Changes),
				"at", result.CheckedAt.Format(time.Kitchen),
			)
		})
		scheduled := func() {
			if !check() {
				slog.Warn("skipping check, the previous one is still running")
			}
		}

		cron := chrono.NewStandardCron(a.tel)
		defer cron.Stop()
		err := cron.Cron(a.config.Watch, scheduled)
		if err != nil {
			fatal("schedule check", err)
		}
		slog.Info("watching for grade changes", "schedule", a.config.Watch)

		scheduled()
		<-ctx.Done()
	},
}
