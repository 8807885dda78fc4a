package changes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"teachassist-backend/internal/components/chrono"
	"teachassist-backend/internal/components/state"
	"teachassist-backend/internal/components/telemetry"
	"teachassist-backend/internal/notify"
	"teachassist-backend/internal/scrapers/teachassist"
	"teachassist-backend/internal/store"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func homePage(rows ...string) string {
	return fmt.Sprintf(`<html><body>
<table border="0" cellpadding="3" cellspacing="0" width="85%%">
<tr><th>Course Name</th><th>Date</th><th>Mark</th></tr>
%s
</table>
</body></html>`, strings.Join(rows, "\n"))
}

func mathRow(grade string) string {
	mark := " Please see teacher for current status "
	if grade != "" {
		mark = fmt.Sprintf(`<a href="viewReport.php?subject_id=123456&student_id=999">current mark = %s%%</a>`, grade)
	}
	return fmt.Sprintf(
		`<tr bgcolor="#ddffff"><td>MATH1D : Functions Block: P1 - rm. 204</td><td>2024-09-03 ~ 2025-01-31</td><td>%s</td></tr>`,
		mark,
	)
}

func reportPage(rows ...string) string {
	return fmt.Sprintf(`<html><body>
<table border="1" cellpadding="3" width="100%%">
<tr><th rowspan="2">Assignment</th><th>Knowledge</th><th>Thinking</th></tr>
<tr></tr>
%s
</table>
</body></html>`, strings.Join(rows, "\n"))
}

func reportRow(name, knowledge string) string {
	return fmt.Sprintf(`<tr><td rowspan="2">%s</td><td bgcolor="ffffaa">%s</td></tr><tr></tr>`, name, knowledge)
}

type fakePortal struct {
	ensureErr  error
	reloginErr error
	homes      []string
	homeErrs   []error
	reports    map[string]string
	reportErr  error

	homeCalls int
	relogins  int
	fetched   []string
}

func (p *fakePortal) EnsureSession(ctx context.Context) error {
	return p.ensureErr
}

func (p *fakePortal) Relogin(ctx context.Context) error {
	p.relogins++
	return p.reloginErr
}

func (p *fakePortal) Home(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	i := p.homeCalls
	p.homeCalls++
	if i < len(p.homeErrs) && p.homeErrs[i] != nil {
		return "", p.homeErrs[i]
	}
	if i >= len(p.homes) {
		i = len(p.homes) - 1
	}
	return p.homes[i], nil
}

func (p *fakePortal) Report(ctx context.Context, course teachassist.Course) (string, error) {
	p.fetched = append(p.fetched, course.ReportUrl)
	if p.reportErr != nil {
		return "", p.reportErr
	}
	return p.reports[course.CourseCode], nil
}

type memoryStore struct {
	courses []teachassist.Course
	reports map[string]teachassist.Report
}

func newMemoryStore(courses ...teachassist.Course) *memoryStore {
	return &memoryStore{courses: courses, reports: map[string]teachassist.Report{}}
}

func (s *memoryStore) Courses(ctx context.Context) ([]teachassist.Course, error) {
	return s.courses, nil
}

func (s *memoryStore) SetCourses(ctx context.Context, courses []teachassist.Course) error {
	s.courses = courses
	return nil
}

func (s *memoryStore) Report(ctx context.Context, course teachassist.Course) (teachassist.Report, bool, error) {
	report, ok := s.reports[store.ReportKey(course)]
	return report, ok, nil
}

func (s *memoryStore) SetReport(ctx context.Context, course teachassist.Course, report teachassist.Report) error {
	s.reports[store.ReportKey(course)] = report
	return nil
}

type recordingNotifier struct {
	calls [][]notify.Change
}

func (n *recordingNotifier) Notify(ctx context.Context, changes []notify.Change) error {
	n.calls = append(n.calls, changes)
	return nil
}

type detectorEnv struct {
	detector Detector
	portal   *fakePortal
	store    *memoryStore
	notifier *recordingNotifier
	tel      *telemetry.RecordingAPI
}

func newDetectorEnv(t *testing.T, portal *fakePortal, memory *memoryStore, settings store.Settings) detectorEnv {
	t.Helper()

	notifier := &recordingNotifier{}
	tel := telemetry.NewRecordingAPI()
	value := state.NewValue(
		func(ctx context.Context) (store.Settings, error) { return settings, nil },
		nil,
	)
	detector := NewDetector(
		portal,
		memory,
		value,
		notifier,
		chrono.FixedTime{Time: time.Date(2025, time.March, 14, 9, 0, 0, 0, chrono.Toronto())},
		tel,
	)
	return detectorEnv{
		detector: detector,
		portal:   portal,
		store:    memory,
		notifier: notifier,
		tel:      tel,
	}
}

var cachedMath = teachassist.Course{
	CourseCode: "MATH1D",
	CourseName: "Functions",
	Block:      "1",
	Room:       "204",
	StartDate:  "2024-09-03",
	EndDate:    "2025-01-31",
	Semester:   1,
	Grade:      "85",
	HasGrade:   true,
	SubjectId:  "123456",
	ReportUrl:  "viewReport.php?subject_id=123456&student_id=999",
}

func TestDetectorNumericChange(t *testing.T) {
	memory := newMemoryStore(cachedMath)
	memory.reports[store.ReportKey(cachedMath)] = teachassist.ParseGradeData(reportPage(
		reportRow("Unit 1 Test", "12 / 13 = 92%<br>weight=10"),
	))

	portal := &fakePortal{
		homes: []string{homePage(mathRow("88"))},
		reports: map[string]string{
			"MATH1D": reportPage(
				reportRow("Unit 1 Test", "12 / 13 = 92%<br>weight=10"),
				reportRow("Quiz", "4/5"),
			),
		},
	}
	env := newDetectorEnv(t, portal, memory, store.DefaultSettings())

	result := env.detector.Check(context.Background())
	require.Equal(t, FAILURE_NONE, result.Failure, env.tel.String())
	require.NoError(t, result.Err)
	require.True(t, result.HasUpdates)
	require.Len(t, result.Changes, 1)
	require.Equal(t, time.Date(2025, time.March, 14, 9, 0, 0, 0, chrono.Toronto()), result.CheckedAt)

	change := result.Changes[0]
	require.NotEmpty(t, change.ID)
	require.Equal(t, notify.KIND_NUMERIC, change.Kind)
	require.Equal(t, "MATH1D", change.CourseCode)
	require.Equal(t, "85", change.PreviousGrade)
	require.Equal(t, "88", change.Grade)
	require.Equal(t, "Quiz", change.AssignmentName)
	require.NotNil(t, change.AssignmentScore)
	require.InDelta(t, 80, *change.AssignmentScore, 1e-9)

	require.Equal(t, []string{cachedMath.ReportUrl}, portal.fetched)
	require.Len(t, memory.reports[store.ReportKey(cachedMath)].Assignments, 2)
	require.Len(t, memory.courses, 1)
	require.Equal(t, "88", memory.courses[0].Grade)

	require.Len(t, env.notifier.calls, 1)
	require.Equal(t, result.Changes, env.notifier.calls[0])

	count, ok := env.tel.Count("changes: " + report_changes_count)
	require.True(t, ok)
	require.Equal(t, int64(1), count)
}

func TestDetectorIgnoresSmallMovement(t *testing.T) {
	portal := &fakePortal{homes: []string{homePage(mathRow("85.05"))}}
	env := newDetectorEnv(t, portal, newMemoryStore(cachedMath), store.DefaultSettings())

	result := env.detector.Check(context.Background())
	require.Equal(t, FAILURE_NONE, result.Failure)
	require.False(t, result.HasUpdates)
	require.Empty(t, result.Changes)
	require.Empty(t, portal.fetched)
	require.Empty(t, env.notifier.calls)
}

func TestDetectorHiddenGrade(t *testing.T) {
	memory := newMemoryStore(cachedMath)
	portal := &fakePortal{homes: []string{homePage(mathRow(""))}}
	env := newDetectorEnv(t, portal, memory, store.DefaultSettings())

	result := env.detector.Check(context.Background())
	require.Equal(t, FAILURE_NONE, result.Failure)
	require.Len(t, result.Changes, 1)
	require.Equal(t, notify.KIND_HIDDEN, result.Changes[0].Kind)
	require.Equal(t, "85", result.Changes[0].PreviousGrade)
	require.Empty(t, portal.fetched)

	require.Len(t, memory.courses, 1)
	require.True(t, memory.courses[0].IsGradeStale)
	require.Equal(t, "85", memory.courses[0].Grade)

	// the stale grade in the cache stops the same hide from being reported twice
	result = env.detector.Check(context.Background())
	require.Equal(t, FAILURE_NONE, result.Failure)
	require.Empty(t, result.Changes)
	require.True(t, memory.courses[0].IsGradeStale)
}

func TestDetectorFirstRunHasNoChanges(t *testing.T) {
	memory := newMemoryStore()
	portal := &fakePortal{homes: []string{homePage(mathRow("88"))}}
	env := newDetectorEnv(t, portal, memory, store.DefaultSettings())

	result := env.detector.Check(context.Background())
	require.Equal(t, FAILURE_NONE, result.Failure)
	require.Empty(t, result.Changes)
	require.Len(t, memory.courses, 1)
	require.Empty(t, env.notifier.calls)
}

func TestDetectorDetailFailureDegrades(t *testing.T) {
	portal := &fakePortal{
		homes:     []string{homePage(mathRow("90"))},
		reportErr: errors.New("connection reset"),
	}
	env := newDetectorEnv(t, portal, newMemoryStore(cachedMath), store.DefaultSettings())

	result := env.detector.Check(context.Background())
	require.Equal(t, FAILURE_NONE, result.Failure)
	require.Len(t, result.Changes, 1)
	require.Equal(t, notify.KIND_NUMERIC, result.Changes[0].Kind)
	require.Empty(t, result.Changes[0].AssignmentName)
	require.Nil(t, result.Changes[0].AssignmentScore)
	require.Contains(t, env.tel.Warnings(), "changes: "+report_detector_detail)
}

func TestDetectorSettings(t *testing.T) {
	t.Run("confirmation when nothing changed", func(t *testing.T) {
		portal := &fakePortal{homes: []string{homePage(mathRow("85"))}}
		env := newDetectorEnv(t, portal, newMemoryStore(cachedMath), store.Settings{
			NotificationsEnabled: true,
			NotifyOnNoChanges:    true,
		})

		result := env.detector.Check(context.Background())
		require.False(t, result.HasUpdates)
		require.Len(t, result.Changes, 1)
		require.Equal(t, notify.KIND_NONE, result.Changes[0].Kind)
		require.Len(t, env.notifier.calls, 1)
	})

	t.Run("notifications disabled", func(t *testing.T) {
		memory := newMemoryStore(cachedMath)
		portal := &fakePortal{
			homes:   []string{homePage(mathRow("70"))},
			reports: map[string]string{"MATH1D": reportPage(reportRow("Quiz", "4/5"))},
		}
		env := newDetectorEnv(t, portal, memory, store.Settings{})

		result := env.detector.Check(context.Background())
		require.True(t, result.HasUpdates)
		require.Len(t, result.Changes, 1)
		require.Empty(t, env.notifier.calls)
		require.Equal(t, "70", memory.courses[0].Grade)
	})
}

func TestDetectorFailures(t *testing.T) {
	home := homePage(mathRow("88"))

	testCases := []struct {
		name     string
		portal   *fakePortal
		cancel   bool
		expect   Failure
		relogins int
	}{
		{
			name:   "no stored session or credentials",
			portal: &fakePortal{ensureErr: teachassist.ErrNoSession, homes: []string{home}},
			expect: FAILURE_NO_SESSION,
		},
		{
			name:   "credentials rejected",
			portal: &fakePortal{ensureErr: fmt.Errorf("login: %w", teachassist.ErrLoginFailed), homes: []string{home}},
			expect: FAILURE_LOGIN_FAILED,
		},
		{
			name: "still requires login after relogin",
			portal: &fakePortal{
				homes:    []string{home},
				homeErrs: []error{teachassist.ErrSessionRequired, teachassist.ErrSessionRequired},
			},
			expect:   FAILURE_LOGIN_REQUIRED,
			relogins: 1,
		},
		{
			name: "relogin rejected",
			portal: &fakePortal{
				homes:      []string{home},
				homeErrs:   []error{teachassist.ErrSessionRequired},
				reloginErr: teachassist.ErrLoginFailed,
			},
			expect:   FAILURE_LOGIN_FAILED,
			relogins: 1,
		},
		{
			name:   "network error",
			portal: &fakePortal{homes: []string{home}, homeErrs: []error{errors.New("dial tcp: refused")}},
			expect: FAILURE_FETCH_FAILED,
		},
		{
			name:   "unparseable home page",
			portal: &fakePortal{homes: []string{"<html><body>maintenance</body></html>"}},
			expect: FAILURE_FETCH_FAILED,
		},
		{
			name:   "context expired",
			portal: &fakePortal{homes: []string{home}},
			cancel: true,
			expect: FAILURE_TIMEOUT,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			memory := newMemoryStore(cachedMath)
			env := newDetectorEnv(t, tc.portal, memory, store.DefaultSettings())

			ctx, cancel := context.WithCancel(context.Background())
			if tc.cancel {
				cancel()
			} else {
				defer cancel()
			}

			result := env.detector.Check(ctx)
			require.Equal(t, tc.expect, result.Failure)
			require.Error(t, result.Err)
			require.False(t, result.HasUpdates)
			require.Empty(t, result.Changes)
			require.Equal(t, tc.relogins, tc.portal.relogins)
			require.Equal(t, []teachassist.Course{cachedMath}, memory.courses)
			require.Empty(t, env.notifier.calls)
		})
	}
}

func TestDetectorRecoversExpiredSession(t *testing.T) {
	portal := &fakePortal{
		homes:    []string{"", homePage(mathRow("85"))},
		homeErrs: []error{teachassist.ErrSessionRequired},
	}
	env := newDetectorEnv(t, portal, newMemoryStore(cachedMath), store.DefaultSettings())

	result := env.detector.Check(context.Background())
	require.Equal(t, FAILURE_NONE, result.Failure)
	require.Equal(t, 1, portal.relogins)
	require.Equal(t, 2, portal.homeCalls)
}
