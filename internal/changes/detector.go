// Package changes detects grade changes between the cached course list and the
// portal, and hands them to a notifier.
package changes

import (
	"context"
	"errors"
	"fmt"
	"math"
	"teachassist-backend/internal/components/assert"
	"teachassist-backend/internal/components/chrono"
	"teachassist-backend/internal/components/state"
	"teachassist-backend/internal/components/telemetry"
	"teachassist-backend/internal/coursecache"
	"teachassist-backend/internal/notify"
	"teachassist-backend/internal/scrapers/teachassist"
	"teachassist-backend/internal/store"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = telemetry.Tracer("teachassist/changes")

const (
	report_detector_check  = "detector.check"
	report_detector_detail = "detector.detail"
	report_detector_store  = "detector.store"
	report_detector_notify = "detector.notify"
	report_changes_count   = "detector.changes"
)

type Failure string

const (
	FAILURE_NONE           Failure = "none"
	FAILURE_NO_SESSION     Failure = "no_session"
	FAILURE_LOGIN_FAILED   Failure = "login_failed"
	FAILURE_LOGIN_REQUIRED Failure = "login_required"
	FAILURE_FETCH_FAILED   Failure = "fetch_failed"
	FAILURE_TIMEOUT        Failure = "timeout"
)

// Result is the outcome of one check. Changes is empty unless Failure is
// FAILURE_NONE, except for a timeout which keeps the changes found so far.
type Result struct {
	HasUpdates bool
	Changes    []notify.Change
	// Courses is the merged course list that was persisted.
	Courses []teachassist.Course
	Failure   Failure
	Err       error
	CheckedAt time.Time
}

// Portal is the session-managing view of the portal the detector needs.
type Portal interface {
	EnsureSession(ctx context.Context) error
	Relogin(ctx context.Context) error
	Home(ctx context.Context) (string, error)
	Report(ctx context.Context, course teachassist.Course) (string, error)
}

type Store interface {
	Courses(ctx context.Context) ([]teachassist.Course, error)
	SetCourses(ctx context.Context, courses []teachassist.Course) error
	Report(ctx context.Context, course teachassist.Course) (teachassist.Report, bool, error)
	SetReport(ctx context.Context, course teachassist.Course, report teachassist.Report) error
}

// Detector runs grade change checks. Check must not be called concurrently,
// the cached course list is read and written once per check without locking.
type Detector struct {
	portal   Portal
	store    Store
	settings *state.Value[store.Settings]
	notifier notify.Notifier
	time     chrono.TimeAPI
	tel      telemetry.API
}

func NewDetector(
	portal Portal,
	store Store,
	settings *state.Value[store.Settings],
	notifier notify.Notifier,
	time chrono.TimeAPI,
	tel telemetry.API,
) Detector {
	assert.NotNil(portal)
	assert.NotNil(store)
	assert.NotNil(settings)
	assert.NotNil(notifier)
	assert.NotNil(time)
	assert.NotNil(tel)

	return Detector{
		portal:   portal,
		store:    store,
		settings: settings,
		notifier: notifier,
		time:     time,
		tel:      telemetry.NewScopedAPI("changes", tel),
	}
}

func failed(ctx context.Context, failure Failure, err error) Result {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		failure = FAILURE_TIMEOUT
	}
	return Result{Failure: failure, Err: err, Changes: []notify.Change{}}
}

func sessionFailure(err error) Failure {
	switch {
	case errors.Is(err, teachassist.ErrNoSession):
		return FAILURE_NO_SESSION
	case errors.Is(err, teachassist.ErrLoginFailed):
		return FAILURE_LOGIN_FAILED
	}
	return FAILURE_FETCH_FAILED
}

func (d Detector) fetchHome(ctx context.Context) (string, Result, bool) {
	err := d.portal.EnsureSession(ctx)
	if err != nil {
		return "", failed(ctx, sessionFailure(err), err), false
	}

	home, err := d.portal.Home(ctx)
	if errors.Is(err, teachassist.ErrSessionRequired) {
		err = d.portal.Relogin(ctx)
		if err != nil {
			return "", failed(ctx, sessionFailure(err), err), false
		}
		home, err = d.portal.Home(ctx)
		if errors.Is(err, teachassist.ErrSessionRequired) {
			return "", failed(ctx, FAILURE_LOGIN_REQUIRED, err), false
		}
	}
	if err != nil {
		return "", failed(ctx, FAILURE_FETCH_FAILED, err), false
	}
	return home, Result{}, true
}

// Check fetches the course list, persists it merged with the cache and reports
// the courses whose marks were hidden or changed.
func (d Detector) Check(ctx context.Context) Result {
	ctx, span := tracer.Start(ctx, "Check")
	defer span.End()

	result := d.check(ctx, span)
	result.CheckedAt = d.time.Now()
	return result
}

func (d Detector) check(ctx context.Context, span trace.Span) Result {
	home, result, ok := d.fetchHome(ctx)
	if !ok {
		span.SetStatus(codes.Error, string(result.Failure))
		span.RecordError(result.Err)
		d.tel.ReportWarning(report_detector_check, result.Err, telemetry.KV{Key: "failure", Value: result.Failure})
		return result
	}

	parsed := teachassist.ParseCourses(home)
	if !parsed.Success {
		err := fmt.Errorf("parse courses: %s", parsed.Error)
		d.tel.ReportBroken(report_detector_check, err)
		span.RecordError(err)
		return failed(ctx, FAILURE_FETCH_FAILED, err)
	}

	cached, err := d.store.Courses(ctx)
	if err != nil {
		d.tel.ReportBroken(report_detector_store, fmt.Errorf("read courses: %w", err))
		return failed(ctx, FAILURE_FETCH_FAILED, err)
	}
	merged := coursecache.Merge(parsed.Data, cached)
	err = d.store.SetCourses(ctx, merged)
	if err != nil {
		// detection still works against the in-memory cache
		d.tel.ReportBroken(report_detector_store, fmt.Errorf("write courses: %w", err))
	}

	index := coursecache.NewIndex(cached)
	changes := []notify.Change{}
	for i, course := range parsed.Data {
		if ctx.Err() != nil {
			result := failed(ctx, FAILURE_TIMEOUT, ctx.Err())
			result.Changes = changes
			result.Courses = merged
			return result
		}

		previous, ok := coursecache.FindMatch(course, index)
		if !ok {
			continue
		}
		// merged[i] is course with the cached links filled in
		change, ok := d.classify(ctx, merged[i], course, previous)
		if !ok {
			continue
		}
		changes = append(changes, change)
	}

	span.SetAttributes(attribute.Int("changes", len(changes)))
	d.tel.ReportCount(report_changes_count, int64(len(changes)))

	result = Result{
		HasUpdates: len(changes) > 0,
		Changes:    changes,
		Courses:    merged,
		Failure:    FAILURE_NONE,
	}

	settings, err := d.settings.Get(ctx)
	if err != nil {
		d.tel.ReportBroken(report_detector_store, fmt.Errorf("read settings: %w", err))
		settings = store.DefaultSettings()
	}
	if len(changes) == 0 && settings.NotifyOnNoChanges {
		result.Changes = []notify.Change{notify.NewChange(notify.KIND_NONE)}
	}
	if settings.NotificationsEnabled && len(result.Changes) > 0 {
		err = d.notifier.Notify(ctx, result.Changes)
		if err != nil {
			d.tel.ReportBroken(report_detector_notify, err)
		}
	}

	return result
}

func (d Detector) classify(ctx context.Context, merged, fresh, previous teachassist.Course) (notify.Change, bool) {
	change := notify.Change{
		CourseCode:    fresh.CourseCode,
		CourseName:    fresh.CourseName,
		Grade:         fresh.Grade,
		PreviousGrade: previous.Grade,
	}

	if !coursecache.HasVisibleGrade(fresh) {
		// a stale previous grade means the hide was already reported
		if !coursecache.HasVisibleGrade(previous) || previous.IsGradeStale {
			return notify.Change{}, false
		}
		hidden := notify.NewChange(notify.KIND_HIDDEN)
		change.ID = hidden.ID
		change.Kind = hidden.Kind
		return change, true
	}

	grade, ok := fresh.GradeValue()
	if !ok {
		return notify.Change{}, false
	}
	previousGrade, ok := previous.GradeValue()
	if !ok || math.Abs(grade-previousGrade) < change_threshold {
		return notify.Change{}, false
	}

	numeric := notify.NewChange(notify.KIND_NUMERIC)
	change.ID = numeric.ID
	change.Kind = numeric.Kind

	assignment, score, ok := d.changedAssignment(ctx, merged)
	if ok {
		change.AssignmentName = assignment.Name
		change.AssignmentScore = score
	}
	return change, true
}

// changedAssignment fetches the report of a course and compares it with the
// stored one. Failures only cost the assignment detail.
func (d Detector) changedAssignment(ctx context.Context, course teachassist.Course) (teachassist.Assignment, *float64, bool) {
	ctx, span := tracer.Start(ctx, "changedAssignment")
	defer span.End()
	span.SetAttributes(attribute.String("course", course.CourseCode))

	document, err := d.portal.Report(ctx, course)
	if errors.Is(err, teachassist.ErrSessionRequired) {
		err = d.portal.Relogin(ctx)
		if err == nil {
			document, err = d.portal.Report(ctx, course)
		}
	}
	if err != nil {
		d.tel.ReportWarning(report_detector_detail, err, course.CourseCode)
		span.RecordError(err)
		return teachassist.Assignment{}, nil, false
	}

	report := teachassist.ParseGradeData(document)
	if len(report.Assignments) == 0 {
		d.tel.ReportWarning(report_detector_detail, fmt.Errorf("no assignments in report"), course.CourseCode)
		return teachassist.Assignment{}, nil, false
	}

	previous, _, err := d.store.Report(ctx, course)
	if err != nil {
		d.tel.ReportBroken(report_detector_store, fmt.Errorf("read report: %w", err), course.CourseCode)
	}
	err = d.store.SetReport(ctx, course, report)
	if err != nil {
		d.tel.ReportBroken(report_detector_store, fmt.Errorf("write report: %w", err), course.CourseCode)
	}

	assignment, ok := firstChangedAssignment(report.Assignments, previous.Assignments)
	if !ok {
		return teachassist.Assignment{}, nil, false
	}
	score, ok := AssignmentScore(assignment)
	if !ok {
		return assignment, nil, true
	}
	return assignment, &score, true
}
