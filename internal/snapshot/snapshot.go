// Package snapshot keeps a daily history of every course's mark.
package snapshot

import (
	"context"
	"fmt"
	"teachassist-backend/internal/components/assert"
	"teachassist-backend/internal/components/chrono"
	"teachassist-backend/internal/components/telemetry"
	"teachassist-backend/internal/coursecache"
	"teachassist-backend/internal/db"
	"teachassist-backend/internal/scrapers/teachassist"
	"time"
)

const (
	report_db_query       = "db.query"
	report_make_snapshots = "snapshot.make-snapshots"
)

// Point is the mark of a course at the end of a day.
type Point struct {
	Day   string  `json:"day"`
	Value float64 `json:"value"`
}

type Snapshot struct {
	db     *db.Queries
	makeTx db.MakeTx
	tel    telemetry.API
	time   chrono.TimeAPI
}

func NewSnapshot(
	db *db.Queries,
	makeTx db.MakeTx,
	time chrono.TimeAPI,
	tel telemetry.API,
) Snapshot {
	assert.NotNil(db)
	assert.NotNil(makeTx)
	assert.NotNil(time)
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("snapshot", tel)

	return Snapshot{
		db:     db,
		makeTx: makeTx,
		time:   time,
		tel:    tel,
	}
}

// Courses returns the keys of every course with a history.
func (s Snapshot) Courses(ctx context.Context) ([]string, error) {
	keys, err := s.db.GetSnapshotCourses(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetSnapshotCourses")
		return nil, err
	}
	return keys, nil
}

// GetSnapshots returns the history of a course oldest first, courseKey is
// coursecache.Key of the course.
func (s Snapshot) GetSnapshots(ctx context.Context, courseKey string) ([]Point, error) {
	rows, err := s.db.GetSnapshots(ctx, courseKey)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetSnapshots", courseKey)
		return nil, err
	}
	points := make([]Point, len(rows))
	for i, row := range rows {
		points[i] = Point{Day: row.Day, Value: row.Value}
	}
	return points, nil
}

// MakeSnapshots records today's mark of every course that shows a current mark.
// Stale marks are not recorded, a later call on the same day replaces the day's
// value.
func (s Snapshot) MakeSnapshots(ctx context.Context, courses []teachassist.Course) (int, error) {
	day := s.time.Now().Format(time.DateOnly)

	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, fmt.Errorf("make tx: %w", err))
		return 0, err
	}
	defer discard()

	recorded := 0
	for _, course := range courses {
		if course.IsGradeStale || !coursecache.HasVisibleGrade(course) {
			continue
		}
		value, ok := course.GradeValue()
		if !ok {
			continue
		}

		param := db.SetSnapshotParams{
			CourseKey: coursecache.Key(course),
			Day:       day,
			Value:     value,
		}
		err = tx.SetSnapshot(ctx, param)
		if err != nil {
			s.tel.ReportBroken(report_db_query, err, "SetSnapshot", param)
			return 0, err
		}
		recorded++
	}

	err = commit()
	if err != nil {
		s.tel.ReportBroken(report_make_snapshots, fmt.Errorf("commit: %w", err))
		return 0, err
	}
	s.tel.ReportDebug("recorded snapshots", day, recorded)
	return recorded, nil
}
