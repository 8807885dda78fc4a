// Package store persists scraped records as json documents under fixed keys. The
// keys are read back by later versions of the program, they must never change.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"teachassist-backend/internal/components/assert"
	"teachassist-backend/internal/components/chrono"
	"teachassist-backend/internal/components/state"
	"teachassist-backend/internal/components/telemetry"
	"teachassist-backend/internal/coursecache"
	"teachassist-backend/internal/db"
	"teachassist-backend/internal/scrapers/teachassist"

	"github.com/go-playground/validator/v10"
)

const (
	KEY_COURSES       = "courses"
	KEY_REPORT_PREFIX = "report:"
	KEY_APPOINTMENTS  = "appointments"
	KEY_SETTINGS      = "settings"
	KEY_REASON_LABELS = "reason_labels"
	KEY_SESSION       = "session"
	KEY_VOLUNTEER     = "volunteer"
)

const (
	report_db_query = "db.query"
	report_decode   = "store.decode"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ReportKey is the key the report of a course is stored under.
func ReportKey(course teachassist.Course) string {
	return KEY_REPORT_PREFIX + coursecache.Key(course)
}

type Store struct {
	db     *db.Queries
	makeTx db.MakeTx
	time   chrono.TimeAPI
	tel    telemetry.API

	// Settings is loaded on first use and kept in memory afterwards.
	Settings *state.Value[Settings]
}

func NewStore(
	qry *db.Queries,
	makeTx db.MakeTx,
	time chrono.TimeAPI,
	tel telemetry.API,
) *Store {
	assert.NotNil(qry)
	assert.NotNil(makeTx)
	assert.NotNil(time)
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("store", tel)

	s := &Store{
		db:     qry,
		makeTx: makeTx,
		time:   time,
		tel:    tel,
	}
	s.Settings = state.NewValue(
		func(ctx context.Context) (Settings, error) {
			settings := DefaultSettings()
			_, err := s.get(ctx, s.db, KEY_SETTINGS, &settings)
			return settings, err
		},
		func(ctx context.Context, value Settings) error {
			return s.set(ctx, s.db, KEY_SETTINGS, value)
		},
	)
	return s
}

// get decodes the value under key into out, found is false when the key was
// never written. out is left untouched in that case.
func (s *Store) get(ctx context.Context, qry *db.Queries, key string, out any) (found bool, err error) {
	raw, err := qry.GetValue(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetValue", key)
		return false, err
	}
	err = json.Unmarshal([]byte(raw), out)
	if err != nil {
		s.tel.ReportBroken(report_decode, err, key)
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) set(ctx context.Context, qry *db.Queries, key string, value any) error {
	serialized, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	err = qry.SetValue(ctx, db.SetValueParams{
		Key:       key,
		Value:     string(serialized),
		UpdatedAt: s.time.Now().Unix(),
	})
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "SetValue", key)
		return err
	}
	return nil
}

func (s *Store) delete(ctx context.Context, qry *db.Queries, key string) error {
	err := qry.DeleteValue(ctx, key)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "DeleteValue", key)
	}
	return err
}

// update runs a read-modify-write of one key inside a transaction.
func update[T any](ctx context.Context, s *Store, key string, fn func(value T) (T, error)) error {
	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, fmt.Errorf("make tx: %w", err))
		return err
	}
	defer discard()

	var value T
	_, err = s.get(ctx, tx, key, &value)
	if err != nil {
		return err
	}
	value, err = fn(value)
	if err != nil {
		return err
	}
	err = s.set(ctx, tx, key, value)
	if err != nil {
		return err
	}
	return commit()
}

func (s *Store) Courses(ctx context.Context) ([]teachassist.Course, error) {
	courses := []teachassist.Course{}
	_, err := s.get(ctx, s.db, KEY_COURSES, &courses)
	return courses, err
}

func (s *Store) SetCourses(ctx context.Context, courses []teachassist.Course) error {
	if courses == nil {
		courses = []teachassist.Course{}
	}
	return s.set(ctx, s.db, KEY_COURSES, courses)
}

// Report returns the last stored report of a course.
func (s *Store) Report(ctx context.Context, course teachassist.Course) (teachassist.Report, bool, error) {
	report := teachassist.Report{Assignments: []teachassist.Assignment{}}
	found, err := s.get(ctx, s.db, ReportKey(course), &report)
	return report, found, err
}

func (s *Store) SetReport(ctx context.Context, course teachassist.Course, report teachassist.Report) error {
	return s.set(ctx, s.db, ReportKey(course), report)
}

// PruneReports deletes the stored reports of courses no longer in courses and
// returns how many were removed.
func (s *Store) PruneReports(ctx context.Context, courses []teachassist.Course) (int, error) {
	keep := make(map[string]bool, len(courses))
	for _, c := range courses {
		keep[ReportKey(c)] = true
	}

	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, fmt.Errorf("make tx: %w", err))
		return 0, err
	}
	defer discard()

	// _ and % are like wildcards, the prefix has neither
	rows, err := tx.ListKeys(ctx, KEY_REPORT_PREFIX+"%")
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "ListKeys", KEY_REPORT_PREFIX)
		return 0, err
	}
	removed := 0
	for _, row := range rows {
		if keep[row.Key] {
			continue
		}
		err = s.delete(ctx, tx, row.Key)
		if err != nil {
			return 0, err
		}
		removed++
	}
	return removed, commit()
}

func (s *Store) Appointments(ctx context.Context) ([]teachassist.AppointmentData, error) {
	appointments := []teachassist.AppointmentData{}
	_, err := s.get(ctx, s.db, KEY_APPOINTMENTS, &appointments)
	return appointments, err
}

// AddAppointment normalizes and validates an appointment and stores it, an
// appointment with the same id is replaced.
func (s *Store) AddAppointment(ctx context.Context, appointment teachassist.AppointmentData) (teachassist.AppointmentData, error) {
	appointment = appointment.Normalize()
	err := validate.Struct(appointment)
	if err != nil {
		return teachassist.AppointmentData{}, fmt.Errorf("invalid appointment: %w", err)
	}

	err = update(ctx, s, KEY_APPOINTMENTS, func(existing []teachassist.AppointmentData) ([]teachassist.AppointmentData, error) {
		out := make([]teachassist.AppointmentData, 0, len(existing)+1)
		for _, a := range existing {
			if a.Id != appointment.Id {
				out = append(out, a)
			}
		}
		return append(out, appointment), nil
	})
	return appointment, err
}

// RemoveAppointment deletes an appointment, removed is false when no appointment
// had the id.
func (s *Store) RemoveAppointment(ctx context.Context, id string) (removed bool, err error) {
	err = update(ctx, s, KEY_APPOINTMENTS, func(existing []teachassist.AppointmentData) ([]teachassist.AppointmentData, error) {
		out := make([]teachassist.AppointmentData, 0, len(existing))
		for _, a := range existing {
			if a.Id == id {
				removed = true
				continue
			}
			out = append(out, a)
		}
		return out, nil
	})
	return removed, err
}

func (s *Store) ReasonLabels(ctx context.Context) (map[string]string, error) {
	labels := map[string]string{}
	_, err := s.get(ctx, s.db, KEY_REASON_LABELS, &labels)
	return labels, err
}

// MergeReasonLabels adds labels to the stored value to label map, newer labels win.
func (s *Store) MergeReasonLabels(ctx context.Context, labels map[string]string) error {
	return update(ctx, s, KEY_REASON_LABELS, func(existing map[string]string) (map[string]string, error) {
		if existing == nil {
			existing = map[string]string{}
		}
		for value, label := range labels {
			existing[value] = label
		}
		return existing, nil
	})
}

// Session returns the stored cookie text, empty when there is none.
func (s *Store) Session(ctx context.Context) (string, error) {
	var session string
	_, err := s.get(ctx, s.db, KEY_SESSION, &session)
	return session, err
}

func (s *Store) SetSession(ctx context.Context, cookies string) error {
	if strings.TrimSpace(cookies) == "" {
		return s.delete(ctx, s.db, KEY_SESSION)
	}
	return s.set(ctx, s.db, KEY_SESSION, cookies)
}

func (s *Store) VolunteerEntries(ctx context.Context) ([]VolunteerEntry, error) {
	entries := []VolunteerEntry{}
	_, err := s.get(ctx, s.db, KEY_VOLUNTEER, &entries)
	return entries, err
}

func (s *Store) AddVolunteerEntry(ctx context.Context, entry VolunteerEntry) (VolunteerEntry, error) {
	entry = entry.Normalize()
	err := validate.Struct(entry)
	if err != nil {
		return VolunteerEntry{}, fmt.Errorf("invalid volunteer entry: %w", err)
	}
	err = update(ctx, s, KEY_VOLUNTEER, func(existing []VolunteerEntry) ([]VolunteerEntry, error) {
		return append(existing, entry), nil
	})
	return entry, err
}

func (s *Store) RemoveVolunteerEntry(ctx context.Context, id string) (removed bool, err error) {
	err = update(ctx, s, KEY_VOLUNTEER, func(existing []VolunteerEntry) ([]VolunteerEntry, error) {
		out := make([]VolunteerEntry, 0, len(existing))
		for _, e := range existing {
			if e.Id == id {
				removed = true
				continue
			}
			out = append(out, e)
		}
		return out, nil
	})
	return removed, err
}
