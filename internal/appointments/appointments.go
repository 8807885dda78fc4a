// Package appointments runs the guidance booking flow on top of the portal
// client and keeps the booked appointments in the store.
package appointments

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"teachassist-backend/internal/components/assert"
	"teachassist-backend/internal/components/chrono"
	"teachassist-backend/internal/components/telemetry"
	"teachassist-backend/internal/scrapers/teachassist"
	"time"
)

const (
	report_service_list    = "service.list"
	report_service_reasons = "service.reasons"
	report_service_book    = "service.book"
	report_service_store   = "service.store"
)

var ErrUnknownReason = errors.New("no reason option matches")

type Portal interface {
	EnsureSession(ctx context.Context) error
	Do(ctx context.Context, fn func(ctx context.Context) error) error
	Appointments(ctx context.Context, date string) (teachassist.AppointmentPage, error)
	ReasonForm(ctx context.Context, appointment teachassist.Appointment) (teachassist.ReasonForm, error)
	Book(ctx context.Context, form teachassist.ReasonForm, option teachassist.FormOption) error
}

type Store interface {
	Appointments(ctx context.Context) ([]teachassist.AppointmentData, error)
	AddAppointment(ctx context.Context, appointment teachassist.AppointmentData) (teachassist.AppointmentData, error)
	RemoveAppointment(ctx context.Context, id string) (bool, error)
	MergeReasonLabels(ctx context.Context, labels map[string]string) error
}

type Service struct {
	portal   Portal
	store    Store
	schoolId string
	time     chrono.TimeAPI
	tel      telemetry.API
}

func NewService(portal Portal, store Store, schoolId string, time chrono.TimeAPI, tel telemetry.API) Service {
	assert.NotNil(portal)
	assert.NotNil(store)
	assert.NotNil(time)
	assert.NotNil(tel)

	return Service{
		portal:   portal,
		store:    store,
		schoolId: schoolId,
		time:     time,
		tel:      telemetry.NewScopedAPI("appointments", tel),
	}
}

// List returns the open slots of a day, date is YYYY-MM-DD or empty for the
// portal's default day.
func (s Service) List(ctx context.Context, date string) (teachassist.AppointmentPage, error) {
	err := s.portal.EnsureSession(ctx)
	if err != nil {
		return teachassist.AppointmentPage{}, err
	}

	var page teachassist.AppointmentPage
	err = s.portal.Do(ctx, func(ctx context.Context) error {
		var err error
		page, err = s.portal.Appointments(ctx, date)
		return err
	})
	if err != nil {
		s.tel.ReportWarning(report_service_list, err, date)
		return teachassist.AppointmentPage{}, err
	}
	return page, nil
}

// Reasons fetches the reason form of a slot and remembers its labels so booked
// appointments can be displayed by label later.
func (s Service) Reasons(ctx context.Context, appointment teachassist.Appointment) (teachassist.ReasonForm, error) {
	err := s.portal.EnsureSession(ctx)
	if err != nil {
		return teachassist.ReasonForm{}, err
	}

	var form teachassist.ReasonForm
	err = s.portal.Do(ctx, func(ctx context.Context) error {
		var err error
		form, err = s.portal.ReasonForm(ctx, appointment)
		return err
	})
	if err != nil {
		s.tel.ReportWarning(report_service_reasons, err, appointment.Id)
		return teachassist.ReasonForm{}, err
	}

	if len(form.Options) > 0 {
		err = s.store.MergeReasonLabels(ctx, form.Labels())
		if err != nil {
			s.tel.ReportBroken(report_service_store, fmt.Errorf("merge reason labels: %w", err))
		}
	}
	return form, nil
}

func chooseReason(form teachassist.ReasonForm, reason string) (teachassist.FormOption, error) {
	if len(form.Options) == 0 {
		return teachassist.FormOption{}, nil
	}
	if strings.TrimSpace(reason) == "" {
		return form.Options[0], nil
	}
	option, ok := teachassist.SelectOption(form.Options, reason)
	if !ok {
		return teachassist.FormOption{}, fmt.Errorf("%w: %q", ErrUnknownReason, reason)
	}
	return option, nil
}

// Book reserves a slot of the day date with the reason option best matching
// reason, the first option is used when reason is empty. The appointment is only
// stored once the portal confirms it.
func (s Service) Book(ctx context.Context, date string, appointment teachassist.Appointment, reason string) (teachassist.AppointmentData, error) {
	form, err := s.Reasons(ctx, appointment)
	if err != nil {
		return teachassist.AppointmentData{}, err
	}
	option, err := chooseReason(form, reason)
	if err != nil {
		return teachassist.AppointmentData{}, err
	}

	err = s.portal.Do(ctx, func(ctx context.Context) error {
		return s.portal.Book(ctx, form, option)
	})
	if err != nil {
		s.tel.ReportWarning(report_service_book, err, appointment.Id)
		return teachassist.AppointmentData{}, err
	}

	booked, err := s.store.AddAppointment(ctx, teachassist.AppointmentData{
		Id:       appointment.Id,
		Date:     date,
		Time:     appointment.Time,
		Teacher:  appointment.CounselorName,
		Reason:   option.Label,
		BookedAt: s.time.Now().Format(time.RFC3339),
		SchoolId: s.schoolId,
	})
	if err != nil {
		// the portal already holds the booking
		s.tel.ReportBroken(report_service_store, fmt.Errorf("add appointment: %w", err), appointment.Id)
		return teachassist.AppointmentData{}, fmt.Errorf("booked but not saved: %w", err)
	}
	return booked, nil
}

// Cancel forgets a booked appointment. The portal has no cancellation form, the
// counselor has to be told separately.
func (s Service) Cancel(ctx context.Context, id string) (bool, error) {
	return s.store.RemoveAppointment(ctx, id)
}

func startOf(a teachassist.AppointmentData) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04:05", a.Date+" "+a.Time, chrono.Toronto())
}

// Upcoming returns the booked appointments starting within the given window
// from now, soonest first.
func (s Service) Upcoming(ctx context.Context, within time.Duration) ([]teachassist.AppointmentData, error) {
	stored, err := s.store.Appointments(ctx)
	if err != nil {
		return nil, err
	}

	now := s.time.Now()
	until := now.Add(within)

	type upcoming struct {
		start       time.Time
		appointment teachassist.AppointmentData
	}
	var found []upcoming
	for _, a := range stored {
		start, err := startOf(a)
		if err != nil {
			s.tel.ReportWarning(report_service_store, fmt.Errorf("parse start: %w", err), a.Id)
			continue
		}
		if start.Before(now) || start.After(until) {
			continue
		}
		found = append(found, upcoming{start: start, appointment: a})
	}
	slices.SortFunc(found, func(a, b upcoming) int {
		return a.start.Compare(b.start)
	})

	out := make([]teachassist.AppointmentData, len(found))
	for i, u := range found {
		out[i] = u.appointment
	}
	return out, nil
}
