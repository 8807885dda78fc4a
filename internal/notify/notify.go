// Package notify delivers grade change descriptors. It renders the text of a
// change but decides nothing about when changes happen.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"teachassist-backend/internal/components/telemetry"

	"github.com/google/uuid"
)

type Kind string

const (
	// KIND_HIDDEN is a course whose mark the portal stopped showing.
	KIND_HIDDEN Kind = "hidden"
	// KIND_NUMERIC is a course whose mark moved by at least 0.1.
	KIND_NUMERIC Kind = "numeric"
	// KIND_NONE is the confirmation sent when a check found nothing.
	KIND_NONE Kind = "none"
)

// Change describes one course level change.
type Change struct {
	ID            string `json:"id"`
	CourseCode    string `json:"courseCode"`
	CourseName    string `json:"courseName"`
	Kind          Kind   `json:"kind"`
	Grade         string `json:"grade"`
	PreviousGrade string `json:"previousGrade"`
	// AssignmentName is the first assignment that was added or rescored, if the
	// course report could be compared.
	AssignmentName  string   `json:"assignmentName,omitempty"`
	AssignmentScore *float64 `json:"assignmentScore,omitempty"`
}

func NewChange(kind Kind) Change {
	return Change{ID: uuid.NewString(), Kind: kind}
}

func (c Change) Title() string {
	switch c.Kind {
	case KIND_HIDDEN:
		return fmt.Sprintf("%s: mark hidden", c.CourseName)
	case KIND_NUMERIC:
		return fmt.Sprintf("%s: %s%% → %s%%", c.CourseName, c.PreviousGrade, c.Grade)
	}
	return "No grade changes"
}

func (c Change) Body() string {
	switch c.Kind {
	case KIND_HIDDEN:
		return fmt.Sprintf("Your teacher hid the mark for %s, the last known mark was %s%%.", c.CourseCode, c.PreviousGrade)
	case KIND_NUMERIC:
		if c.AssignmentName == "" {
			return fmt.Sprintf("Your mark in %s changed from %s%% to %s%%.", c.CourseCode, c.PreviousGrade, c.Grade)
		}
		if c.AssignmentScore == nil {
			return fmt.Sprintf("%s was updated in %s.", c.AssignmentName, c.CourseCode)
		}
		return fmt.Sprintf(
			"%s was marked %s%% in %s.",
			c.AssignmentName,
			strconv.FormatFloat(*c.AssignmentScore, 'f', 1, 64),
			c.CourseCode,
		)
	}
	return "Checked TeachAssist, nothing changed."
}

// Notifier is the delivery collaborator of the change detector.
type Notifier interface {
	Notify(ctx context.Context, changes []Change) error
}

const report_log_notify = "log.notify"

// LogNotifier writes changes to telemetry.
type LogNotifier struct {
	tel telemetry.API
}

func NewLogNotifier(tel telemetry.API) LogNotifier {
	return LogNotifier{tel: telemetry.NewScopedAPI("notify", tel)}
}

func (n LogNotifier) Notify(ctx context.Context, changes []Change) error {
	for _, change := range changes {
		n.tel.ReportDebug(
			report_log_notify,
			telemetry.KV{Key: "title", Value: change.Title()},
			telemetry.KV{Key: "body", Value: change.Body()},
		)
	}
	n.tel.ReportCount(report_log_notify, int64(len(changes)))
	return nil
}

type multi []Notifier

// Multi delivers to every notifier, a failing notifier does not stop the others.
func Multi(notifiers ...Notifier) Notifier {
	return multi(notifiers)
}

func (m multi) Notify(ctx context.Context, changes []Change) error {
	var errs []error
	for _, n := range m {
		err := n.Notify(ctx, changes)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
