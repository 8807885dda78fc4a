package store

import (
	"strings"

	"github.com/google/uuid"
)

// Settings are the user's notification preferences.
type Settings struct {
	NotificationsEnabled bool `json:"notificationsEnabled"`
	NotifyOnNoChanges    bool `json:"notifyOnNoChanges"`
}

func DefaultSettings() Settings {
	return Settings{
		NotificationsEnabled: true,
		NotifyOnNoChanges:    false,
	}
}

const untitled_volunteer_activity = "Untitled activity"

// VolunteerEntry is one logged block of community involvement hours.
type VolunteerEntry struct {
	Id           string  `json:"id" csv:"id" validate:"required"`
	Name         string  `json:"name" csv:"name" validate:"required"`
	Organization string  `json:"organization" csv:"organization"`
	Hours        float64 `json:"hours" csv:"hours" validate:"gt=0"`
	Date         string  `json:"date" csv:"date" validate:"omitempty,datetime=2006-01-02"`
	Description  string  `json:"description" csv:"description"`
}

// Normalize trims text fields, assigns an id to new entries and names
// unnamed ones.
func (e VolunteerEntry) Normalize() VolunteerEntry {
	e.Id = strings.TrimSpace(e.Id)
	e.Name = strings.TrimSpace(e.Name)
	e.Organization = strings.TrimSpace(e.Organization)
	e.Date = strings.TrimSpace(e.Date)
	e.Description = strings.TrimSpace(e.Description)
	if e.Id == "" {
		e.Id = uuid.NewString()
	}
	if e.Name == "" {
		e.Name = untitled_volunteer_activity
	}
	return e
}

// TotalHours sums the hours of every entry.
func TotalHours(entries []VolunteerEntry) float64 {
	var total float64
	for _, e := range entries {
		total += e.Hours
	}
	return total
}
