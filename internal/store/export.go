package store

import (
	"io"
	"teachassist-backend/internal/scrapers/teachassist"

	"github.com/gocarina/gocsv"
)

// ExportCourses writes courses as csv with a header row.
func ExportCourses(w io.Writer, courses []teachassist.Course) error {
	if courses == nil {
		courses = []teachassist.Course{}
	}
	return gocsv.Marshal(courses, w)
}

// ExportVolunteerEntries writes volunteer entries as csv with a header row.
func ExportVolunteerEntries(w io.Writer, entries []VolunteerEntry) error {
	if entries == nil {
		entries = []VolunteerEntry{}
	}
	return gocsv.Marshal(entries, w)
}
