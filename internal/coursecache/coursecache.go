// Package coursecache reconciles freshly scraped courses against the previously
// cached list. The portal transiently hides marks and links, the cache is the floor
// that keeps the last known values visible.
package coursecache

import (
	"fmt"
	"teachassist-backend/internal/scrapers/teachassist"
)

type compositeKey struct {
	code     string
	semester int
}

func compositeOf(c teachassist.Course) compositeKey {
	return compositeKey{code: c.CourseCode, semester: c.Semester}
}

// Key is the stable persistence key of a course, used to store its report.
func Key(c teachassist.Course) string {
	if c.SubjectId != "" {
		return c.SubjectId
	}
	return fmt.Sprintf("%s-%d", c.CourseCode, c.Semester)
}

// Index is a lookup over cached courses.
type Index struct {
	courses     []teachassist.Course
	bySubjectId map[string]int
	byComposite map[compositeKey]int
	// a semester 0 entry wins over term entries of the same code
	byCode map[string]int
}

func NewIndex(cached []teachassist.Course) Index {
	index := Index{
		courses:     cached,
		bySubjectId: make(map[string]int, len(cached)),
		byComposite: make(map[compositeKey]int, len(cached)),
		byCode:      make(map[string]int, len(cached)),
	}
	for i, c := range cached {
		if c.SubjectId != "" {
			if _, exists := index.bySubjectId[c.SubjectId]; !exists {
				index.bySubjectId[c.SubjectId] = i
			}
		}
		key := compositeOf(c)
		if _, exists := index.byComposite[key]; !exists {
			index.byComposite[key] = i
		}
		existing, exists := index.byCode[c.CourseCode]
		if !exists || (cached[existing].Semester != 0 && c.Semester == 0) {
			index.byCode[c.CourseCode] = i
		}
	}
	return index
}

func (index Index) find(course teachassist.Course) (int, bool) {
	if course.SubjectId != "" {
		if i, ok := index.bySubjectId[course.SubjectId]; ok {
			return i, true
		}
	}
	if i, ok := index.byComposite[compositeOf(course)]; ok {
		return i, true
	}
	i, ok := index.byCode[course.CourseCode]
	if !ok {
		return 0, false
	}
	// a full year record may stand in for any term, a term record must not leak
	// into another term
	if course.Semester == 0 || index.courses[i].Semester == 0 {
		return i, true
	}
	return 0, false
}

// FindMatch returns the cached counterpart of a course by subject id, then by
// code and semester, then by code where one side is a full year record.
func FindMatch(course teachassist.Course, index Index) (teachassist.Course, bool) {
	i, ok := index.find(course)
	if !ok {
		return teachassist.Course{}, false
	}
	return index.courses[i], true
}

// HasVisibleGrade reports whether the portal showed a mark for the course.
func HasVisibleGrade(c teachassist.Course) bool {
	return c.Grade != "" && c.Grade != teachassist.SeeTeacher
}

func hadVisibleGrade(c teachassist.Course) bool {
	return HasVisibleGrade(c) || c.FinalMark != ""
}

func floor(value, cached string) string {
	if value == "" {
		return cached
	}
	return value
}

// Merge reconciles fresh against cached. Fresh courses come first in their
// original order, followed by the cached courses the portal stopped listing, both
// of which may carry IsGradeStale. Neither input is mutated.
func Merge(fresh, cached []teachassist.Course) []teachassist.Course {
	index := NewIndex(cached)
	matched := make([]bool, len(cached))

	merged := make([]teachassist.Course, 0, len(fresh)+len(cached))
	for _, course := range fresh {
		course.IsGradeStale = false

		i, ok := index.find(course)
		if !ok {
			merged = append(merged, course)
			continue
		}
		matched[i] = true
		previous := cached[i]

		course.SubjectId = floor(course.SubjectId, previous.SubjectId)
		course.ReportUrl = floor(course.ReportUrl, previous.ReportUrl)
		course.MidtermMark = floor(course.MidtermMark, previous.MidtermMark)
		course.FinalMark = floor(course.FinalMark, previous.FinalMark)

		if !HasVisibleGrade(course) && hadVisibleGrade(previous) {
			course.Grade = previous.Grade
			if !HasVisibleGrade(previous) {
				course.Grade = previous.FinalMark
			}
			course.HasGrade = true
			course.IsGradeStale = true
		}
		merged = append(merged, course)
	}

	freshSubjectIds := map[string]bool{}
	freshComposites := map[compositeKey]bool{}
	freshFullYearCodes := map[string]bool{}
	for _, course := range fresh {
		if course.SubjectId != "" {
			freshSubjectIds[course.SubjectId] = true
		}
		freshComposites[compositeOf(course)] = true
		if course.Semester == 0 {
			freshFullYearCodes[course.CourseCode] = true
		}
	}

	for i, course := range cached {
		if matched[i] {
			continue
		}
		if course.SubjectId != "" && freshSubjectIds[course.SubjectId] {
			continue
		}
		if freshFullYearCodes[course.CourseCode] || freshComposites[compositeOf(course)] {
			continue
		}
		course.IsGradeStale = true
		merged = append(merged, course)
	}

	return merged
}
