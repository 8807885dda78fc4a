package teachassist

import (
	"strconv"
	"strings"
)

// SeeTeacher is the grade recorded when the portal hides a mark behind
// "Please see teacher for current status".
const SeeTeacher = "See teacher"

// Course is one enrollment record for one term. The json names are the persisted
// format and must not change between versions.
type Course struct {
	CourseCode string `json:"courseCode" csv:"course_code"`
	CourseName string `json:"courseName" csv:"course_name"`
	Block      string `json:"block" csv:"block"`
	Room       string `json:"room" csv:"room"`
	StartDate  string `json:"startDate" csv:"start_date"`
	EndDate    string `json:"endDate" csv:"end_date"`
	// Semester is 1 or 2, 0 means full-year or unscoped.
	Semester int    `json:"semester" csv:"semester"`
	Grade    string `json:"grade" csv:"grade"`
	HasGrade bool   `json:"hasGrade" csv:"has_grade"`

	MidtermMark  string `json:"midtermMark,omitempty" csv:"midterm_mark"`
	FinalMark    string `json:"finalMark,omitempty" csv:"final_mark"`
	SubjectId    string `json:"subjectId,omitempty" csv:"subject_id"`
	ReportUrl    string `json:"reportUrl,omitempty" csv:"report_url"`
	IsGradeStale bool   `json:"isGradeStale,omitempty" csv:"stale"`
}

// GradeValue parses the grade as a number.
func (c Course) GradeValue() (float64, bool) {
	return parseNumber(c.Grade)
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// CoursesResult is the outcome of ParseCourses, it never carries a panic or error
// past the parser boundary.
type CoursesResult struct {
	Success bool
	Data    []Course
	Error   string
}

// Category is one of the five achievement categories of the report format.
type Category string

const (
	CATEGORY_KNOWLEDGE     Category = "K"
	CATEGORY_THINKING      Category = "T"
	CATEGORY_COMMUNICATION Category = "C"
	CATEGORY_APPLICATION   Category = "A"
	CATEGORY_OTHER         Category = "O"
)

var AllCategories = []Category{
	CATEGORY_KNOWLEDGE,
	CATEGORY_THINKING,
	CATEGORY_COMMUNICATION,
	CATEGORY_APPLICATION,
	CATEGORY_OTHER,
}

// Mark is a graded category of a single assignment.
type Mark struct {
	Score      string `json:"score"`
	Percentage string `json:"percentage"`
	Weight     string `json:"weight"`
}

func (m Mark) PercentValue() (float64, bool) {
	return parseNumber(m.Percentage)
}

func (m Mark) WeightValue() (float64, bool) {
	return parseNumber(m.Weight)
}

// Categories always serializes all five keys, ungraded categories are null.
type Categories struct {
	K *Mark `json:"K"`
	T *Mark `json:"T"`
	C *Mark `json:"C"`
	A *Mark `json:"A"`
	O *Mark `json:"O"`
}

func (c *Categories) slot(key Category) **Mark {
	switch key {
	case CATEGORY_KNOWLEDGE:
		return &c.K
	case CATEGORY_THINKING:
		return &c.T
	case CATEGORY_COMMUNICATION:
		return &c.C
	case CATEGORY_APPLICATION:
		return &c.A
	case CATEGORY_OTHER:
		return &c.O
	}
	return nil
}

func (c Categories) Get(key Category) *Mark {
	slot := c.slot(key)
	if slot == nil {
		return nil
	}
	return *slot
}

func (c *Categories) Set(key Category, mark *Mark) {
	slot := c.slot(key)
	if slot == nil {
		return
	}
	*slot = mark
}

// Populated is the number of graded categories.
func (c Categories) Populated() int {
	count := 0
	for _, key := range AllCategories {
		if c.Get(key) != nil {
			count++
		}
	}
	return count
}

type Assignment struct {
	Name       string     `json:"name"`
	Categories Categories `json:"categories"`
}

type SummaryCategory struct {
	Name        string `json:"name"`
	Weighting   string `json:"weighting"`
	Achievement string `json:"achievement"`
}

// Summary is the header of a course report, marks are the raw strings shown on the page.
type Summary struct {
	Term       string            `json:"term"`
	Course     string            `json:"course"`
	Categories []SummaryCategory `json:"categories"`
}

// Report is everything the detailed report page of a course yields.
type Report struct {
	Assignments []Assignment `json:"assignments"`
	Summary     *Summary     `json:"summary"`
}

// CourseSummary is the compact view of a report page.
type CourseSummary struct {
	CourseCode string `json:"courseCode"`
	TermMark   string `json:"termMark"`
	CourseMark string `json:"courseMark"`
}

// Appointment is a bookable guidance slot, it is rebuilt on every parse and never cached.
type Appointment struct {
	CounselorName string `json:"counselorName"`
	// Time is formatted HH:MM:SS.
	Time string `json:"time"`
	Link string `json:"link"`
	Id   string `json:"id"`
}

type AppointmentPage struct {
	Date         string        `json:"date"`
	Appointments []Appointment `json:"appointments"`
}

const (
	default_appointment_teacher = "Guidance Counselor"
	default_appointment_subject = "Guidance"
	default_appointment_reason  = "Not specified"
)

// AppointmentData is a booked appointment.
type AppointmentData struct {
	Id       string `json:"id" validate:"required"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Time     string `json:"time" validate:"required,datetime=15:04:05"`
	Teacher  string `json:"teacher"`
	Subject  string `json:"subject"`
	Reason   string `json:"reason"`
	BookedAt string `json:"bookedAt" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	SchoolId string `json:"schoolId"`
}

// Normalize fills blank display fields with their placeholders.
func (a AppointmentData) Normalize() AppointmentData {
	a.Teacher = strings.TrimSpace(a.Teacher)
	a.Subject = strings.TrimSpace(a.Subject)
	a.Reason = strings.TrimSpace(a.Reason)
	if a.Teacher == "" {
		a.Teacher = default_appointment_teacher
	}
	if a.Subject == "" {
		a.Subject = default_appointment_subject
	}
	if a.Reason == "" {
		a.Reason = default_appointment_reason
	}
	return a
}

type FormOptionType string

const (
	FORM_OPTION_RADIO    FormOptionType = "radio"
	FORM_OPTION_CHECKBOX FormOptionType = "checkbox"
)

type FormOption struct {
	Id    string         `json:"id"`
	Name  string         `json:"name"`
	Value string         `json:"value"`
	Label string         `json:"label"`
	Type  FormOptionType `json:"type"`
}

type HiddenField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ReasonForm is the dynamic form that asks for the reason of an appointment.
type ReasonForm struct {
	Action  string        `json:"action"`
	Method  string        `json:"method"`
	Hidden  []HiddenField `json:"hidden"`
	Options []FormOption  `json:"options"`
}

// Labels maps option values to their labels.
func (f ReasonForm) Labels() map[string]string {
	labels := make(map[string]string, len(f.Options))
	for _, o := range f.Options {
		labels[o.Value] = o.Label
	}
	return labels
}
