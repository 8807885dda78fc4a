package teachassist

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"teachassist-backend/pkg/htmlutil"
)

// ParseCourses extracts the enrolled courses from the home page.
//
// The course table is the one table whose width is 85%, each of its rows is a
// candidate course made of three cells: course info, date range and grade.
// Rows that fail to produce a valid course are dropped without failing the parse.
func ParseCourses(document string) (result CoursesResult) {
	if strings.TrimSpace(document) == "" {
		return CoursesResult{Success: false, Data: []Course{}, Error: "empty html"}
	}

	defer func() {
		if r := recover(); r != nil {
			result = CoursesResult{
				Success: false,
				Data:    []Course{},
				Error:   fmt.Sprintf("parse courses: %v", r),
			}
		}
	}()

	p := courseListParser{currentCell: -1}
	for _, tag := range htmlutil.Stream(document) {
		p.consume(tag)
	}
	p.finishRow()

	if !p.tableFound {
		return CoursesResult{
			Success: false,
			Data:    []Course{},
			Error:   "course table not found",
		}
	}
	return CoursesResult{Success: true, Data: p.courses}
}

type courseRow struct {
	hasBgcolor bool
	cells      []*strings.Builder
	subjectId  string
	reportUrl  string
}

func (r *courseRow) cell(i int) (string, bool) {
	if i >= len(r.cells) {
		return "", false
	}
	return htmlutil.NormalizeText(r.cells[i].String()), true
}

type courseListParser struct {
	// depth of all currently open tables
	tableDepth int
	// tableDepth of the course table, 0 when outside of it
	courseTableDepth int
	tableFound       bool

	row *courseRow
	// index of the cell text is currently written to, -1 outside of cells
	currentCell   int
	headerSkipped bool
	courses       []Course
}

func (p *courseListParser) atRowLevel() bool {
	return p.courseTableDepth > 0 && p.tableDepth == p.courseTableDepth
}

func (p *courseListParser) consume(tag htmlutil.Tag) {
	switch tag.Kind {
	case htmlutil.TAG_OPEN:
		p.open(tag)
	case htmlutil.TAG_CLOSE:
		p.close(tag)
	case htmlutil.TAG_TEXT:
		if p.row != nil && p.currentCell >= 0 {
			p.row.cells[p.currentCell].WriteString(tag.Text)
		}
	}
}

func (p *courseListParser) open(tag htmlutil.Tag) {
	switch tag.Name {
	case "table":
		p.tableDepth++
		width, _ := tag.Attr("width")
		if !p.tableFound && strings.TrimSpace(width) == courseListFormat.tableWidth {
			p.tableFound = true
			p.courseTableDepth = p.tableDepth
		}
	case "tr":
		if !p.atRowLevel() {
			return
		}
		p.finishRow()
		_, hasBgcolor := tag.Attr("bgcolor")
		p.row = &courseRow{hasBgcolor: hasBgcolor}
		p.currentCell = -1
	case "td", "th":
		if !p.atRowLevel() || p.row == nil {
			return
		}
		p.row.cells = append(p.row.cells, &strings.Builder{})
		p.currentCell = len(p.row.cells) - 1
	case "a":
		// report links are only meaningful inside the grade cell
		if p.row == nil || p.currentCell != 2 {
			return
		}
		href, ok := tag.Attr("href")
		if !ok {
			return
		}
		groups := courseListFormat.subjectId.FindStringSubmatch(href)
		if len(groups) < 2 {
			return
		}
		p.row.subjectId = groups[1]
		p.row.reportUrl = strings.TrimSpace(href)
	case "br":
		if p.row != nil && p.currentCell >= 0 {
			p.row.cells[p.currentCell].WriteByte(' ')
		}
	}
}

func (p *courseListParser) close(tag htmlutil.Tag) {
	switch tag.Name {
	case "table":
		if p.tableDepth == 0 {
			return
		}
		if p.atRowLevel() {
			p.finishRow()
			p.courseTableDepth = 0
		}
		p.tableDepth--
	case "tr":
		if p.atRowLevel() {
			p.finishRow()
		}
	case "td", "th":
		if p.atRowLevel() && p.row != nil {
			p.currentCell = -1
		}
	}

	// block-level closes inside a cell separate words
	if p.row != nil && p.currentCell >= 0 && blockTags[tag.Name] {
		p.row.cells[p.currentCell].WriteByte(' ')
	}
}

var blockTags = map[string]bool{
	"div":   true,
	"p":     true,
	"li":    true,
	"table": true,
	"tr":    true,
	"td":    true,
	"th":    true,
}

func (p *courseListParser) finishRow() {
	row := p.row
	p.row = nil
	p.currentCell = -1
	if row == nil {
		return
	}

	if !row.hasBgcolor && len(p.courses) == 0 && !p.headerSkipped {
		p.headerSkipped = true
		return
	}

	course, ok := buildCourse(row)
	if !ok {
		return
	}
	p.courses = append(p.courses, course)
}

func buildCourse(row *courseRow) (Course, bool) {
	infoText, ok := row.cell(0)
	if !ok {
		return Course{}, false
	}
	dateText, ok := row.cell(1)
	if !ok {
		return Course{}, false
	}
	gradeText, ok := row.cell(2)
	if !ok {
		return Course{}, false
	}

	var course Course

	info := courseListFormat.info.FindStringSubmatch(infoText)
	if len(info) < 5 {
		return Course{}, false
	}
	course.CourseCode = strings.TrimSpace(info[1])
	course.CourseName = strings.TrimSpace(info[2])
	course.Block = strings.TrimSpace(info[3])
	course.Room = strings.TrimSpace(info[4])
	if course.CourseCode == "" {
		return Course{}, false
	}
	if course.CourseName == "" || strings.Contains(course.CourseName, courseListFormat.blockMarker) {
		course.CourseName = course.CourseCode
	}
	if strings.Contains(strings.ToLower(course.CourseCode), courseListFormat.lunchMarker) {
		course.CourseName = courseListFormat.lunchName
	}

	dates := courseListFormat.dateRange.FindStringSubmatch(dateText)
	if len(dates) < 4 {
		return Course{}, false
	}
	course.StartDate = dates[1]
	course.EndDate = dates[3]
	course.Semester = semesterFromMonth(dates[2])

	course.SubjectId = row.subjectId
	course.ReportUrl = row.reportUrl
	course.Grade, course.HasGrade = gradeFromText(gradeText, row.subjectId != "" || row.reportUrl != "")

	if groups := courseListFormat.midtermMark.FindStringSubmatch(gradeText); len(groups) > 1 {
		course.MidtermMark = groups[1]
	}
	if groups := courseListFormat.finalMark.FindStringSubmatch(gradeText); len(groups) > 1 {
		course.FinalMark = groups[1]
	}

	return course, true
}

func semesterFromMonth(month string) int {
	m, err := strconv.Atoi(month)
	if err != nil {
		return 2
	}
	if slices.Contains(courseListFormat.firstSemesterMonths, m) {
		return 1
	}
	return 2
}

func gradeFromText(text string, hasLink bool) (grade string, hasGrade bool) {
	switch {
	case text == "":
		return "", false
	case strings.Contains(text, courseListFormat.seeTeacher):
		return SeeTeacher, false
	case hasLink:
		groups := courseListFormat.currentMark.FindStringSubmatch(text)
		if len(groups) > 1 {
			return groups[1], true
		}
		return text, true
	default:
		return text, true
	}
}
