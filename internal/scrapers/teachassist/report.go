package teachassist

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"teachassist-backend/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ParseGradeData extracts the assignments and the summary header of a course report.
// Assignments are returned most recent first. Nothing parseable yields an empty
// assignment list and a nil summary.
func ParseGradeData(document string) Report {
	empty := Report{Assignments: []Assignment{}}
	if strings.TrimSpace(document) == "" {
		return empty
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return empty
	}

	return Report{
		Assignments: parseAssignments(doc),
		Summary:     parseSummary(doc),
	}
}

func parseAssignments(doc *goquery.Document) []Assignment {
	assignments := []Assignment{}

	doc.Find(reportFormat.assignmentAnchor).Each(func(_ int, nameCell *goquery.Selection) {
		assignment := Assignment{
			Name: htmlutil.Text(nameCell),
		}
		nameCell.SiblingsFiltered("td").Each(func(_ int, cell *goquery.Selection) {
			category, ok := categoryOf(cell)
			if !ok {
				return
			}
			mark, graded := parseMark(htmlutil.Text(cell))
			if !graded {
				return
			}
			assignment.Categories.Set(category, &mark)
		})
		if assignment.Categories.Populated() == 0 {
			return
		}
		assignments = append(assignments, assignment)
	})

	// the portal lists oldest first
	slices.Reverse(assignments)
	return assignments
}

func categoryOf(cell *goquery.Selection) (Category, bool) {
	bgcolor, ok := cell.Attr("bgcolor")
	if !ok {
		return "", false
	}
	category, ok := reportFormat.categoryColors[strings.ToLower(strings.TrimSpace(bgcolor))]
	return category, ok
}

func parseMark(text string) (Mark, bool) {
	if !strings.Contains(text, "/") && !strings.Contains(text, "%") {
		return Mark{}, false
	}

	var mark Mark
	if groups := reportFormat.score.FindStringSubmatch(text); len(groups) > 2 {
		mark.Score = groups[1] + "/" + groups[2]
	}
	if groups := reportFormat.percentage.FindStringSubmatch(text); len(groups) > 1 {
		mark.Percentage = groups[1] + "%"
	} else if mark.Score != "" {
		mark.Percentage = percentageFromScore(mark.Score)
	}
	if groups := reportFormat.weight.FindStringSubmatch(text); len(groups) > 1 {
		mark.Weight = groups[1]
	}

	if mark.Score == "" && mark.Percentage == "" {
		return Mark{}, false
	}
	return mark, true
}

func percentageFromScore(score string) string {
	parts := strings.SplitN(score, "/", 2)
	if len(parts) != 2 {
		return ""
	}
	numerator, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return ""
	}
	denominator, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || denominator == 0 {
		return ""
	}
	percent := math.Round(numerator/denominator*1000) / 10
	return strconv.FormatFloat(percent, 'f', -1, 64) + "%"
}

func isTopLevelTable(node *html.Node) bool {
	for parent := node.Parent; parent != nil; parent = parent.Parent {
		if parent.Type == html.ElementNode && parent.Data == "table" {
			return false
		}
	}
	return true
}

// markElements finds the elements whose inline style renders the big mark numbers.
func markElements(sel *goquery.Selection) []string {
	var marks []string
	sel.Find("[style]").Each(func(_ int, el *goquery.Selection) {
		style, _ := el.Attr("style")
		if !strings.Contains(htmlutil.NormalizeStyle(style), reportFormat.markStyle) {
			return
		}
		// a styled element nested in another styled element is the same mark
		if el.ParentsFiltered("[style]").FilterFunction(func(_ int, p *goquery.Selection) bool {
			style, _ := p.Attr("style")
			return strings.Contains(htmlutil.NormalizeStyle(style), reportFormat.markStyle)
		}).Length() > 0 {
			return
		}
		marks = append(marks, htmlutil.Text(el))
	})
	return marks
}

// splitMarks applies the term/course rule: two marks are term then course,
// one mark is the course mark alone (end of year reports omit the term mark).
func splitMarks(marks []string) (term string, course string, ok bool) {
	switch {
	case len(marks) >= 2:
		return marks[0], marks[1], true
	case len(marks) == 1:
		return "", marks[0], true
	}
	return "", "", false
}

func parseSummary(doc *goquery.Document) *Summary {
	summary := Summary{Categories: []SummaryCategory{}}
	found := false

	doc.Find("table").FilterFunction(func(_ int, table *goquery.Selection) bool {
		return isTopLevelTable(table.Nodes[0])
	}).EachWithBreak(func(_ int, table *goquery.Selection) bool {
		if !strings.Contains(htmlutil.Text(table), reportFormat.marksTableText) {
			return true
		}
		term, course, ok := splitMarks(markElements(table))
		if !ok {
			return true
		}
		summary.Term = term
		summary.Course = course
		found = true
		return false
	})

	// the innermost table holding the text is the one with the rows, in document
	// order descendants come after their ancestors
	var weighting *goquery.Selection
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		if strings.Contains(htmlutil.Text(table), reportFormat.weightingText) {
			weighting = table
		}
	})
	if weighting != nil {
		rows := weighting.ChildrenFiltered("tbody").ChildrenFiltered("tr").AddSelection(weighting.ChildrenFiltered("tr"))
		rows.Each(func(_ int, row *goquery.Selection) {
			// header rows are made of th cells, or repeat the table caption in td cells
			cells := row.ChildrenFiltered("td")
			if cells.Length() <= reportFormat.weightingAchievement {
				return
			}
			if htmlutil.Text(cells.Eq(reportFormat.weightingAchievement)) == reportFormat.weightingText {
				return
			}
			name := htmlutil.Text(cells.Eq(reportFormat.weightingName))
			if name == "" {
				return
			}
			summary.Categories = append(summary.Categories, SummaryCategory{
				Name:        name,
				Weighting:   htmlutil.Text(cells.Eq(reportFormat.weightingWeight)),
				Achievement: htmlutil.Text(cells.Eq(reportFormat.weightingAchievement)),
			})
		})
		if len(summary.Categories) > 0 {
			found = true
		}
	}

	if !found {
		return nil
	}
	return &summary
}

// OverallMark is the mark shown next to a report: the unweighted mean of every
// graded category percentage, rounded to the nearest integer. Weights are ignored
// here, unlike the per-assignment scores used for change detection.
func OverallMark(assignments []Assignment) (int, bool) {
	var sum float64
	var count int
	for _, a := range assignments {
		for _, key := range AllCategories {
			mark := a.Categories.Get(key)
			if mark == nil {
				continue
			}
			percent, ok := mark.PercentValue()
			if !ok {
				continue
			}
			sum += percent
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return int(math.Round(sum / float64(count))), true
}
