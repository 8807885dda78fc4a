package teachassist

import (
	"strings"
	"teachassist-backend/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ParseCourseSummary is a lightweight pass over a report page that only pulls the
// course code and the big term/course marks. It is independent of ParseGradeData so
// compact views do not pay for assignment extraction.
func ParseCourseSummary(document string) (CourseSummary, bool) {
	if strings.TrimSpace(document) == "" {
		return CourseSummary{}, false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return CourseSummary{}, false
	}

	var summary CourseSummary

	heading := htmlutil.Text(doc.Find("h2").First())
	if groups := reportFormat.courseCode.FindStringSubmatch(heading); len(groups) > 1 {
		summary.CourseCode = groups[1]
	} else if groups := reportFormat.courseCode.FindStringSubmatch(htmlutil.Text(doc.Find("body"))); len(groups) > 1 {
		summary.CourseCode = groups[1]
	}

	var marks []string
	doc.Find("[style]").Each(func(_ int, el *goquery.Selection) {
		style, _ := el.Attr("style")
		if !strings.Contains(htmlutil.NormalizeStyle(style), reportFormat.markStyle) {
			return
		}
		if hasMarkAncestor(el.Nodes[0]) {
			return
		}
		text := htmlutil.Text(el)
		if text == "" {
			return
		}
		marks = append(marks, text)
	})
	summary.TermMark, summary.CourseMark, _ = splitMarks(marks)

	if summary.CourseCode == "" && summary.CourseMark == "" {
		return CourseSummary{}, false
	}
	return summary, true
}

func hasMarkAncestor(node *html.Node) bool {
	for parent := node.Parent; parent != nil; parent = parent.Parent {
		style, ok := htmlutil.Attr(parent, "style")
		if ok && strings.Contains(htmlutil.NormalizeStyle(style), reportFormat.markStyle) {
			return true
		}
	}
	return false
}
