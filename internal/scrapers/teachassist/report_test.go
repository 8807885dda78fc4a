package teachassist

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const reportPage = `<html><body>
<h2>MPM2D1-01</h2>
<table width="100%">
<tr><td>
	<table>
	<tr><th>Term</th><th>Course</th></tr>
	<tr>
		<td><div style="font-size: 64pt; font-weight: bold">84.2%</div></td>
		<td><div style="FONT-SIZE:64pt"><span>86.0%</span></div></td>
	</tr>
	</table>
</td></tr>
</table>

<table border="1" cellpadding="3" width="100%">
<tr><th rowspan="2">Assignment</th><th>Knowledge</th><th>Thinking</th><th>Communication</th><th>Application</th><th>Other</th></tr>
<tr></tr>
<tr>
	<td rowspan="2">Unit 1 Test</td>
	<td bgcolor="ffffaa">12 / 13 = 92%<br>weight=10</td>
	<td bgcolor="#c0fea4">8/10 80%<br>weight=5</td>
	<td bgcolor="afafff"></td>
	<td bgcolor="ffd490">no mark</td>
	<td bgcolor="#DEDEDE">weight=0</td>
</tr>
<tr></tr>
<tr>
	<td rowspan="2">Quiz</td>
	<td bgcolor="afafff">4/5</td>
</tr>
<tr></tr>
<tr>
	<td rowspan="2">Upcoming project</td>
	<td bgcolor="ffffaa">weight=10</td>
	<td bgcolor="#c0fea4"></td>
</tr>
<tr></tr>
</table>

<table>
<tr><td>
	<table>
	<tr><th>Student Achievement</th></tr>
	<tr><td>
		<table>
		<tr><th>Category</th><th>Weighting</th><th></th><th>Student Achievement</th></tr>
		<tr><td>Knowledge/Understanding</td><td>35%</td><td>|</td><td>90.5%</td></tr>
		<tr><td>Thinking</td><td>15%</td><td>|</td><td>80%</td></tr>
		<tr><td>broken row</td></tr>
		</table>
	</td></tr>
	</table>
</td></tr>
</table>
</body></html>`

func TestParseGradeData(t *testing.T) {
	report := ParseGradeData(reportPage)

	expect := Report{
		Assignments: []Assignment{
			{
				Name: "Quiz",
				Categories: Categories{
					C: &Mark{Score: "4/5", Percentage: "80%"},
				},
			},
			{
				Name: "Unit 1 Test",
				Categories: Categories{
					K: &Mark{Score: "12/13", Percentage: "92%", Weight: "10"},
					T: &Mark{Score: "8/10", Percentage: "80%", Weight: "5"},
				},
			},
		},
		Summary: &Summary{
			Term:   "84.2%",
			Course: "86.0%",
			Categories: []SummaryCategory{
				{Name: "Knowledge/Understanding", Weighting: "35%", Achievement: "90.5%"},
				{Name: "Thinking", Weighting: "15%", Achievement: "80%"},
			},
		},
	}
	if diff := cmp.Diff(expect, report); diff != "" {
		t.Fatal(diff)
	}
}

func TestParseGradeDataWeightingHeader(t *testing.T) {
	expect := []SummaryCategory{
		{Name: "Knowledge", Weighting: "25%", Achievement: "90%"},
		{Name: "Thinking", Weighting: "20%", Achievement: "80%"},
	}
	body := `<tbody>
		<tr><td>Knowledge</td><td>25%</td><td></td><td>90%</td></tr>
		<tr><td>Thinking</td><td>20%</td><td></td><td>80%</td></tr>
	</tbody>`

	testCases := []struct {
		name   string
		header string
	}{
		{
			name:   "header in thead",
			header: `<thead><tr><th>Category</th><th>Weighting</th><th></th><th>Student Achievement</th></tr></thead>`,
		},
		{
			name:   "header written with td cells",
			header: `<tr><td>Category</td><td>Weighting</td><td></td><td>Student Achievement</td></tr>`,
		},
		{
			name:   "no header row",
			header: `<caption>Student Achievement</caption>`,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			document := `<table>` + test.header + body + `</table>`
			report := ParseGradeData(document)
			require.NotNil(t, report.Summary)
			if diff := cmp.Diff(expect, report.Summary.Categories); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestParseGradeDataDropsUngradedAssignments(t *testing.T) {
	document := `<table>
<tr><td rowspan="2">Essay</td><td bgcolor="ffffaa">12/13 92% weight=10</td></tr>
<tr></tr>
<tr><td rowspan="2">Lab</td><td bgcolor="c0fea4">not handed in</td><td>3/4</td></tr>
<tr></tr>
</table>`

	report := ParseGradeData(document)
	require.Nil(t, report.Summary)
	require.Len(t, report.Assignments, 1)
	require.Equal(t, "Essay", report.Assignments[0].Name)
	require.Equal(t, &Mark{Score: "12/13", Percentage: "92%", Weight: "10"}, report.Assignments[0].Categories.K)
	require.Equal(t, 1, report.Assignments[0].Categories.Populated())
}

func TestParseGradeDataEmpty(t *testing.T) {
	for _, document := range []string{"", "<html></html>", "<p>nothing here</p>"} {
		report := ParseGradeData(document)
		require.NotNil(t, report.Assignments)
		require.Empty(t, report.Assignments)
		require.Nil(t, report.Summary)
	}
}

func TestParseMark(t *testing.T) {
	testCases := []struct {
		text   string
		expect Mark
		graded bool
	}{
		{text: "12 / 13 = 92%  weight=10", expect: Mark{Score: "12/13", Percentage: "92%", Weight: "10"}, graded: true},
		{text: "7/8", expect: Mark{Score: "7/8", Percentage: "87.5%"}, graded: true},
		{text: "0/0", expect: Mark{Score: "0/0"}, graded: true},
		{text: "95%", expect: Mark{Percentage: "95%"}, graded: true},
		{text: "weight=10", graded: false},
		{text: "", graded: false},
		{text: "no mark / missing", graded: false},
	}

	for _, test := range testCases {
		mark, graded := parseMark(test.text)
		require.Equal(t, test.graded, graded, test.text)
		require.Equal(t, test.expect, mark, test.text)
	}
}

func TestCategoriesSerializeAllKeys(t *testing.T) {
	assignment := Assignment{
		Name: "Essay",
		Categories: Categories{
			K: &Mark{Score: "12/13", Percentage: "92%", Weight: "10"},
		},
	}
	serialized, err := json.Marshal(assignment)
	require.NoError(t, err)

	var decoded struct {
		Name       string         `json:"name"`
		Categories map[string]any `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(serialized, &decoded))
	require.Equal(t, "Essay", decoded.Name)
	categories := decoded.Categories
	require.Len(t, categories, 5)
	for _, key := range AllCategories {
		require.Contains(t, categories, string(key))
	}
	require.Equal(t, map[string]any{"score": "12/13", "percentage": "92%", "weight": "10"}, categories["K"])
	require.Nil(t, categories["T"])
	require.Nil(t, categories["C"])
	require.Nil(t, categories["A"])
	require.Nil(t, categories["O"])
}

func TestOverallMarkIsUnweighted(t *testing.T) {
	assignments := []Assignment{{
		Name: "Unit test",
		Categories: Categories{
			K: &Mark{Percentage: "90%", Weight: "30"},
			T: &Mark{Percentage: "60%", Weight: "10"},
		},
	}}

	mark, ok := OverallMark(assignments)
	require.True(t, ok)
	// a weighted mean of the same data is 82.5, the overall mark deliberately
	// stays the plain mean
	require.Equal(t, 75, mark)

	_, ok = OverallMark(nil)
	require.False(t, ok)
}

func TestParseCourseSummary(t *testing.T) {
	testCases := []struct {
		name     string
		document string
		expect   CourseSummary
		ok       bool
	}{
		{
			name:     "report page",
			document: reportPage,
			expect:   CourseSummary{CourseCode: "MPM2D1-01", TermMark: "84.2%", CourseMark: "86.0%"},
			ok:       true,
		},
		{
			name: "course mark only, code in body",
			document: `<body><p>Report for ENG2D1</p>
				<div style="font-size:64pt">77%</div></body>`,
			expect: CourseSummary{CourseCode: "ENG2D1", CourseMark: "77%"},
			ok:     true,
		},
		{
			name: "equal term and course marks are both kept",
			document: `<h2>SNC2D1</h2>
				<span style="font-size:64pt">80%</span><span style="font-size:64pt">80%</span>`,
			expect: CourseSummary{CourseCode: "SNC2D1", TermMark: "80%", CourseMark: "80%"},
			ok:     true,
		},
		{
			name:     "nothing",
			document: `<p>hello</p>`,
			ok:       false,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			summary, ok := ParseCourseSummary(test.document)
			require.Equal(t, test.ok, ok)
			require.Equal(t, test.expect, summary)
		})
	}
}
