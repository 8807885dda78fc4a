package teachassist

import "regexp"

// The portal has no schema, every structural cue the parsers rely on lives here so
// format drift upstream is a change to these tables and not to the parsers.

var courseListFormat = struct {
	// the course table is the only table with this width
	tableWidth string
	// <code> : <name> Block: P<block> - rm. <room>
	info *regexp.Regexp
	// YYYY-MM-DD ~ YYYY-MM-DD
	dateRange   *regexp.Regexp
	subjectId   *regexp.Regexp
	currentMark *regexp.Regexp
	midtermMark *regexp.Regexp
	finalMark   *regexp.Regexp
	seeTeacher  string
	// a course name containing this is really the rest of the info line
	blockMarker string
	lunchMarker string
	lunchName   string
	// start months of the first semester
	firstSemesterMonths []int
}{
	tableWidth:          "85%",
	info:                regexp.MustCompile(`^\s*([^:]+?)\s*:\s*(.*)\s*Block:\s*P?(\w*)\s*-\s*rm\.\s*(.*?)\s*$`),
	dateRange:           regexp.MustCompile(`(\d{4}-(\d{2})-\d{2})\s*~\s*(\d{4}-\d{2}-\d{2})`),
	subjectId:           regexp.MustCompile(`subject_id=(\d{6})(?:\D|$)`),
	currentMark:         regexp.MustCompile(`(?i)current mark\s*=\s*(\d+(?:\.\d+)?)\s*%`),
	midtermMark:         regexp.MustCompile(`(?i)mid-?\s*term mark\s*[:=]?\s*(\d+(?:\.\d+)?)\s*%`),
	finalMark:           regexp.MustCompile(`(?i)final mark\s*[:=]?\s*(\d+(?:\.\d+)?)\s*%`),
	seeTeacher:          "Please see teacher for current status",
	blockMarker:         "Block",
	lunchMarker:         "lunch",
	lunchName:           "Lunch",
	firstSemesterMonths: []int{8, 9},
}

var reportFormat = struct {
	assignmentAnchor string
	// background colors of category cells, keys are lowercase
	categoryColors map[string]Category
	score          *regexp.Regexp
	percentage     *regexp.Regexp
	weight         *regexp.Regexp
	marksTableText string
	markStyle      string
	weightingText  string
	// cell indices of the weighting table rows, cell 2 is decorative
	weightingName        int
	weightingWeight      int
	weightingAchievement int
	courseCode           *regexp.Regexp
}{
	assignmentAnchor: `td[rowspan="2"]`,
	categoryColors: map[string]Category{
		"ffffaa":  CATEGORY_KNOWLEDGE,
		"#ffffaa": CATEGORY_KNOWLEDGE,
		"c0fea4":  CATEGORY_THINKING,
		"#c0fea4": CATEGORY_THINKING,
		"afafff":  CATEGORY_COMMUNICATION,
		"#afafff": CATEGORY_COMMUNICATION,
		"ffd490":  CATEGORY_APPLICATION,
		"#ffd490": CATEGORY_APPLICATION,
		"dedede":  CATEGORY_OTHER,
		"#dedede": CATEGORY_OTHER,
	},
	score:                regexp.MustCompile(`(\d+(?:\.\d+)?)\s*/\s*(\d+(?:\.\d+)?)`),
	percentage:           regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`),
	weight:               regexp.MustCompile(`(?i)weight\s*=\s*(\d+(?:\.\d+)?)`),
	marksTableText:       "Term",
	markStyle:            "font-size:64pt",
	weightingText:        "Student Achievement",
	weightingName:        0,
	weightingWeight:      1,
	weightingAchievement: 3,
	courseCode:           regexp.MustCompile(`\b([A-Z]{3,4}[0-9][A-Z0-9]{1,3}(?:-[A-Z0-9]{1,3})?)\b`),
}

var appointmentFormat = struct {
	dateInput   string
	date        *regexp.Regexp
	slotId      *regexp.Regexp
	time        *regexp.Regexp
	timeParam   string
	counselor   string
	defaultName string
	// the form that holds booking reasons has inputs of these types
	optionInputs string
	hiddenInputs string
}{
	dateInput:    `input[name="inputDate"]`,
	date:         regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`),
	slotId:       regexp.MustCompile(`slot_id=(\d+)`),
	time:         regexp.MustCompile(`\b(\d{1,2}):(\d{2})(?::(\d{2}))?\b`),
	timeParam:    "time",
	counselor:    "th",
	defaultName:  default_appointment_teacher,
	optionInputs: `input[type="radio"], input[type="checkbox"]`,
	hiddenInputs: `input[type="hidden"]`,
}

var sessionFormat = struct {
	passwordInput string
	loginPhrases  []string
	expired       *regexp.Regexp
	confirmation  *regexp.Regexp
}{
	passwordInput: `input[type="password"]`,
	loginPhrases:  []string{"log in", "login"},
	expired:       regexp.MustCompile(`(?i)session (has )?expired|please log ?in again`),
	confirmation:  regexp.MustCompile(`(?i)(appointment (has been |was )?(successfully )?booked|booking confirmed|successfully booked)`),
}
