package teachassist

import (
	"fmt"
	"net/url"
	"strings"
	"teachassist-backend/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/PuerkitoBio/purell"
	"github.com/antzucaro/matchr"
	"golang.org/x/net/html"
)

const link_normalization_flags = purell.FlagsSafe | purell.FlagSortQuery

// ParseAppointments extracts the bookable guidance slots and the date they are for.
// Links are resolved against base, which is the url the page was fetched from.
func ParseAppointments(document string, base *url.URL) AppointmentPage {
	page := AppointmentPage{Appointments: []Appointment{}}
	if strings.TrimSpace(document) == "" {
		return page
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return page
	}

	if value, ok := doc.Find(appointmentFormat.dateInput).First().Attr("value"); ok &&
		appointmentFormat.date.MatchString(value) {
		page.Date = appointmentFormat.date.FindString(value)
	} else {
		page.Date = appointmentFormat.date.FindString(htmlutil.Text(doc.Find("body")))
	}

	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		anchors := htmlutil.GetAnchors(base, a)
		if len(anchors) == 0 {
			return
		}
		anchor := anchors[0]
		groups := appointmentFormat.slotId.FindStringSubmatch(anchor.Url.RawQuery)
		if len(groups) < 2 {
			return
		}
		slotId := groups[1]

		slotTime, ok := normalizeTime(anchor.Name)
		if !ok {
			slotTime, ok = normalizeTime(anchor.Url.Query().Get(appointmentFormat.timeParam))
		}
		if !ok {
			return
		}

		link := purell.NormalizeURL(anchor.Url, link_normalization_flags)
		if seen[link] {
			return
		}
		seen[link] = true

		counselor := counselorOf(a)
		if counselor == "" {
			counselor = appointmentFormat.defaultName
		}
		page.Appointments = append(page.Appointments, Appointment{
			CounselorName: counselor,
			Time:          slotTime,
			Link:          link,
			Id:            fmt.Sprintf("%s-%s-%s", counselor, slotTime, slotId),
		})
	})

	return page
}

func counselorOf(a *goquery.Selection) string {
	table := a.Closest("table")
	if table.Length() == 0 {
		return ""
	}
	header := htmlutil.Text(table.Find(appointmentFormat.counselor).First())
	if header != "" {
		return header
	}
	firstRow := table.Find("tr").First()
	if firstRow.Find("a[href]").Length() > 0 {
		return ""
	}
	return htmlutil.Text(firstRow)
}

func normalizeTime(text string) (string, bool) {
	groups := appointmentFormat.time.FindStringSubmatch(text)
	if len(groups) < 3 {
		return "", false
	}
	hours := groups[1]
	if len(hours) == 1 {
		hours = "0" + hours
	}
	seconds := groups[3]
	if seconds == "" {
		seconds = "00"
	}
	return fmt.Sprintf("%s:%s:%s", hours, groups[2], seconds), true
}

// ParseReasonForm extracts the hidden fields and the reason options of the booking form.
func ParseReasonForm(document string) ReasonForm {
	form := ReasonForm{Hidden: []HiddenField{}, Options: []FormOption{}}
	if strings.TrimSpace(document) == "" {
		return form
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return form
	}

	target := doc.Find("form").FilterFunction(func(_ int, f *goquery.Selection) bool {
		return f.Find(appointmentFormat.optionInputs).Length() > 0
	}).First()
	if target.Length() == 0 {
		target = doc.Find("form").First()
	}
	if target.Length() == 0 {
		return form
	}

	form.Action = strings.TrimSpace(target.AttrOr("action", ""))
	form.Method = strings.ToUpper(strings.TrimSpace(target.AttrOr("method", "GET")))

	target.Find(appointmentFormat.hiddenInputs).Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		form.Hidden = append(form.Hidden, HiddenField{
			Name:  name,
			Value: input.AttrOr("value", ""),
		})
	})

	target.Find(appointmentFormat.optionInputs).Each(func(_ int, input *goquery.Selection) {
		name := input.AttrOr("name", "")
		value := input.AttrOr("value", "on")
		optionType := FORM_OPTION_RADIO
		if strings.EqualFold(input.AttrOr("type", ""), string(FORM_OPTION_CHECKBOX)) {
			optionType = FORM_OPTION_CHECKBOX
		}

		id := input.AttrOr("id", "")
		label := ""
		if id != "" {
			label = htmlutil.Text(target.Find(fmt.Sprintf(`label[for=%q]`, id)).First())
		}
		if label == "" {
			label = htmlutil.Text(input.Closest("label"))
		}
		if label == "" {
			label = followingText(input)
		}
		if id == "" {
			id = fmt.Sprintf("%s-%s", name, value)
		}
		if label == "" {
			label = value
		}

		form.Options = append(form.Options, FormOption{
			Id:    id,
			Name:  name,
			Value: value,
			Label: label,
			Type:  optionType,
		})
	})

	return form
}

// followingText is the text between an input and the next input or line break,
// the portal writes most option labels as bare text after the input.
func followingText(input *goquery.Selection) string {
	var text strings.Builder
	for node := input.Nodes[0].NextSibling; node != nil; node = node.NextSibling {
		if node.Type == html.ElementNode && (node.Data == "br" || node.Data == "input") {
			break
		}
		switch node.Type {
		case html.TextNode:
			text.WriteString(node.Data)
		case html.ElementNode:
			text.WriteString(htmlutil.GetText(node))
		}
	}
	return htmlutil.NormalizeText(text.String())
}

const option_similarity_threshold = 0.8

// SelectOption picks the option matching query by exact value, then by
// case-insensitive label, then by the most similar label.
func SelectOption(options []FormOption, query string) (FormOption, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return FormOption{}, false
	}
	for _, o := range options {
		if o.Value == query {
			return o, true
		}
	}
	for _, o := range options {
		if strings.EqualFold(o.Label, query) {
			return o, true
		}
	}

	best := -1
	bestSimilarity := 0.0
	for i, o := range options {
		similarity := matchr.JaroWinkler(strings.ToLower(o.Label), strings.ToLower(query), false)
		if similarity > bestSimilarity {
			best = i
			bestSimilarity = similarity
		}
	}
	if best < 0 || bestSimilarity < option_similarity_threshold {
		return FormOption{}, false
	}
	return options[best], true
}
