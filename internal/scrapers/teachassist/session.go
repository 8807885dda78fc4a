package teachassist

import (
	"errors"
	"strings"
	"teachassist-backend/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrNoSession is returned when there is neither a stored session nor
	// credentials to create one.
	ErrNoSession = errors.New("teachassist: no session")
	// ErrSessionRequired is returned when the portal answered with its login page
	// instead of the requested page.
	ErrSessionRequired = errors.New("teachassist: session required")
	// ErrLoginFailed is returned when credentials were posted and the portal still
	// asks to log in.
	ErrLoginFailed = errors.New("teachassist: login failed")
	// ErrBookingNotConfirmed is returned when a booking was submitted but the
	// response carries no confirmation.
	ErrBookingNotConfirmed = errors.New("teachassist: booking not confirmed")
)

// RequiresLogin reports whether a fetched page is the login page or a session
// expiry notice.
func RequiresLogin(document string) bool {
	if strings.TrimSpace(document) == "" {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return false
	}
	if doc.Find(sessionFormat.passwordInput).Length() > 0 {
		return true
	}

	loginForm := false
	doc.Find("form").EachWithBreak(func(_ int, form *goquery.Selection) bool {
		text := strings.ToLower(htmlutil.Text(form))
		form.Find("input[type=submit], button").Each(func(_ int, submit *goquery.Selection) {
			text += " " + strings.ToLower(submit.AttrOr("value", ""))
		})
		for _, phrase := range sessionFormat.loginPhrases {
			if strings.Contains(text, phrase) {
				loginForm = true
				return false
			}
		}
		return true
	})
	if loginForm {
		return true
	}

	return sessionFormat.expired.MatchString(htmlutil.Text(doc.Find("body")))
}

// BookingConfirmed reports whether a booking response carries the portal's
// confirmation message.
func BookingConfirmed(document string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return false
	}
	return sessionFormat.confirmation.MatchString(htmlutil.Text(doc.Find("body")))
}
