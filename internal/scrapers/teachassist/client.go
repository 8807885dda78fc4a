package teachassist

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"teachassist-backend/internal/components/assert"
	"teachassist-backend/internal/components/telemetry"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_client_login        = "client.login"
	report_client_fetch        = "client.fetch"
	report_client_restore      = "client.restore-cookies"
	report_client_appointments = "client.appointments"
	report_client_reason_form  = "client.reason-form"
	report_client_book         = "client.book"
)

// PortalConfig holds the portal's location, the paths default to the ones the
// public TeachAssist deployment uses.
type PortalConfig struct {
	BaseUrl          string `json:"base_url" validate:"required,url"`
	LoginPath        string `json:"login_path"`
	HomePath         string `json:"home_path"`
	AppointmentsPath string `json:"appointments_path"`
	// TimeoutSeconds bounds a single request, 0 means 30 seconds.
	TimeoutSeconds int `json:"timeout_seconds" validate:"gte=0"`
	// DumpDir, if set, receives a copy of every fetched page.
	DumpDir string `json:"dump_dir"`
}

func (c PortalConfig) withDefaults() PortalConfig {
	if c.LoginPath == "" {
		c.LoginPath = "/live/index.php"
	}
	if c.HomePath == "" {
		c.HomePath = "/live/students/listReports.php"
	}
	if c.AppointmentsPath == "" {
		c.AppointmentsPath = "/live/students/bookAppointment.php"
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 30
	}
	return c
}

// Client is an http session with the portal. It is not safe for concurrent use
// by more than one check at a time, the cookie jar is shared.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	config PortalConfig
	jar    http.CookieJar
	tel    telemetry.API
}

func NewClient(config PortalConfig, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)
	assert.NotEmptyStr(config.BaseUrl)

	tel = telemetry.NewScopedAPI("teachassist", tel)
	config = config.withDefaults()

	parsedBaseUrl, err := url.Parse(config.BaseUrl)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(config.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)

	httpClient.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(parsedBaseUrl.Hostname()))
	httpClient.SetTimeout(time.Duration(config.TimeoutSeconds) * time.Second)

	// 2 requests max per second
	// max burst >= 2 just means that no requests will be dropped
	rateLimiter := rate.NewLimiter(2, 2)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel, telemetry.RestyOptions{
		DumpDir: config.DumpDir,
	})

	return &Client{
		BaseUrl: parsedBaseUrl,
		Http:    httpClient,
		config:  config,
		jar:     jar,
		tel:     tel,
	}, nil
}

func (c *Client) resolve(path string) *url.URL {
	ref, err := url.Parse(path)
	if err != nil {
		return c.BaseUrl
	}
	return c.BaseUrl.ResolveReference(ref)
}

// Cookies is the session cookie text (`name=value; name=value`) to persist
// between runs.
func (c *Client) Cookies() string {
	cookies := c.jar.Cookies(c.resolve(c.config.HomePath))
	parts := make([]string, 0, len(cookies))
	for _, cookie := range cookies {
		parts = append(parts, fmt.Sprintf("%s=%s", cookie.Name, cookie.Value))
	}
	return strings.Join(parts, "; ")
}

// RestoreCookies loads cookie text produced by Cookies, both the `Cookie` header
// form and raw `Set-Cookie` lines are accepted.
func (c *Client) RestoreCookies(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("restore cookies: %w", ErrSessionRequired)
	}

	var cookies []*http.Cookie
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(line), "set-cookie:") {
			header := http.Header{}
			header.Add("Set-Cookie", strings.TrimSpace(line[len("set-cookie:"):]))
			cookies = append(cookies, (&http.Response{Header: header}).Cookies()...)
			continue
		}
		header := http.Header{}
		header.Add("Cookie", line)
		cookies = append(cookies, (&http.Request{Header: header}).Cookies()...)
	}
	if len(cookies) == 0 {
		err := fmt.Errorf("no cookies in %d bytes of cookie text", len(raw))
		c.tel.ReportWarning(report_client_restore, err)
		return fmt.Errorf("restore cookies: %w", ErrSessionRequired)
	}

	for _, cookie := range cookies {
		cookie.Path = "/"
	}
	c.jar.SetCookies(c.BaseUrl, cookies)
	return nil
}

// Login posts credentials to the login form and verifies the portal let us in.
func (c *Client) Login(ctx context.Context, username, password string) error {
	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username":   username,
			"password":   password,
			"subject_id": "0",
			"submit":     "Login",
		}).
		Post(c.config.LoginPath)
	if err != nil {
		c.tel.ReportBroken(report_client_login, fmt.Errorf("login request: %w", err))
		return fmt.Errorf("teachassist: login: %w", err)
	}
	if res.IsError() {
		err := fmt.Errorf("login request: status %s", res.Status())
		c.tel.ReportWarning(report_client_login, err)
		return fmt.Errorf("teachassist: %w", err)
	}

	// the login response is sometimes a redirect page with no content, only the
	// home page tells whether the login stuck
	_, err = c.Home(ctx)
	if errors.Is(err, ErrSessionRequired) {
		c.tel.ReportWarning(report_client_login, ErrLoginFailed)
		return ErrLoginFailed
	}
	return err
}

func (c *Client) get(ctx context.Context, endpoint string) (*resty.Response, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(endpoint)
	if err != nil {
		c.tel.ReportWarning(report_client_fetch, fmt.Errorf("fetch: %w", err), endpoint)
		return nil, fmt.Errorf("teachassist: fetch %s: %w", endpoint, err)
	}
	if res.IsError() {
		err := fmt.Errorf("fetch %s: status %s", endpoint, res.Status())
		c.tel.ReportWarning(report_client_fetch, err)
		return nil, fmt.Errorf("teachassist: %w", err)
	}
	if RequiresLogin(res.String()) {
		return nil, ErrSessionRequired
	}
	return res, nil
}

// Home fetches the course list page.
func (c *Client) Home(ctx context.Context) (string, error) {
	c.tel.ReportDebug("get home")
	res, err := c.get(ctx, c.config.HomePath)
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

// Report fetches the detail page of a course, the course must carry a report url.
func (c *Client) Report(ctx context.Context, course Course) (string, error) {
	if course.ReportUrl == "" {
		return "", fmt.Errorf("teachassist: course %s has no report url", course.CourseCode)
	}
	// report links on the home page are relative to the home page
	ref, err := url.Parse(course.ReportUrl)
	if err != nil {
		return "", fmt.Errorf("teachassist: report url of %s: %w", course.CourseCode, err)
	}
	endpoint := c.resolve(c.config.HomePath).ResolveReference(ref).String()

	c.tel.ReportDebug("get report", endpoint)
	res, err := c.get(ctx, endpoint)
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

// Appointments fetches and parses the bookable slots of a day, date is YYYY-MM-DD
// and may be empty for the portal's default day.
func (c *Client) Appointments(ctx context.Context, date string) (AppointmentPage, error) {
	endpoint := c.resolve(c.config.AppointmentsPath)
	if date != "" {
		query := endpoint.Query()
		query.Set("inputDate", date)
		endpoint.RawQuery = query.Encode()
	}

	res, err := c.get(ctx, endpoint.String())
	if err != nil {
		return AppointmentPage{}, err
	}
	page := ParseAppointments(res.String(), res.Request.RawRequest.URL)
	c.tel.ReportDebug(report_client_appointments, page.Date, len(page.Appointments))
	return page, nil
}

// ReasonForm fetches the form behind a slot link, the form action is resolved to
// an absolute url.
func (c *Client) ReasonForm(ctx context.Context, appointment Appointment) (ReasonForm, error) {
	res, err := c.get(ctx, appointment.Link)
	if err != nil {
		return ReasonForm{}, err
	}
	form := ParseReasonForm(res.String())
	if len(form.Options) == 0 && len(form.Hidden) == 0 {
		err := fmt.Errorf("no reason form in page")
		c.tel.ReportWarning(report_client_reason_form, err, appointment.Link)
		return ReasonForm{}, fmt.Errorf("teachassist: %w", err)
	}

	base := res.Request.RawRequest.URL
	action, err := url.Parse(form.Action)
	if err != nil {
		c.tel.ReportWarning(report_client_reason_form, fmt.Errorf("parse action: %w", err), form.Action)
		action = &url.URL{}
	}
	form.Action = base.ResolveReference(action).String()
	return form, nil
}

// Book submits the form with the chosen option, ErrBookingNotConfirmed is
// returned when the portal does not confirm.
func (c *Client) Book(ctx context.Context, form ReasonForm, option FormOption) error {
	data := url.Values{}
	for _, field := range form.Hidden {
		data.Add(field.Name, field.Value)
	}
	if option.Name != "" {
		data.Add(option.Name, option.Value)
	}

	req := c.Http.R().SetContext(ctx)
	var (
		res *resty.Response
		err error
	)
	if form.Method == http.MethodPost {
		res, err = req.SetFormDataFromValues(data).Post(form.Action)
	} else {
		res, err = req.SetQueryParamsFromValues(data).Get(form.Action)
	}
	if err != nil {
		c.tel.ReportBroken(report_client_book, fmt.Errorf("submit: %w", err), form.Action)
		return fmt.Errorf("teachassist: book: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("teachassist: book: status %s", res.Status())
	}
	if RequiresLogin(res.String()) {
		return ErrSessionRequired
	}
	if !BookingConfirmed(res.String()) {
		c.tel.ReportWarning(report_client_book, ErrBookingNotConfirmed, form.Action)
		return ErrBookingNotConfirmed
	}
	return nil
}
