package teachassist

import (
	"context"
	"errors"
	"teachassist-backend/internal/components/assert"
	"teachassist-backend/internal/components/telemetry"
)

const (
	report_portal_session = "portal.session"
	report_portal_relogin = "portal.relogin"
)

// CookieStore persists the session cookie text between runs.
type CookieStore interface {
	Session(ctx context.Context) (string, error)
	SetSession(ctx context.Context, cookies string) error
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c Credentials) empty() bool {
	return c.Username == "" || c.Password == ""
}

// Portal is a Client that manages its own session: it restores the stored
// cookies, logs in with credentials when there are none, and stores the
// cookies of every new login.
type Portal struct {
	*Client
	cookies     CookieStore
	credentials Credentials
	tel         telemetry.API
}

func NewPortal(client *Client, cookies CookieStore, credentials Credentials, tel telemetry.API) *Portal {
	assert.NotNil(client)
	assert.NotNil(cookies)
	assert.NotNil(tel)

	return &Portal{
		Client:      client,
		cookies:     cookies,
		credentials: credentials,
		tel:         telemetry.NewScopedAPI("teachassist", tel),
	}
}

// EnsureSession makes sure the client carries a session, it does not verify the
// session is still accepted by the portal.
func (p *Portal) EnsureSession(ctx context.Context) error {
	raw, err := p.cookies.Session(ctx)
	if err != nil {
		p.tel.ReportBroken(report_portal_session, err)
	}
	if raw != "" {
		err = p.Client.RestoreCookies(raw)
		if err == nil {
			return nil
		}
		p.tel.ReportWarning(report_portal_session, err)
	}
	return p.Relogin(ctx)
}

// Relogin logs in with the configured credentials and stores the new session.
func (p *Portal) Relogin(ctx context.Context) error {
	if p.credentials.empty() {
		return ErrNoSession
	}
	err := p.Client.Login(ctx, p.credentials.Username, p.credentials.Password)
	if err != nil {
		if !errors.Is(err, ErrLoginFailed) {
			p.tel.ReportWarning(report_portal_relogin, err)
		}
		return err
	}
	err = p.cookies.SetSession(ctx, p.Client.Cookies())
	if err != nil {
		// the session still works for this run
		p.tel.ReportBroken(report_portal_relogin, err)
	}
	return nil
}

// Do runs fn and retries it once after logging in again if the portal asked for
// a session.
func (p *Portal) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if !errors.Is(err, ErrSessionRequired) {
		return err
	}
	err = p.Relogin(ctx)
	if err != nil {
		return err
	}
	return fn(ctx)
}
