package aternos

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/browser"
)

// Cookie names set by aternos.org for a logged in browser.
const (
	CookieSession  = "ATERNOS_SESSION"
	CookieServer   = "ATERNOS_SERVER"
	CookieLanguage = "ATERNOS_LANGUAGE"
)

type Credentials struct {
	Email    string
	Password string
}

// SessionCookies are values captured from a browser that is already logged
// in. Server and Language are optional.
type SessionCookies struct {
	Session  string
	Server   string
	Language string
}

// Establisher turns a fresh page into one showing the server dashboard,
// either by logging in or by injecting session cookies. It never closes
// the browser.
type Establisher struct {
	BaseURL    string
	ServerID   string
	Creds      Credentials
	Cookies    SessionCookies
	UseCookies bool
	Selectors  Selectors

	ElementTimeout    time.Duration
	NavigationTimeout time.Duration
	TypeDelay         time.Duration

	Log logrus.FieldLogger
}

func (e *Establisher) ServerURL() string {
	return fmt.Sprintf("%s/server/%s/", e.BaseURL, e.ServerID)
}

func (e *Establisher) loginURL() string {
	return e.BaseURL + "/go/"
}

func (e *Establisher) Establish(ctx context.Context, page browser.Page) error {
	if e.UseCookies {
		return e.withCookies(ctx, page)
	}
	return e.withCredentials(ctx, page)
}

func (e *Establisher) withCredentials(ctx context.Context, page browser.Page) error {
	e.Log.Debug("opening login page")
	if err := page.Navigate(ctx, e.loginURL()); err != nil {
		return err
	}

	sel := e.Selectors
	user, ok, err := page.Query(ctx, sel.Username, e.ElementTimeout)
	if err != nil {
		return err
	}
	if !ok {
		if err := e.checkChallenge(ctx, page); err != nil {
			return err
		}
		return fmt.Errorf("%w: login form not found after %s", ErrAuth, e.ElementTimeout)
	}
	pass, ok, err := page.Query(ctx, sel.Password, 0)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: password field not found", ErrAuth)
	}
	submit, ok, err := page.Query(ctx, sel.Submit, 0)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: submit button not found", ErrAuth)
	}

	e.Log.Debug("typing credentials")
	if err := user.Type(ctx, e.Creds.Email, e.TypeDelay); err != nil {
		return fmt.Errorf("type username: %w", err)
	}
	if err := pass.Type(ctx, e.Creds.Password, e.TypeDelay); err != nil {
		return fmt.Errorf("type password: %w", err)
	}

	err = page.ClickAndWaitNavigation(ctx, submit, e.NavigationTimeout)
	if errors.Is(err, browser.ErrNoNavigation) {
		if cerr := e.checkChallenge(ctx, page); cerr != nil {
			return cerr
		}
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	if err != nil {
		return err
	}

	e.Log.Debug("logged in, opening server dashboard")
	if err := page.Navigate(ctx, e.ServerURL()); err != nil {
		return err
	}
	return e.verifyDashboard(ctx, page, ErrAuth)
}

func (e *Establisher) withCookies(ctx context.Context, page browser.Page) error {
	if err := page.SetCookies(ctx, e.sessionCookies()); err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}
	e.Log.Debug("cookies injected, opening server dashboard")
	if err := page.Navigate(ctx, e.ServerURL()); err != nil {
		return err
	}
	return e.verifyDashboard(ctx, page, ErrSessionExpired)
}

func (e *Establisher) sessionCookies() []browser.Cookie {
	domain, secure := ".aternos.org", true
	if u, err := url.Parse(e.BaseURL); err == nil && u.Hostname() != "" {
		domain = "." + strings.TrimPrefix(u.Hostname(), "www.")
		secure = u.Scheme == "https"
	}
	mk := func(name, value string) browser.Cookie {
		return browser.Cookie{Name: name, Value: value, Domain: domain, Path: "/", Secure: secure}
	}

	cookies := []browser.Cookie{mk(CookieSession, e.Cookies.Session)}
	if e.Cookies.Server != "" {
		cookies = append(cookies, mk(CookieServer, e.Cookies.Server))
	}
	if e.Cookies.Language != "" {
		cookies = append(cookies, mk(CookieLanguage, e.Cookies.Language))
	}
	return cookies
}

// verifyDashboard fails with ErrBlocked on a challenge page and with
// loginErr when the site bounced back to the login page.
func (e *Establisher) verifyDashboard(ctx context.Context, page browser.Page, loginErr error) error {
	if err := e.checkChallenge(ctx, page); err != nil {
		return err
	}
	current, err := page.URL(ctx)
	if err != nil {
		return err
	}
	content, err := page.Content(ctx)
	if err != nil {
		return err
	}
	if e.isLoginPage(current, content) {
		return fmt.Errorf("%w: landed on %s instead of the dashboard", loginErr, current)
	}
	return nil
}

func (e *Establisher) checkChallenge(ctx context.Context, page browser.Page) error {
	title, err := page.Title(ctx)
	if err != nil {
		return err
	}
	content, err := page.Content(ctx)
	if err != nil {
		return err
	}
	if marker, ok := matchAny(e.Selectors.ChallengeMarkers, title, content); ok {
		e.Log.WithField("marker", marker).Warn("challenge page detected")
		return fmt.Errorf("%w (%q in page)", ErrBlocked, marker)
	}
	return nil
}

func (e *Establisher) isLoginPage(current, content string) bool {
	if u, err := url.Parse(current); err == nil && strings.HasPrefix(u.Path, "/go") {
		return true
	}
	_, ok := matchAny(e.Selectors.LoginMarkers, content)
	return ok
}

func matchAny(markers []string, texts ...string) (string, bool) {
	for _, t := range texts {
		lt := strings.ToLower(t)
		for _, m := range markers {
			if m != "" && strings.Contains(lt, strings.ToLower(m)) {
				return m, true
			}
		}
	}
	return "", false
}
