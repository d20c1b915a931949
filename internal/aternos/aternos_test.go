package aternos

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/browser/browsertest"
	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/logging"
)

const (
	testBase      = "https://aternos.org"
	testServerID  = "AbC123"
	testServerURL = testBase + "/server/" + testServerID + "/"
	testLoginURL  = testBase + "/go/"
	dashboardHTML = `<html><body><div class="server-status">ok</div></body></html>`
)

func dashboard(elements map[string]*browsertest.Element) browsertest.Screen {
	return browsertest.Screen{Title: "Server | Aternos", Content: dashboardHTML, Elements: elements}
}

func loginScreen() browsertest.Screen {
	sel := DefaultSelectors
	return browsertest.Screen{
		Title:   "Login | Aternos",
		Content: `<div id="login"><input name="username"></div>`,
		Elements: map[string]*browsertest.Element{
			sel.Username: {},
			sel.Password: {},
			sel.Submit:   {NavigatesTo: testBase + "/servers/"},
		},
	}
}

func newEstablisher(useCookies bool) *Establisher {
	return &Establisher{
		BaseURL:    testBase,
		ServerID:   testServerID,
		Creds:      Credentials{Email: "steve", Password: "hunter2"},
		Cookies:    SessionCookies{Session: "sess", Language: "es"},
		UseCookies: useCookies,
		Selectors:  DefaultSelectors,
		Log:        logging.Discard(),
	}
}

func newExecutor(page *browsertest.Page) *Executor {
	return &Executor{
		Page:      page,
		Selectors: DefaultSelectors,
		Log:       logging.Discard(),
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{fmt.Errorf("wrapped: %w", ErrAuth), KindAuth},
		{fmt.Errorf("wrapped: %w", ErrBlocked), KindBlocked},
		{ErrSessionExpired, KindExpired},
		{context.DeadlineExceeded, KindUnexpected},
		{errors.New("cdp: node gone"), KindUnexpected},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestLoadSelectors(t *testing.T) {
	t.Run("empty path gives defaults", func(t *testing.T) {
		sel, err := LoadSelectors("")
		require.NoError(t, err)
		assert.Equal(t, DefaultSelectors, sel)
	})

	t.Run("file overrides only what it sets", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "selectors.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
start: "button.btn.btn-green"
stop: "button.btn.btn-red"
challenge_markers: ["verify you are human"]
`), 0644))

		sel, err := LoadSelectors(path)
		require.NoError(t, err)
		assert.Equal(t, "button.btn.btn-green", sel.Start)
		assert.Equal(t, "button.btn.btn-red", sel.Stop)
		assert.Equal(t, DefaultSelectors.Confirm, sel.Confirm)
		assert.Equal(t, DefaultSelectors.Username, sel.Username)
		assert.Equal(t, []string{"verify you are human"}, sel.ChallengeMarkers)
		assert.Equal(t, DefaultSelectors.LoginMarkers, sel.LoginMarkers)
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "selectors.yaml")
		require.NoError(t, os.WriteFile(path, []byte("start: [unterminated"), 0644))
		_, err := LoadSelectors(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSelectors(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestQueryStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing on the page", func(t *testing.T) {
		page := browsertest.NewPage()
		st, err := newExecutor(page).QueryStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, Unknown, st.StatusText)
		assert.False(t, st.Online)
		assert.Equal(t, Unknown, st.Players)
		assert.Equal(t, Unknown, st.Address)
	})

	t.Run("online with labels", func(t *testing.T) {
		page := browsertest.NewPage().AddScreen(testServerURL, dashboard(map[string]*browsertest.Element{
			"#stop":              {},
			".statuslabel-label": {Text: "  Online \n"},
			".statusplayerbadge": {Text: "2/20"},
			"#ip":                {Text: "steve.aternos.me"},
		}))
		require.NoError(t, page.Navigate(ctx, testServerURL))

		st, err := newExecutor(page).QueryStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Online", st.StatusText)
		assert.True(t, st.Online)
		assert.Equal(t, "2/20", st.Players)
		assert.Equal(t, "steve.aternos.me", st.Address)
		assert.False(t, st.CheckedAt.IsZero())
		assert.Empty(t, page.Clicks())
	})

	t.Run("configured address fills the gap", func(t *testing.T) {
		page := browsertest.NewPage()
		x := newExecutor(page)
		x.DefaultAddress = "mc.example.aternos.me"

		st, err := x.QueryStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, "mc.example.aternos.me", st.Address)
	})

	t.Run("query error propagates", func(t *testing.T) {
		page := browsertest.NewPage().FailQueries(errors.New("target closed"))
		_, err := newExecutor(page).QueryStatus(ctx)
		assert.Error(t, err)
	})
}

func TestStartStop(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		elements   map[string]*browsertest.Element
		stop       bool
		want       bool
		wantClicks []string
	}{
		{
			name:       "start absent",
			elements:   map[string]*browsertest.Element{"#stop": {}},
			want:       false,
			wantClicks: nil,
		},
		{
			name:       "start without confirmation",
			elements:   map[string]*browsertest.Element{"#start": {}},
			want:       true,
			wantClicks: []string{"#start"},
		},
		{
			name: "start with confirmation dialog",
			elements: map[string]*browsertest.Element{
				"#start": {Reveals: map[string]*browsertest.Element{"#confirm": {}}},
			},
			want:       true,
			wantClicks: []string{"#start", "#confirm"},
		},
		{
			name:       "stop absent",
			elements:   map[string]*browsertest.Element{"#start": {}},
			stop:       true,
			want:       false,
			wantClicks: nil,
		},
		{
			name:       "stop present",
			elements:   map[string]*browsertest.Element{"#stop": {}},
			stop:       true,
			want:       true,
			wantClicks: []string{"#stop"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := browsertest.NewPage().AddScreen(testServerURL, dashboard(tt.elements))
			require.NoError(t, page.Navigate(ctx, testServerURL))
			x := newExecutor(page)

			var got bool
			var err error
			if tt.stop {
				got, err = x.Stop(ctx)
			} else {
				got, err = x.Start(ctx)
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantClicks, page.Clicks())
		})
	}
}

func TestStart_ClickError(t *testing.T) {
	ctx := context.Background()
	page := browsertest.NewPage().AddScreen(testServerURL, dashboard(map[string]*browsertest.Element{
		"#start": {ClickErr: errors.New("node detached")},
	}))
	require.NoError(t, page.Navigate(ctx, testServerURL))

	ok, err := newExecutor(page).Start(ctx)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestEstablish_Credentials(t *testing.T) {
	ctx := context.Background()

	t.Run("logs in and opens the dashboard", func(t *testing.T) {
		page := browsertest.NewPage().
			AddScreen(testLoginURL, loginScreen()).
			AddScreen(testServerURL, dashboard(nil))

		err := newEstablisher(false).Establish(ctx, page)
		require.NoError(t, err)

		assert.Equal(t, "steve", page.Typed(DefaultSelectors.Username))
		assert.Equal(t, "hunter2", page.Typed(DefaultSelectors.Password))
		assert.Equal(t, []string{DefaultSelectors.Submit}, page.Clicks())
		assert.Equal(t, []string{testLoginURL, testServerURL}, page.Visited())
		assert.Empty(t, page.Cookies())
	})

	t.Run("no login form", func(t *testing.T) {
		page := browsertest.NewPage().AddScreen(testLoginURL, browsertest.Screen{Title: "Aternos"})

		err := newEstablisher(false).Establish(ctx, page)
		assert.ErrorIs(t, err, ErrAuth)
	})

	t.Run("challenge instead of login form", func(t *testing.T) {
		page := browsertest.NewPage().AddScreen(testLoginURL, browsertest.Screen{Title: "Just a moment..."})

		err := newEstablisher(false).Establish(ctx, page)
		assert.ErrorIs(t, err, ErrBlocked)
	})

	t.Run("submit goes nowhere", func(t *testing.T) {
		screen := loginScreen()
		screen.Elements[DefaultSelectors.Submit] = &browsertest.Element{}
		page := browsertest.NewPage().AddScreen(testLoginURL, screen)

		err := newEstablisher(false).Establish(ctx, page)
		assert.ErrorIs(t, err, ErrAuth)
	})

	t.Run("dashboard bounces back to login", func(t *testing.T) {
		page := browsertest.NewPage().
			AddScreen(testLoginURL, loginScreen()).
			AddScreen(testServerURL, loginScreen())

		err := newEstablisher(false).Establish(ctx, page)
		assert.ErrorIs(t, err, ErrAuth)
	})

	t.Run("navigation error is unexpected", func(t *testing.T) {
		page := browsertest.NewPage().FailNavigation(testLoginURL, context.DeadlineExceeded)

		err := newEstablisher(false).Establish(ctx, page)
		require.Error(t, err)
		assert.Equal(t, KindUnexpected, Classify(err))
	})
}

func TestEstablish_Cookies(t *testing.T) {
	ctx := context.Background()

	t.Run("injects cookies before navigating", func(t *testing.T) {
		page := browsertest.NewPage().AddScreen(testServerURL, dashboard(nil))

		err := newEstablisher(true).Establish(ctx, page)
		require.NoError(t, err)

		cookies := page.Cookies()
		require.Len(t, cookies, 2)
		assert.Equal(t, CookieSession, cookies[0].Name)
		assert.Equal(t, "sess", cookies[0].Value)
		assert.Equal(t, ".aternos.org", cookies[0].Domain)
		assert.True(t, cookies[0].Secure)
		assert.Equal(t, CookieLanguage, cookies[1].Name)
		assert.Equal(t, []string{testServerURL}, page.Visited())
	})

	t.Run("expired session lands on login", func(t *testing.T) {
		page := browsertest.NewPage().AddScreen(testServerURL, loginScreen())

		err := newEstablisher(true).Establish(ctx, page)
		assert.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("redirect to /go is expired", func(t *testing.T) {
		page := browsertest.NewPage().
			AddScreen(testServerURL, browsertest.Screen{}).
			AddScreen(testLoginURL, browsertest.Screen{})
		require.NoError(t, page.Navigate(ctx, testLoginURL))

		e := newEstablisher(true)
		err := e.verifyDashboard(ctx, page, ErrSessionExpired)
		assert.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("challenge page", func(t *testing.T) {
		page := browsertest.NewPage().AddScreen(testServerURL, browsertest.Screen{
			Title:   "Attention Required! | Cloudflare",
			Content: `<div id="cf-challenge-running"></div>`,
		})

		err := newEstablisher(true).Establish(ctx, page)
		assert.ErrorIs(t, err, ErrBlocked)
	})
}

func TestClient_SessionPerOperation(t *testing.T) {
	ctx := context.Background()
	page := browsertest.NewPage().AddScreen(testServerURL, dashboard(map[string]*browsertest.Element{
		"#stop":              {},
		".statuslabel-label": {Text: "Online"},
	}))
	launcher := browsertest.NewLauncher(page)

	c := NewClient(launcher, Options{
		BaseURL:        testBase,
		ServerID:       testServerID,
		ServerAddress:  "mc.example.aternos.me",
		Cookies:        SessionCookies{Session: "sess"},
		UseCookies:     true,
		Selectors:      DefaultSelectors,
		ConfirmTimeout: time.Millisecond,
	}, logging.Discard())

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Online)
	assert.Equal(t, "Online", st.StatusText)
	assert.Equal(t, "mc.example.aternos.me", st.Address)

	accepted, err := c.Stop(ctx)
	require.NoError(t, err)
	assert.True(t, accepted)

	accepted, err = c.Start(ctx)
	require.NoError(t, err)
	assert.False(t, accepted)

	assert.Equal(t, 3, launcher.Launches())
	assert.Equal(t, 3, launcher.Closes())
}

func TestClient_BlockedStillReleases(t *testing.T) {
	page := browsertest.NewPage().AddScreen(testServerURL, browsertest.Screen{Title: "Just a moment..."})
	launcher := browsertest.NewLauncher(page)

	c := NewClient(launcher, Options{
		BaseURL:    testBase,
		ServerID:   testServerID,
		Cookies:    SessionCookies{Session: "sess"},
		UseCookies: true,
		Selectors:  DefaultSelectors,
	}, logging.Discard())

	_, err := c.Start(context.Background())
	assert.ErrorIs(t, err, ErrBlocked)
	assert.Equal(t, 1, launcher.Closes())
}
