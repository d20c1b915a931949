package browser_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/browser"
	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/browser/browsertest"
	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/logging"
)

func TestWithSession_ReleasesExactlyOnce(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		fn      func(ctx context.Context, page browser.Page) error
		wantErr error
	}{
		{
			name: "success",
			fn:   func(context.Context, browser.Page) error { return nil },
		},
		{
			name: "element not found",
			fn: func(ctx context.Context, page browser.Page) error {
				_, ok, err := page.Query(ctx, "#missing", 0)
				require.NoError(t, err)
				require.False(t, ok)
				return nil
			},
		},
		{
			name:    "error",
			fn:      func(context.Context, browser.Page) error { return boom },
			wantErr: boom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := browsertest.NewLauncher(browsertest.NewPage())

			err := browser.WithSession(context.Background(), l, logging.Discard(), tt.fn)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, 1, l.Launches())
			assert.Equal(t, 1, l.Closes())
		})
	}
}

func TestWithSession_PanicReleasesThenRepanics(t *testing.T) {
	l := browsertest.NewLauncher(browsertest.NewPage())

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = browser.WithSession(context.Background(), l, logging.Discard(), func(context.Context, browser.Page) error {
			panic("kaboom")
		})
	})
	assert.Equal(t, 1, l.Closes())
}

func TestWithSession_LaunchFailureNeedsNoRelease(t *testing.T) {
	l := browsertest.NewLauncher(nil)
	l.LaunchErr = errors.New("no chrome")

	called := false
	err := browser.WithSession(context.Background(), l, logging.Discard(), func(context.Context, browser.Page) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "launch browser")
	assert.False(t, called)
	assert.Equal(t, 0, l.Closes())
}

func TestWithSession_NewPageFailureStillReleases(t *testing.T) {
	l := browsertest.NewLauncher(nil)
	l.NewPageErr = errors.New("tab crashed")

	err := browser.WithSession(context.Background(), l, logging.Discard(), func(context.Context, browser.Page) error {
		t.Fatal("fn must not run without a page")
		return nil
	})

	assert.ErrorIs(t, err, l.NewPageErr)
	assert.Equal(t, 1, l.Closes())
}

func TestWithSession_CloseErrorDoesNotMaskResult(t *testing.T) {
	l := browsertest.NewLauncher(browsertest.NewPage())
	l.CloseErr = errors.New("already gone")

	err := browser.WithSession(context.Background(), l, logging.Discard(), func(context.Context, browser.Page) error {
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, l.Closes())
}
