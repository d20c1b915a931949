// Package browser wraps a remote-controlled browser behind small interfaces
// so automation code can run against Chrome, a Chrome container, or an
// in-memory fake.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrNoNavigation is returned by ClickAndWaitNavigation when the page URL
// did not change within the timeout.
var ErrNoNavigation = errors.New("browser: navigation did not happen")

// Element is a handle to a DOM node that was present when queried.
type Element interface {
	Click(ctx context.Context) error
	Text(ctx context.Context) (string, error)
	// Type focuses the element and types text one character at a time,
	// sleeping delay between characters.
	Type(ctx context.Context, text string, delay time.Duration) error
}

// Page is a single tab.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// Query looks up the first node matching selector, waiting at most
	// timeout for it to appear. A zero timeout checks once. A missing node
	// is reported with ok=false and a nil error.
	Query(ctx context.Context, selector string, timeout time.Duration) (el Element, ok bool, err error)
	// ClickAndWaitNavigation clicks el and waits until the page URL changes.
	ClickAndWaitNavigation(ctx context.Context, el Element, timeout time.Duration) error
	// SetCookies must be called before the first navigation to take effect
	// on it.
	SetCookies(ctx context.Context, cookies []Cookie) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	Content(ctx context.Context) (string, error)
}

// Browser owns one browser process (or container) and its pages.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
	Secure bool
}
