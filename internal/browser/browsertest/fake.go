// Package browsertest provides an in-memory browser for tests. Pages are
// made of screens keyed by URL; each screen holds the elements a selector
// query can find.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/browser"
)

type Screen struct {
	Title    string
	Content  string
	Elements map[string]*Element
}

type Element struct {
	Text string
	// NavigatesTo switches the page to another screen when clicked.
	NavigatesTo string
	// Reveals adds elements to the current screen when clicked.
	Reveals  map[string]*Element
	ClickErr error
	// ClickPanic, when non-nil, is raised by Click.
	ClickPanic any
}

// Page is a scripted browser.Page. The zero value is not usable; call
// NewPage.
type Page struct {
	mu       sync.Mutex
	screens  map[string]*Screen
	current  *Screen
	url      string
	clicks   []string
	typed    map[string]string
	cookies  []browser.Cookie
	visited  []string
	queries  []string
	navErr   map[string]error
	queryErr error
}

func NewPage() *Page {
	return &Page{
		screens: map[string]*Screen{},
		current: &Screen{},
		typed:   map[string]string{},
		navErr:  map[string]error{},
	}
}

// AddScreen registers the screen shown after navigating to url.
func (p *Page) AddScreen(url string, s Screen) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.Elements == nil {
		s.Elements = map[string]*Element{}
	}
	p.screens[url] = &s
	return p
}

// FailNavigation makes Navigate(url) return err.
func (p *Page) FailNavigation(url string, err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navErr[url] = err
	return p
}

// FailQueries makes every Query return err.
func (p *Page) FailQueries(err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queryErr = err
	return p
}

func (p *Page) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visited = append(p.visited, url)
	if err := p.navErr[url]; err != nil {
		return err
	}
	p.goTo(url)
	return nil
}

func (p *Page) goTo(url string) {
	p.url = url
	if s, ok := p.screens[url]; ok {
		p.current = s
		return
	}
	p.current = &Screen{Elements: map[string]*Element{}}
}

func (p *Page) Query(ctx context.Context, selector string, _ time.Duration) (browser.Element, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, selector)
	if p.queryErr != nil {
		return nil, false, p.queryErr
	}
	el, ok := p.current.Elements[selector]
	if !ok {
		return nil, false, nil
	}
	return &handle{page: p, selector: selector, el: el}, true, nil
}

func (p *Page) ClickAndWaitNavigation(ctx context.Context, el browser.Element, _ time.Duration) error {
	p.mu.Lock()
	before := p.url
	p.mu.Unlock()
	if err := el.Click(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.url == before {
		return fmt.Errorf("%w: still on %s", browser.ErrNoNavigation, before)
	}
	return nil
}

func (p *Page) SetCookies(_ context.Context, cookies []browser.Cookie) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cookies = append(p.cookies, cookies...)
	return nil
}

func (p *Page) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *Page) Title(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.Title, nil
}

func (p *Page) Content(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.Content, nil
}

// Clicks returns the selectors of clicked elements in order.
func (p *Page) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// Typed returns what was typed into the element found by selector.
func (p *Page) Typed(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.typed[selector]
}

func (p *Page) Cookies() []browser.Cookie {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]browser.Cookie(nil), p.cookies...)
}

func (p *Page) Visited() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visited...)
}

func (p *Page) Queries() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.queries...)
}

type handle struct {
	page     *Page
	selector string
	el       *Element
}

func (h *handle) Click(context.Context) error {
	if h.el.ClickPanic != nil {
		panic(h.el.ClickPanic)
	}
	if h.el.ClickErr != nil {
		return h.el.ClickErr
	}
	p := h.page
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks = append(p.clicks, h.selector)
	for sel, el := range h.el.Reveals {
		p.current.Elements[sel] = el
	}
	if h.el.NavigatesTo != "" {
		p.goTo(h.el.NavigatesTo)
	}
	return nil
}

func (h *handle) Text(context.Context) (string, error) {
	return h.el.Text, nil
}

func (h *handle) Type(_ context.Context, text string, _ time.Duration) error {
	h.page.mu.Lock()
	defer h.page.mu.Unlock()
	h.page.typed[h.selector] += text
	return nil
}

// Launcher hands out one browser per Launch, all sharing Page, and counts
// launches and closes.
type Launcher struct {
	Page       *Page
	LaunchErr  error
	NewPageErr error
	CloseErr   error

	mu       sync.Mutex
	launches int
	closes   int
}

func NewLauncher(p *Page) *Launcher {
	return &Launcher{Page: p}
}

func (l *Launcher) Launch(context.Context) (browser.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	l.launches++
	return &fakeBrowser{l: l}, nil
}

func (l *Launcher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

func (l *Launcher) Closes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closes
}

type fakeBrowser struct {
	l *Launcher
}

func (b *fakeBrowser) NewPage(context.Context) (browser.Page, error) {
	if b.l.NewPageErr != nil {
		return nil, b.l.NewPageErr
	}
	if b.l.Page == nil {
		return NewPage(), nil
	}
	return b.l.Page, nil
}

func (b *fakeBrowser) Close() error {
	b.l.mu.Lock()
	defer b.l.mu.Unlock()
	b.l.closes++
	return b.l.CloseErr
}
