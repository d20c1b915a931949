package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ChromeOptions configures local Chrome sessions.
type ChromeOptions struct {
	ExecPath          string // empty uses chromedp's lookup
	Headless          bool
	Stealth           bool // hide the automation blink feature
	NavigationTimeout time.Duration
}

// ChromeLauncher starts one local Chrome process per session.
type ChromeLauncher struct {
	opts ChromeOptions
}

func NewChromeLauncher(opts ChromeOptions) *ChromeLauncher {
	return &ChromeLauncher{opts: opts}
}

func (l *ChromeLauncher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.DisableGPU,
		chromedp.Flag("disable-features", "IsolateOrigins"),
		chromedp.Flag("disable-site-isolation-trials", true),
	)
	if l.opts.Stealth {
		opts = append(opts,
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("enable-automation", false),
		)
	}
	if l.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.opts.ExecPath))
	}
	return opts
}

func (l *ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), l.allocatorOptions()...)
	return startChrome(allocCtx, allocCancel, l.opts.NavigationTimeout)
}

// startChrome attaches a browser context to an allocator and forces the
// browser to start so launch failures surface here. The first Run must use
// the browser context itself: the browser lives as long as that context.
func startChrome(allocCtx context.Context, allocCancel context.CancelFunc, navTimeout time.Duration) (*chromeBrowser, error) {
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	b := &chromeBrowser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		navTimeout:  navTimeout,
	}
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return b, nil
}

type chromeBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	navTimeout  time.Duration

	opened     bool
	tabCancels []context.CancelFunc
}

// runOn executes actions on a tab context while honouring the caller's
// cancellation and deadline plus an optional timeout.
func runOn(target, caller context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(target)
	defer cancel()
	if d, ok := caller.Deadline(); ok {
		var c context.CancelFunc
		runCtx, c = context.WithDeadline(runCtx, d)
		defer c()
	}
	if timeout > 0 {
		var c context.CancelFunc
		runCtx, c = context.WithTimeout(runCtx, timeout)
		defer c()
	}
	stop := context.AfterFunc(caller, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (b *chromeBrowser) NewPage(ctx context.Context) (Page, error) {
	// The first page is the tab the browser was started with.
	if !b.opened {
		b.opened = true
		return &chromePage{ctx: b.ctx, navTimeout: b.navTimeout}, nil
	}
	tabCtx, cancel := chromedp.NewContext(b.ctx)
	b.tabCancels = append(b.tabCancels, cancel)
	if err := chromedp.Run(tabCtx); err != nil {
		return nil, fmt.Errorf("new tab: %w", err)
	}
	return &chromePage{ctx: tabCtx, navTimeout: b.navTimeout}, nil
}

func (b *chromeBrowser) Close() error {
	for _, cancel := range b.tabCancels {
		cancel()
	}
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.allocCancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type chromePage struct {
	ctx        context.Context
	navTimeout time.Duration
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if err := runOn(p.ctx, ctx, p.navTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *chromePage) Query(ctx context.Context, selector string, timeout time.Duration) (Element, bool, error) {
	var nodes []*cdp.Node
	opts := []chromedp.QueryOption{chromedp.ByQuery}
	if timeout <= 0 {
		opts = append(opts, chromedp.AtLeast(0))
	}
	err := runOn(p.ctx, ctx, timeout, chromedp.Nodes(selector, &nodes, opts...))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("query %q: %w", selector, err)
	}
	if len(nodes) == 0 {
		return nil, false, nil
	}
	return &chromeElement{page: p, node: nodes[0]}, true, nil
}

func (p *chromePage) ClickAndWaitNavigation(ctx context.Context, el Element, timeout time.Duration) error {
	before, err := p.URL(ctx)
	if err != nil {
		return err
	}
	if err := el.Click(ctx); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		now, err := p.URL(ctx)
		if err == nil && now != before {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: still on %s after %s", ErrNoNavigation, before, timeout)
		}
	}
}

func (p *chromePage) SetCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		path := c.Path
		if path == "" {
			path = "/"
		}
		params = append(params, &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     path,
			Secure:   c.Secure,
			HTTPOnly: true,
		})
	}
	return runOn(p.ctx, ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(params).Do(ctx)
	}))
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var s string
	err := runOn(p.ctx, ctx, 0, chromedp.Location(&s))
	return s, err
}

func (p *chromePage) Title(ctx context.Context) (string, error) {
	var s string
	err := runOn(p.ctx, ctx, 0, chromedp.Title(&s))
	return s, err
}

func (p *chromePage) Content(ctx context.Context) (string, error) {
	var s string
	err := runOn(p.ctx, ctx, 0, chromedp.OuterHTML("html", &s, chromedp.ByQuery))
	return s, err
}

type chromeElement struct {
	page *chromePage
	node *cdp.Node
}

func (e *chromeElement) ids() []cdp.NodeID { return []cdp.NodeID{e.node.NodeID} }

func (e *chromeElement) Click(ctx context.Context) error {
	return runOn(e.page.ctx, ctx, 0, chromedp.MouseClickNode(e.node))
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var s string
	err := runOn(e.page.ctx, ctx, 0, chromedp.Text(e.ids(), &s, chromedp.ByNodeID))
	return s, err
}

func (e *chromeElement) Type(ctx context.Context, text string, delay time.Duration) error {
	if err := runOn(e.page.ctx, ctx, 0, chromedp.Focus(e.ids(), chromedp.ByNodeID)); err != nil {
		return err
	}
	for _, r := range text {
		if err := runOn(e.page.ctx, ctx, 0, chromedp.KeyEvent(string(r))); err != nil {
			return err
		}
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil
}
