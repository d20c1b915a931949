package aternos

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/browser"
)

type Options struct {
	BaseURL       string
	ServerID      string
	ServerAddress string

	Credentials Credentials
	Cookies     SessionCookies
	UseCookies  bool
	Selectors   Selectors

	ElementTimeout    time.Duration
	ConfirmTimeout    time.Duration
	NavigationTimeout time.Duration
	TypeDelay         time.Duration
}

// Client runs each operation in its own browser session: launch, log in,
// act, release.
type Client struct {
	launcher browser.Launcher
	opts     Options
	log      logrus.FieldLogger
}

func NewClient(launcher browser.Launcher, opts Options, log logrus.FieldLogger) *Client {
	return &Client{
		launcher: launcher,
		opts:     opts,
		log:      log.WithField("server", opts.ServerID),
	}
}

func (c *Client) Status(ctx context.Context) (State, error) {
	var st State
	err := c.do(ctx, "estado", func(ctx context.Context, x *Executor) error {
		var err error
		st, err = x.QueryStatus(ctx)
		return err
	})
	return st, err
}

func (c *Client) Start(ctx context.Context) (bool, error) {
	var accepted bool
	err := c.do(ctx, "start", func(ctx context.Context, x *Executor) error {
		var err error
		accepted, err = x.Start(ctx)
		return err
	})
	return accepted, err
}

func (c *Client) Stop(ctx context.Context) (bool, error) {
	var accepted bool
	err := c.do(ctx, "stop", func(ctx context.Context, x *Executor) error {
		var err error
		accepted, err = x.Stop(ctx)
		return err
	})
	return accepted, err
}

// ServerAddress is the configured public address, if any.
func (c *Client) ServerAddress() string {
	return c.opts.ServerAddress
}

func (c *Client) do(ctx context.Context, op string, fn func(ctx context.Context, x *Executor) error) error {
	log := c.log.WithField("op", op)
	return browser.WithSession(ctx, c.launcher, log, func(ctx context.Context, page browser.Page) error {
		est := &Establisher{
			BaseURL:           c.opts.BaseURL,
			ServerID:          c.opts.ServerID,
			Creds:             c.opts.Credentials,
			Cookies:           c.opts.Cookies,
			UseCookies:        c.opts.UseCookies,
			Selectors:         c.opts.Selectors,
			ElementTimeout:    c.opts.ElementTimeout,
			NavigationTimeout: c.opts.NavigationTimeout,
			TypeDelay:         c.opts.TypeDelay,
			Log:               log,
		}
		if err := est.Establish(ctx, page); err != nil {
			return err
		}
		return fn(ctx, &Executor{
			Page:           page,
			Selectors:      c.opts.Selectors,
			ElementTimeout: c.opts.ElementTimeout,
			ConfirmTimeout: c.opts.ConfirmTimeout,
			DefaultAddress: c.opts.ServerAddress,
			Log:            log,
		})
	})
}
