package aternos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/browser"
)

// Executor performs dashboard actions on a page that Establish already
// brought to the server dashboard. Every control lookup is a single bounded
// query; a control that shows up later counts as absent.
type Executor struct {
	Page      browser.Page
	Selectors Selectors

	ElementTimeout time.Duration
	ConfirmTimeout time.Duration
	// DefaultAddress is reported when the dashboard shows no address.
	DefaultAddress string

	Log logrus.FieldLogger
}

func (x *Executor) QueryStatus(ctx context.Context) (State, error) {
	st := State{
		StatusText: Unknown,
		Address:    Unknown,
		Players:    Unknown,
		CheckedAt:  time.Now(),
	}
	if x.DefaultAddress != "" {
		st.Address = x.DefaultAddress
	}

	text, ok, err := x.readText(ctx, x.Selectors.Status, x.ElementTimeout)
	if err != nil {
		return st, err
	}
	if ok {
		st.StatusText = text
	}

	_, st.Online, err = x.Page.Query(ctx, x.Selectors.Stop, 0)
	if err != nil {
		return st, fmt.Errorf("look up stop control: %w", err)
	}

	if text, ok, err := x.readText(ctx, x.Selectors.Address, 0); err != nil {
		return st, err
	} else if ok {
		st.Address = text
	}
	if text, ok, err := x.readText(ctx, x.Selectors.Players, 0); err != nil {
		return st, err
	} else if ok {
		st.Players = text
	}

	x.Log.WithFields(logrus.Fields{
		"status": st.StatusText,
		"online": st.Online,
	}).Debug("status read")
	return st, nil
}

// Start clicks the start control and, if it shows up, the confirmation
// dialog. It reports false without clicking when there is no start
// control. True only means the click was dispatched.
func (x *Executor) Start(ctx context.Context) (bool, error) {
	return x.actuate(ctx, "start", x.Selectors.Start)
}

// Stop mirrors Start against the stop control.
func (x *Executor) Stop(ctx context.Context) (bool, error) {
	return x.actuate(ctx, "stop", x.Selectors.Stop)
}

func (x *Executor) actuate(ctx context.Context, action, selector string) (bool, error) {
	log := x.Log.WithField("action", action)

	control, ok, err := x.Page.Query(ctx, selector, x.ElementTimeout)
	if err != nil {
		return false, fmt.Errorf("look up %s control: %w", action, err)
	}
	if !ok {
		log.Info("control not present, nothing to do")
		return false, nil
	}
	if err := control.Click(ctx); err != nil {
		return false, fmt.Errorf("click %s: %w", action, err)
	}
	log.Info("control clicked")

	if x.Selectors.Confirm == "" {
		return true, nil
	}
	confirm, ok, err := x.Page.Query(ctx, x.Selectors.Confirm, x.ConfirmTimeout)
	if err != nil {
		return true, fmt.Errorf("look up confirmation: %w", err)
	}
	if ok {
		if err := confirm.Click(ctx); err != nil {
			return true, fmt.Errorf("click confirmation: %w", err)
		}
		log.Info("confirmation clicked")
	}
	return true, nil
}

func (x *Executor) readText(ctx context.Context, selector string, timeout time.Duration) (string, bool, error) {
	if selector == "" {
		return "", false, nil
	}
	el, ok, err := x.Page.Query(ctx, selector, timeout)
	if err != nil || !ok {
		return "", false, err
	}
	text, err := el.Text(ctx)
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", selector, err)
	}
	text = strings.Join(strings.Fields(text), " ")
	return text, text != "", nil
}
