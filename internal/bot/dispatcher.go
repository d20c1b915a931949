package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/aternos"
	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/metrics"
	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/status"
)

// EditWindow is how long Discord accepts edits to an interaction reply.
const EditWindow = 15 * time.Minute

// Responder is the two-phase reply channel of one interaction.
type Responder interface {
	Ack(ctx context.Context, content string) error
	Edit(ctx context.Context, content string) error
}

// Controller runs the remote operations. *aternos.Client implements it.
type Controller interface {
	Status(ctx context.Context) (aternos.State, error)
	Start(ctx context.Context) (bool, error)
	Stop(ctx context.Context) (bool, error)
}

type Request struct {
	ID      string
	Command string
	User    string
}

type DispatcherOptions struct {
	ServerAddress  string
	ErrorDetailMax int
}

// Dispatcher drives one command from acknowledgement to its single final
// edit. Commands are not serialized against each other: two concurrent
// start/stop requests race on the Aternos side.
type Dispatcher struct {
	ctrl    Controller
	tracker *status.Tracker
	opts    DispatcherOptions
	log     logrus.FieldLogger

	now        func() time.Time
	editWindow time.Duration
}

func NewDispatcher(ctrl Controller, tracker *status.Tracker, opts DispatcherOptions, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		ctrl:       ctrl,
		tracker:    tracker,
		opts:       opts,
		log:        log,
		now:        time.Now,
		editWindow: EditWindow,
	}
}

// Handle acknowledges req, runs it and edits the reply once. It never
// panics and returns the outcome it recorded.
func (d *Dispatcher) Handle(ctx context.Context, req Request, r Responder) string {
	received := d.now()
	log := d.log.WithFields(logrus.Fields{
		"command":     req.Command,
		"interaction": req.ID,
		"user":        req.User,
	})

	ack, known := ackText[req.Command]
	if !known {
		log.Warn("unknown command ignored")
		return ""
	}

	if err := d.safeAck(ctx, r, ack); err != nil {
		log.WithError(err).Warn("acknowledgement failed, interaction abandoned")
		d.finish(req, status.OutcomeAbandoned, err.Error(), nil, received)
		return status.OutcomeAbandoned
	}
	log.Debug("acknowledged")

	deadline := received.Add(d.editWindow)
	execCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	log.Debug("executing")
	reply, outcome, st := d.execute(execCtx, req, log)

	if d.now().After(deadline) {
		log.WithField("outcome", outcome).Warn("edit window lapsed, reply dropped")
		d.finish(req, status.OutcomeAbandoned, reply, st, received)
		return status.OutcomeAbandoned
	}
	if err := d.safeEdit(ctx, r, reply); err != nil {
		log.WithError(err).Error("final edit failed")
	} else {
		log.WithField("outcome", outcome).Info("replied")
	}
	d.finish(req, outcome, reply, st, received)
	return outcome
}

func (d *Dispatcher) execute(ctx context.Context, req Request, log logrus.FieldLogger) (reply, outcome string, st *aternos.State) {
	defer func() {
		if p := recover(); p != nil {
			log.WithField("panic", p).Errorf("command panicked\n%s", debug.Stack())
			reply = formatError(req.Command, fmt.Errorf("panic: %v", p), d.opts.ErrorDetailMax)
			outcome, st = status.OutcomeError, nil
		}
	}()

	fail := func(err error) (string, string, *aternos.State) {
		log.WithError(err).WithField("kind", aternos.Classify(err)).Error("command failed")
		return formatError(req.Command, err, d.opts.ErrorDetailMax), status.OutcomeError, nil
	}

	switch req.Command {
	case CmdEstado:
		state, err := d.ctrl.Status(ctx)
		if err != nil {
			return fail(err)
		}
		snap := d.tracker.Record(status.SourceEstado, state)
		return formatStatus(snap.State), status.OutcomeSuccess, &snap.State

	case CmdJugadores:
		value, age, ok := d.tracker.Players()
		return formatPlayers(value, age, ok && d.tracker.Stale(age)), status.OutcomeSuccess, nil

	case CmdStart:
		accepted, err := d.ctrl.Start(ctx)
		if err != nil {
			return fail(err)
		}
		if !accepted {
			return msgStartRejected, status.OutcomeNoop, nil
		}
		snap := d.tracker.MarkStarted(status.SourceStart, d.opts.ServerAddress)
		return formatStartAccepted(snap.State.Address), status.OutcomeSuccess, &snap.State

	case CmdStop:
		accepted, err := d.ctrl.Stop(ctx)
		if err != nil {
			return fail(err)
		}
		if !accepted {
			return msgStopRejected, status.OutcomeNoop, nil
		}
		snap := d.tracker.MarkStopped(status.SourceStop)
		return msgStopAccepted, status.OutcomeSuccess, &snap.State
	}
	return fail(fmt.Errorf("unhandled command %q", req.Command))
}

func (d *Dispatcher) finish(req Request, outcome, msg string, st *aternos.State, received time.Time) {
	metrics.ObserveCommand(req.Command, outcome, d.now().Sub(received))
	d.tracker.Publish(status.Event{
		Interaction: req.ID,
		Command:     req.Command,
		Outcome:     outcome,
		Message:     msg,
		State:       st,
	})
}

func (d *Dispatcher) safeAck(ctx context.Context, r Responder, content string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("ack panicked: %v", p)
		}
	}()
	return r.Ack(ctx, content)
}

func (d *Dispatcher) safeEdit(ctx context.Context, r Responder, content string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("edit panicked: %v", p)
		}
	}()
	return r.Edit(ctx, content)
}
