package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/aternos"
	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/metrics"
	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/status"
)

const (
	ActionStart = "start"
	ActionStop  = "stop"
)

type Schedule struct {
	CronExpr string
	Action   string
	expr     *CronExpr
}

// ParseSchedules reads "<cron>=<action>;<cron>=<action>". Blank entries are
// skipped.
func ParseSchedules(s string) ([]Schedule, error) {
	var out []Schedule
	for _, raw := range strings.Split(s, ";") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		i := strings.LastIndex(raw, "=")
		if i < 0 {
			return nil, fmt.Errorf("schedule %q: expected <cron>=<action>", raw)
		}
		cronText, action := strings.TrimSpace(raw[:i]), strings.ToLower(strings.TrimSpace(raw[i+1:]))
		if action != ActionStart && action != ActionStop {
			return nil, fmt.Errorf("schedule %q: unknown action %q", raw, action)
		}
		expr, err := ParseCron(cronText)
		if err != nil {
			return nil, fmt.Errorf("schedule %q: %w", raw, err)
		}
		out = append(out, Schedule{CronExpr: cronText, Action: action, expr: expr})
	}
	return out, nil
}

// Runner is the subset of *aternos.Client the scheduler drives.
type Runner interface {
	Start(ctx context.Context) (bool, error)
	Stop(ctx context.Context) (bool, error)
}

type Notifier interface {
	Notify(ctx context.Context, content string) error
}

type Scheduler struct {
	schedules []Schedule
	runner    Runner
	tracker   *status.Tracker
	notifier  Notifier
	address   string
	log       logrus.FieldLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a scheduler. notifier may be nil.
func New(schedules []Schedule, runner Runner, tracker *status.Tracker, notifier Notifier, address string, log logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		schedules: schedules,
		runner:    runner,
		tracker:   tracker,
		notifier:  notifier,
		address:   address,
		log:       log.WithField("component", "scheduler"),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	if len(s.schedules) == 0 {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, sc := range s.schedules {
		s.log.WithFields(logrus.Fields{
			"cron":   sc.CronExpr,
			"action": sc.Action,
			"next":   sc.expr.Next(time.Now()).Format(time.RFC3339),
		}).Info("schedule loaded")
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Check every 60 seconds, aligned to the minute
		for {
			now := time.Now()
			nextMinute := now.Truncate(time.Minute).Add(time.Minute)

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Until(nextMinute)):
				s.tick(ctx, nextMinute)
			}
		}
	}()
}

// Stop cancels running actions and waits for them to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) tick(ctx context.Context, t time.Time) {
	for _, sc := range s.schedules {
		if !sc.expr.Matches(t) {
			continue
		}
		s.wg.Add(1)
		go func(sc Schedule) {
			defer s.wg.Done()
			s.run(ctx, sc)
		}(sc)
	}
}

func (s *Scheduler) run(ctx context.Context, sc Schedule) {
	log := s.log.WithFields(logrus.Fields{"cron": sc.CronExpr, "action": sc.Action})
	log.Info("running scheduled action")

	outcome, msg, st := s.execute(ctx, sc, log)

	metrics.IncScheduleRun(sc.Action, outcome)
	s.tracker.Publish(status.Event{
		Command: status.SourceSchedule + ":" + sc.Action,
		Outcome: outcome,
		Message: msg,
		State:   st,
	})
	log.WithField("outcome", outcome).Info(msg)

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, "⏰ "+msg); err != nil {
			log.WithError(err).Warn("notify failed")
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, sc Schedule, log logrus.FieldLogger) (outcome, msg string, st *aternos.State) {
	defer func() {
		if p := recover(); p != nil {
			log.WithField("panic", p).Errorf("scheduled action panicked\n%s", debug.Stack())
			outcome, msg, st = status.OutcomeError, fmt.Sprintf("Acción programada %s falló: panic: %v", sc.Action, p), nil
		}
	}()

	var accepted bool
	var err error
	if sc.Action == ActionStart {
		accepted, err = s.runner.Start(ctx)
	} else {
		accepted, err = s.runner.Stop(ctx)
	}

	switch {
	case err != nil:
		return status.OutcomeError, fmt.Sprintf("Acción programada %s falló (%s): %v", sc.Action, aternos.Classify(err), err), nil
	case !accepted:
		return status.OutcomeNoop, fmt.Sprintf("Acción programada %s: nada que hacer", sc.Action), nil
	case sc.Action == ActionStart:
		snap := s.tracker.MarkStarted(status.SourceSchedule, s.address)
		return status.OutcomeSuccess, "Inicio programado enviado. IP: " + snap.State.Address, &snap.State
	default:
		snap := s.tracker.MarkStopped(status.SourceSchedule)
		return status.OutcomeSuccess, "Apagado programado enviado 🛑", &snap.State
	}
}
