package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	regOK atomic.Bool

	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prepusin",
			Subsystem: "bot",
			Name:      "commands_total",
			Help:      "Chat commands handled, by command and outcome.",
		}, []string{"command", "outcome"},
	)
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "prepusin",
			Subsystem: "bot",
			Name:      "command_duration_seconds",
			Help:      "Time from acknowledgement to final reply.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"command"},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "prepusin",
			Subsystem: "browser",
			Name:      "sessions_active",
			Help:      "Browser sessions currently open.",
		},
	)
	sessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prepusin",
			Subsystem: "browser",
			Name:      "sessions_total",
			Help:      "Browser session lifecycle events (launched, released, failed).",
		}, []string{"result"},
	)
	scheduleRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prepusin",
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Scheduled actions executed, by action and outcome.",
		}, []string{"action", "outcome"},
	)
)

// Register registers all metrics with r. Calling it again after a
// successful registration is a no-op.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{commands, commandDuration, sessionsActive, sessions, scheduleRuns}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has succeeded.

func ObserveCommand(command, outcome string, d time.Duration) {
	if regOK.Load() {
		commands.WithLabelValues(command, outcome).Inc()
		commandDuration.WithLabelValues(command).Observe(d.Seconds())
	}
}

func SessionLaunched() {
	if regOK.Load() {
		sessions.WithLabelValues("launched").Inc()
		sessionsActive.Inc()
	}
}

func SessionReleased() {
	if regOK.Load() {
		sessions.WithLabelValues("released").Inc()
		sessionsActive.Dec()
	}
}

func SessionFailed() {
	if regOK.Load() {
		sessions.WithLabelValues("failed").Inc()
	}
}

func IncScheduleRun(action, outcome string) {
	if regOK.Load() {
		scheduleRuns.WithLabelValues(action, outcome).Inc()
	}
}
