package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIdempotentAndHelpersRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))

	ObserveCommand("estado", "success", 3*time.Second)
	ObserveCommand("start", "error", time.Second)
	SessionLaunched()
	SessionLaunched()
	SessionReleased()
	SessionFailed()
	IncScheduleRun("stop", "success")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	found := map[string]bool{}
	for _, mf := range mfs {
		found[mf.GetName()] = true
		if mf.GetName() == "prepusin_browser_sessions_active" {
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, 1.0, mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
	for _, name := range []string{
		"prepusin_bot_commands_total",
		"prepusin_bot_command_duration_seconds",
		"prepusin_browser_sessions_active",
		"prepusin_browser_sessions_total",
		"prepusin_scheduler_runs_total",
	} {
		assert.True(t, found[name], "missing metric %s", name)
	}
}
