// Package status keeps the last known server state between commands and
// fans command outcomes out to live subscribers.
package status

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/aternos"
)

// NotAvailable is shown for players and address while the server is off or
// nothing is known yet.
const NotAvailable = "No disponible"

const (
	SourceEstado   = "estado"
	SourceStart    = "start"
	SourceStop     = "stop"
	SourceSchedule = "schedule"
)

const (
	OutcomeSuccess   = "success"
	OutcomeNoop      = "noop"
	OutcomeError     = "error"
	OutcomeAbandoned = "abandoned"
)

type Snapshot struct {
	State     aternos.State `json:"state"`
	UpdatedAt time.Time     `json:"updated_at"`
	Source    string        `json:"source"`
}

type Event struct {
	ID          string         `json:"id"`
	Interaction string         `json:"interaction,omitempty"`
	Command     string         `json:"command"`
	Outcome     string         `json:"outcome"`
	Message     string         `json:"message,omitempty"`
	State       *aternos.State `json:"state,omitempty"`
	At          time.Time      `json:"at"`
}

// Tracker holds a single time-stamped snapshot. Nothing refreshes it on its
// own; it only changes when a command or schedule reports in.
type Tracker struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.RWMutex
	latest    *Snapshot
	listeners []chan Event
}

func NewTracker(ttl time.Duration) *Tracker {
	return &Tracker{ttl: ttl, now: time.Now}
}

// Record replaces the snapshot with a freshly read state.
func (t *Tracker) Record(source string, st aternos.State) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := Snapshot{State: st, UpdatedAt: t.now(), Source: source}
	t.latest = &snap
	return snap
}

// MarkStarted records an accepted start: nobody is online yet and the
// server answers on address.
func (t *Tracker) MarkStarted(source, address string) Snapshot {
	return t.update(source, func(st *aternos.State) {
		st.Players = "0"
		if address != "" {
			st.Address = address
		}
	})
}

// MarkStopped records an accepted stop.
func (t *Tracker) MarkStopped(source string) Snapshot {
	return t.update(source, func(st *aternos.State) {
		st.Players = NotAvailable
		st.Address = NotAvailable
		st.Online = false
	})
}

func (t *Tracker) update(source string, fn func(st *aternos.State)) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	var st aternos.State
	if t.latest != nil {
		st = t.latest.State
	} else {
		st = aternos.State{StatusText: aternos.Unknown, Players: NotAvailable, Address: NotAvailable}
	}
	fn(&st)
	snap := Snapshot{State: st, UpdatedAt: t.now(), Source: source}
	t.latest = &snap
	return snap
}

func (t *Tracker) Latest() (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.latest == nil {
		return Snapshot{}, false
	}
	return *t.latest, true
}

// Players returns the cached player value and its age. ok is false when no
// command has reported anything yet.
func (t *Tracker) Players() (value string, age time.Duration, ok bool) {
	snap, ok := t.Latest()
	if !ok {
		return NotAvailable, 0, false
	}
	return snap.State.Players, t.now().Sub(snap.UpdatedAt), true
}

// Stale reports whether a value of the given age is past the TTL.
func (t *Tracker) Stale(age time.Duration) bool {
	return t.ttl > 0 && age > t.ttl
}

func (t *Tracker) Publish(ev Event) Event {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = t.now()
	}

	// Sends never block, so holding the read lock keeps Unsubscribe from
	// closing a channel mid-send.
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, ch := range t.listeners {
		select {
		case ch <- ev:
		default:
			// Drop if listener is slow
		}
	}
	return ev
}

func (t *Tracker) Subscribe() chan Event {
	ch := make(chan Event, 8)
	t.mu.Lock()
	t.listeners = append(t.listeners, ch)
	t.mu.Unlock()
	return ch
}

func (t *Tracker) Unsubscribe(ch chan Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, l := range t.listeners {
		if l == ch {
			t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}
