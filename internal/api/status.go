package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/status"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type StatusHandler struct {
	tracker *status.Tracker
	log     logrus.FieldLogger
}

func NewStatusHandler(tracker *status.Tracker, log logrus.FieldLogger) *StatusHandler {
	return &StatusHandler{tracker: tracker, log: log}
}

type statusResponse struct {
	status.Snapshot
	AgeSeconds int64 `json:"age_seconds"`
	Stale      bool  `json:"stale"`
}

// Latest returns the cached snapshot. It never triggers a browser session.
func (h *StatusHandler) Latest(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.tracker.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no status recorded yet")
		return
	}
	age := time.Since(snap.UpdatedAt)
	writeJSON(w, http.StatusOK, statusResponse{
		Snapshot:   snap,
		AgeSeconds: int64(age.Seconds()),
		Stale:      h.tracker.Stale(age),
	})
}

type liveMessage struct {
	Type     string           `json:"type"` // snapshot or event
	Snapshot *status.Snapshot `json:"snapshot,omitempty"`
	Event    *status.Event    `json:"event,omitempty"`
}

// Live sends the current snapshot, then every command event as it happens.
func (h *StatusHandler) Live(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("status websocket upgrade")
		return
	}
	defer conn.Close()

	ch := h.tracker.Subscribe()
	defer h.tracker.Unsubscribe(ch)

	if snap, ok := h.tracker.Latest(); ok {
		if err := conn.WriteJSON(liveMessage{Type: "snapshot", Snapshot: &snap}); err != nil {
			return
		}
	}

	// Read from client to detect disconnect
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(liveMessage{Type: "event", Event: &ev}); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
