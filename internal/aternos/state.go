package aternos

import "time"

const Unknown = "unknown"

// State is what the dashboard showed when it was last read. It is best
// effort: any label may be missing.
type State struct {
	StatusText string    `json:"status_text"`
	Online     bool      `json:"online"`
	Address    string    `json:"address"`
	Players    string    `json:"players"`
	CheckedAt  time.Time `json:"checked_at"`
}
