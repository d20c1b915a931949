package aternos

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Selectors describes the markup of the Aternos web UI. The site changes it
// without notice, so every field can be overridden from a YAML file.
type Selectors struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Submit   string `yaml:"submit"`

	Start   string `yaml:"start"`
	Stop    string `yaml:"stop"`
	Confirm string `yaml:"confirm"`

	Status  string `yaml:"status"`
	Players string `yaml:"players"`
	Address string `yaml:"address"`

	// ChallengeMarkers are substrings of the title or HTML of an anti-bot
	// interstitial, matched case-insensitively.
	ChallengeMarkers []string `yaml:"challenge_markers"`
	// LoginMarkers identify the login page when the URL does not.
	LoginMarkers []string `yaml:"login_markers"`
}

var DefaultSelectors = Selectors{
	Username: "#login input[name='username']",
	Password: "#login input[name='password']",
	Submit:   "#login button[type='submit']",

	Start:   "#start",
	Stop:    "#stop",
	Confirm: "#confirm",

	Status:  ".statuslabel-label",
	Players: ".statusplayerbadge",
	Address: "#ip",

	ChallengeMarkers: []string{
		"just a moment",
		"attention required",
		"cf-challenge",
		"challenge-platform",
		"captcha",
	},
	LoginMarkers: []string{
		`id="login"`,
		`name="username"`,
	},
}

// LoadSelectors returns DefaultSelectors with the non-empty fields of the
// YAML file at path applied on top. An empty path returns the defaults.
func LoadSelectors(path string) (Selectors, error) {
	sel := DefaultSelectors
	if path == "" {
		return sel, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return sel, fmt.Errorf("read selectors: %w", err)
	}
	var override Selectors
	if err := yaml.Unmarshal(data, &override); err != nil {
		return sel, fmt.Errorf("parse selectors %s: %w", path, err)
	}
	sel.merge(override)
	return sel, nil
}

func (s *Selectors) merge(o Selectors) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&s.Username, o.Username)
	set(&s.Password, o.Password)
	set(&s.Submit, o.Submit)
	set(&s.Start, o.Start)
	set(&s.Stop, o.Stop)
	set(&s.Confirm, o.Confirm)
	set(&s.Status, o.Status)
	set(&s.Players, o.Players)
	set(&s.Address, o.Address)
	if len(o.ChallengeMarkers) > 0 {
		s.ChallengeMarkers = o.ChallengeMarkers
	}
	if len(o.LoginMarkers) > 0 {
		s.LoginMarkers = o.LoginMarkers
	}
}
