package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Login modes.
const (
	LoginAuto        = "auto"
	LoginCredentials = "credentials"
	LoginCookies     = "cookies"
)

// Browser modes.
const (
	BrowserLocal  = "local"
	BrowserDocker = "docker"
)

type Config struct {
	// Discord
	Token           string
	ClientID        string
	GuildID         string
	NotifyChannelID string

	// Aternos
	BaseURL       string
	ServerID      string
	ServerAddress string
	Email         string
	Password      string
	SessionCookie string
	ServerCookie  string
	Language      string
	LoginMode     string
	SelectorsFile string

	// Browser
	BrowserMode       string
	Headless          bool
	Stealth           bool
	ChromePath        string
	BrowserImage      string
	ElementTimeout    time.Duration
	ConfirmTimeout    time.Duration
	NavigationTimeout time.Duration
	TypeDelay         time.Duration

	// Bot behaviour
	StatusTTL      time.Duration
	ErrorDetailMax int
	Schedules      string

	// HTTP
	Port           int
	APITokenHash   string
	APICorsOrigins []string

	// Logging
	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

var defaults = map[string]any{
	"ATERNOS_BASE_URL":   "https://aternos.org",
	"LOGIN_MODE":         LoginAuto,
	"BROWSER_MODE":       BrowserLocal,
	"BROWSER_HEADLESS":   true,
	"BROWSER_STEALTH":    true,
	"BROWSER_IMAGE":      "chromedp/headless-shell:latest",
	"ELEMENT_TIMEOUT":    30 * time.Second,
	"CONFIRM_TIMEOUT":    10 * time.Second,
	"NAVIGATION_TIMEOUT": 60 * time.Second,
	"TYPE_DELAY":         60 * time.Millisecond,
	"STATUS_TTL":         10 * time.Minute,
	"ERROR_DETAIL_MAX":   180,
	"PORT":               3000,
	"LOG_LEVEL":          "info",
	"LOG_MAX_SIZE_MB":    10,
	"LOG_MAX_BACKUPS":    3,
	"LOG_MAX_AGE_DAYS":   7,
}

// NewViper returns a viper instance with the environment bound and the
// defaults set. Callers may bind command line flags to it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()
	return v
}

// LoadDotEnv loads .env into the process environment. A missing file is fine;
// variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads the configuration from v. It does not validate it; see
// Validate and ValidateBot.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = NewViper()
	}

	cfg := &Config{
		Token:           v.GetString("TOKEN"),
		ClientID:        v.GetString("CLIENT_ID"),
		GuildID:         v.GetString("GUILD_ID"),
		NotifyChannelID: v.GetString("NOTIFY_CHANNEL_ID"),

		BaseURL:       strings.TrimRight(v.GetString("ATERNOS_BASE_URL"), "/"),
		ServerID:      v.GetString("SERVER_ID"),
		ServerAddress: v.GetString("SERVER_ADDRESS"),
		Email:         v.GetString("ATERNOS_EMAIL"),
		Password:      v.GetString("ATERNOS_PASSWORD"),
		SessionCookie: v.GetString("ATERNOS_SESSION"),
		ServerCookie:  v.GetString("ATERNOS_SERVER_COOKIE"),
		Language:      v.GetString("ATERNOS_LANGUAGE"),
		LoginMode:     strings.ToLower(v.GetString("LOGIN_MODE")),
		SelectorsFile: v.GetString("SELECTORS_FILE"),

		BrowserMode:       strings.ToLower(v.GetString("BROWSER_MODE")),
		Headless:          v.GetBool("BROWSER_HEADLESS"),
		Stealth:           v.GetBool("BROWSER_STEALTH"),
		ChromePath:        v.GetString("CHROME_PATH"),
		BrowserImage:      v.GetString("BROWSER_IMAGE"),
		ElementTimeout:    v.GetDuration("ELEMENT_TIMEOUT"),
		ConfirmTimeout:    v.GetDuration("CONFIRM_TIMEOUT"),
		NavigationTimeout: v.GetDuration("NAVIGATION_TIMEOUT"),
		TypeDelay:         v.GetDuration("TYPE_DELAY"),

		StatusTTL:      v.GetDuration("STATUS_TTL"),
		ErrorDetailMax: v.GetInt("ERROR_DETAIL_MAX"),
		Schedules:      v.GetString("SCHEDULES"),

		Port:           v.GetInt("PORT"),
		APITokenHash:   v.GetString("API_TOKEN_HASH"),
		APICorsOrigins: splitList(v.GetString("API_CORS_ORIGINS")),

		LogLevel:      v.GetString("LOG_LEVEL"),
		LogFile:       v.GetString("LOG_FILE"),
		LogMaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
		LogMaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
		LogMaxAgeDays: v.GetInt("LOG_MAX_AGE_DAYS"),
	}
	return cfg, nil
}

// Validate checks what every automation entry point needs: a target server
// and a way to authenticate against Aternos.
func (c *Config) Validate() error {
	var errs []error
	if c.ServerID == "" {
		errs = append(errs, errors.New("SERVER_ID is required"))
	}
	switch c.LoginMode {
	case LoginAuto:
		if c.SessionCookie == "" && (c.Email == "" || c.Password == "") {
			errs = append(errs, errors.New("set ATERNOS_SESSION or both ATERNOS_EMAIL and ATERNOS_PASSWORD"))
		}
	case LoginCredentials:
		if c.Email == "" || c.Password == "" {
			errs = append(errs, errors.New("LOGIN_MODE=credentials needs ATERNOS_EMAIL and ATERNOS_PASSWORD"))
		}
	case LoginCookies:
		if c.SessionCookie == "" {
			errs = append(errs, errors.New("LOGIN_MODE=cookies needs ATERNOS_SESSION"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LOGIN_MODE %q", c.LoginMode))
	}
	switch c.BrowserMode {
	case BrowserLocal, BrowserDocker:
	default:
		errs = append(errs, fmt.Errorf("unknown BROWSER_MODE %q", c.BrowserMode))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT %d", c.Port))
	}
	return errors.Join(errs...)
}

// ValidateBot additionally checks the Discord credentials.
func (c *Config) ValidateBot() error {
	var errs []error
	if c.Token == "" {
		errs = append(errs, errors.New("TOKEN is required"))
	}
	if c.ClientID == "" {
		errs = append(errs, errors.New("CLIENT_ID is required"))
	}
	return errors.Join(append(errs, c.Validate())...)
}

// UseCookies reports whether the cookie login flow should be used.
func (c *Config) UseCookies() bool {
	switch c.LoginMode {
	case LoginCookies:
		return true
	case LoginCredentials:
		return false
	}
	return c.SessionCookie != ""
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
