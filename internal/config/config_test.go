package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		ServerID:    "srv1",
		Email:       "user",
		Password:    "pass",
		LoginMode:   LoginAuto,
		BrowserMode: BrowserLocal,
		Port:        3000,
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, "https://aternos.org", cfg.BaseURL)
	assert.Equal(t, LoginAuto, cfg.LoginMode)
	assert.Equal(t, BrowserLocal, cfg.BrowserMode)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 30*time.Second, cfg.ElementTimeout)
	assert.Equal(t, 10*time.Minute, cfg.StatusTTL)
	assert.Equal(t, 180, cfg.ErrorDetailMax)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, ":3000", cfg.ListenAddr())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("TOKEN", "tok")
	t.Setenv("CLIENT_ID", "app")
	t.Setenv("SERVER_ID", "srv1")
	t.Setenv("ATERNOS_BASE_URL", "https://aternos.test/")
	t.Setenv("LOGIN_MODE", "Cookies")
	t.Setenv("ELEMENT_TIMEOUT", "5s")
	t.Setenv("PORT", "8080")
	t.Setenv("API_CORS_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, "tok", cfg.Token)
	assert.Equal(t, "app", cfg.ClientID)
	assert.Equal(t, "https://aternos.test", cfg.BaseURL)
	assert.Equal(t, LoginCookies, cfg.LoginMode)
	assert.Equal(t, 5*time.Second, cfg.ElementTimeout)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.APICorsOrigins)
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PREPUSIN_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("PREPUSIN_TEST_DOTENV", "")
	os.Unsetenv("PREPUSIN_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("PREPUSIN_TEST_DOTENV"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid credentials", func(c *Config) {}, ""},
		{"valid cookie", func(c *Config) { c.Email, c.Password, c.SessionCookie = "", "", "abc" }, ""},
		{"missing server", func(c *Config) { c.ServerID = "" }, "SERVER_ID"},
		{"no auth", func(c *Config) { c.Password = "" }, "ATERNOS_SESSION"},
		{"cookies without cookie", func(c *Config) { c.LoginMode = LoginCookies }, "needs ATERNOS_SESSION"},
		{"credentials without password", func(c *Config) {
			c.LoginMode, c.Password, c.SessionCookie = LoginCredentials, "", "abc"
		}, "ATERNOS_PASSWORD"},
		{"unknown login mode", func(c *Config) { c.LoginMode = "magic" }, "LOGIN_MODE"},
		{"unknown browser mode", func(c *Config) { c.BrowserMode = "remote" }, "BROWSER_MODE"},
		{"bad port", func(c *Config) { c.Port = 70000 }, "PORT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateBot(t *testing.T) {
	c := validConfig()
	err := c.ValidateBot()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOKEN")
	assert.Contains(t, err.Error(), "CLIENT_ID")

	c.Token, c.ClientID = "tok", "app"
	assert.NoError(t, c.ValidateBot())

	c.ServerID = ""
	assert.ErrorContains(t, c.ValidateBot(), "SERVER_ID")
}

func TestUseCookies(t *testing.T) {
	c := validConfig()
	assert.False(t, c.UseCookies())

	c.SessionCookie = "abc"
	assert.True(t, c.UseCookies())

	c.LoginMode = LoginCredentials
	assert.False(t, c.UseCookies())

	c.LoginMode = LoginCookies
	c.SessionCookie = ""
	assert.True(t, c.UseCookies())
}
