package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/aternos"
	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/auth"
	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/bot"
	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/browser"
	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/config"
	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/logging"
	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/metrics"
	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/scheduler"
	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/server"
	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/status"
)

const shutdownTimeout = 10 * time.Second

func loadConfig(v *viper.Viper, needBot bool) (*config.Config, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if needBot {
		err = cfg.ValidateBot()
	} else {
		err = cfg.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logrus.Logger, io.Closer, error) {
	return logging.New(logging.Config{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   true,
	})
}

// newClient builds the Aternos client and returns a cleanup for the
// launcher it runs on.
func newClient(cfg *config.Config, log logrus.FieldLogger) (*aternos.Client, func(), error) {
	selectors, err := aternos.LoadSelectors(cfg.SelectorsFile)
	if err != nil {
		return nil, nil, err
	}

	var launcher browser.Launcher
	cleanup := func() {}
	switch cfg.BrowserMode {
	case config.BrowserDocker:
		dl, err := browser.NewDockerLauncher(browser.DockerOptions{
			Image:             cfg.BrowserImage,
			NavigationTimeout: cfg.NavigationTimeout,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		launcher = dl
		cleanup = func() {
			if err := dl.Close(); err != nil {
				log.WithError(err).Warn("docker client close failed")
			}
		}
	default:
		launcher = browser.NewChromeLauncher(browser.ChromeOptions{
			ExecPath:          cfg.ChromePath,
			Headless:          cfg.Headless,
			Stealth:           cfg.Stealth,
			NavigationTimeout: cfg.NavigationTimeout,
		})
	}
	log.WithField("mode", cfg.BrowserMode).Info("browser launcher ready")

	client := aternos.NewClient(launcher, aternos.Options{
		BaseURL:       cfg.BaseURL,
		ServerID:      cfg.ServerID,
		ServerAddress: cfg.ServerAddress,
		Credentials:   aternos.Credentials{Email: cfg.Email, Password: cfg.Password},
		Cookies: aternos.SessionCookies{
			Session:  cfg.SessionCookie,
			Server:   cfg.ServerCookie,
			Language: cfg.Language,
		},
		UseCookies:        cfg.UseCookies(),
		Selectors:         selectors,
		ElementTimeout:    cfg.ElementTimeout,
		ConfirmTimeout:    cfg.ConfirmTimeout,
		NavigationTimeout: cfg.NavigationTimeout,
		TypeDelay:         cfg.TypeDelay,
	}, log)
	return client, cleanup, nil
}

func runServe(ctx context.Context, v *viper.Viper) error {
	cfg, err := loadConfig(v, true)
	if err != nil {
		return err
	}
	log, closer, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	client, cleanup, err := newClient(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	verifier, err := auth.NewTokenVerifier(cfg.APITokenHash)
	if err != nil {
		return fmt.Errorf("API_TOKEN_HASH: %w", err)
	}
	schedules, err := scheduler.ParseSchedules(cfg.Schedules)
	if err != nil {
		return fmt.Errorf("SCHEDULES: %w", err)
	}

	tracker := status.NewTracker(cfg.StatusTTL)
	srv := server.New(server.Options{Addr: cfg.ListenAddr(), CorsOrigins: cfg.APICorsOrigins}, tracker, verifier, log)

	d := bot.NewDispatcher(client, tracker, bot.DispatcherOptions{
		ServerAddress:  cfg.ServerAddress,
		ErrorDetailMax: cfg.ErrorDetailMax,
	}, log)
	b, err := bot.New(bot.Options{
		Token:           cfg.Token,
		AppID:           cfg.ClientID,
		GuildID:         cfg.GuildID,
		NotifyChannelID: cfg.NotifyChannelID,
	}, d, log)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	if err := b.Open(ctx); err != nil {
		shutdownHTTP(srv, log)
		return err
	}

	sched := scheduler.New(schedules, client, tracker, b, cfg.ServerAddress, log)
	sched.Start(ctx)

	select {
	case <-ctx.Done():
		log.Info("shutting down...")
	case err = <-errCh:
		if err != nil {
			log.WithError(err).Error("http server stopped")
		}
	}

	sched.Stop()
	if cerr := b.Close(); cerr != nil {
		log.WithError(cerr).Warn("discord close failed")
	}
	shutdownHTTP(srv, log)
	return err
}

func shutdownHTTP(srv *server.Server, log logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown error")
	}
}

func runRegister(v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if cfg.Token == "" || cfg.ClientID == "" {
		return fmt.Errorf("TOKEN and CLIENT_ID are required")
	}
	s, err := bot.NewSession(cfg.Token)
	if err != nil {
		return err
	}
	cmds, err := bot.Register(s, cfg.ClientID, cfg.GuildID)
	if err != nil {
		return err
	}
	for _, c := range cmds {
		fmt.Printf("registered /%s (%s)\n", c.Name, c.ID)
	}
	return nil
}

// runCheck runs a single operation outside Discord, which is the quickest
// way to test credentials and selectors.
func runCheck(ctx context.Context, v *viper.Viper, op string, out io.Writer) error {
	cfg, err := loadConfig(v, false)
	if err != nil {
		return err
	}
	log, closer, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	client, cleanup, err := newClient(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	var result any
	switch op {
	case "estado":
		st, err := client.Status(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", aternos.Classify(err), err)
		}
		result = st
	case "start", "stop":
		run := client.Start
		if op == "stop" {
			run = client.Stop
		}
		accepted, err := run(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", aternos.Classify(err), err)
		}
		result = map[string]bool{"accepted": accepted}
	default:
		return fmt.Errorf("unknown operation %q", op)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runHashToken(token string, out io.Writer) error {
	hash, err := auth.HashToken(token)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}
