package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/api"
	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/auth"
	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/metrics"
	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/status"
)

type Options struct {
	Addr        string
	CorsOrigins []string
}

type Server struct {
	router chi.Router
	http   *http.Server
	log    logrus.FieldLogger
}

func New(opts Options, tracker *status.Tracker, verifier *auth.TokenVerifier, log logrus.FieldLogger) *Server {
	log = log.WithField("component", "http")
	statusHandler := api.NewStatusHandler(tracker, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&requestLogger{log: log}))
	r.Use(middleware.Recoverer)
	if len(opts.CorsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CorsOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization"},
			MaxAge:         300,
		}))
	}

	r.Get("/", api.Liveness)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(api.AuthMiddleware(verifier))
		r.Get("/status", statusHandler.Latest)
		r.Get("/status/live", statusHandler.Live)
	})

	return &Server{
		router: r,
		log:    log,
		http: &http.Server{
			Addr:        opts.Addr,
			Handler:     r,
			ReadTimeout: 15 * time.Second,
			IdleTimeout: 60 * time.Second,
		},
	}
}

func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe blocks until the server stops. A graceful shutdown is not
// reported as an error.
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.http.Addr).Info("listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// requestLogger adapts chi's request logging to logrus.
type requestLogger struct {
	log logrus.FieldLogger
}

func (l *requestLogger) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &requestLogEntry{log: l.log.WithFields(logrus.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
		"remote":     r.RemoteAddr,
	})}
}

type requestLogEntry struct {
	log logrus.FieldLogger
}

func (e *requestLogEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	e.log.WithFields(logrus.Fields{
		"status":  status,
		"bytes":   bytes,
		"elapsed": elapsed.Round(time.Millisecond),
	}).Debug("request")
}

func (e *requestLogEntry) Panic(v interface{}, stack []byte) {
	e.log.WithField("panic", v).Errorf("handler panicked\n%s", stack)
}
