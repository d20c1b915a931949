package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/metrics"
)

// WithSession launches a browser, opens one page and runs fn with it. The
// browser is closed exactly once when fn returns, fails, or panics; a panic
// is re-raised after the browser has been closed.
func WithSession(ctx context.Context, l Launcher, log logrus.FieldLogger, fn func(ctx context.Context, page Page) error) (err error) {
	log = log.WithField("session", uuid.NewString())

	b, err := l.Launch(ctx)
	if err != nil {
		metrics.SessionFailed()
		return fmt.Errorf("launch browser: %w", err)
	}
	metrics.SessionLaunched()
	log.Debug("browser launched")

	var once sync.Once
	release := func() {
		once.Do(func() {
			if cerr := b.Close(); cerr != nil {
				log.WithError(cerr).Warn("browser close failed")
			}
			metrics.SessionReleased()
			log.Debug("browser released")
		})
	}
	defer func() {
		if r := recover(); r != nil {
			release()
			panic(r)
		}
		release()
	}()

	page, err := b.NewPage(ctx)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	return fn(ctx, page)
}
