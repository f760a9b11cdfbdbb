package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/bobbybaxter/poke-api-extension/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const sweepTimeout = 3 * time.Minute

// ExpiredTokenDeleter is the part of the refresh token store the reaper needs.
type ExpiredTokenDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// TokenReaper periodically deletes refresh tokens that expired more than a
// grace period ago. Revoked tokens that have not expired yet are kept.
type TokenReaper struct {
	tokens   ExpiredTokenDeleter
	schedule string
	grace    time.Duration
	now      func() time.Time
	cron     *cron.Cron
}

func NewTokenReaper(tokens ExpiredTokenDeleter, cfg config.SweepConfig) *TokenReaper {
	return &TokenReaper{
		tokens:   tokens,
		schedule: cfg.Schedule,
		grace:    cfg.Grace,
		now:      time.Now,
	}
}

// Start schedules the sweep. An empty schedule disables it.
func (r *TokenReaper) Start() error {
	if r.schedule == "" {
		logrus.Info("Refresh token sweep disabled")
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(r.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		if _, err := r.RunOnce(ctx); err != nil {
			logrus.Errorf("[WORKER] Token cleanup failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("error scheduling token sweep %q: %w", r.schedule, err)
	}

	r.cron = c
	c.Start()
	logrus.Infof("Refresh token sweep scheduled (%s)", r.schedule)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to end.
func (r *TokenReaper) Stop(ctx context.Context) {
	if r.cron == nil {
		return
	}
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce deletes tokens whose expiry lies before now minus the grace period.
func (r *TokenReaper) RunOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.grace)
	n, err := r.tokens.DeleteExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	logrus.WithFields(logrus.Fields{"deleted": n, "cutoff": cutoff}).Info("[WORKER] Expired refresh tokens removed")
	return n, nil
}
