// Package sweep drops payment intents that never reached a terminal state.
// A user who abandons the checkout page leaves a PENDING intent behind with
// no webhook and no poll to finish it; the sweep caps how long those linger.
package sweep

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type intentSweeper interface {
	SweepOlderThan(cutoff time.Time) int
}

type Job struct {
	intents  intentSweeper
	maxAge   time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func New(intents intentSweeper, maxAge, interval time.Duration, logger *zap.Logger) *Job {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		intents:  intents,
		maxAge:   maxAge,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.intents == nil {
		return nil
	}

	cutoff := j.now().Add(-j.maxAge)
	dropped := j.intents.SweepOlderThan(cutoff)
	if dropped > 0 {
		j.logger.Info("swept stale payment intents", zap.Int("dropped", dropped))
	}
	return nil
}

// Start runs the sweep on a fixed interval until the context is cancelled.
func (j *Job) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := j.Run(ctx); err != nil {
					j.logger.Warn("intent sweep failed", zap.Error(err))
				}
			}
		}
	}()
}
