package browse

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"pingwatch/internal/domain"
)

// RangeFunc picks the range for a scheduled sweep
type RangeFunc func(ctx context.Context) (domain.BrowseRange, error)

// AutoDetect repeats non-manual sweeps on a fixed period. The delay after a
// sweep is the period minus the time the sweep took, so sweeps start at a
// constant rate.
type AutoDetect struct {
	sweeper *Sweeper
	period  time.Duration
	rangeFn RangeFunc
	log     logrus.FieldLogger
}

// NewAutoDetect creates an auto-detect loop; run it with Run
func NewAutoDetect(s *Sweeper, period time.Duration, rangeFn RangeFunc, log logrus.FieldLogger) *AutoDetect {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AutoDetect{
		sweeper: s,
		period:  period,
		rangeFn: rangeFn,
		log:     log.WithField("component", "autodetect"),
	}
}

// Run sweeps immediately and then once per period until ctx is done
func (a *AutoDetect) Run(ctx context.Context) {
	a.log.WithField("period", a.period).Info("auto detect enabled")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			started := time.Now()
			a.runOnce(ctx)
			timer.Reset(NextDelay(a.period, time.Since(started)))
		}
	}
}

func (a *AutoDetect) runOnce(ctx context.Context) {
	rng, err := a.rangeFn(ctx)
	if err != nil {
		a.log.WithError(err).Warn("no range for auto detect")
		return
	}
	hosts, err := a.sweeper.Run(ctx, Request{Range: rng})
	switch {
	case errors.Is(err, ErrBusy):
		a.log.Debug("sweep in progress, skipping auto detect")
	case err != nil:
		a.log.WithError(err).Warn("auto detect failed")
	default:
		a.log.WithField("detected", len(hosts)).Debug("auto detect complete")
	}
}

// NextDelay is the wait before the next sweep given how long the last took
func NextDelay(period, elapsed time.Duration) time.Duration {
	if d := period - elapsed; d > 0 {
		return d
	}
	return 0
}
