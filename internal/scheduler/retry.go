package scheduler

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"pingwatch/internal/domain"
	"pingwatch/internal/probe"
)

// PingWithRetry probes task up to maxRetries+1 times and applies the first
// alive result, or the dead result of the last attempt. Some devices (phones
// in power save) drop a single echo but answer the next one, so retries follow
// immediately without delay.
//
// It reports whether a result was applied. Execution errors use up an attempt;
// if the last attempt errored nothing is applied and the task keeps its state.
// ErrUnsupportedPlatform ends the loop at once since every retry would fail
// the same way.
func (s *Scheduler) PingWithRetry(ctx context.Context, task *domain.PingTask, maxRetries int) bool {
	log := s.log.WithField("host", task.Host)

	// in-flight probes finish on shutdown; they are bounded by their own timeout
	probeCtx := context.WithoutCancel(ctx)

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 && ctx.Err() != nil {
			return false
		}

		result, err := s.prober.Probe(probeCtx, task.Host, s.cfg.Probe)
		if err != nil {
			if errors.Is(err, probe.ErrUnsupportedPlatform) {
				log.WithError(err).Error("cannot probe on this platform")
				return false
			}
			log.WithError(err).WithField("attempt", attempt).Warn("probe failed to run")
			continue
		}

		if result.Alive || attempt == maxRetries {
			s.apply(probeCtx, task, result)
			return true
		}
		log.WithField("attempt", attempt).Debug("no reply, retrying")
	}
	return false
}

// apply records the result on the task and publishes it
func (s *Scheduler) apply(ctx context.Context, task *domain.PingTask, result domain.ProbeResult) {
	if task.SetOnline(result.Alive) {
		s.log.WithFields(logrus.Fields{"host": task.Host, "alive": result.Alive}).Info("host status changed")
	}

	if err := s.store.SetState(ctx, task.AliveID, result.Alive, true); err != nil {
		s.log.WithError(err).WithField("id", task.AliveID).Error("failed to publish alive")
	}
	if !task.ExtendedInfo {
		return
	}

	var ms any
	if result.LatencyMs != nil {
		ms = *result.LatencyMs
	}
	if err := s.store.SetState(ctx, task.TimeID, ms, true); err != nil {
		s.log.WithError(err).WithField("id", task.TimeID).Error("failed to publish time")
	}
	if err := s.store.SetState(ctx, task.RateID, result.Rate(), true); err != nil {
		s.log.WithError(err).WithField("id", task.RateID).Error("failed to publish rps")
	}
}
