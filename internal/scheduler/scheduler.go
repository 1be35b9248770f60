// Package scheduler keeps configured hosts under continuous observation.
//
// Two cycles share one task list. The alive cycle probes tasks that are
// currently online at the normal interval; the unreachable cycle probes
// offline tasks at its own, usually slower, interval. A task moves between
// cycles by flipping its online flag, so each task belongs to exactly one
// cycle at a time.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pingwatch/internal/domain"
	"pingwatch/internal/probe"
	"pingwatch/internal/state"
)

// MinInterval is the shortest pause allowed between passes
const MinInterval = 5 * time.Second

// Cycle selects which tasks a pass probes
type Cycle int

const (
	// AliveCycle probes tasks currently online
	AliveCycle Cycle = iota
	// UnreachableCycle probes tasks currently offline
	UnreachableCycle
)

func (c Cycle) String() string {
	if c == UnreachableCycle {
		return "unreachable"
	}
	return "alive"
}

func (c Cycle) eligible(t *domain.PingTask) bool {
	if c == UnreachableCycle {
		return !t.Online()
	}
	return t.Online()
}

// Config controls both cycles
type Config struct {
	Interval            time.Duration
	UnreachableInterval time.Duration
	Retries             int
	Probe               probe.Config
}

// Scheduler runs the alive and unreachable cycles
type Scheduler struct {
	prober probe.Prober
	store  state.Store
	tasks  []*domain.PingTask
	cfg    Config
	log    logrus.FieldLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler for tasks. Intervals below MinInterval are raised
// to it; a zero unreachable interval means "same as Interval".
func New(prober probe.Prober, store state.Store, tasks []*domain.PingTask, cfg Config, log logrus.FieldLogger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.UnreachableInterval <= 0 {
		cfg.UnreachableInterval = cfg.Interval
	}
	cfg.Interval = ClampInterval(cfg.Interval, "interval", log)
	cfg.UnreachableInterval = ClampInterval(cfg.UnreachableInterval, "unreachable_interval", log)
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}

	return &Scheduler{
		prober: prober,
		store:  store,
		tasks:  tasks,
		cfg:    cfg,
		log:    log.WithField("component", "scheduler"),
	}
}

// ClampInterval raises d to MinInterval, warning when it does
func ClampInterval(d time.Duration, name string, log logrus.FieldLogger) time.Duration {
	if d >= MinInterval {
		return d
	}
	if log != nil {
		log.WithFields(logrus.Fields{
			"setting":    name,
			"configured": d.Milliseconds(),
			"min":        MinInterval.Milliseconds(),
		}).Warn("interval below minimum, clamping")
	}
	return MinInterval
}

// Intervals returns the effective alive and unreachable intervals
func (s *Scheduler) Intervals() (alive, unreachable time.Duration) {
	return s.cfg.Interval, s.cfg.UnreachableInterval
}

// Tasks snapshots the task list
func (s *Scheduler) Tasks() []domain.PingTaskInfo {
	out := make([]domain.PingTaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Info())
	}
	return out
}

// Start launches both cycles. Each runs a pass immediately, then sleeps for
// its interval after the pass completes.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)

	s.startCycle(ctx, AliveCycle, s.cfg.Interval)
	s.startCycle(ctx, UnreachableCycle, s.cfg.UnreachableInterval)

	s.log.WithFields(logrus.Fields{
		"tasks":                len(s.tasks),
		"interval":             s.cfg.Interval,
		"unreachable_interval": s.cfg.UnreachableInterval,
		"retries":              s.cfg.Retries,
	}).Info("scheduler started")
}

// Stop cancels pending timers and waits for in-flight passes to finish
// their current probe.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) startCycle(ctx context.Context, c Cycle, interval time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(0)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				s.log.WithField("cycle", c.String()).Debug("stopping cycle")
				return
			case <-timer.C:
				s.RunPass(ctx, c)
				timer.Reset(interval)
			}
		}
	}()
}

// RunPass probes every task eligible for cycle c, one at a time.
// No new task is started once ctx is cancelled.
func (s *Scheduler) RunPass(ctx context.Context, c Cycle) {
	probed := 0
	for _, task := range s.tasks {
		if ctx.Err() != nil {
			return
		}
		if !c.eligible(task) {
			continue
		}
		s.PingWithRetry(ctx, task, s.cfg.Retries)
		probed++
	}
	s.log.WithFields(logrus.Fields{"cycle": c.String(), "probed": probed}).Debug("pass complete")
}
