// Package browse discovers responsive hosts in an address range.
//
// A sweep visits every address of the range one after another, probes it
// with the ping strategy and records responders in the detected list. Only
// one sweep runs at a time. The list survives between sweeps only for
// entries an operator marked as ignored.
package browse

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"pingwatch/internal/domain"
	"pingwatch/internal/notify"
	"pingwatch/internal/probe"
	"pingwatch/internal/state"
)

var (
	// ErrBusy is returned when a sweep is already running
	ErrBusy = errors.New("browse already running")
	// ErrRangeTooLarge is returned for ranges above domain.MaxSweepAddresses
	ErrRangeTooLarge = errors.New("browse range too large")
)

// Enricher adds hardware details to a responsive host
type Enricher interface {
	Enrich(ctx context.Context, ip string) (mac, vendor string)
}

// Request starts a sweep
type Request struct {
	Range domain.BrowseRange
	// Manual marks operator-triggered sweeps; only those notify
	Manual bool
}

// Status is a snapshot of the sweeper
type Status struct {
	Running  bool                  `json:"running"`
	Progress int                   `json:"progress"`
	Status   string                `json:"status"`
	Detected []domain.DetectedHost `json:"detected"`
}

// Sweeper runs browse sweeps and owns the detected list
type Sweeper struct {
	prober   probe.Prober
	store    state.Store
	ids      domain.BrowseIDs
	probeCfg probe.Config
	enricher Enricher
	notifier notify.Sink
	log      logrus.FieldLogger

	stop atomic.Bool

	mu       sync.Mutex
	running  bool
	done     chan struct{}
	progress int
	status   string
	detected *domain.DetectedSet
	static   map[string]struct{}
	pending  []domain.DetectedHost
}

// Option configures a Sweeper
type Option func(*Sweeper)

// WithEnricher enables MAC and vendor lookup for responders
func WithEnricher(e Enricher) Option {
	return func(s *Sweeper) {
		s.enricher = e
	}
}

// WithNotifier sets where new-device notifications go
func WithNotifier(n notify.Sink) Option {
	return func(s *Sweeper) {
		s.notifier = n
	}
}

// WithProbeConfig overrides the probe settings used for sweeps
func WithProbeConfig(cfg probe.Config) Option {
	return func(s *Sweeper) {
		s.probeCfg = cfg
	}
}

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a sweeper publishing under namespace
func New(prober probe.Prober, store state.Store, namespace string, opts ...Option) *Sweeper {
	s := &Sweeper{
		prober:   prober,
		store:    store,
		ids:      domain.NewBrowseIDs(namespace),
		probeCfg: probe.DefaultConfig(),
		log:      logrus.StandardLogger(),
		detected: domain.NewDetectedSet(nil),
		static:   map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "browse")
	return s
}

// SetStatic replaces the configured device addresses, which sweeps skip
func (s *Sweeper) SetStatic(addresses []string) {
	static := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		if t, err := domain.ParseTarget(a); err == nil {
			static[t.Host] = struct{}{}
		}
	}
	s.mu.Lock()
	s.static = static
	s.mu.Unlock()
}

// SetProbeConfig changes the probe settings for the next sweep
func (s *Sweeper) SetProbeConfig(cfg probe.Config) {
	s.mu.Lock()
	s.probeCfg = cfg
	s.mu.Unlock()
}

// Start validates req and launches the sweep in the background.
// ErrBusy, ErrRangeTooLarge and invalid ranges are reported synchronously,
// before any state is published or any probe is sent.
func (s *Sweeper) Start(ctx context.Context, req Request) error {
	_, err := s.start(ctx, req)
	return err
}

func (s *Sweeper) start(ctx context.Context, req Request) (<-chan struct{}, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("browse already running, request ignored")
		return nil, ErrBusy
	}
	addrs, err := req.Range.Resolve()
	if err != nil {
		s.mu.Unlock()
		s.log.WithError(err).Warn("cannot resolve browse range")
		return nil, err
	}
	if addrs.Count > domain.MaxSweepAddresses {
		s.mu.Unlock()
		s.log.WithFields(logrus.Fields{
			"addresses": addrs.Count,
			"max":       domain.MaxSweepAddresses,
		}).Warn("browse range too large, request ignored")
		return nil, fmt.Errorf("%w: %d addresses, max %d", ErrRangeTooLarge, addrs.Count, domain.MaxSweepAddresses)
	}

	s.running = true
	s.stop.Store(false)
	done := make(chan struct{})
	s.done = done
	s.detected.ResetKeepIgnored()
	snapshot := s.detected.JSON()
	s.progress = 0
	s.status = progressText(0, addrs.Count)
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"first":     addrs.First(),
		"addresses": addrs.Count,
		"manual":    req.Manual,
	}).Info("browse started")

	s.publish(ctx, s.ids.Result, snapshot)
	s.publish(ctx, s.ids.Running, true)
	s.publish(ctx, s.ids.Progress, 0)
	s.publish(ctx, s.ids.Status, progressText(0, addrs.Count))

	go func() {
		defer close(done)
		s.sweep(ctx, addrs, req.Manual)
	}()
	return done, nil
}

// Run starts a sweep and waits for it to finish
func (s *Sweeper) Run(ctx context.Context, req Request) ([]domain.DetectedHost, error) {
	done, err := s.start(ctx, req)
	if err != nil {
		return nil, err
	}
	<-done
	return s.Detected(), nil
}

// Wait blocks until the current sweep, if any, has finished
func (s *Sweeper) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Stop asks a running sweep to stop after the current address.
// It reports whether a sweep was running.
func (s *Sweeper) Stop() bool {
	s.mu.Lock()
	running := s.running
	if running {
		s.stop.Store(true)
	}
	s.mu.Unlock()
	if running {
		s.log.Info("browse stop requested")
	}
	return running
}

// Running reports whether a sweep is in progress
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status snapshots progress and the detected list
func (s *Sweeper) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:  s.running,
		Progress: s.progress,
		Status:   s.status,
		Detected: s.detected.Snapshot(),
	}
}

// Detected returns a copy of the detected list
func (s *Sweeper) Detected() []domain.DetectedHost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detected.Snapshot()
}

// Lookup returns the detected entry for ip
func (s *Sweeper) Lookup(ip string) (domain.DetectedHost, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detected.Get(ip)
}

// SetIgnore changes the ignore flag of an existing entry and publishes the
// list. Unknown addresses are not added.
func (s *Sweeper) SetIgnore(ctx context.Context, ip string, ignore bool) bool {
	s.mu.Lock()
	changed := s.detected.SetIgnore(ip, ignore)
	snapshot := s.detected.JSON()
	s.mu.Unlock()

	if changed {
		s.publish(ctx, s.ids.Result, snapshot)
	}
	return changed
}

// PendingNotification returns the hosts of the last notification that has
// not been dismissed
func (s *Sweeper) PendingNotification() []domain.DetectedHost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.DetectedHost(nil), s.pending...)
}

// ClearPending dismisses the pending notification
func (s *Sweeper) ClearPending() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

// Restore loads the detected list persisted by an earlier run. A corrupt
// value is logged and replaced by an empty list.
func (s *Sweeper) Restore(ctx context.Context) error {
	st, err := s.store.GetState(ctx, s.ids.Result)
	if err != nil {
		return fmt.Errorf("read %s: %w", s.ids.Result, err)
	}
	raw, _ := state.String(st)
	hosts, err := domain.ParseDetected(raw)
	if err != nil {
		s.log.WithError(err).WithField("id", s.ids.Result).Warn("corrupt detected list, starting empty")
		hosts = nil
	}

	s.mu.Lock()
	s.detected = domain.NewDetectedSet(hosts)
	s.mu.Unlock()
	return nil
}

// ListenStop stops the running sweep when an operator writes false to the
// running state. The returned func removes the subscription.
func (s *Sweeper) ListenStop() func() {
	return s.store.Subscribe(s.ids.Running, func(st state.State) {
		if st.Ack {
			return
		}
		if v, ok := state.Bool(&st); ok && !v {
			s.Stop()
		}
	})
}

func (s *Sweeper) sweep(ctx context.Context, addrs domain.AddressRange, manual bool) {
	// finalization must publish even when ctx was cancelled
	pubCtx := context.WithoutCancel(ctx)
	total := addrs.Count

	var done uint64
	for i := uint64(0); i < total; i++ {
		s.visit(ctx, addrs.At(i))
		done = i + 1

		progress := progressValue(done, total)
		text := progressText(done, total)
		s.mu.Lock()
		s.progress = progress
		s.status = text
		s.mu.Unlock()
		s.publish(pubCtx, s.ids.Progress, progress)
		s.publish(pubCtx, s.ids.Status, text)

		if s.stop.Load() || ctx.Err() != nil {
			s.log.WithField("visited", done).Info("browse stopped")
			break
		}
	}

	s.finish(pubCtx, manual, done, total)
}

// visit probes one address unless it is configured or ignored
func (s *Sweeper) visit(ctx context.Context, ip string) {
	s.mu.Lock()
	_, static := s.static[ip]
	skip := static || s.detected.IsIgnored(ip)
	cfg := s.probeCfg
	s.mu.Unlock()
	if skip {
		return
	}

	// the current probe finishes even if the sweep is cancelled
	res, err := s.prober.Probe(context.WithoutCancel(ctx), ip, cfg)
	if err != nil {
		if errors.Is(err, probe.ErrUnsupportedPlatform) {
			s.log.WithError(err).Error("cannot probe on this platform, stopping browse")
			s.stop.Store(true)
			return
		}
		s.log.WithError(err).WithField("ip", ip).Warn("probe failed to run")
		return
	}
	if !res.Alive {
		return
	}

	host := domain.DetectedHost{IP: ip}
	if s.enricher != nil {
		host.MAC, host.Vendor = s.enricher.Enrich(ctx, ip)
	}
	s.log.WithFields(logrus.Fields{"ip": ip, "mac": host.MAC, "vendor": host.Vendor}).Debug("host responded")

	s.mu.Lock()
	changed := s.detected.Upsert(host)
	snapshot := s.detected.JSON()
	s.mu.Unlock()

	if changed {
		s.publish(context.WithoutCancel(ctx), s.ids.Result, snapshot)
	}
}

func (s *Sweeper) finish(ctx context.Context, manual bool, visited, total uint64) {
	s.publish(ctx, s.ids.Running, false)
	s.publish(ctx, s.ids.Progress, 0)

	s.mu.Lock()
	var found []domain.DetectedHost
	for _, h := range s.detected.Snapshot() {
		if h.Ignore {
			continue
		}
		if _, static := s.static[h.IP]; static {
			continue
		}
		found = append(found, h)
	}
	if manual && len(found) > 0 {
		s.pending = found
	}
	s.progress = 0
	s.running = false
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"visited": visited,
		"total":   total,
		"new":     len(found),
	}).Info("browse finished")

	if manual && len(found) > 0 && s.notifier != nil {
		if err := s.notifier.Notify(ctx, domain.NewDevicesNotification(found)); err != nil {
			s.log.WithError(err).Warn("failed to deliver new device notification")
		}
	}
}

func (s *Sweeper) publish(ctx context.Context, id string, val any) {
	if err := s.store.SetState(ctx, id, val, true); err != nil {
		s.log.WithError(err).WithField("id", id).Error("failed to publish browse state")
	}
}

// progressValue scales done/total to 0..255
func progressValue(done, total uint64) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(done) / float64(total) * 255))
}

func progressText(done, total uint64) string {
	return fmt.Sprintf("%d / %d", done, total)
}
