package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pingwatch/internal/adapter"
	"pingwatch/internal/browse"
	"pingwatch/internal/config"
	"pingwatch/internal/domain"
	"pingwatch/internal/mapper"
	"pingwatch/internal/notify"
	"pingwatch/internal/probe"
	"pingwatch/internal/scheduler"
	"pingwatch/internal/state"
)

var (
	// ErrNoInterface is returned when no interface can be chosen for a sweep
	ErrNoInterface = errors.New("no usable network interface")
	// ErrNothingStaged is returned by Save when no host was staged
	ErrNothingStaged = errors.New("no hosts staged")
	// ErrNoConfigFile is returned by Reload when running on defaults
	ErrNoConfigFile = errors.New("no config file")
)

// Store is what the monitor persists through
type Store interface {
	state.Store
	state.ObjectStore
}

// Publisher sends payloads to an external channel
type Publisher interface {
	Publish(ctx context.Context, typ string, v any) error
}

// Deps are the collaborators of a Monitor. Enricher, Notifier, Publisher
// and Interfaces are optional.
type Deps struct {
	Store      Store
	Prober     probe.Prober
	Interfaces adapter.InterfaceLister
	Enricher   browse.Enricher
	Notifier   notify.Sink
	Publisher  Publisher
	Bus        *EventBus
	Log        logrus.FieldLogger
}

// BrowseRequest selects what a manual sweep covers.
// Interface is a name or address; empty means the last used one.
type BrowseRequest struct {
	Interface   string `json:"interface,omitempty"`
	RangeStart  string `json:"rangeStart,omitempty"`
	RangeLength *uint  `json:"rangeLength,omitempty"`
}

// Monitor is one running pingwatch instance. It owns the scheduler and the
// sweeper, keeps the object layout in sync with the configuration and
// serves the operator commands.
type Monitor struct {
	deps    Deps
	log     logrus.FieldLogger
	ids     domain.BrowseIDs
	sweeper *browse.Sweeper

	mu         sync.Mutex
	cfg        *config.Config
	cfgPath    string
	layout     *mapper.Layout
	sched      *scheduler.Scheduler
	runCtx     context.Context
	cancelAuto context.CancelFunc
	unsubs     []func()
	staged     map[string]domain.DetectedHost

	autoWG sync.WaitGroup
}

// NewMonitor creates a monitor for cfg. cfgPath is where Save and Reload
// read and write; "" means the config came from defaults.
func NewMonitor(cfg *config.Config, cfgPath string, deps Deps) *Monitor {
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	if deps.Bus == nil {
		deps.Bus = NewEventBus()
	}

	m := &Monitor{
		deps:    deps,
		log:     deps.Log.WithField("component", "monitor"),
		ids:     domain.NewBrowseIDs(cfg.Namespace),
		cfg:     cfg,
		cfgPath: cfgPath,
		staged:  map[string]domain.DetectedHost{},
	}

	sinks := notify.Multi{notify.Log{Logger: deps.Log}, deps.Bus.Notifier()}
	if deps.Notifier != nil {
		sinks = append(sinks, deps.Notifier)
	}
	opts := []browse.Option{
		browse.WithNotifier(sinks),
		browse.WithProbeConfig(probeConfig(cfg)),
		browse.WithLogger(deps.Log),
	}
	if deps.Enricher != nil {
		opts = append(opts, browse.WithEnricher(deps.Enricher))
	}
	m.sweeper = browse.New(deps.Prober, deps.Store, cfg.Namespace, opts...)
	return m
}

func probeConfig(cfg *config.Config) probe.Config {
	return probe.Config{
		Timeout:   cfg.ProbeTimeout(),
		MinReply:  cfg.Probe.MinReply,
		ExtraArgs: cfg.Probe.ExtraArgs,
	}
}

// Run starts the monitor and blocks until ctx is cancelled
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	m.Shutdown()
	return nil
}

// Start restores the detected list, reconciles objects and starts the
// scheduling cycles. Sweeps started later run under ctx.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.runCtx != nil {
		return errors.New("monitor already started")
	}
	m.runCtx = ctx

	if err := m.sweeper.Restore(ctx); err != nil {
		return err
	}
	m.unsubs = append(m.unsubs,
		m.sweeper.ListenStop(),
		m.deps.Store.Subscribe(m.cfg.Namespace+".*", m.onState),
	)

	if err := m.apply(ctx, m.cfg); err != nil {
		return err
	}
	m.startAutoDetect(ctx)

	m.log.WithFields(logrus.Fields{
		"namespace": m.cfg.Namespace,
		"devices":   len(m.cfg.Devices),
		"config":    m.cfgPath,
	}).Info("monitor started")
	return nil
}

// Shutdown stops the cycles and any running sweep. Probes already in
// flight finish before it returns.
func (m *Monitor) Shutdown() {
	m.mu.Lock()
	if m.cancelAuto != nil {
		m.cancelAuto()
		m.cancelAuto = nil
	}
	if m.sched != nil {
		m.sched.Stop()
	}
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.unsubs = nil
	m.mu.Unlock()

	m.sweeper.Stop()
	m.autoWG.Wait()
	m.sweeper.Wait()
	m.log.Info("monitor stopped")
}

// Reload reads the config file again and applies it
func (m *Monitor) Reload(ctx context.Context) error {
	m.mu.Lock()
	path := m.cfgPath
	m.mu.Unlock()
	if path == "" {
		return ErrNoConfigFile
	}

	cfg, _, err := config.LoadFromPath(path)
	if err != nil {
		return err
	}
	return m.Apply(ctx, cfg)
}

// Apply switches to cfg: objects are reconciled, the task list is rebuilt
// and the cycles restart. The namespace is fixed for the lifetime of the
// monitor.
func (m *Monitor) Apply(ctx context.Context, cfg *config.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg.Namespace != m.cfg.Namespace {
		m.log.WithFields(logrus.Fields{
			"current":   m.cfg.Namespace,
			"requested": cfg.Namespace,
		}).Warn("namespace change needs a restart, keeping current")
		cfg.Namespace = m.cfg.Namespace
	}

	if m.runCtx == nil {
		m.cfg = cfg
		return nil
	}

	periodChanged := cfg.AutodetectPeriod() != m.cfg.AutodetectPeriod()
	if err := m.apply(ctx, cfg); err != nil {
		return err
	}
	if periodChanged {
		if m.cancelAuto != nil {
			m.cancelAuto()
			m.cancelAuto = nil
		}
		m.startAutoDetect(m.runCtx)
	}

	m.deps.Bus.Publish(Event{
		Type:    EventConfigReloaded,
		Payload: map[string]int{"devices": len(cfg.Devices), "tasks": len(m.layout.Tasks)},
	})
	return nil
}

// apply expects m.mu held
func (m *Monitor) apply(ctx context.Context, cfg *config.Config) error {
	layout := mapper.Plan(cfg.Namespace, cfg.Devices, cfg.NoHostname)

	// the old scheduler must be drained before orphans are deleted, or a
	// pass still in flight writes their states back
	if m.sched != nil {
		m.sched.Stop()
	}
	stats, err := mapper.Sync(ctx, m.deps.Store, layout, m.deps.Log)
	if err != nil {
		if m.sched != nil {
			m.sched.Start(m.runCtx)
		}
		return fmt.Errorf("sync objects: %w", err)
	}

	m.sched = scheduler.New(m.deps.Prober, m.deps.Store, layout.Tasks, scheduler.Config{
		Interval:            cfg.Interval(),
		UnreachableInterval: cfg.UnreachableInterval(),
		Retries:             cfg.Retries,
		Probe:               probeConfig(cfg),
	}, m.deps.Log)
	m.sched.Start(m.runCtx)

	static := make([]string, 0, len(layout.Tasks))
	for _, t := range layout.Tasks {
		static = append(static, t.Host)
	}
	m.sweeper.SetStatic(static)
	m.sweeper.SetProbeConfig(probeConfig(cfg))

	m.cfg = cfg
	m.layout = layout
	m.log.WithFields(logrus.Fields{
		"tasks":   len(layout.Tasks),
		"created": stats.Created,
		"updated": stats.Updated,
		"deleted": stats.Deleted,
	}).Info("configuration applied")
	return nil
}

// startAutoDetect expects m.mu held
func (m *Monitor) startAutoDetect(ctx context.Context) {
	period := m.cfg.AutodetectPeriod()
	if period == 0 {
		return
	}
	actx, cancel := context.WithCancel(ctx)
	m.cancelAuto = cancel

	auto := browse.NewAutoDetect(m.sweeper, period, m.autoRange, m.deps.Log)
	m.autoWG.Add(1)
	go func() {
		defer m.autoWG.Done()
		auto.Run(actx)
	}()
}

func (m *Monitor) autoRange(ctx context.Context) (domain.BrowseRange, error) {
	iface, err := m.selectInterface(ctx, "")
	if err != nil {
		return domain.BrowseRange{}, err
	}
	return domain.BrowseRange{IP: iface.IP, Netmask: iface.Netmask}, nil
}

// onState forwards every state change to the bus and mirrors the detected
// list to the external publisher
func (m *Monitor) onState(st state.State) {
	m.deps.Bus.Publish(Event{Type: EventStateChanged, Payload: st})

	if st.ID != m.ids.Result || m.deps.Publisher == nil {
		return
	}
	raw, _ := state.String(&st)
	hosts, err := domain.ParseDetected(raw)
	if err != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.deps.Publisher.Publish(ctx, "browse.result", hosts); err != nil {
			m.log.WithError(err).Warn("failed to publish detected hosts")
		}
	}()
}

// Ping probes address once with the configured probe settings
func (m *Monitor) Ping(ctx context.Context, address string) (domain.ProbeResult, error) {
	m.mu.Lock()
	cfg := probeConfig(m.cfg)
	m.mu.Unlock()

	res, err := m.deps.Prober.Probe(ctx, strings.TrimSpace(address), cfg)
	if err != nil {
		return domain.ProbeResult{}, err
	}
	return res, nil
}

// Browse starts a manual sweep and returns once it is running.
// The interface and explicit range are persisted for the next request.
func (m *Monitor) Browse(ctx context.Context, req BrowseRequest) error {
	m.mu.Lock()
	runCtx := m.runCtx
	m.mu.Unlock()
	if runCtx == nil {
		runCtx = context.WithoutCancel(ctx)
	}

	rng := domain.BrowseRange{
		RangeStart:  strings.TrimSpace(req.RangeStart),
		RangeLength: req.RangeLength,
	}
	explicit := rng.RangeStart != "" || rng.RangeLength != nil

	iface, err := m.selectInterface(ctx, strings.TrimSpace(req.Interface))
	if err != nil && (!explicit || req.Interface != "") {
		return err
	}
	rng.IP, rng.Netmask = iface.IP, iface.Netmask

	if err := m.sweeper.Start(runCtx, browse.Request{Range: rng, Manual: true}); err != nil {
		return err
	}

	if iface.Name != "" {
		m.persist(ctx, m.ids.Interface, iface.Name)
	}
	if rng.RangeStart != "" {
		m.persist(ctx, m.ids.RangeStart, rng.RangeStart)
	}
	if rng.RangeLength != nil {
		m.persist(ctx, m.ids.RangeLength, int(*rng.RangeLength))
	}
	return nil
}

func (m *Monitor) persist(ctx context.Context, id string, val any) {
	if err := m.deps.Store.SetState(ctx, id, val, true); err != nil {
		m.log.WithError(err).WithField("id", id).Warn("failed to persist browse selection")
	}
}

// selectInterface resolves key, else the last used interface, else the
// first external IPv4 interface
func (m *Monitor) selectInterface(ctx context.Context, key string) (domain.HostInterface, error) {
	if m.deps.Interfaces == nil {
		return domain.HostInterface{}, ErrNoInterface
	}
	ifaces, err := m.deps.Interfaces.HostInterfaces(ctx)
	if err != nil {
		return domain.HostInterface{}, fmt.Errorf("list interfaces: %w", err)
	}

	if key != "" {
		if iface, ok := adapter.FindInterface(ifaces, key); ok {
			return iface, nil
		}
		return domain.HostInterface{}, fmt.Errorf("%w: %s", ErrNoInterface, key)
	}

	if st, err := m.deps.Store.GetState(ctx, m.ids.Interface); err == nil {
		if last, ok := state.String(st); ok && last != "" {
			if iface, ok := adapter.FindInterface(ifaces, last); ok {
				return iface, nil
			}
		}
	}
	if iface, ok := adapter.DefaultInterface(ifaces); ok {
		return iface, nil
	}
	return domain.HostInterface{}, ErrNoInterface
}

// StopBrowse stops the running sweep, reporting whether there was one
func (m *Monitor) StopBrowse() bool {
	return m.sweeper.Stop()
}

// WaitBrowse blocks until the current sweep has finished
func (m *Monitor) WaitBrowse() {
	m.sweeper.Wait()
}

// BrowseStatus snapshots sweep progress and the detected list
func (m *Monitor) BrowseStatus() browse.Status {
	return m.sweeper.Status()
}

// SetIgnore changes the ignore flag of a detected host
func (m *Monitor) SetIgnore(ctx context.Context, ip string, ignore bool) bool {
	return m.sweeper.SetIgnore(ctx, ip, ignore)
}

// Interfaces lists the host's network interfaces
func (m *Monitor) Interfaces(ctx context.Context) ([]domain.HostInterface, error) {
	if m.deps.Interfaces == nil {
		return nil, ErrNoInterface
	}
	return m.deps.Interfaces.HostInterfaces(ctx)
}

// Tasks snapshots the monitored endpoints
func (m *Monitor) Tasks() []domain.PingTaskInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sched == nil {
		return []domain.PingTaskInfo{}
	}
	return m.sched.Tasks()
}

// Warnings returns the problems found when the current config was planned
func (m *Monitor) Warnings() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.layout == nil {
		return nil
	}
	return append([]string(nil), m.layout.Warnings...)
}

// Stage marks addresses for promotion to devices on the next Save.
// Known detected hosts carry their MAC and vendor along.
func (m *Monitor) Stage(ips []string) ([]domain.DetectedHost, error) {
	hosts := make([]domain.DetectedHost, 0, len(ips))
	for _, raw := range ips {
		ip := strings.TrimSpace(raw)
		if net.ParseIP(ip) == nil {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidTarget, raw)
		}
		host, ok := m.sweeper.Lookup(ip)
		if !ok {
			host = domain.DetectedHost{IP: ip}
		}
		host.Ignore = false
		hosts = append(hosts, host)
	}

	m.mu.Lock()
	for _, h := range hosts {
		m.staged[h.IP] = h
	}
	m.mu.Unlock()
	return m.Staged(), nil
}

// Staged lists the staged hosts in address order
func (m *Monitor) Staged() []domain.DetectedHost {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stagedLocked()
}

func (m *Monitor) stagedLocked() []domain.DetectedHost {
	out := make([]domain.DetectedHost, 0, len(m.staged))
	for _, h := range m.staged {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return domain.LessIP(out[i].IP, out[j].IP) })
	return out
}

// Save appends the staged hosts to the device list, writes the config file
// and applies it. It returns the number of devices added.
func (m *Monitor) Save(ctx context.Context) (int, error) {
	m.mu.Lock()
	if len(m.staged) == 0 {
		m.mu.Unlock()
		return 0, ErrNothingStaged
	}
	next := *m.cfg
	next.Devices = append([]domain.Device(nil), m.cfg.Devices...)
	added := next.AddDevices(m.stagedLocked())

	path := m.cfgPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	if err := next.Save(path); err != nil {
		m.mu.Unlock()
		return 0, fmt.Errorf("save config: %w", err)
	}
	m.cfgPath = path
	m.staged = map[string]domain.DetectedHost{}
	m.mu.Unlock()

	m.sweeper.ClearPending()
	m.log.WithFields(logrus.Fields{"added": added, "path": path}).Info("discovered hosts saved as devices")
	return added, m.Apply(ctx, &next)
}

// NotificationSchema describes the pending new-device notification
func (m *Monitor) NotificationSchema() domain.NotificationSchema {
	return domain.BuildNotificationSchema(m.sweeper.PendingNotification())
}
