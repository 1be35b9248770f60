package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pingwatch/internal/browse"
	"pingwatch/internal/config"
	"pingwatch/internal/domain"
	"pingwatch/internal/probe"
	"pingwatch/internal/state"
)

type fakeProber struct {
	mu    sync.Mutex
	alive map[string]bool
	calls []string
	gate  chan struct{}
}

func newFakeProber(alive ...string) *fakeProber {
	p := &fakeProber{alive: map[string]bool{}}
	for _, ip := range alive {
		p.alive[ip] = true
	}
	return p
}

func (p *fakeProber) Probe(_ context.Context, address string, _ probe.Config) (domain.ProbeResult, error) {
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, address)
	if p.alive[address] {
		return domain.Alive(address, domain.Ms(4)), nil
	}
	return domain.Dead(address), nil
}

func (p *fakeProber) probed(address string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.calls {
		if c == address {
			return true
		}
	}
	return false
}

type fakeInterfaces []domain.HostInterface

func (f fakeInterfaces) HostInterfaces(context.Context) ([]domain.HostInterface, error) {
	return f, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	sent map[string]any
}

func (f *fakePublisher) Publish(_ context.Context, typ string, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent == nil {
		f.sent = map[string]any{}
	}
	f.sent[typ] = v
	return nil
}

func (f *fakePublisher) get(typ string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[typ]
}

var lan = fakeInterfaces{
	{Name: "lo", IP: "127.0.0.1", Netmask: "255.0.0.0", Family: "IPv4", Internal: true},
	{Name: "eth0", IP: "192.168.1.10", Netmask: "255.255.255.252", Family: "IPv4"},
	{Name: "eth1", IP: "10.1.0.1", Netmask: "255.255.255.0", Family: "IPv4"},
}

type fixture struct {
	mon    *Monitor
	store  *state.Memory
	prober *fakeProber
	bus    *EventBus
	events chan Event
	pub    *fakePublisher
	cfg    *config.Config
	path   string
}

func newFixture(t *testing.T, devices ...domain.Device) *fixture {
	t.Helper()
	log, _ := test.NewNullLogger()

	cfg := config.DefaultConfig()
	cfg.Devices = devices
	path := filepath.Join(t.TempDir(), "pingwatch.yaml")
	require.NoError(t, cfg.Save(path))

	f := &fixture{
		store:  state.NewMemory(),
		prober: newFakeProber("10.0.0.1", "192.168.1.9"),
		bus:    NewEventBus(),
		events: make(chan Event, 512),
		pub:    &fakePublisher{},
		cfg:    cfg,
		path:   path,
	}
	f.bus.Subscribe(f.events)
	f.mon = NewMonitor(cfg, path, Deps{
		Store:      f.store,
		Prober:     f.prober,
		Interfaces: lan,
		Publisher:  f.pub,
		Bus:        f.bus,
		Log:        log,
	})
	return f
}

func (f *fixture) start(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.mon.Start(ctx))
	t.Cleanup(func() {
		cancel()
		f.mon.Shutdown()
	})
	return ctx
}

func (f *fixture) waitEvent(t *testing.T, typ EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-f.events:
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event", typ)
		}
	}
}

func stateVal(t *testing.T, store state.Store, id string) any {
	t.Helper()
	st, err := store.GetState(context.Background(), id)
	require.NoError(t, err)
	if st == nil {
		return nil
	}
	return st.Val
}

func TestMonitorStartSyncsAndSchedules(t *testing.T) {
	f := newFixture(t,
		domain.Device{Name: "router", IP: "10.0.0.1", ExtendedInfo: true},
		domain.Device{Name: "printer", IP: "10.0.0.2"},
	)
	ctx := f.start(t)

	obj, err := f.store.GetObject(ctx, "pingwatch.0.router")
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Equal(t, "10.0.0.1", obj.Native["host"])

	require.Eventually(t, func() bool {
		return stateVal(t, f.store, "pingwatch.0.router.alive") == true &&
			stateVal(t, f.store, "pingwatch.0.printer.alive") == false
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 4.0, stateVal(t, f.store, "pingwatch.0.router.time"))
	assert.Equal(t, 250.0, stateVal(t, f.store, "pingwatch.0.router.rps"))

	assert.Len(t, f.mon.Tasks(), 2)
	assert.Empty(t, f.mon.Warnings())

	ev := f.waitEvent(t, EventStateChanged)
	assert.IsType(t, state.State{}, ev.Payload)
}

func TestMonitorApplyReconciles(t *testing.T) {
	f := newFixture(t,
		domain.Device{Name: "router", IP: "10.0.0.1"},
		domain.Device{Name: "printer", IP: "10.0.0.2"},
	)
	ctx := f.start(t)

	next := config.DefaultConfig()
	next.Namespace = "other.0"
	next.Devices = []domain.Device{{Name: "router", IP: "10.0.0.1"}}
	require.NoError(t, f.mon.Apply(ctx, next))

	assert.Equal(t, "pingwatch.0", next.Namespace)
	assert.Len(t, f.mon.Tasks(), 1)
	obj, err := f.store.GetObject(ctx, "pingwatch.0.printer")
	require.NoError(t, err)
	assert.Nil(t, obj)

	ev := f.waitEvent(t, EventConfigReloaded)
	assert.Equal(t, map[string]int{"devices": 1, "tasks": 1}, ev.Payload)
}

func TestMonitorApplyDrainsBeforeDeleting(t *testing.T) {
	f := newFixture(t, domain.Device{Name: "gone", IP: "10.0.0.1"})
	f.prober.gate = make(chan struct{})
	ctx := f.start(t)

	applied := make(chan error, 1)
	go func() {
		next := config.DefaultConfig()
		applied <- f.mon.Apply(ctx, next)
	}()

	// the alive pass is parked inside the probe until released
	time.Sleep(50 * time.Millisecond)
	close(f.prober.gate)
	require.NoError(t, <-applied)

	obj, err := f.store.GetObject(ctx, "pingwatch.0.gone")
	require.NoError(t, err)
	assert.Nil(t, obj)
	assert.Nil(t, stateVal(t, f.store, "pingwatch.0.gone.alive"))
	assert.Empty(t, f.mon.Tasks())
}

func TestMonitorReload(t *testing.T) {
	f := newFixture(t, domain.Device{Name: "router", IP: "10.0.0.1"})
	ctx := f.start(t)

	edited := config.DefaultConfig()
	edited.Devices = []domain.Device{
		{Name: "router", IP: "10.0.0.1"},
		{Name: "nas", IP: "10.0.0.3"},
	}
	require.NoError(t, edited.Save(f.path))

	require.NoError(t, f.mon.Reload(ctx))
	assert.Len(t, f.mon.Tasks(), 2)

	none := NewMonitor(config.DefaultConfig(), "", Deps{Store: state.NewMemory(), Prober: f.prober})
	assert.ErrorIs(t, none.Reload(ctx), ErrNoConfigFile)
}

func TestMonitorBrowseDefaultInterface(t *testing.T) {
	f := newFixture(t)
	ctx := f.start(t)

	require.NoError(t, f.mon.Browse(ctx, BrowseRequest{}))
	f.mon.WaitBrowse()

	assert.True(t, f.prober.probed("192.168.1.9"))
	assert.True(t, f.prober.probed("192.168.1.10"))
	assert.Equal(t, "eth0", stateVal(t, f.store, f.mon.ids.Interface))

	status := f.mon.BrowseStatus()
	assert.False(t, status.Running)
	assert.Equal(t, []domain.DetectedHost{{IP: "192.168.1.9"}}, status.Detected)

	// manual sweeps notify
	ev := f.waitEvent(t, EventNotification)
	n, ok := ev.Payload.(domain.Notification)
	require.True(t, ok)
	assert.Equal(t, domain.CategoryNewDevices, n.Category)

	schema := f.mon.NotificationSchema()
	assert.Contains(t, schema.Items, "_add_192_168_1_9")

	require.Eventually(t, func() bool { return f.pub.get("browse.result") != nil }, 2*time.Second, 10*time.Millisecond)
}

func TestMonitorBrowseRemembersInterface(t *testing.T) {
	f := newFixture(t)
	ctx := f.start(t)

	n := uint(2)
	require.NoError(t, f.mon.Browse(ctx, BrowseRequest{Interface: "eth1", RangeStart: "10.1.0.20", RangeLength: &n}))
	f.mon.WaitBrowse()
	assert.True(t, f.prober.probed("10.1.0.21"))
	assert.Equal(t, "eth1", stateVal(t, f.store, f.mon.ids.Interface))
	assert.Equal(t, "10.1.0.20", stateVal(t, f.store, f.mon.ids.RangeStart))
	assert.Equal(t, 2, stateVal(t, f.store, f.mon.ids.RangeLength))

	// no interface given: the last one is reused with its subnet
	iface, err := f.mon.selectInterface(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "eth1", iface.Name)
}

func TestMonitorBrowseErrors(t *testing.T) {
	f := newFixture(t)
	ctx := f.start(t)

	assert.ErrorIs(t, f.mon.Browse(ctx, BrowseRequest{Interface: "wlan9"}), ErrNoInterface)

	n := uint(domain.MaxSweepAddresses + 1)
	err := f.mon.Browse(ctx, BrowseRequest{RangeStart: "10.0.0.0", RangeLength: &n})
	assert.ErrorIs(t, err, browse.ErrRangeTooLarge)
	assert.Nil(t, stateVal(t, f.store, f.mon.ids.Running))
	assert.Nil(t, stateVal(t, f.store, f.mon.ids.RangeStart))

	f.prober.gate = make(chan struct{})
	require.NoError(t, f.mon.Browse(ctx, BrowseRequest{Interface: "eth0"}))
	assert.ErrorIs(t, f.mon.Browse(ctx, BrowseRequest{}), browse.ErrBusy)
	assert.True(t, f.mon.StopBrowse())
	close(f.prober.gate)
	f.mon.WaitBrowse()
}

func TestMonitorStageAndSave(t *testing.T) {
	f := newFixture(t, domain.Device{Name: "router", IP: "10.0.0.1"})
	ctx := f.start(t)

	require.NoError(t, f.mon.Browse(ctx, BrowseRequest{Interface: "eth0"}))
	f.mon.WaitBrowse()

	_, err := f.mon.Save(ctx)
	assert.ErrorIs(t, err, ErrNothingStaged)

	_, err = f.mon.Stage([]string{"not-an-ip"})
	assert.ErrorIs(t, err, domain.ErrInvalidTarget)

	staged, err := f.mon.Stage([]string{"192.168.1.9", "10.0.0.1"})
	require.NoError(t, err)
	assert.Len(t, staged, 2)

	added, err := f.mon.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Empty(t, f.mon.Staged())
	assert.Len(t, f.mon.Tasks(), 2)

	saved, _, err := config.LoadFromPath(f.path)
	require.NoError(t, err)
	require.Len(t, saved.Devices, 2)
	assert.Equal(t, "192.168.1.9", saved.Devices[1].IP)

	// saving dismisses the pending notification
	assert.Contains(t, f.mon.NotificationSchema().Items, "_none")
}

func TestMonitorPing(t *testing.T) {
	f := newFixture(t)

	res, err := f.mon.Ping(context.Background(), " 10.0.0.1 ")
	require.NoError(t, err)
	assert.True(t, res.Alive)

	res, err = f.mon.Ping(context.Background(), "10.0.0.77")
	require.NoError(t, err)
	assert.False(t, res.Alive)
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	fast := make(chan Event, 2)
	slow := make(chan Event)
	bus.Subscribe(fast)
	bus.Subscribe(slow)

	bus.Publish(Event{Type: EventConfigReloaded})
	assert.Equal(t, EventConfigReloaded, (<-fast).Type)

	bus.Unsubscribe(fast)
	bus.Publish(Event{Type: EventStateChanged})
	assert.Empty(t, fast)

	require.NoError(t, bus.Notifier().Notify(context.Background(), domain.Notification{Key: "x"}))
}
