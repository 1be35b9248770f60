package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pingwatch/internal/domain"
	"pingwatch/internal/probe"
	"pingwatch/internal/state"
)

// scriptedProber replays a fixed sequence of outcomes per host.
// Once a script runs out the last outcome repeats.
type scriptedProber struct {
	mu      sync.Mutex
	scripts map[string][]outcome
	calls   map[string]int
}

type outcome struct {
	alive bool
	ms    float64
	err   error
}

func newScriptedProber() *scriptedProber {
	return &scriptedProber{scripts: map[string][]outcome{}, calls: map[string]int{}}
}

func (p *scriptedProber) on(host string, o ...outcome) *scriptedProber {
	p.scripts[host] = o
	return p
}

func (p *scriptedProber) Probe(_ context.Context, address string, _ probe.Config) (domain.ProbeResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.calls[address]
	p.calls[address]++
	script := p.scripts[address]
	if len(script) == 0 {
		return domain.Dead(address), nil
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	o := script[n]
	if o.err != nil {
		return domain.ProbeResult{}, o.err
	}
	if !o.alive {
		return domain.Dead(address), nil
	}
	return domain.Alive(address, domain.Ms(o.ms)), nil
}

func (p *scriptedProber) count(host string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[host]
}

var (
	up   = outcome{alive: true, ms: 4}
	down = outcome{}
)

func quietLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func newTask(host string, extended bool) *domain.PingTask {
	ns := "pingwatch.0." + host
	return domain.NewPingTask(host, extended, ns+".alive", ns+".time", ns+".rps")
}

func newTestScheduler(p probe.Prober, store state.Store, tasks []*domain.PingTask, retries int) *Scheduler {
	return New(p, store, tasks, Config{Interval: time.Minute, Retries: retries}, quietLogger())
}

func aliveState(t *testing.T, store state.Store, id string) (bool, bool) {
	t.Helper()
	st, err := store.GetState(context.Background(), id)
	require.NoError(t, err)
	return state.Bool(st)
}

func TestRetryExhaustion(t *testing.T) {
	p := newScriptedProber().on("phone", down)
	store := state.NewMemory()
	task := newTask("phone", false)
	s := newTestScheduler(p, store, []*domain.PingTask{task}, 2)

	applied := s.PingWithRetry(context.Background(), task, 2)

	assert.True(t, applied)
	assert.Equal(t, 3, p.count("phone"))
	assert.False(t, task.Online())
	alive, ok := aliveState(t, store, task.AliveID)
	assert.True(t, ok)
	assert.False(t, alive)
}

func TestRetryStopsOnFirstReply(t *testing.T) {
	p := newScriptedProber().on("phone", down, up, up)
	store := state.NewMemory()
	task := newTask("phone", true)
	s := newTestScheduler(p, store, []*domain.PingTask{task}, 3)

	assert.True(t, s.PingWithRetry(context.Background(), task, 3))
	assert.Equal(t, 2, p.count("phone"))
	assert.True(t, task.Online())

	ms, err := store.GetState(context.Background(), task.TimeID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, ms.Val)
	rps, err := store.GetState(context.Background(), task.RateID)
	require.NoError(t, err)
	assert.Equal(t, 250.0, rps.Val)
}

func TestRetryZeroProbesOnce(t *testing.T) {
	p := newScriptedProber().on("nas", down)
	task := newTask("nas", false)
	s := newTestScheduler(p, state.NewMemory(), []*domain.PingTask{task}, 0)

	assert.True(t, s.PingWithRetry(context.Background(), task, 0))
	assert.Equal(t, 1, p.count("nas"))
	assert.False(t, task.Online())
}

func TestRetryExecErrorLeavesStateUnchanged(t *testing.T) {
	execErr := fmt.Errorf("%w: ping: not found", probe.ErrExec)
	p := newScriptedProber().on("nas", outcome{err: execErr})
	store := state.NewMemory()
	task := newTask("nas", false)
	s := newTestScheduler(p, store, []*domain.PingTask{task}, 2)

	assert.False(t, s.PingWithRetry(context.Background(), task, 2))
	assert.Equal(t, 3, p.count("nas"))
	assert.True(t, task.Online())
	assert.Zero(t, store.Writes(task.AliveID))
}

func TestRetryExecErrorThenDeadIsApplied(t *testing.T) {
	execErr := fmt.Errorf("%w: socket", probe.ErrExec)
	p := newScriptedProber().on("nas", outcome{err: execErr}, down)
	task := newTask("nas", false)
	s := newTestScheduler(p, state.NewMemory(), []*domain.PingTask{task}, 1)

	assert.True(t, s.PingWithRetry(context.Background(), task, 1))
	assert.False(t, task.Online())
}

func TestRetryUnsupportedPlatformIsNotRetried(t *testing.T) {
	p := newScriptedProber().on("nas", outcome{err: fmt.Errorf("%w: plan9", probe.ErrUnsupportedPlatform)})
	store := state.NewMemory()
	task := newTask("nas", false)
	s := newTestScheduler(p, store, []*domain.PingTask{task}, 5)

	assert.False(t, s.PingWithRetry(context.Background(), task, 5))
	assert.Equal(t, 1, p.count("nas"))
	assert.True(t, task.Online())
	assert.Zero(t, store.Writes(task.AliveID))
}

func TestExtendedInfoDeadPublishesZeroRate(t *testing.T) {
	p := newScriptedProber().on("cam", down)
	store := state.NewMemory()
	task := newTask("cam", true)
	s := newTestScheduler(p, store, []*domain.PingTask{task}, 0)

	s.PingWithRetry(context.Background(), task, 0)

	ms, err := store.GetState(context.Background(), task.TimeID)
	require.NoError(t, err)
	require.NotNil(t, ms)
	assert.Nil(t, ms.Val)
	rps, err := store.GetState(context.Background(), task.RateID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rps.Val)
}

func TestPlainTaskPublishesOnlyAlive(t *testing.T) {
	p := newScriptedProber().on("cam", up)
	store := state.NewMemory()
	task := newTask("cam", false)
	s := newTestScheduler(p, store, []*domain.PingTask{task}, 0)

	s.PingWithRetry(context.Background(), task, 0)

	assert.Equal(t, 1, store.Writes(task.AliveID))
	assert.Zero(t, store.Writes(task.TimeID))
	assert.Zero(t, store.Writes(task.RateID))
}

func TestPassEligibility(t *testing.T) {
	p := newScriptedProber().on("a", up).on("b", down)
	a := newTask("a", false)
	b := newTask("b", false)
	b.SetOnline(false)
	s := newTestScheduler(p, state.NewMemory(), []*domain.PingTask{a, b}, 0)

	s.RunPass(context.Background(), AliveCycle)
	assert.Equal(t, 1, p.count("a"))
	assert.Equal(t, 0, p.count("b"))

	s.RunPass(context.Background(), UnreachableCycle)
	assert.Equal(t, 1, p.count("a"))
	assert.Equal(t, 1, p.count("b"))
}

func TestPassMovesTaskBetweenCycles(t *testing.T) {
	p := newScriptedProber().on("a", down, up)
	a := newTask("a", false)
	s := newTestScheduler(p, state.NewMemory(), []*domain.PingTask{a}, 0)

	s.RunPass(context.Background(), AliveCycle)
	assert.False(t, a.Online())

	// offline now, so the alive cycle leaves it alone
	s.RunPass(context.Background(), AliveCycle)
	assert.Equal(t, 1, p.count("a"))

	s.RunPass(context.Background(), UnreachableCycle)
	assert.True(t, a.Online())
	assert.Equal(t, 2, p.count("a"))
}

func TestPassStopsWhenCancelled(t *testing.T) {
	p := newScriptedProber()
	tasks := []*domain.PingTask{newTask("a", false), newTask("b", false)}
	s := newTestScheduler(p, state.NewMemory(), tasks, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.RunPass(ctx, AliveCycle)

	assert.Zero(t, p.count("a"))
	assert.Zero(t, p.count("b"))
}

func TestClampInterval(t *testing.T) {
	log, hook := test.NewNullLogger()

	assert.Equal(t, MinInterval, ClampInterval(time.Second, "interval", log))
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	hook.Reset()
	assert.Equal(t, 10*time.Second, ClampInterval(10*time.Second, "interval", log))
	assert.Empty(t, hook.Entries)
}

func TestNewDefaultsUnreachableInterval(t *testing.T) {
	s := New(newScriptedProber(), state.NewMemory(), nil, Config{Interval: 30 * time.Second}, quietLogger())
	alive, unreachable := s.Intervals()
	assert.Equal(t, 30*time.Second, alive)
	assert.Equal(t, 30*time.Second, unreachable)

	s = New(newScriptedProber(), state.NewMemory(), nil, Config{Interval: time.Second, UnreachableInterval: 2 * time.Second}, quietLogger())
	alive, unreachable = s.Intervals()
	assert.Equal(t, MinInterval, alive)
	assert.Equal(t, MinInterval, unreachable)
}

func TestStartRunsFirstPassAndStops(t *testing.T) {
	p := newScriptedProber().on("a", up).on("b", down)
	a := newTask("a", false)
	b := newTask("b", false)
	b.SetOnline(false)
	s := newTestScheduler(p, state.NewMemory(), []*domain.PingTask{a, b}, 0)

	s.Start(context.Background())
	require.Eventually(t, func() bool {
		return p.count("a") == 1 && p.count("b") == 1
	}, 2*time.Second, 10*time.Millisecond)
	s.Stop()

	// stopped before the next interval
	assert.Equal(t, 1, p.count("a"))
	assert.Equal(t, 1, p.count("b"))
	assert.Len(t, s.Tasks(), 2)
}
