package mapper

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pingwatch/internal/domain"
	"pingwatch/internal/state"
)

func boolPtr(v bool) *bool { return &v }

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"router", "router"},
		{"192.168.1.1", "192_168_1_1"},
		{"nas:8080", "nas_8080"},
		{"  Living   Room TV ", "Living_Room_TV"},
		{"cam[1]*;?", "cam_1____"},
		{"fe80::1", "fe80__1"},
		{"drucker-büro", "drucker-büro"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestPlanIDs(t *testing.T) {
	devices := []domain.Device{
		{Name: "Router", IP: "192.168.1.1"},
		{IP: "192.168.1.20", ExtendedInfo: true},
		{Name: "Off", IP: "192.168.1.30", Enabled: boolPtr(false)},
	}

	l := Plan("pingwatch.0", devices, false)

	require.Len(t, l.Tasks, 2)
	assert.Equal(t, "192.168.1.1", l.Tasks[0].Host)
	assert.Equal(t, "pingwatch.0.Router.alive", l.Tasks[0].AliveID)
	assert.False(t, l.Tasks[0].ExtendedInfo)
	assert.Equal(t, "pingwatch.0.192_168_1_20.alive", l.Tasks[1].AliveID)
	assert.Equal(t, "pingwatch.0.192_168_1_20.time", l.Tasks[1].TimeID)
	assert.Equal(t, "pingwatch.0.192_168_1_20.rps", l.Tasks[1].RateID)
	assert.True(t, l.Tasks[1].Online())

	ids := l.IDs()
	for _, id := range []string{
		"pingwatch.0.Router",
		"pingwatch.0.Router.alive",
		"pingwatch.0.192_168_1_20",
		"pingwatch.0.192_168_1_20.time",
		"pingwatch.0.192_168_1_20.rps",
		"pingwatch.0.browse.running",
		"pingwatch.0.browse.result",
	} {
		assert.Contains(t, ids, id)
	}
	assert.NotContains(t, ids, "pingwatch.0.Router.time")
	assert.NotContains(t, ids, "pingwatch.0.Off")
	assert.Empty(t, l.Warnings)
}

func TestPlanNoHostname(t *testing.T) {
	l := Plan("pingwatch.0", []domain.Device{{Name: "Router", IP: "192.168.1.1"}}, true)
	require.Len(t, l.Tasks, 1)
	assert.Equal(t, "pingwatch.0.192_168_1_1.alive", l.Tasks[0].AliveID)
}

func TestPlanIsDeterministic(t *testing.T) {
	devices := []domain.Device{{Name: "a", IP: "10.0.0.1"}, {Name: "b", IP: "10.0.0.2:22", ExtendedInfo: true}}
	first := Plan("ns", devices, false)
	second := Plan("ns", devices, false)
	require.Equal(t, len(first.Objects), len(second.Objects))
	for i := range first.Objects {
		assert.True(t, first.Objects[i].Equal(second.Objects[i]))
	}
}

func TestPlanCollision(t *testing.T) {
	devices := []domain.Device{
		{Name: "Living Room", IP: "10.0.0.1"},
		{Name: "Living.Room", IP: "10.0.0.2"},
		{Name: "browse", IP: "10.0.0.3"},
		{Name: "nas", IP: " "},
		{Name: "ok", IP: "10.0.0.4"},
	}

	l := Plan("ns", devices, false)

	require.Len(t, l.Tasks, 2)
	assert.Equal(t, "10.0.0.1", l.Tasks[0].Host)
	assert.Equal(t, "10.0.0.4", l.Tasks[1].Host)
	assert.Len(t, l.Warnings, 3)
}

func TestPlanSkipsMalformedAddresses(t *testing.T) {
	devices := []domain.Device{
		{Name: "bad port", IP: "10.0.0.1:70000"},
		{Name: "zero port", IP: "host:0"},
		{Name: "open bracket", IP: "[::1"},
		{Name: "web", IP: "10.0.0.2:8080"},
	}

	l := Plan("ns", devices, false)

	require.Len(t, l.Tasks, 1)
	assert.Equal(t, "10.0.0.2:8080", l.Tasks[0].Host)
	require.Len(t, l.Warnings, 3)
	assert.Contains(t, l.Warnings[0], "bad port")
	_, planned := l.IDs()["ns.bad_port"]
	assert.False(t, planned)
}

func TestSyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemory()
	log, _ := test.NewNullLogger()
	devices := []domain.Device{
		{Name: "Router", IP: "192.168.1.1"},
		{Name: "Phone", IP: "192.168.1.50", ExtendedInfo: true},
	}

	stats, err := Sync(ctx, store, Plan("pingwatch.0", devices, false), log)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Updated)
	assert.Equal(t, 0, stats.Deleted)
	assert.Equal(t, len(Plan("pingwatch.0", devices, false).Objects), stats.Created)

	opsBefore := store.ObjectOps()
	stats, err = Sync(ctx, store, Plan("pingwatch.0", devices, false), log)
	require.NoError(t, err)
	assert.Zero(t, stats.Total())
	assert.Equal(t, opsBefore, store.ObjectOps())
}

func TestSyncUpdatesAndDeletes(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemory()
	log, _ := test.NewNullLogger()

	_, err := Sync(ctx, store, Plan("ns", []domain.Device{
		{Name: "Router", IP: "10.0.0.1", ExtendedInfo: true},
		{Name: "Old", IP: "10.0.0.9"},
	}, false), log)
	require.NoError(t, err)

	// an extra browse state from an older layout must survive
	require.NoError(t, store.SetObject(ctx, domain.Object{ID: "ns.browse.legacy", Type: domain.ObjectTypeState}))

	stats, err := Sync(ctx, store, Plan("ns", []domain.Device{
		{Name: "Router", IP: "10.0.0.2"},
	}, false), log)
	require.NoError(t, err)

	// Router channel native host changed; Router.time, Router.rps, Old, Old.alive removed
	assert.Equal(t, 0, stats.Created)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 4, stats.Deleted)

	ch, err := store.GetObject(ctx, "ns.Router")
	require.NoError(t, err)
	require.NotNil(t, ch)
	assert.Equal(t, "10.0.0.2", ch.Native["host"])

	legacy, err := store.GetObject(ctx, "ns.browse.legacy")
	require.NoError(t, err)
	assert.NotNil(t, legacy)
}

func TestSyncReplacesWhenExtendCannotConverge(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemory()
	log, _ := test.NewNullLogger()

	l := Plan("ns", []domain.Device{{Name: "Router", IP: "10.0.0.1"}}, false)
	_, err := Sync(ctx, store, l, log)
	require.NoError(t, err)

	// a stale writable flag cannot be cleared by extending
	alive, err := store.GetObject(ctx, "ns.Router.alive")
	require.NoError(t, err)
	stale := *alive
	stale.Common.Write = true
	require.NoError(t, store.SetObject(ctx, stale))

	stats, err := Sync(ctx, store, l, log)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)

	alive, err = store.GetObject(ctx, "ns.Router.alive")
	require.NoError(t, err)
	assert.False(t, alive.Common.Write)
}
