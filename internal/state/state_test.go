package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pingwatch/internal/domain"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		id      string
		want    bool
	}{
		{"*", "pingwatch.0.a.alive", true},
		{"", "anything", true},
		{"pingwatch.0.browse.*", "pingwatch.0.browse.running", true},
		{"pingwatch.0.browse.*", "pingwatch.0.router.alive", false},
		{"pingwatch.0.*.alive", "pingwatch.0.router.alive", true},
		{"pingwatch.0.browse.running", "pingwatch.0.browse.running", true},
		{"[", "x", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.pattern, tt.id))
		})
	}
}

func TestValueReaders(t *testing.T) {
	b, ok := Bool(&State{Val: true})
	assert.True(t, ok)
	assert.True(t, b)

	b, ok = Bool(&State{Val: "false"})
	assert.True(t, ok)
	assert.False(t, b)

	_, ok = Bool(nil)
	assert.False(t, ok)

	s, ok := String(&State{Val: "eth0"})
	assert.True(t, ok)
	assert.Equal(t, "eth0", s)

	f, ok := Float(&State{Val: 12})
	assert.True(t, ok)
	assert.Equal(t, 12.0, f)

	_, ok = Float(&State{Val: "12"})
	assert.False(t, ok)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var seen []string
	unsubscribe := m.Subscribe("ns.browse.*", func(st State) { seen = append(seen, st.ID) })

	require.NoError(t, m.SetState(ctx, "ns.browse.running", true, true))
	require.NoError(t, m.SetState(ctx, "ns.router.alive", true, true))
	unsubscribe()
	require.NoError(t, m.SetState(ctx, "ns.browse.progress", 1, true))

	assert.Equal(t, []string{"ns.browse.running"}, seen)
	assert.Equal(t, 1, m.Writes("ns.browse.running"))

	require.NoError(t, m.SetObject(ctx, domain.Object{ID: "ns.b", Type: domain.ObjectTypeChannel}))
	require.NoError(t, m.ExtendObject(ctx, "ns.a", domain.Object{Type: domain.ObjectTypeChannel}))
	objs, err := m.ListObjects(ctx, "ns.")
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "ns.a", objs[0].ID)

	require.NoError(t, m.DeleteObject(ctx, "ns.a"))
	obj, err := m.GetObject(ctx, "ns.a")
	require.NoError(t, err)
	assert.Nil(t, obj)
	assert.Equal(t, 3, m.ObjectOps())
}
