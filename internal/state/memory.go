package state

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"pingwatch/internal/domain"
)

// Memory is an in-process Store and ObjectStore.
// One-shot CLI commands run against it, and so do tests.
type Memory struct {
	mu      sync.RWMutex
	states  map[string]State
	objects map[string]domain.Object
	subs    map[int]memorySub
	nextID  int

	// writes counts SetState calls per id
	writes map[string]int
	// ops counts object mutations (set, extend, delete)
	ops int
}

type memorySub struct {
	pattern string
	handler Handler
}

// NewMemory creates an empty store
func NewMemory() *Memory {
	return &Memory{
		states:  make(map[string]State),
		objects: make(map[string]domain.Object),
		subs:    make(map[int]memorySub),
		writes:  make(map[string]int),
	}
}

func (m *Memory) GetState(_ context.Context, id string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *Memory) SetState(_ context.Context, id string, val any, ack bool) error {
	st := State{ID: id, Val: val, Ack: ack, Ts: time.Now()}

	m.mu.Lock()
	m.states[id] = st
	m.writes[id]++
	var handlers []Handler
	for _, s := range m.subs {
		if Match(s.pattern, id) {
			handlers = append(handlers, s.handler)
		}
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(st)
	}
	return nil
}

func (m *Memory) Subscribe(pattern string, h Handler) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = memorySub{pattern: pattern, handler: h}
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Writes returns how often id has been written
func (m *Memory) Writes(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes[id]
}

func (m *Memory) GetObject(_ context.Context, id string) (*domain.Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[id]
	if !ok {
		return nil, nil
	}
	return &obj, nil
}

func (m *Memory) SetObject(_ context.Context, obj domain.Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[obj.ID] = obj
	m.ops++
	return nil
}

func (m *Memory) ExtendObject(_ context.Context, id string, patch domain.Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	patch.ID = id
	if cur, ok := m.objects[id]; ok {
		patch = cur.Extend(patch)
	}
	m.objects[id] = patch
	m.ops++
	return nil
}

func (m *Memory) DeleteObject(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, id)
	delete(m.states, id)
	m.ops++
	return nil
}

func (m *Memory) ListObjects(_ context.Context, prefix string) ([]domain.Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Object
	for id, obj := range m.objects {
		if strings.HasPrefix(id, prefix) {
			out = append(out, obj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ObjectOps returns the number of object mutations so far
func (m *Memory) ObjectOps() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ops
}
