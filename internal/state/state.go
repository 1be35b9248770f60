// Package state defines the persisted-state collaborators the monitor talks to.
//
// A Store holds scalar and JSON-string values keyed by dotted ids
// ("pingwatch.0.router.alive") and fans out changes to subscribers.
// An ObjectStore holds the object definitions those ids belong to.
// The sqlite repository implements both.
package state

import (
	"context"
	"path"
	"time"

	"pingwatch/internal/domain"
)

// State is a stored value.
// Ack marks values written by the monitor itself; commands from operators
// arrive with Ack=false.
type State struct {
	ID  string    `json:"id"`
	Val any       `json:"val"`
	Ack bool      `json:"ack"`
	Ts  time.Time `json:"ts"`
}

// Handler receives state changes
type Handler func(st State)

// Store is the get/set/subscribe state interface
type Store interface {
	// GetState returns nil, nil when id has never been written
	GetState(ctx context.Context, id string) (*State, error)
	SetState(ctx context.Context, id string, val any, ack bool) error
	// Subscribe registers h for ids matching pattern ("*" globbing).
	// The returned func removes the subscription.
	Subscribe(pattern string, h Handler) (unsubscribe func())
}

// ObjectStore persists object definitions
type ObjectStore interface {
	// GetObject returns nil, nil when id does not exist
	GetObject(ctx context.Context, id string) (*domain.Object, error)
	SetObject(ctx context.Context, obj domain.Object) error
	ExtendObject(ctx context.Context, id string, patch domain.Object) error
	DeleteObject(ctx context.Context, id string) error
	// ListObjects returns objects whose id starts with prefix, ordered by id
	ListObjects(ctx context.Context, prefix string) ([]domain.Object, error)
}

// Match reports whether id matches a subscription pattern
func Match(pattern, id string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	ok, err := path.Match(pattern, id)
	return err == nil && ok
}

// Bool reads a state value as a boolean
func Bool(st *State) (bool, bool) {
	if st == nil {
		return false, false
	}
	switch v := st.Val.(type) {
	case bool:
		return v, true
	case float64:
		return v != 0, true
	case string:
		return v == "true", v == "true" || v == "false"
	}
	return false, false
}

// String reads a state value as a string
func String(st *State) (string, bool) {
	if st == nil {
		return "", false
	}
	s, ok := st.Val.(string)
	return s, ok
}

// Float reads a state value as a number
func Float(st *State) (float64, bool) {
	if st == nil {
		return 0, false
	}
	switch v := st.Val.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	}
	return 0, false
}
