package repository

import (
	"context"

	"pingwatch/internal/state"
)

// Repository is the persistence backend the monitor runs against
type Repository interface {
	state.Store
	state.ObjectStore

	// ListStates returns every state whose id starts with prefix
	ListStates(ctx context.Context, prefix string) ([]state.State, error)

	// Close releases resources
	Close() error
}
