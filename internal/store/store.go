package store

import (
	"context"
	"errors"

	"aracitakip/backend/internal/domain"
)

var (
	// ErrNotFound is returned by Load when no ledger has been saved yet.
	ErrNotFound = errors.New("not found")
	ErrCorrupt  = errors.New("corrupt ledger state")
)

// Persister saves and restores the whole ledger as a single blob.
type Persister interface {
	Load(ctx context.Context) (domain.State, error)
	Save(ctx context.Context, state domain.State) error
}
