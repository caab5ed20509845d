package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no value is stored.
var ErrNotFound = errors.New("secure item not found")

// SecureStore is keyed persistent storage for small secrets, addressed
// by a service name and an account within it.
type SecureStore interface {
	Put(ctx context.Context, service, account string, value []byte) error
	Get(ctx context.Context, service, account string) ([]byte, error)

	// Delete succeeds when nothing is stored.
	Delete(ctx context.Context, service, account string) error
}
