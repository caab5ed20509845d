package repository

import (
	"context"
	"time"

	"github.com/grantiva/grantiva-go/internal/model"
)

type SessionTokenRepository interface {
	Save(ctx context.Context, token string, expiresAt time.Time) error
	// Get returns nil when no complete token is stored.
	Get(ctx context.Context) (*model.StoredToken, error)
	Clear(ctx context.Context) error
	IsExpired(expiresAt time.Time) bool
}

type DeviceKeyRepository interface {
	GetOrCreateKeyID(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

type DeviceIDRepository interface {
	// GetOrCreate returns the stored device id, or persists the result of generate.
	GetOrCreate(ctx context.Context, generate func() (string, error)) (string, error)
}
