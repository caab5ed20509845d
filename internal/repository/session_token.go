package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/grantiva/grantiva-go/internal/model"
	"github.com/grantiva/grantiva-go/internal/storage"
)

const (
	TokenService       = "com.grantiva.sdk.tokens"
	TokenAccount       = "grantiva_attestation_token"
	TokenExpiryAccount = "grantiva_token_expiration"
	TokenExpiryBuffer  = 300 * time.Second
)

type sessionTokenRepository struct {
	store storage.SecureStore
	now   func() time.Time
}

// NewSessionTokenRepository stores the token and its expiry as two items.
// now defaults to time.Now.
func NewSessionTokenRepository(store storage.SecureStore, now func() time.Time) SessionTokenRepository {
	if now == nil {
		now = time.Now
	}
	return &sessionTokenRepository{store: store, now: now}
}

// Save writes the token first, then its RFC 3339 expiry. A failure
// between the two leaves a token without expiry, which Get ignores.
func (r *sessionTokenRepository) Save(ctx context.Context, token string, expiresAt time.Time) error {
	if err := r.store.Put(ctx, TokenService, TokenAccount, []byte(token)); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	expiry := expiresAt.UTC().Truncate(time.Second).Format(time.RFC3339)
	if err := r.store.Put(ctx, TokenService, TokenExpiryAccount, []byte(expiry)); err != nil {
		return fmt.Errorf("save token expiry: %w", err)
	}
	log.Printf("[TokenStore] Save OK: expires_at=%s", expiry)
	return nil
}

func (r *sessionTokenRepository) Get(ctx context.Context) (*model.StoredToken, error) {
	token, err := r.store.Get(ctx, TokenService, TokenAccount)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	raw, err := r.store.Get(ctx, TokenService, TokenExpiryAccount)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get token expiry: %w", err)
	}

	expiresAt, err := time.Parse(time.RFC3339, string(raw))
	if err != nil {
		log.Printf("[TokenStore] Get FAILED: unparseable expiry %q", raw)
		return nil, nil
	}
	if len(token) == 0 {
		return nil, nil
	}
	return &model.StoredToken{Token: string(token), ExpiresAt: expiresAt}, nil
}

func (r *sessionTokenRepository) Clear(ctx context.Context) error {
	var errs []error
	if err := r.store.Delete(ctx, TokenService, TokenAccount); err != nil {
		errs = append(errs, err)
	}
	if err := r.store.Delete(ctx, TokenService, TokenExpiryAccount); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// IsExpired is true once now is within TokenExpiryBuffer of expiresAt.
func (r *sessionTokenRepository) IsExpired(expiresAt time.Time) bool {
	return !r.now().Add(TokenExpiryBuffer).Before(expiresAt)
}
