package repository

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/grantiva/grantiva-go/internal/model"
	"github.com/grantiva/grantiva-go/internal/platform"
	"github.com/grantiva/grantiva-go/internal/storage"
)

const (
	KeyService   = "com.grantiva.sdk.keys"
	KeyIDAccount = "grantiva_attest_key_id"
)

type deviceKeyRepository struct {
	store    storage.SecureStore
	attester platform.Attester
}

func NewDeviceKeyRepository(store storage.SecureStore, attester platform.Attester) DeviceKeyRepository {
	return &deviceKeyRepository{store: store, attester: attester}
}

// GetOrCreateKeyID reuses the stored key id, generating one only when
// none exists.
func (r *deviceKeyRepository) GetOrCreateKeyID(ctx context.Context) (string, error) {
	stored, err := r.store.Get(ctx, KeyService, KeyIDAccount)
	switch {
	case err == nil && len(stored) > 0:
		return string(stored), nil
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return "", model.NewError(model.KindKeyGenerationFailed, fmt.Errorf("read key id: %w", err))
	}

	if r.attester == nil || !r.attester.Supported() {
		return "", model.ErrAttestationNotAvailable
	}

	keyID, err := r.attester.GenerateKey(ctx)
	if err != nil {
		log.Printf("[DeviceKey] GenerateKey FAILED: %v", err)
		return "", model.NewError(model.KindKeyGenerationFailed, err)
	}
	if err := r.store.Put(ctx, KeyService, KeyIDAccount, []byte(keyID)); err != nil {
		return "", model.NewError(model.KindKeyGenerationFailed, fmt.Errorf("store key id: %w", err))
	}

	log.Printf("[DeviceKey] GetOrCreateKeyID OK: created key=%.8s", keyID)
	return keyID, nil
}

// Clear forgets the key id. Attesters holding their own key material
// (platform.KeyDeleter) are asked to delete it first.
func (r *deviceKeyRepository) Clear(ctx context.Context) error {
	if deleter, ok := r.attester.(platform.KeyDeleter); ok {
		stored, err := r.store.Get(ctx, KeyService, KeyIDAccount)
		switch {
		case err == nil && len(stored) > 0:
			if err := deleter.DeleteKey(ctx, string(stored)); err != nil {
				return fmt.Errorf("delete attestation key: %w", err)
			}
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("read key id: %w", err)
		}
	}
	if err := r.store.Delete(ctx, KeyService, KeyIDAccount); err != nil {
		return fmt.Errorf("clear key id: %w", err)
	}
	return nil
}
