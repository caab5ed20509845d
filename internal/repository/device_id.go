package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/grantiva/grantiva-go/internal/storage"
)

const (
	DeviceService   = "com.grantiva.sdk.device"
	DeviceIDAccount = "grantiva_device_id"
)

type deviceIDRepository struct {
	store storage.SecureStore
}

func NewDeviceIDRepository(store storage.SecureStore) DeviceIDRepository {
	return &deviceIDRepository{store: store}
}

func (r *deviceIDRepository) GetOrCreate(ctx context.Context, generate func() (string, error)) (string, error) {
	stored, err := r.store.Get(ctx, DeviceService, DeviceIDAccount)
	if err == nil && len(stored) > 0 {
		return string(stored), nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("read device id: %w", err)
	}

	id, err := generate()
	if err != nil {
		return "", fmt.Errorf("generate device id: %w", err)
	}
	if err := r.store.Put(ctx, DeviceService, DeviceIDAccount, []byte(id)); err != nil {
		return "", fmt.Errorf("store device id: %w", err)
	}
	return id, nil
}
