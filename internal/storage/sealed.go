package storage

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// ErrSealBroken is returned when a stored value fails authentication.
var ErrSealBroken = errors.New("sealed item failed authentication")

const sealInfo = "grantiva-secure-store-v1"

// SealedStore encrypts values with XChaCha20-Poly1305 before handing them
// to the wrapped store. The item's service and account are bound as
// associated data, so a value copied to another slot fails to open.
type SealedStore struct {
	inner SecureStore
	key   []byte
}

// NewSealedStore derives the encryption key from secret with HKDF-SHA256.
func NewSealedStore(inner SecureStore, secret string) (*SealedStore, error) {
	if secret == "" {
		return nil, errors.New("sealed store: empty secret")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(sealInfo)), key); err != nil {
		return nil, fmt.Errorf("derive seal key: %w", err)
	}
	return &SealedStore{inner: inner, key: key}, nil
}

func associatedData(service, account string) []byte {
	return []byte(service + "|" + account)
}

func (s *SealedStore) Put(ctx context.Context, service, account string, value []byte) error {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return fmt.Errorf("seal: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(value)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("seal nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, value, associatedData(service, account))
	return s.inner.Put(ctx, service, account, sealed)
}

func (s *SealedStore) Get(ctx context.Context, service, account string) ([]byte, error) {
	sealed, err := s.inner.Get(ctx, service, account)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, ErrSealBroken
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, associatedData(service, account))
	if err != nil {
		return nil, ErrSealBroken
	}
	return plain, nil
}

func (s *SealedStore) Delete(ctx context.Context, service, account string) error {
	return s.inner.Delete(ctx, service, account)
}
