package platform

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/grantiva/grantiva-go/internal/storage"
)

// SoftwareKeyService is the secure store service holding software
// attestation private keys, one account per key id.
const SoftwareKeyService = "com.grantiva.sdk.software-keys"

// ErrUnknownKey is returned by Attest for a key id with no private key.
var ErrUnknownKey = errors.New("unknown attestation key")

// SoftwareAttester implements Attester with P-256 keys held in a
// SecureStore. It stands in for hardware attestation on hosts without it.
type SoftwareAttester struct {
	appID string
	store storage.SecureStore

	mu        sync.Mutex
	keys      map[string]*ecdsa.PrivateKey
	signCount uint32
}

// NewSoftwareAttester binds attestations to appID ("TEAMID.bundle.id").
func NewSoftwareAttester(appID string, store storage.SecureStore) *SoftwareAttester {
	return &SoftwareAttester{
		appID: appID,
		store: store,
		keys:  make(map[string]*ecdsa.PrivateKey),
	}
}

func (a *SoftwareAttester) Supported() bool { return true }

func (a *SoftwareAttester) GenerateKey(ctx context.Context) (string, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	privDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return "", fmt.Errorf("marshal private key: %w", err)
	}

	keyID := KeyIDFor(pubDER)
	if err := a.store.Put(ctx, SoftwareKeyService, keyID, privDER); err != nil {
		return "", fmt.Errorf("store private key: %w", err)
	}

	a.mu.Lock()
	a.keys[keyID] = key
	a.mu.Unlock()

	log.Printf("[SoftwareAttester] GenerateKey OK: key=%s", keyID[:8])
	return keyID, nil
}

func (a *SoftwareAttester) Attest(ctx context.Context, keyID string, clientDataHash []byte) ([]byte, error) {
	key, err := a.privateKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}

	a.mu.Lock()
	a.signCount++
	count := a.signCount
	a.mu.Unlock()

	credentialID := sha256.Sum256(pubDER)
	authData := buildAuthData(a.appID, count, credentialID[:])
	sig, err := ecdsa.SignASN1(rand.Reader, key, signedDigest(authData, clientDataHash))
	if err != nil {
		return nil, fmt.Errorf("sign attestation: %w", err)
	}

	return encMode.Marshal(AttestationObject{
		Format:   SoftwareFormat,
		AuthData: authData,
		Statement: AttestationStatement{
			Alg:       ES256,
			Sig:       sig,
			PublicKey: pubDER,
		},
	})
}

func (a *SoftwareAttester) privateKey(ctx context.Context, keyID string) (*ecdsa.PrivateKey, error) {
	a.mu.Lock()
	key, ok := a.keys[keyID]
	a.mu.Unlock()
	if ok {
		return key, nil
	}

	der, err := a.store.Get(ctx, SoftwareKeyService, keyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKey, keyID)
		}
		return nil, fmt.Errorf("load private key: %w", err)
	}
	key, err = x509.ParseECPrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	a.mu.Lock()
	a.keys[keyID] = key
	a.mu.Unlock()
	return key, nil
}

// DeleteKey removes the private key for keyID. A missing key is not an error.
func (a *SoftwareAttester) DeleteKey(ctx context.Context, keyID string) error {
	a.mu.Lock()
	delete(a.keys, keyID)
	a.mu.Unlock()

	if err := a.store.Delete(ctx, SoftwareKeyService, keyID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete private key: %w", err)
	}
	return nil
}

var _ KeyDeleter = (*SoftwareAttester)(nil)

// Unsupported is an Attester for hosts where attestation is unavailable.
type Unsupported struct{}

func (Unsupported) Supported() bool { return false }

func (Unsupported) GenerateKey(ctx context.Context) (string, error) {
	return "", errors.New("attestation not supported")
}

func (Unsupported) Attest(ctx context.Context, keyID string, clientDataHash []byte) ([]byte, error) {
	return nil, errors.New("attestation not supported")
}
