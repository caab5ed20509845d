package platform

import "context"

// Attester is the platform attestation primitive: a hardware-backed key
// that can attest to a challenge-derived hash.
type Attester interface {
	// Supported reports whether attestation is available on this device.
	Supported() bool

	// GenerateKey creates a new attestation key and returns its id.
	GenerateKey(ctx context.Context) (string, error)

	// Attest produces an attestation object binding keyID to clientDataHash.
	Attest(ctx context.Context, keyID string, clientDataHash []byte) ([]byte, error)
}

// KeyDeleter is implemented by attesters that keep key material the SDK
// can remove when the attestation identity is reset.
type KeyDeleter interface {
	DeleteKey(ctx context.Context, keyID string) error
}
