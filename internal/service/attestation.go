package service

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/grantiva/grantiva-go/internal/client"
	"github.com/grantiva/grantiva-go/internal/model"
	"github.com/grantiva/grantiva-go/internal/platform"
	"github.com/grantiva/grantiva-go/internal/repository"
	"github.com/grantiva/grantiva-go/internal/retry"
)

// apiKeyTokenLifetime is how far in the future the API key mode token expires.
const apiKeyTokenLifetime = 100 * 365 * 24 * time.Hour

// AttestationConfig holds the settings AttestationService needs beyond its
// collaborators.
type AttestationConfig struct {
	// APIKey switches the service into API key mode: no attestation runs.
	APIKey   string
	DeviceID string
	Retry    retry.Policy
	Now      func() time.Time
}

// AttestationService exchanges a device attestation for a session token
// and keeps that token fresh.
type AttestationService struct {
	api      client.AttestationAPI
	attester platform.Attester
	tokens   repository.SessionTokenRepository
	keys     repository.DeviceKeyRepository

	apiKey   string
	deviceID string
	policy   retry.Policy
	now      func() time.Time

	inflight singleflight.Group
}

// NewAttestationService wires the orchestrator. attester may be nil on
// hosts with no attestation primitive at all.
func NewAttestationService(
	api client.AttestationAPI,
	attester platform.Attester,
	tokens repository.SessionTokenRepository,
	keys repository.DeviceKeyRepository,
	cfg AttestationConfig,
) *AttestationService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &AttestationService{
		api:      api,
		attester: attester,
		tokens:   tokens,
		keys:     keys,
		apiKey:   cfg.APIKey,
		deviceID: cfg.DeviceID,
		policy:   cfg.Retry,
		now:      now,
	}
}

// ValidateAttestation returns a usable session token, running the full
// challenge/attest/validate protocol only when no unexpired token is stored.
// Concurrent callers share one protocol run.
func (s *AttestationService) ValidateAttestation(ctx context.Context) (*model.AttestationResult, error) {
	if s.apiKey != "" {
		log.Printf("[Attestation] ValidateAttestation OK: mode=api_key")
		return s.apiKeyResult(), nil
	}

	if err := s.checkCompatibility(); err != nil {
		log.Printf("[Attestation] ValidateAttestation FAILED: err=%v", err)
		return nil, err
	}

	ch := s.inflight.DoChan("validate", func() (any, error) {
		// Detached so one caller cancelling does not fail the others.
		return s.validate(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		result := *res.Val.(*model.AttestationResult)
		return &result, nil
	}
}

func (s *AttestationService) validate(ctx context.Context) (*model.AttestationResult, error) {
	stored, err := s.tokens.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("read stored token: %w", err)
	}
	if stored != nil && !s.tokens.IsExpired(stored.ExpiresAt) {
		log.Printf("[Attestation] ValidateAttestation OK: source=cached expires_at=%s", stored.ExpiresAt.Format(time.RFC3339))
		return s.localResult(stored, model.IntegrityCached), nil
	}

	result, err := retry.Do(ctx, s.policy, s.attestOnce)
	if err != nil {
		log.Printf("[Attestation] ValidateAttestation FAILED: err=%v", err)
		return nil, err
	}
	if !result.IsValid {
		log.Printf("[Attestation] ValidateAttestation FAILED: server rejected attestation")
		return nil, model.ErrValidationFailed
	}

	if err := s.tokens.Save(ctx, result.Token, result.ExpiresAt); err != nil {
		return nil, fmt.Errorf("save session token: %w", err)
	}

	log.Printf("[Attestation] ValidateAttestation OK: source=server token=%s risk=%d expires_at=%s",
		tokenPrefix(result.Token), result.DeviceIntelligence.RiskScore, result.ExpiresAt.Format(time.RFC3339))
	return result, nil
}

// attestOnce is one challenge/attest/submit round. A retry starts over
// with a fresh challenge.
func (s *AttestationService) attestOnce(ctx context.Context) (*model.AttestationResult, error) {
	challenge, err := s.api.RequestChallenge(ctx)
	if err != nil {
		return nil, err
	}

	keyID, err := s.keys.GetOrCreateKeyID(ctx)
	if err != nil {
		return nil, err
	}

	hash := sha256.Sum256([]byte(challenge.Value))
	object, err := s.attester.Attest(ctx, keyID, hash[:])
	if err != nil {
		return nil, model.NewError(model.KindValidationFailed, fmt.Errorf("attest key: %w", err))
	}

	if !challenge.ExpiresAt.IsZero() && s.now().After(challenge.ExpiresAt) {
		return nil, model.ErrChallengeExpired
	}

	return s.api.ValidateAttestation(ctx, client.ValidateRequest{
		KeyID:             keyID,
		AttestationObject: object,
		ClientDataHash:    hash[:],
		Challenge:         challenge.Value,
	})
}

// RefreshToken returns nil when nothing is stored. An expired token goes
// through ValidateAttestation; a fresh one is returned as is.
func (s *AttestationService) RefreshToken(ctx context.Context) (*model.AttestationResult, error) {
	stored, err := s.tokens.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("read stored token: %w", err)
	}
	if stored == nil {
		return nil, nil
	}
	if s.tokens.IsExpired(stored.ExpiresAt) {
		log.Printf("[Attestation] RefreshToken: stored token expired, revalidating")
		return s.ValidateAttestation(ctx)
	}
	return s.localResult(stored, model.IntegrityValid), nil
}

// CurrentToken returns the stored token if it is outside the expiry
// buffer, or "" otherwise.
func (s *AttestationService) CurrentToken(ctx context.Context) (string, error) {
	stored, err := s.tokens.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("read stored token: %w", err)
	}
	if stored == nil || s.tokens.IsExpired(stored.ExpiresAt) {
		return "", nil
	}
	return stored.Token, nil
}

func (s *AttestationService) IsTokenValid(ctx context.Context) (bool, error) {
	token, err := s.CurrentToken(ctx)
	if err != nil {
		return false, err
	}
	return token != "", nil
}

// ClearStoredData forgets the device key and session token. The next
// validation generates a new key.
func (s *AttestationService) ClearStoredData(ctx context.Context) error {
	if err := s.keys.Clear(ctx); err != nil {
		return fmt.Errorf("clear device key: %w", err)
	}
	if err := s.tokens.Clear(ctx); err != nil {
		return fmt.Errorf("clear session token: %w", err)
	}
	log.Printf("[Attestation] ClearStoredData OK")
	return nil
}

func (s *AttestationService) checkCompatibility() error {
	if s.attester == nil {
		return model.ErrDeviceNotSupported
	}
	if !s.attester.Supported() {
		return model.ErrAttestationNotAvailable
	}
	return nil
}

func (s *AttestationService) apiKeyResult() *model.AttestationResult {
	return &model.AttestationResult{
		IsValid:   true,
		Token:     model.APIKeyModeToken,
		ExpiresAt: s.now().Add(apiKeyTokenLifetime),
		DeviceIntelligence: model.DeviceIntelligence{
			DeviceID:        s.deviceID,
			DeviceIntegrity: model.IntegrityAPIKeyMode,
		},
	}
}

func (s *AttestationService) localResult(stored *model.StoredToken, integrity string) *model.AttestationResult {
	return &model.AttestationResult{
		IsValid:   true,
		Token:     stored.Token,
		ExpiresAt: stored.ExpiresAt,
		DeviceIntelligence: model.DeviceIntelligence{
			DeviceID:        s.deviceID,
			DeviceIntegrity: integrity,
		},
	}
}

func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}
