package client

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/grantiva/grantiva-go/internal/model"
)

const (
	challengePath = "/api/v1/attestation/challenge"
	validatePath  = "/api/v1/attestation/validate"
)

// AttestationAPI is the attestation half of the Grantiva API.
type AttestationAPI interface {
	RequestChallenge(ctx context.Context) (*Challenge, error)
	ValidateAttestation(ctx context.Context, req ValidateRequest) (*model.AttestationResult, error)
}

// Challenge is a server nonce the device must attest against.
type Challenge struct {
	Value     string
	ExpiresAt time.Time
}

// ValidateRequest carries raw bytes; they are base64 encoded on the wire.
type ValidateRequest struct {
	KeyID             string
	AttestationObject []byte
	ClientDataHash    []byte
	Challenge         string
}

func (c *Client) RequestChallenge(ctx context.Context) (*Challenge, error) {
	var resp challengeResponse
	if err := c.call(ctx, http.MethodGet, challengePath, nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Challenge == "" {
		return nil, model.InvalidResponse(errors.New("empty challenge"))
	}
	expiresAt, err := parseTime("expiresAt", resp.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &Challenge{Value: resp.Challenge, ExpiresAt: expiresAt}, nil
}

func (c *Client) ValidateAttestation(ctx context.Context, req ValidateRequest) (*model.AttestationResult, error) {
	body := attestationRequest{
		BundleID:          c.bundleID,
		TeamID:            c.teamID,
		KeyID:             req.KeyID,
		AttestationObject: base64.StdEncoding.EncodeToString(req.AttestationObject),
		ClientDataHash:    base64.StdEncoding.EncodeToString(req.ClientDataHash),
		Challenge:         req.Challenge,
	}

	var resp attestationResponse
	if err := c.call(ctx, http.MethodPost, validatePath, nil, body, &resp); err != nil {
		return nil, err
	}
	if !resp.IsValid {
		// A rejection carries no usable token or expiry.
		return &model.AttestationResult{IsValid: false}, nil
	}

	expiresAt, err := parseTime("expiresAt", resp.ExpiresAt)
	if err != nil {
		return nil, err
	}
	di := model.DeviceIntelligence{
		DeviceID:          resp.DeviceIntelligence.DeviceID,
		RiskScore:         resp.DeviceIntelligence.RiskScore,
		DeviceIntegrity:   resp.DeviceIntelligence.DeviceIntegrity,
		JailbreakDetected: resp.DeviceIntelligence.JailbreakDetected,
		AttestationCount:  resp.DeviceIntelligence.AttestationCount,
	}
	if last := resp.DeviceIntelligence.LastAttestationDate; last != nil && *last != "" {
		t, err := parseTime("lastAttestationDate", *last)
		if err != nil {
			return nil, err
		}
		di.LastAttestationDate = &t
	}

	return &model.AttestationResult{
		IsValid:            resp.IsValid,
		Token:              resp.Token,
		ExpiresAt:          expiresAt,
		DeviceIntelligence: di,
		CustomClaims:       model.ClaimsFromStrings(resp.CustomClaims),
	}, nil
}
