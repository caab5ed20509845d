package model

import "time"

// Device integrity markers for results that did not come from a fresh
// server verification.
const (
	IntegrityAPIKeyMode = "api_key_mode"
	IntegrityCached     = "cached"
	IntegrityValid      = "valid"
)

// APIKeyModeToken is the sentinel token returned when attestation is
// bypassed because an API key is configured.
const APIKeyModeToken = "api_key_mode"

// StoredToken is the session token persisted between runs.
type StoredToken struct {
	Token     string
	ExpiresAt time.Time
}

// DeviceIntelligence is the server's assessment of the attesting device.
type DeviceIntelligence struct {
	DeviceID            string     `json:"deviceId"`
	RiskScore           int        `json:"riskScore"`
	DeviceIntegrity     string     `json:"deviceIntegrity"`
	JailbreakDetected   bool       `json:"jailbreakDetected"`
	AttestationCount    int        `json:"attestationCount"`
	LastAttestationDate *time.Time `json:"lastAttestationDate,omitempty"`
}

// RiskLevel buckets a risk score for display.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
	RiskUnknown  RiskLevel = "unknown"
)

// RiskLevel maps RiskScore onto its bucket.
func (d DeviceIntelligence) RiskLevel() RiskLevel {
	switch s := d.RiskScore; {
	case s >= 0 && s <= 20:
		return RiskLow
	case s >= 21 && s <= 50:
		return RiskMedium
	case s >= 51 && s <= 80:
		return RiskHigh
	case s >= 81 && s <= 100:
		return RiskVeryHigh
	}
	return RiskUnknown
}

// AttestationResult is returned by every successful validation path.
// Only Token and ExpiresAt are persisted.
type AttestationResult struct {
	IsValid            bool               `json:"isValid"`
	Token              string             `json:"token"`
	ExpiresAt          time.Time          `json:"expiresAt"`
	DeviceIntelligence DeviceIntelligence `json:"deviceIntelligence"`
	CustomClaims       Claims             `json:"customClaims,omitempty"`
}
