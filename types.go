package grantiva

import (
	"github.com/grantiva/grantiva-go/internal/config"
	"github.com/grantiva/grantiva-go/internal/model"
	"github.com/grantiva/grantiva-go/internal/platform"
	"github.com/grantiva/grantiva-go/internal/retry"
	"github.com/grantiva/grantiva-go/internal/service"
	"github.com/grantiva/grantiva-go/internal/storage"
)

type (
	Config       = config.Config
	Attester     = platform.Attester
	AppInfo      = platform.AppInfo
	SecureStore  = storage.SecureStore
	RetryPolicy  = retry.Policy
	Error        = model.Error
	ErrorKind    = model.ErrorKind
	RiskLevel    = model.RiskLevel
	FeatureQuery = model.FeatureQuery

	AttestationResult  = model.AttestationResult
	DeviceIntelligence = model.DeviceIntelligence
	UserContext        = model.UserContext
	DeviceContext      = model.DeviceContext

	FeedbackService      = service.FeedbackService
	FeatureRequest       = model.FeatureRequest
	FeatureRequestStatus = model.FeatureRequestStatus
	FeatureComment       = model.FeatureComment
	Vote                 = model.Vote
	SupportTicket        = model.SupportTicket
	TicketMessage        = model.TicketMessage
	TicketThread         = model.TicketThread
	TicketStatus         = model.TicketStatus
	TicketPriority       = model.TicketPriority
)

var (
	ErrDeviceNotSupported      = model.ErrDeviceNotSupported
	ErrAttestationNotAvailable = model.ErrAttestationNotAvailable
	ErrNetwork                 = model.ErrNetwork
	ErrValidationFailed        = model.ErrValidationFailed
	ErrTokenExpired            = model.ErrTokenExpired
	ErrConfiguration           = model.ErrConfiguration
	ErrKeyGenerationFailed     = model.ErrKeyGenerationFailed
	ErrChallengeExpired        = model.ErrChallengeExpired
	ErrInvalidResponse         = model.ErrInvalidResponse
	ErrRateLimited             = model.ErrRateLimited
	ErrFeedbackNotAvailable    = model.ErrFeedbackNotAvailable
	ErrInvalidInput            = model.ErrInvalidInput
)

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfig reads .env, an optional YAML file named by
// GRANTIVA_CONFIG_FILE, and GRANTIVA_* environment variables.
func LoadConfig() (*Config, error) {
	return config.LoadConfig()
}

// KindOf returns the kind of the first *Error in err's chain, or zero.
func KindOf(err error) ErrorKind {
	return model.KindOf(err)
}

// DefaultFeatureQuery is the unfiltered, vote-sorted first page.
func DefaultFeatureQuery() FeatureQuery {
	return model.DefaultFeatureQuery()
}

// UnsupportedAttester declares a host without attestation support.
func UnsupportedAttester() Attester {
	return platform.Unsupported{}
}
