package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the SDK reports to its host.
type ErrorKind int

const (
	KindDeviceNotSupported ErrorKind = iota + 1
	KindAttestationNotAvailable
	KindNetworkError
	KindValidationFailed
	KindTokenExpired
	KindConfigurationError
	KindKeyGenerationFailed
	KindChallengeExpired
	KindInvalidResponse
	KindRateLimited
	KindFeedbackNotAvailable
)

var kindNames = map[ErrorKind]string{
	KindDeviceNotSupported:      "device_not_supported",
	KindAttestationNotAvailable: "attestation_not_available",
	KindNetworkError:            "network_error",
	KindValidationFailed:        "validation_failed",
	KindTokenExpired:            "token_expired",
	KindConfigurationError:      "configuration_error",
	KindKeyGenerationFailed:     "key_generation_failed",
	KindChallengeExpired:        "challenge_expired",
	KindInvalidResponse:         "invalid_response",
	KindRateLimited:             "rate_limited",
	KindFeedbackNotAvailable:    "feedback_not_available",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Description is the human-readable text a host may show to its users.
func (k ErrorKind) Description() string {
	switch k {
	case KindDeviceNotSupported:
		return "This device does not support App Attest functionality"
	case KindAttestationNotAvailable:
		return "App Attest is not available on this device"
	case KindNetworkError:
		return "Network error occurred"
	case KindValidationFailed:
		return "Attestation validation failed"
	case KindTokenExpired:
		return "Authentication token has expired"
	case KindConfigurationError:
		return "SDK configuration error"
	case KindKeyGenerationFailed:
		return "Failed to generate or retrieve attestation key"
	case KindChallengeExpired:
		return "Challenge has expired and needs to be refreshed"
	case KindInvalidResponse:
		return "Invalid response received from server"
	case KindRateLimited:
		return "Too many requests. Please try again later"
	case KindFeedbackNotAvailable:
		return "Feedback service is not available for this tenant"
	}
	return "Unknown error"
}

// FailureReason is a diagnostic hint, separate from the description.
func (k ErrorKind) FailureReason() string {
	switch k {
	case KindDeviceNotSupported:
		return "App Attest requires a supported device and is not available in simulators"
	case KindAttestationNotAvailable:
		return "App Attest service is not supported on this device or region"
	case KindNetworkError:
		return "Check your internet connection and try again"
	case KindValidationFailed:
		return "The device attestation could not be verified by the server"
	case KindTokenExpired:
		return "The authentication token needs to be refreshed"
	case KindConfigurationError:
		return "Invalid Bundle ID or Team ID configuration"
	case KindKeyGenerationFailed:
		return "Unable to create or access secure attestation key"
	case KindChallengeExpired:
		return "Server challenge has expired"
	case KindInvalidResponse:
		return "Server returned an unexpected response format"
	case KindRateLimited:
		return "You have exceeded the rate limit for this action"
	case KindFeedbackNotAvailable:
		return "Your current plan may not include feedback features"
	}
	return ""
}

// Error is the SDK's error type. Two Errors match under errors.Is when
// their kinds are equal, so callers compare against the Err* sentinels.
type Error struct {
	Kind ErrorKind

	// Cause is the underlying error, if any.
	Cause error

	// StatusCode is the HTTP status that produced a NetworkError. Zero
	// for transport-level failures.
	StatusCode int
}

func (e *Error) Error() string {
	msg := e.Kind.Description()
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: HTTP %d", msg, e.StatusCode)
	}
	return msg
}

// FailureReason returns the diagnostic hint for the error's kind.
func (e *Error) FailureReason() string {
	return e.Kind.FailureReason()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrDeviceNotSupported      = &Error{Kind: KindDeviceNotSupported}
	ErrAttestationNotAvailable = &Error{Kind: KindAttestationNotAvailable}
	ErrNetwork                 = &Error{Kind: KindNetworkError}
	ErrValidationFailed        = &Error{Kind: KindValidationFailed}
	ErrTokenExpired            = &Error{Kind: KindTokenExpired}
	ErrConfiguration           = &Error{Kind: KindConfigurationError}
	ErrKeyGenerationFailed     = &Error{Kind: KindKeyGenerationFailed}
	ErrChallengeExpired        = &Error{Kind: KindChallengeExpired}
	ErrInvalidResponse         = &Error{Kind: KindInvalidResponse}
	ErrRateLimited             = &Error{Kind: KindRateLimited}
	ErrFeedbackNotAvailable    = &Error{Kind: KindFeedbackNotAvailable}
)

// ErrInvalidInput is returned before any network call when a request
// argument violates its length limits.
var ErrInvalidInput = errors.New("invalid input")

// NewError builds an Error of the given kind wrapping cause.
func NewError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// NetworkError wraps a transport failure.
func NetworkError(cause error) *Error {
	return &Error{Kind: KindNetworkError, Cause: cause}
}

// HTTPStatusError reports a non-2xx status that has no more specific kind.
func HTTPStatusError(status int) *Error {
	return &Error{Kind: KindNetworkError, StatusCode: status}
}

// InvalidResponse wraps a decoding failure.
func InvalidResponse(cause error) *Error {
	return &Error{Kind: KindInvalidResponse, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or zero.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
