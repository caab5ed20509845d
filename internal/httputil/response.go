package httputil

import (
	"encoding/json"
	"log"
	"net/http"
)

// Reasons carried in error bodies. Clients branch on some of them.
const (
	ReasonBadRequest           = "bad_request"
	ReasonUnauthorized         = "unauthorized"
	ReasonNotFound             = "not_found"
	ReasonConflict             = "conflict"
	ReasonInternal             = "internal_error"
	ReasonChallengeExpired     = "challenge_expired"
	ReasonAttestationInvalid   = "attestation_invalid"
	ReasonFeedbackNotAvailable = "feedback_not_available"
)

// ErrorResponse is the error envelope: {"error": true, "reason": "..."}.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent.
			log.Printf("[HTTP] encode response FAILED: %v", err)
		}
	}
}

// WriteError writes {"error": true, "reason": reason, "message": message}.
func WriteError(w http.ResponseWriter, status int, reason string, message string) {
	WriteJSON(w, status, ErrorResponse{Error: true, Reason: reason, Message: message})
}

// WriteBadRequest writes a 400 Bad Request error
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, ReasonBadRequest, message)
}

// WriteUnauthorized writes a 401 Unauthorized error
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, ReasonUnauthorized, message)
}

// WriteUnauthorizedWithReason writes a 401 with a specific reason
func WriteUnauthorizedWithReason(w http.ResponseWriter, reason string, message string) {
	WriteError(w, http.StatusUnauthorized, reason, message)
}

// WriteFeedbackNotAvailable writes the 403 clients map to FeedbackNotAvailable
func WriteFeedbackNotAvailable(w http.ResponseWriter) {
	WriteError(w, http.StatusForbidden, ReasonFeedbackNotAvailable, "Feedback is not enabled for this app")
}

// WriteNotFound writes a 404 Not Found error
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, ReasonNotFound, message)
}

// WriteConflict writes a 409 Conflict error
func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, ReasonConflict, message)
}

// WriteGone writes the 410 clients map to ChallengeExpired
func WriteGone(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusGone, ReasonChallengeExpired, message)
}

// WriteInternalError writes a 500 Internal Server Error
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, ReasonInternal, message)
}
