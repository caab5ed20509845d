package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/grantiva/grantiva-go/internal/httputil"
	"github.com/grantiva/grantiva-go/internal/sandbox"
)

type AttestationHandler struct {
	sandbox *sandbox.Server
}

func NewAttestationHandler(s *sandbox.Server) *AttestationHandler {
	return &AttestationHandler{sandbox: s}
}

// Challenge handles GET /api/v1/attestation/challenge
func (h *AttestationHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	ch, err := h.sandbox.IssueChallenge()
	if err != nil {
		log.Printf("[ERROR] Challenge handler: err=%v", err)
		httputil.WriteInternalError(w, "Failed to issue challenge")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, challengeResponse{Challenge: ch.Value, ExpiresAt: ch.ExpiresAt})
}

// Validate handles POST /api/v1/attestation/validate
// Verifies an attestation against a previously issued challenge and
// returns a session token.
func (h *AttestationHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.KeyID == "" || req.Challenge == "" {
		httputil.WriteBadRequest(w, "keyId and challenge are required")
		return
	}
	object, err := base64.StdEncoding.DecodeString(req.AttestationObject)
	if err != nil {
		httputil.WriteBadRequest(w, "attestationObject must be base64")
		return
	}
	hash, err := base64.StdEncoding.DecodeString(req.ClientDataHash)
	if err != nil {
		httputil.WriteBadRequest(w, "clientDataHash must be base64")
		return
	}

	verdict, err := h.sandbox.Validate(sandbox.Submission{
		BundleID:          req.BundleID,
		TeamID:            req.TeamID,
		KeyID:             req.KeyID,
		AttestationObject: object,
		ClientDataHash:    hash,
		Challenge:         req.Challenge,
	})
	if err != nil {
		switch {
		case errors.Is(err, sandbox.ErrChallengeExpired), errors.Is(err, sandbox.ErrChallengeUnknown):
			httputil.WriteGone(w, "Challenge expired or already used")
		case errors.Is(err, sandbox.ErrAttestationRejected):
			log.Printf("[Sandbox] Validate FAILED: key=%.8s err=%v", req.KeyID, err)
			httputil.WriteUnauthorizedWithReason(w, httputil.ReasonAttestationInvalid, "Attestation could not be verified")
		default:
			log.Printf("[ERROR] Validate handler: err=%v", err)
			httputil.WriteInternalError(w, "Failed to validate attestation")
		}
		return
	}

	claims := verdict.CustomClaims
	if claims == nil {
		claims = map[string]string{}
	}
	httputil.WriteJSON(w, http.StatusOK, validateResponse{
		IsValid:            true,
		Token:              verdict.Token,
		ExpiresAt:          verdict.ExpiresAt,
		DeviceIntelligence: verdict.DeviceIntelligence,
		CustomClaims:       claims,
	})
}
