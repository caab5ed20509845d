package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/grantiva/grantiva-go/internal/model"
)

// Request and response bodies. Model types that already carry camelCase
// json tags are written directly.

type challengeResponse struct {
	Challenge string    `json:"challenge"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type validateRequest struct {
	BundleID          string `json:"bundleId"`
	TeamID            string `json:"teamId"`
	KeyID             string `json:"keyId"`
	AttestationObject string `json:"attestationObject"`
	ClientDataHash    string `json:"clientDataHash"`
	Challenge         string `json:"challenge"`
}

type validateResponse struct {
	IsValid            bool                     `json:"isValid"`
	Token              string                   `json:"token"`
	ExpiresAt          time.Time                `json:"expiresAt"`
	DeviceIntelligence model.DeviceIntelligence `json:"deviceIntelligence"`
	CustomClaims       map[string]string        `json:"customClaims"`
}

type featureListResponse struct {
	Items    []model.FeatureRequest `json:"items"`
	Metadata pageMetadata           `json:"metadata"`
}

type pageMetadata struct {
	Page  int `json:"page"`
	Per   int `json:"per"`
	Total int `json:"total"`
}

type createFeatureRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	SubmitterID string `json:"submitterId"`
	DeviceHash  string `json:"deviceHash"`
}

type voteRequest struct {
	VoterID    string `json:"voterId"`
	DeviceHash string `json:"deviceHash"`
}

type messageRequest struct {
	AuthorID string `json:"authorId"`
	Body     string `json:"body"`
}

type createTicketRequest struct {
	Subject        string  `json:"subject"`
	Body           string  `json:"body"`
	SubmitterID    string  `json:"submitterId"`
	SubmitterEmail *string `json:"submitterEmail"`
	DeviceHash     string  `json:"deviceHash"`
}

type ticketDetailResponse struct {
	ID        uuid.UUID             `json:"id"`
	Subject   string                `json:"subject"`
	Status    model.TicketStatus    `json:"status"`
	Priority  model.TicketPriority  `json:"priority"`
	Messages  []model.TicketMessage `json:"messages"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}
