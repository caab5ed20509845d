package client

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/grantiva/grantiva-go/internal/model"
)

// Wire types. Timestamps travel as RFC 3339 strings and are parsed
// explicitly so a malformed one surfaces as InvalidResponse.

type challengeResponse struct {
	Challenge string `json:"challenge"`
	ExpiresAt string `json:"expiresAt"`
}

type attestationRequest struct {
	BundleID          string `json:"bundleId"`
	TeamID            string `json:"teamId"`
	KeyID             string `json:"keyId"`
	AttestationObject string `json:"attestationObject"`
	ClientDataHash    string `json:"clientDataHash"`
	Challenge         string `json:"challenge"`
}

type attestationResponse struct {
	IsValid            bool                       `json:"isValid"`
	Token              string                     `json:"token"`
	ExpiresAt          string                     `json:"expiresAt"`
	DeviceIntelligence deviceIntelligenceResponse `json:"deviceIntelligence"`
	CustomClaims       map[string]string          `json:"customClaims"`
}

type deviceIntelligenceResponse struct {
	DeviceID            string  `json:"deviceId"`
	RiskScore           int     `json:"riskScore"`
	DeviceIntegrity     string  `json:"deviceIntegrity"`
	JailbreakDetected   bool    `json:"jailbreakDetected"`
	AttestationCount    int     `json:"attestationCount"`
	LastAttestationDate *string `json:"lastAttestationDate"`
}

type createFeatureRequestBody struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	SubmitterID string `json:"submitterId"`
	DeviceHash  string `json:"deviceHash"`
}

type voteRequestBody struct {
	VoterID    string `json:"voterId"`
	DeviceHash string `json:"deviceHash"`
}

type createCommentBody struct {
	AuthorID string `json:"authorId"`
	Body     string `json:"body"`
}

type featureRequestResponse struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Status       string    `json:"status"`
	VoteCount    int       `json:"voteCount"`
	HasVoted     bool      `json:"hasVoted"`
	CommentCount int       `json:"commentCount"`
	CreatedAt    string    `json:"createdAt"`
	UpdatedAt    string    `json:"updatedAt"`
}

type voteResponse struct {
	ID               uuid.UUID `json:"id"`
	FeatureRequestID uuid.UUID `json:"featureRequestId"`
	CreatedAt        string    `json:"createdAt"`
}

type commentResponse struct {
	ID               uuid.UUID `json:"id"`
	FeatureRequestID uuid.UUID `json:"featureRequestId"`
	AuthorType       string    `json:"authorType"`
	Body             string    `json:"body"`
	CreatedAt        string    `json:"createdAt"`
}

type paginatedFeatureResponse struct {
	Items    []featureRequestResponse `json:"items"`
	Metadata paginationMetadata       `json:"metadata"`
}

type paginationMetadata struct {
	Page  int `json:"page"`
	Per   int `json:"per"`
	Total int `json:"total"`
}

type createTicketBody struct {
	Subject        string  `json:"subject"`
	Body           string  `json:"body"`
	SubmitterID    string  `json:"submitterId"`
	SubmitterEmail *string `json:"submitterEmail,omitempty"`
	DeviceHash     string  `json:"deviceHash"`
}

type createTicketMessageBody struct {
	AuthorID string `json:"authorId"`
	Body     string `json:"body"`
}

type supportTicketResponse struct {
	ID           uuid.UUID `json:"id"`
	Subject      string    `json:"subject"`
	Status       string    `json:"status"`
	Priority     string    `json:"priority"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    string    `json:"createdAt"`
	UpdatedAt    string    `json:"updatedAt"`
}

type ticketDetailResponse struct {
	ID        uuid.UUID               `json:"id"`
	Subject   string                  `json:"subject"`
	Status    string                  `json:"status"`
	Priority  string                  `json:"priority"`
	Messages  []ticketMessageResponse `json:"messages"`
	CreatedAt string                  `json:"createdAt"`
	UpdatedAt string                  `json:"updatedAt"`
}

type ticketMessageResponse struct {
	ID         uuid.UUID `json:"id"`
	TicketID   uuid.UUID `json:"ticketId"`
	AuthorType string    `json:"authorType"`
	Body       string    `json:"body"`
	CreatedAt  string    `json:"createdAt"`
}

// parseTime accepts RFC 3339 with or without fractional seconds.
func parseTime(field, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, model.InvalidResponse(fmt.Errorf("%s: %w", field, err))
	}
	return t, nil
}

func (r featureRequestResponse) toModel() (model.FeatureRequest, error) {
	status := model.FeatureRequestStatus(r.Status)
	if !status.Valid() {
		return model.FeatureRequest{}, model.InvalidResponse(fmt.Errorf("unknown feature status %q", r.Status))
	}
	createdAt, err := parseTime("createdAt", r.CreatedAt)
	if err != nil {
		return model.FeatureRequest{}, err
	}
	updatedAt, err := parseTime("updatedAt", r.UpdatedAt)
	if err != nil {
		return model.FeatureRequest{}, err
	}
	return model.FeatureRequest{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		Status:       status,
		VoteCount:    r.VoteCount,
		HasVoted:     r.HasVoted,
		CommentCount: r.CommentCount,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

func (r voteResponse) toModel() (model.Vote, error) {
	createdAt, err := parseTime("createdAt", r.CreatedAt)
	if err != nil {
		return model.Vote{}, err
	}
	return model.Vote{ID: r.ID, FeatureRequestID: r.FeatureRequestID, CreatedAt: createdAt}, nil
}

func (r commentResponse) toModel() (model.FeatureComment, error) {
	author := model.CommentAuthorType(r.AuthorType)
	if !author.Valid() {
		return model.FeatureComment{}, model.InvalidResponse(fmt.Errorf("unknown author type %q", r.AuthorType))
	}
	createdAt, err := parseTime("createdAt", r.CreatedAt)
	if err != nil {
		return model.FeatureComment{}, err
	}
	return model.FeatureComment{
		ID:               r.ID,
		FeatureRequestID: r.FeatureRequestID,
		AuthorType:       author,
		Body:             r.Body,
		CreatedAt:        createdAt,
	}, nil
}

func ticketFields(status, priority, created, updated string) (model.TicketStatus, model.TicketPriority, time.Time, time.Time, error) {
	s := model.TicketStatus(status)
	p := model.TicketPriority(priority)
	if !s.Valid() {
		return "", "", time.Time{}, time.Time{}, model.InvalidResponse(fmt.Errorf("unknown ticket status %q", status))
	}
	if !p.Valid() {
		return "", "", time.Time{}, time.Time{}, model.InvalidResponse(fmt.Errorf("unknown ticket priority %q", priority))
	}
	createdAt, err := parseTime("createdAt", created)
	if err != nil {
		return "", "", time.Time{}, time.Time{}, err
	}
	updatedAt, err := parseTime("updatedAt", updated)
	if err != nil {
		return "", "", time.Time{}, time.Time{}, err
	}
	return s, p, createdAt, updatedAt, nil
}

func (r supportTicketResponse) toModel() (model.SupportTicket, error) {
	status, priority, createdAt, updatedAt, err := ticketFields(r.Status, r.Priority, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return model.SupportTicket{}, err
	}
	return model.SupportTicket{
		ID:           r.ID,
		Subject:      r.Subject,
		Status:       status,
		Priority:     priority,
		MessageCount: r.MessageCount,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

func (r ticketMessageResponse) toModel() (model.TicketMessage, error) {
	author := model.CommentAuthorType(r.AuthorType)
	if !author.Valid() {
		return model.TicketMessage{}, model.InvalidResponse(fmt.Errorf("unknown author type %q", r.AuthorType))
	}
	createdAt, err := parseTime("createdAt", r.CreatedAt)
	if err != nil {
		return model.TicketMessage{}, err
	}
	return model.TicketMessage{
		ID:         r.ID,
		TicketID:   r.TicketID,
		AuthorType: author,
		Body:       r.Body,
		CreatedAt:  createdAt,
	}, nil
}

func (r ticketDetailResponse) toModel() (*model.TicketThread, error) {
	status, priority, createdAt, updatedAt, err := ticketFields(r.Status, r.Priority, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &model.TicketThread{
		Ticket: model.SupportTicket{
			ID:           r.ID,
			Subject:      r.Subject,
			Status:       status,
			Priority:     priority,
			MessageCount: len(r.Messages),
			CreatedAt:    createdAt,
			UpdatedAt:    updatedAt,
		},
		Messages: convertList("ticket message", r.Messages, ticketMessageResponse.toModel),
	}, nil
}

// convertList keeps the items that convert and logs the ones that don't,
// so one malformed row does not hide the rest of a listing.
func convertList[W any, M any](what string, items []W, convert func(W) (M, error)) []M {
	out := make([]M, 0, len(items))
	for _, item := range items {
		m, err := convert(item)
		if err != nil {
			log.Printf("[GrantivaAPI] skipping %s: %v", what, err)
			continue
		}
		out = append(out, m)
	}
	return out
}
