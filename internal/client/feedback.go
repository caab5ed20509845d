package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/grantiva/grantiva-go/internal/model"
)

const (
	featuresPath = "/api/v1/feedback/features"
	ticketsPath  = "/api/v1/support/tickets"
)

// FeedbackAPI is the feature request and support ticket half of the API.
type FeedbackAPI interface {
	ListFeatureRequests(ctx context.Context, q model.FeatureQuery, voterID string) ([]model.FeatureRequest, error)
	GetFeatureRequest(ctx context.Context, id uuid.UUID, voterID string) (*model.FeatureRequest, error)
	CreateFeatureRequest(ctx context.Context, title, description, submitterID, deviceHash string) (*model.FeatureRequest, error)
	Vote(ctx context.Context, featureID uuid.UUID, voterID, deviceHash string) (*model.Vote, error)
	RemoveVote(ctx context.Context, featureID uuid.UUID, voterID string) error
	ListComments(ctx context.Context, featureID uuid.UUID) ([]model.FeatureComment, error)
	AddComment(ctx context.Context, featureID uuid.UUID, authorID, body string) (*model.FeatureComment, error)

	CreateTicket(ctx context.Context, subject, body, submitterID string, submitterEmail *string, deviceHash string) (*model.SupportTicket, error)
	ListTickets(ctx context.Context, submitterID string) ([]model.SupportTicket, error)
	GetTicket(ctx context.Context, id uuid.UUID) (*model.TicketThread, error)
	AddTicketMessage(ctx context.Context, ticketID uuid.UUID, authorID, body string) (*model.TicketMessage, error)
}

func featurePath(id uuid.UUID, suffix string) string {
	return featuresPath + "/" + id.String() + suffix
}

func ticketPath(id uuid.UUID, suffix string) string {
	return ticketsPath + "/" + id.String() + suffix
}

func (c *Client) ListFeatureRequests(ctx context.Context, q model.FeatureQuery, voterID string) ([]model.FeatureRequest, error) {
	q = q.Normalize()
	query := url.Values{}
	query.Set("sort", q.Sort)
	query.Set("page", strconv.Itoa(q.Page))
	query.Set("per", strconv.Itoa(q.PerPage))
	if q.Status != nil {
		query.Set("status", string(*q.Status))
	}
	if voterID != "" {
		query.Set("voter_id", voterID)
	}

	var resp paginatedFeatureResponse
	if err := c.call(ctx, http.MethodGet, featuresPath, query, nil, &resp); err != nil {
		return nil, err
	}
	return convertList("feature request", resp.Items, featureRequestResponse.toModel), nil
}

func (c *Client) GetFeatureRequest(ctx context.Context, id uuid.UUID, voterID string) (*model.FeatureRequest, error) {
	var query url.Values
	if voterID != "" {
		query = url.Values{"voter_id": {voterID}}
	}
	var resp featureRequestResponse
	if err := c.call(ctx, http.MethodGet, featurePath(id, ""), query, nil, &resp); err != nil {
		return nil, err
	}
	fr, err := resp.toModel()
	if err != nil {
		return nil, err
	}
	return &fr, nil
}

func (c *Client) CreateFeatureRequest(ctx context.Context, title, description, submitterID, deviceHash string) (*model.FeatureRequest, error) {
	body := createFeatureRequestBody{
		Title:       title,
		Description: description,
		SubmitterID: submitterID,
		DeviceHash:  deviceHash,
	}
	var resp featureRequestResponse
	if err := c.call(ctx, http.MethodPost, featuresPath, nil, body, &resp); err != nil {
		return nil, err
	}
	fr, err := resp.toModel()
	if err != nil {
		return nil, err
	}
	return &fr, nil
}

func (c *Client) Vote(ctx context.Context, featureID uuid.UUID, voterID, deviceHash string) (*model.Vote, error) {
	var resp voteResponse
	body := voteRequestBody{VoterID: voterID, DeviceHash: deviceHash}
	if err := c.call(ctx, http.MethodPost, featurePath(featureID, "/vote"), nil, body, &resp); err != nil {
		return nil, err
	}
	v, err := resp.toModel()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) RemoveVote(ctx context.Context, featureID uuid.UUID, voterID string) error {
	query := url.Values{"voter_id": {voterID}}
	return c.call(ctx, http.MethodDelete, featurePath(featureID, "/vote"), query, nil, nil)
}

func (c *Client) ListComments(ctx context.Context, featureID uuid.UUID) ([]model.FeatureComment, error) {
	var resp []commentResponse
	if err := c.call(ctx, http.MethodGet, featurePath(featureID, "/comments"), nil, nil, &resp); err != nil {
		return nil, err
	}
	return convertList("comment", resp, commentResponse.toModel), nil
}

func (c *Client) AddComment(ctx context.Context, featureID uuid.UUID, authorID, body string) (*model.FeatureComment, error) {
	var resp commentResponse
	req := createCommentBody{AuthorID: authorID, Body: body}
	if err := c.call(ctx, http.MethodPost, featurePath(featureID, "/comments"), nil, req, &resp); err != nil {
		return nil, err
	}
	comment, err := resp.toModel()
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *Client) CreateTicket(ctx context.Context, subject, body, submitterID string, submitterEmail *string, deviceHash string) (*model.SupportTicket, error) {
	req := createTicketBody{
		Subject:        subject,
		Body:           body,
		SubmitterID:    submitterID,
		SubmitterEmail: submitterEmail,
		DeviceHash:     deviceHash,
	}
	var resp supportTicketResponse
	if err := c.call(ctx, http.MethodPost, ticketsPath, nil, req, &resp); err != nil {
		return nil, err
	}
	ticket, err := resp.toModel()
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (c *Client) ListTickets(ctx context.Context, submitterID string) ([]model.SupportTicket, error) {
	query := url.Values{"submitter_id": {submitterID}}
	var resp []supportTicketResponse
	if err := c.call(ctx, http.MethodGet, ticketsPath, query, nil, &resp); err != nil {
		return nil, err
	}
	return convertList("ticket", resp, supportTicketResponse.toModel), nil
}

func (c *Client) GetTicket(ctx context.Context, id uuid.UUID) (*model.TicketThread, error) {
	var resp ticketDetailResponse
	if err := c.call(ctx, http.MethodGet, ticketPath(id, ""), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.toModel()
}

func (c *Client) AddTicketMessage(ctx context.Context, ticketID uuid.UUID, authorID, body string) (*model.TicketMessage, error) {
	var resp ticketMessageResponse
	req := createTicketMessageBody{AuthorID: authorID, Body: body}
	if err := c.call(ctx, http.MethodPost, ticketPath(ticketID, "/messages"), nil, req, &resp); err != nil {
		return nil, err
	}
	msg, err := resp.toModel()
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
