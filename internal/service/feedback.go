package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/grantiva/grantiva-go/internal/cache"
	"github.com/grantiva/grantiva-go/internal/client"
	"github.com/grantiva/grantiva-go/internal/model"
	"github.com/grantiva/grantiva-go/internal/retry"
)

// IdentityProvider supplies the identifiers feedback calls are scoped by.
// Implemented by identity.Context.
type IdentityProvider interface {
	EffectiveSubmitterID() string
	EffectiveVoterID() string
	DeviceHash() string
}

// FeedbackService fronts the feedback API with the identity-scoped cache.
type FeedbackService struct {
	api      client.FeedbackAPI
	cache    cache.FeedbackCache
	identity IdentityProvider
	policy   retry.Policy
}

func NewFeedbackService(api client.FeedbackAPI, c cache.FeedbackCache, identity IdentityProvider, policy retry.Policy) *FeedbackService {
	return &FeedbackService{
		api:      api,
		cache:    c,
		identity: identity,
		policy:   policy,
	}
}

// =============================================================================
// FEATURE REQUESTS
// =============================================================================

// GetFeatureRequests lists feature requests. Only the default query is
// served from and stored in the cache. The cache generation is taken
// before the identity is read, so a result fetched for a previous
// identity is never stored.
func (s *FeedbackService) GetFeatureRequests(ctx context.Context, q model.FeatureQuery) ([]model.FeatureRequest, error) {
	cacheable := q.IsDefault()
	if cacheable {
		if items, ok := s.cache.FeatureRequests(); ok {
			return items, nil
		}
	}

	gen := s.cache.Generation()
	voterID := s.identity.EffectiveVoterID()
	items, err := retry.Do(ctx, s.policy, func(ctx context.Context) ([]model.FeatureRequest, error) {
		return s.api.ListFeatureRequests(ctx, q, voterID)
	})
	if err != nil {
		return nil, fmt.Errorf("list feature requests: %w", err)
	}

	if cacheable {
		s.cache.SetFeatureRequests(gen, items)
	}
	return items, nil
}

func (s *FeedbackService) GetFeatureRequest(ctx context.Context, id uuid.UUID) (*model.FeatureRequest, error) {
	if fr, ok := s.cache.FeatureRequest(id); ok {
		return fr, nil
	}

	gen := s.cache.Generation()
	voterID := s.identity.EffectiveVoterID()
	fr, err := retry.Do(ctx, s.policy, func(ctx context.Context) (*model.FeatureRequest, error) {
		return s.api.GetFeatureRequest(ctx, id, voterID)
	})
	if err != nil {
		return nil, fmt.Errorf("get feature request: %w", err)
	}

	s.cache.SetFeatureRequest(gen, *fr)
	return fr, nil
}

func (s *FeedbackService) SubmitFeatureRequest(ctx context.Context, title, description string) (*model.FeatureRequest, error) {
	if err := model.ValidateFeatureRequest(title, description); err != nil {
		return nil, err
	}

	fr, err := s.api.CreateFeatureRequest(ctx, title, description, s.identity.EffectiveSubmitterID(), s.identity.DeviceHash())
	if err != nil {
		return nil, fmt.Errorf("submit feature request: %w", err)
	}

	s.cache.InvalidateFeatureRequests()
	log.Printf("[Feedback] SubmitFeatureRequest OK: id=%s", fr.ID)
	return fr, nil
}

// Vote casts the current voter's vote. The server allows one per voter.
func (s *FeedbackService) Vote(ctx context.Context, featureID uuid.UUID) (*model.Vote, error) {
	v, err := s.api.Vote(ctx, featureID, s.identity.EffectiveVoterID(), s.identity.DeviceHash())
	if err != nil {
		return nil, fmt.Errorf("vote: %w", err)
	}

	s.cache.InvalidateFeatureRequests()
	log.Printf("[Feedback] Vote OK: feature=%s", featureID)
	return v, nil
}

func (s *FeedbackService) RemoveVote(ctx context.Context, featureID uuid.UUID) error {
	voterID := s.identity.EffectiveVoterID()
	_, err := retry.Do(ctx, s.policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.api.RemoveVote(ctx, featureID, voterID)
	})
	if err != nil {
		return fmt.Errorf("remove vote: %w", err)
	}

	s.cache.InvalidateFeatureRequests()
	log.Printf("[Feedback] RemoveVote OK: feature=%s", featureID)
	return nil
}

func (s *FeedbackService) GetComments(ctx context.Context, featureID uuid.UUID) ([]model.FeatureComment, error) {
	if comments, ok := s.cache.Comments(featureID); ok {
		return comments, nil
	}

	gen := s.cache.Generation()
	comments, err := retry.Do(ctx, s.policy, func(ctx context.Context) ([]model.FeatureComment, error) {
		return s.api.ListComments(ctx, featureID)
	})
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	s.cache.SetComments(gen, featureID, comments)
	return comments, nil
}

func (s *FeedbackService) AddComment(ctx context.Context, featureID uuid.UUID, body string) (*model.FeatureComment, error) {
	if err := model.ValidateComment(body); err != nil {
		return nil, err
	}

	comment, err := s.api.AddComment(ctx, featureID, s.identity.EffectiveSubmitterID(), body)
	if err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}

	s.cache.InvalidateFeatureRequests()
	return comment, nil
}

// RefreshFeatureRequests forces the next feature reads to hit the network.
func (s *FeedbackService) RefreshFeatureRequests() {
	s.cache.InvalidateFeatureRequests()
}

// =============================================================================
// SUPPORT TICKETS
// =============================================================================

// SubmitTicket opens a ticket. email may be nil; an empty email is sent
// as absent.
func (s *FeedbackService) SubmitTicket(ctx context.Context, subject, body string, email *string) (*model.SupportTicket, error) {
	if err := model.ValidateTicket(subject, body); err != nil {
		return nil, err
	}
	if email != nil && strings.TrimSpace(*email) == "" {
		email = nil
	}

	ticket, err := s.api.CreateTicket(ctx, subject, body, s.identity.EffectiveSubmitterID(), email, s.identity.DeviceHash())
	if err != nil {
		return nil, fmt.Errorf("submit ticket: %w", err)
	}

	s.cache.InvalidateTickets()
	log.Printf("[Feedback] SubmitTicket OK: id=%s", ticket.ID)
	return ticket, nil
}

// GetUsersTickets returns the tickets of the effective submitter: the
// identified user across devices, or this device otherwise.
func (s *FeedbackService) GetUsersTickets(ctx context.Context) ([]model.SupportTicket, error) {
	if tickets, ok := s.cache.Tickets(); ok {
		return tickets, nil
	}

	gen := s.cache.Generation()
	submitterID := s.identity.EffectiveSubmitterID()
	tickets, err := retry.Do(ctx, s.policy, func(ctx context.Context) ([]model.SupportTicket, error) {
		return s.api.ListTickets(ctx, submitterID)
	})
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}

	if !s.cache.SetTickets(gen, tickets) {
		log.Printf("[Feedback] GetUsersTickets: cache invalidated during fetch, result not cached")
	}
	return tickets, nil
}

// GetTicket fetches one ticket and its conversation. Never cached.
func (s *FeedbackService) GetTicket(ctx context.Context, id uuid.UUID) (*model.TicketThread, error) {
	thread, err := retry.Do(ctx, s.policy, func(ctx context.Context) (*model.TicketThread, error) {
		return s.api.GetTicket(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return thread, nil
}

func (s *FeedbackService) Reply(ctx context.Context, ticketID uuid.UUID, body string) (*model.TicketMessage, error) {
	if err := model.ValidateReply(body); err != nil {
		return nil, err
	}

	msg, err := s.api.AddTicketMessage(ctx, ticketID, s.identity.EffectiveSubmitterID(), body)
	if err != nil {
		return nil, fmt.Errorf("reply: %w", err)
	}

	s.cache.InvalidateTickets()
	return msg, nil
}

func (s *FeedbackService) RefreshTickets() {
	s.cache.InvalidateTickets()
}

// ClearCache drops every cached feedback entry.
func (s *FeedbackService) ClearCache() {
	s.cache.ClearAll()
}
