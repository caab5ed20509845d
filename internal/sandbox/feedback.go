package sandbox

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/grantiva/grantiva-go/internal/model"
)

type featureRecord struct {
	fr          model.FeatureRequest
	submitterID string
	voters      map[string]model.Vote
}

type ticketRecord struct {
	ticket      model.SupportTicket
	submitterID string
	email       *string
	messages    []model.TicketMessage
}

// view returns the feature as seen by voterID.
func (r *featureRecord) view(voterID string) model.FeatureRequest {
	fr := r.fr
	fr.VoteCount = len(r.voters)
	_, fr.HasVoted = r.voters[voterID]
	return fr
}

// ListFeatures filters, sorts and pages the feature requests. It returns
// the page and the total number of matches.
func (s *Server) ListFeatures(q model.FeatureQuery, voterID string) ([]model.FeatureRequest, int, error) {
	q = q.Normalize()
	switch q.Sort {
	case "votes", "newest", "oldest":
	default:
		return nil, 0, fmt.Errorf("%w: unknown sort %q", ErrBadRequest, q.Sort)
	}

	s.mu.Lock()
	all := make([]model.FeatureRequest, 0, len(s.features))
	for _, rec := range s.features {
		if q.Status != nil && rec.fr.Status != *q.Status {
			continue
		}
		fr := rec.view(voterID)
		fr.CommentCount = len(s.comments[fr.ID])
		all = append(all, fr)
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		switch q.Sort {
		case "oldest":
			return a.CreatedAt.Before(b.CreatedAt)
		case "newest":
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.VoteCount != b.VoteCount {
			return a.VoteCount > b.VoteCount
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	total := len(all)
	start := (q.Page - 1) * q.PerPage
	if start >= total {
		return []model.FeatureRequest{}, total, nil
	}
	end := min(start+q.PerPage, total)
	return all[start:end], total, nil
}

func (s *Server) GetFeature(id uuid.UUID, voterID string) (*model.FeatureRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.features[id]
	if !ok {
		return nil, ErrNotFound
	}
	fr := rec.view(voterID)
	fr.CommentCount = len(s.comments[id])
	return &fr, nil
}

func (s *Server) CreateFeature(title, description, submitterID string) (*model.FeatureRequest, error) {
	if err := model.ValidateFeatureRequest(title, description); err != nil {
		return nil, err
	}
	if strings.TrimSpace(submitterID) == "" {
		return nil, fmt.Errorf("%w: submitterId is required", ErrBadRequest)
	}

	now := s.now().UTC()
	rec := &featureRecord{
		fr: model.FeatureRequest{
			ID:          uuid.New(),
			Title:       title,
			Description: description,
			Status:      model.StatusOpen,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		submitterID: submitterID,
		voters:      make(map[string]model.Vote),
	}

	s.mu.Lock()
	s.features[rec.fr.ID] = rec
	s.mu.Unlock()

	log.Printf("[Sandbox] CreateFeature OK: id=%s", rec.fr.ID)
	fr := rec.fr
	return &fr, nil
}

// SetFeatureStatus moves a feature through its lifecycle, as an admin would.
func (s *Server) SetFeatureStatus(id uuid.UUID, status model.FeatureRequestStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrBadRequest, status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.features[id]
	if !ok {
		return ErrNotFound
	}
	rec.fr.Status = status
	rec.fr.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Server) Vote(featureID uuid.UUID, voterID string) (*model.Vote, error) {
	if strings.TrimSpace(voterID) == "" {
		return nil, fmt.Errorf("%w: voterId is required", ErrBadRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.features[featureID]
	if !ok {
		return nil, ErrNotFound
	}
	if _, voted := rec.voters[voterID]; voted {
		return nil, ErrAlreadyVoted
	}
	v := model.Vote{ID: uuid.New(), FeatureRequestID: featureID, CreatedAt: s.now().UTC()}
	rec.voters[voterID] = v
	return &v, nil
}

func (s *Server) RemoveVote(featureID uuid.UUID, voterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.features[featureID]
	if !ok {
		return ErrNotFound
	}
	if _, voted := rec.voters[voterID]; !voted {
		return ErrNotFound
	}
	delete(rec.voters, voterID)
	return nil
}

// ListComments returns newest first.
func (s *Server) ListComments(featureID uuid.UUID) ([]model.FeatureComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.features[featureID]; !ok {
		return nil, ErrNotFound
	}
	stored := s.comments[featureID]
	out := make([]model.FeatureComment, len(stored))
	for i, c := range stored {
		out[len(stored)-1-i] = c
	}
	return out, nil
}

func (s *Server) AddComment(featureID uuid.UUID, authorID, body string) (*model.FeatureComment, error) {
	if err := model.ValidateComment(body); err != nil {
		return nil, err
	}
	if strings.TrimSpace(authorID) == "" {
		return nil, fmt.Errorf("%w: authorId is required", ErrBadRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.features[featureID]; !ok {
		return nil, ErrNotFound
	}
	c := model.FeatureComment{
		ID:               uuid.New(),
		FeatureRequestID: featureID,
		AuthorType:       model.AuthorUser,
		Body:             body,
		CreatedAt:        s.now().UTC(),
	}
	s.comments[featureID] = append(s.comments[featureID], c)
	return &c, nil
}

func (s *Server) CreateTicket(subject, body, submitterID string, email *string) (*model.SupportTicket, error) {
	if err := model.ValidateTicket(subject, body); err != nil {
		return nil, err
	}
	if strings.TrimSpace(submitterID) == "" {
		return nil, fmt.Errorf("%w: submitterId is required", ErrBadRequest)
	}

	now := s.now().UTC()
	id := uuid.New()
	rec := &ticketRecord{
		ticket: model.SupportTicket{
			ID:           id,
			Subject:      subject,
			Status:       model.TicketOpen,
			Priority:     model.PriorityNormal,
			MessageCount: 1,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		submitterID: submitterID,
		email:       email,
		messages: []model.TicketMessage{{
			ID:         uuid.New(),
			TicketID:   id,
			AuthorType: model.AuthorUser,
			Body:       body,
			CreatedAt:  now,
		}},
	}

	s.mu.Lock()
	s.tickets[id] = rec
	s.mu.Unlock()

	log.Printf("[Sandbox] CreateTicket OK: id=%s", id)
	t := rec.ticket
	return &t, nil
}

// ListTickets returns the submitter's tickets, most recently updated first.
func (s *Server) ListTickets(submitterID string) ([]model.SupportTicket, error) {
	if strings.TrimSpace(submitterID) == "" {
		return nil, fmt.Errorf("%w: submitter_id is required", ErrBadRequest)
	}

	s.mu.Lock()
	out := make([]model.SupportTicket, 0)
	for _, rec := range s.tickets {
		if rec.submitterID == submitterID {
			out = append(out, rec.ticket)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *Server) GetTicket(id uuid.UUID) (*model.TicketThread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &model.TicketThread{
		Ticket:   rec.ticket,
		Messages: append([]model.TicketMessage(nil), rec.messages...),
	}, nil
}

// AddTicketMessage appends a message. authorType admin marks the ticket
// as awaiting the user's reply; a user message reopens it.
func (s *Server) AddTicketMessage(ticketID uuid.UUID, authorType model.CommentAuthorType, body string) (*model.TicketMessage, error) {
	if err := model.ValidateReply(body); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tickets[ticketID]
	if !ok {
		return nil, ErrNotFound
	}
	now := s.now().UTC()
	msg := model.TicketMessage{
		ID:         uuid.New(),
		TicketID:   ticketID,
		AuthorType: authorType,
		Body:       body,
		CreatedAt:  now,
	}
	rec.messages = append(rec.messages, msg)
	rec.ticket.MessageCount = len(rec.messages)
	rec.ticket.UpdatedAt = now
	if authorType == model.AuthorAdmin {
		rec.ticket.Status = model.TicketAwaitingReply
	} else {
		rec.ticket.Status = model.TicketOpen
	}
	return &msg, nil
}
