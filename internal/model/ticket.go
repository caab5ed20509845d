package model

import (
	"time"

	"github.com/google/uuid"
)

// TicketStatus is the lifecycle state of a support ticket.
type TicketStatus string

const (
	TicketOpen          TicketStatus = "open"
	TicketAwaitingReply TicketStatus = "awaiting_reply"
	TicketResolved      TicketStatus = "resolved"
	TicketClosed        TicketStatus = "closed"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketOpen, TicketAwaitingReply, TicketResolved, TicketClosed:
		return true
	}
	return false
}

// TicketPriority is set by the support team.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityNormal TicketPriority = "normal"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// SupportTicket is a private support conversation.
type SupportTicket struct {
	ID           uuid.UUID      `json:"id"`
	Subject      string         `json:"subject"`
	Status       TicketStatus   `json:"status"`
	Priority     TicketPriority `json:"priority"`
	MessageCount int            `json:"messageCount"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// TicketMessage is one message in a ticket conversation.
type TicketMessage struct {
	ID         uuid.UUID         `json:"id"`
	TicketID   uuid.UUID         `json:"ticketId"`
	AuthorType CommentAuthorType `json:"authorType"`
	Body       string            `json:"body"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// TicketThread is a ticket together with its full conversation.
type TicketThread struct {
	Ticket   SupportTicket   `json:"ticket"`
	Messages []TicketMessage `json:"messages"`
}

// ValidateTicket checks a new ticket's fields.
func ValidateTicket(subject, body string) error {
	if err := CheckLength("subject", subject, MinTicketSubjectLength, MaxTicketSubjectLength); err != nil {
		return err
	}
	return CheckLength("body", body, MinTicketBodyLength, MaxTicketBodyLength)
}

// ValidateReply checks a ticket reply body.
func ValidateReply(body string) error {
	return CheckLength("body", body, MinReplyBodyLength, MaxReplyBodyLength)
}
