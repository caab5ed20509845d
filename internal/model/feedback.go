package model

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// FeatureRequestStatus is the lifecycle state of a feature request.
type FeatureRequestStatus string

const (
	StatusPending    FeatureRequestStatus = "pending"
	StatusOpen       FeatureRequestStatus = "open"
	StatusPlanned    FeatureRequestStatus = "planned"
	StatusInProgress FeatureRequestStatus = "in_progress"
	StatusShipped    FeatureRequestStatus = "shipped"
	StatusDeclined   FeatureRequestStatus = "declined"
	StatusDuplicate  FeatureRequestStatus = "duplicate"
)

// Valid reports whether s is a status the server can return.
func (s FeatureRequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusOpen, StatusPlanned, StatusInProgress,
		StatusShipped, StatusDeclined, StatusDuplicate:
		return true
	}
	return false
}

// CommentAuthorType tells user-authored from admin-authored messages.
type CommentAuthorType string

const (
	AuthorUser  CommentAuthorType = "user"
	AuthorAdmin CommentAuthorType = "admin"
)

func (a CommentAuthorType) Valid() bool {
	return a == AuthorUser || a == AuthorAdmin
}

// FeatureRequest is a user-submitted feature request with live counters.
type FeatureRequest struct {
	ID           uuid.UUID            `json:"id"`
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	Status       FeatureRequestStatus `json:"status"`
	VoteCount    int                  `json:"voteCount"`
	HasVoted     bool                 `json:"hasVoted"`
	CommentCount int                  `json:"commentCount"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`
}

// Vote confirms a vote cast on a feature request.
type Vote struct {
	ID               uuid.UUID `json:"id"`
	FeatureRequestID uuid.UUID `json:"featureRequestId"`
	CreatedAt        time.Time `json:"createdAt"`
}

// FeatureComment is a comment on a feature request.
type FeatureComment struct {
	ID               uuid.UUID         `json:"id"`
	FeatureRequestID uuid.UUID         `json:"featureRequestId"`
	AuthorType       CommentAuthorType `json:"authorType"`
	Body             string            `json:"body"`
	CreatedAt        time.Time         `json:"createdAt"`
}

// Feature request query defaults. Only a query equal to
// DefaultFeatureQuery is served from cache.
const (
	DefaultFeatureSort    = "votes"
	DefaultFeaturePage    = 1
	DefaultFeaturePerPage = 20
)

// FeatureQuery filters and paginates a feature request listing.
type FeatureQuery struct {
	Status  *FeatureRequestStatus
	Sort    string
	Page    int
	PerPage int
}

// DefaultFeatureQuery is the unfiltered, vote-sorted first page.
func DefaultFeatureQuery() FeatureQuery {
	return FeatureQuery{
		Sort:    DefaultFeatureSort,
		Page:    DefaultFeaturePage,
		PerPage: DefaultFeaturePerPage,
	}
}

// Normalize fills zero fields with their defaults.
func (q FeatureQuery) Normalize() FeatureQuery {
	if q.Sort == "" {
		q.Sort = DefaultFeatureSort
	}
	if q.Page <= 0 {
		q.Page = DefaultFeaturePage
	}
	if q.PerPage <= 0 {
		q.PerPage = DefaultFeaturePerPage
	}
	return q
}

// IsDefault reports whether q (after normalization) is the cacheable query.
func (q FeatureQuery) IsDefault() bool {
	n := q.Normalize()
	return n.Status == nil &&
		n.Sort == DefaultFeatureSort &&
		n.Page == DefaultFeaturePage &&
		n.PerPage == DefaultFeaturePerPage
}

// Input limits, counted in runes.
const (
	MinFeatureTitleLength       = 3
	MaxFeatureTitleLength       = 200
	MinFeatureDescriptionLength = 10
	MaxFeatureDescriptionLength = 5000
	MinCommentBodyLength        = 1
	MaxCommentBodyLength        = 2000
	MinTicketSubjectLength      = 3
	MaxTicketSubjectLength      = 200
	MinTicketBodyLength         = 10
	MaxTicketBodyLength         = 5000
	MinReplyBodyLength          = 1
	MaxReplyBodyLength          = 5000
)

// CheckLength returns ErrInvalidInput if value's rune count is outside [min, max].
func CheckLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(value)
	if n < min || n > max {
		return fmt.Errorf("%w: %s must be %d-%d characters (got %d)", ErrInvalidInput, field, min, max, n)
	}
	return nil
}

// ValidateFeatureRequest checks a new feature request's fields.
func ValidateFeatureRequest(title, description string) error {
	if err := CheckLength("title", title, MinFeatureTitleLength, MaxFeatureTitleLength); err != nil {
		return err
	}
	return CheckLength("description", description, MinFeatureDescriptionLength, MaxFeatureDescriptionLength)
}

// ValidateComment checks a comment body.
func ValidateComment(body string) error {
	return CheckLength("body", body, MinCommentBodyLength, MaxCommentBodyLength)
}
