package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/grantiva/grantiva-go/internal/httputil"
	"github.com/grantiva/grantiva-go/internal/model"
	"github.com/grantiva/grantiva-go/internal/sandbox"
)

type FeedbackHandler struct {
	sandbox *sandbox.Server
}

func NewFeedbackHandler(s *sandbox.Server) *FeedbackHandler {
	return &FeedbackHandler{sandbox: s}
}

// List handles GET /api/v1/feedback/features
// Query: status, sort, page, per, voter_id.
func (h *FeedbackHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := model.FeatureQuery{Sort: q.Get("sort")}
	if s := q.Get("status"); s != "" {
		status := model.FeatureRequestStatus(s)
		if !status.Valid() {
			httputil.WriteBadRequest(w, "Invalid status")
			return
		}
		query.Status = &status
	}
	var ok bool
	if query.Page, ok = intParam(w, q.Get("page"), "page"); !ok {
		return
	}
	if query.PerPage, ok = intParam(w, q.Get("per"), "per"); !ok {
		return
	}
	query = query.Normalize()

	items, total, err := h.sandbox.ListFeatures(query, q.Get("voter_id"))
	if err != nil {
		writeSandboxError(w, "list features", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, featureListResponse{
		Items:    items,
		Metadata: pageMetadata{Page: query.Page, Per: query.PerPage, Total: total},
	})
}

// Get handles GET /api/v1/feedback/features/{id}
func (h *FeedbackHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	fr, err := h.sandbox.GetFeature(id, r.URL.Query().Get("voter_id"))
	if err != nil {
		writeSandboxError(w, "get feature", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fr)
}

// Create handles POST /api/v1/feedback/features
func (h *FeedbackHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createFeatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	fr, err := h.sandbox.CreateFeature(req.Title, req.Description, req.SubmitterID)
	if err != nil {
		writeSandboxError(w, "create feature", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fr)
}

// Vote handles POST /api/v1/feedback/features/{id}/vote
func (h *FeedbackHandler) Vote(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	v, err := h.sandbox.Vote(id, req.VoterID)
	if err != nil {
		writeSandboxError(w, "vote", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, v)
}

// RemoveVote handles DELETE /api/v1/feedback/features/{id}/vote?voter_id=
func (h *FeedbackHandler) RemoveVote(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	voterID := r.URL.Query().Get("voter_id")
	if voterID == "" {
		httputil.WriteBadRequest(w, "voter_id is required")
		return
	}
	if err := h.sandbox.RemoveVote(id, voterID); err != nil {
		writeSandboxError(w, "remove vote", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Comments handles GET /api/v1/feedback/features/{id}/comments
func (h *FeedbackHandler) Comments(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	comments, err := h.sandbox.ListComments(id)
	if err != nil {
		writeSandboxError(w, "list comments", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, comments)
}

// AddComment handles POST /api/v1/feedback/features/{id}/comments
func (h *FeedbackHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	c, err := h.sandbox.AddComment(id, req.AuthorID, req.Body)
	if err != nil {
		writeSandboxError(w, "add comment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		httputil.WriteBadRequest(w, "Invalid "+name)
		return 0, false
	}
	return n, true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// writeSandboxError maps sandbox and validation errors onto responses.
func writeSandboxError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, sandbox.ErrBadRequest):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, sandbox.ErrNotFound):
		httputil.WriteNotFound(w, "Not found")
	case errors.Is(err, sandbox.ErrAlreadyVoted):
		httputil.WriteConflict(w, "Already voted")
	default:
		log.Printf("[ERROR] %s handler: err=%v", op, err)
		httputil.WriteInternalError(w, "Internal error")
	}
}
