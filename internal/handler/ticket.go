package handler

import (
	"encoding/json"
	"net/http"

	"github.com/grantiva/grantiva-go/internal/httputil"
	"github.com/grantiva/grantiva-go/internal/model"
	"github.com/grantiva/grantiva-go/internal/sandbox"
)

type TicketHandler struct {
	sandbox *sandbox.Server
}

func NewTicketHandler(s *sandbox.Server) *TicketHandler {
	return &TicketHandler{sandbox: s}
}

// Create handles POST /api/v1/support/tickets
func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	t, err := h.sandbox.CreateTicket(req.Subject, req.Body, req.SubmitterID, req.SubmitterEmail)
	if err != nil {
		writeSandboxError(w, "create ticket", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, t)
}

// List handles GET /api/v1/support/tickets?submitter_id=
func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.sandbox.ListTickets(r.URL.Query().Get("submitter_id"))
	if err != nil {
		writeSandboxError(w, "list tickets", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tickets)
}

// Get handles GET /api/v1/support/tickets/{id}
// Returns the ticket with its full conversation.
func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	thread, err := h.sandbox.GetTicket(id)
	if err != nil {
		writeSandboxError(w, "get ticket", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ticketDetailResponse{
		ID:        thread.Ticket.ID,
		Subject:   thread.Ticket.Subject,
		Status:    thread.Ticket.Status,
		Priority:  thread.Ticket.Priority,
		Messages:  thread.Messages,
		CreatedAt: thread.Ticket.CreatedAt,
		UpdatedAt: thread.Ticket.UpdatedAt,
	})
}

// Reply handles POST /api/v1/support/tickets/{id}/messages
// Messages posted through the API are always user-authored.
func (h *TicketHandler) Reply(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	msg, err := h.sandbox.AddTicketMessage(id, model.AuthorUser, req.Body)
	if err != nil {
		writeSandboxError(w, "reply", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, msg)
}
