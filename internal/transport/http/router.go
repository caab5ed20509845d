package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/grantiva/grantiva-go/internal/handler"
	"github.com/grantiva/grantiva-go/internal/httputil"
	"github.com/grantiva/grantiva-go/internal/sandbox"
	authmw "github.com/grantiva/grantiva-go/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	Sandbox *sandbox.Server

	// Quiet drops the request logger, for tests.
	Quiet bool
}

// NewRouter serves the Grantiva API surface backed by the sandbox.
func NewRouter(cfg RouterConfig) chi.Router {
	attestation := handler.NewAttestationHandler(cfg.Sandbox)
	feedback := handler.NewFeedbackHandler(cfg.Sandbox)
	tickets := handler.NewTicketHandler(cfg.Sandbox)

	r := chi.NewRouter()

	if !cfg.Quiet {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authmw.TenantAuth(cfg.Sandbox))

		r.Get("/attestation/challenge", attestation.Challenge)
		r.Post("/attestation/validate", attestation.Validate)

		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireFeedback(cfg.Sandbox.FeedbackEnabled))

			r.Route("/feedback/features", func(r chi.Router) {
				r.Get("/", feedback.List)
				r.Post("/", feedback.Create)
				r.Get("/{id}", feedback.Get)
				r.Post("/{id}/vote", feedback.Vote)
				r.Delete("/{id}/vote", feedback.RemoveVote)
				r.Get("/{id}/comments", feedback.Comments)
				r.Post("/{id}/comments", feedback.AddComment)
			})

			r.Route("/support/tickets", func(r chi.Router) {
				r.Get("/", tickets.List)
				r.Post("/", tickets.Create)
				r.Get("/{id}", tickets.Get)
				r.Post("/{id}/messages", tickets.Reply)
			})
		})
	})

	return r
}
