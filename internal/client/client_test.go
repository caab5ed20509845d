package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/grantiva/grantiva-go/internal/model"
)

// newTestClient serves handler and returns a client pointed at it.
func newTestClient(t *testing.T, cfg Config, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	return New(cfg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// =============================================================================
// HEADERS
// =============================================================================

func TestClient_AuthHeaders(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		check func(t *testing.T, h http.Header)
	}{
		{
			name: "api key",
			cfg:  Config{APIKey: "gk_test_123", TeamID: "T", BundleID: "B"},
			check: func(t *testing.T, h http.Header) {
				if got := h.Get("Authorization"); got != "Bearer gk_test_123" {
					t.Errorf("Authorization = %q", got)
				}
				if h.Get("X-Bundle-ID") != "" || h.Get("X-Team-ID") != "" {
					t.Error("bundle/team headers should not be sent in api key mode")
				}
			},
		},
		{
			name: "bundle and team",
			cfg:  Config{TeamID: "TEAM1", BundleID: "com.example.app", UserAgent: "grantiva-go/1.0.0"},
			check: func(t *testing.T, h http.Header) {
				if h.Get("Authorization") != "" {
					t.Error("Authorization should be absent without an api key")
				}
				if h.Get("X-Bundle-ID") != "com.example.app" || h.Get("X-Team-ID") != "TEAM1" {
					t.Errorf("headers = %v", h)
				}
				if h.Get("User-Agent") != "grantiva-go/1.0.0" {
					t.Errorf("User-Agent = %q", h.Get("User-Agent"))
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got http.Header
			c := newTestClient(t, tt.cfg, func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Clone()
				writeJSON(w, http.StatusOK, map[string]string{
					"challenge": "abc", "expiresAt": "2030-01-01T00:00:00Z",
				})
			})
			if _, err := c.RequestChallenge(context.Background()); err != nil {
				t.Fatalf("RequestChallenge: %v", err)
			}
			if got.Get("Content-Type") != "application/json" || got.Get("Accept") != "application/json" {
				t.Errorf("content headers = %v", got)
			}
			tt.check(t, got)
		})
	}
}

// =============================================================================
// STATUS MAPPING
// =============================================================================

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       any
		want       error
		wantStatus int
	}{
		{"unauthorized", 401, map[string]any{"error": true, "reason": "bad key"}, model.ErrValidationFailed, 0},
		{"rate limited", 429, nil, model.ErrRateLimited, 0},
		{"feedback disabled", 403, map[string]any{"error": true, "reason": ReasonFeedbackNotAvailable}, model.ErrFeedbackNotAvailable, 0},
		{"forbidden other", 403, map[string]any{"error": true, "reason": "nope"}, model.ErrNetwork, 403},
		{"gone off attestation", 410, nil, model.ErrNetwork, 410},
		{"challenge reason off attestation", 400, map[string]any{"error": true, "reason": ReasonChallengeExpired}, model.ErrNetwork, 400},
		{"server error", 503, "not json", model.ErrNetwork, 503},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, Config{APIKey: "k"}, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			_, err := c.ListTickets(context.Background(), "sub")
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if tt.wantStatus != 0 {
				var e *model.Error
				if !errors.As(err, &e) || e.StatusCode != tt.wantStatus {
					t.Errorf("status code = %+v, want %d", e, tt.wantStatus)
				}
			}
		})
	}
}

func TestClient_ChallengeExpiryOnAttestationPaths(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		call   func(c *Client) error
		want   error
	}{
		{"challenge gone", 410, nil, func(c *Client) error {
			_, err := c.RequestChallenge(context.Background())
			return err
		}, model.ErrChallengeExpired},
		{"validate with reason", 400, map[string]any{"error": true, "reason": ReasonChallengeExpired}, func(c *Client) error {
			_, err := c.ValidateAttestation(context.Background(), ValidateRequest{})
			return err
		}, model.ErrChallengeExpired},
		{"feature gone", 410, nil, func(c *Client) error {
			_, err := c.GetFeatureRequest(context.Background(), uuid.New(), "")
			return err
		}, model.ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, Config{APIKey: "k"}, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			err := tt.call(c)

			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if tt.want == model.ErrNetwork && errors.Is(err, model.ErrChallengeExpired) {
				t.Error("non-attestation 410 must not be retryable as challenge expiry")
			}
		})
	}
}

func TestClient_TransportErrorIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "k", Timeout: time.Second})
	_, err := c.RequestChallenge(context.Background())
	if !errors.Is(err, model.ErrNetwork) {
		t.Errorf("err = %v, want network error", err)
	}
}

func TestClient_MalformedBodyIsInvalidResponse(t *testing.T) {
	c := newTestClient(t, Config{APIKey: "k"}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "{not json")
	})
	_, err := c.RequestChallenge(context.Background())
	if !errors.Is(err, model.ErrInvalidResponse) {
		t.Errorf("err = %v, want invalid response", err)
	}
}

// =============================================================================
// ATTESTATION
// =============================================================================

func TestClient_ValidateAttestation(t *testing.T) {
	// ARRANGE
	var received attestationRequest
	c := newTestClient(t, Config{TeamID: "TEAM1", BundleID: "com.example.app"}, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != validatePath {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		writeJSON(w, http.StatusOK, map[string]any{
			"isValid":   true,
			"token":     "jwt-token",
			"expiresAt": "2030-05-01T12:00:00.123Z",
			"deviceIntelligence": map[string]any{
				"deviceId": "dev-1", "riskScore": 12, "deviceIntegrity": "valid",
				"jailbreakDetected": false, "attestationCount": 4,
				"lastAttestationDate": "2030-04-30T08:00:00Z",
			},
			"customClaims": map[string]string{"plan": "pro"},
		})
	})

	// ACT
	result, err := c.ValidateAttestation(context.Background(), ValidateRequest{
		KeyID:             "key-1",
		AttestationObject: []byte{0x01, 0x02, 0xff},
		ClientDataHash:    []byte("hash"),
		Challenge:         "challenge-1",
	})

	// ASSERT
	if err != nil {
		t.Fatalf("ValidateAttestation: %v", err)
	}
	if received.BundleID != "com.example.app" || received.TeamID != "TEAM1" || received.KeyID != "key-1" {
		t.Errorf("request body = %+v", received)
	}
	if received.AttestationObject != base64.StdEncoding.EncodeToString([]byte{0x01, 0x02, 0xff}) {
		t.Errorf("attestationObject = %q, want std base64", received.AttestationObject)
	}
	if received.Challenge != "challenge-1" {
		t.Errorf("challenge = %q", received.Challenge)
	}
	if !result.IsValid || result.Token != "jwt-token" {
		t.Errorf("result = %+v", result)
	}
	wantExp := time.Date(2030, 5, 1, 12, 0, 0, 123_000_000, time.UTC)
	if !result.ExpiresAt.Equal(wantExp) {
		t.Errorf("ExpiresAt = %v, want %v", result.ExpiresAt, wantExp)
	}
	if result.DeviceIntelligence.LastAttestationDate == nil {
		t.Error("lastAttestationDate should be parsed")
	}
	if plan, _ := result.CustomClaims["plan"].AsString(); plan != "pro" {
		t.Errorf("custom claim plan = %q", plan)
	}
}

func TestClient_ValidateAttestation_BadExpiry(t *testing.T) {
	c := newTestClient(t, Config{APIKey: "k"}, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"isValid": true, "token": "t", "expiresAt": "tomorrow",
			"deviceIntelligence": map[string]any{}, "customClaims": map[string]string{},
		})
	})
	_, err := c.ValidateAttestation(context.Background(), ValidateRequest{})
	if !errors.Is(err, model.ErrInvalidResponse) {
		t.Errorf("err = %v, want invalid response", err)
	}
}

// =============================================================================
// FEEDBACK
// =============================================================================

func featureJSON(id uuid.UUID, status string, createdAt string) map[string]any {
	return map[string]any{
		"id": id.String(), "title": "Dark mode", "description": "Please add it",
		"status": status, "voteCount": 3, "hasVoted": true, "commentCount": 1,
		"createdAt": createdAt, "updatedAt": "2030-01-02T00:00:00Z",
	}
}

func TestClient_ListFeatureRequests_QueryAndLenientItems(t *testing.T) {
	good := uuid.New()
	var gotQuery map[string]string
	c := newTestClient(t, Config{APIKey: "k"}, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": []any{
				featureJSON(good, "open", "2030-01-01T00:00:00Z"),
				featureJSON(uuid.New(), "mystery", "2030-01-01T00:00:00Z"),
				featureJSON(uuid.New(), "open", "yesterday"),
			},
			"metadata": map[string]int{"page": 2, "per": 5, "total": 3},
		})
	})

	planned := model.StatusPlanned
	items, err := c.ListFeatureRequests(context.Background(),
		model.FeatureQuery{Status: &planned, Sort: "newest", Page: 2, PerPage: 5}, "voter-1")
	if err != nil {
		t.Fatalf("ListFeatureRequests: %v", err)
	}

	want := map[string]string{"status": "planned", "sort": "newest", "page": "2", "per": "5", "voter_id": "voter-1"}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}
	if len(items) != 1 || items[0].ID != good {
		t.Errorf("items = %+v, want only the well-formed one", items)
	}
}

func TestClient_GetFeatureRequest_InvalidStatus(t *testing.T) {
	c := newTestClient(t, Config{APIKey: "k"}, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, featureJSON(uuid.New(), "mystery", "2030-01-01T00:00:00Z"))
	})
	_, err := c.GetFeatureRequest(context.Background(), uuid.New(), "")
	if !errors.Is(err, model.ErrInvalidResponse) {
		t.Errorf("err = %v, want invalid response", err)
	}
}

func TestClient_VoteAndRemoveVote(t *testing.T) {
	featureID := uuid.New()
	var calls []string
	c := newTestClient(t, Config{APIKey: "k"}, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
		switch r.Method {
		case http.MethodPost:
			var body voteRequestBody
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body.VoterID != "voter-1" || body.DeviceHash != "dh" {
				t.Errorf("vote body = %+v", body)
			}
			writeJSON(w, http.StatusOK, map[string]string{
				"id": uuid.NewString(), "featureRequestId": featureID.String(), "createdAt": "2030-01-01T00:00:00Z",
			})
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})

	vote, err := c.Vote(context.Background(), featureID, "voter-1", "dh")
	if err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if vote.FeatureRequestID != featureID {
		t.Errorf("FeatureRequestID = %v", vote.FeatureRequestID)
	}
	if err := c.RemoveVote(context.Background(), featureID, "voter-1"); err != nil {
		t.Fatalf("RemoveVote: %v", err)
	}

	wantDelete := "DELETE " + featurePath(featureID, "/vote") + "?voter_id=voter-1"
	if len(calls) != 2 || calls[1] != wantDelete {
		t.Errorf("calls = %v, want second %q", calls, wantDelete)
	}
}

func TestClient_Tickets(t *testing.T) {
	ticketID := uuid.New()
	email := "user@example.com"
	c := newTestClient(t, Config{APIKey: "k"}, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == ticketsPath:
			var body createTicketBody
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body.SubmitterEmail == nil || *body.SubmitterEmail != email {
				t.Errorf("submitterEmail = %v", body.SubmitterEmail)
			}
			writeJSON(w, http.StatusCreated, map[string]any{
				"id": ticketID.String(), "subject": body.Subject, "status": "open", "priority": "normal",
				"messageCount": 1, "createdAt": "2030-01-01T00:00:00Z", "updatedAt": "2030-01-01T00:00:00Z",
			})
		case r.Method == http.MethodGet && r.URL.Path == ticketPath(ticketID, ""):
			writeJSON(w, http.StatusOK, map[string]any{
				"id": ticketID.String(), "subject": "Login", "status": "awaiting_reply", "priority": "high",
				"createdAt": "2030-01-01T00:00:00Z", "updatedAt": "2030-01-01T00:00:00Z",
				"messages": []any{
					map[string]string{"id": uuid.NewString(), "ticketId": ticketID.String(), "authorType": "user", "body": "help", "createdAt": "2030-01-01T00:00:00Z"},
					map[string]string{"id": uuid.NewString(), "ticketId": ticketID.String(), "authorType": "admin", "body": "on it", "createdAt": "2030-01-01T01:00:00Z"},
				},
			})
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})

	ticket, err := c.CreateTicket(context.Background(), "Login", "I cannot log in", "sub-1", &email, "dh")
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket.ID != ticketID || ticket.Priority != model.PriorityNormal {
		t.Errorf("ticket = %+v", ticket)
	}

	thread, err := c.GetTicket(context.Background(), ticketID)
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if thread.Ticket.MessageCount != 2 || len(thread.Messages) != 2 {
		t.Errorf("thread = %+v", thread)
	}
	if thread.Messages[1].AuthorType != model.AuthorAdmin {
		t.Errorf("second author = %q", thread.Messages[1].AuthorType)
	}
}
