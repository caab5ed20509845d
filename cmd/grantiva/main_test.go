package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/grantiva/grantiva-go"
	"github.com/grantiva/grantiva-go/internal/sandbox"
	"github.com/grantiva/grantiva-go/internal/storage"
	transporthttp "github.com/grantiva/grantiva-go/internal/transport/http"
)

const (
	testTeamID   = "TEAM123456"
	testBundleID = "com.example.app"
)

type cliHarness struct {
	t     *testing.T
	url   string
	store *storage.MemoryStore
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	for _, key := range []string{
		"GRANTIVA_CONFIG_FILE", "GRANTIVA_BASE_URL", "GRANTIVA_TEAM_ID", "GRANTIVA_BUNDLE_ID",
		"GRANTIVA_API_KEY", "GRANTIVA_DEVICE_ID", "GRANTIVA_STORAGE", "GRANTIVA_STORAGE_SECRET",
	} {
		t.Setenv(key, "")
	}
	srv := httptest.NewServer(transporthttp.NewRouter(transporthttp.RouterConfig{
		Sandbox: sandbox.New(sandbox.Config{TeamID: testTeamID, BundleID: testBundleID}),
		Quiet:   true,
	}))
	t.Cleanup(srv.Close)
	return &cliHarness{t: t, url: srv.URL, store: storage.NewMemoryStore()}
}

// exec runs the CLI against the sandbox with a store shared across calls.
func (h *cliHarness) exec(args ...string) (string, error) {
	h.t.Helper()
	argv := append([]string{"--base-url", h.url, "--team-id", testTeamID, "--bundle-id", testBundleID}, args...)
	var out bytes.Buffer
	err := run(context.Background(), argv, &out, grantiva.WithSecureStore(h.store))
	return out.String(), err
}

// =============================================================================
// ARGUMENT PARSING TESTS
// =============================================================================

func TestRun_RejectsBadArguments(t *testing.T) {
	h := newCLIHarness(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing command", nil, "missing command"},
		{"unknown command", []string{"launch"}, `unknown command "launch"`},
		{"too few args", []string{"vote"}, "usage: grantiva vote <id>"},
		{"too many args", []string{"validate", "extra"}, "usage: grantiva validate"},
		{"unknown flag", []string{"--nope", "validate"}, "unknown flag"},
		{"bad feature id", []string{"vote", "not-a-uuid"}, "invalid UUID"},
		{"bad status", []string{"--status", "launched", "features"}, `unknown status "launched"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// ACT
			out, err := h.exec(tt.args...)

			// ASSERT
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want it to contain %q", err, tt.wantErr)
			}
			if out != "" {
				t.Errorf("stdout = %q, want empty on error", out)
			}
		})
	}
}

// =============================================================================
// DISPATCH TESTS
// =============================================================================

func TestRun_Validate(t *testing.T) {
	h := newCLIHarness(t)

	out, err := h.exec("validate")
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}

	var result grantiva.AttestationResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if !result.IsValid || result.Token == "" {
		t.Errorf("result = %+v, want a valid token", result)
	}

	out, err = h.exec("token")
	if err != nil {
		t.Fatalf("token error = %v", err)
	}
	if !strings.Contains(out, sandbox.Issuer) {
		t.Errorf("token output = %s, want issuer %q", out, sandbox.Issuer)
	}
}

func TestRun_FeatureCommands(t *testing.T) {
	h := newCLIHarness(t)

	out, err := h.exec("submit-feature", "Dark mode", "Please add a dark theme to the app.")
	if err != nil {
		t.Fatalf("submit-feature error = %v", err)
	}
	var created grantiva.FeatureRequest
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("decode submit-feature output: %v\n%s", err, out)
	}

	if _, err := h.exec("vote", created.ID.String()); err != nil {
		t.Fatalf("vote error = %v", err)
	}

	tests := []struct {
		name      string
		args      []string
		wantCount int
	}{
		{"default query", []string{"features"}, 1},
		{"sorted by votes", []string{"--sort", "votes", "--per", "5", "features"}, 1},
		{"status filter miss", []string{"--status", "shipped", "features"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := h.exec(tt.args...)
			if err != nil {
				t.Fatalf("features error = %v", err)
			}

			var list []grantiva.FeatureRequest
			if err := json.Unmarshal([]byte(out), &list); err != nil {
				t.Fatalf("decode features output: %v\n%s", err, out)
			}
			if len(list) != tt.wantCount {
				t.Fatalf("len(list) = %d, want %d", len(list), tt.wantCount)
			}
			if tt.wantCount > 0 && (!list[0].HasVoted || list[0].VoteCount != 1) {
				t.Errorf("list[0] = %+v, want a voted request", list[0])
			}
		})
	}

	// A different user has not voted.
	out, err = h.exec("--user", "user-42", "feature", created.ID.String())
	if err != nil {
		t.Fatalf("feature error = %v", err)
	}
	var fetched grantiva.FeatureRequest
	if err := json.Unmarshal([]byte(out), &fetched); err != nil {
		t.Fatalf("decode feature output: %v\n%s", err, out)
	}
	if fetched.HasVoted || fetched.VoteCount != 1 {
		t.Errorf("fetched = %+v, want hasVoted=false voteCount=1", fetched)
	}
}

func TestRun_TicketCommandsNeedUser(t *testing.T) {
	h := newCLIHarness(t)

	out, err := h.exec("-u", "user-42", "--email", "user@example.com",
		"submit-ticket", "Crash on launch", "The app crashes right after the splash screen.")
	if err != nil {
		t.Fatalf("submit-ticket error = %v", err)
	}
	if !strings.Contains(out, `"id"`) {
		t.Errorf("submit-ticket output = %s, want a ticket", out)
	}

	out, err = h.exec("-u", "user-42", "tickets")
	if err != nil {
		t.Fatalf("tickets error = %v", err)
	}
	var tickets []grantiva.SupportTicket
	if err := json.Unmarshal([]byte(out), &tickets); err != nil {
		t.Fatalf("decode tickets output: %v\n%s", err, out)
	}
	if len(tickets) != 1 {
		t.Errorf("len(tickets) = %d, want 1", len(tickets))
	}
}
