package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/grantiva/grantiva-go/internal/model"
)

const (
	DefaultTimeout = 30 * time.Second

	// Reasons the server sends in error bodies that map to specific kinds.
	ReasonFeedbackNotAvailable = "feedback_not_available"
	ReasonChallengeExpired     = "challenge_expired"

	maxErrorBody = 64 << 10
)

// Config configures a Client. With APIKey set, requests authenticate with
// a bearer token; otherwise with the bundle and team id headers.
type Config struct {
	BaseURL   string
	TeamID    string
	BundleID  string
	APIKey    string
	Timeout   time.Duration
	UserAgent string

	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
}

// Client talks to the Grantiva HTTP API.
type Client struct {
	baseURL    string
	teamID     string
	bundleID   string
	apiKey     string
	userAgent  string
	httpClient *http.Client
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         (&net.Dialer{Timeout: timeout}).DialContext,
				TLSHandshakeTimeout: timeout,
				MaxIdleConnsPerHost: 4,
			},
		}
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "grantiva-go"
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		teamID:     cfg.TeamID,
		bundleID:   cfg.BundleID,
		apiKey:     cfg.APIKey,
		userAgent:  userAgent,
		httpClient: httpClient,
	}
}

// errorBody is the server's error envelope: {"error": true, "reason": "..."}.
type errorBody struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	} else {
		req.Header.Set("X-Bundle-ID", c.bundleID)
		req.Header.Set("X-Team-ID", c.teamID)
	}
	return req, nil
}

// call performs a request and decodes a 2xx JSON body into out, which
// may be nil to discard it.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.Printf("[GrantivaAPI] %s %s FAILED: err=%v", method, path, err)
		return model.NetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(method, path, resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.NetworkError(fmt.Errorf("read response: %w", err))
	}
	if out != nil {
		if len(bytes.TrimSpace(respBody)) == 0 {
			return model.InvalidResponse(errors.New("empty response body"))
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			log.Printf("[GrantivaAPI] %s %s FAILED: undecodable body: %v", method, path, err)
			return model.InvalidResponse(err)
		}
	}

	log.Printf("[GrantivaAPI] %s %s OK: status=%d duration=%v", method, path, resp.StatusCode, time.Since(start))
	return nil
}

func (c *Client) statusError(method, path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body errorBody
	_ = json.Unmarshal(raw, &body)

	if body.Reason != "" {
		log.Printf("[GrantivaAPI] %s %s FAILED: status=%d reason=%s", method, path, resp.StatusCode, body.Reason)
	} else {
		log.Printf("[GrantivaAPI] %s %s FAILED: status=%d", method, path, resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return model.ErrValidationFailed
	case resp.StatusCode == http.StatusTooManyRequests:
		return model.ErrRateLimited
	case resp.StatusCode == http.StatusForbidden && body.Reason == ReasonFeedbackNotAvailable:
		return model.ErrFeedbackNotAvailable
	case isAttestationPath(path) && (resp.StatusCode == http.StatusGone || body.Reason == ReasonChallengeExpired):
		return model.ErrChallengeExpired
	}
	return model.HTTPStatusError(resp.StatusCode)
}

// isAttestationPath reports whether a challenge can expire on path.
func isAttestationPath(path string) bool {
	return path == challengePath || path == validatePath
}

var (
	_ AttestationAPI = (*Client)(nil)
	_ FeedbackAPI    = (*Client)(nil)
)
