// Package sandbox is an in-memory stand-in for the Grantiva API, used for
// local development and end-to-end tests.
package sandbox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/grantiva/grantiva-go/internal/model"
	"github.com/grantiva/grantiva-go/internal/platform"
)

const (
	ChallengeTTL   = 5 * time.Minute
	challengeBytes = 32

	// Issuer is the iss claim of sandbox session tokens.
	Issuer = "grantiva-sandbox"

	// IntegritySoftware is the device integrity reported for software attestations.
	IntegritySoftware = "software"
)

var (
	ErrChallengeUnknown    = errors.New("unknown or already used challenge")
	ErrChallengeExpired    = errors.New("challenge expired")
	ErrAttestationRejected = errors.New("attestation rejected")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyVoted        = errors.New("already voted")
	ErrBadRequest          = errors.New("bad request")
)

// Config describes the single tenant the sandbox serves.
type Config struct {
	TeamID   string
	BundleID string
	APIKey   string

	JWTSecret string
	TokenTTL  time.Duration

	// FeedbackDisabled makes every feedback route answer feedback_not_available.
	FeedbackDisabled bool

	// CustomClaims are added to every issued token and echoed in the response.
	CustomClaims map[string]string

	Now func() time.Time
}

// Server holds all sandbox state behind one mutex.
type Server struct {
	cfg Config
	now func() time.Time

	mu         sync.Mutex
	challenges map[string]time.Time
	devices    map[string]*deviceRecord
	features   map[uuid.UUID]*featureRecord
	comments   map[uuid.UUID][]model.FeatureComment
	tickets    map[uuid.UUID]*ticketRecord
}

type deviceRecord struct {
	count int
	last  time.Time
}

func New(cfg Config) *Server {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.JWTSecret == "" {
		// Tokens are only ever checked by this process.
		cfg.JWTSecret = uuid.NewString()
	}
	return &Server{
		cfg:        cfg,
		now:        now,
		challenges: make(map[string]time.Time),
		devices:    make(map[string]*deviceRecord),
		features:   make(map[uuid.UUID]*featureRecord),
		comments:   make(map[uuid.UUID][]model.FeatureComment),
		tickets:    make(map[uuid.UUID]*ticketRecord),
	}
}

// AppID is the relying party attestations must be bound to.
func (s *Server) AppID() string {
	return s.cfg.TeamID + "." + s.cfg.BundleID
}

func (s *Server) FeedbackEnabled() bool {
	return !s.cfg.FeedbackDisabled
}

// Authenticate accepts either the configured API key or the tenant's
// bundle and team id pair.
func (s *Server) Authenticate(apiKey, bundleID, teamID string) bool {
	if apiKey != "" {
		return s.cfg.APIKey != "" && subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.cfg.APIKey)) == 1
	}
	return bundleID != "" && bundleID == s.cfg.BundleID && teamID == s.cfg.TeamID
}

// Challenge is a single-use nonce.
type Challenge struct {
	Value     string
	ExpiresAt time.Time
}

func (s *Server) IssueChallenge() (*Challenge, error) {
	buf := make([]byte, challengeBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}
	c := &Challenge{
		Value:     base64.RawURLEncoding.EncodeToString(buf),
		ExpiresAt: s.now().Add(ChallengeTTL).UTC(),
	}

	s.mu.Lock()
	s.pruneChallengesLocked()
	s.challenges[c.Value] = c.ExpiresAt
	s.mu.Unlock()

	log.Printf("[Sandbox] IssueChallenge OK: expires_at=%s", c.ExpiresAt.Format(time.RFC3339))
	return c, nil
}

// pruneChallengesLocked requires s.mu.
func (s *Server) pruneChallengesLocked() {
	now := s.now()
	for v, exp := range s.challenges {
		if now.After(exp) {
			delete(s.challenges, v)
		}
	}
}

// Submission is a decoded validate request.
type Submission struct {
	BundleID          string
	TeamID            string
	KeyID             string
	AttestationObject []byte
	ClientDataHash    []byte
	Challenge         string
}

// Verdict is the outcome of a successful validation.
type Verdict struct {
	Token              string
	ExpiresAt          time.Time
	DeviceIntelligence model.DeviceIntelligence
	CustomClaims       map[string]string
}

// Validate consumes the challenge, verifies the attestation and issues a
// session token.
func (s *Server) Validate(sub Submission) (*Verdict, error) {
	now := s.now()

	s.mu.Lock()
	exp, ok := s.challenges[sub.Challenge]
	delete(s.challenges, sub.Challenge)
	s.mu.Unlock()

	if !ok {
		return nil, ErrChallengeUnknown
	}
	if now.After(exp) {
		return nil, ErrChallengeExpired
	}

	want := sha256.Sum256([]byte(sub.Challenge))
	if subtle.ConstantTimeCompare(want[:], sub.ClientDataHash) != 1 {
		return nil, fmt.Errorf("%w: client data hash does not match challenge", ErrAttestationRejected)
	}
	if sub.BundleID != "" && sub.BundleID != s.cfg.BundleID {
		return nil, fmt.Errorf("%w: bundle id mismatch", ErrAttestationRejected)
	}

	verified, err := platform.VerifyAttestation(sub.AttestationObject, sub.KeyID, sub.ClientDataHash, s.AppID())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAttestationRejected, err)
	}

	s.mu.Lock()
	rec, seen := s.devices[verified.KeyID]
	if !seen {
		rec = &deviceRecord{}
		s.devices[verified.KeyID] = rec
	}
	var last *time.Time
	if seen {
		prev := rec.last
		last = &prev
	}
	rec.count++
	rec.last = now.UTC()
	count := rec.count
	s.mu.Unlock()

	expiresAt := now.Add(s.cfg.TokenTTL).UTC().Truncate(time.Second)
	token, err := s.signToken(verified.KeyID, now, expiresAt)
	if err != nil {
		return nil, err
	}

	log.Printf("[Sandbox] Validate OK: key=%.8s attestations=%d", verified.KeyID, count)
	return &Verdict{
		Token:     token,
		ExpiresAt: expiresAt,
		DeviceIntelligence: model.DeviceIntelligence{
			DeviceID:            verified.KeyID,
			RiskScore:           0,
			DeviceIntegrity:     IntegritySoftware,
			AttestationCount:    count,
			LastAttestationDate: last,
		},
		CustomClaims: s.cfg.CustomClaims,
	}, nil
}

func (s *Server) signToken(keyID string, issuedAt, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub": keyID,
		"iss": Issuer,
		"aud": s.cfg.BundleID,
		"iat": issuedAt.Unix(),
		"exp": expiresAt.Unix(),
	}
	for k, v := range s.cfg.CustomClaims {
		if _, reserved := claims[k]; !reserved {
			claims[k] = v
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
