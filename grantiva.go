// Package grantiva is the Go client SDK for Grantiva: device attestation
// exchanged for session tokens, and an identity-scoped feedback API for
// feature requests and support tickets.
package grantiva

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/grantiva/grantiva-go/internal/cache"
	"github.com/grantiva/grantiva-go/internal/client"
	"github.com/grantiva/grantiva-go/internal/config"
	"github.com/grantiva/grantiva-go/internal/database"
	"github.com/grantiva/grantiva-go/internal/identity"
	"github.com/grantiva/grantiva-go/internal/model"
	"github.com/grantiva/grantiva-go/internal/platform"
	"github.com/grantiva/grantiva-go/internal/repository"
	"github.com/grantiva/grantiva-go/internal/retry"
	"github.com/grantiva/grantiva-go/internal/service"
	"github.com/grantiva/grantiva-go/internal/storage"
)

// Client is the SDK entry point. It is safe for concurrent use.
type Client struct {
	cfg         *Config
	deviceID    string
	identity    *identity.Context
	attestation *service.AttestationService
	feedback    *service.FeedbackService
	closers     []io.Closer
}

type options struct {
	store       storage.SecureStore
	attester    platform.Attester
	attesterSet bool
	httpClient  *http.Client
	app         platform.AppInfo
	policy      *retry.Policy
	now         func() time.Time
}

// Option customizes New.
type Option func(*options)

// WithSecureStore replaces the storage backend chosen by Config.Storage.
func WithSecureStore(s SecureStore) Option {
	return func(o *options) { o.store = s }
}

// WithAttester sets the attestation primitive. Passing nil declares the
// host unable to attest; ValidateAttestation then fails with
// ErrDeviceNotSupported unless an API key is configured.
func WithAttester(a Attester) Option {
	return func(o *options) {
		o.attester = a
		o.attesterSet = true
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithAppInfo supplies the host application's metadata for the device context.
func WithAppInfo(app AppInfo) Option {
	return func(o *options) { o.app = app }
}

// WithRetryPolicy overrides the policy derived from Config.RetryAttempts.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *options) { o.policy = &p }
}

// WithClock sets the time source for token expiry and cache TTLs.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New validates cfg and wires the SDK. Without WithAttester, a software
// attester bound to "<team id>.<bundle id>" is used, keeping its keys in
// the secure store.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.app.BundleID == "" {
		o.app.BundleID = cfg.BundleID
	}

	c := &Client{cfg: cfg}

	store := o.store
	if store == nil {
		var err error
		store, err = c.openStore(ctx)
		if err != nil {
			c.Close()
			return nil, err
		}
	}

	deviceID, err := resolveDeviceID(ctx, cfg, store)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.deviceID = deviceID

	attester := o.attester
	if !o.attesterSet {
		attester = platform.NewSoftwareAttester(cfg.TeamID+"."+cfg.BundleID, store)
	}

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.RetryAttempts
	if o.policy != nil {
		policy = *o.policy
	}

	api := client.New(client.Config{
		BaseURL:    cfg.BaseURL,
		TeamID:     cfg.TeamID,
		BundleID:   cfg.BundleID,
		APIKey:     cfg.APIKey,
		Timeout:    cfg.Timeout(),
		UserAgent:  "grantiva-go/" + platform.SDKVersion,
		HTTPClient: o.httpClient,
	})

	app := o.app
	c.identity = identity.NewContext(deviceID, cfg.BundleID, func() model.DeviceContext {
		return platform.CollectDeviceContext(app)
	})

	feedbackCache := cache.NewFeedbackCache(o.now)
	c.identity.OnChange(feedbackCache.ClearAll)

	c.attestation = service.NewAttestationService(
		api,
		attester,
		repository.NewSessionTokenRepository(store, o.now),
		repository.NewDeviceKeyRepository(store, attester),
		service.AttestationConfig{
			APIKey:   cfg.APIKey,
			DeviceID: deviceID,
			Retry:    policy,
			Now:      o.now,
		},
	)
	c.feedback = service.NewFeedbackService(api, feedbackCache, c.identity, policy)

	log.Printf("[Grantiva] New OK: base_url=%s storage=%s api_key_mode=%v", cfg.BaseURL, cfg.Storage, cfg.UsesAPIKey())
	return c, nil
}

func (c *Client) openStore(ctx context.Context) (storage.SecureStore, error) {
	var store storage.SecureStore
	switch c.cfg.Storage {
	case config.StoragePostgres:
		db, err := database.Connect(c.cfg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		c.closers = append(c.closers, db)
		if err := database.Migrate(ctx, db); err != nil {
			return nil, err
		}
		store = storage.NewPostgresStore(db)
	case config.StorageRedis:
		rdb, err := storage.NewRedisClient(c.cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, rdb)
		rs := storage.NewRedisStore(rdb)
		if err := rs.Ping(ctx); err != nil {
			return nil, err
		}
		store = rs
	default:
		store = storage.NewMemoryStore()
	}

	if c.cfg.StorageSecret != "" {
		sealed, err := storage.NewSealedStore(store, c.cfg.StorageSecret)
		if err != nil {
			return nil, err
		}
		store = sealed
	}
	return store, nil
}

// resolveDeviceID prefers the configured id, then a persisted one. A new
// id is derived from the machine id when available so it stays stable
// across installs on the same machine.
func resolveDeviceID(ctx context.Context, cfg *Config, store storage.SecureStore) (string, error) {
	if cfg.DeviceID != "" {
		return cfg.DeviceID, nil
	}
	return repository.NewDeviceIDRepository(store).GetOrCreate(ctx, func() (string, error) {
		if machineID, err := platform.MachineID(); err == nil {
			return uuid.NewSHA1(uuid.NameSpaceOID, []byte(machineID+":"+cfg.BundleID)).String(), nil
		}
		return uuid.NewString(), nil
	})
}

// Close releases storage connections opened by New.
func (c *Client) Close() error {
	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// ValidateAttestation returns a valid session token, attesting the device
// only when no unexpired token is stored.
func (c *Client) ValidateAttestation(ctx context.Context) (*AttestationResult, error) {
	return c.attestation.ValidateAttestation(ctx)
}

// RefreshToken returns nil, nil when no token has ever been stored.
func (c *Client) RefreshToken(ctx context.Context) (*AttestationResult, error) {
	return c.attestation.RefreshToken(ctx)
}

// CurrentToken returns "" when no token is stored or it is about to expire.
func (c *Client) CurrentToken(ctx context.Context) (string, error) {
	return c.attestation.CurrentToken(ctx)
}

func (c *Client) IsTokenValid(ctx context.Context) (bool, error) {
	return c.attestation.IsTokenValid(ctx)
}

// ClearStoredData deletes the attestation key id and session token. The
// next validation creates a brand-new key.
func (c *Client) ClearStoredData(ctx context.Context) error {
	return c.attestation.ClearStoredData(ctx)
}

// Identify scopes feedback to userID and clears cached feedback.
func (c *Client) Identify(userID string, properties map[string]string) {
	c.identity.Identify(userID, properties)
}

// ClearIdentity reverts to device-scoped feedback and clears cached feedback.
func (c *Client) ClearIdentity() {
	c.identity.ClearIdentity()
}

// SetUserProperty sets one property on the identified user. It returns
// false when no user is identified.
func (c *Client) SetUserProperty(key, value string) bool {
	return c.identity.SetProperty(key, value)
}

// User returns a copy of the identified user, or nil.
func (c *Client) User() *UserContext {
	return c.identity.User()
}

func (c *Client) IsIdentified() bool {
	return c.identity.IsIdentified()
}

// UserProperties merges device context with user properties.
func (c *Client) UserProperties() map[string]string {
	return c.identity.AllProperties()
}

// DeviceID is the installation identifier used for hashing and reported
// in synthetic results.
func (c *Client) DeviceID() string {
	return c.deviceID
}

// DeviceHash is the device-derived hash sent with feedback submissions.
func (c *Client) DeviceHash() string {
	return c.identity.DeviceHash()
}

// Feedback returns the feature request and support ticket API.
func (c *Client) Feedback() *FeedbackService {
	return c.feedback
}
