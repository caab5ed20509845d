package identity

import (
	"log"
	"sync"

	"github.com/grantiva/grantiva-go/internal/model"
)

// Listener is called after the identity changes, outside the context's lock.
type Listener func()

// Context holds the optional host-supplied identity and the anonymous
// device-derived identifiers used when the host has not identified a user.
type Context struct {
	mu        sync.RWMutex
	user      *model.UserContext
	listeners []Listener

	deviceHash    string
	voterHash     string
	submitterHash string
	device        func() model.DeviceContext
}

// NewContext derives the anonymous hashes once. device is called on
// Identify to snapshot device metadata; nil yields an empty DeviceContext.
func NewContext(deviceID, bundleID string, device func() model.DeviceContext) *Context {
	dh := DeviceHash(deviceID, bundleID)
	if device == nil {
		device = func() model.DeviceContext { return model.DeviceContext{} }
	}
	return &Context{
		deviceHash:    dh,
		voterHash:     VoterHash(dh),
		submitterHash: SubmitterHash(dh),
		device:        device,
	}
}

// OnChange registers fn to run after Identify and ClearIdentity.
func (c *Context) OnChange(fn Listener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Identify replaces the current identity wholesale.
func (c *Context) Identify(userID string, properties map[string]string) {
	props := make(map[string]string, len(properties))
	for k, v := range properties {
		props[k] = v
	}
	uc := &model.UserContext{
		UserID:     userID,
		Properties: props,
		Device:     c.device(),
	}

	c.mu.Lock()
	c.user = uc
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()

	log.Printf("[Identity] Identify OK: user=%s properties=%d", userID, len(props))
	notify(listeners)
}

// ClearIdentity reverts to anonymous identifiers.
func (c *Context) ClearIdentity() {
	c.mu.Lock()
	c.user = nil
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()

	log.Printf("[Identity] ClearIdentity OK")
	notify(listeners)
}

// SetProperty sets one property on the identified user. It returns false
// when no user is identified.
func (c *Context) SetProperty(key, value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return false
	}
	c.user.Properties[key] = value
	return true
}

// User returns a copy of the current identity, or nil when anonymous.
func (c *Context) User() *model.UserContext {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	cp := *c.user
	cp.Properties = make(map[string]string, len(c.user.Properties))
	for k, v := range c.user.Properties {
		cp.Properties[k] = v
	}
	return &cp
}

func (c *Context) IsIdentified() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user != nil
}

// DeviceHash is stable across identity changes.
func (c *Context) DeviceHash() string {
	return c.deviceHash
}

// EffectiveSubmitterID is the user id when identified, else the submitter hash.
func (c *Context) EffectiveSubmitterID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user != nil {
		return c.user.UserID
	}
	return c.submitterHash
}

// EffectiveVoterID is the user id when identified, else the voter hash.
func (c *Context) EffectiveVoterID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user != nil {
		return c.user.UserID
	}
	return c.voterHash
}

// AllProperties merges the device context with the user's properties.
// user_id is present only when identified.
func (c *Context) AllProperties() map[string]string {
	c.mu.RLock()
	uc := c.user
	var merged map[string]string
	if uc != nil {
		merged = uc.AllProperties()
	}
	c.mu.RUnlock()

	if merged == nil {
		merged = c.device().ToMap()
	}
	return merged
}

func notify(listeners []Listener) {
	for _, fn := range listeners {
		fn()
	}
}
