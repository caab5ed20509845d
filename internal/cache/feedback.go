package cache

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/grantiva/grantiva-go/internal/model"
)

const (
	// FeatureListTTL is the TTL for the default feature request listing.
	FeatureListTTL = 120 * time.Second

	// FeatureDetailTTL is the TTL for a single feature request.
	FeatureDetailTTL = 300 * time.Second

	// CommentsTTL is the TTL for a feature request's comments.
	CommentsTTL = 120 * time.Second

	// TicketsTTL is the TTL for the current submitter's tickets.
	TicketsTTL = 120 * time.Second
)

// FeedbackCache defines the in-memory cache in front of the feedback API.
// Expired entries read as misses and are replaced on the next write.
//
// Writes carry the Generation captured before the fetch that produced
// them. A write whose table was invalidated since is dropped, so a fetch
// that raced an identity change or a mutation cannot repopulate the cache.
type FeedbackCache interface {
	Generation() Generation

	FeatureRequests() ([]model.FeatureRequest, bool)
	SetFeatureRequests(gen Generation, items []model.FeatureRequest) bool

	FeatureRequest(id uuid.UUID) (*model.FeatureRequest, bool)
	SetFeatureRequest(gen Generation, fr model.FeatureRequest) bool

	Comments(featureID uuid.UUID) ([]model.FeatureComment, bool)
	SetComments(gen Generation, featureID uuid.UUID, comments []model.FeatureComment) bool

	Tickets() ([]model.SupportTicket, bool)
	SetTickets(gen Generation, tickets []model.SupportTicket) bool

	// InvalidateFeatureRequests clears the listing, all details and all
	// comments together; vote and comment counts appear in each.
	InvalidateFeatureRequests()
	InvalidateTickets()

	// ClearAll drops everything. Called on identity change.
	ClearAll()
}

// Entry is a cached value with its expiry.
type Entry[T any] struct {
	Value     T
	ExpiresAt time.Time
}

// ValidAt reports whether the entry may be served at now.
func (e Entry[T]) ValidAt(now time.Time) bool {
	return !now.After(e.ExpiresAt)
}

// Generation snapshots the invalidation counter of every table.
type Generation struct {
	list, details, comments, tickets uint64
}

// table is one independently locked, TTL'd map. gen counts clears.
type table[K comparable, V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	gen     uint64
	entries map[K]Entry[V]
}

func newTable[K comparable, V any](ttl time.Duration) *table[K, V] {
	return &table[K, V]{ttl: ttl, entries: make(map[K]Entry[V])}
}

func (t *table[K, V]) get(key K, now time.Time) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[key]
	if !ok || !e.ValidAt(now) {
		var zero V
		return zero, false
	}
	return e.Value, true
}

func (t *table[K, V]) generation() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.gen
}

// set stores value unless the table was cleared after gen was taken.
func (t *table[K, V]) set(gen uint64, key K, value V, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return false
	}
	t.entries[key] = Entry[V]{Value: value, ExpiresAt: now.Add(t.ttl)}
	return true
}

// clearLocked requires t.mu held for writing.
func (t *table[K, V]) clearLocked() {
	clear(t.entries)
	t.gen++
}

type locker interface {
	Lock()
	Unlock()
}

// lockAll locks in argument order and returns the matching unlock.
func lockAll(ls ...locker) func() {
	for _, l := range ls {
		l.Lock()
	}
	return func() {
		for i := len(ls) - 1; i >= 0; i-- {
			ls[i].Unlock()
		}
	}
}

type singleton struct{}

// MemoryFeedbackCache implements FeedbackCache. Multi-table operations lock
// in the order list, details, comments, tickets.
type MemoryFeedbackCache struct {
	now func() time.Time

	list     *table[singleton, []model.FeatureRequest]
	details  *table[uuid.UUID, model.FeatureRequest]
	comments *table[uuid.UUID, []model.FeatureComment]
	tickets  *table[singleton, []model.SupportTicket]
}

// NewFeedbackCache creates an empty cache. now defaults to time.Now.
func NewFeedbackCache(now func() time.Time) *MemoryFeedbackCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryFeedbackCache{
		now:      now,
		list:     newTable[singleton, []model.FeatureRequest](FeatureListTTL),
		details:  newTable[uuid.UUID, model.FeatureRequest](FeatureDetailTTL),
		comments: newTable[uuid.UUID, []model.FeatureComment](CommentsTTL),
		tickets:  newTable[singleton, []model.SupportTicket](TicketsTTL),
	}
}

func (c *MemoryFeedbackCache) Generation() Generation {
	return Generation{
		list:     c.list.generation(),
		details:  c.details.generation(),
		comments: c.comments.generation(),
		tickets:  c.tickets.generation(),
	}
}

func (c *MemoryFeedbackCache) FeatureRequests() ([]model.FeatureRequest, bool) {
	items, ok := c.list.get(singleton{}, c.now())
	return cloneSlice(items), ok
}

func (c *MemoryFeedbackCache) SetFeatureRequests(gen Generation, items []model.FeatureRequest) bool {
	return c.list.set(gen.list, singleton{}, cloneSlice(items), c.now())
}

func (c *MemoryFeedbackCache) FeatureRequest(id uuid.UUID) (*model.FeatureRequest, bool) {
	fr, ok := c.details.get(id, c.now())
	if !ok {
		return nil, false
	}
	return &fr, true
}

func (c *MemoryFeedbackCache) SetFeatureRequest(gen Generation, fr model.FeatureRequest) bool {
	return c.details.set(gen.details, fr.ID, fr, c.now())
}

func (c *MemoryFeedbackCache) Comments(featureID uuid.UUID) ([]model.FeatureComment, bool) {
	comments, ok := c.comments.get(featureID, c.now())
	return cloneSlice(comments), ok
}

func (c *MemoryFeedbackCache) SetComments(gen Generation, featureID uuid.UUID, comments []model.FeatureComment) bool {
	return c.comments.set(gen.comments, featureID, cloneSlice(comments), c.now())
}

func (c *MemoryFeedbackCache) Tickets() ([]model.SupportTicket, bool) {
	tickets, ok := c.tickets.get(singleton{}, c.now())
	return cloneSlice(tickets), ok
}

func (c *MemoryFeedbackCache) SetTickets(gen Generation, tickets []model.SupportTicket) bool {
	return c.tickets.set(gen.tickets, singleton{}, cloneSlice(tickets), c.now())
}

func (c *MemoryFeedbackCache) InvalidateFeatureRequests() {
	unlock := lockAll(&c.list.mu, &c.details.mu, &c.comments.mu)
	defer unlock()
	c.list.clearLocked()
	c.details.clearLocked()
	c.comments.clearLocked()
	log.Printf("[FeedbackCache] InvalidateFeatureRequests OK")
}

func (c *MemoryFeedbackCache) InvalidateTickets() {
	c.tickets.mu.Lock()
	defer c.tickets.mu.Unlock()
	c.tickets.clearLocked()
	log.Printf("[FeedbackCache] InvalidateTickets OK")
}

func (c *MemoryFeedbackCache) ClearAll() {
	unlock := lockAll(&c.list.mu, &c.details.mu, &c.comments.mu, &c.tickets.mu)
	defer unlock()
	c.list.clearLocked()
	c.details.clearLocked()
	c.comments.clearLocked()
	c.tickets.clearLocked()
	log.Printf("[FeedbackCache] ClearAll OK")
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append([]T(nil), s...)
}

var _ FeedbackCache = (*MemoryFeedbackCache)(nil)
