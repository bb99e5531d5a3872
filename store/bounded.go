// Package store provides operation.Store implementations for long-running
// bots, whose cached game-state flags go stale and pile up.
package store

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/agentstation/operation"
)

// Bounded is an operation.Store holding at most a fixed number of entries.
// Least recently used entries are evicted first, and with a TTL an entry
// expires that long after it was last written.
type Bounded struct {
	core   *core
	prefix string
}

type core struct {
	mu         sync.Mutex
	data       map[string]*entry
	lru        *list.List
	maxEntries int
	ttl        time.Duration
	onEvict    func(key string, value any)
	now        func() time.Time
}

type entry struct {
	key     string
	value   any
	written time.Time
	element *list.Element
}

// Option configures a Bounded store.
type Option func(*core)

// WithMaxEntries sets the maximum number of entries. Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(c *core) {
		c.maxEntries = n
	}
}

// WithTTL sets how long a written value stays visible.
func WithTTL(ttl time.Duration) Option {
	return func(c *core) {
		c.ttl = ttl
	}
}

// WithEvictionCallback is called for entries dropped by the size limit or
// by expiry, never for explicit deletes.
func WithEvictionCallback(fn func(key string, value any)) Option {
	return func(c *core) {
		c.onEvict = fn
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *core) {
		c.now = now
	}
}

// NewBounded creates a bounded store. Defaults to 1000 entries and no TTL.
func NewBounded(opts ...Option) *Bounded {
	c := &core{
		data:       make(map[string]*entry),
		lru:        list.New(),
		maxEntries: 1000,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return &Bounded{core: c}
}

var _ operation.Store = (*Bounded)(nil)

// Get retrieves a value by key.
func (s *Bounded) Get(ctx context.Context, key string) (any, bool) {
	c := s.core
	c.mu.Lock()
	ent, ok := c.data[s.prefix+key]
	if !ok {
		c.mu.Unlock()
		return nil, false
	}
	if c.expired(ent) {
		c.remove(ent)
		c.mu.Unlock()
		c.evicted(ent)
		return nil, false
	}
	c.lru.MoveToFront(ent.element)
	c.mu.Unlock()
	return ent.value, true
}

// Set stores a value with the given key.
func (s *Bounded) Set(ctx context.Context, key string, value any) error {
	c := s.core
	c.mu.Lock()

	full := s.prefix + key
	if ent, ok := c.data[full]; ok {
		ent.value = value
		ent.written = c.now()
		c.lru.MoveToFront(ent.element)
		c.mu.Unlock()
		return nil
	}

	ent := &entry{key: full, value: value, written: c.now()}
	ent.element = c.lru.PushFront(ent)
	c.data[full] = ent

	var dropped []*entry
	for c.maxEntries > 0 && len(c.data) > c.maxEntries {
		oldest := c.lru.Back().Value.(*entry)
		c.remove(oldest)
		dropped = append(dropped, oldest)
	}
	c.mu.Unlock()

	for _, d := range dropped {
		c.evicted(d)
	}
	return nil
}

// Delete removes a key from the store.
func (s *Bounded) Delete(ctx context.Context, key string) error {
	c := s.core
	c.mu.Lock()
	defer c.mu.Unlock()
	if ent, ok := c.data[s.prefix+key]; ok {
		c.remove(ent)
	}
	return nil
}

// Scope returns a view whose keys carry the given prefix. Views share
// capacity with the store they came from.
func (s *Bounded) Scope(prefix string) operation.Store {
	return &Bounded{core: s.core, prefix: s.prefix + prefix + ":"}
}

// Snapshot copies the live entries visible to this view.
func (s *Bounded) Snapshot(ctx context.Context) map[string]any {
	c := s.core
	c.mu.Lock()
	out := make(map[string]any)
	var expired []*entry
	for k, ent := range c.data {
		if !strings.HasPrefix(k, s.prefix) {
			continue
		}
		if c.expired(ent) {
			expired = append(expired, ent)
			continue
		}
		out[strings.TrimPrefix(k, s.prefix)] = ent.value
	}
	for _, ent := range expired {
		c.remove(ent)
	}
	c.mu.Unlock()

	for _, ent := range expired {
		c.evicted(ent)
	}
	return out
}

// Len returns the number of entries held, expired ones included until they
// are next touched.
func (s *Bounded) Len() int {
	s.core.mu.Lock()
	defer s.core.mu.Unlock()
	return len(s.core.data)
}

func (c *core) expired(ent *entry) bool {
	return c.ttl > 0 && c.now().Sub(ent.written) >= c.ttl
}

func (c *core) remove(ent *entry) {
	c.lru.Remove(ent.element)
	delete(c.data, ent.key)
}

// evicted runs the callback outside the lock so it may use the store.
func (c *core) evicted(ent *entry) {
	if c.onEvict != nil {
		c.onEvict(ent.key, ent.value)
	}
}
