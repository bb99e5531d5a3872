package operation

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Store holds cached game-state flags shared by the nodes of a bot, such as
// "daily rewards already claimed" or the last known stamina.
type Store interface {
	Get(ctx context.Context, key string) (value any, exists bool)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error

	// Scope returns a view whose keys are prefixed with prefix and ":".
	// Views share the underlying entries.
	Scope(prefix string) Store

	// Snapshot copies the entries visible to this view, keys without prefix.
	Snapshot(ctx context.Context) map[string]any
}

// flags is the storage behind every view of one in-memory Store.
type flags struct {
	mu      sync.RWMutex
	entries map[string]any
}

// memStore is a prefixed view over flags.
type memStore struct {
	flags  *flags
	prefix string
}

// NewStore creates an in-memory Store safe for concurrent use.
func NewStore() Store {
	return &memStore{flags: &flags{entries: make(map[string]any)}}
}

func (m *memStore) Get(_ context.Context, key string) (any, bool) {
	m.flags.mu.RLock()
	defer m.flags.mu.RUnlock()
	v, ok := m.flags.entries[m.prefix+key]
	return v, ok
}

func (m *memStore) Set(_ context.Context, key string, value any) error {
	m.flags.mu.Lock()
	m.flags.entries[m.prefix+key] = value
	m.flags.mu.Unlock()
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.flags.mu.Lock()
	delete(m.flags.entries, m.prefix+key)
	m.flags.mu.Unlock()
	return nil
}

func (m *memStore) Scope(prefix string) Store {
	return &memStore{flags: m.flags, prefix: m.prefix + prefix + ":"}
}

func (m *memStore) Snapshot(_ context.Context) map[string]any {
	m.flags.mu.RLock()
	defer m.flags.mu.RUnlock()

	out := make(map[string]any)
	for k, v := range m.flags.entries {
		if rest, ok := strings.CutPrefix(k, m.prefix); ok {
			out[rest] = v
		}
	}
	return out
}

// TypedStore reads and writes values of one type through a Store.
type TypedStore[T any] interface {
	// Get reports exists=false for a missing key and an error when the
	// stored value has another type.
	Get(ctx context.Context, key string) (value T, exists bool, err error)
	Set(ctx context.Context, key string, value T) error
	Delete(ctx context.Context, key string) error
}

// NewTypedStore wraps s.
func NewTypedStore[T any](s Store) TypedStore[T] {
	return typed[T]{s: s}
}

type typed[T any] struct {
	s Store
}

func (t typed[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	raw, ok := t.s.Get(ctx, key)
	if !ok {
		return zero, false, nil
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false, fmt.Errorf("state %q holds %T, want %T", key, raw, zero)
	}
	return v, true, nil
}

func (t typed[T]) Set(ctx context.Context, key string, value T) error {
	return t.s.Set(ctx, key, value)
}

func (t typed[T]) Delete(ctx context.Context, key string) error {
	return t.s.Delete(ctx, key)
}
