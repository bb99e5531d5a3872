package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/operation"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestBoundedLRU(t *testing.T) {
	ctx := context.Background()
	var evicted []string
	s := NewBounded(
		WithMaxEntries(3),
		WithEvictionCallback(func(key string, value any) { evicted = append(evicted, key) }),
	)

	require.NoError(t, s.Set(ctx, "stamina", 10))
	require.NoError(t, s.Set(ctx, "gold", 500))
	require.NoError(t, s.Set(ctx, "daily_claimed", true))

	// Touch stamina and daily_claimed so gold is least recently used.
	s.Get(ctx, "stamina")
	s.Get(ctx, "daily_claimed")
	require.NoError(t, s.Set(ctx, "mail_count", 2))

	_, ok := s.Get(ctx, "gold")
	assert.False(t, ok)
	for _, key := range []string{"stamina", "daily_claimed", "mail_count"} {
		_, ok := s.Get(ctx, key)
		assert.True(t, ok, key)
	}
	assert.Equal(t, []string{"gold"}, evicted)
	assert.Equal(t, 3, s.Len())
}

func TestBoundedTTL(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	var evicted []string
	s := NewBounded(
		WithTTL(10*time.Minute),
		WithClock(c.Now),
		WithEvictionCallback(func(key string, value any) { evicted = append(evicted, key) }),
	)

	require.NoError(t, s.Set(ctx, "stamina", 10))
	c.Advance(6 * time.Minute)
	require.NoError(t, s.Set(ctx, "gold", 500))

	c.Advance(5 * time.Minute)
	_, ok := s.Get(ctx, "stamina")
	assert.False(t, ok, "stamina is 11 minutes old")
	v, ok := s.Get(ctx, "gold")
	assert.True(t, ok)
	assert.Equal(t, 500, v)

	// Rewriting refreshes the entry.
	require.NoError(t, s.Set(ctx, "gold", 600))
	c.Advance(9 * time.Minute)
	assert.Equal(t, map[string]any{"gold": 600}, s.Snapshot(ctx))

	c.Advance(time.Minute)
	assert.Empty(t, s.Snapshot(ctx))
	assert.Equal(t, []string{"stamina", "gold"}, evicted)
	assert.Zero(t, s.Len())
}

func TestBoundedScope(t *testing.T) {
	ctx := context.Background()
	s := NewBounded(WithMaxEntries(2))

	alice := s.Scope("alice")
	bob := s.Scope("bob")
	require.NoError(t, alice.Set(ctx, "stamina", 1))
	require.NoError(t, bob.Set(ctx, "stamina", 2))

	v, ok := alice.Get(ctx, "stamina")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, map[string]any{"stamina": 2}, bob.Snapshot(ctx))

	require.NoError(t, alice.Delete(ctx, "stamina"))
	_, ok = alice.Get(ctx, "stamina")
	assert.False(t, ok)
	_, ok = s.Get(ctx, "bob:stamina")
	assert.True(t, ok)

	// Views share the capacity of the root store.
	require.NoError(t, alice.Set(ctx, "gold", 1))
	require.NoError(t, alice.Set(ctx, "gems", 1))
	assert.Equal(t, 2, s.Len())
}

func TestBoundedAsBotState(t *testing.T) {
	ctx := context.Background()
	s := NewBounded(WithMaxEntries(10))

	g, err := operation.NewBuilder("mark").
		Func("mark", func(ctx context.Context, bot *operation.Context) operation.RoundResult {
			if err := bot.State.Set(ctx, "daily_claimed", true); err != nil {
				return operation.Fail("", err.Error())
			}
			return operation.Success("", nil)
		}).
		Build()
	require.NoError(t, err)

	bot := operation.NewContext(operation.WithState(s.Scope("alice")))
	require.True(t, operation.New(g, bot).Execute(ctx).Success)

	v, ok := s.Get(ctx, "alice:daily_claimed")
	require.True(t, ok)
	assert.Equal(t, true, v)
}

func TestBoundedConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewBounded(WithMaxEntries(50))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			view := s.Scope(string(rune('a' + i)))
			for j := 0; j < 100; j++ {
				_ = view.Set(ctx, "k", j)
				view.Get(ctx, "k")
				view.Snapshot(ctx)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, s.Len(), 50)
}
