package session

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shubcodes/fw-intellibrowse-agent/pkg/agent"
	"github.com/shubcodes/fw-intellibrowse-agent/pkg/tool"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func sequentialIDs() func() (string, error) {
	var n int
	return func() (string, error) {
		n++
		return fmt.Sprintf("sess_%d", n), nil
	}
}

type idleProvider struct{}

func (idleProvider) Name() string { return "idle" }

func (idleProvider) Stream(context.Context, agent.CompletionRequest, func(string) error) (string, error) {
	return "ok", nil
}

func newStoreLoop(t *testing.T) *agent.Loop {
	t.Helper()

	loop, err := agent.NewLoop(agent.LoopConfig{
		Provider: idleProvider{},
		Registry: tool.NewRegistry(zerolog.Nop()),
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	return loop
}

func TestStoreCreateGetDelete(t *testing.T) {
	store := NewStore(zerolog.Nop(), WithIDGenerator(sequentialIDs()))

	sess, err := store.Create(newStoreLoop(t))
	require.NoError(t, err)
	assert.Equal(t, "sess_1", sess.ID)
	assert.Equal(t, 1, store.Len())

	got, ok := store.Get(sess.ID)
	require.True(t, ok)
	assert.Same(t, sess, got)

	_, ok = store.Get("sess_missing")
	assert.False(t, ok)

	assert.True(t, store.Delete(sess.ID))
	assert.False(t, store.Delete(sess.ID))
	assert.Equal(t, 0, store.Len())
}

func TestStoreDefaultIDShape(t *testing.T) {
	store := NewStore(zerolog.Nop())

	sess, err := store.Create(newStoreLoop(t))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sess.ID, "sess_"))
	parts := strings.Split(sess.ID, "_")
	require.Len(t, parts, 3)
	assert.Len(t, parts[2], 12)
}

func TestStoreGetTouchesSession(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)}
	store := NewStore(zerolog.Nop(), WithClock(clock.Now), WithIDGenerator(sequentialIDs()))

	sess, err := store.Create(newStoreLoop(t))
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	_, ok := store.Get(sess.ID)
	require.True(t, ok)
	assert.Equal(t, clock.Now(), sess.LastSeen())
}

func TestEvictIdle(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)}
	store := NewStore(zerolog.Nop(), WithClock(clock.Now), WithIDGenerator(sequentialIDs()))

	stale, err := store.Create(newStoreLoop(t))
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)
	fresh, err := store.Create(newStoreLoop(t))
	require.NoError(t, err)

	evicted := store.EvictIdle(30 * time.Minute)
	assert.Equal(t, []string{stale.ID}, evicted)
	assert.Equal(t, 1, store.Len())

	_, ok := store.Get(fresh.ID)
	assert.True(t, ok)
}

func TestEvictIdleSkipsBusySessions(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)}
	store := NewStore(zerolog.Nop(), WithClock(clock.Now), WithIDGenerator(sequentialIDs()))

	started := make(chan struct{})
	proceed := make(chan struct{})
	blocking, err := agent.NewLoop(agent.LoopConfig{
		Provider: blockingProvider{started: started, proceed: proceed},
		Registry: tool.NewRegistry(zerolog.Nop()),
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	sess, err := store.Create(blocking)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = blocking.Execute(context.Background(), "work")
	}()
	<-started

	clock.Advance(time.Hour)
	assert.Empty(t, store.EvictIdle(30*time.Minute))

	_, ok := store.Get(sess.ID)
	assert.True(t, ok)

	close(proceed)
	<-done
}

type blockingProvider struct {
	started chan struct{}
	proceed chan struct{}
}

func (blockingProvider) Name() string { return "blocking" }

func (p blockingProvider) Stream(context.Context, agent.CompletionRequest, func(string) error) (string, error) {
	close(p.started)
	<-p.proceed
	return "done", nil
}

func TestSweeperEvicts(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)}
	store := NewStore(zerolog.Nop(), WithClock(clock.Now), WithIDGenerator(sequentialIDs()))

	_, err := store.Create(newStoreLoop(t))
	require.NoError(t, err)
	clock.Advance(time.Hour)

	sweeper, err := NewSweeper(SweeperConfig{
		Store:    store,
		TTL:      30 * time.Minute,
		Schedule: "@every 10ms",
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	sweeper.Start()
	defer sweeper.Stop()

	assert.Eventually(t, func() bool { return store.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSweeperConfigValidation(t *testing.T) {
	store := NewStore(zerolog.Nop())

	_, err := NewSweeper(SweeperConfig{TTL: time.Minute})
	assert.ErrorContains(t, err, "store is required")

	_, err = NewSweeper(SweeperConfig{Store: store})
	assert.ErrorContains(t, err, "ttl must be positive")

	_, err = NewSweeper(SweeperConfig{Store: store, TTL: time.Minute, Schedule: "not-a-schedule"})
	assert.ErrorContains(t, err, "invalid sweep schedule")
}
