// Package session provides the in-memory session store that maps opaque
// session ids to their agent loops, plus the idle-eviction sweeper.
package session

import (
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/shubcodes/fw-intellibrowse-agent/internal/observability"
	"github.com/shubcodes/fw-intellibrowse-agent/pkg/agent"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Session pairs an opaque id with the loop that owns its conversation.
type Session struct {
	ID        string
	Loop      *agent.Loop
	CreatedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

// Touch records activity on the session, deferring idle eviction.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// LastSeen returns the time of the most recent activity.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Store holds live sessions keyed by id. All methods are safe for concurrent
// use. Sessions live only in memory; a restart clears them.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	logger zerolog.Logger
	now    func() time.Time
	newID  func() (string, error)
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithClock overrides the store's time source, used by tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides session id generation, used by tests.
func WithIDGenerator(gen func() (string, error)) StoreOption {
	return func(s *Store) { s.newID = gen }
}

// NewStore creates an empty session store.
func NewStore(logger zerolog.Logger, opts ...StoreOption) *Store {
	observability.EnsureRegistered()

	s := &Store{
		sessions: make(map[string]*Session),
		logger:   logger,
		now:      time.Now,
		newID:    defaultID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func defaultID() (string, error) {
	suffix, err := gonanoid.Generate(idAlphabet, 12)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("sess_%d_%s", time.Now().UnixMilli(), suffix), nil
}

// Create registers a new session around the given loop and returns it.
func (s *Store) Create(loop *agent.Loop) (*Session, error) {
	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	now := s.now()
	sess := &Session{
		ID:        id,
		Loop:      loop,
		CreatedAt: now,
		lastSeen:  now,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	count := len(s.sessions)
	s.mu.Unlock()

	observability.RecordSessionCreated()
	observability.SetActiveSessions(count)
	s.logger.Info().Str("session_id", id).Int("active", count).Msg("Session created")

	return sess, nil
}

// Get returns the session for id and marks it as recently used.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if ok {
		sess.Touch(s.now())
	}
	return sess, ok
}

// Delete removes a session. It is idempotent and reports whether the session
// existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	_, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	count := len(s.sessions)
	s.mu.Unlock()

	if ok {
		observability.SetActiveSessions(count)
		s.logger.Info().Str("session_id", id).Int("active", count).Msg("Session deleted")
	}
	return ok
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// EvictIdle removes sessions whose last activity is older than ttl. Sessions
// currently processing an instruction are skipped regardless of age. It
// returns the ids evicted.
func (s *Store) EvictIdle(ttl time.Duration) []string {
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	var evicted []string
	for id, sess := range s.sessions {
		if sess.Loop != nil && sess.Loop.Busy() {
			continue
		}
		if sess.LastSeen().Before(cutoff) {
			delete(s.sessions, id)
			evicted = append(evicted, id)
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	if len(evicted) > 0 {
		observability.SetActiveSessions(count)
		for range evicted {
			observability.RecordSessionEvicted()
		}
		s.logger.Info().Strs("session_ids", evicted).Msg("Idle sessions evicted")
	}
	return evicted
}
