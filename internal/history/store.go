// Package history keeps the ordered collection of chat sessions and persists
// it through a Repository.
package history

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// ErrSessionNotFound is returned when no session has the requested id.
var ErrSessionNotFound = errors.New("session not found")

// Store owns the session collection. Newly saved sessions go to the front;
// re-saved sessions keep their position.
type Store struct {
	repo Repository
	now  func() time.Time

	mu       sync.Mutex
	sessions []ChatSession
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore loads the collection from repo.
func NewStore(ctx context.Context, repo Repository, opts ...Option) *Store {
	s := &Store{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.sessions = repo.Load(ctx)
	return s
}

// CreateSession allocates an empty session with a fresh id. It is not stored
// until it has at least one message and is saved.
func (s *Store) CreateSession() *ChatSession {
	return &ChatSession{ID: NewID(s.now())}
}

// SaveActiveSession upserts sess and persists the whole collection. Sessions
// without messages are never stored. The title is taken from the first
// message once and kept afterwards, as is the creation time.
func (s *Store) SaveActiveSession(ctx context.Context, sess *ChatSession) error {
	if sess == nil || len(sess.Messages) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	idx := s.indexOf(sess.ID)

	title, createdAt := sess.Title, sess.CreatedAt
	if idx >= 0 {
		title, createdAt = s.sessions[idx].Title, s.sessions[idx].CreatedAt
	}
	if title == "" {
		title = MakeTitle(sess.Messages[0].Text)
	}
	if createdAt.IsZero() {
		createdAt = now
	}

	entry := sess.Clone()
	entry.Title = title
	entry.CreatedAt = createdAt
	entry.UpdatedAt = now

	next := slices.Clone(s.sessions)
	if idx >= 0 {
		next[idx] = entry
	} else {
		next = slices.Insert(next, 0, entry)
	}

	if err := s.repo.Save(ctx, next); err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	s.sessions = next

	sess.Title = title
	sess.CreatedAt = createdAt
	sess.UpdatedAt = now
	return nil
}

// LoadSession returns a copy of the session with id.
func (s *Store) LoadSession(id string) (*ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	c := s.sessions[idx].Clone()
	return &c, nil
}

// DeleteSession removes the session with id and reports whether it existed.
// Choosing a new active session is up to the caller.
func (s *Store) DeleteSession(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return false, nil
	}
	next := slices.Delete(slices.Clone(s.sessions), idx, idx+1)
	if err := s.repo.Save(ctx, next); err != nil {
		return false, fmt.Errorf("delete session %s: %w", id, err)
	}
	s.sessions = next
	return true, nil
}

// Sessions returns a copy of the collection in stored order.
func (s *Store) Sessions() []ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ChatSession, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = sess.Clone()
	}
	return out
}

// ListSessionsGrouped buckets the collection by recency relative to now.
func (s *Store) ListSessionsGrouped(now time.Time) Groups {
	return GroupByRecency(s.Sessions(), now)
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.sessions, func(c ChatSession) bool { return c.ID == id })
}
