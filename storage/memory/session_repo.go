package memory

import (
	"context"
	"sync"
	"time"

	"carpoolbot/pkg/clock"
	"carpoolbot/pkg/models"
)

// SessionStore keeps drafts in a map. Sessions untouched for longer than
// idle are dropped on the next read; idle <= 0 keeps them forever.
type SessionStore struct {
	mu       sync.Mutex
	clk      clock.Clock
	idle     time.Duration
	sessions map[string]models.Session
}

func NewSessionStore(clk clock.Clock, idle time.Duration) *SessionStore {
	return &SessionStore{clk: clk, idle: idle, sessions: make(map[string]models.Session)}
}

func (s *SessionStore) Get(_ context.Context, userID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	if s.idle > 0 && s.clk.Now().Sub(sess.UpdatedAt) > s.idle {
		delete(s.sessions, userID)
		return nil, nil
	}
	return &sess, nil
}

func (s *SessionStore) Put(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sess
	cp.UpdatedAt = s.clk.Now()
	s.sessions[sess.UserID] = cp
	return nil
}

func (s *SessionStore) Remove(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, userID)
	return nil
}

// Len reports the number of stored sessions, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
