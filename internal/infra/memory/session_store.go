package memory

import (
	"context"
	"sync"
)

// SessionStore is an in-memory implementation of app.SessionRegistry.
type SessionStore struct {
	mu      sync.Mutex
	current string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

func (s *SessionStore) ClaimCurrent(_ context.Context, candidateID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == "" {
		s.current = candidateID
	}
	return s.current, nil
}

func (s *SessionStore) ReleaseCurrent(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == sessionID {
		s.current = ""
	}
	return nil
}
