package memory

import (
	"context"
	"sync"

	"focus-session-service/internal/domain"
)

// FocusStore keeps the latest focus report per participant in process memory.
type FocusStore struct {
	mu      sync.RWMutex
	reports map[string]map[string]domain.FocusReport
}

func NewFocusStore() *FocusStore {
	return &FocusStore{reports: make(map[string]map[string]domain.FocusReport)}
}

func (s *FocusStore) Put(_ context.Context, sessionID, participantID string, report domain.FocusReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byParticipant, ok := s.reports[sessionID]
	if !ok {
		byParticipant = make(map[string]domain.FocusReport)
		s.reports[sessionID] = byParticipant
	}
	byParticipant[participantID] = report
	return nil
}

func (s *FocusStore) Get(_ context.Context, sessionID, participantID string) (domain.FocusReport, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.reports[sessionID][participantID]
	return report, ok, nil
}

func (s *FocusStore) All(_ context.Context, sessionID string) (map[string]domain.FocusReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.FocusReport, len(s.reports[sessionID]))
	for id, r := range s.reports[sessionID] {
		out[id] = r
	}
	return out, nil
}

func (s *FocusStore) Delete(_ context.Context, sessionID, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reports[sessionID], participantID)
	if len(s.reports[sessionID]) == 0 {
		delete(s.reports, sessionID)
	}
	return nil
}
