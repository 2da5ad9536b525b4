package memory

import (
	"context"
	"sync"

	"focus-session-service/internal/domain"
)

// QuestionGate is the single-process implementation of app.QuestionGate.
type QuestionGate struct {
	mu       sync.Mutex
	active   map[string]string              // sessionID -> questionID
	answered map[string]map[string]struct{} // questionID -> participant set
}

func NewQuestionGate() *QuestionGate {
	return &QuestionGate{
		active:   make(map[string]string),
		answered: make(map[string]map[string]struct{}),
	}
}

func (g *QuestionGate) Open(_ context.Context, sessionID, prevID, nextID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	current := g.active[sessionID]
	if current != "" && current != prevID {
		return domain.ErrQuestionConflict
	}
	if current != "" {
		delete(g.answered, current)
	}
	g.active[sessionID] = nextID
	g.answered[nextID] = make(map[string]struct{})
	return nil
}

func (g *QuestionGate) Close(_ context.Context, sessionID, questionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active[sessionID] == questionID {
		delete(g.active, sessionID)
		delete(g.answered, questionID)
	}
	return nil
}

func (g *QuestionGate) Claim(_ context.Context, sessionID, questionID, participantID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active[sessionID] != questionID {
		return domain.ErrQuestionSealed
	}
	set := g.answered[questionID]
	if _, ok := set[participantID]; ok {
		return domain.ErrAlreadyAnswered
	}
	set[participantID] = struct{}{}
	return nil
}
