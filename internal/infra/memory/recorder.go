package memory

import (
	"context"
	"sync"
	"time"

	"focus-session-service/internal/domain"
)

// Recorder keeps session history in process memory. It implements both
// app.Recorder and app.SessionReader and is used when no database is set.
type Recorder struct {
	mu       sync.RWMutex
	sessions map[string]*sessionHistory
}

type sessionHistory struct {
	record     domain.SessionRecord
	attendance []domain.AttendanceEntry
	questions  []domain.QuestionRecord
	answers    []domain.AnswerRecord
	focus      domain.FocusSummary
}

func NewRecorder() *Recorder {
	return &Recorder{sessions: make(map[string]*sessionHistory)}
}

func (r *Recorder) StartSession(_ context.Context, session domain.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = &sessionHistory{record: session}
	return nil
}

func (r *Recorder) EndSession(_ context.Context, sessionID string, endedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	h.record.EndedAt = &endedAt
	return nil
}

func (r *Recorder) RecordAttendance(_ context.Context, sessionID string, entry domain.AttendanceEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	h.attendance = append(h.attendance, entry)
	if entry.Action == domain.AttendanceJoin {
		h.record.TotalStudentsJoined++
	}
	return nil
}

func (r *Recorder) SaveQuestion(_ context.Context, question domain.QuestionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.sessions[question.SessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	h.questions = append(h.questions, question)
	return nil
}

func (r *Recorder) SaveAnswer(_ context.Context, sessionID string, answer domain.AnswerRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	h.answers = append(h.answers, answer)
	return nil
}

func (r *Recorder) SaveFocusLog(_ context.Context, log domain.FocusLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.sessions[log.SessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	h.focus.Samples++
	h.focus.SumScore += int64(log.Score)
	return nil
}

func (r *Recorder) GetSession(_ context.Context, sessionID string) (domain.SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.sessions[sessionID]
	if !ok {
		return domain.SessionRecord{}, domain.ErrSessionNotFound
	}
	return h.record, nil
}

func (r *Recorder) ListAttendance(_ context.Context, sessionID string) ([]domain.AttendanceEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return append([]domain.AttendanceEntry(nil), h.attendance...), nil
}

func (r *Recorder) ListQuestions(_ context.Context, sessionID string) ([]domain.QuestionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return append([]domain.QuestionRecord(nil), h.questions...), nil
}

func (r *Recorder) ListAnswers(_ context.Context, sessionID string) ([]domain.AnswerRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return append([]domain.AnswerRecord(nil), h.answers...), nil
}

func (r *Recorder) FocusSummary(_ context.Context, sessionID string) (domain.FocusSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.sessions[sessionID]
	if !ok {
		return domain.FocusSummary{}, domain.ErrSessionNotFound
	}
	return h.focus, nil
}
