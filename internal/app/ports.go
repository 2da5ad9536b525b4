package app

import (
	"context"
	"time"

	"focus-session-service/internal/domain"
)

// QuestionGate coordinates the single active question of a session and the
// one-answer-per-participant rule. The in-memory gate serves one process; the
// Redis gate lets several processes share a session.
type QuestionGate interface {
	// Open makes nextID the active question provided the active one is still
	// prevID (the last question this process opened, "" for none) or was
	// closed. Otherwise it returns domain.ErrQuestionConflict.
	Open(ctx context.Context, sessionID, prevID, nextID string) error
	// Close seals questionID if it is still active.
	Close(ctx context.Context, sessionID, questionID string) error
	// Claim reserves participantID's only answer for questionID. It returns
	// domain.ErrQuestionSealed when questionID is no longer active and
	// domain.ErrAlreadyAnswered on a repeat.
	Claim(ctx context.Context, sessionID, questionID, participantID string) error
}

// FocusStore keeps the latest focus report per participant.
type FocusStore interface {
	Put(ctx context.Context, sessionID, participantID string, report domain.FocusReport) error
	Get(ctx context.Context, sessionID, participantID string) (domain.FocusReport, bool, error)
	All(ctx context.Context, sessionID string) (map[string]domain.FocusReport, error)
	Delete(ctx context.Context, sessionID, participantID string) error
}

// Recorder is the persistence sink. Writes are best-effort: callers log
// failures and carry on with the live session.
type Recorder interface {
	StartSession(ctx context.Context, session domain.SessionRecord) error
	EndSession(ctx context.Context, sessionID string, endedAt time.Time) error
	RecordAttendance(ctx context.Context, sessionID string, entry domain.AttendanceEntry) error
	SaveQuestion(ctx context.Context, question domain.QuestionRecord) error
	SaveAnswer(ctx context.Context, sessionID string, answer domain.AnswerRecord) error
	SaveFocusLog(ctx context.Context, log domain.FocusLog) error
}

// SessionReader is the query side of the persistence layer.
type SessionReader interface {
	GetSession(ctx context.Context, sessionID string) (domain.SessionRecord, error)
	ListAttendance(ctx context.Context, sessionID string) ([]domain.AttendanceEntry, error)
	ListQuestions(ctx context.Context, sessionID string) ([]domain.QuestionRecord, error)
	ListAnswers(ctx context.Context, sessionID string) ([]domain.AnswerRecord, error)
	FocusSummary(ctx context.Context, sessionID string) (domain.FocusSummary, error)
}

// SessionRegistry agrees on the current session id. The first claimant wins
// and later claimants adopt the registered id, so processes sharing a Redis
// registry serve the same session and contend on its question gate.
type SessionRegistry interface {
	ClaimCurrent(ctx context.Context, candidateID string) (string, error)
	ReleaseCurrent(ctx context.Context, sessionID string) error
}

// ReportRepository serves session reports, typically cached.
type ReportRepository interface {
	GetReport(ctx context.Context, sessionID string) (domain.SessionReport, error)
}
