package app

import (
	"encoding/json"

	"focus-session-service/internal/domain"
)

// Outbound event names.
const (
	EventJoined             = "joined"
	EventUserCount          = "user_count"
	EventNewQuestion        = "new_question"
	EventSessionPhase       = "session_phase"
	EventAnswerResult       = "answer_result"
	EventTeacherUpdate      = "teacher_update"
	EventLeaderboardUpdate  = "leaderboard_update"
	EventClassFocusSnapshot = "class_focus_snapshot"
	EventDistractedStudent  = "distracted_student"
	EventSignal             = "signal"
	EventVoiceCommandResult = "voice_command_result"
	EventSessionEnded       = "session_ended"
	EventError              = "error"
)

// Phase is the cosmetic lifecycle state shown to clients.
type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhaseQuestion   Phase = "QUESTION"
	PhaseDiscussion Phase = "DISCUSSION"
)

type audience int

const (
	toAll audience = iota
	toStudents
	toTeachers
	toParticipant
)

// Event is a message published to a classroom's subscribers.
type Event struct {
	Type    string
	Payload any

	audience audience
	target   string
}

func (e Event) deliverableTo(participantID string, role domain.Role) bool {
	switch e.audience {
	case toStudents:
		return role == domain.RoleStudent
	case toTeachers:
		return role == domain.RoleTeacher
	case toParticipant:
		return participantID == e.target
	}
	return true
}

// JoinedPayload acknowledges a join.
type JoinedPayload struct {
	ParticipantID string      `json:"participantId"`
	SessionID     string      `json:"sessionId"`
	Role          domain.Role `json:"role"`
	Name          string      `json:"name"`
}

// UserCountPayload is the number of students present.
type UserCountPayload struct {
	Count int `json:"count"`
}

// NewQuestionPayload is broadcast when a question opens. CorrectAnswer is
// only filled in for teachers.
type NewQuestionPayload struct {
	QuestionID    string   `json:"questionId"`
	QuestionText  string   `json:"questionText"`
	Mode          string   `json:"mode"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
	TimerDuration int      `json:"timerDuration"`
	StartTime     int64    `json:"startTime"`
	EndTime       int64    `json:"endTime"`
}

// SessionPhasePayload announces a phase change.
type SessionPhasePayload struct {
	Phase      Phase  `json:"phase"`
	QuestionID string `json:"questionId,omitempty"`
}

// LastAnswer summarises the most recent submission for teachers.
type LastAnswer struct {
	StudentID string `json:"studentId"`
	IsCorrect bool   `json:"isCorrect"`
	Points    int    `json:"points"`
}

// TeacherUpdatePayload carries answer counts for the active question.
type TeacherUpdatePayload struct {
	QuestionID   string     `json:"questionId"`
	TotalAnswers int        `json:"totalAnswers"`
	LastAnswer   LastAnswer `json:"lastAnswer"`
}

// SignalPayload is an opaque peer-to-peer signalling message.
type SignalPayload struct {
	Sender string          `json:"sender"`
	Signal json.RawMessage `json:"signal"`
	Type   string          `json:"type,omitempty"`
}

// SessionEndedPayload tells clients to reconnect to the next session.
type SessionEndedPayload struct {
	SessionID string `json:"sessionId"`
}

// StudentQuestionView is the new_question payload a student would see for q.
func StudentQuestionView(q domain.ActiveQuestion) NewQuestionPayload {
	return newQuestionPayload(&q, false)
}
